// Copyright Contributors to the KubeOpenCode project

package capability

import "github.com/Masterminds/semver/v3"

// Registered CLI kind constants, shared with the config bridge and
// the naming component's cli token.
const (
	KindClaude   = "claude"
	KindCodex    = "codex"
	KindOpenCode = "opencode"
	KindCursor   = "cursor"
	KindFactory  = "factory"
	KindGemini   = "gemini"
)

// RegisterDefaults registers the six built-in CLI adapters against r.
// It is called once at process startup; registration failures here
// indicate a programming error in the fact sheets below, not operator
// input, so the caller is expected to treat any returned error as fatal.
func RegisterDefaults(r *Registry) error {
	defaults := []Adapter{
		{
			Kind:            KindClaude,
			Version:         semver.MustParse("1.0.83"),
			Executable:      "claude-code",
			MemoryFilename:  "CLAUDE.md",
			SupportedModels: []string{"claude-opus-4-5-20251101", "claude-sonnet-4-20250514", "claude-3-5-sonnet-20241022", "claude-3-5-haiku-20241022"},
			Capabilities: Capabilities{
				SupportsStreaming:       true,
				SupportsMultimodal:      true,
				SupportsFunctionCalling: true,
				SupportsSystemPrompts:   true,
				MaxContextTokens:        200000,
				MemoryStrategy:          MemoryStrategyMarkdownFile,
				ConfigFormat:            ConfigFormatMarkdown,
				AuthenticationMethods:   []string{"api-key"},
			},
		},
		{
			Kind:            KindCodex,
			Version:         semver.MustParse("0.21.0"),
			Executable:      "codex",
			MemoryFilename:  "AGENTS.md",
			SupportedModels: []string{"gpt-4", "gpt-4o", "o3"},
			Capabilities: Capabilities{
				SupportsStreaming:       true,
				SupportsFunctionCalling: true,
				SupportsSystemPrompts:   true,
				MaxContextTokens:        128000,
				MemoryStrategy:          MemoryStrategyMarkdownFile,
				ConfigFormat:            ConfigFormatTOML,
				AuthenticationMethods:   []string{"api-key"},
			},
		},
		{
			Kind:            KindOpenCode,
			Version:         semver.MustParse("0.3.52"),
			Executable:      "opencode",
			MemoryFilename:  "opencode.json",
			SupportedModels: []string{"gpt-4", "gpt-4o"},
			Capabilities: Capabilities{
				SupportsStreaming:     true,
				SupportsSystemPrompts: true,
				MaxContextTokens:      128000,
				MemoryStrategy:        MemoryStrategyConfigurationBase,
				ConfigFormat:          ConfigFormatJSON,
				AuthenticationMethods: []string{"api-key"},
			},
		},
		{
			Kind:            KindCursor,
			Version:         semver.MustParse("0.45.0"),
			Executable:      "cursor-agent",
			MemoryFilename:  "AGENTS.md",
			SupportedModels: []string{"cursor-small", "gpt-4"},
			Capabilities: Capabilities{
				SupportsStreaming:     true,
				SupportsSystemPrompts: true,
				MaxContextTokens:      128000,
				MemoryStrategy:        MemoryStrategyMarkdownFile,
				ConfigFormat:          ConfigFormatJSON,
				AuthenticationMethods: []string{"api-key"},
			},
		},
		{
			Kind:            KindFactory,
			Version:         semver.MustParse("0.9.4"),
			Executable:      "droid",
			MemoryFilename:  "AGENTS.md",
			SupportedModels: []string{"gpt-4", "claude-sonnet-4-20250514"},
			Capabilities: Capabilities{
				SupportsStreaming:       true,
				SupportsFunctionCalling: true,
				SupportsSystemPrompts:   true,
				MaxContextTokens:        200000,
				MemoryStrategy:          MemoryStrategyMarkdownFile,
				ConfigFormat:            ConfigFormatJSON,
				AuthenticationMethods:   []string{"api-key"},
			},
		},
		{
			Kind:            KindGemini,
			Version:         semver.MustParse("0.1.14"),
			Executable:      "gemini-cli",
			MemoryFilename:  "GEMINI.md",
			SupportedModels: []string{"gemini-pro", "gemini-1.5-pro"},
			Capabilities: Capabilities{
				SupportsStreaming:     true,
				SupportsMultimodal:    true,
				SupportsSystemPrompts: true,
				MaxContextTokens:      1000000,
				MemoryStrategy:        MemoryStrategyMarkdownFile,
				ConfigFormat:          ConfigFormatJSON,
				AuthenticationMethods: []string{"api-key"},
			},
		},
	}

	for _, a := range defaults {
		if err := r.Register(a); err != nil {
			return err
		}
	}
	return nil
}
