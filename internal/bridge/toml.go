// Copyright Contributors to the KubeOpenCode project

package bridge

import (
	"sort"

	"github.com/pelletier/go-toml/v2"
)

// tomlAdapter implements the Codex CLI's convention: a TOML config plus a
// plain AGENTS.md memory file.
type tomlAdapter struct{}

func newTOMLAdapter() *tomlAdapter { return &tomlAdapter{} }

func (tomlAdapter) Kind() string { return KindCodex }

func (tomlAdapter) Command(cfg UniversalConfig) []string {
	return []string{"codex", "exec", "--full-auto", cfg.Agent.Instructions}
}

type codexMCPServer struct {
	Command string            `toml:"command"`
	Args    []string          `toml:"args"`
	Env     map[string]string `toml:"env"`
}

type codexConfig struct {
	Model                string                    `toml:"model"`
	SandboxMode          string                    `toml:"sandbox_mode"`
	ModelMaxOutputTokens int                       `toml:"model_max_output_tokens,omitempty"`
	ApprovalPolicy       string                    `toml:"approval_policy"`
	ProjectDocMaxBytes   int                       `toml:"project_doc_max_bytes"`
	MCPServers           map[string]codexMCPServer `toml:"mcp_servers,omitempty"`
}

func (a tomlAdapter) Translate(cfg UniversalConfig) (TranslationResult, error) {
	doc := codexConfig{
		Model:              cfg.Settings.Model,
		SandboxMode:        string(cfg.Settings.SandboxMode),
		ApprovalPolicy:     "never",
		ProjectDocMaxBytes: 32768,
	}
	if cfg.Settings.MaxTokens > 0 {
		doc.ModelMaxOutputTokens = cfg.Settings.MaxTokens
	}

	envVars := map[string]struct{}{"OPENAI_API_KEY": {}}
	if cfg.MCPConfig != nil && len(cfg.MCPConfig.Servers) > 0 {
		doc.MCPServers = make(map[string]codexMCPServer, len(cfg.MCPConfig.Servers))
		for _, srv := range cfg.MCPConfig.Servers {
			doc.MCPServers[srv.Name] = codexMCPServer{
				Command: srv.Command,
				Args:    srv.Args,
				Env:     srv.Env,
			}
			for _, k := range mcpServerEnvKeys(srv.Env) {
				envVars[k] = struct{}{}
			}
		}
	}

	out, err := toml.Marshal(doc)
	if err != nil {
		return TranslationResult{}, &ConfigSerializationError{Kind: a.Kind(), Err: err}
	}

	env := make([]string, 0, len(envVars))
	for k := range envVars {
		env = append(env, k)
	}
	sort.Strings(env)

	return TranslationResult{
		Content: string(out),
		ConfigFiles: []ConfigFile{
			{Path: "/home/node/.codex/config.toml", Content: string(out), Permissions: defaultPermissions},
			{Path: "/workspace/AGENTS.md", Content: cfg.Agent.Instructions, Permissions: defaultPermissions},
		},
		EnvVars: env,
	}, nil
}
