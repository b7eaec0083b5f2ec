// Copyright Contributors to the KubeOpenCode project

package bridge

import (
	"errors"
	"strings"
	"testing"
)

func canonicalConfig() UniversalConfig {
	return UniversalConfig{
		Context: Context{
			ProjectName:        "agentctl",
			ProjectDescription: "Kubernetes agent run orchestrator.",
			ArchitectureNotes:  "Controller-runtime based reconciler.",
			Constraints:        []string{"never force-push", "keep PRs small"},
		},
		Tools: []Tool{{Name: "search"}, {Name: "search"}, {Name: "edit"}},
		Settings: Settings{
			Model:       "gpt-4",
			Temperature: 0.2,
			MaxTokens:   4096,
			SandboxMode: SandboxWorkspaceWrite,
		},
		Agent: Agent{
			Role:         "implementation",
			Instructions: "Write clean code.",
		},
	}
}

// wantCommand documents the expected command line for each CLI kind, with the
// task argument held back so every case can supply cfg.Agent.Instructions.
func wantCommand(kind, task string) []string {
	switch kind {
	case KindClaude:
		return []string{"claude-code", task}
	case KindCodex:
		return []string{"codex", "exec", "--full-auto", task}
	case KindOpenCode:
		return []string{"opencode", task}
	case KindCursor:
		return []string{"cursor-agent", "--print", "--force", task}
	case KindFactory:
		return []string{"droid", "exec", "--output-format", "json", "--auto", "medium", task}
	case KindGemini:
		return []string{"gemini-cli", task}
	default:
		return nil
	}
}

func TestBridge_RoundTrip_AllKinds(t *testing.T) {
	b := NewBridge()
	cfg := canonicalConfig()
	cfg.Agent.Instructions = "Write clean code."

	for _, kind := range b.Kinds() {
		kind := kind
		t.Run(kind, func(t *testing.T) {
			result, err := b.Translate(kind, cfg)
			if err != nil {
				t.Fatalf("Translate(%q) error = %v", kind, err)
			}
			if len(result.ConfigFiles) == 0 {
				t.Fatalf("Translate(%q) produced no config files", kind)
			}
			for _, f := range result.ConfigFiles {
				if !strings.HasPrefix(f.Path, "/") {
					t.Fatalf("Translate(%q) file path %q is not absolute", kind, f.Path)
				}
				if f.Permissions != 0o644 {
					t.Fatalf("Translate(%q) file %q permissions = %o, want 0644", kind, f.Path, f.Permissions)
				}
				if strings.TrimSpace(f.Content) == "" {
					t.Fatalf("Translate(%q) file %q has empty content", kind, f.Path)
				}
			}
			cmd, err := b.Command(kind, cfg)
			if err != nil {
				t.Fatalf("Command(%q) error = %v", kind, err)
			}
			want := wantCommand(kind, cfg.Agent.Instructions)
			if len(cmd) != len(want) {
				t.Fatalf("Command(%q) = %v, want %v", kind, cmd, want)
			}
			for i := range want {
				if cmd[i] != want[i] {
					t.Fatalf("Command(%q) = %v, want %v", kind, cmd, want)
				}
			}
			for _, tok := range cmd {
				if tok == "<task>" || tok == "<level>" {
					t.Fatalf("Command(%q) = %v, contains an unresolved placeholder", kind, cmd)
				}
			}
		})
	}
}

func TestBridge_UnsupportedCLI(t *testing.T) {
	b := NewBridge()
	_, err := b.Translate("nonexistent", canonicalConfig())
	var uerr *UnsupportedCLIError
	if !errors.As(err, &uerr) {
		t.Fatalf("Translate() error = %v, want *UnsupportedCLIError", err)
	}
}

func TestTOMLAdapter_EmitsCodexConfigAndAgentsFile(t *testing.T) {
	a := newTOMLAdapter()
	cfg := UniversalConfig{
		Settings: Settings{Model: "gpt-4", SandboxMode: SandboxWorkspaceWrite},
		Agent:    Agent{Instructions: "Write clean code."},
	}

	result, err := a.Translate(cfg)
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}

	if !strings.Contains(result.Content, `model = "gpt-4"`) {
		t.Fatalf("config.toml missing model key: %s", result.Content)
	}
	if !strings.Contains(result.Content, `sandbox_mode = "workspace-write"`) {
		t.Fatalf("config.toml missing sandbox_mode key: %s", result.Content)
	}
	if !strings.Contains(result.Content, `approval_policy = "never"`) {
		t.Fatalf("config.toml missing approval_policy key: %s", result.Content)
	}

	foundAgents := false
	for _, f := range result.ConfigFiles {
		if f.Path == "/workspace/AGENTS.md" {
			foundAgents = true
			if f.Content != "Write clean code." {
				t.Fatalf("AGENTS.md content = %q, want %q", f.Content, "Write clean code.")
			}
		}
	}
	if !foundAgents {
		t.Fatalf("Translate() did not produce /workspace/AGENTS.md")
	}

	foundEnv := false
	for _, v := range result.EnvVars {
		if v == "OPENAI_API_KEY" {
			foundEnv = true
		}
	}
	if !foundEnv {
		t.Fatalf("EnvVars = %v, want to include OPENAI_API_KEY", result.EnvVars)
	}
}

func TestFactoryAdapter_ToolsEndpointFromMCPServerEnv(t *testing.T) {
	a := newFactoryAdapter()
	cfg := UniversalConfig{
		Settings: Settings{Model: "claude-sonnet-4-20250514", SandboxMode: SandboxWorkspaceWrite},
		Agent:    Agent{Instructions: "Route to the right specialist."},
		MCPConfig: &MCPConfig{
			Servers: []MCPServer{
				{Name: "tools", Command: "tools-server", Env: map[string]string{"TOOLS_SERVER_URL": "http://localhost:3000/mcp"}},
			},
		},
	}

	result, err := a.Translate(cfg)
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}

	if !strings.Contains(result.Content, `"endpoint": "http://localhost:3000/mcp"`) {
		t.Fatalf("cli-config.json missing expected tools.endpoint: %s", result.Content)
	}
	if !strings.Contains(result.Content, `"level": "medium"`) {
		t.Fatalf("cli-config.json missing expected autoRun.level: %s", result.Content)
	}
}

func TestFactoryAdapter_ReasoningEffortDerivation(t *testing.T) {
	tests := []struct {
		mode SandboxMode
		want string
	}{
		{SandboxDangerFullAccess, "high"},
		{SandboxWorkspaceWrite, "medium"},
		{SandboxReadOnly, "low"},
	}
	for _, tt := range tests {
		if got := reasoningEffort(tt.mode); got != tt.want {
			t.Fatalf("reasoningEffort(%q) = %q, want %q", tt.mode, got, tt.want)
		}
	}
}

func TestToolsEndpoint_FallsBackToDefault(t *testing.T) {
	if got := toolsEndpoint(nil); got != defaultToolsEndpoint {
		t.Fatalf("toolsEndpoint(nil) = %q, want %q", got, defaultToolsEndpoint)
	}
	mcp := &MCPConfig{Servers: []MCPServer{{Name: "other"}}}
	if got := toolsEndpoint(mcp); got != defaultToolsEndpoint {
		t.Fatalf("toolsEndpoint() with no tools server = %q, want %q", got, defaultToolsEndpoint)
	}
}

func TestSortedUniqueToolNames_Dedupes(t *testing.T) {
	got := sortedUniqueToolNames([]Tool{{Name: "b"}, {Name: "a"}, {Name: "b"}})
	want := []string{"a", "b"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("sortedUniqueToolNames() = %v, want %v", got, want)
	}
}
