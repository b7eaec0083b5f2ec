// Copyright Contributors to the KubeOpenCode project

package bridge

import "encoding/json"

// cursorAdapter implements the Cursor CLI's convention: an editor/
// permissions skeleton plus an AGENTS.md memory file.
type cursorAdapter struct{}

func newCursorAdapter() *cursorAdapter { return &cursorAdapter{} }

func (cursorAdapter) Kind() string { return KindCursor }

func (cursorAdapter) Command(cfg UniversalConfig) []string {
	return []string{"cursor-agent", "--print", "--force", cfg.Agent.Instructions}
}

type cursorCLIConfig struct {
	Model       string   `json:"model"`
	SandboxMode string   `json:"sandbox_mode"`
	Permissions []string `json:"permissions"`
}

func (a cursorAdapter) Translate(cfg UniversalConfig) (TranslationResult, error) {
	doc := cursorCLIConfig{
		Model:       cfg.Settings.Model,
		SandboxMode: string(cfg.Settings.SandboxMode),
		Permissions: []string{"Shell(*)", "Read(**/*)", "Write(**/*)"},
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return TranslationResult{}, &ConfigSerializationError{Kind: a.Kind(), Err: err}
	}

	return TranslationResult{
		Content: string(out),
		ConfigFiles: []ConfigFile{
			{Path: "/workspace/.cursor/cli.json", Content: string(out), Permissions: defaultPermissions},
			{Path: "/workspace/AGENTS.md", Content: cfg.Agent.Instructions, Permissions: defaultPermissions},
		},
		EnvVars: []string{"CURSOR_API_KEY"},
	}, nil
}
