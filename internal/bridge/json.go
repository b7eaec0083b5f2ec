// Copyright Contributors to the KubeOpenCode project

package bridge

import "encoding/json"

// jsonAdapter implements the OpenCode CLI's convention: a single
// pretty-printed JSON config echoing the universal settings.
type jsonAdapter struct{}

func newJSONAdapter() *jsonAdapter { return &jsonAdapter{} }

func (jsonAdapter) Kind() string { return KindOpenCode }

func (jsonAdapter) Command(cfg UniversalConfig) []string {
	return []string{"opencode", cfg.Agent.Instructions}
}

type openCodeConfig struct {
	Model              string  `json:"model"`
	SandboxMode        string  `json:"sandbox_mode"`
	MaxTokens          int     `json:"max_tokens,omitempty"`
	Temperature        float64 `json:"temperature"`
	ProjectName        string  `json:"project_name,omitempty"`
	ProjectDescription string  `json:"project_description,omitempty"`
	Instructions       string  `json:"instructions"`
}

func (a jsonAdapter) Translate(cfg UniversalConfig) (TranslationResult, error) {
	doc := openCodeConfig{
		Model:              cfg.Settings.Model,
		SandboxMode:        string(cfg.Settings.SandboxMode),
		MaxTokens:          cfg.Settings.MaxTokens,
		Temperature:        cfg.Settings.Temperature,
		ProjectName:        cfg.Context.ProjectName,
		ProjectDescription: cfg.Context.ProjectDescription,
		Instructions:       cfg.Agent.Instructions,
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return TranslationResult{}, &ConfigSerializationError{Kind: a.Kind(), Err: err}
	}

	return TranslationResult{
		Content: string(out),
		ConfigFiles: []ConfigFile{
			{Path: "/home/node/.config/opencode/config.json", Content: string(out), Permissions: defaultPermissions},
		},
		EnvVars: []string{"OPENAI_API_KEY"},
	}, nil
}
