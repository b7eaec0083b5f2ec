// Copyright Contributors to the KubeOpenCode project

package bridge

import "encoding/json"

// geminiAdapter implements the Gemini CLI convention: a single JSON config
// naming the CLI's own memory filename and API base URL.
type geminiAdapter struct{}

func newGeminiAdapter() *geminiAdapter { return &geminiAdapter{} }

func (geminiAdapter) Kind() string { return KindGemini }

func (geminiAdapter) Command(cfg UniversalConfig) []string {
	return []string{"gemini-cli", cfg.Agent.Instructions}
}

type geminiConfig struct {
	Model       string   `json:"model"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature float64  `json:"temperature"`
	Tools       []string `json:"tools,omitempty"`
	MemoryFile  string   `json:"memory_file"`
	APIKeyEnv   string   `json:"api_key_env"`
	BaseURL     string   `json:"base_url"`
}

func (a geminiAdapter) Translate(cfg UniversalConfig) (TranslationResult, error) {
	doc := geminiConfig{
		Model:       cfg.Settings.Model,
		MaxTokens:   cfg.Settings.MaxTokens,
		Temperature: cfg.Settings.Temperature,
		Tools:       sortedUniqueToolNames(cfg.Tools),
		MemoryFile:  "GEMINI.md",
		APIKeyEnv:   "GOOGLE_API_KEY",
		BaseURL:     "https://generativelanguage.googleapis.com/v1beta",
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return TranslationResult{}, &ConfigSerializationError{Kind: a.Kind(), Err: err}
	}

	return TranslationResult{
		Content: string(out),
		ConfigFiles: []ConfigFile{
			{Path: "/workspace/.gemini/config.json", Content: string(out), Permissions: defaultPermissions},
		},
		EnvVars: []string{"GOOGLE_API_KEY"},
	}, nil
}
