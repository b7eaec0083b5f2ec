// Copyright Contributors to the KubeOpenCode project

package bridge

import (
	"encoding/json"
	"sort"
)

// factoryAdapter implements the Factory CLI (droid) convention: a
// home-directory cli-config.json, a workspace-mirrored permissions file,
// and an AGENTS.md memory file.
type factoryAdapter struct{}

func newFactoryAdapter() *factoryAdapter { return &factoryAdapter{} }

func (factoryAdapter) Kind() string { return KindFactory }

// defaultToolsEndpoint is used when no "tools" MCP server declares a
// TOOLS_SERVER_URL env var or a --url argument.
const defaultToolsEndpoint = "http://tools-server.agent-platform.svc.cluster.local/mcp"

func reasoningEffort(mode SandboxMode) string {
	switch mode {
	case SandboxDangerFullAccess:
		return "high"
	case SandboxWorkspaceWrite:
		return "medium"
	default:
		return "low"
	}
}

func (factoryAdapter) Command(cfg UniversalConfig) []string {
	return []string{"droid", "exec", "--output-format", "json", "--auto", reasoningEffort(cfg.Settings.SandboxMode), cfg.Agent.Instructions}
}

type factoryModel struct {
	Default string `json:"default"`
}

type factoryAutoRun struct {
	Level string `json:"level"`
}

type factoryTools struct {
	Endpoint string   `json:"endpoint"`
	Tools    []string `json:"tools"`
}

type factoryCLIConfig struct {
	Model            factoryModel   `json:"model"`
	Temperature      float64        `json:"temperature"`
	MaxOutputTokens  int            `json:"maxOutputTokens,omitempty"`
	ReasoningEffort  string         `json:"reasoningEffort,omitempty"`
	AutoRun          factoryAutoRun `json:"autoRun"`
	ApprovalPolicy   string         `json:"approvalPolicy"`
	Permissions      factoryPerms   `json:"permissions"`
	Tools            factoryTools   `json:"tools"`
}

type factoryPerms struct {
	Allow []string `json:"allow"`
}

type factoryWorkspaceConfig struct {
	Permissions factoryPerms `json:"permissions"`
}

func toolsEndpoint(mcp *MCPConfig) string {
	if mcp == nil {
		return defaultToolsEndpoint
	}
	for _, srv := range mcp.Servers {
		if srv.Name != "tools" {
			continue
		}
		if url, ok := srv.Env["TOOLS_SERVER_URL"]; ok && url != "" {
			return url
		}
		for i, arg := range srv.Args {
			if arg == "--url" && i+1 < len(srv.Args) {
				return srv.Args[i+1]
			}
		}
	}
	return defaultToolsEndpoint
}

func sortedUniqueToolNames(tools []Tool) []string {
	set := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		if t.Name != "" {
			set[t.Name] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (a factoryAdapter) Translate(cfg UniversalConfig) (TranslationResult, error) {
	level := reasoningEffort(cfg.Settings.SandboxMode)
	perms := factoryPerms{Allow: []string{"Shell(*)", "Read(**/*)", "Write(**/*)"}}

	doc := factoryCLIConfig{
		Model:           factoryModel{Default: cfg.Settings.Model},
		Temperature:     cfg.Settings.Temperature,
		MaxOutputTokens: cfg.Settings.MaxTokens,
		ReasoningEffort: level,
		AutoRun:         factoryAutoRun{Level: level},
		ApprovalPolicy:  "never",
		Permissions:     perms,
		Tools: factoryTools{
			Endpoint: toolsEndpoint(cfg.MCPConfig),
			Tools:    sortedUniqueToolNames(cfg.Tools),
		},
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return TranslationResult{}, &ConfigSerializationError{Kind: a.Kind(), Err: err}
	}

	workspaceDoc := factoryWorkspaceConfig{Permissions: perms}
	workspaceOut, err := json.MarshalIndent(workspaceDoc, "", "  ")
	if err != nil {
		return TranslationResult{}, &ConfigSerializationError{Kind: a.Kind(), Err: err}
	}

	return TranslationResult{
		Content: string(out),
		ConfigFiles: []ConfigFile{
			{Path: "/home/node/.factory/cli-config.json", Content: string(out), Permissions: defaultPermissions},
			{Path: "/workspace/.factory/cli.json", Content: string(workspaceOut), Permissions: defaultPermissions},
			{Path: "/workspace/AGENTS.md", Content: cfg.Agent.Instructions, Permissions: defaultPermissions},
		},
		EnvVars: []string{"FACTORY_API_KEY"},
	}, nil
}
