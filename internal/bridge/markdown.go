// Copyright Contributors to the KubeOpenCode project

package bridge

import "strings"

// markdownAdapter implements the single-markdown-memory-file convention
// (Claude, and any future CLI using the same layout).
type markdownAdapter struct{}

func newMarkdownAdapter() *markdownAdapter { return &markdownAdapter{} }

func (markdownAdapter) Kind() string { return KindClaude }

func (markdownAdapter) Command(cfg UniversalConfig) []string {
	return []string{"claude-code", cfg.Agent.Instructions}
}

func (markdownAdapter) Translate(cfg UniversalConfig) (TranslationResult, error) {
	var sb strings.Builder
	sb.WriteString("# Project Context\n\n")
	if cfg.Context.ProjectName != "" {
		sb.WriteString("**Project:** " + cfg.Context.ProjectName + "\n\n")
	}
	sb.WriteString(cfg.Context.ProjectDescription + "\n")

	if cfg.Context.ArchitectureNotes != "" {
		sb.WriteString("\n# Architecture\n\n")
		sb.WriteString(cfg.Context.ArchitectureNotes + "\n")
	}

	if len(cfg.Context.Constraints) > 0 {
		sb.WriteString("\n# Constraints\n\n")
		for _, c := range cfg.Context.Constraints {
			sb.WriteString("- " + c + "\n")
		}
	}

	sb.WriteString("\n# Instructions\n\n")
	sb.WriteString(cfg.Agent.Instructions + "\n")

	content := sb.String()
	return TranslationResult{
		Content: content,
		ConfigFiles: []ConfigFile{
			{Path: "/workspace/CLAUDE.md", Content: content, Permissions: defaultPermissions},
		},
	}, nil
}
