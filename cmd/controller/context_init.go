// Copyright Contributors to the KubeOpenCode project

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const (
	defaultWorkspaceDir  = "/workspace"
	defaultConfigMapPath = "/task-files"
)

// FileMapping maps one ConfigMap key ("<sanitized-path>.conf") to the
// absolute path the target CLI expects the file at. The resource manager
// renders the mapping list from the same TranslationResult it built the
// ConfigMap from, so the two cannot drift apart.
type FileMapping struct {
	Key        string `json:"key"`
	TargetPath string `json:"targetPath"`
	FileMode   *int32 `json:"fileMode,omitempty"`
}

// DirMapping copies a whole mounted directory into the workspace, used for
// multi-file context bundles (style guides, schema collections).
type DirMapping struct {
	SourcePath string `json:"sourcePath"`
	TargetPath string `json:"targetPath"`
}

func init() {
	rootCmd.AddCommand(contextInitCmd)
}

var contextInitCmd = &cobra.Command{
	Use:   "context-init",
	Short: "Materialize the config bridge's translated files at their real paths",
	Long: `context-init runs as a RunRequest Job init container: it copies each
config bridge output from the per-run ConfigMap mounted read-only at
/task-files to the absolute path the target CLI actually expects —
/home/node/.codex/config.toml, /workspace/AGENTS.md, and so on — since a
ConfigMap volume cannot be mounted at those scattered paths directly.

Environment variables:
  WORKSPACE_DIR   workspace directory, default: /workspace
  CONFIGMAP_PATH  where the per-run ConfigMap is mounted, default: /task-files
  FILE_MAPPINGS   JSON []FileMapping
  DIR_MAPPINGS    JSON []DirMapping`,
	RunE: runContextInit,
}

func runContextInit(cmd *cobra.Command, args []string) error {
	workspaceDir := getEnvOrDefault(envWorkspaceDir, defaultWorkspaceDir)
	configMapPath := getEnvOrDefault(envConfigMapPath, defaultConfigMapPath)

	if err := os.MkdirAll(workspaceDir, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	if raw := os.Getenv(envFileMappings); raw != "" {
		var mappings []FileMapping
		if err := json.Unmarshal([]byte(raw), &mappings); err != nil {
			return fmt.Errorf("parse %s: %w", envFileMappings, err)
		}
		for _, fm := range mappings {
			if err := copyFileWithMode(filepath.Join(configMapPath, fm.Key), fm.TargetPath, fm.FileMode); err != nil {
				fmt.Printf("context-init: skipping %s: %v\n", fm.Key, err)
				continue
			}
			fmt.Printf("context-init: %s -> %s\n", fm.Key, fm.TargetPath)
		}
	}

	if raw := os.Getenv(envDirMappings); raw != "" {
		var mappings []DirMapping
		if err := json.Unmarshal([]byte(raw), &mappings); err != nil {
			return fmt.Errorf("parse %s: %w", envDirMappings, err)
		}
		for _, dm := range mappings {
			if err := copyDir(dm.SourcePath, dm.TargetPath); err != nil {
				fmt.Printf("context-init: skipping directory %s: %v\n", dm.SourcePath, err)
				continue
			}
			fmt.Printf("context-init: %s/ -> %s/\n", dm.SourcePath, dm.TargetPath)
		}
	}

	if err := makeWritable(workspaceDir); err != nil {
		fmt.Printf("context-init: could not relax workspace permissions: %v\n", err)
	}
	return nil
}

// copyFileWithMode copies src to dst, creating parent directories and
// applying mode (default 0644).
func copyFileWithMode(src, dst string, mode *int32) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", src)
	}

	if dir := filepath.Dir(dst); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create parent directory: %w", err)
		}
	}

	in, err := os.Open(src) //nolint:gosec // src is a ConfigMap mount path
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst) //nolint:gosec // dst comes from the controller-rendered mapping
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}

	perm := os.FileMode(0o644)
	if mode != nil {
		perm = os.FileMode(*mode)
	}
	return os.Chmod(dst, perm)
}

// copyDir recursively copies src into dst, skipping the "..data"/"..TS"
// symlink machinery Kubernetes uses for atomic ConfigMap updates.
func copyDir(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "..") {
			continue
		}
		srcPath := filepath.Join(src, name)
		dstPath := filepath.Join(dst, name)

		// Stat follows the symlinks ConfigMap mounts are built from.
		resolved, err := os.Stat(srcPath)
		if err != nil {
			return err
		}
		if resolved.IsDir() {
			err = copyDir(srcPath, dstPath)
		} else {
			err = copyFileWithMode(srcPath, dstPath, nil)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// makeWritable walks dir ensuring the uid-1000 agent can edit everything
// context-init dropped in place.
func makeWritable(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		want := info.Mode() | 0o644
		if info.IsDir() {
			want = info.Mode() | 0o755
		}
		if want != info.Mode() {
			if err := os.Chmod(path, want); err != nil {
				fmt.Printf("context-init: could not chmod %s: %v\n", path, err)
			}
		}
		return nil
	})
}

// getEnvOrDefault is shared by every init-container subcommand in this
// binary.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
