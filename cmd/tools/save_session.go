// Copyright Contributors to the KubeOpenCode project

package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

// Environment variable names for save-session.
const (
	envGithubIdentity = "SESSION_GITHUB_IDENTITY"
	envRunNamespace   = "RUN_NAMESPACE"
	envWorkspaceDir   = "WORKSPACE_DIR"
	envPVCMountPath   = "PVC_MOUNT_PATH"
	envSignalFile     = "SIGNAL_FILE"
)

const (
	defaultPVCMountPath = "/pvc"
	defaultSignalFile   = "/signal/.agent-done"
	defaultWorkspace    = "/workspace"

	signalPollInterval = 2 * time.Second
	signalMaxWait      = 24 * time.Hour
)

func init() {
	rootCmd.AddCommand(saveSessionCmd)
}

var saveSessionCmd = &cobra.Command{
	Use:   "save-session",
	Short: "Persist the workspace to a PVC for ContinueSession resume",
	Long: `save-session runs as a sidecar in a ContinueSession RunRequest Job: it
blocks until the entrypoint touches the signal file on its way out, then
copies the workspace onto the session PVC under a directory keyed by
namespace and github identity, so every later run from that identity
finds the same session state.

Environment variables:
  SESSION_GITHUB_IDENTITY  GithubApp/GithubUser identity owning the session (required)
  RUN_NAMESPACE            namespace of the RunRequest (required)
  WORKSPACE_DIR            workspace directory to save, default: /workspace
  PVC_MOUNT_PATH           session PVC mount path, default: /pvc
  SIGNAL_FILE              file the entrypoint touches on exit, default: /signal/.agent-done`,
	RunE: runSaveSession,
}

func runSaveSession(cmd *cobra.Command, args []string) error {
	identity := os.Getenv(envGithubIdentity)
	if identity == "" {
		return fmt.Errorf("%s is required", envGithubIdentity)
	}
	namespace := os.Getenv(envRunNamespace)
	if namespace == "" {
		return fmt.Errorf("%s is required", envRunNamespace)
	}

	workspaceDir := getEnvOrDefault(envWorkspaceDir, defaultWorkspace)
	signalFile := getEnvOrDefault(envSignalFile, defaultSignalFile)
	destDir := filepath.Join(getEnvOrDefault(envPVCMountPath, defaultPVCMountPath), namespace, identity)

	fmt.Printf("save-session: session %s/%s, awaiting agent exit signal at %s\n", namespace, identity, signalFile)
	if err := waitForFile(signalFile, signalPollInterval, signalMaxWait); err != nil {
		return err
	}

	fmt.Printf("save-session: copying %s -> %s\n", workspaceDir, destDir)
	if err := copyTree(workspaceDir, destDir); err != nil {
		return fmt.Errorf("save workspace: %w", err)
	}
	fmt.Println("save-session: session saved")
	return nil
}

// waitForFile polls until path exists or maxWait elapses.
func waitForFile(path string, interval, maxWait time.Duration) error {
	deadline := time.Now().Add(maxWait)
	for {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("signal file %s did not appear within %v", path, maxWait)
		}
		time.Sleep(interval)
	}
}

// copyTree mirrors src into dst, replacing files that already exist from a
// previous run of the same session. Symlinks are skipped: nothing an agent
// leaves behind should need one to survive across runs, and following them
// out of the workspace would be worse than dropping them.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			return nil
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		default:
			return copyOne(path, target)
		}
	})
}

func copyOne(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src) //nolint:gosec // paths stay inside the workspace walk
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm()) //nolint:gosec // dst derives from the session key
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	_, err = io.Copy(out, in)
	return err
}
