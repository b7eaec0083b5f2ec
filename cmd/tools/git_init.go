// Copyright Contributors to the KubeOpenCode project

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// Environment variable names for git-init. Credentials arrive as env vars
// sourced from the RunRequest's github-identity Secret.
const (
	envRepo        = "GIT_REPO"
	envRef         = "GIT_REF"
	envDepth       = "GIT_DEPTH"
	envRoot        = "GIT_ROOT"
	envLink        = "GIT_LINK"
	envUsername    = "GIT_USERNAME"
	envPassword    = "GIT_PASSWORD"
	envSSHKey      = "GIT_SSH_KEY"
	envSSHHostKeys = "GIT_SSH_KNOWN_HOSTS"
)

// GIT_ROOT/GIT_LINK default to the RunRequest Job's shared workspace
// volume, so the main container's CLI adapter finds the clone at the same
// /workspace that container.sh cds into.
const (
	defaultRef   = "HEAD"
	defaultDepth = 1
	defaultRoot  = "/workspace"
	defaultLink  = "."
)

func init() {
	rootCmd.AddCommand(gitInitCmd)
}

var gitInitCmd = &cobra.Command{
	Use:   "git-init",
	Short: "Clone the run's repository into the shared workspace",
	Long: `git-init runs as an init container of a RunRequest Job, ahead of
context-init (url-fetch, when configured, runs before it): it
shallow-clones the run's repository into the shared workspace volume and
leaves it world-writable for the uid-1000 agent container that follows.

Environment variables:
  GIT_REPO            repository URL (required; https://, http://, or git@)
  GIT_REF             branch/tag/commit, default: HEAD
  GIT_DEPTH           clone depth, default: 1
  GIT_ROOT            clone root directory, default: /workspace
  GIT_LINK            subdirectory under the root, default: .
  GIT_USERNAME        HTTPS username
  GIT_PASSWORD        HTTPS password or token
  GIT_SSH_KEY         SSH private key content or file path
  GIT_SSH_KNOWN_HOSTS known_hosts content for strict SSH verification`,
	RunE: runGitInit,
}

func runGitInit(cmd *cobra.Command, args []string) error {
	repo := os.Getenv(envRepo)
	if repo == "" {
		return fmt.Errorf("%s is required", envRepo)
	}
	if err := validateRepoURL(repo); err != nil {
		return err
	}

	ref := getEnvOrDefault(envRef, defaultRef)
	depth := getEnvIntOrDefault(envDepth, defaultDepth)
	root := getEnvOrDefault(envRoot, defaultRoot)
	targetDir := filepath.Join(root, getEnvOrDefault(envLink, defaultLink))

	fmt.Printf("git-init: cloning %s@%s (depth %d) into %s\n", repo, ref, depth, targetDir)

	if err := setupAuth(repo); err != nil {
		return fmt.Errorf("configure auth: %w", err)
	}
	defer cleanupCredentials()

	if err := os.MkdirAll(root, 0o750); err != nil {
		return fmt.Errorf("create clone root: %w", err)
	}

	cloneArgs := []string{"clone", "--depth", strconv.Itoa(depth), "--single-branch"}
	if ref != "HEAD" {
		cloneArgs = append(cloneArgs, "--branch", ref)
	}
	cloneArgs = append(cloneArgs, repo, targetDir)

	clone := exec.Command("git", cloneArgs...) //nolint:gosec // args come from controlled env vars
	clone.Stdout = os.Stdout
	clone.Stderr = os.Stderr
	if err := clone.Run(); err != nil {
		return fmt.Errorf("git clone: %w", err)
	}
	if _, err := os.Stat(filepath.Join(targetDir, ".git")); err != nil {
		return fmt.Errorf("clone verification: %w", err)
	}

	// The agent container runs as uid 1000 while the clone happened as this
	// container's uid; a shared .gitconfig with safe.directory keeps git
	// from refusing the repo, and a+w keeps the tree editable.
	gitconfig := fmt.Sprintf("[safe]\n\tdirectory = %s\n\tdirectory = *\n", targetDir)
	if err := os.WriteFile(filepath.Join(root, ".gitconfig"), []byte(gitconfig), 0o644); err != nil {
		fmt.Printf("git-init: could not write shared .gitconfig: %v\n", err)
	}
	if err := exec.Command("chmod", "-R", "a+w", targetDir).Run(); err != nil {
		fmt.Printf("git-init: could not relax permissions: %v\n", err)
	}

	if out, err := exec.Command("git", "-C", targetDir, "rev-parse", "HEAD").Output(); err == nil { //nolint:gosec // targetDir is from controlled env vars
		fmt.Printf("git-init: cloned commit %s\n", strings.TrimSpace(string(out)))
	}
	return nil
}

// setupAuth configures HTTPS credentials and/or an SSH identity from the
// environment before the clone runs.
func setupAuth(repo string) error {
	username := os.Getenv(envUsername)
	password := os.Getenv(envPassword)
	if username != "" && password != "" {
		if err := gitConfig("credential.helper", "store"); err != nil {
			return err
		}
		cred := fmt.Sprintf("https://%s:%s@%s\n", username, password, extractHost(repo))
		if err := os.WriteFile(credentialsFile(), []byte(cred), 0o600); err != nil {
			return fmt.Errorf("write credentials: %w", err)
		}
	}

	sshKey := os.Getenv(envSSHKey)
	if sshKey == "" {
		return nil
	}

	sshDir := filepath.Join(homeDir(), ".ssh")
	if err := os.MkdirAll(sshDir, 0o700); err != nil {
		return fmt.Errorf("create .ssh: %w", err)
	}

	keyContent := []byte(sshKey)
	if _, err := os.Stat(sshKey); err == nil {
		keyContent, err = os.ReadFile(sshKey) //nolint:gosec // path comes from a controlled env var
		if err != nil {
			return fmt.Errorf("read SSH key file: %w", err)
		}
	}
	keyFile := filepath.Join(sshDir, "id_rsa")
	if err := os.WriteFile(keyFile, keyContent, 0o600); err != nil {
		return fmt.Errorf("write SSH key: %w", err)
	}

	sshConfig := "Host *\n  StrictHostKeyChecking no\n  UserKnownHostsFile /dev/null\n"
	if knownHosts := os.Getenv(envSSHHostKeys); knownHosts != "" {
		knownHostsFile := filepath.Join(sshDir, "known_hosts")
		if err := os.WriteFile(knownHostsFile, []byte(knownHosts), 0o600); err != nil {
			return fmt.Errorf("write known_hosts: %w", err)
		}
		sshConfig = "Host *\n  StrictHostKeyChecking yes\n  UserKnownHostsFile " + knownHostsFile + "\n"
	} else {
		fmt.Println("git-init: WARNING: no GIT_SSH_KNOWN_HOSTS, SSH host key verification disabled")
	}
	if err := os.WriteFile(filepath.Join(sshDir, "config"), []byte(sshConfig), 0o600); err != nil {
		return fmt.Errorf("write SSH config: %w", err)
	}

	return os.Setenv("GIT_SSH_COMMAND", fmt.Sprintf("ssh -i %s -o IdentitiesOnly=yes", keyFile))
}

// cleanupCredentials removes the stored HTTPS credentials once the clone
// is done so they never outlive the init container's filesystem.
func cleanupCredentials() {
	if os.Getenv(envUsername) == "" || os.Getenv(envPassword) == "" {
		return
	}
	if err := os.Remove(credentialsFile()); err == nil {
		fmt.Println("git-init: removed stored credentials")
	}
}

func credentialsFile() string {
	return filepath.Join(homeDir(), ".git-credentials")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp"
	}
	return home
}

func gitConfig(key, value string) error {
	return exec.Command("git", "config", "--global", key, value).Run()
}

func extractHost(repoURL string) string {
	url := strings.TrimPrefix(strings.TrimPrefix(repoURL, "https://"), "http://")
	if idx := strings.Index(url, "/"); idx != -1 {
		return url[:idx]
	}
	return url
}

func validateRepoURL(repo string) error {
	switch {
	case strings.HasPrefix(repo, "https://"), strings.HasPrefix(repo, "git@"):
		return nil
	case strings.HasPrefix(repo, "http://"):
		fmt.Println("git-init: WARNING: cloning over insecure HTTP")
		return nil
	default:
		return fmt.Errorf("unsupported repository URL protocol: only https://, http://, and git@ are allowed")
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
