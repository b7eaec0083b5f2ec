// Copyright Contributors to the KubeOpenCode project

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const envOutputSpec = "OUTPUT_SPEC"

// terminationLogPath is where Kubernetes reads a container's termination
// message from; it caps the message at 4 KiB.
const (
	terminationLogPath  = "/dev/termination-log"
	terminationLogLimit = 4096
)

// OutputParameter names one value to harvest from the workspace after the
// agent exits. Relative paths resolve under WORKSPACE_DIR.
type OutputParameter struct {
	Name    string  `json:"name"`
	Path    string  `json:"path"`
	Default *string `json:"default,omitempty"`
}

// OutputSpec is the JSON document the resource manager passes through
// OUTPUT_SPEC when a RunRequest's cli_config declares outputs.
type OutputSpec struct {
	Parameters []OutputParameter `json:"parameters,omitempty"`
}

func init() {
	rootCmd.AddCommand(collectOutputsCmd)
}

var collectOutputsCmd = &cobra.Command{
	Use:   "collect-outputs",
	Short: "Harvest run outputs into the termination log once the agent exits",
	Long: `collect-outputs runs as a sidecar in a RunRequest Job's pod. The pod
shares its PID namespace, so the sidecar can watch for the agent
container's process to disappear; it then reads each declared output
parameter (a PR URL, a summary file) from the workspace and writes the
collected set to ` + terminationLogPath + ` as JSON, where anything
inspecting the pod afterwards can read it without exec'ing in.

Environment variables:
  WORKSPACE_DIR   Base directory for relative parameter paths, default: /workspace
  OUTPUT_SPEC     JSON OutputSpec naming the parameters to collect`,
	RunE: runCollectOutputs,
}

func runCollectOutputs(cmd *cobra.Command, args []string) error {
	workspaceDir := getEnvOrDefault(envWorkspaceDir, defaultWorkspaceDir)

	specJSON := os.Getenv(envOutputSpec)
	if specJSON == "" {
		fmt.Println("collect-outputs: no OUTPUT_SPEC, nothing to collect")
		return nil
	}
	var spec OutputSpec
	if err := json.Unmarshal([]byte(specJSON), &spec); err != nil {
		return fmt.Errorf("parse %s: %w", envOutputSpec, err)
	}
	if len(spec.Parameters) == 0 {
		fmt.Println("collect-outputs: empty output spec, nothing to collect")
		return nil
	}

	fmt.Printf("collect-outputs: waiting for agent exit (%d parameters)\n", len(spec.Parameters))
	if err := waitForAgentExit(24*time.Hour, time.Second); err != nil {
		return err
	}

	params := make(map[string]string)
	for _, p := range spec.Parameters {
		path := p.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(workspaceDir, path)
		}
		content, err := os.ReadFile(path)
		switch {
		case err == nil:
			params[p.Name] = strings.TrimSpace(string(content))
		case p.Default != nil:
			params[p.Name] = *p.Default
		default:
			fmt.Printf("collect-outputs: skipping %s: %v\n", p.Name, err)
		}
	}
	if len(params) == 0 {
		fmt.Println("collect-outputs: nothing collected")
		return nil
	}

	data, err := json.Marshal(struct {
		Parameters map[string]string `json:"parameters"`
	}{params})
	if err != nil {
		return fmt.Errorf("marshal outputs: %w", err)
	}
	if len(data) > terminationLogLimit {
		return fmt.Errorf("collected outputs exceed the %d-byte termination log limit (%d bytes)", terminationLogLimit, len(data))
	}
	if err := os.WriteFile(terminationLogPath, data, 0o644); err != nil {
		return fmt.Errorf("write termination log: %w", err)
	}
	fmt.Printf("collect-outputs: wrote %d parameters\n", len(params))
	return nil
}

// waitForAgentExit polls the shared PID namespace until no user process
// other than this sidecar remains, i.e. the agent container's entrypoint
// has exited.
func waitForAgentExit(maxWait, interval time.Duration) error {
	deadline := time.Now().Add(maxWait)
	for {
		running, err := agentProcessRunning()
		if err != nil {
			fmt.Printf("collect-outputs: process scan: %v\n", err)
		} else if !running {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("agent did not exit within %v", maxWait)
		}
		time.Sleep(interval)
	}
}

// agentProcessRunning scans /proc for any live process that is neither
// PID 1 (the pause/init process), this sidecar, nor a kernel thread.
func agentProcessRunning() (bool, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return false, err
	}
	self := os.Getpid()
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid == 1 || pid == self {
			continue
		}
		cmdline, err := os.ReadFile(filepath.Join("/proc", entry.Name(), "cmdline"))
		if err != nil || len(cmdline) == 0 {
			continue
		}
		if !strings.Contains(string(cmdline), "collect-outputs") {
			return true, nil
		}
	}
	return false, nil
}
