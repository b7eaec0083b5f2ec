// Copyright Contributors to the KubeOpenCode project

// agentctl is the unified binary for the agentctl control plane: the
// controller manager, the standalone remediation healer, a config
// self-check, and the init/sidecar-container subcommands RunRequest Jobs run
// alongside the main CLI container (context-init, collect-outputs,
// url-fetch). The resource manager's --tools-image ships this binary
// together with the separate agentctl-tools binary (cmd/tools, git-init and
// save-session) in one init-container image.
//
// Available commands:
//   - controller:       Start the RunRequest controller manager
//   - healer:           Run the remediation coordinator standalone, outside the manager
//   - validate-config:  Validate the capability registry and remediation roster
//   - context-init:     Materialize the config bridge's translated files at their real paths
//   - collect-outputs:  Sidecar that waits for the agent to exit and writes output parameters to the termination log
//   - url-fetch:        Fetch a remote resource into the workspace (docs-style runs)
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agentctl",
	Short: "agentctl - Kubernetes-native AI task execution and remediation",
	Long: `agentctl is a Kubernetes-native control plane for executing AI-powered
tasks and self-healing CI failures.

This unified binary provides:
  controller       Start the RunRequest controller manager
  healer           Run the remediation coordinator standalone, outside the manager
  validate-config  Validate the capability registry and remediation roster
  context-init     Materialize the config bridge's translated files at their real paths
  collect-outputs  Sidecar that collects output parameters once the agent exits
  url-fetch        Fetch a remote resource into the workspace

Examples:
  # Start the controller
  agentctl controller --metrics-bind-address=:8080

  # Run the remediation coordinator against a stream of classified failures
  agentctl healer --namespace agentctl --issue-repository acme/checkout

  # Validate configuration before building a container image
  agentctl validate-config

  # Materialize config bridge output (used in init containers)
  agentctl context-init`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
