// Copyright Contributors to the KubeOpenCode project

// agentctl-tools is the small init-container binary RunRequest Jobs run
// before and after the main CLI container: it combines the repository
// clone step and the session-persistence step into one binary so both
// ship in a single lightweight image distinct from the agent image itself.
//   - git-init: Clone the RunRequest's repository into the shared workspace
//   - save-session: Persist the workspace to a PVC for ContinueSession resume
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agentctl-tools",
	Short: "agentctl init-container tools",
	Long: `agentctl-tools provides the init-container utilities RunRequest Jobs
run around the main CLI container.

Available commands:
  git-init      Clone the run's repository into the shared workspace
  save-session  Persist the workspace to a PVC for ContinueSession resume`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
