// Copyright Contributors to the KubeOpenCode project

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/5dlabs/agentctl/internal/bridge"
	"github.com/5dlabs/agentctl/internal/capability"
	"github.com/5dlabs/agentctl/internal/remediation"
)

func init() {
	rootCmd.AddCommand(validateConfigCmd)
}

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Validate the capability registry and remediation roster without touching the cluster",
	Long: `validate-config performs the same startup checks the manager does
before it ever opens a Kubernetes connection: it registers the six default
CLI adapters against a fresh capability.Registry and confirms the
fixed specialist roster has a GitHub App and prompt template for
every entry.

It exits non-zero on the first failure, so it is meant for CI and
container-build smoke tests rather than cluster diagnostics.`,
	RunE: runValidateConfig,
}

func runValidateConfig(cmd *cobra.Command, args []string) error {
	registry := capability.NewRegistry()
	if err := capability.RegisterDefaults(registry); err != nil {
		return fmt.Errorf("register default capabilities: %w", err)
	}

	kinds := registry.Kinds()
	if len(kinds) == 0 {
		return fmt.Errorf("capability registry is empty after registering defaults")
	}
	for _, kind := range kinds {
		adapter, ok := registry.Get(kind)
		if !ok {
			return fmt.Errorf("registry reported kind %q in Kinds() but Get() could not find it", kind)
		}
		if adapter.Executable == "" {
			return fmt.Errorf("adapter %q has no executable configured", kind)
		}
		if adapter.MemoryFilename == "" {
			return fmt.Errorf("adapter %q has no memory filename configured", kind)
		}
	}
	fmt.Printf("capability registry: %d adapters registered (%v)\n", len(kinds), kinds)

	b := bridge.NewBridge()
	for _, kind := range kinds {
		if _, err := b.Translate(kind, bridge.UniversalConfig{
			Settings: bridge.Settings{Model: "validate", SandboxMode: bridge.SandboxReadOnly},
			Agent:    bridge.Agent{Instructions: "validate"},
		}); err != nil {
			return fmt.Errorf("config bridge cannot translate for adapter %q: %w", kind, err)
		}
	}
	identity := b.Identity()
	fmt.Printf("config bridge: %d adapters, MCP identity %s %s\n", len(b.Kinds()), identity.Name, identity.Version)

	if len(remediation.Specialists) == 0 {
		return fmt.Errorf("remediation specialist roster is empty")
	}
	for _, s := range remediation.Specialists {
		if s.GithubApp == "" {
			return fmt.Errorf("specialist %q has no GitHub App configured", s.Name)
		}
		if s.DefaultModel == "" {
			return fmt.Errorf("specialist %q has no default model configured", s.Name)
		}
		if s.PromptTemplate == "" {
			return fmt.Errorf("specialist %q has no prompt template configured", s.Name)
		}
	}
	fmt.Printf("remediation roster: %d specialists configured\n", len(remediation.Specialists))

	fmt.Println("validate-config: OK")
	return nil
}
