// Copyright Contributors to the KubeOpenCode project

package bridge

import (
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// selfIdentity is the Implementation this bridge advertises when it needs
// to identify itself to an MCP transport it describes on a CLI's behalf
// (e.g. when probing a declared MCP server's capabilities before emitting
// its command/args/env into a generated config). It is never sent over the
// wire by this package directly; the generated CLI process owns the actual
// handshake.
var selfIdentity = &mcp.Implementation{
	Name:    "agentctl-config-bridge",
	Title:   "agentctl Config Bridge",
	Version: "v1alpha1",
}

// mcpServerEnvKeys returns the keys of an MCPServer's Env map in sorted
// order, so an adapter can emit the env entries deterministically (e.g. as
// TOML inline tables).
func mcpServerEnvKeys(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
