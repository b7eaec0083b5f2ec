// Copyright Contributors to the KubeOpenCode project

// Package capability is the per-CLI static fact registry: for each
// CLI kind it holds the executable name, default memory filename,
// supported-model list (advisory only), config format, authentication
// methods, and capability flags. The resource manager and config bridge
// both consult it; the adapter factory enforces its registration contract.
package capability

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
)

// ConfigFormat identifies the file format a CLI's configuration is written
// in.
type ConfigFormat string

const (
	ConfigFormatJSON     ConfigFormat = "JSON"
	ConfigFormatTOML     ConfigFormat = "TOML"
	ConfigFormatYAML     ConfigFormat = "YAML"
	ConfigFormatMarkdown ConfigFormat = "Markdown"
	ConfigFormatCustom   ConfigFormat = "custom"
)

// MemoryStrategy identifies how a CLI persists agent memory/context across
// invocations.
type MemoryStrategy string

const (
	MemoryStrategyMarkdownFile      MemoryStrategy = "markdown-file"
	MemoryStrategySubdirectory      MemoryStrategy = "subdirectory"
	MemoryStrategySessionBased      MemoryStrategy = "session-based"
	MemoryStrategyConfigurationBase MemoryStrategy = "configuration-based"
)

// Capabilities is the per-CLI capability sheet: the flags the
// adapter factory and remediation coordinator use when picking between
// CLIs, and the config bridge uses when deciding what a translation must
// contain.
type Capabilities struct {
	SupportsStreaming       bool
	SupportsMultimodal      bool
	SupportsFunctionCalling bool
	SupportsSystemPrompts   bool
	MaxContextTokens        int
	MemoryStrategy          MemoryStrategy
	ConfigFormat            ConfigFormat
	AuthenticationMethods   []string
}

// Adapter is the static, build-time fact sheet for one CLI kind.
type Adapter struct {
	// Kind is the registry key: "claude", "codex", "opencode", "cursor",
	// "factory", "gemini", or a future addition.
	Kind string

	// Executable is the CLI's binary name, e.g. "claude-code".
	Executable string

	// MemoryFilename is the default memory/context file name, e.g.
	// "CLAUDE.md". Empty when MemoryStrategy is session-based.
	MemoryFilename string

	// SupportedModels is advisory only; the bridge never rejects a model
	// string that isn't in this list.
	SupportedModels []string

	// Capabilities is the CLI's capability struct.
	Capabilities Capabilities

	// Version is the adapter implementation's known-compatible CLI
	// version, compared against an optional cli_config["minVersion"] hint.
	// Nil means the adapter does not publish a version to compare against.
	Version *semver.Version
}

// namespaceScope restricts which namespaces may dispense this adapter, mirroring
// Agent.AllowedNamespaces. Supplied separately from Adapter so registration
// stays focused on CLI facts; see Registry.AllowedInNamespace.
type namespaceScope struct {
	patterns []string
}

func (s namespaceScope) allows(namespace string) bool {
	if len(s.patterns) == 0 {
		return true
	}
	for _, p := range s.patterns {
		if ok, _ := path.Match(p, namespace); ok {
			return true
		}
	}
	return false
}

// ValidationError reports a capability registration that failed the
// contract: every adapter must declare a non-empty executable
// name, non-empty memory filename (unless session-based), and
// max_context_tokens > 0.
type ValidationError struct {
	Kind    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("capability registry: adapter %q: %s", e.Kind, e.Message)
}

// Registry is the concurrent map from CLI kind to Adapter (the adapter
// factory backs its dispense path with this data). Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	scopes   map[string]namespaceScope
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		scopes:   make(map[string]namespaceScope),
	}
}

// Register validates and inserts an adapter under a write lock. Registering
// an adapter whose MaxContextTokens is 0, or whose Executable or
// MemoryFilename is empty (when required by its MemoryStrategy), fails
// with a *ValidationError and leaves the registry unchanged.
//
// allowedNamespaces optionally restricts which namespaces may later
// receive this adapter via AllowedInNamespace; glob patterns, empty means
// open to all.
func (r *Registry) Register(a Adapter, allowedNamespaces ...string) error {
	if strings.TrimSpace(a.Kind) == "" {
		return &ValidationError{Kind: a.Kind, Message: "kind must not be empty"}
	}
	if strings.TrimSpace(a.Executable) == "" {
		return &ValidationError{Kind: a.Kind, Message: "executable must not be empty"}
	}
	if a.Capabilities.MemoryStrategy != MemoryStrategySessionBased && strings.TrimSpace(a.MemoryFilename) == "" {
		return &ValidationError{Kind: a.Kind, Message: "memory filename must not be empty"}
	}
	if a.Capabilities.MaxContextTokens <= 0 {
		return &ValidationError{Kind: a.Kind, Message: "max_context_tokens must be > 0"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Kind] = a
	r.scopes[a.Kind] = namespaceScope{patterns: append([]string(nil), allowedNamespaces...)}
	return nil
}

// Get returns the registered adapter for kind, and whether it was found.
func (r *Registry) Get(kind string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[kind]
	return a, ok
}

// Kinds returns every registered CLI kind, sorted for deterministic
// iteration (e.g. in a "validate-config" CLI report).
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.adapters))
	for k := range r.adapters {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// AllowedInNamespace reports whether kind may be dispensed into namespace,
// per the supplemented cross-namespace isolation feature. Unknown kinds
// are allowed nowhere.
func (r *Registry) AllowedInNamespace(kind, namespace string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	scope, ok := r.scopes[kind]
	if !ok {
		return false
	}
	return scope.allows(namespace)
}

// CheckMinVersionHint compares a declared adapter's Version against an
// optional cli_config["minVersion"] hint. It never causes registration or
// dispensation to fail (the registry never rejects a model or version
// hint): an unmet hint or an
// unparsable hint/version simply yields a non-fatal warning string and
// false. A satisfied or absent hint returns ("", true).
func (r *Registry) CheckMinVersionHint(kind, hint string) (warning string, ok bool) {
	if strings.TrimSpace(hint) == "" {
		return "", true
	}
	a, found := r.Get(kind)
	if !found || a.Version == nil {
		return "", true
	}
	wanted, err := semver.NewVersion(hint)
	if err != nil {
		return fmt.Sprintf("adapter %q: minVersion hint %q is not a valid semver version", kind, hint), false
	}
	if a.Version.LessThan(wanted) {
		return fmt.Sprintf("adapter %q version %s is older than the requested minVersion %s", kind, a.Version, wanted), false
	}
	return "", true
}
