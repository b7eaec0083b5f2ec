// Copyright Contributors to the KubeOpenCode project

package bridge

import (
	"sort"
	"sync"

	"github.com/5dlabs/agentctl/internal/capability"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Bridge dispatches Translate/Command calls to the Adapter registered for a
// CLI kind. The zero value is not usable; construct with NewBridge.
type Bridge struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewBridge returns a Bridge with the six built-in CLI adapters already
// registered, keyed by the same kind constants as internal/capability.
func NewBridge() *Bridge {
	b := &Bridge{adapters: make(map[string]Adapter)}
	for _, a := range []Adapter{
		newMarkdownAdapter(),
		newTOMLAdapter(),
		newJSONAdapter(),
		newCursorAdapter(),
		newFactoryAdapter(),
		newGeminiAdapter(),
	} {
		b.adapters[a.Kind()] = a
	}
	return b
}

// Register installs or replaces the adapter for a.Kind(). Callers outside
// this package use it to add a CLI kind beyond the six built-in adapters.
func (b *Bridge) Register(a Adapter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.adapters[a.Kind()] = a
}

// Translate looks up kind's adapter and runs Translate on it. It returns
// *UnsupportedCLIError if kind has no registered adapter.
func (b *Bridge) Translate(kind string, cfg UniversalConfig) (TranslationResult, error) {
	a, ok := b.get(kind)
	if !ok {
		return TranslationResult{}, &UnsupportedCLIError{Kind: kind}
	}
	return a.Translate(cfg)
}

// Command looks up kind's adapter and returns its resolved Command(cfg).
// It returns *UnsupportedCLIError if kind has no registered adapter.
func (b *Bridge) Command(kind string, cfg UniversalConfig) ([]string, error) {
	a, ok := b.get(kind)
	if !ok {
		return nil, &UnsupportedCLIError{Kind: kind}
	}
	return a.Command(cfg), nil
}

// Identity returns the Implementation this bridge advertises when it
// reasons about an MCP server's transport on a CLI's behalf (see
// identity.go). Exposed so callers assembling their own MCP-aware tooling
// (e.g. a validate-config CLI) can reuse the same identity rather than
// inventing a second one.
func (b *Bridge) Identity() *mcp.Implementation {
	return selfIdentity
}

// Kinds returns every registered CLI kind, sorted.
func (b *Bridge) Kinds() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	kinds := make([]string, 0, len(b.adapters))
	for k := range b.adapters {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func (b *Bridge) get(kind string) (Adapter, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.adapters[kind]
	return a, ok
}

// Kind constants re-exported for callers that only need the bridge and
// shouldn't have to import internal/capability just to spell "claude".
const (
	KindClaude   = capability.KindClaude
	KindCodex    = capability.KindCodex
	KindOpenCode = capability.KindOpenCode
	KindCursor   = capability.KindCursor
	KindFactory  = capability.KindFactory
	KindGemini   = capability.KindGemini
)
