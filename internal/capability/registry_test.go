// Copyright Contributors to the KubeOpenCode project

package capability

import (
	"errors"
	"testing"

	"github.com/Masterminds/semver/v3"
)

func TestRegister_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		adapter Adapter
	}{
		{
			name:    "zero max context tokens",
			adapter: Adapter{Kind: "x", Executable: "x", MemoryFilename: "X.md", Capabilities: Capabilities{MaxContextTokens: 0}},
		},
		{
			name:    "empty executable",
			adapter: Adapter{Kind: "x", Executable: "", MemoryFilename: "X.md", Capabilities: Capabilities{MaxContextTokens: 10}},
		},
		{
			name:    "empty memory filename",
			adapter: Adapter{Kind: "x", Executable: "x", MemoryFilename: "", Capabilities: Capabilities{MaxContextTokens: 10}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			err := r.Register(tt.adapter)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Register() error = %v, want *ValidationError", err)
			}
			if _, ok := r.Get(tt.adapter.Kind); ok {
				t.Fatalf("Register() inserted an adapter that failed validation")
			}
		})
	}
}

func TestRegister_SessionBasedSkipsMemoryFilename(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Adapter{
		Kind:       "sess",
		Executable: "sess-cli",
		Capabilities: Capabilities{
			MemoryStrategy:   MemoryStrategySessionBased,
			MaxContextTokens: 10,
		},
	})
	if err != nil {
		t.Fatalf("Register() error = %v, want nil", err)
	}
}

func TestRegisterDefaults(t *testing.T) {
	r := NewRegistry()
	if err := RegisterDefaults(r); err != nil {
		t.Fatalf("RegisterDefaults() error = %v", err)
	}
	for _, kind := range []string{KindClaude, KindCodex, KindOpenCode, KindCursor, KindFactory, KindGemini} {
		if _, ok := r.Get(kind); !ok {
			t.Fatalf("RegisterDefaults() did not register kind %q", kind)
		}
	}
	if got := r.Kinds(); len(got) != 6 {
		t.Fatalf("Kinds() = %v, want 6 entries", got)
	}
}

func TestAllowedInNamespace(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Adapter{Kind: "scoped", Executable: "x", MemoryFilename: "X.md", Capabilities: Capabilities{MaxContextTokens: 1}}, "team-*", "prod"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	tests := []struct {
		namespace string
		want      bool
	}{
		{"team-alpha", true},
		{"prod", true},
		{"staging", false},
	}
	for _, tt := range tests {
		if got := r.AllowedInNamespace("scoped", tt.namespace); got != tt.want {
			t.Fatalf("AllowedInNamespace(%q) = %v, want %v", tt.namespace, got, tt.want)
		}
	}
	if r.AllowedInNamespace("unscoped", "anything") {
		t.Fatalf("AllowedInNamespace() allowed an unregistered kind")
	}
}

func TestCheckMinVersionHint(t *testing.T) {
	r := NewRegistry()
	v := semver.MustParse("1.2.0")
	if err := r.Register(Adapter{Kind: "v", Executable: "x", MemoryFilename: "X.md", Capabilities: Capabilities{MaxContextTokens: 1}, Version: v}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tests := []struct {
		name   string
		hint   string
		wantOK bool
	}{
		{"no hint", "", true},
		{"satisfied", "1.0.0", true},
		{"exact", "1.2.0", true},
		{"unmet", "2.0.0", false},
		{"unparsable", "not-a-version", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warning, ok := r.CheckMinVersionHint("v", tt.hint)
			if ok != tt.wantOK {
				t.Fatalf("CheckMinVersionHint(%q) ok = %v, want %v (warning=%q)", tt.hint, ok, tt.wantOK, warning)
			}
			if ok && warning != "" {
				t.Fatalf("CheckMinVersionHint(%q) warning = %q, want empty", tt.hint, warning)
			}
			if !ok && warning == "" {
				t.Fatalf("CheckMinVersionHint(%q) expected a non-empty warning", tt.hint)
			}
		})
	}

	// Registering never rejects on a hint mismatch; dispensation must still
	// succeed regardless of CheckMinVersionHint's result.
	if _, ok := r.Get("v"); !ok {
		t.Fatalf("Get() adapter missing after hint checks")
	}
}
