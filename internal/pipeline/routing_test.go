//file: internal/pipeline/routing_test.go

package pipeline

import (
	"errors"
	"testing"
)

func TestTableResolve(t *testing.T) {
	table := NewTable("default", []string{"security", "audit"})

	tests := []struct {
		name      string
		lookup    string
		wantErr   bool
		wantValue string
	}{
		{"known ruleset", "security", false, "security"},
		{"another known ruleset", "audit", false, "audit"},
		{"default is registered too", "default", false, "default"},
		{"unknown ruleset", "does-not-exist", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := table.Resolve(tt.lookup)
			if tt.wantErr {
				if !errors.Is(err, ErrRulesetNotFound) {
					t.Errorf("Resolve(%q) error = %v, want ErrRulesetNotFound", tt.lookup, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.lookup, err)
			}
			if rs.Name != tt.wantValue {
				t.Errorf("Resolve(%q).Name = %q, want %q", tt.lookup, rs.Name, tt.wantValue)
			}
		})
	}
}

func TestTableDefault(t *testing.T) {
	table := NewTable("default", nil)
	def := table.Default()
	if def == nil || def.Name != "default" {
		t.Fatalf("Default() = %v, want ruleset named default", def)
	}

	// The default resolves to the identical handle.
	rs, err := table.Resolve("default")
	if err != nil {
		t.Fatalf("Resolve(default) error = %v", err)
	}
	if rs != def {
		t.Error("Resolve(default) returned a different handle than Default()")
	}
}

func TestTableRegisterIsIdempotent(t *testing.T) {
	table := NewTable("default", nil)
	first := table.Register("security")
	second := table.Register("security")
	if first != second {
		t.Error("Register returned distinct handles for the same name")
	}
}
