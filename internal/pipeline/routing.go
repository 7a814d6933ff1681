//file: internal/pipeline/routing.go

package pipeline

import (
	"errors"
	"sync"
)

// ErrRulesetNotFound is returned by Resolve for an unknown ruleset name.
var ErrRulesetNotFound = errors.New("pipeline: ruleset not found")

// Ruleset is an opaque routing-target handle. Its downstream semantics
// (filtering, queue binding) are outside this component; here it is only a
// resolved name messages are tagged with.
type Ruleset struct {
	Name string
}

// Table is the routing-target registry consulted at config-check time.
// Registration happens during single-threaded setup; Resolve and Default
// are safe for concurrent readers afterwards.
type Table struct {
	mu       sync.RWMutex
	rulesets map[string]*Ruleset
	def      *Ruleset
}

// NewTable builds a table with the given default target and known names.
func NewTable(defaultName string, names []string) *Table {
	t := &Table{rulesets: make(map[string]*Ruleset)}
	t.def = t.Register(defaultName)
	for _, name := range names {
		t.Register(name)
	}
	return t
}

// Register adds a ruleset by name, returning the existing handle if the
// name is already known.
func (t *Table) Register(name string) *Ruleset {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rs, ok := t.rulesets[name]; ok {
		return rs
	}
	rs := &Ruleset{Name: name}
	t.rulesets[name] = rs
	return rs
}

// Resolve looks a ruleset up by name. Consulted once per config check.
func (t *Table) Resolve(name string) (*Ruleset, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rs, ok := t.rulesets[name]
	if !ok {
		return nil, ErrRulesetNotFound
	}
	return rs, nil
}

// Default returns the fallback target used when resolution fails.
func (t *Table) Default() *Ruleset {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.def
}
