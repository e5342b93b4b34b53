// Package toolreg holds the compile-time table of scanner tool descriptors
// and the registry that applies include/exclude filtering, owns each
// tool's circuit breaker, and serves lookups for the engine and
// dispatcher.
package toolreg

import (
	"strings"
	"sync"

	"github.com/nextlevelbuilder/scangate/internal/breaker"
)

// Descriptor is the static, registry-owned definition of one scanner tool.
// Configuration is applied once at registry construction; afterward it is
// mutable only through a registry reload.
type Descriptor struct {
	Name              string
	Command           string
	ConcurrencyCap    int
	DefaultTimeoutSec float64
}

// catalog is the compile-time table of every tool this gateway knows how
// to run. Concurrency caps follow the spec's "default 2; 1 for heavy
// scanners" guidance.
var catalog = []Descriptor{
	{Name: "nmap", Command: "nmap", ConcurrencyCap: 2, DefaultTimeoutSec: 300},
	{Name: "masscan", Command: "masscan", ConcurrencyCap: 1, DefaultTimeoutSec: 180},
	{Name: "gobuster", Command: "gobuster", ConcurrencyCap: 2, DefaultTimeoutSec: 600},
	{Name: "hydra", Command: "hydra", ConcurrencyCap: 1, DefaultTimeoutSec: 900},
	{Name: "sqlmap", Command: "sqlmap", ConcurrencyCap: 1, DefaultTimeoutSec: 900},
}

// entry bundles a Descriptor with the breaker it exclusively owns and
// whether it is currently enabled.
type entry struct {
	descriptor Descriptor
	breaker    *breaker.Breaker
	enabled    bool
}

// Registry owns the tool descriptor table, each tool's enabled flag, and
// each tool's circuit breaker.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// Filter narrows the compile-time catalog to the configured include/exclude
// lists. An empty Include means "all names"; Exclude always wins.
type Filter struct {
	Include []string
	Exclude []string
}

// New builds a Registry from the compile-time catalog, applying include and
// exclude name filters and constructing one breaker per surviving tool.
func New(filter Filter, breakerCfg breaker.Config) *Registry {
	include := toSet(filter.Include)
	exclude := toSet(filter.Exclude)

	reg := &Registry{entries: make(map[string]*entry)}
	for _, d := range catalog {
		if len(include) > 0 && !include[d.Name] {
			continue
		}
		if exclude[d.Name] {
			continue
		}
		reg.entries[d.Name] = &entry{
			descriptor: d,
			breaker:    breaker.New(breakerCfg),
			enabled:    true,
		}
	}
	return reg
}

func toSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.TrimSpace(n)] = true
	}
	return set
}

// Descriptor returns a tool's descriptor, and whether it is known at all
// (regardless of enabled state).
func (r *Registry) Descriptor(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Descriptor{}, false
	}
	return e.descriptor, true
}

// Breaker returns a tool's circuit breaker.
func (r *Registry) Breaker(name string) (*breaker.Breaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.breaker, true
}

// Enabled reports whether a known tool is currently enabled.
func (r *Registry) Enabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return ok && e.enabled
}

// SetEnabled toggles a tool's enabled state; returns false if the tool is
// unknown.
func (r *Registry) SetEnabled(name string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return false
	}
	e.enabled = enabled
	return true
}

// List returns every known tool descriptor in the registry, regardless of
// enabled state, sorted by name for a stable /tools response.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.descriptor)
	}
	sortDescriptors(out)
	return out
}

// EnabledCommands returns the command each enabled tool resolves to, for
// the ToolAvailability health check.
func (r *Registry) EnabledCommands() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string)
	for name, e := range r.entries {
		if e.enabled {
			out[name] = e.descriptor.Command
		}
	}
	return out
}

func sortDescriptors(ds []Descriptor) {
	for i := 1; i < len(ds); i++ {
		for j := i; j > 0 && ds[j].Name < ds[j-1].Name; j-- {
			ds[j], ds[j-1] = ds[j-1], ds[j]
		}
	}
}
