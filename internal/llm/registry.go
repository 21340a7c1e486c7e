package llm

import "strings"

// Registry holds the backends configured at startup. It is read-only after
// construction and safe for concurrent use.
type Registry struct {
	ordered []*Backend
}

// NewRegistry orders backends by preference. Backends missing from
// preference follow in the order given; nil backends and duplicates by name
// are dropped.
func NewRegistry(preference []string, backends ...*Backend) *Registry {
	byName := make(map[string]*Backend, len(backends))
	var names []string
	for _, b := range backends {
		if b == nil || b.Client == nil {
			continue
		}
		name := strings.ToLower(b.Name)
		if _, dup := byName[name]; dup {
			continue
		}
		byName[name] = b
		names = append(names, name)
	}

	r := &Registry{}
	used := make(map[string]bool, len(byName))
	for _, name := range preference {
		name = strings.ToLower(strings.TrimSpace(name))
		if b, ok := byName[name]; ok && !used[name] {
			r.ordered = append(r.ordered, b)
			used[name] = true
		}
	}
	for _, name := range names {
		if !used[name] {
			r.ordered = append(r.ordered, byName[name])
		}
	}
	return r
}

// AvailableInOrder returns the configured backends in preference order.
func (r *Registry) AvailableInOrder() []*Backend {
	if r == nil {
		return nil
	}
	out := make([]*Backend, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len reports how many backends are configured.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.ordered)
}

// Names lists backend tags in preference order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.ordered))
	for _, b := range r.ordered {
		out = append(out, b.Tag())
	}
	return out
}
