package detect

import (
	"fmt"
	"sort"
	"strings"
)

// Registry holds detectors by name.
type Registry struct {
	detectors map[string]Detector
}

// NewRegistry returns a registry holding ds. Duplicate names panic, since
// they can only come from a programming error.
func NewRegistry(ds ...Detector) *Registry {
	r := &Registry{detectors: make(map[string]Detector, len(ds))}
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}

// Default returns a registry with every built-in detector.
func Default() *Registry {
	return NewRegistry(Builtin()...)
}

// Register adds d.
func (r *Registry) Register(d Detector) error {
	name := d.Name()
	if name == "" {
		return fmt.Errorf("detector has no name")
	}
	if _, ok := r.detectors[name]; ok {
		return fmt.Errorf("detector %q registered twice", name)
	}
	r.detectors[name] = d
	return nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.detectors))
	for n := range r.detectors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns the detector named name.
func (r *Registry) Get(name string) (Detector, bool) {
	d, ok := r.detectors[name]
	return d, ok
}

// Select returns the detectors to run, sorted by name. An empty include
// list means every detector. Exclusions win over inclusions. Naming an
// unregistered detector in either list is a ConfigError.
func (r *Registry) Select(include, exclude []string) ([]Detector, error) {
	for _, list := range []struct {
		field string
		names []string
	}{{"include", include}, {"exclude", exclude}} {
		for _, n := range list.names {
			if _, ok := r.detectors[strings.TrimSpace(n)]; !ok {
				return nil, &ConfigError{Field: list.field, Value: n, Reason: "unknown detector"}
			}
		}
	}

	skip := make(map[string]bool, len(exclude))
	for _, n := range exclude {
		skip[strings.TrimSpace(n)] = true
	}
	want := r.Names()
	if len(include) > 0 {
		want = want[:0]
		seen := map[string]bool{}
		for _, n := range include {
			n = strings.TrimSpace(n)
			if !seen[n] {
				seen[n] = true
				want = append(want, n)
			}
		}
		sort.Strings(want)
	}

	var out []Detector
	for _, n := range want {
		if !skip[n] {
			out = append(out, r.detectors[n])
		}
	}
	return out, nil
}
