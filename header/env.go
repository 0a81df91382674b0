package header

import (
	"fmt"
	"iter"
	"strconv"
)

// Binding describes a name bound in an environment. Two bindings are
// the same binding iff they compare equal.
type Binding struct {
	Name       string
	Qualified  string
	Export     string
	Kind       EntityKind
	Header     ID
	HeaderPath string
}

// Source is an environment offered to [Env.Merge] by a dependency.
type Source struct {
	Path string
	Env  *Env
}

type envEntry struct {
	b     Binding
	local bool
	via   string // path of the dependency that provided a non-local binding
}

// Env maps names to bindings and preserves insertion order.
//
// The zero value is an empty environment ready to use.
type Env struct {
	keys    []string
	entries map[string]*envEntry
}

// Define adds a local binding. The first local definition of a name
// wins; Define returns false if the name is already defined locally.
func (e *Env) Define(b Binding) bool {
	if e.entries == nil {
		e.entries = map[string]*envEntry{}
	}
	if ent, ok := e.entries[b.Name]; ok {
		if ent.local {
			return false
		}
		ent.b = b
		ent.local = true
		ent.via = ""
		return true
	}
	e.keys = append(e.keys, b.Name)
	e.entries[b.Name] = &envEntry{b: b, local: true}
	return true
}

func (e *Env) Lookup(name string) (Binding, bool) {
	ent, ok := e.entries[name]
	if !ok {
		return Binding{}, false
	}
	return ent.b, true
}

// IsLocal reports whether name is defined by the environment's own
// header.
func (e *Env) IsLocal(name string) bool {
	ent, ok := e.entries[name]
	return ok && ent.local
}

func (e *Env) Len() int {
	return len(e.keys)
}

// Keys returns all bound names in insertion order.
func (e *Env) Keys() []string {
	return append([]string(nil), e.keys...)
}

// All iterates over all bindings in insertion order.
func (e *Env) All() iter.Seq2[string, Binding] {
	return func(yield func(string, Binding) bool) {
		for _, k := range e.keys {
			if !yield(k, e.entries[k].b) {
				return
			}
		}
	}
}

// Merge merges the environments of the owner's immediate dependencies
// into e, in the order given.
//
// Local names are never overridden. A name offered by two dependencies
// with equal bindings is merged once. A name offered by two
// dependencies with different bindings is ambiguous: the first binding
// is kept and an error is returned for the name. Merge never removes
// a name.
func (e *Env) Merge(owner string, deps []Source) []*AmbiguousBindingError {
	if e.entries == nil {
		e.entries = map[string]*envEntry{}
	}
	var errs []*AmbiguousBindingError
	reported := map[string]bool{}
	for _, src := range deps {
		if src.Env == nil {
			continue
		}
		for _, k := range src.Env.keys {
			b := src.Env.entries[k].b
			ent, ok := e.entries[k]
			if !ok {
				e.keys = append(e.keys, k)
				e.entries[k] = &envEntry{b: b, via: src.Path}
				continue
			}
			if ent.local || ent.b == b || reported[k] {
				continue
			}
			reported[k] = true
			errs = append(errs, &AmbiguousBindingError{
				Header:   owner,
				Key:      k,
				Headers:  [2]string{ent.via, src.Path},
				Bindings: [2]Binding{ent.b, b},
			})
		}
	}
	return errs
}

// AmbiguousBindingError reports a name that reaches a header from two
// dependencies with different bindings, while the header does not
// define the name itself.
type AmbiguousBindingError struct {
	Header   string
	Key      string
	Headers  [2]string  // dependencies providing the conflicting bindings
	Bindings [2]Binding // conflicting bindings
}

func (e *AmbiguousBindingError) Error() string {
	return fmt.Sprintf("%v: ambiguous binding %v: %v (from %v, defined in %v) conflicts with %v (from %v, defined in %v)",
		e.Header, strconv.Quote(e.Key),
		e.Bindings[0].Qualified, e.Headers[0], e.Bindings[0].HeaderPath,
		e.Bindings[1].Qualified, e.Headers[1], e.Bindings[1].HeaderPath,
	)
}
