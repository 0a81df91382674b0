// Package header holds the header model shared by all pipeline stages:
// an arena of headers with stable integer IDs, the declarations extracted
// from each header and the environment of bindings visible from it.
package header

import (
	"fmt"
	"iter"
)

// ID identifies a header within a [Set]. IDs are assigned in discovery
// order starting at 0 and never change.
type ID int

type Status int

const (
	Unprocessed Status = iota
	Processed
	Failed
)

func (s Status) String() string {
	switch s {
	case Unprocessed:
		return "unprocessed"
	case Processed:
		return "processed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

type EntityKind int

const (
	Class EntityKind = iota
	Function
	Enum
)

func (k EntityKind) String() string {
	switch k {
	case Class:
		return "class"
	case Function:
		return "function"
	case Enum:
		return "enum"
	default:
		return fmt.Sprintf("EntityKind(%d)", int(k))
	}
}

// Entity is a bindable declaration found in a header.
type Entity struct {
	Name      string
	Qualified string // namespace-qualified C++ name
	Kind      EntityKind
	Bases     []string
	Template  bool
	// Type names referenced by the entity, deduplicated, in
	// declaration order.
	References []string
	// Name exposed to the target runtime.
	Export string
	// Parameter types of functions, without names or default values.
	Params []string
	// Enumerator names and whether the enum is scoped (enum class).
	Values []string
	Scoped bool
	Line   int
}

// Declarations is the result of extracting a single header.
type Declarations struct {
	Entities []Entity
	// All type names referenced by the header, including forward
	// declarations, deduplicated, in first-seen order.
	References []string
}

type Header struct {
	ID          ID
	Path        string
	IncludePath string
	// Submodule is the name of the group the header was discovered in.
	Submodule  string
	Entities   []Entity
	References []string
	Env        *Env
	Status     Status
}

// Set is the header arena. Headers are addressed by [ID]; the path is
// the header's identity.
//
// The zero value is an empty set ready to use.
type Set struct {
	headers []*Header
	byPath  map[string]ID
}

// Add registers a header and returns its ID. If the path is already
// registered, the existing ID is returned along with false.
func (s *Set) Add(path, includePath, submodule string) (ID, bool) {
	if id, ok := s.byPath[path]; ok {
		return id, false
	}
	if s.byPath == nil {
		s.byPath = map[string]ID{}
	}
	id := ID(len(s.headers))
	s.headers = append(s.headers, &Header{
		ID:          id,
		Path:        path,
		IncludePath: includePath,
		Submodule:   submodule,
	})
	s.byPath[path] = id
	return id, true
}

// Get returns the header with the given ID. It panics on an unknown ID.
func (s *Set) Get(id ID) *Header {
	if id < 0 || int(id) >= len(s.headers) {
		panic(fmt.Sprintf("header: unknown ID %d", id))
	}
	return s.headers[id]
}

func (s *Set) Lookup(path string) (ID, bool) {
	id, ok := s.byPath[path]
	return id, ok
}

func (s *Set) Len() int {
	return len(s.headers)
}

// All iterates over all headers in ID order.
func (s *Set) All() iter.Seq2[ID, *Header] {
	return func(yield func(ID, *Header) bool) {
		for i, h := range s.headers {
			if !yield(ID(i), h) {
				return
			}
		}
	}
}

// IDs returns all IDs in discovery order.
func (s *Set) IDs() []ID {
	ids := make([]ID, len(s.headers))
	for i := range ids {
		ids[i] = ID(i)
	}
	return ids
}

// Paths maps IDs to header paths.
func (s *Set) Paths(ids []ID) []string {
	res := make([]string, len(ids))
	for i, id := range ids {
		res[i] = s.Get(id).Path
	}
	return res
}
