// Package entry generates the top-level unit of the extension module,
// which declares and invokes the entry function of every submodule.
package entry

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/NoelVillette/visp/bindgen/binderio"
	"github.com/NoelVillette/visp/bindgen/submodule"
)

// FileName is the name of the generated entry unit.
const FileName = "main.cpp"

type Options struct {
	// Name of the extension module.
	Module string
	// Module docstring.
	Doc string
	// Module version, exposed as __version__ if not empty.
	Version string
}

// DuplicateEntryNameError reports entry function names shared by
// multiple submodules.
type DuplicateEntryNameError struct {
	// Submodule names by duplicate entry name.
	Duplicates map[string][]string
}

func (e *DuplicateEntryNameError) names() []string {
	names := make([]string, 0, len(e.Duplicates))
	for name := range e.Duplicates {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Error returns a short error message.
func (e *DuplicateEntryNameError) Error() string {
	var parts []string
	for _, name := range e.names() {
		parts = append(parts, fmt.Sprintf("%v (submodules %v)", strconv.Quote(name), strings.Join(e.Duplicates[name], ", ")))
	}
	return "duplicate entry function name(s): " + strings.Join(parts, "; ")
}

// CheckNames returns a [*DuplicateEntryNameError] listing every entry
// function name used by more than one submodule.
func CheckNames(subs []*submodule.Submodule) error {
	bySubmodule := map[string][]string{}
	for _, sub := range subs {
		bySubmodule[sub.Entry] = append(bySubmodule[sub.Entry], sub.Name)
	}
	dups := map[string][]string{}
	for name, owners := range bySubmodule {
		if len(owners) > 1 {
			dups[name] = owners
		}
	}
	if len(dups) == 0 {
		return nil
	}
	return &DuplicateEntryNameError{Duplicates: dups}
}

// Generate returns the entry unit invoking the entry functions of subs
// in the given order.
func Generate(subs []*submodule.Submodule, opts Options) (binderio.File, error) {
	if err := CheckNames(subs); err != nil {
		return binderio.File{}, err
	}
	if opts.Module == "" {
		return binderio.File{}, fmt.Errorf("empty module name")
	}

	var cb binderio.CodeBuilder
	cb.Linef("%v", binderio.GeneratedComment)
	cb.Linef("")
	cb.Linef("#define PYBIND11_DETAILED_ERROR_MESSAGES")
	cb.Linef("#include <pybind11/pybind11.h>")
	cb.Linef("")
	cb.Linef("namespace py = pybind11;")
	cb.Linef("")
	for _, sub := range subs {
		cb.Linef("void %v(py::module_ &);", sub.Entry)
	}
	if len(subs) > 0 {
		cb.Linef("")
	}
	cb.Linef("PYBIND11_MODULE(%v, m)", opts.Module)
	cb.Linef("{")
	cb.Indent++
	cb.Linef("m.doc() = %v;", strconv.Quote(opts.Doc))
	if opts.Version != "" {
		cb.Linef("m.attr(\"__version__\") = %v;", strconv.Quote(opts.Version))
	}
	if len(subs) > 0 {
		cb.Linef("")
	}
	for _, sub := range subs {
		cb.Linef("%v(m);", sub.Entry)
	}
	cb.Indent--
	cb.Linef("}")
	return binderio.File{Name: FileName, Content: cb.Bytes()}, nil
}
