// Package binderio builds generated C++ sources and writes them out.
package binderio

import (
	"bufio"
	"fmt"
	"strings"
)

// GeneratedComment is the first line of every generated file.
const GeneratedComment = "// Code generated by bindgen. DO NOT EDIT."

// CodeBuilder is a wrapper around [strings.Builder] that simplifies
// building C++ code.
//
// The zero value is safely ready to use.
type CodeBuilder struct {
	// Indent is the indentation level.
	Indent int
	// IndentUnit is written Indent times before each line
	// (two spaces if empty).
	IndentUnit string

	b strings.Builder
}

// Write appends a raw string to the internal [strings.Builder].
func (w *CodeBuilder) Write(s string) {
	w.b.WriteString(s)
}

// Append writes the given string line by line with correct indentation.
func (w *CodeBuilder) Append(s string) {
	sc := bufio.NewScanner(strings.NewReader(s))
	for sc.Scan() {
		w.Linef("%v", sc.Text())
	}
}

// Linef writes a single line, prepended by the current indentation.
// Empty lines are never indented.
//
// Takes format and args like [fmt.Printf].
func (w *CodeBuilder) Linef(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if line != "" {
		unit := w.IndentUnit
		if unit == "" {
			unit = "  "
		}
		for i := 0; i < w.Indent; i++ {
			w.b.WriteString(unit)
		}
	}
	w.b.WriteString(line)
	w.b.WriteString("\n")
}

// String returns the current code.
func (w *CodeBuilder) String() string {
	return w.b.String()
}

// Bytes returns the current code as a [File] content.
func (w *CodeBuilder) Bytes() []byte {
	return []byte(w.b.String())
}

func (w *CodeBuilder) Reset() {
	w.Indent = 0
	w.b.Reset()
}
