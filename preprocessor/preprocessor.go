// Package preprocessor reads and extracts all headers in parallel before
// any cross-header analysis takes place.
package preprocessor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/NoelVillette/visp/bindgen/header"
)

// Preprocess reduces the header source in ways which remove information
// not necessary for declaration extraction. Every occurrence of one of
// the given macros (e.g. export or deprecation markers) is replaced by
// whitespace of the same length, including a parenthesized argument
// list following it, so byte offsets and line numbers stay valid.
func Preprocess(src []byte, macros []string) []byte {
	if len(macros) == 0 {
		return src
	}
	out := bytes.Clone(src)
	for _, m := range macros {
		if m == "" {
			continue
		}
		for off := 0; ; {
			i := bytes.Index(out[off:], []byte(m))
			if i < 0 {
				break
			}
			start := off + i
			end := start + len(m)
			off = end
			if (start > 0 && isIdentByte(out[start-1])) || (end < len(out) && isIdentByte(out[end])) {
				continue
			}
			if args := skipSpace(out, end); args < len(out) && out[args] == '(' {
				if close := matchParen(out, args); close >= 0 {
					end = close + 1
				}
			}
			blank(out[start:end])
			off = end
		}
	}
	return out
}

func isIdentByte(b byte) bool {
	return b == '_' || ('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

func skipSpace(b []byte, i int) int {
	for i < len(b) && (b[i] == ' ' || b[i] == '\t') {
		i++
	}
	return i
}

func matchParen(b []byte, open int) int {
	depth := 0
	for i := open; i < len(b); i++ {
		switch b[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// blank overwrites b with spaces, keeping newlines.
func blank(b []byte) {
	for i := range b {
		if b[i] != '\n' && b[i] != '\r' {
			b[i] = ' '
		}
	}
}

// Task describes a single header to be processed.
type Task struct {
	ID   header.ID
	Path string
}

// ExtractFunc extracts the declarations of a single header. It is
// called concurrently and must not share mutable state between calls.
type ExtractFunc func(ctx context.Context, task Task) (header.Declarations, error)

type Result struct {
	Task     Task
	Decls    header.Declarations
	Err      error
	Trace    []string // diagnostic trace of a failure
	Duration time.Duration
}

// Tracer may be implemented by extraction errors to provide a
// multi-line diagnostic trace.
type Tracer interface {
	error
	TraceLines() []string
}

// Run processes all tasks on a pool of at most workers goroutines
// (GOMAXPROCS if workers <= 0) and returns one result per task, in
// submission order.
//
// A failing task doesn't cancel the others: all tasks are run to
// completion so every failure can be reported. A panicking extractor
// is turned into a failed result carrying the goroutine's stack.
func Run(ctx context.Context, tasks []Task, extract ExtractFunc, workers int) []Result {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]Result, len(tasks))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, task := range tasks {
		g.Go(func() error {
			// Each goroutine only ever writes its own slot.
			res := &results[i]
			res.Task = task
			start := time.Now()
			defer func() {
				res.Duration = time.Since(start)
				if r := recover(); r != nil {
					res.Decls = header.Declarations{}
					res.Err = fmt.Errorf("panic: %v", r)
					res.Trace = strings.Split(strings.TrimSpace(string(debug.Stack())), "\n")
				}
			}()
			if err := ctx.Err(); err != nil {
				res.Err = err
				return nil
			}
			res.Decls, res.Err = extract(ctx, task)
			if tr := Tracer(nil); errors.As(res.Err, &tr) {
				res.Trace = tr.TraceLines()
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Failure is a single failed header in a [ParseError].
type Failure struct {
	Path  string
	Err   error
	Trace []string
}

// ParseError aggregates every header that failed preprocessing.
type ParseError struct {
	Failures []Failure
}

// Error returns a short error message.
func (e *ParseError) Error() string {
	if len(e.Failures) == 1 {
		return fmt.Sprintf("failed to parse %v: %v", e.Failures[0].Path, e.Failures[0].Err)
	}
	paths := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		paths[i] = f.Path
	}
	return fmt.Sprintf("failed to parse %v headers: %v", len(e.Failures), strings.Join(paths, ", "))
}

// String returns the full multi-line error string, including the
// trace of every failure.
func (e *ParseError) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "failed to parse %v header(s):\n", len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "  %v: %v\n", f.Path, f.Err)
		for _, ln := range f.Trace {
			fmt.Fprintf(&b, "    %v\n", ln)
		}
	}
	return b.String()
}

func (e *ParseError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// Check returns a [*ParseError] naming every failed result in
// submission order, or nil if all results succeeded.
func Check(results []Result) error {
	var failures []Failure
	for _, r := range results {
		if r.Err != nil {
			failures = append(failures, Failure{Path: r.Task.Path, Err: r.Err, Trace: r.Trace})
		}
	}
	if failures == nil {
		return nil
	}
	return &ParseError{Failures: failures}
}

// Apply stores the results in the header set and updates each
// header's status.
func Apply(set *header.Set, results []Result) {
	for _, r := range results {
		h := set.Get(r.Task.ID)
		if r.Err != nil {
			h.Status = header.Failed
			continue
		}
		h.Entities = r.Decls.Entities
		h.References = r.Decls.References
		h.Status = header.Processed
	}
}
