// Package parser extracts bindable declarations and type references from
// C++ headers using tree-sitter.
package parser

import (
	"context"
	"fmt"
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/NoelVillette/visp/bindgen/header"
)

type Options struct {
	// If set, a header containing syntax errors is still extracted
	// from the parts tree-sitter could recover.
	TolerateErrors bool
	// Prefix stripped from entity names to form the default export
	// name (e.g. "vp" turns vpImage into Image).
	StripPrefix string
}

// SyntaxError reports a header tree-sitter couldn't parse cleanly.
type SyntaxError struct {
	// Positions and context of every error node, "line:col: msg".
	Trace []string
}

func (e *SyntaxError) Error() string {
	if len(e.Trace) == 1 {
		return "syntax error at " + e.Trace[0]
	}
	return fmt.Sprintf("%v syntax errors, first at %v", len(e.Trace), e.Trace[0])
}

func (e *SyntaxError) TraceLines() []string {
	return e.Trace
}

// NewParser creates a tree-sitter parser for C++.
// Parsers are not safe for concurrent use.
func NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(cpp.GetLanguage())
	return p
}

// Extract parses a C++ header and returns its declarations.
func Extract(ctx context.Context, src []byte, opts Options) (header.Declarations, error) {
	p := NewParser()
	defer p.Close()
	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		return header.Declarations{}, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() && !opts.TolerateErrors {
		return header.Declarations{}, &SyntaxError{Trace: errorTrace(root, src)}
	}

	x := &extractor{src: src, opts: opts, seenRef: map[string]bool{}}
	x.visit(root, nil, nil)
	return header.Declarations{
		Entities:   x.entities,
		References: x.refs,
	}, nil
}

func errorTrace(root *sitter.Node, src []byte) []string {
	var trace []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if !n.HasError() {
			return
		}
		if n.IsMissing() || n.Type() == "ERROR" {
			pt := n.StartPoint()
			var msg string
			if n.IsMissing() {
				msg = "missing " + n.Type()
			} else {
				near := strings.Join(strings.Fields(n.Content(src)), " ")
				if len(near) > 40 {
					near = near[:40] + "..."
				}
				msg = fmt.Sprintf("unexpected %q", near)
			}
			trace = append(trace, fmt.Sprintf("%v:%v: %v", pt.Row+1, pt.Column+1, msg))
			return
		}
		for i := range int(n.ChildCount()) {
			walk(n.Child(i))
		}
	}
	walk(root)
	if len(trace) == 0 {
		trace = append(trace, "1:1: unknown error")
	}
	return trace
}

type extractor struct {
	src      []byte
	opts     Options
	entities []header.Entity
	refs     []string
	seenRef  map[string]bool
}

func (x *extractor) text(n *sitter.Node) string {
	return n.Content(x.src)
}

func (x *extractor) addRefs(names []string) {
	for _, name := range names {
		if !x.seenRef[name] {
			x.seenRef[name] = true
			x.refs = append(x.refs, name)
		}
	}
}

func (x *extractor) add(ent header.Entity, ns []string) {
	ent.Qualified = strings.Join(append(append([]string(nil), ns...), ent.Name), "::")
	ent.Export = strings.TrimPrefix(ent.Name, x.opts.StripPrefix)
	if ent.Export == "" {
		ent.Export = ent.Name
	}
	x.entities = append(x.entities, ent)
	x.addRefs(ent.References)
}

func (x *extractor) visit(n *sitter.Node, ns []string, tparams []string) {
	switch n.Type() {
	case "translation_unit", "declaration_list",
		"preproc_ifdef", "preproc_if", "preproc_else", "preproc_elif", "preproc_elifdef":
		for i := range int(n.NamedChildCount()) {
			x.visit(n.NamedChild(i), ns, nil)
		}
	case "namespace_definition":
		body := n.ChildByFieldName("body")
		if body == nil {
			return
		}
		inner := ns
		if name := n.ChildByFieldName("name"); name != nil {
			inner = append(append([]string(nil), ns...), strings.Split(x.text(name), "::")...)
		}
		x.visit(body, inner, nil)
	case "linkage_specification":
		if body := n.ChildByFieldName("body"); body != nil {
			x.visit(body, ns, nil)
		}
	case "template_declaration":
		params := templateParams(n.ChildByFieldName("parameters"), x.src)
		for i := range int(n.NamedChildCount()) {
			c := n.NamedChild(i)
			if c.Type() == "template_parameter_list" {
				continue
			}
			x.visit(c, ns, params)
		}
	case "class_specifier", "struct_specifier", "union_specifier":
		x.class(n, ns, tparams)
	case "enum_specifier":
		x.enum(n, ns)
	case "declaration":
		if typ := n.ChildByFieldName("type"); typ != nil {
			switch typ.Type() {
			case "class_specifier", "struct_specifier", "union_specifier", "enum_specifier":
				x.visit(typ, ns, tparams)
			}
		}
		x.function(n, ns, tparams)
	case "function_definition":
		x.function(n, ns, tparams)
	}
}

func (x *extractor) class(n *sitter.Node, ns []string, tparams []string) {
	name := n.ChildByFieldName("name")
	body := n.ChildByFieldName("body")
	if name == nil {
		return
	}
	if body == nil {
		// Forward declaration
		x.addRefs([]string{baseName(name, x.src)})
		return
	}
	if name.Type() != "type_identifier" {
		// Explicit specialization or out-of-line nested class.
		x.addRefs(typeRefs(n, x.src, nil))
		return
	}
	ent := header.Entity{
		Name:     x.text(name),
		Kind:     header.Class,
		Template: tparams != nil,
		Line:     int(n.StartPoint().Row) + 1,
	}
	for i := range int(n.NamedChildCount()) {
		c := n.NamedChild(i)
		if c.Type() != "base_class_clause" {
			continue
		}
		for j := range int(c.NamedChildCount()) {
			b := c.NamedChild(j)
			switch b.Type() {
			case "type_identifier", "qualified_identifier", "template_type":
				ent.Bases = append(ent.Bases, baseName(b, x.src))
			}
		}
	}
	ent.References = typeRefs(n, x.src, append([]string{ent.Name}, tparams...))
	x.add(ent, ns)
}

func (x *extractor) enum(n *sitter.Node, ns []string) {
	name := n.ChildByFieldName("name")
	body := n.ChildByFieldName("body")
	if name == nil || body == nil || name.Type() != "type_identifier" {
		return
	}
	ent := header.Entity{
		Name: x.text(name),
		Kind: header.Enum,
		Line: int(n.StartPoint().Row) + 1,
	}
	for i := range int(n.ChildCount()) {
		switch n.Child(i).Type() {
		case "class", "struct":
			ent.Scoped = true
		}
	}
	for i := range int(body.NamedChildCount()) {
		e := body.NamedChild(i)
		if e.Type() != "enumerator" {
			continue
		}
		if v := e.ChildByFieldName("name"); v != nil {
			ent.Values = append(ent.Values, x.text(v))
		}
	}
	ent.References = typeRefs(n, x.src, []string{ent.Name})
	x.add(ent, ns)
}

// function registers free function declarations and definitions.
// Qualified names (out-of-line member definitions), operators and
// friend declarations are skipped.
func (x *extractor) function(n *sitter.Node, ns []string, tparams []string) {
	for i := range int(n.NamedChildCount()) {
		c := n.NamedChild(i)
		if c.Type() == "friend" {
			return
		}
		fd := functionDeclarator(c)
		if fd == nil {
			continue
		}
		name := fd.ChildByFieldName("declarator")
		if name == nil || name.Type() != "identifier" {
			continue
		}
		var refs []string
		if typ := n.ChildByFieldName("type"); typ != nil {
			refs = typeRefs(typ, x.src, tparams)
		}
		for _, r := range typeRefs(c, x.src, tparams) {
			if !slices.Contains(refs, r) {
				refs = append(refs, r)
			}
		}
		x.add(header.Entity{
			Name:       x.text(name),
			Kind:       header.Function,
			Template:   tparams != nil,
			Params:     paramTypes(fd.ChildByFieldName("parameters"), x.src),
			References: refs,
			Line:       int(c.StartPoint().Row) + 1,
		}, ns)
	}
}

// functionDeclarator unwraps pointer and reference declarators down to
// a function_declarator.
func functionDeclarator(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Type() {
		case "function_declarator":
			return n
		case "pointer_declarator", "reference_declarator":
			d := n.ChildByFieldName("declarator")
			if d == nil && n.NamedChildCount() > 0 {
				d = n.NamedChild(int(n.NamedChildCount()) - 1)
			}
			n = d
		default:
			return nil
		}
	}
	return nil
}

// paramTypes returns the parameter types of a parameter_list with
// names and default values removed.
func paramTypes(params *sitter.Node, src []byte) []string {
	if params == nil {
		return nil
	}
	var res []string
	for i := range int(params.NamedChildCount()) {
		p := params.NamedChild(i)
		switch p.Type() {
		case "parameter_declaration", "optional_parameter_declaration":
		default:
			continue
		}
		start, end := p.StartByte(), p.EndByte()
		if def := p.ChildByFieldName("default_value"); def != nil {
			end = def.StartByte()
		}
		var b strings.Builder
		pos := start
		if id := paramName(p.ChildByFieldName("declarator")); id != nil {
			b.Write(src[pos:id.StartByte()])
			pos = id.EndByte()
		}
		if pos < end {
			b.Write(src[pos:end])
		}
		s := strings.TrimSpace(b.String())
		s = strings.TrimSuffix(strings.TrimSpace(s), "=")
		s = strings.Join(strings.Fields(s), " ")
		if s == "void" && params.NamedChildCount() == 1 {
			continue
		}
		res = append(res, s)
	}
	return res
}

func paramName(d *sitter.Node) *sitter.Node {
	for d != nil {
		if d.Type() == "identifier" {
			return d
		}
		next := d.ChildByFieldName("declarator")
		if next == nil && d.Type() == "reference_declarator" && d.NamedChildCount() > 0 {
			next = d.NamedChild(int(d.NamedChildCount()) - 1)
		}
		d = next
	}
	return nil
}

func templateParams(params *sitter.Node, src []byte) []string {
	res := []string{}
	if params == nil {
		return res
	}
	for i := range int(params.NamedChildCount()) {
		p := params.NamedChild(i)
		for j := range int(p.NamedChildCount()) {
			c := p.NamedChild(j)
			if c.Type() == "type_identifier" {
				res = append(res, c.Content(src))
				break
			}
		}
	}
	return res
}

// baseName returns the unqualified, uninstantiated name of a type node.
func baseName(n *sitter.Node, src []byte) string {
	for {
		switch n.Type() {
		case "qualified_identifier":
			if name := n.ChildByFieldName("name"); name != nil {
				n = name
				continue
			}
		case "template_type":
			if name := n.ChildByFieldName("name"); name != nil {
				n = name
				continue
			}
		}
		return n.Content(src)
	}
}

// typeRefs collects the type names referenced within n, in order of
// appearance, except for the names in exclude. Function bodies are
// skipped.
func typeRefs(n *sitter.Node, src []byte, exclude []string) []string {
	var res []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "compound_statement", "comment":
			return
		case "type_identifier":
			name := n.Content(src)
			if !slices.Contains(exclude, name) && !slices.Contains(res, name) {
				res = append(res, name)
			}
			return
		}
		for i := range int(n.NamedChildCount()) {
			walk(n.NamedChild(i))
		}
	}
	walk(n)
	return res
}
