package submodule

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/NoelVillette/visp/bindgen/binderio"
	"github.com/NoelVillette/visp/bindgen/digraphutils"
	"github.com/NoelVillette/visp/bindgen/header"
)

type GenerateOptions struct {
	// Maximum number of registrations per source unit. If exceeded,
	// registrations are split across part units. 0 means unlimited.
	MaxPerUnit int
}

type registration struct {
	hdr  *header.Header
	code string
}

// Generate returns the source units of sub. The first unit,
// "<name>.cpp", implements the submodule's entry function.
//
// Registrations follow the submodule's header order; within a header,
// an entity referencing another entity of the same header is
// registered after it.
func Generate(sub *Submodule, set *header.Set, opts GenerateOptions) ([]binderio.File, error) {
	overloaded := map[string]int{}
	for _, id := range sub.Headers {
		for _, ent := range set.Get(id).Entities {
			if ent.Kind == header.Function {
				overloaded[ent.Export]++
			}
		}
	}

	var regs []registration
	for _, id := range sub.Headers {
		h := set.Get(id)
		if h.Env == nil {
			return nil, fmt.Errorf("%v: environment not computed", h.Path)
		}
		for _, ent := range entityOrder(h.Entities) {
			regs = append(regs, registration{
				hdr:  h,
				code: registerEntity(ent, h.Env, overloaded[ent.Export] > 1),
			})
		}
	}

	var parts [][]registration
	if opts.MaxPerUnit > 0 && len(regs) > opts.MaxPerUnit {
		for chunk := range slices.Chunk(regs, opts.MaxPerUnit) {
			parts = append(parts, chunk)
		}
	}

	var files []binderio.File
	var cb binderio.CodeBuilder
	if parts == nil {
		writePrelude(&cb, headersOf(sub, set))
	} else {
		writePrelude(&cb, nil)
	}
	for k := range parts {
		cb.Linef("void %v(py::module_ &submodule);", partName(sub, k))
	}
	if parts != nil {
		cb.Linef("")
	}
	cb.Linef("void %v(py::module_ &root)", sub.Entry)
	cb.Linef("{")
	cb.Indent++
	cb.Linef("py::module_ submodule = root.def_submodule(%v);", strconv.Quote(sub.Name))
	if parts == nil {
		for _, r := range regs {
			cb.Linef("")
			cb.Append(r.code)
		}
	} else {
		for k := range parts {
			cb.Linef("%v(submodule);", partName(sub, k))
		}
	}
	cb.Indent--
	cb.Linef("}")
	files = append(files, binderio.File{Name: sub.Name + ".cpp", Content: cb.Bytes()})

	for k, part := range parts {
		cb.Reset()
		var hdrs []*header.Header
		for _, r := range part {
			if !slices.Contains(hdrs, r.hdr) {
				hdrs = append(hdrs, r.hdr)
			}
		}
		writePrelude(&cb, hdrs)
		cb.Linef("void %v(py::module_ &submodule)", partName(sub, k))
		cb.Linef("{")
		cb.Indent++
		for i, r := range part {
			if i != 0 {
				cb.Linef("")
			}
			cb.Append(r.code)
		}
		cb.Indent--
		cb.Linef("}")
		files = append(files, binderio.File{
			Name:    fmt.Sprintf("%v_%v.cpp", sub.Name, k+1),
			Content: cb.Bytes(),
		})
	}
	return files, nil
}

func partName(sub *Submodule, k int) string {
	return fmt.Sprintf("%v_part%v", sub.Entry, k+1)
}

func headersOf(sub *Submodule, set *header.Set) []*header.Header {
	var hdrs []*header.Header
	for _, id := range sub.Headers {
		hdrs = append(hdrs, set.Get(id))
	}
	return hdrs
}

func writePrelude(cb *binderio.CodeBuilder, hdrs []*header.Header) {
	cb.Linef("%v", binderio.GeneratedComment)
	cb.Linef("")
	cb.Linef("#include <pybind11/pybind11.h>")
	cb.Linef("#include <pybind11/stl.h>")
	if len(hdrs) > 0 {
		cb.Linef("")
	}
	for _, h := range hdrs {
		cb.Linef("#include <%v>", h.IncludePath)
	}
	cb.Linef("")
	cb.Linef("namespace py = pybind11;")
	cb.Linef("")
}

// entityOrder orders the entities of a header so that entities come
// after the entities of the same header they reference. Entities
// referencing each other keep their declaration order.
func entityOrder(ents []header.Entity) []header.Entity {
	idx := make([]int, len(ents))
	byName := map[string][]int{}
	for i, ent := range ents {
		idx[i] = i
		byName[ent.Name] = append(byName[ent.Name], i)
	}
	deps := func(i int) []int {
		var res []int
		for _, ref := range ents[i].References {
			res = append(res, byName[ref]...)
		}
		return res
	}
	order, rest := digraphutils.TopoSort(idx, deps)
	order = append(order, rest...)
	res := make([]header.Entity, len(order))
	for i, j := range order {
		res[i] = ents[j]
	}
	return res
}

func registerEntity(ent header.Entity, env *header.Env, overloaded bool) string {
	var b strings.Builder
	if ent.Template {
		fmt.Fprintf(&b, "// %v %v: template, requires explicit instantiation", ent.Kind, ent.Qualified)
		return b.String()
	}
	switch ent.Kind {
	case header.Class:
		args := []string{ent.Qualified}
		for _, base := range ent.Bases {
			if bnd, ok := env.Lookup(base); ok && bnd.Kind == header.Class {
				args = append(args, bnd.Qualified)
			}
		}
		fmt.Fprintf(&b, "py::class_<%v>(submodule, %v);", strings.Join(args, ", "), strconv.Quote(ent.Export))
	case header.Enum:
		fmt.Fprintf(&b, "py::enum_<%v>(submodule, %v)", ent.Qualified, strconv.Quote(ent.Export))
		for _, v := range ent.Values {
			fmt.Fprintf(&b, "\n  .value(%v, %v::%v)", strconv.Quote(v), ent.Qualified, v)
		}
		if !ent.Scoped {
			b.WriteString("\n  .export_values()")
		}
		b.WriteString(";")
	case header.Function:
		if overloaded {
			fmt.Fprintf(&b, "submodule.def(%v, py::overload_cast<%v>(&%v));",
				strconv.Quote(ent.Export), strings.Join(ent.Params, ", "), ent.Qualified)
		} else {
			fmt.Fprintf(&b, "submodule.def(%v, &%v);", strconv.Quote(ent.Export), ent.Qualified)
		}
	default:
		panic(fmt.Sprintf("unknown entity kind %v", ent.Kind))
	}
	return b.String()
}
