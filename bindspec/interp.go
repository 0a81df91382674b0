package bindspec

import (
	"fmt"
	"slices"
	"strings"

	"github.com/iancoleman/strcase"
)

// An interface defines how the bindspec interpreter
// should run commands.
type Interface struct {
	// All headers, by include path.
	Headers []string
	// All names by header.
	Names map[string][]string
	// Renames the selected symbol.
	Rename func(hdr, name, newName string)
	// Includes or excludes the selected symbol.
	SetIncluded func(hdr, name string, included bool)
}

// Runs the bindspec program. iface determines
// how all actions are performed.
//
// Renames take effect immediately: later statements select symbols
// by their new names.
func Run(prog *Program, iface Interface) error {
	nameIdx := map[string]map[string]int{} // header and name to index
	for hdr, names := range iface.Names {
		// We'll change symbol names as we go,
		// so create a copy.
		iface.Names[hdr] = slices.Clone(names)

		nameIdx[hdr] = map[string]int{}
		for i, name := range names {
			nameIdx[hdr][name] = i
		}
	}

	// Updates the internal record, then renames. ALWAYS use this.
	doRename := func(hdr, name, newName string) {
		idxs, ok := nameIdx[hdr]
		if !ok {
			panic("invalid header name")
		}
		idx, ok := idxs[name]
		if !ok {
			panic("invalid symbol name")
		}
		if name == newName {
			return
		}
		iface.Names[hdr][idx] = newName
		delete(nameIdx[hdr], name)
		nameIdx[hdr][newName] = idx
		iface.Rename(hdr, name, newName)
	}

	type sym struct {
		hdrIdx int
		name   string
	}

	var selHdrs []string
	var selHdrBackrefs [][][]byte
	var selSyms []sym
	var selSymNameBackrefs [][][]byte
	for _, cmd := range prog.Body {
		errorHere := func(format string, args ...any) error {
			return fmt.Errorf("%v:%v: %w", prog.Filename, cmd.LineNo, fmt.Errorf(format, args...))
		}

		selHdrs = selHdrs[:0]
		selHdrBackrefs = selHdrBackrefs[:0]
		selSyms = selSyms[:0]
		selSymNameBackrefs = selSymNameBackrefs[:0]
		var selHdrSeen, selNameSeen bool
		for _, sel := range cmd.Selectors {
			switch sel.Type {
			case SelHeader:
				if selNameSeen {
					return errorHere("header selector must come before name selector")
				}
				if selHdrSeen {
					return errorHere("duplicate header selector")
				}
				selHdrSeen = true
				for _, hdr := range iface.Headers {
					m := sel.Regexp.FindStringSubmatch(hdr)
					if (m != nil) != sel.Not {
						selHdrs = append(selHdrs, hdr)
						selHdrBackrefs = append(selHdrBackrefs, toBytes(m))
					}
				}
			case SelName:
				if selNameSeen {
					return errorHere("duplicate name selector")
				}
				selNameSeen = true
				if !selHdrSeen {
					for _, hdr := range iface.Headers {
						selHdrs = append(selHdrs, hdr)
						selHdrBackrefs = append(selHdrBackrefs, nil)
					}
				}
				for hdrIdx, hdr := range selHdrs {
					for _, name := range iface.Names[hdr] {
						m := sel.Regexp.FindStringSubmatch(name)
						if (m != nil) != sel.Not {
							selSyms = append(selSyms, sym{hdrIdx, name})
							selSymNameBackrefs = append(selSymNameBackrefs, toBytes(m))
						}
					}
				}
			default:
				return errorHere("unknown selector type %v", sel.Type)
			}
		}
		if !selNameSeen {
			// A header selector alone selects all of its names.
			for hdrIdx, hdr := range selHdrs {
				for _, name := range iface.Names[hdr] {
					selSyms = append(selSyms, sym{hdrIdx, name})
					selSymNameBackrefs = append(selSymNameBackrefs, nil)
				}
			}
		}
		switch cmd.Action {
		case Rename:
			for symIdx, sym := range selSyms {
				backrefs := append(append([][]byte{},
					selHdrBackrefs[sym.hdrIdx]...),
					selSymNameBackrefs[symIdx]...)
				oldnew := [2 * 9]string{
					`\1`, "",
					`\2`, "",
					`\3`, "",
					`\4`, "",
					`\5`, "",
					`\6`, "",
					`\7`, "",
					`\8`, "",
					`\9`, "",
				}
				for i := range min(len(backrefs), 9) {
					oldnew[2*i+1] = string(backrefs[i])
				}
				rep := strings.NewReplacer(oldnew[:]...)
				newName := rep.Replace(cmd.ActionParam)
				doRename(selHdrs[sym.hdrIdx], sym.name, newName)
			}
		case ToSnake:
			for _, sym := range selSyms {
				doRename(selHdrs[sym.hdrIdx], sym.name, strcase.ToSnake(sym.name))
			}
		case ToCamel:
			for _, sym := range selSyms {
				doRename(selHdrs[sym.hdrIdx], sym.name, strcase.ToCamel(sym.name))
			}
		case Include:
			for _, sym := range selSyms {
				iface.SetIncluded(selHdrs[sym.hdrIdx], sym.name, true)
			}
		case Exclude:
			for _, sym := range selSyms {
				iface.SetIncluded(selHdrs[sym.hdrIdx], sym.name, false)
			}
		default:
			return errorHere("unknown action type %v", cmd.Action)
		}
	}

	return nil
}

// toBytes returns the submatches of m without the full match.
func toBytes(m []string) [][]byte {
	if len(m) < 2 {
		return nil
	}
	res := make([][]byte, len(m)-1)
	for i, s := range m[1:] {
		res[i] = []byte(s)
	}
	return res
}
