package bindspec

import (
	"slices"

	"github.com/NoelVillette/visp/bindgen/header"
)

// Apply runs prog on the declarations of all processed headers in set.
// Names are matched against the entities' export names; renames set the
// export name and excluded entities are removed from their header.
//
// Headers are selected by include path.
func Apply(prog *Program, set *header.Set) error {
	byInclude := map[string]*header.Header{}
	iface := Interface{
		Names: map[string][]string{},
	}
	for _, h := range set.All() {
		if h.Status != header.Processed {
			continue
		}
		byInclude[h.IncludePath] = h
		iface.Headers = append(iface.Headers, h.IncludePath)
		var names []string
		for _, ent := range h.Entities {
			if !slices.Contains(names, ent.Export) {
				names = append(names, ent.Export)
			}
		}
		iface.Names[h.IncludePath] = names
	}

	excluded := map[*header.Header]map[string]bool{}
	iface.Rename = func(hdr, name, newName string) {
		h := byInclude[hdr]
		for i := range h.Entities {
			if h.Entities[i].Export == name {
				h.Entities[i].Export = newName
			}
		}
		if ex := excluded[h]; ex != nil && ex[name] {
			delete(ex, name)
			ex[newName] = true
		}
	}
	iface.SetIncluded = func(hdr, name string, included bool) {
		h := byInclude[hdr]
		if excluded[h] == nil {
			excluded[h] = map[string]bool{}
		}
		excluded[h][name] = !included
	}

	if err := Run(prog, iface); err != nil {
		return err
	}

	for h, ex := range excluded {
		h.Entities = slices.DeleteFunc(h.Entities, func(ent header.Entity) bool {
			return ex[ent.Export]
		})
	}
	return nil
}
