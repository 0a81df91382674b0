package environment_test

import (
	"errors"
	"testing"

	"github.com/hashicorp/go-multierror"

	"github.com/NoelVillette/visp/bindgen/environment"
	"github.com/NoelVillette/visp/bindgen/header"
	"github.com/NoelVillette/visp/bindgen/resolve"
	"github.com/stretchr/testify/require"
)

func addHeader(set *header.Set, path string, decls []string, refs ...string) header.ID {
	id, _ := set.Add(path, path, "core")
	h := set.Get(id)
	h.Status = header.Processed
	for _, d := range decls {
		h.Entities = append(h.Entities, header.Entity{Name: d, Qualified: "vp::" + d, Export: d})
	}
	h.References = refs
	return id
}

func propagate(t *testing.T, set *header.Set) error {
	g := resolve.BuildGraph(set)
	order, err := resolve.Order(set, g)
	require.NoError(t, err)
	return environment.Propagate(set, order, g)
}

func TestPropagateMonotone(t *testing.T) {
	require := require.New(t)

	var set header.Set
	a := addHeader(&set, "a.h", []string{"A", "Helper"})
	b := addHeader(&set, "b.h", []string{"B"}, "A")
	c := addHeader(&set, "c.h", []string{"C"}, "B")
	require.NoError(propagate(t, &set))

	require.Equal([]string{"A", "Helper"}, set.Get(a).Env.Keys())
	require.Equal([]string{"B", "A", "Helper"}, set.Get(b).Env.Keys())
	require.Equal([]string{"C", "B", "A", "Helper"}, set.Get(c).Env.Keys())

	for _, pair := range [][2]header.ID{{b, a}, {c, b}} {
		require.Subset(set.Get(pair[0]).Env.Keys(), set.Get(pair[1]).Env.Keys())
	}
}

func TestPropagateLocalPrecedence(t *testing.T) {
	require := require.New(t)

	var set header.Set
	addHeader(&set, "a.h", []string{"A", "Point"})
	b := addHeader(&set, "b.h", []string{"Point"}, "A")
	require.NoError(propagate(t, &set))

	p, ok := set.Get(b).Env.Lookup("Point")
	require.True(ok)
	require.Equal("b.h", p.HeaderPath)
}

func TestPropagateDiamond(t *testing.T) {
	require := require.New(t)

	var set header.Set
	addHeader(&set, "base.h", []string{"Base"})
	addHeader(&set, "left.h", []string{"Left"}, "Base")
	addHeader(&set, "right.h", []string{"Right"}, "Base")
	top := addHeader(&set, "top.h", []string{"Top"}, "Left", "Right")
	require.NoError(propagate(t, &set))

	require.ElementsMatch([]string{"Top", "Left", "Base", "Right"}, set.Get(top).Env.Keys())
}

func TestPropagateAmbiguous(t *testing.T) {
	require := require.New(t)

	var set header.Set
	addHeader(&set, "x.h", []string{"X", "Matrix"})
	addHeader(&set, "y.h", []string{"Y", "Matrix"})
	z := addHeader(&set, "z.h", []string{"Z"}, "X", "Y")
	addHeader(&set, "w.h", []string{"W", "Matrix"}, "X", "Y")
	err := propagate(t, &set)
	require.Error(err)

	var aerr *header.AmbiguousBindingError
	require.True(errors.As(err, &aerr))
	require.Equal("z.h", aerr.Header)
	require.Equal("Matrix", aerr.Key)
	require.Equal([2]string{"x.h", "y.h"}, aerr.Headers)

	// w.h defines Matrix itself, so only z.h is reported.
	var merr *multierror.Error
	require.ErrorAs(err, &merr)
	require.Len(merr.Errors, 1)

	// The walk completed.
	require.NotNil(set.Get(z).Env)
}

func TestPropagateDeterministic(t *testing.T) {
	require := require.New(t)

	build := func() *header.Set {
		set := &header.Set{}
		addHeader(set, "a.h", []string{"A"})
		addHeader(set, "b.h", []string{"B", "B2"}, "A")
		addHeader(set, "c.h", []string{"C"}, "A")
		addHeader(set, "d.h", []string{"D"}, "B", "C")
		return set
	}
	s1, s2 := build(), build()
	require.NoError(propagate(t, s1))
	require.NoError(propagate(t, s2))
	for id := range s1.All() {
		require.Equal(s1.Get(id).Env.Keys(), s2.Get(id).Env.Keys())
	}
}
