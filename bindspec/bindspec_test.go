package bindspec_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NoelVillette/visp/bindgen/bindspec"
	"github.com/NoelVillette/visp/bindgen/header"
	"github.com/stretchr/testify/require"
)

func TestBindspec(t *testing.T) {
	require := require.New(t)
	dir, err := os.ReadDir("testdata")
	require.NoError(err)
	for _, f := range dir {
		if f.Type().IsRegular() && strings.HasSuffix(f.Name(), ".bindspec") {
			path := filepath.Join("testdata", f.Name())
			expectParseError, err := os.ReadFile(path + ".err")
			if !os.IsNotExist(err) {
				require.NoError(err)
			}
			src, err := os.ReadFile(path)
			require.NoError(err)
			bs, err := bindspec.Parse(path, src)
			if expectParseError == nil {
				require.NoError(err)
				require.NotEmpty(bs.Body)
			} else {
				expect := string(expectParseError)
				expect = strings.TrimRight(expect, "\r\n")
				if os.PathSeparator == '\\' {
					expect = strings.ReplaceAll(expect, "testdata/", "testdata\\")
				}
				require.EqualError(err, expect)
			}
		}
	}
}

func addHeader(set *header.Set, include string, names ...string) *header.Header {
	id, _ := set.Add("/usr/include/visp3/"+include, include, strings.Split(include, "/")[0])
	h := set.Get(id)
	h.Status = header.Processed
	for _, n := range names {
		h.Entities = append(h.Entities, header.Entity{Name: n, Export: n})
	}
	return h
}

func exports(h *header.Header) []string {
	var res []string
	for _, e := range h.Entities {
		res = append(res, e.Export)
	}
	return res
}

func TestApply(t *testing.T) {
	require := require.New(t)

	src, err := os.ReadFile("testdata/valid.bindspec")
	require.NoError(err)
	prog, err := bindspec.Parse("valid.bindspec", src)
	require.NoError(err)

	var set header.Set
	core := addHeader(&set, "core/vpImage.h", "vpImage", "vpImageDeprecated")
	robot := addHeader(&set, "robot/vpRobotArm.h", "RobotArm")
	io := addHeader(&set, "io/vpIo.h", "KeepMe", "Drop")

	require.NoError(bindspec.Apply(prog, &set))
	require.Equal([]string{"Image"}, exports(core))
	require.Equal("vpImage", core.Entities[0].Name)
	require.Equal([]string{"robot_arm"}, exports(robot))
	require.Equal([]string{"KeepMe"}, exports(io))
}

func TestApplyInclude(t *testing.T) {
	require := require.New(t)

	prog, err := bindspec.Parse("inline", []byte(`
name vp.* exclude
name vpKeep include
`))
	require.NoError(err)

	var set header.Set
	h := addHeader(&set, "core/a.h", "vpDrop", "vpKeep", "other")
	require.NoError(bindspec.Apply(prog, &set))
	require.Equal([]string{"vpKeep", "other"}, exports(h))
}

func TestApplyRenameChain(t *testing.T) {
	require := require.New(t)

	// Later statements see earlier renames.
	prog, err := bindspec.Parse("inline", []byte(`
name vp(.*) rename \1
name Image to-snake
`))
	require.NoError(err)

	var set header.Set
	h := addHeader(&set, "core/a.h", "vpImage")
	require.NoError(bindspec.Apply(prog, &set))
	require.Equal([]string{"image"}, exports(h))
}
