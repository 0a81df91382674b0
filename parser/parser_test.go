package parser_test

import (
	"context"
	"testing"

	"github.com/NoelVillette/visp/bindgen/header"
	"github.com/NoelVillette/visp/bindgen/parser"
	"github.com/stretchr/testify/require"
)

const imageHeader = `#ifndef VP_IMAGE_H
#define VP_IMAGE_H
#include <visp3/core/vpConfig.h>

class vpColor;

namespace vp {
template <class Type> class vpImage : public vpImageBase
{
public:
  vpColor color;
  Type *bitmap;
  unsigned int getWidth() const { return width; }
};

enum vpImageFormat { FORMAT_PGM, FORMAT_PPM };
enum class vpMode { Fast, Slow };

void vpDisplay(const vpImage<unsigned char> &I, int scale = 1);
}
#endif
`

func entityByName(ents []header.Entity, name string) (header.Entity, bool) {
	for _, e := range ents {
		if e.Name == name {
			return e, true
		}
	}
	return header.Entity{}, false
}

func TestExtract(t *testing.T) {
	require := require.New(t)

	decls, err := parser.Extract(context.Background(), []byte(imageHeader), parser.Options{StripPrefix: "vp"})
	require.NoError(err)
	require.Len(decls.Entities, 4)

	img, ok := entityByName(decls.Entities, "vpImage")
	require.True(ok)
	require.Equal(header.Class, img.Kind)
	require.Equal("vp::vpImage", img.Qualified)
	require.Equal("Image", img.Export)
	require.True(img.Template)
	require.Equal([]string{"vpImageBase"}, img.Bases)
	require.Contains(img.References, "vpColor")
	require.Contains(img.References, "vpImageBase")
	require.NotContains(img.References, "Type")
	require.NotContains(img.References, "vpImage")

	format, ok := entityByName(decls.Entities, "vpImageFormat")
	require.True(ok)
	require.Equal(header.Enum, format.Kind)
	require.Equal([]string{"FORMAT_PGM", "FORMAT_PPM"}, format.Values)
	require.False(format.Scoped)

	mode, ok := entityByName(decls.Entities, "vpMode")
	require.True(ok)
	require.True(mode.Scoped)

	fn, ok := entityByName(decls.Entities, "vpDisplay")
	require.True(ok)
	require.Equal(header.Function, fn.Kind)
	require.Equal("vp::vpDisplay", fn.Qualified)
	require.Equal([]string{"const vpImage<unsigned char> &", "int"}, fn.Params)
	require.Equal([]string{"vpImage"}, fn.References)

	// Forward declarations count as references.
	require.Contains(decls.References, "vpColor")
	require.Contains(decls.References, "vpImageBase")
}

func TestExtractSyntaxError(t *testing.T) {
	require := require.New(t)

	src := []byte("class vpBroken {\n  int x\n")
	_, err := parser.Extract(context.Background(), src, parser.Options{})
	require.Error(err)
	var synErr *parser.SyntaxError
	require.ErrorAs(err, &synErr)
	require.NotEmpty(synErr.Trace)

	_, err = parser.Extract(context.Background(), src, parser.Options{TolerateErrors: true})
	require.NoError(err)
}

func TestExtractSkipsOutOfLineMembers(t *testing.T) {
	require := require.New(t)

	src := []byte(`
extern "C" {
int vpFree(int a);
}
inline void vpCamera::init() {}
`)
	decls, err := parser.Extract(context.Background(), src, parser.Options{})
	require.NoError(err)
	require.Len(decls.Entities, 1)
	require.Equal("vpFree", decls.Entities[0].Name)
	require.Equal([]string{"int"}, decls.Entities[0].Params)
}
