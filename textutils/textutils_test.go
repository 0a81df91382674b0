package textutils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndentString(t *testing.T) {
	require := require.New(t)

	require.Equal(`  Hello
  World`,
		IndentString(`Hello
World`, "  ", 1),
	)

	require.Equal(`  Hello
  World
`,
		IndentString(`Hello
World
`, "  ", 1),
	)

	require.Equal(`  Hello
  World
`,
		IndentString(`Hello
World
  `, "  ", 1),
	)

	require.Equal(`  Hello

  World
`,
		IndentString(`Hello
  
World
`, "  ", 1),
	)
}

func TestIndentStringNested(t *testing.T) {
	require := require.New(t)

	require.Equal("    a\n    b\n", IndentString("a\nb\n", "  ", 2))
	require.Equal("", IndentString("", "  ", 1))
}
