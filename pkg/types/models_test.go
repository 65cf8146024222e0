package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTree_RendersDirectoriesFirst(t *testing.T) {
	root := BuildTree([]string{"src/main.ts", "README.md", "src/components/List.tsx", "src/App.tsx"})

	want := "├── src/\n" +
		"│   ├── components/\n" +
		"│   │   └── List.tsx\n" +
		"│   ├── App.tsx\n" +
		"│   └── main.ts\n" +
		"└── README.md\n"
	assert.Equal(t, want, root.String())
}

func TestBuildTree_DuplicatePathsCollapse(t *testing.T) {
	root := BuildTree([]string{"a.go", "a.go", "/a.go/"})

	require.Len(t, root.Children, 1)
	leaf := root.Children["a.go"]
	assert.False(t, leaf.IsDir)
	assert.Equal(t, "a.go", leaf.Path)
}

func TestBuildTree_EmptyPathsIgnored(t *testing.T) {
	root := BuildTree([]string{"", "/"})
	assert.Empty(t, root.Children)
	assert.Equal(t, "", root.String())
}
