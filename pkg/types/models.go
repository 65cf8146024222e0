package types

import (
	"bytes"
	"sort"
	"strings"
)

// TreeNode represents a node in the virtual file tree of a generated project
type TreeNode struct {
	Name     string               `json:"name"`
	Path     string               `json:"path,omitempty"`
	IsDir    bool                 `json:"is_dir"`
	Children map[string]*TreeNode `json:"children,omitempty"`
}

// NewTreeNode creates a new tree node
func NewTreeNode(name string, isDir bool) *TreeNode {
	return &TreeNode{
		Name:     name,
		IsDir:    isDir,
		Children: make(map[string]*TreeNode),
	}
}

// BuildTree builds a tree from slash-separated paths. Duplicate paths collapse into one leaf.
func BuildTree(paths []string) *TreeNode {
	root := NewTreeNode("", true)
	for _, p := range paths {
		root.AddPath(p)
	}
	return root
}

// AddPath adds a slash-separated path to the tree
func (n *TreeNode) AddPath(path string) {
	path = strings.Trim(path, "/")
	if path == "" {
		return
	}

	parts := strings.Split(path, "/")
	current := n

	for i, part := range parts {
		if part == "" {
			continue
		}
		isLast := i == len(parts)-1

		child, exists := current.Children[part]
		if !exists {
			child = NewTreeNode(part, !isLast)
			current.Children[part] = child
		} else if !isLast {
			// a path seen earlier as a file can still become a directory
			child.IsDir = true
		}
		if isLast {
			child.Path = path
		}
		current = child
	}
}

// sortedChildren returns children with directories first, then by name
func (n *TreeNode) sortedChildren() []*TreeNode {
	children := make([]*TreeNode, 0, len(n.Children))
	for _, child := range n.Children {
		children = append(children, child)
	}
	sort.Slice(children, func(i, j int) bool {
		if children[i].IsDir != children[j].IsDir {
			return children[i].IsDir
		}
		return children[i].Name < children[j].Name
	})
	return children
}

// Print recursively prints the file tree
func (n *TreeNode) Print(buffer *bytes.Buffer, prefix string, isLast bool) {
	if n.Name != "" {
		buffer.WriteString(prefix)
		if isLast {
			buffer.WriteString("└── ")
			prefix += "    "
		} else {
			buffer.WriteString("├── ")
			prefix += "│   "
		}
		buffer.WriteString(n.Name)
		if n.IsDir {
			buffer.WriteString("/")
		}
		buffer.WriteString("\n")
	}

	children := n.sortedChildren()
	for i, child := range children {
		child.Print(buffer, prefix, i == len(children)-1)
	}
}

// String renders the whole tree
func (n *TreeNode) String() string {
	var buf bytes.Buffer
	n.Print(&buf, "", true)
	return buf.String()
}
