package models

import (
	"sort"
	"strings"
)

// NodeType distinguishes files from directories in the file tree.
type NodeType string

const (
	NodeFile      NodeType = "file"
	NodeDirectory NodeType = "directory"
)

// FileTreeNode is one entry of the indexed codebase tree.
// Directories own their children by name; files carry the path used as the
// stable key for selection and relevant-file cross references.
type FileTreeNode struct {
	Name     string                   `json:"-"`
	Type     NodeType                 `json:"type"`
	Path     string                   `json:"path,omitempty"`
	Language string                   `json:"language,omitempty"`
	Children map[string]*FileTreeNode `json:"children,omitempty"`
}

// FileStructure is the /file-structure payload.
type FileStructure struct {
	Root map[string]*FileTreeNode `json:"root"`
}

// NewRootNode wraps the backend's top-level mapping in an unnamed directory
// and fills in every node's name from its key.
func NewRootNode(children map[string]*FileTreeNode) *FileTreeNode {
	root := &FileTreeNode{Type: NodeDirectory, Children: children}
	root.assignNames()
	return root
}

func (n *FileTreeNode) assignNames() {
	for name, child := range n.Children {
		if child == nil {
			delete(n.Children, name)
			continue
		}
		child.Name = name
		// Untyped nodes are classified by whether they carry children.
		if child.Type == "" {
			if child.Children != nil {
				child.Type = NodeDirectory
			} else {
				child.Type = NodeFile
			}
		}
		child.assignNames()
	}
}

// IsDir reports whether the node is a directory.
func (n *FileTreeNode) IsDir() bool {
	return n.Type == NodeDirectory
}

// SortedChildren returns the children in display order: directories first, then by name.
// The order is derived and carries no meaning of its own.
func (n *FileTreeNode) SortedChildren() []*FileTreeNode {
	children := make([]*FileTreeNode, 0, len(n.Children))
	for _, child := range n.Children {
		children = append(children, child)
	}
	sort.Slice(children, func(i, j int) bool {
		if children[i].IsDir() != children[j].IsDir() {
			return children[i].IsDir()
		}
		return strings.ToLower(children[i].Name) < strings.ToLower(children[j].Name)
	})
	return children
}

// Walk visits every node depth-first in display order. Returning false from fn
// stops the descent below that node.
func (n *FileTreeNode) Walk(fn func(node *FileTreeNode, depth int) bool) {
	n.walk(fn, 0)
}

func (n *FileTreeNode) walk(fn func(node *FileTreeNode, depth int) bool, depth int) {
	for _, child := range n.SortedChildren() {
		if !fn(child, depth) {
			continue
		}
		if child.IsDir() {
			child.walk(fn, depth+1)
		}
	}
}

// Files returns every file path in the tree, sorted.
func (n *FileTreeNode) Files() []string {
	var paths []string
	n.Walk(func(node *FileTreeNode, _ int) bool {
		if !node.IsDir() {
			paths = append(paths, node.Path)
		}
		return true
	})
	sort.Strings(paths)
	return paths
}

// Find looks a file up by its path.
func (n *FileTreeNode) Find(path string) (*FileTreeNode, bool) {
	current := n
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if current == nil || !current.IsDir() {
			return nil, false
		}
		current = current.Children[part]
	}
	if current == nil || current.IsDir() {
		return nil, false
	}
	return current, true
}
