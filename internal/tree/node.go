// Package tree models a job's output listing as a navigable, lazily
// expanded tree with a single file preview.
package tree

import "github.com/drylab-ai/drylab/internal/drylab"

// Kind tags a Node as a file or a directory.
type Kind int

const (
	KindFile Kind = iota
	KindDir
)

// Node is one entry of the listing. Nodes are built once per fetch and never
// mutated afterwards; expansion lives in the Model.
type Node struct {
	Kind     Kind
	Name     string
	Path     string
	Size     *int64 // files only; nil when unknown
	Children []Node // dirs only, backend order
}

// IsDir reports whether n is a directory.
func (n Node) IsDir() bool {
	return n.Kind == KindDir
}

// Expandable is false for files and for directories without children.
func (n Node) Expandable() bool {
	return n.Kind == KindDir && len(n.Children) > 0
}

// Build converts the wire listing. Unknown node types become files and
// children of files are ignored.
func Build(wire []drylab.TreeNode) []Node {
	if len(wire) == 0 {
		return nil
	}
	nodes := make([]Node, 0, len(wire))
	for _, w := range wire {
		n := Node{Name: w.Name, Path: w.Path}
		if w.IsDir() {
			n.Kind = KindDir
			n.Children = Build(w.Children)
		} else {
			n.Kind = KindFile
			if w.Size != nil {
				size := *w.Size
				n.Size = &size
			}
		}
		nodes = append(nodes, n)
	}
	return nodes
}

// FindByPath resolves path among nodes (recursive).
func FindByPath(nodes []Node, path string) (Node, bool) {
	for _, n := range nodes {
		if n.Path == path {
			return n, true
		}
		if found, ok := FindByPath(n.Children, path); ok {
			return found, true
		}
	}
	return Node{}, false
}

// CountNodes counts files and directories in nodes.
func CountNodes(nodes []Node) (files, dirs int) {
	for _, n := range nodes {
		if n.IsDir() {
			dirs++
			f, d := CountNodes(n.Children)
			files += f
			dirs += d
			continue
		}
		files++
	}
	return files, dirs
}

// paths collects every path in nodes.
func paths(nodes []Node, into map[string]Kind) {
	for _, n := range nodes {
		into[n.Path] = n.Kind
		paths(n.Children, into)
	}
}
