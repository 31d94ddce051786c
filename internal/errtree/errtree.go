// Package errtree accumulates contextual errors as a tree and reduces them
// to flat root-to-leaf paths, for test assertions that need to map a
// failure back to its originating sub-case. Test-only: nothing in the
// shipped library surface produces or consumes a Node.
package errtree

import "strings"

// Node carries a message and zero or more children.
type Node struct {
	Message  string
	Children []*Node
}

// New returns a leaf node with the given message.
func New(message string) *Node {
	return &Node{Message: message}
}

// AddChild appends child to n's children and returns n for chaining.
func (n *Node) AddChild(child *Node) *Node {
	n.Children = append(n.Children, child)
	return n
}

// AddChildren appends every node in children and returns n for chaining.
func (n *Node) AddChildren(children []*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// AddChildrenWithContext wraps children under a new node labeled context,
// then attaches that wrapper to n.
func (n *Node) AddChildrenWithContext(children []*Node, context string) *Node {
	wrapper := New(context)
	wrapper.AddChildren(children)
	return n.AddChild(wrapper)
}

// Reduce enumerates every root-to-leaf path under n, joining each path's
// messages with sep. A leaf with no children contributes exactly its own
// message as a one-element path.
func (n *Node) Reduce(sep string) []string {
	if len(n.Children) == 0 {
		return []string{n.Message}
	}
	var out []string
	for _, child := range n.Children {
		for _, path := range child.Reduce(sep) {
			out = append(out, n.Message+sep+path)
		}
	}
	return out
}

// ReduceAll concatenates the per-tree reductions of every node in trees.
func ReduceAll(trees []*Node, sep string) []string {
	var out []string
	for _, n := range trees {
		out = append(out, n.Reduce(sep)...)
	}
	return out
}

// JoinAll is a small convenience over ReduceAll for callers that just want a
// single diagnostic string.
func JoinAll(trees []*Node, pathSep, entrySep string) string {
	return strings.Join(ReduceAll(trees, pathSep), entrySep)
}
