// node_handler.go: Read-only traversal over configuration node trees
//
// A NodeHandler answers every structural question about a tree relative to
// one chosen root: parent lookup, indexed child access, name-filtered child
// lists. The same immutable node can appear in several trees at once (old
// and new roots share subtrees), so "who is the parent" is a property of the
// handler's root, not of the node. Tracked subtrees reuse the same handler
// type with the tracked node substituted as the apparent root.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package daphne

import (
	"strings"

	"github.com/agilira/go-errors"
)

// NodeMatcher decides whether a node name matches a name criterion from a
// key. The expression engine applies its matcher to every name comparison,
// so swapping the matcher switches the whole key syntax between
// case-sensitive and case-insensitive resolution.
type NodeMatcher interface {
	Matches(nodeName, criterion string) bool
}

type nodeNameEquals struct{}

func (nodeNameEquals) Matches(nodeName, criterion string) bool { return nodeName == criterion }

type nodeNameEqualsFold struct{}

func (nodeNameEqualsFold) Matches(nodeName, criterion string) bool {
	return strings.EqualFold(nodeName, criterion)
}

// NodeNameEquals matches node names exactly. This is the default matcher.
var NodeNameEquals NodeMatcher = nodeNameEquals{}

// NodeNameEqualsFold matches node names ignoring ASCII and Unicode case.
var NodeNameEqualsFold NodeMatcher = nodeNameEqualsFold{}

// NodeHandler is the read contract over a node tree with a fixed root.
//
// Handlers are cheap value-like objects: they hold only the root pointer.
// All traversal works on immutable nodes, so a handler is safe for
// concurrent use. Obtain live handlers from a model via NodeHandler(), which
// snapshots the current root.
type NodeHandler interface {
	// RootNode returns the apparent root of this handler.
	RootNode() *ConfigNode

	// Name returns the node's name.
	Name(node *ConfigNode) string

	// Value returns the node's scalar value, nil if unset.
	Value(node *ConfigNode) interface{}

	// Parent returns the parent of node within this handler's tree, or nil
	// if node is the root or not part of the tree. Resolution walks the tree
	// from the root comparing node identity.
	Parent(node *ConfigNode) *ConfigNode

	// Children returns the ordered child list (read-only).
	Children(node *ConfigNode) []*ConfigNode

	// ChildrenNamed returns the ordered children whose names match the
	// criterion under the given matcher. A nil matcher means exact matching.
	ChildrenNamed(node *ConfigNode, criterion string, matcher NodeMatcher) []*ConfigNode

	// Child returns the index-th child. Fails with ErrCodeIndexOutOfRange
	// when the index is negative or beyond the child list.
	Child(node *ConfigNode, index int) (*ConfigNode, error)

	// IndexOfChild returns the position of child among parent's children,
	// or -1 when child is not a direct child (identity comparison).
	IndexOfChild(parent, child *ConfigNode) int

	// ChildCount returns the number of children with the given name, or the
	// total child count when name is empty.
	ChildCount(node *ConfigNode, name string) int

	// Attribute returns the named attribute value and whether it exists.
	Attribute(node *ConfigNode, name string) (interface{}, bool)

	// AttributeKeys returns the node's attribute names in sorted order.
	AttributeKeys(node *ConfigNode) []string
}

// TreeHandler is the standard NodeHandler over an immutable tree.
type TreeHandler struct {
	root *ConfigNode
}

// NewTreeHandler returns a handler rooted at the given node. A nil root is
// treated as an empty tree.
func NewTreeHandler(root *ConfigNode) *TreeHandler {
	if root == nil {
		root = NewNode("").Create()
	}
	return &TreeHandler{root: root}
}

// RootNode returns the handler's root.
func (h *TreeHandler) RootNode() *ConfigNode { return h.root }

// Name returns the node's name.
func (h *TreeHandler) Name(node *ConfigNode) string { return node.Name() }

// Value returns the node's scalar value.
func (h *TreeHandler) Value(node *ConfigNode) interface{} { return node.Value() }

// Parent returns the parent of node, nil for the root. The lookup walks the
// tree from the root matching node identity, so it only succeeds for nodes
// that are actually part of this handler's tree.
func (h *TreeHandler) Parent(node *ConfigNode) *ConfigNode {
	if node == nil || node == h.root {
		return nil
	}
	return findParent(h.root, node)
}

func findParent(current, target *ConfigNode) *ConfigNode {
	for _, c := range current.Children() {
		if c == target {
			return current
		}
		if p := findParent(c, target); p != nil {
			return p
		}
	}
	return nil
}

// Children returns the ordered child list.
func (h *TreeHandler) Children(node *ConfigNode) []*ConfigNode { return node.Children() }

// ChildrenNamed returns the children matching the criterion, in order.
func (h *TreeHandler) ChildrenNamed(node *ConfigNode, criterion string, matcher NodeMatcher) []*ConfigNode {
	if matcher == nil {
		matcher = NodeNameEquals
	}
	var matched []*ConfigNode
	for _, c := range node.Children() {
		if matcher.Matches(c.Name(), criterion) {
			matched = append(matched, c)
		}
	}
	return matched
}

// Child returns the index-th child or an ErrCodeIndexOutOfRange error.
func (h *TreeHandler) Child(node *ConfigNode, index int) (*ConfigNode, error) {
	children := node.Children()
	if index < 0 || index >= len(children) {
		return nil, errors.New(ErrCodeIndexOutOfRange, "child index out of range").
			WithContext("index", index).
			WithContext("children", len(children))
	}
	return children[index], nil
}

// IndexOfChild returns child's position among parent's children, -1 if
// absent.
func (h *TreeHandler) IndexOfChild(parent, child *ConfigNode) int {
	for i, c := range parent.Children() {
		if c == child {
			return i
		}
	}
	return -1
}

// ChildCount returns the number of children named name, or all children
// when name is empty.
func (h *TreeHandler) ChildCount(node *ConfigNode, name string) int {
	if name == "" {
		return len(node.Children())
	}
	count := 0
	for _, c := range node.Children() {
		if c.Name() == name {
			count++
		}
	}
	return count
}

// Attribute returns the named attribute value.
func (h *TreeHandler) Attribute(node *ConfigNode, name string) (interface{}, bool) {
	return node.Attribute(name)
}

// AttributeKeys returns the node's attribute names, sorted.
func (h *TreeHandler) AttributeKeys(node *ConfigNode) []string { return node.AttributeKeys() }
