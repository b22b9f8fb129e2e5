// node.go: Immutable configuration node trees
//
// Nodes are the value type of the whole framework: every configuration,
// tracked subtree, and combined view is a tree of ConfigNode values. Nodes
// never change after construction. Every "mutation" in Daphne builds a new
// node (and a new spine up to the root) while unchanged subtrees are shared
// by pointer between the old and the new tree. Nodes hold no parent
// references; ancestry is always derived from a retained root.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package daphne

import "sort"

// ConfigNode is one immutable node of a configuration tree: a name, an
// optional scalar value (nil means unset), ordered children whose names may
// repeat, and uniquely named attributes.
//
// ConfigNode values are safe for concurrent use by any number of goroutines
// without locking. The slices and maps returned by accessors are owned by the
// node and must not be modified.
type ConfigNode struct {
	name       string
	value      interface{}
	children   []*ConfigNode
	attributes map[string]interface{}
}

// Name returns the node name. Root nodes conventionally have an empty name.
func (n *ConfigNode) Name() string { return n.name }

// Value returns the node's scalar value, or nil if the node has none.
func (n *ConfigNode) Value() interface{} { return n.value }

// Children returns the ordered child list. The returned slice is shared with
// the node and must be treated as read-only.
func (n *ConfigNode) Children() []*ConfigNode { return n.children }

// ChildCount returns the number of children.
func (n *ConfigNode) ChildCount() int { return len(n.children) }

// Attribute returns the value of the named attribute and whether it exists.
func (n *ConfigNode) Attribute(name string) (interface{}, bool) {
	v, ok := n.attributes[name]
	return v, ok
}

// AttributeKeys returns the attribute names in sorted order.
func (n *ConfigNode) AttributeKeys() []string {
	if len(n.attributes) == 0 {
		return nil
	}
	keys := make([]string, 0, len(n.attributes))
	for k := range n.attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AttributeCount returns the number of attributes.
func (n *ConfigNode) AttributeCount() int { return len(n.attributes) }

// isEmpty reports whether the node carries no information at all: no value,
// no children, no attributes. Empty nodes left behind by value removal are
// cascaded away by ClearProperty.
func (n *ConfigNode) isEmpty() bool {
	return n.value == nil && len(n.children) == 0 && len(n.attributes) == 0
}

// Copy-on-write helpers. Each returns a new node sharing all untouched
// state with the receiver.

func (n *ConfigNode) withValue(v interface{}) *ConfigNode {
	c := *n
	c.value = v
	return &c
}

// withChildren replaces the child list. The new node takes ownership of the
// given slice.
func (n *ConfigNode) withChildren(children []*ConfigNode) *ConfigNode {
	c := *n
	c.children = children
	return &c
}

// appendChildren returns a node with the given children appended after the
// existing ones.
func (n *ConfigNode) appendChildren(more []*ConfigNode) *ConfigNode {
	if len(more) == 0 {
		return n
	}
	children := make([]*ConfigNode, 0, len(n.children)+len(more))
	children = append(children, n.children...)
	children = append(children, more...)
	return n.withChildren(children)
}

// replaceChild returns a node with child old substituted by replacement.
// A nil replacement removes the child. Returns the receiver unchanged when
// old is not a child (identity comparison).
func (n *ConfigNode) replaceChild(old, replacement *ConfigNode) *ConfigNode {
	for i, c := range n.children {
		if c != old {
			continue
		}
		var children []*ConfigNode
		if replacement == nil {
			children = make([]*ConfigNode, 0, len(n.children)-1)
			children = append(children, n.children[:i]...)
			children = append(children, n.children[i+1:]...)
		} else {
			children = make([]*ConfigNode, len(n.children))
			copy(children, n.children)
			children[i] = replacement
		}
		return n.withChildren(children)
	}
	return n
}

func (n *ConfigNode) withAttribute(name string, v interface{}) *ConfigNode {
	c := *n
	attrs := make(map[string]interface{}, len(n.attributes)+1)
	for k, av := range n.attributes {
		attrs[k] = av
	}
	attrs[name] = v
	c.attributes = attrs
	return &c
}

func (n *ConfigNode) withoutAttribute(name string) *ConfigNode {
	if _, ok := n.attributes[name]; !ok {
		return n
	}
	c := *n
	if len(n.attributes) == 1 {
		c.attributes = nil
		return &c
	}
	attrs := make(map[string]interface{}, len(n.attributes)-1)
	for k, av := range n.attributes {
		if k != name {
			attrs[k] = av
		}
	}
	c.attributes = attrs
	return &c
}

// NodeBuilder accumulates the state of a ConfigNode under construction.
// Create freezes the accumulated state into an immutable node; the builder
// can be reused afterwards without affecting nodes already created.
//
// Example:
//
//	table := daphne.NewNode("table").
//		AddAttribute("type", "system").
//		AddChild(daphne.NewNode("name").Value("users").Create()).
//		Create()
type NodeBuilder struct {
	name       string
	value      interface{}
	children   []*ConfigNode
	attributes map[string]interface{}
}

// NewNode starts a builder for a node with the given name. Pass an empty
// name for root nodes.
func NewNode(name string) *NodeBuilder {
	return &NodeBuilder{name: name}
}

// Value sets the node's scalar value.
func (b *NodeBuilder) Value(v interface{}) *NodeBuilder {
	b.value = v
	return b
}

// AddChild appends a child node. Nil children are ignored.
func (b *NodeBuilder) AddChild(child *ConfigNode) *NodeBuilder {
	if child != nil {
		b.children = append(b.children, child)
	}
	return b
}

// AddChildren appends all given children in order.
func (b *NodeBuilder) AddChildren(children ...*ConfigNode) *NodeBuilder {
	for _, c := range children {
		b.AddChild(c)
	}
	return b
}

// AddAttribute sets a named attribute, overwriting any previous value for
// the same name.
func (b *NodeBuilder) AddAttribute(name string, v interface{}) *NodeBuilder {
	if b.attributes == nil {
		b.attributes = make(map[string]interface{})
	}
	b.attributes[name] = v
	return b
}

// Create freezes the builder state into an immutable ConfigNode.
func (b *NodeBuilder) Create() *ConfigNode {
	n := &ConfigNode{
		name:  b.name,
		value: b.value,
	}
	if len(b.children) > 0 {
		n.children = make([]*ConfigNode, len(b.children))
		copy(n.children, b.children)
	}
	if len(b.attributes) > 0 {
		n.attributes = make(map[string]interface{}, len(b.attributes))
		for k, v := range b.attributes {
			n.attributes[k] = v
		}
	}
	return n
}
