// combiner.go: strategies for merging two configuration trees into one
//
// A combiner walks two trees in parallel and produces a brand-new tree;
// the inputs are never mutated and may keep being read concurrently.
// Subtrees taken from only one side are shared with the result, not
// copied. Node names registered as list nodes opt out of pairwise
// merging: their same-named children stay separate ordered entries.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
//
// SPDX-License-Identifier: MPL-2.0

package daphne

// NodeCombiner merges a base tree and an override tree into a new tree.
type NodeCombiner interface {
	// Combine returns the merged tree. A nil side yields the other side
	// unchanged. Inputs are never mutated.
	Combine(base, override *ConfigNode) *ConfigNode

	// AddListNode registers a node name whose repeated children are kept
	// as ordered list entries instead of being merged pairwise. Must be
	// called before the combiner is shared with a view.
	AddListNode(name string)

	// IsListNode reports whether children with this name follow list
	// semantics.
	IsListNode(name string) bool
}

// listNodeSet holds the registered list-node names shared by both
// combiner implementations.
type listNodeSet struct {
	names map[string]struct{}
}

// AddListNode registers a list-node name.
func (s *listNodeSet) AddListNode(name string) {
	if s.names == nil {
		s.names = make(map[string]struct{})
	}
	s.names[name] = struct{}{}
}

// IsListNode reports whether the name is registered as a list node.
func (s *listNodeSet) IsListNode(name string) bool {
	_, ok := s.names[name]
	return ok
}

// UnionCombiner merges two trees keeping the contents of both. A child
// name present exactly once on each side is merged recursively; every
// other constellation keeps the children of both sides as separate
// entries. Where base and override conflict on a value or attribute,
// the base side wins.
type UnionCombiner struct {
	listNodeSet
}

// NewUnionCombiner returns a union combiner with the given list-node
// names pre-registered.
func NewUnionCombiner(listNodes ...string) *UnionCombiner {
	c := &UnionCombiner{}
	for _, name := range listNodes {
		c.AddListNode(name)
	}
	return c
}

// Combine merges base and override with union semantics.
func (c *UnionCombiner) Combine(base, override *ConfigNode) *ConfigNode {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	b := NewNode(base.Name())
	if v := base.Value(); v != nil {
		b.Value(v)
	} else {
		b.Value(override.Value())
	}
	for _, key := range base.AttributeKeys() {
		v, _ := base.Attribute(key)
		b.AddAttribute(key, v)
	}
	for _, key := range override.AttributeKeys() {
		if _, taken := base.Attribute(key); !taken {
			v, _ := override.Attribute(key)
			b.AddAttribute(key, v)
		}
	}

	baseCounts := childNameCounts(base)
	overrideCounts := childNameCounts(override)
	used := make(map[*ConfigNode]bool)
	for _, child := range base.Children() {
		name := child.Name()
		if !c.IsListNode(name) && baseCounts[name] == 1 && overrideCounts[name] == 1 {
			partner := firstChildNamed(override, name)
			b.AddChild(c.Combine(child, partner))
			used[partner] = true
			continue
		}
		b.AddChild(child)
	}
	for _, child := range override.Children() {
		if !used[child] {
			b.AddChild(child)
		}
	}
	return b.Create()
}

// OverrideCombiner merges two trees letting the override side win. A
// child name present exactly once on each side is merged recursively
// with override's values and attributes taking precedence; a list-node
// name present on both sides is replaced wholesale by override's
// children. Children whose name appears on only one side are kept
// unchanged.
type OverrideCombiner struct {
	listNodeSet
}

// NewOverrideCombiner returns an override combiner with the given
// list-node names pre-registered.
func NewOverrideCombiner(listNodes ...string) *OverrideCombiner {
	c := &OverrideCombiner{}
	for _, name := range listNodes {
		c.AddListNode(name)
	}
	return c
}

// Combine merges base and override with override semantics.
func (c *OverrideCombiner) Combine(base, override *ConfigNode) *ConfigNode {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	b := NewNode(base.Name())
	if v := override.Value(); v != nil {
		b.Value(v)
	} else {
		b.Value(base.Value())
	}
	for _, key := range base.AttributeKeys() {
		v, _ := base.Attribute(key)
		b.AddAttribute(key, v)
	}
	for _, key := range override.AttributeKeys() {
		v, _ := override.Attribute(key)
		b.AddAttribute(key, v)
	}

	baseCounts := childNameCounts(base)
	overrideCounts := childNameCounts(override)
	used := make(map[*ConfigNode]bool)
	replaced := make(map[string]bool)
	for _, child := range base.Children() {
		name := child.Name()
		if c.IsListNode(name) && overrideCounts[name] > 0 {
			// override's list replaces base's, spliced in at base's
			// first occurrence
			if !replaced[name] {
				replaced[name] = true
				for _, partner := range override.Children() {
					if partner.Name() == name {
						b.AddChild(partner)
						used[partner] = true
					}
				}
			}
			continue
		}
		if !c.IsListNode(name) && baseCounts[name] == 1 && overrideCounts[name] == 1 {
			partner := firstChildNamed(override, name)
			b.AddChild(c.Combine(child, partner))
			used[partner] = true
			continue
		}
		b.AddChild(child)
	}
	for _, child := range override.Children() {
		if !used[child] {
			b.AddChild(child)
		}
	}
	return b.Create()
}

func childNameCounts(n *ConfigNode) map[string]int {
	counts := make(map[string]int, n.ChildCount())
	for _, c := range n.Children() {
		counts[c.Name()]++
	}
	return counts
}

func firstChildNamed(n *ConfigNode, name string) *ConfigNode {
	for _, c := range n.Children() {
		if c.Name() == name {
			return c
		}
	}
	return nil
}
