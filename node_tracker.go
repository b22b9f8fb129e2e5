// node_tracker.go: Tracking nodes across structural changes
//
// A tracked node is addressed by a NodeSelector at tracking time and then
// followed through every root replacement: after each successful swap the
// selector is resolved against the new root. When resolution stops
// returning exactly one node the entry detaches; the last known subtree
// becomes the root of a private model that keeps working independently.
// Detached entries never re-attach.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package daphne

import "github.com/agilira/go-errors"

// NodeSelector names a subtree by key. Selectors are plain comparable
// values: two selectors with the same key address the same tracked entry.
type NodeSelector struct {
	key string
}

// NewNodeSelector creates a selector for the given key.
func NewNodeSelector(key string) NodeSelector { return NodeSelector{key: key} }

// Key returns the selector's key string.
func (s NodeSelector) Key() string { return s.key }

// trackedNode is the model-internal state of one tracked selector. It is
// guarded by the owning model's synchronizer, not by atomics.
type trackedNode struct {
	current   *ConfigNode
	observers int
	detached  bool
	private   *InMemoryNodeModel // set once detached
}

// TrackNode starts tracking the node the selector resolves to, or adds an
// observer to an existing entry. Fails with ErrCodeInvalidArgument unless
// the selector's key resolves to exactly one node.
func (m *InMemoryNodeModel) TrackNode(selector NodeSelector) error {
	if selector.Key() == "" {
		return errors.New(ErrCodeInvalidArgument, "a property key is required to track a node")
	}
	m.sync.BeginWrite()
	defer m.sync.EndWrite()

	if entry := m.tracked[selector]; entry != nil {
		entry.observers++
		return nil
	}
	root := m.root.Load()
	node, count := resolveSingleNode(m.engine, root, selector.Key())
	if node == nil {
		return errors.New(ErrCodeInvalidArgument, "selector must resolve to exactly one node").
			WithContext("selector", selector.Key()).
			WithContext("matches", count)
	}
	m.tracked[selector] = &trackedNode{current: node, observers: 1}
	return nil
}

// UntrackNode removes one observer from the selector's entry, dropping the
// entry entirely when the last observer is gone.
func (m *InMemoryNodeModel) UntrackNode(selector NodeSelector) error {
	m.sync.BeginWrite()
	defer m.sync.EndWrite()

	entry := m.tracked[selector]
	if entry == nil {
		return errors.New(ErrCodeInvalidArgument, "node is not tracked").
			WithContext("selector", selector.Key())
	}
	entry.observers--
	if entry.observers <= 0 {
		delete(m.tracked, selector)
	}
	return nil
}

// TrackedNode returns the current node of a tracked selector: the live
// node while attached, the frozen private root after detach.
func (m *InMemoryNodeModel) TrackedNode(selector NodeSelector) (*ConfigNode, error) {
	m.sync.BeginRead()
	defer m.sync.EndRead()

	entry := m.tracked[selector]
	if entry == nil {
		return nil, errors.New(ErrCodeInvalidArgument, "node is not tracked").
			WithContext("selector", selector.Key())
	}
	if entry.detached {
		return entry.private.root.Load(), nil
	}
	return entry.current, nil
}

// IsDetached reports whether the selector's tracked node has detached.
// Unknown selectors report false.
func (m *InMemoryNodeModel) IsDetached(selector NodeSelector) bool {
	m.sync.BeginRead()
	defer m.sync.EndRead()

	entry := m.tracked[selector]
	return entry != nil && entry.detached
}

// reresolveTracked updates every tracked entry after a root swap. Called
// under the write lock. Entries whose selector no longer resolves to
// exactly one node detach and freeze their last known subtree as the root
// of a private model.
func (m *InMemoryNodeModel) reresolveTracked(newRoot *ConfigNode) {
	for sel, entry := range m.tracked {
		if entry.detached {
			continue
		}
		if node, _ := resolveSingleNode(m.engine, newRoot, sel.Key()); node != nil {
			entry.current = node
			continue
		}
		entry.detached = true
		entry.private = NewNodeModel(ModelConfig{Root: entry.current, Engine: m.engine})
	}
}

// resolveSingleNode resolves a key and returns the node if exactly one
// non-attribute result matched, plus the number of node matches.
func resolveSingleNode(engine ExpressionEngine, root *ConfigNode, key string) (*ConfigNode, int) {
	var node *ConfigNode
	count := 0
	for _, r := range engine.Query(root, key, NewTreeHandler(root)) {
		if r.IsAttribute() {
			continue
		}
		count++
		node = r.Node()
	}
	if count != 1 {
		return nil, count
	}
	return node, 1
}
