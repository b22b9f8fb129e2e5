// tracked_model.go: Model facade scoped to a tracked node
//
// A TrackedNodeModel forwards every operation to its parent model with key
// resolution starting at the tracked node instead of the root, so the
// parent's locking, journaling, and listeners all see scoped operations as
// ordinary structural changes. Once the tracked node detaches, operations
// transparently switch to the entry's private frozen tree and no longer
// affect the parent model.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package daphne

import (
	"sync/atomic"

	"github.com/agilira/go-errors"
)

// TrackedNodeModel is a read/write view rooted at a tracked node.
//
// Obtain instances from InMemoryNodeModel.TrackedModel; each instance holds
// one observer reference on the tracked entry and must be released with
// Close when no longer needed.
type TrackedNodeModel struct {
	parent   *InMemoryNodeModel
	selector NodeSelector
	closed   atomic.Bool
}

// TrackedModel tracks the node the selector resolves to and returns a
// model scoped to it. Each returned model owns one observer reference;
// Close releases it.
func (m *InMemoryNodeModel) TrackedModel(selector NodeSelector) (*TrackedNodeModel, error) {
	if err := m.TrackNode(selector); err != nil {
		return nil, err
	}
	return &TrackedNodeModel{parent: m, selector: selector}, nil
}

// Selector returns the selector this model is scoped to.
func (t *TrackedNodeModel) Selector() NodeSelector { return t.selector }

// IsDetached reports whether the underlying tracked node has detached from
// the parent model.
func (t *TrackedNodeModel) IsDetached() bool { return t.parent.IsDetached(t.selector) }

// Clone returns another model for the same tracked node, adding one
// observer so the entry outlives either copy.
func (t *TrackedNodeModel) Clone() (*TrackedNodeModel, error) {
	if t.closed.Load() {
		return nil, errors.New(ErrCodeInvalidArgument, "tracked node model is closed")
	}
	return t.parent.TrackedModel(t.selector)
}

// Close releases this model's observer reference. Closing twice is a
// no-op.
func (t *TrackedNodeModel) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	return t.parent.UntrackNode(t.selector)
}

// base returns the node reads resolve from: the live tracked node, or nil
// with the private model when detached.
func (t *TrackedNodeModel) base() (*ConfigNode, *InMemoryNodeModel, error) {
	t.parent.sync.BeginRead()
	defer t.parent.sync.EndRead()

	entry := t.parent.tracked[t.selector]
	if entry == nil {
		return nil, nil, errors.New(ErrCodeInvalidArgument, "node is not tracked").
			WithContext("selector", t.selector.Key())
	}
	if entry.detached {
		return nil, entry.private, nil
	}
	return entry.current, nil, nil
}

// NodeHandler returns a handler whose apparent root is the tracked node.
func (t *TrackedNodeModel) NodeHandler() (NodeHandler, error) {
	node, private, err := t.base()
	if err != nil {
		return nil, err
	}
	if private != nil {
		return private.NodeHandler(), nil
	}
	return NewTreeHandler(node), nil
}

// GetProperty resolves the key relative to the tracked node.
func (t *TrackedNodeModel) GetProperty(key string) []interface{} {
	node, private, err := t.base()
	if err != nil {
		return nil
	}
	if private != nil {
		return private.GetProperty(key)
	}
	results := t.parent.engine.Query(node, key, NewTreeHandler(node))
	var values []interface{}
	for _, r := range results {
		if v := r.Value(); v != nil {
			values = append(values, v)
		}
	}
	return values
}

// AddProperty appends values under the key relative to the tracked node.
func (t *TrackedNodeModel) AddProperty(key string, values ...interface{}) error {
	if len(values) == 0 {
		return nil
	}
	return t.parent.update(&t.selector, t.parent.addPropertyOp(key, values))
}

// SetProperty assigns the value under the key relative to the tracked
// node, with the same multiplicity rules as the parent model.
func (t *TrackedNodeModel) SetProperty(key string, value interface{}) error {
	return t.parent.update(&t.selector, t.parent.setPropertyOp(key, value))
}

// ClearTree removes everything the key resolves to relative to the tracked
// node and returns the number of removed matches.
func (t *TrackedNodeModel) ClearTree(key string) int {
	removed := 0
	_ = t.parent.update(&t.selector, t.parent.clearTreeOp(key, &removed))
	return removed
}

// ClearProperty removes the values the key resolves to relative to the
// tracked node, cascading structural removal of emptied nodes.
func (t *TrackedNodeModel) ClearProperty(key string) {
	_ = t.parent.update(&t.selector, t.parent.clearPropertyOp(key))
}

// AddNodes grafts nodes under the key relative to the tracked node.
func (t *TrackedNodeModel) AddNodes(key string, nodes []*ConfigNode) error {
	grafted := compactNodes(nodes)
	if len(grafted) == 0 {
		return nil
	}
	return t.parent.update(&t.selector, t.parent.addNodesOp(key, grafted))
}
