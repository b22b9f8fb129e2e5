// node_model.go: In-memory node model with copy-on-write mutations
//
// The model holds the current root in an atomic pointer. Every mutation
// reads the current root, resolves the affected nodes, builds a new root
// sharing all untouched subtrees with the old one, and swaps the pointer
// with an optimistic retry loop. The synchronizer's write lock serializes
// writers, so the loop is single-pass in practice; the retry keeps the swap
// correct even with a NoOpSynchronizer and an external locking scheme.
// Listeners run strictly after the write lock has been released.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package daphne

import (
	"sync/atomic"

	"github.com/agilira/go-errors"
)

// ChangeOp identifies the kind of structural change reported by a
// ChangeEvent.
type ChangeOp int

const (
	// OpAddProperty reports new property values appended by AddProperty.
	OpAddProperty ChangeOp = iota
	// OpSetProperty reports values assigned by SetProperty.
	OpSetProperty
	// OpClearTree reports subtree removal by ClearTree.
	OpClearTree
	// OpClearProperty reports value removal by ClearProperty.
	OpClearProperty
	// OpAddNodes reports node grafting by AddNodes.
	OpAddNodes
	// OpClear reports a whole-model reset by Clear.
	OpClear
	// OpInvalidate reports that a combined view's merged tree became stale.
	OpInvalidate
)

// String returns the operation name.
func (op ChangeOp) String() string {
	switch op {
	case OpAddProperty:
		return "add"
	case OpSetProperty:
		return "set"
	case OpClearTree:
		return "clear-tree"
	case OpClearProperty:
		return "clear-property"
	case OpAddNodes:
		return "add-nodes"
	case OpClear:
		return "clear"
	case OpInvalidate:
		return "invalidate"
	default:
		return "unknown"
	}
}

// ChangeEvent describes one completed structural change of a model or view.
type ChangeEvent struct {
	Op      ChangeOp      // what happened
	Key     string        // the key the operation was applied to
	Values  []interface{} // values added or assigned, when applicable
	Removed int           // number of nodes or attributes removed, when applicable
}

// ChangeListener receives change notifications. Listeners are invoked after
// the originating operation has released its locks, in registration order.
// A listener must not assume the model still matches the event; it reports
// history, not current state.
type ChangeListener func(event ChangeEvent)

// ModelConfig configures an InMemoryNodeModel.
type ModelConfig struct {
	// Root is the initial tree. Nil starts with an empty unnamed root.
	Root *ConfigNode

	// Engine parses and renders keys. Nil selects the default dotted
	// syntax with exact name matching.
	Engine ExpressionEngine

	// Synchronizer guards the model. Nil selects a fresh
	// ReaderWriterSynchronizer.
	Synchronizer Synchronizer
}

// WithDefaults returns a config with nil fields replaced by defaults.
func (c ModelConfig) WithDefaults() ModelConfig {
	if c.Root == nil {
		c.Root = NewNode("").Create()
	}
	if c.Engine == nil {
		c.Engine = NewDefaultExpressionEngine()
	}
	if c.Synchronizer == nil {
		c.Synchronizer = NewReaderWriterSynchronizer()
	}
	return c
}

// listenerEntry pairs a listener with its registration id so cancellation
// can remove it without disturbing invocation order.
type listenerEntry struct {
	id int
	fn ChangeListener
}

// InMemoryNodeModel is the read/write facade over one configuration tree.
//
// All operations follow the synchronizer protocol: read lock for
// observation, write lock for mutation. The returned trees and handlers are
// immutable snapshots that stay valid after further mutations.
type InMemoryNodeModel struct {
	root   atomic.Pointer[ConfigNode]
	engine ExpressionEngine
	sync   Synchronizer

	// guarded by the synchronizer's write lock
	tracked    map[NodeSelector]*trackedNode
	listeners  []listenerEntry
	listenerID int
}

// NewNodeModel creates a model from the given configuration.
func NewNodeModel(config ModelConfig) *InMemoryNodeModel {
	config = config.WithDefaults()
	m := &InMemoryNodeModel{
		engine:  config.Engine,
		sync:    config.Synchronizer,
		tracked: make(map[NodeSelector]*trackedNode),
	}
	m.root.Store(config.Root)
	return m
}

// Engine returns the model's expression engine.
func (m *InMemoryNodeModel) Engine() ExpressionEngine { return m.engine }

// Synchronizer returns the model's synchronizer.
func (m *InMemoryNodeModel) Synchronizer() Synchronizer { return m.sync }

// NodeHandler returns a handler over the current root. The handler is a
// stable snapshot: later mutations do not affect it.
func (m *InMemoryNodeModel) NodeHandler() NodeHandler {
	m.sync.BeginRead()
	defer m.sync.EndRead()
	return NewTreeHandler(m.root.Load())
}

// TreeSnapshot returns the current root. It never fails for in-memory
// models; the error return satisfies the TreeSource contract shared with
// combined views.
func (m *InMemoryNodeModel) TreeSnapshot() (*ConfigNode, error) {
	m.sync.BeginRead()
	defer m.sync.EndRead()
	return m.root.Load(), nil
}

// GetProperty returns every value the key resolves to, in document order.
// Node values and attribute values both qualify. A nil slice means the key
// matches nothing.
func (m *InMemoryNodeModel) GetProperty(key string) []interface{} {
	m.sync.BeginRead()
	root := m.root.Load()
	m.sync.EndRead()

	results := m.engine.Query(root, key, NewTreeHandler(root))
	var values []interface{}
	for _, r := range results {
		if v := r.Value(); v != nil {
			values = append(values, v)
		}
	}
	return values
}

// Subtree returns the first node the key resolves to, or nil when the key
// matches no node. Attribute matches are skipped.
func (m *InMemoryNodeModel) Subtree(key string) *ConfigNode {
	m.sync.BeginRead()
	root := m.root.Load()
	m.sync.EndRead()

	for _, r := range m.engine.Query(root, key, NewTreeHandler(root)) {
		if !r.IsAttribute() {
			return r.Node()
		}
	}
	return nil
}

// Keys returns the keys of all value-bearing nodes and all attributes, in
// document order. Key generation shares ancestor prefixes through the
// engine's node key cache.
func (m *InMemoryNodeModel) Keys() []string {
	m.sync.BeginRead()
	root := m.root.Load()
	m.sync.EndRead()

	return collectKeys(root, m.engine)
}

// collectKeys walks the tree in document order rendering the key of every
// value-bearing node and every attribute.
func collectKeys(root *ConfigNode, engine ExpressionEngine) []string {
	pairs := keyValues(root, engine)
	keys := make([]string, len(pairs))
	for i, p := range pairs {
		keys[i] = p.key
	}
	return keys
}

// keyValues pairs every value-bearing node and every attribute below root
// with its canonical key, in document order. root is the apparent root, so
// passing an inner node yields keys relative to it. One shared cache keeps
// ancestor prefixes from being recomputed per sibling.
func keyValues(root *ConfigNode, engine ExpressionEngine) []flatPair {
	handler := NewTreeHandler(root)
	cache := make(map[*ConfigNode]string)
	var pairs []flatPair
	var walk func(n *ConfigNode)
	walk = func(n *ConfigNode) {
		if n != root && n.Value() != nil {
			pairs = append(pairs, flatPair{key: engine.NodeKey(n, cache, handler), value: n.Value()})
		}
		for _, attr := range n.AttributeKeys() {
			v, _ := n.Attribute(attr)
			pairs = append(pairs, flatPair{key: engine.AttributeKey(engine.NodeKey(n, cache, handler), attr), value: v})
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(root)
	return pairs
}

// OnChange registers a change listener and returns a function that removes
// it again.
func (m *InMemoryNodeModel) OnChange(fn ChangeListener) (cancel func()) {
	m.sync.BeginWrite()
	m.listenerID++
	id := m.listenerID
	m.listeners = append(m.listeners, listenerEntry{id: id, fn: fn})
	m.sync.EndWrite()

	return func() {
		m.sync.BeginWrite()
		for i, e := range m.listeners {
			if e.id == id {
				m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
				break
			}
		}
		m.sync.EndWrite()
	}
}

// Clone returns a model sharing the current immutable tree but with fresh
// synchronization, no listeners, and no tracked nodes.
func (m *InMemoryNodeModel) Clone() *InMemoryNodeModel {
	m.sync.BeginRead()
	root := m.root.Load()
	m.sync.EndRead()

	return NewNodeModel(ModelConfig{Root: root, Engine: m.engine})
}

// AddProperty appends one new leaf per value under the key, creating
// missing intermediate nodes. An index of -1 in the key ("list(-1).item")
// forces a new sibling at that point. An empty key assigns the values to
// the root node itself.
func (m *InMemoryNodeModel) AddProperty(key string, values ...interface{}) error {
	if len(values) == 0 {
		return nil
	}
	return m.update(nil, m.addPropertyOp(key, values))
}

// SetProperty assigns the value to the nodes the key resolves to, creating
// the path when nothing matches. A []interface{} value assigns pairwise:
// surplus matched nodes are removed, surplus values are appended as new
// siblings. An empty key assigns the root node's own value.
func (m *InMemoryNodeModel) SetProperty(key string, value interface{}) error {
	return m.update(nil, m.setPropertyOp(key, value))
}

// ClearTree removes every node and attribute the key resolves to, with
// complete subtrees, and returns how many matches were removed.
func (m *InMemoryNodeModel) ClearTree(key string) int {
	removed := 0
	_ = m.update(nil, m.clearTreeOp(key, &removed))
	return removed
}

// ClearProperty removes the values the key resolves to without touching
// child nodes. A node left without value, children, and attributes is
// removed, and the removal cascades upward through parents emptied by it.
// Clearing an absent key is a no-op.
func (m *InMemoryNodeModel) ClearProperty(key string) {
	_ = m.update(nil, m.clearPropertyOp(key))
}

// AddNodes grafts the given nodes under the node the key resolves to,
// creating the path when nothing matches. Fails with
// ErrCodeInvalidArgument when the key addresses an attribute.
func (m *InMemoryNodeModel) AddNodes(key string, nodes []*ConfigNode) error {
	grafted := compactNodes(nodes)
	if len(grafted) == 0 {
		return nil
	}
	return m.update(nil, m.addNodesOp(key, grafted))
}

// Clear resets the model to an empty root. Tracked nodes detach.
func (m *InMemoryNodeModel) Clear() {
	_ = m.update(nil, func(root, base *ConfigNode, h NodeHandler) (*ConfigNode, []ChangeEvent, error) {
		return NewNode("").Create(), []ChangeEvent{{Op: OpClear}}, nil
	})
}

// updateOp turns the current root and resolution base into a new root plus
// the events describing what changed. Returning the root unchanged means
// the operation was a no-op and fires no events.
type updateOp func(root, base *ConfigNode, h NodeHandler) (*ConfigNode, []ChangeEvent, error)

// The op constructors below are shared between the model's own mutations
// and TrackedNodeModel, which scopes them to a tracked base node.

func (m *InMemoryNodeModel) addPropertyOp(key string, values []interface{}) updateOp {
	return func(root, base *ConfigNode, h NodeHandler) (*ConfigNode, []ChangeEvent, error) {
		edit := newTreeEdit()
		if err := m.buildAdd(edit, base, key, values, h); err != nil {
			return nil, nil, err
		}
		return edit.apply(root), []ChangeEvent{{Op: OpAddProperty, Key: key, Values: values}}, nil
	}
}

func (m *InMemoryNodeModel) setPropertyOp(key string, value interface{}) updateOp {
	return func(root, base *ConfigNode, h NodeHandler) (*ConfigNode, []ChangeEvent, error) {
		edit := newTreeEdit()
		values := asValueList(value)
		if err := m.buildSet(edit, base, key, values, h); err != nil {
			return nil, nil, err
		}
		return edit.apply(root), []ChangeEvent{{Op: OpSetProperty, Key: key, Values: values}}, nil
	}
}

func (m *InMemoryNodeModel) clearTreeOp(key string, removed *int) updateOp {
	return func(root, base *ConfigNode, h NodeHandler) (*ConfigNode, []ChangeEvent, error) {
		edit := newTreeEdit()
		*removed = 0
		for _, r := range m.engine.Query(base, key, h) {
			if r.IsAttribute() {
				edit.removeAttrs[r.Node()] = append(edit.removeAttrs[r.Node()], r.AttributeName())
			} else if r.Node() != root {
				edit.removed[r.Node()] = true
			} else {
				continue
			}
			*removed++
		}
		if *removed == 0 {
			return root, nil, nil
		}
		return edit.apply(root), []ChangeEvent{{Op: OpClearTree, Key: key, Removed: *removed}}, nil
	}
}

func (m *InMemoryNodeModel) clearPropertyOp(key string) updateOp {
	return func(root, base *ConfigNode, h NodeHandler) (*ConfigNode, []ChangeEvent, error) {
		edit := newTreeEdit()
		edit.cascade = true
		cleared := 0
		for _, r := range m.engine.Query(base, key, h) {
			if r.IsAttribute() {
				edit.removeAttrs[r.Node()] = append(edit.removeAttrs[r.Node()], r.AttributeName())
				cleared++
			} else if r.Node().Value() != nil {
				edit.values[r.Node()] = nil
				cleared++
			}
		}
		if cleared == 0 {
			return root, nil, nil
		}
		return edit.apply(root), []ChangeEvent{{Op: OpClearProperty, Key: key, Removed: cleared}}, nil
	}
}

func (m *InMemoryNodeModel) addNodesOp(key string, nodes []*ConfigNode) updateOp {
	return func(root, base *ConfigNode, h NodeHandler) (*ConfigNode, []ChangeEvent, error) {
		edit := newTreeEdit()
		if err := m.buildAddNodes(edit, base, key, nodes, h); err != nil {
			return nil, nil, err
		}
		return edit.apply(root), []ChangeEvent{{Op: OpAddNodes, Key: key}}, nil
	}
}

// compactNodes drops nil entries without copying when there are none.
func compactNodes(nodes []*ConfigNode) []*ConfigNode {
	for i, n := range nodes {
		if n == nil {
			out := make([]*ConfigNode, 0, len(nodes)-1)
			out = append(out, nodes[:i]...)
			for _, rest := range nodes[i+1:] {
				if rest != nil {
					out = append(out, rest)
				}
			}
			return out
		}
	}
	return nodes
}

// update runs one mutation under the write lock. The operation receives the
// current root and the base node resolution starts from (the root itself,
// or a tracked node when sel is non-nil) and returns the new root. The swap
// retries optimistically if the root changed concurrently, which only
// happens when writers bypass the synchronizer. Operations against a
// detached tracked node are redirected to its private model.
func (m *InMemoryNodeModel) update(sel *NodeSelector, op updateOp) error {
	m.sync.BeginWrite()

	var events []ChangeEvent
	for {
		root := m.root.Load()
		base := root
		if sel != nil {
			entry := m.tracked[*sel]
			if entry == nil {
				m.sync.EndWrite()
				return errors.New(ErrCodeInvalidArgument, "node is not tracked").
					WithContext("selector", sel.Key())
			}
			if entry.detached {
				private := entry.private
				m.sync.EndWrite()
				return private.update(nil, op)
			}
			base = entry.current
		}

		newRoot, evs, err := op(root, base, NewTreeHandler(root))
		if err != nil {
			m.sync.EndWrite()
			return err
		}
		if newRoot == root {
			events = evs
			break
		}
		if m.root.CompareAndSwap(root, newRoot) {
			events = evs
			m.reresolveTracked(newRoot)
			break
		}
	}

	listeners := make([]listenerEntry, len(m.listeners))
	copy(listeners, m.listeners)
	m.sync.EndWrite()

	for _, ev := range events {
		for _, l := range listeners {
			l.fn(ev)
		}
	}
	return nil
}

// buildAdd records the edits for an AddProperty call into edit.
func (m *InMemoryNodeModel) buildAdd(edit *treeEdit, base *ConfigNode, key string, values []interface{}, h NodeHandler) error {
	if key == "" {
		edit.values[base] = singleOrList(values)
		return nil
	}
	data, err := m.engine.PrepareAdd(base, key, h)
	if err != nil {
		return err
	}
	if data.Attribute {
		if len(data.PathNodes) == 0 {
			edit.setAttr(data.Parent, data.NewNodeName, singleOrList(values))
			return nil
		}
		chain := buildPathChain(data.PathNodes, nil, data.NewNodeName, singleOrList(values))
		edit.appendCh[data.Parent] = append(edit.appendCh[data.Parent], chain)
		return nil
	}

	leaves := make([]*ConfigNode, len(values))
	for i, v := range values {
		leaves[i] = NewNode(data.NewNodeName).Value(v).Create()
	}
	if len(data.PathNodes) == 0 {
		edit.appendCh[data.Parent] = append(edit.appendCh[data.Parent], leaves...)
		return nil
	}
	chain := buildPathChain(data.PathNodes, leaves, "", nil)
	edit.appendCh[data.Parent] = append(edit.appendCh[data.Parent], chain)
	return nil
}

// buildSet records the edits for a SetProperty call into edit: pairwise
// assignment of values to existing matches, removal of surplus matches,
// append of surplus values.
func (m *InMemoryNodeModel) buildSet(edit *treeEdit, base *ConfigNode, key string, values []interface{}, h NodeHandler) error {
	if key == "" {
		edit.values[base] = singleOrList(values)
		return nil
	}
	results := m.engine.Query(base, key, h)
	n := len(results)
	if len(values) < n {
		n = len(values)
	}
	for i := 0; i < n; i++ {
		if results[i].IsAttribute() {
			edit.setAttr(results[i].Node(), results[i].AttributeName(), values[i])
		} else {
			edit.values[results[i].Node()] = values[i]
		}
	}
	for _, r := range results[n:] {
		if r.IsAttribute() {
			edit.removeAttrs[r.Node()] = append(edit.removeAttrs[r.Node()], r.AttributeName())
		} else {
			edit.removed[r.Node()] = true
		}
	}
	if len(values) > len(results) {
		return m.buildAdd(edit, base, key, values[len(results):], h)
	}
	return nil
}

// buildAddNodes records the edits for an AddNodes call. When the key
// resolves to an existing node the new nodes are appended under it;
// otherwise the full path including the final segment is created with the
// new nodes already attached under the deepest created node.
func (m *InMemoryNodeModel) buildAddNodes(edit *treeEdit, base *ConfigNode, key string, nodes []*ConfigNode, h NodeHandler) error {
	if key == "" {
		edit.appendCh[base] = append(edit.appendCh[base], nodes...)
		return nil
	}
	results := m.engine.Query(base, key, h)
	if len(results) > 0 {
		for _, r := range results {
			if !r.IsAttribute() {
				edit.appendCh[r.Node()] = append(edit.appendCh[r.Node()], nodes...)
				return nil
			}
		}
		return errors.New(ErrCodeInvalidArgument, "cannot add nodes to an attribute").
			WithContext("key", key)
	}
	data, err := m.engine.PrepareAdd(base, key, h)
	if err != nil {
		return err
	}
	if data.Attribute {
		return errors.New(ErrCodeInvalidArgument, "cannot add nodes to an attribute").
			WithContext("key", key)
	}
	names := append(append([]string(nil), data.PathNodes...), data.NewNodeName)
	chain := buildPathChain(names, nodes, "", nil)
	edit.appendCh[data.Parent] = append(edit.appendCh[data.Parent], chain)
	return nil
}

// buildPathChain builds a chain of nested single-child nodes for the given
// names. The deepest node carries the given children and, when attrName is
// non-empty, the given attribute. Returns the top of the chain.
func buildPathChain(names []string, children []*ConfigNode, attrName string, attrValue interface{}) *ConfigNode {
	b := NewNode(names[len(names)-1]).AddChildren(children...)
	if attrName != "" {
		b.AddAttribute(attrName, attrValue)
	}
	node := b.Create()
	for i := len(names) - 2; i >= 0; i-- {
		node = NewNode(names[i]).AddChild(node).Create()
	}
	return node
}

// singleOrList collapses a value list to a scalar when it has one element.
func singleOrList(values []interface{}) interface{} {
	if len(values) == 1 {
		return values[0]
	}
	list := make([]interface{}, len(values))
	copy(list, values)
	return list
}

// asValueList normalizes a property value to a value list.
func asValueList(v interface{}) []interface{} {
	if list, ok := v.([]interface{}); ok {
		return list
	}
	return []interface{}{v}
}

// treeEdit accumulates the node-level changes of one mutation. apply
// rebuilds the tree in a single pass, sharing every untouched subtree with
// the original.
type treeEdit struct {
	removed     map[*ConfigNode]bool
	values      map[*ConfigNode]interface{} // nil means clear the value
	setAttrs    map[*ConfigNode]map[string]interface{}
	removeAttrs map[*ConfigNode][]string
	appendCh    map[*ConfigNode][]*ConfigNode

	// cascade removes nodes emptied by a value clear, and their emptied
	// ancestors. Only ClearProperty sets it.
	cascade bool
}

func newTreeEdit() *treeEdit {
	return &treeEdit{
		removed:     make(map[*ConfigNode]bool),
		values:      make(map[*ConfigNode]interface{}),
		setAttrs:    make(map[*ConfigNode]map[string]interface{}),
		removeAttrs: make(map[*ConfigNode][]string),
		appendCh:    make(map[*ConfigNode][]*ConfigNode),
	}
}

func (e *treeEdit) setAttr(n *ConfigNode, name string, v interface{}) {
	attrs := e.setAttrs[n]
	if attrs == nil {
		attrs = make(map[string]interface{})
		e.setAttrs[n] = attrs
	}
	attrs[name] = v
}

// apply rebuilds the tree from root with all recorded edits applied. The
// root itself is never removed.
func (e *treeEdit) apply(root *ConfigNode) *ConfigNode {
	result, _, _ := e.rebuild(root, true)
	return result
}

func (e *treeEdit) rebuild(n *ConfigNode, isRoot bool) (result *ConfigNode, changed, cascaded bool) {
	newChildren := make([]*ConfigNode, 0, len(n.Children()))
	childrenChanged := false
	childCascaded := false
	for _, c := range n.Children() {
		if e.removed[c] {
			childrenChanged = true
			continue
		}
		rc, chg, casc := e.rebuild(c, false)
		if casc {
			childrenChanged = true
			childCascaded = true
			continue
		}
		if chg {
			childrenChanged = true
		}
		newChildren = append(newChildren, rc)
	}

	result = n
	if appended := e.appendCh[n]; childrenChanged || len(appended) > 0 {
		result = n.withChildren(append(newChildren, appended...))
		changed = true
	}
	if attrs, ok := e.setAttrs[n]; ok {
		for k, v := range attrs {
			result = result.withAttribute(k, v)
		}
		changed = true
	}
	if names, ok := e.removeAttrs[n]; ok {
		for _, k := range names {
			result = result.withoutAttribute(k)
		}
		changed = true
	}
	valueCleared := false
	if v, ok := e.values[n]; ok {
		result = result.withValue(v)
		changed = true
		valueCleared = v == nil
	}

	if e.cascade && !isRoot && changed && (valueCleared || childCascaded) && result.isEmpty() {
		return nil, true, true
	}
	return result, changed, false
}
