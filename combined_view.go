// combined_view.go: one logical configuration tree folded from many sources
//
// A combined view owns an ordered list of child sources, each optionally
// named and optionally mounted under a key prefix. The merged tree is
// built lazily by folding the view's combiner over the children in
// insertion order, plus the view's own directly-added properties as the
// final fold step. Any child change marks the merged tree stale; repeated
// invalidations between two reads coalesce into one rebuild and at most
// one listener notification.
//
// A view is itself a TreeSource, so views nest: a combined view can be a
// child of another combined view and staleness propagates outward.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
//
// SPDX-License-Identifier: MPL-2.0

package daphne

import (
	"github.com/agilira/go-errors"
)

// TreeSource is anything that can contribute a configuration tree to a
// combined view: an InMemoryNodeModel, another CombinedView, or any
// provider that can snapshot its tree and report changes.
type TreeSource interface {
	// TreeSnapshot returns the source's current tree. The tree must be
	// immutable and safe for concurrent reads.
	TreeSnapshot() (*ConfigNode, error)

	// OnChange registers a listener invoked after the source's tree
	// changed. The returned function removes the listener again.
	OnChange(fn ChangeListener) (cancel func())
}

// ViewChild describes one source inside a combined view.
type ViewChild struct {
	// Name identifies the child for provenance queries and removal.
	// Non-empty names must be unique within a view; empty names never
	// collide.
	Name string

	// Source provides the child's tree.
	Source TreeSource

	// At mounts the child's tree under this key in the combined tree.
	// Empty mounts the child at the combined root.
	At string
}

// ViewConfig configures a combined view.
type ViewConfig struct {
	// Combiner merges the child trees. Nil selects a UnionCombiner
	// without list nodes.
	Combiner NodeCombiner

	// Engine parses mount keys and renders combined-tree keys. Nil
	// selects the default dotted syntax.
	Engine ExpressionEngine

	// Synchronizer guards the view. Nil selects a fresh
	// ReaderWriterSynchronizer.
	Synchronizer Synchronizer
}

// WithDefaults returns a copy with nil fields replaced by defaults.
func (c ViewConfig) WithDefaults() ViewConfig {
	if c.Combiner == nil {
		c.Combiner = NewUnionCombiner()
	}
	if c.Engine == nil {
		c.Engine = NewDefaultExpressionEngine()
	}
	if c.Synchronizer == nil {
		c.Synchronizer = NewReaderWriterSynchronizer()
	}
	return c
}

// viewChild is the stored form of a ViewChild with its parsed mount path
// and the cancel function of the change listener registered on the source.
type viewChild struct {
	name   string
	source TreeSource
	at     []string
	atKey  string
	cancel func()
}

// CombinedView presents several configuration trees as one. Reads see the
// lazily-rebuilt merged tree; writes go to the view's own local properties
// and never touch the child sources.
type CombinedView struct {
	engine ExpressionEngine
	sync   Synchronizer

	// guarded by the synchronizer
	combiner   NodeCombiner
	children   []*viewChild
	local      *InMemoryNodeModel
	merged     *ConfigNode
	valid      bool
	listeners  []listenerEntry
	listenerID int
}

// NewCombinedView creates an empty combined view.
func NewCombinedView(config ViewConfig) *CombinedView {
	config = config.WithDefaults()
	return &CombinedView{
		engine:   config.Engine,
		sync:     config.Synchronizer,
		combiner: config.Combiner,
		local:    NewNodeModel(ModelConfig{Engine: config.Engine}),
	}
}

// Engine returns the view's expression engine.
func (v *CombinedView) Engine() ExpressionEngine { return v.engine }

// Combiner returns the current node combiner.
func (v *CombinedView) Combiner() NodeCombiner {
	v.sync.BeginRead()
	defer v.sync.EndRead()
	return v.combiner
}

// SetNodeCombiner replaces the combiner and invalidates the merged tree.
func (v *CombinedView) SetNodeCombiner(combiner NodeCombiner) error {
	if combiner == nil {
		return errors.New(ErrCodeInvalidArgument, "node combiner must not be nil")
	}
	v.sync.BeginWrite()
	v.combiner = combiner
	v.sync.EndWrite()
	v.invalidate()
	return nil
}

// AddConfiguration appends a child source to the view. Fails with
// ErrCodeInvalidArgument for a nil source, a duplicate non-empty name, a
// mount key that does not parse to a plain node path, or an attempt to add
// the view to itself.
func (v *CombinedView) AddConfiguration(child ViewChild) error {
	if child.Source == nil {
		return errors.New(ErrCodeInvalidArgument, "child source must not be nil").
			WithContext("name", child.Name)
	}
	if src, ok := child.Source.(*CombinedView); ok && src == v {
		return errors.New(ErrCodeInvalidArgument, "combined view cannot contain itself").
			WithContext("name", child.Name)
	}
	at, err := v.mountNames(child.At)
	if err != nil {
		return err
	}

	// The listener is registered before the child joins the list: changes
	// racing the insertion are covered by the unconditional invalidate
	// below, changes after it by the listener itself.
	entry := &viewChild{name: child.Name, source: child.Source, at: at, atKey: child.At}
	entry.cancel = child.Source.OnChange(func(ChangeEvent) { v.invalidate() })

	v.sync.BeginWrite()
	if child.Name != "" {
		for _, existing := range v.children {
			if existing.name == child.Name {
				v.sync.EndWrite()
				entry.cancel()
				return errors.New(ErrCodeInvalidArgument, "duplicate child configuration name").
					WithContext("name", child.Name)
			}
		}
	}
	v.children = append(v.children, entry)
	v.sync.EndWrite()

	v.invalidate()
	return nil
}

// RemoveConfiguration removes the first child with the given name. It
// unregisters the view's change listener from the child's source and
// invalidates the merged tree. Returns false when no child matches.
func (v *CombinedView) RemoveConfiguration(name string) bool {
	return v.removeChild(func(c *viewChild) bool { return c.name == name })
}

// RemoveSource removes the first child backed by the given source,
// compared by identity.
func (v *CombinedView) RemoveSource(source TreeSource) bool {
	return v.removeChild(func(c *viewChild) bool { return c.source == source })
}

func (v *CombinedView) removeChild(match func(*viewChild) bool) bool {
	v.sync.BeginWrite()
	idx := -1
	for i, c := range v.children {
		if match(c) {
			idx = i
			break
		}
	}
	if idx < 0 {
		v.sync.EndWrite()
		return false
	}
	entry := v.children[idx]
	v.children = append(v.children[:idx:idx], v.children[idx+1:]...)
	v.sync.EndWrite()

	entry.cancel()
	v.invalidate()
	return true
}

// Configuration returns the source of the first child with the given
// name, or nil when no child matches.
func (v *CombinedView) Configuration(name string) TreeSource {
	v.sync.BeginRead()
	defer v.sync.EndRead()
	for _, c := range v.children {
		if c.name == name {
			return c.source
		}
	}
	return nil
}

// Configurations returns the view's children in insertion order.
func (v *CombinedView) Configurations() []ViewChild {
	v.sync.BeginRead()
	defer v.sync.EndRead()
	out := make([]ViewChild, len(v.children))
	for i, c := range v.children {
		out[i] = ViewChild{Name: c.name, Source: c.source, At: c.atKey}
	}
	return out
}

// Invalidate marks the merged tree stale. The next read rebuilds it.
// Listeners fire at most once per valid-to-stale transition, so bursts of
// child changes between two reads produce a single notification.
func (v *CombinedView) Invalidate() { v.invalidate() }

func (v *CombinedView) invalidate() {
	v.sync.BeginWrite()
	wasValid := v.valid
	v.valid = false
	v.merged = nil
	var listeners []listenerEntry
	if wasValid {
		listeners = make([]listenerEntry, len(v.listeners))
		copy(listeners, v.listeners)
	}
	v.sync.EndWrite()

	for _, l := range listeners {
		l.fn(ChangeEvent{Op: OpInvalidate})
	}
}

// OnChange registers a listener fired when the merged tree becomes stale.
// The returned function removes the listener again.
func (v *CombinedView) OnChange(fn ChangeListener) (cancel func()) {
	v.sync.BeginWrite()
	v.listenerID++
	id := v.listenerID
	v.listeners = append(v.listeners, listenerEntry{id: id, fn: fn})
	v.sync.EndWrite()

	return func() {
		v.sync.BeginWrite()
		for i, e := range v.listeners {
			if e.id == id {
				v.listeners = append(v.listeners[:i], v.listeners[i+1:]...)
				break
			}
		}
		v.sync.EndWrite()
	}
}

// TreeSnapshot returns the merged tree, rebuilding it first when stale.
// Fails with ErrCodeConstructionFailed when a child source cannot deliver
// its tree; the view stays stale so a later read can retry.
func (v *CombinedView) TreeSnapshot() (*ConfigNode, error) {
	return v.currentTree()
}

// NodeHandler returns a handler over the merged tree, rebuilding it first
// when stale.
func (v *CombinedView) NodeHandler() (NodeHandler, error) {
	tree, err := v.currentTree()
	if err != nil {
		return nil, err
	}
	return NewTreeHandler(tree), nil
}

// GetProperty returns every value the key resolves to in the merged tree,
// in document order. A nil slice means the key matches nothing.
func (v *CombinedView) GetProperty(key string) ([]interface{}, error) {
	tree, err := v.currentTree()
	if err != nil {
		return nil, err
	}
	var values []interface{}
	for _, r := range v.engine.Query(tree, key, NewTreeHandler(tree)) {
		if val := r.Value(); val != nil {
			values = append(values, val)
		}
	}
	return values, nil
}

// Subtree returns the first node the key resolves to in the merged tree,
// or nil when the key matches no node.
func (v *CombinedView) Subtree(key string) (*ConfigNode, error) {
	tree, err := v.currentTree()
	if err != nil {
		return nil, err
	}
	for _, r := range v.engine.Query(tree, key, NewTreeHandler(tree)) {
		if !r.IsAttribute() {
			return r.Node(), nil
		}
	}
	return nil, nil
}

// Keys returns the keys of all value-bearing nodes and attributes of the
// merged tree, in document order.
func (v *CombinedView) Keys() ([]string, error) {
	tree, err := v.currentTree()
	if err != nil {
		return nil, err
	}
	return collectKeys(tree, v.engine), nil
}

// GetSources returns every source defining the key: each contributing
// child, plus the view itself when its own direct properties define the
// key. The order follows the child list.
func (v *CombinedView) GetSources(key string) []TreeSource {
	v.sync.BeginRead()
	children := make([]*viewChild, len(v.children))
	copy(children, v.children)
	v.sync.EndRead()

	var sources []TreeSource
	for _, child := range children {
		tree, err := child.source.TreeSnapshot()
		if err != nil {
			continue
		}
		if treeDefines(v.engine, mountTree(child.at, tree), key) {
			sources = append(sources, child.source)
		}
	}
	if local, err := v.local.TreeSnapshot(); err == nil && treeDefines(v.engine, local, key) {
		sources = append(sources, v)
	}
	return sources
}

// GetSource returns the single source defining the key, or nil when no
// source defines it. Fails with ErrCodeAmbiguousSource when the key is
// defined by more than one source.
func (v *CombinedView) GetSource(key string) (TreeSource, error) {
	sources := v.GetSources(key)
	switch len(sources) {
	case 0:
		return nil, nil
	case 1:
		return sources[0], nil
	}
	return nil, errors.New(ErrCodeAmbiguousSource, "key is defined by multiple sources").
		WithContext("key", key).
		WithContext("sources", len(sources))
}

// AddProperty adds values to the view's own local properties. Child
// sources are never modified.
func (v *CombinedView) AddProperty(key string, values ...interface{}) error {
	if err := v.local.AddProperty(key, values...); err != nil {
		return err
	}
	v.invalidate()
	return nil
}

// SetProperty sets a local property of the view.
func (v *CombinedView) SetProperty(key string, value interface{}) error {
	if err := v.local.SetProperty(key, value); err != nil {
		return err
	}
	v.invalidate()
	return nil
}

// ClearProperty removes a local property of the view. Values contributed
// by child sources reappear untouched in the merged tree.
func (v *CombinedView) ClearProperty(key string) {
	v.local.ClearProperty(key)
	v.invalidate()
}

// ClearTree removes a local subtree of the view and returns the number of
// removed matches.
func (v *CombinedView) ClearTree(key string) int {
	removed := v.local.ClearTree(key)
	if removed > 0 {
		v.invalidate()
	}
	return removed
}

// Clone returns a view with the same children, combiner, engine, and a
// copy of the local properties, but fresh synchronization and no
// listeners. The clone starts stale and rebuilds on first read.
func (v *CombinedView) Clone() *CombinedView {
	v.sync.BeginRead()
	children := make([]*viewChild, len(v.children))
	copy(children, v.children)
	combiner := v.combiner
	local := v.local
	v.sync.EndRead()

	clone := NewCombinedView(ViewConfig{Combiner: combiner, Engine: v.engine})
	clone.local = local.Clone()
	for _, child := range children {
		entry := &viewChild{name: child.name, source: child.source, at: child.at, atKey: child.atKey}
		entry.cancel = child.source.OnChange(func(ChangeEvent) { clone.invalidate() })
		clone.children = append(clone.children, entry)
	}
	return clone
}

// currentTree returns the merged tree, rebuilding it when stale. A reader
// that finds the tree stale escalates: it releases its read lock, takes
// the write lock, and re-checks before rebuilding, since another writer
// may have rebuilt in between.
func (v *CombinedView) currentTree() (*ConfigNode, error) {
	v.sync.BeginRead()
	if v.valid {
		tree := v.merged
		v.sync.EndRead()
		return tree, nil
	}
	v.sync.EndRead()

	v.sync.BeginWrite()
	if !v.valid {
		tree, err := v.construct()
		if err != nil {
			v.sync.EndWrite()
			return nil, err
		}
		v.merged = tree
		v.valid = true
	}
	tree := v.merged
	v.sync.EndWrite()
	return tree, nil
}

// construct folds the combiner over all child trees in insertion order,
// then over the local properties, so direct properties win under an
// override combiner. Called with the write lock held.
func (v *CombinedView) construct() (*ConfigNode, error) {
	merged := NewNode("").Create()
	for _, child := range v.children {
		tree, err := child.source.TreeSnapshot()
		if err != nil {
			return nil, errors.Wrap(err, ErrCodeConstructionFailed, "failed to construct child configuration tree").
				WithContext("child", child.name).
				WithContext("at", child.atKey)
		}
		merged = v.combiner.Combine(merged, mountTree(child.at, tree))
	}
	local, err := v.local.TreeSnapshot()
	if err != nil {
		return nil, err
	}
	if !local.isEmpty() {
		merged = v.combiner.Combine(merged, local)
	}
	return merged, nil
}

// mountNames parses a mount key into plain node names using the view's
// engine. Attribute references are not valid mount points.
func (v *CombinedView) mountNames(at string) ([]string, error) {
	if at == "" {
		return nil, nil
	}
	empty := NewNode("").Create()
	data, err := v.engine.PrepareAdd(empty, at, NewTreeHandler(empty))
	if err != nil {
		return nil, err
	}
	if data.Attribute {
		return nil, errors.New(ErrCodeInvalidArgument, "mount key must not address an attribute").
			WithContext("at", at)
	}
	return append(data.PathNodes, data.NewNodeName), nil
}

// mountTree wraps a child tree under its mount path, producing an unnamed
// root suitable as combiner input. An empty path uses the tree directly.
func mountTree(names []string, tree *ConfigNode) *ConfigNode {
	if len(names) == 0 {
		if tree.Name() == "" {
			return tree
		}
		return renameNode(tree, "")
	}
	node := renameNode(tree, names[len(names)-1])
	for i := len(names) - 2; i >= 0; i-- {
		node = NewNode(names[i]).AddChild(node).Create()
	}
	return NewNode("").AddChild(node).Create()
}

// renameNode returns a node with the given name sharing the original's
// value, children, and attributes.
func renameNode(n *ConfigNode, name string) *ConfigNode {
	b := NewNode(name).Value(n.Value()).AddChildren(n.Children()...)
	for _, key := range n.AttributeKeys() {
		v, _ := n.Attribute(key)
		b.AddAttribute(key, v)
	}
	return b.Create()
}

// treeDefines reports whether the key resolves to at least one value or
// attribute inside the tree.
func treeDefines(engine ExpressionEngine, root *ConfigNode, key string) bool {
	for _, r := range engine.Query(root, key, NewTreeHandler(root)) {
		if r.IsAttribute() || r.Value() != nil {
			return true
		}
	}
	return false
}
