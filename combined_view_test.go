// combined_view_test.go - Unit tests for the combined configuration view
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package daphne

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/agilira/go-errors"
)

// modelWith builds a model pre-populated from key/value pairs.
func modelWith(t *testing.T, pairs map[string]interface{}) *InMemoryNodeModel {
	t.Helper()
	model := NewNodeModel(ModelConfig{})
	for key, value := range pairs {
		if err := model.SetProperty(key, value); err != nil {
			t.Fatalf("Failed to populate model: %v", err)
		}
	}
	return model
}

// failingSource is a TreeSource whose snapshot fails on demand.
type failingSource struct {
	fail atomic.Bool
	tree *ConfigNode
}

func (f *failingSource) TreeSnapshot() (*ConfigNode, error) {
	if f.fail.Load() {
		return nil, fmt.Errorf("source unavailable")
	}
	return f.tree, nil
}

func (f *failingSource) OnChange(fn ChangeListener) (cancel func()) { return func() {} }

// TestCombinedViewUnionMerge tests folding two sources with union semantics
func TestCombinedViewUnionMerge(t *testing.T) {
	view := NewCombinedView(ViewConfig{})
	defaults := modelWith(t, map[string]interface{}{
		"server.host": "localhost",
		"server.port": 8080,
	})
	site := modelWith(t, map[string]interface{}{
		"server.host": "example.com",
		"server.tls":  true,
	})

	if err := view.AddConfiguration(ViewChild{Name: "defaults", Source: defaults}); err != nil {
		t.Fatalf("AddConfiguration failed: %v", err)
	}
	if err := view.AddConfiguration(ViewChild{Name: "site", Source: site}); err != nil {
		t.Fatalf("AddConfiguration failed: %v", err)
	}

	// Union keeps the earlier child's value on conflicts.
	values, err := view.GetProperty("server.host")
	if err != nil {
		t.Fatalf("GetProperty failed: %v", err)
	}
	if !reflect.DeepEqual(values, []interface{}{"localhost"}) {
		t.Errorf("Expected earlier source to win, got %v", values)
	}

	values, _ = view.GetProperty("server.port")
	if !reflect.DeepEqual(values, []interface{}{8080}) {
		t.Errorf("Expected [8080], got %v", values)
	}
	values, _ = view.GetProperty("server.tls")
	if !reflect.DeepEqual(values, []interface{}{true}) {
		t.Errorf("Expected [true], got %v", values)
	}
}

// TestCombinedViewOverrideMerge tests later children winning under override
func TestCombinedViewOverrideMerge(t *testing.T) {
	view := NewCombinedView(ViewConfig{Combiner: NewOverrideCombiner()})
	base := modelWith(t, map[string]interface{}{"app.mode": "production"})
	patch := modelWith(t, map[string]interface{}{"app.mode": "debug"})

	if err := view.AddConfiguration(ViewChild{Source: base}); err != nil {
		t.Fatalf("AddConfiguration failed: %v", err)
	}
	if err := view.AddConfiguration(ViewChild{Source: patch}); err != nil {
		t.Fatalf("AddConfiguration failed: %v", err)
	}

	values, err := view.GetProperty("app.mode")
	if err != nil {
		t.Fatalf("GetProperty failed: %v", err)
	}
	if !reflect.DeepEqual(values, []interface{}{"debug"}) {
		t.Errorf("Expected later source to win under override, got %v", values)
	}
}

// TestCombinedViewTracksChildChanges tests rebuilds after child mutations
func TestCombinedViewTracksChildChanges(t *testing.T) {
	view := NewCombinedView(ViewConfig{})
	model := modelWith(t, map[string]interface{}{"cache.size": 100})
	if err := view.AddConfiguration(ViewChild{Source: model}); err != nil {
		t.Fatalf("AddConfiguration failed: %v", err)
	}

	values, _ := view.GetProperty("cache.size")
	if !reflect.DeepEqual(values, []interface{}{100}) {
		t.Fatalf("Expected [100], got %v", values)
	}

	if err := model.SetProperty("cache.size", 200); err != nil {
		t.Fatalf("SetProperty failed: %v", err)
	}

	values, _ = view.GetProperty("cache.size")
	if !reflect.DeepEqual(values, []interface{}{200}) {
		t.Errorf("Expected rebuilt view with [200], got %v", values)
	}
}

// TestCombinedViewCoalescedInvalidation tests one notification per transition
func TestCombinedViewCoalescedInvalidation(t *testing.T) {
	view := NewCombinedView(ViewConfig{})
	model := modelWith(t, map[string]interface{}{"k": 1})
	if err := view.AddConfiguration(ViewChild{Source: model}); err != nil {
		t.Fatalf("AddConfiguration failed: %v", err)
	}

	var fired atomic.Int32
	cancel := view.OnChange(func(ChangeEvent) { fired.Add(1) })
	defer cancel()

	// Valid after the first read.
	if _, err := view.TreeSnapshot(); err != nil {
		t.Fatalf("TreeSnapshot failed: %v", err)
	}

	// A burst of changes between two reads notifies once.
	for i := 0; i < 5; i++ {
		if err := model.SetProperty("k", i); err != nil {
			t.Fatalf("SetProperty failed: %v", err)
		}
	}
	if n := fired.Load(); n != 1 {
		t.Errorf("Expected 1 notification for the burst, got %d", n)
	}

	// The next read re-arms the notification.
	if _, err := view.TreeSnapshot(); err != nil {
		t.Fatalf("TreeSnapshot failed: %v", err)
	}
	if err := model.SetProperty("k", 99); err != nil {
		t.Fatalf("SetProperty failed: %v", err)
	}
	if n := fired.Load(); n != 2 {
		t.Errorf("Expected 2 notifications after re-read, got %d", n)
	}
}

// TestCombinedViewMount tests mounting a child under a key prefix
func TestCombinedViewMount(t *testing.T) {
	view := NewCombinedView(ViewConfig{})
	creds := NewNodeModel(ModelConfig{})
	if err := creds.SetProperty("user", "admin"); err != nil {
		t.Fatalf("SetProperty failed: %v", err)
	}
	if err := creds.SetProperty("password", "secret"); err != nil {
		t.Fatalf("SetProperty failed: %v", err)
	}

	if err := view.AddConfiguration(ViewChild{Name: "creds", Source: creds, At: "database.primary"}); err != nil {
		t.Fatalf("AddConfiguration failed: %v", err)
	}

	values, err := view.GetProperty("database.primary.user")
	if err != nil {
		t.Fatalf("GetProperty failed: %v", err)
	}
	if !reflect.DeepEqual(values, []interface{}{"admin"}) {
		t.Errorf("Expected mounted value [admin], got %v", values)
	}
	// The unprefixed key resolves to nothing.
	if values, _ := view.GetProperty("user"); values != nil {
		t.Errorf("Expected nil for unmounted key, got %v", values)
	}

	keys, err := view.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	expected := []string{"database.primary.user", "database.primary.password"}
	if !reflect.DeepEqual(keys, expected) {
		t.Errorf("Expected %v, got %v", expected, keys)
	}
}

// TestCombinedViewMountRejectsAttribute tests the invalid mount error path
func TestCombinedViewMountRejectsAttribute(t *testing.T) {
	view := NewCombinedView(ViewConfig{})
	model := NewNodeModel(ModelConfig{})

	err := view.AddConfiguration(ViewChild{Source: model, At: "db[@primary]"})
	if err == nil {
		t.Fatal("Expected error for attribute mount key")
	}
}

// TestCombinedViewRejectsBadChildren tests the add-time error paths
func TestCombinedViewRejectsBadChildren(t *testing.T) {
	view := NewCombinedView(ViewConfig{})

	if err := view.AddConfiguration(ViewChild{Name: "x"}); err == nil {
		t.Error("Expected error for nil source")
	}
	if err := view.AddConfiguration(ViewChild{Name: "self", Source: view}); err == nil {
		t.Error("Expected error adding the view to itself")
	}

	model := NewNodeModel(ModelConfig{})
	if err := view.AddConfiguration(ViewChild{Name: "dup", Source: model}); err != nil {
		t.Fatalf("AddConfiguration failed: %v", err)
	}
	if err := view.AddConfiguration(ViewChild{Name: "dup", Source: NewNodeModel(ModelConfig{})}); err == nil {
		t.Error("Expected error for duplicate child name")
	}

	// Empty names never collide.
	if err := view.AddConfiguration(ViewChild{Source: NewNodeModel(ModelConfig{})}); err != nil {
		t.Errorf("AddConfiguration with empty name failed: %v", err)
	}
	if err := view.AddConfiguration(ViewChild{Source: NewNodeModel(ModelConfig{})}); err != nil {
		t.Errorf("Second empty name failed: %v", err)
	}
}

// TestCombinedViewChildLookup tests Configuration and Configurations
func TestCombinedViewChildLookup(t *testing.T) {
	view := NewCombinedView(ViewConfig{})
	a := NewNodeModel(ModelConfig{})
	b := NewNodeModel(ModelConfig{})

	if err := view.AddConfiguration(ViewChild{Name: "a", Source: a}); err != nil {
		t.Fatalf("AddConfiguration failed: %v", err)
	}
	if err := view.AddConfiguration(ViewChild{Name: "b", Source: b, At: "mnt"}); err != nil {
		t.Fatalf("AddConfiguration failed: %v", err)
	}

	if got := view.Configuration("a"); got != TreeSource(a) {
		t.Error("Configuration returned the wrong source")
	}
	if got := view.Configuration("missing"); got != nil {
		t.Error("Expected nil for unknown name")
	}

	children := view.Configurations()
	if len(children) != 2 {
		t.Fatalf("Expected 2 children, got %d", len(children))
	}
	if children[0].Name != "a" || children[1].Name != "b" || children[1].At != "mnt" {
		t.Errorf("Unexpected child listing: %+v", children)
	}
}

// TestCombinedViewRemoveConfiguration tests removal by name and by source
func TestCombinedViewRemoveConfiguration(t *testing.T) {
	view := NewCombinedView(ViewConfig{})
	a := modelWith(t, map[string]interface{}{"from.a": 1})
	b := modelWith(t, map[string]interface{}{"from.b": 2})

	if err := view.AddConfiguration(ViewChild{Name: "a", Source: a}); err != nil {
		t.Fatalf("AddConfiguration failed: %v", err)
	}
	if err := view.AddConfiguration(ViewChild{Name: "b", Source: b}); err != nil {
		t.Fatalf("AddConfiguration failed: %v", err)
	}

	if !view.RemoveConfiguration("a") {
		t.Fatal("RemoveConfiguration returned false for existing child")
	}
	if view.RemoveConfiguration("a") {
		t.Error("RemoveConfiguration returned true for removed child")
	}
	if values, _ := view.GetProperty("from.a"); values != nil {
		t.Errorf("Removed child still contributes: %v", values)
	}

	if !view.RemoveSource(b) {
		t.Fatal("RemoveSource returned false for existing child")
	}
	if values, _ := view.GetProperty("from.b"); values != nil {
		t.Errorf("Removed source still contributes: %v", values)
	}
}

// TestCombinedViewRemovalUnhooksListener tests listener cleanup on removal
func TestCombinedViewRemovalUnhooksListener(t *testing.T) {
	view := NewCombinedView(ViewConfig{})
	model := modelWith(t, map[string]interface{}{"k": 1})
	if err := view.AddConfiguration(ViewChild{Name: "m", Source: model}); err != nil {
		t.Fatalf("AddConfiguration failed: %v", err)
	}

	view.RemoveConfiguration("m")
	if _, err := view.TreeSnapshot(); err != nil {
		t.Fatalf("TreeSnapshot failed: %v", err)
	}

	var fired atomic.Int32
	cancel := view.OnChange(func(ChangeEvent) { fired.Add(1) })
	defer cancel()

	// The removed child no longer reaches the view.
	if err := model.SetProperty("k", 2); err != nil {
		t.Fatalf("SetProperty failed: %v", err)
	}
	if n := fired.Load(); n != 0 {
		t.Errorf("Removed child still invalidates the view: %d notifications", n)
	}
}

// TestCombinedViewGetSources tests provenance across children and local props
func TestCombinedViewGetSources(t *testing.T) {
	view := NewCombinedView(ViewConfig{})
	a := modelWith(t, map[string]interface{}{"shared.key": "a", "only.a": 1})
	b := modelWith(t, map[string]interface{}{"shared.key": "b", "only.b": 2})

	if err := view.AddConfiguration(ViewChild{Name: "a", Source: a}); err != nil {
		t.Fatalf("AddConfiguration failed: %v", err)
	}
	if err := view.AddConfiguration(ViewChild{Name: "b", Source: b}); err != nil {
		t.Fatalf("AddConfiguration failed: %v", err)
	}

	sources := view.GetSources("shared.key")
	if len(sources) != 2 || sources[0] != TreeSource(a) || sources[1] != TreeSource(b) {
		t.Errorf("Expected both children in order, got %d sources", len(sources))
	}

	src, err := view.GetSource("only.a")
	if err != nil {
		t.Fatalf("GetSource failed: %v", err)
	}
	if src != TreeSource(a) {
		t.Error("Expected child a as the single source")
	}

	src, err = view.GetSource("absent.key")
	if err != nil || src != nil {
		t.Errorf("Expected nil, nil for undefined key, got %v, %v", src, err)
	}

	_, err = view.GetSource("shared.key")
	if err == nil {
		t.Fatal("Expected ambiguity error for multiply-defined key")
	}
	if coder, ok := err.(errors.ErrorCoder); !ok || string(coder.ErrorCode()) != ErrCodeAmbiguousSource {
		t.Errorf("Expected %s, got %v", ErrCodeAmbiguousSource, err)
	}

	// Local properties attribute to the view itself.
	if err := view.SetProperty("mine.key", true); err != nil {
		t.Fatalf("SetProperty failed: %v", err)
	}
	sources = view.GetSources("mine.key")
	if len(sources) != 1 || sources[0] != TreeSource(view) {
		t.Error("Expected the view itself as source of a local property")
	}
}

// TestCombinedViewSourcesRespectMounts tests provenance through mount prefixes
func TestCombinedViewSourcesRespectMounts(t *testing.T) {
	view := NewCombinedView(ViewConfig{})
	creds := modelWith(t, map[string]interface{}{"user": "admin"})
	if err := view.AddConfiguration(ViewChild{Name: "creds", Source: creds, At: "db"}); err != nil {
		t.Fatalf("AddConfiguration failed: %v", err)
	}

	if sources := view.GetSources("db.user"); len(sources) != 1 {
		t.Errorf("Expected mounted child to define db.user, got %d sources", len(sources))
	}
	if sources := view.GetSources("user"); len(sources) != 0 {
		t.Errorf("Expected no source for the unmounted key, got %d", len(sources))
	}
}

// TestCombinedViewLocalProperties tests direct writes on the view
func TestCombinedViewLocalProperties(t *testing.T) {
	view := NewCombinedView(ViewConfig{Combiner: NewOverrideCombiner()})
	child := modelWith(t, map[string]interface{}{"log.level": "info"})
	if err := view.AddConfiguration(ViewChild{Name: "child", Source: child}); err != nil {
		t.Fatalf("AddConfiguration failed: %v", err)
	}

	// Local properties fold last, so they win under override.
	if err := view.SetProperty("log.level", "debug"); err != nil {
		t.Fatalf("SetProperty failed: %v", err)
	}
	values, _ := view.GetProperty("log.level")
	if !reflect.DeepEqual(values, []interface{}{"debug"}) {
		t.Fatalf("Expected local override [debug], got %v", values)
	}

	// The child source is never touched.
	if v := child.GetProperty("log.level"); !reflect.DeepEqual(v, []interface{}{"info"}) {
		t.Errorf("Child source modified by view write: %v", v)
	}

	// Clearing the local value lets the child's value reappear.
	view.ClearProperty("log.level")
	values, _ = view.GetProperty("log.level")
	if !reflect.DeepEqual(values, []interface{}{"info"}) {
		t.Errorf("Expected child value to reappear, got %v", values)
	}

	if err := view.AddProperty("tags.tag", "x", "y"); err != nil {
		t.Fatalf("AddProperty failed: %v", err)
	}
	values, _ = view.GetProperty("tags.tag")
	if !reflect.DeepEqual(values, []interface{}{"x", "y"}) {
		t.Errorf("Expected [x y], got %v", values)
	}
	if removed := view.ClearTree("tags"); removed != 1 {
		t.Errorf("Expected 1 removed, got %d", removed)
	}
}

// TestCombinedViewNesting tests views as children of views
func TestCombinedViewNesting(t *testing.T) {
	inner := NewCombinedView(ViewConfig{})
	leaf := modelWith(t, map[string]interface{}{"deep.value": 1})
	if err := inner.AddConfiguration(ViewChild{Name: "leaf", Source: leaf}); err != nil {
		t.Fatalf("AddConfiguration failed: %v", err)
	}

	outer := NewCombinedView(ViewConfig{})
	if err := outer.AddConfiguration(ViewChild{Name: "inner", Source: inner}); err != nil {
		t.Fatalf("AddConfiguration failed: %v", err)
	}

	values, err := outer.GetProperty("deep.value")
	if err != nil {
		t.Fatalf("GetProperty failed: %v", err)
	}
	if !reflect.DeepEqual(values, []interface{}{1}) {
		t.Fatalf("Expected [1] through nesting, got %v", values)
	}

	// Staleness propagates from the leaf model through the inner view.
	if err := leaf.SetProperty("deep.value", 2); err != nil {
		t.Fatalf("SetProperty failed: %v", err)
	}
	values, _ = outer.GetProperty("deep.value")
	if !reflect.DeepEqual(values, []interface{}{2}) {
		t.Errorf("Expected propagated [2], got %v", values)
	}
}

// TestCombinedViewConstructionFailure tests stale retry after child errors
func TestCombinedViewConstructionFailure(t *testing.T) {
	view := NewCombinedView(ViewConfig{})
	src := &failingSource{tree: NewNode("").
		AddChild(NewNode("flag").Value(true).Create()).
		Create()}
	src.fail.Store(true)

	if err := view.AddConfiguration(ViewChild{Name: "remote", Source: src}); err != nil {
		t.Fatalf("AddConfiguration failed: %v", err)
	}

	if _, err := view.GetProperty("flag"); err == nil {
		t.Fatal("Expected construction error from failing child")
	}

	// The view stays stale, so the next read retries and succeeds.
	src.fail.Store(false)
	values, err := view.GetProperty("flag")
	if err != nil {
		t.Fatalf("Retry after recovery failed: %v", err)
	}
	if !reflect.DeepEqual(values, []interface{}{true}) {
		t.Errorf("Expected [true] after recovery, got %v", values)
	}
}

// TestCombinedViewSetNodeCombiner tests swapping the merge strategy
func TestCombinedViewSetNodeCombiner(t *testing.T) {
	view := NewCombinedView(ViewConfig{})
	first := modelWith(t, map[string]interface{}{"k": "first"})
	second := modelWith(t, map[string]interface{}{"k": "second"})
	if err := view.AddConfiguration(ViewChild{Source: first}); err != nil {
		t.Fatalf("AddConfiguration failed: %v", err)
	}
	if err := view.AddConfiguration(ViewChild{Source: second}); err != nil {
		t.Fatalf("AddConfiguration failed: %v", err)
	}

	values, _ := view.GetProperty("k")
	if !reflect.DeepEqual(values, []interface{}{"first"}) {
		t.Fatalf("Expected union result [first], got %v", values)
	}

	if err := view.SetNodeCombiner(NewOverrideCombiner()); err != nil {
		t.Fatalf("SetNodeCombiner failed: %v", err)
	}
	values, _ = view.GetProperty("k")
	if !reflect.DeepEqual(values, []interface{}{"second"}) {
		t.Errorf("Expected override result [second], got %v", values)
	}

	if err := view.SetNodeCombiner(nil); err == nil {
		t.Error("Expected error for nil combiner")
	}
}

// TestCombinedViewClone tests clone independence and shared children
func TestCombinedViewClone(t *testing.T) {
	view := NewCombinedView(ViewConfig{})
	model := modelWith(t, map[string]interface{}{"base.key": 1})
	if err := view.AddConfiguration(ViewChild{Name: "m", Source: model}); err != nil {
		t.Fatalf("AddConfiguration failed: %v", err)
	}
	if err := view.SetProperty("local.key", "original"); err != nil {
		t.Fatalf("SetProperty failed: %v", err)
	}

	clone := view.Clone()

	// Same children, same merged content.
	values, err := clone.GetProperty("base.key")
	if err != nil {
		t.Fatalf("GetProperty on clone failed: %v", err)
	}
	if !reflect.DeepEqual(values, []interface{}{1}) {
		t.Fatalf("Expected [1] from clone, got %v", values)
	}

	// Local properties diverge.
	if err := clone.SetProperty("local.key", "cloned"); err != nil {
		t.Fatalf("SetProperty on clone failed: %v", err)
	}
	values, _ = view.GetProperty("local.key")
	if !reflect.DeepEqual(values, []interface{}{"original"}) {
		t.Errorf("Original view changed by clone write: %v", values)
	}

	// Child changes reach both views.
	if err := model.SetProperty("base.key", 2); err != nil {
		t.Fatalf("SetProperty failed: %v", err)
	}
	values, _ = view.GetProperty("base.key")
	if !reflect.DeepEqual(values, []interface{}{2}) {
		t.Errorf("Original missed child change: %v", values)
	}
	values, _ = clone.GetProperty("base.key")
	if !reflect.DeepEqual(values, []interface{}{2}) {
		t.Errorf("Clone missed child change: %v", values)
	}
}

// TestCombinedViewSubtreeAndHandler tests the remaining read surface
func TestCombinedViewSubtreeAndHandler(t *testing.T) {
	view := NewCombinedView(ViewConfig{})
	model := modelWith(t, map[string]interface{}{"server.host": "localhost"})
	if err := view.AddConfiguration(ViewChild{Source: model}); err != nil {
		t.Fatalf("AddConfiguration failed: %v", err)
	}

	sub, err := view.Subtree("server")
	if err != nil {
		t.Fatalf("Subtree failed: %v", err)
	}
	if sub == nil || sub.Name() != "server" {
		t.Fatalf("Expected server subtree, got %v", sub)
	}

	sub, err = view.Subtree("absent")
	if err != nil || sub != nil {
		t.Errorf("Expected nil, nil for absent subtree, got %v, %v", sub, err)
	}

	h, err := view.NodeHandler()
	if err != nil {
		t.Fatalf("NodeHandler failed: %v", err)
	}
	if h.RootNode().Name() != "" {
		t.Errorf("Expected unnamed merged root, got %q", h.RootNode().Name())
	}
}

// TestCombinedViewMarkerMigration tests reader consistency while a value
// moves between two child configurations
func TestCombinedViewMarkerMigration(t *testing.T) {
	combiner := NewUnionCombiner()
	combiner.AddListNode("marker")
	view := NewCombinedView(ViewConfig{Combiner: combiner})

	a := modelWith(t, map[string]interface{}{"flag.marker": "a"})
	b := NewNodeModel(ModelConfig{})
	if err := view.AddConfiguration(ViewChild{Name: "a", Source: a}); err != nil {
		t.Fatalf("AddConfiguration failed: %v", err)
	}
	if err := view.AddConfiguration(ViewChild{Name: "b", Source: b}); err != nil {
		t.Fatalf("AddConfiguration failed: %v", err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				values, err := view.GetProperty("flag.marker")
				if err != nil {
					t.Errorf("GetProperty failed: %v", err)
					return
				}
				// The marker is added to the target before it leaves the
				// origin, so every consistent snapshot holds one or two.
				if len(values) != 1 && len(values) != 2 {
					t.Errorf("Expected 1 or 2 markers, got %v", values)
					return
				}
			}
		}()
	}

	for i := 0; i < 100; i++ {
		if err := b.SetProperty("flag.marker", "b"); err != nil {
			t.Fatalf("SetProperty failed: %v", err)
		}
		a.ClearProperty("flag.marker")
		if err := a.SetProperty("flag.marker", "a"); err != nil {
			t.Fatalf("SetProperty failed: %v", err)
		}
		b.ClearProperty("flag.marker")
	}
	close(stop)
	wg.Wait()

	values, err := view.GetProperty("flag.marker")
	if err != nil {
		t.Fatalf("GetProperty failed: %v", err)
	}
	if !reflect.DeepEqual(values, []interface{}{"a"}) {
		t.Errorf("Expected marker to end in child a, got %v", values)
	}
}

// TestCombinedViewInvalidate tests the explicit invalidation entry point
func TestCombinedViewInvalidate(t *testing.T) {
	view := NewCombinedView(ViewConfig{})
	model := modelWith(t, map[string]interface{}{"k": 1})
	if err := view.AddConfiguration(ViewChild{Source: model}); err != nil {
		t.Fatalf("AddConfiguration failed: %v", err)
	}

	var fired atomic.Int32
	cancel := view.OnChange(func(ChangeEvent) { fired.Add(1) })
	defer cancel()

	if _, err := view.TreeSnapshot(); err != nil {
		t.Fatalf("TreeSnapshot failed: %v", err)
	}
	view.Invalidate()
	if n := fired.Load(); n != 1 {
		t.Errorf("Expected 1 notification, got %d", n)
	}
	// Invalidating a stale view stays silent.
	view.Invalidate()
	if n := fired.Load(); n != 1 {
		t.Errorf("Expected still 1 notification, got %d", n)
	}
}
