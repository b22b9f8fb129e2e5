// Package daphne provides a hierarchical configuration engine for Go
// applications, combining an immutable node tree model, a bidirectional
// key expression engine, and lock-coordinated combined views in a
// single, cohesive system.
//
// # Philosophy: Configuration as a Tree
//
// Daphne is built on the principle that configuration is a tree, not a
// flat map. Values live at nodes, nodes carry attributes and repeated
// same-named children, and every read or write addresses the tree
// through key expressions that survive a round trip through any
// supported file format.
//
// # Architecture Overview
//
// Daphne consists of six integrated subsystems:
//  1. **Immutable Node Trees**: Persistent structures with copy-on-write updates
//  2. **Expression Engine**: Bidirectional key <-> tree-path resolution with sibling indices
//  3. **In-Memory Node Model**: Lock-coordinated reads and writes over a shared tree
//  4. **Node Tracking**: Stable references to subtrees that survive unrelated updates
//  5. **Combiners and Views**: Union/override merging of many sources into one tree
//  6. **Change Journal**: Buffered mutation logging with SQLite and JSONL backends
//
// # The Node Model
//
// A model wraps a tree and gives it keyed access. Writes never mutate
// shared nodes; each update builds a new tree that shares every
// untouched branch with its predecessor, so concurrent readers keep a
// consistent snapshot for as long as they hold it.
//
//	model, err := daphne.LoadFile("config.yml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	names := model.GetProperty("tables.table.name")         // all table names
//	first := model.GetProperty("tables.table(0).fields.field(3).name")
//
//	model.SetProperty("server.port", 9090)
//	model.AddProperty("server.hosts", "alpha", "beta")      // repeated values
//	model.ClearTree("tables.table(1)")                      // drop a subtree
//
// Key syntax supports dotted paths, sibling indices in parentheses, and
// attributes:
//   - "server.port" - child traversal
//   - "tables.table(1)" - second table sibling
//   - "connection[@timeout]" - attribute access
//   - "a..b" via escaping when names contain the delimiter
//
// # Tracking Nodes
//
// Long-lived components can pin a subtree and keep addressing it while
// the surrounding tree changes. A tracked node that gets structurally
// removed detaches: it freezes at its last value and further writes
// through the tracker no longer affect the original model.
//
//	tracked, err := model.TrackedModel(daphne.NewNodeSelector("services.auth"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer tracked.Close()
//	timeout := tracked.GetProperty("timeout")
//	tracked.SetProperty("retries", 5)
//
// # Combined Views
//
// A combined view merges any number of sources into one lazily rebuilt
// tree. Union keeps the first definition on conflicts, override the
// last; list nodes opt out of pairwise merging. Views are sources
// themselves, so views nest.
//
//	view := daphne.NewCombinedView(daphne.ViewConfig{
//		Combiner: daphne.NewOverrideCombiner(),
//	})
//	view.AddConfiguration(daphne.ViewChild{Name: "defaults", Source: defaults})
//	view.AddConfiguration(daphne.ViewChild{Name: "site", Source: site})
//	view.AddConfiguration(daphne.ViewChild{Name: "env", Source: envModel, At: "runtime"})
//
//	port, err := view.GetProperty("server.port")
//	origin, err := view.GetSource("server.port")   // provenance
//
// Child changes invalidate the merged tree; the next read rebuilds it.
// Invalidation is coalesced, so a burst of child updates costs one
// rebuild, not many.
//
// # Universal Format Support
//
// Trees parse from and serialize to the common configuration formats
// with zero configuration:
//   - JSON (.json) - maps to nested nodes, arrays to repeated siblings
//   - YAML (.yml, .yaml) - same conventions as JSON
//   - TOML (.toml) - tables and array tables
//   - INI (.ini, .conf, .cfg) - sections as nodes, repeated sections indexed
//   - Properties (.properties) - keys rendered through the expression engine
//
//	root, err := daphne.ParseTree(data, daphne.FormatYAML)
//	out, err := daphne.WriteTree(root, daphne.FormatTOML)
//
// Attributes use the "@" key convention in structured formats: "@name"
// is an attribute, a bare "@" is the node's own value when it also has
// children.
//
// # Typed Decoding
//
// Subtrees decode into structs through mapstructure with weak typing,
// duration parsing, and comma-separated slice support:
//
//	var server struct {
//		Host    string        `config:"host"`
//		Port    int           `config:"port"`
//		Timeout time.Duration `config:"timeout"`
//	}
//	err := model.Decode("server", &server)
//
// # Environment and Flag Sources
//
// Environment variables and command-line flags become trees, so they
// layer into combined views like any file:
//
//	env := daphne.EnvTree("MYAPP_")                   // MYAPP_SERVER_PORT=8080
//	flags, err := daphne.FlagTree(flagSet, true)      // changed flags only
//	view.AddConfiguration(daphne.ViewChild{
//		Name:   "env",
//		Source: daphne.NewNodeModel(daphne.ModelConfig{Root: env}),
//	})
//
// # Change Journal
//
// Every mutation can be recorded to a buffered journal with SHA-256
// record checksums, timecache timestamps, and a choice of backends:
// SQLite for queryable history, JSONL for log shipping.
//
//	journal, err := daphne.NewChangeJournal(daphne.JournalConfig{
//		OutputFile:    "/var/log/daphne/changes.db",
//		BufferSize:    256,
//		FlushInterval: 5 * time.Second,
//	})
//	defer journal.Close()
//	detach := journal.Attach("app-config", model)
//	defer detach()
//
// # Thread Safety and Concurrency
//
// All daphne components are safe for concurrent use:
//   - Models guard reads with a read lock and writes with a write lock
//   - Trees are immutable, so snapshots stay consistent without locks
//   - Listener callbacks run after locks release, so callbacks may
//     freely read the model or view that notified them
//   - Views coalesce invalidation and rebuild on demand under their own lock
//
// # Error Handling
//
// Errors carry structured codes and context:
//   - Structured error codes (DAPHNE_INVALID_ARGUMENT, DAPHNE_AMBIGUOUS_SOURCE, ...)
//   - Context fields naming the key, path, or format involved
//   - Construction failures in views name the failing child source
//
// # Getting Started
//
// For detailed examples and documentation:
//   - examples/cli/ - Complete Orpheus-powered command-line interface
//   - cmd/cli/ - The CLI manager package for embedding
//
// Repository: https://github.com/agilira/daphne
package daphne
