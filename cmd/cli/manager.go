// Package cli provides the command-line interface for Daphne tree management.
//
// This package implements the CLI on the Orpheus framework with git-style
// subcommands over hierarchical configuration trees.
//
// Architecture:
// - Manager: CLI orchestration and command routing
// - Handlers: individual command implementations over the node model
// - Utils: shared file loading and saving around the tree parsers
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"github.com/agilira/daphne"
	"github.com/agilira/orpheus/pkg/orpheus"
)

// Manager provides CLI operations over Daphne configuration trees.
// Built on the Orpheus framework for fast command routing.
type Manager struct {
	app     *orpheus.App
	journal *daphne.ChangeJournal // Optional change journal integration
}

// NewManager creates a CLI manager with the full command tree registered.
func NewManager() *Manager {
	app := orpheus.New("daphne").
		SetDescription("Hierarchical configuration tree management").
		SetVersion("1.0.0")

	manager := &Manager{
		app: app,
	}

	manager.setupTreeCommands()
	manager.setupJournalCommands()
	manager.setupUtilityCommands()

	return manager
}

// WithJournal attaches a change journal; tree mutations made through the
// CLI are then recorded to it.
func (m *Manager) WithJournal(journal *daphne.ChangeJournal) *Manager {
	m.journal = journal
	return m
}

// Run executes the CLI application with the provided arguments.
func (m *Manager) Run(args []string) error {
	return m.app.Run(args)
}

// Command Setup Methods

// setupTreeCommands configures the 'tree' command group for file-backed
// tree operations: get, set, delete, list, merge, convert and sources.
func (m *Manager) setupTreeCommands() {
	treeCmd := orpheus.NewCommand("tree", "Configuration tree operations")

	// tree get <file> <key> [--format=auto]
	getCmd := treeCmd.Subcommand("get", "Get the values at a key", m.handleTreeGet)
	getCmd.AddFlag("format", "f", "auto", "File format (auto|json|yaml|toml|ini|properties)")

	// tree set <file> <key> <value> [--format=auto] [--add]
	setCmd := treeCmd.Subcommand("set", "Set the value at a key", m.handleTreeSet)
	setCmd.AddFlag("format", "f", "auto", "File format (auto|json|yaml|toml|ini|properties)")
	setCmd.AddBoolFlag("add", "a", false, "Append as an additional value instead of replacing")

	// tree delete <file> <key> [--format=auto] [--subtree]
	deleteCmd := treeCmd.Subcommand("delete", "Delete the value at a key", m.handleTreeDelete)
	deleteCmd.AddFlag("format", "f", "auto", "File format (auto|json|yaml|toml|ini|properties)")
	deleteCmd.AddBoolFlag("subtree", "s", false, "Remove the whole subtree, not just the value")

	// tree list <file> [--prefix=] [--format=auto]
	listCmd := treeCmd.Subcommand("list", "List keys and values", m.handleTreeList)
	listCmd.AddFlag("prefix", "p", "", "Key prefix filter")
	listCmd.AddFlag("format", "f", "auto", "File format (auto|json|yaml|toml|ini|properties)")

	// tree merge <fileA> <fileB> <output> [--mode=union]
	mergeCmd := treeCmd.Subcommand("merge", "Merge two trees into one", m.handleTreeMerge)
	mergeCmd.AddFlag("mode", "m", "union", "Combination mode (union|override)")
	mergeCmd.AddFlag("list-nodes", "l", "", "Comma-separated names treated as list nodes")

	// tree convert <input> <output> [--from=auto] [--to=auto]
	convertCmd := treeCmd.Subcommand("convert", "Convert a tree between formats", m.handleTreeConvert)
	convertCmd.AddFlag("from", "", "auto", "Input format (auto|json|yaml|toml|ini|properties)")
	convertCmd.AddFlag("to", "", "auto", "Output format (auto|json|yaml|toml|ini|properties)")

	// tree sources <key> <file>... [--mode=union]
	sourcesCmd := treeCmd.Subcommand("sources", "Show which files define a key", m.handleTreeSources)
	sourcesCmd.AddFlag("mode", "m", "union", "Combination mode (union|override)")

	m.app.AddCommand(treeCmd)
}

// setupJournalCommands configures the 'journal' command group for
// inspecting change journals.
func (m *Manager) setupJournalCommands() {
	journalCmd := orpheus.NewCommand("journal", "Change journal inspection")

	recentCmd := journalCmd.Subcommand("recent", "Show the newest journal records", m.handleJournalRecent)
	recentCmd.AddIntFlag("limit", "l", 20, "Maximum records to show")

	journalCmd.Subcommand("stats", "Show journal statistics", m.handleJournalStats)

	m.app.AddCommand(journalCmd)
}

// setupUtilityCommands configures diagnostics and shell integration.
func (m *Manager) setupUtilityCommands() {
	infoCmd := orpheus.NewCommand("info", "System information and diagnostics")
	infoCmd.SetHandler(m.handleInfo)
	infoCmd.AddBoolFlag("verbose", "v", false, "Verbose system information")
	m.app.AddCommand(infoCmd)

	completionCmd := orpheus.NewCommand("completion", "Generate shell completion scripts")
	completionCmd.SetHandler(m.handleCompletion)
	m.app.AddCommand(completionCmd)
}
