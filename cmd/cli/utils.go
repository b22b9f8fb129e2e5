// File loading and saving helpers for the Daphne CLI
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"os"
	"strings"

	"github.com/agilira/daphne"
	"github.com/agilira/go-errors"
)

// loadTree reads and parses a configuration file into a node tree.
func (m *Manager) loadTree(path string, format daphne.ConfigFormat) (*daphne.ConfigNode, error) {
	if format == daphne.FormatUnknown {
		return nil, errors.New(daphne.ErrCodeUnsupportedFormat, "cannot determine configuration format").
			WithContext("path", path)
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the invoking user
	if err != nil {
		return nil, errors.Wrap(err, daphne.ErrCodeInvalidArgument, "failed to read configuration file").
			WithContext("path", path)
	}
	return daphne.NewTreeParser(nil).Parse(data, format)
}

// loadModel parses a configuration file into a node model.
func (m *Manager) loadModel(path string, format daphne.ConfigFormat) (*daphne.InMemoryNodeModel, error) {
	root, err := m.loadTree(path, format)
	if err != nil {
		return nil, err
	}
	return daphne.NewNodeModel(daphne.ModelConfig{Root: root}), nil
}

// saveModel writes a model's tree to path in the given format.
func (m *Manager) saveModel(model *daphne.InMemoryNodeModel, path string, format daphne.ConfigFormat) error {
	root, err := model.TreeSnapshot()
	if err != nil {
		return err
	}
	return daphne.NewTreeWriter(model.Engine()).WriteFileAs(root, path, format)
}

// attachJournal records the source's changes to the configured journal.
// The returned cancel is a no-op when no journal is attached.
func (m *Manager) attachJournal(name string, source daphne.TreeSource) (cancel func()) {
	if m.journal == nil {
		return func() {}
	}
	return m.journal.Attach(name, source)
}

// combinerFor maps a --mode flag to a combiner, with optional list-node
// names from a comma-separated flag value.
func combinerFor(mode, listNodes string) (daphne.NodeCombiner, error) {
	var names []string
	if listNodes != "" {
		for _, name := range strings.Split(listNodes, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	}
	switch strings.ToLower(mode) {
	case "", "union":
		return daphne.NewUnionCombiner(names...), nil
	case "override":
		return daphne.NewOverrideCombiner(names...), nil
	default:
		return nil, errors.New(daphne.ErrCodeInvalidArgument, "unknown combination mode").
			WithContext("mode", mode)
	}
}
