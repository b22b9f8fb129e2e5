// flags.go: command-line flags as a configuration tree
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
//
// SPDX-License-Identifier: MPL-2.0

package daphne

import (
	"strings"

	flashflags "github.com/agilira/flash-flags"
)

// FlagTree converts a parsed flash-flags set into a configuration tree.
// Dashes in flag names become path separators, so --db-pool-size maps to
// the key "db.pool.size". Slice-valued flags become repeated same-named
// children. With changedOnly set, flags still at their default value are
// skipped, which suits a combined view where flags override file
// configuration only when given explicitly.
func FlagTree(fs *flashflags.FlagSet, changedOnly bool) (*ConfigNode, error) {
	model := NewNodeModel(ModelConfig{Synchronizer: &NoOpSynchronizer{}})
	var firstErr error
	fs.VisitAll(func(f *flashflags.Flag) {
		if firstErr != nil {
			return
		}
		if changedOnly && !f.Changed() {
			return
		}
		key := strings.ReplaceAll(f.Name(), "-", ".")
		var err error
		switch v := f.Value().(type) {
		case []string:
			values := make([]interface{}, len(v))
			for i, s := range v {
				values[i] = s
			}
			err = model.AddProperty(key, values...)
		default:
			err = model.SetProperty(key, v)
		}
		if err != nil {
			firstErr = err
		}
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return model.TreeSnapshot()
}
