// env.go: environment variables as a configuration tree
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
//
// SPDX-License-Identifier: MPL-2.0

package daphne

import (
	"os"
	"sort"
	"strings"
)

// EnvTree builds a configuration tree from the environment variables
// carrying the given prefix. The prefix is stripped, the remainder is
// lowercased, and underscores become path separators, so with prefix
// "APP_" the variable APP_DATABASE_HOST=db1 yields the key
// "database.host". Values go through the same scalar typing as flat
// file formats. Variables are visited in sorted order, so the resulting
// tree does not depend on environment iteration order.
//
// The returned tree is a snapshot; later environment changes are not
// reflected. Mount it into a combined view through a node model:
//
//	env := daphne.NewNodeModel(daphne.ModelConfig{Root: daphne.EnvTree("APP_")})
//	view.AddConfiguration(daphne.ViewChild{Name: "env", Source: env})
func EnvTree(prefix string) *ConfigNode {
	var names []string
	for _, entry := range os.Environ() {
		if strings.HasPrefix(entry, prefix) {
			names = append(names, entry)
		}
	}
	sort.Strings(names)

	model := NewNodeModel(ModelConfig{Synchronizer: &NoOpSynchronizer{}})
	for _, entry := range names {
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		if rest == "" {
			continue
		}
		key := strings.ReplaceAll(strings.ToLower(rest), "_", ".")
		_ = model.SetProperty(key, parseScalar(value))
	}
	root, _ := model.TreeSnapshot()
	return root
}
