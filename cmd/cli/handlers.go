// Command handlers for the Daphne CLI
//
// Each handler loads a tree from disk, operates on it through the node
// model, and writes it back atomically when the command mutates.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/agilira/daphne"
	icli "github.com/agilira/daphne/internal/cli"
	"github.com/agilira/go-errors"
	"github.com/agilira/orpheus/pkg/orpheus"
)

// handleTreeGet prints the values stored at a key.
func (m *Manager) handleTreeGet(ctx *orpheus.Context) error {
	filePath := ctx.GetArg(0)
	key := ctx.GetArg(1)
	if filePath == "" || key == "" {
		return errors.New(daphne.ErrCodeInvalidArgument, "usage: tree get <file> <key>")
	}

	format := icli.ResolveFormat(filePath, ctx.GetFlagString("format"))
	model, err := m.loadModel(filePath, format)
	if err != nil {
		return err
	}

	values := model.GetProperty(key)
	if values == nil {
		return errors.New(daphne.ErrCodeInvalidArgument, fmt.Sprintf("key '%s' not found", key))
	}
	fmt.Println(icli.FormatValues(values))
	return nil
}

// handleTreeSet sets or appends a value at a key and saves atomically.
// A missing file starts from an empty tree.
func (m *Manager) handleTreeSet(ctx *orpheus.Context) error {
	filePath := ctx.GetArg(0)
	key := ctx.GetArg(1)
	rawValue := ctx.GetArg(2)
	if filePath == "" || key == "" || rawValue == "" {
		return errors.New(daphne.ErrCodeInvalidArgument, "usage: tree set <file> <key> <value>")
	}

	format := icli.ResolveFormat(filePath, ctx.GetFlagString("format"))
	var model *daphne.InMemoryNodeModel
	if _, statErr := os.Stat(filePath); os.IsNotExist(statErr) {
		model = daphne.NewNodeModel(daphne.ModelConfig{})
	} else {
		loaded, err := m.loadModel(filePath, format)
		if err != nil {
			return err
		}
		model = loaded
	}

	detach := m.attachJournal(filePath, model)
	defer detach()

	value := icli.ParseValue(rawValue)
	if ctx.GetFlagBool("add") {
		if err := model.AddProperty(key, value); err != nil {
			return err
		}
	} else {
		if err := model.SetProperty(key, value); err != nil {
			return err
		}
	}

	if err := m.saveModel(model, filePath, format); err != nil {
		return err
	}
	fmt.Printf("Set %s = %v in %s\n", key, value, filePath)
	return nil
}

// handleTreeDelete removes a value or subtree and saves atomically.
func (m *Manager) handleTreeDelete(ctx *orpheus.Context) error {
	filePath := ctx.GetArg(0)
	key := ctx.GetArg(1)
	if filePath == "" || key == "" {
		return errors.New(daphne.ErrCodeInvalidArgument, "usage: tree delete <file> <key>")
	}

	format := icli.ResolveFormat(filePath, ctx.GetFlagString("format"))
	model, err := m.loadModel(filePath, format)
	if err != nil {
		return err
	}

	detach := m.attachJournal(filePath, model)
	defer detach()

	if ctx.GetFlagBool("subtree") {
		if removed := model.ClearTree(key); removed == 0 {
			return errors.New(daphne.ErrCodeInvalidArgument, fmt.Sprintf("key '%s' not found", key))
		}
	} else {
		if model.GetProperty(key) == nil {
			return errors.New(daphne.ErrCodeInvalidArgument, fmt.Sprintf("key '%s' not found", key))
		}
		model.ClearProperty(key)
	}

	if err := m.saveModel(model, filePath, format); err != nil {
		return err
	}
	fmt.Printf("Deleted %s from %s\n", key, filePath)
	return nil
}

// handleTreeList lists keys and their values, optionally filtered by
// prefix.
func (m *Manager) handleTreeList(ctx *orpheus.Context) error {
	filePath := ctx.GetArg(0)
	if filePath == "" {
		return errors.New(daphne.ErrCodeInvalidArgument, "usage: tree list <file>")
	}
	prefix := ctx.GetFlagString("prefix")

	format := icli.ResolveFormat(filePath, ctx.GetFlagString("format"))
	model, err := m.loadModel(filePath, format)
	if err != nil {
		return err
	}

	var keys []string
	for _, key := range model.Keys() {
		if prefix == "" || hasKeyPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		if prefix != "" {
			fmt.Printf("No keys found with prefix '%s'\n", prefix)
		} else {
			fmt.Println("No configuration keys found")
		}
		return nil
	}

	fmt.Printf("Configuration keys in %s:\n", filePath)
	for _, key := range keys {
		fmt.Printf("  %s = %s\n", key, icli.FormatValues(model.GetProperty(key)))
	}
	return nil
}

// handleTreeMerge combines two tree files into an output file. Union
// keeps the first file's value on conflicts, override the second's.
func (m *Manager) handleTreeMerge(ctx *orpheus.Context) error {
	basePath := ctx.GetArg(0)
	overridePath := ctx.GetArg(1)
	outputPath := ctx.GetArg(2)
	if basePath == "" || overridePath == "" || outputPath == "" {
		return errors.New(daphne.ErrCodeInvalidArgument, "usage: tree merge <base> <override> <output>")
	}

	combiner, err := combinerFor(ctx.GetFlagString("mode"), ctx.GetFlagString("list-nodes"))
	if err != nil {
		return err
	}

	baseTree, err := m.loadTree(basePath, daphne.DetectFormat(basePath))
	if err != nil {
		return err
	}
	overrideTree, err := m.loadTree(overridePath, daphne.DetectFormat(overridePath))
	if err != nil {
		return err
	}

	merged := combiner.Combine(baseTree, overrideTree)
	outFormat := daphne.DetectFormat(outputPath)
	if outFormat == daphne.FormatUnknown {
		return errors.New(daphne.ErrCodeUnsupportedFormat, "cannot determine output format").
			WithContext("path", outputPath)
	}
	if err := daphne.NewTreeWriter(nil).WriteFileAs(merged, outputPath, outFormat); err != nil {
		return err
	}
	fmt.Printf("Merged %s + %s -> %s (%s)\n", basePath, overridePath, outputPath, ctx.GetFlagString("mode"))
	return nil
}

// handleTreeConvert rewrites a tree file in another format.
func (m *Manager) handleTreeConvert(ctx *orpheus.Context) error {
	inputPath := ctx.GetArg(0)
	outputPath := ctx.GetArg(1)
	if inputPath == "" || outputPath == "" {
		return errors.New(daphne.ErrCodeInvalidArgument, "usage: tree convert <input> <output>")
	}

	fromFormat := icli.ResolveFormat(inputPath, ctx.GetFlagString("from"))
	toFormat := icli.ResolveFormat(outputPath, ctx.GetFlagString("to"))
	if toFormat == daphne.FormatUnknown {
		return errors.New(daphne.ErrCodeUnsupportedFormat, "cannot determine output format").
			WithContext("path", outputPath)
	}

	root, err := m.loadTree(inputPath, fromFormat)
	if err != nil {
		return err
	}
	if err := daphne.NewTreeWriter(nil).WriteFileAs(root, outputPath, toFormat); err != nil {
		return err
	}
	fmt.Printf("Converted %s (%s) -> %s (%s)\n",
		inputPath, fromFormat.String(), outputPath, toFormat.String())
	return nil
}

// handleTreeSources builds a combined view over the given files and
// reports which of them define a key, in precedence order.
func (m *Manager) handleTreeSources(ctx *orpheus.Context) error {
	key := ctx.GetArg(0)
	if key == "" || ctx.GetArg(1) == "" {
		return errors.New(daphne.ErrCodeInvalidArgument, "usage: tree sources <key> <file>...")
	}

	combiner, err := combinerFor(ctx.GetFlagString("mode"), "")
	if err != nil {
		return err
	}
	view := daphne.NewCombinedView(daphne.ViewConfig{Combiner: combiner})

	for i := 1; ctx.GetArg(i) != ""; i++ {
		filePath := ctx.GetArg(i)
		model, err := m.loadModel(filePath, daphne.DetectFormat(filePath))
		if err != nil {
			return err
		}
		if err := view.AddConfiguration(daphne.ViewChild{Name: filePath, Source: model}); err != nil {
			return err
		}
	}

	sources := view.GetSources(key)
	if len(sources) == 0 {
		fmt.Printf("Key '%s' is not defined by any of the files\n", key)
		return nil
	}

	children := view.Configurations()
	fmt.Printf("Key '%s' is defined by:\n", key)
	for _, source := range sources {
		for _, child := range children {
			if child.Source == source {
				fmt.Printf("  %s\n", child.Name)
				break
			}
		}
	}
	return nil
}

// handleJournalRecent prints the newest records of a change journal.
func (m *Manager) handleJournalRecent(ctx *orpheus.Context) error {
	journalPath := ctx.GetArg(0)
	if journalPath == "" {
		return errors.New(daphne.ErrCodeInvalidArgument, "usage: journal recent <journal-file>")
	}

	journal, err := daphne.NewChangeJournal(daphne.JournalConfig{
		OutputFile:    journalPath,
		FlushInterval: -1,
	})
	if err != nil {
		return err
	}
	defer func() { _ = journal.Close() }()

	records, err := journal.Recent(ctx.GetFlagInt("limit"))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No journal records found")
		return nil
	}

	for _, record := range records {
		line := fmt.Sprintf("%s  %-6s %s", record.Timestamp.Format(time.RFC3339), record.Op, record.Key)
		if len(record.Values) > 0 {
			line += " = " + icli.FormatValues(record.Values)
		}
		if record.Source != "" {
			line += "  (" + record.Source + ")"
		}
		fmt.Println(line)
	}
	return nil
}

// handleJournalStats prints journal statistics.
func (m *Manager) handleJournalStats(ctx *orpheus.Context) error {
	journalPath := ctx.GetArg(0)
	if journalPath == "" {
		return errors.New(daphne.ErrCodeInvalidArgument, "usage: journal stats <journal-file>")
	}

	journal, err := daphne.NewChangeJournal(daphne.JournalConfig{
		OutputFile:    journalPath,
		FlushInterval: -1,
	})
	if err != nil {
		return err
	}
	defer func() { _ = journal.Close() }()

	stats, err := journal.Stats()
	if err != nil {
		return err
	}

	fmt.Printf("Journal: %s\n", journalPath)
	fmt.Printf("  Records: %d\n", stats.TotalRecords)
	for op, count := range stats.RecordsByOp {
		fmt.Printf("    %s: %d\n", op, count)
	}
	if stats.OldestRecord != nil && stats.NewestRecord != nil {
		fmt.Printf("  Range: %s - %s\n",
			stats.OldestRecord.Format(time.RFC3339), stats.NewestRecord.Format(time.RFC3339))
	}
	fmt.Printf("  Size: %d bytes\n", stats.SizeBytes)
	return nil
}

// handleInfo displays system information and diagnostics.
func (m *Manager) handleInfo(ctx *orpheus.Context) error {
	fmt.Printf("Daphne Configuration Tree Management\n")
	fmt.Printf("Version: 1.0.0\n")

	if ctx.GetFlagBool("verbose") {
		fmt.Printf("\nSupported formats: JSON, YAML, TOML, INI, Properties\n")
		fmt.Printf("Change journal: %v\n", m.journal != nil)
	}
	return nil
}

// handleCompletion generates shell completion scripts.
func (m *Manager) handleCompletion(ctx *orpheus.Context) error {
	shell := ctx.GetArg(0)

	switch shell {
	case "bash":
		fmt.Printf("# Bash completion for daphne\n")
		fmt.Printf("# Add to ~/.bashrc: source <(daphne completion bash)\n")
		fmt.Printf("_daphne_completion() {\n")
		fmt.Printf("  COMPREPLY=($(compgen -W 'tree journal info completion' -- \"${COMP_WORDS[COMP_CWORD]}\"))\n")
		fmt.Printf("}\n")
		fmt.Printf("complete -F _daphne_completion daphne\n")
	case "zsh":
		fmt.Printf("# Zsh completion for daphne\n")
		fmt.Printf("# Add to ~/.zshrc: source <(daphne completion zsh)\n")
		fmt.Printf("#compdef daphne\n")
		fmt.Printf("_daphne() {\n")
		fmt.Printf("  _arguments '1: :(tree journal info completion)'\n")
		fmt.Printf("}\n")
	case "fish":
		fmt.Printf("# Fish completion for daphne\n")
		fmt.Printf("complete -c daphne -f -a 'tree journal info completion'\n")
	default:
		return errors.New(daphne.ErrCodeInvalidArgument, fmt.Sprintf("unsupported shell: %s", shell))
	}
	return nil
}

// hasKeyPrefix reports whether key falls under prefix in dotted syntax:
// either equal to it or a descendant of it.
func hasKeyPrefix(key, prefix string) bool {
	if key == prefix {
		return true
	}
	return len(key) > len(prefix) && key[:len(prefix)] == prefix &&
		(key[len(prefix)] == '.' || key[len(prefix)] == '(')
}
