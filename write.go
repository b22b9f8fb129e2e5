// write.go: serializing node trees back into configuration files
//
// Structured formats invert the map conventions of parse.go: attributes
// become "@"-prefixed keys, a node carrying both a value and children
// stores the value under a bare "@", repeated same-named children become
// arrays. Flat formats render one line per value through the expression
// engine, so indices and attribute references survive a round trip;
// sibling sections are disambiguated by indexed section headers like
// "[server(1)]".
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
//
// SPDX-License-Identifier: MPL-2.0

package daphne

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/agilira/go-errors"
	"go.yaml.in/yaml/v3"
)

// TreeWriter serializes node trees into configuration file content. The
// engine renders keys for flat formats; structured formats do not
// consult it.
type TreeWriter struct {
	engine ExpressionEngine
}

// NewTreeWriter creates a writer. A nil engine selects the default
// dotted syntax.
func NewTreeWriter(engine ExpressionEngine) *TreeWriter {
	if engine == nil {
		engine = NewDefaultExpressionEngine()
	}
	return &TreeWriter{engine: engine}
}

// Write serializes the tree in the given format.
func (w *TreeWriter) Write(root *ConfigNode, format ConfigFormat) ([]byte, error) {
	if root == nil {
		return nil, errors.New(ErrCodeInvalidNode, "cannot serialize a nil tree")
	}
	switch format {
	case FormatJSON:
		return writeJSONTree(root)
	case FormatYAML:
		return writeYAMLTree(root)
	case FormatTOML:
		return writeTOMLTree(root)
	case FormatINI:
		return w.writeINITree(root)
	case FormatProperties:
		return w.writePropertiesTree(root)
	default:
		return nil, errors.New(ErrCodeUnsupportedFormat, "unsupported configuration format").
			WithContext("format", format.String())
	}
}

// WriteFile serializes the tree and writes it to path atomically,
// detecting the format from the file extension.
func (w *TreeWriter) WriteFile(root *ConfigNode, path string) error {
	format := DetectFormat(path)
	if format == FormatUnknown {
		return errors.New(ErrCodeUnsupportedFormat, "cannot detect configuration format").
			WithContext("path", path)
	}
	return w.WriteFileAs(root, path, format)
}

// WriteFileAs serializes the tree in the given format and writes it to
// path atomically. The data is written to a temporary file in the same
// directory and renamed over the target, so a crash mid-write never
// leaves a truncated file behind.
func (w *TreeWriter) WriteFileAs(root *ConfigNode, path string, format ConfigFormat) error {
	data, err := w.Write(root, format)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tempPath := filepath.Join(dir, fmt.Sprintf(".%s.tmp.%d", filepath.Base(path), time.Now().UnixNano()))
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return errors.Wrap(err, ErrCodeInvalidArgument, "failed to write temporary file").
			WithContext("path", tempPath)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrap(err, ErrCodeInvalidArgument, "failed to replace configuration file").
			WithContext("path", path)
	}
	return nil
}

// WriteTree serializes the tree with the default engine.
func WriteTree(root *ConfigNode, format ConfigFormat) ([]byte, error) {
	return NewTreeWriter(nil).Write(root, format)
}

// SaveFile writes a model's current tree to a configuration file,
// detecting the format from the file extension.
func SaveFile(model *InMemoryNodeModel, path string) error {
	root, err := model.TreeSnapshot()
	if err != nil {
		return err
	}
	return NewTreeWriter(nil).WriteFile(root, path)
}

func writeJSONTree(root *ConfigNode) ([]byte, error) {
	data, err := json.MarshalIndent(treeToMap(root), "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidNode, "tree is not representable as JSON")
	}
	return append(data, '\n'), nil
}

func writeYAMLTree(root *ConfigNode) ([]byte, error) {
	data, err := yaml.Marshal(treeToMap(root))
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidNode, "tree is not representable as YAML")
	}
	return data, nil
}

func writeTOMLTree(root *ConfigNode) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(treeToMap(root)); err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidNode, "tree is not representable as TOML")
	}
	return buf.Bytes(), nil
}

// writeINITree renders leaf children of the root as global lines and
// every other child as a section. Section headers are rendered through
// the engine, so repeated sections get sibling indices that parse back
// into separate nodes. Root attributes and section node values have no
// INI representation and are skipped.
func (w *TreeWriter) writeINITree(root *ConfigNode) ([]byte, error) {
	handler := NewTreeHandler(root)
	cache := make(map[*ConfigNode]string)
	var global, sections []string
	for _, child := range root.Children() {
		if child.ChildCount() == 0 && child.AttributeCount() == 0 {
			global = append(global, w.engine.NodeKey(child, cache, handler)+"="+formatScalar(child.Value()))
			continue
		}
		sections = append(sections, "["+w.engine.NodeKey(child, cache, handler)+"]")
		for _, pair := range keyValues(child, w.engine) {
			sections = append(sections, pair.key+"="+formatScalar(pair.value))
		}
		sections = append(sections, "")
	}
	lines := append(global, sections...)
	return []byte(strings.Join(lines, "\n") + "\n"), nil
}

// writePropertiesTree renders one key=value line per value-bearing node
// and attribute, in document order.
func (w *TreeWriter) writePropertiesTree(root *ConfigNode) ([]byte, error) {
	var lines []string
	for _, pair := range keyValues(root, w.engine) {
		lines = append(lines, pair.key+"="+formatScalar(pair.value))
	}
	return []byte(strings.Join(lines, "\n") + "\n"), nil
}

// treeToMap converts a node into the nested map form used by structured
// formats. The conversion inverts mapToTree.
func treeToMap(n *ConfigNode) map[string]interface{} {
	m := make(map[string]interface{}, n.ChildCount()+n.AttributeCount()+1)
	if v := n.Value(); v != nil {
		m[attributeKeyPrefix] = v
	}
	for _, key := range n.AttributeKeys() {
		v, _ := n.Attribute(key)
		m[attributeKeyPrefix+key] = v
	}

	var order []string
	groups := make(map[string][]*ConfigNode)
	for _, c := range n.Children() {
		if _, seen := groups[c.Name()]; !seen {
			order = append(order, c.Name())
		}
		groups[c.Name()] = append(groups[c.Name()], c)
	}
	for _, name := range order {
		group := groups[name]
		if len(group) == 1 {
			m[name] = nodeToValue(group[0])
			continue
		}
		list := make([]interface{}, len(group))
		for i, c := range group {
			list[i] = nodeToValue(c)
		}
		m[name] = list
	}
	return m
}

// nodeToValue renders a plain leaf as its scalar and everything else as
// a nested map.
func nodeToValue(n *ConfigNode) interface{} {
	if n.ChildCount() == 0 && n.AttributeCount() == 0 {
		return n.Value()
	}
	return treeToMap(n)
}

func formatScalar(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
