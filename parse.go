// parse.go: configuration file parsing into node trees
//
// Structured formats (JSON, YAML, TOML) are decoded by real parsers into
// nested maps and converted to trees. Flat formats (INI, Properties) go
// through the line scanners in parse_text.go and have their keys parsed
// by the expression engine, so dotted keys, sibling indices, and
// attribute references nest exactly like programmatic adds.
//
// Map keys starting with "@" carry node metadata instead of children:
// "@name" becomes the attribute "name", a bare "@" carries the node's
// own value. Trees written by TreeWriter use the same convention, so
// structured files round-trip attributes and mixed value/child nodes.
// Map keys are visited in sorted order; maps carry no reliable order of
// their own, so sorting keeps parse results reproducible.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
//
// SPDX-License-Identifier: MPL-2.0

package daphne

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/agilira/go-errors"
	"go.yaml.in/yaml/v3"
)

// attributeKeyPrefix marks attribute entries in the map form of a tree.
const attributeKeyPrefix = "@"

// TreeParser parses configuration file content into node trees. The
// engine is used to interpret the keys of flat formats; structured
// formats do not consult it.
type TreeParser struct {
	engine ExpressionEngine
}

// NewTreeParser creates a parser. A nil engine selects the default
// dotted syntax.
func NewTreeParser(engine ExpressionEngine) *TreeParser {
	if engine == nil {
		engine = NewDefaultExpressionEngine()
	}
	return &TreeParser{engine: engine}
}

// Parse parses data in the given format into an unnamed root node.
func (p *TreeParser) Parse(data []byte, format ConfigFormat) (*ConfigNode, error) {
	switch format {
	case FormatJSON:
		return parseJSONTree(data)
	case FormatYAML:
		return parseYAMLTree(data)
	case FormatTOML:
		return parseTOMLTree(data)
	case FormatINI:
		return p.flatTree(parseINIPairs(data, p.delimiter()))
	case FormatProperties:
		return p.flatTree(parsePropertiesPairs(data))
	default:
		return nil, errors.New(ErrCodeUnsupportedFormat, "unsupported configuration format").
			WithContext("format", format.String())
	}
}

// ParseFile reads and parses a configuration file, detecting the format
// from the file extension.
func (p *TreeParser) ParseFile(path string) (*ConfigNode, error) {
	format := DetectFormat(path)
	if format == FormatUnknown {
		return nil, errors.New(ErrCodeUnsupportedFormat, "cannot detect configuration format").
			WithContext("path", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidArgument, "failed to read configuration file").
			WithContext("path", path)
	}
	return p.Parse(data, format)
}

// ParseTree parses data with the default engine.
func ParseTree(data []byte, format ConfigFormat) (*ConfigNode, error) {
	return NewTreeParser(nil).Parse(data, format)
}

// LoadFile parses a configuration file into a fresh node model with the
// default engine.
func LoadFile(path string) (*InMemoryNodeModel, error) {
	root, err := NewTreeParser(nil).ParseFile(path)
	if err != nil {
		return nil, err
	}
	return NewNodeModel(ModelConfig{Root: root}), nil
}

func parseJSONTree(data []byte) (*ConfigNode, error) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidArgument, "invalid JSON document")
	}
	return rootFromValue(raw), nil
}

func parseYAMLTree(data []byte) (*ConfigNode, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidArgument, "invalid YAML document")
	}
	return rootFromValue(raw), nil
}

func parseTOMLTree(data []byte) (*ConfigNode, error) {
	raw := make(map[string]interface{})
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidArgument, "invalid TOML document")
	}
	return mapToTree("", raw), nil
}

// rootFromValue turns a decoded document into an unnamed root. Documents
// whose top level is not a mapping become a root carrying the value.
func rootFromValue(raw interface{}) *ConfigNode {
	switch tv := raw.(type) {
	case nil:
		return NewNode("").Create()
	case map[string]interface{}:
		return mapToTree("", tv)
	case map[interface{}]interface{}:
		return mapToTree("", stringifyKeys(tv))
	default:
		return NewNode("").Value(raw).Create()
	}
}

// mapToTree converts one nested map into a node. "@"-prefixed keys become
// attributes, a bare "@" the node value, everything else children.
func mapToTree(name string, m map[string]interface{}) *ConfigNode {
	b := NewNode(name)
	for _, key := range sortedMapKeys(m) {
		v := m[key]
		if strings.HasPrefix(key, attributeKeyPrefix) {
			if attr := key[len(attributeKeyPrefix):]; attr != "" {
				b.AddAttribute(attr, v)
			} else {
				b.Value(v)
			}
			continue
		}
		b.AddChildren(valueToNodes(key, v)...)
	}
	return b.Create()
}

// valueToNodes converts one map entry into child nodes. Slices fan out
// into repeated same-named siblings in element order.
func valueToNodes(name string, v interface{}) []*ConfigNode {
	switch tv := v.(type) {
	case map[string]interface{}:
		return []*ConfigNode{mapToTree(name, tv)}
	case map[interface{}]interface{}:
		return []*ConfigNode{mapToTree(name, stringifyKeys(tv))}
	case []interface{}:
		var nodes []*ConfigNode
		for _, item := range tv {
			nodes = append(nodes, valueToNodes(name, item)...)
		}
		return nodes
	default:
		return []*ConfigNode{NewNode(name).Value(v).Create()}
	}
}

// flatTree builds a tree by replaying flat key/value pairs through a node
// model, so the engine's key syntax applies to parsed keys.
func (p *TreeParser) flatTree(pairs []flatPair) (*ConfigNode, error) {
	model := NewNodeModel(ModelConfig{Engine: p.engine, Synchronizer: &NoOpSynchronizer{}})
	for _, pair := range pairs {
		if err := model.AddProperty(pair.key, pair.value); err != nil {
			return nil, errors.Wrap(err, ErrCodeInvalidArgument, "invalid configuration key").
				WithContext("key", pair.key)
		}
	}
	root, err := model.TreeSnapshot()
	if err != nil {
		return nil, err
	}
	return root, nil
}

// delimiter returns the engine's path delimiter for section joining in
// flat formats. Engines not exposing symbols fall back to the default.
func (p *TreeParser) delimiter() string {
	if de, ok := p.engine.(*DefaultExpressionEngine); ok {
		return de.Symbols().PropertyDelimiter
	}
	return DefaultSymbols().PropertyDelimiter
}

func sortedMapKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringifyKeys(m map[interface{}]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[fmt.Sprint(k)] = v
	}
	return out
}
