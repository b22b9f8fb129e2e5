// expression_engine.go: Bidirectional mapping between key strings and tree paths
//
// The engine owns the key syntax. The default symbols give keys like
// "tables.table(1).fields.field(0)[@type]": "." separates path segments,
// "\." escapes a literal dot inside a name, "(i)" selects the i-th sibling
// with the same name (0-based), and "[@name]" addresses an attribute.
// Swapping the symbol table (for example to "/" with "[i]" indices) changes
// the syntax without touching resolution semantics.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package daphne

import (
	"strconv"
	"strings"

	"github.com/agilira/go-errors"
)

// ExpressionEngineSymbols defines the tokens of a key syntax.
type ExpressionEngineSymbols struct {
	// PropertyDelimiter separates path segments ("." by default).
	PropertyDelimiter string

	// EscapedDelimiter stands for a literal delimiter inside a node name
	// ("\." by default).
	EscapedDelimiter string

	// IndexStart and IndexEnd wrap a numeric sibling index ("(" and ")").
	IndexStart string
	IndexEnd   string

	// AttributeStart and AttributeEnd wrap an attribute name ("[@" and "]").
	AttributeStart string
	AttributeEnd   string
}

// DefaultSymbols returns the standard dotted key syntax:
// delimiter ".", escape "\.", index "(i)", attribute "[@name]".
func DefaultSymbols() ExpressionEngineSymbols {
	return ExpressionEngineSymbols{
		PropertyDelimiter: ".",
		EscapedDelimiter:  `\.`,
		IndexStart:        "(",
		IndexEnd:          ")",
		AttributeStart:    "[@",
		AttributeEnd:      "]",
	}
}

// SlashSymbols returns a path-flavored syntax: delimiter "/", escape "\/",
// index "[i]", attribute "[@name]". Semantics are identical to the default
// syntax, only the tokens differ.
func SlashSymbols() ExpressionEngineSymbols {
	return ExpressionEngineSymbols{
		PropertyDelimiter: "/",
		EscapedDelimiter:  `\/`,
		IndexStart:        "[",
		IndexEnd:          "]",
		AttributeStart:    "[@",
		AttributeEnd:      "]",
	}
}

// WithDefaults fills unset symbol fields from DefaultSymbols.
func (s ExpressionEngineSymbols) WithDefaults() ExpressionEngineSymbols {
	def := DefaultSymbols()
	if s.PropertyDelimiter == "" {
		s.PropertyDelimiter = def.PropertyDelimiter
	}
	if s.EscapedDelimiter == "" {
		s.EscapedDelimiter = def.EscapedDelimiter
	}
	if s.IndexStart == "" {
		s.IndexStart = def.IndexStart
	}
	if s.IndexEnd == "" {
		s.IndexEnd = def.IndexEnd
	}
	if s.AttributeStart == "" {
		s.AttributeStart = def.AttributeStart
	}
	if s.AttributeEnd == "" {
		s.AttributeEnd = def.AttributeEnd
	}
	return s
}

// QueryResult is one hit of a key resolution: either a node, or an
// attribute identified by its owning node plus the attribute name.
type QueryResult struct {
	node      *ConfigNode
	attribute string
}

// Node returns the result node. For attribute results this is the node
// owning the attribute.
func (r QueryResult) Node() *ConfigNode { return r.node }

// IsAttribute reports whether the result addresses an attribute.
func (r QueryResult) IsAttribute() bool { return r.attribute != "" }

// AttributeName returns the attribute name for attribute results, "" for
// node results.
func (r QueryResult) AttributeName() string { return r.attribute }

// Value returns the result's value: the node value for node results, the
// attribute value for attribute results.
func (r QueryResult) Value() interface{} {
	if r.IsAttribute() {
		v, _ := r.node.Attribute(r.attribute)
		return v
	}
	return r.node.Value()
}

// NodeAddData describes where a new property has to be attached: the last
// existing node on the key's path, the names of intermediate nodes still to
// be created under it, the name of the final node or attribute, and whether
// the final segment is an attribute.
type NodeAddData struct {
	Parent      *ConfigNode
	PathNodes   []string
	NewNodeName string
	Attribute   bool
}

// ExpressionEngine translates between key strings and tree positions.
// Implementations must be safe for concurrent use; the default engine is
// stateless apart from its configuration.
type ExpressionEngine interface {
	// Query resolves key against the tree rooted at root and returns all
	// matching nodes and attributes in document order. An empty key yields
	// the root itself. Keys that match nothing yield an empty slice.
	Query(root *ConfigNode, key string, handler NodeHandler) []QueryResult

	// NodeKey computes the canonical key of node within handler's tree,
	// consulting and populating cache for every ancestor visited. After a
	// call the cache holds an entry for node and each of its ancestors up
	// to and including the root, whose key is the empty string. Repeated
	// key generation for siblings reuses the shared ancestor prefixes.
	NodeKey(node *ConfigNode, cache map[*ConfigNode]string, handler NodeHandler) string

	// AttributeKey appends an attribute reference to a parent node key.
	AttributeKey(parentKey, attributeName string) string

	// PrepareAdd determines where addProperty-style operations must attach
	// new nodes for the given key. Fails with ErrCodeInvalidArgument for
	// empty keys and keys with attribute references before the final
	// segment.
	PrepareAdd(root *ConfigNode, key string, handler NodeHandler) (NodeAddData, error)
}

// DefaultExpressionEngine implements the standard key syntax driven by an
// ExpressionEngineSymbols table and a NodeMatcher.
type DefaultExpressionEngine struct {
	symbols ExpressionEngineSymbols
	matcher NodeMatcher
}

// NewExpressionEngine creates an engine for the given symbols and matcher.
// Zero-value symbol fields fall back to the defaults; a nil matcher means
// exact name matching.
func NewExpressionEngine(symbols ExpressionEngineSymbols, matcher NodeMatcher) *DefaultExpressionEngine {
	if matcher == nil {
		matcher = NodeNameEquals
	}
	return &DefaultExpressionEngine{symbols: symbols.WithDefaults(), matcher: matcher}
}

// NewDefaultExpressionEngine creates an engine with the default dotted
// syntax and exact name matching.
func NewDefaultExpressionEngine() *DefaultExpressionEngine {
	return NewExpressionEngine(DefaultSymbols(), NodeNameEquals)
}

// Symbols returns the engine's symbol table.
func (e *DefaultExpressionEngine) Symbols() ExpressionEngineSymbols { return e.symbols }

// Matcher returns the engine's name matcher.
func (e *DefaultExpressionEngine) Matcher() NodeMatcher { return e.matcher }

// keySegment is one parsed path step. index is only meaningful when
// hasIndex is set; a negative index never matches an existing node and is
// used by add operations to force creation of a new sibling.
type keySegment struct {
	name      string
	index     int
	hasIndex  bool
	attribute bool
}

// parseKey splits a key into segments. Unescaped delimiters separate
// segments; empty segments (leading, trailing, doubled delimiters) are
// skipped. A trailing "[@name]" on a segment produces an extra attribute
// segment, so "table(0)[@type]" parses into the node step table(0) followed
// by the attribute step type.
func (e *DefaultExpressionEngine) parseKey(key string) []keySegment {
	var segs []keySegment
	for _, part := range e.splitKey(key) {
		if part == "" {
			continue
		}
		name := part
		attr := ""
		if p := strings.Index(part, e.symbols.AttributeStart); p >= 0 && strings.HasSuffix(part, e.symbols.AttributeEnd) {
			inner := part[p+len(e.symbols.AttributeStart) : len(part)-len(e.symbols.AttributeEnd)]
			// Reject nested markers so "[0]" style indices are not taken
			// for attributes under symbol tables where both start with "[".
			if inner != "" && !strings.Contains(inner, e.symbols.AttributeStart) {
				name = part[:p]
				attr = inner
			}
		}
		if name != "" {
			seg := keySegment{name: name}
			if is := strings.LastIndex(name, e.symbols.IndexStart); is > 0 && strings.HasSuffix(name, e.symbols.IndexEnd) {
				inner := name[is+len(e.symbols.IndexStart) : len(name)-len(e.symbols.IndexEnd)]
				if idx, err := strconv.Atoi(inner); err == nil {
					seg.name = name[:is]
					seg.index = idx
					seg.hasIndex = true
				}
			}
			segs = append(segs, seg)
		}
		if attr != "" {
			segs = append(segs, keySegment{name: attr, attribute: true})
		}
	}
	return segs
}

// splitKey splits on unescaped delimiters and resolves escape sequences to
// literal delimiter text.
func (e *DefaultExpressionEngine) splitKey(key string) []string {
	delim := e.symbols.PropertyDelimiter
	esc := e.symbols.EscapedDelimiter
	var parts []string
	var current strings.Builder
	for i := 0; i < len(key); {
		if esc != "" && strings.HasPrefix(key[i:], esc) {
			current.WriteString(delim)
			i += len(esc)
			continue
		}
		if strings.HasPrefix(key[i:], delim) {
			parts = append(parts, current.String())
			current.Reset()
			i += len(delim)
			continue
		}
		current.WriteByte(key[i])
		i++
	}
	parts = append(parts, current.String())
	return parts
}

// escapeName renders a node name as a key segment, escaping delimiter
// occurrences.
func (e *DefaultExpressionEngine) escapeName(name string) string {
	return strings.ReplaceAll(name, e.symbols.PropertyDelimiter, e.symbols.EscapedDelimiter)
}

// Query implements ExpressionEngine.
func (e *DefaultExpressionEngine) Query(root *ConfigNode, key string, handler NodeHandler) []QueryResult {
	if root == nil {
		return nil
	}
	return e.querySegments(root, e.parseKey(key), handler)
}

func (e *DefaultExpressionEngine) querySegments(base *ConfigNode, segs []keySegment, handler NodeHandler) []QueryResult {
	current := []QueryResult{{node: base}}
	for i, seg := range segs {
		last := i == len(segs)-1
		var next []QueryResult
		for _, r := range current {
			if r.IsAttribute() {
				continue
			}
			if seg.attribute {
				// Attributes are terminal: a key cannot descend through one.
				if !last {
					continue
				}
				if _, ok := r.node.Attribute(seg.name); ok {
					next = append(next, QueryResult{node: r.node, attribute: seg.name})
				}
				continue
			}
			matched := handler.ChildrenNamed(r.node, seg.name, e.matcher)
			if seg.hasIndex {
				if seg.index >= 0 && seg.index < len(matched) {
					next = append(next, QueryResult{node: matched[seg.index]})
				}
				continue
			}
			for _, m := range matched {
				next = append(next, QueryResult{node: m})
			}
		}
		current = next
		if len(current) == 0 {
			break
		}
	}
	return current
}

// NodeKey implements ExpressionEngine. The cache contract is part of the
// interface: after the call, cache contains the key of every ancestor
// visited, including the root under the empty string.
func (e *DefaultExpressionEngine) NodeKey(node *ConfigNode, cache map[*ConfigNode]string, handler NodeHandler) string {
	if k, ok := cache[node]; ok {
		return k
	}
	parent := handler.Parent(node)
	if parent == nil {
		cache[node] = ""
		return ""
	}
	parentKey := e.NodeKey(parent, cache, handler)
	segment := e.escapeName(node.Name())
	siblings := handler.ChildrenNamed(parent, node.Name(), e.matcher)
	if len(siblings) > 1 {
		for i, s := range siblings {
			if s == node {
				segment += e.symbols.IndexStart + strconv.Itoa(i) + e.symbols.IndexEnd
				break
			}
		}
	}
	key := segment
	if parentKey != "" {
		key = parentKey + e.symbols.PropertyDelimiter + segment
	}
	cache[node] = key
	return key
}

// AttributeKey implements ExpressionEngine.
func (e *DefaultExpressionEngine) AttributeKey(parentKey, attributeName string) string {
	return parentKey + e.symbols.AttributeStart + attributeName + e.symbols.AttributeEnd
}

// PrepareAdd implements ExpressionEngine. Existing intermediate nodes are
// reused (by explicit index, or the first match when no index is given); a
// negative index forces a new sibling from that point on. The final segment
// always names a node or attribute to be created.
func (e *DefaultExpressionEngine) PrepareAdd(root *ConfigNode, key string, handler NodeHandler) (NodeAddData, error) {
	segs := e.parseKey(key)
	if len(segs) == 0 {
		return NodeAddData{}, errors.New(ErrCodeInvalidArgument, "key for adding properties must not be empty").
			WithContext("key", key)
	}

	node := root
	i := 0
	for ; i < len(segs)-1; i++ {
		seg := segs[i]
		if seg.attribute {
			return NodeAddData{}, errors.New(ErrCodeInvalidArgument, "attribute references are only allowed at the end of a key").
				WithContext("key", key)
		}
		if seg.hasIndex && seg.index < 0 {
			break
		}
		matched := handler.ChildrenNamed(node, seg.name, e.matcher)
		var descend *ConfigNode
		if seg.hasIndex {
			if seg.index < len(matched) {
				descend = matched[seg.index]
			}
		} else if len(matched) > 0 {
			descend = matched[0]
		}
		if descend == nil {
			break
		}
		node = descend
	}

	data := NodeAddData{Parent: node}
	for ; i < len(segs)-1; i++ {
		seg := segs[i]
		if seg.attribute {
			return NodeAddData{}, errors.New(ErrCodeInvalidArgument, "attribute references are only allowed at the end of a key").
				WithContext("key", key)
		}
		data.PathNodes = append(data.PathNodes, seg.name)
	}

	last := segs[len(segs)-1]
	if last.name == "" {
		return NodeAddData{}, errors.New(ErrCodeInvalidArgument, "key for adding properties must end with a name").
			WithContext("key", key)
	}
	data.NewNodeName = last.name
	data.Attribute = last.attribute
	return data, nil
}
