// decode.go: decoding subtrees into Go structs
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
//
// SPDX-License-Identifier: MPL-2.0

package daphne

import (
	"reflect"
	"time"

	"github.com/agilira/go-errors"
	"github.com/mitchellh/mapstructure"
)

// decodeTagName is the struct tag consulted when mapping node names to
// struct fields.
const decodeTagName = "config"

// DecodeNode decodes a node's attributes and children into target, which
// must be a non-nil pointer to a struct or map. Attributes and children
// map to fields by name via the "config" struct tag (falling back to the
// field name); repeated same-named children decode into slices. Input is
// weakly typed: "8080" decodes into an int field, "true" into a bool,
// "30s" into a time.Duration, comma-separated strings into slices.
func DecodeNode(n *ConfigNode, target interface{}) error {
	if n == nil {
		return errors.New(ErrCodeInvalidNode, "cannot decode a nil node")
	}
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New(ErrCodeInvalidArgument, "decode target must be a non-nil pointer")
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          decodeTagName,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return errors.Wrap(err, ErrCodeInvalidArgument, "failed to create decoder")
	}
	if err := decoder.Decode(nodeToDecodeMap(n)); err != nil {
		return errors.Wrap(err, ErrCodeInvalidArgument, "failed to decode configuration node")
	}
	return nil
}

// Decode decodes the subtree at key into target. An empty key decodes
// from the root. Fails with ErrCodeInvalidArgument when the key matches
// no node.
func (m *InMemoryNodeModel) Decode(key string, target interface{}) error {
	node := m.Subtree(key)
	if node == nil {
		return errors.New(ErrCodeInvalidArgument, "key matches no node").
			WithContext("key", key)
	}
	return DecodeNode(node, target)
}

// Decode decodes the subtree at key of the merged tree into target. An
// empty key decodes from the merged root.
func (v *CombinedView) Decode(key string, target interface{}) error {
	node, err := v.Subtree(key)
	if err != nil {
		return err
	}
	if node == nil {
		return errors.New(ErrCodeInvalidArgument, "key matches no node").
			WithContext("key", key)
	}
	return DecodeNode(node, target)
}

// nodeToDecodeMap flattens a node into the plain nested map mapstructure
// consumes. Attributes come first, so a child with the same name wins.
func nodeToDecodeMap(n *ConfigNode) map[string]interface{} {
	m := make(map[string]interface{}, n.ChildCount()+n.AttributeCount())
	for _, key := range n.AttributeKeys() {
		v, _ := n.Attribute(key)
		m[key] = v
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
			m[name] = decodeValue(group[0])
			continue
		}
		list := make([]interface{}, len(group))
		for i, c := range group {
			list[i] = decodeValue(c)
		}
		m[name] = list
	}
	return m
}

func decodeValue(n *ConfigNode) interface{} {
	if n.ChildCount() == 0 && n.AttributeCount() == 0 {
		return n.Value()
	}
	return nodeToDecodeMap(n)
}
