// parse_test.go - Unit tests for parsing configuration files into trees
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package daphne

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// parsedModel parses data and wraps the tree in a model for key queries.
func parsedModel(t *testing.T, data string, format ConfigFormat) *InMemoryNodeModel {
	t.Helper()
	root, err := ParseTree([]byte(data), format)
	if err != nil {
		t.Fatalf("Failed to parse %s content: %v", format, err)
	}
	return NewNodeModel(ModelConfig{Root: root})
}

// TestParseJSONNested tests nested JSON objects
func TestParseJSONNested(t *testing.T) {
	model := parsedModel(t, `{
		"server": {
			"host": "localhost",
			"port": 8080
		}
	}`, FormatJSON)

	if v := model.GetProperty("server.host"); !reflect.DeepEqual(v, []interface{}{"localhost"}) {
		t.Errorf("Expected [localhost], got %v", v)
	}
	// JSON numbers decode as float64.
	if v := model.GetProperty("server.port"); !reflect.DeepEqual(v, []interface{}{float64(8080)}) {
		t.Errorf("Expected [8080], got %v", v)
	}
}

// TestParseJSONArrayFanOut tests arrays becoming repeated siblings
func TestParseJSONArrayFanOut(t *testing.T) {
	model := parsedModel(t, `{
		"tags": ["alpha", "beta"],
		"tables": {
			"table": [
				{"name": "users"},
				{"name": "documents"}
			]
		}
	}`, FormatJSON)

	if v := model.GetProperty("tags"); !reflect.DeepEqual(v, []interface{}{"alpha", "beta"}) {
		t.Errorf("Expected fanned-out [alpha beta], got %v", v)
	}
	if v := model.GetProperty("tables.table.name"); !reflect.DeepEqual(v, []interface{}{"users", "documents"}) {
		t.Errorf("Expected [users documents], got %v", v)
	}
	if v := model.GetProperty("tables.table(1).name"); !reflect.DeepEqual(v, []interface{}{"documents"}) {
		t.Errorf("Expected indexed access [documents], got %v", v)
	}
}

// TestParseJSONMetadataKeys tests the "@" value and attribute conventions
func TestParseJSONMetadataKeys(t *testing.T) {
	model := parsedModel(t, `{
		"server": {
			"@": "primary",
			"@env": "prod",
			"host": "localhost"
		}
	}`, FormatJSON)

	if v := model.GetProperty("server"); !reflect.DeepEqual(v, []interface{}{"primary"}) {
		t.Errorf("Expected node value [primary], got %v", v)
	}
	if v := model.GetProperty("server[@env]"); !reflect.DeepEqual(v, []interface{}{"prod"}) {
		t.Errorf("Expected attribute [prod], got %v", v)
	}
	if v := model.GetProperty("server.host"); !reflect.DeepEqual(v, []interface{}{"localhost"}) {
		t.Errorf("Expected child [localhost], got %v", v)
	}
}

// TestParseJSONScalarDocument tests a non-object top level
func TestParseJSONScalarDocument(t *testing.T) {
	root, err := ParseTree([]byte(`"just a string"`), FormatJSON)
	if err != nil {
		t.Fatalf("Failed to parse scalar document: %v", err)
	}
	if root.Value() != "just a string" {
		t.Errorf("Expected root value, got %v", root.Value())
	}
}

// TestParseYAMLNested tests nested YAML with lists of mappings
func TestParseYAMLNested(t *testing.T) {
	model := parsedModel(t, `
database:
  host: db.example.com
  port: 5432
  replicas:
    - name: r1
    - name: r2
`, FormatYAML)

	if v := model.GetProperty("database.host"); !reflect.DeepEqual(v, []interface{}{"db.example.com"}) {
		t.Errorf("Expected [db.example.com], got %v", v)
	}
	if v := model.GetProperty("database.port"); !reflect.DeepEqual(v, []interface{}{5432}) {
		t.Errorf("Expected [5432], got %v", v)
	}
	if v := model.GetProperty("database.replicas.name"); !reflect.DeepEqual(v, []interface{}{"r1", "r2"}) {
		t.Errorf("Expected [r1 r2], got %v", v)
	}
}

// TestParseTOMLNested tests TOML tables and integer decoding
func TestParseTOMLNested(t *testing.T) {
	model := parsedModel(t, `
title = "app"

[server]
host = "localhost"
port = 8080
`, FormatTOML)

	if v := model.GetProperty("title"); !reflect.DeepEqual(v, []interface{}{"app"}) {
		t.Errorf("Expected [app], got %v", v)
	}
	// TOML integers decode as int64.
	if v := model.GetProperty("server.port"); !reflect.DeepEqual(v, []interface{}{int64(8080)}) {
		t.Errorf("Expected [8080], got %v", v)
	}
}

// TestParseINISections tests section headers, comments, and scalars
func TestParseINISections(t *testing.T) {
	model := parsedModel(t, `
; leading comment
# another comment
debug=true
retries=3

[server]
host=localhost
timeout=2.5

[database]
name=appdb
`, FormatINI)

	if v := model.GetProperty("debug"); !reflect.DeepEqual(v, []interface{}{true}) {
		t.Errorf("Expected [true], got %v", v)
	}
	if v := model.GetProperty("retries"); !reflect.DeepEqual(v, []interface{}{3}) {
		t.Errorf("Expected [3], got %v", v)
	}
	if v := model.GetProperty("server.host"); !reflect.DeepEqual(v, []interface{}{"localhost"}) {
		t.Errorf("Expected [localhost], got %v", v)
	}
	if v := model.GetProperty("server.timeout"); !reflect.DeepEqual(v, []interface{}{2.5}) {
		t.Errorf("Expected [2.5], got %v", v)
	}
	if v := model.GetProperty("database.name"); !reflect.DeepEqual(v, []interface{}{"appdb"}) {
		t.Errorf("Expected [appdb], got %v", v)
	}
}

// TestParseINIRepeatedKeys tests repeated keys becoming siblings
func TestParseINIRepeatedKeys(t *testing.T) {
	model := parsedModel(t, `
[cluster]
node=a
node=b
`, FormatINI)

	if v := model.GetProperty("cluster.node"); !reflect.DeepEqual(v, []interface{}{"a", "b"}) {
		t.Errorf("Expected [a b], got %v", v)
	}
}

// TestParseProperties tests dotted keys, indices, and attribute references
func TestParseProperties(t *testing.T) {
	model := parsedModel(t, `
# comment
! also a comment
app.name=daphne
app[@version]=2
servers.server(0)=alpha
servers.server(1)=beta
`, FormatProperties)

	if v := model.GetProperty("app.name"); !reflect.DeepEqual(v, []interface{}{"daphne"}) {
		t.Errorf("Expected [daphne], got %v", v)
	}
	if v := model.GetProperty("app[@version]"); !reflect.DeepEqual(v, []interface{}{2}) {
		t.Errorf("Expected attribute [2], got %v", v)
	}
	if v := model.GetProperty("servers.server"); !reflect.DeepEqual(v, []interface{}{"alpha", "beta"}) {
		t.Errorf("Expected [alpha beta], got %v", v)
	}
}

// TestParseInvalidDocuments tests parser error propagation
func TestParseInvalidDocuments(t *testing.T) {
	cases := map[ConfigFormat]string{
		FormatJSON: `{"unclosed": `,
		FormatYAML: "key: [unclosed",
		FormatTOML: "= no key",
	}
	for format, data := range cases {
		if _, err := ParseTree([]byte(data), format); err == nil {
			t.Errorf("Expected error for invalid %s content", format)
		}
	}
}

// TestParseUnsupportedFormat tests the unknown-format error path
func TestParseUnsupportedFormat(t *testing.T) {
	if _, err := ParseTree([]byte("x=1"), FormatUnknown); err == nil {
		t.Error("Expected error for unknown format")
	}
}

// TestParseFile tests file parsing with format detection
func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yml")
	content := "service:\n  name: daphne\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	root, err := NewTreeParser(nil).ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	model := NewNodeModel(ModelConfig{Root: root})
	if v := model.GetProperty("service.name"); !reflect.DeepEqual(v, []interface{}{"daphne"}) {
		t.Errorf("Expected [daphne], got %v", v)
	}

	if _, err := NewTreeParser(nil).ParseFile(filepath.Join(dir, "app.unknown")); err == nil {
		t.Error("Expected error for undetectable format")
	}
	if _, err := NewTreeParser(nil).ParseFile(filepath.Join(dir, "missing.yml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

// TestLoadFile tests loading a file directly into a model
func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"feature": {"enabled": true}}`), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	model, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if v := model.GetProperty("feature.enabled"); !reflect.DeepEqual(v, []interface{}{true}) {
		t.Errorf("Expected [true], got %v", v)
	}
}

// TestParseINICustomEngine tests section joining with a non-default engine
func TestParseINICustomEngine(t *testing.T) {
	engine := NewExpressionEngine(SlashSymbols(), nil)
	root, err := NewTreeParser(engine).Parse([]byte("[server]\nhost=x\n"), FormatINI)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	model := NewNodeModel(ModelConfig{Root: root, Engine: engine})
	if v := model.GetProperty("server/host"); !reflect.DeepEqual(v, []interface{}{"x"}) {
		t.Errorf("Expected [x] under slash syntax, got %v", v)
	}
}
