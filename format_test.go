// format_test.go - Unit tests for configuration format detection
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package daphne

import "testing"

// TestDetectFormat tests extension-based format detection
func TestDetectFormat(t *testing.T) {
	cases := map[string]ConfigFormat{
		"config.json":       FormatJSON,
		"config.yaml":       FormatYAML,
		"config.yml":        FormatYAML,
		"config.toml":       FormatTOML,
		"config.ini":        FormatINI,
		"config.conf":       FormatINI,
		"config.cfg":        FormatINI,
		"config.config":     FormatINI,
		"config.properties": FormatProperties,
		"config.JSON":       FormatJSON,
		"path/to/app.YML":   FormatYAML,
		"config.txt":        FormatUnknown,
		"config":            FormatUnknown,
		"":                  FormatUnknown,
	}
	for path, expected := range cases {
		if got := DetectFormat(path); got != expected {
			t.Errorf("DetectFormat(%q): expected %v, got %v", path, expected, got)
		}
	}
}

// TestConfigFormatString tests the format names
func TestConfigFormatString(t *testing.T) {
	cases := map[ConfigFormat]string{
		FormatJSON:       "JSON",
		FormatYAML:       "YAML",
		FormatTOML:       "TOML",
		FormatINI:        "INI",
		FormatProperties: "Properties",
		FormatUnknown:    "Unknown",
		ConfigFormat(42): "Unknown",
	}
	for format, expected := range cases {
		if got := format.String(); got != expected {
			t.Errorf("Expected %q, got %q", expected, got)
		}
	}
}
