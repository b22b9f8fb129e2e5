// format.go: configuration format detection for tree parsing and writing
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
//
// SPDX-License-Identifier: MPL-2.0

package daphne

import (
	"path/filepath"
	"strings"
)

// ConfigFormat identifies a supported configuration file format.
type ConfigFormat int

const (
	FormatUnknown ConfigFormat = iota
	FormatJSON
	FormatYAML
	FormatTOML
	FormatINI
	FormatProperties
)

// String returns the format name for logging and error contexts.
func (f ConfigFormat) String() string {
	switch f {
	case FormatJSON:
		return "JSON"
	case FormatYAML:
		return "YAML"
	case FormatTOML:
		return "TOML"
	case FormatINI:
		return "INI"
	case FormatProperties:
		return "Properties"
	default:
		return "Unknown"
	}
}

// DetectFormat detects the configuration format from the file extension,
// case-insensitively. Unrecognized extensions yield FormatUnknown.
func DetectFormat(path string) ConfigFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	case ".ini", ".conf", ".cfg", ".config":
		return FormatINI
	case ".properties":
		return FormatProperties
	default:
		return FormatUnknown
	}
}
