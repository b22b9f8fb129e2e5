// Shared utilities for the Daphne CLI
//
// This package holds the helpers the command layer needs but that carry
// no command state: format-name resolution, scalar parsing for values
// given on the command line, and display formatting.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agilira/daphne"
)

// ParseFormat maps an explicit format name to a ConfigFormat.
// Unrecognized names map to FormatUnknown.
func ParseFormat(name string) daphne.ConfigFormat {
	switch strings.ToLower(name) {
	case "json":
		return daphne.FormatJSON
	case "yaml", "yml":
		return daphne.FormatYAML
	case "toml":
		return daphne.FormatTOML
	case "ini", "conf", "cfg":
		return daphne.FormatINI
	case "properties":
		return daphne.FormatProperties
	default:
		return daphne.FormatUnknown
	}
}

// ResolveFormat picks the format for a file: an explicit name wins,
// "auto" or empty falls back to extension detection.
func ResolveFormat(path, explicit string) daphne.ConfigFormat {
	if explicit != "" && explicit != "auto" {
		return ParseFormat(explicit)
	}
	return daphne.DetectFormat(path)
}

// ParseValue converts a command-line string to the most specific Go
// type: bool, int64, float64, then string.
func ParseValue(value string) interface{} {
	// ParseBool accepts "0"/"1", which should stay integers.
	lower := strings.ToLower(value)
	if lower == "true" || lower == "false" {
		return lower == "true"
	}
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

// FormatValues renders a property's value list for display. A single
// value prints bare, multiple values print comma-separated.
func FormatValues(values []interface{}) string {
	if len(values) == 1 {
		return fmt.Sprintf("%v", values[0])
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%v", v)
	}
	return strings.Join(parts, ", ")
}
