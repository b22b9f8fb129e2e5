// parse_text.go: line scanners for flat configuration formats
//
// INI and Properties content is scanned into ordered key/value pairs;
// TreeParser.flatTree then replays the pairs through the expression
// engine. Order matters: repeated keys become same-named siblings, in
// file order.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
//
// SPDX-License-Identifier: MPL-2.0

package daphne

import (
	"bufio"
	"strconv"
	"strings"
)

// flatPair is one key/value line of a flat configuration format.
type flatPair struct {
	key   string
	value interface{}
}

// parseINIPairs scans INI content with [section] headers and key=value
// lines. Section names are joined to keys with the engine's delimiter,
// so "[database]" plus "host=..." yields the key "database.host" under
// the default syntax. Both ";" and "#" start comment lines.
func parseINIPairs(data []byte, delimiter string) []flatPair {
	var pairs []flatPair
	section := ""
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(strings.Trim(line, "[]"))
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if section != "" {
			key = section + delimiter + key
		}
		pairs = append(pairs, flatPair{key: key, value: parseScalar(strings.TrimSpace(value))})
	}
	return pairs
}

// parsePropertiesPairs scans Java-style properties lines. Keys are taken
// verbatim and interpreted by the engine later, so dotted paths, indices,
// and attribute references all work. Both "#" and "!" start comment
// lines.
func parsePropertiesPairs(data []byte) []flatPair {
	var pairs []flatPair
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		pairs = append(pairs, flatPair{key: key, value: parseScalar(strings.TrimSpace(value))})
	}
	return pairs
}

// parseScalar converts a raw string value into bool, int, or float64 when
// it parses as one, and keeps it a string otherwise.
func parseScalar(value string) interface{} {
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}
	if intVal, err := strconv.Atoi(value); err == nil {
		return intVal
	}
	if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
		return floatVal
	}
	return value
}
