// errors.go: Error codes for Daphne hierarchical configuration operations
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package daphne

// Error codes for Daphne operations
const (
	// ErrCodeInvalidArgument reports a structurally invalid request: an empty
	// key where a property key is required, grafting nodes under an attribute
	// position, duplicate combined view child names, or nil collaborators.
	ErrCodeInvalidArgument = "DAPHNE_INVALID_ARGUMENT"

	// ErrCodeAmbiguousSource reports that a provenance lookup found the same
	// key defined by more than one child configuration.
	ErrCodeAmbiguousSource = "DAPHNE_AMBIGUOUS_SOURCE"

	// ErrCodeIndexOutOfRange reports child access by an index beyond the
	// available children.
	ErrCodeIndexOutOfRange = "DAPHNE_INDEX_OUT_OF_RANGE"

	// ErrCodeConstructionFailed reports a failure while building a child tree
	// during combined view construction. The cached merged tree stays stale so
	// the caller can retry.
	ErrCodeConstructionFailed = "DAPHNE_CONSTRUCTION_FAILED"

	// ErrCodeUnsupportedFormat reports an unknown or unhandled serialization
	// format in the adapter layer.
	ErrCodeUnsupportedFormat = "DAPHNE_UNSUPPORTED_FORMAT"

	// ErrCodeInvalidNode reports malformed node input in the adapter and
	// decoding layers.
	ErrCodeInvalidNode = "DAPHNE_INVALID_NODE"

	// ErrCodeJournalError reports change journal configuration or backend
	// failures.
	ErrCodeJournalError = "DAPHNE_JOURNAL_ERROR"
)
