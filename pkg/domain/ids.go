// Package domain holds the typed identifiers shared across the phase ledger.
// Constructing them via the Parse functions at trust boundaries enforces the
// format rules; direct casting bypasses validation.
package domain

import (
	dErrors "northstar/pkg/domain-errors"
)

// NodeID identifies a sensing node. Pseudonymous: carries no network address
// or personal data, only what the submitting collaborator chose to disclose.
type NodeID string

// SessionID groups the observations of one recording session.
type SessionID string

// GroupID names a synchrony group. Optional on submissions.
type GroupID string

// minIDLen mirrors the original registry's identifier floor: anything
// shorter is almost certainly a placeholder or a truncation bug.
const minIDLen = 4

// ParseNodeID constructs a NodeID from external input.
//
// Errors: CodeInvalidInput when empty or shorter than the minimum length.
func ParseNodeID(s string) (NodeID, error) {
	if len(s) < minIDLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "node id must be at least 4 characters")
	}
	return NodeID(s), nil
}

// ParseSessionID constructs a SessionID from external input.
//
// Errors: CodeInvalidInput when empty or shorter than the minimum length.
func ParseSessionID(s string) (SessionID, error) {
	if len(s) < minIDLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "session id must be at least 4 characters")
	}
	return SessionID(s), nil
}

// ParseGroupID constructs a GroupID from external input. An empty string is
// valid and means the observation belongs to no group.
//
// Errors: CodeInvalidInput when non-empty but shorter than the minimum length.
func ParseGroupID(s string) (GroupID, error) {
	if s == "" {
		return "", nil
	}
	if len(s) < minIDLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "group id must be at least 4 characters")
	}
	return GroupID(s), nil
}

func (n NodeID) String() string    { return string(n) }
func (s SessionID) String() string { return string(s) }
func (g GroupID) String() string   { return string(g) }

// IsZero reports whether the group id is unset.
func (g GroupID) IsZero() bool { return g == "" }
