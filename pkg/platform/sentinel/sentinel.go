package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, sinks, and the ledger's
// internal lookups return these (optionally wrapped) so services can
// translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist (node, group, session, entry hash)
// - ErrConflict: the resource already exists or an append raced
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: sink or archive temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors
// directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
