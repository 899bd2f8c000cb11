package sink

import (
	"context"

	"northstar/internal/ledger"
)

// EntryArchiver is the durable store the archive sink writes through.
// internal/archive provides the Postgres implementation.
type EntryArchiver interface {
	Append(ctx context.Context, entry ledger.Entry) error
}

// Archive adapts a durable store into a Sink.
type Archive struct {
	store EntryArchiver
}

func NewArchive(store EntryArchiver) *Archive {
	return &Archive{store: store}
}

func (a *Archive) Name() string { return "archive" }

func (a *Archive) Deliver(ctx context.Context, entry ledger.Entry) error {
	return a.store.Append(ctx, entry)
}
