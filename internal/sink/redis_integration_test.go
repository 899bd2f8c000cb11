//go:build integration

package sink_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"northstar/internal/ledger"
	"northstar/internal/sink"
	"northstar/pkg/testutil/containers"
)

func TestStream_DeliversToRedisStream(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	s := sink.NewStream(rc.Client, "northstar:test:entries", 1000)

	entry := ledger.Entry{
		EntryID:   "11111111-1111-1111-1111-111111111111",
		Type:      ledger.EntryTypeObservation,
		CreatedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		Payload:   []byte(`{"seq":1}`),
		PrevHash:  ledger.GenesisPrevHash,
	}
	entry.Hash = ledger.ComputeHash(entry)

	require.NoError(t, s.Deliver(ctx, entry))

	messages, err := rc.Client.XRange(ctx, "northstar:test:entries", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, entry.EntryID, messages[0].Values["entry_id"])
	assert.Equal(t, string(entry.Type), messages[0].Values["entry_type"])
	assert.Equal(t, entry.Hash, messages[0].Values["hash"])
}
