package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"northstar/internal/ledger"
)

func TestJSONL_AppendsOneObjectPerLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry", "chain.jsonl")
	s, err := NewJSONL(path)
	require.NoError(t, err)

	ctx := context.Background()
	want := []ledger.Entry{testEntry("e1"), testEntry("e2"), testEntry("e3")}
	for _, e := range want {
		require.NoError(t, s.Deliver(ctx, e))
	}
	require.NoError(t, s.Close())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var got []ledger.Entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e ledger.Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		got = append(got, e)
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, want, got)
}

func TestJSONL_ReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain.jsonl")
	ctx := context.Background()

	s, err := NewJSONL(path)
	require.NoError(t, err)
	require.NoError(t, s.Deliver(ctx, testEntry("e1")))
	require.NoError(t, s.Close())

	s, err = NewJSONL(path)
	require.NoError(t, err)
	require.NoError(t, s.Deliver(ctx, testEntry("e2")))
	require.NoError(t, s.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, countLines(raw))
}

func countLines(raw []byte) int {
	n := 0
	for _, b := range raw {
		if b == '\n' {
			n++
		}
	}
	return n
}
