package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"northstar/internal/ledger"
)

// JSONL appends entries to a newline-delimited JSON registry file, one
// object per line. The file is the human-greppable mirror of the chain.
type JSONL struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONL opens (or creates) the registry file in append mode.
func NewJSONL(path string) (*JSONL, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create registry dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open registry file: %w", err)
	}
	return &JSONL{file: file, enc: json.NewEncoder(file)}, nil
}

func (s *JSONL) Name() string { return "jsonl" }

func (s *JSONL) Deliver(_ context.Context, entry ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(entry); err != nil {
		return fmt.Errorf("append registry line: %w", err)
	}
	return nil
}

// Close syncs and closes the underlying file.
func (s *JSONL) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Sync(); err != nil {
		return err
	}
	return s.file.Close()
}
