package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"northstar/internal/coherence"
	"northstar/internal/consent"
	"northstar/internal/transform"
	"northstar/pkg/domain"
)

// EntryType is the closed set of record kinds the chain carries.
type EntryType string

const (
	// EntryTypeGenesis is the construction-time first entry. Created exactly
	// once per ledger; its prev_hash is the all-zero sentinel.
	EntryTypeGenesis EntryType = "genesis"

	// EntryTypeObservation carries an accepted ObservationPacket.
	EntryTypeObservation EntryType = "observation"

	// EntryTypeGroupCoherence carries the synchrony summary recomputed after
	// a grouped observation, chained immediately after it.
	EntryTypeGroupCoherence EntryType = "group_coherence"

	// EntryTypeRevocation references a prior entry's hash and marks it inert.
	// The referenced entry is never altered or removed.
	EntryTypeRevocation EntryType = "revocation"

	// EntryTypeSnapshot captures a session's resolved lineage state at a
	// point in time, for timeline queries.
	EntryTypeSnapshot EntryType = "snapshot"
)

// GenesisPrevHash is the sentinel prev_hash of the first entry: a 256-bit
// all-zero digest, hex encoded.
const GenesisPrevHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Entry is one immutable, hash-linked record. Hash covers the canonical
// encoding of every field except itself.
type Entry struct {
	EntryID   string          `json:"entry_id"`
	Type      EntryType       `json:"entry_type"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
}

// ComputeHash returns the SHA-256 hex digest over the entry's hashed fields.
// The envelope struct fixes the key order, and encoding/json sorts map keys,
// so the encoding is canonical.
func ComputeHash(e Entry) string {
	envelope := struct {
		EntryID   string          `json:"entry_id"`
		Type      EntryType       `json:"entry_type"`
		CreatedAt time.Time       `json:"created_at"`
		Payload   json.RawMessage `json:"payload"`
		PrevHash  string          `json:"prev_hash"`
	}{
		EntryID:   e.EntryID,
		Type:      e.Type,
		CreatedAt: e.CreatedAt,
		Payload:   e.Payload,
		PrevHash:  e.PrevHash,
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		// Payload is pre-marshaled JSON; the envelope cannot fail to encode.
		panic(err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// ObservationPacket is the accepted, privacy-safe form of one submission.
// It carries aggregates only; raw captures are rejected upstream by the
// consent gate.
type ObservationPacket struct {
	SessionID      domain.SessionID         `json:"session_id"`
	NodeID         domain.NodeID            `json:"node_id"`
	GroupID        domain.GroupID           `json:"group_id,omitempty"`
	State          transform.PhaseState     `json:"state"`
	Triad          transform.Triad          `json:"triad"`
	Vitality       float64                  `json:"vitality"`
	EpsilonD       float64                  `json:"epsilon_d"`
	Classification transform.Classification `json:"classification"`
	Consent        consent.Descriptor       `json:"consent"`
	ConsentDigest  string                   `json:"consent_digest"`
	CreatedAt      time.Time                `json:"created_at"`
}

// RevocationPayload marks a prior entry inert without touching it.
type RevocationPayload struct {
	TargetHash string           `json:"target_hash"`
	Reason     string           `json:"reason"`
	SessionID  domain.SessionID `json:"session_id,omitempty"`
}

// SnapshotPayload freezes a session's resolved lineage: the latest
// non-revoked observation plus bookkeeping counts.
type SnapshotPayload struct {
	SessionID    domain.SessionID   `json:"session_id"`
	Note         string             `json:"note,omitempty"`
	Resolved     *ObservationPacket `json:"resolved,omitempty"`
	ActiveCount  int                `json:"active_count"`
	TotalCount   int                `json:"total_count"`
	RevokedCount int                `json:"revoked_count"`
}

// genesisPayload anchors the chain with the ledger's construction metadata.
type genesisPayload struct {
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// coherencePayload is the wire form of a group coherence entry.
type coherencePayload struct {
	SessionID domain.SessionID     `json:"session_id,omitempty"`
	Group     coherence.GroupState `json:"group"`
}
