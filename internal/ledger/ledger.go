// Package ledger owns the append-only, hash-chained history of accepted
// observations and the latest-known state per node and group. All chain and
// state mutation happens under a single critical section so prev_hash
// chaining is never raced and derived state always matches the entries it
// was computed from.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"northstar/internal/coherence"
	"northstar/internal/consent"
	"northstar/internal/platform/metrics"
	"northstar/internal/transform"
	"northstar/pkg/domain"
	dErrors "northstar/pkg/domain-errors"
	"northstar/pkg/platform/sentinel"
)

// Notifier receives committed entries after each successful append. Publish
// runs while the ledger's critical section is held, so notified entries
// arrive in commit order; implementations must never block.
type Notifier interface {
	Publish(entry Entry)
}

type noopNotifier struct{}

func (noopNotifier) Publish(Entry) {}

// Ledger is the phase ledger. One instance owns its chain and state maps;
// there are no process-wide singletons.
type Ledger struct {
	gate       *consent.Gate
	aggregator *coherence.Aggregator
	notifier   Notifier
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time

	mu            sync.Mutex
	entries       []Entry
	entrySessions []domain.SessionID // parallel to entries; "" when unattributed
	byHash        map[string]int
	revoked       map[string]bool // target hash -> revoked
	nodeStates    map[domain.NodeID]transform.PhaseState
	nodeGroups    map[domain.NodeID]domain.GroupID
	groupMembers  map[domain.GroupID]map[domain.NodeID]struct{}
	groupStates   map[domain.GroupID]coherence.GroupState
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithNotifier sets the post-commit entry sink.
func WithNotifier(n Notifier) Option {
	return func(l *Ledger) { l.notifier = n }
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// WithClock overrides the time source. Tests use this to pin timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New constructs a ledger and appends its genesis entry. The genesis entry is
// created exactly once, here; its prev_hash is the all-zero sentinel.
func New(gate *consent.Gate, aggregator *coherence.Aggregator, opts ...Option) *Ledger {
	l := &Ledger{
		gate:         gate,
		aggregator:   aggregator,
		notifier:     noopNotifier{},
		logger:       slog.Default(),
		now:          time.Now,
		byHash:       make(map[string]int),
		revoked:      make(map[string]bool),
		nodeStates:   make(map[domain.NodeID]transform.PhaseState),
		nodeGroups:   make(map[domain.NodeID]domain.GroupID),
		groupMembers: make(map[domain.GroupID]map[domain.NodeID]struct{}),
		groupStates:  make(map[domain.GroupID]coherence.GroupState),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.mu.Lock()
	genesis, err := l.appendLocked(EntryTypeGenesis, "", genesisPayload{
		Note:      "phase ledger genesis",
		CreatedAt: l.now().UTC(),
	})
	if err != nil {
		l.mu.Unlock()
		// The genesis payload is a fixed struct; this cannot fail.
		panic(err)
	}
	l.notifier.Publish(genesis)
	l.mu.Unlock()
	return l
}

// appendLocked constructs, hashes, and appends one entry. Callers must hold
// l.mu. sessionID may be empty for entries not attributed to a session.
func (l *Ledger) appendLocked(t EntryType, sessionID domain.SessionID, payload any) (Entry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, dErrors.Newf(dErrors.CodeInternal, "encode %s payload: %v", t, err)
	}

	prevHash := GenesisPrevHash
	if n := len(l.entries); n > 0 {
		prevHash = l.entries[n-1].Hash
	}

	entry := Entry{
		EntryID:   uuid.NewString(),
		Type:      t,
		CreatedAt: l.now().UTC(),
		Payload:   raw,
		PrevHash:  prevHash,
	}
	entry.Hash = ComputeHash(entry)

	l.byHash[entry.Hash] = len(l.entries)
	l.entries = append(l.entries, entry)
	l.entrySessions = append(l.entrySessions, sessionID)

	if l.metrics != nil {
		l.metrics.IncEntryAppended(string(t))
		l.metrics.SetLedgerLength(len(l.entries))
	}
	return entry, nil
}

// Append records an arbitrary payload under the given entry type and returns
// the committed entry. Most callers want RecordObservation or Revoke instead;
// Append exists for external collaborators that feed pre-validated payloads.
func (l *Ledger) Append(t EntryType, sessionID domain.SessionID, payload any) (Entry, error) {
	l.mu.Lock()
	entry, err := l.appendLocked(t, sessionID, payload)
	if err != nil {
		l.mu.Unlock()
		return Entry{}, err
	}
	l.notifier.Publish(entry)
	l.mu.Unlock()
	return entry, nil
}

// RecordObservation admits one observation packet.
//
// The consent gate runs first; on rejection nothing is appended and no state
// changes. On acceptance the observation entry, the node-state update, the
// group membership update, and (for grouped packets) the coherence
// recomputation and its entry all commit as one atomic unit.
//
// Errors: CodeConsentRejected, CodeInvalidInput, or CodeInternal. The
// returned slice holds the observation entry and, when the packet carries a
// group id, the group coherence entry chained immediately after it.
func (l *Ledger) RecordObservation(ctx context.Context, packet ObservationPacket) ([]Entry, error) {
	if packet.NodeID == "" || packet.SessionID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "observation packet missing node or session id")
	}
	if err := l.gate.Validate(packet.Consent); err != nil {
		if l.metrics != nil {
			l.metrics.IncObservationRejected(string(dErrors.CodeOf(err)))
		}
		return nil, err
	}

	l.mu.Lock()
	committed, err := l.recordLocked(packet)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	// Sinks must see entries in commit order; Publish stays under the mutex.
	for _, entry := range committed {
		l.notifier.Publish(entry)
	}
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.IncObservationAccepted()
	}
	l.logger.DebugContext(ctx, "observation recorded",
		"node_id", packet.NodeID,
		"session_id", packet.SessionID,
		"group_id", packet.GroupID,
		"entries", len(committed),
	)
	return committed, nil
}

func (l *Ledger) recordLocked(packet ObservationPacket) ([]Entry, error) {
	obsEntry, err := l.appendLocked(EntryTypeObservation, packet.SessionID, packet)
	if err != nil {
		return nil, err
	}

	l.nodeStates[packet.NodeID] = packet.State
	l.reattributeLocked(packet.NodeID, packet.GroupID)

	committed := []Entry{obsEntry}
	if packet.GroupID.IsZero() {
		return committed, nil
	}

	members := make(map[domain.NodeID]transform.PhaseState, len(l.groupMembers[packet.GroupID]))
	for id := range l.groupMembers[packet.GroupID] {
		members[id] = l.nodeStates[id]
	}

	state, err := l.aggregator.Recompute(packet.GroupID, members, l.now().UTC())
	if err != nil {
		// The submitting node is always a member, so this is unreachable;
		// surface it rather than committing a half transaction.
		return nil, dErrors.Newf(dErrors.CodeInternal, "recompute group %s: %v", packet.GroupID, err)
	}
	l.groupStates[packet.GroupID] = state

	cohEntry, err := l.appendLocked(EntryTypeGroupCoherence, packet.SessionID, coherencePayload{
		SessionID: packet.SessionID,
		Group:     state,
	})
	if err != nil {
		return nil, err
	}
	if l.metrics != nil {
		l.metrics.IncCoherenceRecomputed(string(state.Status))
	}
	return append(committed, cohEntry), nil
}

// reattributeLocked moves a node's group attribution to groupID. A node's
// attribution follows its most recent accepted observation; an ungrouped
// observation clears it.
func (l *Ledger) reattributeLocked(nodeID domain.NodeID, groupID domain.GroupID) {
	prev, ok := l.nodeGroups[nodeID]
	if ok && prev != groupID {
		delete(l.groupMembers[prev], nodeID)
		if len(l.groupMembers[prev]) == 0 {
			delete(l.groupMembers, prev)
		}
	}
	if groupID.IsZero() {
		delete(l.nodeGroups, nodeID)
		return
	}
	l.nodeGroups[nodeID] = groupID
	if l.groupMembers[groupID] == nil {
		l.groupMembers[groupID] = make(map[domain.NodeID]struct{})
	}
	l.groupMembers[groupID][nodeID] = struct{}{}
}

// Revoke appends a revocation entry referencing targetHash. The referenced
// entry is untouched; nothing is ever removed from the chain.
//
// Errors: CodeNotFound when no entry carries targetHash.
func (l *Ledger) Revoke(targetHash, reason string) (Entry, error) {
	l.mu.Lock()
	idx, ok := l.byHash[targetHash]
	if !ok {
		l.mu.Unlock()
		return Entry{}, dErrors.Newf(dErrors.CodeNotFound, "no entry with hash %s", targetHash)
	}
	sessionID := l.entrySessions[idx]
	l.revoked[targetHash] = true

	entry, err := l.appendLocked(EntryTypeRevocation, sessionID, RevocationPayload{
		TargetHash: targetHash,
		Reason:     reason,
		SessionID:  sessionID,
	})
	if err != nil {
		l.mu.Unlock()
		return Entry{}, err
	}
	l.notifier.Publish(entry)
	l.mu.Unlock()
	l.logger.Info("entry revoked", "target_hash", targetHash, "reason", reason)
	return entry, nil
}

// IsRevoked reports whether any revocation entry targets the given hash.
func (l *Ledger) IsRevoked(hash string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.revoked[hash]
}

// VerifyIntegrity walks the chain checking hash linkage and hash
// recomputation. It reports the first violating index and never attempts
// repair; recovery is an operator decision.
//
// The returned index is -1 when the chain is intact.
func (l *Ledger) VerifyIntegrity() (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ok, idx := l.verifyLocked()
	if l.metrics != nil {
		l.metrics.IncIntegrityCheck(ok)
	}
	return ok, idx
}

func (l *Ledger) verifyLocked() (bool, int) {
	for i := range l.entries {
		if i > 0 && l.entries[i].PrevHash != l.entries[i-1].Hash {
			return false, i
		}
		if l.entries[i].Hash != ComputeHash(l.entries[i]) {
			return false, i
		}
	}
	return true, -1
}

// NodeState returns the most recently accepted phase state for a node.
//
// Errors: CodeNotFound for unknown nodes.
func (l *Ledger) NodeState(id domain.NodeID) (transform.PhaseState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	state, ok := l.nodeStates[id]
	if !ok {
		return transform.PhaseState{}, dErrors.Newf(dErrors.CodeNotFound, "unknown node %s", id)
	}
	return state, nil
}

// GroupState returns the latest computed synchrony summary for a group.
//
// Errors: CodeNotFound for groups without a committed coherence entry.
func (l *Ledger) GroupState(id domain.GroupID) (coherence.GroupState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	state, ok := l.groupStates[id]
	if !ok {
		return coherence.GroupState{}, dErrors.Newf(dErrors.CodeNotFound, "unknown group %s", id)
	}
	return state, nil
}

// Entries returns a defensive copy of the full history, oldest first.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return copyEntries(l.entries)
}

// Len returns the current chain length, genesis included.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Timeline returns every entry attributed to a session, oldest first.
//
// Errors: CodeNotFound when the session has no entries.
func (l *Ledger) Timeline(sessionID domain.SessionID) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Entry
	for i, sid := range l.entrySessions {
		if sid == sessionID {
			out = append(out, cloneEntry(l.entries[i]))
		}
	}
	if len(out) == 0 {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no entries for session %s", sessionID)
	}
	return out, nil
}

// ResolveSession returns the latest non-revoked observation packet for a
// session, applying revocations without touching the underlying entries.
//
// Errors: CodeNotFound when the session has no active observation.
func (l *Ledger) ResolveSession(sessionID domain.SessionID) (ObservationPacket, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	packet, _, err := l.resolveSessionLocked(sessionID)
	return packet, err
}

func (l *Ledger) resolveSessionLocked(sessionID domain.SessionID) (ObservationPacket, sessionCounts, error) {
	var counts sessionCounts
	var resolved *ObservationPacket

	for i, sid := range l.entrySessions {
		if sid != sessionID || l.entries[i].Type != EntryTypeObservation {
			continue
		}
		counts.total++
		if l.revoked[l.entries[i].Hash] {
			counts.revoked++
			continue
		}
		var packet ObservationPacket
		if err := json.Unmarshal(l.entries[i].Payload, &packet); err != nil {
			return ObservationPacket{}, counts, dErrors.Newf(dErrors.CodeInternal, "decode observation %s: %v", l.entries[i].EntryID, err)
		}
		resolved = &packet
	}
	counts.active = counts.total - counts.revoked

	if resolved == nil {
		return ObservationPacket{}, counts, dErrors.Newf(dErrors.CodeNotFound, "no active observation for session %s", sessionID)
	}
	return *resolved, counts, nil
}

type sessionCounts struct {
	total   int
	revoked int
	active  int
}

// SnapshotSession appends a snapshot entry freezing the session's resolved
// lineage. A session whose observations are all revoked still snapshots, with
// a nil resolved state; a session with no entries at all is NotFound.
func (l *Ledger) SnapshotSession(sessionID domain.SessionID, note string) (Entry, error) {
	l.mu.Lock()
	packet, counts, err := l.resolveSessionLocked(sessionID)

	var resolved *ObservationPacket
	switch {
	case err == nil:
		resolved = &packet
	case IsNotFound(err) && counts.total > 0:
		// Fully revoked session: snapshot the absence.
	default:
		l.mu.Unlock()
		return Entry{}, err
	}

	entry, err := l.appendLocked(EntryTypeSnapshot, sessionID, SnapshotPayload{
		SessionID:    sessionID,
		Note:         note,
		Resolved:     resolved,
		ActiveCount:  counts.active,
		TotalCount:   counts.total,
		RevokedCount: counts.revoked,
	})
	if err != nil {
		l.mu.Unlock()
		return Entry{}, err
	}
	l.notifier.Publish(entry)
	l.mu.Unlock()
	return entry, nil
}

// GroupMembers returns the node ids currently attributed to a group.
//
// Errors: CodeNotFound when the group has no members.
func (l *Ledger) GroupMembers(id domain.GroupID) ([]domain.NodeID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	members, ok := l.groupMembers[id]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "unknown group %s", id)
	}
	out := make([]domain.NodeID, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out, nil
}

func copyEntries(in []Entry) []Entry {
	out := make([]Entry, len(in))
	for i, e := range in {
		out[i] = cloneEntry(e)
	}
	return out
}

func cloneEntry(e Entry) Entry {
	clone := e
	clone.Payload = append(json.RawMessage(nil), e.Payload...)
	return clone
}

// IsNotFound reports whether err is the ledger's not-found condition, in
// either its sentinel or coded form.
func IsNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound) || dErrors.Is(err, dErrors.CodeNotFound)
}
