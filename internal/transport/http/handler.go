// Package httptransport is the thin HTTP layer over the phase ledger. It
// delegates to the witness service and the ledger without embedding business
// logic so transport concerns remain isolated.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"northstar/internal/coherence"
	"northstar/internal/ledger"
	"northstar/internal/transform"
	"northstar/internal/witness"
	"northstar/pkg/domain"
	dErrors "northstar/pkg/domain-errors"
	"northstar/pkg/platform/httputil"
)

// Submitter is the witness surface the transport calls.
type Submitter interface {
	SubmitObservation(ctx context.Context, req witness.Request) (witness.Result, error)
}

// LedgerReader is the query surface over the committed chain.
type LedgerReader interface {
	Entries() []ledger.Entry
	Len() int
	VerifyIntegrity() (bool, int)
	NodeState(id domain.NodeID) (transform.PhaseState, error)
	GroupState(id domain.GroupID) (coherence.GroupState, error)
	Timeline(sessionID domain.SessionID) ([]ledger.Entry, error)
	ResolveSession(sessionID domain.SessionID) (ledger.ObservationPacket, error)
	SnapshotSession(sessionID domain.SessionID, note string) (ledger.Entry, error)
	Revoke(targetHash, reason string) (ledger.Entry, error)
	IsRevoked(hash string) bool
}

// Handler wires ledger endpoints to the witness service and the ledger.
type Handler struct {
	submitter Submitter
	ledger    LedgerReader
	logger    *slog.Logger
}

// New constructs the transport handler with its dependencies.
func New(submitter Submitter, ledger LedgerReader, logger *slog.Logger) *Handler {
	return &Handler{
		submitter: submitter,
		ledger:    ledger,
		logger:    logger,
	}
}

// Register mounts all ledger endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/observations", h.HandleSubmitObservation)
	r.Post("/revocations", h.HandleRevoke)
	r.Get("/entries", h.HandleListEntries)
	r.Get("/entries/verify", h.HandleVerify)
	r.Get("/entries/{hash}/revoked", h.HandleIsRevoked)
	r.Get("/nodes/{nodeID}", h.HandleNodeState)
	r.Get("/groups/{groupID}", h.HandleGroupState)
	r.Get("/sessions/{sessionID}/timeline", h.HandleTimeline)
	r.Get("/sessions/{sessionID}/resolve", h.HandleResolveSession)
	r.Post("/sessions/{sessionID}/snapshots", h.HandleSnapshotSession)
}

// HandleSubmitObservation handles POST /observations.
func (h *Handler) HandleSubmitObservation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	req, err := httputil.Decode[witness.Request](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.submitter.SubmitObservation(ctx, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "observation submitted",
		"node_id", req.NodeID,
		"session_id", req.SessionID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, result)
}

type revokeRequest struct {
	TargetHash string `json:"target_hash"`
	Reason     string `json:"reason"`
}

// HandleRevoke handles POST /revocations.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[revokeRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.TargetHash == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "target_hash is required"))
		return
	}

	entry, err := h.ledger.Revoke(req.TargetHash, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, entry)
}

// HandleListEntries handles GET /entries.
func (h *Handler) HandleListEntries(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"length":  h.ledger.Len(),
		"entries": h.ledger.Entries(),
	})
}

// HandleVerify handles GET /entries/verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ok, idx := h.ledger.VerifyIntegrity()
	if !ok {
		h.logger.ErrorContext(r.Context(), "chain integrity violation", "index", idx)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"intact":          ok,
		"violation_index": idx,
	})
}

// HandleIsRevoked handles GET /entries/{hash}/revoked.
func (h *Handler) HandleIsRevoked(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"hash":    hash,
		"revoked": h.ledger.IsRevoked(hash),
	})
}

// HandleNodeState handles GET /nodes/{nodeID}.
func (h *Handler) HandleNodeState(w http.ResponseWriter, r *http.Request) {
	nodeID, err := domain.ParseNodeID(chi.URLParam(r, "nodeID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	state, err := h.ledger.NodeState(nodeID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, state)
}

// HandleGroupState handles GET /groups/{groupID}.
func (h *Handler) HandleGroupState(w http.ResponseWriter, r *http.Request) {
	groupID, err := domain.ParseGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	state, err := h.ledger.GroupState(groupID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, state)
}

// HandleTimeline handles GET /sessions/{sessionID}/timeline.
func (h *Handler) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	sessionID, err := domain.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.ledger.Timeline(sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"entries":    entries,
	})
}

// HandleResolveSession handles GET /sessions/{sessionID}/resolve.
func (h *Handler) HandleResolveSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := domain.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	packet, err := h.ledger.ResolveSession(sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, packet)
}

type snapshotRequest struct {
	Note string `json:"note"`
}

// HandleSnapshotSession handles POST /sessions/{sessionID}/snapshots.
func (h *Handler) HandleSnapshotSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := domain.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := httputil.Decode[snapshotRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entry, err := h.ledger.SnapshotSession(sessionID, req.Note)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, entry)
}
