// Package witness accepts raw observation submissions, runs the geometric
// transform, and hands admissible packets to the phase ledger. It is the one
// place where untrusted input becomes a typed, validated packet.
package witness

import (
	"context"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"northstar/internal/consent"
	"northstar/internal/ledger"
	"northstar/internal/platform/metrics"
	"northstar/internal/transform"
	"northstar/pkg/domain"
	dErrors "northstar/pkg/domain-errors"
)

// amplitude admission ceiling. The transform cannot exceed it for sane
// feature inputs; a packet above it means the submitter sent garbage scales.
const maxAmplitude = 1.5

// Recorder is the ledger surface the service writes through.
type Recorder interface {
	RecordObservation(ctx context.Context, packet ledger.ObservationPacket) ([]ledger.Entry, error)
}

// Request is one raw submission before validation.
type Request struct {
	NodeID    string             `json:"node_id"`
	SessionID string             `json:"session_id"`
	GroupID   string             `json:"group_id,omitempty"`
	Features  map[string]float64 `json:"features"`
	Consent   consent.Descriptor `json:"consent"`
}

// Result is the accepted submission's derived view, returned to the caller.
type Result struct {
	Entries        []ledger.Entry           `json:"entries"`
	State          transform.PhaseState     `json:"state"`
	Triad          transform.Triad          `json:"triad"`
	Vitality       float64                  `json:"vitality"`
	EpsilonD       float64                  `json:"epsilon_d"`
	Classification transform.Classification `json:"classification"`
}

// Service orchestrates submission admission.
type Service struct {
	recorder Recorder
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	now      func() time.Time
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(recorder Recorder, opts ...Option) *Service {
	s := &Service{
		recorder: recorder,
		logger:   slog.Default(),
		tracer:   otel.Tracer("northstar/witness"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitObservation validates, transforms, and records one submission.
//
// The pipeline: parse identifiers, derive the phase state and its triad,
// enforce the geometric admission bounds, then hand the packet to the
// ledger, whose consent gate decides admission before anything mutates.
//
// Errors: CodeInvalidInput, CodeConsentRejected, CodeInternal.
func (s *Service) SubmitObservation(ctx context.Context, req Request) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "witness.SubmitObservation")
	defer span.End()

	nodeID, err := domain.ParseNodeID(req.NodeID)
	if err != nil {
		return Result{}, err
	}
	sessionID, err := domain.ParseSessionID(req.SessionID)
	if err != nil {
		return Result{}, err
	}
	groupID, err := domain.ParseGroupID(req.GroupID)
	if err != nil {
		return Result{}, err
	}
	if len(req.Features) == 0 {
		return Result{}, dErrors.New(dErrors.CodeInvalidInput, "feature vector is empty")
	}
	for key, v := range req.Features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Result{}, dErrors.Newf(dErrors.CodeInvalidInput, "feature %q is not finite", key)
		}
		if v < 0 {
			return Result{}, dErrors.Newf(dErrors.CodeInvalidInput, "feature %q is negative", key)
		}
	}

	observedAt := s.now().UTC()
	state := transform.ToPhaseState(req.Features, observedAt)
	// Written as the admissible condition so a NaN amplitude also rejects.
	if !(state.Amplitude > 0 && state.Amplitude <= maxAmplitude) {
		return Result{}, dErrors.Newf(dErrors.CodeInvalidInput, "amplitude %.4f outside admissible range (0, %.1f]", state.Amplitude, maxAmplitude)
	}

	triad := transform.ComputeTriad(state)
	vitality := transform.ComputeVitality(triad)

	packet := ledger.ObservationPacket{
		SessionID:      sessionID,
		NodeID:         nodeID,
		GroupID:        groupID,
		State:          state,
		Triad:          triad,
		Vitality:       vitality,
		EpsilonD:       transform.ComputeEpsilon(vitality),
		Classification: transform.Classify(triad),
		Consent:        req.Consent,
		ConsentDigest:  req.Consent.Digest(),
		CreatedAt:      observedAt,
	}

	span.SetAttributes(
		attribute.String("node_id", nodeID.String()),
		attribute.String("session_id", sessionID.String()),
		attribute.Bool("grouped", !groupID.IsZero()),
	)

	entries, err := s.recorder.RecordObservation(ctx, packet)
	if err != nil {
		s.logger.WarnContext(ctx, "submission not admitted",
			"node_id", nodeID,
			"session_id", sessionID,
			"error", err,
		)
		return Result{}, err
	}

	s.logger.InfoContext(ctx, "observation admitted",
		"node_id", nodeID,
		"session_id", sessionID,
		"group_id", groupID,
		"vitality", vitality,
	)

	return Result{
		Entries:        entries,
		State:          state,
		Triad:          triad,
		Vitality:       vitality,
		EpsilonD:       packet.EpsilonD,
		Classification: packet.Classification,
	}, nil
}
