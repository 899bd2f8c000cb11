package witness

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"northstar/internal/coherence"
	"northstar/internal/consent"
	"northstar/internal/ledger"
	dErrors "northstar/pkg/domain-errors"
)

func newService(t *testing.T) (*Service, *ledger.Ledger) {
	t.Helper()
	l := ledger.New(consent.NewGate(), coherence.NewAggregator())
	fixed := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	return NewService(l, WithClock(func() time.Time { return fixed })), l
}

func validRequest() Request {
	return Request{
		NodeID:    "node-w1",
		SessionID: "sess-w1",
		Features: map[string]float64{
			"alpha": 0.5,
			"smr":   0.3,
			"gamma": 0.1,
		},
		Consent: consent.Descriptor{
			Scope:            []string{"research_aggregate"},
			RetentionMode:    consent.RetentionBounded,
			RevocationPolicy: consent.RevocationKeepAggregates,
			Classification:   consent.ClassificationAggregate,
		},
	}
}

func TestSubmitObservation_Admits(t *testing.T) {
	svc, l := newService(t)

	result, err := svc.SubmitObservation(context.Background(), validRequest())
	require.NoError(t, err)

	require.Len(t, result.Entries, 1)
	assert.Equal(t, ledger.EntryTypeObservation, result.Entries[0].Type)
	assert.Greater(t, result.State.Amplitude, 0.0)
	assert.GreaterOrEqual(t, result.Vitality, 0.5)
	assert.LessOrEqual(t, result.Vitality, 1.5)
	assert.InDelta(t, 0.0417*result.Vitality, result.EpsilonD, 1e-12)

	state, err := l.NodeState("node-w1")
	require.NoError(t, err)
	assert.Equal(t, result.State, state)
}

func TestSubmitObservation_GroupedProducesCoherence(t *testing.T) {
	svc, l := newService(t)

	req := validRequest()
	req.GroupID = "grp-w"
	result, err := svc.SubmitObservation(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)
	assert.Equal(t, ledger.EntryTypeGroupCoherence, result.Entries[1].Type)

	_, err = l.GroupState("grp-w")
	assert.NoError(t, err)
}

func TestSubmitObservation_Validation(t *testing.T) {
	svc, l := newService(t)

	tests := []struct {
		name   string
		mutate func(*Request)
		code   dErrors.Code
	}{
		{"short node id", func(r *Request) { r.NodeID = "x" }, dErrors.CodeInvalidInput},
		{"short session id", func(r *Request) { r.SessionID = "" }, dErrors.CodeInvalidInput},
		{"short group id", func(r *Request) { r.GroupID = "g" }, dErrors.CodeInvalidInput},
		{"empty features", func(r *Request) { r.Features = nil }, dErrors.CodeInvalidInput},
		{"non-finite feature", func(r *Request) { r.Features["alpha"] = math.NaN() }, dErrors.CodeInvalidInput},
		{"negative feature", func(r *Request) { r.Features["alpha"] = -1.0 }, dErrors.CodeInvalidInput},
		{"amplitude above ceiling", func(r *Request) { r.Features["alpha"] = 100 }, dErrors.CodeInvalidInput},
		{"invalid retention enum", func(r *Request) { r.Consent.RetentionMode = "forever" }, dErrors.CodeInvalidInput},
		{"raw classification", func(r *Request) { r.Consent.Classification = consent.ClassificationRaw }, dErrors.CodeConsentRejected},
		{"prohibited scope", func(r *Request) { r.Consent.Prohibited = []string{"research_aggregate"} }, dErrors.CodeConsentRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			_, err := svc.SubmitObservation(context.Background(), req)
			require.Error(t, err)
			assert.True(t, dErrors.Is(err, tt.code), "got %v", err)
		})
	}

	assert.Equal(t, 1, l.Len(), "no rejected submission may touch the ledger")
}

// A negative alpha/smr sum would drive the amplitude to NaN, which slips past
// a naive `<= 0 || > max` bound and only errors at payload encoding. Negative
// features must reject up front with the validation code.
func TestSubmitObservation_RejectsNegativeFeatures(t *testing.T) {
	svc, l := newService(t)

	req := validRequest()
	req.Features = map[string]float64{"alpha": -1.0, "smr": 0.2}

	_, err := svc.SubmitObservation(context.Background(), req)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeInvalidInput), "got %v", err)
	assert.False(t, dErrors.Is(err, dErrors.CodeInternal))
	assert.Equal(t, 1, l.Len(), "nothing may append on rejection")
}

func TestSubmitObservation_DeterministicPacket(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	first, err := svc.SubmitObservation(ctx, validRequest())
	require.NoError(t, err)
	second, err := svc.SubmitObservation(ctx, validRequest())
	require.NoError(t, err)

	assert.Equal(t, first.State, second.State, "same features at the same clock give the same state")
	assert.Equal(t, first.Triad, second.Triad)
	assert.Equal(t, first.Vitality, second.Vitality)
}
