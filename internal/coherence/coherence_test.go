package coherence

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"northstar/internal/transform"
	"northstar/pkg/domain"
	"northstar/pkg/platform/sentinel"
)

func stateAt(theta float64) transform.PhaseState {
	return transform.PhaseState{
		Theta:      theta,
		Amplitude:  1.0,
		ObservedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

// Four nodes at 0, pi/4, pi/2, 3pi/4 with unit amplitude. The closed forms:
// mean theta atan2(1+sqrt2, 1) = 3pi/8, variance 5pi^2/64, synchrony
// 64/(64+5pi^2).
func TestRecompute_QuarterTurnFan(t *testing.T) {
	agg := NewAggregator()
	members := map[domain.NodeID]transform.PhaseState{
		"n-01": stateAt(0),
		"n-02": stateAt(math.Pi / 4),
		"n-03": stateAt(math.Pi / 2),
		"n-04": stateAt(3 * math.Pi / 4),
	}

	now := time.Date(2026, 3, 14, 9, 5, 0, 0, time.UTC)
	state, err := agg.Recompute("grp-fan", members, now)
	require.NoError(t, err)

	wantVariance := 5 * math.Pi * math.Pi / 64

	assert.InDelta(t, 3*math.Pi/8, state.MeanTheta, 1e-12)
	assert.InDelta(t, wantVariance, state.PhaseVariance, 1e-12)
	assert.InDelta(t, 64/(64+5*math.Pi*math.Pi), state.SynchronyIndex, 1e-12)
	assert.Equal(t, StatusModerateCoherence, state.Status)
	assert.Equal(t, now, state.ComputedAt)
	assert.Len(t, state.MemberSnapshot, 4)
}

func TestRecompute_PerfectAlignment(t *testing.T) {
	agg := NewAggregator()
	members := map[domain.NodeID]transform.PhaseState{
		"n-01": stateAt(1.2),
		"n-02": stateAt(1.2),
		"n-03": stateAt(1.2),
	}

	state, err := agg.Recompute("grp-aligned", members, time.Now())
	require.NoError(t, err)
	assert.InDelta(t, 1.2, state.MeanTheta, 1e-12)
	assert.InDelta(t, 0, state.PhaseVariance, 1e-12)
	assert.InDelta(t, 1.0, state.SynchronyIndex, 1e-12)
	assert.Equal(t, StatusCollectiveCoilEngaged, state.Status)
}

// Angles near 0 and near 2pi are neighbors on the circle; naive arithmetic
// distance would call them maximally far apart.
func TestRecompute_WrapAround(t *testing.T) {
	agg := NewAggregator()
	members := map[domain.NodeID]transform.PhaseState{
		"n-01": stateAt(0.05),
		"n-02": stateAt(2*math.Pi - 0.05),
	}

	state, err := agg.Recompute("grp-wrap", members, time.Now())
	require.NoError(t, err)
	// The mean sits at the seam; assert proximity on the circle, not on the
	// real line, since rounding may land it just below 2pi.
	assert.InDelta(t, 0, angularDistance(state.MeanTheta, 0), 1e-9)
	assert.GreaterOrEqual(t, state.MeanTheta, 0.0)
	assert.InDelta(t, 0.05*0.05, state.PhaseVariance, 1e-9)
	assert.Greater(t, state.SynchronyIndex, 0.8)
	assert.Equal(t, StatusCollectiveCoilEngaged, state.Status)
}

// Member thetas live in [0, 2pi); the mean must come back on the same branch
// rather than atan2's (-pi, pi].
func TestRecompute_MeanThetaOnPositiveBranch(t *testing.T) {
	agg := NewAggregator()
	members := map[domain.NodeID]transform.PhaseState{
		"n-01": stateAt(3 * math.Pi / 2),
		"n-02": stateAt(3 * math.Pi / 2),
	}

	state, err := agg.Recompute("grp-branch", members, time.Now())
	require.NoError(t, err)
	assert.InDelta(t, 3*math.Pi/2, state.MeanTheta, 1e-12)
	assert.InDelta(t, 0, state.PhaseVariance, 1e-12)
}

func TestRecompute_EmptyGroup(t *testing.T) {
	agg := NewAggregator()
	_, err := agg.Recompute("grp-empty", nil, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))
}

func TestRecompute_SingleMember(t *testing.T) {
	agg := NewAggregator()
	state, err := agg.Recompute("grp-one", map[domain.NodeID]transform.PhaseState{
		"n-solo": stateAt(2.0),
	}, time.Now())
	require.NoError(t, err)
	assert.InDelta(t, 2.0, state.MeanTheta, 1e-12)
	assert.InDelta(t, 0, state.PhaseVariance, 1e-12)
	assert.InDelta(t, 1.0, state.SynchronyIndex, 1e-12)
}

func TestRecompute_Deterministic(t *testing.T) {
	agg := NewAggregator()
	members := map[domain.NodeID]transform.PhaseState{
		"n-01": stateAt(0.3),
		"n-02": stateAt(1.7),
		"n-03": stateAt(4.1),
	}
	now := time.Now()

	first, err := agg.Recompute("grp-det", members, now)
	require.NoError(t, err)
	second, err := agg.Recompute("grp-det", members, now)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAngularDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b float64
		want float64
	}{
		{"identical", 1.0, 1.0, 0},
		{"quarter turn", 0, math.Pi / 2, math.Pi / 2},
		{"opposite", 0, math.Pi, math.Pi},
		{"wraps short way", 0.1, 2*math.Pi - 0.1, 0.2},
		{"symmetric", 2*math.Pi - 0.1, 0.1, 0.2},
		{"mixed branches", 7 * math.Pi / 4, -math.Pi, 3 * math.Pi / 4},
		{"beyond full turn", 5 * math.Pi, 0, math.Pi},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, angularDistance(tt.a, tt.b), 1e-12)
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		index float64
		want  Status
	}{
		{0.95, StatusCollectiveCoilEngaged},
		{0.81, StatusCollectiveCoilEngaged},
		{0.8, StatusHighCoherence},
		{0.61, StatusHighCoherence},
		{0.6, StatusModerateCoherence},
		{0.41, StatusModerateCoherence},
		{0.4, StatusLowCoherence},
		{0.1, StatusLowCoherence},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.index), "index %v", tt.index)
	}
}
