package transform

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var observedAt = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func TestToPhaseState(t *testing.T) {
	t.Run("angle is the weighted feature sum", func(t *testing.T) {
		state := ToPhaseState(map[string]float64{
			FeatureDelta: 1.0,
			FeatureTheta: 1.0,
		}, observedAt)
		assert.InDelta(t, math.Pi/8+math.Pi/4, state.Theta, 1e-12)
		assert.Equal(t, observedAt, state.ObservedAt)
		assert.Zero(t, state.Phase)
	})

	t.Run("angle wraps into the unit circle", func(t *testing.T) {
		state := ToPhaseState(map[string]float64{
			FeatureGamma: 2.0, // 3pi total
		}, observedAt)
		assert.GreaterOrEqual(t, state.Theta, 0.0)
		assert.Less(t, state.Theta, 2*math.Pi)
		assert.InDelta(t, math.Pi, state.Theta, 1e-12)
	})

	t.Run("negative weighted sum wraps positive", func(t *testing.T) {
		state := ToPhaseState(map[string]float64{
			FeatureAlpha: -1.0, // -pi/2
		}, observedAt)
		assert.InDelta(t, 3*math.Pi/2, state.Theta, 1e-12)
	})

	t.Run("amplitude from the coherence pair", func(t *testing.T) {
		state := ToPhaseState(map[string]float64{
			FeatureAlpha: 0.5,
			FeatureSMR:   0.5,
		}, observedAt)
		assert.InDelta(t, 0.9+0.3, state.Amplitude, 1e-12)
	})

	t.Run("empty features yield the floor state", func(t *testing.T) {
		state := ToPhaseState(nil, observedAt)
		assert.Zero(t, state.Theta)
		assert.InDelta(t, 0.3, state.Amplitude, 1e-12)
	})

	t.Run("unknown keys are ignored", func(t *testing.T) {
		with := ToPhaseState(map[string]float64{FeatureAlpha: 1, "mystery": 42}, observedAt)
		without := ToPhaseState(map[string]float64{FeatureAlpha: 1}, observedAt)
		assert.Equal(t, without, with)
	})
}

func TestToPhaseState_Pure(t *testing.T) {
	features := map[string]float64{FeatureAlpha: 0.4, FeatureGamma: 0.2}
	first := ToPhaseState(features, observedAt)
	second := ToPhaseState(features, observedAt)
	assert.Equal(t, first, second)
	assert.Equal(t, map[string]float64{FeatureAlpha: 0.4, FeatureGamma: 0.2}, features, "input must not be mutated")
}

func TestComputeTriad(t *testing.T) {
	t.Run("jolt and observer satisfy the amplitude identity", func(t *testing.T) {
		for _, theta := range []float64{0.1, 1.0, 2.5, 4.0, 6.0} {
			state := PhaseState{Theta: theta, Amplitude: 1.3}
			triad := ComputeTriad(state)
			assert.InDelta(t, 1.3*1.3, triad.Jolt*triad.Jolt+triad.Observer*triad.Observer, 1e-9, "theta %v", theta)
		}
	})

	t.Run("vhitzee is the ratio away from the singularity", func(t *testing.T) {
		triad := ComputeTriad(PhaseState{Theta: math.Pi / 4, Amplitude: 1.0})
		assert.InDelta(t, 1.0, triad.Vhitzee, 1e-9)
	})

	t.Run("positive jolt at the singularity yields plus infinity", func(t *testing.T) {
		triad := ComputeTriad(PhaseState{Theta: math.Pi / 2, Amplitude: 1.0})
		assert.True(t, math.IsInf(triad.Vhitzee, 1))
	})

	t.Run("negative jolt at the singularity yields minus infinity", func(t *testing.T) {
		triad := ComputeTriad(PhaseState{Theta: 3 * math.Pi / 2, Amplitude: 1.0})
		assert.True(t, math.IsInf(triad.Vhitzee, -1))
	})

	t.Run("zero amplitude resolves to plus infinity", func(t *testing.T) {
		triad := ComputeTriad(PhaseState{Theta: 1.0, Amplitude: 0})
		assert.Zero(t, triad.Jolt)
		assert.Zero(t, triad.Observer)
		assert.True(t, math.IsInf(triad.Vhitzee, 1))
	})
}

func TestComputeVitality(t *testing.T) {
	t.Run("always inside the band", func(t *testing.T) {
		for theta := 0.0; theta < 2*math.Pi; theta += 0.01 {
			for _, amp := range []float64{0, 0.3, 1.0, 1.5} {
				v := ComputeVitality(ComputeTriad(PhaseState{Theta: theta, Amplitude: amp}))
				assert.GreaterOrEqual(t, v, 0.5)
				assert.LessOrEqual(t, v, 1.5)
			}
		}
	})

	t.Run("non-finite vhitzee takes the full penalty", func(t *testing.T) {
		triad := Triad{Jolt: 1.0, Observer: 0, Vhitzee: math.Inf(1)}
		// 0.6*0 + 0.4*1 - 0.3 + 0.5
		assert.InDelta(t, 0.6, ComputeVitality(triad), 1e-12)
	})

	t.Run("balanced triad", func(t *testing.T) {
		triad := ComputeTriad(PhaseState{Theta: math.Pi / 4, Amplitude: 1.0})
		// jolt = observer = sqrt2/2, vhitzee = 1, penalty 0.1
		want := 0.6*math.Sqrt2/2 + 0.4*math.Sqrt2/2 - 0.1 + 0.5
		assert.InDelta(t, want, ComputeVitality(triad), 1e-9)
	})

	t.Run("magnitudes cap at one", func(t *testing.T) {
		triad := Triad{Jolt: 5, Observer: 5, Vhitzee: 1}
		want := 0.6 + 0.4 - 0.1 + 0.5 // clamped to 1.5 ceiling... raw 1.4
		assert.InDelta(t, want, ComputeVitality(triad), 1e-12)
	})
}

func TestComputeEpsilon(t *testing.T) {
	assert.InDelta(t, 0.0417, ComputeEpsilon(1.0), 1e-12)
	assert.InDelta(t, 0.0417*1.5, ComputeEpsilon(1.5), 1e-12)
	assert.InDelta(t, 0.0417*0.5, ComputeEpsilon(0.5), 1e-12)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		triad Triad
		want  Classification
	}{
		{
			name:  "infinite vhitzee",
			triad: Triad{Jolt: 1, Observer: 0, Vhitzee: math.Inf(1)},
			want:  Classification{NearSingularity: true, HighStress: true, Recommendation: RecommendationProtect},
		},
		{
			name:  "large finite ratio",
			triad: Triad{Jolt: 0.9, Observer: 0.2, Vhitzee: 4.5},
			want:  Classification{NearSingularity: false, HighStress: true, Recommendation: RecommendationProtect},
		},
		{
			name:  "strong observer",
			triad: Triad{Jolt: 0.3, Observer: 0.9, Vhitzee: 0.33},
			want:  Classification{NearSingularity: false, HighStress: false, Recommendation: RecommendationBoostOK},
		},
		{
			name:  "middling",
			triad: Triad{Jolt: 0.6, Observer: 0.5, Vhitzee: 1.2},
			want:  Classification{NearSingularity: false, HighStress: false, Recommendation: RecommendationNeutral},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.triad))
		})
	}
}

func TestTriadJSON_RoundTripsInfinity(t *testing.T) {
	for _, triad := range []Triad{
		{Jolt: 0.5, Observer: 0.8, Vhitzee: 0.625},
		{Jolt: 1, Observer: 0, Vhitzee: math.Inf(1)},
		{Jolt: -1, Observer: 0, Vhitzee: math.Inf(-1)},
	} {
		raw, err := triad.MarshalJSON()
		require.NoError(t, err)

		var decoded Triad
		require.NoError(t, decoded.UnmarshalJSON(raw))
		assert.Equal(t, triad, decoded)
	}
}
