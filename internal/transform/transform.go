// Package transform converts named spectral feature weights into geometric
// phase states and the vitality metrics derived from them. Everything here is
// pure and deterministic: no state, no clock, no failure modes. Boundary
// validation of identifiers and consent lives with the callers.
package transform

import (
	"math"
	"time"
)

// Recognized feature keys. Unknown keys are ignored and missing keys read as
// zero, so a caller that supplies none of these gets the degenerate zero
// state (theta 0, amplitude at the floor).
const (
	FeatureDelta    = "delta"
	FeatureTheta    = "theta"
	FeatureAlpha    = "alpha"
	FeatureSMR      = "smr"
	FeatureLowBeta  = "low_beta"
	FeatureHighBeta = "high_beta"
	FeatureGamma    = "gamma"
)

// angleWeights maps each recognized key to its radian weight. Low-frequency
// features pull the angle toward the start of the circle, high-frequency
// features toward the end.
var angleWeights = map[string]float64{
	FeatureDelta:    math.Pi / 8,
	FeatureTheta:    math.Pi / 4,
	FeatureAlpha:    math.Pi / 2,
	FeatureSMR:      3 * math.Pi / 4,
	FeatureLowBeta:  math.Pi,
	FeatureHighBeta: 5 * math.Pi / 4,
	FeatureGamma:    3 * math.Pi / 2,
}

// Amplitude constants. The offset keeps amplitude strictly positive even for
// an all-zero feature vector; the scale puts a fully saturated coherence pair
// near the vitality ceiling.
const (
	amplitudeScale  = 0.9
	amplitudeOffset = 0.3
)

// EpsilonBase scales vitality into the epsilon_d adjustment carried on
// observation packets.
const EpsilonBase = 0.0417

// singularityEps is the |observer| threshold below which vhitzee is treated
// as a signed infinity rather than computed by division.
const singularityEps = 1e-10

// PhaseState is one node's instantaneous angular position.
type PhaseState struct {
	Theta      float64   `json:"theta"`
	Amplitude  float64   `json:"amplitude"`
	Phase      float64   `json:"phase"`
	ObservedAt time.Time `json:"observed_at"`
}

// Triad holds the sine/cosine/tangent-equivalent projections of a phase
// state. Vhitzee may be a signed infinity; that is a domain value, not an
// error.
type Triad struct {
	Jolt     float64 `json:"jolt"`
	Observer float64 `json:"observer"`
	Vhitzee  float64 `json:"vhitzee"`
}

// Recommendation is the closed set of posture suggestions Classify emits.
type Recommendation string

const (
	RecommendationProtect Recommendation = "protect"
	RecommendationBoostOK Recommendation = "boost_ok"
	RecommendationNeutral Recommendation = "neutral"
)

// Classification summarizes the stress posture of a triad.
type Classification struct {
	NearSingularity bool           `json:"near_singularity"`
	HighStress      bool           `json:"high_stress"`
	Recommendation  Recommendation `json:"recommendation"`
}

// ToPhaseState maps a feature vector into phase space.
//
// The angle is a fixed weighted linear combination of the recognized keys,
// wrapped into [0, 2pi). The amplitude is derived from the coherence pair
// (alpha + smr): sqrt(alpha+smr)*0.9 + 0.3, which is positive even when both
// are zero.
func ToPhaseState(features map[string]float64, observedAt time.Time) PhaseState {
	var theta float64
	for key, weight := range angleWeights {
		theta += weight * features[key]
	}
	theta = math.Mod(theta, 2*math.Pi)
	if theta < 0 {
		theta += 2 * math.Pi
	}

	coherence := features[FeatureAlpha] + features[FeatureSMR]
	amplitude := math.Sqrt(coherence)*amplitudeScale + amplitudeOffset

	return PhaseState{
		Theta:      theta,
		Amplitude:  amplitude,
		Phase:      0,
		ObservedAt: observedAt,
	}
}

// ComputeTriad projects a phase state onto its jolt/observer/vhitzee triad.
//
// When |observer| falls under the singularity threshold the ratio is a signed
// infinity: +Inf for jolt >= 0, -Inf otherwise. The zero-amplitude case
// (jolt and observer both zero) resolves to +Inf by that same rule.
func ComputeTriad(state PhaseState) Triad {
	total := state.Theta + state.Phase
	jolt := state.Amplitude * math.Sin(total)
	observer := state.Amplitude * math.Cos(total)

	var vhitzee float64
	if math.Abs(observer) < singularityEps {
		if jolt >= 0 {
			vhitzee = math.Inf(1)
		} else {
			vhitzee = math.Inf(-1)
		}
	} else {
		vhitzee = jolt / observer
	}

	return Triad{Jolt: jolt, Observer: observer, Vhitzee: vhitzee}
}

// ComputeVitality folds a triad into the bounded vitality scalar.
// The result is always inside [0.5, 1.5]; the opposition penalty saturates at
// exactly 0.3 when vhitzee is non-finite.
func ComputeVitality(triad Triad) float64 {
	j := math.Min(math.Abs(triad.Jolt), 1)
	o := math.Min(math.Abs(triad.Observer), 1)

	penalty := 0.3
	if !math.IsInf(triad.Vhitzee, 0) && !math.IsNaN(triad.Vhitzee) {
		penalty = math.Min(math.Abs(triad.Vhitzee)/10, 0.3)
	}

	raw := 0.6*o + 0.4*j - penalty
	return clamp(raw+0.5, 0.5, 1.5)
}

// ComputeEpsilon derives the epsilon_d adjustment from a vitality score.
func ComputeEpsilon(vitality float64) float64 {
	return EpsilonBase * vitality
}

// Classify derives the stress posture of a triad. A non-finite vhitzee is
// automatically high stress.
func Classify(triad Triad) Classification {
	nearSingularity := math.IsInf(triad.Vhitzee, 0) || math.IsNaN(triad.Vhitzee)
	highStress := nearSingularity || math.Abs(triad.Vhitzee) > 3

	rec := RecommendationNeutral
	switch {
	case highStress:
		rec = RecommendationProtect
	case math.Abs(triad.Observer) > 0.7 && math.Abs(triad.Vhitzee) < 1:
		rec = RecommendationBoostOK
	}

	return Classification{
		NearSingularity: nearSingularity,
		HighStress:      highStress,
		Recommendation:  rec,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
