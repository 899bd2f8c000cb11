// Package coherence computes group synchrony from a snapshot of member phase
// states using circular statistics. The aggregator is deterministic: the same
// snapshot always produces the same result.
package coherence

import (
	"fmt"
	"math"
	"time"

	"northstar/internal/transform"
	"northstar/pkg/domain"
	"northstar/pkg/platform/sentinel"
)

// Status is the closed set of synchrony bands, evaluated in order on the
// synchrony index.
type Status string

const (
	StatusCollectiveCoilEngaged Status = "collective_coil_engaged" // > 0.8
	StatusHighCoherence         Status = "high_coherence"          // > 0.6
	StatusModerateCoherence     Status = "moderate_coherence"      // > 0.4
	StatusLowCoherence          Status = "low_coherence"
)

// GroupState is the derived synchrony summary for one group at one instant.
// MemberSnapshot is the exact member set the statistics were computed from.
type GroupState struct {
	GroupID        domain.GroupID                          `json:"group_id"`
	MemberSnapshot map[domain.NodeID]transform.PhaseState `json:"member_snapshot"`
	MeanTheta      float64                                 `json:"mean_theta"`
	PhaseVariance  float64                                 `json:"phase_variance"`
	SynchronyIndex float64                                 `json:"synchrony_index"`
	Status         Status                                  `json:"status"`
	ComputedAt     time.Time                               `json:"computed_at"`
}

// Aggregator recomputes group synchrony. Stateless; the caller supplies the
// member snapshot so the computation stays consistent with the ledger state
// it was taken from.
type Aggregator struct{}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Recompute derives the synchrony summary for the given member snapshot.
// Only states attributed to the group belong in members; the caller is
// responsible for group-scoped filtering.
//
// Errors: sentinel.ErrNotFound when the member set is empty. An empty group
// produces no result and must not yield a ledger entry.
func (a *Aggregator) Recompute(groupID domain.GroupID, members map[domain.NodeID]transform.PhaseState, now time.Time) (GroupState, error) {
	n := len(members)
	if n == 0 {
		return GroupState{}, fmt.Errorf("group %s has no member states: %w", groupID, sentinel.ErrNotFound)
	}

	var sinSum, cosSum float64
	for _, state := range members {
		sinSum += math.Sin(state.Theta)
		cosSum += math.Cos(state.Theta)
	}
	meanTheta := math.Atan2(sinSum, cosSum)
	// atan2 is (-pi, pi]; member thetas live in [0, 2pi), so represent the
	// mean on the same branch.
	if meanTheta < 0 {
		meanTheta += 2 * math.Pi
	}

	var variance float64
	for _, state := range members {
		d := angularDistance(state.Theta, meanTheta)
		variance += d * d
	}
	variance /= float64(n)

	index := 1.0 / (1.0 + variance)

	snapshot := make(map[domain.NodeID]transform.PhaseState, n)
	for id, state := range members {
		snapshot[id] = state
	}

	return GroupState{
		GroupID:        groupID,
		MemberSnapshot: snapshot,
		MeanTheta:      meanTheta,
		PhaseVariance:  variance,
		SynchronyIndex: index,
		Status:         statusFor(index),
		ComputedAt:     now,
	}, nil
}

// angularDistance is the shortest arc between two angles on the circle. The
// inputs need not share a branch; separations beyond a full turn reduce
// first.
func angularDistance(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 2*math.Pi)
	return math.Min(d, 2*math.Pi-d)
}

func statusFor(index float64) Status {
	switch {
	case index > 0.8:
		return StatusCollectiveCoilEngaged
	case index > 0.6:
		return StatusHighCoherence
	case index > 0.4:
		return StatusModerateCoherence
	default:
		return StatusLowCoherence
	}
}
