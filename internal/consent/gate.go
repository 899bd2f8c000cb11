package consent

import (
	dErrors "northstar/pkg/domain-errors"
	pstrings "northstar/pkg/platform/strings"
)

// admittedScopes is the fixed allow-list of usage scopes the ledger serves.
// A descriptor must grant at least one of them.
var admittedScopes = map[string]bool{
	"group_resonance_aggregate": true,
	"research_aggregate":        true,
}

// Gate decides whether a consent descriptor admits a submission. Stateless;
// distinct submissions may validate concurrently.
type Gate struct{}

func NewGate() *Gate {
	return &Gate{}
}

// Validate returns nil when the descriptor admits the submission.
//
// Errors:
//   - CodeInvalidInput when an enum field carries an unrecognized value
//   - CodeConsentRejected when classification is raw, or when no granted
//     scope survives the allow-list and the descriptor's prohibited set
func (g *Gate) Validate(d Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}

	if d.Classification == ClassificationRaw {
		return dErrors.New(dErrors.CodeConsentRejected, "raw classification is not admissible; submit aggregates only")
	}

	// Scope matching is case and whitespace insensitive.
	prohibitedSet := pstrings.DedupeAndTrimLower(d.Prohibited)
	prohibited := make(map[string]bool, len(prohibitedSet))
	for _, s := range prohibitedSet {
		prohibited[s] = true
	}

	for _, s := range pstrings.DedupeAndTrimLower(d.Scope) {
		if admittedScopes[s] && !prohibited[s] {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeConsentRejected, "no granted scope matches the admitted aggregate scopes")
}
