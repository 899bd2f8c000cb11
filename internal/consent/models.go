// Package consent models the sovereignty descriptor attached to every
// submission and the gate that decides whether a descriptor admits data into
// the ledger. The gate is a pure predicate: no state, no side effects.
package consent

import (
	"encoding/hex"
	"encoding/json"
	"sort"

	"golang.org/x/crypto/sha3"

	dErrors "northstar/pkg/domain-errors"
	pstrings "northstar/pkg/platform/strings"
)

// Classification labels how processed the submitted data is. Only
// pre-aggregated data is admissible; raw captures never enter the ledger.
type Classification string

const (
	ClassificationRaw       Classification = "raw"
	ClassificationWindowed  Classification = "windowed"
	ClassificationAggregate Classification = "aggregate"
)

var validClassifications = map[Classification]bool{
	ClassificationRaw:       true,
	ClassificationWindowed:  true,
	ClassificationAggregate: true,
}

// ParseClassification constructs a Classification from external input.
//
// Errors: CodeInvalidInput when the value is empty or unsupported.
func ParseClassification(s string) (Classification, error) {
	c := Classification(s)
	if !validClassifications[c] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid classification %q", s)
	}
	return c, nil
}

// RetentionMode declares how long the submitter allows data to be held.
type RetentionMode string

const (
	RetentionEphemeral  RetentionMode = "ephemeral"
	RetentionBounded    RetentionMode = "bounded"
	RetentionIndefinite RetentionMode = "indefinite"
)

var validRetentionModes = map[RetentionMode]bool{
	RetentionEphemeral:  true,
	RetentionBounded:    true,
	RetentionIndefinite: true,
}

// ParseRetentionMode constructs a RetentionMode from external input.
//
// Errors: CodeInvalidInput when the value is empty or unsupported.
func ParseRetentionMode(s string) (RetentionMode, error) {
	m := RetentionMode(s)
	if !validRetentionModes[m] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid retention mode %q", s)
	}
	return m, nil
}

// RevocationPolicy declares what a later revocation must do.
type RevocationPolicy string

const (
	RevocationStopFutureUse  RevocationPolicy = "stop_future_use"
	RevocationDeleteRaw      RevocationPolicy = "delete_raw"
	RevocationKeepAggregates RevocationPolicy = "keep_aggregates"
)

var validRevocationPolicies = map[RevocationPolicy]bool{
	RevocationStopFutureUse:  true,
	RevocationDeleteRaw:      true,
	RevocationKeepAggregates: true,
}

// ParseRevocationPolicy constructs a RevocationPolicy from external input.
//
// Errors: CodeInvalidInput when the value is empty or unsupported.
func ParseRevocationPolicy(s string) (RevocationPolicy, error) {
	p := RevocationPolicy(s)
	if !validRevocationPolicies[p] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid revocation policy %q", s)
	}
	return p, nil
}

// Descriptor is the consent contract a submitter attaches to an observation.
type Descriptor struct {
	Scope            []string         `json:"scope"`
	RetentionMode    RetentionMode    `json:"retention_mode"`
	RevocationPolicy RevocationPolicy `json:"revocation_policy"`
	Prohibited       []string         `json:"prohibited,omitempty"`
	Classification   Classification   `json:"classification"`
}

// Validate checks the descriptor's enum fields at the boundary.
//
// Errors: CodeInvalidInput for any unrecognized enum value.
func (d Descriptor) Validate() error {
	if _, err := ParseClassification(string(d.Classification)); err != nil {
		return err
	}
	if _, err := ParseRetentionMode(string(d.RetentionMode)); err != nil {
		return err
	}
	if _, err := ParseRevocationPolicy(string(d.RevocationPolicy)); err != nil {
		return err
	}
	return nil
}

// Digest returns the SHA3-256 hex digest over the canonical encoding of the
// descriptor. Scope and prohibited sets are lowercased, deduplicated, and
// sorted first so equivalent descriptors always hash identically.
func (d Descriptor) Digest() string {
	canonical := d
	canonical.Scope = sortedCopy(pstrings.DedupeAndTrimLower(d.Scope))
	canonical.Prohibited = sortedCopy(pstrings.DedupeAndTrimLower(d.Prohibited))

	// Struct field order is fixed, so Marshal is canonical here.
	raw, err := json.Marshal(canonical)
	if err != nil {
		// Descriptor contains only strings; Marshal cannot fail.
		panic(err)
	}
	sum := sha3.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func sortedCopy(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}
