// Package charge defines the charge-assignment Data Transfer Objects shared by
// the CLI, HTTP, gRPC and Kafka surfaces.  No domain logic lives here, only
// plain data types that are safe to import from any layer.
package charge

import "fmt"

// ─────────────────────────────────────────────────────────────────────────────
// Variant: charger strategy selector
// ─────────────────────────────────────────────────────────────────────────────

// Variant names one of the charger compositions.
type Variant string

const (
	// VariantSimple pairs the mean collector with the pass-through solver.
	VariantSimple Variant = "simple"

	// VariantILP pairs the histogram collector with the integer-programming solver.
	VariantILP Variant = "ilp"

	// VariantDP pairs the histogram collector with the dynamic-programming solver.
	VariantDP Variant = "dp"
)

// IsValid reports whether v is one of the known variants.
func (v Variant) IsValid() bool {
	switch v {
	case VariantSimple, VariantILP, VariantDP:
		return true
	}
	return false
}

// Variants lists every supported variant in a stable order.
func Variants() []Variant {
	return []Variant{VariantSimple, VariantILP, VariantDP}
}

// ─────────────────────────────────────────────────────────────────────────────
// Molecule documents
// ─────────────────────────────────────────────────────────────────────────────

// AtomDocument is the serialised form of one atom.
type AtomDocument struct {
	ID          int    `json:"id" yaml:"id"`
	Label       string `json:"label,omitempty" yaml:"label,omitempty"`
	Element     string `json:"element" yaml:"element"`
	IACM        string `json:"iacm,omitempty" yaml:"iacm,omitempty"`
	ChargeGroup *int   `json:"charge_group,omitempty" yaml:"charge_group,omitempty"`

	// Charge is a known reference charge, used when building a repository.
	Charge *float64 `json:"charge,omitempty" yaml:"charge,omitempty"`

	// Results, present on charged documents only.
	Score               *float64 `json:"score,omitempty" yaml:"score,omitempty"`
	PartialCharge       *float64 `json:"partial_charge,omitempty" yaml:"partial_charge,omitempty"`
	PartialChargeRedist *float64 `json:"partial_charge_redist,omitempty" yaml:"partial_charge_redist,omitempty"`
}

// BondDocument is an undirected bond between two atom IDs.
type BondDocument struct {
	From int `json:"from" yaml:"from"`
	To   int `json:"to" yaml:"to"`
}

// MoleculeDocument is the serialised molecule graph.
type MoleculeDocument struct {
	Name         string          `json:"name,omitempty" yaml:"name,omitempty"`
	Atoms        []AtomDocument  `json:"atoms" yaml:"atoms"`
	Bonds        []BondDocument  `json:"bonds" yaml:"bonds"`
	GroupCharges map[int]float64 `json:"group_charges,omitempty" yaml:"group_charges,omitempty"`

	TotalCharge       *float64 `json:"total_charge,omitempty" yaml:"total_charge,omitempty"`
	TotalChargeRedist *float64 `json:"total_charge_redist,omitempty" yaml:"total_charge_redist,omitempty"`
	Score             *float64 `json:"score,omitempty" yaml:"score,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Requests and responses
// ─────────────────────────────────────────────────────────────────────────────

// ChargeRequest asks for charges on one molecule.  Nil option pointers fall
// back to the server's configured defaults.  An empty Shells slice means
// "every shell in the repository, largest first".
type ChargeRequest struct {
	Molecule     MoleculeDocument `json:"molecule" yaml:"molecule"`
	Variant      Variant          `json:"variant,omitempty" yaml:"variant,omitempty"`
	TotalCharge  float64          `json:"total_charge" yaml:"total_charge"`
	IACMize      bool             `json:"iacmize,omitempty" yaml:"iacmize,omitempty"`
	IACMDataOnly bool             `json:"iacm_data_only,omitempty" yaml:"iacm_data_only,omitempty"`
	Shells       []int            `json:"shells,omitempty" yaml:"shells,omitempty"`

	RoundingDigits    *int     `json:"rounding_digits,omitempty" yaml:"rounding_digits,omitempty"`
	MaxBins           *int     `json:"max_bins,omitempty" yaml:"max_bins,omitempty"`
	TimeBudgetSeconds *float64 `json:"time_budget_seconds,omitempty" yaml:"time_budget_seconds,omitempty"`
}

// Validate checks the request shape: at least one atom, a known variant
// when one is named, and non-negative shells and tuning parameters.
func (r *ChargeRequest) Validate() error {
	if len(r.Molecule.Atoms) == 0 {
		return fmt.Errorf("molecule has no atoms")
	}
	if r.Variant != "" && !r.Variant.IsValid() {
		return fmt.Errorf("unknown variant %q", r.Variant)
	}
	for _, s := range r.Shells {
		if s < 0 {
			return fmt.Errorf("negative shell %d", s)
		}
	}
	if r.RoundingDigits != nil && *r.RoundingDigits < 0 {
		return fmt.Errorf("rounding_digits must be >= 0")
	}
	if r.MaxBins != nil && *r.MaxBins < 1 {
		return fmt.Errorf("max_bins must be >= 1")
	}
	if r.TimeBudgetSeconds != nil && *r.TimeBudgetSeconds <= 0 {
		return fmt.Errorf("time_budget_seconds must be positive")
	}
	return nil
}

// ChargeResponse carries the charged molecule and its graph-level totals.
type ChargeResponse struct {
	RunID             string           `json:"run_id" yaml:"run_id"`
	Variant           Variant          `json:"variant" yaml:"variant"`
	Molecule          MoleculeDocument `json:"molecule" yaml:"molecule"`
	TotalCharge       float64          `json:"total_charge" yaml:"total_charge"`
	TotalChargeRedist float64          `json:"total_charge_redist" yaml:"total_charge_redist"`
	Score             float64          `json:"score" yaml:"score"`
	DurationMS        int64            `json:"duration_ms" yaml:"duration_ms"`
}

// ErrorResponse is the error envelope used by every outer surface.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	// UnresolvedAtoms is filled for assignment failures.
	UnresolvedAtoms []int `json:"unresolved_atoms,omitempty"`
}

// ChargeJob is the queued form of a ChargeRequest.
type ChargeJob struct {
	JobID   string        `json:"job_id"`
	Request ChargeRequest `json:"request"`
}

// ChargeResult is published for every processed ChargeJob.  Exactly one of
// Response and Error is set.
type ChargeResult struct {
	JobID    string          `json:"job_id"`
	RunID    string          `json:"run_id"`
	Response *ChargeResponse `json:"response,omitempty"`
	Error    *ErrorResponse  `json:"error,omitempty"`
}

// RepositoryStats summarises a charge repository.
type RepositoryStats struct {
	Kind   string      `json:"kind" yaml:"kind"`
	Shells []ShellStat `json:"shells" yaml:"shells"`
}

// ShellStat counts keys and values at one shell size.
type ShellStat struct {
	Shell  int `json:"shell" yaml:"shell"`
	Keys   int `json:"keys" yaml:"keys"`
	Values int `json:"values" yaml:"values"`
}

//Personal.AI order the ending
