package charge_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChargeMatch/pkg/types/charge"
)

func TestVariant_IsValid(t *testing.T) {
	t.Parallel()
	for _, v := range charge.Variants() {
		assert.True(t, v.IsValid(), v)
	}
	assert.False(t, charge.Variant("cdp").IsValid())
	assert.False(t, charge.Variant("").IsValid())
}

func TestChargeRequest_JSONFieldNames(t *testing.T) {
	t.Parallel()
	digits := 2
	req := charge.ChargeRequest{
		Variant:        charge.VariantDP,
		TotalCharge:    -1,
		Shells:         []int{2, 1},
		RoundingDigits: &digits,
		Molecule: charge.MoleculeDocument{
			Atoms: []charge.AtomDocument{{ID: 1, Element: "C"}},
		},
	}
	raw, err := json.Marshal(req)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "dp", m["variant"])
	assert.Equal(t, -1.0, m["total_charge"])
	assert.Equal(t, 2.0, m["rounding_digits"])
	assert.NotContains(t, m, "max_bins")
	assert.NotContains(t, m, "iacmize")
}

func TestAtomDocument_OmitsUnsetResults(t *testing.T) {
	t.Parallel()
	raw, err := json.Marshal(charge.AtomDocument{ID: 3, Element: "O"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":3,"element":"O"}`, string(raw))
}

func TestChargeRequest_Validate(t *testing.T) {
	t.Parallel()
	atoms := charge.MoleculeDocument{Atoms: []charge.AtomDocument{{ID: 1, Element: "C"}}}
	zero, bins, budget := 0, 0, -1.0

	tests := []struct {
		name string
		req  charge.ChargeRequest
		ok   bool
	}{
		{"minimal", charge.ChargeRequest{Molecule: atoms}, true},
		{"known variant", charge.ChargeRequest{Molecule: atoms, Variant: charge.VariantILP, Shells: []int{2, 0}, RoundingDigits: &zero}, true},
		{"no atoms", charge.ChargeRequest{}, false},
		{"unknown variant", charge.ChargeRequest{Molecule: atoms, Variant: "cdp"}, false},
		{"negative shell", charge.ChargeRequest{Molecule: atoms, Shells: []int{1, -1}}, false},
		{"zero bins", charge.ChargeRequest{Molecule: atoms, MaxBins: &bins}, false},
		{"negative budget", charge.ChargeRequest{Molecule: atoms, TimeBudgetSeconds: &budget}, false},
	}
	for _, tt := range tests {
		err := tt.req.Validate()
		if tt.ok {
			assert.NoError(t, err, tt.name)
		} else {
			assert.Error(t, err, tt.name)
		}
	}
}

//Personal.AI order the ending
