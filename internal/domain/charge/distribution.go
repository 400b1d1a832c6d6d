package charge

import (
	"math"

	"github.com/turtacn/ChargeMatch/internal/domain/molecule"
)

// Distribution is a weighted list of candidate charges for one atom.
// Values and Weights have equal length; an empty Distribution means no match.
type Distribution struct {
	Values  []float64
	Weights []float64
}

// Empty reports whether d holds no candidates.
func (d Distribution) Empty() bool { return len(d.Values) == 0 }

// TotalWeight sums the weights.
func (d Distribution) TotalWeight() float64 {
	var s float64
	for _, w := range d.Weights {
		s += w
	}
	return s
}

// NormalizedWeight returns weight i divided by the total weight, or 0 when
// the total is not positive.
func (d Distribution) NormalizedWeight(i int) float64 {
	tw := d.TotalWeight()
	if tw <= 0 {
		return 0
	}
	return d.Weights[i] / tw
}

// Distributions maps atoms to their candidate charges.
type Distributions map[molecule.AtomID]Distribution

// Round rounds x to digits decimal places, half away from zero.  Negative
// zero is folded to zero.
func Round(x float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	r := math.Round(x*p) / p
	if r == 0 {
		return 0
	}
	return r
}

//Personal.AI order the ending
