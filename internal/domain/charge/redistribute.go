package charge

import (
	"fmt"

	"github.com/turtacn/ChargeMatch/internal/domain/molecule"
	"github.com/turtacn/ChargeMatch/pkg/errors"
)

// Redistribute spreads the difference between target and the solved total
// over the atoms in inverse proportion to their scores, rounds every charge
// to digits, and hands the remaining rounding residual to the first atom with
// the lowest score.  Afterwards the redistributed charges sum to target.
//
// Atoms with zero score are not adjusted except as the residual sink.  When
// every atom has zero score the correction cannot be apportioned and the
// call fails with ErrCodeDegenerateConfidence.
func Redistribute(g *molecule.Graph, target float64, digits int) error {
	if g.State() < molecule.StateSolved {
		return errors.New(errors.ErrCodeMoleculeNotSolved, "redistribution needs a solved molecule").
			WithDetail("state=" + g.State().String())
	}
	atoms := g.Atoms()
	if len(atoms) == 0 {
		g.TotalChargeRedist = 0
		g.MarkRedistributed()
		return nil
	}

	totalError := target - g.TotalCharge
	proportions := make([]float64, len(atoms))
	var totalProp float64
	for i, a := range atoms {
		if a.Score > 0 {
			proportions[i] = g.Score / a.Score
		}
		totalProp += proportions[i]
	}
	if totalProp == 0 {
		return errors.New(errors.ErrCodeDegenerateConfidence, "cannot apportion charge correction").
			WithDetail(fmt.Sprintf("atoms=%d total_error=%g", len(atoms), totalError))
	}

	var sum float64
	sink := 0
	for i, a := range atoms {
		delta := Round(proportions[i]*totalError/totalProp, digits)
		a.PartialChargeRedist = Round(a.PartialCharge+delta, digits)
		sum += a.PartialChargeRedist
		if a.Score < atoms[sink].Score {
			sink = i
		}
	}

	s := atoms[sink]
	s.PartialChargeRedist = Round(s.PartialChargeRedist+target-sum, digits)

	sum = 0
	for _, a := range atoms {
		sum += a.PartialChargeRedist
	}
	g.TotalChargeRedist = Round(sum, digits)
	g.MarkRedistributed()
	return nil
}

//Personal.AI order the ending
