package charge

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/turtacn/ChargeMatch/internal/domain/molecule"
	"github.com/turtacn/ChargeMatch/pkg/errors"
)

// maxDPWidth caps the number of reachable sums tracked per group.
const maxDPWidth = 1 << 24

// scoreEps separates genuinely different objective values from float noise.
const scoreEps = 1e-12

// DPSolver solves the multiple-choice knapsack over grain units exactly:
// per group it maximises the summed normalised weight among assignments
// whose total lies within the tolerance of the group charge, preferring
// totals closer to the target and then lower totals.
type DPSolver struct {
	opts SolverOptions
}

// NewDPSolver returns a DPSolver.
func NewDPSolver(opts SolverOptions) *DPSolver { return &DPSolver{opts: opts} }

func (s *DPSolver) Name() string { return "dp" }

func (s *DPSolver) Solve(ctx context.Context, g *molecule.Graph, dists Distributions, target float64) error {
	p, err := buildProblem(g, dists, target, s.opts)
	if err != nil {
		return err
	}
	deadline := deadlineFor(ctx, s.opts.TimeBudget)

	choice := make(map[molecule.AtomID]int, g.Len())
	for _, grp := range p.groups {
		picked, err := s.solveGroup(ctx, grp, p.tolerance, deadline)
		if err != nil {
			if errors.IsCode(err, errors.ErrCodeSolverInfeasible) {
				return infeasibleError(s.Name(), grp, s.opts.TotalChargeDiff, p.grain)
			}
			return err
		}
		for i, it := range grp.items {
			choice[it.atom.ID] = picked[i]
		}
	}
	apply(g, dists, choice, s.opts.RoundingDigits)
	return nil
}

// solveGroup returns the chosen candidate index for each item of grp.
func (s *DPSolver) solveGroup(ctx context.Context, grp group, tolerance int64, deadline time.Time) ([]int, error) {
	// Shift every candidate by the item's minimum so partial sums start at 0.
	var minSum, width int64
	shifts := make([]int64, len(grp.items))
	for i, it := range grp.items {
		lo, hi := it.units[0], it.units[0]
		for _, u := range it.units[1:] {
			if u < lo {
				lo = u
			}
			if u > hi {
				hi = u
			}
		}
		shifts[i] = lo
		minSum += lo
		width += hi - lo
	}
	width++
	if width > maxDPWidth {
		return nil, errors.InvalidParam("candidate charge range too wide for dynamic programming").
			WithDetail(fmt.Sprintf("group=%d width=%d", grp.id, width))
	}

	negInf := math.Inf(-1)
	cur := make([]float64, width)
	for i := range cur {
		cur[i] = negInf
	}
	cur[0] = 0
	choices := make([][]int32, len(grp.items))
	reach := int64(0)

	for i, it := range grp.items {
		if expired(ctx, deadline) {
			return nil, timeoutError(s.Name(), s.opts.TimeBudget)
		}
		span := int64(0)
		for _, u := range it.units {
			if u-shifts[i] > span {
				span = u - shifts[i]
			}
		}
		next := make([]float64, width)
		for k := range next {
			next[k] = negInf
		}
		pick := make([]int32, reach+span+1)
		for sum := int64(0); sum <= reach; sum++ {
			base := cur[sum]
			if math.IsInf(base, -1) {
				continue
			}
			for j, u := range it.units {
				at := sum + u - shifts[i]
				if v := base + it.weights[j]; v > next[at]+scoreEps {
					next[at] = v
					pick[at] = int32(j)
				}
			}
		}
		choices[i] = pick
		cur = next
		reach += span
	}

	best := int64(-1)
	for sum := int64(0); sum <= reach; sum++ {
		if math.IsInf(cur[sum], -1) {
			continue
		}
		diff := abs64(sum + minSum - grp.target)
		if diff > tolerance {
			continue
		}
		if best < 0 || betterTotal(cur[sum], diff, sum, cur[best], abs64(best+minSum-grp.target), best) {
			best = sum
		}
	}
	if best < 0 {
		return nil, errors.New(errors.ErrCodeSolverInfeasible, "no assignment within tolerance")
	}

	picked := make([]int, len(grp.items))
	sum := best
	for i := len(grp.items) - 1; i >= 0; i-- {
		j := int(choices[i][sum])
		picked[i] = j
		sum -= grp.items[i].units[j] - shifts[i]
	}
	return picked, nil
}

// betterTotal orders candidate solutions by score, then distance to the
// target, then lower total.
func betterTotal(score float64, diff, sum int64, bestScore float64, bestDiff, bestSum int64) bool {
	if score > bestScore+scoreEps {
		return true
	}
	if score < bestScore-scoreEps {
		return false
	}
	if diff != bestDiff {
		return diff < bestDiff
	}
	return sum < bestSum
}

func abs64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

//Personal.AI order the ending
