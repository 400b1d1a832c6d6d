package charge

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/turtacn/ChargeMatch/internal/domain/molecule"
	"github.com/turtacn/ChargeMatch/pkg/errors"
)

// DefaultTotalChargeDiff is the default tolerance between the solved total
// and the requested total.
const DefaultTotalChargeDiff = 0.01

// Solver picks one candidate charge per atom.  On success every atom carries
// PartialCharge and Score, the graph carries TotalCharge and Score, and the
// graph is marked solved.
type Solver interface {
	Solve(ctx context.Context, g *molecule.Graph, dists Distributions, target float64) error
	Name() string
}

// SolverOptions configures the optimising solvers.
type SolverOptions struct {
	RoundingDigits  int
	TimeBudget      time.Duration
	TotalChargeDiff float64
}

// ─────────────────────────────────────────────────────────────────────────────
// Shared problem setup
// ─────────────────────────────────────────────────────────────────────────────

// item is one atom's candidate list in integer grain units.
type item struct {
	atom    *molecule.Atom
	units   []int64
	weights []float64 // normalised
}

// group is a set of atoms constrained to one total.
type group struct {
	id     int
	target int64
	items  []item
}

// problem is the integer form shared by the DP and ILP solvers.
type problem struct {
	grain     float64
	tolerance int64
	groups    []group
}

func toUnits(x, grain float64) int64 {
	return int64(math.Round(x / grain))
}

// buildProblem converts distributions to grain units and partitions atoms by
// charge group.  Without declared groups all atoms form one group carrying
// the target.
func buildProblem(g *molecule.Graph, dists Distributions, target float64, opts SolverOptions) (*problem, error) {
	grain := math.Pow(10, -float64(opts.RoundingDigits))
	p := &problem{
		grain:     grain,
		tolerance: int64(math.Floor(opts.TotalChargeDiff/grain + 1e-9)),
	}

	items := make(map[molecule.AtomID]item, g.Len())
	for _, a := range g.Atoms() {
		d, ok := dists[a.ID]
		if !ok || d.Empty() {
			return nil, errors.InvalidParam("atom has no candidate charges").
				WithDetail(fmt.Sprintf("atom=%s", a.ID))
		}
		it := item{atom: a, units: make([]int64, len(d.Values)), weights: make([]float64, len(d.Values))}
		for i, v := range d.Values {
			it.units[i] = toUnits(v, grain)
			it.weights[i] = d.NormalizedWeight(i)
		}
		items[a.ID] = it
	}

	if !g.HasChargeGroups() {
		all := group{id: 0, target: toUnits(target, grain)}
		for _, a := range g.Atoms() {
			all.items = append(all.items, items[a.ID])
		}
		p.groups = []group{all}
		return p, nil
	}

	var groupSum float64
	ids := make([]int, 0, len(g.GroupCharges))
	for id, q := range g.GroupCharges {
		ids = append(ids, id)
		groupSum += q
	}
	if math.Abs(groupSum-target) > opts.TotalChargeDiff+1e-9 {
		return nil, errors.InvalidParam("charge groups do not add up to the total charge").
			WithDetail(fmt.Sprintf("groups=%g total=%g", groupSum, target))
	}
	sort.Ints(ids)
	byID := make(map[int]*group, len(ids))
	for _, id := range ids {
		p.groups = append(p.groups, group{id: id, target: toUnits(g.GroupCharges[id], grain)})
	}
	for i := range p.groups {
		byID[p.groups[i].id] = &p.groups[i]
	}
	for _, a := range g.Atoms() {
		if a.ChargeGroup == nil {
			return nil, errors.InvalidParam("atom has no charge group in a grouped molecule").
				WithDetail(fmt.Sprintf("atom=%s", a.ID))
		}
		grp, ok := byID[*a.ChargeGroup]
		if !ok {
			return nil, errors.InvalidParam("atom references undeclared charge group").
				WithDetail(fmt.Sprintf("atom=%s group=%d", a.ID, *a.ChargeGroup))
		}
		grp.items = append(grp.items, items[a.ID])
	}
	return p, nil
}

// apply writes the chosen candidate index of every atom to the graph.
func apply(g *molecule.Graph, dists Distributions, choice map[molecule.AtomID]int, digits int) {
	var total, score float64
	for _, a := range g.Atoms() {
		d := dists[a.ID]
		i := choice[a.ID]
		a.PartialCharge = d.Values[i]
		a.Score = d.NormalizedWeight(i)
		total += a.PartialCharge
		score += a.Score
	}
	g.TotalCharge = Round(total, digits)
	g.Score = score
	g.MarkSolved()
}

func deadlineFor(ctx context.Context, budget time.Duration) time.Time {
	var dl time.Time
	if budget > 0 {
		dl = time.Now().Add(budget)
	}
	if ctxDL, ok := ctx.Deadline(); ok && (dl.IsZero() || ctxDL.Before(dl)) {
		dl = ctxDL
	}
	return dl
}

func expired(ctx context.Context, deadline time.Time) bool {
	if ctx.Err() != nil {
		return true
	}
	return !deadline.IsZero() && time.Now().After(deadline)
}

func timeoutError(solver string, budget time.Duration) error {
	return errors.New(errors.ErrCodeSolverTimeout, "no solution found within the time budget").
		WithDetail(fmt.Sprintf("solver=%s budget=%s", solver, budget))
}

func infeasibleError(solver string, grp group, tolerance, grain float64) error {
	return errors.New(errors.ErrCodeSolverInfeasible, "no charge assignment satisfies the total charge").
		WithDetail(fmt.Sprintf("solver=%s group=%d target=%g tolerance=%g",
			solver, grp.id, float64(grp.target)*grain, tolerance))
}

// ─────────────────────────────────────────────────────────────────────────────
// Simple
// ─────────────────────────────────────────────────────────────────────────────

// SimpleSolver takes the first candidate of every atom.  It is meant for the
// single-candidate distributions of the mean collector and ignores the target.
type SimpleSolver struct {
	digits int
}

// NewSimpleSolver returns a SimpleSolver rounding totals to digits.
func NewSimpleSolver(digits int) *SimpleSolver { return &SimpleSolver{digits: digits} }

func (s *SimpleSolver) Name() string { return "simple" }

func (s *SimpleSolver) Solve(_ context.Context, g *molecule.Graph, dists Distributions, _ float64) error {
	choice := make(map[molecule.AtomID]int, g.Len())
	for _, a := range g.Atoms() {
		d, ok := dists[a.ID]
		if !ok || d.Empty() {
			return errors.InvalidParam("atom has no candidate charges").
				WithDetail(fmt.Sprintf("atom=%s", a.ID))
		}
		choice[a.ID] = 0
	}
	apply(g, dists, choice, s.digits)
	return nil
}

//Personal.AI order the ending
