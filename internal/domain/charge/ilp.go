package charge

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/turtacn/ChargeMatch/internal/domain/molecule"
	"github.com/turtacn/ChargeMatch/pkg/errors"
)

const (
	simplexTol  = 1e-9
	integralTol = 1e-6

	// scoreFloorSlack loosens the score floor of the tie-break passes so
	// the LP does not reject assignments that only tie the best score.
	scoreFloorSlack = 1e-7
)

// ILPSolver solves the same 0/1 program as DPSolver by branch and bound over
// LP relaxations.  Branching either fixes an atom to one candidate or removes
// that candidate, so every node is a plain standard-form LP.  Equal scores are
// resolved as in DPSolver, by distance to the target and then the lower
// total, with two further searches under a score floor.  When the time
// budget expires the best integral solution found so far is returned; without
// one the solve fails with ErrCodeSolverTimeout.
type ILPSolver struct {
	opts SolverOptions
}

// NewILPSolver returns an ILPSolver.
func NewILPSolver(opts SolverOptions) *ILPSolver { return &ILPSolver{opts: opts} }

func (s *ILPSolver) Name() string { return "ilp" }

func (s *ILPSolver) Solve(ctx context.Context, g *molecule.Graph, dists Distributions, target float64) error {
	p, err := buildProblem(g, dists, target, s.opts)
	if err != nil {
		return err
	}
	deadline := deadlineFor(ctx, s.opts.TimeBudget)

	choice := make(map[molecule.AtomID]int, g.Len())
	for _, grp := range p.groups {
		bb := &branchAndBound{grp: grp, tolerance: p.tolerance, ctx: ctx, deadline: deadline}
		picked, err := bb.run()
		if err != nil {
			return err
		}
		if picked == nil {
			if bb.timedOut {
				return timeoutError(s.Name(), s.opts.TimeBudget)
			}
			return infeasibleError(s.Name(), grp, s.opts.TotalChargeDiff, p.grain)
		}
		for i, it := range grp.items {
			choice[it.atom.ID] = picked[i]
		}
	}
	apply(g, dists, choice, s.opts.RoundingDigits)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Branch and bound
// ─────────────────────────────────────────────────────────────────────────────

type branchAndBound struct {
	grp       group
	tolerance int64
	ctx       context.Context
	deadline  time.Time

	best      []int
	bestScore float64
	bestDiff  int64
	bestSum   int64
	timedOut  bool
}

// stage is one pass of the lexicographic search.  Each pass minimises cost
// over the candidate columns plus devCost times |sum - target|, subject to
// lo <= sum <= hi and, when floor is set, a summed weight of at least
// minScore.
type stage struct {
	cost     func(it item, j int) float64
	devCost  float64
	lo, hi   float64
	floor    bool
	minScore float64
	prune    func(bound float64) bool
	accept   func(score float64, diff, sum int64) bool
}

// run finds the best score first, then the total closest to the target among
// assignments with that score, then the lower of two equally close totals.
// Sums are whole grain units, so bands are widened by half a unit to keep
// the LP off its edges.
func (b *branchAndBound) run() ([]int, error) {
	if len(b.grp.items) == 0 {
		if abs64(b.grp.target) > b.tolerance {
			return nil, nil
		}
		return []int{}, nil
	}
	target, tol := float64(b.grp.target), float64(b.tolerance)

	err := b.search(stage{
		cost: func(it item, j int) float64 { return -it.weights[j] },
		lo:   target - tol - 0.5,
		hi:   target + tol + 0.5,
		prune: func(bound float64) bool {
			return b.best != nil && -bound <= b.bestScore+scoreEps
		},
		accept: func(score float64, diff, sum int64) bool {
			return b.best == nil || betterTotal(score, diff, sum, b.bestScore, b.bestDiff, b.bestSum)
		},
	})
	if err != nil || b.best == nil || b.timedOut || b.bestDiff == 0 {
		return b.best, err
	}

	top := b.bestScore
	tied := func(score float64) bool { return score >= top-scoreEps }
	err = b.search(stage{
		devCost:  1,
		lo:       target - tol - 0.5,
		hi:       target + tol + 0.5,
		floor:    true,
		minScore: top - scoreFloorSlack,
		prune: func(bound float64) bool {
			return bound > float64(b.bestDiff)-1+integralTol
		},
		accept: func(score float64, diff, sum int64) bool {
			return tied(score) && (diff < b.bestDiff || (diff == b.bestDiff && sum < b.bestSum))
		},
	})
	if err != nil || b.timedOut || b.bestDiff == 0 || b.bestSum < b.grp.target {
		return b.best, err
	}

	d := float64(b.bestDiff)
	err = b.search(stage{
		cost:     func(it item, j int) float64 { return float64(it.units[j]) },
		lo:       target - d - 0.5,
		hi:       target + d + 0.5,
		floor:    true,
		minScore: top - scoreFloorSlack,
		prune: func(bound float64) bool {
			return bound > float64(b.bestSum)-1+integralTol
		},
		accept: func(score float64, diff, sum int64) bool {
			return tied(score) && diff <= b.bestDiff && sum < b.bestSum
		},
	})
	return b.best, err
}

// search explores nodes depth first, fixing branches before removal branches.
func (b *branchAndBound) search(st stage) error {
	root := make([][]int, len(b.grp.items))
	for i, it := range b.grp.items {
		root[i] = make([]int, len(it.units))
		for j := range it.units {
			root[i][j] = j
		}
	}
	stack := [][][]int{root}

	for len(stack) > 0 {
		if expired(b.ctx, b.deadline) {
			b.timedOut = true
			return nil
		}
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		bound, x, ok, err := b.relax(node, &st)
		if err != nil {
			return err
		}
		if !ok || st.prune(bound) {
			continue
		}

		frac, pick := b.firstFractional(node, x)
		if frac < 0 {
			b.offer(node, x, st.accept)
			continue
		}

		fixed := cloneAllowed(node)
		fixed[frac] = []int{node[frac][pick]}
		removed := cloneAllowed(node)
		removed[frac] = append(append([]int(nil), node[frac][:pick]...), node[frac][pick+1:]...)
		if len(removed[frac]) > 0 {
			stack = append(stack, removed)
		}
		stack = append(stack, fixed)
	}
	return nil
}

// relax solves the LP relaxation of node for st.  It returns the minimised
// objective and the per-item candidate weights x.
func (b *branchAndBound) relax(node [][]int, st *stage) (float64, [][]float64, bool, error) {
	items := b.grp.items

	nVars, nRows := 2, len(items)+2
	for _, allowed := range node {
		nVars += len(allowed)
	}
	floorRow, devRow := -1, -1
	if st.floor {
		floorRow = nRows
		nRows++
		nVars++
	}
	if st.devCost > 0 {
		devRow = nRows
		nRows++
		nVars += 2
	}
	A := mat.NewDense(nRows, nVars, nil)
	c := make([]float64, nVars)
	rhs := make([]float64, nRows)

	upper, lower := len(items), len(items)+1
	col := 0
	for i, allowed := range node {
		rhs[i] = 1
		for _, j := range allowed {
			v := float64(items[i].units[j])
			A.Set(i, col, 1)
			A.Set(upper, col, v)
			A.Set(lower, col, v)
			if floorRow >= 0 {
				A.Set(floorRow, col, items[i].weights[j])
			}
			if devRow >= 0 {
				A.Set(devRow, col, v)
			}
			if st.cost != nil {
				c[col] = st.cost(items[i], j)
			}
			col++
		}
	}
	// Slacks: sum + s1 = hi, sum - s2 = lo.
	A.Set(upper, col, 1)
	A.Set(lower, col+1, -1)
	rhs[upper] = st.hi
	rhs[lower] = st.lo
	col += 2
	if floorRow >= 0 {
		A.Set(floorRow, col, -1)
		rhs[floorRow] = st.minScore
		col++
	}
	if devRow >= 0 {
		// sum - p + q = target; minimising p + q yields |sum - target|.
		A.Set(devRow, col, -1)
		A.Set(devRow, col+1, 1)
		c[col], c[col+1] = st.devCost, st.devCost
		rhs[devRow] = float64(b.grp.target)
	}

	for r := 0; r < nRows; r++ {
		if rhs[r] < 0 {
			rhs[r] = -rhs[r]
			for k := 0; k < nVars; k++ {
				A.Set(r, k, -A.At(r, k))
			}
		}
	}

	opt, xs, err := lp.Simplex(c, A, rhs, simplexTol, nil)
	if err != nil {
		if stderrors.Is(err, lp.ErrInfeasible) {
			return 0, nil, false, nil
		}
		return 0, nil, false, errors.Wrap(err, errors.CodeInternal, "LP relaxation failed").
			WithDetail(fmt.Sprintf("group=%d vars=%d", b.grp.id, nVars))
	}

	x := make([][]float64, len(node))
	col = 0
	for i, allowed := range node {
		x[i] = make([]float64, len(allowed))
		for k := range allowed {
			x[i][k] = xs[col]
			col++
		}
	}
	return opt, x, true, nil
}

// firstFractional returns the first item whose relaxation is not integral
// and the position of its largest candidate weight, or -1 when x is integral.
func (b *branchAndBound) firstFractional(node [][]int, x [][]float64) (int, int) {
	for i := range node {
		pick, maxV := 0, -1.0
		for k, v := range x[i] {
			if v > maxV {
				pick, maxV = k, v
			}
		}
		if maxV < 1-integralTol {
			return i, pick
		}
	}
	return -1, 0
}

// offer records an integral solution if accept prefers it to the incumbent.
func (b *branchAndBound) offer(node [][]int, x [][]float64, accept func(score float64, diff, sum int64) bool) {
	picked := make([]int, len(node))
	var sum int64
	var score float64
	for i, allowed := range node {
		k := 0
		for kk, v := range x[i] {
			if v > x[i][k] {
				k = kk
			}
		}
		j := allowed[k]
		picked[i] = j
		sum += b.grp.items[i].units[j]
		score += b.grp.items[i].weights[j]
	}
	diff := abs64(sum - b.grp.target)
	if diff > b.tolerance {
		return
	}
	if accept(score, diff, sum) {
		b.best, b.bestScore, b.bestDiff, b.bestSum = picked, score, diff, sum
	}
}

func cloneAllowed(node [][]int) [][]int {
	out := make([][]int, len(node))
	copy(out, node)
	return out
}

//Personal.AI order the ending
