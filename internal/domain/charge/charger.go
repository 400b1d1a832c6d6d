package charge

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/turtacn/ChargeMatch/internal/domain/molecule"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChargeMatch/pkg/errors"
	ctypes "github.com/turtacn/ChargeMatch/pkg/types/charge"
)

const (
	// DefaultRoundingDigits is the number of decimals charges are rounded to.
	DefaultRoundingDigits = 3
	// MaxRoundingDigits bounds RoundingDigits.
	MaxRoundingDigits = 9
	// DefaultTimeBudget bounds the optimising solvers.
	DefaultTimeBudget = 60 * time.Second
)

// Options tunes a Charger.
type Options struct {
	RoundingDigits  int
	MaxBins         int
	TimeBudget      time.Duration
	TotalChargeDiff float64
}

// DefaultOptions returns the stock charger options.
func DefaultOptions() Options {
	return Options{
		RoundingDigits:  DefaultRoundingDigits,
		MaxBins:         DefaultMaxBins,
		TimeBudget:      DefaultTimeBudget,
		TotalChargeDiff: DefaultTotalChargeDiff,
	}
}

// normalized clamps RoundingDigits into [0, MaxRoundingDigits] and MaxBins
// to at least 1.  Zero budgets and tolerances take their defaults.
func (o Options) normalized() Options {
	if o.RoundingDigits < 0 {
		o.RoundingDigits = 0
	}
	if o.RoundingDigits > MaxRoundingDigits {
		o.RoundingDigits = MaxRoundingDigits
	}
	if o.MaxBins < 1 {
		o.MaxBins = 1
	}
	if o.TimeBudget <= 0 {
		o.TimeBudget = DefaultTimeBudget
	}
	if o.TotalChargeDiff <= 0 {
		o.TotalChargeDiff = DefaultTotalChargeDiff
	}
	return o
}

// ─────────────────────────────────────────────────────────────────────────────
// Shell selection
// ─────────────────────────────────────────────────────────────────────────────

// ShellSpec selects the shells to search: every IACM shell in the repository
// (largest first), a single shell, or an explicit ordered list.
type ShellSpec struct {
	shells []int
}

// AllShells searches every shell of the repository's IACM set, descending.
func AllShells() ShellSpec { return ShellSpec{} }

// SingleShell searches only shell n.
func SingleShell(n int) ShellSpec { return ShellSpec{shells: []int{n}} }

// ShellList searches the given shells in order.  An empty list is the same
// as AllShells.
func ShellList(shells ...int) ShellSpec {
	return ShellSpec{shells: append([]int(nil), shells...)}
}

// IsAll reports whether s defers to the shells the repository holds.
func (s ShellSpec) IsAll() bool { return len(s.shells) == 0 }

// Resolve returns the concrete search order against repo.
func (s ShellSpec) Resolve(repo *Repository) ([]int, error) {
	if s.IsAll() {
		shells := repo.IACM.Shells()
		sort.Sort(sort.Reverse(sort.IntSlice(shells)))
		return shells, nil
	}
	for _, n := range s.shells {
		if n < 0 {
			return nil, errors.InvalidParam("shell sizes must be non-negative").
				WithDetail(fmt.Sprintf("shells=%v", s.shells))
		}
	}
	return append([]int(nil), s.shells...), nil
}

func (s ShellSpec) String() string {
	if s.IsAll() {
		return "all"
	}
	return fmt.Sprint(s.shells)
}

// ─────────────────────────────────────────────────────────────────────────────
// Charger
// ─────────────────────────────────────────────────────────────────────────────

// Params are the per-call charging parameters.
type Params struct {
	TotalCharge  float64
	IACMize      bool
	IACMDataOnly bool
	Shells       ShellSpec
}

// Charger runs collection, solving and redistribution for one variant.  A
// Charger owns no mutable state besides its Canonizer, so it must not be
// used by two goroutines at once unless the Canonizer allows it.
type Charger struct {
	variant   ctypes.Variant
	repo      *Repository
	opts      Options
	collector Collector
	solver    Solver
	logger    logging.Logger
}

// NewCharger composes the collector and solver for variant.
func NewCharger(variant ctypes.Variant, repo *Repository, canon Canonizer, opts Options, logger logging.Logger) (*Charger, error) {
	if repo == nil {
		return nil, errors.New(errors.ErrCodeRepositoryUnavailable, "charger needs a repository")
	}
	if canon == nil {
		return nil, errors.InvalidParam("charger needs a canonizer")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	opts = opts.normalized()
	solverOpts := SolverOptions{
		RoundingDigits:  opts.RoundingDigits,
		TimeBudget:      opts.TimeBudget,
		TotalChargeDiff: opts.TotalChargeDiff,
	}

	c := &Charger{variant: variant, repo: repo, opts: opts, logger: logger}
	switch variant {
	case ctypes.VariantSimple:
		c.collector = NewMeanCollector(repo, canon, opts.RoundingDigits)
		c.solver = NewSimpleSolver(opts.RoundingDigits)
	case ctypes.VariantILP:
		c.collector = NewHistogramCollector(repo, canon, opts.RoundingDigits, opts.MaxBins)
		c.solver = NewILPSolver(solverOpts)
	case ctypes.VariantDP:
		c.collector = NewHistogramCollector(repo, canon, opts.RoundingDigits, opts.MaxBins)
		c.solver = NewDPSolver(solverOpts)
	default:
		return nil, errors.New(errors.ErrCodeVariantUnsupported, "unsupported charger variant").
			WithDetail("variant=" + string(variant))
	}
	return c, nil
}

// Variant returns the charger variant.
func (c *Charger) Variant() ctypes.Variant { return c.variant }

// Options returns the effective options after clamping.
func (c *Charger) Options() Options { return c.opts }

// Charge assigns PartialCharge, Score and PartialChargeRedist to every atom
// of g and the matching totals to g.  On failure g's results are cleared.
//
// With IACMize set, IACM types are derived on a copy of g and only IACM data
// is used; the derived types are written back along with the charges.
func (c *Charger) Charge(ctx context.Context, g *molecule.Graph, p Params) error {
	g.ResetSolution()
	shells, err := p.Shells.Resolve(c.repo)
	if err != nil {
		return err
	}
	work := g
	iacmOnly := p.IACMDataOnly
	if p.IACMize {
		work = g.Clone()
		molecule.AssignIACMTypes(work)
		iacmOnly = true
	}

	log := c.logger.WithContext(ctx).With(
		logging.String(logging.FieldVariant, string(c.variant)),
		logging.Int("atoms", g.Len()),
	)
	start := time.Now()

	dists, err := c.collector.Collect(ctx, work, iacmOnly, shells)
	if err != nil {
		log.Debug("charge collection failed", logging.Err(err), logging.Ints("shells", shells))
		return err
	}
	if err := c.solver.Solve(ctx, work, dists, p.TotalCharge); err != nil {
		work.ResetSolution()
		log.Debug("charge solve failed", logging.Err(err))
		return err
	}
	if err := Redistribute(work, p.TotalCharge, c.opts.RoundingDigits); err != nil {
		work.ResetSolution()
		return err
	}

	if work != g {
		g.CopyResultsFrom(work)
	}
	logging.LogOperationDuration(log, "charge", start,
		logging.Float64("total_charge", g.TotalCharge),
		logging.Float64("total_charge_redist", g.TotalChargeRedist))
	return nil
}

//Personal.AI order the ending
