package charge

import (
	"context"
	"fmt"
	"math"

	"github.com/turtacn/ChargeMatch/internal/domain/molecule"
	"github.com/turtacn/ChargeMatch/pkg/errors"
)

// DefaultMaxBins bounds the number of histogram bins per atom.
const DefaultMaxBins = 7

// CollectorKind names a collection strategy.
type CollectorKind string

const (
	CollectorMean      CollectorKind = "mean"
	CollectorHistogram CollectorKind = "histogram"
)

// Collector turns repository matches into per-atom candidate distributions.
type Collector interface {
	// Collect searches shells in order for every atom and summarises the
	// first match.  It fails with ErrCodeAssignment listing every atom left
	// without a match.
	Collect(ctx context.Context, g *molecule.Graph, iacmDataOnly bool, shells []int) (Distributions, error)
	Kind() CollectorKind
}

// matcher walks the shells for one atom and returns the first non-empty
// list of observed charges.
type matcher struct {
	repo  *Repository
	canon Canonizer
}

func (m *matcher) match(ctx context.Context, g *molecule.Graph, a *molecule.Atom, iacmDataOnly bool, shells []int) ([]float64, error) {
	for _, shell := range shells {
		vals, err := m.lookup(ctx, m.repo.IACM, g, a, shell, molecule.ColorIACM)
		if err != nil {
			return nil, err
		}
		if len(vals) == 0 && !iacmDataOnly {
			vals, err = m.lookup(ctx, m.repo.Elem, g, a, shell, molecule.ColorElement)
			if err != nil {
				return nil, err
			}
		}
		if len(vals) > 0 {
			return vals, nil
		}
	}
	return nil, nil
}

func (m *matcher) lookup(ctx context.Context, set ChargeSet, g *molecule.Graph, a *molecule.Atom, shell int, color molecule.ColorAttr) ([]float64, error) {
	if set == nil || !set.HasShell(shell) {
		return nil, nil
	}
	key, err := m.canon.Canonize(ctx, g, a.ID, shell, color)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCanonizationFailed, "failed to canonize neighborhood").
			WithDetail(fmt.Sprintf("atom=%s shell=%d color=%s", a.ID, shell, color))
	}
	vals, ok, err := set.Lookup(ctx, shell, key)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRepositoryUnavailable, "charge lookup failed").
			WithDetail(fmt.Sprintf("atom=%s shell=%d", a.ID, shell))
	}
	if !ok {
		return nil, nil
	}
	return vals, nil
}

// collect runs the shared per-atom loop and reduces each match with reduce.
// An atom whose match reduces to no candidates counts as unresolved.
func (m *matcher) collect(ctx context.Context, g *molecule.Graph, iacmDataOnly bool, shells []int,
	reduce func(context.Context, []float64) (Distribution, error)) (Distributions, []molecule.AtomID, error) {

	out := make(Distributions, g.Len())
	var unresolved []molecule.AtomID
	for _, a := range g.Atoms() {
		if err := ctx.Err(); err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrCodeTimeout, "collection cancelled")
		}
		vals, err := m.match(ctx, g, a, iacmDataOnly, shells)
		if err != nil {
			return nil, nil, err
		}
		if len(vals) == 0 {
			unresolved = append(unresolved, a.ID)
			continue
		}
		d, err := reduce(ctx, vals)
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrCodeTimeout, "collection cancelled")
		}
		if d.Empty() {
			unresolved = append(unresolved, a.ID)
			continue
		}
		out[a.ID] = d
	}
	return out, unresolved, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Mean
// ─────────────────────────────────────────────────────────────────────────────

// MeanCollector reduces each match to its rounded mean with weight 1.
// Non-finite charges are left out of the mean.
type MeanCollector struct {
	m      matcher
	digits int
}

// NewMeanCollector returns a MeanCollector rounding to digits.
func NewMeanCollector(repo *Repository, canon Canonizer, digits int) *MeanCollector {
	return &MeanCollector{m: matcher{repo: repo, canon: canon}, digits: digits}
}

func (c *MeanCollector) Kind() CollectorKind { return CollectorMean }

func (c *MeanCollector) Collect(ctx context.Context, g *molecule.Graph, iacmDataOnly bool, shells []int) (Distributions, error) {
	out, unresolved, err := c.m.collect(ctx, g, iacmDataOnly, shells, func(_ context.Context, vals []float64) (Distribution, error) {
		var sum float64
		n := 0
		for _, v := range vals {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			sum += v
			n++
		}
		if n == 0 {
			return Distribution{}, nil
		}
		return Distribution{
			Values:  []float64{Round(sum/float64(n), c.digits)},
			Weights: []float64{1.0},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	if len(unresolved) > 0 {
		hint := ""
		if !containsShell(shells, 0) {
			hint = `Please retry with a smaller "shell" parameter.`
		}
		return nil, newAssignmentError(string(CollectorMean), unresolved, shells, hint)
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Histogram
// ─────────────────────────────────────────────────────────────────────────────

// HistogramCollector reduces each match to a grain-aligned histogram whose
// bin centres become candidate charges weighted by bin count.
type HistogramCollector struct {
	m       matcher
	digits  int
	maxBins int
}

// NewHistogramCollector returns a HistogramCollector.  maxBins below 1 is
// raised to 1.
func NewHistogramCollector(repo *Repository, canon Canonizer, digits, maxBins int) *HistogramCollector {
	if maxBins < 1 {
		maxBins = 1
	}
	return &HistogramCollector{m: matcher{repo: repo, canon: canon}, digits: digits, maxBins: maxBins}
}

func (c *HistogramCollector) Kind() CollectorKind { return CollectorHistogram }

func (c *HistogramCollector) Collect(ctx context.Context, g *molecule.Graph, iacmDataOnly bool, shells []int) (Distributions, error) {
	out, unresolved, err := c.m.collect(ctx, g, iacmDataOnly, shells, func(ctx context.Context, vals []float64) (Distribution, error) {
		centers, counts, err := HistogramContext(ctx, vals, c.maxBins, c.digits)
		if err != nil {
			return Distribution{}, err
		}
		d := Distribution{Values: centers, Weights: make([]float64, len(counts))}
		for i, n := range counts {
			d.Weights[i] = float64(n)
		}
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	if len(unresolved) > 0 {
		hint := "Please retry with a simple charger."
		if !containsShell(shells, 0) {
			hint = `Please retry with a smaller "shell" parameter or a simple charger.`
		}
		return nil, newAssignmentError(string(CollectorHistogram), unresolved, shells, hint)
	}
	return out, nil
}

//Personal.AI order the ending
