package charge

import (
	"context"
	stderrors "errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChargeMatch/internal/domain/molecule"
	"github.com/turtacn/ChargeMatch/pkg/errors"
)

// keyOf canonizes atom of g with the helper canonizer without counting.
func keyOf(t *testing.T, g *molecule.Graph, atom molecule.AtomID, shell int, color molecule.ColorAttr) CanonicalKey {
	t.Helper()
	k, err := newShellCanonizer().Canonize(context.Background(), g, atom, shell, color)
	require.NoError(t, err)
	return k
}

func TestMeanCollector_UsesLargestMatchingShell(t *testing.T) {
	g := methane(t, false)
	repo := methaneRepository(t)
	c := NewMeanCollector(repo, newShellCanonizer(), 3)

	dists, err := c.Collect(context.Background(), g, false, []int{2, 1, 0})
	require.NoError(t, err)
	require.Len(t, dists, 5)
	assert.Equal(t, []float64{-0.48}, dists[1].Values)
	assert.Equal(t, []float64{1.0}, dists[1].Weights)
	assert.Equal(t, []float64{0.118}, dists[2].Values)
}

func TestMeanCollector_RoundsMean(t *testing.T) {
	g := chain(t, "O")
	elem := ChargeTable{0: {keyOf(t, g, 1, 0, molecule.ColorElement): {-0.5, -0.6, -0.6}}}
	repo := NewRepository(nil, NewMemoryChargeSet(elem))

	dists, err := NewMeanCollector(repo, newShellCanonizer(), 2).Collect(context.Background(), g, false, []int{0})
	require.NoError(t, err)
	assert.Equal(t, []float64{-0.57}, dists[1].Values)
}

func TestCollector_FallsBackToShellZero(t *testing.T) {
	g := chain(t, "C", "O", "H")
	// Shells 2 and 1 exist but hold unrelated keys; only shell 0 matches.
	iacm := ChargeTable{
		2: {"unrelated-2": {0.9}},
		1: {"unrelated-1": {0.9}},
	}
	elem := ChargeTable{0: {}}
	for _, id := range []molecule.AtomID{1, 2, 3} {
		k := keyOf(t, g, id, 0, molecule.ColorElement)
		elem[0][k] = append(elem[0][k], float64(id)/10)
	}
	repo := NewRepository(NewMemoryChargeSet(iacm), NewMemoryChargeSet(elem))
	canon := newShellCanonizer()

	dists, err := NewMeanCollector(repo, canon, 3).Collect(context.Background(), g, false, []int{2, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.2}, dists[2].Values)
	// IACM lookups at 2 and 1 for each atom, elem only at 0.
	assert.Equal(t, 3, canon.callsAt(2))
	assert.Equal(t, 3, canon.callsAt(1))
	assert.Equal(t, 3, canon.callsAt(0))
}

func TestCollector_IACMPreferredOverElement(t *testing.T) {
	g := chain(t, "O")
	a, _ := g.Atom(1)
	a.IACMType = "OA"
	iacm := ChargeTable{0: {keyOf(t, g, 1, 0, molecule.ColorIACM): {-0.7}}}
	elem := ChargeTable{0: {keyOf(t, g, 1, 0, molecule.ColorElement): {-0.1}}}
	repo := NewRepository(NewMemoryChargeSet(iacm), NewMemoryChargeSet(elem))

	dists, err := NewMeanCollector(repo, newShellCanonizer(), 3).Collect(context.Background(), g, false, []int{0})
	require.NoError(t, err)
	assert.Equal(t, []float64{-0.7}, dists[1].Values)
}

func TestCollector_IACMDataOnlySkipsElement(t *testing.T) {
	g := chain(t, "O")
	elem := ChargeTable{0: {keyOf(t, g, 1, 0, molecule.ColorElement): {-0.1}}}
	repo := NewRepository(nil, NewMemoryChargeSet(elem))

	_, err := NewMeanCollector(repo, newShellCanonizer(), 3).Collect(context.Background(), g, true, []int{0})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAssignment))
}

func TestCollector_SkipsAbsentShellWithoutCanonizing(t *testing.T) {
	g := chain(t, "O")
	elem := ChargeTable{0: {keyOf(t, g, 1, 0, molecule.ColorElement): {-0.1}}}
	repo := NewRepository(nil, NewMemoryChargeSet(elem))
	canon := newShellCanonizer()

	_, err := NewMeanCollector(repo, canon, 3).Collect(context.Background(), g, false, []int{3, 0})
	require.NoError(t, err)
	assert.Zero(t, canon.callsAt(3))
}

func TestMeanCollector_FailureMessage(t *testing.T) {
	g := chain(t, "C", "Xe")
	elem := ChargeTable{0: {keyOf(t, g, 1, 0, molecule.ColorElement): {0.0}}}
	repo := NewRepository(nil, NewMemoryChargeSet(elem))
	c := NewMeanCollector(repo, newShellCanonizer(), 3)

	_, err := c.Collect(context.Background(), g, false, []int{1, 0})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAssignment))
	assert.Equal(t, []molecule.AtomID{2}, UnresolvedAtoms(err))
	assert.Contains(t, err.Error(), "Could not find charges for atoms 2.")
	assert.NotContains(t, err.Error(), "smaller")

	_, err = c.Collect(context.Background(), g, false, []int{2, 1})
	require.Error(t, err)
	assert.Equal(t, []molecule.AtomID{1, 2}, UnresolvedAtoms(err))
	assert.Contains(t, err.Error(), `Please retry with a smaller "shell" parameter.`)
}

func TestHistogramCollector_FailureMessage(t *testing.T) {
	g := chain(t, "Xe")
	repo := NewRepository(nil, nil)
	c := NewHistogramCollector(repo, newShellCanonizer(), 3, 7)

	_, err := c.Collect(context.Background(), g, false, []int{0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Please retry with a simple charger.")
	assert.NotContains(t, err.Error(), "smaller")

	_, err = c.Collect(context.Background(), g, false, []int{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `smaller "shell" parameter or a simple charger`)

	var ae *AssignmentError
	require.True(t, stderrors.As(err, &ae))
	assert.Equal(t, "histogram", ae.Strategy)
	assert.Equal(t, []int{1}, ae.Shells)
}

func TestHistogramCollector_WeightsAreCounts(t *testing.T) {
	g := chain(t, "N")
	elem := ChargeTable{0: {keyOf(t, g, 1, 0, molecule.ColorElement): {-0.3, -0.3, -0.1, -0.3}}}
	repo := NewRepository(nil, NewMemoryChargeSet(elem))

	dists, err := NewHistogramCollector(repo, newShellCanonizer(), 1, 7).Collect(context.Background(), g, false, []int{0})
	require.NoError(t, err)
	assert.Equal(t, []float64{-0.3, -0.1}, dists[1].Values)
	assert.Equal(t, []float64{3, 1}, dists[1].Weights)
}

func TestCollector_CanonizerFailure(t *testing.T) {
	g := chain(t, "C")
	repo := NewRepository(NewMemoryChargeSet(ChargeTable{0: {"k": {0.1}}}), nil)
	canon := newShellCanonizer()
	canon.fail = stderrors.New("dreadnaut exited")

	_, err := NewMeanCollector(repo, canon, 3).Collect(context.Background(), g, false, []int{0})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCanonizationFailed))
}

func TestCollector_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMeanCollector(methaneRepository(t), newShellCanonizer(), 3).
		Collect(ctx, methane(t, false), false, []int{1})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTimeout))
}

func TestCollectors_NonFiniteMatchIsUnresolved(t *testing.T) {
	g := chain(t, "C", "O")
	elem := ChargeTable{0: {
		keyOf(t, g, 1, 0, molecule.ColorElement): {0.1},
		keyOf(t, g, 2, 0, molecule.ColorElement): {math.NaN(), math.Inf(-1)},
	}}
	repo := NewRepository(nil, NewMemoryChargeSet(elem))

	collectors := []Collector{
		NewMeanCollector(repo, newShellCanonizer(), 3),
		NewHistogramCollector(repo, newShellCanonizer(), 3, 7),
	}
	for _, c := range collectors {
		t.Run(string(c.Kind()), func(t *testing.T) {
			_, err := c.Collect(context.Background(), g, false, []int{0})
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeAssignment))
			assert.Equal(t, []molecule.AtomID{2}, UnresolvedAtoms(err))
		})
	}
}

func TestMeanCollector_IgnoresNonFiniteCharges(t *testing.T) {
	g := chain(t, "O")
	elem := ChargeTable{0: {keyOf(t, g, 1, 0, molecule.ColorElement): {-0.4, math.NaN(), -0.6}}}
	repo := NewRepository(nil, NewMemoryChargeSet(elem))

	dists, err := NewMeanCollector(repo, newShellCanonizer(), 2).Collect(context.Background(), g, false, []int{0})
	require.NoError(t, err)
	assert.Equal(t, []float64{-0.5}, dists[1].Values)
}

//Personal.AI order the ending
