package charge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/turtacn/ChargeMatch/pkg/errors"
)

func TestBuilder_RecordsElementAndIACMKeys(t *testing.T) {
	b := NewBuilder(newShellCanonizer(), 2)
	require.NoError(t, b.Add(context.Background(), methane(t, true)))

	d := b.Data()
	assert.Len(t, d.Elem, 3)
	assert.Len(t, d.IACM, 3)

	assert.Equal(t, []float64{-0.48}, d.Elem[0]["0|C"])
	assert.Equal(t, []float64{0.118, 0.118, 0.118, 0.118}, d.Elem[0]["0|H"])
	assert.Equal(t, []float64{0.118, 0.118, 0.118, 0.118}, d.IACM[0]["0|HC"])
	assert.NotContains(t, d.IACM[0], CanonicalKey("0|C"))

	molecules, atoms, skipped := b.Counts()
	assert.Equal(t, 1, molecules)
	assert.Equal(t, 5, atoms)
	assert.Zero(t, skipped)
}

func TestBuilder_SkipsUnchargedAtoms(t *testing.T) {
	g := methane(t, true)
	a, _ := g.Atom(3)
	a.Charge = nil

	b := NewBuilder(newShellCanonizer(), 0)
	require.NoError(t, b.Add(context.Background(), g))

	_, atoms, skipped := b.Counts()
	assert.Equal(t, 4, atoms)
	assert.Equal(t, 1, skipped)
	assert.Len(t, b.Data().Elem[0]["0|H"], 3)
}

func TestBuilder_AccumulatesAcrossMolecules(t *testing.T) {
	b := NewBuilder(newShellCanonizer(), 0)
	require.NoError(t, b.Add(context.Background(), methane(t, true)))
	require.NoError(t, b.Add(context.Background(), methane(t, true)))

	assert.Len(t, b.Data().Elem[0]["0|C"], 2)
	molecules, _, _ := b.Counts()
	assert.Equal(t, 2, molecules)
}

func TestBuilder_DataIsACopy(t *testing.T) {
	b := NewBuilder(newShellCanonizer(), 0)
	require.NoError(t, b.Add(context.Background(), methane(t, true)))

	d := b.Data()
	d.Elem[0]["0|C"][0] = 99
	assert.Equal(t, -0.48, b.Data().Elem[0]["0|C"][0])
}

func TestBuilder_CanonizerFailure(t *testing.T) {
	canon := newShellCanonizer()
	canon.fail = errors.New("boom")
	err := NewBuilder(canon, 1).Add(context.Background(), methane(t, true))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeCanonizationFailed))
}

func TestBuilder_NegativeMaxShell(t *testing.T) {
	b := NewBuilder(newShellCanonizer(), -2)
	require.NoError(t, b.Add(context.Background(), methane(t, true)))
	assert.Equal(t, []int{0}, b.Build().Elem.Shells())
}

func TestBuilder_BuildsLookupRepository(t *testing.T) {
	repo := methaneRepository(t)
	assert.Equal(t, []int{0, 1, 2}, repo.IACM.Shells())
	assert.Equal(t, []int{0, 1, 2}, repo.Elem.Shells())

	vals, ok, err := repo.Elem.Lookup(context.Background(), 1, "1|C|H,H,H,H")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float64{-0.48}, vals)

	_, ok, err = repo.Elem.Lookup(context.Background(), 1, "1|Xe|")
	require.NoError(t, err)
	assert.False(t, ok)
}

//Personal.AI order the ending
