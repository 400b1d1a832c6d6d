package charge

import (
	"context"

	"github.com/turtacn/ChargeMatch/internal/domain/molecule"
	"github.com/turtacn/ChargeMatch/pkg/errors"
)

// Builder accumulates reference molecules with known atom charges into a
// repository.  Every charged atom contributes its charge at each shell from
// 0 to MaxShell, under its element-coloured key and, when it has an IACM
// type, under its IACM-coloured key.
type Builder struct {
	canon    Canonizer
	maxShell int

	iacm ChargeTable
	elem ChargeTable

	molecules int
	atoms     int
	skipped   int
}

// NewBuilder returns an empty Builder.
func NewBuilder(canon Canonizer, maxShell int) *Builder {
	if maxShell < 0 {
		maxShell = 0
	}
	return &Builder{
		canon:    canon,
		maxShell: maxShell,
		iacm:     make(ChargeTable),
		elem:     make(ChargeTable),
	}
}

// Add records the charged atoms of g.  Atoms without a reference charge are
// skipped.
func (b *Builder) Add(ctx context.Context, g *molecule.Graph) error {
	for _, a := range g.Atoms() {
		if a.Charge == nil {
			b.skipped++
			continue
		}
		for shell := 0; shell <= b.maxShell; shell++ {
			key, err := b.canon.Canonize(ctx, g, a.ID, shell, molecule.ColorElement)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeCanonizationFailed, "failed to canonize reference atom")
			}
			b.elem.add(shell, key, *a.Charge)

			if !a.HasIACM() {
				continue
			}
			key, err = b.canon.Canonize(ctx, g, a.ID, shell, molecule.ColorIACM)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeCanonizationFailed, "failed to canonize reference atom")
			}
			b.iacm.add(shell, key, *a.Charge)
		}
		b.atoms++
	}
	b.molecules++
	return nil
}

func (t ChargeTable) add(shell int, key CanonicalKey, v float64) {
	keys, ok := t[shell]
	if !ok {
		keys = make(map[CanonicalKey][]float64)
		t[shell] = keys
	}
	keys[key] = append(keys[key], v)
}

// Counts reports molecules added, atoms recorded and atoms skipped.
func (b *Builder) Counts() (molecules, atoms, skipped int) {
	return b.molecules, b.atoms, b.skipped
}

// Data returns a deep copy of the accumulated tables.
func (b *Builder) Data() *RepositoryData {
	return &RepositoryData{IACM: b.iacm.clone(), Elem: b.elem.clone()}
}

// Build returns an immutable in-memory repository.
func (b *Builder) Build() *Repository {
	return b.Data().Repository()
}

func (t ChargeTable) clone() ChargeTable {
	out := make(ChargeTable, len(t))
	for shell, keys := range t {
		ck := make(map[CanonicalKey][]float64, len(keys))
		for k, v := range keys {
			ck[k] = append([]float64(nil), v...)
		}
		out[shell] = ck
	}
	return out
}

//Personal.AI order the ending
