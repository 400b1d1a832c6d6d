// Package charge implements neighbourhood-matched partial charge assignment:
// collecting candidate charges from a repository, solving for one charge per
// atom under a total-charge constraint, and redistributing the rounding error.
package charge

import (
	"context"

	"github.com/turtacn/ChargeMatch/internal/domain/molecule"
)

// CanonicalKey identifies a coloured neighbourhood up to isomorphism.
type CanonicalKey string

// Canonizer computes the canonical key of the neighbourhood of atom within
// shell bonds, coloured by color.  Implementations may hold an external
// process and are not safe for concurrent use unless documented otherwise.
type Canonizer interface {
	Canonize(ctx context.Context, g *molecule.Graph, atom molecule.AtomID, shell int, color molecule.ColorAttr) (CanonicalKey, error)
}

// CanonizerFunc adapts a function to the Canonizer interface.
type CanonizerFunc func(ctx context.Context, g *molecule.Graph, atom molecule.AtomID, shell int, color molecule.ColorAttr) (CanonicalKey, error)

// Canonize calls f.
func (f CanonizerFunc) Canonize(ctx context.Context, g *molecule.Graph, atom molecule.AtomID, shell int, color molecule.ColorAttr) (CanonicalKey, error) {
	return f(ctx, g, atom, shell, color)
}

//Personal.AI order the ending
