package charge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChargeMatch/internal/domain/molecule"
)

// shellCanonizer keys a neighbourhood by the sorted colours found at each
// depth.  It is not a true canonical form but separates every fixture used
// here, and it records how often each shell was queried.
type shellCanonizer struct {
	mu    sync.Mutex
	calls map[int]int
	fail  error
}

func newShellCanonizer() *shellCanonizer {
	return &shellCanonizer{calls: make(map[int]int)}
}

func (c *shellCanonizer) Canonize(_ context.Context, g *molecule.Graph, atom molecule.AtomID, shell int, color molecule.ColorAttr) (CanonicalKey, error) {
	c.mu.Lock()
	c.calls[shell]++
	c.mu.Unlock()
	if c.fail != nil {
		return "", c.fail
	}
	nb, err := g.Neighborhood(atom, shell)
	if err != nil {
		return "", err
	}
	layers := make([][]string, shell+1)
	for _, id := range nb.Atoms {
		a, _ := g.Atom(id)
		d := nb.Depth[id]
		layers[d] = append(layers[d], a.Color(color))
	}
	parts := make([]string, len(layers))
	for i, l := range layers {
		sort.Strings(l)
		parts[i] = strings.Join(l, ",")
	}
	return CanonicalKey(fmt.Sprintf("%d|%s", shell, strings.Join(parts, "|"))), nil
}

func (c *shellCanonizer) callsAt(shell int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[shell]
}

func floatp(f float64) *float64 { return &f }

// methane builds CH4; hydrogens carry the HC type, carbon has none.  With
// charged set, atoms carry the reference charges C -0.48 and H 0.118.
func methane(t *testing.T, charged bool) *molecule.Graph {
	t.Helper()
	g := molecule.NewGraph()
	c := &molecule.Atom{ID: 1, Label: "C1", Element: "C"}
	if charged {
		c.Charge = floatp(-0.48)
	}
	require.NoError(t, g.AddAtom(c))
	for i := 2; i <= 5; i++ {
		h := &molecule.Atom{ID: molecule.AtomID(i), Label: fmt.Sprintf("H%d", i-1), Element: "H", IACMType: "HC"}
		if charged {
			h.Charge = floatp(0.118)
		}
		require.NoError(t, g.AddAtom(h))
		require.NoError(t, g.AddBond(1, molecule.AtomID(i)))
	}
	return g
}

// methaneRepository builds shells 0..2 from the charged reference methane.
func methaneRepository(t *testing.T) *Repository {
	t.Helper()
	b := NewBuilder(newShellCanonizer(), 2)
	require.NoError(t, b.Add(context.Background(), methane(t, true)))
	return b.Build()
}

// chain builds a linear molecule of the given elements, ids from 1.
func chain(t *testing.T, elements ...string) *molecule.Graph {
	t.Helper()
	g := molecule.NewGraph()
	for i, e := range elements {
		require.NoError(t, g.AddAtom(&molecule.Atom{ID: molecule.AtomID(i + 1), Element: e}))
		if i > 0 {
			require.NoError(t, g.AddBond(molecule.AtomID(i), molecule.AtomID(i+1)))
		}
	}
	return g
}

func sumRedist(g *molecule.Graph) float64 {
	var s float64
	for _, a := range g.Atoms() {
		s += a.PartialChargeRedist
	}
	return s
}

//Personal.AI order the ending
