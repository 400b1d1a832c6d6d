package molecule

import (
	"fmt"

	"github.com/turtacn/ChargeMatch/pkg/errors"
)

// Neighborhood is the induced subgraph of all atoms within Radius bonds of
// Focus.  Atoms are listed in BFS order, so Atoms[0] is always the focus.
type Neighborhood struct {
	Focus  AtomID
	Radius int
	Atoms  []AtomID
	Depth  map[AtomID]int
	Bonds  [][2]AtomID
}

// Neighborhood extracts the shell of the given radius around focus.  Radius 0
// yields the focus atom alone.
func (g *Graph) Neighborhood(focus AtomID, radius int) (*Neighborhood, error) {
	if radius < 0 {
		return nil, errors.InvalidParam("shell radius must be non-negative").
			WithDetail(fmt.Sprintf("radius=%d", radius))
	}
	if _, ok := g.index[focus]; !ok {
		return nil, errors.New(errors.ErrCodeAtomNotFound, "focus atom not in graph").
			WithDetail(fmt.Sprintf("id=%d", focus))
	}

	nb := &Neighborhood{
		Focus:  focus,
		Radius: radius,
		Atoms:  []AtomID{focus},
		Depth:  map[AtomID]int{focus: 0},
	}
	queue := []AtomID{focus}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		d := nb.Depth[cur]
		if d == radius {
			continue
		}
		for _, n := range g.adj[cur] {
			if _, seen := nb.Depth[n]; seen {
				continue
			}
			nb.Depth[n] = d + 1
			nb.Atoms = append(nb.Atoms, n)
			queue = append(queue, n)
		}
	}

	// Induced bonds, including those between two atoms on the outer shell.
	for _, b := range g.Bonds() {
		_, in0 := nb.Depth[b[0]]
		_, in1 := nb.Depth[b[1]]
		if in0 && in1 {
			nb.Bonds = append(nb.Bonds, b)
		}
	}
	return nb, nil
}

// Contains reports whether id lies inside the neighbourhood.
func (n *Neighborhood) Contains(id AtomID) bool {
	_, ok := n.Depth[id]
	return ok
}

//Personal.AI order the ending
