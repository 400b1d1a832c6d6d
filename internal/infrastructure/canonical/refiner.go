// Package canonical provides the neighbourhood canonizers used by the charge
// pipeline: an in-process colour-refinement hasher, a handle on an external
// dreadnaut process, and a pool that hands one canonizer to each worker.
package canonical

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/turtacn/ChargeMatch/internal/domain/charge"
	"github.com/turtacn/ChargeMatch/internal/domain/molecule"
	"github.com/turtacn/ChargeMatch/pkg/errors"
)

// focusMarker prefixes the seed colour of the focus atom.
const focusMarker = "*"

// Refiner keys a neighbourhood by Weisfeiler-Lehman colour refinement.
// Isomorphic coloured neighbourhoods always get equal keys.  The converse
// holds for every molecular neighbourhood met in practice but is not
// guaranteed for highly regular graphs.  Refiner is stateless and safe for
// concurrent use.
type Refiner struct{}

// NewRefiner returns a Refiner.
func NewRefiner() *Refiner { return &Refiner{} }

var _ charge.Canonizer = (*Refiner)(nil)

func (r *Refiner) Canonize(ctx context.Context, g *molecule.Graph, atom molecule.AtomID, shell int, color molecule.ColorAttr) (charge.CanonicalKey, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeTimeout, "canonization cancelled")
	}
	nb, err := g.Neighborhood(atom, shell)
	if err != nil {
		return "", err
	}
	sub := induce(g, nb, color)

	h := sha256.New()
	colors := sub.seeds
	classes := countClasses(colors)
	writeRound(h, colors)
	for round := 0; round < len(colors); round++ {
		sigs := make([]string, len(colors))
		for i := range colors {
			ns := make([]string, len(sub.adj[i]))
			for k, j := range sub.adj[i] {
				ns[k] = colors[j]
			}
			sort.Strings(ns)
			sigs[i] = colors[i] + "(" + strings.Join(ns, ",") + ")"
		}
		next := compress(sigs)
		writeRound(h, sigs)
		n := countClasses(next)
		colors = next
		if n == classes {
			break
		}
		classes = n
	}

	edges := make([]string, 0, len(sub.edges))
	for _, e := range sub.edges {
		a, b := colors[e[0]], colors[e[1]]
		if b < a {
			a, b = b, a
		}
		edges = append(edges, a+"-"+b)
	}
	sort.Strings(edges)
	fmt.Fprintf(h, "edges:%s\n", strings.Join(edges, ";"))

	return charge.CanonicalKey(hex.EncodeToString(h.Sum(nil))), nil
}

// subgraph is a neighbourhood relabelled to dense local indices.
type subgraph struct {
	seeds []string
	adj   [][]int
	edges [][2]int
}

func induce(g *molecule.Graph, nb *molecule.Neighborhood, color molecule.ColorAttr) *subgraph {
	local := make(map[molecule.AtomID]int, len(nb.Atoms))
	sub := &subgraph{
		seeds: make([]string, len(nb.Atoms)),
		adj:   make([][]int, len(nb.Atoms)),
	}
	for i, id := range nb.Atoms {
		local[id] = i
		a, _ := g.Atom(id)
		sub.seeds[i] = a.Color(color)
	}
	sub.seeds[0] = focusMarker + sub.seeds[0]
	for _, b := range nb.Bonds {
		u, v := local[b[0]], local[b[1]]
		sub.adj[u] = append(sub.adj[u], v)
		sub.adj[v] = append(sub.adj[v], u)
		sub.edges = append(sub.edges, [2]int{u, v})
	}
	return sub
}

// compress replaces each signature by its rank among the distinct sorted
// signatures, so colours stay short from one round to the next.
func compress(sigs []string) []string {
	distinct := append([]string(nil), sigs...)
	sort.Strings(distinct)
	rank := make(map[string]int, len(distinct))
	for _, s := range distinct {
		if _, ok := rank[s]; !ok {
			rank[s] = len(rank)
		}
	}
	out := make([]string, len(sigs))
	for i, s := range sigs {
		out[i] = strconv.Itoa(rank[s])
	}
	return out
}

func countClasses(colors []string) int {
	seen := make(map[string]struct{}, len(colors))
	for _, c := range colors {
		seen[c] = struct{}{}
	}
	return len(seen)
}

// writeRound hashes the multiset of colours of one refinement round.
func writeRound(h io.Writer, colors []string) {
	sorted := append([]string(nil), colors...)
	sort.Strings(sorted)
	fmt.Fprintf(h, "%d:%s\n", len(sorted), strings.Join(sorted, "|"))
}

//Personal.AI order the ending
