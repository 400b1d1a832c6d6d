// Package molecule provides the typed molecule graph that the charge pipeline
// reads and fills in.  Atoms carry their element and optional IACM type as
// inputs and their confidence score, raw partial charge and redistributed
// partial charge as outputs; the graph carries the matching totals.
package molecule

import (
	"fmt"
	"sort"
	"strings"

	"github.com/turtacn/ChargeMatch/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Identifiers and colouring
// ─────────────────────────────────────────────────────────────────────────────

// AtomID identifies an atom within one graph.
type AtomID int

func (id AtomID) String() string { return fmt.Sprintf("%d", int(id)) }

// ColorAttr selects which atom label colours a neighbourhood for
// canonicalisation.
type ColorAttr string

const (
	// ColorElement colours atoms by element symbol.
	ColorElement ColorAttr = "element"
	// ColorIACM colours atoms by IACM type, falling back to the element for
	// atoms without one.
	ColorIACM ColorAttr = "iacm"
)

// SolutionState tracks how far the charge pipeline has progressed on a graph.
type SolutionState int

const (
	StateUnsolved SolutionState = iota
	StateSolved
	StateRedistributed
)

func (s SolutionState) String() string {
	switch s {
	case StateSolved:
		return "solved"
	case StateRedistributed:
		return "redistributed"
	default:
		return "unsolved"
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Atom
// ─────────────────────────────────────────────────────────────────────────────

// Atom is a vertex of the molecule graph.
type Atom struct {
	ID       AtomID
	Label    string
	Element  string
	IACMType string // empty when unassigned

	// ChargeGroup is nil for atoms outside any declared charge group.
	ChargeGroup *int

	// Charge is a known reference charge; only set on repository input.
	Charge *float64

	Score               float64
	PartialCharge       float64
	PartialChargeRedist float64
}

// HasIACM reports whether the atom has an IACM type assigned.
func (a *Atom) HasIACM() bool { return a.IACMType != "" }

// Color returns the label used to colour this atom under attr.
func (a *Atom) Color(attr ColorAttr) string {
	if attr == ColorIACM && a.HasIACM() {
		return a.IACMType
	}
	return a.Element
}

// DisplayName is used in diagnostics.
func (a *Atom) DisplayName() string {
	if a.Label != "" {
		return a.Label
	}
	return a.ID.String()
}

func (a *Atom) clone() *Atom {
	c := *a
	if a.ChargeGroup != nil {
		g := *a.ChargeGroup
		c.ChargeGroup = &g
	}
	if a.Charge != nil {
		q := *a.Charge
		c.Charge = &q
	}
	return &c
}

// NormalizeElement renders an element symbol with a leading capital and
// lower-case remainder ("CL" → "Cl").
func NormalizeElement(symbol string) string {
	s := strings.TrimSpace(symbol)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// ─────────────────────────────────────────────────────────────────────────────
// Graph
// ─────────────────────────────────────────────────────────────────────────────

// Graph is an undirected molecule graph.  Atom iteration order is insertion
// order; neighbour lists are kept sorted by AtomID.
type Graph struct {
	atoms []*Atom
	index map[AtomID]int
	adj   map[AtomID][]AtomID

	// GroupCharges maps a charge group to the total charge its atoms must
	// carry.  Empty when the molecule declares no groups.
	GroupCharges map[int]float64

	TotalCharge       float64
	TotalChargeRedist float64
	Score             float64

	state SolutionState
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		index:        make(map[AtomID]int),
		adj:          make(map[AtomID][]AtomID),
		GroupCharges: make(map[int]float64),
	}
}

// AddAtom appends a to the graph.  The element symbol is normalised.
func (g *Graph) AddAtom(a *Atom) error {
	if a == nil {
		return errors.InvalidParam("atom must not be nil")
	}
	if _, ok := g.index[a.ID]; ok {
		return errors.New(errors.ErrCodeDuplicateAtom, "duplicate atom id").
			WithDetail(fmt.Sprintf("id=%d", a.ID))
	}
	a.Element = NormalizeElement(a.Element)
	if a.Element == "" {
		return errors.New(errors.ErrCodeMoleculeInvalidFormat, "atom has no element").
			WithDetail(fmt.Sprintf("id=%d", a.ID))
	}
	g.index[a.ID] = len(g.atoms)
	g.atoms = append(g.atoms, a)
	return nil
}

// AddBond connects two existing atoms.  Adding an existing bond is a no-op.
func (g *Graph) AddBond(from, to AtomID) error {
	if from == to {
		return errors.InvalidParam("self bonds are not allowed").
			WithDetail(fmt.Sprintf("id=%d", from))
	}
	for _, id := range []AtomID{from, to} {
		if _, ok := g.index[id]; !ok {
			return errors.New(errors.ErrCodeAtomNotFound, "bond references unknown atom").
				WithDetail(fmt.Sprintf("id=%d", id))
		}
	}
	if g.HasBond(from, to) {
		return nil
	}
	g.adj[from] = insertSorted(g.adj[from], to)
	g.adj[to] = insertSorted(g.adj[to], from)
	return nil
}

func insertSorted(ids []AtomID, id AtomID) []AtomID {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

// HasBond reports whether from and to are bonded.
func (g *Graph) HasBond(from, to AtomID) bool {
	ns := g.adj[from]
	i := sort.Search(len(ns), func(i int) bool { return ns[i] >= to })
	return i < len(ns) && ns[i] == to
}

// Atom returns the atom with the given id.
func (g *Graph) Atom(id AtomID) (*Atom, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return g.atoms[i], true
}

// Atoms returns the atoms in insertion order.  The slice is shared; callers
// must not reorder it.
func (g *Graph) Atoms() []*Atom { return g.atoms }

// Len returns the number of atoms.
func (g *Graph) Len() int { return len(g.atoms) }

// Neighbors returns the sorted neighbour ids of id.
func (g *Graph) Neighbors(id AtomID) []AtomID { return g.adj[id] }

// Degree returns the number of bonds on id.
func (g *Graph) Degree(id AtomID) int { return len(g.adj[id]) }

// Bonds returns every bond once, as (lower, higher) id pairs in ascending order.
func (g *Graph) Bonds() [][2]AtomID {
	var out [][2]AtomID
	for _, a := range g.atoms {
		for _, n := range g.adj[a.ID] {
			if a.ID < n {
				out = append(out, [2]AtomID{a.ID, n})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// HasChargeGroups reports whether the molecule declares charge groups.
func (g *Graph) HasChargeGroups() bool { return len(g.GroupCharges) > 0 }

// ─────────────────────────────────────────────────────────────────────────────
// Solution lifecycle
// ─────────────────────────────────────────────────────────────────────────────

// State returns the current solution state.
func (g *Graph) State() SolutionState { return g.state }

// MarkSolved records that every atom carries a raw partial charge and score.
func (g *Graph) MarkSolved() { g.state = StateSolved }

// MarkRedistributed records that redistributed charges are present.
func (g *Graph) MarkRedistributed() { g.state = StateRedistributed }

// ResetSolution clears all charge results.
func (g *Graph) ResetSolution() {
	for _, a := range g.atoms {
		a.Score, a.PartialCharge, a.PartialChargeRedist = 0, 0, 0
	}
	g.TotalCharge, g.TotalChargeRedist, g.Score = 0, 0, 0
	g.state = StateUnsolved
}

// Clone returns a deep copy of g.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		atoms:             make([]*Atom, len(g.atoms)),
		index:             make(map[AtomID]int, len(g.index)),
		adj:               make(map[AtomID][]AtomID, len(g.adj)),
		GroupCharges:      make(map[int]float64, len(g.GroupCharges)),
		TotalCharge:       g.TotalCharge,
		TotalChargeRedist: g.TotalChargeRedist,
		Score:             g.Score,
		state:             g.state,
	}
	for i, a := range g.atoms {
		c.atoms[i] = a.clone()
		c.index[a.ID] = i
	}
	for id, ns := range g.adj {
		c.adj[id] = append([]AtomID(nil), ns...)
	}
	for k, v := range g.GroupCharges {
		c.GroupCharges[k] = v
	}
	return c
}

// CopyResultsFrom copies charge results and IACM types from src, which must
// contain the same atom ids.
func (g *Graph) CopyResultsFrom(src *Graph) {
	for _, a := range g.atoms {
		s, ok := src.Atom(a.ID)
		if !ok {
			continue
		}
		a.IACMType = s.IACMType
		a.Score = s.Score
		a.PartialCharge = s.PartialCharge
		a.PartialChargeRedist = s.PartialChargeRedist
	}
	g.TotalCharge = src.TotalCharge
	g.TotalChargeRedist = src.TotalChargeRedist
	g.Score = src.Score
	g.state = src.state
}

//Personal.AI order the ending
