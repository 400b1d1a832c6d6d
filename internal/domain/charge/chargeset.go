package charge

import (
	"context"
	"fmt"
	"sort"

	"github.com/turtacn/ChargeMatch/pkg/errors"
	ctypes "github.com/turtacn/ChargeMatch/pkg/types/charge"
)

// Repository kinds.
const (
	KindIACM = "iacm"
	KindElem = "elem"
)

// ChargeTable is the raw shell → key → observed charges mapping.
type ChargeTable map[int]map[CanonicalKey][]float64

// ChargeSet is a read-only shell → key → charges mapping.  Implementations
// must be safe for concurrent readers.
type ChargeSet interface {
	// Shells returns the shell sizes present, ascending.
	Shells() []int
	HasShell(shell int) bool
	// Lookup returns the observed charges for key at shell.  The returned
	// slice must not be modified.
	Lookup(ctx context.Context, shell int, key CanonicalKey) ([]float64, bool, error)
}

// Tabler is implemented by charge sets that can materialise their contents.
type Tabler interface {
	Table(ctx context.Context) (ChargeTable, error)
}

// Repository pairs the IACM-typed and plain-element charge sets.
type Repository struct {
	IACM ChargeSet
	Elem ChargeSet
}

// NewRepository returns a repository over two charge sets.  A nil set is
// replaced by an empty one.
func NewRepository(iacm, elem ChargeSet) *Repository {
	if iacm == nil {
		iacm = NewMemoryChargeSet(nil)
	}
	if elem == nil {
		elem = NewMemoryChargeSet(nil)
	}
	return &Repository{IACM: iacm, Elem: elem}
}

// Set returns the charge set of the given kind.
func (r *Repository) Set(kind string) (ChargeSet, error) {
	switch kind {
	case KindIACM:
		return r.IACM, nil
	case KindElem:
		return r.Elem, nil
	}
	return nil, errors.InvalidParam("unknown charge set kind").WithDetail("kind=" + kind)
}

// ─────────────────────────────────────────────────────────────────────────────
// MemoryChargeSet
// ─────────────────────────────────────────────────────────────────────────────

// MemoryChargeSet is a map-backed ChargeSet.  It is immutable after
// construction.
type MemoryChargeSet struct {
	table  ChargeTable
	shells []int
}

// NewMemoryChargeSet wraps table.  Shells with no keys are dropped; the
// table must not be modified afterwards.
func NewMemoryChargeSet(table ChargeTable) *MemoryChargeSet {
	m := &MemoryChargeSet{table: make(ChargeTable, len(table))}
	for shell, keys := range table {
		if len(keys) == 0 {
			continue
		}
		m.table[shell] = keys
		m.shells = append(m.shells, shell)
	}
	sort.Ints(m.shells)
	return m
}

func (m *MemoryChargeSet) Shells() []int {
	return append([]int(nil), m.shells...)
}

func (m *MemoryChargeSet) HasShell(shell int) bool {
	_, ok := m.table[shell]
	return ok
}

func (m *MemoryChargeSet) Lookup(_ context.Context, shell int, key CanonicalKey) ([]float64, bool, error) {
	vals, ok := m.table[shell][key]
	if !ok || len(vals) == 0 {
		return nil, false, nil
	}
	return vals, true, nil
}

// Table returns the underlying table.
func (m *MemoryChargeSet) Table(_ context.Context) (ChargeTable, error) {
	return m.table, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Snapshots and statistics
// ─────────────────────────────────────────────────────────────────────────────

// RepositoryData is the serialisable form of a Repository.
type RepositoryData struct {
	IACM ChargeTable `json:"iacm" yaml:"iacm"`
	Elem ChargeTable `json:"elem" yaml:"elem"`
}

// Repository returns an in-memory Repository over d.
func (d *RepositoryData) Repository() *Repository {
	return NewRepository(NewMemoryChargeSet(d.IACM), NewMemoryChargeSet(d.Elem))
}

// Table returns the table of the given kind.
func (d *RepositoryData) Table(kind string) ChargeTable {
	if kind == KindIACM {
		return d.IACM
	}
	return d.Elem
}

// Snapshot materialises r.  Both charge sets must implement Tabler.
func Snapshot(ctx context.Context, r *Repository) (*RepositoryData, error) {
	out := &RepositoryData{}
	for _, kind := range []string{KindIACM, KindElem} {
		set, _ := r.Set(kind)
		t, ok := set.(Tabler)
		if !ok {
			return nil, errors.New(errors.CodeNotImplemented, "charge set cannot be enumerated").
				WithDetail(fmt.Sprintf("kind=%s type=%T", kind, set))
		}
		table, err := t.Table(ctx)
		if err != nil {
			return nil, err
		}
		if kind == KindIACM {
			out.IACM = table
		} else {
			out.Elem = table
		}
	}
	return out, nil
}

// Stats counts keys and values per shell for both kinds.
func (d *RepositoryData) Stats() []ctypes.RepositoryStats {
	var out []ctypes.RepositoryStats
	for _, kind := range []string{KindIACM, KindElem} {
		table := d.Table(kind)
		st := ctypes.RepositoryStats{Kind: kind, Shells: []ctypes.ShellStat{}}
		shells := make([]int, 0, len(table))
		for s := range table {
			shells = append(shells, s)
		}
		sort.Ints(shells)
		for _, s := range shells {
			ss := ctypes.ShellStat{Shell: s, Keys: len(table[s])}
			for _, vals := range table[s] {
				ss.Values += len(vals)
			}
			st.Shells = append(st.Shells, ss)
		}
		out = append(out, st)
	}
	return out
}

// SortedKeys returns the keys of one shell in ascending order.
func (t ChargeTable) SortedKeys(shell int) []CanonicalKey {
	keys := make([]CanonicalKey, 0, len(t[shell]))
	for k := range t[shell] {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

//Personal.AI order the ending
