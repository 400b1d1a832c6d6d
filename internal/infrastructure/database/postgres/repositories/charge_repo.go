// Package repositories holds the PostgreSQL repositories.
package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"sort"

	"github.com/lib/pq"

	"github.com/turtacn/ChargeMatch/internal/domain/charge"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/database/postgres"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChargeMatch/pkg/errors"
)

// ChargeRepo reads and writes the charge_values table.
type ChargeRepo struct {
	conn *postgres.Connection
	log  logging.Logger
}

func NewChargeRepo(conn *postgres.Connection, log logging.Logger) *ChargeRepo {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ChargeRepo{conn: conn, log: log}
}

// ─────────────────────────────────────────────────────────────────────────────
// Save
// ─────────────────────────────────────────────────────────────────────────────

// SaveRepository replaces the whole table with data in one transaction.
func (r *ChargeRepo) SaveRepository(ctx context.Context, data *charge.RepositoryData) error {
	tx, err := r.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !stderrors.Is(rbErr, sql.ErrTxDone) {
				r.log.Error("rollback failed", logging.Err(rbErr))
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM charge_values`); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to clear charge values")
	}

	rows := 0
	for _, kind := range []string{charge.KindIACM, charge.KindElem} {
		table := data.Table(kind)
		for _, shell := range sortedShells(table) {
			for _, key := range table.SortedKeys(shell) {
				if err = r.insert(ctx, tx, kind, shell, key, table[shell][key]); err != nil {
					return err
				}
				rows++
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to commit charge values")
	}
	r.log.Info("saved charge repository", logging.Int("rows", rows))
	return nil
}

func (r *ChargeRepo) insert(ctx context.Context, q queryExecutor, kind string, shell int, key charge.CanonicalKey, vals []float64) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO charge_values (kind, shell, canonical_key, charges) VALUES ($1, $2, $3, $4)`,
		kind, shell, string(key), pq.Array(vals))
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to insert charge values").
			WithDetail(fmt.Sprintf("kind=%s shell=%d key=%s", kind, shell, key))
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Load
// ─────────────────────────────────────────────────────────────────────────────

// LoadData reads the whole table.
func (r *ChargeRepo) LoadData(ctx context.Context) (*charge.RepositoryData, error) {
	rows, err := r.conn.DB().QueryContext(ctx,
		`SELECT kind, shell, canonical_key, charges FROM charge_values ORDER BY kind, shell, canonical_key`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRepositoryUnavailable, "failed to query charge values")
	}
	defer rows.Close()

	data := &charge.RepositoryData{IACM: charge.ChargeTable{}, Elem: charge.ChargeTable{}}
	for rows.Next() {
		var (
			kind, key string
			shell     int
			vals      []float64
		)
		if err := scanChargeRow(rows, &kind, &shell, &key, &vals); err != nil {
			return nil, err
		}
		if kind != charge.KindIACM && kind != charge.KindElem {
			r.log.Warn("skipping charge row of unknown kind", logging.String("kind", kind))
			continue
		}
		table := data.Table(kind)
		if table[shell] == nil {
			table[shell] = make(map[charge.CanonicalKey][]float64)
		}
		table[shell][charge.CanonicalKey(key)] = vals
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRepositoryUnavailable, "failed to read charge values")
	}
	return data, nil
}

// LoadRepository reads the whole table into memory.
func (r *ChargeRepo) LoadRepository(ctx context.Context) (*charge.Repository, error) {
	data, err := r.LoadData(ctx)
	if err != nil {
		return nil, err
	}
	return data.Repository(), nil
}

// OpenRepository returns charge sets that query the table on every lookup.
func (r *ChargeRepo) OpenRepository(ctx context.Context) (*charge.Repository, error) {
	iacm, err := r.openSet(ctx, charge.KindIACM)
	if err != nil {
		return nil, err
	}
	elem, err := r.openSet(ctx, charge.KindElem)
	if err != nil {
		return nil, err
	}
	return charge.NewRepository(iacm, elem), nil
}

func (r *ChargeRepo) openSet(ctx context.Context, kind string) (*ChargeSet, error) {
	rows, err := r.conn.DB().QueryContext(ctx,
		`SELECT DISTINCT shell FROM charge_values WHERE kind = $1 ORDER BY shell`, kind)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRepositoryUnavailable, "failed to query shells").
			WithDetail("kind=" + kind)
	}
	defer rows.Close()

	set := &ChargeSet{repo: r, kind: kind, shellSet: map[int]struct{}{}}
	for rows.Next() {
		var shell int
		if err := rows.Scan(&shell); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to scan shell")
		}
		set.shells = append(set.shells, shell)
		set.shellSet[shell] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRepositoryUnavailable, "failed to read shells")
	}
	return set, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// ChargeSet
// ─────────────────────────────────────────────────────────────────────────────

// ChargeSet is a charge.ChargeSet backed by point queries.  The shell list
// is fixed when the set is opened.
type ChargeSet struct {
	repo     *ChargeRepo
	kind     string
	shells   []int
	shellSet map[int]struct{}
}

func (s *ChargeSet) Shells() []int {
	return append([]int(nil), s.shells...)
}

func (s *ChargeSet) HasShell(shell int) bool {
	_, ok := s.shellSet[shell]
	return ok
}

func (s *ChargeSet) Lookup(ctx context.Context, shell int, key charge.CanonicalKey) ([]float64, bool, error) {
	if !s.HasShell(shell) {
		return nil, false, nil
	}
	var vals pq.Float64Array
	err := s.repo.conn.DB().QueryRowContext(ctx,
		`SELECT charges FROM charge_values WHERE kind = $1 AND shell = $2 AND canonical_key = $3`,
		s.kind, shell, string(key)).Scan(&vals)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeRepositoryUnavailable, "charge lookup failed").
			WithDetail(fmt.Sprintf("kind=%s shell=%d", s.kind, shell))
	}
	if len(vals) == 0 {
		return nil, false, nil
	}
	return []float64(vals), true, nil
}

// Table reads every row of this kind.
func (s *ChargeSet) Table(ctx context.Context) (charge.ChargeTable, error) {
	data, err := s.repo.LoadData(ctx)
	if err != nil {
		return nil, err
	}
	return data.Table(s.kind), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func scanChargeRow(row scanner, kind *string, shell *int, key *string, vals *[]float64) error {
	var arr pq.Float64Array
	if err := row.Scan(kind, shell, key, &arr); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to scan charge row")
	}
	*vals = []float64(arr)
	return nil
}

func sortedShells(t charge.ChargeTable) []int {
	out := make([]int, 0, len(t))
	for s := range t {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}

//Personal.AI order the ending
