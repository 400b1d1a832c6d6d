package postgres

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/turtacn/ChargeMatch/pkg/errors"
)

func TestMigrationFiles_ArePaired(t *testing.T) {
	ups, err := fs.Glob(migrationFiles, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationFiles, "migrations/*.down.sql")
	require.NoError(t, err)

	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))

	body, err := fs.ReadFile(migrationFiles, "migrations/000001_create_charge_values.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "charges       FLOAT8[]")
}

func TestMigrator_DownRejectsNonPositiveSteps(t *testing.T) {
	m := NewMigrator("postgres://localhost/none", nil)
	for _, steps := range []int{0, -2} {
		err := m.Down(steps)
		assert.True(t, pkgerrors.IsValidation(err))
	}
}

func TestMigrator_BadDSN(t *testing.T) {
	m := NewMigrator("unknown-scheme://x", nil)
	err := m.Up()
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
}

//Personal.AI order the ending
