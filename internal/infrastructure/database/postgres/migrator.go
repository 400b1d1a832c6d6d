package postgres

import (
	"embed"
	stderrors "errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // Postgres driver
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChargeMatch/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrator applies the embedded schema migrations to the database at dsn.
// Each call opens and closes its own migrate instance.
type Migrator struct {
	dsn    string
	logger logging.Logger
}

func NewMigrator(dsn string, log logging.Logger) *Migrator {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Migrator{dsn: dsn, logger: log}
}

func (m *Migrator) open() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read embedded migrations")
	}
	mg, err := migrate.NewWithSourceInstance("iofs", src, m.dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	return mg, nil
}

func closeMigrate(mg *migrate.Migrate, log logging.Logger) {
	srcErr, dbErr := mg.Close()
	if srcErr != nil || dbErr != nil {
		log.Warn("failed to close migrate instance", logging.Any("source_error", srcErr), logging.Any("db_error", dbErr))
	}
}

// Up applies every pending migration.  Having nothing to apply is not an
// error.
func (m *Migrator) Up() error {
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer closeMigrate(mg, m.logger)

	if err := mg.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to run migrations")
	}
	version, dirty, _ := mg.Version()
	m.logger.Info("Database migrations completed",
		logging.Int64("version", int64(version)),
		logging.Bool("dirty", dirty))
	return nil
}

// Down rolls back steps migrations.
func (m *Migrator) Down(steps int) error {
	if steps <= 0 {
		return errors.InvalidParam("steps must be greater than 0").WithDetail(fmt.Sprintf("steps=%d", steps))
	}
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer closeMigrate(mg, m.logger)

	if err := mg.Steps(-steps); err != nil {
		if stderrors.Is(err, migrate.ErrNoChange) {
			return errors.InvalidState("no migrations to roll back")
		}
		return errors.Wrap(err, errors.ErrCodeDatabaseError, fmt.Sprintf("failed to rollback %d step(s)", steps))
	}
	return nil
}

// Status returns the applied version, 0 when nothing has been applied.
func (m *Migrator) Status() (version uint, dirty bool, err error) {
	mg, err := m.open()
	if err != nil {
		return 0, false, err
	}
	defer closeMigrate(mg, m.logger)

	version, dirty, err = mg.Version()
	if err != nil {
		if stderrors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to get migration version")
	}
	return version, dirty, nil
}

// Force sets the recorded version without running migrations, clearing a
// dirty state left by a failed migration.
func (m *Migrator) Force(version int) error {
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer closeMigrate(mg, m.logger)

	if err := mg.Force(version); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, fmt.Sprintf("failed to force version %d", version))
	}
	return nil
}

//Personal.AI order the ending
