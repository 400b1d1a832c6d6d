package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/ChargeMatch/internal/infrastructure/database/postgres"
	"github.com/turtacn/ChargeMatch/pkg/errors"
)

// MigrationStatus is the result of migrate status.
type MigrationStatus struct {
	Version uint `json:"version" yaml:"version"`
	Dirty   bool `json:"dirty" yaml:"dirty"`
}

func (s MigrationStatus) String() string {
	if s.Dirty {
		return fmt.Sprintf("schema version %d (dirty)", s.Version)
	}
	return fmt.Sprintf("schema version %d", s.Version)
}

// NewMigrateCmd creates the migrate command group for the PostgreSQL
// repository schema.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL repository schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := migrator(cmd)
			if err != nil {
				return err
			}
			if err := m.Up(); err != nil {
				return err
			}
			PrintSuccess(cmd, "migrations applied")
			return nil
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := migrator(cmd)
			if err != nil {
				return err
			}
			if err := m.Down(steps); err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("rolled back %d migration(s)", steps))
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := migrator(cmd)
			if err != nil {
				return err
			}
			version, dirty, err := m.Status()
			if err != nil {
				return err
			}
			return PrintResult(cmd, MigrationStatus{Version: version, Dirty: dirty})
		},
	}

	force := &cobra.Command{
		Use:   "force <version>",
		Short: "Record a schema version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.InvalidParam("version must be an integer").WithDetail("version=" + args[0])
			}
			m, err := migrator(cmd)
			if err != nil {
				return err
			}
			if err := m.Force(version); err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("schema version forced to %d", version))
			return nil
		},
	}

	cmd.AddCommand(up, down, status, force)
	return cmd
}

func migrator(cmd *cobra.Command) (*postgres.Migrator, error) {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return nil, err
	}
	return postgres.NewMigrator(postgres.BuildDSN(cliCtx.Config.Database), cliCtx.Logger), nil
}

//Personal.AI order the ending
