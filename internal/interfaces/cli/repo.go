package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/ChargeMatch/internal/domain/charge"
	"github.com/turtacn/ChargeMatch/internal/domain/molecule"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/canonical"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/repostore"
	"github.com/turtacn/ChargeMatch/pkg/errors"
	ctypes "github.com/turtacn/ChargeMatch/pkg/types/charge"
)

// NewRepoCmd creates the repo command group.
func NewRepoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repo",
		Short: "Build, inspect and move charge repositories",
	}
	cmd.AddCommand(
		newRepoBuildCmd(),
		newRepoStatsCmd(),
		newRepoExportCmd(),
		newRepoImportCmd(),
	)
	return cmd
}

// ─────────────────────────────────────────────────────────────────────────────
// repo build
// ─────────────────────────────────────────────────────────────────────────────

type repoBuildOptions struct {
	maxShell int
	iacmize  bool
	to       string
	out      string
}

// BuildSummary reports what repo build consumed and produced.
type BuildSummary struct {
	Molecules int                      `json:"molecules" yaml:"molecules"`
	Atoms     int                      `json:"atoms" yaml:"atoms"`
	Skipped   int                      `json:"skipped_atoms" yaml:"skipped_atoms"`
	Target    string                   `json:"target" yaml:"target"`
	Stats     []ctypes.RepositoryStats `json:"stats" yaml:"stats"`
}

func (s *BuildSummary) String() string {
	return fmt.Sprintf("built repository from %d molecules (%d atoms, %d skipped) into %s",
		s.Molecules, s.Atoms, s.Skipped, s.Target)
}

func newRepoBuildCmd() *cobra.Command {
	opts := &repoBuildOptions{}
	cmd := &cobra.Command{
		Use:   "build <dir>",
		Short: "Build a repository from a directory of charged molecule documents",
		Long: "Walks dir for *.yaml, *.yml and *.json molecule documents whose atoms carry\n" +
			"reference charges and records every charge under its neighbourhood key at\n" +
			"each shell up to --max-shell.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepoBuild(cmd, args[0], opts)
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.maxShell, "max-shell", 0, "largest shell recorded (default: repository.max_shell)")
	f.BoolVar(&opts.iacmize, "iacmize", false, "derive IACM atom types before recording")
	f.StringVar(&opts.to, "to", repostore.SourceFile, "target backend: "+strings.Join(repostore.Sources(), ", "))
	f.StringVar(&opts.out, "out", "", "repository file written with --to file (default: repository.path)")
	return cmd
}

func runRepoBuild(cmd *cobra.Command, dir string, opts *repoBuildOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	cfg := cliCtx.Config
	if opts.out != "" {
		cfg.Repository.Path = opts.out
	}
	maxShell := cfg.Repository.MaxShell
	if opts.maxShell > 0 {
		maxShell = opts.maxShell
	}

	paths, err := moleculeFiles(dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.InvalidParam("no molecule documents found").WithDetail("dir=" + dir)
	}

	ctx, cancel := commandContext(cmd, cliCtx)
	defer cancel()

	pool, err := canonical.NewPoolFromConfig(cfg.Charge, 1, cliCtx.Logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	canon, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer pool.Release(canon)

	b := charge.NewBuilder(canon, maxShell)
	for _, p := range paths {
		g, err := readGraph(p)
		if err != nil {
			return err
		}
		if opts.iacmize || cfg.Charge.IACMize {
			molecule.AssignIACMTypes(g)
		}
		if err := b.Add(ctx, g); err != nil {
			return errors.Wrap(err, errors.GetCode(err), "failed to add reference molecule").WithDetail("path=" + p)
		}
		cliCtx.Logger.Debug("reference molecule added", logging.String("path", p), logging.Int("atoms", g.Len()))
	}

	data := b.Data()
	if err := repostore.Export(ctx, cfg, opts.to, data, repostore.Options{Logger: cliCtx.Logger}); err != nil {
		return err
	}

	mols, atoms, skipped := b.Counts()
	return PrintResult(cmd, &BuildSummary{
		Molecules: mols,
		Atoms:     atoms,
		Skipped:   skipped,
		Target:    exportTarget(opts.to, cfg.Repository.Path),
		Stats:     data.Stats(),
	})
}

func moleculeFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".yaml", ".yml", ".json":
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidParam, "cannot read molecule directory").WithDetail("dir=" + dir)
	}
	sort.Strings(paths)
	return paths, nil
}

func readGraph(path string) (*molecule.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMoleculeInvalidFormat, "cannot open molecule document").WithDetail("path=" + path)
	}
	defer f.Close()
	doc, err := molecule.ReadDocument(f)
	if err != nil {
		return nil, errors.Wrap(err, errors.GetCode(err), "invalid molecule document").WithDetail("path=" + path)
	}
	return molecule.FromDocument(doc)
}

func exportTarget(target, path string) string {
	if target == repostore.SourceFile {
		return path
	}
	return target
}

// ─────────────────────────────────────────────────────────────────────────────
// repo stats
// ─────────────────────────────────────────────────────────────────────────────

// StatsTable renders repository statistics one row per kind and shell.
type StatsTable []ctypes.RepositoryStats

func (StatsTable) TableHeaders() []string {
	return []string{"KIND", "SHELL", "KEYS", "VALUES"}
}

func (t StatsTable) TableRows() [][]string {
	var rows [][]string
	for _, s := range t {
		for _, sh := range s.Shells {
			rows = append(rows, []string{s.Kind, strconv.Itoa(sh.Shell), strconv.Itoa(sh.Keys), strconv.Itoa(sh.Values)})
		}
	}
	return rows
}

func newRepoStatsCmd() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show key and value counts per shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			data, err := loadRepositoryData(cmd, cliCtx, source)
			if err != nil {
				return err
			}
			return PrintResult(cmd, StatsTable(data.Stats()))
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "repository source (default: repository.source)")
	return cmd
}

func loadRepositoryData(cmd *cobra.Command, cliCtx *CLIContext, source string) (*charge.RepositoryData, error) {
	if source == "" {
		source = cliCtx.Config.Repository.Source
	}
	ctx, cancel := commandContext(cmd, cliCtx)
	defer cancel()

	h, err := repostore.Open(ctx, cliCtx.Config, source, repostore.Options{Logger: cliCtx.Logger})
	if err != nil {
		return nil, err
	}
	defer h.Close()
	return h.Materialize(ctx)
}

// ─────────────────────────────────────────────────────────────────────────────
// repo export / import
// ─────────────────────────────────────────────────────────────────────────────

func newRepoExportCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy the configured repository to another backend",
		Example: `  chargeit repo export --to redis
  chargeit repo export --from postgres --to minio`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepoCopy(cmd, from, to)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "source backend (default: repository.source)")
	cmd.Flags().StringVar(&to, "to", "", "target backend: "+strings.Join(repostore.Sources(), ", "))
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newRepoImportCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a repository from another backend into the configured one",
		Example: `  chargeit repo import --from minio --to postgres`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepoCopy(cmd, from, to)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "source backend: "+strings.Join(repostore.Sources(), ", "))
	cmd.Flags().StringVar(&to, "to", "", "target backend (default: repository.source)")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func runRepoCopy(cmd *cobra.Command, from, to string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	if from == "" {
		from = cliCtx.Config.Repository.Source
	}
	if to == "" {
		to = cliCtx.Config.Repository.Source
	}
	if from == to {
		return errors.InvalidParam("source and target backends are the same").WithDetail("backend=" + from)
	}

	data, err := loadRepositoryData(cmd, cliCtx, from)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd, cliCtx)
	defer cancel()
	if err := repostore.Export(ctx, cliCtx.Config, to, data, repostore.Options{Logger: cliCtx.Logger}); err != nil {
		return err
	}
	PrintSuccess(cmd, fmt.Sprintf("copied repository from %s to %s", from, to))
	return nil
}

//Personal.AI order the ending
