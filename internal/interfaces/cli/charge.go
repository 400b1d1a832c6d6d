package cli

import (
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/ChargeMatch/internal/domain/charge"
	"github.com/turtacn/ChargeMatch/internal/domain/molecule"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/canonical"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/repostore"
	"github.com/turtacn/ChargeMatch/pkg/errors"
	ctypes "github.com/turtacn/ChargeMatch/pkg/types/charge"
)

type chargeOptions struct {
	moleculePath   string
	repoPath       string
	source         string
	snapshot       string
	variant        string
	shells         []int
	totalCharge    float64
	iacmize        bool
	iacmOnly       bool
	roundingDigits int
	maxBins        int
	timeBudget     time.Duration
	format         string
}

// NewChargeCmd creates the charge command.
func NewChargeCmd() *cobra.Command {
	opts := &chargeOptions{}

	cmd := &cobra.Command{
		Use:   "charge",
		Short: "Assign partial charges to a molecule",
		Long: "Reads a molecule document, matches every atom against the charge repository\n" +
			"and writes the charged document to stdout.  With --output json the full\n" +
			"response including run ID and timing is printed instead.",
		Example: `  chargeit charge --molecule ethanol.yaml --repo repo.yaml --variant dp --total-charge 0
  cat mol.json | chargeit charge --molecule - --shell 3,2 --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCharge(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.moleculePath, "molecule", "m", "", "molecule document (YAML or JSON, '-' for stdin)")
	f.StringVar(&opts.repoPath, "repo", "", "repository file (overrides repository.path)")
	f.StringVar(&opts.source, "source", "", "repository source: file, postgres, redis, minio")
	f.StringVar(&opts.snapshot, "snapshot", "", "MinIO snapshot key (overrides repository.snapshot_key)")
	f.StringVar(&opts.variant, "variant", "", "charger variant: simple, ilp, dp")
	f.IntSliceVar(&opts.shells, "shell", nil, "shell sizes to try, in order (default: all, largest first)")
	f.Float64Var(&opts.totalCharge, "total-charge", 0, "target total charge of the molecule")
	f.BoolVar(&opts.iacmize, "iacmize", false, "derive IACM atom types before matching")
	f.BoolVar(&opts.iacmOnly, "iacm-only", false, "never fall back to element-coloured matches")
	f.IntVar(&opts.roundingDigits, "rounding-digits", -1, "decimals kept when binning charges")
	f.IntVar(&opts.maxBins, "max-bins", 0, "maximum histogram bins per atom")
	f.DurationVar(&opts.timeBudget, "time-budget", 0, "solver time budget")
	f.StringVar(&opts.format, "format", "yaml", "output document format: yaml, json")
	_ = cmd.MarkFlagRequired("molecule")

	return cmd
}

func runCharge(cmd *cobra.Command, opts *chargeOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	format, err := molecule.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	req, err := opts.request(cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg := cliCtx.Config
	if opts.repoPath != "" {
		cfg.Repository.Path = opts.repoPath
		if opts.source == "" {
			opts.source = repostore.SourceFile
		}
	}
	if opts.snapshot != "" {
		cfg.Repository.SnapshotKey = opts.snapshot
	}
	req.IACMize = req.IACMize || cfg.Charge.IACMize
	source := cfg.Repository.Source
	if opts.source != "" {
		source = opts.source
	}

	ctx, cancel := commandContext(cmd, cliCtx)
	defer cancel()

	h, err := repostore.Open(ctx, cfg, source, repostore.Options{Logger: cliCtx.Logger})
	if err != nil {
		return err
	}
	defer h.Close()

	pool, err := canonical.NewPoolFromConfig(cfg.Charge, 1, cliCtx.Logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc := charge.NewService(h.Repository, pool, repostore.ServiceConfig(cfg.Charge), nil, cliCtx.Logger)
	resp, err := svc.Charge(ctx, req)
	if err != nil {
		if ids := charge.UnresolvedAtoms(err); len(ids) > 0 {
			cliCtx.Logger.Error("atoms without a repository match",
				logging.Any("atoms", ids))
		}
		return err
	}

	if cliCtx.OutputFormat == "json" || cliCtx.OutputFormat == "yaml" {
		return PrintResult(cmd, resp)
	}
	return molecule.WriteDocument(cmd.OutOrStdout(), &resp.Molecule, format)
}

// request reads the molecule document and folds the flags into a request.
// Flags left at their defaults leave the configured value in force.
func (o *chargeOptions) request(stdin io.Reader) (*ctypes.ChargeRequest, error) {
	var r io.Reader
	if o.moleculePath == "-" {
		r = stdin
	} else {
		f, err := os.Open(o.moleculePath)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeMoleculeInvalidFormat, "cannot open molecule document").
				WithDetail("path=" + o.moleculePath)
		}
		defer f.Close()
		r = f
	}
	doc, err := molecule.ReadDocument(r)
	if err != nil {
		return nil, err
	}

	req := &ctypes.ChargeRequest{
		Molecule:     *doc,
		Variant:      ctypes.Variant(o.variant),
		TotalCharge:  o.totalCharge,
		IACMize:      o.iacmize,
		IACMDataOnly: o.iacmOnly,
		Shells:       o.shells,
	}
	if o.roundingDigits >= 0 {
		d := o.roundingDigits
		req.RoundingDigits = &d
	}
	if o.maxBins > 0 {
		b := o.maxBins
		req.MaxBins = &b
	}
	if o.timeBudget > 0 {
		s := o.timeBudget.Seconds()
		req.TimeBudgetSeconds = &s
	}
	if err := req.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidParam, "invalid charge request")
	}
	return req, nil
}

//Personal.AI order the ending
