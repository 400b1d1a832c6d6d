package charge

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/ChargeMatch/internal/domain/molecule"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChargeMatch/pkg/errors"
	ctypes "github.com/turtacn/ChargeMatch/pkg/types/charge"
)

// CanonizerProvider hands out canonizers for exclusive use by one charging
// operation at a time.
type CanonizerProvider interface {
	Acquire(ctx context.Context) (Canonizer, error)
	Release(c Canonizer)
}

// Recorder receives per-run metrics.
type Recorder interface {
	RecordCharge(variant string, atoms int, duration time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordCharge(string, int, time.Duration, error) {}

// ServiceConfig carries the defaults applied to requests that leave a
// parameter unset.
type ServiceConfig struct {
	Variant      ctypes.Variant
	Options      Options
	IACMDataOnly bool
	Shells       []int
}

// Service turns ChargeRequests into ChargeResponses.  It is safe for
// concurrent use as long as the CanonizerProvider is.
type Service struct {
	repo     *Repository
	canons   CanonizerProvider
	cfg      atomic.Pointer[ServiceConfig]
	recorder Recorder
	logger   logging.Logger
}

// NewService constructs a charge Service.  recorder may be nil.
func NewService(repo *Repository, canons CanonizerProvider, cfg ServiceConfig, recorder Recorder, logger logging.Logger) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &Service{repo: repo, canons: canons, recorder: recorder, logger: logger}
	s.Reconfigure(cfg)
	return s
}

// Reconfigure replaces the request defaults.  Requests already running keep
// the defaults they started with.
func (s *Service) Reconfigure(cfg ServiceConfig) {
	if cfg.Variant == "" {
		cfg.Variant = ctypes.VariantSimple
	}
	cfg.Shells = append([]int(nil), cfg.Shells...)
	s.cfg.Store(&cfg)
}

// Config returns the request defaults in force.
func (s *Service) Config() ServiceConfig { return *s.cfg.Load() }

// Repository returns the repository the service reads.
func (s *Service) Repository() *Repository { return s.repo }

// Charge validates req, charges the molecule and renders the response.
func (s *Service) Charge(ctx context.Context, req *ctypes.ChargeRequest) (*ctypes.ChargeResponse, error) {
	runID := uuid.NewString()
	ctx = logging.ContextWithRunID(ctx, runID)
	start := time.Now()
	defaults := s.Config()

	variant := req.Variant
	if variant == "" {
		variant = defaults.Variant
	}
	if !variant.IsValid() {
		return nil, errors.New(errors.ErrCodeVariantUnsupported, "unsupported charger variant").
			WithDetail("variant=" + string(variant))
	}

	g, err := molecule.FromDocument(&req.Molecule)
	if err != nil {
		return nil, err
	}

	opts := defaults.Options
	if req.RoundingDigits != nil {
		opts.RoundingDigits = *req.RoundingDigits
	}
	if req.MaxBins != nil {
		opts.MaxBins = *req.MaxBins
	}
	if req.TimeBudgetSeconds != nil {
		opts.TimeBudget = time.Duration(*req.TimeBudgetSeconds * float64(time.Second))
	}
	shells := req.Shells
	if len(shells) == 0 {
		shells = defaults.Shells
	}

	canon, err := s.canons.Acquire(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCanonizationFailed, "no canonizer available")
	}
	defer s.canons.Release(canon)

	charger, err := NewCharger(variant, s.repo, canon, opts, s.logger)
	if err != nil {
		return nil, err
	}
	err = charger.Charge(ctx, g, Params{
		TotalCharge:  req.TotalCharge,
		IACMize:      req.IACMize,
		IACMDataOnly: req.IACMDataOnly || defaults.IACMDataOnly,
		Shells:       ShellList(shells...),
	})
	elapsed := time.Since(start)
	s.recorder.RecordCharge(string(variant), g.Len(), elapsed, err)
	if err != nil {
		s.logger.WithContext(ctx).Warn("charge request failed",
			logging.String(logging.FieldVariant, string(variant)),
			logging.String(logging.FieldCode, string(errors.GetCode(err))),
			logging.Err(err))
		return nil, err
	}

	doc := molecule.ToDocument(g)
	doc.Name = req.Molecule.Name
	return &ctypes.ChargeResponse{
		RunID:             runID,
		Variant:           variant,
		Molecule:          *doc,
		TotalCharge:       g.TotalCharge,
		TotalChargeRedist: g.TotalChargeRedist,
		Score:             g.Score,
		DurationMS:        elapsed.Milliseconds(),
	}, nil
}

// ErrorResponse renders err in the shared error envelope.
func ErrorResponse(err error) *ctypes.ErrorResponse {
	resp := &ctypes.ErrorResponse{
		Code:    string(errors.GetCode(err)),
		Message: err.Error(),
	}
	var ae *errors.AppError
	if errors.As(err, &ae) {
		resp.Message = ae.Message
		resp.Detail = ae.Detail
	}
	for _, id := range UnresolvedAtoms(err) {
		resp.UnresolvedAtoms = append(resp.UnresolvedAtoms, int(id))
	}
	return resp
}

//Personal.AI order the ending
