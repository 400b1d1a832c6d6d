package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChargeMatch/pkg/errors"
	ctypes "github.com/turtacn/ChargeMatch/pkg/types/charge"
)

// Charger is the charge service as seen by the HTTP layer.
type Charger interface {
	Charge(ctx context.Context, req *ctypes.ChargeRequest) (*ctypes.ChargeResponse, error)
}

// StatsFunc reports per-shell key counts of the loaded repository.
type StatsFunc func() []ctypes.RepositoryStats

// ChargeHandler serves the charge API.
type ChargeHandler struct {
	svc    Charger
	stats  StatsFunc
	logger logging.Logger
}

// NewChargeHandler creates a ChargeHandler.  stats may be nil when the
// repository source cannot enumerate its keys.
func NewChargeHandler(svc Charger, stats StatsFunc, logger logging.Logger) *ChargeHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ChargeHandler{svc: svc, stats: stats, logger: logger}
}

// RegisterRoutes mounts the charge routes on rg.
func (h *ChargeHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/charge", h.Charge)
	rg.GET("/variants", h.Variants)
	rg.GET("/repository/stats", h.RepositoryStats)
}

// Charge handles POST /api/v1/charge.
func (h *ChargeHandler) Charge(c *gin.Context) {
	var req ctypes.ChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeAppError(c, errors.Wrap(err, errors.CodeInvalidParam, "invalid charge request").WithDetail(err.Error()))
		return
	}

	resp, err := h.svc.Charge(c.Request.Context(), &req)
	if err != nil {
		writeAppError(c, err)
		return
	}
	h.logger.Debug("charged molecule",
		logging.String(logging.FieldRunID, resp.RunID),
		logging.String(logging.FieldVariant, string(resp.Variant)),
		logging.Int("atoms", len(resp.Molecule.Atoms)),
		logging.Int64("duration_ms", resp.DurationMS))
	c.JSON(http.StatusOK, resp)
}

// VariantsResponse lists the charger variants the service accepts.
type VariantsResponse struct {
	Variants []ctypes.Variant `json:"variants"`
}

// Variants handles GET /api/v1/variants.
func (h *ChargeHandler) Variants(c *gin.Context) {
	c.JSON(http.StatusOK, VariantsResponse{Variants: ctypes.Variants()})
}

// RepositoryStats handles GET /api/v1/repository/stats.
func (h *ChargeHandler) RepositoryStats(c *gin.Context) {
	if h.stats == nil {
		c.Status(http.StatusNoContent)
		return
	}
	stats := h.stats()
	if stats == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, stats)
}

//Personal.AI order the ending
