package repostore

import (
	"github.com/turtacn/ChargeMatch/internal/config"
	"github.com/turtacn/ChargeMatch/internal/domain/charge"
	ctypes "github.com/turtacn/ChargeMatch/pkg/types/charge"
)

// ServiceConfig maps the charge section of the configuration onto the
// defaults charge.Service applies to requests.
func ServiceConfig(cc config.ChargeConfig) charge.ServiceConfig {
	opts := charge.DefaultOptions()
	opts.RoundingDigits = cc.RoundingDigits
	if cc.MaxBins > 0 {
		opts.MaxBins = cc.MaxBins
	}
	if cc.TimeBudget > 0 {
		opts.TimeBudget = cc.TimeBudget
	}
	if cc.TotalChargeDiff > 0 {
		opts.TotalChargeDiff = cc.TotalChargeDiff
	}
	return charge.ServiceConfig{
		Variant:      ctypes.Variant(cc.Variant),
		Options:      opts,
		IACMDataOnly: cc.IACMDataOnly,
		Shells:       append([]int(nil), cc.Shells...),
	}
}

//Personal.AI order the ending
