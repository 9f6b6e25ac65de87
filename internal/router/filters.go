package router

import (
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/EmmaExcel/settlement-switch-sub002/internal/model"
)

// passesPreferences applies the caller's hard constraints to one quote:
// fee cap, time cap, and sufficient liquidity for the requested amount.
// A nil or zero cap means the constraint is not set.
func passesPreferences(m *model.RouteMetrics, amount *big.Int, prefs model.RoutePreferences) bool {
	if prefs.MaxFeeWei != nil && prefs.MaxFeeWei.Sign() > 0 &&
		m.TotalCostWei != nil && m.TotalCostWei.Cmp(prefs.MaxFeeWei) > 0 {
		logrus.WithFields(logrus.Fields{
			"cost":    m.TotalCostWei,
			"max_fee": prefs.MaxFeeWei,
		}).Debug("Candidate filtered: cost over cap")
		return false
	}

	if prefs.MaxTimeMinutes > 0 && m.EstimatedTimeMinutes > prefs.MaxTimeMinutes {
		logrus.WithFields(logrus.Fields{
			"estimated_minutes": m.EstimatedTimeMinutes,
			"max_minutes":       prefs.MaxTimeMinutes,
		}).Debug("Candidate filtered: too slow")
		return false
	}

	if m.AvailableLiquidity == nil || m.AvailableLiquidity.Cmp(amount) < 0 {
		logrus.WithFields(logrus.Fields{
			"liquidity": m.AvailableLiquidity,
			"amount":    amount,
		}).Debug("Candidate filtered: insufficient liquidity")
		return false
	}

	return true
}
