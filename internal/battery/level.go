package battery

import "github.com/langchou/batterycontrol/internal/models"

// ChargeLevelFor 按车型阈值计算电量等级
// 边界值归入较高等级（>=）；燃油车不参与评估，固定为 correcto
func ChargeLevelFor(t models.VehicleType, pct int, cfg *models.BatteryConfig) models.ChargeLevel {
	if t == models.VehicleTypeICE {
		return models.ChargeCorrect
	}
	th := cfg.ThresholdsFor(t)
	switch {
	case pct >= th.Ok:
		return models.ChargeCorrect
	case pct >= th.Sufficient:
		return models.ChargeSufficient
	default:
		return models.ChargeInsufficient
	}
}
