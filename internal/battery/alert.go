package battery

import (
	"time"

	"github.com/langchou/batterycontrol/internal/models"
)

// Alert 计算告警等级，按以下顺序首条命中生效：
//  1. 电量不足 -> red
//  2. 待检查 -> red
//  3. 已检查且距检查日期的整天数 >= DaysAlert1 -> amber
//  4. 其他 -> none
func Alert(rec *models.BatteryRecord, level models.ChargeLevel, cfg *models.BatteryConfig, now time.Time) models.AlertLevel {
	if level == models.ChargeInsufficient {
		return models.AlertRed
	}
	if rec.Status != models.StatusReviewed {
		return models.AlertRed
	}
	// revisado 但缺少检查日期，视为需要重新确认
	if rec.StatusDate == nil {
		return models.AlertAmber
	}
	if DaysSince(*rec.StatusDate, now) >= cfg.DaysAlert1 {
		return models.AlertAmber
	}
	return models.AlertNone
}

// DaysSince 经过的整天数，未来时间返回 0
func DaysSince(t, now time.Time) int {
	d := now.Sub(t)
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}
