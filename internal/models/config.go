package models

import (
	"fmt"
	"time"
)

// ChargeThresholds 某一动力族的电量阈值（百分比）
type ChargeThresholds struct {
	Ok           int `json:"charge_ok"`           // >= 为 correcto
	Sufficient   int `json:"charge_sufficient"`   // >= 为 suficiente
	Insufficient int `json:"charge_insufficient"` // < 为 insuficiente
}

// BatteryConfig 运营可调的全局配置（单例）
//
// 阈值顺序 Ok > Sufficient > Insufficient 不做强制校验，
// 顺序错误时评估结果由比较逻辑自然决定。
type BatteryConfig struct {
	// DaysToReset 已存储但未接入状态流转，仅作展示
	DaysToReset int              `json:"days_to_reset"`
	DaysAlert1  int              `json:"days_alert_1"`
	BEV         ChargeThresholds `json:"bev"`
	PHEV        ChargeThresholds `json:"phev"`
	UpdatedBy   string           `json:"updated_by,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// DefaultBatteryConfig 数据库尚无配置时使用的默认值
func DefaultBatteryConfig() *BatteryConfig {
	return &BatteryConfig{
		DaysToReset: 30,
		DaysAlert1:  7,
		BEV:         ChargeThresholds{Ok: 80, Sufficient: 50, Insufficient: 30},
		PHEV:        ChargeThresholds{Ok: 70, Sufficient: 40, Insufficient: 20},
	}
}

// ThresholdsFor 返回车型对应的阈值组，PHEV 使用独立阈值，其余电动化车型使用 BEV 阈值
func (c *BatteryConfig) ThresholdsFor(t VehicleType) ChargeThresholds {
	if t == VehicleTypePHEV {
		return c.PHEV
	}
	return c.BEV
}

// Validate 仅校验取值范围，不校验阈值之间的顺序
func (c *BatteryConfig) Validate() error {
	if c.DaysToReset < 0 {
		return &ValidationError{Field: "days_to_reset", Reason: "must be >= 0"}
	}
	if c.DaysAlert1 < 0 {
		return &ValidationError{Field: "days_alert_1", Reason: "must be >= 0"}
	}
	// 按固定顺序校验，多个字段非法时总是报告第一个
	families := []struct {
		name string
		th   ChargeThresholds
	}{
		{"bev", c.BEV},
		{"phev", c.PHEV},
	}
	for _, f := range families {
		fields := []struct {
			name  string
			value int
		}{
			{"charge_ok", f.th.Ok},
			{"charge_sufficient", f.th.Sufficient},
			{"charge_insufficient", f.th.Insufficient},
		}
		for _, fld := range fields {
			if fld.value < 0 || fld.value > 100 {
				return &ValidationError{Field: f.name + "." + fld.name, Reason: fmt.Sprintf("%d out of range [0,100]", fld.value)}
			}
		}
	}
	return nil
}
