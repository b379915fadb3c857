package models

import (
	"fmt"
	"strings"
	"time"
)

// VehicleType 动力类型
type VehicleType string

const (
	VehicleTypeBEV  VehicleType = "BEV"  // 纯电
	VehicleTypePHEV VehicleType = "PHEV" // 插电混动
	VehicleTypeICE  VehicleType = "ICE"  // 燃油
)

// ParseVehicleType 解析动力类型（不区分大小写）
func ParseVehicleType(s string) (VehicleType, error) {
	switch VehicleType(strings.ToUpper(strings.TrimSpace(s))) {
	case VehicleTypeBEV:
		return VehicleTypeBEV, nil
	case VehicleTypePHEV:
		return VehicleTypePHEV, nil
	case VehicleTypeICE:
		return VehicleTypeICE, nil
	}
	return "", &ValidationError{Field: "vehicle_type", Reason: fmt.Sprintf("unknown vehicle type %q", s)}
}

// IsElectrified 是否为电动化车型
func (t VehicleType) IsElectrified() bool {
	return t == VehicleTypeBEV || t == VehicleTypePHEV
}

// BatteryStatus 检查状态
type BatteryStatus string

const (
	StatusPending  BatteryStatus = "pendiente" // 待检查
	StatusReviewed BatteryStatus = "revisado"  // 已检查
)

// ParseBatteryStatus 解析检查状态
func ParseBatteryStatus(s string) (BatteryStatus, error) {
	switch BatteryStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, nil
	case StatusReviewed:
		return StatusReviewed, nil
	}
	return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", s)}
}

// BatteryRecord 电池状态记录，每辆车一条，以车架号为键
type BatteryRecord struct {
	ID               int64         `json:"id" db:"id"`
	Chassis          string        `json:"chassis" db:"chassis"`
	ECode            string        `json:"e_code" db:"e_code"`
	Plate            string        `json:"plate" db:"plate"`
	Brand            string        `json:"brand" db:"brand"`
	Model            string        `json:"model" db:"model"`
	Color            string        `json:"color" db:"color"`
	Bodywork         string        `json:"bodywork" db:"bodywork"`
	VehicleType      VehicleType   `json:"vehicle_type" db:"vehicle_type"`
	ChargePercentage int           `json:"charge_percentage" db:"charge_percentage"`
	Status           BatteryStatus `json:"status" db:"status"`
	StatusDate       *time.Time    `json:"status_date,omitempty" db:"status_date"` // 仅 revisado 时非空
	IsCharging       bool          `json:"is_charging" db:"is_charging"`
	IsUnavailable    bool          `json:"is_unavailable" db:"is_unavailable"`
	Observations     *string       `json:"observations,omitempty" db:"observations"`
	UpdatedBy        string        `json:"updated_by,omitempty" db:"updated_by"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// Clone 返回副本
func (r *BatteryRecord) Clone() *BatteryRecord {
	c := *r
	if r.StatusDate != nil {
		d := *r.StatusDate
		c.StatusDate = &d
	}
	if r.Observations != nil {
		o := *r.Observations
		c.Observations = &o
	}
	return &c
}

// BatteryPatch 单条记录的部分更新，nil 字段不修改
type BatteryPatch struct {
	ChargePercentage *int
	// Status 非空时同时写入 StatusDate（nil 表示清空）
	Status        *BatteryStatus
	StatusDate    *time.Time
	IsCharging    *bool
	IsUnavailable *bool
	// Observations 为空字符串时清空
	Observations *string
	VehicleType  *VehicleType
	UpdatedBy    string
}

// IsEmpty 是否没有任何字段需要更新
func (p *BatteryPatch) IsEmpty() bool {
	return p.ChargePercentage == nil &&
		p.Status == nil &&
		p.IsCharging == nil &&
		p.IsUnavailable == nil &&
		p.Observations == nil &&
		p.VehicleType == nil
}

// Apply 将补丁应用到记录上（内存实现与测试使用）
func (p *BatteryPatch) Apply(r *BatteryRecord, now time.Time) {
	if p.ChargePercentage != nil {
		r.ChargePercentage = *p.ChargePercentage
	}
	if p.Status != nil {
		r.Status = *p.Status
		if p.StatusDate != nil {
			d := *p.StatusDate
			r.StatusDate = &d
		} else {
			r.StatusDate = nil
		}
	}
	if p.IsCharging != nil {
		r.IsCharging = *p.IsCharging
	}
	if p.IsUnavailable != nil {
		r.IsUnavailable = *p.IsUnavailable
	}
	if p.Observations != nil {
		if *p.Observations == "" {
			r.Observations = nil
		} else {
			o := *p.Observations
			r.Observations = &o
		}
	}
	if p.VehicleType != nil {
		r.VehicleType = *p.VehicleType
	}
	if p.UpdatedBy != "" {
		r.UpdatedBy = p.UpdatedBy
	}
	r.UpdatedAt = now
}

// BatteryFilter 列表过滤条件，零值表示不过滤
type BatteryFilter struct {
	VehicleType VehicleType
	Status      BatteryStatus
	IsCharging  *bool
	Search      string // 车架号 / 车牌 / 品牌 / 型号 模糊匹配
}
