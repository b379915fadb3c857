package models

import (
	"sync"
	"time"
)

// ChargeLevel 电量等级
type ChargeLevel string

const (
	ChargeCorrect      ChargeLevel = "correcto"
	ChargeSufficient   ChargeLevel = "suficiente"
	ChargeInsufficient ChargeLevel = "insuficiente"
)

// AlertLevel 告警等级
type AlertLevel string

const (
	AlertNone  AlertLevel = "none"
	AlertAmber AlertLevel = "amber"
	AlertRed   AlertLevel = "red"
)

// BatteryView 读取时计算的展示视图，不落库
type BatteryView struct {
	*BatteryRecord
	ChargeLevel ChargeLevel `json:"charge_level"`
	Alert       AlertLevel  `json:"alert"`
	IsSold      bool        `json:"is_sold"`
}

// BatterySummary 看板汇总
type BatterySummary struct {
	Total         int                   `json:"total"`
	ByVehicleType map[VehicleType]int   `json:"by_vehicle_type"`
	ByChargeLevel map[ChargeLevel]int   `json:"by_charge_level"`
	ByAlert       map[AlertLevel]int    `json:"by_alert"`
	ByStatus      map[BatteryStatus]int `json:"by_status"`
	Charging      int                   `json:"charging"`
	Sold          int                   `json:"sold"`
	Unavailable   int                   `json:"unavailable"`
}

// 对账阶段
const (
	StageFeed    = "feed"
	StageStore   = "store"
	StageLookup  = "lookup"
	StageCorrect = "correct"
	StageInsert  = "insert"
	StageRefresh = "refresh"
)

// ItemFailure 单条失败明细，携带足够的上下文以便重试
type ItemFailure struct {
	Stage    string `json:"stage"`
	Chassis  string `json:"chassis,omitempty"`
	RecordID int64  `json:"record_id,omitempty"`
	Error    string `json:"error"`
}

// ReconcileResult 一次对账的汇总结果
type ReconcileResult struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	FeedRows   int           `json:"feed_rows"`
	Existing   int           `json:"existing"`
	Inserted   int           `json:"inserted"`
	Updated    int           `json:"updated"`
	Failed     int           `json:"failed"`
	Aborted    bool          `json:"aborted"`
	Failures   []ItemFailure `json:"failures,omitempty"`

	// Records 对账结束后重新读取的记录
	Records []*BatteryRecord `json:"-"`

	mu sync.Mutex
}

// AddFailure 并发安全地记录一条失败
func (r *ReconcileResult) AddFailure(f ItemFailure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failures = append(r.Failures, f)
	r.Failed++
}

// IncInserted 并发安全地累加插入数
func (r *ReconcileResult) IncInserted() {
	r.mu.Lock()
	r.Inserted++
	r.mu.Unlock()
}

// IncUpdated 并发安全地累加更新数
func (r *ReconcileResult) IncUpdated() {
	r.mu.Lock()
	r.Updated++
	r.mu.Unlock()
}
