// Package memory 内存版仓库实现，行为与 PostgreSQL 版本一致，用于测试与本地演示
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/langchou/batterycontrol/internal/battery"
	"github.com/langchou/batterycontrol/internal/models"
)

// BatteryStore 内存电池记录仓库
type BatteryStore struct {
	mu        sync.Mutex
	nextID    int64
	byID      map[int64]*models.BatteryRecord
	byChassis map[string]int64

	// 故障注入
	InsertErr map[string]error
	PatchErr  map[int64]error
	ListErr   error

	Inserts int
	Patches int
}

// NewBatteryStore 创建内存仓库
func NewBatteryStore() *BatteryStore {
	return &BatteryStore{
		byID:      make(map[int64]*models.BatteryRecord),
		byChassis: make(map[string]int64),
		InsertErr: make(map[string]error),
		PatchErr:  make(map[int64]error),
	}
}

// Insert 同 PostgreSQL 版本：车架号已存在时只更新 vehicle_type
func (s *BatteryStore) Insert(ctx context.Context, rec *models.BatteryRecord) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.InsertErr[rec.Chassis]; err != nil {
		return false, fmt.Errorf("insert battery record %s: %w", rec.Chassis, err)
	}

	now := time.Now()
	if id, ok := s.byChassis[rec.Chassis]; ok {
		existing := s.byID[id]
		existing.VehicleType = rec.VehicleType
		existing.UpdatedAt = now
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
		rec.UpdatedAt = now
		return false, nil
	}

	s.nextID++
	rec.ID = s.nextID
	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.byID[rec.ID] = rec.Clone()
	s.byChassis[rec.Chassis] = rec.ID
	s.Inserts++
	return true, nil
}

// GetByID 通过 ID 获取记录
func (s *BatteryStore) GetByID(ctx context.Context, id int64) (*models.BatteryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("get battery record %d: %w", id, models.ErrNotFound)
	}
	return rec.Clone(), nil
}

// List 获取记录列表，按 ID 排序
func (s *BatteryStore) List(ctx context.Context, filter models.BatteryFilter) ([]*models.BatteryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ListErr != nil {
		return nil, fmt.Errorf("list battery records: %w", s.ListErr)
	}

	q := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]*models.BatteryRecord, 0, len(s.byID))
	for _, rec := range s.byID {
		if filter.VehicleType != "" && rec.VehicleType != filter.VehicleType {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if filter.IsCharging != nil && rec.IsCharging != *filter.IsCharging {
			continue
		}
		if q != "" && !matchesSearch(rec, q) {
			continue
		}
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Patch 只更新补丁中给出的字段
func (s *BatteryStore) Patch(ctx context.Context, id int64, p *models.BatteryPatch) (*models.BatteryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.PatchErr[id]; err != nil {
		return nil, fmt.Errorf("patch battery record %d: %w", id, err)
	}
	rec, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("patch battery record %d: %w", id, models.ErrNotFound)
	}
	if !p.IsEmpty() {
		p.Apply(rec, time.Now())
		s.Patches++
	}
	return rec.Clone(), nil
}

// Len 记录数
func (s *BatteryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func matchesSearch(rec *models.BatteryRecord, q string) bool {
	for _, f := range []string{rec.Chassis, rec.Plate, rec.Brand, rec.Model} {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// ConfigStore 内存配置仓库
type ConfigStore struct {
	mu  sync.Mutex
	cfg *models.BatteryConfig
}

// NewConfigStore 创建内存配置仓库，cfg 为 nil 时使用默认值
func NewConfigStore(cfg *models.BatteryConfig) *ConfigStore {
	return &ConfigStore{cfg: cfg}
}

// Get 获取配置副本
func (s *ConfigStore) Get(ctx context.Context) (*models.BatteryConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == nil {
		return models.DefaultBatteryConfig(), nil
	}
	c := *s.cfg
	return &c, nil
}

// Upsert 整条替换配置
func (s *ConfigStore) Upsert(ctx context.Context, cfg *models.BatteryConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg.UpdatedAt = time.Now()
	c := *cfg
	s.cfg = &c
	return nil
}

// Inventory 内存抓取库存
type Inventory struct {
	mu   sync.Mutex
	rows map[string]*models.InventoryRow
	// order 保留写入顺序，Duplicate 追加的行也在其中
	order []*models.InventoryRow

	ListErr      error
	ByChassisErr error

	// ByChassisCalls 每次批量查询的键数量
	ByChassisCalls []int
}

// NewInventory 创建内存库存
func NewInventory(rows ...*models.InventoryRow) *Inventory {
	inv := &Inventory{rows: make(map[string]*models.InventoryRow)}
	inv.Set(rows...)
	return inv
}

// Set 写入或覆盖库存行
func (f *Inventory) Set(rows ...*models.InventoryRow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rows {
		c := *r
		if old, ok := f.rows[r.Chassis]; ok {
			*old = c
			continue
		}
		f.rows[r.Chassis] = &c
		f.order = append(f.order, &c)
	}
}

// Duplicate 追加一条重复车架号的行，模拟抓取源的脏数据
func (f *Inventory) Duplicate(row *models.InventoryRow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *row
	f.order = append(f.order, &c)
	if _, ok := f.rows[row.Chassis]; !ok {
		f.rows[row.Chassis] = &c
	}
}

// ResetCalls 清空批量查询计数
func (f *Inventory) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ByChassisCalls = nil
}

// ListElectrified 返回含电动化信号的行（按写入顺序，可包含重复车架号）
func (f *Inventory) ListElectrified(ctx context.Context) ([]*models.InventoryRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, fmt.Errorf("list electrified inventory: %w", f.ListErr)
	}

	var out []*models.InventoryRow
	for _, r := range f.order {
		if battery.IsElectrifiedSignal(r.MotorType, r.Fuel) {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

// ListByChassis 按车架号批量获取
func (f *Inventory) ListByChassis(ctx context.Context, chassis []string) ([]*models.InventoryRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ByChassisCalls = append(f.ByChassisCalls, len(chassis))
	if f.ByChassisErr != nil {
		return nil, fmt.Errorf("list inventory by chassis (%d keys): %w", len(chassis), f.ByChassisErr)
	}

	var out []*models.InventoryRow
	for _, c := range chassis {
		if r, ok := f.rows[c]; ok {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Sales 内存销售数据
type Sales struct {
	Plates []string
	Err    error
}

// ListSoldPlates 获取已售车牌
func (s *Sales) ListSoldPlates(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, fmt.Errorf("list sold plates: %w", s.Err)
	}
	return append([]string(nil), s.Plates...), nil
}
