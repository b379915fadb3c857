package battery

import (
	"strings"
	"time"

	"github.com/langchou/batterycontrol/internal/models"
)

// SoldSet 销售数据中的车牌集合
type SoldSet map[string]struct{}

// NewSoldSet 由车牌列表构建集合，车牌统一规范化
func NewSoldSet(plates []string) SoldSet {
	set := make(SoldSet, len(plates))
	for _, p := range plates {
		if n := NormalizePlate(p); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// IsSold 车牌是否出现在销售数据中
func (s SoldSet) IsSold(plate string) bool {
	n := NormalizePlate(plate)
	if n == "" {
		return false
	}
	_, ok := s[n]
	return ok
}

// NormalizePlate 去掉空格和连字符并转大写
func NormalizePlate(p string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '\t' {
			return -1
		}
		return r
	}, strings.ToUpper(strings.TrimSpace(p)))
}

// BuildView 计算单条记录的展示视图，记录本身不被修改
func BuildView(rec *models.BatteryRecord, cfg *models.BatteryConfig, sold SoldSet, now time.Time) *models.BatteryView {
	level := ChargeLevelFor(rec.VehicleType, rec.ChargePercentage, cfg)
	return &models.BatteryView{
		BatteryRecord: rec,
		ChargeLevel:   level,
		Alert:         Alert(rec, level, cfg, now),
		IsSold:        sold.IsSold(rec.Plate),
	}
}

// BuildViews 批量计算视图
func BuildViews(recs []*models.BatteryRecord, cfg *models.BatteryConfig, sold SoldSet, now time.Time) []*models.BatteryView {
	views := make([]*models.BatteryView, 0, len(recs))
	for _, r := range recs {
		views = append(views, BuildView(r, cfg, sold, now))
	}
	return views
}

// Summarize 汇总视图
func Summarize(views []*models.BatteryView) *models.BatterySummary {
	s := &models.BatterySummary{
		ByVehicleType: make(map[models.VehicleType]int),
		ByChargeLevel: make(map[models.ChargeLevel]int),
		ByAlert:       make(map[models.AlertLevel]int),
		ByStatus:      make(map[models.BatteryStatus]int),
	}
	for _, v := range views {
		s.Total++
		s.ByVehicleType[v.VehicleType]++
		s.ByChargeLevel[v.ChargeLevel]++
		s.ByAlert[v.Alert]++
		s.ByStatus[v.Status]++
		if v.IsCharging {
			s.Charging++
		}
		if v.IsSold {
			s.Sold++
		}
		if v.IsUnavailable {
			s.Unavailable++
		}
	}
	return s
}
