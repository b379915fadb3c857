package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/batterycontrol/internal/battery"
	"github.com/langchou/batterycontrol/internal/models"
	"github.com/langchou/batterycontrol/internal/state"
	"github.com/langchou/batterycontrol/pkg/ws"
)

// ViewFilter 视图过滤条件，Alert 与 Sold 在计算视图后过滤
type ViewFilter struct {
	models.BatteryFilter
	Alert models.AlertLevel
	Sold  *bool
}

// BatteryService 电池记录读取与人工编辑
type BatteryService struct {
	logger   *zap.Logger
	store    BatteryStore
	configs  ConfigStore
	sales    SalesFeed
	notifier Notifier
	now      func() time.Time

	// 单次存储 / 销售数据调用超时
	storeTimeout time.Duration
	feedTimeout  time.Duration
}

// NewBatteryService 创建服务，notifier 可以为 nil
func NewBatteryService(logger *zap.Logger, store BatteryStore, configs ConfigStore, sales SalesFeed, notifier Notifier) *BatteryService {
	def := DefaultReconcilerOptions()
	return &BatteryService{
		logger:       logger,
		store:        store,
		configs:      configs,
		sales:        sales,
		notifier:     notifier,
		now:          time.Now,
		storeTimeout: def.StoreTimeout,
		feedTimeout:  def.FeedTimeout,
	}
}

// WithTimeouts 设置 I/O 超时，非正值保留默认
func (s *BatteryService) WithTimeouts(storeTimeout, feedTimeout time.Duration) *BatteryService {
	if storeTimeout > 0 {
		s.storeTimeout = storeTimeout
	}
	if feedTimeout > 0 {
		s.feedTimeout = feedTimeout
	}
	return s
}

// ListViews 获取带电量等级、告警与已售标记的视图
func (s *BatteryService) ListViews(ctx context.Context, f ViewFilter) ([]*models.BatteryView, error) {
	cfg, err := s.getConfig(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := s.listRecords(ctx, f.BatteryFilter)
	if err != nil {
		return nil, fmt.Errorf("list batteries: %w", err)
	}

	views := battery.BuildViews(recs, cfg, s.soldSet(ctx), s.now())
	if f.Alert == "" && f.Sold == nil {
		return views, nil
	}

	out := views[:0]
	for _, v := range views {
		if f.Alert != "" && v.Alert != f.Alert {
			continue
		}
		if f.Sold != nil && v.IsSold != *f.Sold {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// Summary 看板汇总
func (s *BatteryService) Summary(ctx context.Context) (*models.BatterySummary, error) {
	views, err := s.ListViews(ctx, ViewFilter{})
	if err != nil {
		return nil, err
	}
	return battery.Summarize(views), nil
}

// Get 获取单条视图
func (s *BatteryService) Get(ctx context.Context, id int64) (*models.BatteryView, error) {
	rec, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, rec)
}

// SetCharge 人工录入电量
func (s *BatteryService) SetCharge(ctx context.Context, id int64, pct int, actor string) (*models.BatteryView, error) {
	if pct < 0 || pct > 100 {
		return nil, &models.ValidationError{Field: "charge_percentage", Reason: fmt.Sprintf("%d out of range [0,100]", pct)}
	}
	return s.patch(ctx, id, &models.BatteryPatch{ChargePercentage: &pct, UpdatedBy: actor})
}

// SetCharging 切换充电中标记
func (s *BatteryService) SetCharging(ctx context.Context, id int64, charging bool, actor string) (*models.BatteryView, error) {
	return s.patch(ctx, id, &models.BatteryPatch{IsCharging: &charging, UpdatedBy: actor})
}

// SetUnavailable 切换不可用标记
func (s *BatteryService) SetUnavailable(ctx context.Context, id int64, unavailable bool, actor string) (*models.BatteryView, error) {
	return s.patch(ctx, id, &models.BatteryPatch{IsUnavailable: &unavailable, UpdatedBy: actor})
}

// SetObservations 修改备注，空字符串清空
func (s *BatteryService) SetObservations(ctx context.Context, id int64, observations string, actor string) (*models.BatteryView, error) {
	return s.patch(ctx, id, &models.BatteryPatch{Observations: &observations, UpdatedBy: actor})
}

// SetVehicleType 人工修正车型
// 库存中仍有该车架号时，下一次对账会按分类结果改回
func (s *BatteryService) SetVehicleType(ctx context.Context, id int64, raw string, actor string) (*models.BatteryView, error) {
	t, err := models.ParseVehicleType(raw)
	if err != nil {
		return nil, err
	}
	return s.patch(ctx, id, &models.BatteryPatch{VehicleType: &t, UpdatedBy: actor})
}

// Review 标记为已检查；已检查时重新计时。不修改电量和充电标记
func (s *BatteryService) Review(ctx context.Context, id int64, actor string) (*models.BatteryView, *state.Transition, error) {
	rec, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	t, err := state.Review(ctx, rec, s.now())
	if err != nil {
		return nil, nil, &models.ValidationError{Field: "status", Reason: err.Error()}
	}
	v, err := s.patch(ctx, id, t.Patch(actor))
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("Battery reviewed",
		zap.Int64("record_id", id),
		zap.String("chassis", rec.Chassis),
		zap.String("from", string(t.From)),
		zap.Bool("refreshed", t.Refreshed),
		zap.String("actor", actor))
	return v, t, nil
}

// Reset 重置为待检查
func (s *BatteryService) Reset(ctx context.Context, id int64, actor string) (*models.BatteryView, *state.Transition, error) {
	rec, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	t, err := state.Reset(ctx, rec)
	if err != nil {
		return nil, nil, &models.ValidationError{Field: "status", Reason: err.Error()}
	}
	v, err := s.patch(ctx, id, t.Patch(actor))
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("Battery reset",
		zap.Int64("record_id", id),
		zap.String("chassis", rec.Chassis),
		zap.String("from", string(t.From)),
		zap.String("actor", actor))
	return v, t, nil
}

// GetConfig 获取当前配置
func (s *BatteryService) GetConfig(ctx context.Context) (*models.BatteryConfig, error) {
	return s.getConfig(ctx)
}

// UpdateConfig 整条替换配置，之后的评估立即使用新值
func (s *BatteryService) UpdateConfig(ctx context.Context, cfg *models.BatteryConfig, actor string) (*models.BatteryConfig, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.UpdatedBy = actor
	uctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	err := s.configs.Upsert(uctx, cfg)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("upsert config: %w", err)
	}
	s.logger.Info("Battery config updated", zap.String("actor", actor))
	s.notify(ws.MsgTypeConfigUpdate, cfg)
	return cfg, nil
}

// InitData WebSocket 初始化数据
func (s *BatteryService) InitData(ctx context.Context) *ws.InitData {
	views, err := s.ListViews(ctx, ViewFilter{})
	if err != nil {
		s.logger.Error("Failed to build init data", zap.Error(err))
		return nil
	}
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		s.logger.Error("Failed to build init data", zap.Error(err))
		return nil
	}
	return &ws.InitData{Batteries: views, Config: cfg}
}

func (s *BatteryService) patch(ctx context.Context, id int64, p *models.BatteryPatch) (*models.BatteryView, error) {
	pctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	rec, err := s.store.Patch(pctx, id, p)
	cancel()
	if err != nil {
		return nil, err
	}
	v, err := s.view(ctx, rec)
	if err != nil {
		return nil, err
	}
	s.notify(ws.MsgTypeBatteryUpdate, v)
	return v, nil
}

func (s *BatteryService) view(ctx context.Context, rec *models.BatteryRecord) (*models.BatteryView, error) {
	cfg, err := s.getConfig(ctx)
	if err != nil {
		return nil, err
	}
	return battery.BuildView(rec, cfg, s.soldSet(ctx), s.now()), nil
}

// soldSet 销售数据不可用时降级为空集合，看板仍可使用
func (s *BatteryService) soldSet(ctx context.Context) battery.SoldSet {
	fctx, cancel := context.WithTimeout(ctx, s.feedTimeout)
	defer cancel()
	plates, err := s.sales.ListSoldPlates(fctx)
	if err != nil {
		s.logger.Warn("Sales feed unavailable, sold overlay disabled", zap.Error(err))
		return battery.NewSoldSet(nil)
	}
	return battery.NewSoldSet(plates)
}

func (s *BatteryService) getConfig(ctx context.Context) (*models.BatteryConfig, error) {
	cctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	cfg, err := s.configs.Get(cctx)
	if err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}
	return cfg, nil
}

func (s *BatteryService) listRecords(ctx context.Context, f models.BatteryFilter) ([]*models.BatteryRecord, error) {
	lctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.List(lctx, f)
}

func (s *BatteryService) getRecord(ctx context.Context, id int64) (*models.BatteryRecord, error) {
	gctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.GetByID(gctx, id)
}

func (s *BatteryService) notify(msgType string, data interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier.BroadcastMessage(msgType, data)
}
