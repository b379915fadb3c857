package service

import (
	"context"

	"github.com/langchou/batterycontrol/internal/lock"
	"github.com/langchou/batterycontrol/internal/models"
)

// BatteryStore 电池记录存储
type BatteryStore interface {
	List(ctx context.Context, filter models.BatteryFilter) ([]*models.BatteryRecord, error)
	GetByID(ctx context.Context, id int64) (*models.BatteryRecord, error)
	Insert(ctx context.Context, rec *models.BatteryRecord) (bool, error)
	Patch(ctx context.Context, id int64, p *models.BatteryPatch) (*models.BatteryRecord, error)
}

// ConfigStore 配置存储
type ConfigStore interface {
	Get(ctx context.Context) (*models.BatteryConfig, error)
	Upsert(ctx context.Context, cfg *models.BatteryConfig) error
}

// InventoryFeed 抓取库存（只读）
type InventoryFeed interface {
	ListElectrified(ctx context.Context) ([]*models.InventoryRow, error)
	ListByChassis(ctx context.Context, chassis []string) ([]*models.InventoryRow, error)
}

// SalesFeed 销售数据（只读）
type SalesFeed interface {
	ListSoldPlates(ctx context.Context) ([]string, error)
}

// Notifier 推送消息给看板
type Notifier interface {
	BroadcastMessage(msgType string, data interface{})
}

// Locker 跨副本对账锁
type Locker interface {
	TryLock(ctx context.Context) (*lock.Lock, bool, error)
	Unlock(ctx context.Context, l *lock.Lock) error
}

