package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/batterycontrol/internal/models"
)

// ConfigRepository 电池配置仓库（单例记录）
type ConfigRepository struct {
	db *DB
}

// NewConfigRepository 创建配置仓库
func NewConfigRepository(db *DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// Get 获取配置，尚未保存过时返回默认值
func (r *ConfigRepository) Get(ctx context.Context) (*models.BatteryConfig, error) {
	query := `
		SELECT days_to_reset, days_alert_1,
			bev_charge_ok, bev_charge_sufficient, bev_charge_insufficient,
			phev_charge_ok, phev_charge_sufficient, phev_charge_insufficient,
			updated_by, updated_at
		FROM battery_config WHERE id = 1
	`
	cfg := &models.BatteryConfig{}
	err := r.db.Pool.QueryRow(ctx, query).Scan(
		&cfg.DaysToReset,
		&cfg.DaysAlert1,
		&cfg.BEV.Ok,
		&cfg.BEV.Sufficient,
		&cfg.BEV.Insufficient,
		&cfg.PHEV.Ok,
		&cfg.PHEV.Sufficient,
		&cfg.PHEV.Insufficient,
		&cfg.UpdatedBy,
		&cfg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.DefaultBatteryConfig(), nil
		}
		return nil, fmt.Errorf("get battery config: %w", err)
	}
	return cfg, nil
}

// Upsert 整条替换配置
func (r *ConfigRepository) Upsert(ctx context.Context, cfg *models.BatteryConfig) error {
	query := `
		INSERT INTO battery_config (id, days_to_reset, days_alert_1,
			bev_charge_ok, bev_charge_sufficient, bev_charge_insufficient,
			phev_charge_ok, phev_charge_sufficient, phev_charge_insufficient,
			updated_by, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			days_to_reset = EXCLUDED.days_to_reset,
			days_alert_1 = EXCLUDED.days_alert_1,
			bev_charge_ok = EXCLUDED.bev_charge_ok,
			bev_charge_sufficient = EXCLUDED.bev_charge_sufficient,
			bev_charge_insufficient = EXCLUDED.bev_charge_insufficient,
			phev_charge_ok = EXCLUDED.phev_charge_ok,
			phev_charge_sufficient = EXCLUDED.phev_charge_sufficient,
			phev_charge_insufficient = EXCLUDED.phev_charge_insufficient,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at
	`
	cfg.UpdatedAt = time.Now()
	_, err := r.db.Pool.Exec(ctx, query,
		cfg.DaysToReset,
		cfg.DaysAlert1,
		cfg.BEV.Ok,
		cfg.BEV.Sufficient,
		cfg.BEV.Insufficient,
		cfg.PHEV.Ok,
		cfg.PHEV.Sufficient,
		cfg.PHEV.Insufficient,
		cfg.UpdatedBy,
		cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert battery config: %w", err)
	}
	return nil
}
