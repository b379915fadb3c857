package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB 数据库连接池封装
type DB struct {
	Pool *pgxpool.Pool
}

// New 创建数据库连接
func New(ctx context.Context, databaseURL string, maxConns, minConns int) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	// 连接池配置
	config.MaxConns = int32(maxConns)
	config.MinConns = int32(minConns)

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// 测试连接
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close 关闭连接池
func (db *DB) Close() {
	db.Pool.Close()
}

// Migrate 执行数据库迁移
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationCreateBatteryRecords,
		migrationCreateBatteryConfig,
		migrationCreateInventoryFeed,
		migrationCreateSalesFeed,
	}

	for _, m := range migrations {
		if _, err := db.Pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// 数据库迁移 SQL
const migrationCreateBatteryRecords = `
CREATE TABLE IF NOT EXISTS battery_records (
    id BIGSERIAL PRIMARY KEY,
    chassis VARCHAR(64) NOT NULL UNIQUE,
    e_code VARCHAR(64) NOT NULL DEFAULT '',
    plate VARCHAR(32) NOT NULL DEFAULT '',
    brand VARCHAR(100) NOT NULL DEFAULT '',
    model VARCHAR(255) NOT NULL DEFAULT '',
    color VARCHAR(100) NOT NULL DEFAULT '',
    bodywork VARCHAR(100) NOT NULL DEFAULT '',
    vehicle_type VARCHAR(8) NOT NULL CHECK (vehicle_type IN ('BEV', 'PHEV', 'ICE')),
    charge_percentage INT NOT NULL DEFAULT 0 CHECK (charge_percentage BETWEEN 0 AND 100),
    status VARCHAR(16) NOT NULL DEFAULT 'pendiente' CHECK (status IN ('pendiente', 'revisado')),
    status_date TIMESTAMP WITH TIME ZONE,
    is_charging BOOLEAN NOT NULL DEFAULT false,
    is_unavailable BOOLEAN NOT NULL DEFAULT false,
    observations TEXT,
    updated_by VARCHAR(255) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    CONSTRAINT battery_records_status_date_chk CHECK ((status = 'revisado') = (status_date IS NOT NULL))
);
CREATE INDEX IF NOT EXISTS idx_battery_records_plate ON battery_records(plate);
CREATE INDEX IF NOT EXISTS idx_battery_records_status ON battery_records(status);
`

// 单例配置，id 固定为 1
const migrationCreateBatteryConfig = `
CREATE TABLE IF NOT EXISTS battery_config (
    id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
    days_to_reset INT NOT NULL,
    days_alert_1 INT NOT NULL,
    bev_charge_ok INT NOT NULL,
    bev_charge_sufficient INT NOT NULL,
    bev_charge_insufficient INT NOT NULL,
    phev_charge_ok INT NOT NULL,
    phev_charge_sufficient INT NOT NULL,
    phev_charge_insufficient INT NOT NULL,
    updated_by VARCHAR(255) NOT NULL DEFAULT '',
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
`

// 抓取库存表由外部抓取任务写入，这里只保证本地环境存在
const migrationCreateInventoryFeed = `
CREATE TABLE IF NOT EXISTS inventory_feed (
    chassis VARCHAR(64) PRIMARY KEY,
    plate VARCHAR(32),
    brand VARCHAR(100),
    model VARCHAR(255),
    color VARCHAR(100),
    bodywork VARCHAR(100),
    e_code VARCHAR(64),
    motor_type VARCHAR(255),
    fuel VARCHAR(100),
    scraped_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
`

const migrationCreateSalesFeed = `
CREATE TABLE IF NOT EXISTS sales_feed (
    id BIGSERIAL PRIMARY KEY,
    plate VARCHAR(32) NOT NULL,
    sold_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_sales_feed_plate ON sales_feed(plate);
`
