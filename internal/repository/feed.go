package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/batterycontrol/internal/battery"
	"github.com/langchou/batterycontrol/internal/models"
)

const inventoryColumns = `chassis, COALESCE(plate, ''), COALESCE(brand, ''), COALESCE(model, ''), COALESCE(color, ''),
	COALESCE(bodywork, ''), COALESCE(e_code, ''), COALESCE(motor_type, ''), COALESCE(fuel, '')`

// InventoryRepository 抓取库存数据（只读）
type InventoryRepository struct {
	db *DB
}

// NewInventoryRepository 创建库存仓库
func NewInventoryRepository(db *DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// ListElectrified 获取电动化库存切片
// SQL 端用 ILIKE 粗筛，再在内存中用去重音后的规则复核
func (r *InventoryRepository) ListElectrified(ctx context.Context) ([]*models.InventoryRow, error) {
	query := `
		SELECT ` + inventoryColumns + `
		FROM inventory_feed
		WHERE motor_type ILIKE ANY($1) OR fuel ILIKE ANY($1)
		ORDER BY chassis
	`
	rows, err := r.db.Pool.Query(ctx, query, battery.ElectrifiedPatterns())
	if err != nil {
		return nil, fmt.Errorf("list electrified inventory: %w", err)
	}
	all, err := scanInventoryRows(rows)
	if err != nil {
		return nil, err
	}

	out := all[:0]
	for _, row := range all {
		if battery.IsElectrifiedSignal(row.MotorType, row.Fuel) {
			out = append(out, row)
		}
	}
	return out, nil
}

// ListByChassis 按车架号批量获取库存行，单次查询
func (r *InventoryRepository) ListByChassis(ctx context.Context, chassis []string) ([]*models.InventoryRow, error) {
	if len(chassis) == 0 {
		return nil, nil
	}
	query := `SELECT ` + inventoryColumns + ` FROM inventory_feed WHERE chassis = ANY($1)`
	rows, err := r.db.Pool.Query(ctx, query, chassis)
	if err != nil {
		return nil, fmt.Errorf("list inventory by chassis (%d keys): %w", len(chassis), err)
	}
	return scanInventoryRows(rows)
}

func scanInventoryRows(rows pgx.Rows) ([]*models.InventoryRow, error) {
	defer rows.Close()

	var out []*models.InventoryRow
	for rows.Next() {
		row := &models.InventoryRow{}
		if err := rows.Scan(
			&row.Chassis,
			&row.Plate,
			&row.Brand,
			&row.Model,
			&row.Color,
			&row.Bodywork,
			&row.ECode,
			&row.MotorType,
			&row.Fuel,
		); err != nil {
			return nil, fmt.Errorf("scan inventory row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory rows: %w", err)
	}
	return out, nil
}

// SalesRepository 销售数据（只读）
type SalesRepository struct {
	db *DB
}

// NewSalesRepository 创建销售仓库
func NewSalesRepository(db *DB) *SalesRepository {
	return &SalesRepository{db: db}
}

// ListSoldPlates 获取已售车牌
func (r *SalesRepository) ListSoldPlates(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT DISTINCT plate FROM sales_feed WHERE plate <> ''`)
	if err != nil {
		return nil, fmt.Errorf("list sold plates: %w", err)
	}
	defer rows.Close()

	var plates []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan sold plate: %w", err)
		}
		plates = append(plates, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sold plates: %w", err)
	}
	return plates, nil
}
