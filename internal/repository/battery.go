package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/batterycontrol/internal/models"
)

const batteryColumns = `id, chassis, e_code, plate, brand, model, color, bodywork, vehicle_type, charge_percentage,
	status, status_date, is_charging, is_unavailable, observations, updated_by, created_at, updated_at`

// BatteryRepository 电池状态数据仓库
type BatteryRepository struct {
	db *DB
}

// NewBatteryRepository 创建电池状态仓库
func NewBatteryRepository(db *DB) *BatteryRepository {
	return &BatteryRepository{db: db}
}

// Insert 按车架号插入记录
// 车架号已存在时只以后写为准更新 vehicle_type，不会覆盖电量和检查状态；
// 返回值表示是否真正新建了记录
func (r *BatteryRepository) Insert(ctx context.Context, rec *models.BatteryRecord) (bool, error) {
	query := `
		INSERT INTO battery_records (chassis, e_code, plate, brand, model, color, bodywork, vehicle_type,
			charge_percentage, status, status_date, is_charging, is_unavailable, observations, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (chassis) DO UPDATE SET
			vehicle_type = EXCLUDED.vehicle_type,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, (xmax = 0) AS inserted
	`
	now := time.Now()
	var inserted bool
	err := r.db.Pool.QueryRow(ctx, query,
		rec.Chassis,
		rec.ECode,
		rec.Plate,
		rec.Brand,
		rec.Model,
		rec.Color,
		rec.Bodywork,
		rec.VehicleType,
		rec.ChargePercentage,
		rec.Status,
		rec.StatusDate,
		rec.IsCharging,
		rec.IsUnavailable,
		rec.Observations,
		rec.UpdatedBy,
		now,
		now,
	).Scan(&rec.ID, &rec.CreatedAt, &inserted)

	if err != nil {
		return false, fmt.Errorf("insert battery record %s: %w", rec.Chassis, err)
	}

	rec.UpdatedAt = now
	return inserted, nil
}

// GetByID 通过 ID 获取记录
func (r *BatteryRepository) GetByID(ctx context.Context, id int64) (*models.BatteryRecord, error) {
	query := `SELECT ` + batteryColumns + ` FROM battery_records WHERE id = $1`
	rec, err := scanBattery(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get battery record %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("get battery record %d: %w", id, err)
	}
	return rec, nil
}

// List 获取记录列表
func (r *BatteryRepository) List(ctx context.Context, filter models.BatteryFilter) ([]*models.BatteryRecord, error) {
	var (
		conds []string
		args  []any
	)
	if filter.VehicleType != "" {
		args = append(args, filter.VehicleType)
		conds = append(conds, fmt.Sprintf("vehicle_type = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.IsCharging != nil {
		args = append(args, *filter.IsCharging)
		conds = append(conds, fmt.Sprintf("is_charging = $%d", len(args)))
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		args = append(args, "%"+q+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(chassis ILIKE $%d OR plate ILIKE $%d OR brand ILIKE $%d OR model ILIKE $%d)", n, n, n, n))
	}

	query := `SELECT ` + batteryColumns + ` FROM battery_records`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list battery records: %w", err)
	}
	defer rows.Close()

	var recs []*models.BatteryRecord
	for rows.Next() {
		rec, err := scanBattery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan battery record: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate battery records: %w", err)
	}

	return recs, nil
}

// Patch 只更新补丁中给出的字段，以后写为准
func (r *BatteryRepository) Patch(ctx context.Context, id int64, p *models.BatteryPatch) (*models.BatteryRecord, error) {
	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if p.ChargePercentage != nil {
		set("charge_percentage", *p.ChargePercentage)
	}
	if p.Status != nil {
		set("status", *p.Status)
		set("status_date", p.StatusDate)
	}
	if p.IsCharging != nil {
		set("is_charging", *p.IsCharging)
	}
	if p.IsUnavailable != nil {
		set("is_unavailable", *p.IsUnavailable)
	}
	if p.Observations != nil {
		var obs *string
		if *p.Observations != "" {
			obs = p.Observations
		}
		set("observations", obs)
	}
	if p.VehicleType != nil {
		set("vehicle_type", *p.VehicleType)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	if p.UpdatedBy != "" {
		set("updated_by", p.UpdatedBy)
	}
	set("updated_at", time.Now())

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE battery_records SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), batteryColumns)

	rec, err := scanBattery(r.db.Pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("patch battery record %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("patch battery record %d: %w", id, err)
	}
	return rec, nil
}

func scanBattery(row pgx.Row) (*models.BatteryRecord, error) {
	rec := &models.BatteryRecord{}
	err := row.Scan(
		&rec.ID,
		&rec.Chassis,
		&rec.ECode,
		&rec.Plate,
		&rec.Brand,
		&rec.Model,
		&rec.Color,
		&rec.Bodywork,
		&rec.VehicleType,
		&rec.ChargePercentage,
		&rec.Status,
		&rec.StatusDate,
		&rec.IsCharging,
		&rec.IsUnavailable,
		&rec.Observations,
		&rec.UpdatedBy,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
