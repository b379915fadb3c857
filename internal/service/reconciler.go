package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/langchou/batterycontrol/internal/battery"
	"github.com/langchou/batterycontrol/internal/metrics"
	"github.com/langchou/batterycontrol/internal/models"
)

// ReconcilerActor 对账写入的 updated_by
const ReconcilerActor = "reconciler"

// ReconcilerOptions 对账参数
type ReconcilerOptions struct {
	Concurrency  int           // 查询与写入的最大并发数
	BatchSize    int           // 每次按车架号批量查询的键数量
	FeedTimeout  time.Duration // 单次抓取源调用超时
	StoreTimeout time.Duration // 单次存储调用超时
}

// DefaultReconcilerOptions 默认参数
func DefaultReconcilerOptions() ReconcilerOptions {
	return ReconcilerOptions{
		Concurrency:  8,
		BatchSize:    500,
		FeedTimeout:  30 * time.Second,
		StoreTimeout: 10 * time.Second,
	}
}

// Reconciler 将抓取库存同步到电池记录
//
// 一次对账：读取电动化库存切片，读取全部记录，按车架号批量回查库存并修正车型，
// 为缺失的车架号新建记录，最后重新读取存储。重复执行是幂等的，中途失败后可直接重跑。
type Reconciler struct {
	logger  *zap.Logger
	store   BatteryStore
	feed    InventoryFeed
	metrics *metrics.Metrics
	opts    ReconcilerOptions
}

// NewReconciler 创建对账器，m 可以为 nil
func NewReconciler(logger *zap.Logger, store BatteryStore, feed InventoryFeed, m *metrics.Metrics, opts ReconcilerOptions) *Reconciler {
	def := DefaultReconcilerOptions()
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.FeedTimeout <= 0 {
		opts.FeedTimeout = def.FeedTimeout
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = def.StoreTimeout
	}
	return &Reconciler{
		logger:  logger,
		store:   store,
		feed:    feed,
		metrics: m,
		opts:    opts,
	}
}

// correction 待修正的车型
type correction struct {
	rec  *models.BatteryRecord
	want models.VehicleType
	rule string
}

// Run 执行一次对账
// 读取抓取源或存储失败时整次对账失败；单条记录的失败记入结果，不影响其他记录。
// ctx 取消后不再发起新的写入，已完成的写入保持有效。
func (r *Reconciler) Run(ctx context.Context) (*models.ReconcileResult, error) {
	res := &models.ReconcileResult{StartedAt: time.Now()}

	err := r.run(ctx, res)
	res.FinishedAt = time.Now()
	r.observe(res, err)
	return res, err
}

func (r *Reconciler) run(ctx context.Context, res *models.ReconcileResult) error {
	// 1. 电动化库存切片
	feedRows, err := r.listFeed(ctx)
	if err != nil {
		r.metrics.IncFailure(models.StageFeed)
		return r.stop(ctx, res, fmt.Errorf("fetch inventory feed: %w", err))
	}
	res.FeedRows = len(feedRows)

	// 2. 现有记录
	existing, err := r.listStore(ctx)
	if err != nil {
		r.metrics.IncFailure(models.StageStore)
		return r.stop(ctx, res, fmt.Errorf("fetch battery records: %w", err))
	}
	res.Existing = len(existing)

	// 3. 回查库存并重新分类
	corrections := r.detectDrift(ctx, res, existing)
	if ctx.Err() != nil {
		return r.stop(ctx, res, nil)
	}

	// 4. 修正车型
	r.applyCorrections(ctx, res, corrections)
	if ctx.Err() != nil {
		return r.stop(ctx, res, nil)
	}

	// 5. 新建缺失记录
	r.insertMissing(ctx, res, feedRows, existing)
	if ctx.Err() != nil {
		return r.stop(ctx, res, nil)
	}

	// 6. 重新读取
	refreshed, err := r.listStore(ctx)
	if err != nil {
		r.recordFailure(res, models.ItemFailure{Stage: models.StageRefresh, Error: err.Error()})
		return nil
	}
	res.Records = refreshed
	return nil
}

// stop 结束对账；ctx 已取消时标记为中止
func (r *Reconciler) stop(ctx context.Context, res *models.ReconcileResult, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		res.Aborted = true
		if err == nil {
			return fmt.Errorf("reconcile aborted: %w", ctxErr)
		}
	}
	return err
}

func (r *Reconciler) listFeed(ctx context.Context) ([]*models.InventoryRow, error) {
	fctx, cancel := context.WithTimeout(ctx, r.opts.FeedTimeout)
	defer cancel()
	return r.feed.ListElectrified(fctx)
}

func (r *Reconciler) listStore(ctx context.Context) ([]*models.BatteryRecord, error) {
	sctx, cancel := context.WithTimeout(ctx, r.opts.StoreTimeout)
	defer cancel()
	return r.store.List(sctx, models.BatteryFilter{})
}

// detectDrift 按批回查所有已存车架号，返回分类结果与记录不一致的修正列表
// 库存中已不存在的车架号保持不动
func (r *Reconciler) detectDrift(ctx context.Context, res *models.ReconcileResult, existing []*models.BatteryRecord) []correction {
	chunks := chunkRecords(existing, r.opts.BatchSize)

	var (
		mu     sync.Mutex
		byChas = make(map[string]*models.InventoryRow, len(existing))
	)

	g := new(errgroup.Group)
	g.SetLimit(r.opts.Concurrency)
	for _, chunk := range chunks {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			keys := make([]string, len(chunk))
			for i, rec := range chunk {
				keys[i] = rec.Chassis
			}

			fctx, cancel := context.WithTimeout(ctx, r.opts.FeedTimeout)
			rows, err := r.feed.ListByChassis(fctx, keys)
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.logger.Warn("Inventory lookup failed",
					zap.Int("batch_size", len(keys)),
					zap.String("first_chassis", keys[0]),
					zap.Error(err))
				for _, rec := range chunk {
					r.recordFailure(res, models.ItemFailure{
						Stage:    models.StageLookup,
						Chassis:  rec.Chassis,
						RecordID: rec.ID,
						Error:    err.Error(),
					})
				}
				return nil
			}

			mu.Lock()
			for _, row := range rows {
				byChas[row.Chassis] = row
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	var out []correction
	for _, rec := range existing {
		row, ok := byChas[rec.Chassis]
		if !ok {
			continue
		}
		want, rule := battery.ClassifyRule(row.MotorType, row.Fuel)
		if want != rec.VehicleType {
			out = append(out, correction{rec: rec, want: want, rule: rule})
		}
	}
	return out
}

// applyCorrections 并发修正车型，全部完成后才返回
func (r *Reconciler) applyCorrections(ctx context.Context, res *models.ReconcileResult, corrections []correction) {
	g := new(errgroup.Group)
	g.SetLimit(r.opts.Concurrency)
	for _, c := range corrections {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			want := c.want
			sctx, cancel := context.WithTimeout(ctx, r.opts.StoreTimeout)
			_, err := r.store.Patch(sctx, c.rec.ID, &models.BatteryPatch{
				VehicleType: &want,
				UpdatedBy:   ReconcilerActor,
			})
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.recordFailure(res, models.ItemFailure{
					Stage:    models.StageCorrect,
					Chassis:  c.rec.Chassis,
					RecordID: c.rec.ID,
					Error:    err.Error(),
				})
				return nil
			}
			res.IncUpdated()
			r.logger.Debug("Corrected vehicle type",
				zap.String("chassis", c.rec.Chassis),
				zap.String("from", string(c.rec.VehicleType)),
				zap.String("to", string(want)),
				zap.String("rule", c.rule))
			return nil
		})
	}
	_ = g.Wait()
}

// insertMissing 为库存切片中没有记录的车架号新建记录，切片内重复的车架号只处理第一次
func (r *Reconciler) insertMissing(ctx context.Context, res *models.ReconcileResult, feedRows []*models.InventoryRow, existing []*models.BatteryRecord) {
	seen := make(map[string]struct{}, len(existing)+len(feedRows))
	for _, rec := range existing {
		seen[rec.Chassis] = struct{}{}
	}

	g := new(errgroup.Group)
	g.SetLimit(r.opts.Concurrency)
	for _, row := range feedRows {
		if row.Chassis == "" {
			r.logger.Warn("Skipping inventory row without chassis", zap.String("plate", row.Plate))
			continue
		}
		if _, ok := seen[row.Chassis]; ok {
			continue
		}
		seen[row.Chassis] = struct{}{}

		rec := newRecordFromFeed(row)
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			sctx, cancel := context.WithTimeout(ctx, r.opts.StoreTimeout)
			inserted, err := r.store.Insert(sctx, rec)
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.recordFailure(res, models.ItemFailure{
					Stage:   models.StageInsert,
					Chassis: rec.Chassis,
					Error:   err.Error(),
				})
				return nil
			}
			// 并发的另一次对账已插入时只会更新车型，不计数
			if inserted {
				res.IncInserted()
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Reconciler) recordFailure(res *models.ReconcileResult, f models.ItemFailure) {
	res.AddFailure(f)
	r.metrics.IncFailure(f.Stage)
	r.logger.Warn("Reconcile item failed",
		zap.String("stage", f.Stage),
		zap.String("chassis", f.Chassis),
		zap.Int64("record_id", f.RecordID),
		zap.String("error", f.Error))
}

func (r *Reconciler) observe(res *models.ReconcileResult, err error) {
	result := resultLabel(res, err)
	d := res.FinishedAt.Sub(res.StartedAt)
	r.metrics.ObserveReconcile(result, d, res.Inserted, res.Updated, res.Failed)

	fields := []zap.Field{
		zap.String("result", result),
		zap.Int("feed_rows", res.FeedRows),
		zap.Int("existing", res.Existing),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("failed", res.Failed),
		zap.Duration("duration", d),
	}
	if err != nil {
		r.logger.Error("Reconcile pass failed", append(fields, zap.Error(err))...)
		return
	}
	r.logger.Info("Reconcile pass finished", fields...)
}

func resultLabel(res *models.ReconcileResult, err error) string {
	switch {
	case res.Aborted:
		return metrics.ResultAborted
	case err != nil:
		return metrics.ResultError
	case res.Failed > 0:
		return metrics.ResultPartial
	default:
		return metrics.ResultOK
	}
}

// newRecordFromFeed 新记录：电量 0、待检查、未充电
func newRecordFromFeed(row *models.InventoryRow) *models.BatteryRecord {
	return &models.BatteryRecord{
		Chassis:          row.Chassis,
		ECode:            row.ECode,
		Plate:            row.Plate,
		Brand:            row.Brand,
		Model:            row.Model,
		Color:            row.Color,
		Bodywork:         row.Bodywork,
		VehicleType:      battery.Classify(row.MotorType, row.Fuel),
		ChargePercentage: 0,
		Status:           models.StatusPending,
		IsCharging:       false,
		UpdatedBy:        ReconcilerActor,
	}
}

// chunkRecords 按车架号排序后切块，保证批次划分稳定
func chunkRecords(recs []*models.BatteryRecord, size int) [][]*models.BatteryRecord {
	sorted := make([]*models.BatteryRecord, len(recs))
	copy(sorted, recs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Chassis < sorted[j].Chassis })

	var chunks [][]*models.BatteryRecord
	for start := 0; start < len(sorted); start += size {
		end := start + size
		if end > len(sorted) {
			end = len(sorted)
		}
		chunks = append(chunks, sorted[start:end])
	}
	return chunks
}
