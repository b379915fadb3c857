package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/batterycontrol/internal/metrics"
	"github.com/langchou/batterycontrol/internal/models"
	"github.com/langchou/batterycontrol/pkg/ws"
)

// ErrReconcileInProgress 已有对账在执行（本进程或其他副本）
var ErrReconcileInProgress = errors.New("reconcile already in progress")

// SyncService 定时对账调度
type SyncService struct {
	logger     *zap.Logger
	reconciler *Reconciler
	locker     Locker
	notifier   Notifier
	metrics    *metrics.Metrics
	interval   time.Duration

	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool

	// runMu 保证进程内同一时刻只有一次对账
	runMu sync.Mutex
	last  *models.ReconcileResult
}

// NewSyncService 创建调度服务，locker 与 notifier 可以为 nil
func NewSyncService(logger *zap.Logger, reconciler *Reconciler, locker Locker, notifier Notifier, m *metrics.Metrics, interval time.Duration) *SyncService {
	return &SyncService{
		logger:     logger,
		reconciler: reconciler,
		locker:     locker,
		notifier:   notifier,
		metrics:    m,
		interval:   interval,
		stopCh:     make(chan struct{}),
	}
}

// Start 启动定时对账，启动时立即执行一次
func (s *SyncService) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("reconcile interval must be > 0, got %s", s.interval)
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Info("Sync service already running, skipping start")
		return nil
	}
	s.stopCh = make(chan struct{})
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("Sync service started", zap.Duration("interval", s.interval))
	return nil
}

// Stop 停止调度，等待进行中的对账结束
func (s *SyncService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping sync service")
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("Sync service stopped")
}

func (s *SyncService) loop(ctx context.Context) {
	defer s.wg.Done()

	// 随 Stop 或外部 ctx 一起取消进行中的对账
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-runCtx.Done():
		}
	}()

	s.tick(runCtx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-runCtx.Done():
			return
		case <-ticker.C:
			s.tick(runCtx)
		}
	}
}

func (s *SyncService) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		if errors.Is(err, ErrReconcileInProgress) {
			s.logger.Info("Reconcile skipped", zap.Error(err))
			return
		}
		s.logger.Error("Scheduled reconcile failed", zap.Error(err))
	}
}

// RunOnce 立即执行一次对账
// 已有对账在执行时返回 ErrReconcileInProgress
func (s *SyncService) RunOnce(ctx context.Context) (*models.ReconcileResult, error) {
	if !s.runMu.TryLock() {
		s.metrics.IncReconcileSkipped()
		return nil, ErrReconcileInProgress
	}
	defer s.runMu.Unlock()

	if s.locker != nil {
		l, ok, err := s.locker.TryLock(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire reconcile lock: %w", err)
		}
		if !ok {
			s.metrics.IncReconcileSkipped()
			return nil, ErrReconcileInProgress
		}
		defer func() {
			// 对账被取消时仍需释放锁
			uctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.locker.Unlock(uctx, l); err != nil {
				s.logger.Warn("Failed to release reconcile lock", zap.Error(err))
			}
		}()
	}

	res, err := s.reconciler.Run(ctx)

	s.mu.Lock()
	s.last = res
	s.mu.Unlock()

	if s.notifier != nil && res != nil {
		s.notifier.BroadcastMessage(ws.MsgTypeReconcileDone, res)
	}
	return res, err
}

// LastResult 最近一次对账结果
func (s *SyncService) LastResult() *models.ReconcileResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
