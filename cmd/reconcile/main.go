// reconcile 执行一次对账并以 JSON 输出结果
// 整次失败或有任何单条失败时退出码为 1
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langchou/batterycontrol/internal/config"
	"github.com/langchou/batterycontrol/internal/repository"
	"github.com/langchou/batterycontrol/internal/service"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	// Ctrl-C 取消后不再发起新的写入
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Error("Failed to connect database", zap.Error(err))
		return 1
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("Failed to migrate database", zap.Error(err))
		return 1
	}

	reconciler := service.NewReconciler(
		logger,
		repository.NewBatteryRepository(db),
		repository.NewInventoryRepository(db),
		nil,
		service.ReconcilerOptions{
			Concurrency:  cfg.ReconcileConcurrency,
			BatchSize:    cfg.ReconcileBatchSize,
			FeedTimeout:  cfg.FeedTimeout,
			StoreTimeout: cfg.StoreTimeout,
		},
	)

	res, runErr := reconciler.Run(ctx)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		logger.Error("Failed to encode result", zap.Error(err))
		return 1
	}

	if runErr != nil || res.Failed > 0 {
		return 1
	}
	return 0
}

// initLogger 日志输出到 stderr，stdout 只保留 JSON 结果
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}
	config.OutputPaths = []string{"stderr"}

	logger, _ := config.Build()
	return logger
}
