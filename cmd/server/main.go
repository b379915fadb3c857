package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langchou/batterycontrol/internal/api/handlers"
	"github.com/langchou/batterycontrol/internal/config"
	"github.com/langchou/batterycontrol/internal/lock"
	"github.com/langchou/batterycontrol/internal/metrics"
	"github.com/langchou/batterycontrol/internal/repository"
	"github.com/langchou/batterycontrol/internal/service"
	"github.com/langchou/batterycontrol/pkg/ws"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("Starting battery control", zap.String("port", cfg.ServerPort))

	// 创建 context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 连接数据库
	db, err := repository.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal("Failed to connect database", zap.Error(err))
	}
	defer db.Close()

	// 执行数据库迁移
	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database migrated successfully")

	// 创建 Repository
	batteryRepo := repository.NewBatteryRepository(db)
	configRepo := repository.NewConfigRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	salesRepo := repository.NewSalesRepository(db)

	// 指标
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// 跨副本对账锁（可选）
	var locker service.Locker
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("Failed to connect redis", zap.Error(err), zap.String("addr", cfg.RedisAddr))
		}
		rl, err := lock.NewRedisLocker(rdb, lock.ReconcileKey, cfg.ReconcileLockTTL)
		if err != nil {
			logger.Fatal("Failed to create reconcile lock", zap.Error(err))
		}
		locker = rl
		logger.Info("Reconcile lock enabled", zap.String("redis", cfg.RedisAddr))
	}

	// 创建 WebSocket Hub
	wsHub := ws.NewHub(logger)
	go wsHub.Run(ctx)

	// 创建服务
	batteryService := service.NewBatteryService(logger, batteryRepo, configRepo, salesRepo, wsHub).
		WithTimeouts(cfg.StoreTimeout, cfg.FeedTimeout)
	wsHub.SetInitDataProvider(batteryService.InitData)

	reconciler := service.NewReconciler(logger, batteryRepo, inventoryRepo, m, service.ReconcilerOptions{
		Concurrency:  cfg.ReconcileConcurrency,
		BatchSize:    cfg.ReconcileBatchSize,
		FeedTimeout:  cfg.FeedTimeout,
		StoreTimeout: cfg.StoreTimeout,
	})
	syncService := service.NewSyncService(logger, reconciler, locker, wsHub, m, cfg.ReconcileInterval)

	// 启动定时对账
	if cfg.ReconcileInterval > 0 {
		if err := syncService.Start(ctx); err != nil {
			logger.Error("Failed to start sync service", zap.Error(err))
		}
	} else {
		logger.Info("Scheduled reconcile disabled")
	}

	// 创建 HTTP 处理器
	handler := handlers.NewHandler(logger, batteryService, syncService, m, wsHub)

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(m.GinMiddleware())

	// 注册路由
	handler.RegisterRoutes(router)

	// 启动 HTTP 服务器
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", server.Addr))

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 停止定时对账
	syncService.Stop()

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// initLogger 初始化日志
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}

// corsMiddleware CORS 中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
