package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/langchou/batterycontrol/internal/metrics"
	"github.com/langchou/batterycontrol/internal/models"
	"github.com/langchou/batterycontrol/internal/service"
	"github.com/langchou/batterycontrol/pkg/ws"
)

// actorHeader 调用方身份，鉴权由网关负责
const actorHeader = "X-User-ID"

// Handler HTTP 处理器
type Handler struct {
	logger         *zap.Logger
	batteryService *service.BatteryService
	syncService    *service.SyncService
	metrics        *metrics.Metrics
	wsHub          *ws.Hub
	upgrader       websocket.Upgrader
}

// NewHandler 创建处理器
func NewHandler(
	logger *zap.Logger,
	batteryService *service.BatteryService,
	syncService *service.SyncService,
	m *metrics.Metrics,
	wsHub *ws.Hub,
) *Handler {
	return &Handler{
		logger:         logger,
		batteryService: batteryService,
		syncService:    syncService,
		metrics:        m,
		wsHub:          wsHub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 开发环境允许所有来源
			},
		},
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// API 路由
	api := r.Group("/api")
	{
		// 电池记录
		api.GET("/batteries", h.ListBatteries)
		api.GET("/batteries/summary", h.GetSummary)
		api.GET("/batteries/:id", h.GetBattery)
		api.PATCH("/batteries/:id/charge", h.SetCharge)
		api.PATCH("/batteries/:id/charging", h.SetCharging)
		api.PATCH("/batteries/:id/observations", h.SetObservations)
		api.PATCH("/batteries/:id/type", h.SetVehicleType)
		api.PATCH("/batteries/:id/unavailable", h.SetUnavailable)
		api.POST("/batteries/:id/review", h.Review) // 检查 / 重新计时
		api.POST("/batteries/:id/reset", h.Reset)   // 重置为待检查

		// 配置
		api.GET("/config", h.GetConfig)
		api.PUT("/config", h.UpdateConfig)

		// 对账
		api.POST("/reconcile", h.TriggerReconcile)
		api.GET("/reconcile/last", h.LastReconcile)
	}

	// WebSocket
	r.GET("/ws", h.HandleWebSocket)

	// 健康检查
	r.GET("/health", h.HealthCheck)

	// Prometheus
	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
}

// HandleWebSocket WebSocket 处理
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	if !client.Register() {
		h.logger.Warn("WebSocket hub stopped, closing connection")
		conn.Close()
		return
	}

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	resp := gin.H{
		"status":     "ok",
		"ws_clients": h.wsHub.ClientCount(),
	}
	if last := h.syncService.LastResult(); last != nil {
		resp["last_reconcile"] = gin.H{
			"finished_at": last.FinishedAt,
			"failed":      last.Failed,
			"aborted":     last.Aborted,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// parseID 解析路径中的记录 ID
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid battery ID"})
		return 0, false
	}
	return id, true
}

// actor 取调用方身份
func actor(c *gin.Context) string {
	if a := c.GetHeader(actorHeader); a != "" {
		return a
	}
	return "anonymous"
}

// respondError 将服务层错误映射为 HTTP 状态码
func (h *Handler) respondError(c *gin.Context, msg string, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Battery not found"})
	case errors.Is(err, service.ErrReconcileInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
