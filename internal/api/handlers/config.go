package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/langchou/batterycontrol/internal/models"
)

// GetConfig 获取配置
func (h *Handler) GetConfig(c *gin.Context) {
	cfg, err := h.batteryService.GetConfig(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to get config", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cfg})
}

// UpdateConfig 整条替换配置
func (h *Handler) UpdateConfig(c *gin.Context) {
	var cfg models.BatteryConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid config body"})
		return
	}

	saved, err := h.batteryService.UpdateConfig(c.Request.Context(), &cfg, actor(c))
	if err != nil {
		h.respondError(c, "Failed to update config", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": saved})
}

// TriggerReconcile 手动触发一次对账
// POST /api/reconcile
// 同步执行并返回结果；已有对账在执行时返回 409
func (h *Handler) TriggerReconcile(c *gin.Context) {
	res, err := h.syncService.RunOnce(c.Request.Context())
	if err != nil {
		if res != nil {
			// 对账失败但已有部分结果
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "data": res})
			return
		}
		h.respondError(c, "Failed to reconcile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": res})
}

// LastReconcile 最近一次对账结果
func (h *Handler) LastReconcile(c *gin.Context) {
	last := h.syncService.LastResult()
	if last == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No reconcile has run yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": last})
}
