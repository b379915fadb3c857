package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/langchou/batterycontrol/internal/models"
	"github.com/langchou/batterycontrol/internal/service"
)

// ListBatteries 获取电池视图列表
// GET /api/batteries?type=BEV&status=pendiente&charging=true&alert=red&sold=false&q=WBA
func (h *Handler) ListBatteries(c *gin.Context) {
	f, ok := parseViewFilter(c)
	if !ok {
		return
	}

	views, err := h.batteryService.ListViews(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, "Failed to list batteries", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": views, "total": len(views)})
}

// GetSummary 看板汇总
func (h *Handler) GetSummary(c *gin.Context) {
	summary, err := h.batteryService.Summary(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to summarize batteries", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

// GetBattery 获取单条视图
func (h *Handler) GetBattery(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	view, err := h.batteryService.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "Failed to get battery", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

type chargeRequest struct {
	ChargePercentage *int `json:"charge_percentage"`
}

// SetCharge 录入电量
func (h *Handler) SetCharge(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req chargeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ChargePercentage == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "charge_percentage is required"})
		return
	}

	view, err := h.batteryService.SetCharge(c.Request.Context(), id, *req.ChargePercentage, actor(c))
	if err != nil {
		h.respondError(c, "Failed to set charge", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": view})
}

type chargingRequest struct {
	IsCharging *bool `json:"is_charging"`
}

// SetCharging 切换充电中
func (h *Handler) SetCharging(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req chargingRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsCharging == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "is_charging is required"})
		return
	}

	view, err := h.batteryService.SetCharging(c.Request.Context(), id, *req.IsCharging, actor(c))
	if err != nil {
		h.respondError(c, "Failed to set charging", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": view})
}

type unavailableRequest struct {
	IsUnavailable *bool `json:"is_unavailable"`
}

// SetUnavailable 切换不可用
func (h *Handler) SetUnavailable(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req unavailableRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsUnavailable == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "is_unavailable is required"})
		return
	}

	view, err := h.batteryService.SetUnavailable(c.Request.Context(), id, *req.IsUnavailable, actor(c))
	if err != nil {
		h.respondError(c, "Failed to set unavailable", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": view})
}

type observationsRequest struct {
	Observations *string `json:"observations"`
}

// SetObservations 修改备注，空字符串清空
func (h *Handler) SetObservations(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req observationsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Observations == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "observations is required"})
		return
	}

	view, err := h.batteryService.SetObservations(c.Request.Context(), id, *req.Observations, actor(c))
	if err != nil {
		h.respondError(c, "Failed to set observations", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": view})
}

type vehicleTypeRequest struct {
	VehicleType string `json:"vehicle_type" binding:"required"`
}

// SetVehicleType 人工修正车型
func (h *Handler) SetVehicleType(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req vehicleTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "vehicle_type is required"})
		return
	}

	view, err := h.batteryService.SetVehicleType(c.Request.Context(), id, req.VehicleType, actor(c))
	if err != nil {
		h.respondError(c, "Failed to set vehicle type", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": view})
}

// Review 检查
// POST /api/batteries/:id/review
// 待检查 -> 已检查；已检查时仅刷新检查日期
func (h *Handler) Review(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	view, t, err := h.batteryService.Review(c.Request.Context(), id, actor(c))
	if err != nil {
		h.respondError(c, "Failed to review battery", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": view, "transition": t})
}

// Reset 重置为待检查
func (h *Handler) Reset(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	view, t, err := h.batteryService.Reset(c.Request.Context(), id, actor(c))
	if err != nil {
		h.respondError(c, "Failed to reset battery", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": view, "transition": t})
}

// parseViewFilter 解析查询参数，非法值返回 400
func parseViewFilter(c *gin.Context) (service.ViewFilter, bool) {
	var f service.ViewFilter
	bad := func(field string) (service.ViewFilter, bool) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + field})
		return f, false
	}

	if v := c.Query("type"); v != "" {
		t, err := models.ParseVehicleType(v)
		if err != nil {
			return bad("type")
		}
		f.VehicleType = t
	}
	if v := c.Query("status"); v != "" {
		s, err := models.ParseBatteryStatus(v)
		if err != nil {
			return bad("status")
		}
		f.Status = s
	}
	if v := c.Query("charging"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return bad("charging")
		}
		f.IsCharging = &b
	}
	if v := c.Query("alert"); v != "" {
		switch a := models.AlertLevel(v); a {
		case models.AlertNone, models.AlertAmber, models.AlertRed:
			f.Alert = a
		default:
			return bad("alert")
		}
	}
	if v := c.Query("sold"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return bad("sold")
		}
		f.Sold = &b
	}
	f.Search = c.Query("q")
	return f, true
}
