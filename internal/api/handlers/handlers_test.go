package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/batterycontrol/internal/metrics"
	"github.com/langchou/batterycontrol/internal/models"
	"github.com/langchou/batterycontrol/internal/repository/memory"
	"github.com/langchou/batterycontrol/internal/service"
	"github.com/langchou/batterycontrol/pkg/ws"
)

type testServer struct {
	router *gin.Engine
	store  *memory.BatteryStore
	feed   *memory.Inventory
	sales  *memory.Sales
	hub    *ws.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	store := memory.NewBatteryStore()
	configs := memory.NewConfigStore(nil)
	feed := memory.NewInventory()
	sales := &memory.Sales{}
	hub := ws.NewHub(logger)
	m := metrics.New(prometheus.NewRegistry())

	batterySvc := service.NewBatteryService(logger, store, configs, sales, hub)
	hub.SetInitDataProvider(batterySvc.InitData)
	reconciler := service.NewReconciler(logger, store, feed, m, service.ReconcilerOptions{Concurrency: 2})
	syncSvc := service.NewSyncService(logger, reconciler, nil, hub, m, time.Minute)

	r := gin.New()
	r.Use(m.GinMiddleware())
	NewHandler(logger, batterySvc, syncSvc, m, hub).RegisterRoutes(r)

	return &testServer{router: r, store: store, feed: feed, sales: sales, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(actorHeader, "ana")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) seed(t *testing.T, chassis, plate string, vt models.VehicleType, pct int) *models.BatteryRecord {
	t.Helper()
	rec := &models.BatteryRecord{Chassis: chassis, Plate: plate, VehicleType: vt, Status: models.StatusPending, ChargePercentage: pct}
	_, err := s.store.Insert(context.Background(), rec)
	require.NoError(t, err)
	return rec
}

type viewResponse struct {
	Data       models.BatteryView `json:"data"`
	Transition struct {
		From      string `json:"from"`
		To        string `json:"to"`
		Refreshed bool   `json:"refreshed"`
	} `json:"transition"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestListBatteries(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "WBA1", "1111AAA", models.VehicleTypeBEV, 90)
	s.seed(t, "KIA1", "2222BBB", models.VehicleTypePHEV, 10)
	s.sales.Plates = []string{"1111AAA"}

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantTotal int
	}{
		{"all", "", http.StatusOK, 2},
		{"by type", "?type=phev", http.StatusOK, 1},
		{"sold only", "?sold=true", http.StatusOK, 1},
		{"red alerts", "?alert=red", http.StatusOK, 2},
		{"search", "?q=kia", http.StatusOK, 1},
		{"bad type", "?type=diesel", http.StatusBadRequest, 0},
		{"bad alert", "?alert=green", http.StatusBadRequest, 0},
		{"bad charging", "?charging=maybe", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodGet, "/api/batteries"+tt.query, nil)
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantCode != http.StatusOK {
				return
			}
			resp := decode[struct {
				Total int `json:"total"`
			}](t, w)
			assert.Equal(t, tt.wantTotal, resp.Total)
		})
	}
}

func TestGetBattery(t *testing.T) {
	s := newTestServer(t)
	rec := s.seed(t, "WBA1", "", models.VehicleTypeBEV, 20)

	w := s.do(t, http.MethodGet, "/api/batteries/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[viewResponse](t, w)
	assert.Equal(t, rec.ID, resp.Data.ID)
	assert.Equal(t, models.ChargeInsufficient, resp.Data.ChargeLevel)
	assert.Equal(t, models.AlertRed, resp.Data.Alert)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/batteries/42", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/batteries/abc", nil).Code)
}

func TestSetCharge(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "WBA1", "", models.VehicleTypeBEV, 20)

	tests := []struct {
		name     string
		body     interface{}
		wantCode int
	}{
		{"valid", map[string]int{"charge_percentage": 85}, http.StatusOK},
		{"out of range", map[string]int{"charge_percentage": 101}, http.StatusBadRequest},
		{"negative", map[string]int{"charge_percentage": -5}, http.StatusBadRequest},
		{"missing field", map[string]int{}, http.StatusBadRequest},
		{"malformed", "{", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPatch, "/api/batteries/1/charge", tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
		})
	}

	got, err := s.store.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 85, got.ChargePercentage)
	assert.Equal(t, "ana", got.UpdatedBy)
}

func TestFieldPatches(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "WBA1", "", models.VehicleTypeBEV, 20)

	w := s.do(t, http.MethodPatch, "/api/batteries/1/charging", map[string]bool{"is_charging": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[viewResponse](t, w).Data.IsCharging)

	w = s.do(t, http.MethodPatch, "/api/batteries/1/unavailable", map[string]bool{"is_unavailable": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[viewResponse](t, w).Data.IsUnavailable)

	w = s.do(t, http.MethodPatch, "/api/batteries/1/observations", map[string]string{"observations": "sin llave"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, decode[viewResponse](t, w).Data.Observations)

	w = s.do(t, http.MethodPatch, "/api/batteries/1/type", map[string]string{"vehicle_type": "PHEV"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.VehicleTypePHEV, decode[viewResponse](t, w).Data.VehicleType)

	w = s.do(t, http.MethodPatch, "/api/batteries/1/type", map[string]string{"vehicle_type": "HEV"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPatch, "/api/batteries/9/charging", map[string]bool{"is_charging": true})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReviewAndReset(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "WBA1", "", models.VehicleTypeBEV, 90)

	w := s.do(t, http.MethodPost, "/api/batteries/1/review", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[viewResponse](t, w)
	assert.Equal(t, models.StatusReviewed, resp.Data.Status)
	assert.NotNil(t, resp.Data.StatusDate)
	assert.Equal(t, "pendiente", resp.Transition.From)
	assert.False(t, resp.Transition.Refreshed)
	assert.Equal(t, models.AlertNone, resp.Data.Alert)

	w = s.do(t, http.MethodPost, "/api/batteries/1/review", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[viewResponse](t, w).Transition.Refreshed)

	w = s.do(t, http.MethodPost, "/api/batteries/1/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[viewResponse](t, w)
	assert.Equal(t, models.StatusPending, resp.Data.Status)
	assert.Nil(t, resp.Data.StatusDate)
	assert.Equal(t, 90, resp.Data.ChargePercentage)
}

func TestConfigEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cfg := decode[struct {
		Data models.BatteryConfig `json:"data"`
	}](t, w).Data
	assert.Equal(t, 7, cfg.DaysAlert1)

	cfg.DaysAlert1 = 3
	cfg.PHEV.Ok = 65
	w = s.do(t, http.MethodPut, "/api/config", cfg)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	saved := decode[struct {
		Data models.BatteryConfig `json:"data"`
	}](t, w).Data
	assert.Equal(t, 3, saved.DaysAlert1)
	assert.Equal(t, 65, saved.PHEV.Ok)
	assert.Equal(t, "ana", saved.UpdatedBy)

	cfg.BEV.Sufficient = 140
	w = s.do(t, http.MethodPut, "/api/config", cfg)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "bev.charge_sufficient")
}

func TestReconcileEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.feed.Set(&models.InventoryRow{Chassis: "NEW1", MotorType: "BEV", Fuel: "Eléctrico"})

	w := s.do(t, http.MethodGet, "/api/reconcile/last", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/reconcile", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[struct {
		Data *models.ReconcileResult `json:"data"`
	}](t, w).Data
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, s.store.Len())

	w = s.do(t, http.MethodGet, "/api/reconcile/last", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "last_reconcile")
}

func TestSummaryAndMetrics(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "A", "", models.VehicleTypeBEV, 90)
	s.seed(t, "B", "", models.VehicleTypeICE, 0)

	w := s.do(t, http.MethodGet, "/api/batteries/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	sum := decode[struct {
		Data models.BatterySummary `json:"data"`
	}](t, w).Data
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 2, sum.ByChargeLevel[models.ChargeCorrect])

	w = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `path="/api/batteries/summary"`))
}

func TestWebSocketInit(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "WS1", "", models.VehicleTypeBEV, 50)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.hub.Run(ctx)

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Type string `json:"type"`
		Data struct {
			Batteries []models.BatteryView `json:"batteries"`
		} `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, ws.MsgTypeInit, msg.Type)
	require.Len(t, msg.Data.Batteries, 1)
	assert.Equal(t, "WS1", msg.Data.Batteries[0].Chassis)
}
