package battery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/batterycontrol/internal/models"
)

func TestSoldSet(t *testing.T) {
	set := NewSoldSet([]string{"1234-ABC", " 5678 def ", ""})

	assert.True(t, set.IsSold("1234ABC"))
	assert.True(t, set.IsSold("1234 abc"))
	assert.True(t, set.IsSold("5678-DEF"))
	assert.False(t, set.IsSold("9999ZZZ"))
	assert.False(t, set.IsSold(""))
	assert.Len(t, set, 2)
}

func TestBuildView_SoldOverlayLeavesRecordUntouched(t *testing.T) {
	cfg := testConfig()
	now := time.Now()
	reviewed := now.Add(-time.Hour)
	obs := "parked at lot B"
	rec := &models.BatteryRecord{
		ID:               7,
		Chassis:          "WBA1",
		Plate:            "1234ABC",
		VehicleType:      models.VehicleTypeBEV,
		ChargePercentage: 85,
		Status:           models.StatusReviewed,
		StatusDate:       &reviewed,
		Observations:     &obs,
	}
	before := rec.Clone()

	sold := BuildView(rec, cfg, NewSoldSet([]string{"1234-ABC"}), now)
	unsold := BuildView(rec, cfg, NewSoldSet(nil), now)

	assert.True(t, sold.IsSold)
	assert.False(t, unsold.IsSold)
	assert.Equal(t, before, rec)
	assert.Equal(t, unsold.BatteryRecord, sold.BatteryRecord)
	assert.Equal(t, unsold.ChargeLevel, sold.ChargeLevel)
	assert.Equal(t, unsold.Alert, sold.Alert)
}

func TestBuildViewsAndSummarize(t *testing.T) {
	cfg := testConfig()
	now := time.Now()
	fresh := now.Add(-time.Hour)
	stale := now.Add(-10 * 24 * time.Hour)

	recs := []*models.BatteryRecord{
		{Chassis: "A", Plate: "P1", VehicleType: models.VehicleTypeBEV, ChargePercentage: 90, Status: models.StatusReviewed, StatusDate: &fresh},
		{Chassis: "B", Plate: "P2", VehicleType: models.VehicleTypeBEV, ChargePercentage: 60, Status: models.StatusReviewed, StatusDate: &stale, IsCharging: true},
		{Chassis: "C", Plate: "P3", VehicleType: models.VehicleTypePHEV, ChargePercentage: 10, Status: models.StatusPending},
		{Chassis: "D", VehicleType: models.VehicleTypeICE, Status: models.StatusPending, IsUnavailable: true},
	}
	views := BuildViews(recs, cfg, NewSoldSet([]string{"P3"}), now)
	require.Len(t, views, 4)

	assert.Equal(t, models.AlertNone, views[0].Alert)
	assert.Equal(t, models.AlertAmber, views[1].Alert)
	assert.Equal(t, models.ChargeSufficient, views[1].ChargeLevel)
	assert.Equal(t, models.AlertRed, views[2].Alert)
	assert.True(t, views[2].IsSold)
	assert.Equal(t, models.ChargeCorrect, views[3].ChargeLevel)
	assert.Equal(t, models.AlertRed, views[3].Alert)

	s := Summarize(views)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.ByVehicleType[models.VehicleTypeBEV])
	assert.Equal(t, 2, s.ByAlert[models.AlertRed])
	assert.Equal(t, 1, s.ByAlert[models.AlertAmber])
	assert.Equal(t, 1, s.ByChargeLevel[models.ChargeInsufficient])
	assert.Equal(t, 2, s.ByStatus[models.StatusPending])
	assert.Equal(t, 1, s.Charging)
	assert.Equal(t, 1, s.Sold)
	assert.Equal(t, 1, s.Unavailable)
}
