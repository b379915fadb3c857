package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/batterycontrol/internal/models"
)

func TestInsertConflictOnlyUpdatesVehicleType(t *testing.T) {
	ctx := context.Background()
	s := NewBatteryStore()

	first := &models.BatteryRecord{Chassis: "WBA1", VehicleType: models.VehicleTypeBEV, Status: models.StatusPending}
	inserted, err := s.Insert(ctx, first)
	require.NoError(t, err)
	require.True(t, inserted)

	pct := 77
	_, err = s.Patch(ctx, first.ID, &models.BatteryPatch{ChargePercentage: &pct})
	require.NoError(t, err)

	again := &models.BatteryRecord{Chassis: "WBA1", VehicleType: models.VehicleTypePHEV, Status: models.StatusPending}
	inserted, err = s.Insert(ctx, again)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first.ID, again.ID)

	got, err := s.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VehicleTypePHEV, got.VehicleType)
	assert.Equal(t, 77, got.ChargePercentage)
	assert.Equal(t, 1, s.Len())
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	s := NewBatteryStore()
	for _, r := range []*models.BatteryRecord{
		{Chassis: "A1", Plate: "1111AAA", Brand: "BMW", VehicleType: models.VehicleTypeBEV, Status: models.StatusPending},
		{Chassis: "B1", Plate: "2222BBB", Brand: "Kia", VehicleType: models.VehicleTypePHEV, Status: models.StatusPending, IsCharging: true},
	} {
		_, err := s.Insert(ctx, r)
		require.NoError(t, err)
	}

	charging := true
	tests := []struct {
		name   string
		filter models.BatteryFilter
		want   []string
	}{
		{"all", models.BatteryFilter{}, []string{"A1", "B1"}},
		{"type", models.BatteryFilter{VehicleType: models.VehicleTypePHEV}, []string{"B1"}},
		{"charging", models.BatteryFilter{IsCharging: &charging}, []string{"B1"}},
		{"search brand", models.BatteryFilter{Search: "bmw"}, []string{"A1"}},
		{"status none", models.BatteryFilter{Status: models.StatusReviewed}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := s.List(ctx, tt.filter)
			require.NoError(t, err)
			var got []string
			for _, r := range recs {
				got = append(got, r.Chassis)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPatchReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewBatteryStore()
	rec := &models.BatteryRecord{Chassis: "C1", VehicleType: models.VehicleTypeBEV, Status: models.StatusPending}
	_, err := s.Insert(ctx, rec)
	require.NoError(t, err)

	obs := "nota"
	got, err := s.Patch(ctx, rec.ID, &models.BatteryPatch{Observations: &obs})
	require.NoError(t, err)
	*got.Observations = "changed"

	again, err := s.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "nota", *again.Observations)

	_, err = s.Patch(ctx, 99, &models.BatteryPatch{Observations: &obs})
	assert.ErrorIs(t, err, models.ErrNotFound)
}
