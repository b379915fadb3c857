package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/batterycontrol/internal/models"
)

func TestMachine_ReviewFromPending(t *testing.T) {
	var changes [][2]string
	m := NewMachine(models.StatusPending, func(from, to string) {
		changes = append(changes, [2]string{from, to})
	})
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	tr, err := m.Trigger(context.Background(), EventReview, at)
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, tr.From)
	assert.Equal(t, models.StatusReviewed, tr.To)
	assert.False(t, tr.Refreshed)
	require.NotNil(t, tr.StatusDate)
	assert.Equal(t, at, *tr.StatusDate)
	assert.Equal(t, models.StatusReviewed, m.Current())
	assert.Equal(t, [][2]string{{"pendiente", "revisado"}}, changes)
}

func TestMachine_ReviewWhenReviewedRefreshes(t *testing.T) {
	calls := 0
	m := NewMachine(models.StatusReviewed, func(from, to string) { calls++ })
	at := time.Now()

	tr, err := m.Trigger(context.Background(), EventReview, at)
	require.NoError(t, err)

	assert.True(t, tr.Refreshed)
	assert.Equal(t, models.StatusReviewed, tr.From)
	assert.Equal(t, models.StatusReviewed, tr.To)
	require.NotNil(t, tr.StatusDate)
	assert.Equal(t, at, *tr.StatusDate)
	assert.Zero(t, calls)
}

func TestMachine_ResetClearsDate(t *testing.T) {
	for _, from := range []models.BatteryStatus{models.StatusReviewed, models.StatusPending} {
		t.Run(string(from), func(t *testing.T) {
			rec := &models.BatteryRecord{Status: from}
			tr, err := Reset(context.Background(), rec)
			require.NoError(t, err)
			assert.Equal(t, models.StatusPending, tr.To)
			assert.Nil(t, tr.StatusDate)
			assert.Equal(t, from == models.StatusPending, tr.Refreshed)
		})
	}
}

func TestMachine_EmptyStatusStartsPending(t *testing.T) {
	m := NewMachine("", nil)
	assert.Equal(t, models.StatusPending, m.Current())
	assert.True(t, m.CanTransition(EventReview))
	assert.True(t, m.CanTransition(EventReset))
	assert.False(t, m.CanTransition("archive"))
}

func TestMachine_UnknownEvent(t *testing.T) {
	m := NewMachine(models.StatusPending, nil)
	_, err := m.Trigger(context.Background(), "archive", time.Now())
	assert.Error(t, err)
	assert.Equal(t, models.StatusPending, m.Current())
}

func TestTransition_Patch(t *testing.T) {
	at := time.Now()
	tr, err := Review(context.Background(), &models.BatteryRecord{Status: models.StatusPending}, at)
	require.NoError(t, err)

	p := tr.Patch("u-42")
	require.NotNil(t, p.Status)
	assert.Equal(t, models.StatusReviewed, *p.Status)
	assert.Equal(t, &at, p.StatusDate)
	assert.Equal(t, "u-42", p.UpdatedBy)
	assert.Nil(t, p.ChargePercentage)
	assert.Nil(t, p.IsCharging)
}
