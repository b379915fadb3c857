package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatteryConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *BatteryConfig)
		wantField string
	}{
		{"defaults", func(c *BatteryConfig) {}, ""},
		{"inverted thresholds allowed", func(c *BatteryConfig) { c.BEV.Ok, c.BEV.Insufficient = 10, 90 }, ""},
		{"negative days", func(c *BatteryConfig) { c.DaysAlert1 = -1 }, "days_alert_1"},
		{"phev out of range", func(c *BatteryConfig) { c.PHEV.Insufficient = 101 }, "phev.charge_insufficient"},
		{
			"several invalid reports the first",
			func(c *BatteryConfig) {
				c.BEV.Insufficient = -1
				c.BEV.Sufficient = 200
				c.PHEV.Ok = 300
			},
			"bev.charge_sufficient",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// 重复执行确认报告的字段稳定
			for i := 0; i < 20; i++ {
				c := DefaultBatteryConfig()
				tt.mutate(c)
				err := c.Validate()
				if tt.wantField == "" {
					require.NoError(t, err)
					continue
				}
				var verr *ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, tt.wantField, verr.Field)
				assert.ErrorIs(t, err, ErrValidation)
			}
		})
	}
}
