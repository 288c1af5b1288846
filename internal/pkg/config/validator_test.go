package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateCronSchedule(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		wantErr  bool
	}{
		{name: "daily at 5:30", schedule: "30 5 * * *"},
		{name: "every six hours", schedule: "0 */6 * * *"},
		{name: "weekdays", schedule: "30 9 * * 1-5"},
		{name: "empty", schedule: "", wantErr: true},
		{name: "too few fields", schedule: "30 5 * *", wantErr: true},
		{name: "garbage", schedule: "not a cron", wantErr: true},
		{name: "minute out of range", schedule: "61 5 * * *", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCronSchedule(tt.schedule)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTimezone(t *testing.T) {
	assert.NoError(t, ValidateTimezone("UTC"))
	assert.NoError(t, ValidateTimezone("Asia/Tokyo"))
	assert.Error(t, ValidateTimezone(""))
	assert.Error(t, ValidateTimezone("Mars/Olympus_Mons"))
	assert.Error(t, ValidateTimezone("+09:00"))
}

func TestValidateDuration(t *testing.T) {
	assert.NoError(t, ValidateDuration(30*time.Minute, time.Minute, time.Hour))
	assert.Error(t, ValidateDuration(time.Second, time.Minute, time.Hour))
	assert.Error(t, ValidateDuration(2*time.Hour, time.Minute, time.Hour))
	assert.Error(t, ValidateDuration(time.Minute, time.Hour, time.Minute))
}

func TestValidateIntRange(t *testing.T) {
	assert.NoError(t, ValidateIntRange(10, 1, 50))
	assert.NoError(t, ValidateIntRange(1, 1, 50))
	assert.NoError(t, ValidateIntRange(50, 1, 50))
	assert.Error(t, ValidateIntRange(0, 1, 50))
	assert.Error(t, ValidateIntRange(51, 1, 50))
	assert.Error(t, ValidateIntRange(5, 10, 1))
}

func TestValidatePositiveDuration(t *testing.T) {
	assert.NoError(t, ValidatePositiveDuration(time.Nanosecond))
	assert.Error(t, ValidatePositiveDuration(0))
	assert.Error(t, ValidatePositiveDuration(-time.Second))
}
