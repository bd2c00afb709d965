package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateCronSchedule(t *testing.T) {
	valid := []string{"0 8 * * *", "30 5 * * *", "0 */6 * * *", "30 9 * * 1-5", "@daily"}
	for _, s := range valid {
		assert.NoError(t, ValidateCronSchedule(s), s)
	}

	invalid := []string{"", "0 8 * *", "60 8 * * *", "0 25 * * *", "every morning", "0 0 8 * * *"}
	for _, s := range invalid {
		assert.Error(t, ValidateCronSchedule(s), s)
	}
}

func TestValidateTimezone(t *testing.T) {
	assert.NoError(t, ValidateTimezone("UTC"))
	assert.NoError(t, ValidateTimezone("America/Sao_Paulo"))
	assert.Error(t, ValidateTimezone(""))
	assert.Error(t, ValidateTimezone("Mars/Olympus"))
	assert.Error(t, ValidateTimezone("-03:00"))
}

func TestValidateDuration(t *testing.T) {
	assert.NoError(t, ValidateDuration(time.Minute, time.Second, time.Hour))
	assert.NoError(t, ValidateDuration(time.Second, time.Second, time.Hour))
	assert.NoError(t, ValidateDuration(time.Hour, time.Second, time.Hour))
	assert.ErrorContains(t, ValidateDuration(time.Millisecond, time.Second, time.Hour), "below minimum")
	assert.ErrorContains(t, ValidateDuration(2*time.Hour, time.Second, time.Hour), "exceeds maximum")
	assert.ErrorContains(t, ValidateDuration(time.Minute, time.Hour, time.Second), "invalid range")
}

func TestValidateIntRange(t *testing.T) {
	assert.NoError(t, ValidateIntRange(1, 1, 64))
	assert.NoError(t, ValidateIntRange(64, 1, 64))
	assert.ErrorContains(t, ValidateIntRange(0, 1, 64), "below minimum")
	assert.ErrorContains(t, ValidateIntRange(65, 1, 64), "exceeds maximum")
	assert.ErrorContains(t, ValidateIntRange(5, 10, 1), "invalid range")
}

func TestValidatePositiveDuration(t *testing.T) {
	assert.NoError(t, ValidatePositiveDuration(time.Nanosecond))
	assert.Error(t, ValidatePositiveDuration(0))
	assert.Error(t, ValidatePositiveDuration(-time.Second))
}

func TestOneOf(t *testing.T) {
	v := OneOf("sqlite", "postgres", "badger")
	assert.NoError(t, v("badger"))
	assert.ErrorContains(t, v("mysql"), "not one of [sqlite, postgres, badger]")
}
