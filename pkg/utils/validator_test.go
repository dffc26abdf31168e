package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sampleRequest struct {
	RepairerID string   `json:"repairer_id" validate:"required"`
	Date       string   `json:"date" validate:"required,datetime=2006-01-02"`
	Value      *float64 `json:"device_value" validate:"required,gt=0"`
	Type       string   `json:"fulfillment_type" validate:"omitempty,oneof=in_home_repair collection_repair voucher"`
}

func TestValidateStruct(t *testing.T) {
	value := 120.0
	valid := sampleRequest{RepairerID: "rep-1", Date: "2026-03-12", Value: &value}
	assert.NoError(t, ValidateStruct(valid))

	err := ValidateStruct(sampleRequest{Date: "12/03/2026", Type: "replacement"})
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "repairer_id is required")
		assert.Contains(t, err.Error(), "date must be a date in 2006-01-02 format")
		assert.Contains(t, err.Error(), "device_value is required")
		assert.Contains(t, err.Error(), "fulfillment_type must be one of")
	}

	zero := 0.0
	err = ValidateStruct(sampleRequest{RepairerID: "rep-1", Date: "2026-03-12", Value: &zero})
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "device_value must be greater than 0")
	}
}

func TestNewLogger(t *testing.T) {
	path := t.TempDir() + "/logs/test.log"

	logger, err := NewLogger(LoggerConfig{Level: "debug", OutputPath: path, Format: "json", Service: "claims-fulfillment"})
	assert.NoError(t, err)
	assert.NotNil(t, logger)
	logger.Info("hello")
	_ = logger.Sync()

	logger, err = NewLogger(LoggerConfig{Level: "not-a-level"})
	assert.NoError(t, err)
	assert.NotNil(t, logger)
}
