package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForecastTarget_Valid(t *testing.T) {
	assert.True(t, TargetPrice.Valid())
	assert.True(t, TargetDemand.Valid())
	assert.False(t, ForecastTarget("revenue").Valid())
	assert.False(t, ForecastTarget("").Valid())
}

func TestDailyAggregate_Value(t *testing.T) {
	agg := DailyAggregate{AvgPrice: 123.5, OrderCount: 4, TotalVolume: 80}

	assert.Equal(t, 123.5, agg.Value(TargetPrice))
	assert.Equal(t, 80.0, agg.Value(TargetDemand))
	assert.Equal(t, 0.0, agg.Value("unknown"))
}

func TestNewEmptyForecastResponse_JSON(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	resp := NewEmptyForecastResponse(TargetDemand, "", 3, now)

	body, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))

	assert.Equal(t, true, decoded["ok"])
	assert.Equal(t, "demand", decoded["target"])
	assert.Equal(t, []interface{}{}, decoded["historicalData"])
	assert.Equal(t, []interface{}{}, decoded["predictions"])
	assert.Equal(t, float64(0), decoded["confidence"])
	assert.NotContains(t, decoded, "category")
	assert.NotContains(t, decoded, "seasonality")
}
