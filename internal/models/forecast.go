package models

import (
	"time"

	"github.com/tradeway/forecast-service/internal/forecast"
)

// ForecastTarget selects which daily aggregate is forecast.
type ForecastTarget string

const (
	// TargetPrice forecasts the average unit price per day.
	TargetPrice ForecastTarget = "price"
	// TargetDemand forecasts the total quantity ordered per day.
	TargetDemand ForecastTarget = "demand"
)

// Valid reports whether t is a known target.
func (t ForecastTarget) Valid() bool {
	return t == TargetPrice || t == TargetDemand
}

// DailyAggregate is one day of order activity, optionally limited to a
// product category.
type DailyAggregate struct {
	Day         time.Time `json:"day" db:"day"`
	AvgPrice    float64   `json:"avg_price" db:"avg_price"`
	OrderCount  int64     `json:"order_count" db:"order_count"`
	TotalVolume int64     `json:"total_volume" db:"total_volume"`
}

// Value returns the observation used for target.
func (a DailyAggregate) Value(target ForecastTarget) float64 {
	switch target {
	case TargetPrice:
		return a.AvgPrice
	case TargetDemand:
		return float64(a.TotalVolume)
	default:
		return 0
	}
}

// ForecastRequest represents request parameters for the admin forecast. An
// empty Target means price; a nil Horizon means the configured default.
type ForecastRequest struct {
	Target   ForecastTarget `json:"target"`
	Category string         `json:"category"`
	Horizon  *int           `json:"horizon,omitempty"`
}

// HistoricalPoint is an observed day with its moving-average trend.
type HistoricalPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
	MA    float64   `json:"ma"`
}

// PredictionPoint is a forecast day. Value is rounded to two decimals.
type PredictionPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// ForecastResponse is returned by the admin forecast endpoint. Series too
// short to analyze produce empty slices and zero confidence, never an error.
type ForecastResponse struct {
	OK             bool                  `json:"ok"`
	Target         ForecastTarget        `json:"target"`
	Category       string                `json:"category,omitempty"`
	Horizon        int                   `json:"horizon"`
	HistoricalData []HistoricalPoint     `json:"historicalData"`
	Predictions    []PredictionPoint     `json:"predictions"`
	Confidence     float64               `json:"confidence"`
	Volatility     float64               `json:"volatility"`
	Seasonality    *forecast.Seasonality `json:"seasonality,omitempty"`
	Cached         bool                  `json:"cached"`
	GeneratedAt    time.Time             `json:"generatedAt"`
}

// NewEmptyForecastResponse builds the response for a series with too little
// usable data.
func NewEmptyForecastResponse(target ForecastTarget, category string, horizon int, now time.Time) *ForecastResponse {
	return &ForecastResponse{
		OK:             true,
		Target:         target,
		Category:       category,
		Horizon:        horizon,
		HistoricalData: []HistoricalPoint{},
		Predictions:    []PredictionPoint{},
		GeneratedAt:    now,
	}
}

// AnalyzeRequest is the body of the ad-hoc series analysis endpoint.
type AnalyzeRequest struct {
	Values  []float64 `json:"values" binding:"required"`
	Horizon int       `json:"horizon"`
	// Seed makes the noise overlay reproducible when set.
	Seed *uint64 `json:"seed,omitempty"`
}

// AnalyzeResponse mirrors forecast.Result with the effective horizon.
type AnalyzeResponse struct {
	Decomposition *forecast.Decomposition `json:"decomposition"`
	Predictions   []float64               `json:"predictions"`
	Confidence    float64                 `json:"confidence"`
	Horizon       int                     `json:"horizon"`
}
