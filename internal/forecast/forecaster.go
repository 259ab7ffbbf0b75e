package forecast

import "math"

const trendSlopeWindow = 6

// Result bundles a decomposition with its predictions and confidence score.
type Result struct {
	Decomposition *Decomposition `json:"decomposition"`
	Predictions   []float64      `json:"predictions"`
	Confidence    float64        `json:"confidence"`
}

// Predict projects horizon future values from a decomposition.
//
// A nil decomposition or a non-positive horizon yields an empty slice. Each
// value combines the linear trend projection, the seasonal modulation when a
// pattern was detected, and a volatility-scaled draw from noise. Values are
// clamped at zero and never NaN.
func Predict(d *Decomposition, horizon int, noise NoiseSource) []float64 {
	if d == nil || horizon <= 0 {
		return []float64{}
	}
	if noise == nil {
		noise = NewBoxMuller()
	}

	slope := trendSlope(d.Trend)
	seasonal := d.Seasonality.Pattern && d.Seasonality.Period > 0

	predictions := make([]float64, horizon)
	for i := 0; i < horizon; i++ {
		step := float64(i + 1)
		prediction := d.LastValue * (1 + slope*step)

		if seasonal {
			phase := 2 * math.Pi * float64(i) / float64(d.Seasonality.Period)
			prediction *= 1 + d.Seasonality.Magnitude*math.Sin(phase)
		}

		prediction *= 1 + noise.Normal()*d.Volatility*math.Sqrt(step)

		if math.IsNaN(prediction) || math.IsInf(prediction, 0) {
			prediction = 0
		}
		predictions[i] = math.Max(0, prediction)
	}
	return predictions
}

// trendSlope fits a least-squares line through the last six trend points
// against their index and returns the slope relative to the first of them.
// It returns 0 when the window is shorter than two points or starts at zero.
func trendSlope(trend []float64) float64 {
	if len(trend) < 2 {
		return 0
	}
	recent := trend
	if len(recent) > trendSlopeWindow {
		recent = recent[len(recent)-trendSlopeWindow:]
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range recent {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	k := float64(len(recent))
	denom := k*sumXX - sumX*sumX
	if denom == 0 || recent[0] == 0 {
		return 0
	}
	slope := (k*sumXY - sumX*sumY) / denom
	return slope / recent[0]
}

// Confidence maps volatility to a 0-100 score: 100*(1-volatility), clamped.
func Confidence(volatility float64) float64 {
	if math.IsNaN(volatility) {
		return 0
	}
	return math.Max(0, math.Min(100, 100*(1-volatility)))
}

// Forecast runs Analyze and Predict in one call. Insufficient or degenerate
// input returns the analysis error alongside an empty, zero-confidence result.
func Forecast(values []float64, horizon int, noise NoiseSource) (Result, error) {
	d, err := Analyze(values)
	if err != nil {
		return Result{Predictions: []float64{}}, err
	}
	return Result{
		Decomposition: d,
		Predictions:   Predict(d, horizon, noise),
		Confidence:    Confidence(d.Volatility),
	}, nil
}
