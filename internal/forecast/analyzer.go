package forecast

import (
	"errors"
	"math"
)

const (
	// MinObservations is the shortest series Analyze accepts.
	MinObservations = 2
	// MinSeasonalObservations is the shortest series scanned for seasonality.
	MinSeasonalObservations = 12

	maxTrendWindow    = 6
	minSeasonalPeriod = 2
	maxSeasonalPeriod = 12
	seasonalityCutoff = 0.2
)

var (
	// ErrInsufficientData is returned when a series is too short to analyze.
	ErrInsufficientData = errors.New("forecast: insufficient data")
	// ErrDegenerateInput is returned for NaN, infinite or negative observations
	// and for series whose statistics are not finite.
	ErrDegenerateInput = errors.New("forecast: degenerate input")
)

// Seasonality describes the strongest autocovariance cycle found in a series.
type Seasonality struct {
	Pattern bool `json:"pattern"`
	// Period is 0 whenever Pattern is false.
	Period int `json:"period"`
	// Magnitude is the signed raw autocovariance at the strongest lag. It is
	// not normalized by variance.
	Magnitude float64 `json:"magnitude"`
}

// Decomposition is the result of Analyze. It is never mutated after creation.
type Decomposition struct {
	Trend       []float64   `json:"trend"`
	Volatility  float64     `json:"volatility"`
	Seasonality Seasonality `json:"seasonality"`
	LastValue   float64     `json:"lastValue"`
}

// Analyze decomposes an ordered series of observations into a trailing
// moving-average trend, a volatility scalar and a seasonality descriptor.
//
// Series shorter than MinObservations return ErrInsufficientData. Negative or
// non-finite observations, and series whose statistics overflow, return
// ErrDegenerateInput. The input slice is neither modified nor retained.
func Analyze(values []float64) (*Decomposition, error) {
	n := len(values)
	if n < MinObservations {
		return nil, ErrInsufficientData
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, ErrDegenerateInput
		}
	}

	window := n / 2
	if window > maxTrendWindow {
		window = maxTrendWindow
	}

	d := &Decomposition{
		Trend:       movingAverage(values, window),
		Volatility:  populationStdDev(relativeReturns(values)),
		Seasonality: detectSeasonality(values),
		LastValue:   values[n-1],
	}
	// Finite inputs of extreme magnitude can still overflow the statistics.
	if !finite(d.Volatility) || !finite(d.Seasonality.Magnitude) {
		return nil, ErrDegenerateInput
	}
	for _, t := range d.Trend {
		if !finite(t) {
			return nil, ErrDegenerateInput
		}
	}
	return d, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// movingAverage returns a trailing mean of the same length as values. The
// window shrinks at the start of the series so no value looks ahead.
func movingAverage(values []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(values))
	for i := range values {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		out[i] = mean(values[start : i+1])
	}
	return out
}

// relativeReturns computes (v[i]-v[i-1])/v[i-1]. Steps with a zero previous
// observation have no defined return and are skipped.
func relativeReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev == 0 {
			continue
		}
		returns = append(returns, (values[i]-prev)/prev)
	}
	return returns
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// populationStdDev divides by n, not n-1.
func populationStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	sumSquares := 0.0
	for _, v := range values {
		diff := v - m
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)))
}

// detectSeasonality scans lags 2..min(12, n/2) for the largest absolute
// autocovariance of the demeaned series. Ties keep the shorter lag.
func detectSeasonality(values []float64) Seasonality {
	n := len(values)
	if n < MinSeasonalObservations {
		return Seasonality{}
	}

	m := mean(values)
	demeaned := make([]float64, n)
	for i, v := range values {
		demeaned[i] = v - m
	}

	maxLag := n / 2
	if maxLag > maxSeasonalPeriod {
		maxLag = maxSeasonalPeriod
	}

	maxCorr := 0.0
	period := 0
	for p := minSeasonalPeriod; p <= maxLag; p++ {
		corr := 0.0
		for i := 0; i < n-p; i++ {
			corr += demeaned[i] * demeaned[i+p]
		}
		corr /= float64(n - p)

		if math.Abs(corr) > math.Abs(maxCorr) {
			maxCorr = corr
			period = p
		}
	}

	if math.Abs(maxCorr) <= seasonalityCutoff {
		return Seasonality{Magnitude: maxCorr}
	}
	return Seasonality{
		Pattern:   true,
		Period:    period,
		Magnitude: maxCorr,
	}
}
