// Package forecast implements the heuristic series forecaster behind the admin
// forecast dashboard.
//
// A forecast runs in two strictly sequential steps:
//
//	decomposition, err := forecast.Analyze(values)   // trend, volatility, seasonality
//	predictions := forecast.Predict(decomposition, horizon, forecast.NewBoxMuller())
//	confidence := forecast.Confidence(decomposition.Volatility)
//
// # Analysis
//
// Analyze smooths the observations with a trailing moving average (window
// min(6, n/2)), measures volatility as the population standard deviation of
// period-over-period relative returns, and scans lags 2..12 for the strongest
// autocovariance of the demeaned series. Seasonality is reported only for
// series of at least 12 points whose strongest autocovariance exceeds 0.2 in
// absolute value. The reported magnitude is the raw autocovariance, so it is
// not bounded to [-1, 1] for high-variance series.
//
// # Prediction
//
// Predict projects the last observation along the relative least-squares slope
// of the final six trend points, modulates it with a sine wave of the detected
// period, and multiplies in a normal perturbation scaled by volatility and the
// square root of the step distance. Every value is clamped at zero.
//
// The perturbation comes from a NoiseSource. Production callers use
// NewBoxMuller, which seeds itself from entropy; tests use ZeroNoise or
// NewSeededBoxMuller for reproducible output.
//
// # Degenerate input
//
// A relative return whose previous observation is zero is left out of the
// volatility estimate, and a trend window starting at zero contributes a zero
// slope. Non-finite or negative observations are rejected with
// ErrDegenerateInput.
package forecast
