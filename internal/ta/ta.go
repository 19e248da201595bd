// Package ta implements the pure technical-analysis functions of spec
// §4.5. Every function returns (value, error) instead of panicking on
// insufficient data, mirroring the nil-returning convention of the
// teacher's pkg/formulas package (Calculate RSI/Sharpe/Sortino each return
// a *float64 and nil on insufficient data); this package uses (T, error)
// instead of pointers since every result here is a plain float64 or a
// small struct, not a nullable field embedded in a larger JSON payload.
//
// go-talib is deliberately not used here — see DESIGN.md's "Dropped
// teacher dependencies" entry: spec §8 pins exact seeding/smoothing
// behavior (SMA-seeded EMA, Wilder RSI returning exactly 100 at zero
// average loss) that a hand-written implementation can guarantee bit-for-
// bit and a wrapped C library's internal conventions might not.
package ta

import "fmt"

// SMA returns the simple moving average of the last `period` closes.
func SMA(closes []float64, period int) (float64, error) {
	if period <= 0 || len(closes) < period {
		return 0, fmt.Errorf("ta: SMA(%d) needs %d closes, got %d", period, period, len(closes))
	}
	window := closes[len(closes)-period:]
	sum := 0.0
	for _, c := range window {
		sum += c
	}
	return sum / float64(period), nil
}

// EMA returns the full exponential-moving-average series, seeded by the
// SMA of the first `period` values (spec §4.5): ema[period-1] = SMA(first
// period closes); thereafter ema[t] = (close[t]-ema[t-1])*(2/(period+1)) +
// ema[t-1]. The returned slice is aligned to closes — entries before the
// seed index are zero and should not be read; callers wanting just the
// latest value should use EMALast.
func EMA(closes []float64, period int) ([]float64, error) {
	if period <= 0 || len(closes) < period {
		return nil, fmt.Errorf("ta: EMA(%d) needs %d closes, got %d", period, period, len(closes))
	}

	seed, err := SMA(closes[:period], period)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(closes))
	out[period-1] = seed
	k := 2.0 / (float64(period) + 1.0)
	for t := period; t < len(closes); t++ {
		out[t] = (closes[t]-out[t-1])*k + out[t-1]
	}
	return out, nil
}

// EMALast returns only the most recent EMA value.
func EMALast(closes []float64, period int) (float64, error) {
	series, err := EMA(closes, period)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// RSI computes Wilder's 14-period (or any period) Relative Strength Index
// over the given closes, returning the current value. A flat series (zero
// average loss) returns exactly 100, per spec §4.5 and §8's boundary test.
func RSI(closes []float64, period int) (float64, error) {
	if period <= 0 || len(closes) < period+1 {
		return 0, fmt.Errorf("ta: RSI(%d) needs %d closes, got %d", period, period+1, len(closes))
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss += -delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// Wilder smoothing over the remaining closes.
	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		var gain, loss float64
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), nil
}

// MACDResult holds the MACD line, its signal line, and the histogram
// (spec §4.5).
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes the standard 12/26/9 MACD unless overridden: the MACD
// series is EMA(fast) - EMA(slow); the signal is EMA9 of that series; the
// histogram is MACD minus signal, aligned from the point both EMAs are
// defined.
func MACD(closes []float64, fast, slow, signalPeriod int) (MACDResult, error) {
	emaFast, err := EMA(closes, fast)
	if err != nil {
		return MACDResult{}, fmt.Errorf("ta: MACD fast leg: %w", err)
	}
	emaSlow, err := EMA(closes, slow)
	if err != nil {
		return MACDResult{}, fmt.Errorf("ta: MACD slow leg: %w", err)
	}

	start := slow - 1 // slow EMA is the longer seed, so it's defined later
	macdSeries := make([]float64, 0, len(closes)-start)
	for i := start; i < len(closes); i++ {
		macdSeries = append(macdSeries, emaFast[i]-emaSlow[i])
	}

	signalSeries, err := EMA(macdSeries, signalPeriod)
	if err != nil {
		return MACDResult{}, fmt.Errorf("ta: MACD signal leg: %w", err)
	}

	signalStart := signalPeriod - 1
	alignedMACD := macdSeries[signalStart:]
	alignedSignal := signalSeries[signalStart:]

	histogram := make([]float64, len(alignedMACD))
	for i := range alignedMACD {
		histogram[i] = alignedMACD[i] - alignedSignal[i]
	}

	return MACDResult{MACD: alignedMACD, Signal: alignedSignal, Histogram: histogram}, nil
}

// MACDDefault computes MACD with the conventional 12/26/9 periods.
func MACDDefault(closes []float64) (MACDResult, error) {
	return MACD(closes, 12, 26, 9)
}

// SupportResistance returns the 20-day min/max closes as a naive
// support/resistance band (spec §4.5).
func SupportResistance(closes []float64) (support, resistance float64, err error) {
	const window = 20
	if len(closes) < window {
		return 0, 0, fmt.Errorf("ta: support/resistance needs %d closes, got %d", window, len(closes))
	}
	recent := closes[len(closes)-window:]
	support, resistance = recent[0], recent[0]
	for _, c := range recent[1:] {
		if c < support {
			support = c
		}
		if c > resistance {
			resistance = c
		}
	}
	return support, resistance, nil
}

// Trend classifies the last close against SMA50: "bullish" if above,
// "bearish" otherwise (spec §4.5).
func Trend(closes []float64) (string, error) {
	sma50, err := SMA(closes, 50)
	if err != nil {
		return "", err
	}
	last := closes[len(closes)-1]
	if last > sma50 {
		return "bullish", nil
	}
	return "bearish", nil
}

// Snapshot is the composite technical snapshot of spec §4.5, requiring at
// least 200 closes.
type Snapshot struct {
	SMA20, SMA50, SMA200 float64
	RSI14                float64
	MACD                 MACDResult
	Support, Resistance  float64
	Trend                string
}

// ComputeSnapshot builds the full composite snapshot. Requires at least
// 200 closes, per spec §4.5.
func ComputeSnapshot(closes []float64) (Snapshot, error) {
	const minCloses = 200
	if len(closes) < minCloses {
		return Snapshot{}, fmt.Errorf("ta: snapshot requires %d closes, got %d", minCloses, len(closes))
	}

	var snap Snapshot
	var err error

	if snap.SMA20, err = SMA(closes, 20); err != nil {
		return Snapshot{}, err
	}
	if snap.SMA50, err = SMA(closes, 50); err != nil {
		return Snapshot{}, err
	}
	if snap.SMA200, err = SMA(closes, 200); err != nil {
		return Snapshot{}, err
	}
	if snap.RSI14, err = RSI(closes, 14); err != nil {
		return Snapshot{}, err
	}
	if snap.MACD, err = MACDDefault(closes); err != nil {
		return Snapshot{}, err
	}
	if snap.Support, snap.Resistance, err = SupportResistance(closes); err != nil {
		return Snapshot{}, err
	}
	if snap.Trend, err = Trend(closes); err != nil {
		return Snapshot{}, err
	}

	return snap, nil
}
