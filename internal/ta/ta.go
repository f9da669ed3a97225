package ta

import "math"

// SMA returns the simple moving average of the last n closes.
func SMA(closes []float64, n int) float64 {
	if len(closes) < n || n <= 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(closes) - n; i < len(closes); i++ {
		sum += closes[i]
	}
	return sum / float64(n)
}

// EMASeries returns the exponential moving average series over vals with
// the given span, seeded from the first value (adjust=false semantics).
func EMASeries(vals []float64, span int) []float64 {
	if len(vals) == 0 || span <= 0 {
		return nil
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out := make([]float64, len(vals))
	out[0] = vals[0]
	for i := 1; i < len(vals); i++ {
		out[i] = alpha*vals[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSI returns the Wilder-smoothed relative strength index of the final
// bar. The first `period` deltas seed the averages; the remainder are
// smoothed with (prev*(period-1)+cur)/period.
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 || period <= 0 {
		return math.NaN()
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			avgGain += d
		} else {
			avgLoss -= d
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// MACDValues carries the latest MACD line, signal line and the last two
// histogram values (for edge-triggered crossover detection).
type MACDValues struct {
	MACD          float64
	Signal        float64
	Histogram     float64
	PrevHistogram float64
}

// MACD computes MACD(fast, slow, signal) over closes.
func MACD(closes []float64, fast, slow, signal int) MACDValues {
	if len(closes) < 2 || fast <= 0 || slow <= 0 || signal <= 0 {
		return MACDValues{
			MACD: math.NaN(), Signal: math.NaN(),
			Histogram: math.NaN(), PrevHistogram: math.NaN(),
		}
	}

	emaFast := EMASeries(closes, fast)
	emaSlow := EMASeries(closes, slow)

	macdLine := make([]float64, len(closes))
	for i := range closes {
		macdLine[i] = emaFast[i] - emaSlow[i]
	}
	signalLine := EMASeries(macdLine, signal)

	n := len(closes)
	latest := macdLine[n-1] - signalLine[n-1]
	prev := macdLine[n-2] - signalLine[n-2]

	return MACDValues{
		MACD:          macdLine[n-1],
		Signal:        signalLine[n-1],
		Histogram:     latest,
		PrevHistogram: prev,
	}
}

// BullishCrossover is true when the histogram crossed from negative to
// positive on the most recent bar.
func (m MACDValues) BullishCrossover() bool {
	return m.PrevHistogram < 0 && m.Histogram > 0
}

// BearishCrossover is true when the histogram crossed from positive to
// negative on the most recent bar.
func (m MACDValues) BearishCrossover() bool {
	return m.PrevHistogram > 0 && m.Histogram < 0
}
