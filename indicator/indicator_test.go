package indicator

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-12

// 参考值与 pandas Series.ewm(span, adjust=True).mean() 一致。
func TestEWMAdjustedReferenceVector(t *testing.T) {
	got, err := EWM([]float64{1, 2, 3}, 3)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 5.0 / 3.0, 17.0 / 7.0}, got, eps)

	got, err = EWM([]float64{1, 2, 3}, 2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1.75, 34.0 / 13.0}, got, eps)
}

func TestEWMDiffersFromSeededEMA(t *testing.T) {
	// 首值种子递推: 1, 1.5, 2.25；adjust 口径在早期更贴近新值。
	got, err := EWM([]float64{1, 2, 3}, 3)
	require.NoError(t, err)
	assert.Greater(t, got[1], 1.5)
	assert.Greater(t, got[2], 2.25)
}

func TestEWMConstantSeries(t *testing.T) {
	values := make([]float64, 300)
	for i := range values {
		values[i] = 42
	}
	got, err := EWM(values, 200)
	require.NoError(t, err)
	for i, v := range got {
		if math.Abs(v-42) > 1e-9 {
			t.Fatalf("index %d: got %v want 42", i, v)
		}
	}
}

func TestEMAInsufficientHistory(t *testing.T) {
	_, err := EMA([]float64{1, 2, 3}, 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientHistory))

	_, err = EMA(nil, 1)
	assert.True(t, errors.Is(err, ErrInsufficientHistory))

	_, err = EMA([]float64{1}, 0)
	assert.True(t, errors.Is(err, ErrInvalidPeriod))
}

func TestEWMIsCausal(t *testing.T) {
	values := wave(120)
	full, err := EWM(values, 26)
	require.NoError(t, err)
	prefix, err := EWM(values[:60], 26)
	require.NoError(t, err)
	assert.Equal(t, prefix, full[:60], "values up to i must not depend on later input")
}

func TestMACDShapeAndSign(t *testing.T) {
	rising := make([]float64, 100)
	for i := range rising {
		rising[i] = 100 + float64(i)
	}
	res, err := MACD(rising, DefaultFast, DefaultSlow, DefaultSignal)
	require.NoError(t, err)
	require.Len(t, res.MACD, len(rising))
	require.Len(t, res.Signal, len(rising))
	require.Len(t, res.Hist, len(rising))

	assert.InDelta(t, 0, res.MACD[0], eps)
	assert.Greater(t, res.MACD[99], 0.0, "fast ema leads slow ema on a rising series")
	assert.InDelta(t, res.MACD[99]-res.Signal[99], res.Hist[99], eps)
}

func TestMACDMatchesComposition(t *testing.T) {
	values := wave(100)
	res, err := MACD(values, 12, 26, 9)
	require.NoError(t, err)

	fast, _ := EWM(values, 12)
	slow, _ := EWM(values, 26)
	diff := make([]float64, len(values))
	for i := range values {
		diff[i] = fast[i] - slow[i]
	}
	sig, _ := EWM(diff, 9)
	assert.InDeltaSlice(t, diff, res.MACD, eps)
	assert.InDeltaSlice(t, sig, res.Signal, eps)
}

func TestMACDDeterministic(t *testing.T) {
	values := wave(100)
	a, err := MACD(values, 12, 26, 9)
	require.NoError(t, err)
	b, err := MACD(values, 12, 26, 9)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMACDErrors(t *testing.T) {
	_, err := MACD(wave(25), 12, 26, 9)
	assert.True(t, errors.Is(err, ErrInsufficientHistory))

	_, err = MACD(wave(100), 26, 12, 9)
	assert.True(t, errors.Is(err, ErrInvalidPeriod))

	_, err = MACD(wave(100), 12, 26, 0)
	assert.True(t, errors.Is(err, ErrInvalidPeriod))
}

func wave(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 5*math.Sin(float64(i)/6) + 0.1*float64(i)
	}
	return out
}
