package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSIAllGains(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	rsi, ok := RSI(prices, 8)
	require.True(t, ok)
	assert.Equal(t, 100.0, rsi)
}

func TestRSIMixedStaysInRange(t *testing.T) {
	prices := []float64{44, 44.3, 44.1, 43.6, 44.3, 44.8, 45.1, 45.4, 45.1, 46.3, 47.5, 47.2}
	rsi, ok := RSI(prices, 8)
	require.True(t, ok)
	assert.Greater(t, rsi, 50.0)
	assert.Less(t, rsi, 100.0)
}

func TestRSIInsufficientData(t *testing.T) {
	_, ok := RSI([]float64{1, 2, 3}, 8)
	assert.False(t, ok)
}

func TestEMAConstantSeries(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 42
	}
	ema, ok := EMA(prices, 20)
	require.True(t, ok)
	assert.InDelta(t, 42, ema, 1e-9)
}

func TestEMAFollowsTrend(t *testing.T) {
	prices := make([]float64, 60)
	for i := range prices {
		prices[i] = float64(i)
	}
	ema, ok := EMA(prices, 20)
	require.True(t, ok)
	// EMA lags the last price but sits above the window average
	assert.Greater(t, ema, prices[30])
	assert.Less(t, ema, prices[59])
}

func TestEMAInsufficientData(t *testing.T) {
	_, ok := EMA([]float64{1, 2, 3}, 20)
	assert.False(t, ok)
}
