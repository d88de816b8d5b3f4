package fakeout

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/levelwatch/internal/market"
)

type fakeCandles struct {
	candle     *market.Candle
	fetchErr   error
	markResult bool
	markErr    error

	markedCalls int
	markedType  market.FakeoutType
	markedLevel float64
}

func (f *fakeCandles) LatestCandle(symbol string, tf market.Timeframe) (*market.Candle, error) {
	return f.candle, f.fetchErr
}

func (f *fakeCandles) MarkFakeout(symbol string, tf market.Timeframe, ts time.Time, typ market.FakeoutType, level float64) (bool, error) {
	f.markedCalls++
	f.markedType = typ
	f.markedLevel = level
	return f.markResult, f.markErr
}

type fakeLevels struct {
	highs []float64
	lows  []float64
}

func (f *fakeLevels) LevelsByValue(symbol string, bucket market.Bucket, typ market.LevelType) ([]market.Level, error) {
	values := f.highs
	if typ == market.LevelLow {
		values = f.lows
	}
	levels := make([]market.Level, 0, len(values))
	for i, v := range values {
		levels = append(levels, market.Level{ID: uint(i + 1), Symbol: symbol, Bucket: bucket, Type: typ, Value: v})
	}
	return levels, nil
}

type fakeNotifier struct {
	calls int
	err   error
	typ   market.FakeoutType
	level float64
}

func (f *fakeNotifier) NotifyFakeout(symbol string, tf market.Timeframe, typ market.FakeoutType, level float64, candle market.Candle) error {
	f.calls++
	f.typ = typ
	f.level = level
	return f.err
}

func candleAt(high, low, close float64) *market.Candle {
	return &market.Candle{
		Symbol:    "BTCUSDT",
		Timeframe: market.TF1h,
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Open:      close,
		High:      high,
		Low:       low,
		Close:     close,
	}
}

func TestHighFakeout(t *testing.T) {
	candles := &fakeCandles{candle: candleAt(105, 99.5, 99), markResult: true}
	notifier := &fakeNotifier{}
	det := NewDetector(candles, &fakeLevels{highs: []float64{100}}, notifier)

	outcome, err := det.CheckLatest("BTCUSDT", market.TF1h)
	require.NoError(t, err)
	assert.Equal(t, Fakeout, outcome)
	assert.Equal(t, 1, candles.markedCalls)
	assert.Equal(t, market.LevelHigh, candles.markedType)
	assert.Equal(t, 100.0, candles.markedLevel)
	assert.Equal(t, 1, notifier.calls)
}

func TestLowFakeout(t *testing.T) {
	candles := &fakeCandles{candle: candleAt(101, 94, 96), markResult: true}
	notifier := &fakeNotifier{}
	det := NewDetector(candles, &fakeLevels{lows: []float64{95}}, notifier)

	outcome, err := det.CheckLatest("BTCUSDT", market.TF1h)
	require.NoError(t, err)
	assert.Equal(t, Fakeout, outcome)
	assert.Equal(t, market.LevelLow, candles.markedType)
	assert.Equal(t, 95.0, candles.markedLevel)
}

func TestBoundaryEqualityNeverMatches(t *testing.T) {
	// Wick exactly touching the level is not a pierce.
	candles := &fakeCandles{candle: candleAt(100, 98, 99), markResult: true}
	det := NewDetector(candles, &fakeLevels{highs: []float64{100}}, &fakeNotifier{})

	outcome, err := det.CheckLatest("BTCUSDT", market.TF1h)
	require.NoError(t, err)
	assert.Equal(t, NoMatch, outcome)
	assert.Zero(t, candles.markedCalls)

	// Close exactly on the level is not a rejection either.
	candles = &fakeCandles{candle: candleAt(105, 99, 100), markResult: true}
	det = NewDetector(candles, &fakeLevels{highs: []float64{100}}, &fakeNotifier{})

	outcome, err = det.CheckLatest("BTCUSDT", market.TF1h)
	require.NoError(t, err)
	assert.Equal(t, NoMatch, outcome)
	assert.Zero(t, candles.markedCalls)
}

func TestFirstLevelAscendingByValueWins(t *testing.T) {
	// Both resistance levels were wicked through; the lowest one is recorded.
	candles := &fakeCandles{candle: candleAt(110, 98, 99), markResult: true}
	det := NewDetector(candles, &fakeLevels{highs: []float64{100, 103}}, &fakeNotifier{})

	outcome, err := det.CheckLatest("BTCUSDT", market.TF1h)
	require.NoError(t, err)
	assert.Equal(t, Fakeout, outcome)
	assert.Equal(t, 100.0, candles.markedLevel)
}

func TestHighsCheckedBeforeLows(t *testing.T) {
	candles := &fakeCandles{candle: candleAt(110, 90, 99), markResult: true}
	det := NewDetector(candles, &fakeLevels{highs: []float64{100}, lows: []float64{95}}, &fakeNotifier{})

	outcome, err := det.CheckLatest("BTCUSDT", market.TF1h)
	require.NoError(t, err)
	assert.Equal(t, Fakeout, outcome)
	assert.Equal(t, market.LevelHigh, candles.markedType)
}

func TestAlreadyAnnotatedCandleSkipped(t *testing.T) {
	candle := candleAt(105, 99.5, 99)
	candle.IsFakeout = true
	candles := &fakeCandles{candle: candle, markResult: true}
	notifier := &fakeNotifier{}
	det := NewDetector(candles, &fakeLevels{highs: []float64{100}}, notifier)

	outcome, err := det.CheckLatest("BTCUSDT", market.TF1h)
	require.NoError(t, err)
	assert.Equal(t, NoMatch, outcome)
	assert.Zero(t, candles.markedCalls)
	assert.Zero(t, notifier.calls)
}

func TestNoDataOutcome(t *testing.T) {
	det := NewDetector(&fakeCandles{}, &fakeLevels{}, &fakeNotifier{})

	outcome, err := det.CheckLatest("BTCUSDT", market.TF1h)
	require.NoError(t, err)
	assert.Equal(t, NoData, outcome)
}

func TestAnnotationRaceLostSkipsAlert(t *testing.T) {
	// The guarded write reports another check got there first.
	candles := &fakeCandles{candle: candleAt(105, 99.5, 99), markResult: false}
	notifier := &fakeNotifier{}
	det := NewDetector(candles, &fakeLevels{highs: []float64{100}}, notifier)

	outcome, err := det.CheckLatest("BTCUSDT", market.TF1h)
	require.NoError(t, err)
	assert.Equal(t, NoMatch, outcome)
	assert.Equal(t, 1, candles.markedCalls)
	assert.Zero(t, notifier.calls)
}

func TestAlertFailureDoesNotUnrecordFakeout(t *testing.T) {
	candles := &fakeCandles{candle: candleAt(105, 99.5, 99), markResult: true}
	notifier := &fakeNotifier{err: errors.New("telegram down")}
	det := NewDetector(candles, &fakeLevels{highs: []float64{100}}, notifier)

	outcome, err := det.CheckLatest("BTCUSDT", market.TF1h)
	require.NoError(t, err)
	assert.Equal(t, Fakeout, outcome)
	assert.Equal(t, 1, notifier.calls)
}

func TestNilNotifier(t *testing.T) {
	candles := &fakeCandles{candle: candleAt(105, 99.5, 99), markResult: true}
	det := NewDetector(candles, &fakeLevels{highs: []float64{100}}, nil)

	outcome, err := det.CheckLatest("BTCUSDT", market.TF1h)
	require.NoError(t, err)
	assert.Equal(t, Fakeout, outcome)
}

func TestStoreErrorSurfaced(t *testing.T) {
	candles := &fakeCandles{fetchErr: errors.New("db unreachable")}
	det := NewDetector(candles, &fakeLevels{}, &fakeNotifier{})

	_, err := det.CheckLatest("BTCUSDT", market.TF1h)
	require.Error(t, err)
}

func TestUncheckedTimeframeRejected(t *testing.T) {
	det := NewDetector(&fakeCandles{}, &fakeLevels{}, &fakeNotifier{})

	_, err := det.CheckLatest("BTCUSDT", market.TF1w)
	require.Error(t, err)
}

func TestMarkErrorSurfaced(t *testing.T) {
	candles := &fakeCandles{candle: candleAt(105, 99.5, 99), markErr: errors.New("write failed")}
	notifier := &fakeNotifier{}
	det := NewDetector(candles, &fakeLevels{highs: []float64{100}}, notifier)

	_, err := det.CheckLatest("BTCUSDT", market.TF1h)
	require.Error(t, err)
	assert.Zero(t, notifier.calls)
}
