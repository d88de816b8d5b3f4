// Package market holds the shared domain types for the scanner.
package market

import "time"

// Timeframe is an exchange candle interval.
type Timeframe string

const (
	TF5m Timeframe = "5m"
	TF1h Timeframe = "1h"
	TF4h Timeframe = "4h"
	TF1d Timeframe = "1d"
	TF1w Timeframe = "1w"
	TF1M Timeframe = "1M"
)

// Bucket is a higher-order timeframe whose closed candles seed levels.
type Bucket string

const (
	BucketDaily   Bucket = "daily"
	BucketWeekly  Bucket = "weekly"
	BucketMonthly Bucket = "monthly"
)

// LevelType distinguishes resistance (high) from support (low) levels.
type LevelType string

const (
	LevelHigh LevelType = "high"
	LevelLow  LevelType = "low"
)

// FakeoutType mirrors LevelType on the candle annotation.
type FakeoutType = LevelType

// AllTimeframes lists every interval the scanner ingests.
var AllTimeframes = []Timeframe{TF5m, TF1h, TF4h, TF1d, TF1w, TF1M}

// DetectionTimeframes lists the lower timeframes checked for fakeouts.
var DetectionTimeframes = []Timeframe{TF5m, TF1h, TF4h, TF1d}

// bucketMap is the fixed lower-timeframe → level-bucket contract.
var bucketMap = map[Timeframe]Bucket{
	TF5m: BucketDaily,
	TF1h: BucketDaily,
	TF4h: BucketWeekly,
	TF1d: BucketMonthly,
}

// nativeBucket maps a bucket-native timeframe to its bucket.
var nativeBucket = map[Timeframe]Bucket{
	TF1d: BucketDaily,
	TF1w: BucketWeekly,
	TF1M: BucketMonthly,
}

// BucketFor returns the higher bucket a lower timeframe is checked against.
func BucketFor(tf Timeframe) (Bucket, bool) {
	b, ok := bucketMap[tf]
	return b, ok
}

// NativeBucket returns the bucket a timeframe seeds levels for, if any.
// Only daily, weekly and monthly candles produce levels.
func NativeBucket(tf Timeframe) (Bucket, bool) {
	b, ok := nativeBucket[tf]
	return b, ok
}

// Candle is one closed OHLCV bar for a symbol and timeframe.
// The fakeout annotation is the only mutable part and transitions from
// unset to set at most once.
type Candle struct {
	Symbol    string
	Timeframe Timeframe
	Timestamp time.Time

	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64

	// Indicators are nil until enough history exists to compute them.
	RSI8  *float64
	EMA20 *float64
	EMA50 *float64

	IsFakeout    bool
	FakeoutType  FakeoutType
	FakeoutLevel *float64
}

// Level is a candidate support or resistance price taken from a closed
// bucket-native candle. Levels are created and deleted, never mutated.
type Level struct {
	ID              uint
	Symbol          string
	Bucket          Bucket
	Type            LevelType
	Value           float64
	SourceTimestamp time.Time
}
