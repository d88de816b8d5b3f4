package database

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/web3guy0/levelwatch/internal/market"
)

type Database struct {
	db *gorm.DB
}

// Models

// Candle is the stored form of one closed OHLCV bar. The fakeout columns
// start unset and are written at most once via MarkFakeout.
type Candle struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Symbol    string    `gorm:"uniqueIndex:idx_candles_key"`
	Timeframe string    `gorm:"uniqueIndex:idx_candles_key"`
	Timestamp time.Time `gorm:"uniqueIndex:idx_candles_key"`

	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64

	RSI8  *float64 `gorm:"column:rsi_8"`
	EMA20 *float64 `gorm:"column:ema_20"`
	EMA50 *float64 `gorm:"column:ema_50"`

	IsFakeout    bool `gorm:"default:false;index"`
	FakeoutType  string
	FakeoutLevel *float64

	CreatedAt time.Time
}

// Level is a candidate support/resistance price. Rows are inserted when a
// bucket-native candle closes and deleted by the filter engine; never updated.
type Level struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	Symbol          string `gorm:"index:idx_levels_key"`
	Bucket          string `gorm:"index:idx_levels_key"`
	Type            string `gorm:"index:idx_levels_key"`
	Value           float64
	SourceTimestamp time.Time `gorm:"index"`
	CreatedAt       time.Time
}

func New(dbPath string) (*Database, error) {
	var db *gorm.DB
	var err error

	// Check if this is a PostgreSQL connection string
	if strings.HasPrefix(dbPath, "postgres://") || strings.HasPrefix(dbPath, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("Database connected (PostgreSQL)")
	} else {
		// SQLite fallback
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dbPath).Msg("Database initialized (SQLite)")
	}

	if err := db.AutoMigrate(&Candle{}, &Level{}); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// Candle operations

// UpsertCandles inserts closed candles, silently skipping timestamps that
// already exist for the (symbol, timeframe).
func (d *Database) UpsertCandles(candles ...market.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	rows := make([]Candle, 0, len(candles))
	for _, c := range candles {
		rows = append(rows, Candle{
			Symbol:    c.Symbol,
			Timeframe: string(c.Timeframe),
			Timestamp: c.Timestamp,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
			RSI8:      c.RSI8,
			EMA20:     c.EMA20,
			EMA50:     c.EMA50,
		})
	}

	return d.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "timeframe"}, {Name: "timestamp"}},
		DoNothing: true,
	}).CreateInBatches(rows, 100).Error
}

// LatestCandle returns the newest closed candle for the pair, or nil when
// no data has been ingested yet.
func (d *Database) LatestCandle(symbol string, tf market.Timeframe) (*market.Candle, error) {
	var row Candle
	err := d.db.Where("symbol = ? AND timeframe = ?", symbol, string(tf)).
		Order("timestamp DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c := row.toMarket()
	return &c, nil
}

// MarkFakeout sets the fakeout annotation on one candle. The update is
// guarded on is_fakeout still being false, so a concurrent duplicate check
// cannot overwrite an existing annotation. Returns whether a row changed.
func (d *Database) MarkFakeout(symbol string, tf market.Timeframe, ts time.Time, typ market.FakeoutType, level float64) (bool, error) {
	res := d.db.Model(&Candle{}).
		Where("symbol = ? AND timeframe = ? AND timestamp = ? AND is_fakeout = ?",
			symbol, string(tf), ts, false).
		Updates(map[string]interface{}{
			"is_fakeout":    true,
			"fakeout_type":  string(typ),
			"fakeout_level": level,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RecentFakeouts lists annotated candles, newest first. Empty filter values
// match everything.
func (d *Database) RecentFakeouts(symbol string, tf market.Timeframe, typ market.FakeoutType, limit int) ([]market.Candle, error) {
	q := d.db.Where("is_fakeout = ?", true)
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}
	if tf != "" {
		q = q.Where("timeframe = ?", string(tf))
	}
	if typ != "" {
		q = q.Where("fakeout_type = ?", string(typ))
	}

	var rows []Candle
	if err := q.Order("timestamp DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toMarketCandles(rows), nil
}

// CandleCount returns the number of stored candles for the pair.
func (d *Database) CandleCount(symbol string, tf market.Timeframe) (int64, error) {
	var n int64
	err := d.db.Model(&Candle{}).
		Where("symbol = ? AND timeframe = ?", symbol, string(tf)).Count(&n).Error
	return n, err
}

// Level operations

// InsertLevels appends candidate levels to the store.
func (d *Database) InsertLevels(levels ...market.Level) error {
	if len(levels) == 0 {
		return nil
	}

	rows := make([]Level, 0, len(levels))
	for _, l := range levels {
		rows = append(rows, Level{
			Symbol:          l.Symbol,
			Bucket:          string(l.Bucket),
			Type:            string(l.Type),
			Value:           l.Value,
			SourceTimestamp: l.SourceTimestamp,
		})
	}
	return d.db.CreateInBatches(rows, 100).Error
}

// LevelsByTime returns the levels for a key ordered ascending by source
// timestamp (oldest first).
func (d *Database) LevelsByTime(symbol string, bucket market.Bucket, typ market.LevelType) ([]market.Level, error) {
	return d.listLevels(d.db, symbol, bucket, typ, "source_timestamp ASC")
}

// LevelsByValue returns the levels for a key ordered ascending by value.
func (d *Database) LevelsByValue(symbol string, bucket market.Bucket, typ market.LevelType) ([]market.Level, error) {
	return d.listLevels(d.db, symbol, bucket, typ, "value ASC")
}

// LevelCount returns the number of stored levels for a key.
func (d *Database) LevelCount(symbol string, bucket market.Bucket, typ market.LevelType) (int64, error) {
	var n int64
	err := d.db.Model(&Level{}).
		Where("symbol = ? AND bucket = ? AND type = ?", symbol, string(bucket), string(typ)).
		Count(&n).Error
	return n, err
}

// PruneLevels runs the filter engine's read-reduce-delete sequence inside a
// single transaction: it loads the key's levels ordered ascending by source
// timestamp, hands them to keep, and deletes every row whose id was not
// returned. When nothing is to be deleted, no delete statement is issued at
// all; an empty keep set is never rendered into a NOT IN clause.
func (d *Database) PruneLevels(symbol string, bucket market.Bucket, typ market.LevelType,
	keep func(ordered []market.Level) []uint) (kept, deleted int, err error) {

	err = d.db.Transaction(func(tx *gorm.DB) error {
		levels, err := d.listLevels(tx, symbol, bucket, typ, "source_timestamp ASC")
		if err != nil {
			return err
		}
		if len(levels) == 0 {
			return nil
		}

		keepIDs := keep(levels)
		kept = len(keepIDs)
		if len(levels)-kept == 0 {
			return nil
		}

		res := tx.Where("symbol = ? AND bucket = ? AND type = ? AND id NOT IN ?",
			symbol, string(bucket), string(typ), keepIDs).
			Delete(&Level{})
		if res.Error != nil {
			return res.Error
		}
		deleted = int(res.RowsAffected)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return kept, deleted, nil
}

func (d *Database) listLevels(tx *gorm.DB, symbol string, bucket market.Bucket, typ market.LevelType, order string) ([]market.Level, error) {
	var rows []Level
	err := tx.Where("symbol = ? AND bucket = ? AND type = ?", symbol, string(bucket), string(typ)).
		Order(order).Find(&rows).Error
	if err != nil {
		return nil, err
	}

	levels := make([]market.Level, 0, len(rows))
	for _, r := range rows {
		levels = append(levels, market.Level{
			ID:              r.ID,
			Symbol:          r.Symbol,
			Bucket:          market.Bucket(r.Bucket),
			Type:            market.LevelType(r.Type),
			Value:           r.Value,
			SourceTimestamp: r.SourceTimestamp,
		})
	}
	return levels, nil
}

// Conversions

func (c Candle) toMarket() market.Candle {
	return market.Candle{
		Symbol:       c.Symbol,
		Timeframe:    market.Timeframe(c.Timeframe),
		Timestamp:    c.Timestamp,
		Open:         c.Open,
		High:         c.High,
		Low:          c.Low,
		Close:        c.Close,
		Volume:       c.Volume,
		RSI8:         c.RSI8,
		EMA20:        c.EMA20,
		EMA50:        c.EMA50,
		IsFakeout:    c.IsFakeout,
		FakeoutType:  market.FakeoutType(c.FakeoutType),
		FakeoutLevel: c.FakeoutLevel,
	}
}

func toMarketCandles(rows []Candle) []market.Candle {
	out := make([]market.Candle, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toMarket())
	}
	return out
}
