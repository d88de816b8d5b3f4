// Package api exposes the read-only query API over the candle and level
// stores.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/levelwatch/internal/database"
	"github.com/web3guy0/levelwatch/internal/market"
)

// Server serves the JSON query endpoints.
type Server struct {
	db      *database.Database
	symbols []string
	srv     *http.Server
}

func NewServer(addr string, db *database.Database, symbols []string) *Server {
	s := &Server{db: db, symbols: symbols}

	r := mux.NewRouter()
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/fakeouts", s.handleFakeouts).Methods(http.MethodGet)
	r.HandleFunc("/api/levels", s.handleLevels).Methods(http.MethodGet)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start begins serving in the background.
func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.srv.Addr).Msg("Query API listening")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Query API stopped")
		}
	}()
}

// Stop shuts the server down.
func (s *Server) Stop() {
	s.srv.Close()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	latest := make(map[string]string)
	for _, symbol := range s.symbols {
		candle, err := s.db.LatestCandle(symbol, market.TF5m)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if candle != nil {
			latest[strings.ToLower(symbol)] = candle.Timestamp.Format(time.RFC3339)
		}
	}

	writeJSON(w, map[string]interface{}{
		"status":         "healthy",
		"latest_candles": latest,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleFakeouts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := strings.ToUpper(q.Get("symbol"))
	tf := market.Timeframe(q.Get("timeframe"))
	typ := market.FakeoutType(q.Get("type"))

	limit := 100
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	fakeouts, err := s.db.RecentFakeouts(symbol, tf, typ, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]map[string]interface{}, 0, len(fakeouts))
	for _, c := range fakeouts {
		out = append(out, map[string]interface{}{
			"symbol":        c.Symbol,
			"timeframe":     c.Timeframe,
			"timestamp":     c.Timestamp.Format(time.RFC3339),
			"open":          c.Open,
			"high":          c.High,
			"low":           c.Low,
			"close":         c.Close,
			"fakeout_type":  c.FakeoutType,
			"fakeout_level": c.FakeoutLevel,
		})
	}
	writeJSON(w, map[string]interface{}{"fakeouts": out, "count": len(out)})
}

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := strings.ToUpper(q.Get("symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	bucket := market.Bucket(q.Get("bucket"))
	if bucket == "" {
		bucket = market.BucketDaily
	}

	out := make(map[string][]map[string]interface{})
	for _, typ := range []market.LevelType{market.LevelHigh, market.LevelLow} {
		levels, err := s.db.LevelsByValue(symbol, bucket, typ)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		rows := make([]map[string]interface{}, 0, len(levels))
		for _, l := range levels {
			rows = append(rows, map[string]interface{}{
				"value":     l.Value,
				"timestamp": l.SourceTimestamp.Format(time.RFC3339),
			})
		}
		out[string(typ)] = rows
	}

	writeJSON(w, map[string]interface{}{
		"symbol": symbol,
		"bucket": bucket,
		"levels": out,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
