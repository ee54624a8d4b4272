// Command server exposes the screening and backtesting core over HTTP.
// Candles come either inline with the request or from the ClickHouse candle
// store configured in the service config.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"rulebacktest/services/analysis"
	"rulebacktest/services/arrowexport"
	"rulebacktest/services/backtest"
	ch "rulebacktest/services/clickhouse"
	"rulebacktest/services/config"
	"rulebacktest/services/engine"
	"rulebacktest/services/rules"
	"rulebacktest/services/screener"
	"rulebacktest/services/series"
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := config.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	srv := newServer(cfg, logger)
	if store, err := ch.Open(cfg.ClickHouse, logger); err != nil {
		logger.Warn("candle store unavailable, inline bars only", zap.Error(err))
	} else {
		srv.store = store
		defer store.Close()
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	srv.routes(router)

	httpSrv := &http.Server{Addr: cfg.Listen, Handler: router}
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Listen))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpSrv.Shutdown(ctx)
}

// maxRecent bounds the outcomes kept for the download endpoints; the oldest
// job is dropped once the window is full.
const maxRecent = 128

type server struct {
	cfg    config.Config
	log    *zap.Logger
	store  *ch.Store
	mu     sync.Mutex
	recent map[string]*backtest.Outcome
	order  []string
}

func newServer(cfg config.Config, log *zap.Logger) *server {
	return &server{cfg: cfg, log: log, recent: make(map[string]*backtest.Outcome)}
}

func (s *server) remember(id string, outcome *backtest.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) >= maxRecent {
		delete(s.recent, s.order[0])
		s.order = s.order[1:]
	}
	s.order = append(s.order, id)
	s.recent[id] = outcome
}

func (s *server) routes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	api := r.Group("/api/v1")
	api.POST("/backtest", s.handleBacktest)
	api.POST("/screen", s.handleScreen)
	api.POST("/screen/batch", s.handleScreenBatch)
	api.GET("/symbols", s.handleSymbols)
	api.GET("/backtest/:id/equity.arrow", s.handleEquityArrow)
	api.GET("/backtest/:id/trades.arrow", s.handleTradesArrow)
}

type barJSON struct {
	Date       string             `json:"date"`
	Open       float64            `json:"open"`
	High       float64            `json:"high"`
	Low        float64            `json:"low"`
	Close      float64            `json:"close"`
	Volume     float64            `json:"volume"`
	Indicators map[string]float64 `json:"indicators,omitempty"`
}

type backtestRequest struct {
	Symbol             string        `json:"symbol"`
	From               string        `json:"from"`
	To                 string        `json:"to"`
	Bars               []barJSON     `json:"bars"`
	BuyRule            string        `json:"buy_rule"`
	SellRule           string        `json:"sell_rule"`
	Config             engine.Config `json:"config"`
	RiskFreeRate       float64       `json:"risk_free_rate"`
	TradingDaysPerYear int           `json:"trading_days_per_year"`
	BenchmarkName      string        `json:"benchmark_name"`
	Benchmark          []barJSON     `json:"benchmark"`
}

type screenRequest struct {
	Symbol string    `json:"symbol"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	Bars   []barJSON `json:"bars"`
	Rule   string    `json:"rule"`
}

type screenBatchRequest struct {
	Rule    string               `json:"rule"`
	Symbols []string             `json:"symbols"`
	From    string               `json:"from"`
	To      string               `json:"to"`
	Frames  map[string][]barJSON `json:"frames"`
}

func (s *server) handleBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Config == (engine.Config{}) {
		req.Config = s.cfg.Backtest
	}
	frame, err := s.resolveFrame(c, req.Symbol, req.From, req.To, req.Bars)
	if err != nil {
		s.respondError(c, err)
		return
	}

	jobID := uuid.New().String()
	start := time.Now()
	outcome, err := backtest.Run(frame, backtest.Request{
		BuyRule:            req.BuyRule,
		SellRule:           req.SellRule,
		Config:             req.Config,
		RiskFreeRate:       req.RiskFreeRate,
		TradingDaysPerYear: req.TradingDaysPerYear,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.log.Info("backtest complete",
		zap.String("job_id", jobID),
		zap.String("symbol", req.Symbol),
		zap.Int("bars", frame.Len()),
		zap.Int("trades", len(outcome.Trades)),
		zap.Duration("elapsed", time.Since(start)),
	)

	s.remember(jobID, outcome)

	body := gin.H{
		"job_id":       jobID,
		"statistics":   outcome.Statistics,
		"trades":       outcome.Trades,
		"equity_curve": outcome.EquityCurve,
	}
	if len(req.Benchmark) > 0 {
		cmp, err := s.compareBenchmark(outcome, req)
		if err != nil {
			s.respondError(c, err)
			return
		}
		body["benchmark"] = cmp
	}
	c.JSON(http.StatusOK, body)
}

// compareBenchmark aligns a benchmark close series sent with the request
// against the run's equity curve.
func (s *server) compareBenchmark(outcome *backtest.Outcome, req backtestRequest) (analysis.BenchmarkComparison, error) {
	dates := make([]time.Time, len(req.Benchmark))
	closes := make([]float64, len(req.Benchmark))
	for i, b := range req.Benchmark {
		t, err := parseDay(b.Date, time.Time{})
		if err != nil {
			return analysis.BenchmarkComparison{}, err
		}
		dates[i] = t
		closes[i] = b.Close
	}
	name := req.BenchmarkName
	if name == "" {
		name = "benchmark"
	}
	tradingDays := req.TradingDaysPerYear
	if tradingDays == 0 {
		tradingDays = analysis.DefaultTradingDaysPerYear
	}
	return analysis.CompareBenchmark(outcome.EquityCurve, dates, closes, name, tradingDays)
}

func (s *server) handleScreen(c *gin.Context) {
	var req screenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	frame, err := s.resolveFrame(c, req.Symbol, req.From, req.To, req.Bars)
	if err != nil {
		s.respondError(c, err)
		return
	}
	res, err := screener.Screen(frame, req.Rule)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *server) handleEquityArrow(c *gin.Context) {
	outcome, ok := s.lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown job id"})
		return
	}
	payload, err := arrowexport.EncodeEquityCurve(outcome.EquityCurve)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/vnd.apache.arrow.stream", payload)
}

func (s *server) handleTradesArrow(c *gin.Context) {
	outcome, ok := s.lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown job id"})
		return
	}
	payload, err := arrowexport.EncodeTrades(outcome.Trades)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/vnd.apache.arrow.stream", payload)
}

// handleScreenBatch screens many symbols in one call, either over inline
// frames or over the candle store (all known symbols when none are named).
func (s *server) handleScreenBatch(c *gin.Context) {
	var req screenBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	frames, err := s.resolveBatch(c, req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	results, err := screener.ScreenMany(frames, req.Rule, s.cfg.Screen.Workers, s.log)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rule": req.Rule, "results": results})
}

func (s *server) resolveBatch(c *gin.Context, req screenBatchRequest) (map[string]*series.Frame, error) {
	if len(req.Frames) > 0 {
		frames := make(map[string]*series.Frame, len(req.Frames))
		for sym, bars := range req.Frames {
			f, err := frameFromJSON(bars)
			if err != nil {
				return nil, series.DataError{Msg: fmt.Sprintf("%s: %v", sym, err)}
			}
			frames[sym] = f
		}
		return frames, nil
	}
	if s.store == nil {
		return nil, series.DataError{Msg: "no inline frames and no candle store configured"}
	}
	symbols := req.Symbols
	if len(symbols) == 0 {
		var err error
		if symbols, err = s.store.Symbols(c.Request.Context()); err != nil {
			return nil, err
		}
	}
	fromT, err := parseDay(req.From, time.Time{})
	if err != nil {
		return nil, err
	}
	toT, err := parseDay(req.To, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	frames := make(map[string]*series.Frame, len(symbols))
	for _, sym := range symbols {
		f, err := s.store.Candles(c.Request.Context(), sym, fromT, toT)
		if err != nil {
			// one empty or broken table must not sink the batch
			s.log.Warn("batch load failed", zap.String("symbol", sym), zap.Error(err))
			continue
		}
		frames[sym] = f
	}
	return frames, nil
}

func (s *server) handleSymbols(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no candle store configured"})
		return
	}
	symbols, err := s.store.Symbols(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbols": symbols})
}

func (s *server) lookup(id string) (*backtest.Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	outcome, ok := s.recent[id]
	return outcome, ok
}

// resolveFrame uses inline bars when given, otherwise loads from the candle
// store.
func (s *server) resolveFrame(c *gin.Context, symbol, from, to string, bars []barJSON) (*series.Frame, error) {
	if len(bars) > 0 {
		return frameFromJSON(bars)
	}
	if s.store == nil {
		return nil, series.DataError{Msg: "no inline bars and no candle store configured"}
	}
	if symbol == "" {
		return nil, series.DataError{Msg: "symbol required when loading from the candle store"}
	}
	fromT, err := parseDay(from, time.Time{})
	if err != nil {
		return nil, err
	}
	toT, err := parseDay(to, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return s.store.Candles(c.Request.Context(), symbol, fromT, toT)
}

func parseDay(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, series.DataError{Msg: "bad date " + s}
	}
	return t, nil
}

func frameFromJSON(bars []barJSON) (*series.Frame, error) {
	parsed := make([]series.Bar, len(bars))
	names := map[string]bool{}
	for i, b := range bars {
		t, err := time.Parse("2006-01-02", b.Date)
		if err != nil {
			if t, err = time.Parse(time.RFC3339, b.Date); err != nil {
				return nil, series.DataError{Msg: "bad bar date " + b.Date}
			}
		}
		if i > 0 && !parsed[i-1].Date.Before(t.UTC()) {
			return nil, series.DataError{Msg: "bars out of date order at " + b.Date}
		}
		parsed[i] = series.Bar{Date: t.UTC(), Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
		for name := range b.Indicators {
			names[name] = true
		}
	}
	frame, err := series.FromBars(parsed)
	if err != nil {
		return nil, err
	}
	for name := range names {
		col := make([]float64, len(bars))
		for i, b := range bars {
			if v, ok := b.Indicators[name]; ok {
				col[i] = v
			} else {
				col[i] = math.NaN()
			}
		}
		if err := frame.SetColumn(name, col); err != nil {
			return nil, err
		}
	}
	return frame, nil
}

// respondError maps the error taxonomy onto HTTP statuses.
func (s *server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var (
		syntaxErr rules.SyntaxError
		evalErr   rules.EvaluationError
		cfgErr    engine.ConfigError
		dataErr   series.DataError
	)
	switch {
	case errors.As(err, &syntaxErr), errors.As(err, &cfgErr), errors.As(err, &dataErr):
		status = http.StatusBadRequest
	case errors.As(err, &evalErr):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, analysis.ErrInsufficientOverlap):
		status = http.StatusConflict
	}
	s.log.Warn("request failed", zap.Error(err))
	c.JSON(status, gin.H{"error": err.Error()})
}
