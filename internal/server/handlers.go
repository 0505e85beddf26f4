package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"marketnexus/internal/engine"
	"marketnexus/internal/market"
	"marketnexus/internal/watchlist"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Boundary limits. Anything outside is clamped or rejected before the engine
// sees it.
const (
	defaultCandleLimit = 100
	defaultHistoryDays = 30
	minHistoryDays     = 7
	maxHistoryDays     = 365
	maxBatchSymbols    = 50
)

var allowedIntervals = map[string]struct{}{
	"1m": {}, "5m": {}, "15m": {}, "30m": {},
	"1h": {}, "4h": {}, "1d": {}, "1w": {},
}

func (s *Server) handleQuote(c *gin.Context) {
	symbol := c.Param("symbol")
	q, err := s.engine.GetQuote(c.Request.Context(), symbol)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidSymbol) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol"})
			return
		}
		s.logger.Error("quote handler failed", zap.String("symbol", symbol), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "quote unavailable"})
		return
	}
	c.JSON(http.StatusOK, q)
}

func (s *Server) handleQuotes(c *gin.Context) {
	raw := c.Query("symbols")
	if strings.TrimSpace(raw) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbols query parameter required"})
		return
	}
	symbols := strings.Split(raw, ",")
	if len(symbols) > maxBatchSymbols {
		symbols = symbols[:maxBatchSymbols]
	}

	quotes, err := s.engine.GetQuotes(c.Request.Context(), symbols)
	if err != nil {
		s.logger.Error("batch quotes handler failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "quotes unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"quotes": quotes})
}

func (s *Server) handleCandles(c *gin.Context) {
	symbol := c.Param("symbol")

	interval := c.DefaultQuery("interval", "5m")
	if _, ok := allowedIntervals[interval]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported interval"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultCandleLimit)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
		return
	}

	set, err := s.engine.GetCandles(c.Request.Context(), symbol, interval, limit)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidSymbol) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol"})
			return
		}
		s.logger.Error("candles handler failed", zap.String("symbol", symbol), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "candles unavailable"})
		return
	}
	c.JSON(http.StatusOK, set)
}

func (s *Server) handleHistory(c *gin.Context) {
	symbol := c.Param("symbol")

	days, err := strconv.Atoi(c.DefaultQuery("days", strconv.Itoa(defaultHistoryDays)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be an integer"})
		return
	}
	if days < minHistoryDays {
		days = minHistoryDays
	}
	if days > maxHistoryDays {
		days = maxHistoryDays
	}

	points, err := s.engine.GetHistory(c.Request.Context(), symbol, days)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidSymbol) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol"})
			return
		}
		s.logger.Error("history handler failed", zap.String("symbol", symbol), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "history unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": market.Normalize(symbol), "history": points})
}

func (s *Server) handleIndices(c *gin.Context) {
	overview, err := s.engine.GetMarketIndices(c.Request.Context())
	if err != nil {
		s.logger.Error("indices handler failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "indices unavailable"})
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (s *Server) handleLedger(c *gin.Context) {
	var in market.LedgerInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ledger payload"})
		return
	}
	if in.Income < 0 || in.PlannedBudget < 0 || in.ActualExpenses < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ledger values must be non-negative"})
		return
	}
	c.JSON(http.StatusOK, engine.CalculateSafeToSpend(in))
}

func (s *Server) handleHealth(c *gin.Context) {
	stats := s.engine.CacheStats()
	payload := gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"cache":     stats,
		"inflight":  s.engine.InflightFetches(),
	}
	if s.watchlist != nil {
		payload["watchlist_db"] = s.watchlist.IsHealthy(c.Request.Context())
	}
	c.JSON(http.StatusOK, payload)
}

func (s *Server) handleWatchlistGet(c *gin.Context) {
	if s.watchlist == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "watchlist storage not configured"})
		return
	}
	symbols, err := s.watchlist.List(c.Request.Context())
	if err != nil {
		s.logger.Error("watchlist list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "watchlist unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbols": symbols})
}

func (s *Server) handleWatchlistAdd(c *gin.Context) {
	if s.watchlist == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "watchlist storage not configured"})
		return
	}
	symbol := c.Param("symbol")
	if err := s.watchlist.Add(c.Request.Context(), symbol); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"symbol": market.Normalize(symbol)})
}

func (s *Server) handleWatchlistRemove(c *gin.Context) {
	if s.watchlist == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "watchlist storage not configured"})
		return
	}
	symbol := c.Param("symbol")
	if err := s.watchlist.Remove(c.Request.Context(), symbol); err != nil {
		if errors.Is(err, watchlist.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "symbol not tracked"})
			return
		}
		s.logger.Error("watchlist remove failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "watchlist unavailable"})
		return
	}
	c.Status(http.StatusNoContent)
}
