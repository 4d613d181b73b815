// Package httpapi serves the read-only JSON API over the canonical
// store: ranked items, cycle run history, and store-wide stats.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/raphaelschols/ai-intel-hub/internal/db"
	"github.com/raphaelschols/ai-intel-hub/internal/feed"
	"github.com/raphaelschols/ai-intel-hub/internal/globaltime"
)

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// ActiveWindow scopes the stats endpoint's active-item count.
	ActiveWindow time.Duration
}

type Server struct {
	pool   *db.Pool
	store  *db.Store
	logger zerolog.Logger
	opts   Options
}

func NewServer(pool *db.Pool, store *db.Store, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8090
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &Server{
		pool:   pool,
		store:  store,
		logger: logger,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
			ActiveWindow:    opts.ActiveWindow,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	api := e.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/items", s.handleItems)
	api.GET("/runs", s.handleRuns)
	api.GET("/stats", s.handleStats)

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("api server stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.pool.Ping(c.Request().Context()); err != nil {
		s.logger.Error().Err(err).Msg("health check database ping failed")
		return internalError(c, "Database unavailable")
	}
	return success(c, map[string]any{
		"service": "ai-intel-hub",
		"time":    globaltime.UTC(),
	})
}

type itemView struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	SourceName      string    `json:"source_name"`
	Category        string    `json:"category"`
	PublishedAt     time.Time `json:"published_at"`
	URL             string    `json:"url"`
	CitationCount   int       `json:"citation_count"`
	Keywords        []string  `json:"keywords,omitempty"`
	ImportanceScore float64   `json:"importance_score"`
	FirstSeenAt     time.Time `json:"first_seen_at"`
	LastSeenAt      time.Time `json:"last_seen_at"`
	Observations    int       `json:"observations"`
	Sources         []string  `json:"sources,omitempty"`
}

func (s *Server) handleItems(c echo.Context) error {
	limit, err := parseLimit(c.QueryParam("limit"))
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error(), nil)
	}

	filter := db.ItemFilter{
		Category: strings.TrimSpace(c.QueryParam("category")),
		Source:   strings.TrimSpace(c.QueryParam("source")),
		Limit:    limit,
	}
	if raw := strings.TrimSpace(c.QueryParam("min_score")); raw != "" {
		minScore, err := strconv.ParseFloat(raw, 64)
		if err != nil || minScore < 0 {
			return fail(c, http.StatusBadRequest, "min_score must be a non-negative number", nil)
		}
		filter.MinScore = minScore
	}

	items, err := s.store.ListItems(c.Request().Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("query items failed")
		return internalError(c, "Failed to load items")
	}

	views := make([]itemView, 0, len(items))
	for _, item := range items {
		views = append(views, toItemView(item))
	}
	return success(c, map[string]any{
		"items": views,
		"count": len(views),
	})
}

func (s *Server) handleRuns(c echo.Context) error {
	limit, err := parseLimit(c.QueryParam("limit"))
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error(), nil)
	}

	runs, err := s.store.ListRuns(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("query runs failed")
		return internalError(c, "Failed to load runs")
	}
	return success(c, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.store.Stats(c.Request().Context(), s.opts.ActiveWindow)
	if err != nil {
		s.logger.Error().Err(err).Msg("query stats failed")
		return internalError(c, "Failed to load stats")
	}
	return success(c, stats)
}

func parseLimit(raw string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	return limit, nil
}

func toItemView(item feed.Item) itemView {
	return itemView{
		ID:              item.ID,
		Title:           item.Title,
		SourceName:      item.SourceName,
		Category:        item.Category,
		PublishedAt:     item.PublishedAt,
		URL:             item.URL,
		CitationCount:   item.CitationCount,
		Keywords:        item.Keywords,
		ImportanceScore: item.ImportanceScore,
		FirstSeenAt:     item.FirstSeenAt,
		LastSeenAt:      item.LastSeenAt,
		Observations:    item.Observations,
		Sources:         item.Sources,
	}
}
