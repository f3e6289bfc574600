package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"horse.fit/portalerts/internal/db"
	"horse.fit/portalerts/internal/globaltime"
	"horse.fit/portalerts/internal/monitor"
)

const (
	defaultPostsLimit = 50
	maxPostsLimit     = 200

	cronKeyHeader       = "X-Cron-Key"
	webhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"
)

// Store is the read side of the database used by the API.
type Store interface {
	Ping(ctx context.Context) error
	QueryStats(ctx context.Context, dayStart, dayEnd time.Time) (*db.MonitorStats, error)
	GetEntityByUUID(ctx context.Context, entityUUID string) (*db.Entity, error)
	ListEntityPosts(ctx context.Context, entityID int64, minScore int, limit int) ([]db.PostListItem, error)
	GetSubscriberByChatID(ctx context.Context, chatID int64) (*db.SubscriberStatus, error)
}

// Runner executes one monitoring invocation.
type Runner interface {
	Run(ctx context.Context) (monitor.RunSummary, error)
}

// Replier answers bot commands.
type Replier interface {
	Reply(ctx context.Context, chatID int64, text string) error
}

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// CronSecret guards the trigger endpoint. Empty disables the endpoint.
	CronSecret string
	// WebhookSecret is compared with the Telegram secret token header when set.
	WebhookSecret string
	// RunTimeout bounds one triggered invocation.
	RunTimeout time.Duration
}

type Server struct {
	store   Store
	runner  Runner
	replier Replier
	logger  zerolog.Logger
	opts    Options
}

type entityPostsResponse struct {
	EntityUUID string            `json:"entity_uuid"`
	Name       string            `json:"name"`
	Symbol     string            `json:"symbol"`
	MinScore   int               `json:"min_score"`
	Limit      int               `json:"limit"`
	Items      []db.PostListItem `json:"items"`
}

// NewServer builds the API server. replier may be nil when no bot token is configured;
// the webhook then acknowledges updates without answering.
func NewServer(store Store, runner Runner, replier Replier, logger zerolog.Logger, opts Options) *Server {
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
		writeTimeout = 5 * time.Minute
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	runTimeout := opts.RunTimeout
	if runTimeout <= 0 {
		runTimeout = 4 * time.Minute
	}

	return &Server{
		store:   store,
		runner:  runner,
		replier: replier,
		logger:  logger,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
			CronSecret:      opts.CronSecret,
			WebhookSecret:   opts.WebhookSecret,
			RunTimeout:      runTimeout,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.store == nil || s.runner == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.newRouter()

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

	s.logger.Info().Str("addr", addr).Msg("portalerts api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("portalerts api server stopped")
	return nil
}

func (s *Server) newRouter() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := s.logger.Info()
			msg := "http request"
			if v.Error != nil {
				event = s.logger.Error().Err(v.Error)
				msg = "http request failed"
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg(msg)
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/stats", s.handleStats)
	api.GET("/entities/:entity_uuid/posts", s.handleEntityPosts)
	api.POST("/monitor/run", s.handleMonitorRun)
	api.POST("/telegram/webhook", s.handleTelegramWebhook)

	return e
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
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
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	database := "ok"
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("health check database ping failed")
		database = "unavailable"
	}
	return success(c, map[string]any{
		"service":  "portalerts",
		"database": database,
		"time":     globaltime.UTC(),
	})
}

func (s *Server) handleStats(c echo.Context) error {
	dayStart, dayEnd := globaltime.Today()
	stats, err := s.store.QueryStats(c.Request().Context(), dayStart, dayEnd)
	if err != nil {
		s.logger.Error().Err(err).Msg("query stats failed")
		return internalError(c, "Failed to load stats")
	}
	return success(c, stats)
}

func (s *Server) handleEntityPosts(c echo.Context) error {
	entityUUID := strings.TrimSpace(c.Param("entity_uuid"))
	if _, err := uuid.Parse(entityUUID); err != nil {
		return failValidation(c, map[string]string{"entity_uuid": "must be a UUID"})
	}
	minScore, err := parsePositiveInt(c.QueryParam("min_score"), 0, 0, 10)
	if err != nil {
		return failValidation(c, map[string]string{"min_score": err.Error()})
	}
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultPostsLimit, 1, maxPostsLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	ctx := c.Request().Context()
	entity, err := s.store.GetEntityByUUID(ctx, entityUUID)
	if err != nil {
		if db.IsNoRows(err) {
			return failNotFound(c, "Entity not found")
		}
		s.logger.Error().Err(err).Str("entity_uuid", entityUUID).Msg("query entity failed")
		return internalError(c, "Failed to load entity")
	}

	items, err := s.store.ListEntityPosts(ctx, entity.EntityID, minScore, limit)
	if err != nil {
		s.logger.Error().Err(err).Int64("entity_id", entity.EntityID).Msg("query entity posts failed")
		return internalError(c, "Failed to load posts")
	}

	return success(c, entityPostsResponse{
		EntityUUID: entity.EntityUUID,
		Name:       entity.Name,
		Symbol:     entity.Symbol,
		MinScore:   minScore,
		Limit:      limit,
		Items:      items,
	})
}

func (s *Server) handleMonitorRun(c echo.Context) error {
	if !s.cronKeyValid(c.Request().Header.Get(cronKeyHeader)) {
		return failUnauthorized(c)
	}

	// The run outlives a dropped client connection so stamps and claims land.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), s.opts.RunTimeout)
	defer cancel()

	summary, err := s.runner.Run(ctx)
	if err != nil {
		// The caller still gets whatever the run counted.
		s.logger.Error().Err(err).Msg("triggered monitor run failed")
	}
	return success(c, summary)
}

func (s *Server) cronKeyValid(provided string) bool {
	if s.opts.CronSecret == "" || provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(s.opts.CronSecret)) == 1
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}
