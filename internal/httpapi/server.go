// Package httpapi serves the trigger endpoints external cron services call:
//
//	GET  /keep-alive   always "OK"
//	POST /handle-day   runs the daily jobs, optionally behind a bearer token
//	GET  /debug/pprof/ runtime profiles, only with pprof on and a token set
package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"housebot/internal/scheduler"
	"housebot/pkg/logx"
)

type Config struct {
	Addr            string // default ":8080"
	Token           string
	ShutdownTimeout time.Duration // default 10s
	Pprof           bool
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = ":8080"
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	return c
}

type Server struct {
	cfg    Config
	log    logx.Logger
	runDay func(ctx context.Context) error
	e      *echo.Echo
}

func New(cfg Config, runDay func(ctx context.Context) error, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{cfg: cfg.withDefaults(), log: log, runDay: runDay}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:     true,
		LogURIPath:    true,
		LogStatus:     true,
		LogLatency:    true,
		LogRequestID:  true,
		LogError:      true,
		HandleError:   true,
		LogValuesFunc: s.logRequest,
	}))

	e.GET("/keep-alive", s.keepAlive)
	e.POST("/handle-day", s.handleDay, s.auth())
	s.e = e
	s.mountPprof()
	return s
}

func (s *Server) mountPprof() {
	if !s.cfg.Pprof {
		return
	}
	if s.cfg.Token == "" {
		s.log.Warn("http.pprof ignored: requires http.token")
		return
	}
	g := s.e.Group("/debug/pprof", s.auth())
	g.GET("/", echo.WrapHandler(http.HandlerFunc(hpprof.Index)))
	g.GET("/cmdline", echo.WrapHandler(http.HandlerFunc(hpprof.Cmdline)))
	g.GET("/profile", echo.WrapHandler(http.HandlerFunc(hpprof.Profile)))
	g.GET("/symbol", echo.WrapHandler(http.HandlerFunc(hpprof.Symbol)))
	g.GET("/trace", echo.WrapHandler(http.HandlerFunc(hpprof.Trace)))
	g.GET("/:profile", func(c echo.Context) error {
		hpprof.Handler(c.Param("profile")).ServeHTTP(c.Response(), c.Request())
		return nil
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http listening", logx.String("addr", s.cfg.Addr))
		if err := s.e.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.e.Shutdown(sctx); err != nil {
		s.log.Warn("http shutdown", logx.Err(err))
		return err
	}
	s.log.Info("http stopped")
	return nil
}

func (s *Server) keepAlive(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleDay(c echo.Context) error {
	if s.runDay == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "daily run not configured")
	}
	err := s.runDay(c.Request().Context())
	switch {
	case errors.Is(err, scheduler.ErrBusy):
		return echo.NewHTTPError(http.StatusConflict, "daily run already in progress")
	case err != nil:
		s.log.Warn("daily run failed", logx.String("rid", c.Response().Header().Get(echo.HeaderXRequestID)), logx.Err(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "daily run failed")
	}
	return c.String(http.StatusOK, "OK")
}

// auth requires "Authorization: Bearer <token>" when a token is set.
func (s *Server) auth() echo.MiddlewareFunc {
	token := s.cfg.Token
	return echomw.KeyAuthWithConfig(echomw.KeyAuthConfig{
		Skipper:    func(echo.Context) bool { return token == "" },
		KeyLookup:  "header:" + echo.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(key string, c echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(token)) == 1, nil
		},
		ErrorHandler: func(err error, c echo.Context) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		},
	})
}

func (s *Server) logRequest(c echo.Context, v echomw.RequestLoggerValues) error {
	fields := []logx.Field{
		logx.String("method", v.Method),
		logx.String("path", v.URIPath),
		logx.Int("status", v.Status),
		logx.Duration("dur", v.Latency),
		logx.String("rid", v.RequestID),
	}
	if v.Error != nil {
		s.log.Warn("http request failed", append(fields, logx.Err(v.Error))...)
		return nil
	}
	s.log.Debug("http request", fields...)
	return nil
}
