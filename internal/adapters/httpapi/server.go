package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bnema/marketwin/internal/adapters/metrics"
	"github.com/bnema/marketwin/internal/application"
	"github.com/bnema/marketwin/internal/domain"
	"github.com/bnema/marketwin/internal/logger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const shutdownTimeout = 10 * time.Second

type Deps struct {
	Accounts  *application.AccountService
	Evaluator *application.Evaluator
	Registry  *application.ConnectionRegistry
	Gateway   *application.Gateway
	Adapter   *application.DispatchAdapter
}

type Server struct {
	echo      *echo.Echo
	deps      Deps
	jwtSecret string
	now       func() time.Time
	log       logger.Logger
	metrics   *metrics.Metrics
	limits    map[domain.PlanID]PlanLimit
}

type Option func(*Server)

func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics instruments every route and serves GET /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

func WithPlanLimits(limits map[domain.PlanID]PlanLimit) Option {
	return func(s *Server) { s.limits = limits }
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func New(deps Deps, jwtSecret string, opts ...Option) (*Server, error) {
	if jwtSecret == "" {
		return nil, errors.New("http.jwt_secret must be set to serve the API")
	}

	s := &Server{
		echo:      echo.New(),
		deps:      deps,
		jwtSecret: jwtSecret,
		now:       time.Now,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Validator = &requestValidator{validate: validator.New()}
	s.echo.HTTPErrorHandler = s.handleError

	s.routes()

	return s, nil
}

func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) routes() {
	e := s.echo

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			s.log.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency.String())
			return nil
		},
	}))
	if s.metrics != nil {
		e.Use(s.metrics.Middleware())
		e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	limiter := NewPlanRateLimiter(s.limits, func(ctx context.Context, id domain.AccountID) (domain.PlanID, error) {
		account, err := s.deps.Accounts.GetAccount(ctx, id)
		if err != nil {
			return "", err
		}
		return account.Plan(), nil
	})

	v1 := e.Group("/v1", s.requireToken())
	v1.POST("/dispatch/preview", s.previewDispatch)
	v1.GET("/accounts", s.listAccounts, requireAdmin)
	v1.POST("/accounts", s.createAccount, requireAdmin)

	account := v1.Group("/accounts/:id", requireAccountAccess, limiter.Middleware())
	account.GET("", s.getAccount)
	account.PUT("/subscription", s.setSubscription, requireAdmin)
	account.GET("/summary", s.planSummary)
	account.GET("/entitlements/:feature", s.checkEntitlement)
	account.POST("/features/:feature", s.useFeature)
	account.POST("/posts", s.publish)
	account.GET("/connections", s.connectionStatus)
	account.PUT("/connections/:platform", s.connect)
	account.DELETE("/connections/:platform", s.disconnect)
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http api listening", "addr", addr)
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	s.log.Info("http api stopped")

	return nil
}
