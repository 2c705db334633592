package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"lendeefi/internal/config"
	"lendeefi/internal/domain"
	"lendeefi/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg    config.Config
	r      *gin.Engine
	ledger *usecase.LoanLedger
	logger *slog.Logger
	mode   string

	rateLimiter         domain.RateLimiter
	rateLimitRequests   int
	rateLimitWindow     time.Duration
	rateLimitFailClosed bool
}

type ServerDeps struct {
	Ledger      *usecase.LoanLedger
	RateLimiter domain.RateLimiter
	Logger      *slog.Logger
	// StoreMode is reported by /healthz: "db" or "memory".
	StoreMode string
}

func NewServer(cfg config.Config, deps ServerDeps) (*Server, error) {
	if deps.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mode := deps.StoreMode
	if mode == "" {
		mode = "memory"
	}

	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:                 cfg,
		r:                   r,
		ledger:              deps.Ledger,
		logger:              logger,
		mode:                mode,
		rateLimiter:         deps.RateLimiter,
		rateLimitRequests:   cfg.RateLimitRequests,
		rateLimitWindow:     cfg.RateLimitWindow(),
		rateLimitFailClosed: cfg.RateLimitFailClosed,
	}
	s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.r
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": s.mode, "auth_mode": s.authMode()})
	})

	v1 := s.r.Group("/v1")
	{
		v1.GET("/loans", s.handleListLoans)
		v1.POST("/loans", s.handleCreateLoan)
		v1.GET("/loans/:claim_hash", s.handleGetLoan)
		v1.GET("/loans/:claim_hash/events", s.handleListEvents)
		v1.POST("/loans/:claim_hash/repay", s.handleRepayLoan)
		v1.POST("/loans/:claim_hash/default", s.handleDefaultLoan)

		v1.GET("/roots/:root", s.handleGetRoot)
		v1.POST("/roots/:root/deactivate", s.handleDeactivateRoot)
	}

	s.r.NoRoute(s.handleNoRoute)
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
