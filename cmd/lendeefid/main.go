package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"lendeefi/internal/config"
	"lendeefi/internal/domain"
	"lendeefi/internal/infra/crypto"
	"lendeefi/internal/infra/custodymem"
	"lendeefi/internal/infra/db"
	httpinfra "lendeefi/internal/infra/http"
	"lendeefi/internal/infra/loanmem"
	"lendeefi/internal/infra/merkle"
	"lendeefi/internal/infra/policyopa"
	"lendeefi/internal/infra/ratelimit"
	"lendeefi/internal/usecase"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("lendeefid exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	account, err := cfg.LedgerAccount()
	if err != nil {
		return err
	}

	var store domain.LedgerStore
	mode := "memory"
	if cfg.PostgresDSN != "" {
		dbStore, err := db.Open(cfg.PostgresDSN, logger)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer dbStore.Close()
		if err := dbStore.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate store: %w", err)
		}
		store = dbStore
		mode = "db"
	} else {
		logger.Warn("POSTGRES_DSN not set; loans are kept in memory")
		store = loanmem.New()
	}

	book := custodymem.New(account)
	if cfg.CustodySeedPath != "" {
		seed, err := custodymem.LoadSeed(cfg.CustodySeedPath)
		if err != nil {
			return err
		}
		if err := book.Apply(seed); err != nil {
			return fmt.Errorf("apply custody seed: %w", err)
		}
		logger.Info("custody seed applied", "path", cfg.CustodySeedPath)
	}

	var policy usecase.OriginationPolicy
	if cfg.OriginationPolicyPath != "" {
		engine, err := policyopa.NewEngineFromBundlePath(ctx, cfg.OriginationPolicyPath)
		if err != nil {
			return fmt.Errorf("load origination policy: %w", err)
		}
		logger.Info("origination policy loaded", "path", cfg.OriginationPolicyPath, "bundle_hash", engine.BundleHash())
		policy = engine
	}

	var limiter domain.RateLimiter
	if cfg.RateLimitRequests > 0 {
		if cfg.RedisAddr != "" {
			rl, err := ratelimit.DialRedis(ctx, ratelimit.RedisOptions{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}, nil)
			if err != nil {
				return fmt.Errorf("connect rate limit redis: %w", err)
			}
			defer rl.Close()
			limiter = rl
		} else {
			limiter = ratelimit.NewMemory(cfg.RateLimitMaxKeys, nil)
		}
	}

	hashes := crypto.NewService()
	ledger, err := usecase.NewLoanLedger(usecase.LedgerDeps{
		Store:     store,
		Custody:   book,
		Hasher:    hashes,
		Merkle:    &merkle.Service{},
		Recoverer: hashes,
		Policy:    policy,
		Logger:    logger,
	}, usecase.LedgerParams{
		Account:     account,
		FeeRateBps:  cfg.FeeRateBps,
		GraceWindow: cfg.GraceWindow,
	})
	if err != nil {
		return err
	}

	srv, err := httpinfra.NewServer(cfg, httpinfra.ServerDeps{
		Ledger:      ledger,
		RateLimiter: limiter,
		Logger:      logger,
		StoreMode:   mode,
	})
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
