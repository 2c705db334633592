package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"lendeefi/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var errDBUnavailable = errors.New("db unavailable")

// Store is the Postgres LedgerStore. A Store returned to a WithTx callback
// is bound to that transaction; nested WithTx calls join it.
type Store struct {
	db   *gorm.DB
	inTx bool
}

func Open(dsn string, log *slog.Logger) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if log != nil {
		log.Info("connected to postgres")
	}
	return New(gdb), nil
}

func New(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// Migrate creates or updates the ledger tables.
func (s *Store) Migrate(ctx context.Context) error {
	if s.db == nil {
		return errDBUnavailable
	}
	if err := s.db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Loans() domain.LoanRepository       { return &LoanRepository{db: s.db, lock: s.inTx} }
func (s *Store) Roots() domain.RootRepository       { return &RootRepository{db: s.db} }
func (s *Store) Events() domain.LoanEventRepository { return &LoanEventRepository{db: s.db} }

func (s *Store) WithTx(ctx context.Context, fn func(tx domain.LedgerStore) error) error {
	if s.db == nil {
		return errDBUnavailable
	}
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, inTx: true})
	})
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ domain.LedgerStore = (*Store)(nil)
