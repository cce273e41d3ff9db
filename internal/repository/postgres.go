// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrDonationNotFound возвращается, если пожертвование не найдено.
	ErrDonationNotFound = errors.New("donation not found")
	// ErrDonationTypeNotFound возвращается, если категория пожертвования не найдена.
	ErrDonationTypeNotFound = errors.New("donation type not found")
	// ErrIftarDateNotFound возвращается, если день отсутствует в календаре ифтаров.
	ErrIftarDateNotFound = errors.New("iftar date not found")
	// ErrDuplicateReference возвращается при повторном сохранении платёжного намерения.
	ErrDuplicateReference = errors.New("payment reference already recorded")
)

const (
	connectTimeout = 10 * time.Second
	retryCap       = 2 * time.Second
	retryAttempts  = 3
)

var retryBase = 200 * time.Millisecond

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
	db   *sql.DB
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	cfg.MaxConnIdleTime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open donations pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("reach donations database: %w", err)
	}

	repo := &PostgresRepository{pool: pool, db: stdlib.OpenDBFromPool(pool)}
	if err := repo.migrate(ctx); err != nil {
		_ = repo.Close()
		return nil, err
	}

	return repo, nil
}

// NewWithDB создаёт репозиторий поверх готового подключения без запуска миграций.
func NewWithDB(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// migrate накатывает схему пожертвований и календаря ифтаров.
func (r *PostgresRepository) migrate(ctx context.Context) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, r.db, "migrations"); err != nil {
		return fmt.Errorf("migrate donations schema: %w", err)
	}
	return nil
}

// withRetry повторяет fn при конфликтах сериализации и обрывах соединения.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	b := retry.NewExponential(retryBase)
	b = retry.WithMaxRetries(retryAttempts, retry.WithCappedDuration(retryCap, b))

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn()
		if err != nil && isRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.SerializationFailure,
			pgErr.Code == pgerrcode.DeadlockDetected,
			pgerrcode.IsConnectionException(pgErr.Code):
			return true
		}
		return false
	}

	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	var err error
	if r.db != nil {
		err = r.db.Close()
	}
	if r.pool != nil {
		r.pool.Close()
	}
	return err
}
