package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/tripweave/tripweave/internal/app/models"
	"github.com/tripweave/tripweave/internal/observability/metrics"
)

// PgxIface is the slice of pgxpool.Pool the repository uses. pgxmock
// satisfies it in tests.
type PgxIface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// User is an account row.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Repository persists user accounts.
type Repository interface {
	CreateUser(ctx context.Context, email, username, passwordHash string) (uuid.UUID, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*User, error)
}

var _ Repository = (*PostgresRepository)(nil)

type PostgresRepository struct {
	db     PgxIface
	logger *zap.Logger
}

func NewPostgresRepository(db PgxIface, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logger}
}

func (r *PostgresRepository) CreateUser(ctx context.Context, email, username, passwordHash string) (uuid.UUID, error) {
	startTime := time.Now()
	defer r.observe(ctx, startTime)

	var id uuid.UUID
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (email, username, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		email, username, passwordHash,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return uuid.Nil, models.ErrConflict
		}
		metrics.Get().DBQueryErrorsTotal.Add(ctx, 1)
		r.logger.Error("Failed to create user", zap.Error(err))
		return uuid.Nil, fmt.Errorf("failed to create user: %w", err)
	}

	return id, nil
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	startTime := time.Now()
	defer r.observe(ctx, startTime)

	return r.scanUser(r.db.QueryRow(ctx,
		`SELECT id, email, username, password_hash, created_at
		 FROM users WHERE email = $1`,
		email,
	))
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, userID uuid.UUID) (*User, error) {
	startTime := time.Now()
	defer r.observe(ctx, startTime)

	return r.scanUser(r.db.QueryRow(ctx,
		`SELECT id, email, username, password_hash, created_at
		 FROM users WHERE id = $1`,
		userID,
	))
}

func (r *PostgresRepository) scanUser(row pgx.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Email, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}

func (r *PostgresRepository) observe(ctx context.Context, startTime time.Time) {
	metrics.Get().DBQueryDurationSeconds.Record(ctx, time.Since(startTime).Seconds())
}
