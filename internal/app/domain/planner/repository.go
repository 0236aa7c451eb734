package planner

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

// Repository persists planning sessions and LLM interactions.
type Repository interface {
	CreateSession(ctx context.Context, session models.TripSession) (uuid.UUID, error)
	UpdateSessionStatus(ctx context.Context, sessionID uuid.UUID, status string) error
	SaveInteraction(ctx context.Context, interaction models.LlmInteraction) (uuid.UUID, error)
	GetSessionInteractions(ctx context.Context, sessionID uuid.UUID) ([]models.LlmInteraction, error)
}

var _ Repository = (*PostgresRepository)(nil)

type PostgresRepository struct {
	db     PgxIface
	logger *zap.Logger
}

func NewPostgresRepository(db PgxIface, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logger}
}

func (r *PostgresRepository) CreateSession(ctx context.Context, session models.TripSession) (uuid.UUID, error) {
	startTime := time.Now()
	defer r.observe(ctx, startTime)

	var userID any
	if session.UserID != uuid.Nil {
		userID = session.UserID
	}

	var id uuid.UUID
	err := r.db.QueryRow(ctx,
		`INSERT INTO trip_sessions (user_id, query, destination, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		userID, session.Query, session.Destination, session.Status,
	).Scan(&id)
	if err != nil {
		metrics.Get().DBQueryErrorsTotal.Add(ctx, 1)
		r.logger.Error("Failed to create trip session", zap.Error(err))
		return uuid.Nil, fmt.Errorf("failed to create trip session: %w", err)
	}

	return id, nil
}

func (r *PostgresRepository) UpdateSessionStatus(ctx context.Context, sessionID uuid.UUID, status string) error {
	startTime := time.Now()
	defer r.observe(ctx, startTime)

	tag, err := r.db.Exec(ctx,
		`UPDATE trip_sessions SET status = $1 WHERE id = $2`,
		status, sessionID,
	)
	if err != nil {
		metrics.Get().DBQueryErrorsTotal.Add(ctx, 1)
		return fmt.Errorf("failed to update session status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (r *PostgresRepository) SaveInteraction(ctx context.Context, interaction models.LlmInteraction) (uuid.UUID, error) {
	startTime := time.Now()
	defer r.observe(ctx, startTime)

	var userID any
	if interaction.UserID != uuid.Nil {
		userID = interaction.UserID
	}

	var id uuid.UUID
	err := r.db.QueryRow(ctx,
		`INSERT INTO llm_interactions (user_id, session_id, prompt, response_text, model_used, latency_ms, destination)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		userID, interaction.SessionID, interaction.Prompt, interaction.ResponseText,
		interaction.ModelUsed, interaction.LatencyMs, interaction.Destination,
	).Scan(&id)
	if err != nil {
		metrics.Get().DBQueryErrorsTotal.Add(ctx, 1)
		r.logger.Error("Failed to save LLM interaction",
			zap.String("session_id", interaction.SessionID.String()),
			zap.Error(err))
		return uuid.Nil, fmt.Errorf("failed to save LLM interaction: %w", err)
	}

	return id, nil
}

func (r *PostgresRepository) GetSessionInteractions(ctx context.Context, sessionID uuid.UUID) ([]models.LlmInteraction, error) {
	startTime := time.Now()
	defer r.observe(ctx, startTime)

	rows, err := r.db.Query(ctx,
		`SELECT id, COALESCE(user_id, '00000000-0000-0000-0000-000000000000'::uuid), session_id,
		        prompt, response_text, model_used, latency_ms, destination, created_at
		 FROM llm_interactions
		 WHERE session_id = $1
		 ORDER BY created_at`,
		sessionID,
	)
	if err != nil {
		metrics.Get().DBQueryErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var interactions []models.LlmInteraction
	for rows.Next() {
		var i models.LlmInteraction
		if err := rows.Scan(&i.ID, &i.UserID, &i.SessionID, &i.Prompt, &i.ResponseText,
			&i.ModelUsed, &i.LatencyMs, &i.Destination, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		interactions = append(interactions, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading interactions: %w", err)
	}

	if len(interactions) == 0 {
		return nil, models.ErrNotFound
	}

	return interactions, nil
}

func (r *PostgresRepository) observe(ctx context.Context, startTime time.Time) {
	metrics.Get().DBQueryDurationSeconds.Record(ctx, time.Since(startTime).Seconds())
}

// IsNotFound reports whether err is the repository's not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}
