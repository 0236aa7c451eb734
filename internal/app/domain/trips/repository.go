package trips

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
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

// Repository persists saved itineraries.
type Repository interface {
	Save(ctx context.Context, trip models.SavedTrip) (uuid.UUID, error)
	Get(ctx context.Context, userID, tripID uuid.UUID) (*models.SavedTrip, error)
	List(ctx context.Context, filter models.TripsFilter) ([]models.SavedTrip, error)
	Delete(ctx context.Context, userID, tripID uuid.UUID) error
}

var _ Repository = (*PostgresRepository)(nil)

type PostgresRepository struct {
	db     PgxIface
	logger *zap.Logger
	sb     sq.StatementBuilderType
}

func NewPostgresRepository(db PgxIface, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{
		db:     db,
		logger: logger,
		sb:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *PostgresRepository) Save(ctx context.Context, trip models.SavedTrip) (uuid.UUID, error) {
	startTime := time.Now()
	defer r.observe(ctx, startTime)

	itineraryJSON, err := json.Marshal(trip.Itinerary)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal itinerary: %w", err)
	}

	query, args, err := r.sb.
		Insert("itineraries").
		Columns("user_id", "session_id", "title", "destination", "days", "itinerary").
		Values(trip.UserID, trip.SessionID, trip.Title, trip.Destination, trip.Days, itineraryJSON).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to build insert: %w", err)
	}

	var id uuid.UUID
	if err := r.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		metrics.Get().DBQueryErrorsTotal.Add(ctx, 1)
		r.logger.Error("Failed to save trip", zap.Error(err))
		return uuid.Nil, fmt.Errorf("failed to save trip: %w", err)
	}

	return id, nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID, tripID uuid.UUID) (*models.SavedTrip, error) {
	startTime := time.Now()
	defer r.observe(ctx, startTime)

	query, args, err := r.sb.
		Select("id", "user_id", "session_id", "title", "destination", "days", "itinerary", "created_at", "updated_at").
		From("itineraries").
		Where(sq.Eq{"id": tripID, "user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	trip, err := scanTrip(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		metrics.Get().DBQueryErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}

	return trip, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter models.TripsFilter) ([]models.SavedTrip, error) {
	startTime := time.Now()
	defer r.observe(ctx, startTime)

	qb := r.sb.
		Select("id", "user_id", "session_id", "title", "destination", "days", "itinerary", "created_at", "updated_at").
		From("itineraries").
		Where(sq.Eq{"user_id": filter.UserID}).
		OrderBy("created_at DESC")

	if filter.Destination != "" {
		qb = qb.Where(sq.ILike{"destination": "%" + filter.Destination + "%"})
	}
	if filter.FromDate != nil {
		qb = qb.Where(sq.GtOrEq{"created_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		qb = qb.Where(sq.LtOrEq{"created_at": *filter.ToDate})
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	qb = qb.Limit(uint64(limit))
	if filter.Offset > 0 {
		qb = qb.Offset(uint64(filter.Offset))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		metrics.Get().DBQueryErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	defer rows.Close()

	var listed []models.SavedTrip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		listed = append(listed, *trip)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading trips: %w", err)
	}

	return listed, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, tripID uuid.UUID) error {
	startTime := time.Now()
	defer r.observe(ctx, startTime)

	query, args, err := r.sb.
		Delete("itineraries").
		Where(sq.Eq{"id": tripID, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		metrics.Get().DBQueryErrorsTotal.Add(ctx, 1)
		return fmt.Errorf("failed to delete trip: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func scanTrip(row pgx.Row) (*models.SavedTrip, error) {
	var trip models.SavedTrip
	var itineraryJSON []byte
	if err := row.Scan(&trip.ID, &trip.UserID, &trip.SessionID, &trip.Title,
		&trip.Destination, &trip.Days, &itineraryJSON, &trip.CreatedAt, &trip.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itineraryJSON, &trip.Itinerary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal itinerary: %w", err)
	}
	return &trip, nil
}

func (r *PostgresRepository) observe(ctx context.Context, startTime time.Time) {
	metrics.Get().DBQueryDurationSeconds.Record(ctx, time.Since(startTime).Seconds())
}
