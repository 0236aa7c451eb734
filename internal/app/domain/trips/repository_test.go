package trips

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tripweave/tripweave/internal/app/models"
	"github.com/tripweave/tripweave/internal/observability/metrics"
)

func TestMain(m *testing.M) {
	metrics.InitAppMetrics()
	os.Exit(m.Run())
}

func newMockRepository(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return NewPostgresRepository(mock, zap.NewNop()), mock
}

func sampleItinerary() models.AIItineraryResponse {
	return models.AIItineraryResponse{
		ItineraryName: "Lisbon Long Weekend",
		Summary:       models.TripSummary{Destination: "Lisbon", Days: 2},
		DayPlans: []models.DayPlan{
			{Day: 1, Title: "Alfama", Activities: []models.ItineraryActivity{{Name: "Castelo"}}},
		},
	}
}

func tripRow(trip models.SavedTrip, t *testing.T) *pgxmock.Rows {
	t.Helper()
	itineraryJSON, err := json.Marshal(trip.Itinerary)
	require.NoError(t, err)

	return pgxmock.NewRows([]string{
		"id", "user_id", "session_id", "title", "destination", "days", "itinerary", "created_at", "updated_at",
	}).AddRow(trip.ID, trip.UserID, trip.SessionID, trip.Title, trip.Destination,
		trip.Days, itineraryJSON, trip.CreatedAt, trip.UpdatedAt)
}

func TestSave(t *testing.T) {
	repo, mock := newMockRepository(t)
	tripID := uuid.New()

	trip := models.SavedTrip{
		UserID:      uuid.New(),
		SessionID:   uuid.New(),
		Title:       "Lisbon Long Weekend",
		Destination: "Lisbon",
		Days:        2,
		Itinerary:   sampleItinerary(),
	}
	itineraryJSON, err := json.Marshal(trip.Itinerary)
	require.NoError(t, err)

	mock.ExpectQuery(`INSERT INTO itineraries`).
		WithArgs(trip.UserID, trip.SessionID, trip.Title, trip.Destination, trip.Days, itineraryJSON).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(tripID))

	id, err := repo.Save(context.Background(), trip)
	require.NoError(t, err)
	assert.Equal(t, tripID, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now()

	trip := models.SavedTrip{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		SessionID:   uuid.New(),
		Title:       "Lisbon Long Weekend",
		Destination: "Lisbon",
		Days:        2,
		Itinerary:   sampleItinerary(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	mock.ExpectQuery(`SELECT (.+) FROM itineraries`).
		WithArgs(trip.ID, trip.UserID).
		WillReturnRows(tripRow(trip, t))

	got, err := repo.Get(context.Background(), trip.UserID, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, trip.Title, got.Title)
	assert.Equal(t, "Lisbon Long Weekend", got.Itinerary.ItineraryName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)
	userID, tripID := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM itineraries`).
		WithArgs(tripID, userID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "session_id", "title", "destination", "days", "itinerary", "created_at", "updated_at",
		}))

	_, err := repo.Get(context.Background(), userID, tripID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListWithFilters(t *testing.T) {
	repo, mock := newMockRepository(t)
	userID := uuid.New()
	now := time.Now()

	trip := models.SavedTrip{
		ID:          uuid.New(),
		UserID:      userID,
		SessionID:   uuid.New(),
		Title:       "Lisbon Long Weekend",
		Destination: "Lisbon",
		Days:        2,
		Itinerary:   sampleItinerary(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	from := now.Add(-24 * time.Hour)
	mock.ExpectQuery(`SELECT (.+) FROM itineraries WHERE user_id = \$1 AND destination ILIKE \$2 AND created_at >= \$3 ORDER BY created_at DESC LIMIT 10`).
		WithArgs(userID, "%Lisbon%", from).
		WillReturnRows(tripRow(trip, t))

	listed, err := repo.List(context.Background(), models.TripsFilter{
		UserID:      userID,
		Destination: "Lisbon",
		FromDate:    &from,
		Limit:       10,
	})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, trip.Title, listed[0].Title)
	assert.Equal(t, "Lisbon", listed[0].Itinerary.Summary.Destination)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListDefaultsLimit(t *testing.T) {
	repo, mock := newMockRepository(t)
	userID := uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM itineraries WHERE user_id = \$1 ORDER BY created_at DESC LIMIT 20`).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "session_id", "title", "destination", "days", "itinerary", "created_at", "updated_at",
		}))

	listed, err := repo.List(context.Background(), models.TripsFilter{UserID: userID})
	require.NoError(t, err)
	assert.Empty(t, listed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	repo, mock := newMockRepository(t)
	userID, tripID := uuid.New(), uuid.New()

	mock.ExpectExec(`DELETE FROM itineraries`).
		WithArgs(tripID, userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, repo.Delete(context.Background(), userID, tripID))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)
	userID, tripID := uuid.New(), uuid.New()

	mock.ExpectExec(`DELETE FROM itineraries`).
		WithArgs(tripID, userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.Delete(context.Background(), userID, tripID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
