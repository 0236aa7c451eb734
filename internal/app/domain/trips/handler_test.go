package trips

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tripweave/tripweave/internal/app/models"
)

type fakeService struct {
	saved      models.SavedTrip
	savedID    uuid.UUID
	trip       *models.SavedTrip
	listed     []models.SavedTrip
	lastFilter models.TripsFilter
	err        error
}

func (f *fakeService) SaveTrip(_ context.Context, userID uuid.UUID, trip models.SavedTrip) (uuid.UUID, error) {
	if f.err != nil {
		return uuid.Nil, f.err
	}
	trip.UserID = userID
	f.saved = trip
	return f.savedID, nil
}

func (f *fakeService) GetTrip(_ context.Context, _, _ uuid.UUID) (*models.SavedTrip, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.trip, nil
}

func (f *fakeService) ListTrips(_ context.Context, filter models.TripsFilter) ([]models.SavedTrip, error) {
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.listed, nil
}

func (f *fakeService) DeleteTrip(_ context.Context, _, _ uuid.UUID) error {
	return f.err
}

func newTestRouter(service Service, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewHandler(service, zap.NewNop())

	router := gin.New()
	if userID != uuid.Nil {
		router.Use(func(c *gin.Context) {
			c.Set("user_id", userID)
		})
	}
	router.POST("/trips", handler.SaveTrip)
	router.GET("/trips", handler.ListTrips)
	router.GET("/trips/:tripID", handler.GetTrip)
	router.DELETE("/trips/:tripID", handler.DeleteTrip)
	return router
}

func TestSaveTripHandler(t *testing.T) {
	service := &fakeService{savedID: uuid.New()}
	router := newTestRouter(service, uuid.New())

	body, err := json.Marshal(models.SavedTrip{
		Title:       "Lisbon Long Weekend",
		Destination: "Lisbon",
		Itinerary:   sampleItinerary(),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/trips", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), service.savedID.String())
	assert.Equal(t, "Lisbon", service.saved.Destination)
}

func TestSaveTripHandlerRequiresAuth(t *testing.T) {
	router := newTestRouter(&fakeService{}, uuid.Nil)

	req := httptest.NewRequest(http.MethodPost, "/trips", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListTripsHandlerParsesFilters(t *testing.T) {
	service := &fakeService{listed: []models.SavedTrip{{Title: "Lisbon Long Weekend"}}}
	router := newTestRouter(service, uuid.New())

	req := httptest.NewRequest(http.MethodGet,
		"/trips?destination=Lisbon&from=2026-01-01T00:00:00Z&limit=5&offset=10", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Lisbon", service.lastFilter.Destination)
	require.NotNil(t, service.lastFilter.FromDate)
	assert.Equal(t, 5, service.lastFilter.Limit)
	assert.Equal(t, 10, service.lastFilter.Offset)
	assert.Contains(t, w.Body.String(), `"count":1`)
}

func TestListTripsHandlerRejectsBadDate(t *testing.T) {
	router := newTestRouter(&fakeService{}, uuid.New())

	req := httptest.NewRequest(http.MethodGet, "/trips?from=yesterday", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTripHandlerNotFound(t *testing.T) {
	router := newTestRouter(&fakeService{err: models.ErrNotFound}, uuid.New())

	req := httptest.NewRequest(http.MethodGet, "/trips/"+uuid.New().String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteTripHandler(t *testing.T) {
	router := newTestRouter(&fakeService{}, uuid.New())

	req := httptest.NewRequest(http.MethodDelete, "/trips/"+uuid.New().String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestDeleteTripHandlerInvalidID(t *testing.T) {
	router := newTestRouter(&fakeService{}, uuid.New())

	req := httptest.NewRequest(http.MethodDelete, "/trips/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
