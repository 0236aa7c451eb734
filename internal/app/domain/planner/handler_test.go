package planner

import (
	"context"
	"fmt"
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
	"github.com/tripweave/tripweave/internal/app/streaming"
)

// scriptedService feeds canned events into the stream channel.
type scriptedService struct {
	events       []streaming.StreamEvent
	err          error
	interactions []models.LlmInteraction
	historyErr   error
}

func (s *scriptedService) PlanTripStream(_ context.Context, _ uuid.UUID, req models.TripRequest, eventCh chan<- streaming.StreamEvent) error {
	defer close(eventCh)
	sid := sessionIDString(req)
	for _, event := range s.events {
		event.SessionID = sid
		eventCh <- event
	}
	return s.err
}

func (s *scriptedService) BuildTripContext(_ context.Context, _ models.TripRequest, _ TripDomain, _ chan<- streaming.StreamEvent) *models.TripContext {
	return &models.TripContext{}
}

func (s *scriptedService) SessionHistory(_ context.Context, _ uuid.UUID) ([]models.LlmInteraction, error) {
	if s.historyErr != nil {
		return nil, s.historyErr
	}
	return s.interactions, nil
}

// gatedService starts emitting, then waits for the test before finishing,
// reporting the context the pipeline actually runs on.
type gatedService struct {
	started chan context.Context
	release chan struct{}
}

func (s *gatedService) PlanTripStream(ctx context.Context, _ uuid.UUID, req models.TripRequest, eventCh chan<- streaming.StreamEvent) error {
	defer close(eventCh)
	sid := sessionIDString(req)
	eventCh <- streaming.NewProgressEvent(sid, "Gathering live travel data")
	s.started <- ctx
	<-s.release
	if err := ctx.Err(); err != nil {
		return err
	}
	eventCh <- streaming.NewChunkEvent(sid, "Day 1: Alfama")
	eventCh <- streaming.NewCompleteEvent(sid)
	return nil
}

func (s *gatedService) BuildTripContext(_ context.Context, _ models.TripRequest, _ TripDomain, _ chan<- streaming.StreamEvent) *models.TripContext {
	return &models.TripContext{}
}

func (s *gatedService) SessionHistory(_ context.Context, _ uuid.UUID) ([]models.LlmInteraction, error) {
	return nil, models.ErrNotFound
}

func newTestRouter(service Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewHandler(service, streaming.NewStreamManager(), zap.NewNop())

	router := gin.New()
	router.POST("/itinerary/stream", handler.PlanTripStream)
	router.GET("/itinerary/stream/:sessionID", handler.AttachStream)
	router.POST("/itinerary/plain", handler.PlanTripPlainText)
	router.GET("/itinerary/sessions/:sessionID/history", handler.SessionHistory)
	return router
}

func TestPlanTripStreamHandler(t *testing.T) {
	service := &scriptedService{events: []streaming.StreamEvent{
		streaming.NewProgressEvent("", "Gathering live travel data"),
		streaming.NewChunkEvent("", "Day 1: Alfama"),
		streaming.NewCompleteEvent(""),
	}}
	router := newTestRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/itinerary/stream",
		strings.NewReader(`{"query": "2 days in Lisbon"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "event: progress\n")
	assert.Contains(t, body, "event: itinerary_chunk\n")
	assert.Contains(t, body, "event: complete\n")
	assert.Contains(t, body, `"chunk":"Day 1: Alfama"`)
}

func TestPlanTripStreamHandlerRejectsEmptyQuery(t *testing.T) {
	router := newTestRouter(&scriptedService{})

	for _, body := range []string{`{}`, `{"query": "  "}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/itinerary/stream", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, "body: %s", body)
	}
}

func TestAttachStreamAfterDisconnect(t *testing.T) {
	service := &gatedService{
		started: make(chan context.Context, 1),
		release: make(chan struct{}),
	}
	router := newTestRouter(service)

	sessionID := uuid.New()
	body := fmt.Sprintf(`{"query": "2 days in Lisbon", "session_id": %q}`, sessionID)
	reqCtx, disconnect := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/itinerary/stream",
		strings.NewReader(body)).WithContext(reqCtx)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		router.ServeHTTP(w, req)
	}()

	// The pipeline is running; drop the client mid-stream.
	planCtx := <-service.started
	disconnect()
	<-firstDone

	// The pipeline outlives the dropped connection and the session can be
	// re-attached.
	assert.NoError(t, planCtx.Err())

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/itinerary/stream/"+sessionID.String(), nil)
	secondDone := make(chan struct{})
	go func() {
		defer close(secondDone)
		router.ServeHTTP(w2, req2)
	}()

	close(service.release)
	<-secondDone

	assert.Equal(t, http.StatusOK, w2.Code)
	body2 := w2.Body.String()
	assert.Contains(t, body2, "event: itinerary_chunk\n")
	assert.Contains(t, body2, "event: complete\n")
}

func TestAttachStreamUnknownSession(t *testing.T) {
	router := newTestRouter(&scriptedService{})

	req := httptest.NewRequest(http.MethodGet, "/itinerary/stream/"+uuid.New().String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAttachStreamInvalidSessionID(t *testing.T) {
	router := newTestRouter(&scriptedService{})

	req := httptest.NewRequest(http.MethodGet, "/itinerary/stream/not-a-uuid", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionHistoryHandler(t *testing.T) {
	sessionID := uuid.New()
	service := &scriptedService{interactions: []models.LlmInteraction{
		{
			ID:           uuid.New(),
			SessionID:    sessionID,
			Prompt:       "extract destination",
			ResponseText: `{"destination": "Lisbon"}`,
			ModelUsed:    "gemini-2.0-flash",
			LatencyMs:    420,
			Destination:  "Lisbon",
		},
	}}
	router := newTestRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/itinerary/sessions/"+sessionID.String()+"/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, sessionID.String())
	assert.Contains(t, body, `"model_used":"gemini-2.0-flash"`)
	assert.Contains(t, body, `"destination":"Lisbon"`)
}

func TestSessionHistoryHandlerNotFound(t *testing.T) {
	router := newTestRouter(&scriptedService{historyErr: models.ErrNotFound})

	req := httptest.NewRequest(http.MethodGet, "/itinerary/sessions/"+uuid.New().String()+"/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionHistoryHandlerInvalidID(t *testing.T) {
	router := newTestRouter(&scriptedService{})

	req := httptest.NewRequest(http.MethodGet, "/itinerary/sessions/not-a-uuid/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlanTripPlainTextHandler(t *testing.T) {
	service := &scriptedService{events: []streaming.StreamEvent{
		streaming.NewProgressEvent("", "Gathering live travel data"),
		streaming.NewChunkEvent("", "Day 1: Alfama\n"),
		streaming.NewChunkEvent("", "Day 2: Belem\n"),
		streaming.NewCompleteEvent(""),
	}}
	router := newTestRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/itinerary/plain",
		strings.NewReader(`{"query": "2 days in Lisbon"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	require.NotEmpty(t, w.Header().Get("X-Session-ID"))

	// SSE framing stripped; only the itinerary prose remains
	body := w.Body.String()
	assert.NotContains(t, body, "data:")
	assert.NotContains(t, body, "event:")
	assert.Contains(t, body, "Day 1: Alfama")
	assert.Contains(t, body, "Day 2: Belem")
	assert.NotContains(t, body, "Gathering live travel data")
}

func TestPlanTripPlainTextSurfacesErrors(t *testing.T) {
	service := &scriptedService{events: []streaming.StreamEvent{
		streaming.NewErrorEvent("", assert.AnError),
	}}
	router := newTestRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/itinerary/plain",
		strings.NewReader(`{"query": "2 days in Lisbon"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// The framed error payload survives the round trip byte for byte,
	// leading newline included.
	assert.Equal(t, "\nerror: "+assert.AnError.Error()+"\n", w.Body.String())
}
