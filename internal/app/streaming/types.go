package streaming

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tripweave/tripweave/internal/app/models"
)

// Event type constants for the SSE stream.
const (
	EventTypeProgress  = "progress"
	EventTypeContext   = "trip_context"
	EventTypeChunk     = "itinerary_chunk"
	EventTypeItinerary = "itinerary"
	EventTypeError     = "error"
	EventTypeComplete  = "complete"
)

// StreamEvent is a single SSE payload sent to the client during planning.
type StreamEvent struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	EventID   string    `json:"event_id"`
	IsFinal   bool      `json:"is_final,omitempty"`

	// Content-specific data
	Context   *models.TripContext         `json:"context,omitempty"`
	Chunk     string                      `json:"chunk,omitempty"`
	Itinerary *models.AIItineraryResponse `json:"itinerary,omitempty"`

	Error string `json:"error,omitempty"`
}

// StreamChannel holds the channel and metadata for a streaming session.
type StreamChannel struct {
	Channel   chan StreamEvent
	CreatedAt time.Time
	SessionID string
}

// StreamManager manages all active streaming sessions.
type StreamManager struct {
	channels map[string]*StreamChannel
	mutex    sync.RWMutex
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		channels: make(map[string]*StreamChannel),
	}
}

// CreateStream creates a new buffered streaming channel for a session.
func (sm *StreamManager) CreateStream(sessionID string) chan StreamEvent {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	ch := make(chan StreamEvent, 200)
	sm.channels[sessionID] = &StreamChannel{
		Channel:   ch,
		CreatedAt: time.Now(),
		SessionID: sessionID,
	}

	return ch
}

// GetStream retrieves the streaming channel for a session.
func (sm *StreamManager) GetStream(sessionID string) (chan StreamEvent, bool) {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	streamChan, exists := sm.channels[sessionID]
	if !exists {
		return nil, false
	}

	return streamChan.Channel, true
}

// CloseStream removes a streaming channel from the manager. The producer
// owns the channel and closes it when the session ends; closing here too
// would race with in-flight sends.
func (sm *StreamManager) CloseStream(sessionID string) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	delete(sm.channels, sessionID)
}

// ActiveCount returns the number of live streams.
func (sm *StreamManager) ActiveCount() int {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return len(sm.channels)
}

// CleanupExpiredStreams removes streams older than maxAge.
func (sm *StreamManager) CleanupExpiredStreams(maxAge time.Duration) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for sessionID, streamChan := range sm.channels {
		if streamChan.CreatedAt.Before(cutoff) {
			delete(sm.channels, sessionID)
		}
	}
}

func NewProgressEvent(sessionID, message string) StreamEvent {
	return StreamEvent{
		Type:      EventTypeProgress,
		SessionID: sessionID,
		Message:   message,
		Timestamp: time.Now(),
		EventID:   uuid.New().String(),
	}
}

func NewContextEvent(sessionID string, tripContext *models.TripContext) StreamEvent {
	return StreamEvent{
		Type:      EventTypeContext,
		SessionID: sessionID,
		Context:   tripContext,
		Timestamp: time.Now(),
		EventID:   uuid.New().String(),
	}
}

func NewChunkEvent(sessionID, chunk string) StreamEvent {
	return StreamEvent{
		Type:      EventTypeChunk,
		SessionID: sessionID,
		Chunk:     chunk,
		Timestamp: time.Now(),
		EventID:   uuid.New().String(),
	}
}

func NewItineraryEvent(sessionID string, itinerary *models.AIItineraryResponse) StreamEvent {
	return StreamEvent{
		Type:      EventTypeItinerary,
		SessionID: sessionID,
		Itinerary: itinerary,
		Timestamp: time.Now(),
		EventID:   uuid.New().String(),
	}
}

func NewErrorEvent(sessionID string, err error) StreamEvent {
	return StreamEvent{
		Type:      EventTypeError,
		SessionID: sessionID,
		Error:     err.Error(),
		Timestamp: time.Now(),
		EventID:   uuid.New().String(),
		IsFinal:   true,
	}
}

func NewCompleteEvent(sessionID string) StreamEvent {
	return StreamEvent{
		Type:      EventTypeComplete,
		SessionID: sessionID,
		Timestamp: time.Now(),
		EventID:   uuid.New().String(),
		IsFinal:   true,
	}
}

// SendEventSafe sends an event without blocking forever. Returns false if
// the event could not be delivered before the timeout or cancellation.
func SendEventSafe(ctx context.Context, ch chan<- StreamEvent, event StreamEvent, timeout time.Duration) bool {
	select {
	case ch <- event:
		return true
	case <-time.After(timeout):
		return false
	case <-ctx.Done():
		return false
	}
}
