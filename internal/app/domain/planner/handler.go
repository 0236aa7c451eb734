package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tripweave/tripweave/internal/app/models"
	"github.com/tripweave/tripweave/internal/app/streaming"
	"github.com/tripweave/tripweave/internal/observability/metrics"
)

const (
	heartbeatInterval = 15 * time.Second

	// Upper bound on a planning pipeline that has lost all its clients.
	planTimeout = 10 * time.Minute
)

// Handler exposes the planning endpoints.
type Handler struct {
	service       Service
	streamManager *streaming.StreamManager
	logger        *zap.Logger
}

func NewHandler(service Service, streamManager *streaming.StreamManager, logger *zap.Logger) *Handler {
	return &Handler{
		service:       service,
		streamManager: streamManager,
		logger:        logger,
	}
}

func setSSEHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
}

// userIDFromContext reads the user id set by the auth middleware. Anonymous
// requests plan with the nil UUID.
func userIDFromContext(c *gin.Context) uuid.UUID {
	raw, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil
	}
	userID, ok := raw.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return userID
}

// PlanTripStream runs the full planning pipeline and streams events to the
// client as SSE.
//
// POST /api/v1/itinerary/stream
func (h *Handler) PlanTripStream(c *gin.Context) {
	ctx, span := otel.Tracer("PlannerHandler").Start(c.Request.Context(), "PlanTripStream")
	defer span.End()

	var req models.TripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	sessionID := uuid.New()
	if req.SessionID == nil {
		req.SessionID = &sessionID
	} else {
		sessionID = *req.SessionID
	}
	span.SetAttributes(attribute.String("session.id", sessionID.String()))

	userID := userIDFromContext(c)

	eventCh := h.streamManager.CreateStream(sessionID.String())
	metrics.Get().ActiveStreamsGauge.Record(ctx, int64(h.streamManager.ActiveCount()))

	// The pipeline runs on a context detached from the request so a dropped
	// SSE connection does not cancel planning mid-flight; the client can
	// re-attach via GET /stream/:sessionID while it is still running. The
	// producer removes the stream when it finishes, with the expiry sweeper
	// as backstop.
	planCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), planTimeout)
	go func() {
		defer cancel()
		defer func() {
			h.streamManager.CloseStream(sessionID.String())
			metrics.Get().ActiveStreamsGauge.Record(context.Background(), int64(h.streamManager.ActiveCount()))
		}()
		if err := h.service.PlanTripStream(planCtx, userID, req, eventCh); err != nil {
			h.logger.Error("Planning pipeline failed",
				zap.String("session_id", sessionID.String()),
				zap.Error(err))
		}
	}()

	setSSEHeaders(c)
	h.pumpEvents(c, span, eventCh)
}

// AttachStream re-attaches a client to an in-flight planning session, for
// reconnects after a dropped SSE connection.
//
// GET /api/v1/itinerary/stream/:sessionID
func (h *Handler) AttachStream(c *gin.Context) {
	_, span := otel.Tracer("PlannerHandler").Start(c.Request.Context(), "AttachStream")
	defer span.End()

	sessionID := c.Param("sessionID")
	if _, err := uuid.Parse(sessionID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	eventCh, exists := h.streamManager.GetStream(sessionID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active stream for session"})
		return
	}
	span.SetAttributes(attribute.String("session.id", sessionID))

	setSSEHeaders(c)
	h.pumpEvents(c, span, eventCh)
}

// SessionHistory returns the audit trail of model calls behind a planning
// session.
//
// GET /api/v1/itinerary/sessions/:sessionID/history
func (h *Handler) SessionHistory(c *gin.Context) {
	_, span := otel.Tracer("PlannerHandler").Start(c.Request.Context(), "SessionHistory")
	defer span.End()

	sessionID, err := uuid.Parse(c.Param("sessionID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}
	span.SetAttributes(attribute.String("session.id", sessionID.String()))

	interactions, err := h.service.SessionHistory(c.Request.Context(), sessionID)
	if err != nil {
		if IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no interactions for session"})
			return
		}
		h.logger.Error("Failed to load session history",
			zap.String("session_id", sessionID.String()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":   sessionID,
		"interactions": interactions,
	})
}

// pumpEvents forwards stream events to the SSE response until the stream
// ends or the client goes away. Heartbeat comments keep proxies from
// timing out quiet stretches.
func (h *Handler) pumpEvents(c *gin.Context, span trace.Span, eventCh <-chan streaming.StreamEvent) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	sent := 0
	for {
		select {
		case event, open := <-eventCh:
			if !open {
				span.SetAttributes(attribute.Int("events.sent", sent))
				return
			}

			payload, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("Failed to marshal stream event", zap.Error(err))
				continue
			}

			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event.Type, payload)
			flusher.Flush()
			sent++
			metrics.Get().StreamEventsTotal.Add(c.Request.Context(), 1)

			if event.IsFinal {
				span.SetAttributes(attribute.Int("events.sent", sent))
				return
			}

		case <-heartbeat.C:
			fmt.Fprint(c.Writer, ": heartbeat\n\n")
			flusher.Flush()

		case <-c.Request.Context().Done():
			h.logger.Debug("Client disconnected from stream",
				zap.Int("events_sent", sent))
			span.SetAttributes(attribute.Int("events.sent", sent))
			return
		}
	}
}

// PlanTripPlainText runs the same pipeline but answers with a plain text
// body: the itinerary prose only, SSE framing stripped. The event stream is
// framed into an internal pipe and re-framed out, so curl and log shippers
// get readable output.
//
// POST /api/v1/itinerary/plain
func (h *Handler) PlanTripPlainText(c *gin.Context) {
	ctx, span := otel.Tracer("PlannerHandler").Start(c.Request.Context(), "PlanTripPlainText")
	defer span.End()

	var req models.TripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	sessionID := uuid.New()
	req.SessionID = &sessionID
	span.SetAttributes(attribute.String("session.id", sessionID.String()))

	userID := userIDFromContext(c)

	eventCh := make(chan streaming.StreamEvent, 200)
	go func() {
		if err := h.service.PlanTripStream(ctx, userID, req, eventCh); err != nil {
			h.logger.Error("Planning pipeline failed",
				zap.String("session_id", sessionID.String()),
				zap.Error(err))
		}
	}()

	pr, pw := io.Pipe()
	go func() {
		defer pw.Close()
		for event := range eventCh {
			switch event.Type {
			case streaming.EventTypeChunk:
				frameEvent(pw, event.Type, event.Chunk)
			case streaming.EventTypeError:
				frameEvent(pw, event.Type, "\nerror: "+event.Error+"\n")
				frameEvent(pw, "done", "")
				return
			case streaming.EventTypeComplete:
				frameEvent(pw, "done", "")
				return
			default:
				// Progress and context events carry no prose
			}
		}
	}()

	c.Writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.Writer.Header().Set("X-Session-ID", sessionID.String())
	c.Status(http.StatusOK)

	written, err := streaming.CopyData(flushWriter{c.Writer}, pr)
	if err != nil {
		h.logger.Warn("Plain text stream ended early",
			zap.Int64("bytes_written", written),
			zap.Error(err))
	}
	span.SetAttributes(attribute.Int64("bytes.written", written))
}

// frameEvent writes one event in text/event-stream framing, splitting the
// payload on newlines into multiple data lines.
func frameEvent(w io.Writer, eventType, payload string) {
	fmt.Fprintf(w, "event: %s\n", eventType)
	for _, line := range strings.Split(payload, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}

// flushWriter flushes after every write so chunks reach the client as they
// are produced.
type flushWriter struct {
	w gin.ResponseWriter
}

func (fw flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	fw.w.Flush()
	return n, err
}
