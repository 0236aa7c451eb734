package trips

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tripweave/tripweave/internal/app/models"
)

// Handler exposes the saved-trips endpoints. All of them require an
// authenticated user.
type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func requireUserID(c *gin.Context) (uuid.UUID, bool) {
	raw, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return uuid.Nil, false
	}
	userID, ok := raw.(uuid.UUID)
	if !ok || userID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return uuid.Nil, false
	}
	return userID, true
}

// SaveTrip persists an itinerary from a planning session.
//
// POST /api/v1/trips
func (h *Handler) SaveTrip(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var trip models.SavedTrip
	if err := c.ShouldBindJSON(&trip); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	id, err := h.service.SaveTrip(c.Request.Context(), userID, trip)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// GetTrip returns one saved trip.
//
// GET /api/v1/trips/:tripID
func (h *Handler) GetTrip(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	tripID, err := uuid.Parse(c.Param("tripID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trip id"})
		return
	}

	trip, err := h.service.GetTrip(c.Request.Context(), userID, tripID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, trip)
}

// ListTrips returns the user's saved trips, newest first. Optional query
// params: destination, from, to (RFC3339 dates), limit, offset.
//
// GET /api/v1/trips
func (h *Handler) ListTrips(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	filter := models.TripsFilter{
		UserID:      userID,
		Destination: c.Query("destination"),
	}

	if from := c.Query("from"); from != "" {
		parsed, err := time.Parse(time.RFC3339, from)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date"})
			return
		}
		filter.FromDate = &parsed
	}
	if to := c.Query("to"); to != "" {
		parsed, err := time.Parse(time.RFC3339, to)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date"})
			return
		}
		filter.ToDate = &parsed
	}

	var pagination struct {
		Limit  int `form:"limit"`
		Offset int `form:"offset"`
	}
	if err := c.ShouldBindQuery(&pagination); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pagination"})
		return
	}
	filter.Limit = pagination.Limit
	filter.Offset = pagination.Offset

	listed, err := h.service.ListTrips(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"trips": listed, "count": len(listed)})
}

// DeleteTrip removes one saved trip.
//
// DELETE /api/v1/trips/:tripID
func (h *Handler) DeleteTrip(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	tripID, err := uuid.Parse(c.Param("tripID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trip id"})
		return
	}

	if err := h.service.DeleteTrip(c.Request.Context(), userID, tripID); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "trip not found"})
	case errors.Is(err, models.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	case errors.Is(err, models.ErrBadRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trip"})
	default:
		h.logger.Error("Trips request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
