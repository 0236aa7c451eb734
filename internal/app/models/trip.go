package models

import (
	"time"

	"github.com/google/uuid"
)

// TripRequest is the user's natural-language trip query plus optional
// structured hints the client already knows.
type TripRequest struct {
	Query        string     `json:"query"`
	Destination  string     `json:"destination,omitempty"`
	Origin       string     `json:"origin,omitempty"`
	StartDate    string     `json:"start_date,omitempty"`
	EndDate      string     `json:"end_date,omitempty"`
	Days         int        `json:"days,omitempty"`
	Travelers    int        `json:"travelers,omitempty"`
	Interests    []string   `json:"interests,omitempty"`
	Budget       string     `json:"budget,omitempty"`
	UserLocation *GeoPoint  `json:"user_location,omitempty"`
	SessionID    *uuid.UUID `json:"session_id,omitempty"`
}

// ItineraryActivity is a single scheduled stop inside a day plan.
type ItineraryActivity struct {
	Name            string   `json:"name"`
	StartTime       string   `json:"start_time"`
	DurationMinutes int      `json:"duration_minutes"`
	Category        string   `json:"category"`
	Description     string   `json:"description"`
	Location        GeoPoint `json:"location"`
	Address         *string  `json:"address,omitempty"`
	Website         *string  `json:"website,omitempty"`
	PriceLevel      *string  `json:"price_level,omitempty"`
	TravelToNext    *string  `json:"travel_to_next,omitempty"`
}

// DayPlan is one day of the synthesized itinerary.
type DayPlan struct {
	Day        int                 `json:"day"`
	Date       string              `json:"date,omitempty"`
	Title      string              `json:"title"`
	Summary    string              `json:"summary,omitempty"`
	Activities []ItineraryActivity `json:"activities"`
}

// TripSummary is the overview block the model emits before the day plans.
type TripSummary struct {
	Destination string   `json:"destination"`
	Country     string   `json:"country,omitempty"`
	Days        int      `json:"days"`
	Description string   `json:"description"`
	Center      GeoPoint `json:"center"`
}

// AIItineraryResponse is the full structured itinerary parsed from the
// model output.
type AIItineraryResponse struct {
	ItineraryName string      `json:"itinerary_name"`
	Summary       TripSummary `json:"summary"`
	DayPlans      []DayPlan   `json:"day_plans"`
	Tips          []string    `json:"tips,omitempty"`
}

// TripContext bundles the provider data gathered before prompting.
type TripContext struct {
	Destination *Place        `json:"destination,omitempty"`
	Origin      *Place        `json:"origin,omitempty"`
	Route       *Route        `json:"route,omitempty"`
	Flights     []FlightOffer `json:"flights,omitempty"`
	Hotels      []HotelOffer  `json:"hotels,omitempty"`
}

// SavedTrip is a persisted itinerary owned by a user.
type SavedTrip struct {
	ID          uuid.UUID           `json:"id"`
	UserID      uuid.UUID           `json:"user_id"`
	SessionID   uuid.UUID           `json:"session_id"`
	Title       string              `json:"title"`
	Destination string              `json:"destination"`
	Days        int                 `json:"days"`
	Itinerary   AIItineraryResponse `json:"itinerary"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// TripsFilter narrows a saved-trips listing.
type TripsFilter struct {
	UserID      uuid.UUID
	Destination string
	FromDate    *time.Time
	ToDate      *time.Time
	Limit       int
	Offset      int
}

// LlmInteraction records a single model call for auditing and replay.
type LlmInteraction struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	SessionID    uuid.UUID `json:"session_id"`
	Prompt       string    `json:"prompt"`
	ResponseText string    `json:"response_text"`
	ModelUsed    string    `json:"model_used"`
	LatencyMs    int       `json:"latency_ms"`
	Destination  string    `json:"destination"`
	CreatedAt    time.Time `json:"created_at"`
}

// TripSession tracks one streaming planning conversation.
type TripSession struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Query       string    `json:"query"`
	Destination string    `json:"destination"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
	SessionStatusFailed    = "failed"
)
