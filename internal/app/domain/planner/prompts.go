package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tripweave/tripweave/internal/app/models"
)

// getItineraryPrompt builds the sectioned generation prompt. The model is
// asked to emit [trip_summary] first so the client can render the header
// while day plans are still streaming.
func getItineraryPrompt(req models.TripRequest, domain TripDomain, tripContext *models.TripContext) string {
	var b strings.Builder

	b.WriteString("You are a travel planning assistant. Create a day-by-day travel itinerary for the request below.\n\n")

	b.WriteString("### Request\n")
	fmt.Fprintf(&b, "Query: %s\n", req.Query)
	if req.Destination != "" {
		fmt.Fprintf(&b, "Destination: %s\n", req.Destination)
	}
	if req.Days > 0 {
		fmt.Fprintf(&b, "Days: %d\n", req.Days)
	}
	if req.StartDate != "" {
		fmt.Fprintf(&b, "Start date: %s\n", req.StartDate)
	}
	if req.Travelers > 0 {
		fmt.Fprintf(&b, "Travelers: %d\n", req.Travelers)
	}
	if len(req.Interests) > 0 {
		fmt.Fprintf(&b, "Interests: %s\n", strings.Join(req.Interests, ", "))
	}
	if req.Budget != "" {
		fmt.Fprintf(&b, "Budget: %s\n", req.Budget)
	}
	fmt.Fprintf(&b, "Primary focus: %s\n", domain)

	writeContextSections(&b, tripContext)

	b.WriteString(`
### Output format
Respond with exactly two sections, each a single JSON object on its own lines, no markdown fences:

[trip_summary]
{"destination": "...", "country": "...", "days": N, "description": "...", "center": {"latitude": 0.0, "longitude": 0.0}}

[day_plans]
{"itinerary_name": "...", "summary": {...same as trip_summary...}, "day_plans": [{"day": 1, "date": "YYYY-MM-DD", "title": "...", "summary": "...", "activities": [{"name": "...", "start_time": "09:00", "duration_minutes": 90, "category": "...", "description": "...", "location": {"latitude": 0.0, "longitude": 0.0}, "travel_to_next": "12 min walk"}]}], "tips": ["..."]}

Ground every activity in real places near the coordinates in the context. Prefer the provided hotel and flight data over inventing options.
`)

	return b.String()
}

func writeContextSections(b *strings.Builder, tripContext *models.TripContext) {
	if tripContext == nil {
		return
	}

	b.WriteString("\n### Live data\n")

	if tripContext.Destination != nil {
		writeJSONBlock(b, "destination", tripContext.Destination)
	}
	if tripContext.Origin != nil {
		writeJSONBlock(b, "origin", tripContext.Origin)
	}
	if tripContext.Route != nil {
		writeJSONBlock(b, "route", tripContext.Route)
	}
	if len(tripContext.Flights) > 0 {
		writeJSONBlock(b, "flight_offers", tripContext.Flights)
	}
	if len(tripContext.Hotels) > 0 {
		writeJSONBlock(b, "hotel_offers", tripContext.Hotels)
	}
}

func writeJSONBlock(b *strings.Builder, name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", name, data)
}

// getDestinationExtractionPrompt asks the model to pull structured trip
// facts out of a free-text query when the client sent none.
func getDestinationExtractionPrompt(query string) string {
	return fmt.Sprintf(`Extract the travel facts from this request. Respond with a single JSON object, no markdown fences:
{"destination": "...", "origin": "...", "days": N, "start_date": "YYYY-MM-DD or empty", "interests": ["..."]}
Use empty strings and 0 for anything not mentioned.

Request: %s`, query)
}
