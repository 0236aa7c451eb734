package planner

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/tripweave/tripweave/internal/app/models"
)

var (
	// Newline-tolerant so a pretty-printed summary object still matches.
	tripSummaryRe = regexp.MustCompile(`(?s)\[trip_summary\]\s*(\{.*?\})\s*(?:\n\s*\n|\[|$)`)
	dayPlansRe    = regexp.MustCompile(`(?s)\[day_plans\]\s*(\{.*\})\s*$`)
)

// cleanJSONResponse removes markdown code fences the model sometimes adds
// despite instructions.
func cleanJSONResponse(response string) string {
	cleaned := strings.ReplaceAll(response, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	return strings.TrimSpace(cleaned)
}

// parseItineraryResponse parses the sectioned [trip_summary] / [day_plans]
// format, falling back to a direct JSON itinerary for older responses.
func parseItineraryResponse(responseText string, logger *slog.Logger) (*models.AIItineraryResponse, error) {
	cleaned := cleanJSONResponse(responseText)

	if match := dayPlansRe.FindStringSubmatch(cleaned); len(match) > 1 {
		var itinerary models.AIItineraryResponse
		if err := json.Unmarshal([]byte(strings.TrimSpace(match[1])), &itinerary); err == nil {
			// The standalone summary section wins if the day_plans blob
			// omitted or truncated its embedded copy.
			if itinerary.Summary.Destination == "" {
				if summary := parseTripSummary(cleaned, logger); summary != nil {
					itinerary.Summary = *summary
				}
			}
			logger.Debug("parseItineraryResponse: parsed sectioned format",
				"days", len(itinerary.DayPlans))
			return &itinerary, nil
		}
		logger.Warn("parseItineraryResponse: day_plans section present but unparseable")
	}

	// Legacy: whole response is one itinerary object
	var itinerary models.AIItineraryResponse
	if err := json.Unmarshal([]byte(cleaned), &itinerary); err == nil &&
		(itinerary.ItineraryName != "" || len(itinerary.DayPlans) > 0) {
		logger.Debug("parseItineraryResponse: parsed legacy direct format")
		return &itinerary, nil
	}

	return nil, fmt.Errorf("failed to parse itinerary response")
}

// parseTripSummary extracts the [trip_summary] section on its own, so it
// can be emitted to the stream before day plans finish generating.
func parseTripSummary(responseText string, logger *slog.Logger) *models.TripSummary {
	match := tripSummaryRe.FindStringSubmatch(cleanJSONResponse(responseText))
	if len(match) < 2 {
		return nil
	}

	var summary models.TripSummary
	if err := json.Unmarshal([]byte(strings.TrimSpace(match[1])), &summary); err != nil {
		logger.Warn("parseTripSummary: failed to parse trip_summary section", "error", err)
		return nil
	}
	return &summary
}

// extractedTripFacts is the model's answer for destination extraction.
type extractedTripFacts struct {
	Destination string   `json:"destination"`
	Origin      string   `json:"origin"`
	Days        int      `json:"days"`
	StartDate   string   `json:"start_date"`
	Interests   []string `json:"interests"`
}

func parseTripFacts(responseText string) (*extractedTripFacts, error) {
	var facts extractedTripFacts
	if err := json.Unmarshal([]byte(cleanJSONResponse(responseText)), &facts); err != nil {
		return nil, fmt.Errorf("failed to parse trip facts: %w", err)
	}
	return &facts, nil
}
