package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"github.com/tripweave/tripweave/internal/app/ai"
	"github.com/tripweave/tripweave/internal/app/clients/flights"
	"github.com/tripweave/tripweave/internal/app/clients/hotels"
	"github.com/tripweave/tripweave/internal/app/models"
	"github.com/tripweave/tripweave/internal/app/streaming"
)

// Geocoder resolves free-text places to coordinates.
type Geocoder interface {
	SearchOne(ctx context.Context, query string) (*models.Place, error)
}

// Router computes routes between waypoints.
type Router interface {
	Route(ctx context.Context, waypoints []models.GeoPoint) (*models.Route, error)
}

// FlightSearcher finds priced flight offers.
type FlightSearcher interface {
	Search(ctx context.Context, req flights.SearchRequest) ([]models.FlightOffer, error)
}

// HotelSearcher finds priced hotel offers.
type HotelSearcher interface {
	Search(ctx context.Context, req hotels.SearchRequest) ([]models.HotelOffer, error)
}

// Service is the business logic contract for itinerary planning.
type Service interface {
	PlanTripStream(ctx context.Context, userID uuid.UUID, req models.TripRequest, eventCh chan<- streaming.StreamEvent) error
	BuildTripContext(ctx context.Context, req models.TripRequest, domain TripDomain, eventCh chan<- streaming.StreamEvent) *models.TripContext
	SessionHistory(ctx context.Context, sessionID uuid.UUID) ([]models.LlmInteraction, error)
}

var _ Service = (*ServiceImpl)(nil)

// ServiceImpl aggregates provider data and drives itinerary generation.
type ServiceImpl struct {
	aiClient ai.Client
	geocoder Geocoder
	router   Router
	flights  FlightSearcher
	hotels   HotelSearcher
	repo     Repository
	detector *DomainDetector
	logger   *zap.Logger
	slog     *slog.Logger
}

func NewService(
	aiClient ai.Client,
	geocoder Geocoder,
	router Router,
	flightSearcher FlightSearcher,
	hotelSearcher HotelSearcher,
	repo Repository,
	logger *zap.Logger,
) *ServiceImpl {
	return &ServiceImpl{
		aiClient: aiClient,
		geocoder: geocoder,
		router:   router,
		flights:  flightSearcher,
		hotels:   hotelSearcher,
		repo:     repo,
		detector: NewDomainDetector(),
		logger:   logger,
		slog:     slog.Default(),
	}
}

func defaultGenerateConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.7),
		MaxOutputTokens: 8192,
	}
}

// PlanTripStream runs the whole pipeline for one request and feeds eventCh.
// It closes eventCh when done, successfully or not.
func (s *ServiceImpl) PlanTripStream(ctx context.Context, userID uuid.UUID, req models.TripRequest, eventCh chan<- streaming.StreamEvent) error {
	ctx, span := otel.Tracer("PlannerService").Start(ctx, "PlanTripStream", trace.WithAttributes(
		attribute.String("trip.query", req.Query),
	))
	defer span.End()
	defer close(eventCh)

	domain := s.detector.Detect(req.Query)
	span.SetAttributes(attribute.String("trip.domain", string(domain)))

	// Fill in structured facts the client didn't send
	if req.Destination == "" {
		s.sendEvent(ctx, eventCh, streaming.NewProgressEvent("", "Understanding your request"))
		if err := s.extractTripFacts(ctx, &req); err != nil {
			s.logger.Warn("Trip fact extraction failed, continuing with raw query", zap.Error(err))
		}
	}

	sessionID, err := s.ensureSession(ctx, userID, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create session")
		s.sendEvent(ctx, eventCh, streaming.NewErrorEvent("", err))
		return err
	}
	sid := sessionID.String()
	req.SessionID = &sessionID
	span.SetAttributes(attribute.String("session.id", sid))

	s.sendEvent(ctx, eventCh, streaming.NewProgressEvent(sid, "Gathering live travel data"))
	tripContext := s.BuildTripContext(ctx, req, domain, eventCh)
	s.sendEvent(ctx, eventCh, streaming.NewContextEvent(sid, tripContext))

	s.sendEvent(ctx, eventCh, streaming.NewProgressEvent(sid, "Writing your itinerary"))
	itinerary, responseText, latencyMs, err := s.generateItinerary(ctx, sid, req, domain, tripContext, eventCh)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Itinerary generation failed")
		s.failSession(ctx, sessionID)
		s.sendEvent(ctx, eventCh, streaming.NewErrorEvent(sid, err))
		return err
	}

	s.enrichDayPlansParallel(ctx, itinerary)

	interaction := models.LlmInteraction{
		UserID:       userID,
		SessionID:    sessionID,
		Prompt:       req.Query,
		ResponseText: responseText,
		ModelUsed:    s.aiClient.Model(),
		LatencyMs:    latencyMs,
		Destination:  req.Destination,
	}
	if _, err := s.repo.SaveInteraction(ctx, interaction); err != nil {
		// Persistence failure shouldn't kill a stream the user already has
		s.logger.Error("Failed to save LLM interaction", zap.Error(err))
	}

	if err := s.repo.UpdateSessionStatus(ctx, sessionID, models.SessionStatusCompleted); err != nil {
		s.logger.Warn("Failed to mark session completed", zap.Error(err))
	}

	s.sendEvent(ctx, eventCh, streaming.NewItineraryEvent(sid, itinerary))
	s.sendEvent(ctx, eventCh, streaming.NewCompleteEvent(sid))

	span.SetAttributes(attribute.Int("itinerary.days", len(itinerary.DayPlans)))
	span.SetStatus(codes.Ok, "Itinerary stream completed")
	return nil
}

// SessionHistory returns the recorded LLM interactions for a session, oldest
// first.
func (s *ServiceImpl) SessionHistory(ctx context.Context, sessionID uuid.UUID) ([]models.LlmInteraction, error) {
	return s.repo.GetSessionInteractions(ctx, sessionID)
}

// extractTripFacts asks the model to pull destination/days/interests out of
// the free-text query.
func (s *ServiceImpl) extractTripFacts(ctx context.Context, req *models.TripRequest) error {
	resp, err := s.aiClient.GenerateResponse(ctx, getDestinationExtractionPrompt(req.Query), defaultGenerateConfig())
	if err != nil {
		return fmt.Errorf("fact extraction call failed: %w", err)
	}

	facts, err := parseTripFacts(ai.ResponseText(resp))
	if err != nil {
		return err
	}

	if req.Destination == "" {
		req.Destination = facts.Destination
	}
	if req.Origin == "" {
		req.Origin = facts.Origin
	}
	if req.Days == 0 {
		req.Days = facts.Days
	}
	if req.StartDate == "" {
		req.StartDate = facts.StartDate
	}
	if len(req.Interests) == 0 {
		req.Interests = facts.Interests
	}
	return nil
}

func (s *ServiceImpl) ensureSession(ctx context.Context, userID uuid.UUID, req models.TripRequest) (uuid.UUID, error) {
	if req.SessionID != nil && *req.SessionID != uuid.Nil {
		return *req.SessionID, nil
	}

	return s.repo.CreateSession(ctx, models.TripSession{
		UserID:      userID,
		Query:       req.Query,
		Destination: req.Destination,
		Status:      models.SessionStatusActive,
	})
}

func (s *ServiceImpl) failSession(ctx context.Context, sessionID uuid.UUID) {
	if err := s.repo.UpdateSessionStatus(ctx, sessionID, models.SessionStatusFailed); err != nil {
		s.logger.Warn("Failed to mark session failed", zap.Error(err))
	}
}

// BuildTripContext fans out to the providers and assembles whatever data
// arrived. Provider failures degrade the context, they never abort it.
func (s *ServiceImpl) BuildTripContext(ctx context.Context, req models.TripRequest, domain TripDomain, eventCh chan<- streaming.StreamEvent) *models.TripContext {
	ctx, span := otel.Tracer("PlannerService").Start(ctx, "BuildTripContext")
	defer span.End()

	tripContext := &models.TripContext{}

	// Stage 1: geocode endpoints in parallel
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if req.Destination == "" {
			return nil
		}
		place, err := s.geocoder.SearchOne(gctx, req.Destination)
		if err != nil {
			s.logger.Warn("Destination geocoding failed",
				zap.String("destination", req.Destination), zap.Error(err))
			s.sendEvent(gctx, eventCh, streaming.NewProgressEvent(sessionIDString(req), "Could not pin down the destination, planning from the query alone"))
			return nil
		}
		tripContext.Destination = place
		return nil
	})
	g.Go(func() error {
		if req.Origin == "" {
			return nil
		}
		place, err := s.geocoder.SearchOne(gctx, req.Origin)
		if err != nil {
			s.logger.Warn("Origin geocoding failed",
				zap.String("origin", req.Origin), zap.Error(err))
			return nil
		}
		tripContext.Origin = place
		return nil
	})
	_ = g.Wait()

	// Stage 2: everything that depends on coordinates, in parallel
	g, gctx = errgroup.WithContext(ctx)

	if tripContext.Origin != nil && tripContext.Destination != nil {
		g.Go(func() error {
			route, err := s.router.Route(gctx, []models.GeoPoint{
				tripContext.Origin.Location,
				tripContext.Destination.Location,
			})
			if err != nil {
				s.logger.Warn("Routing failed", zap.Error(err))
				s.sendEvent(gctx, eventCh, streaming.NewProgressEvent(sessionIDString(req), "Route details unavailable right now"))
				return nil
			}
			tripContext.Route = route
			return nil
		})
	}

	if origin, dest := iataCode(req.Origin), iataCode(req.Destination); origin != "" && dest != "" && req.StartDate != "" {
		g.Go(func() error {
			offers, err := s.flights.Search(gctx, flights.SearchRequest{
				Origin:        origin,
				Destination:   dest,
				DepartureDate: req.StartDate,
				ReturnDate:    req.EndDate,
				Adults:        req.Travelers,
			})
			if err != nil {
				s.logger.Warn("Flight search failed", zap.Error(err))
				s.sendEvent(gctx, eventCh, streaming.NewProgressEvent(sessionIDString(req), "Flight offers unavailable right now"))
				return nil
			}
			tripContext.Flights = offers
			return nil
		})
	}

	if tripContext.Destination != nil && domain != DomainFlights {
		g.Go(func() error {
			offers, err := s.hotels.Search(gctx, hotels.SearchRequest{
				Location:     tripContext.Destination.Location,
				CheckInDate:  req.StartDate,
				CheckOutDate: req.EndDate,
				Adults:       req.Travelers,
			})
			if err != nil {
				s.logger.Warn("Hotel search failed", zap.Error(err))
				s.sendEvent(gctx, eventCh, streaming.NewProgressEvent(sessionIDString(req), "Hotel offers unavailable right now"))
				return nil
			}
			tripContext.Hotels = offers
			return nil
		})
	}

	_ = g.Wait()

	span.SetAttributes(
		attribute.Bool("context.destination", tripContext.Destination != nil),
		attribute.Bool("context.route", tripContext.Route != nil),
		attribute.Int("context.flights", len(tripContext.Flights)),
		attribute.Int("context.hotels", len(tripContext.Hotels)),
	)

	return tripContext
}

// generateItinerary streams the model output, forwarding chunks as they
// arrive and parsing the assembled response at the end.
func (s *ServiceImpl) generateItinerary(
	ctx context.Context,
	sessionID string,
	req models.TripRequest,
	domain TripDomain,
	tripContext *models.TripContext,
	eventCh chan<- streaming.StreamEvent,
) (*models.AIItineraryResponse, string, int, error) {
	ctx, span := otel.Tracer("PlannerService").Start(ctx, "generateItinerary")
	defer span.End()

	prompt := getItineraryPrompt(req, domain, tripContext)
	span.SetAttributes(attribute.Int("prompt.length", len(prompt)))

	startTime := time.Now()

	var builder strings.Builder
	summarySent := false
	for resp, err := range s.aiClient.GenerateContentStream(ctx, prompt, defaultGenerateConfig()) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Stream error from model")
			return nil, "", 0, fmt.Errorf("itinerary stream failed: %w", err)
		}

		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text == "" {
					continue
				}
				builder.WriteString(part.Text)
				s.sendEvent(ctx, eventCh, streaming.NewChunkEvent(sessionID, part.Text))
			}
		}

		// Emit the trip summary as soon as its section is complete so the
		// client can render the header before day plans finish.
		if !summarySent {
			if summary := parseTripSummary(builder.String(), s.slog); summary != nil {
				summarySent = true
				event := streaming.NewProgressEvent(sessionID, fmt.Sprintf("Planning %d days in %s", summary.Days, summary.Destination))
				s.sendEvent(ctx, eventCh, event)
			}
		}
	}

	latencyMs := int(time.Since(startTime).Milliseconds())
	responseText := builder.String()
	span.SetAttributes(
		attribute.Int("response.length", len(responseText)),
		attribute.Int("response.latency_ms", latencyMs),
	)

	if responseText == "" {
		return nil, "", latencyMs, fmt.Errorf("no itinerary content from model")
	}

	itinerary, err := parseItineraryResponse(responseText, s.slog)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to parse itinerary")
		return nil, responseText, latencyMs, err
	}

	span.SetStatus(codes.Ok, "Itinerary generated")
	return itinerary, responseText, latencyMs, nil
}

func (s *ServiceImpl) sendEvent(ctx context.Context, eventCh chan<- streaming.StreamEvent, event streaming.StreamEvent) {
	if !streaming.SendEventSafe(ctx, eventCh, event, 5*time.Second) {
		s.logger.Warn("Dropped stream event",
			zap.String("type", event.Type),
			zap.String("session_id", event.SessionID))
	}
}

func sessionIDString(req models.TripRequest) string {
	if req.SessionID == nil {
		return ""
	}
	return req.SessionID.String()
}

// iataCode returns the query verbatim when it already looks like an IATA
// airport code, empty otherwise. Free-text origins don't reach the flight
// provider.
func iataCode(s string) string {
	if len(s) != 3 {
		return ""
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return ""
		}
	}
	return s
}
