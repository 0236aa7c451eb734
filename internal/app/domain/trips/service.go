package trips

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/tripweave/tripweave/internal/app/models"
)

// Service is the business logic contract for saved trips.
type Service interface {
	SaveTrip(ctx context.Context, userID uuid.UUID, trip models.SavedTrip) (uuid.UUID, error)
	GetTrip(ctx context.Context, userID, tripID uuid.UUID) (*models.SavedTrip, error)
	ListTrips(ctx context.Context, filter models.TripsFilter) ([]models.SavedTrip, error)
	DeleteTrip(ctx context.Context, userID, tripID uuid.UUID) error
}

var _ Service = (*ServiceImpl)(nil)

type ServiceImpl struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{repo: repo, logger: logger}
}

func (s *ServiceImpl) SaveTrip(ctx context.Context, userID uuid.UUID, trip models.SavedTrip) (uuid.UUID, error) {
	ctx, span := otel.Tracer("TripsService").Start(ctx, "SaveTrip")
	defer span.End()

	if userID == uuid.Nil {
		return uuid.Nil, models.ErrUnauthorized
	}
	if len(trip.Itinerary.DayPlans) == 0 {
		return uuid.Nil, models.ErrBadRequest
	}

	trip.UserID = userID
	if strings.TrimSpace(trip.Title) == "" {
		trip.Title = defaultTitle(trip)
	}
	if trip.Destination == "" {
		trip.Destination = trip.Itinerary.Summary.Destination
	}
	if trip.Days == 0 {
		trip.Days = len(trip.Itinerary.DayPlans)
	}

	id, err := s.repo.Save(ctx, trip)
	if err != nil {
		span.RecordError(err)
		return uuid.Nil, err
	}

	span.SetAttributes(attribute.String("trip.id", id.String()))
	s.logger.Info("Saved trip",
		zap.String("trip_id", id.String()),
		zap.String("destination", trip.Destination))

	return id, nil
}

func defaultTitle(trip models.SavedTrip) string {
	if trip.Itinerary.ItineraryName != "" {
		return trip.Itinerary.ItineraryName
	}
	destination := trip.Destination
	if destination == "" {
		destination = trip.Itinerary.Summary.Destination
	}
	if destination == "" {
		return "Trip " + time.Now().Format("2006-01-02")
	}
	return destination + " trip"
}

func (s *ServiceImpl) GetTrip(ctx context.Context, userID, tripID uuid.UUID) (*models.SavedTrip, error) {
	ctx, span := otel.Tracer("TripsService").Start(ctx, "GetTrip")
	defer span.End()

	if userID == uuid.Nil {
		return nil, models.ErrUnauthorized
	}

	return s.repo.Get(ctx, userID, tripID)
}

func (s *ServiceImpl) ListTrips(ctx context.Context, filter models.TripsFilter) ([]models.SavedTrip, error) {
	ctx, span := otel.Tracer("TripsService").Start(ctx, "ListTrips")
	defer span.End()

	if filter.UserID == uuid.Nil {
		return nil, models.ErrUnauthorized
	}

	listed, err := s.repo.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("trips.count", len(listed)))
	return listed, nil
}

func (s *ServiceImpl) DeleteTrip(ctx context.Context, userID, tripID uuid.UUID) error {
	ctx, span := otel.Tracer("TripsService").Start(ctx, "DeleteTrip")
	defer span.End()

	if userID == uuid.Nil {
		return models.ErrUnauthorized
	}

	return s.repo.Delete(ctx, userID, tripID)
}
