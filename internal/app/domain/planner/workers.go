package planner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/tripweave/tripweave/internal/app/models"
)

const (
	enrichWorkers = 4
	enrichTimeout = 10 * time.Second
)

// enrichDayPlansParallel fills in travel hints between consecutive
// activities of each day using the routing provider. Days are independent,
// so a small worker pool processes them concurrently. Any routing failure
// leaves the day as the model wrote it.
func (s *ServiceImpl) enrichDayPlansParallel(ctx context.Context, itinerary *models.AIItineraryResponse) {
	if itinerary == nil || len(itinerary.DayPlans) == 0 {
		return
	}

	ctx, span := otel.Tracer("PlannerService").Start(ctx, "enrichDayPlansParallel")
	defer span.End()

	workCh := make(chan int, len(itinerary.DayPlans))
	var wg sync.WaitGroup

	workers := enrichWorkers
	if len(itinerary.DayPlans) < workers {
		workers = len(itinerary.DayPlans)
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range workCh {
				// Each worker owns its day index, no shared writes
				s.enrichDayPlan(ctx, &itinerary.DayPlans[idx])
			}
		}()
	}

	for idx := range itinerary.DayPlans {
		workCh <- idx
	}
	close(workCh)
	wg.Wait()

	span.SetAttributes(attribute.Int("enrich.days", len(itinerary.DayPlans)))
}

func (s *ServiceImpl) enrichDayPlan(ctx context.Context, day *models.DayPlan) {
	for i := 0; i+1 < len(day.Activities); i++ {
		current := day.Activities[i]
		next := day.Activities[i+1]
		if current.TravelToNext != nil {
			continue
		}
		if current.Location.IsZero() || next.Location.IsZero() {
			continue
		}

		routeCtx, cancel := context.WithTimeout(ctx, enrichTimeout)
		route, err := s.router.Route(routeCtx, []models.GeoPoint{current.Location, next.Location})
		cancel()
		if err != nil {
			s.logger.Debug("Skipping travel hint, routing failed",
				zap.Int("day", day.Day),
				zap.String("from", current.Name),
				zap.String("to", next.Name),
				zap.Error(err))
			continue
		}

		hint := formatTravelHint(route)
		day.Activities[i].TravelToNext = &hint
	}
}

func formatTravelHint(route *models.Route) string {
	minutes := int(route.DurationSeconds / 60)
	if minutes < 1 {
		minutes = 1
	}
	if route.DistanceMeters >= 1000 {
		return fmt.Sprintf("~%d min (%.1f km)", minutes, route.DistanceMeters/1000)
	}
	return fmt.Sprintf("~%d min (%.0f m)", minutes, route.DistanceMeters)
}
