// Package routing is a client for an OSRM-style routing service.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tripweave/tripweave/internal/app/models"
	"github.com/tripweave/tripweave/internal/observability/metrics"
)

// Client computes routes between ordered waypoints.
type Client struct {
	baseURL    string
	profile    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL, profile string, timeout time.Duration, logger *zap.Logger) *Client {
	if profile == "" {
		profile = "foot"
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		profile:    profile,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type routeResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Legs     []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
			Summary  string  `json:"summary"`
		} `json:"legs"`
	} `json:"routes"`
}

// Route computes a route through the given waypoints in order.
// At least two waypoints are required.
func (c *Client) Route(ctx context.Context, waypoints []models.GeoPoint) (*models.Route, error) {
	ctx, span := otel.Tracer("RoutingClient").Start(ctx, "Route", trace.WithAttributes(
		attribute.Int("route.waypoints", len(waypoints)),
	))
	defer span.End()

	if len(waypoints) < 2 {
		return nil, fmt.Errorf("%w: route needs at least two waypoints", models.ErrBadRequest)
	}

	coords := make([]string, 0, len(waypoints))
	for _, wp := range waypoints {
		// OSRM wants lon,lat order
		coords = append(coords, fmt.Sprintf("%f,%f", wp.Longitude, wp.Latitude))
	}

	params := url.Values{}
	params.Set("overview", "false")
	params.Set("steps", "false")

	reqURL := fmt.Sprintf("%s/route/v1/%s/%s?%s",
		c.baseURL, c.profile, strings.Join(coords, ";"), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build route request: %w", err)
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	c.observe(ctx, startTime, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Route request failed")
		return nil, fmt.Errorf("route request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("router returned status %d", resp.StatusCode)
		span.RecordError(err)
		return nil, err
	}

	var decoded routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to decode route response: %w", err)
	}

	if decoded.Code != "Ok" || len(decoded.Routes) == 0 {
		err := fmt.Errorf("router found no route (code=%q)", decoded.Code)
		span.RecordError(err)
		span.SetStatus(codes.Error, "No route found")
		return nil, err
	}

	best := decoded.Routes[0]
	route := &models.Route{
		Profile:         c.profile,
		DistanceMeters:  best.Distance,
		DurationSeconds: best.Duration,
		Waypoints:       waypoints,
	}
	for _, leg := range best.Legs {
		route.Legs = append(route.Legs, models.RouteLeg{
			DistanceMeters:  leg.Distance,
			DurationSeconds: leg.Duration,
			Summary:         leg.Summary,
		})
	}

	span.SetAttributes(
		attribute.Float64("route.distance_meters", route.DistanceMeters),
		attribute.Float64("route.duration_seconds", route.DurationSeconds),
	)
	span.SetStatus(codes.Ok, "Route computed")

	return route, nil
}

func (c *Client) observe(ctx context.Context, startTime time.Time, err error) {
	m := metrics.Get()
	m.ProviderRequestsTotal.Add(ctx, 1)
	m.ProviderRequestDuration.Record(ctx, time.Since(startTime).Seconds())
	if err != nil {
		m.ProviderErrorsTotal.Add(ctx, 1)
	}
}
