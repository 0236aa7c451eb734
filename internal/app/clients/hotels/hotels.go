// Package hotels is a client for a hotel offers search API.
package hotels

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
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

// Client searches hotel offers near a coordinate.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// SearchRequest narrows a hotel offers search.
type SearchRequest struct {
	Location     models.GeoPoint
	RadiusKm     int
	CheckInDate  string
	CheckOutDate string
	Adults       int
	MaxResults   int
}

type offersResponse struct {
	Data []struct {
		ID     string  `json:"id"`
		Name   string  `json:"name"`
		Rating float64 `json:"rating"`
		Geo    struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"geo"`
		Address string `json:"address"`
		Offer   struct {
			PricePerNight string `json:"price_per_night"`
			Currency      string `json:"currency"`
		} `json:"offer"`
		Amenities []string `json:"amenities"`
	} `json:"data"`
}

// Search returns priced hotel offers near the given location.
func (c *Client) Search(ctx context.Context, searchReq SearchRequest) ([]models.HotelOffer, error) {
	ctx, span := otel.Tracer("HotelsClient").Start(ctx, "Search", trace.WithAttributes(
		attribute.Float64("hotels.latitude", searchReq.Location.Latitude),
		attribute.Float64("hotels.longitude", searchReq.Location.Longitude),
	))
	defer span.End()

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(searchReq.Location.Latitude, 'f', 6, 64))
	params.Set("longitude", strconv.FormatFloat(searchReq.Location.Longitude, 'f', 6, 64))
	radius := searchReq.RadiusKm
	if radius < 1 {
		radius = 5
	}
	params.Set("radius", strconv.Itoa(radius))
	params.Set("radiusUnit", "KM")
	if searchReq.CheckInDate != "" {
		params.Set("checkInDate", searchReq.CheckInDate)
	}
	if searchReq.CheckOutDate != "" {
		params.Set("checkOutDate", searchReq.CheckOutDate)
	}
	adults := searchReq.Adults
	if adults < 1 {
		adults = 1
	}
	params.Set("adults", strconv.Itoa(adults))

	reqURL := fmt.Sprintf("%s/v3/shopping/hotel-offers?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build hotel search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	c.observe(ctx, startTime, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Hotel search request failed")
		return nil, fmt.Errorf("hotel search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("hotel provider returned status %d", resp.StatusCode)
		span.RecordError(err)
		return nil, err
	}

	var decoded offersResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to decode hotel offers: %w", err)
	}

	maxResults := searchReq.MaxResults
	if maxResults < 1 {
		maxResults = 5
	}

	offers := make([]models.HotelOffer, 0, maxResults)
	for _, d := range decoded.Data {
		if len(offers) >= maxResults {
			break
		}

		price, err := strconv.ParseFloat(d.Offer.PricePerNight, 64)
		if err != nil {
			c.logger.Warn("Skipping hotel offer with unparseable price",
				zap.String("hotel_id", d.ID),
				zap.String("price", d.Offer.PricePerNight))
			continue
		}

		offers = append(offers, models.HotelOffer{
			ID:            d.ID,
			Name:          d.Name,
			Rating:        d.Rating,
			PricePerNight: price,
			Currency:      d.Offer.Currency,
			Address:       d.Address,
			Amenities:     d.Amenities,
			Location: models.GeoPoint{
				Latitude:  d.Geo.Latitude,
				Longitude: d.Geo.Longitude,
			},
		})
	}

	span.SetAttributes(attribute.Int("hotels.offers", len(offers)))
	span.SetStatus(codes.Ok, "Hotel search completed")

	return offers, nil
}

func (c *Client) observe(ctx context.Context, startTime time.Time, err error) {
	m := metrics.Get()
	m.ProviderRequestsTotal.Add(ctx, 1)
	m.ProviderRequestDuration.Record(ctx, time.Since(startTime).Seconds())
	if err != nil {
		m.ProviderErrorsTotal.Add(ctx, 1)
	}
}
