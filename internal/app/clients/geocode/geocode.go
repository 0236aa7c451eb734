// Package geocode is a client for a Nominatim-style forward geocoder.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/tripweave/tripweave/internal/app/models"
	"github.com/tripweave/tripweave/internal/observability/metrics"
)

const (
	cacheTTL        = 24 * time.Hour
	cacheCleanup    = 1 * time.Hour
	defaultPageSize = 5
)

// Client resolves free-text place queries to coordinates.
type Client struct {
	baseURL    string
	httpClient *http.Client
	results    *cache.Cache
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		results:    cache.New(cacheTTL, cacheCleanup),
		logger:     logger,
	}
}

type searchResult struct {
	DisplayName string  `json:"display_name"`
	Name        string  `json:"name"`
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	Category    string  `json:"category"`
	Importance  float64 `json:"importance"`
	Address     struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Country string `json:"country"`
	} `json:"address"`
}

// Search geocodes a free-text query. Results are cached on an accent-folded
// key so "São Paulo" and "sao paulo" hit the same entry.
func (c *Client) Search(ctx context.Context, query string) ([]models.Place, error) {
	ctx, span := otel.Tracer("GeocodeClient").Start(ctx, "Search")
	defer span.End()

	key := normalizeQuery(query)
	span.SetAttributes(attribute.String("geocode.query", key))

	if cached, found := c.results.Get(key); found {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached.([]models.Place), nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	params.Set("limit", strconv.Itoa(defaultPageSize))

	reqURL := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build geocode request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	c.observe(ctx, startTime, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Geocode request failed")
		return nil, fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("geocoder returned status %d", resp.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Unexpected geocoder status")
		return nil, err
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to decode geocode response: %w", err)
	}

	places := make([]models.Place, 0, len(results))
	for _, r := range results {
		lat, latErr := strconv.ParseFloat(r.Lat, 64)
		lon, lonErr := strconv.ParseFloat(r.Lon, 64)
		if latErr != nil || lonErr != nil {
			c.logger.Warn("Skipping geocode result with bad coordinates",
				zap.String("display_name", r.DisplayName))
			continue
		}

		city := r.Address.City
		if city == "" {
			city = r.Address.Town
		}

		places = append(places, models.Place{
			Name:        r.Name,
			DisplayName: r.DisplayName,
			Country:     r.Address.Country,
			City:        city,
			Category:    r.Category,
			Importance:  r.Importance,
			Location:    models.GeoPoint{Latitude: lat, Longitude: lon},
		})
	}

	span.SetAttributes(attribute.Int("geocode.results", len(places)))
	span.SetStatus(codes.Ok, "Geocode completed")

	c.results.Set(key, places, cache.DefaultExpiration)
	return places, nil
}

// SearchOne returns the best-ranked match for a query.
func (c *Client) SearchOne(ctx context.Context, query string) (*models.Place, error) {
	places, err := c.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, models.ErrNotFound
	}
	return &places[0], nil
}

func (c *Client) observe(ctx context.Context, startTime time.Time, err error) {
	m := metrics.Get()
	m.ProviderRequestsTotal.Add(ctx, 1)
	m.ProviderRequestDuration.Record(ctx, time.Since(startTime).Seconds())
	if err != nil {
		m.ProviderErrorsTotal.Add(ctx, 1)
	}
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeQuery lowercases and strips diacritics so cache keys collapse
// spelling variants of the same place.
func normalizeQuery(query string) string {
	folded, _, err := transform.String(foldTransformer, strings.ToLower(strings.TrimSpace(query)))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(query))
	}
	return strings.Join(strings.Fields(folded), " ")
}
