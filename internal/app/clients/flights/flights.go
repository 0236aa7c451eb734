// Package flights is a client for an Amadeus-style flight offers API.
package flights

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tripweave/tripweave/internal/app/models"
	"github.com/tripweave/tripweave/internal/observability/metrics"
)

// tokenSkew renews the token slightly before the server-side expiry.
const tokenSkew = 30 * time.Second

// Client searches flight offers. OAuth2 client-credentials tokens are
// cached until shortly before expiry.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	logger       *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewClient(baseURL, clientID, clientSecret string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

// SearchRequest narrows a flight offers search.
type SearchRequest struct {
	Origin        string
	Destination   string
	DepartureDate string
	ReturnDate    string
	Adults        int
	MaxResults    int
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type offersResponse struct {
	Data []struct {
		ID          string `json:"id"`
		Itineraries []struct {
			Duration string `json:"duration"`
			Segments []struct {
				Departure struct {
					IataCode string `json:"iataCode"`
					At       string `json:"at"`
				} `json:"departure"`
				Arrival struct {
					IataCode string `json:"iataCode"`
					At       string `json:"at"`
				} `json:"arrival"`
				CarrierCode string `json:"carrierCode"`
				Number      string `json:"number"`
			} `json:"segments"`
		} `json:"itineraries"`
		Price struct {
			Total    string `json:"total"`
			Currency string `json:"currency"`
		} `json:"price"`
	} `json:"data"`
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/security/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var decoded tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if decoded.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty token")
	}

	c.accessToken = decoded.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(decoded.ExpiresIn)*time.Second - tokenSkew)
	c.logger.Debug("Refreshed flight provider token",
		zap.Time("expiry", c.tokenExpiry))

	return c.accessToken, nil
}

// Search returns priced flight offers for the request.
func (c *Client) Search(ctx context.Context, searchReq SearchRequest) ([]models.FlightOffer, error) {
	ctx, span := otel.Tracer("FlightsClient").Start(ctx, "Search", trace.WithAttributes(
		attribute.String("flights.origin", searchReq.Origin),
		attribute.String("flights.destination", searchReq.Destination),
	))
	defer span.End()

	token, err := c.token(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Token acquisition failed")
		return nil, err
	}

	params := url.Values{}
	params.Set("originLocationCode", searchReq.Origin)
	params.Set("destinationLocationCode", searchReq.Destination)
	params.Set("departureDate", searchReq.DepartureDate)
	if searchReq.ReturnDate != "" {
		params.Set("returnDate", searchReq.ReturnDate)
	}
	adults := searchReq.Adults
	if adults < 1 {
		adults = 1
	}
	params.Set("adults", strconv.Itoa(adults))
	maxResults := searchReq.MaxResults
	if maxResults < 1 {
		maxResults = 5
	}
	params.Set("max", strconv.Itoa(maxResults))

	reqURL := fmt.Sprintf("%s/v2/shopping/flight-offers?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build flight search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	c.observe(ctx, startTime, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Flight search request failed")
		return nil, fmt.Errorf("flight search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("flight provider returned status %d", resp.StatusCode)
		span.RecordError(err)
		return nil, err
	}

	var decoded offersResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to decode flight offers: %w", err)
	}

	offers := make([]models.FlightOffer, 0, len(decoded.Data))
	for _, d := range decoded.Data {
		price, err := strconv.ParseFloat(d.Price.Total, 64)
		if err != nil {
			c.logger.Warn("Skipping flight offer with unparseable price",
				zap.String("offer_id", d.ID),
				zap.String("price", d.Price.Total))
			continue
		}

		offer := models.FlightOffer{
			ID:       d.ID,
			Price:    price,
			Currency: d.Price.Currency,
		}

		for _, itin := range d.Itineraries {
			if offer.TotalDuration == "" {
				offer.TotalDuration = itin.Duration
			}
			for _, seg := range itin.Segments {
				departure, _ := time.Parse("2006-01-02T15:04:05", seg.Departure.At)
				arrival, _ := time.Parse("2006-01-02T15:04:05", seg.Arrival.At)
				offer.Segments = append(offer.Segments, models.FlightSegment{
					CarrierCode:   seg.CarrierCode,
					FlightNumber:  seg.Number,
					Origin:        seg.Departure.IataCode,
					Destination:   seg.Arrival.IataCode,
					DepartureTime: departure,
					ArrivalTime:   arrival,
				})
			}
		}
		if len(offer.Segments) > 0 {
			offer.Stops = len(offer.Segments) - len(d.Itineraries)
			if offer.Stops < 0 {
				offer.Stops = 0
			}
		}

		offers = append(offers, offer)
	}

	span.SetAttributes(attribute.Int("flights.offers", len(offers)))
	span.SetStatus(codes.Ok, "Flight search completed")

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
