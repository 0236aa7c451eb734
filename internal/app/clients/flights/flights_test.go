package flights

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tripweave/tripweave/internal/observability/metrics"
)

func TestMain(m *testing.M) {
	metrics.InitAppMetrics()
	m.Run()
}

const offersBody = `{
  "data": [
    {
      "id": "1",
      "itineraries": [
        {
          "duration": "PT2H45M",
          "segments": [
            {
              "departure": {"iataCode": "LHR", "at": "2026-10-03T08:15:00"},
              "arrival": {"iataCode": "LIS", "at": "2026-10-03T11:00:00"},
              "carrierCode": "TP",
              "number": "1363"
            }
          ]
        }
      ],
      "price": {"total": "143.80", "currency": "EUR"}
    },
    {
      "id": "2",
      "itineraries": [],
      "price": {"total": "not-a-number", "currency": "EUR"}
    }
  ]
}`

func newTestServer(t *testing.T, tokenCalls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/security/oauth2/token":
			atomic.AddInt32(tokenCalls, 1)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
			w.Write([]byte(`{"access_token": "test-token", "expires_in": 1799}`))
		case "/v2/shopping/flight-offers":
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			assert.Equal(t, "LHR", r.URL.Query().Get("originLocationCode"))
			assert.Equal(t, "LIS", r.URL.Query().Get("destinationLocationCode"))
			w.Write([]byte(offersBody))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestSearch(t *testing.T) {
	var tokenCalls int32
	srv := newTestServer(t, &tokenCalls)
	defer srv.Close()

	client := NewClient(srv.URL, "id", "secret", 2*time.Second, zap.NewNop())

	offers, err := client.Search(context.Background(), SearchRequest{
		Origin:        "LHR",
		Destination:   "LIS",
		DepartureDate: "2026-10-03",
		Adults:        2,
	})
	require.NoError(t, err)

	// The offer with an unparseable price is dropped
	require.Len(t, offers, 1)
	assert.Equal(t, "1", offers[0].ID)
	assert.InDelta(t, 143.80, offers[0].Price, 1e-9)
	assert.Equal(t, "EUR", offers[0].Currency)
	assert.Equal(t, "PT2H45M", offers[0].TotalDuration)
	require.Len(t, offers[0].Segments, 1)
	assert.Equal(t, "TP", offers[0].Segments[0].CarrierCode)
	assert.Equal(t, "LHR", offers[0].Segments[0].Origin)
	assert.Equal(t, 0, offers[0].Stops)
}

func TestSearchReusesCachedToken(t *testing.T) {
	var tokenCalls int32
	srv := newTestServer(t, &tokenCalls)
	defer srv.Close()

	client := NewClient(srv.URL, "id", "secret", 2*time.Second, zap.NewNop())

	req := SearchRequest{Origin: "LHR", Destination: "LIS", DepartureDate: "2026-10-03"}
	_, err := client.Search(context.Background(), req)
	require.NoError(t, err)
	_, err = client.Search(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))
}

func TestSearchTokenFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "bad", "creds", 2*time.Second, zap.NewNop())

	_, err := client.Search(context.Background(), SearchRequest{
		Origin: "LHR", Destination: "LIS", DepartureDate: "2026-10-03",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
