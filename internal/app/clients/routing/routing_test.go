package routing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tripweave/tripweave/internal/app/models"
	"github.com/tripweave/tripweave/internal/observability/metrics"
)

func TestMain(m *testing.M) {
	metrics.InitAppMetrics()
	m.Run()
}

const osrmResponse = `{
  "code": "Ok",
  "routes": [
    {
      "distance": 5321.4,
      "duration": 3840.2,
      "legs": [
        {"distance": 2100.1, "duration": 1500.0, "summary": "Rua Augusta"},
        {"distance": 3221.3, "duration": 2340.2, "summary": "Avenida da Liberdade"}
      ]
    }
  ]
}`

func TestRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/route/v1/foot/"), "path %s", r.URL.Path)
		// lon,lat ordering on the wire
		assert.Contains(t, r.URL.Path, "-9.136592,38.707751")
		w.Write([]byte(osrmResponse))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "foot", 2*time.Second, zap.NewNop())

	route, err := client.Route(context.Background(), []models.GeoPoint{
		{Latitude: 38.707751, Longitude: -9.136592},
		{Latitude: 38.713910, Longitude: -9.133520},
		{Latitude: 38.721340, Longitude: -9.140050},
	})
	require.NoError(t, err)

	assert.Equal(t, "foot", route.Profile)
	assert.InDelta(t, 5321.4, route.DistanceMeters, 1e-9)
	assert.InDelta(t, 3840.2, route.DurationSeconds, 1e-9)
	require.Len(t, route.Legs, 2)
	assert.Equal(t, "Rua Augusta", route.Legs[0].Summary)
	assert.Len(t, route.Waypoints, 3)
}

func TestRouteRequiresTwoWaypoints(t *testing.T) {
	client := NewClient("http://localhost", "foot", time.Second, zap.NewNop())

	_, err := client.Route(context.Background(), []models.GeoPoint{{Latitude: 1, Longitude: 2}})
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestRouteNoRouteFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"code": "NoRoute", "routes": []}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "foot", 2*time.Second, zap.NewNop())

	_, err := client.Route(context.Background(), []models.GeoPoint{
		{Latitude: 0, Longitude: 0},
		{Latitude: 1, Longitude: 1},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NoRoute")
}

func TestRouteDefaultsProfile(t *testing.T) {
	client := NewClient("http://localhost", "", time.Second, zap.NewNop())
	assert.Equal(t, "foot", client.profile)
}
