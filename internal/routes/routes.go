package routes

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/tripweave/tripweave/internal/app/ai"
	"github.com/tripweave/tripweave/internal/app/clients/flights"
	"github.com/tripweave/tripweave/internal/app/clients/geocode"
	"github.com/tripweave/tripweave/internal/app/clients/hotels"
	"github.com/tripweave/tripweave/internal/app/clients/routing"
	"github.com/tripweave/tripweave/internal/app/domain/auth"
	"github.com/tripweave/tripweave/internal/app/domain/planner"
	"github.com/tripweave/tripweave/internal/app/domain/trips"
	"github.com/tripweave/tripweave/internal/app/streaming"
	"github.com/tripweave/tripweave/internal/pkg/config"
	"github.com/tripweave/tripweave/internal/pkg/middleware"
)

const streamMaxAge = 30 * time.Minute

// AppHandlers groups the HTTP handlers wired into the router.
type AppHandlers struct {
	Planner *planner.Handler
	Trips   *trips.Handler
	Auth    *auth.Handler
}

// SetupRouter builds the gin engine with the full middleware chain and all
// application routes.
func SetupRouter(ctx context.Context, cfg *config.Config, dbPool *pgxpool.Pool, logger *zap.Logger) (*gin.Engine, error) {
	handlers, tokens, err := buildHandlers(ctx, cfg, dbPool, logger)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(middleware.RequestLogger(logger))
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("tripweave"))
	r.Use(middleware.CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", handlers.Auth.Register)
		authGroup.POST("/login", handlers.Auth.Login)
		authGroup.GET("/me", auth.Middleware(tokens, false), handlers.Auth.Me)
	}

	// Planning works anonymously; a token attaches the session to the user
	itinerary := api.Group("/itinerary", auth.Middleware(tokens, true))
	{
		itinerary.POST("/stream", handlers.Planner.PlanTripStream)
		itinerary.GET("/stream/:sessionID", handlers.Planner.AttachStream)
		itinerary.POST("/plain", handlers.Planner.PlanTripPlainText)
		itinerary.GET("/sessions/:sessionID/history", handlers.Planner.SessionHistory)
	}

	tripsGroup := api.Group("/trips", auth.Middleware(tokens, false))
	{
		tripsGroup.POST("", handlers.Trips.SaveTrip)
		tripsGroup.GET("", handlers.Trips.ListTrips)
		tripsGroup.GET("/:tripID", handlers.Trips.GetTrip)
		tripsGroup.DELETE("/:tripID", handlers.Trips.DeleteTrip)
	}

	return r, nil
}

func buildHandlers(ctx context.Context, cfg *config.Config, dbPool *pgxpool.Pool, logger *zap.Logger) (*AppHandlers, *auth.TokenService, error) {
	aiClient, err := ai.NewGeminiClient(ctx, cfg.Gemini, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create AI client: %w", err)
	}

	timeout := cfg.Providers.RequestTimeout
	geocoder := geocode.NewClient(cfg.Providers.GeocoderBaseURL, timeout, logger)
	router := routing.NewClient(cfg.Providers.RouterBaseURL, cfg.Providers.RouterProfile, timeout, logger)
	flightSearcher := flights.NewClient(cfg.Providers.FlightsBaseURL, cfg.Providers.FlightsClientID,
		cfg.Providers.FlightsSecret, timeout, logger)
	hotelSearcher := hotels.NewClient(cfg.Providers.HotelsBaseURL, cfg.Providers.HotelsAPIKey, timeout, logger)

	streamManager := streaming.NewStreamManager()
	go func() {
		ticker := time.NewTicker(streamMaxAge / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				streamManager.CleanupExpiredStreams(streamMaxAge)
			}
		}
	}()

	plannerRepo := planner.NewPostgresRepository(dbPool, logger)
	plannerService := planner.NewService(aiClient, geocoder, router, flightSearcher, hotelSearcher, plannerRepo, logger)

	tripsRepo := trips.NewPostgresRepository(dbPool, logger)
	tripsService := trips.NewService(tripsRepo, logger)

	authRepo := auth.NewPostgresRepository(dbPool, logger)
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiration)
	authService := auth.NewService(authRepo, tokens, logger)

	return &AppHandlers{
		Planner: planner.NewHandler(plannerService, streamManager, logger),
		Trips:   trips.NewHandler(tripsService, logger),
		Auth:    auth.NewHandler(authService, logger),
	}, tokens, nil
}
