package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"

	"scheduling-service/internal/app"
	"scheduling-service/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, reading environment directly")
	}

	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL required")
	}
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer pool.Close()

	appInstance := &app.App{
		Store: app.NewPGStore(pool),
		Calendars: &app.ProviderGateway{
			GoogleOAuth:  googleOAuthFromEnv(),
			FetchTimeout: 10 * time.Second,
			Logger:       logger,
		},
		Logger: logger,
	}

	router := gin.Default()
	router.Use(app.AuthMiddleware(
		strings.Split(strings.TrimSpace(os.Getenv("STATIC_TOKENS")), ","),
		strings.TrimSpace(os.Getenv("JWT_HMAC_SECRET")),
	))

	api := router.Group("/api")
	{
		eventTypes := api.Group("/event-types")
		{
			eventTypes.POST("", appInstance.CreateEventTypeHandler)
			eventTypes.GET("/:id", appInstance.GetEventTypeHandler)
			eventTypes.PUT("/:id", appInstance.UpdateEventTypeHandler)
			eventTypes.DELETE("/:id", appInstance.DeleteEventTypeHandler)
			eventTypes.GET("/:id/slots", appInstance.GetSlotsHandler)
			eventTypes.GET("/:id/bookings", appInstance.ListBookingsHandler)
		}
		api.POST("/bookings", appInstance.CreateBookingHandler)
		api.DELETE("/bookings/:id", appInstance.CancelBookingHandler)
	}

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	server.Run(router, addr)
}

func googleOAuthFromEnv() *oauth2.Config {
	clientID := os.Getenv("GOOGLE_CLIENT_ID")
	clientSecret := os.Getenv("GOOGLE_CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		Scopes:       []string{gcal.CalendarScope},
		Endpoint:     google.Endpoint,
	}
}
