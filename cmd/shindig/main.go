package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dukerupert/shindig/internal/database"
	"github.com/dukerupert/shindig/internal/email"
	"github.com/dukerupert/shindig/internal/logging"
	"github.com/dukerupert/shindig/internal/server"
	"github.com/dukerupert/shindig/internal/service"
)

func main() {
	logger := logging.Setup(os.Getenv("SHINDIG_LOG_LEVEL"))

	port := os.Getenv("SHINDIG_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("SHINDIG_DB_PATH")
	if dbPath == "" {
		dbPath = "shindig.db"
	}

	baseURL := os.Getenv("SHINDIG_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:" + port
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	mailer := email.NewClient(
		os.Getenv("SHINDIG_BREVO_API_KEY"),
		os.Getenv("SHINDIG_SENDER_EMAIL"),
		os.Getenv("SHINDIG_SENDER_NAME"),
		baseURL,
	)
	if !mailer.Configured() {
		logger.Warn("email not configured, invitations and login links will not be delivered")
	}

	cfg := service.DefaultConfig()
	cfg.MagicLinkTTL = envDuration("SHINDIG_MAGIC_LINK_TTL", cfg.MagicLinkTTL)
	cfg.PasswordResetTTL = envDuration("SHINDIG_PASSWORD_RESET_TTL", cfg.PasswordResetTTL)
	cfg.InvitationTokenTTL = envDuration("SHINDIG_INVITATION_TOKEN_TTL", cfg.InvitationTokenTTL)
	cfg.TokenRateLimit = envInt("SHINDIG_TOKEN_RATE_LIMIT", cfg.TokenRateLimit)
	cfg.TokenRateWindow = envDuration("SHINDIG_TOKEN_RATE_WINDOW", cfg.TokenRateWindow)
	cfg.ReminderLeadDays = envInt("SHINDIG_REMINDER_LEAD_DAYS", cfg.ReminderLeadDays)

	srv := server.New(db, mailer, cfg, logger)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Hourly maintenance: RSVP reminders, event archival, token pruning.
	// Tick is idempotent within a day, so the hourly cadence just bounds
	// how late a reminder can land after midnight.
	stopMaintenance := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := srv.ReminderService().Tick(time.Now()); err != nil {
					logger.Error("maintenance tick", "error", err)
				}
				srv.RateLimiter().Cleanup()
			case <-stopMaintenance:
				return
			}
		}
	}()

	go func() {
		fmt.Printf("Shindig running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	close(stopMaintenance)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("invalid %s %q, using %s", key, v, fallback)
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("invalid %s %q, using %d", key, v, fallback)
	}
	return fallback
}
