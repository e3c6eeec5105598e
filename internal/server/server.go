package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/shindig/internal/handler"
	"github.com/dukerupert/shindig/internal/middleware"
	"github.com/dukerupert/shindig/internal/service"
	"github.com/dukerupert/shindig/internal/store"
	ws "github.com/dukerupert/shindig/internal/websocket"
)

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	authH       *handler.AuthHandler
	personH     *handler.PersonHandler
	householdH  *handler.HouseholdHandler
	eventH      *handler.EventHandler
	invitationH *handler.InvitationHandler
	rsvpH       *handler.RSVPHandler
	reminders   *service.ReminderService
	auth        *service.AuthService
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, mailer service.Mailer, cfg service.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	personStore := store.NewPersonStore(db)
	householdStore := store.NewHouseholdStore(db)
	eventStore := store.NewEventStore(db)
	invitationStore := store.NewInvitationStore(db)
	rsvpStore := store.NewRSVPStore(db)
	tokenStore := store.NewTokenStore(db)
	notificationStore := store.NewNotificationStore(db)

	authSvc := service.NewAuthService(personStore, tokenStore, mailer, cfg, logger.With("component", "auth"))
	invitationSvc := service.NewInvitationService(invitationStore, householdStore, eventStore, rsvpStore, notificationStore, mailer, cfg, logger.With("component", "invitation"))
	rsvpSvc := service.NewRSVPService(rsvpStore, householdStore, eventStore, notificationStore, mailer, logger.With("component", "rsvp"))
	reminderSvc := service.NewReminderService(eventStore, invitationStore, rsvpStore, householdStore, notificationStore, tokenStore, mailer, cfg, logger.With("component", "reminder"))

	return &Server{
		db:          db,
		hub:         hub,
		authH:       handler.NewAuthHandler(authSvc, logger.With("component", "auth_handler")),
		personH:     handler.NewPersonHandler(personStore, householdStore),
		householdH:  handler.NewHouseholdHandler(householdStore, personStore),
		eventH:      handler.NewEventHandler(eventStore, invitationSvc, rsvpSvc, hub),
		invitationH: handler.NewInvitationHandler(invitationSvc, invitationStore, hub),
		rsvpH:       handler.NewRSVPHandler(rsvpSvc, invitationSvc, rsvpStore, eventStore, householdStore, hub),
		reminders:   reminderSvc,
		auth:        authSvc,
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// ReminderService returns the reminder service for the daily tick loop.
func (s *Server) ReminderService() *service.ReminderService {
	return s.reminders
}

// AuthService returns the auth service for cleanup tasks.
func (s *Server) AuthService() *service.AuthService {
	return s.auth
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	// Auth routes. Per-IP rate limit on top of the per-person token limit.
	mux.HandleFunc("POST /auth/magic-link", s.rateLimitedHandler(s.authH.RequestMagicLink))
	mux.HandleFunc("GET /auth/verify", s.authH.VerifyMagicLink)
	mux.HandleFunc("POST /auth/login", s.rateLimitedHandler(s.authH.PasswordLogin))
	mux.HandleFunc("POST /auth/password-reset", s.rateLimitedHandler(s.authH.RequestPasswordReset))
	mux.HandleFunc("GET /auth/password-reset", s.authH.CheckPasswordReset)
	mux.HandleFunc("POST /auth/password-reset/complete", s.authH.CompletePasswordReset)

	// Guest RSVP routes, reached through the capability link
	mux.HandleFunc("GET /rsvp", s.rsvpH.GuestView)
	mux.HandleFunc("POST /rsvp", s.rsvpH.GuestSubmit)

	// People
	mux.HandleFunc("POST /api/people", s.personH.Create)
	mux.HandleFunc("GET /api/people/{id}", s.personH.Get)
	mux.HandleFunc("PUT /api/people/{id}", s.personH.Update)
	mux.HandleFunc("GET /api/people/{id}/households", s.personH.Households)
	mux.HandleFunc("GET /api/people/{id}/tags", s.personH.ListTags)
	mux.HandleFunc("POST /api/people/{id}/tags", s.personH.AddTag)
	mux.HandleFunc("DELETE /api/people/{id}/tags/{tag}", s.personH.RemoveTag)

	// Households
	mux.HandleFunc("POST /api/households", s.householdH.Create)
	mux.HandleFunc("GET /api/households/{id}", s.householdH.Get)
	mux.HandleFunc("PUT /api/households/{id}", s.householdH.Update)
	mux.HandleFunc("POST /api/households/{id}/archive", s.householdH.Archive)
	mux.HandleFunc("GET /api/households/{id}/members", s.householdH.Members)
	mux.HandleFunc("POST /api/households/{id}/members", s.householdH.AddMember)
	mux.HandleFunc("DELETE /api/households/{id}/members/{person_id}", s.householdH.RemoveMember)

	// Events
	mux.HandleFunc("POST /api/events", s.eventH.Create)
	mux.HandleFunc("GET /api/events", s.eventH.List)
	mux.HandleFunc("GET /api/events/{id}", s.eventH.Get)
	mux.HandleFunc("POST /api/events/{id}/publish", s.eventH.Publish)
	mux.HandleFunc("POST /api/events/{id}/archive", s.eventH.Archive)
	mux.HandleFunc("GET /api/events/{id}/stats", s.eventH.Stats)

	// Invitations
	mux.HandleFunc("POST /api/events/{id}/invitations", s.invitationH.Create)
	mux.HandleFunc("GET /api/events/{id}/invitations", s.invitationH.List)
	mux.HandleFunc("GET /api/events/{id}/invitations/stats", s.invitationH.Stats)
	mux.HandleFunc("POST /api/events/{id}/invitations/send-pending", s.invitationH.SendPending)
	mux.HandleFunc("POST /api/events/{id}/invitations/send-all", s.invitationH.SendAll)
	mux.HandleFunc("POST /api/invitations/{id}/send", s.invitationH.Send)
	mux.HandleFunc("POST /api/invitations/{id}/send/{person_id}", s.invitationH.SendToPerson)

	// RSVPs (host side)
	mux.HandleFunc("GET /api/events/{id}/rsvps", s.rsvpH.ListByEvent)
	mux.HandleFunc("GET /api/events/{id}/rsvps/stats", s.rsvpH.Stats)
	mux.HandleFunc("PUT /api/events/{id}/households/{household_id}/rsvps", s.rsvpH.HostUpdate)

	// Dashboard live updates
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
