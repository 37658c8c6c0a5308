package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"propsync/internal/auth"
	"propsync/internal/config"
	"propsync/internal/feeds"
	"propsync/internal/layout"
	appLog "propsync/internal/log"
	"propsync/internal/model"
	"propsync/internal/store"
)

// Server provides the bookings, calendar and feed APIs.
type Server struct {
	cfg      *config.Config
	bookings *store.BookingStore
	feeds    *feeds.Manager
	auth     auth.Provider
	loc      *time.Location
	now      func() time.Time
	router   chi.Router
}

// Deps are the collaborators a Server needs. Auth may be nil, which
// disables authentication.
type Deps struct {
	Bookings *store.BookingStore
	Feeds    *feeds.Manager
	Auth     auth.Provider
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:      cfg,
		bookings: deps.Bookings,
		feeds:    deps.Feeds,
		auth:     deps.Auth,
		loc:      cfg.Location(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	s.router = s.routes()
	return s
}

// Handler returns the root http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// /health is always served without authentication.
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/bookings", s.listBookings)
		r.Post("/bookings", s.createBooking)
		r.Get("/bookings/{id}", s.getBooking)
		r.Put("/bookings/{id}", s.updateBooking)
		r.Delete("/bookings/{id}", s.deleteBooking)

		r.Get("/calendar", s.handleCalendar)
		r.Get("/export.ics", s.handleExport)
		r.Post("/validate", s.handleValidate)

		r.Get("/feeds", s.listFeeds)
		r.Post("/feeds", s.addFeed)
		r.Delete("/feeds/{id}", s.deleteFeed)
		r.Post("/feeds/{id}/sync", s.syncFeed)
		r.Get("/feeds/{id}/events", s.feedEvents)
	})
	return r
}

// Start serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen, "auth", s.auth != nil)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type ctxKey struct{}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(model.User)
	return u, ok
}

// actor names the caller in audit log lines.
func actor(r *http.Request) string {
	if u, ok := UserFromContext(r.Context()); ok {
		return u.ID
	}
	return "anonymous"
}

// authenticate enforces HTTP Basic Auth through the auth provider. Viewers
// may only read.
func (s *Server) authenticate(next http.Handler) http.Handler {
	if s.auth == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email, password, ok := r.BasicAuth()
		if !ok {
			s.challenge(w)
			return
		}
		u, err := s.auth.Verify(r.Context(), auth.Credentials{Email: email, Password: password})
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidCredentials) {
				appLog.Error("auth provider failed", err)
			}
			s.challenge(w)
			return
		}
		if !u.CanWrite() && r.Method != http.MethodGet && r.Method != http.MethodHead {
			writeError(w, http.StatusForbidden, "read-only account")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, u)))
	})
}

func (s *Server) challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="PropertySync", charset="UTF-8"`)
	writeError(w, http.StatusUnauthorized, "unauthorized")
}

// requestLogger logs one debug line per request through the app logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) weekStart() time.Weekday {
	return layout.ParseWeekStart(s.cfg.WeekStart)
}
