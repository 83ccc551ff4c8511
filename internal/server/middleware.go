package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/thinkscotty/civicwire/internal/auth"
	"github.com/thinkscotty/civicwire/internal/models"
)

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(sw, r)
		slog.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start).String(),
		)
	})
}

func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic recovered", "error", err, "path", r.URL.Path)
				jsonError(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// sessionUser returns the user behind the session cookie, if any.
func (s *Server) sessionUser(r *http.Request) (models.User, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		return models.User{}, false
	}
	user, err := s.db.SessionUser(cookie.Value)
	if err != nil {
		return models.User{}, false
	}
	return user, true
}

// presentedSecret reads a cron secret from X-Cron-Secret, a Bearer token or
// the secret query parameter, in that order.
func presentedSecret(r *http.Request) string {
	if v := r.Header.Get("X-Cron-Secret"); v != "" {
		return v
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("secret")
}

func (s *Server) cronSecretValid(r *http.Request) bool {
	return auth.SecretMatches(presentedSecret(r), s.cfg.Ingest.CronSecret)
}

// fromScheduler reports whether the platform scheduler header is present.
// An empty header name disables this path.
func (s *Server) fromScheduler(r *http.Request) bool {
	name := s.cfg.Ingest.SchedulerHeader
	return name != "" && r.Header.Get(name) == "1"
}

// requireOperator admits an admin session or a valid cron secret.
func (s *Server) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cronSecretValid(r) {
			next.ServeHTTP(w, r)
			return
		}
		if user, ok := s.sessionUser(r); ok && user.IsAdmin {
			next.ServeHTTP(w, r)
			return
		}
		jsonError(w, "Unauthorized", http.StatusUnauthorized)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the connection's writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
