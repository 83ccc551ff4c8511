package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/thinkscotty/civicwire/internal/auth"
	"github.com/thinkscotty/civicwire/internal/database"
	"github.com/thinkscotty/civicwire/internal/models"
)

type credentials struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm,omitempty"`
}

// isHTTPS checks if the original request was made over HTTPS by examining
// the X-Forwarded-Proto header (set by reverse proxies) or the TLS state.
func isHTTPS(r *http.Request) bool {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "https" {
		return true
	}
	return r.TLS != nil
}

// handleSetup creates the first administrator. It is only available while no
// account exists.
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	if s.hasUsers.Load() {
		jsonError(w, "Setup already completed", http.StatusForbidden)
		return
	}
	if count, _ := s.db.UserCount(); count > 0 {
		s.hasUsers.Store(true)
		jsonError(w, "Setup already completed", http.StatusForbidden)
		return
	}

	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		jsonError(w, "Username and password are required", http.StatusBadRequest)
		return
	}
	if len(req.Password) < auth.MinPasswordLength {
		jsonError(w, "Password must be at least 8 characters", http.StatusBadRequest)
		return
	}
	if req.Password != req.PasswordConfirm {
		jsonError(w, "Passwords do not match", http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.Error("Failed to hash password", "error", err)
		jsonError(w, "Internal error", http.StatusInternalServerError)
		return
	}

	user := &models.User{
		Username:     username,
		PasswordHash: hash,
		IsAdmin:      true,
	}
	if err := s.db.CreateFirstUser(user); err != nil {
		if errors.Is(err, database.ErrSetupDone) {
			s.hasUsers.Store(true)
			jsonError(w, "Setup already completed", http.StatusForbidden)
			return
		}
		slog.Error("Failed to create user", "error", err)
		jsonError(w, "Failed to create account", http.StatusInternalServerError)
		return
	}

	s.hasUsers.Store(true)

	slog.Info("Admin account created", "username", username)
	jsonStatus(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		jsonError(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	user, err := s.db.GetUserByUsername(username)
	if err != nil {
		slog.Debug("Login failed: user lookup", "username", username, "error", err)
		jsonError(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	if err := auth.CheckPassword(req.Password, user.PasswordHash); err != nil {
		slog.Debug("Login failed: wrong password", "username", username)
		jsonError(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateToken()
	if err != nil {
		slog.Error("Failed to generate session token", "error", err)
		jsonError(w, "Internal error", http.StatusInternalServerError)
		return
	}

	ttl := s.cfg.SessionTTL()
	sess := &models.Session{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := s.db.CreateSession(sess); err != nil {
		slog.Error("Failed to create session", "error", err)
		jsonError(w, "Internal error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   isHTTPS(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	})

	slog.Info("User logged in", "username", username)
	jsonResponse(w, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		s.db.DeleteSession(cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   isHTTPS(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	jsonResponse(w, map[string]bool{"ok": true})
}
