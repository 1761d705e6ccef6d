package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/avolkov/notes-service/internal/config"
	"github.com/avolkov/notes-service/internal/middleware"
	"github.com/avolkov/notes-service/internal/service"
	"github.com/avolkov/notes-service/internal/session"
	"github.com/sirupsen/logrus"
)

// Handler exposes the HTTP endpoints
type Handler struct {
	svc      *service.Service
	sessions session.Store
	log      *logrus.Logger
	cfg      *config.Config
}

// NewHandler initializes a new handler
func NewHandler(svc *service.Service, sessions session.Store, log *logrus.Logger, cfg *config.Config) *Handler {
	return &Handler{svc: svc, sessions: sessions, log: log, cfg: cfg}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type noteRequest struct {
	Content string `json:"content"`
}

type noteResponse struct {
	ID        int64  `json:"id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		h.writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	if _, err := h.svc.Register(r.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, service.ErrUsernameTaken) {
			h.writeError(w, http.StatusConflict, "Username already exists")
			return
		}
		h.log.Errorf("registration failed for %q: %v", req.Username, err)
		h.writeError(w, http.StatusInternalServerError, "An error occurred during registration")
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

// Login handles user authentication and establishes a session
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	user, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		// Unknown user and wrong password produce the same response to
		// prevent username enumeration.
		if !errors.Is(err, service.ErrInvalidCredentials) {
			h.log.Errorf("login failed for %q: %v", req.Username, err)
		}
		h.writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.sessions.Create(user.ID)
	if err != nil {
		h.log.Errorf("session creation failed for %q: %v", user.Username, err)
		h.writeError(w, http.StatusInternalServerError, "An error occurred during login")
		return
	}
	http.SetCookie(w, h.sessionCookie(token, 0))

	h.writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Login successful",
		"username": user.Username,
	})
}

// CreateNote handles note creation for the authenticated user
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		h.writeError(w, http.StatusBadRequest, "Note content is required")
		return
	}

	note, err := h.svc.CreateNote(r.Context(), userID, req.Content)
	if err != nil {
		h.log.Errorf("note creation failed for user %d: %v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "An error occurred while saving the note")
		return
	}

	h.writeJSON(w, http.StatusCreated, noteResponse{
		ID:        note.ID,
		Content:   note.Content,
		CreatedAt: note.CreatedAt.Format(time.RFC3339),
	})
}

// Logout clears the caller's session. It succeeds whether or not a session
// existed, so logging out twice is harmless.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.cfg.SessionCookieName); err == nil {
		h.sessions.Destroy(cookie.Value)
	}
	http.SetCookie(w, h.sessionCookie("", -1))
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (h *Handler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.cfg.SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: h.cfg.SessionCookieSameSite,
		Secure:   h.cfg.SessionCookieSecure,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Errorf("failed to encode response: %v", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
