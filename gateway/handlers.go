// Package gateway is the session edge of the system: HTTP endpoints for
// registration and login, and the authenticated WebSocket realtime channel.
package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"talk-hub/auth"
	apperrors "talk-hub/errors"
	"talk-hub/services"
)

type Handler struct {
	log         *slog.Logger
	authService services.IAuthService
	chatService services.IChatService
	tokens      auth.TokenService
	upgrader    websocket.Upgrader
	bufferSize  int
}

func NewHandler(log *slog.Logger, authService services.IAuthService,
	chatService services.IChatService, tokens auth.TokenService, bufferSize int) *Handler {
	return &Handler{
		log:         log,
		authService: authService,
		chatService: chatService,
		tokens:      tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Cross-origin policy is an edge concern handled in front of
			// this service.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		bufferSize: bufferSize,
	}
}

// Routes wires the public endpoints onto a fresh mux. The realtime channel
// sits behind the token middleware: a missing or invalid token is rejected
// with 403 before the upgrade, so every realtime event carries a verified
// identity.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", h.Register)
	mux.HandleFunc("POST /login", h.Login)
	mux.Handle("GET /ws", h.tokens.Middleware(http.HandlerFunc(h.Realtime)))
	return mux
}

type messageResponse struct {
	Message string `json:"message"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Register handles user registration.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}

	if err := h.authService.Register(req.Username, req.Password); err != nil {
		if errors.Is(err, apperrors.ErrUserAlreadyExists) {
			h.writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Username already exists"})
			return
		}
		h.log.Error("Registration failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Registration failed"})
		return
	}

	h.writeJSON(w, http.StatusCreated, messageResponse{Message: "User registered successfully"})
}

// Login verifies credentials and returns a session token. Unknown user
// and wrong password share one response body.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}

	token, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidCredentials) {
			h.writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Invalid username or password"})
			return
		}
		h.log.Error("Login failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Login failed"})
		return
	}

	h.writeJSON(w, http.StatusOK, tokenResponse{Token: string(token)})
}

// Realtime upgrades the connection to WebSocket. The token middleware has
// already verified the session, so the identity is read from the context.
func (h *Handler) Realtime(w http.ResponseWriter, r *http.Request) {
	username, ok := auth.UsernameFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "err", err)
		return
	}

	client := NewClient(conn, username, h.chatService, h.bufferSize, h.log)
	h.log.Info("Realtime connection opened", "conn", client.ID(), "user", username)
	client.Run(r.Context())
}

func (h *Handler) decodeCredentials(w http.ResponseWriter, r *http.Request) (auth.CredentialsRequest, bool) {
	var req auth.CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Invalid request body"})
		return req, false
	}
	if err := auth.ValidateCredentials(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Username and password are required"})
		return req, false
	}
	return req, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}
