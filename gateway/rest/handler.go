// Package rest is the HTTP fallback surface: the same room operations
// as the websocket gateway, for clients that cannot hold a socket open.
// REST callers never hold a connection, so their posts and deletes are
// broadcast to the websocket side through the shared service.
package rest

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"chat-room/auth"
	"chat-room/domain"
	"chat-room/errors"
	"chat-room/observability"
	"chat-room/services"

	"github.com/google/uuid"
)

type Handler struct {
	log      *slog.Logger
	chat     services.IChatService
	authSvc  services.IAuthService
	resolver auth.IIdentityResolver
	metrics  *observability.Metrics
}

func NewHandler(log *slog.Logger, chat services.IChatService,
	authSvc services.IAuthService, resolver auth.IIdentityResolver,
	metrics *observability.Metrics) *Handler {
	return &Handler{log: log, chat: chat, authSvc: authSvc, resolver: resolver, metrics: metrics}
}

// Register mounts every route on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/register", h.handleRegister)
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("GET /messages", h.requireIdentity(h.handleHistory))
	mux.HandleFunc("POST /messages", h.requireIdentity(h.handlePost))
	mux.HandleFunc("DELETE /messages/{id}", h.requireIdentity(h.handleDelete))
	mux.HandleFunc("DELETE /messages", h.requireIdentity(h.handleClear))
	mux.HandleFunc("GET /presence", h.requireIdentity(h.handlePresence))
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("GET /stats", h.handleStats)
}

type credentialsRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	Password    string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	token, err := h.authSvc.Register(req.Email, req.DisplayName, req.Password)
	if err != nil {
		if stderrors.Is(err, errors.ErrUserAlreadyExists) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{Token: token.String()})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	token, err := h.authSvc.Login(req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, errors.ErrInvalidCredentials)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token.String()})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request, _ domain.Identity) {
	query := domain.HistoryQuery{}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.ErrInvalidMessage)
			return
		}
		query.Limit = limit
	}
	if raw := r.URL.Query().Get("before"); raw != "" {
		before, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.ErrInvalidMessage)
			return
		}
		query.Before = &before
	}

	messages, err := h.chat.History(query)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": toMessageResponses(messages)})
}

type postMessageRequest struct {
	Body string `json:"body"`
	Kind string `json:"kind,omitempty"`
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	message, err := h.chat.PostMessage(r.Context(), identity, req.Body, domain.MessageKind(req.Kind))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMessageResponse(message))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
	messageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.ErrInvalidMessage)
		return
	}
	if err := h.chat.Delete(r.Context(), identity, domain.DeleteMessageCommand{MessageID: messageID}); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
	count, err := h.chat.ClearAll(identity)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": count})
}

func (h *Handler) handlePresence(w http.ResponseWriter, _ *http.Request, _ domain.Identity) {
	entries := h.chat.PresenceSnapshot()
	users := make([]presenceResponse, 0, len(entries))
	for _, e := range entries {
		users = append(users, presenceResponse{UserID: e.UserID, DisplayName: e.DisplayName})
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.metrics.Snapshot())
}

type identityHandler func(w http.ResponseWriter, r *http.Request, identity domain.Identity)

// requireIdentity resolves the Bearer token and rejects the request
// when it is missing or stale.
func (h *Handler) requireIdentity(next identityHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, errors.ErrIdentityInvalid)
			return
		}
		identity, err := h.resolver.Resolve(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, errors.ErrIdentityInvalid)
			return
		}
		next(w, r, identity)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return "", false
	}
	return header[len(prefix):], true
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	status := errors.StatusCode(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", "error", err)
	}
	writeError(w, status, err)
}

type messageResponse struct {
	ID         string    `json:"id"`
	SenderID   *string   `json:"sender_id,omitempty"`
	SenderName string    `json:"sender_name"`
	SenderRole string    `json:"sender_role"`
	Body       string    `json:"body"`
	Kind       string    `json:"kind"`
	Lang       string    `json:"lang,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type presenceResponse struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

func toMessageResponse(m domain.ChatMessage) messageResponse {
	return messageResponse{
		ID:         m.ID.String(),
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		SenderRole: string(m.SenderRole),
		Body:       m.Body,
		Kind:       string(m.Kind),
		Lang:       m.Lang,
		CreatedAt:  m.CreatedAt,
	}
}

func toMessageResponses(messages []domain.ChatMessage) []messageResponse {
	out := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, toMessageResponse(m))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
