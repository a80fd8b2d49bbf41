package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"chat-room/contract"
	"chat-room/domain"
	"chat-room/errors"
	"chat-room/observability"
	"chat-room/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// stubChatService scripts the service layer so handler tests only
// exercise HTTP concerns: status mapping, JSON shapes, auth middleware.
type stubChatService struct {
	history    []domain.ChatMessage
	historyErr error
	posted     domain.ChatMessage
	postErr    error
	deleteErr  error
	clearCount int
	clearErr   error
	presence   []domain.PresenceEntry
}

func (s *stubChatService) Attach(_ contract.EventSink, _ *domain.Identity) string { return "conn" }
func (s *stubChatService) Join(_ context.Context, _ string) error                 { return nil }
func (s *stubChatService) Leave(_ string) error                                   { return nil }
func (s *stubChatService) Detach(_ string)                                        {}
func (s *stubChatService) Send(_ context.Context, _, _ string, _ domain.MessageKind) (domain.ChatMessage, error) {
	return s.posted, s.postErr
}
func (s *stubChatService) PostMessage(_ context.Context, _ domain.Identity, _ string, _ domain.MessageKind) (domain.ChatMessage, error) {
	return s.posted, s.postErr
}
func (s *stubChatService) Delete(_ context.Context, _ domain.Identity, _ domain.DeleteMessageCommand) error {
	return s.deleteErr
}
func (s *stubChatService) SetTyping(_ string, _ bool) error { return nil }
func (s *stubChatService) History(_ domain.HistoryQuery) ([]domain.ChatMessage, error) {
	return s.history, s.historyErr
}
func (s *stubChatService) ClearAll(_ domain.Identity) (int, error) {
	return s.clearCount, s.clearErr
}
func (s *stubChatService) PresenceSnapshot() []domain.PresenceEntry { return s.presence }

type stubAuthService struct {
	token services.Token
	err   error
}

func (s *stubAuthService) Register(_, _, _ string) (services.Token, error) { return s.token, s.err }
func (s *stubAuthService) Login(_, _ string) (services.Token, error)       { return s.token, s.err }

type stubResolver struct {
	identity domain.Identity
	err      error
}

func (s *stubResolver) Resolve(_ string) (domain.Identity, error) { return s.identity, s.err }

func newTestServer(chat *stubChatService, authSvc *stubAuthService, resolver *stubResolver) *httptest.Server {
	mux := http.NewServeMux()
	NewHandler(slog.Default(), chat, authSvc, resolver, observability.NewMetrics()).Register(mux)
	return httptest.NewServer(mux)
}

func doRequest(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var reqBody *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reqBody)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestHandler_Register_And_Login(t *testing.T) {
	req := require.New(t)

	t.Run("register returns 201 with token", func(t *testing.T) {
		server := newTestServer(&stubChatService{}, &stubAuthService{token: "jwt-token"}, &stubResolver{})
		defer server.Close()

		resp := doRequest(t, http.MethodPost, server.URL+"/auth/register", "", map[string]string{
			"email": "a@example.com", "display_name": "Alice", "password": "ComplexPass123!",
		})
		defer resp.Body.Close()

		req.Equal(http.StatusCreated, resp.StatusCode)
		var body tokenResponse
		req.NoError(json.NewDecoder(resp.Body).Decode(&body))
		req.Equal("jwt-token", body.Token)
	})

	t.Run("duplicate email maps to 409", func(t *testing.T) {
		server := newTestServer(&stubChatService{}, &stubAuthService{err: errors.ErrUserAlreadyExists}, &stubResolver{})
		defer server.Close()

		resp := doRequest(t, http.MethodPost, server.URL+"/auth/register", "", map[string]string{
			"email": "a@example.com", "display_name": "Alice", "password": "ComplexPass123!",
		})
		defer resp.Body.Close()

		req.Equal(http.StatusConflict, resp.StatusCode)
	})

	t.Run("bad credentials map to 401", func(t *testing.T) {
		server := newTestServer(&stubChatService{}, &stubAuthService{err: errors.ErrInvalidCredentials}, &stubResolver{})
		defer server.Close()

		resp := doRequest(t, http.MethodPost, server.URL+"/auth/login", "", map[string]string{
			"email": "a@example.com", "password": "nope",
		})
		defer resp.Body.Close()

		req.Equal(http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestHandler_Messages_Require_Bearer_Token(t *testing.T) {
	req := require.New(t)
	server := newTestServer(&stubChatService{}, &stubAuthService{}, &stubResolver{err: errors.ErrIdentityInvalid})
	defer server.Close()

	// No header at all
	resp := doRequest(t, http.MethodGet, server.URL+"/messages", "", nil)
	resp.Body.Close()
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	// Header present but the resolver rejects it
	resp = doRequest(t, http.MethodGet, server.URL+"/messages", "stale-token", nil)
	resp.Body.Close()
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestHandler_History(t *testing.T) {
	req := require.New(t)
	senderID := "u1"
	chat := &stubChatService{history: []domain.ChatMessage{{
		ID:         uuid.New(),
		SenderID:   &senderID,
		SenderName: "Alice",
		SenderRole: domain.RoleUser,
		Body:       "hello",
		Kind:       domain.KindUser,
	}}}
	server := newTestServer(chat, &stubAuthService{}, &stubResolver{identity: domain.Identity{UserID: "u2"}})
	defer server.Close()

	resp := doRequest(t, http.MethodGet, server.URL+"/messages?limit=10", "valid", nil)
	defer resp.Body.Close()

	req.Equal(http.StatusOK, resp.StatusCode)
	var body struct {
		Messages []messageResponse `json:"data"`
	}
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.Len(body.Messages, 1)
	req.Equal("hello", body.Messages[0].Body)
	req.Equal("Alice", body.Messages[0].SenderName)

	// Malformed cursor is a client error
	resp = doRequest(t, http.MethodGet, server.URL+"/messages?before=not-a-uuid", "valid", nil)
	resp.Body.Close()
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_Post_Message(t *testing.T) {
	req := require.New(t)

	t.Run("valid post returns 201", func(t *testing.T) {
		chat := &stubChatService{posted: domain.ChatMessage{ID: uuid.New(), Body: "hi", Kind: domain.KindUser}}
		server := newTestServer(chat, &stubAuthService{}, &stubResolver{identity: domain.Identity{UserID: "u1"}})
		defer server.Close()

		resp := doRequest(t, http.MethodPost, server.URL+"/messages", "valid", map[string]string{"body": "hi"})
		defer resp.Body.Close()
		req.Equal(http.StatusCreated, resp.StatusCode)
	})

	t.Run("domain errors map to their status", func(t *testing.T) {
		chat := &stubChatService{postErr: errors.ErrMessageTooLong}
		server := newTestServer(chat, &stubAuthService{}, &stubResolver{identity: domain.Identity{UserID: "u1"}})
		defer server.Close()

		resp := doRequest(t, http.MethodPost, server.URL+"/messages", "valid", map[string]string{"body": "..."})
		resp.Body.Close()
		req.Equal(http.StatusBadRequest, resp.StatusCode)
	})
}

func TestHandler_Delete_Message(t *testing.T) {
	req := require.New(t)

	t.Run("forbidden delete maps to 403", func(t *testing.T) {
		chat := &stubChatService{deleteErr: errors.ErrForbidden}
		server := newTestServer(chat, &stubAuthService{}, &stubResolver{identity: domain.Identity{UserID: "u1"}})
		defer server.Close()

		resp := doRequest(t, http.MethodDelete, server.URL+"/messages/"+uuid.NewString(), "valid", nil)
		resp.Body.Close()
		req.Equal(http.StatusForbidden, resp.StatusCode)
	})

	t.Run("successful delete acknowledges", func(t *testing.T) {
		server := newTestServer(&stubChatService{}, &stubAuthService{}, &stubResolver{identity: domain.Identity{UserID: "u1"}})
		defer server.Close()

		resp := doRequest(t, http.MethodDelete, server.URL+"/messages/"+uuid.NewString(), "valid", nil)
		var ack map[string]string
		req.NoError(json.NewDecoder(resp.Body).Decode(&ack))
		resp.Body.Close()
		req.Equal(http.StatusOK, resp.StatusCode)
		req.Equal("deleted", ack["message"])
	})

	t.Run("invalid id returns 400", func(t *testing.T) {
		server := newTestServer(&stubChatService{}, &stubAuthService{}, &stubResolver{identity: domain.Identity{UserID: "u1"}})
		defer server.Close()

		resp := doRequest(t, http.MethodDelete, server.URL+"/messages/not-a-uuid", "valid", nil)
		resp.Body.Close()
		req.Equal(http.StatusBadRequest, resp.StatusCode)
	})
}

func TestHandler_Clear_And_Presence(t *testing.T) {
	req := require.New(t)
	chat := &stubChatService{
		clearCount: 7,
		presence:   []domain.PresenceEntry{{UserID: "u1", DisplayName: "Alice", Connections: 2}},
	}
	server := newTestServer(chat, &stubAuthService{}, &stubResolver{identity: domain.Identity{UserID: "admin", Role: domain.RoleAdmin}})
	defer server.Close()

	resp := doRequest(t, http.MethodDelete, server.URL+"/messages", "valid", nil)
	var cleared map[string]int
	req.NoError(json.NewDecoder(resp.Body).Decode(&cleared))
	resp.Body.Close()
	req.Equal(7, cleared["deleted"])

	resp = doRequest(t, http.MethodGet, server.URL+"/presence", "valid", nil)
	var presenceBody struct {
		Users []presenceResponse `json:"users"`
	}
	req.NoError(json.NewDecoder(resp.Body).Decode(&presenceBody))
	resp.Body.Close()
	req.Len(presenceBody.Users, 1)
	req.Equal("Alice", presenceBody.Users[0].DisplayName)
}

func TestHandler_Healthz(t *testing.T) {
	req := require.New(t)
	server := newTestServer(&stubChatService{}, &stubAuthService{}, &stubResolver{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	req.NoError(err)
	resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)
}
