package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chat-room/domain"
	"chat-room/errors"
	"chat-room/observability"
	"chat-room/repositories"
	"chat-room/runtime"
	"chat-room/runtime/workers"
	"chat-room/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// stubResolver maps tokens straight to identities, bypassing JWT.
type stubResolver struct {
	identities map[string]domain.Identity
}

func (s *stubResolver) Resolve(token string) (domain.Identity, error) {
	identity, ok := s.identities[token]
	if !ok {
		return domain.Identity{}, errors.ErrIdentityInvalid
	}
	return identity, nil
}

func newTestGateway(t *testing.T) *httptest.Server {
	t.Helper()
	req := require.New(t)
	log := slog.Default()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := repositories.NewMessageRepository(db, log)
	req.NoError(err)
	t.Cleanup(func() { _ = repo.Close() })

	orchestrator, err := runtime.NewOrchestrator(log, workers.NewSupervisor(log),
		runtime.NewRegistry(), runtime.NewPresence(), repo,
		observability.NewMetrics(), runtime.Options{
			BufferSize:        64,
			SinkTimeout:       time.Second,
			HistoryLimit:      50,
			MaxMessageLength:  200,
			CensorReplacement: '*',
		})
	req.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	orchestrator.Start(ctx)
	t.Cleanup(func() {
		cancel()
		orchestrator.Stop()
	})

	resolver := &stubResolver{identities: map[string]domain.Identity{
		"alice-token": {UserID: "u1", DisplayName: "Alice", Role: domain.RoleUser},
		"bob-token":   {UserID: "u2", DisplayName: "Bob", Role: domain.RoleUser},
	}}

	server := httptest.NewServer(NewHandler(log, services.NewChatService(orchestrator), resolver, 32))
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	payload := map[string]any{"event": event}
	if data != nil {
		payload["data"] = data
	}
	require.NoError(t, conn.WriteJSON(payload))
}

// waitFor reads frames until the wanted event shows up.
func waitFor(t *testing.T, conn *websocket.Conn, event string) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %q", event)
		if f.Event == event {
			return f
		}
	}
}

func TestGateway_Join_Send_Receive(t *testing.T) {
	req := require.New(t)
	server := newTestGateway(t)

	aliceConn := dial(t, server, "alice-token")
	bobConn := dial(t, server, "bob-token")

	// Join delivers history and presence to the joiner
	send(t, aliceConn, "join", nil)
	waitFor(t, aliceConn, "recent-messages")
	waitFor(t, aliceConn, "online-users-updated")

	send(t, bobConn, "join", nil)
	waitFor(t, bobConn, "recent-messages")

	// Alice hears about Bob
	waitFor(t, aliceConn, "user-joined")

	// A message from Alice reaches both ends
	send(t, aliceConn, "send-message", map[string]string{"body": "hello over websocket"})

	aliceFrame := waitFor(t, aliceConn, "new-message")
	bobFrame := waitFor(t, bobConn, "new-message")

	var got messagePayload
	req.NoError(json.Unmarshal(bobFrame.Data, &got))
	req.Equal("hello over websocket", got.Body)
	req.Equal("Alice", got.SenderName)
	req.Equal("user", got.Kind)
	req.JSONEq(string(aliceFrame.Data), string(bobFrame.Data))
}

func TestGateway_Typing_Skips_Origin_Connection(t *testing.T) {
	req := require.New(t)
	server := newTestGateway(t)

	aliceConn := dial(t, server, "alice-token")
	bobConn := dial(t, server, "bob-token")
	send(t, aliceConn, "join", nil)
	waitFor(t, aliceConn, "recent-messages")
	send(t, bobConn, "join", nil)
	waitFor(t, bobConn, "recent-messages")

	send(t, aliceConn, "typing-start", nil)
	typingFrame := waitFor(t, bobConn, "user-typing")

	var who presencePayload
	req.NoError(json.Unmarshal(typingFrame.Data, &who))
	req.Equal("u1", who.UserID)

	send(t, aliceConn, "typing-stop", nil)
	waitFor(t, bobConn, "user-stop-typing")
}

func TestGateway_Unauthenticated_Join_Gets_Error_Frame(t *testing.T) {
	req := require.New(t)
	server := newTestGateway(t)

	// Bad token: the socket still opens, joining fails closed
	conn := dial(t, server, "no-such-token")
	send(t, conn, "join", nil)

	errFrame := waitFor(t, conn, "error")
	var data errorData
	req.NoError(json.Unmarshal(errFrame.Data, &data))
	req.Equal("IdentityInvalid", data.Code)
}

func TestGateway_Send_Before_Join_Is_Rejected(t *testing.T) {
	req := require.New(t)
	server := newTestGateway(t)

	conn := dial(t, server, "alice-token")
	send(t, conn, "send-message", map[string]string{"body": "too early"})

	errFrame := waitFor(t, conn, "error")
	var data errorData
	req.NoError(json.Unmarshal(errFrame.Data, &data))
	req.Equal("Forbidden", data.Code)
}

func TestGateway_Disconnect_Emits_User_Left(t *testing.T) {
	server := newTestGateway(t)

	aliceConn := dial(t, server, "alice-token")
	bobConn := dial(t, server, "bob-token")
	send(t, aliceConn, "join", nil)
	waitFor(t, aliceConn, "recent-messages")
	send(t, bobConn, "join", nil)
	waitFor(t, bobConn, "recent-messages")
	waitFor(t, aliceConn, "user-joined")

	require.NoError(t, bobConn.Close())

	waitFor(t, aliceConn, "user-left")
}
