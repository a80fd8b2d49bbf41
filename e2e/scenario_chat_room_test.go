package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type testChatRoomSuite struct {
	BaseHTTPSuite
}

func TestChatRoomSuite(t *testing.T) {
	suite.Run(t, &testChatRoomSuite{})
}

type messageData struct {
	ID         string `json:"id"`
	SenderName string `json:"sender_name"`
	Body       string `json:"body"`
	Kind       string `json:"kind"`
}

func (s *testChatRoomSuite) TestFullChatFlow() {
	s.RequireServer(s.T())

	// Unique accounts per run so the suite can be replayed against a
	// long-lived server.
	runID := uuid.New().String()[:8]
	password := "Str0ng-Passw0rd!42"

	var aliceToken, bobToken string

	// --- STEP 0: ACCOUNTS ---
	s.Run("Step 0: Register two participants", func() {
		var resp struct {
			Token string `json:"token"`
		}
		status := s.DoJSON(s.T(), http.MethodPost, "/auth/register", "", map[string]string{
			"email":        fmt.Sprintf("alice-%s@example.com", runID),
			"display_name": "Alice " + runID,
			"password":     password,
		}, &resp)
		s.Require().Equal(http.StatusCreated, status)
		s.Require().NotEmpty(resp.Token)
		aliceToken = resp.Token

		status = s.DoJSON(s.T(), http.MethodPost, "/auth/register", "", map[string]string{
			"email":        fmt.Sprintf("bob-%s@example.com", runID),
			"display_name": "Bob " + runID,
			"password":     password,
		}, &resp)
		s.Require().Equal(http.StatusCreated, status)
		bobToken = resp.Token
	})

	// --- STEP 1: JOIN ---
	aliceConn := s.DialWS(s.T(), "Alice connects", aliceToken)
	defer aliceConn.Close()
	bobConn := s.DialWS(s.T(), "Bob connects", bobToken)
	defer bobConn.Close()

	s.Run("Step 1: Join delivers history and presence", func() {
		s.SendFrame(aliceConn, "join", nil)
		s.WaitForEvent(s.T(), aliceConn, "recent-messages", 5*time.Second)
		s.WaitForEvent(s.T(), aliceConn, "online-users-updated", 5*time.Second)

		s.SendFrame(bobConn, "join", nil)
		s.WaitForEvent(s.T(), bobConn, "recent-messages", 5*time.Second)

		// Alice must learn about Bob, not about herself.
		s.WaitForEvent(s.T(), aliceConn, "user-joined", 5*time.Second)
	})

	// --- STEP 2: MESSAGE FAN-OUT ---
	var messageID string
	s.Run("Step 2: Message reaches every participant", func() {
		body := "hello from " + runID
		s.SendFrame(aliceConn, "send-message", map[string]string{"body": body})

		frame := s.WaitForEvent(s.T(), bobConn, "new-message", 5*time.Second)
		var msg messageData
		s.Require().NoError(json.Unmarshal(frame.Data, &msg))
		s.Require().Equal(body, msg.Body)
		messageID = msg.ID

		// Sender's own connection receives it too.
		s.WaitForEvent(s.T(), aliceConn, "new-message", 5*time.Second)
	})

	// --- STEP 3: TYPING ---
	s.Run("Step 3: Typing indicator excludes the typist's connection", func() {
		s.SendFrame(aliceConn, "typing-start", nil)
		s.WaitForEvent(s.T(), bobConn, "user-typing", 5*time.Second)

		s.SendFrame(aliceConn, "typing-stop", nil)
		s.WaitForEvent(s.T(), bobConn, "user-stop-typing", 5*time.Second)
	})

	// --- STEP 4: REST FALLBACK ---
	s.Run("Step 4: History is readable over HTTP", func() {
		var resp struct {
			Messages []messageData `json:"data"`
		}
		status := s.DoJSON(s.T(), http.MethodGet, "/messages?limit=10", bobToken, nil, &resp)
		s.Require().Equal(http.StatusOK, status)
		s.Require().NotEmpty(resp.Messages)
		s.Require().Equal(messageID, resp.Messages[0].ID, "newest message comes first")
	})

	// --- STEP 5: DELETION ---
	s.Run("Step 5: Sender deletes own message, everyone is told", func() {
		s.SendFrame(aliceConn, "delete-message", map[string]string{"id": messageID})
		frame := s.WaitForEvent(s.T(), bobConn, "message-deleted", 5*time.Second)

		var data struct {
			ID string `json:"id"`
		}
		s.Require().NoError(json.Unmarshal(frame.Data, &data))
		s.Require().Equal(messageID, data.ID)
	})

	// --- STEP 6: LEAVE ---
	s.Run("Step 6: Disconnect updates presence", func() {
		s.Require().NoError(bobConn.Close())
		s.WaitForEvent(s.T(), aliceConn, "user-left", 5*time.Second)
	})
}
