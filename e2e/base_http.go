package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

// BaseHTTPSuite carries the config and the HTTP/websocket helpers used
// by every scenario. Scenarios skip themselves when SERVER_ADDR is not
// set, so the package stays green in unit-test runs.
type BaseHTTPSuite struct {
	suite.Suite
	Config Config
	client *http.Client
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseHTTPSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	s.client = &http.Client{Timeout: 30 * time.Second}
}

func (s *BaseHTTPSuite) RequireServer(t *testing.T) {
	if s.Config.ServerAddr == "" {
		t.Skip("SERVER_ADDR not set, skipping e2e scenario")
	}
}

// Step prints a colorized header so a long scenario log stays readable
func (s *BaseHTTPSuite) Step(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// DoJSON performs a JSON request against the server and decodes the
// response into out (when out is non-nil). It logs method, path, status
// and latency, plus full bodies when E2E_DEBUG_JSON is enabled.
func (s *BaseHTTPSuite) DoJSON(t *testing.T, method, path, token string, body any, out any) int {
	var reqBody io.Reader
	var rawReq []byte
	if body != nil {
		var err error
		rawReq, err = json.Marshal(body)
		s.Require().NoError(err)
		reqBody = bytes.NewReader(rawReq)
	}

	req, err := http.NewRequest(method, "http://"+s.Config.ServerAddr+path, reqBody)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	s.Require().NoError(err, "Failed to reach server at "+s.Config.ServerAddr)
	defer resp.Body.Close()

	rawResp, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		fmt.Fprintln(&logBuilder, "\nREQUEST:")
		fmt.Fprintln(&logBuilder, string(rawReq))
		fmt.Fprintln(&logBuilder, "RESPONSE:")
		fmt.Fprintln(&logBuilder, string(rawResp))
	}
	t.Log(logBuilder.String())

	if out != nil && len(rawResp) > 0 {
		s.Require().NoError(json.Unmarshal(rawResp, out))
	}
	return resp.StatusCode
}

// DialWS opens a websocket to /ws with the given token.
func (s *BaseHTTPSuite) DialWS(t *testing.T, name, token string) *websocket.Conn {
	s.Step(t, name)
	url := fmt.Sprintf("ws://%s/ws?token=%s", s.Config.ServerAddr, token)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err, "Failed to open websocket at "+url)
	return conn
}

type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SendFrame writes one protocol frame on the socket.
func (s *BaseHTTPSuite) SendFrame(conn *websocket.Conn, event string, data any) {
	frame := map[string]any{"event": event}
	if data != nil {
		frame["data"] = data
	}
	s.Require().NoError(conn.WriteJSON(frame))
}

// WaitForEvent reads frames until the named event arrives or the
// deadline passes. Other events received meanwhile are discarded.
func (s *BaseHTTPSuite) WaitForEvent(t *testing.T, conn *websocket.Conn, event string, timeout time.Duration) wsFrame {
	deadline := time.Now().Add(timeout)
	for {
		s.Require().NoError(conn.SetReadDeadline(deadline))
		var frame wsFrame
		err := conn.ReadJSON(&frame)
		s.Require().NoError(err, "Timed out waiting for event %q", event)
		t.Logf("WS <- %s", frame.Event)
		if frame.Event == event {
			return frame
		}
	}
}
