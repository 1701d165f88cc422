package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"qrcall/internal/calls/models"
	authmw "qrcall/pkg/platform/middleware/auth"
	"qrcall/pkg/platform/sentinel"
)

type stubValidator map[string]*authmw.JWTClaims

func (s stubValidator) ValidateToken(token string) (*authmw.JWTClaims, error) {
	if c, ok := s[token]; ok {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

type stubCalls map[string]*models.Call

func (s stubCalls) FindByID(_ context.Context, callID string) (*models.Call, error) {
	if c, ok := s[callID]; ok {
		return c, nil
	}
	return nil, sentinel.ErrNotFound
}

type WebsocketSuite struct {
	suite.Suite
	hub    *Hub
	server *httptest.Server
}

func TestWebsocketSuite(t *testing.T) {
	suite.Run(t, new(WebsocketSuite))
}

func (s *WebsocketSuite) SetupTest() {
	s.hub = NewHub()
	validator := stubValidator{
		"owner-token":    {UserID: "U1", Audience: authmw.AudienceOwner},
		"caller-c1":      {CallID: "C1", Audience: authmw.AudienceCaller},
		"caller-ended":   {CallID: "C2", Audience: authmw.AudienceCaller},
		"caller-missing": {CallID: "C404", Audience: authmw.AudienceCaller},
	}
	calls := stubCalls{
		"C1": {ID: "C1", ReceiverID: "U1", Status: models.StatusRinging},
		"C2": {ID: "C2", ReceiverID: "U1", Status: models.StatusEnded},
	}
	s.server = httptest.NewServer(NewServer(s.hub, validator, calls,
		WithAllowedOrigins([]string{"https://app.example.com"})))
}

func (s *WebsocketSuite) TearDownTest() {
	s.server.Close()
}

func (s *WebsocketSuite) dial(header http.Header, query string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = conn.Close() })
	return conn
}

func (s *WebsocketSuite) join(conn *websocket.Conn, identity string) map[string]any {
	s.Require().NoError(conn.WriteJSON(map[string]string{"event": EventJoinUser, "data": identity}))
	return s.read(conn)
}

func (s *WebsocketSuite) read(conn *websocket.Conn) map[string]any {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	var out map[string]any
	s.Require().NoError(conn.ReadJSON(&out))
	return out
}

func (s *WebsocketSuite) TestOwnerJoinsOwnRoomAndReceivesEvents() {
	conn := s.dial(http.Header{"Authorization": {"Bearer owner-token"}}, "")

	ack := s.join(conn, "U1")
	s.Equal(EventJoined, ack["event"])
	data := ack["data"].(map[string]any)
	s.Equal("U1", data["userId"])
	s.NotEmpty(data["socketId"])

	s.Equal(1, s.hub.EmitLocal("U1", NewEvent(EventIncomingCall, map[string]string{"callId": "C1"})))
	ev := s.read(conn)
	s.Equal(EventIncomingCall, ev["event"])
}

func (s *WebsocketSuite) TestOwnerCannotJoinAnotherUsersRoom() {
	conn := s.dial(nil, "?token=owner-token")

	ack := s.join(conn, "U2")
	s.Equal(EventError, ack["event"])
	s.Equal(0, s.hub.RoomSize("U2"))
}

func (s *WebsocketSuite) TestCallerJoinsOwnCallRoom() {
	conn := s.dial(nil, "?token=caller-c1")

	ack := s.join(conn, "caller_C1")
	s.Equal(EventJoined, ack["event"])
	s.Equal(1, s.hub.RoomSize("caller_C1"))

	other := s.join(conn, "caller_C2")
	s.Equal(EventError, other["event"])

	owner := s.join(conn, "U1")
	s.Equal(EventError, owner["event"])
}

func (s *WebsocketSuite) TestCallerRoomDenials() {
	tests := []struct {
		name  string
		token string
		room  string
	}{
		{"anonymous", "", "caller_C1"},
		{"owner token", "owner-token", "caller_C1"},
		{"call already ended", "caller-ended", "caller_C2"},
		{"unknown call", "caller-missing", "caller_C404"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			query := ""
			if tt.token != "" {
				query = "?token=" + tt.token
			}
			conn := s.dial(nil, query)
			ack := s.join(conn, tt.room)
			s.Equal(EventError, ack["event"])
			s.Equal(0, s.hub.RoomSize(tt.room))
		})
	}
}

func (s *WebsocketSuite) TestUnknownEventAndMalformedFrames() {
	conn := s.dial(nil, "")

	s.Require().NoError(conn.WriteJSON(map[string]string{"event": "leave-user"}))
	s.Equal(EventError, s.read(conn)["event"])

	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	s.Equal(EventError, s.read(conn)["event"])
}

func (s *WebsocketSuite) TestDisconnectUnregisters() {
	conn := s.dial(nil, "?token=caller-c1")
	s.join(conn, "caller_C1")
	s.Require().Equal(1, s.hub.Connections())

	s.Require().NoError(conn.Close())
	s.Eventually(func() bool { return s.hub.Connections() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func (s *WebsocketSuite) TestInvalidTokenRejectedBeforeUpgrade() {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer nope"}})
	s.Require().Error(err)
	s.Require().NotNil(resp)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *WebsocketSuite) TestForeignOriginRejected() {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example.com"}})
	s.Require().Error(err)
	s.Require().NotNil(resp)
	s.Equal(http.StatusForbidden, resp.StatusCode)
}

func TestParseIdentity(t *testing.T) {
	assert.Equal(t, "U1", parseIdentity([]byte(`"U1"`)))
	assert.Equal(t, "U1", parseIdentity([]byte(`{"userId":" U1 "}`)))
	assert.Empty(t, parseIdentity([]byte(`42`)))
	require.Empty(t, parseIdentity(nil))
}
