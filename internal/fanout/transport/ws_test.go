package transport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"github.com/technerv/election-monitor/internal/fanout"
)

type WebSocketSuite struct {
	suite.Suite
	hub    *fanout.Hub
	server *httptest.Server
}

func TestWebSocketSuite(t *testing.T) {
	suite.Run(t, new(WebSocketSuite))
}

func (s *WebSocketSuite) SetupTest() {
	s.hub = fanout.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	New(s.hub, WithLogger(logger), WithPingInterval(time.Second)).Register(r)
	s.server = httptest.NewServer(r)
}

func (s *WebSocketSuite) TearDownTest() {
	s.hub.Stop()
	s.server.Close()
}

func (s *WebSocketSuite) dial(path string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	s.T().Cleanup(func() { _ = conn.Close() })
	return conn
}

func (s *WebSocketSuite) read(conn *websocket.Conn) fanout.Frame {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(3 * time.Second)))
	var f fanout.Frame
	s.Require().NoError(conn.ReadJSON(&f))
	return f
}

func (s *WebSocketSuite) publish(topics []fanout.Topic, payload any) {
	ev, err := fanout.NewEvent(fanout.EventReportCreated, topics, payload, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.hub.Publish(context.Background(), ev))
}

func (s *WebSocketSuite) TestSubscribeSnapshotThenLive() {
	s.publish(fanout.StationTopics(42), map[string]string{"report_id": "before"})

	conn := s.dial("/ws")
	s.Require().NoError(conn.WriteJSON(map[string]any{"op": "subscribe", "topics": []string{"election:42"}}))

	snap := s.read(conn)
	s.Equal(fanout.FrameSnapshot, snap.Type)
	var payload fanout.Snapshot
	s.Require().NoError(json.Unmarshal(snap.Payload, &payload))
	s.Require().Len(payload.Events, 1)
	s.JSONEq(`{"report_id":"before"}`, string(payload.Events[0].Payload))

	s.publish(fanout.StationTopics(42), map[string]string{"report_id": "after"})
	live := s.read(conn)
	s.Equal(string(fanout.EventReportCreated), live.Type)
	s.Equal(fanout.ElectionTopic(42), live.Topic)
	s.JSONEq(`{"report_id":"after"}`, string(live.Payload))
}

func (s *WebSocketSuite) TestConvenienceRouteAutoSubscribes() {
	conn := s.dial("/ws/incidents")
	s.Equal(fanout.FrameSnapshot, s.read(conn).Type)

	s.publish(fanout.StationTopics(1), map[string]string{"report_id": "station"})
	s.publish(fanout.IncidentTopics(), map[string]string{"report_id": "incident"})

	f := s.read(conn)
	s.Equal(fanout.TopicIncidents, f.Topic)
	s.JSONEq(`{"report_id":"incident"}`, string(f.Payload))
}

func (s *WebSocketSuite) TestPingAndErrors() {
	conn := s.dial("/ws")

	s.Require().NoError(conn.WriteJSON(map[string]string{"op": "ping"}))
	s.Equal("pong", s.read(conn).Op)

	s.Require().NoError(conn.WriteJSON(map[string]any{"op": "subscribe", "topics": []string{"results:all"}}))
	s.Equal(fanout.FrameError, s.read(conn).Type)

	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	s.Equal(fanout.FrameError, s.read(conn).Type)

	s.Require().NoError(conn.WriteJSON(map[string]string{"op": "dance"}))
	s.Equal(fanout.FrameError, s.read(conn).Type)
}

func (s *WebSocketSuite) TestInvalidElectionRoute() {
	resp, err := http.Get(s.server.URL + "/ws/elections/abc")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *WebSocketSuite) TestHubStopClosesConnection() {
	conn := s.dial("/ws/live")
	s.Equal(fanout.FrameSnapshot, s.read(conn).Type)

	s.hub.Stop()

	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(3 * time.Second)))
	_, _, err := conn.ReadMessage()
	s.True(websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
