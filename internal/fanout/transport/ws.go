// Package transport serves the fan-out hub over WebSocket connections.
package transport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/technerv/election-monitor/internal/fanout"
	"github.com/technerv/election-monitor/pkg/domain"
	"github.com/technerv/election-monitor/pkg/platform/httputil"
	"github.com/technerv/election-monitor/pkg/requestcontext"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultPingInterval = 30 * time.Second
	maxMessageBytes     = 4 << 10
	drainBatch          = 64
)

// clientMessage is what a client may send: subscribe, unsubscribe or ping.
type clientMessage struct {
	Op     string   `json:"op"`
	Topics []string `json:"topics,omitempty"`
}

// Handler upgrades HTTP requests and bridges each connection to a hub
// subscriber. One goroutine reads client ops; one writes queued frames.
type Handler struct {
	hub          *fanout.Hub
	logger       *slog.Logger
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	pingInterval time.Duration
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

func WithPingInterval(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

// WithAllowedOrigins restricts browser origins. An empty list allows any.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) {
		if len(origins) == 0 {
			return
		}
		allowed := slices.Clone(origins)
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowed, origin)
		}
	}
}

func New(hub *fanout.Hub, opts ...Option) *Handler {
	h := &Handler{
		hub:          hub,
		logger:       slog.Default(),
		writeTimeout: defaultWriteTimeout,
		pingInterval: defaultPingInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the subscription endpoints. The convenience routes
// subscribe on connect.
func (h *Handler) Register(r chi.Router) {
	r.Get("/ws", h.serve(nil))
	r.Get("/ws/live", h.serve(fixed(fanout.TopicLive)))
	r.Get("/ws/incidents", h.serve(fixed(fanout.TopicIncidents)))
	r.Get("/ws/elections/{id}", h.serve(func(r *http.Request) ([]fanout.Topic, error) {
		id, err := domain.ParseElectionID(chi.URLParam(r, "id"))
		if err != nil {
			return nil, err
		}
		return []fanout.Topic{fanout.ElectionTopic(id)}, nil
	}))
}

func fixed(t fanout.Topic) func(*http.Request) ([]fanout.Topic, error) {
	return func(*http.Request) ([]fanout.Topic, error) { return []fanout.Topic{t}, nil }
}

func (h *Handler) serve(initial func(*http.Request) ([]fanout.Topic, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := requestcontext.RequestID(ctx)

		var topics []fanout.Topic
		if initial != nil {
			var err error
			if topics, err = initial(r); err != nil {
				httputil.WriteError(w, err)
				return
			}
		}

		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			h.logger.WarnContext(ctx, "websocket upgrade failed", "request_id", requestID, "error", err)
			return
		}

		sub, err := h.hub.Connect(uuid.NewString())
		if err != nil {
			closeWith(conn, websocket.CloseGoingAway, "server shutting down", h.writeTimeout)
			_ = conn.Close()
			return
		}
		h.logger.InfoContext(ctx, "subscriber connected",
			"request_id", requestID,
			"subscriber_id", sub.ID(),
			"client_ip", requestcontext.ClientIP(ctx),
			"topics", topics,
		)

		var wg sync.WaitGroup
		wg.Go(func() { h.writeLoop(conn, sub) })

		if len(topics) > 0 {
			h.subscribe(sub, topics)
		}
		h.readLoop(conn, sub)

		h.hub.Disconnect(sub)
		wg.Wait()
		_ = conn.Close()
		h.logger.InfoContext(ctx, "subscriber disconnected",
			"request_id", requestID,
			"subscriber_id", sub.ID(),
			"reason", sub.Err(),
		)
	}
}

func (h *Handler) readLoop(conn *websocket.Conn, sub *fanout.Subscriber) {
	conn.SetReadLimit(maxMessageBytes)
	readWait := 2 * h.pingInterval
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read ended", "subscriber_id", sub.ID(), "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.reply(sub, fanout.ErrorFrame("malformed message"))
			continue
		}
		switch msg.Op {
		case "subscribe":
			topics, err := fanout.ParseTopics(msg.Topics)
			if err != nil {
				h.reply(sub, fanout.ErrorFrame(err.Error()))
				continue
			}
			h.subscribe(sub, topics)
		case "unsubscribe":
			topics, err := fanout.ParseTopics(msg.Topics)
			if err != nil {
				h.reply(sub, fanout.ErrorFrame(err.Error()))
				continue
			}
			h.hub.Unsubscribe(sub, topics)
		case "ping":
			h.reply(sub, fanout.PongFrame())
		default:
			h.reply(sub, fanout.ErrorFrame("unknown op: "+msg.Op))
		}
	}
}

func (h *Handler) subscribe(sub *fanout.Subscriber, topics []fanout.Topic) {
	if err := h.hub.Subscribe(sub, topics); err != nil && !errors.Is(err, fanout.ErrClosed) {
		h.logger.Warn("subscribe failed", "subscriber_id", sub.ID(), "error", err)
	}
}

func (h *Handler) reply(sub *fanout.Subscriber, f fanout.Frame) {
	if err := h.hub.Send(sub, f); err != nil && !errors.Is(err, fanout.ErrClosed) {
		h.logger.Warn("control frame not queued", "subscriber_id", sub.ID(), "error", err)
	}
}

// writeLoop is the only writer on conn.
func (h *Handler) writeLoop(conn *websocket.Conn, sub *fanout.Subscriber) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sub.Notify():
			if err := h.flush(conn, sub); err != nil {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout)); err != nil {
				_ = conn.Close()
				return
			}
		case <-sub.Done():
			switch {
			case errors.Is(sub.Err(), fanout.ErrOverflow):
				closeWith(conn, websocket.ClosePolicyViolation, "subscriber too slow", h.writeTimeout)
			case errors.Is(sub.Err(), fanout.ErrStopped):
				_ = h.flush(conn, sub)
				closeWith(conn, websocket.CloseGoingAway, "server shutting down", h.writeTimeout)
			}
			_ = conn.Close()
			return
		}
	}
}

func (h *Handler) flush(conn *websocket.Conn, sub *fanout.Subscriber) error {
	for {
		frames := sub.Drain(drainBatch)
		if len(frames) == 0 {
			return nil
		}
		for _, f := range frames {
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.WriteJSON(f); err != nil {
				return err
			}
		}
	}
}

func closeWith(conn *websocket.Conn, code int, text string, timeout time.Duration) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(timeout))
}
