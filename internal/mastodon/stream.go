package mastodon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

var ErrMalformedEnvelope = errors.New("malformed streaming envelope")

const (
	readTimeout  = 90 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// StreamTimeline maps a streaming channel to the timeline it feeds.
func StreamTimeline(stream string) (string, bool) {
	switch stream {
	case "user":
		return "home", true
	case "public:local":
		return "public", true
	case "public":
		return "federated", true
	}
	return "", false
}

// StreamEvent is one decoded push message.
type StreamEvent struct {
	Stream   string
	Timeline string
	Event    string
	// Payload is the status JSON for update events and the bare id for deletes.
	Payload []byte
}

type envelope struct {
	Stream  []string        `json:"stream"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// ParseEnvelope decodes {"stream":[...],"event":...,"payload":...}. The
// payload is usually a JSON encoded string and is unwrapped once.
func ParseEnvelope(data []byte) (StreamEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return StreamEvent{}, errors.Join(ErrMalformedEnvelope, err)
	}
	if env.Event == "" || len(env.Stream) == 0 {
		return StreamEvent{}, ErrMalformedEnvelope
	}
	ev := StreamEvent{Stream: env.Stream[0], Event: env.Event, Payload: env.Payload}
	ev.Timeline, _ = StreamTimeline(ev.Stream)
	if len(env.Payload) > 0 && env.Payload[0] == '"' {
		var s string
		if err := json.Unmarshal(env.Payload, &s); err != nil {
			return StreamEvent{}, errors.Join(ErrMalformedEnvelope, err)
		}
		ev.Payload = []byte(s)
	}
	return ev, nil
}

// Stream is one multiplexed websocket subscription. Next must be called
// from a single goroutine.
type Stream struct {
	conn *websocket.Conn
	done chan struct{}
}

type subscribeMessage struct {
	Type   string `json:"type"`
	Stream string `json:"stream"`
}

// DialStream connects to the streaming endpoint and subscribes to streams.
func (c *Client) DialStream(ctx context.Context, streams []string) (*Stream, error) {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = c.base.Path + "/api/v1/streaming"
	if c.token != "" {
		u.RawQuery = url.Values{"access_token": {c.token}}.Encode()
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 15 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial streaming: %w", err)
	}
	for _, name := range streams {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(subscribeMessage{Type: "subscribe", Stream: name}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("subscribe %s: %w", name, err)
		}
	}

	s := &Stream{conn: conn, done: make(chan struct{})}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	go s.ping()
	return s, nil
}

func (s *Stream) ping() {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-t.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

// Next blocks until the next event. Malformed messages are skipped; the
// returned error is always a connection error.
func (s *Stream) Next() (StreamEvent, error) {
	for {
		_ = s.conn.SetReadDeadline(time.Now().Add(readTimeout))
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			return StreamEvent{}, err
		}
		if kind != websocket.TextMessage {
			continue
		}
		ev, err := ParseEnvelope(data)
		if err != nil {
			continue
		}
		return ev, nil
	}
}

func (s *Stream) Close() error {
	select {
	case <-s.done:
		return nil
	default:
		close(s.done)
	}
	return s.conn.Close()
}
