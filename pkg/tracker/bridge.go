package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// BridgeOptions configures the WebSocket device bridge client.
type BridgeOptions struct {
	URL              string
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	Dialer           *websocket.Dialer
	Logger           *slog.Logger
}

// BridgeSource subscribes to streams exposed by a device bridge, a small
// service that sits next to the vendor engine and republishes its callbacks
// as JSON frames. Each Stream call holds its own connection.
type BridgeSource struct {
	url          string
	pingInterval time.Duration
	dialer       *websocket.Dialer
	logger       *slog.Logger
}

type subscribeMessage struct {
	Type   string `json:"type"`
	Stream Kind   `json:"stream"`
}

// NewBridgeSource validates the endpoint and constructs a bridge client.
func NewBridgeSource(opts BridgeOptions) (*BridgeSource, error) {
	if err := ValidateBridgeURL(opts.URL); err != nil {
		return nil, err
	}
	dialer := opts.Dialer
	if dialer == nil {
		timeout := opts.HandshakeTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		dialer = &websocket.Dialer{HandshakeTimeout: timeout}
	}
	ping := opts.PingInterval
	if ping <= 0 {
		ping = 15 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &BridgeSource{
		url:          strings.TrimSpace(opts.URL),
		pingInterval: ping,
		dialer:       dialer,
		logger:       logger,
	}, nil
}

// ValidateBridgeURL checks that raw is a ws:// or wss:// URL with a host.
func ValidateBridgeURL(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return errors.New("bridge url must not be empty")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("parse bridge url: %w", err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return fmt.Errorf("bridge url scheme must be ws or wss, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("bridge url must include a host")
	}
	return nil
}

// Stream subscribes to kind and emits decoded frames until ctx is done or
// the bridge closes the connection normally.
func (b *BridgeSource) Stream(ctx context.Context, kind Kind, emit func(Event) error) error {
	if !kind.Valid() {
		return fmt.Errorf("%w %q", ErrUnknownKind, kind)
	}

	conn, _, err := b.dialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return fmt.Errorf("dial bridge: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(subscribeMessage{Type: "subscribe", Stream: kind}); err != nil {
		return fmt.Errorf("subscribe %s: %w", kind, err)
	}
	b.logger.Debug("bridge stream subscribed", "url", b.url, "stream", kind)

	done := make(chan struct{})
	defer close(done)
	go b.keepalive(ctx, conn, done)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read bridge frame: %w", err)
		}

		var ev Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("decode bridge frame: %w", err)
		}
		if ev.Kind != kind {
			continue
		}
		if err := emit(ev); err != nil {
			return err
		}
	}
}

// keepalive pings the bridge and closes the connection once ctx ends so the
// blocked reader returns.
func (b *BridgeSource) keepalive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(b.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			_ = conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				b.logger.Warn("bridge ping failed", "url", b.url, "error", err)
			}
		}
	}
}
