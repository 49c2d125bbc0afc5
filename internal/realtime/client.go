// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

/*
client.go - Realtime Channel Client

This file implements the WebSocket client that receives pushed object events
from the cloud service and hands them to the engine's bridge.

WebSocket Endpoint: {realtime_url}?device_id={id}&client_id={uuid}

Frames are JSON objects:

	{"event": "update", "type": "playlists", "id": 12, "data": {...}}
	{"event": "execute", "command": "next", "type": "configurations", "id": 3}
	{"event": "session", "message": "<session id>"}
	{"event": "link_error", "id": 4, "message": "token expired"}

The channel authenticates with the registered device id, so the client waits
until registration has produced one before dialing.
*/
package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/metrics"
	"github.com/tomtom215/cadence/internal/models"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultReadTimeout      = 60 * time.Second
	defaultMinBackoff       = 1 * time.Second
	defaultMaxBackoff       = 32 * time.Second
	maxFrameSize            = 1 << 20
)

// Handler receives decoded frames. Implemented by *cloud.Bridge.
type Handler interface {
	Handle(ev models.ObjectEvent) error
}

// Config configures the realtime client.
type Config struct {
	// URL is the ws:// or wss:// endpoint.
	URL string

	// DeviceID returns the registered device id, or 0 while unregistered.
	DeviceID func() int64

	// Header is sent with every handshake (OAuth or session headers).
	Header http.Header

	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	MinBackoff       time.Duration
	MaxBackoff       time.Duration
}

// Client is a supervised realtime channel consumer.
type Client struct {
	cfg      Config
	handler  Handler
	clientID string
	logger   zerolog.Logger
	dialer   websocket.Dialer

	connMu sync.Mutex
	conn   *websocket.Conn

	connected atomic.Bool
	frames    atomic.Int64
}

// New validates cfg and returns a client. It does not dial until Serve.
func New(cfg Config, handler Handler) (*Client, error) {
	if handler == nil {
		return nil, errors.New("realtime: handler is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("realtime: parse url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("realtime: url scheme must be ws or wss, got %q", u.Scheme)
	}
	if cfg.DeviceID == nil {
		return nil, errors.New("realtime: device id source is required")
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = defaultMinBackoff
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = max(defaultMaxBackoff, cfg.MinBackoff)
	}

	return &Client{
		cfg:      cfg,
		handler:  handler,
		clientID: uuid.NewString(),
		logger:   logging.Component("realtime"),
		dialer: websocket.Dialer{
			HandshakeTimeout:  cfg.HandshakeTimeout,
			EnableCompression: true,
		},
	}, nil
}

// String identifies the client in supervisor logs.
func (c *Client) String() string { return "realtime-client" }

// Connected reports whether a channel is currently open.
func (c *Client) Connected() bool { return c.connected.Load() }

// Frames returns the number of frames received since start.
func (c *Client) Frames() int64 { return c.frames.Load() }

// Serve dials, consumes frames and reconnects with capped exponential delay
// until ctx is cancelled. It implements suture.Service.
func (c *Client) Serve(ctx context.Context) error {
	delay := c.cfg.MinBackoff
	for {
		deviceID, err := c.waitForDevice(ctx)
		if err != nil {
			return err
		}

		conn, err := c.dial(ctx, deviceID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.RealtimeReconnects.Inc()
			c.logger.Warn().Err(err).Dur("delay", delay).Msg("Realtime dial failed, retrying")
			if err := sleep(ctx, delay); err != nil {
				return err
			}
			delay = min(delay*2, c.cfg.MaxBackoff)
			continue
		}

		delay = c.cfg.MinBackoff
		err = c.consume(ctx, conn)
		c.closeConnection()
		if ctx.Err() != nil {
			c.logger.Info().Msg("Realtime client stopped")
			return ctx.Err()
		}
		metrics.RealtimeReconnects.Inc()
		c.logger.Info().Err(err).Dur("delay", delay).Msg("Realtime channel lost, reconnecting")
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// waitForDevice polls the device id source until it reports a device.
func (c *Client) waitForDevice(ctx context.Context) (int64, error) {
	if id := c.cfg.DeviceID(); id != 0 {
		return id, nil
	}
	ticker := time.NewTicker(c.cfg.MinBackoff)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
			if id := c.cfg.DeviceID(); id != 0 {
				return id, nil
			}
		}
	}
}

func (c *Client) dial(ctx context.Context, deviceID int64) (*websocket.Conn, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("device_id", strconv.FormatInt(deviceID, 10))
	q.Set("client_id", c.clientID)
	u.RawQuery = q.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), c.cfg.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	conn.SetReadLimit(maxFrameSize)

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	c.connected.Store(true)

	c.logger.Info().Int64("device_id", deviceID).Msg("Realtime channel connected")
	return conn, nil
}

// consume reads frames until the connection fails or ctx ends.
func (c *Client) consume(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			c.closeConnection()
		case <-done:
		}
	}()
	go c.pingLoop(conn, done)

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	for {
		if err := conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
			return err
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		c.handleFrame(data)
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.ReadTimeout * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.HandshakeTimeout)); err != nil {
				c.logger.Debug().Err(err).Msg("Realtime ping failed")
				return
			}
		}
	}
}

// handleFrame decodes one frame and forwards it. Malformed frames are logged
// and skipped.
func (c *Client) handleFrame(data []byte) {
	c.frames.Add(1)

	var ev models.ObjectEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		metrics.RealtimeFrames.WithLabelValues("malformed").Inc()
		c.logger.Warn().Err(err).Msg("Failed to parse realtime frame")
		return
	}
	metrics.RealtimeFrames.WithLabelValues(ev.Event).Inc()

	if err := c.handler.Handle(ev); err != nil {
		c.logger.Warn().Err(err).Str("event", ev.Event).Str("type", ev.Type).Int64("id", ev.ID).Msg("Realtime frame rejected")
	}
}

func (c *Client) closeConnection() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return
	}
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	_ = c.conn.Close()
	c.conn = nil
	c.connected.Store(false)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
