// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package websocket

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types sent by clients. Engine notifications use the notification
// kind as their type.
const (
	MessageTypePing = "ping"
	MessageTypePong = "pong"
)

// Message is one frame sent to UI clients.
type Message struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Hub maintains the set of active clients and broadcasts notifications.
type Hub struct {
	clients   map[*Client]bool
	broadcast chan Message
	mu        sync.RWMutex
	dropped   atomic.Int64
	now       func() time.Time
}

// NewHub creates a hub whose broadcast channel holds buffer messages.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 256
	}
	return &Hub{
		broadcast: make(chan Message, buffer),
		clients:   make(map[*Client]bool),
		now:       time.Now,
	}
}

// String identifies the hub in supervisor logs.
func (h *Hub) String() string { return "websocket-hub" }

// Serve broadcasts queued messages until ctx is cancelled, then closes all
// clients. It implements suture.Service.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		// Shutdown takes priority over pending broadcasts.
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// Register adds a client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(n))
	logging.Debug().Int("total_clients", n).Msg("websocket client connected")
}

// unregister removes a client and closes its send channel once.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(n))
	logging.Debug().Int("total_clients", n).Msg("websocket client disconnected")
}

// sendTo queues msg for one registered client without blocking.
func (h *Hub) sendTo(c *Client, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.ClientCount()
	h.closeAllClients()
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// sortedClientsLocked returns the clients in id order. h.mu must be held.
func (h *Hub) sortedClientsLocked() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// broadcastToClients delivers message to every client in id order. A client
// whose buffer is full is dropped.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var toRemove []*Client
	for _, client := range h.sortedClientsLocked() {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}
	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		metrics.WSErrors.WithLabelValues("slow_client").Inc()
	}
	if len(toRemove) > 0 {
		metrics.WSConnections.Set(float64(len(h.clients)))
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range h.sortedClientsLocked() {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WSConnections.Set(0)
}

// Notify queues an engine notification for every client. It never blocks;
// a full broadcast channel drops the notification.
func (h *Hub) Notify(kind string, data any) {
	message := Message{
		Type:      kind,
		Data:      data,
		Timestamp: h.now().UTC().Format(time.RFC3339),
	}
	select {
	case h.broadcast <- message:
	default:
		h.dropped.Add(1)
		metrics.WSErrors.WithLabelValues("broadcast_full").Inc()
		logging.Warn().Str("message_type", kind).Msg("broadcast channel full, dropping notification")
	}
}

// Dropped returns the number of notifications dropped on a full channel.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage converts a message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
