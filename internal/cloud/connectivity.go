// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package cloud

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/cadence/internal/metrics"
	"github.com/tomtom215/cadence/internal/models"
	"github.com/tomtom215/cadence/internal/transport"
)

// Connected reports the connectivity gate.
func (m *Manager) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// SetConnected flips the connectivity gate. Turning it on re-opens the
// session and resumes flushes and retries; turning it off arms the
// reconnect loop.
func (m *Manager) SetConnected(v bool) {
	m.setConnected(v, false)
}

// setConnected with force re-opens the session even if already connected.
func (m *Manager) setConnected(v, force bool) {
	m.mu.Lock()
	prev := m.connected
	m.connected = v
	running := m.running
	m.mu.Unlock()

	metrics.SetConnected(v)
	if prev != v {
		m.logger.Info().Bool("connected", v).Msg("Connectivity changed")
		m.notify(models.NotifyConnectivityChanged, map[string]bool{"connected": v})
	}
	if !running {
		return
	}

	if !v {
		m.startReconnect()
		return
	}

	m.stopReconnect()
	if prev && !force {
		return
	}
	m.openSession()
	if m.buffer.len() > 0 {
		m.flushDebounce.Trigger()
	}
	m.listens.checkRetry()
}

// openSession retrieves the identity when credentials exist.
func (m *Manager) openSession() {
	m.mu.RLock()
	linked := m.creds.Valid()
	m.mu.RUnlock()
	if !linked {
		return
	}
	m.submit(m.sessionQ, "retrieve-identity", func(ctx context.Context) {
		if err := m.RetrieveIdentity(ctx); err != nil {
			m.logger.Warn().Err(err).Msg("Identity retrieval failed")
		}
	})
}

// Ping probes the service domain up to the configured number of attempts,
// without backoff. Success sets Connected; exhausting the attempts clears it.
func (m *Manager) Ping(ctx context.Context) bool {
	attempts := m.cfg.Service.PingAttempts
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		err := m.client.Ping(ctx, m.client.Domain())
		metrics.RecordPing(err == nil)
		if err == nil {
			m.SetConnected(true)
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		m.logger.Debug().Err(err).Int("attempt", i+1).Msg("Ping failed")
	}
	m.SetConnected(false)
	return false
}

// startReconnect arms the fixed-interval reconnect loop if it is not running.
func (m *Manager) startReconnect() {
	m.reconnectMu.Lock()
	defer m.reconnectMu.Unlock()
	if m.reconnectCancel != nil {
		return
	}

	m.mu.RLock()
	root := m.rootCtx
	m.mu.RUnlock()

	ctx, cancel := context.WithCancel(root)
	m.reconnectCancel = cancel
	interval := m.cfg.Service.ReconnectInterval

	m.reconnectWG.Add(1)
	go func() {
		defer m.reconnectWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if m.Ping(ctx) {
					return
				}
			}
		}
	}()
}

func (m *Manager) stopReconnect() {
	m.reconnectMu.Lock()
	defer m.reconnectMu.Unlock()
	if m.reconnectCancel != nil {
		m.reconnectCancel()
		m.reconnectCancel = nil
	}
}

// reconnecting reports whether the reconnect loop is armed.
func (m *Manager) reconnecting() bool {
	m.reconnectMu.Lock()
	defer m.reconnectMu.Unlock()
	return m.reconnectCancel != nil
}

// send is the engine's only call into the transport. While disconnected it
// fails fast with an Unreachable error; a transport failure clears Connected.
func (m *Manager) send(ctx context.Context, r transport.Request) (*transport.Result, error) {
	if !m.Connected() {
		return nil, &transport.Error{Kind: transport.Unreachable, Op: r.Method + " " + r.Path, Err: ErrOffline}
	}
	res, err := m.client.Send(ctx, r)
	if transport.IsTransportFailure(err) {
		m.SetConnected(false)
	}
	return res, err
}

func resourcePath(objectType string, id int64) string {
	if id == 0 {
		return "/" + objectType + ".json"
	}
	return fmt.Sprintf("/%s/%d.json", objectType, id)
}

func transportGet(path string) transport.Request {
	return transport.Request{Method: http.MethodGet, Path: path}
}

func transportRequest(method, path string, expect ...int) transport.Request {
	return transport.Request{Method: method, Path: path, Expect: expect}
}
