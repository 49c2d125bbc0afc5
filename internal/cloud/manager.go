// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

/*
manager.go - Engine Lifecycle and Orchestration

This file contains the Manager struct, its construction, and the lifecycle
methods that start and stop the engine's queues, timers and loops.

Lifecycle Methods:
  - NewManager(): build the engine from configuration and collaborators
  - Start(): load persisted state, start the queues, open the session
  - Stop(): flush what can be flushed, cancel every scope, wait for workers

Thread Safety:
  - mu: protects identity, credentials, connectivity and the link scope
  - initMu: device registration completes before link retrieval starts
  - the sync buffer, listen tracker and bridge own their own locks
*/
package cloud

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/cadence/internal/config"
	"github.com/tomtom215/cadence/internal/debounce"
	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/models"
	"github.com/tomtom215/cadence/internal/store"
)

// Deps are the engine's collaborators. Notifier may be nil.
type Deps struct {
	Client   Transport
	Store    StateStore
	Library  Library
	Player   Player
	Notifier Notifier
}

// Manager is the cloud synchronization engine.
type Manager struct {
	cfg      *config.Config
	client   Transport
	store    StateStore
	library  Library
	player   Player
	notifier Notifier
	logger   zerolog.Logger

	mu        sync.RWMutex
	running   bool
	identity  *models.Identity
	creds     models.Credentials
	connected bool
	rootCtx   context.Context
	rootStop  context.CancelFunc
	linkCtx   context.Context
	linkStop  context.CancelFunc

	initMu sync.Mutex

	sessionQ   *taskQueue
	syncQ      *taskQueue
	listenQ    *taskQueue
	reconcileQ *taskQueue

	buffer        *syncBuffer
	flushDebounce *debounce.Debouncer
	sent          atomic.Int64
	dropped       atomic.Int64
	flushes       atomic.Int64

	listens *listenTracker
	bridge  *Bridge

	// applyingRemote is set while a remote configuration is applied so the
	// resulting local change events are not pushed back.
	applyingRemote atomic.Bool

	pendingMu      sync.Mutex
	pendingUploads map[int64]map[string]struct{}

	reconnectMu     sync.Mutex
	reconnectCancel context.CancelFunc
	reconnectWG     sync.WaitGroup

	now func() time.Time
}

// NewManager builds an engine. It does not touch the network until Start.
func NewManager(cfg *config.Config, deps Deps) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Client == nil || deps.Store == nil || deps.Library == nil || deps.Player == nil {
		return nil, fmt.Errorf("client, store, library and player are required")
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}

	sessionWorkers := cfg.Sync.Workers
	if sessionWorkers < 2 {
		sessionWorkers = 2
	}

	m := &Manager{
		cfg:            cfg,
		client:         deps.Client,
		store:          deps.Store,
		library:        deps.Library,
		player:         deps.Player,
		notifier:       notifier,
		logger:         logging.Component("engine"),
		sessionQ:       newTaskQueue("session", cfg.Sync.QueueSize, sessionWorkers),
		syncQ:          newTaskQueue("sync", cfg.Sync.QueueSize, 1),
		listenQ:        newTaskQueue("listens", cfg.Sync.QueueSize, cfg.Listen.RetryConcurrency),
		reconcileQ:     newTaskQueue("reconcile", cfg.Sync.QueueSize, 1),
		buffer:         newSyncBuffer(),
		pendingUploads: make(map[int64]map[string]struct{}),
		now:            time.Now,
	}
	m.rootCtx, m.rootStop = context.WithCancel(context.Background())
	m.linkCtx, m.linkStop = context.WithCancel(m.rootCtx)

	m.flushDebounce = debounce.New(cfg.Sync.FlushDelay, m.scheduleFlush)
	m.listens = newListenTracker(m)
	m.bridge = newBridge(m, cfg.Sync.InboundDelay)
	return m, nil
}

// Bridge returns the inbound realtime callback surface.
func (m *Manager) Bridge() *Bridge { return m.bridge }

// Start loads persisted state, starts the workers and, when credentials
// exist, opens the session.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.running = true
	m.rootStop()
	m.rootCtx, m.rootStop = context.WithCancel(ctx)
	m.linkCtx, m.linkStop = context.WithCancel(m.rootCtx)
	m.mu.Unlock()

	m.logger.Info().Str("domain", m.client.Domain()).Msg("Starting sync engine...")

	m.flushDebounce.Reset()
	m.bridge.debouncer.Reset()
	m.listens.startDebounce.Reset()

	for _, q := range m.queues() {
		q.start()
	}

	if err := m.listens.load(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to load listen retry buffer")
	}

	creds, err := m.store.Credentials(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		m.logger.Info().Msg("No linked account; waiting for link")
	case err != nil:
		m.logger.Warn().Err(err).Msg("Failed to load credentials")
	case creds.Valid():
		m.mu.Lock()
		m.creds = creds
		m.mu.Unlock()
		m.client.SetCredentials(creds)
		m.restoreIdentity(ctx)
	}

	m.setConnected(true, true)
	return nil
}

// Stop flushes the sync buffer, cancels every scope and waits for workers.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return ErrNotRunning
	}
	m.running = false
	m.mu.Unlock()

	m.logger.Info().Msg("Stopping sync engine...")

	m.flushDebounce.Stop()
	m.bridge.debouncer.Stop()
	m.listens.stop()
	m.stopReconnect()

	if m.buffer.len() > 0 && m.Connected() {
		ctx, cancel := context.WithTimeout(m.currentLinkCtx(), m.cfg.Service.Timeout)
		m.flush(ctx)
		cancel()
	}

	m.mu.Lock()
	m.rootStop()
	m.mu.Unlock()

	for _, q := range m.queues() {
		q.close()
	}
	m.reconnectWG.Wait()

	m.logger.Info().Msg("Sync engine stopped")
	return nil
}

// String identifies the engine in supervisor logs.
func (m *Manager) String() string { return "cloud-engine" }

// Running reports whether Start has been called without Stop.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Manager) queues() []*taskQueue {
	return []*taskQueue{m.sessionQ, m.syncQ, m.listenQ, m.reconcileQ}
}

// currentLinkCtx returns the scope that Delink cancels.
func (m *Manager) currentLinkCtx() context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.linkCtx
}

// resetLinkScope cancels the current link scope and opens a fresh one.
func (m *Manager) resetLinkScope() {
	m.mu.Lock()
	m.linkStop()
	m.linkCtx, m.linkStop = context.WithCancel(m.rootCtx)
	m.mu.Unlock()
}

// submit runs fn on q under the link scope, logging submission failures.
func (m *Manager) submit(q *taskQueue, name string, fn func(ctx context.Context)) {
	ctx := m.currentLinkCtx()
	if err := q.submit(ctx, name, fn); err != nil && ctx.Err() == nil {
		m.logger.Warn().Err(err).Str("queue", q.name).Str("task", name).Msg("Failed to submit task")
	}
}

func (m *Manager) notify(kind string, data any) {
	m.notifier.Notify(kind, data)
}

// Stats is a read-only snapshot of engine state.
type Stats struct {
	Running             bool           `json:"running"`
	Connected           bool           `json:"connected"`
	Linked              bool           `json:"linked"`
	BufferedOperations  int            `json:"buffered_operations"`
	Sent                int64          `json:"sent"`
	Dropped             int64          `json:"dropped"`
	Flushes             int64          `json:"flushes"`
	ListenBuffer        int            `json:"listen_buffer"`
	ListenRetryStep     int            `json:"listen_retry_step"`
	PendingBridgeEvents int            `json:"pending_bridge_events"`
	QueueDepth          map[string]int `json:"queue_depth"`
}

// Stats returns counts for the status endpoint and tests.
func (m *Manager) Stats() Stats {
	depth := make(map[string]int, 4)
	for _, q := range m.queues() {
		depth[q.name] = q.depth()
	}
	return Stats{
		Running:             m.Running(),
		Connected:           m.Connected(),
		Linked:              m.Linked(),
		BufferedOperations:  m.buffer.len(),
		Sent:                m.sent.Load(),
		Dropped:             m.dropped.Load(),
		Flushes:             m.flushes.Load(),
		ListenBuffer:        m.listens.bufferLen(),
		ListenRetryStep:     m.listens.RetryStep(),
		PendingBridgeEvents: m.bridge.pending(),
		QueueDepth:          depth,
	}
}
