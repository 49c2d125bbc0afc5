// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package cloud

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/cadence/internal/debounce"
	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/metrics"
	"github.com/tomtom215/cadence/internal/models"
)

type bridgeEvent struct {
	event      string
	objectType string
	id         int64
	command    string
	fields     map[string]any
}

func (e *bridgeEvent) key() string {
	return e.event + ":" + e.command + ":" + e.objectType + ":" + strconv.FormatInt(e.id, 10)
}

// Bridge receives pushed object events and hands them to the reconciler.
//
// Object events are buffered for sync.inbound_delay and coalesced by
// (event, command, type, id): a later event replaces an earlier one in its
// original position, and a delete drops the pending update of the same
// object. Session ids and link errors bypass the buffer.
type Bridge struct {
	m      *Manager
	logger zerolog.Logger

	mu     sync.Mutex
	order  []string
	events map[string]*bridgeEvent

	debouncer *debounce.Debouncer
}

func newBridge(m *Manager, delay time.Duration) *Bridge {
	b := &Bridge{
		m:      m,
		logger: logging.Component("bridge"),
		events: make(map[string]*bridgeEvent),
	}
	b.debouncer = debounce.New(delay, b.flush)
	return b
}

// Handle routes one decoded realtime frame.
func (b *Bridge) Handle(ev models.ObjectEvent) error {
	switch ev.Event {
	case models.EventUpdate:
		return b.UpdateObject(ev.Type, ev.ID, ev.Data)
	case models.EventCreate:
		return b.CreateObject(ev.Type, ev.Data)
	case models.EventDelete:
		b.DeleteObject(ev.Type, ev.ID)
		return nil
	case models.EventExecute:
		b.Execute(ev.Command, ev.Type, ev.ID)
		return nil
	case models.EventSession:
		b.SetSessionID(ev.Message)
		return nil
	case models.EventLinkError:
		b.LinkError(ev.ID, ev.Message)
		return nil
	}
	return fmt.Errorf("unknown realtime event %q", ev.Event)
}

// UpdateObject buffers an update with the object's changed fields.
func (b *Bridge) UpdateObject(objectType string, id int64, data []byte) error {
	fields, err := decodeFields(data)
	if err != nil {
		return fmt.Errorf("update %s %d: %w", objectType, id, err)
	}
	b.add(&bridgeEvent{event: models.EventUpdate, objectType: objectType, id: id, fields: fields})
	return nil
}

// CreateObject buffers a create. The id is read from the object itself.
func (b *Bridge) CreateObject(objectType string, data []byte) error {
	fields, err := decodeFields(data)
	if err != nil {
		return fmt.Errorf("create %s: %w", objectType, err)
	}
	id, err := asInt64(fields["id"])
	if err != nil {
		return fmt.Errorf("create %s: %w", objectType, err)
	}
	b.add(&bridgeEvent{event: models.EventCreate, objectType: objectType, id: id, fields: fields})
	return nil
}

// DeleteObject buffers a delete and drops any pending update of the object.
func (b *Bridge) DeleteObject(objectType string, id int64) {
	b.mu.Lock()
	b.removeLocked((&bridgeEvent{event: models.EventUpdate, objectType: objectType, id: id}).key())
	b.mu.Unlock()
	b.add(&bridgeEvent{event: models.EventDelete, objectType: objectType, id: id})
}

// Execute buffers a remote command.
func (b *Bridge) Execute(command, objectType string, id int64) {
	b.add(&bridgeEvent{event: models.EventExecute, command: command, objectType: objectType, id: id})
}

// SetSessionID records the realtime session id used to suppress echoes.
func (b *Bridge) SetSessionID(id string) {
	metrics.BridgeEvents.WithLabelValues(models.EventSession).Inc()
	b.m.client.SetSessionID(id)
	b.logger.Debug().Str("session_id", id).Msg("Realtime session established")
}

// LinkError reports a provider communication error.
func (b *Bridge) LinkError(linkID int64, message string) {
	metrics.BridgeEvents.WithLabelValues(models.EventLinkError).Inc()
	if err := b.m.LinkError(context.Background(), linkID, message); err != nil {
		b.logger.Debug().Err(err).Int64("link_id", linkID).Msg("Link error for unknown link")
	}
}

// Flush dispatches the buffered events now.
func (b *Bridge) Flush() {
	b.debouncer.Cancel()
	b.flush()
}

func (b *Bridge) add(ev *bridgeEvent) {
	metrics.BridgeEvents.WithLabelValues(ev.event).Inc()
	k := ev.key()
	b.mu.Lock()
	if _, ok := b.events[k]; !ok {
		b.order = append(b.order, k)
	}
	b.events[k] = ev
	b.mu.Unlock()
	b.debouncer.Trigger()
}

func (b *Bridge) removeLocked(k string) {
	if _, ok := b.events[k]; !ok {
		return
	}
	delete(b.events, k)
	for i, o := range b.order {
		if o == k {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

func (b *Bridge) pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

// flush hands the buffered events, in arrival order, to the reconcile queue.
func (b *Bridge) flush() {
	b.mu.Lock()
	batch := make([]*bridgeEvent, 0, len(b.order))
	for _, k := range b.order {
		batch = append(batch, b.events[k])
	}
	b.order = nil
	b.events = make(map[string]*bridgeEvent)
	b.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	b.m.submit(b.m.reconcileQ, "reconcile", func(ctx context.Context) {
		for _, ev := range batch {
			b.dispatch(ctx, ev)
		}
	})
}

func (b *Bridge) dispatch(ctx context.Context, ev *bridgeEvent) {
	metrics.BridgeDispatched.Inc()
	var err error
	switch ev.event {
	case models.EventUpdate:
		err = b.m.OnUpdated(ctx, ev.objectType, ev.id, ev.fields)
	case models.EventCreate:
		err = b.m.OnCreated(ctx, ev.objectType, ev.id, ev.fields)
	case models.EventDelete:
		err = b.m.OnDeleted(ctx, ev.objectType, ev.id)
	case models.EventExecute:
		err = b.m.OnCommand(ctx, ev.command, ev.objectType, ev.id)
	}
	if err != nil {
		b.logger.Warn().Err(err).
			Str("event", ev.event).
			Str("object_type", ev.objectType).
			Int64("object_id", ev.id).
			Msg("Failed to apply realtime event")
	}
}

func decodeFields(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}
