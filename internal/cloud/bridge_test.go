// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package cloud

import (
	"fmt"
	"testing"
	"time"

	"github.com/tomtom215/cadence/internal/config"
	"github.com/tomtom215/cadence/internal/models"
)

func TestBridgeCoalescesByKey(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, func(cfg *config.Config) { cfg.Sync.InboundDelay = time.Hour })
	b := e.m.Bridge()

	if err := b.UpdateObject("playlists", 1, []byte(`{"name":"a"}`)); err != nil {
		t.Fatalf("UpdateObject: %v", err)
	}
	if err := b.UpdateObject("playlists", 1, []byte(`{"name":"b"}`)); err != nil {
		t.Fatalf("UpdateObject: %v", err)
	}
	if got := b.pending(); got != 1 {
		t.Fatalf("pending = %d after two updates of one object, want 1", got)
	}

	b.mu.Lock()
	name := b.events[b.order[0]].fields["name"]
	b.mu.Unlock()
	if name != "b" {
		t.Errorf("kept %v, want the latest update", name)
	}

	if err := b.CreateObject("links", []byte(`{"id":3,"provider":"lastfm"}`)); err != nil {
		t.Fatalf("CreateObject: %v", err)
	}
	b.Execute("next", "configurations", 5)
	b.Execute("next", "configurations", 5)
	if got := b.pending(); got != 3 {
		t.Fatalf("pending = %d, want 3", got)
	}

	b.DeleteObject("playlists", 1)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range b.order {
		if ev := b.events[k]; ev.event == models.EventUpdate {
			t.Errorf("delete left the pending update in place: %+v", ev)
		}
	}
	if len(b.order) != 3 {
		t.Errorf("order = %v, want create, execute, delete", b.order)
	}
}

func TestBridgeRejectsBadPayloads(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)
	b := e.m.Bridge()

	if err := b.UpdateObject("playlists", 1, []byte(`not json`)); err == nil {
		t.Error("UpdateObject accepted invalid JSON")
	}
	if err := b.CreateObject("playlists", []byte(`{"id":"x"}`)); err == nil {
		t.Error("CreateObject accepted a non-numeric id")
	}
	if err := b.Handle(models.ObjectEvent{Event: "teleport"}); err == nil {
		t.Error("Handle accepted an unknown event")
	}
}

func TestBridgeSessionIDIsImmediate(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, func(cfg *config.Config) { cfg.Sync.InboundDelay = time.Hour })

	if err := e.m.Bridge().Handle(models.ObjectEvent{Event: models.EventSession, Message: "sess-1"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := e.client.SessionID(); got != "sess-1" {
		t.Errorf("session id = %q", got)
	}
	if got := e.m.Bridge().pending(); got != 0 {
		t.Errorf("session event was buffered: pending = %d", got)
	}
}

func TestBridgeAppliesRemoteConfiguration(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)
	e.link(t)

	ev := models.ObjectEvent{
		Event: models.EventUpdate,
		Type:  "configurations",
		ID:    testConfigID,
		Data:  []byte(`{"volume":0.2,"shuffle":false,"repeat":"RepeatOne"}`),
	}
	if err := e.m.Bridge().Handle(ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	waitFor(t, "remote volume applied", func() bool {
		s := e.player.Settings()
		return s.Volume == 0.2 && !s.Shuffle && s.Repeat == models.RepeatOne
	})

	// another configuration's update is ignored
	other := ev
	other.ID = testConfigID + 1
	other.Data = []byte(`{"volume":0.9}`)
	_ = e.m.Bridge().Handle(other)
	e.m.Bridge().Flush()
	time.Sleep(50 * time.Millisecond)
	if v := e.player.Settings().Volume; v != 0.2 {
		t.Errorf("volume = %v after a foreign configuration update", v)
	}
}

func TestBridgeLinkEvents(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)
	e.link(t)
	b := e.m.Bridge()

	if err := b.CreateObject("links", []byte(`{"id":3,"provider":"lastfm","connected":true,"can_share":true}`)); err != nil {
		t.Fatalf("CreateObject: %v", err)
	}
	b.Flush()
	waitFor(t, "link added", func() bool {
		id := e.m.Identity()
		return id != nil && id.LinkByID(3) != nil
	})

	b.LinkError(3, "token expired")
	l := e.m.Identity().LinkByID(3)
	if l.Error == nil || *l.Error != "token expired" {
		t.Errorf("link error = %v", l.Error)
	}
	if e.notes.count(models.NotifyLinkError) != 1 {
		t.Error("link_error not notified")
	}

	if err := b.UpdateObject("links", 3, []byte(`{"connected":false}`)); err != nil {
		t.Fatalf("UpdateObject: %v", err)
	}
	b.Flush()
	waitFor(t, "link disconnected", func() bool {
		l := e.m.Identity().LinkByID(3)
		return l != nil && !l.Connected && !l.CanShare
	})

	b.DeleteObject("links", 3)
	b.Flush()
	waitFor(t, "link removed", func() bool { return e.m.Identity().LinkByID(3) == nil })
}

func TestBridgeDispatchOrder(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, func(cfg *config.Config) { cfg.Sync.InboundDelay = time.Hour })
	e.link(t)
	b := e.m.Bridge()

	payload := func(name string) []byte {
		return []byte(fmt.Sprintf(`{"id":90,"name":%q,"owner_id":%d,"songs":[]}`, name, testUserID))
	}
	if err := b.CreateObject("playlists", payload("First")); err != nil {
		t.Fatalf("CreateObject: %v", err)
	}
	if err := b.UpdateObject("playlists", 90, payload("Second")); err != nil {
		t.Fatalf("UpdateObject: %v", err)
	}
	b.Flush()

	waitFor(t, "create then update applied", func() bool {
		p, ok := e.library.PlaylistByID(90)
		return ok && p.Name == "Second"
	})
}

func TestRemoteDeviceDeletionDelinks(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)
	e.link(t)

	// another device's deletion leaves the link alone
	if err := e.m.Bridge().Handle(models.ObjectEvent{Event: models.EventDelete, Type: "devices", ID: testDeviceID + 1}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	e.m.Bridge().Flush()
	time.Sleep(50 * time.Millisecond)
	if !e.m.Linked() {
		t.Fatal("deleting a foreign device delinked this one")
	}

	if err := e.m.Bridge().Handle(models.ObjectEvent{Event: models.EventDelete, Type: "devices", ID: testDeviceID}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	e.m.Bridge().Flush()
	waitFor(t, "delink after own device deletion", func() bool { return !e.m.Linked() })
	if got := e.client.DeviceID(); got != 0 {
		t.Errorf("transport device id = %d after delink", got)
	}
}
