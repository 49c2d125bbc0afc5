// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package cloud

import (
	"context"
	"net/http"
	"sort"
	"testing"

	"github.com/tomtom215/cadence/internal/models"
)

func remote(id, owner int64, name string, paths ...string) models.RemotePlaylist {
	r := models.RemotePlaylist{ID: id, OwnerID: owner, Name: name}
	for _, p := range paths {
		r.Songs = append(r.Songs, models.Song{Path: p})
	}
	return r
}

func tracksOf(t *testing.T, e *testEnv, name string) []string {
	t.Helper()
	p, ok := e.library.PlaylistByName(name)
	if !ok {
		t.Fatalf("playlist %q missing", name)
	}
	out := append([]string(nil), p.Tracks...)
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMergeOwnedPlaylistIsIdempotent(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, slowFlush)
	e.link(t)

	if _, err := e.library.CreatePlaylist(models.Playlist{Name: "Mix", ID: 20, OwnerID: testUserID, Tracks: []string{"b", "c"}}); err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}
	r := remote(20, testUserID, "Mix", "a", "b")

	for i := 0; i < 3; i++ {
		if err := e.m.mergePlaylist(r); err != nil {
			t.Fatalf("merge %d: %v", i, err)
		}
	}

	if got := tracksOf(t, e, "Mix"); !equalStrings(got, []string{"a", "b", "c"}) {
		t.Errorf("tracks = %v, want [a b c]", got)
	}
	var uploads []models.SyncOperation
	for _, op := range e.m.PendingOperations() {
		if op.ObjectType == "playlists" && op.ObjectID == 20 {
			uploads = append(uploads, op)
		}
	}
	if len(uploads) != 1 {
		t.Fatalf("queued %d uploads, want 1", len(uploads))
	}
	if got := songPaths(uploads[0].Params, "added"); !equalStrings(got, []string{"c"}) {
		t.Errorf("uploaded %v, want [c]", got)
	}

	// once the service reports c, nothing stays pending
	if err := e.m.mergePlaylist(remote(20, testUserID, "Mix", "a", "b", "c")); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if pending := e.m.PendingUploads(20); len(pending) != 0 {
		t.Errorf("pending = %v after confirmation", pending)
	}
}

func TestMergeFollowedPlaylistPullsOnly(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, slowFlush)
	e.link(t)

	if _, err := e.library.CreatePlaylist(models.Playlist{Name: "Theirs", ID: 30, OwnerID: 99, Tracks: []string{"a", "x"}}); err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}
	if err := e.m.mergePlaylist(remote(30, 99, "Theirs", "a", "b")); err != nil {
		t.Fatalf("merge: %v", err)
	}

	if got := tracksOf(t, e, "Theirs"); !equalStrings(got, []string{"a", "b"}) {
		t.Errorf("tracks = %v, want [a b]", got)
	}
	for _, op := range e.m.PendingOperations() {
		if op.ObjectID == 30 {
			t.Errorf("followed playlist queued an upload: %+v", op)
		}
	}
}

func TestMergeFilterPlaylistOnlySetsFilter(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, slowFlush)
	e.link(t)

	r := models.RemotePlaylist{ID: 31, OwnerID: testUserID, Name: "Smart", Filter: "genre:jazz", Songs: []models.Song{{Path: "a"}}}
	if err := e.m.mergePlaylist(r); err != nil {
		t.Fatalf("merge: %v", err)
	}
	p, ok := e.library.PlaylistByName("Smart")
	if !ok || p.Filter != "genre:jazz" || len(p.Tracks) != 0 {
		t.Errorf("playlist = %+v", p)
	}
}

func TestSyncPlaylistsTwoWay(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, slowFlush)
	e.svc.on("GET /playlists.json", static(http.StatusOK, []any{
		map[string]any{"id": 40, "name": "Road", "owner_id": testUserID, "songs": []any{map[string]any{"path": "p1"}}},
		map[string]any{"id": 41, "name": "Shared", "owner_id": 99, "songs": []any{map[string]any{"path": "s1"}}},
	}))

	mustCreate := func(p models.Playlist) {
		if _, err := e.library.CreatePlaylist(p); err != nil {
			t.Fatalf("CreatePlaylist(%s): %v", p.Name, err)
		}
	}
	mustCreate(models.Playlist{Name: "Road", Tracks: []string{"p2"}})
	mustCreate(models.Playlist{Name: "Fresh", Tracks: []string{"f1"}})
	mustCreate(models.Playlist{Name: "Smart", Filter: "year:1999"})
	e.link(t)

	waitFor(t, "followed playlist merged", func() bool {
		_, ok := e.library.PlaylistByID(41)
		return ok
	})
	waitFor(t, "fresh playlist queued", func() bool {
		for _, op := range e.m.PendingOperations() {
			if op.Command == models.CommandCreate && op.LocalRef == "Fresh" {
				return true
			}
		}
		return false
	})

	if n := e.svc.count(http.MethodPost, "/playlists/41/follow.json"); n != 1 {
		t.Errorf("follow sent %d times, want 1", n)
	}
	road, _ := e.library.PlaylistByName("Road")
	if road.ID != 40 {
		t.Errorf("Road id = %d, want 40 (matched by name)", road.ID)
	}
	if got := tracksOf(t, e, "Road"); !equalStrings(got, []string{"p1", "p2"}) {
		t.Errorf("Road tracks = %v", got)
	}
	for _, op := range e.m.PendingOperations() {
		switch {
		case op.Command == models.CommandCreate && (op.LocalRef == "Smart" || op.LocalRef == "Road"):
			t.Errorf("unexpected create for %s", op.LocalRef)
		case op.ObjectID == 40:
			if got := songPaths(op.Params, "added"); !equalStrings(got, []string{"p2"}) {
				t.Errorf("Road upload = %v, want [p2]", got)
			}
		}
	}
}

func TestIncrementalPlaylistPush(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, slowFlush)
	e.link(t)

	if _, err := e.library.CreatePlaylist(models.Playlist{Name: "Old", ID: 60, OwnerID: testUserID, Tracks: []string{"a"}}); err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}
	if err := e.library.RenamePlaylist("Old", "New"); err != nil {
		t.Fatalf("RenamePlaylist: %v", err)
	}
	if err := e.m.PlaylistRenamed("Old", "New"); err != nil {
		t.Fatalf("PlaylistRenamed: %v", err)
	}
	if err := e.m.PlaylistTracksAdded("New", []string{"b"}); err != nil {
		t.Fatalf("PlaylistTracksAdded: %v", err)
	}
	if err := e.m.PlaylistTracksRemoved("New", []string{"a"}); err != nil {
		t.Fatalf("PlaylistTracksRemoved: %v", err)
	}

	ops := e.m.PendingOperations()
	if len(ops) != 1 {
		t.Fatalf("ops = %+v, want one coalesced update", ops)
	}
	params := ops[0].Params
	if params["name"] != "New" {
		t.Errorf("name = %v", params["name"])
	}
	if got := songPaths(params, "added"); !equalStrings(got, []string{"b"}) {
		t.Errorf("added = %v", got)
	}
	if got := songPaths(params, "removed"); !equalStrings(got, []string{"a"}) {
		t.Errorf("removed = %v", got)
	}
}

func TestRenameBeforeUploadRewritesCreate(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, slowFlush)
	e.link(t)

	if _, err := e.library.CreatePlaylist(models.Playlist{Name: "Draft"}); err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}
	if err := e.m.PlaylistCreated("Draft"); err != nil {
		t.Fatalf("PlaylistCreated: %v", err)
	}
	if err := e.library.RenamePlaylist("Draft", "Final"); err != nil {
		t.Fatalf("RenamePlaylist: %v", err)
	}
	if err := e.m.PlaylistRenamed("Draft", "Final"); err != nil {
		t.Fatalf("PlaylistRenamed: %v", err)
	}

	var creates []models.SyncOperation
	for _, op := range e.m.PendingOperations() {
		if op.Command == models.CommandCreate {
			creates = append(creates, op)
		}
	}
	if len(creates) != 1 || creates[0].LocalRef != "Final" {
		t.Errorf("creates = %+v, want one for Final", creates)
	}
}

func TestPlaylistDeletedOwnedAndFollowed(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, slowFlush)
	e.link(t)

	if err := e.m.PlaylistDeleted(models.Playlist{Name: "Mine", ID: 70, OwnerID: testUserID}); err != nil {
		t.Fatalf("PlaylistDeleted owned: %v", err)
	}
	if err := e.m.PlaylistDeleted(models.Playlist{Name: "Theirs", ID: 71, OwnerID: 99}); err != nil {
		t.Fatalf("PlaylistDeleted followed: %v", err)
	}

	ops := e.m.PendingOperations()
	if len(ops) != 1 || ops[0].Command != models.CommandDelete || ops[0].ObjectID != 70 {
		t.Errorf("ops = %+v, want a delete for 70", ops)
	}
	waitFor(t, "unfollow", func() bool {
		return e.svc.count(http.MethodDelete, "/playlists/71/follow.json") == 1
	})
}

func TestRemoteDeleteRemovesLocalPlaylist(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, slowFlush)
	e.link(t)

	if _, err := e.library.CreatePlaylist(models.Playlist{Name: "Gone", ID: 80, OwnerID: testUserID}); err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}
	if err := e.m.OnDeleted(context.Background(), "playlists", 80); err != nil {
		t.Fatalf("OnDeleted: %v", err)
	}
	if _, ok := e.library.PlaylistByID(80); ok {
		t.Error("playlist survived a remote delete")
	}
}
