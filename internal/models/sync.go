// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package models

import "strconv"

// Command is the verb of a SyncOperation.
type Command string

const (
	CommandCreate Command = "create"
	CommandUpdate Command = "update"
	CommandDelete Command = "delete"
)

// Valid reports whether c is one of the three known commands.
func (c Command) Valid() bool {
	switch c {
	case CommandCreate, CommandUpdate, CommandDelete:
		return true
	}
	return false
}

// SyncOperation is one pending outbound mutation.
//
// ObjectType is the pluralized resource name ("playlists", "configurations").
// ObjectID is 0 for creates. Params holds scalar fields, which are sent as
// query parameters, and nested maps or lists, which are sent in the JSON body.
type SyncOperation struct {
	Command    Command        `json:"command"`
	ObjectType string         `json:"object_type"`
	ObjectID   int64          `json:"object_id"`
	Params     map[string]any `json:"params,omitempty"`

	// LocalRef names the local object a create belongs to, so the id the
	// server assigns can be written back. Only used for playlist creates.
	LocalRef string `json:"local_ref,omitempty"`
}

// Key identifies the (command, type, id) tuple.
func (op SyncOperation) Key() string {
	return string(op.Command) + ":" + op.ObjectType + ":" + strconv.FormatInt(op.ObjectID, 10)
}

// Coalescable reports whether later operations may be merged into this one.
func (op SyncOperation) Coalescable() bool {
	return op.Command == CommandUpdate
}
