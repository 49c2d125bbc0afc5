// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package cloud

import "errors"

var (
	// ErrNotLinked is returned when an operation needs a linked account.
	ErrNotLinked = errors.New("cloud: no account linked")
	// ErrNoDevice is returned when an operation needs a registered device.
	ErrNoDevice = errors.New("cloud: device not registered")
	// ErrDeviceWaitTimeout is returned when registration did not finish in time.
	ErrDeviceWaitTimeout = errors.New("cloud: timed out waiting for device registration")
	// ErrRegistrationFailed is returned when device registration gave up.
	ErrRegistrationFailed = errors.New("cloud: device registration failed")
	// ErrUnknownCommand is returned for a command outside the known vocabulary.
	ErrUnknownCommand = errors.New("cloud: unknown command")
	// ErrForeignCommand is returned for a command addressed to another configuration.
	ErrForeignCommand = errors.New("cloud: command addressed to another configuration")
	// ErrQueueClosed is returned when submitting to a stopped engine.
	ErrQueueClosed = errors.New("cloud: task queue closed")
	// ErrNotRunning is returned by Stop on an engine that was never started.
	ErrNotRunning = errors.New("cloud: engine is not running")
	// ErrAlreadyRunning is returned by Start on a running engine.
	ErrAlreadyRunning = errors.New("cloud: engine is already running")
	// ErrNoShareTargets is returned when no connected link consents to sharing.
	ErrNoShareTargets = errors.New("cloud: no connected link allows sharing")
	// ErrLinkNotFound is returned for an unknown provider.
	ErrLinkNotFound = errors.New("cloud: link not found")
	// ErrPlaylistUnknown is returned for a playlist the library does not have.
	ErrPlaylistUnknown = errors.New("cloud: playlist not found")
	// ErrOffline is wrapped in the transport error returned while disconnected.
	ErrOffline = errors.New("cloud: service is offline")
)
