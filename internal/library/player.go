// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package library

import (
	"sync"

	"github.com/tomtom215/cadence/internal/models"
)

// Player command names forwarded to the desktop player.
const (
	PlayerNext      = "next"
	PlayerPrevious  = "previous"
	PlayerPlay      = "play"
	PlayerPause     = "pause"
	PlayerPlayPause = "play_pause"
)

// CommandFunc forwards a transport command to the desktop player.
type CommandFunc func(command string)

// Player mirrors the desktop player's settings. Transport commands are
// forwarded through the command hook; setting changes raise a
// configuration_changed notification so the player UI can follow.
type Player struct {
	mu        sync.RWMutex
	settings  models.PlayerSettings
	onCommand CommandFunc
	onChange  ChangeFunc
}

// NewPlayer returns a player with default settings.
func NewPlayer(onCommand CommandFunc, onChange ChangeFunc) *Player {
	return &Player{
		settings:  models.PlayerSettings{Volume: 1.0, Repeat: models.NoRepeat, MediaState: models.MediaStopped},
		onCommand: onCommand,
		onChange:  onChange,
	}
}

// SetHooks replaces both hooks.
func (p *Player) SetHooks(onCommand CommandFunc, onChange ChangeFunc) {
	p.mu.Lock()
	p.onCommand = onCommand
	p.onChange = onChange
	p.mu.Unlock()
}

func (p *Player) Next()      { p.command(PlayerNext) }
func (p *Player) Previous()  { p.command(PlayerPrevious) }
func (p *Player) Play()      { p.command(PlayerPlay) }
func (p *Player) Pause()     { p.command(PlayerPause) }
func (p *Player) PlayPause() { p.command(PlayerPlayPause) }

// Settings returns the current settings.
func (p *Player) Settings() models.PlayerSettings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings
}

func (p *Player) SetShuffle(v bool) {
	p.update(func(s *models.PlayerSettings) { s.Shuffle = v })
}

func (p *Player) SetRepeat(m models.RepeatMode) {
	p.update(func(s *models.PlayerSettings) { s.Repeat = m })
}

// SetVolume clamps v into [0, 1].
func (p *Player) SetVolume(v float64) {
	switch {
	case v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	p.update(func(s *models.PlayerSettings) { s.Volume = v })
}

func (p *Player) SetCurrentTrack(path string) {
	p.update(func(s *models.PlayerSettings) { s.CurrentTrack = path })
}

// SetMediaState records the player's reported state. It does not notify.
func (p *Player) SetMediaState(state models.MediaState) {
	p.mu.Lock()
	p.settings.MediaState = state
	p.mu.Unlock()
}

func (p *Player) update(fn func(s *models.PlayerSettings)) {
	p.mu.Lock()
	fn(&p.settings)
	s := p.settings
	hook := p.onChange
	p.mu.Unlock()

	if hook != nil {
		hook(models.NotifyConfigurationChanged, s)
	}
}

func (p *Player) command(name string) {
	p.mu.RLock()
	hook := p.onCommand
	p.mu.RUnlock()
	if hook != nil {
		hook(name)
	}
}
