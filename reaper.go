/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Reaper periodically expires disconnected players, idle rooms and the
// sessions that pointed at them.
type Reaper struct {
	rooms    *Registry
	channels *Channels
	sessions *Sessions
	logger   zerolog.Logger

	interval      time.Duration
	playerTimeout time.Duration
	roomTimeout   time.Duration
}

// SweepResult is the outcome of one reaper pass.
type SweepResult struct {
	Players  int
	Closed   []string
	Reaped   []string
	Sessions int
}

func NewReaper(cfg *Config, rooms *Registry, channels *Channels, sessions *Sessions, logger zerolog.Logger) *Reaper {
	return &Reaper{
		rooms:         rooms,
		channels:      channels,
		sessions:      sessions,
		logger:        logger,
		interval:      cfg.reapInterval,
		playerTimeout: cfg.playerTimeout,
		roomTimeout:   cfg.roomTimeout,
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Reaper) Sweep() SweepResult {
	return r.sweep(r.rooms.Rooms())
}

// sweep works over a snapshot of the registry. Rooms closed by their players
// since the snapshot are left alone.
func (r *Reaper) sweep(rooms []*Room) SweepResult {
	var out SweepResult

	for _, room := range rooms {
		removed, closed := r.cleanupRoom(room)
		out.Players += removed
		if closed {
			out.Closed = append(out.Closed, room.code)
		}
	}

	out.Reaped = r.rooms.reap(rooms, r.roomTimeout)
	for _, code := range out.Reaped {
		r.channels.closeRoom(code, nil)
	}

	out.Sessions = r.sessions.Prune(func(id Identity) bool {
		return r.rooms.Exists(id.RoomCode)
	})

	if out.Players > 0 || len(out.Closed) > 0 || len(out.Reaped) > 0 || out.Sessions > 0 {
		r.logger.Info().
			Int("players", out.Players).
			Strs("closed", out.Closed).
			Strs("reaped", out.Reaped).
			Int("sessions", out.Sessions).
			Msg("ROOMS: Reaper pass")
	}

	return out
}

func (r *Reaper) cleanupRoom(room *Room) (int, bool) {
	room.mu.Lock()
	defer room.mu.Unlock()

	res := room.cleanupDisconnectedLocked(r.playerTimeout)
	if len(res.Removed) == 0 {
		return 0, false
	}

	if res.Closed {
		r.channels.closeRoom(room.code, RoomClosedMessage{Type: "room_closed", Reason: "Every player timed out"})

		return len(res.Removed), true
	}

	players := room.playersLocked()
	for i, m := range res.Removed {
		msg := PlayerLeftMessage{
			Type:       "player_left",
			PlayerID:   m.ID,
			PlayerName: m.Name,
			Players:    players,
			Reason:     "timeout",
		}
		if i == len(res.Removed)-1 {
			msg.HostChanged = res.HostChanged
			msg.NewHostID = res.NewHostID
		}

		r.channels.broadcast(room.code, msg)
	}

	return len(res.Removed), false
}
