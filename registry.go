/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const maxCodeAttempts = 32

var ErrCapacity = fmt.Errorf("%w: no more rooms can be created right now", ErrInvalidState)

// Registry maps room codes to open rooms.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room

	maxRooms int
	codes    func() (string, error)
	now      func() time.Time
}

func NewRegistry(maxRooms int) *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		maxRooms: maxRooms,
		codes:    func() (string, error) { return newRoomCode(rand.Reader) },
		now:      time.Now,
	}
}

// Create opens a room with hostID as its only player and host.
func (g *Registry) Create(hostID, hostName string) (*Room, error) {
	if hostID == "" || hostName == "" {
		return nil, ErrIncomplete
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.maxRooms > 0 && len(g.rooms) >= g.maxRooms {
		return nil, ErrCapacity
	}

	for range maxCodeAttempts {
		code, err := g.codes()
		if err != nil {
			return nil, err
		}

		if _, taken := g.rooms[code]; taken {
			continue
		}

		room := newRoom(uuid.NewString(), code, hostID, hostName, g.now, g.remove)
		g.rooms[code] = room

		return room, nil
	}

	return nil, ErrCapacity
}

func (g *Registry) Get(code string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.rooms[NormalizeRoomCode(code)]

	return room, ok
}

// Lookup is Get with a NotFound error for unknown codes.
func (g *Registry) Lookup(code string) (*Room, error) {
	room, ok := g.Get(code)
	if !ok {
		return nil, ErrRoomNotFound
	}

	return room, nil
}

func (g *Registry) Exists(code string) bool {
	_, ok := g.Get(code)

	return ok
}

func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.rooms)
}

// Rooms returns the currently registered rooms in no particular order.
func (g *Registry) Rooms() []*Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]*Room, 0, len(g.rooms))
	for _, room := range g.rooms {
		out = append(out, room)
	}

	return out
}

// remove deregisters room if it is still the one registered under its code.
// Rooms call it while holding their own lock.
func (g *Registry) remove(room *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.rooms[room.code] == room {
		delete(g.rooms, room.code)
	}
}

// ReapInactive closes every room idle for longer than maxAge and returns the
// codes it removed.
func (g *Registry) ReapInactive(maxAge time.Duration) []string {
	return g.reap(g.Rooms(), maxAge)
}

// reap closes the idle rooms of an earlier Rooms snapshot. Rooms that closed
// after the snapshot was taken are skipped, since their code may already
// belong to a new room.
func (g *Registry) reap(rooms []*Room, maxAge time.Duration) []string {
	t := g.now()

	var reaped []string
	for _, room := range rooms {
		room.mu.Lock()
		if room.active && t.Sub(room.lastActivity) > maxAge {
			room.closeLocked()
			reaped = append(reaped, room.code)
		}
		room.mu.Unlock()
	}

	return reaped
}
