/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"time"
)

// Player is one connected participant of a room.
type Player struct {
	ID           string
	Name         string
	Score        int
	JoinedAt     time.Time
	LastActivity time.Time
}

// DisconnectedPlayer is held by a room until its owner reconnects under the
// same name or the reaper gives up on them.
type DisconnectedPlayer struct {
	Name           string    `json:"name"`
	DisconnectedAt time.Time `json:"disconnected_at"`
	WasHost        bool      `json:"was_host"`
	Score          int       `json:"score"`
}

// Member is the slice of player identity handed to game logic.
type Member struct {
	ID   string
	Name string
}

// PlayerView is the client-facing form of a player.
type PlayerView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsHost    bool   `json:"is_host"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
}

// Identity ties a connection or session to a player in a room.
type Identity struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	RoomCode   string `json:"room_code"`
}

func (i Identity) empty() bool {
	return i.PlayerID == "" || i.RoomCode == ""
}
