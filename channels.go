/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"sync"
)

// Channels tracks which connections are subscribed to which room.
type Channels struct {
	mu    sync.Mutex
	rooms map[string]map[*Client]struct{}
}

func NewChannels() *Channels {
	return &Channels{rooms: make(map[string]map[*Client]struct{})}
}

func (ch *Channels) subscribe(code string, c *Client) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	set, ok := ch.rooms[code]
	if !ok {
		set = make(map[*Client]struct{})
		ch.rooms[code] = set
	}
	set[c] = struct{}{}
}

func (ch *Channels) unsubscribe(code string, c *Client) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	set, ok := ch.rooms[code]
	if !ok {
		return
	}

	delete(set, c)
	if len(set) == 0 {
		delete(ch.rooms, code)
	}
}

func (ch *Channels) clients(code string) []*Client {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	out := make([]*Client, 0, len(ch.rooms[code]))
	for c := range ch.rooms[code] {
		out = append(out, c)
	}

	return out
}

func (ch *Channels) broadcast(code string, msgs ...any) {
	for _, c := range ch.clients(code) {
		for _, msg := range msgs {
			c.deliver(msg)
		}
	}
}

// playerConnections counts the live connections joined as playerID.
func (ch *Channels) playerConnections(code, playerID string) []*Client {
	var out []*Client
	for _, c := range ch.clients(code) {
		if c.isPlayer(playerID) && !c.closed() {
			out = append(out, c)
		}
	}

	return out
}

// closeRoom sends msg to every subscriber, closes them and forgets the room.
func (ch *Channels) closeRoom(code string, msg any) {
	ch.mu.Lock()
	set := ch.rooms[code]
	delete(ch.rooms, code)
	ch.mu.Unlock()

	for c := range set {
		if msg != nil {
			c.deliver(msg)
		}
		c.close()
	}
}

func (ch *Channels) count(code string) int {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	return len(ch.rooms[code])
}
