/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
)

const (
	StatusWaiting           = "waiting"
	StatusWaitingForAnswers = "waiting_for_answers"
	StatusGameOver          = "game_over"
	StatusDrawing           = "drawing"
)

var ErrNotImplemented = fmt.Errorf("%w: this game is not available yet", ErrInvalidState)

// GameInfo describes a game in the catalog shown to hosts.
type GameInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MinPlayers  int    `json:"min_players"`
	MaxPlayers  int    `json:"max_players"`
	Icon        string `json:"icon"`
}

// Action is a game_action payload after decoding.
type Action struct {
	Name        string
	AnswerIndex *int
	X           *float64
	Y           *float64
	Color       string
	Thickness   *float64
	Guess       string
}

// Engine creates the state for one game type.
type Engine interface {
	Info() GameInfo
	Initialize(members []Member) (GameState, error)
}

// GameState is a running game. Callers hold the owning room's lock, so
// implementations need no synchronisation of their own.
type GameState interface {
	GameID() string
	Status() string

	// Apply validates and records an action from playerID, returning the
	// messages to broadcast. State is unchanged when an error is returned.
	Apply(playerID string, action Action, members []Member) ([]any, error)

	// MembersChanged is called after a player leaves or disconnects, so a
	// round that was only waiting on them can complete.
	MembersChanged(members []Member) []any

	// Rekey moves everything recorded for oldID over to newID.
	Rekey(oldID, newID string)

	Scores() map[string]int
	View() any
}

// Catalog is the set of games a host can pick from, in display order.
type Catalog struct {
	order   []string
	engines map[string]Engine
}

func NewCatalog(engines ...Engine) *Catalog {
	c := &Catalog{
		engines: make(map[string]Engine, len(engines)),
	}

	for _, e := range engines {
		id := e.Info().ID
		if _, ok := c.engines[id]; !ok {
			c.order = append(c.order, id)
		}
		c.engines[id] = e
	}

	return c
}

func defaultCatalog(bank []Question, words []string) *Catalog {
	return NewCatalog(
		newTriviaEngine(bank, nil),
		wordGameEngine{},
		newDrawingEngine(words, nil),
	)
}

func (c *Catalog) Engine(id string) (Engine, error) {
	e, ok := c.engines[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown game %q", ErrNotFound, id)
	}

	return e, nil
}

func (c *Catalog) List() []GameInfo {
	out := make([]GameInfo, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.engines[id].Info())
	}

	return out
}

type wordGameEngine struct{}

func (wordGameEngine) Info() GameInfo {
	return GameInfo{
		ID:          "word_game",
		Name:        "Word Game",
		Description: "Guess the word from the clues",
		MinPlayers:  2,
		MaxPlayers:  6,
		Icon:        "words_icon.png",
	}
}

func (wordGameEngine) Initialize([]Member) (GameState, error) {
	return nil, ErrNotImplemented
}
