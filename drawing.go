/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

const (
	drawingGameID       = "drawing"
	drawingGuessScore   = 5
	drawingDefaultColor = "#000000"
	drawingDefaultWidth = 2
)

type DrawUpdateMessage struct {
	Type      string  `json:"type"` // "draw_update"
	PlayerID  string  `json:"player_id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Color     string  `json:"color"`
	Thickness float64 `json:"thickness"`
}

type ClearCanvasMessage struct {
	Type     string `json:"type"` // "clear_canvas"
	PlayerID string `json:"player_id"`
}

type CorrectGuessMessage struct {
	Type       string         `json:"type"` // "correct_guess"
	PlayerID   string         `json:"player_id"`
	PlayerName string         `json:"player_name"`
	Word       string         `json:"word"`
	Scores     map[string]int `json:"scores"`
}

type WrongGuessMessage struct {
	Type       string `json:"type"` // "wrong_guess"
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Guess      string `json:"guess"`
}

// drawingEngine relays strokes and checks guesses against a secret word.
// Turn order and round completion are not defined for this game yet.
type drawingEngine struct {
	words []string
	pick  func(n int) int
}

func newDrawingEngine(words []string, pick func(n int) int) *drawingEngine {
	if pick == nil {
		pick = rand.IntN
	}

	return &drawingEngine{words: words, pick: pick}
}

func (e *drawingEngine) Info() GameInfo {
	return GameInfo{
		ID:          drawingGameID,
		Name:        "Draw & Guess",
		Description: "One player draws, the others guess",
		MinPlayers:  3,
		MaxPlayers:  8,
		Icon:        "drawing_icon.png",
	}
}

func (e *drawingEngine) Initialize(members []Member) (GameState, error) {
	if len(e.words) == 0 {
		return nil, fmt.Errorf("%w: the word list is empty", ErrInvalidState)
	}

	scores := make(map[string]int, len(members))
	for _, m := range members {
		scores[m.ID] = 0
	}

	return &drawingState{
		word:   e.words[e.pick(len(e.words))],
		scores: scores,
	}, nil
}

type drawingState struct {
	word   string
	scores map[string]int
}

func (s *drawingState) GameID() string { return drawingGameID }

func (s *drawingState) Status() string { return StatusDrawing }

func (s *drawingState) Apply(playerID string, action Action, members []Member) ([]any, error) {
	switch action.Name {
	case "draw":
		if action.X == nil || action.Y == nil {
			return nil, fmt.Errorf("%w: x and y are required", ErrMalformed)
		}

		msg := DrawUpdateMessage{
			Type:      "draw_update",
			PlayerID:  playerID,
			X:         *action.X,
			Y:         *action.Y,
			Color:     action.Color,
			Thickness: drawingDefaultWidth,
		}
		if msg.Color == "" {
			msg.Color = drawingDefaultColor
		}
		if action.Thickness != nil {
			msg.Thickness = *action.Thickness
		}

		return []any{msg}, nil

	case "clear_canvas":
		return []any{ClearCanvasMessage{Type: "clear_canvas", PlayerID: playerID}}, nil

	case "guess":
		guess := strings.ToLower(strings.TrimSpace(action.Guess))
		if guess == "" {
			return nil, fmt.Errorf("%w: guess is required", ErrMalformed)
		}

		if guess != strings.ToLower(s.word) {
			return []any{WrongGuessMessage{
				Type:       "wrong_guess",
				PlayerID:   playerID,
				PlayerName: memberName(members, playerID),
				Guess:      guess,
			}}, nil
		}

		s.scores[playerID] += drawingGuessScore

		return []any{CorrectGuessMessage{
			Type:       "correct_guess",
			PlayerID:   playerID,
			PlayerName: memberName(members, playerID),
			Word:       strings.ToLower(s.word),
			Scores:     copyScores(s.scores),
		}}, nil
	}

	return nil, fmt.Errorf("%w: drawing has no action %q", ErrMalformed, action.Name)
}

func (s *drawingState) MembersChanged([]Member) []any { return nil }

func (s *drawingState) Rekey(oldID, newID string) {
	if score, ok := s.scores[oldID]; ok {
		delete(s.scores, oldID)
		s.scores[newID] += score
	}
}

func (s *drawingState) Scores() map[string]int {
	return copyScores(s.scores)
}

type DrawingView struct {
	GameID string         `json:"game_id"`
	Status string         `json:"status"`
	Scores map[string]int `json:"scores"`
}

func (s *drawingState) View() any {
	return DrawingView{
		GameID: drawingGameID,
		Status: StatusDrawing,
		Scores: copyScores(s.scores),
	}
}
