/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"math/rand/v2"
	"slices"
)

const (
	triviaGameID       = "trivia"
	triviaMaxRounds    = 5
	triviaCorrectScore = 10
)

type PlayerAnsweredMessage struct {
	Type       string `json:"type"` // "player_answered"
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}

type RoundResultsMessage struct {
	Type         string         `json:"type"` // "round_results"
	Round        int            `json:"round"`
	Answers      map[string]int `json:"answers"`
	CorrectIndex int            `json:"correct_index"`
	Scores       map[string]int `json:"scores"`
}

type NewQuestionMessage struct {
	Type        string   `json:"type"` // "new_question"
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Round       int      `json:"round"` // 1-based
	TotalRounds int      `json:"total_rounds"`
}

type GameOverMessage struct {
	Type        string         `json:"type"` // "game_over"
	Winners     []string       `json:"winners"`
	FinalScores map[string]int `json:"final_scores"`
}

type triviaEngine struct {
	bank []Question
	perm func(n int) []int
}

func newTriviaEngine(bank []Question, perm func(n int) []int) *triviaEngine {
	if perm == nil {
		perm = rand.Perm
	}

	return &triviaEngine{bank: bank, perm: perm}
}

func (e *triviaEngine) Info() GameInfo {
	return GameInfo{
		ID:          triviaGameID,
		Name:        "Trivia Quiz",
		Description: "Answer general knowledge questions",
		MinPlayers:  2,
		MaxPlayers:  8,
		Icon:        "quiz_icon.png",
	}
}

// Initialize samples up to five questions from the bank without replacement.
func (e *triviaEngine) Initialize(members []Member) (GameState, error) {
	if len(e.bank) == 0 {
		return nil, fmt.Errorf("%w: the question bank is empty", ErrInvalidState)
	}

	rounds := min(triviaMaxRounds, len(e.bank))
	questions := make([]Question, 0, rounds)
	for _, i := range e.perm(len(e.bank))[:rounds] {
		questions = append(questions, e.bank[i])
	}

	scores := make(map[string]int, len(members))
	for _, m := range members {
		scores[m.ID] = 0
	}

	return &triviaState{
		totalRounds: rounds,
		questions:   questions,
		answers:     make(map[string]int),
		scores:      scores,
		status:      StatusWaitingForAnswers,
	}, nil
}

type triviaState struct {
	currentRound int
	totalRounds  int
	questions    []Question
	answers      map[string]int
	scores       map[string]int
	status       string
	winners      []string
}

func (s *triviaState) GameID() string { return triviaGameID }

func (s *triviaState) Status() string { return s.status }

func (s *triviaState) currentQuestion() Question {
	return s.questions[s.currentRound]
}

func (s *triviaState) Apply(playerID string, action Action, members []Member) ([]any, error) {
	if action.Name != "answer" {
		return nil, fmt.Errorf("%w: trivia has no action %q", ErrMalformed, action.Name)
	}

	if s.status != StatusWaitingForAnswers {
		return nil, fmt.Errorf("%w: not accepting answers", ErrInvalidState)
	}

	if action.AnswerIndex == nil {
		return nil, fmt.Errorf("%w: answer_index is required", ErrMalformed)
	}

	idx := *action.AnswerIndex
	if idx < 0 || idx >= len(s.currentQuestion().Options) {
		return nil, fmt.Errorf("%w: answer_index %d is out of range", ErrMalformed, idx)
	}

	if _, answered := s.answers[playerID]; answered {
		return nil, fmt.Errorf("%w: already answered this round", ErrInvalidState)
	}

	s.answers[playerID] = idx
	if _, ok := s.scores[playerID]; !ok {
		s.scores[playerID] = 0
	}

	msgs := []any{PlayerAnsweredMessage{
		Type:       "player_answered",
		PlayerID:   playerID,
		PlayerName: memberName(members, playerID),
	}}

	return append(msgs, s.settle(members)...), nil
}

func (s *triviaState) MembersChanged(members []Member) []any {
	if s.status != StatusWaitingForAnswers || len(s.answers) == 0 {
		return nil
	}

	return s.settle(members)
}

// settle scores and advances the round once every current member has answered.
func (s *triviaState) settle(members []Member) []any {
	if len(members) == 0 {
		return nil
	}

	for _, m := range members {
		if _, ok := s.answers[m.ID]; !ok {
			return nil
		}
	}

	q := s.currentQuestion()
	for pid, answer := range s.answers {
		if answer == q.CorrectIndex {
			s.scores[pid] += triviaCorrectScore
		}
	}

	msgs := []any{RoundResultsMessage{
		Type:         "round_results",
		Round:        s.currentRound + 1,
		Answers:      copyScores(s.answers),
		CorrectIndex: q.CorrectIndex,
		Scores:       copyScores(s.scores),
	}}

	if s.currentRound+1 == s.totalRounds {
		s.status = StatusGameOver
		s.winners = topScorers(s.scores, members)

		return append(msgs, GameOverMessage{
			Type:        "game_over",
			Winners:     s.winners,
			FinalScores: copyScores(s.scores),
		})
	}

	s.currentRound++
	s.answers = make(map[string]int)
	next := s.currentQuestion()

	return append(msgs, NewQuestionMessage{
		Type:        "new_question",
		Question:    next.Text,
		Options:     slices.Clone(next.Options),
		Round:       s.currentRound + 1,
		TotalRounds: s.totalRounds,
	})
}

func (s *triviaState) Rekey(oldID, newID string) {
	if score, ok := s.scores[oldID]; ok {
		delete(s.scores, oldID)
		s.scores[newID] += score
	}

	if answer, ok := s.answers[oldID]; ok {
		delete(s.answers, oldID)
		s.answers[newID] = answer
	}

	for i, w := range s.winners {
		if w == oldID {
			s.winners[i] = newID
		}
	}
}

func (s *triviaState) Scores() map[string]int {
	return copyScores(s.scores)
}

type TriviaQuestionView struct {
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

type TriviaView struct {
	GameID          string             `json:"game_id"`
	Status          string             `json:"status"`
	CurrentRound    int                `json:"current_round"`
	TotalRounds     int                `json:"total_rounds"`
	CurrentQuestion TriviaQuestionView `json:"current_question"`
	Answered        []string           `json:"answered"`
	Scores          map[string]int     `json:"scores"`
	Winners         []string           `json:"winners,omitempty"`
}

// View never includes the correct answer of the question being played.
func (s *triviaState) View() any {
	q := s.currentQuestion()

	answered := make([]string, 0, len(s.answers))
	for pid := range s.answers {
		answered = append(answered, pid)
	}
	slices.Sort(answered)

	return TriviaView{
		GameID:       triviaGameID,
		Status:       s.status,
		CurrentRound: s.currentRound,
		TotalRounds:  s.totalRounds,
		CurrentQuestion: TriviaQuestionView{
			Text:    q.Text,
			Options: slices.Clone(q.Options),
		},
		Answered: answered,
		Scores:   copyScores(s.scores),
		Winners:  slices.Clone(s.winners),
	}
}

// topScorers returns every member sharing the highest score, sorted by id.
// Players who already left the room cannot win.
func topScorers(scores map[string]int, members []Member) []string {
	best := 0
	winners := []string{}

	for _, m := range members {
		pid, score := m.ID, scores[m.ID]
		switch {
		case len(winners) == 0 || score > best:
			best = score
			winners = []string{pid}
		case score == best:
			winners = append(winners, pid)
		}
	}

	slices.Sort(winners)

	return winners
}

func memberName(members []Member, id string) string {
	for _, m := range members {
		if m.ID == id {
			return m.Name
		}
	}

	return ""
}

func copyScores(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}

	return out
}
