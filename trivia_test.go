/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alicebob = []Member{{ID: "a", Name: "Alice"}, {ID: "b", Name: "Bob"}}

func startTrivia(t *testing.T, bank []Question, members []Member) *triviaState {
	t.Helper()

	state, err := newTriviaEngine(bank, identityPerm).Initialize(members)
	require.NoError(t, err)

	return state.(*triviaState)
}

func answer(i int) Action {
	return Action{Name: "answer", AnswerIndex: &i}
}

func TestTriviaInitialize(t *testing.T) {
	t.Run("small bank plays every question", func(t *testing.T) {
		s := startTrivia(t, testBank, alicebob)

		assert.Equal(t, 3, s.totalRounds)
		assert.Equal(t, StatusWaitingForAnswers, s.Status())
		assert.Equal(t, map[string]int{"a": 0, "b": 0}, s.Scores())
	})

	t.Run("large bank is capped at five", func(t *testing.T) {
		s := startTrivia(t, defaultQuestions, alicebob)

		assert.Equal(t, 5, s.totalRounds)
		assert.Len(t, s.questions, 5)
	})

	t.Run("empty bank", func(t *testing.T) {
		_, err := newTriviaEngine(nil, identityPerm).Initialize(alicebob)

		assert.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestTriviaRounds(t *testing.T) {
	t.Run("round advances once everyone answered", func(t *testing.T) {
		s := startTrivia(t, testBank, alicebob)

		msgs, err := s.Apply("a", answer(1), alicebob)
		require.NoError(t, err)
		assert.Equal(t, []string{"player_answered"}, typesOf(t, msgs))

		msgs, err = s.Apply("b", answer(0), alicebob)
		require.NoError(t, err)
		assert.Equal(t, []string{"player_answered", "round_results", "new_question"}, typesOf(t, msgs))

		results, _ := findMessage[RoundResultsMessage](msgs)
		assert.Equal(t, 1, results.Round)
		assert.Equal(t, 1, results.CorrectIndex)
		assert.Equal(t, map[string]int{"a": 10, "b": 0}, results.Scores)

		next, _ := findMessage[NewQuestionMessage](msgs)
		assert.Equal(t, "Capital of France?", next.Question)
		assert.Equal(t, 2, next.Round)
		assert.Equal(t, 3, next.TotalRounds)

		assert.Equal(t, 1, s.currentRound)
		assert.Empty(t, s.answers)
	})

	t.Run("second answer is rejected and does not score", func(t *testing.T) {
		s := startTrivia(t, testBank, alicebob)

		_, err := s.Apply("a", answer(1), alicebob)
		require.NoError(t, err)
		_, err = s.Apply("a", answer(1), alicebob)

		assert.ErrorIs(t, err, ErrInvalidState)
		assert.Equal(t, map[string]int{"a": 0, "b": 0}, s.Scores())
	})

	t.Run("invalid answers", func(t *testing.T) {
		s := startTrivia(t, testBank, alicebob)

		_, err := s.Apply("a", answer(3), alicebob)
		assert.ErrorIs(t, err, ErrMalformed)

		_, err = s.Apply("a", answer(-1), alicebob)
		assert.ErrorIs(t, err, ErrMalformed)

		_, err = s.Apply("a", Action{Name: "answer"}, alicebob)
		assert.ErrorIs(t, err, ErrMalformed)

		_, err = s.Apply("a", Action{Name: "draw"}, alicebob)
		assert.ErrorIs(t, err, ErrMalformed)

		assert.Empty(t, s.answers)
	})

	t.Run("ties share the win", func(t *testing.T) {
		s := startTrivia(t, testBank[:1], alicebob)

		_, err := s.Apply("b", answer(1), alicebob)
		require.NoError(t, err)
		msgs, err := s.Apply("a", answer(1), alicebob)
		require.NoError(t, err)

		assert.Equal(t, []string{"player_answered", "round_results", "game_over"}, typesOf(t, msgs))

		over, _ := findMessage[GameOverMessage](msgs)
		assert.Equal(t, []string{"a", "b"}, over.Winners)
		assert.Equal(t, map[string]int{"a": 10, "b": 10}, over.FinalScores)
		assert.Equal(t, StatusGameOver, s.Status())

		_, err = s.Apply("a", answer(1), alicebob)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("full game reaches game over exactly once", func(t *testing.T) {
		s := startTrivia(t, testBank, alicebob)

		overs := 0
		for round := range 3 {
			correct := testBank[round].CorrectIndex
			for _, m := range alicebob {
				msgs, err := s.Apply(m.ID, answer(correct), alicebob)
				require.NoError(t, err)
				if _, ok := findMessage[GameOverMessage](msgs); ok {
					overs++
				}
			}
		}

		assert.Equal(t, 1, overs)
		assert.Equal(t, map[string]int{"a": 30, "b": 30}, s.Scores())
	})
}

func TestTriviaMembership(t *testing.T) {
	t.Run("departure completes a waiting round", func(t *testing.T) {
		s := startTrivia(t, testBank, alicebob)

		_, err := s.Apply("a", answer(1), alicebob)
		require.NoError(t, err)

		msgs := s.MembersChanged(alicebob[:1])

		assert.Equal(t, []string{"round_results", "new_question"}, typesOf(t, msgs))
	})

	t.Run("nothing happens without answers", func(t *testing.T) {
		s := startTrivia(t, testBank, alicebob)

		assert.Empty(t, s.MembersChanged(alicebob[:1]))
	})

	t.Run("departed player cannot win", func(t *testing.T) {
		trio := append(slices.Clone(alicebob), Member{ID: "c", Name: "Cat"})
		s := startTrivia(t, testBank[:1], trio)
		s.scores["c"] = 50

		assert.Empty(t, s.MembersChanged(alicebob))

		_, err := s.Apply("a", answer(0), alicebob)
		require.NoError(t, err)
		msgs, err := s.Apply("b", answer(2), alicebob)
		require.NoError(t, err)

		over, ok := findMessage[GameOverMessage](msgs)
		require.True(t, ok)
		assert.Equal(t, []string{"a", "b"}, over.Winners)
	})

	t.Run("rekey moves score and answer", func(t *testing.T) {
		s := startTrivia(t, testBank, alicebob)
		s.scores["b"] = 20

		_, err := s.Apply("b", answer(0), alicebob)
		require.NoError(t, err)

		s.Rekey("b", "b2")

		assert.Equal(t, map[string]int{"a": 0, "b2": 20}, s.Scores())
		assert.Equal(t, map[string]int{"b2": 0}, s.answers)
	})
}

func TestTriviaViewHidesAnswer(t *testing.T) {
	s := startTrivia(t, testBank, alicebob)

	data, err := json.Marshal(s.View())
	require.NoError(t, err)

	assert.NotContains(t, string(data), "correct")
	assert.Contains(t, string(data), "2 + 2?")
}
