/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"fmt"
	"os"
)

type Question struct {
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct"`
}

func (q Question) validate() error {
	if q.Text == "" {
		return fmt.Errorf("%w: question has no text", ErrMalformed)
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("%w: question %q needs at least two options", ErrMalformed, q.Text)
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return fmt.Errorf("%w: question %q has correct index %d out of range", ErrMalformed, q.Text, q.CorrectIndex)
	}
	return nil
}

var defaultQuestions = []Question{
	{Text: "What is the capital of Brazil?", Options: []string{"Rio de Janeiro", "São Paulo", "Brasília", "Salvador"}, CorrectIndex: 2},
	{Text: "What is the largest planet in the solar system?", Options: []string{"Earth", "Mars", "Jupiter", "Saturn"}, CorrectIndex: 2},
	{Text: "How many sides does a hexagon have?", Options: []string{"Five", "Six", "Seven", "Eight"}, CorrectIndex: 1},
	{Text: "Which element has the chemical symbol O?", Options: []string{"Gold", "Osmium", "Oxygen", "Oganesson"}, CorrectIndex: 2},
	{Text: "Who painted the Mona Lisa?", Options: []string{"Leonardo da Vinci", "Michelangelo", "Raphael", "Caravaggio"}, CorrectIndex: 0},
	{Text: "What is the longest river in South America?", Options: []string{"Paraná", "Orinoco", "São Francisco", "Amazon"}, CorrectIndex: 3},
	{Text: "In which year did humans first land on the Moon?", Options: []string{"1965", "1969", "1972", "1975"}, CorrectIndex: 1},
	{Text: "Which ocean is the largest?", Options: []string{"Atlantic", "Indian", "Pacific", "Arctic"}, CorrectIndex: 2},
	{Text: "How many players are on the field for one football (soccer) team?", Options: []string{"Nine", "Ten", "Eleven", "Twelve"}, CorrectIndex: 2},
	{Text: "What is the freezing point of water in degrees Celsius?", Options: []string{"0", "32", "-10", "100"}, CorrectIndex: 0},
}

var defaultWords = []string{
	"guitar", "lighthouse", "volcano", "penguin", "umbrella",
	"bicycle", "castle", "octopus", "rainbow", "telescope",
}

type questionFile struct {
	Questions []Question `json:"questions"`
}

// loadQuestions reads a question bank from path, falling back to the
// built-in questions when path is empty.
func loadQuestions(path string) ([]Question, error) {
	if path == "" {
		return defaultQuestions, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f questionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if len(f.Questions) == 0 {
		return nil, fmt.Errorf("%w: %s contains no questions", ErrMalformed, path)
	}

	for _, q := range f.Questions {
		if err := q.validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	return f.Questions, nil
}
