/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func identityPerm(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}

	return p
}

var testBank = []Question{
	{Text: "2 + 2?", Options: []string{"3", "4", "5"}, CorrectIndex: 1},
	{Text: "Capital of France?", Options: []string{"Paris", "Lyon"}, CorrectIndex: 0},
	{Text: "Blue and yellow make?", Options: []string{"Red", "Green", "Purple"}, CorrectIndex: 1},
}

func testCatalog() *Catalog {
	return NewCatalog(
		newTriviaEngine(testBank, identityPerm),
		wordGameEngine{},
		newDrawingEngine([]string{"Castle"}, func(int) int { return 0 }),
	)
}

// drain returns everything queued for c without blocking.
func drain(c *Client) []any {
	var out []any
	for {
		select {
		case msg := <-c.send:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func typeOf(t *testing.T, msg any) string {
	t.Helper()

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var head struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(data, &head))

	return head.Type
}

func typesOf(t *testing.T, msgs []any) []string {
	t.Helper()

	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, typeOf(t, m))
	}

	return out
}

func findMessage[T any](msgs []any) (T, bool) {
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			return v, true
		}
	}

	var zero T

	return zero, false
}
