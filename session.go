/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
)

const sessionCookieName = "partyroom_session"

// Sessions maps opaque bearer tokens to the player they were issued for.
type Sessions struct {
	mu     sync.Mutex
	tokens map[string]Identity
}

func NewSessions() *Sessions {
	return &Sessions{tokens: make(map[string]Identity)}
}

func newSessionToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(buf), nil
}

func (s *Sessions) Issue(id Identity) (string, error) {
	token, err := newSessionToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.tokens[token] = id
	s.mu.Unlock()

	return token, nil
}

func (s *Sessions) Lookup(token string) (Identity, bool) {
	if token == "" {
		return Identity{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.tokens[token]

	return id, ok
}

// Update replaces the identity behind an existing token. Unknown tokens are
// ignored.
func (s *Sessions) Update(token string, id Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[token]; ok {
		s.tokens[token] = id
	}
}

func (s *Sessions) Revoke(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

// Prune drops every session whose identity keep rejects and returns how many
// were removed.
func (s *Sessions) Prune(keep func(Identity) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, id := range s.tokens {
		if !keep(id) {
			delete(s.tokens, token)
			removed++
		}
	}

	return removed
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.tokens)
}

func sessionToken(r *http.Request) string {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}

	return c.Value
}

func setSessionCookie(cfg *Config, w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     cfg.prefix + "/",
		HttpOnly: true,
		Secure:   cfg.scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(cfg *Config, w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     cfg.prefix + "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
