/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const logDate string = `2006-01-02T15:04:05.000-07:00`

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
	ErrMalformed    = errors.New("malformed input")
)

var (
	ErrRoomNotFound   = fmt.Errorf("%w: room does not exist", ErrNotFound)
	ErrPlayerNotFound = fmt.Errorf("%w: player is not in this room", ErrNotFound)
	ErrNotHost        = fmt.Errorf("%w: only the host can do that", ErrForbidden)
	ErrRoomClosed     = fmt.Errorf("%w: room is no longer active", ErrInvalidState)
	ErrGameRunning    = fmt.Errorf("%w: a game is already in progress", ErrInvalidState)
	ErrNoGame         = fmt.Errorf("%w: no game is in progress", ErrInvalidState)
	ErrNameTaken      = fmt.Errorf("%w: that name is already taken", ErrConflict)
	ErrIncomplete     = fmt.Errorf("%w: missing required fields", ErrMalformed)
)

// errorKind maps an error onto the wire name sent to clients.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrMalformed):
		return "malformed_input"
	default:
		return "internal"
	}
}

func errorStatus(err error) int {
	switch errorKind(err) {
	case "not_found":
		return http.StatusNotFound
	case "forbidden":
		return http.StatusForbidden
	case "invalid_state":
		return http.StatusConflict
	case "conflict":
		return http.StatusConflict
	case "malformed_input":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func newLogger(cfg *Config, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}

	level := zerolog.WarnLevel
	if cfg.verbose {
		level = zerolog.DebugLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: logDate}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func newPage(prefix, title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(getFavicon(prefix))
	htmlBody.WriteString(fmt.Sprintf(`<link rel="stylesheet" href="%s/assets/app.css">`, prefix))
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><main class=\"notice\"><a href=\"%s/\">%s</a></main></body></html>", prefix, body))

	return htmlBody.String()
}
