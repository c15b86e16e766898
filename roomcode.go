/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"io"
	"strings"
)

const (
	roomCodeLength   = 6
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// 36^6, and so the most rooms that can be open at once.
	roomCodeSpace = 2176782336
)

// newRoomCode draws a code from src, discarding bytes that would bias the
// alphabet distribution.
func newRoomCode(src io.Reader) (string, error) {
	const max = byte(255 - (256 % len(roomCodeAlphabet)))

	out := make([]byte, 0, roomCodeLength)
	buf := make([]byte, roomCodeLength*2)

	for len(out) < roomCodeLength {
		if _, err := io.ReadFull(src, buf); err != nil {
			return "", fmt.Errorf("reading random bytes: %w", err)
		}

		for _, b := range buf {
			if b > max {
				continue
			}

			out = append(out, roomCodeAlphabet[int(b)%len(roomCodeAlphabet)])
			if len(out) == roomCodeLength {
				break
			}
		}
	}

	return string(out), nil
}

// ValidRoomCode reports whether code is exactly six characters from A-Z and 0-9.
func ValidRoomCode(code string) bool {
	if len(code) != roomCodeLength {
		return false
	}

	for i := 0; i < len(code); i++ {
		if strings.IndexByte(roomCodeAlphabet, code[i]) < 0 {
			return false
		}
	}

	return true
}

func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
