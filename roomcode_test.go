/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoomCode(t *testing.T) {
	t.Run("random codes are valid", func(t *testing.T) {
		for range 200 {
			code, err := newRoomCode(rand.Reader)
			require.NoError(t, err)
			assert.True(t, ValidRoomCode(code), code)
		}
	})

	t.Run("maps bytes onto the alphabet", func(t *testing.T) {
		src := bytes.NewReader([]byte{0, 1, 25, 26, 35, 36, 0, 0, 0, 0, 0, 0})

		code, err := newRoomCode(src)
		require.NoError(t, err)

		assert.Equal(t, "ABZ09A", code)
	})

	t.Run("skips biased bytes", func(t *testing.T) {
		src := bytes.NewReader([]byte{252, 0, 255, 1, 2, 3, 4, 5, 0, 0, 0, 0})

		code, err := newRoomCode(src)
		require.NoError(t, err)

		assert.Equal(t, "ABCDEF", code)
	})

	t.Run("short source", func(t *testing.T) {
		_, err := newRoomCode(bytes.NewReader([]byte{1, 2, 3}))

		assert.Error(t, err)
	})
}

func TestValidRoomCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"ABC123", true},
		{"ZZZZZZ", true},
		{"abc123", false},
		{"ABC12", false},
		{"ABC1234", false},
		{"ABC-12", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidRoomCode(tt.code), tt.code)
	}

	assert.Equal(t, "ABC123", NormalizeRoomCode("  abc123 "))
	assert.True(t, ValidRoomCode(NormalizeRoomCode("xy12zq")))
}
