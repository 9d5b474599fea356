// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package ldapconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"2m", 2 * time.Minute},
		{"1h", time.Hour},
		{"1d", 24 * time.Hour},
		{"30s", 30 * time.Second},
		{"250ms", 250 * time.Millisecond},
		{"10us", 10 * time.Microsecond},
		{"7ns", 7 * time.Nanosecond},
		{"1.5h", 90 * time.Minute},
		{"0.5s", 500 * time.Millisecond},
		{" 3 m ", 3 * time.Minute},
		{"0s", 0},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDuration_Invalid(t *testing.T) {
	for _, input := range []string{"", "m", "2", "-2m", "2x", "2 minutes", "1h30m", ".5s", "1e3s", "200000000d"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseDuration(input)
			assert.ErrorIs(t, err, ErrInvalidDuration)
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{2 * time.Minute, "2m"},
		{time.Hour, "1h"},
		{36 * time.Hour, "36h"},
		{48 * time.Hour, "2d"},
		{90 * time.Second, "90s"},
		{1500 * time.Millisecond, "1500ms"},
		{3 * time.Nanosecond, "3ns"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := FormatDuration(tt.in)
			assert.Equal(t, tt.want, got)

			back, err := ParseDuration(got)
			require.NoError(t, err)
			assert.Equal(t, tt.in, back)
		})
	}
}
