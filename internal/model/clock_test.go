package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"08:00", 480, true},
		{"8:30", 510, true},
		{" 23:59 ", 1439, true},
		{"00:00", 0, true},
		{"24:00", 0, false},
		{"12:60", 0, false},
		{"12:5", 0, false},
		{"noon", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "08:05", FormatClock(485))
	assert.Equal(t, "00:00", FormatClock(MinutesPerDay))
	assert.Equal(t, "23:00", FormatClock(-60))
}

func TestClockDistance(t *testing.T) {
	assert.Equal(t, 30, ClockDistance(480, 510))
	assert.Equal(t, 30, ClockDistance(510, 480))
	assert.Equal(t, 45, ClockDistance(1410, 15))
	assert.Equal(t, 0, ClockDistance(600, 600))
	assert.Equal(t, 720, ClockDistance(0, 720))
}
