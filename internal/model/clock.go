package model

import (
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay is the length of the daily schedule reminders repeat on.
const MinutesPerDay = 24 * 60

// ParseClock parses an "H:MM" or "HH:MM" wall-clock time into minutes after
// midnight.
func ParseClock(s string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(h) == 0 || len(h) > 2 || len(m) != 2 {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid time %q: hour out of range", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid time %q: minute out of range", s)
	}
	return hour*60 + minute, nil
}

// FormatClock renders minutes after midnight as "HH:MM".
func FormatClock(minutes int) string {
	minutes = ((minutes % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ClockDistance returns the shortest distance in minutes between two
// times of day, wrapping around midnight: 23:30 and 00:15 are 45 apart.
func ClockDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	d %= MinutesPerDay
	return min(d, MinutesPerDay-d)
}
