package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidClock is returned for anything that is not a valid "HH:MM" wall-clock time.
	ErrInvalidClock = errors.New("invalid clock, expected HH:MM")
	// ErrInvalidOffset is returned for hour offsets outside [-23, 23].
	ErrInvalidOffset = errors.New("invalid hour offset")
)

// MaxOffset bounds the hour offset from the reference timezone in either direction.
const MaxOffset = 23

// ParseClock parses a "HH:MM" string. Single-digit parts ("9:05") are accepted.
func ParseClock(s string) (hour, minute int, err error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	hour, ok = clockPart(hh)
	if !ok || hour > 23 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	minute, ok = clockPart(mm)
	if !ok || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return hour, minute, nil
}

func clockPart(s string) (int, bool) {
	if len(s) == 0 || len(s) > 2 {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// FormatClock renders hour and minute as "HH:MM".
func FormatClock(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// ToReference converts a local hour into the reference timezone hour for a user
// whose clock is offsetHours ahead of the reference zone. The result is always in [0, 24).
func ToReference(localHour, offsetHours int) int {
	return ((localHour-offsetHours)%24 + 24) % 24
}

// ToLocal is the inverse of ToReference.
func ToLocal(referenceHour, offsetHours int) int {
	return ((referenceHour+offsetHours)%24 + 24) % 24
}

// Translate parses a local "HH:MM" and returns the reference timezone hour and minute.
func Translate(local string, offsetHours int) (hour, minute int, err error) {
	if offsetHours < -MaxOffset || offsetHours > MaxOffset {
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidOffset, offsetHours)
	}
	hour, minute, err = ParseClock(local)
	if err != nil {
		return 0, 0, err
	}
	return ToReference(hour, offsetHours), minute, nil
}
