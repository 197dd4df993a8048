// Package utils provides small helpers shared by the HTTP layers that are
// independent of feed semantics.
package utils

import (
	"errors"
	"strconv"
	"strings"
)

const (
	// DefaultWindow is the feed window size when stop is omitted.
	DefaultWindow = 10
	// MaxWindow caps stop-start for a single read.
	MaxWindow = 200
)

// ErrInvalidWindow is returned when start or stop is not an integer.
var ErrInvalidWindow = errors.New("start and stop must be integers")

// ParseID parses a positive int64 identifier.
func ParseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ParseWindow reads a [start, stop) feed window from query values.
//
// Empty start means 0 and empty stop means start+DefaultWindow. Windows wider
// than MaxWindow are narrowed. Negative or empty windows are returned as-is;
// readers answer them with an empty feed.
func ParseWindow(start, stop string) (int, int, error) {
	s, err := atoiOr(start, 0)
	if err != nil {
		return 0, 0, ErrInvalidWindow
	}
	e, err := atoiOr(stop, s+DefaultWindow)
	if err != nil {
		return 0, 0, ErrInvalidWindow
	}
	return ClampWindow(s, e)
}

// ClampWindow narrows [start, stop) to at most MaxWindow entries.
func ClampWindow(start, stop int) (int, int, error) {
	if stop-start > MaxWindow {
		stop = start + MaxWindow
	}
	return start, stop, nil
}

func atoiOr(s string, def int) (int, error) {
	if s = strings.TrimSpace(s); s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
