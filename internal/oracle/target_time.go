package oracle

import (
	"fmt"
	"time"
)

// Seed constant appended to the game date before hashing. Changing it
// moves every future target time, so it is not configurable.
const targetSeed = "satoshi"

// Default daylight window: hours in [3, 20] UTC.
const (
	DefaultHourMin  = 3
	DefaultHourSpan = 18
)

// hashCode is the 32-bit string hash the web client ships
// (acc = ((acc << 5) - acc) + codeUnit, truncated to int32 each step).
// It is not cryptographic; server and every client only need to agree
// on the same value for the same date.
func hashCode(s string) int32 {
	var h int32
	for i := 0; i < len(s); i++ {
		h = (h << 5) - h + int32(s[i])
	}
	return h
}

// TargetTime returns the deterministic (hour, minute) UTC for a game
// date "YYYY-MM-DD" using the default daylight window.
func TargetTime(date string) (hour, minute int) {
	return TargetTimeWindow(date, DefaultHourMin, DefaultHourSpan)
}

// TargetTimeWindow is TargetTime with a configurable daylight window.
// The minute product is computed in 64 bits: the reference client does
// that multiply in floats, outside the 32-bit accumulator.
func TargetTimeWindow(date string, hourMin, hourSpan int) (hour, minute int) {
	if hourSpan <= 0 {
		hourSpan = DefaultHourSpan
	}
	seed := int64(hashCode(date + targetSeed))
	hour = int(abs64(seed)%int64(hourSpan)) + hourMin
	minute = int(abs64(seed*31) % 60)
	return hour, minute
}

// InstantFor is the target instant for a date given its stored hour and
// minute: that date at hh:mm:00 UTC.
func InstantFor(date string, hour, minute int) (time.Time, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad game date %q: %w", date, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.UTC), nil
}

// TargetInstant derives the target instant for a date from scratch.
func TargetInstant(date string) (time.Time, error) {
	h, m := TargetTime(date)
	return InstantFor(date, h, m)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
