// Package game holds the pure domain rules shared by the submission,
// settlement and read-view services.
package game

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Prize tiers by absolute difference. The tier is cosmetic; it never
// changes the prize share.
const (
	TierExact     = "exact"
	TierWithin100 = "within_100"
	TierWithin500 = "within_500"
)

// Date formats a wall-clock instant as its UTC game date.
func Date(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// ParseDate validates a YYYY-MM-DD game date.
func ParseDate(date string) (time.Time, error) {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad game date %q: %w", date, err)
	}
	return t, nil
}

// PrevDate returns the calendar day before a game date, or "" when the
// input does not parse.
func PrevDate(date string) string {
	t, err := ParseDate(date)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format(dateLayout)
}

// NextDate returns the calendar day after a game date, or "" when the
// input does not parse.
func NextDate(date string) string {
	t, err := ParseDate(date)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, 1).Format(dateLayout)
}

// Diff is the absolute dollar distance between a prediction and the
// official price.
func Diff(predicted, actual int64) int64 {
	d := predicted - actual
	if d < 0 {
		return -d
	}
	return d
}

// Accuracy is the raw score max(0, 1 - |predicted-actual| / actual).
// This is what settlement stores on Winner rows.
func Accuracy(predicted, actual int64) float64 {
	if actual <= 0 {
		return 0
	}
	raw := 1 - float64(Diff(predicted, actual))/float64(actual)
	if raw < 0 {
		return 0
	}
	return raw
}

// DisplayAccuracy caps the raw score at 0.999 unless the prediction is
// exact to the dollar, so a literal 1.000 always means an exact match.
func DisplayAccuracy(predicted, actual int64) float64 {
	if Diff(predicted, actual) == 0 {
		return 1
	}
	acc := Accuracy(predicted, actual)
	if acc > 0.999 {
		return 0.999
	}
	return acc
}

// PrizeTier buckets a winning difference.
func PrizeTier(diff int64) string {
	switch {
	case diff <= 1:
		return TierExact
	case diff <= 100:
		return TierWithin100
	default:
		return TierWithin500
	}
}

// MaskEmail keeps the first two local-part characters (one, when the
// local part has only one) and the full domain: al***@example.com.
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return email
	}
	local, domain := email[:at], email[at+1:]
	if len(local) <= 2 {
		return local[:1] + "***@" + domain
	}
	return local[:2] + "***@" + domain
}

// RelTime renders a coarse relative timestamp for the prediction feed.
func RelTime(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
