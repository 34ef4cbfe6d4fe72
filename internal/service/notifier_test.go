package service

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRenderSummary(t *testing.T) {
	closest := int64(0)
	html := renderSummary(DaySummary{
		GameDate:         "2025-02-14",
		OfficialPrice:    100000,
		TotalPredictions: 3,
		WinnerCount:      2,
		TotalPayout:      decimal.RequireFromString("5.00"),
		ClosestDiff:      &closest,
		Winners: []WinnerDetail{
			{MaskedEmail: "al***@example.com", PredictedPrice: 100000, Difference: 0, Tier: "exact", PrizeShare: decimal.RequireFromString("2.50")},
			{MaskedEmail: "bo***@example.com", PredictedPrice: 99600, Difference: 400, Tier: "within_500", PrizeShare: decimal.RequireFromString("2.50")},
		},
	})

	for _, want := range []string{
		"2025-02-14",
		"$100000",
		"al***@example.com",
		"bo***@example.com",
		"$2.50",
		"within_500",
	} {
		require.True(t, strings.Contains(html, want), "missing %q in body", want)
	}
	// Raw emails never appear.
	require.False(t, strings.Contains(html, "alice@"))
}

func TestRenderSummaryNoWinners(t *testing.T) {
	html := renderSummary(DaySummary{
		GameDate:      "2025-02-14",
		OfficialPrice: 100000,
		TotalPayout:   decimal.Zero,
	})
	// The body carries the zero totals explicitly, not just the subject.
	for _, want := range []string{"Winners: 0", "Total payout: $0.00", "No winners"} {
		require.True(t, strings.Contains(html, want), "missing %q in body", want)
	}
}
