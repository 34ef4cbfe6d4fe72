package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"satoshidaily/internal/client/resend"
)

// EmailNotifier sends the end-of-day summary to the operator through
// Resend. With no API key or operator address configured it does
// nothing, so local setups settle days without a mailer.
type EmailNotifier struct {
	Mail     *resend.Client
	Operator string
	Logger   *zap.Logger
}

func (n *EmailNotifier) NotifyDaySettled(ctx context.Context, summary DaySummary) error {
	if n == nil || !n.Mail.Configured() || strings.TrimSpace(n.Operator) == "" {
		return nil
	}
	subject := fmt.Sprintf("Satoshi Daily settled %s: $%d, %d winner(s)",
		summary.GameDate, summary.OfficialPrice, summary.WinnerCount)
	return n.Mail.Send(ctx, n.Operator, subject, renderSummary(summary))
}

func renderSummary(s DaySummary) string {
	var b strings.Builder
	b.WriteString("<h2>Satoshi Daily &mdash; " + s.GameDate + "</h2>")
	fmt.Fprintf(&b, "<p>Official price: <strong>$%d</strong></p>", s.OfficialPrice)
	fmt.Fprintf(&b, "<p>Predictions: %d</p>", s.TotalPredictions)
	if s.ClosestDiff != nil {
		fmt.Fprintf(&b, "<p>Closest guess was $%d off.</p>", *s.ClosestDiff)
	}

	if len(s.Winners) == 0 {
		b.WriteString("<p>Winners: 0</p>")
		b.WriteString("<p>Total payout: $0.00</p>")
		b.WriteString("<p>No winners today.</p>")
		return b.String()
	}

	fmt.Fprintf(&b, "<p>%d winner(s), $%s paid out in total.</p>",
		s.WinnerCount, s.TotalPayout.StringFixed(2))
	b.WriteString("<table border=\"1\" cellpadding=\"4\" cellspacing=\"0\">")
	b.WriteString("<tr><th>Player</th><th>Guess</th><th>Off by</th><th>Tier</th><th>Share</th></tr>")
	for _, w := range s.Winners {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>$%d</td><td>$%d</td><td>%s</td><td>$%s</td></tr>",
			w.MaskedEmail, w.PredictedPrice, w.Difference, w.Tier, w.PrizeShare.StringFixed(2))
	}
	b.WriteString("</table>")
	b.WriteString("<p>Remember to send the sats.</p>")
	return b.String()
}

// LogNotifier is the fallback when email is disabled; it records the
// summary in the application log.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n *LogNotifier) NotifyDaySettled(_ context.Context, summary DaySummary) error {
	if n == nil || n.Logger == nil {
		return nil
	}
	n.Logger.Info("day summary",
		zap.String("game_date", summary.GameDate),
		zap.Int64("official_price", summary.OfficialPrice),
		zap.Int("predictions", summary.TotalPredictions),
		zap.Int("winners", summary.WinnerCount),
		zap.String("total_payout", summary.TotalPayout.StringFixed(2)),
	)
	return nil
}
