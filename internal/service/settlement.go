package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"satoshidaily/internal/config"
	"satoshidaily/internal/game"
	"satoshidaily/internal/models"
	"satoshidaily/internal/oracle"
	"satoshidaily/internal/repository"
)

// PriceFetcher is the price oracle contract the worker settles with.
type PriceFetcher interface {
	FetchOfficialPrice(ctx context.Context) (price int64, sourcesUsed int, err error)
}

// Notifier delivers the end-of-day operator summary.
type Notifier interface {
	NotifyDaySettled(ctx context.Context, summary DaySummary) error
}

// DaySummary is the operator notification payload.
type DaySummary struct {
	GameDate         string
	OfficialPrice    int64
	TotalPredictions int
	WinnerCount      int
	TotalPayout      decimal.Decimal
	ClosestDiff      *int64
	Winners          []WinnerDetail
}

type WinnerDetail struct {
	MaskedEmail    string
	PredictedPrice int64
	Difference     int64
	Tier           string
	PrizeShare     decimal.Decimal
}

// SettlementService finalises game days: it records the official price
// exactly once, derives winners and streaks, and notifies the
// operator. Every step is idempotent, so concurrent ticks and crashed
// half-settled days converge without duplicating rows.
type SettlementService struct {
	Repo     repository.Repository
	Oracle   PriceFetcher
	Notifier Notifier
	Config   config.GameConfig
	Logger   *zap.Logger
	Now      func() time.Time
}

func (s *SettlementService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// RunOnce is one scheduler tick. A failed day is logged and left
// pending for the next tick; nothing escalates.
func (s *SettlementService) RunOnce(ctx context.Context) error {
	now := s.now()
	today := game.Date(now)

	days, err := s.Repo.ListSettleableDays(ctx, today)
	if err != nil {
		return fmt.Errorf("list settleable days: %w", err)
	}

	for i := range days {
		day := &days[i]
		if !day.Resolved() {
			ready, err := targetPassed(day, now)
			if err != nil {
				s.logWarn(day.GameDate, "bad daily result row", err)
				continue
			}
			if !ready {
				continue
			}
		}
		if err := s.settleDay(ctx, day, now); err != nil {
			s.logWarn(day.GameDate, "settlement failed, will retry", err)
		}
	}
	return nil
}

func targetPassed(day *models.DailyResult, now time.Time) (bool, error) {
	target, err := oracle.InstantFor(day.GameDate, day.TargetHour, day.TargetMinute)
	if err != nil {
		return false, err
	}
	return !now.Before(target), nil
}

func (s *SettlementService) settleDay(ctx context.Context, day *models.DailyResult, now time.Time) error {
	if !day.Resolved() {
		price, sources, err := s.Oracle.FetchOfficialPrice(ctx)
		if err != nil {
			return fmt.Errorf("price oracle: %w", err)
		}
		dec := decimal.NewFromInt(price)
		won, err := s.Repo.RecordOfficialPrice(ctx, day.GameDate, dec, now)
		if err != nil {
			return fmt.Errorf("record price: %w", err)
		}
		if !won {
			// Another worker finalised this day first; it owns the rest.
			return nil
		}
		day.ActualPrice = &dec
		day.RecordedAt = &now
		if s.Logger != nil {
			s.Logger.Info("official price recorded",
				zap.String("game_date", day.GameDate),
				zap.Int64("price", price),
				zap.Int("sources_used", sources),
			)
		}
	}

	return s.deriveDay(ctx, day, now)
}

// deriveDay computes winners, updates streaks and notifies. It only
// runs against an already-recorded price and can be repeated safely.
func (s *SettlementService) deriveDay(ctx context.Context, day *models.DailyResult, now time.Time) error {
	actual := day.ActualPrice.IntPart()

	preds, err := s.Repo.ListPredictionsByDay(ctx, day.GameDate)
	if err != nil {
		return fmt.Errorf("list predictions: %w", err)
	}

	summary := DaySummary{
		GameDate:         day.GameDate,
		OfficialPrice:    actual,
		TotalPredictions: len(preds),
		TotalPayout:      decimal.Zero,
	}

	if len(preds) > 0 {
		best := bestPerPlayer(preds, actual)

		var closest *int64
		for _, b := range best {
			d := game.Diff(b.PredictedPrice, actual)
			if closest == nil || d < *closest {
				diff := d
				closest = &diff
			}
		}
		summary.ClosestDiff = closest

		threshold := s.Config.WinThresholdUSD
		if threshold <= 0 {
			threshold = 500
		}
		var winning []models.Prediction
		for _, b := range best {
			if game.Diff(b.PredictedPrice, actual) <= threshold {
				winning = append(winning, b)
			}
		}
		sort.Slice(winning, func(i, j int) bool {
			return game.Diff(winning[i].PredictedPrice, actual) < game.Diff(winning[j].PredictedPrice, actual)
		})

		if len(winning) > 0 {
			pool := s.prizePool()
			share := pool.Div(decimal.NewFromInt(int64(len(winning)))).Round(2)
			summary.WinnerCount = len(winning)
			summary.TotalPayout = pool

			emails, err := s.emailsByProfile(ctx, winning)
			if err != nil {
				return err
			}

			rows := make([]models.Winner, 0, len(winning))
			for _, w := range winning {
				diff := game.Diff(w.PredictedPrice, actual)
				rows = append(rows, models.Winner{
					GameDate:       day.GameDate,
					ProfileID:      w.ProfileID,
					PredictionID:   w.ID,
					PredictedPrice: w.PredictedPrice,
					ActualPrice:    *day.ActualPrice,
					Difference:     diff,
					Accuracy:       game.Accuracy(w.PredictedPrice, actual),
					PrizeTier:      game.PrizeTier(diff),
					PrizeShare:     share,
				})
				summary.Winners = append(summary.Winners, WinnerDetail{
					MaskedEmail:    game.MaskEmail(emails[w.ProfileID]),
					PredictedPrice: w.PredictedPrice,
					Difference:     diff,
					Tier:           game.PrizeTier(diff),
					PrizeShare:     share,
				})
			}
			if err := s.Repo.InsertWinners(ctx, rows); err != nil {
				return fmt.Errorf("insert winners: %w", err)
			}
		}

		if err := s.updateStreaks(ctx, day.GameDate, preds); err != nil {
			return err
		}
	}

	s.notify(ctx, summary)

	if _, err := s.Repo.MarkDayNotified(ctx, day.GameDate, now); err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	if s.Logger != nil {
		s.Logger.Info("day settled",
			zap.String("game_date", day.GameDate),
			zap.Int64("official_price", actual),
			zap.Int("predictions", summary.TotalPredictions),
			zap.Int("winners", summary.WinnerCount),
		)
	}
	return nil
}

// bestPerPlayer keeps each player's closest prediction; strict
// less-than preserves the earliest guess number on ties because the
// input is ordered by guess number.
func bestPerPlayer(preds []models.Prediction, actual int64) map[string]models.Prediction {
	best := make(map[string]models.Prediction)
	for _, p := range preds {
		cur, ok := best[p.ProfileID]
		if !ok || game.Diff(p.PredictedPrice, actual) < game.Diff(cur.PredictedPrice, actual) {
			best[p.ProfileID] = p
		}
	}
	return best
}

// updateStreaks bumps the played-streak for everyone with a prediction
// on this day. A player whose last_played_date already equals the day
// was handled by an earlier run and is skipped, which is what makes a
// re-tick a no-op.
func (s *SettlementService) updateStreaks(ctx context.Context, date string, preds []models.Prediction) error {
	prev := game.PrevDate(date)
	seen := make(map[string]struct{})
	for _, p := range preds {
		if _, ok := seen[p.ProfileID]; ok {
			continue
		}
		seen[p.ProfileID] = struct{}{}

		profile, err := s.Repo.GetProfile(ctx, p.ProfileID)
		if err != nil {
			return fmt.Errorf("load profile %s: %w", p.ProfileID, err)
		}
		if profile == nil {
			continue
		}
		if profile.LastPlayedDate != nil && *profile.LastPlayedDate == date {
			continue
		}
		streak := 1
		if profile.LastPlayedDate != nil && *profile.LastPlayedDate == prev {
			streak = profile.CurrentStreak + 1
		}
		if err := s.Repo.UpdateProfileStreak(ctx, p.ProfileID, streak, date); err != nil {
			return fmt.Errorf("update streak %s: %w", p.ProfileID, err)
		}
	}
	return nil
}

func (s *SettlementService) emailsByProfile(ctx context.Context, preds []models.Prediction) (map[string]string, error) {
	ids := make([]string, 0, len(preds))
	for _, p := range preds {
		ids = append(ids, p.ProfileID)
	}
	profiles, err := s.Repo.ListProfilesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load winner profiles: %w", err)
	}
	emails := make(map[string]string, len(profiles))
	for _, p := range profiles {
		emails[p.ID] = p.Email
	}
	return emails, nil
}

// notify is best-effort: a down mailer must never block settlement.
func (s *SettlementService) notify(ctx context.Context, summary DaySummary) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.NotifyDaySettled(ctx, summary); err != nil {
		s.logWarn(summary.GameDate, "operator notification failed", err)
	}
}

func (s *SettlementService) prizePool() decimal.Decimal {
	pool, err := decimal.NewFromString(s.Config.PrizePoolUSD)
	if err != nil || pool.LessThanOrEqual(decimal.Zero) {
		return decimal.RequireFromString("5.00")
	}
	return pool
}

func (s *SettlementService) logWarn(date, msg string, err error) {
	if s.Logger == nil {
		return
	}
	s.Logger.Warn(msg, zap.String("game_date", date), zap.Error(err))
}
