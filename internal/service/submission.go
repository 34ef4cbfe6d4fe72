package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"satoshidaily/internal/config"
	"satoshidaily/internal/game"
	"satoshidaily/internal/models"
	"satoshidaily/internal/oracle"
	"satoshidaily/internal/repository"
)

// PendingGuessStore holds anonymous guesses keyed by a per-browser
// cookie until the browser authenticates and replays them.
type PendingGuessStore interface {
	PutGuess(ctx context.Context, cookieID, date string, price int64, ttl time.Duration) (bool, error)
	GetGuess(ctx context.Context, cookieID, date string) (int64, bool, error)
	DeleteGuess(ctx context.Context, cookieID, date string) error
}

// Tier quotas: one guess while anonymous, two once signed up, three
// after the social-share gate.
const (
	maxGuessesAnonymous = 1
	maxGuessesDefault   = 2
	maxGuessesWithBonus = 3
)

// SubmissionService is the sole writer of predictions and bonus
// unlocks. It also seeds future DailyResult rows with their target
// time.
type SubmissionService struct {
	Repo    repository.Repository
	Pending PendingGuessStore
	Config  config.GameConfig
	Logger  *zap.Logger
	Now     func() time.Time
}

func (s *SubmissionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// SeedDay idempotently creates the DailyResult row for a date with its
// deterministic target time. Called for today and tomorrow once per
// day so clients can render tomorrow's countdown immediately.
func (s *SubmissionService) SeedDay(ctx context.Context, date string) error {
	if _, err := game.ParseDate(date); err != nil {
		return err
	}
	hour, minute := oracle.TargetTimeWindow(date, s.Config.TargetHourMin, s.Config.TargetHourSpan)
	err := s.Repo.SeedDailyResult(ctx, &models.DailyResult{
		GameDate:     date,
		TargetHour:   hour,
		TargetMinute: minute,
	})
	if err != nil {
		return fmt.Errorf("seed %s: %w", date, err)
	}
	if s.Logger != nil {
		s.Logger.Info("seeded day",
			zap.String("game_date", date),
			zap.Int("target_hour", hour),
			zap.Int("target_minute", minute),
		)
	}
	return nil
}

// SubmitPrediction inserts the player's next guess for today. Returns
// the assigned guess number. Racing submissions from the same player
// are serialised by the (player, date, guess) unique key; the loser
// retries against the fresh count and eventually observes
// no_guesses_left.
func (s *SubmissionService) SubmitPrediction(ctx context.Context, profileID, date string, price int64) (int, error) {
	if err := s.validate(ctx, date, price); err != nil {
		return 0, err
	}

	for attempt := 0; attempt < maxGuessesWithBonus; attempt++ {
		existing, err := s.Repo.ListPlayerPredictions(ctx, profileID, date)
		if err != nil {
			return 0, err
		}
		max := maxGuessesDefault
		unlocked, err := s.Repo.HasBonusUnlock(ctx, profileID, date)
		if err != nil {
			return 0, err
		}
		if unlocked {
			max = maxGuessesWithBonus
		}
		if len(existing) >= max {
			return 0, newError(KindNoGuessesLeft, "no guesses left for today")
		}

		guess := len(existing) + 1
		err = s.Repo.InsertPrediction(ctx, &models.Prediction{
			ProfileID:      profileID,
			GameDate:       date,
			PredictedPrice: price,
			GuessNumber:    guess,
		})
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a race against our own concurrent request; recount.
			continue
		}
		if err != nil {
			return 0, err
		}
		return guess, nil
	}
	return 0, newError(KindNoGuessesLeft, "no guesses left for today")
}

// SubmitAnonymous records a single pending guess for an anonymous
// browser. The guess is not a Prediction row; it lives in the pending
// store until MergeAnonymous replays it.
func (s *SubmissionService) SubmitAnonymous(ctx context.Context, cookieID, date string, price int64) (int, error) {
	if err := s.validate(ctx, date, price); err != nil {
		return 0, err
	}
	ttl := s.Config.AnonGuessTTL
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	stored, err := s.Pending.PutGuess(ctx, cookieID, date, price, ttl)
	if err != nil {
		return 0, err
	}
	if !stored {
		return 0, newError(KindNoGuessesLeft, "sign up to guess again")
	}
	return maxGuessesAnonymous, nil
}

// PendingGuess returns the browser's unmerged guess for a date, if any.
func (s *SubmissionService) PendingGuess(ctx context.Context, cookieID, date string) (int64, bool, error) {
	return s.Pending.GetGuess(ctx, cookieID, date)
}

// MergeAnonymous replays the browser's pending guess through the
// normal submission path under the now-authenticated profile. The
// pending entry is only dropped after the replay lands, so a failed
// merge can be retried.
func (s *SubmissionService) MergeAnonymous(ctx context.Context, profileID, cookieID string) (int, error) {
	date := game.Date(s.now())
	price, ok, err := s.Pending.GetGuess(ctx, cookieID, date)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	guess, err := s.SubmitPrediction(ctx, profileID, date, price)
	if err != nil {
		return 0, err
	}
	if err := s.Pending.DeleteGuess(ctx, cookieID, date); err != nil && s.Logger != nil {
		s.Logger.Warn("failed to clear merged anonymous guess",
			zap.String("profile_id", profileID),
			zap.Error(err),
		)
	}
	return guess, nil
}

// UnlockBonus redeems the social-share gate for (player, date). The
// share action itself is confirmed by the caller; this only records
// the flag.
func (s *SubmissionService) UnlockBonus(ctx context.Context, profileID, date, platform string) error {
	if _, err := game.ParseDate(date); err != nil {
		return newError(KindWrongDate, "invalid game date")
	}
	err := s.Repo.InsertBonusUnlock(ctx, &models.BonusUnlock{
		ProfileID: profileID,
		GameDate:  date,
		Platform:  platform,
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return newError(KindAlreadyUnlocked, "bonus already unlocked today")
	}
	return err
}

func (s *SubmissionService) validate(ctx context.Context, date string, price int64) error {
	maxPrice := s.Config.MaxPriceUSD
	if maxPrice <= 0 {
		maxPrice = 999999999
	}
	if price <= 0 || price > maxPrice {
		return newError(KindInvalidPrice, "price must be a positive whole dollar amount")
	}

	now := s.now()
	if date != game.Date(now) {
		return newError(KindWrongDate, "predictions are only accepted for today")
	}

	target, err := s.targetInstant(ctx, date)
	if err != nil {
		return err
	}
	// A guess at exactly the target instant is already too late.
	if !now.Before(target) {
		return newError(KindGameClosed, "today's game is closed")
	}
	return nil
}

// targetInstant prefers the seeded row (the canonical server value)
// and falls back to deriving the time when the seed has not run yet.
func (s *SubmissionService) targetInstant(ctx context.Context, date string) (time.Time, error) {
	row, err := s.Repo.GetDailyResult(ctx, date)
	if err != nil {
		return time.Time{}, err
	}
	if row != nil {
		return oracle.InstantFor(date, row.TargetHour, row.TargetMinute)
	}
	hour, minute := oracle.TargetTimeWindow(date, s.Config.TargetHourMin, s.Config.TargetHourSpan)
	return oracle.InstantFor(date, hour, minute)
}
