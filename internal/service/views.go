package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"satoshidaily/internal/game"
	"satoshidaily/internal/models"
	"satoshidaily/internal/oracle"
	"satoshidaily/internal/repository"
)

// ReadViewService serves the public projections. No writes; every view
// stays consistent while settlement is in progress because it only
// reads committed rows.
type ReadViewService struct {
	Repo   repository.Repository
	Logger *zap.Logger
	Now    func() time.Time
}

func (s *ReadViewService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

type LeaderboardEntry struct {
	Rank           int     `json:"rank"`
	MaskedEmail    string  `json:"email"`
	PredictedPrice int64   `json:"predicted_price"`
	Accuracy       float64 `json:"accuracy"`
}

type LeaderboardView struct {
	GameDate    string             `json:"game_date"`
	ActualPrice *int64             `json:"actual_price,omitempty"`
	Preliminary bool               `json:"preliminary"`
	Entries     []LeaderboardEntry `json:"entries"`
}

// Leaderboard ranks today's players by their best prediction. Until
// the official price lands the caller supplies the live spot price and
// the view is labelled preliminary.
func (s *ReadViewService) Leaderboard(ctx context.Context, date string, livePrice int64) (*LeaderboardView, error) {
	if _, err := game.ParseDate(date); err != nil {
		return nil, err
	}
	row, err := s.Repo.GetDailyResult(ctx, date)
	if err != nil {
		return nil, err
	}

	view := &LeaderboardView{GameDate: date, Preliminary: true}
	actual := livePrice
	if row.Resolved() {
		p := row.ActualPrice.IntPart()
		actual = p
		view.ActualPrice = &p
		view.Preliminary = false
	}
	if actual <= 0 {
		// Pending day and no live price supplied: nothing to rank.
		return view, nil
	}

	preds, err := s.Repo.ListPredictionsByDay(ctx, date)
	if err != nil {
		return nil, err
	}
	best := bestPerPlayer(preds, actual)
	if len(best) == 0 {
		return view, nil
	}

	ids := make([]string, 0, len(best))
	for id := range best {
		ids = append(ids, id)
	}
	profiles, err := s.Repo.ListProfilesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	emails := make(map[string]string, len(profiles))
	for _, p := range profiles {
		emails[p.ID] = p.Email
	}

	ranked := make([]models.Prediction, 0, len(best))
	for _, p := range best {
		ranked = append(ranked, p)
	}
	sort.Slice(ranked, func(i, j int) bool {
		di := game.Diff(ranked[i].PredictedPrice, actual)
		dj := game.Diff(ranked[j].PredictedPrice, actual)
		if di != dj {
			return di < dj
		}
		return ranked[i].CreatedAt.Before(ranked[j].CreatedAt)
	})
	if len(ranked) > 10 {
		ranked = ranked[:10]
	}

	for i, p := range ranked {
		view.Entries = append(view.Entries, LeaderboardEntry{
			Rank:           i + 1,
			MaskedEmail:    game.MaskEmail(emails[p.ProfileID]),
			PredictedPrice: p.PredictedPrice,
			Accuracy:       game.DisplayAccuracy(p.PredictedPrice, actual),
		})
	}
	return view, nil
}

type RecapView struct {
	GameDate       string           `json:"game_date"`
	ActualPrice    int64            `json:"actual_price"`
	PredictedPrice int64            `json:"predicted_price"`
	Difference     int64            `json:"difference"`
	Accuracy       float64          `json:"accuracy"`
	Rank           int              `json:"rank"`
	TotalPlayers   int              `json:"total_players"`
	Won            bool             `json:"won"`
	PrizeTier      string           `json:"prize_tier,omitempty"`
	PrizeShare     *decimal.Decimal `json:"prize_share,omitempty"`
}

// YesterdayRecap summarises the previous resolved day for one player:
// their best guess, rank among everyone who played, and any winnings.
// Returns nil when yesterday is unresolved or the player did not play.
func (s *ReadViewService) YesterdayRecap(ctx context.Context, profileID string) (*RecapView, error) {
	date := game.PrevDate(game.Date(s.now()))
	row, err := s.Repo.GetDailyResult(ctx, date)
	if err != nil {
		return nil, err
	}
	if !row.Resolved() {
		return nil, nil
	}
	actual := row.ActualPrice.IntPart()

	preds, err := s.Repo.ListPredictionsByDay(ctx, date)
	if err != nil {
		return nil, err
	}
	best := bestPerPlayer(preds, actual)
	mine, ok := best[profileID]
	if !ok {
		return nil, nil
	}

	rank := 1
	myDiff := game.Diff(mine.PredictedPrice, actual)
	for id, p := range best {
		if id == profileID {
			continue
		}
		if game.Diff(p.PredictedPrice, actual) < myDiff {
			rank++
		}
	}

	view := &RecapView{
		GameDate:       date,
		ActualPrice:    actual,
		PredictedPrice: mine.PredictedPrice,
		Difference:     myDiff,
		Accuracy:       game.DisplayAccuracy(mine.PredictedPrice, actual),
		Rank:           rank,
		TotalPlayers:   len(best),
	}

	winner, err := s.Repo.GetWinner(ctx, date, profileID)
	if err != nil {
		return nil, err
	}
	if winner != nil {
		view.Won = true
		view.PrizeTier = winner.PrizeTier
		view.PrizeShare = &winner.PrizeShare
	}
	return view, nil
}

type PastResult struct {
	GameDate      string `json:"game_date"`
	OfficialPrice int64  `json:"official_price"`
	Players       int64  `json:"players"`
	ClosestDiff   *int64 `json:"closest_diff,omitempty"`
	Winners       int64  `json:"winners"`
}

// PastResults lists the last n resolved days.
func (s *ReadViewService) PastResults(ctx context.Context, n int) ([]PastResult, error) {
	rows, err := s.Repo.ListResolvedResults(ctx, n)
	if err != nil {
		return nil, err
	}
	out := make([]PastResult, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		actual := row.ActualPrice.IntPart()
		players, err := s.Repo.CountDistinctPlayers(ctx, row.GameDate)
		if err != nil {
			return nil, err
		}
		winners, err := s.Repo.CountWinnersByDay(ctx, row.GameDate)
		if err != nil {
			return nil, err
		}
		item := PastResult{
			GameDate:      row.GameDate,
			OfficialPrice: actual,
			Players:       players,
			Winners:       winners,
		}
		if players > 0 {
			preds, err := s.Repo.ListPredictionsByDay(ctx, row.GameDate)
			if err != nil {
				return nil, err
			}
			for _, b := range bestPerPlayer(preds, actual) {
				d := game.Diff(b.PredictedPrice, actual)
				if item.ClosestDiff == nil || d < *item.ClosestDiff {
					diff := d
					item.ClosestDiff = &diff
				}
			}
		}
		out = append(out, item)
	}
	return out, nil
}

type FeedEntry struct {
	GameDate       string `json:"game_date"`
	MaskedEmail    string `json:"email"`
	PredictedPrice int64  `json:"predicted_price"`
	When           string `json:"when"`
}

// RecentPredictions is the public activity feed: the newest k guesses
// across all days, masked.
func (s *ReadViewService) RecentPredictions(ctx context.Context, k int) ([]FeedEntry, error) {
	items, err := s.Repo.ListRecentPredictions(ctx, k)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]FeedEntry, 0, len(items))
	for _, item := range items {
		out = append(out, FeedEntry{
			GameDate:       item.GameDate,
			MaskedEmail:    game.MaskEmail(item.Email),
			PredictedPrice: item.PredictedPrice,
			When:           game.RelTime(now, item.CreatedAt),
		})
	}
	return out, nil
}

// DayInfo is the public shape of a DailyResult: unresolved days only
// reveal their target time.
type DayInfo struct {
	GameDate      string     `json:"game_date"`
	TargetHour    int        `json:"target_hour"`
	TargetMinute  int        `json:"target_minute"`
	Formatted     string     `json:"formatted"`
	Locked        bool       `json:"locked"`
	OfficialPrice *int64     `json:"official_price,omitempty"`
	RecordedAt    *time.Time `json:"recorded_at,omitempty"`
}

// Day projects one game date for clients, hiding settlement fields
// until the price is recorded.
func (s *ReadViewService) Day(ctx context.Context, date string) (*DayInfo, error) {
	if _, err := game.ParseDate(date); err != nil {
		return nil, err
	}
	row, err := s.Repo.GetDailyResult(ctx, date)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	target := time.Date(0, 1, 1, row.TargetHour, row.TargetMinute, 0, 0, time.UTC)
	info := &DayInfo{
		GameDate:     row.GameDate,
		TargetHour:   row.TargetHour,
		TargetMinute: row.TargetMinute,
		Formatted:    fmt.Sprintf("%02d:%02d UTC", target.Hour(), target.Minute()),
	}
	instant, err := oracle.InstantFor(row.GameDate, row.TargetHour, row.TargetMinute)
	if err == nil {
		info.Locked = !s.now().Before(instant)
	}
	if row.Resolved() {
		p := row.ActualPrice.IntPart()
		info.OfficialPrice = &p
		info.RecordedAt = row.RecordedAt
	}
	return info, nil
}
