package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"satoshidaily/internal/game"
	"satoshidaily/internal/models"
	"satoshidaily/internal/oracle"
)

func newSettlementService(repo *stubRepo, priceFeed *fakeOracle, notifier *fakeNotifier) *SettlementService {
	return &SettlementService{
		Repo:     repo,
		Oracle:   priceFeed,
		Notifier: notifier,
		Config:   testGameConfig(),
		Now:      testClock(15, 0),
	}
}

func seedDay(t *testing.T, repo *stubRepo, date string) {
	t.Helper()
	hour, minute := oracle.TargetTime(date)
	require.NoError(t, repo.SeedDailyResult(context.Background(), &models.DailyResult{
		GameDate:     date,
		TargetHour:   hour,
		TargetMinute: minute,
	}))
}

func addPrediction(t *testing.T, repo *stubRepo, profileID, date string, price int64, guess int) {
	t.Helper()
	require.NoError(t, repo.InsertPrediction(context.Background(), &models.Prediction{
		ProfileID:      profileID,
		GameDate:       date,
		PredictedPrice: price,
		GuessNumber:    guess,
	}))
}

func TestSettleDayWinnersAndShares(t *testing.T) {
	repo := newStubRepo()
	repo.addProfile("a", "alice@example.com")
	repo.addProfile("b", "bob@example.com")
	repo.addProfile("c", "carol@example.com")
	seedDay(t, repo, testDay)
	addPrediction(t, repo, "a", testDay, 100000, 1) // exact
	addPrediction(t, repo, "b", testDay, 99600, 1)  // $400 off, inside threshold
	addPrediction(t, repo, "c", testDay, 100501, 1) // $501 off, outside

	priceFeed := &fakeOracle{price: 100000, sources: 3}
	notifier := &fakeNotifier{}
	svc := newSettlementService(repo, priceFeed, notifier)

	require.NoError(t, svc.RunOnce(context.Background()))

	winners, err := repo.ListWinnersByDay(context.Background(), testDay)
	require.NoError(t, err)
	require.Len(t, winners, 2)

	require.Equal(t, "a", winners[0].ProfileID)
	require.Equal(t, int64(0), winners[0].Difference)
	require.Equal(t, game.TierExact, winners[0].PrizeTier)
	require.Equal(t, float64(1), winners[0].Accuracy)

	require.Equal(t, "b", winners[1].ProfileID)
	require.Equal(t, int64(400), winners[1].Difference)
	require.Equal(t, game.TierWithin500, winners[1].PrizeTier)

	// $5.00 split two ways.
	for _, w := range winners {
		require.True(t, w.PrizeShare.Equal(decimal.RequireFromString("2.50")),
			"share = %s", w.PrizeShare)
	}

	require.Len(t, notifier.summaries, 1)
	summary := notifier.summaries[0]
	require.Equal(t, int64(100000), summary.OfficialPrice)
	require.Equal(t, 3, summary.TotalPredictions)
	require.Equal(t, 2, summary.WinnerCount)
	require.NotNil(t, summary.ClosestDiff)
	require.Equal(t, int64(0), *summary.ClosestDiff)

	row, err := repo.GetDailyResult(context.Background(), testDay)
	require.NoError(t, err)
	require.True(t, row.Resolved())
	require.NotNil(t, row.NotifiedAt)
}

func TestSettleDayIdempotentRetick(t *testing.T) {
	repo := newStubRepo()
	repo.addProfile("a", "alice@example.com")
	seedDay(t, repo, testDay)
	addPrediction(t, repo, "a", testDay, 100100, 1)

	priceFeed := &fakeOracle{price: 100000, sources: 3}
	notifier := &fakeNotifier{}
	svc := newSettlementService(repo, priceFeed, notifier)
	ctx := context.Background()

	require.NoError(t, svc.RunOnce(ctx))
	require.NoError(t, svc.RunOnce(ctx))
	require.NoError(t, svc.RunOnce(ctx))

	// One oracle call, one notification, one winner row, streak bumped
	// exactly once.
	require.Equal(t, 1, priceFeed.calls)
	require.Len(t, notifier.summaries, 1)

	winners, err := repo.ListWinnersByDay(ctx, testDay)
	require.NoError(t, err)
	require.Len(t, winners, 1)

	profile, err := repo.GetProfile(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 1, profile.CurrentStreak)
	require.Equal(t, testDay, *profile.LastPlayedDate)
}

func TestSettleHalfSettledDayConverges(t *testing.T) {
	// Price recorded but the process died before winners were derived:
	// the next tick must pick the day up again without calling the
	// oracle, and the stored price must not change.
	repo := newStubRepo()
	repo.addProfile("a", "alice@example.com")
	seedDay(t, repo, testDay)
	addPrediction(t, repo, "a", testDay, 100100, 1)

	recorded := decimal.NewFromInt(100000)
	at := time.Date(2025, 2, 14, 14, 6, 0, 0, time.UTC)
	won, err := repo.RecordOfficialPrice(context.Background(), testDay, recorded, at)
	require.NoError(t, err)
	require.True(t, won)

	priceFeed := &fakeOracle{price: 123456, sources: 3}
	notifier := &fakeNotifier{}
	svc := newSettlementService(repo, priceFeed, notifier)

	require.NoError(t, svc.RunOnce(context.Background()))

	require.Zero(t, priceFeed.calls)
	winners, err := repo.ListWinnersByDay(context.Background(), testDay)
	require.NoError(t, err)
	require.Len(t, winners, 1)
	require.True(t, winners[0].ActualPrice.Equal(recorded))

	row, err := repo.GetDailyResult(context.Background(), testDay)
	require.NoError(t, err)
	require.True(t, row.ActualPrice.Equal(recorded))
	require.NotNil(t, row.NotifiedAt)
}

func TestSettleDayZeroPredictions(t *testing.T) {
	repo := newStubRepo()
	seedDay(t, repo, testDay)

	priceFeed := &fakeOracle{price: 100000, sources: 2}
	notifier := &fakeNotifier{}
	svc := newSettlementService(repo, priceFeed, notifier)

	require.NoError(t, svc.RunOnce(context.Background()))

	require.Len(t, notifier.summaries, 1)
	require.Zero(t, notifier.summaries[0].TotalPredictions)
	require.Zero(t, notifier.summaries[0].WinnerCount)

	row, err := repo.GetDailyResult(context.Background(), testDay)
	require.NoError(t, err)
	require.True(t, row.Resolved())
	require.NotNil(t, row.NotifiedAt)
}

func TestSettleSkipsDayBeforeTarget(t *testing.T) {
	repo := newStubRepo()
	seedDay(t, repo, testDay) // target 14:05

	priceFeed := &fakeOracle{price: 100000, sources: 3}
	svc := newSettlementService(repo, priceFeed, &fakeNotifier{})
	svc.Now = testClock(12, 0)

	require.NoError(t, svc.RunOnce(context.Background()))

	require.Zero(t, priceFeed.calls)
	row, err := repo.GetDailyResult(context.Background(), testDay)
	require.NoError(t, err)
	require.False(t, row.Resolved())
}

func TestSettleLeavesDayPendingOnOracleFailure(t *testing.T) {
	repo := newStubRepo()
	seedDay(t, repo, testDay)

	priceFeed := &fakeOracle{err: oracle.ErrUnavailable}
	svc := newSettlementService(repo, priceFeed, &fakeNotifier{})

	require.NoError(t, svc.RunOnce(context.Background()))

	row, err := repo.GetDailyResult(context.Background(), testDay)
	require.NoError(t, err)
	require.False(t, row.Resolved())

	// Oracle recovers; the next tick settles.
	priceFeed.err = nil
	priceFeed.price = 100000
	priceFeed.sources = 3
	require.NoError(t, svc.RunOnce(context.Background()))

	row, err = repo.GetDailyResult(context.Background(), testDay)
	require.NoError(t, err)
	require.True(t, row.Resolved())
}

func TestSettleUsesBestGuessPerPlayer(t *testing.T) {
	repo := newStubRepo()
	repo.addProfile("a", "alice@example.com")
	seedDay(t, repo, testDay)
	addPrediction(t, repo, "a", testDay, 99000, 1)  // $1000 off
	addPrediction(t, repo, "a", testDay, 100300, 2) // $300 off, the best

	priceFeed := &fakeOracle{price: 100000, sources: 3}
	svc := newSettlementService(repo, priceFeed, &fakeNotifier{})

	require.NoError(t, svc.RunOnce(context.Background()))

	winners, err := repo.ListWinnersByDay(context.Background(), testDay)
	require.NoError(t, err)
	require.Len(t, winners, 1)
	require.Equal(t, int64(100300), winners[0].PredictedPrice)
	require.Equal(t, int64(300), winners[0].Difference)
}

func TestSettleStreaks(t *testing.T) {
	repo := newStubRepo()
	repo.addProfile("consecutive", "a@example.com")
	repo.addProfile("lapsed", "b@example.com")

	prev := game.PrevDate(testDay)
	twoBack := game.PrevDate(prev)
	consecutive := repo.profiles["consecutive"]
	consecutive.CurrentStreak = 4
	consecutive.LastPlayedDate = &prev
	lapsed := repo.profiles["lapsed"]
	lapsed.CurrentStreak = 9
	lapsed.LastPlayedDate = &twoBack

	seedDay(t, repo, testDay)
	addPrediction(t, repo, "consecutive", testDay, 100000, 1)
	addPrediction(t, repo, "lapsed", testDay, 100000, 1)

	svc := newSettlementService(repo, &fakeOracle{price: 100000, sources: 3}, &fakeNotifier{})
	require.NoError(t, svc.RunOnce(context.Background()))

	got, err := repo.GetProfile(context.Background(), "consecutive")
	require.NoError(t, err)
	require.Equal(t, 5, got.CurrentStreak)

	got, err = repo.GetProfile(context.Background(), "lapsed")
	require.NoError(t, err)
	require.Equal(t, 1, got.CurrentStreak)
}

func TestSettleNotifierFailureDoesNotBlock(t *testing.T) {
	repo := newStubRepo()
	repo.addProfile("a", "alice@example.com")
	seedDay(t, repo, testDay)
	addPrediction(t, repo, "a", testDay, 100000, 1)

	notifier := &fakeNotifier{err: context.DeadlineExceeded}
	svc := newSettlementService(repo, &fakeOracle{price: 100000, sources: 3}, notifier)

	require.NoError(t, svc.RunOnce(context.Background()))

	row, err := repo.GetDailyResult(context.Background(), testDay)
	require.NoError(t, err)
	require.NotNil(t, row.NotifiedAt)

	winners, err := repo.ListWinnersByDay(context.Background(), testDay)
	require.NoError(t, err)
	require.Len(t, winners, 1)
}

func TestSettleCatchesUpOlderDays(t *testing.T) {
	repo := newStubRepo()
	repo.addProfile("a", "alice@example.com")
	prev := game.PrevDate(testDay)
	seedDay(t, repo, prev)
	seedDay(t, repo, testDay)
	addPrediction(t, repo, "a", prev, 99000, 1)

	svc := newSettlementService(repo, &fakeOracle{price: 99200, sources: 3}, &fakeNotifier{})
	require.NoError(t, svc.RunOnce(context.Background()))

	// Yesterday settles even though its tick was missed; today settles
	// too because its 14:05 target has passed by the 15:00 clock.
	for _, date := range []string{prev, testDay} {
		row, err := repo.GetDailyResult(context.Background(), date)
		require.NoError(t, err)
		require.True(t, row.Resolved(), "day %s", date)
	}
}
