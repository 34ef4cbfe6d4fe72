package service

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"satoshidaily/internal/models"
	"satoshidaily/internal/repository"
)

// stubRepo is a test-only in-memory implementation of
// repository.Repository. It reproduces the unique-key behavior the
// services depend on by returning gorm.ErrDuplicatedKey the way the
// translated postgres driver does.
type stubRepo struct {
	days        map[string]*models.DailyResult
	predictions []models.Prediction
	bonuses     []models.BonusUnlock
	winners     []models.Winner
	profiles    map[string]*models.Profile
	pageViews   []models.PageView

	nextPredictionID uint64
	now              time.Time
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		days:     make(map[string]*models.DailyResult),
		profiles: make(map[string]*models.Profile),
		now:      time.Date(2025, 2, 14, 10, 0, 0, 0, time.UTC),
	}
}

func (s *stubRepo) SeedDailyResult(ctx context.Context, item *models.DailyResult) error {
	if _, ok := s.days[item.GameDate]; ok {
		return nil
	}
	cp := *item
	s.days[item.GameDate] = &cp
	return nil
}

func (s *stubRepo) GetDailyResult(ctx context.Context, date string) (*models.DailyResult, error) {
	row, ok := s.days[date]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (s *stubRepo) ListSettleableDays(ctx context.Context, today string) ([]models.DailyResult, error) {
	var out []models.DailyResult
	for _, row := range s.days {
		if row.ActualPrice == nil && row.GameDate <= today {
			out = append(out, *row)
		} else if row.ActualPrice != nil && row.NotifiedAt == nil {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameDate < out[j].GameDate })
	return out, nil
}

func (s *stubRepo) RecordOfficialPrice(ctx context.Context, date string, price decimal.Decimal, at time.Time) (bool, error) {
	row, ok := s.days[date]
	if !ok || row.ActualPrice != nil {
		return false, nil
	}
	row.ActualPrice = &price
	row.RecordedAt = &at
	return true, nil
}

func (s *stubRepo) MarkDayNotified(ctx context.Context, date string, at time.Time) (bool, error) {
	row, ok := s.days[date]
	if !ok || row.NotifiedAt != nil {
		return false, nil
	}
	row.NotifiedAt = &at
	return true, nil
}

func (s *stubRepo) ListResolvedResults(ctx context.Context, limit int) ([]models.DailyResult, error) {
	var out []models.DailyResult
	for _, row := range s.days {
		if row.ActualPrice != nil {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameDate > out[j].GameDate })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *stubRepo) InsertPrediction(ctx context.Context, item *models.Prediction) error {
	for _, p := range s.predictions {
		if p.ProfileID == item.ProfileID && p.GameDate == item.GameDate && p.GuessNumber == item.GuessNumber {
			return gorm.ErrDuplicatedKey
		}
	}
	s.nextPredictionID++
	item.ID = s.nextPredictionID
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now
		s.now = s.now.Add(time.Second)
	}
	s.predictions = append(s.predictions, *item)
	return nil
}

func (s *stubRepo) ListPredictionsByDay(ctx context.Context, date string) ([]models.Prediction, error) {
	var out []models.Prediction
	for _, p := range s.predictions {
		if p.GameDate == date {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProfileID != out[j].ProfileID {
			return out[i].ProfileID < out[j].ProfileID
		}
		return out[i].GuessNumber < out[j].GuessNumber
	})
	return out, nil
}

func (s *stubRepo) ListPlayerPredictions(ctx context.Context, profileID, date string) ([]models.Prediction, error) {
	var out []models.Prediction
	for _, p := range s.predictions {
		if p.ProfileID == profileID && p.GameDate == date {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GuessNumber < out[j].GuessNumber })
	return out, nil
}

func (s *stubRepo) ListRecentPredictions(ctx context.Context, limit int) ([]repository.FeedItem, error) {
	preds := append([]models.Prediction(nil), s.predictions...)
	sort.Slice(preds, func(i, j int) bool { return preds[i].CreatedAt.After(preds[j].CreatedAt) })
	if limit > 0 && len(preds) > limit {
		preds = preds[:limit]
	}
	out := make([]repository.FeedItem, 0, len(preds))
	for _, p := range preds {
		email := ""
		if profile, ok := s.profiles[p.ProfileID]; ok {
			email = profile.Email
		}
		out = append(out, repository.FeedItem{
			GameDate:       p.GameDate,
			PredictedPrice: p.PredictedPrice,
			Email:          email,
			CreatedAt:      p.CreatedAt,
		})
	}
	return out, nil
}

func (s *stubRepo) CountDistinctPlayers(ctx context.Context, date string) (int64, error) {
	seen := make(map[string]struct{})
	for _, p := range s.predictions {
		if p.GameDate == date {
			seen[p.ProfileID] = struct{}{}
		}
	}
	return int64(len(seen)), nil
}

func (s *stubRepo) InsertBonusUnlock(ctx context.Context, item *models.BonusUnlock) error {
	for _, b := range s.bonuses {
		if b.ProfileID == item.ProfileID && b.GameDate == item.GameDate {
			return gorm.ErrDuplicatedKey
		}
	}
	s.bonuses = append(s.bonuses, *item)
	return nil
}

func (s *stubRepo) HasBonusUnlock(ctx context.Context, profileID, date string) (bool, error) {
	for _, b := range s.bonuses {
		if b.ProfileID == profileID && b.GameDate == date {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubRepo) InsertWinners(ctx context.Context, items []models.Winner) error {
	for _, item := range items {
		dup := false
		for _, w := range s.winners {
			if w.GameDate == item.GameDate && w.ProfileID == item.ProfileID {
				dup = true
				break
			}
		}
		if !dup {
			s.winners = append(s.winners, item)
		}
	}
	return nil
}

func (s *stubRepo) ListWinnersByDay(ctx context.Context, date string) ([]models.Winner, error) {
	var out []models.Winner
	for _, w := range s.winners {
		if w.GameDate == date {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Difference < out[j].Difference })
	return out, nil
}

func (s *stubRepo) GetWinner(ctx context.Context, date, profileID string) (*models.Winner, error) {
	for _, w := range s.winners {
		if w.GameDate == date && w.ProfileID == profileID {
			cp := w
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) CountWinnersByDay(ctx context.Context, date string) (int64, error) {
	var n int64
	for _, w := range s.winners {
		if w.GameDate == date {
			n++
		}
	}
	return n, nil
}

func (s *stubRepo) CreateProfile(ctx context.Context, item *models.Profile) error {
	for _, p := range s.profiles {
		if p.Email == item.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	cp := *item
	s.profiles[item.ID] = &cp
	return nil
}

func (s *stubRepo) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	p, ok := s.profiles[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *stubRepo) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	for _, p := range s.profiles {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) ListProfilesByIDs(ctx context.Context, ids []string) ([]models.Profile, error) {
	var out []models.Profile
	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *stubRepo) UpdateProfileConsent(ctx context.Context, id string, consent bool, at *time.Time) error {
	if p, ok := s.profiles[id]; ok {
		p.MarketingConsent = consent
		p.ConsentTimestamp = at
	}
	return nil
}

func (s *stubRepo) UpdateProfileStreak(ctx context.Context, id string, streak int, lastPlayed string) error {
	if p, ok := s.profiles[id]; ok {
		p.CurrentStreak = streak
		lp := lastPlayed
		p.LastPlayedDate = &lp
	}
	return nil
}

func (s *stubRepo) InsertPageView(ctx context.Context, item *models.PageView) error {
	s.pageViews = append(s.pageViews, *item)
	return nil
}

// addProfile seeds a profile directly, bypassing signup.
func (s *stubRepo) addProfile(id, email string) {
	s.profiles[id] = &models.Profile{ID: id, Email: email}
}

// --- Fakes for the service collaborators ------------------------------------

// fakePending is an in-memory PendingGuessStore.
type fakePending struct {
	guesses map[string]int64
}

func newFakePending() *fakePending {
	return &fakePending{guesses: make(map[string]int64)}
}

func (f *fakePending) PutGuess(ctx context.Context, cookieID, date string, price int64, ttl time.Duration) (bool, error) {
	key := cookieID + ":" + date
	if _, ok := f.guesses[key]; ok {
		return false, nil
	}
	f.guesses[key] = price
	return true, nil
}

func (f *fakePending) GetGuess(ctx context.Context, cookieID, date string) (int64, bool, error) {
	price, ok := f.guesses[cookieID+":"+date]
	return price, ok, nil
}

func (f *fakePending) DeleteGuess(ctx context.Context, cookieID, date string) error {
	delete(f.guesses, cookieID+":"+date)
	return nil
}

// fakeOracle returns a fixed price, or an error when set.
type fakeOracle struct {
	price   int64
	sources int
	err     error
	calls   int
}

func (f *fakeOracle) FetchOfficialPrice(ctx context.Context) (int64, int, error) {
	f.calls++
	if f.err != nil {
		return 0, 0, f.err
	}
	return f.price, f.sources, nil
}

// fakeNotifier records delivered summaries.
type fakeNotifier struct {
	summaries []DaySummary
	err       error
}

func (f *fakeNotifier) NotifyDaySettled(ctx context.Context, summary DaySummary) error {
	if f.err != nil {
		return f.err
	}
	f.summaries = append(f.summaries, summary)
	return nil
}

// fakeCaptcha approves or rejects every token.
type fakeCaptcha struct {
	ok  bool
	err error
}

func (f *fakeCaptcha) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	return f.ok, f.err
}

// fakeTokens is an in-memory LoginTokenStore.
type fakeTokens struct {
	tokens map[string]string
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{tokens: make(map[string]string)}
}

func (f *fakeTokens) SaveToken(ctx context.Context, tokenHash, profileID string, ttl time.Duration) error {
	f.tokens[tokenHash] = profileID
	return nil
}

func (f *fakeTokens) RedeemToken(ctx context.Context, tokenHash string) (string, bool, error) {
	profileID, ok := f.tokens[tokenHash]
	if ok {
		delete(f.tokens, tokenHash)
	}
	return profileID, ok, nil
}
