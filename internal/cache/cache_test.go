package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agiledash/internal/model"
)

func london(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	return loc
}

func newTestStore(t *testing.T, now time.Time) *Store {
	t.Helper()
	s := NewStore(t.TempDir(), now.Location())
	s.now = func() time.Time { return now }
	return s
}

func sampleDay(loc *time.Location, date string) *model.DailyPriceCache {
	day, _ := time.ParseInLocation(model.DateLayout, date, loc)
	return &model.DailyPriceCache{
		Date: date,
		Electricity: []model.RateRecord{
			{ValidFrom: day, ValidTo: day.Add(30 * time.Minute), PricePence: 12.5},
			{ValidFrom: day.Add(30 * time.Minute), ValidTo: day.Add(time.Hour), PricePence: -1.2},
		},
		Gas:       []model.RateRecord{{ValidFrom: day, ValidTo: day.AddDate(0, 0, 1), PricePence: 5.9}},
		FetchedAt: day.Add(16 * time.Hour),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	loc := london(t)
	now := time.Date(2025, 6, 10, 17, 0, 0, 0, loc)
	s := newTestStore(t, now)

	want := sampleDay(loc, "2025-06-10")
	require.NoError(t, s.Save(want))

	_, err := os.Stat(filepath.Join(s.Dir(), "price-data-2025-06-10.json"))
	require.NoError(t, err)
	assert.Equal(t, "price-data-2025-06-10.json", FileName(now, loc))

	got, err := s.Load(now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Date, got.Date)
	require.Len(t, got.Electricity, 2)
	assert.True(t, want.Electricity[1].ValidFrom.Equal(got.Electricity[1].ValidFrom))
	assert.Equal(t, loc, got.Electricity[1].ValidFrom.Location())
	assert.Equal(t, -1.2, got.Electricity[1].PricePence)

	// Saving again overwrites in full.
	shorter := sampleDay(loc, "2025-06-10")
	shorter.Electricity = shorter.Electricity[:1]
	require.NoError(t, s.Save(shorter))
	got, err = s.Load(now)
	require.NoError(t, err)
	assert.Len(t, got.Electricity, 1)
}

func TestLoadMissingIsNotAnError(t *testing.T) {
	s := newTestStore(t, time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC))
	got, err := s.Load(time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoadCorruptFile(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "price-data-2025-06-10.json"), []byte("{"), 0o600))

	_, err := s.Load(now)
	require.ErrorIs(t, err, model.ErrCacheIO)
}

func TestSaveWithoutDate(t *testing.T) {
	s := newTestStore(t, time.Now())
	require.ErrorIs(t, s.Save(&model.DailyPriceCache{}), model.ErrCacheIO)
	require.ErrorIs(t, s.Save(nil), model.ErrCacheIO)
}

func TestPruneKeepsTodayAndYesterday(t *testing.T) {
	loc := london(t)
	now := time.Date(2025, 6, 10, 0, 5, 0, 0, loc)
	s := newTestStore(t, now)

	for _, d := range []string{"2025-06-10", "2025-06-09", "2025-06-08", "2025-06-07"} {
		require.NoError(t, s.Save(sampleDay(loc, d)))
	}
	// Unrelated files are never touched.
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "price-data-latest.json"), []byte("x"), 0o600))

	removed, err := s.Prune(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"price-data-2025-06-07.json", "price-data-2025-06-08.json"}, removed)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{
		"notes.txt",
		"price-data-latest.json",
		"price-data-2025-06-09.json",
		"price-data-2025-06-10.json",
	}, names)
}

func TestPruneAcrossDSTChange(t *testing.T) {
	loc := london(t)
	// 2025-03-30 is 23 hours long in London.
	now := time.Date(2025, 3, 31, 0, 30, 0, 0, loc)
	s := newTestStore(t, now)
	for _, d := range []string{"2025-03-30", "2025-03-29"} {
		require.NoError(t, s.Save(sampleDay(loc, d)))
	}

	removed, err := s.Prune(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"price-data-2025-03-29.json"}, removed)
}

func TestPruneMissingDir(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope"), time.UTC)
	removed, err := s.Prune(2)
	require.NoError(t, err)
	assert.Empty(t, removed)
}
