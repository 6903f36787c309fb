// Package cache persists fetched tariff data as one JSON file per calendar
// date (price-data-YYYY-MM-DD.json) and removes files past the retention
// window.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"agiledash/internal/fsutil"
	appLog "agiledash/internal/log"
	"agiledash/internal/model"
)

const (
	filePrefix = "price-data-"
	fileSuffix = ".json"
)

// Store reads and writes DailyPriceCache files under a single directory.
type Store struct {
	dir string
	loc *time.Location
	now func() time.Time
}

// NewStore creates a Store rooted at dir. Calendar dates are evaluated in loc.
func NewStore(dir string, loc *time.Location) *Store {
	if dir == "" {
		// Development runs without root permissions.
		dir = "./var/cache"
	}
	if loc == nil {
		loc = time.Local
	}
	return &Store{dir: dir, loc: loc, now: time.Now}
}

// SetClock replaces the clock Prune uses to find today.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

// FileName returns the cache file name for the local date of day.
func FileName(day time.Time, loc *time.Location) string {
	return filePrefix + model.DateOf(day, loc) + fileSuffix
}

func (s *Store) pathFor(date string) string {
	return filepath.Join(s.dir, filePrefix+date+fileSuffix)
}

// Load returns the cached prices for the local date of day, or (nil, nil)
// when no file exists for that date.
func (s *Store) Load(day time.Time) (*model.DailyPriceCache, error) {
	date := model.DateOf(day, s.loc)
	data, err := os.ReadFile(s.pathFor(date))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", model.ErrCacheIO, date, err)
	}

	var c model.DailyPriceCache
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", model.ErrCacheIO, date, err)
	}
	if c.Date != date {
		return nil, fmt.Errorf("%w: file for %s holds date %q", model.ErrCacheIO, date, c.Date)
	}
	// JSON round-trips drop the *time.Location; restore it so comparisons
	// and formatting stay in the display zone.
	for i := range c.Electricity {
		c.Electricity[i].ValidFrom = c.Electricity[i].ValidFrom.In(s.loc)
		c.Electricity[i].ValidTo = c.Electricity[i].ValidTo.In(s.loc)
	}
	for i := range c.Gas {
		c.Gas[i].ValidFrom = c.Gas[i].ValidFrom.In(s.loc)
		c.Gas[i].ValidTo = c.Gas[i].ValidTo.In(s.loc)
	}
	return &c, nil
}

// Save overwrites the file for c.Date with the full contents of c.
func (s *Store) Save(c *model.DailyPriceCache) error {
	if c == nil || c.Date == "" {
		return fmt.Errorf("%w: refusing to save cache without a date", model.ErrCacheIO)
	}
	if _, err := time.ParseInLocation(model.DateLayout, c.Date, s.loc); err != nil {
		return fmt.Errorf("%w: bad date %q: %v", model.ErrCacheIO, c.Date, err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", model.ErrCacheIO, c.Date, err)
	}
	if err := fsutil.WriteFileAtomic(s.pathFor(c.Date), ".price-data-*.tmp", data); err != nil {
		return fmt.Errorf("%w: write %s: %v", model.ErrCacheIO, c.Date, err)
	}
	return nil
}

// Prune deletes every cache file whose embedded date is maxAgeDays or more
// calendar days before today. With maxAgeDays=2, files for today and
// yesterday survive. Files not matching the naming pattern are left alone.
// Individual delete failures are logged and returned joined; the remaining
// files are still processed.
func (s *Store) Prune(maxAgeDays int) ([]string, error) {
	if maxAgeDays <= 0 {
		maxAgeDays = 2
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: list %s: %v", model.ErrCacheIO, s.dir, err)
	}

	today := model.DayStart(s.now(), s.loc)

	var removed []string
	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		date, ok := dateFromName(name, s.loc)
		if !ok {
			continue
		}
		if daysBetween(date, today) < maxAgeDays {
			continue
		}

		path := filepath.Join(s.dir, name)
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			appLog.Error("cache prune failed", err, "file", name)
			errs = append(errs, err)
			continue
		}
		appLog.Debug("cache pruned", "file", name)
		removed = append(removed, name)
	}

	sort.Strings(removed)
	if len(errs) > 0 {
		return removed, fmt.Errorf("%w: prune: %w", model.ErrCacheIO, errors.Join(errs...))
	}
	return removed, nil
}

func dateFromName(name string, loc *time.Location) (time.Time, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return time.Time{}, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	d, err := time.ParseInLocation(model.DateLayout, raw, loc)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// daysBetween counts calendar days from a to b, ignoring DST length changes.
func daysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
