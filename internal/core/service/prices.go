package service

import (
	"math"
	"slices"
	"time"

	"github.com/berfenger/powerpilot/internal/core/domain"
)

// PriceTable keeps market intervals ordered by start time.
type PriceTable struct {
	entries []domain.PriceEntry
}

// Update merges entries into the table. Intervals with the same start are
// replaced by the newer value.
func (t *PriceTable) Update(entries []domain.PriceEntry) {
	byStart := make(map[int64]domain.PriceEntry, len(t.entries)+len(entries))
	for _, e := range t.entries {
		byStart[e.Start.UnixMilli()] = e
	}
	for _, e := range entries {
		if !e.End.After(e.Start) {
			continue
		}
		byStart[e.Start.UnixMilli()] = e
	}
	merged := make([]domain.PriceEntry, 0, len(byStart))
	for _, e := range byStart {
		merged = append(merged, e)
	}
	slices.SortFunc(merged, func(a, b domain.PriceEntry) int {
		return a.Start.Compare(b.Start)
	})
	t.entries = merged
}

// Prune drops intervals that ended before t.
func (t *PriceTable) Prune(before time.Time) {
	t.entries = slices.DeleteFunc(t.entries, func(e domain.PriceEntry) bool {
		return !e.End.After(before)
	})
}

func (t *PriceTable) Len() int {
	return len(t.entries)
}

func (t *PriceTable) At(ts time.Time) (domain.PriceEntry, bool) {
	i, found := slices.BinarySearchFunc(t.entries, ts, func(e domain.PriceEntry, ts time.Time) int {
		if e.Contains(ts) {
			return 0
		}
		return e.Start.Compare(ts)
	})
	if !found {
		return domain.PriceEntry{}, false
	}
	return t.entries[i], true
}

// Best returns the cheapest interval starting at or after ts.
func (t *PriceTable) Best(after time.Time) (domain.PriceEntry, bool) {
	var best domain.PriceEntry
	ok := false
	for _, e := range t.entries {
		if e.Start.Before(after) {
			continue
		}
		if !ok || e.Price < best.Price {
			best = e
			ok = true
		}
	}
	return best, ok
}

// Stats returns mean and population standard deviation of the intervals
// starting within window before now.
func (t *PriceTable) Stats(now time.Time, window time.Duration) (avg, sigma float64, ok bool) {
	from := now.Add(-window)
	var n int
	var sum, sumSq float64
	for _, e := range t.entries {
		if e.Start.Before(from) || e.Start.After(now) {
			continue
		}
		n++
		sum += e.Price
		sumSq += e.Price * e.Price
	}
	// a single slot has no spread to compare against
	if n < 2 {
		return 0, 0, false
	}
	avg = sum / float64(n)
	sigma = math.Sqrt(math.Max(sumSq/float64(n)-avg*avg, 0))
	return avg, sigma, true
}
