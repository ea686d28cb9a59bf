// Package reconcile merges fresh feed snapshots into the cached order set
// without losing local edits, and applies single-field edits.
package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/xelth-com/f8tracker/internal/calc"
	"github.com/xelth-com/f8tracker/internal/models"
)

// OrphanPolicy decides what happens to cached orders missing from a feed.
type OrphanPolicy int

const (
	// OrphanDrop removes orders the feed no longer lists.
	OrphanDrop OrphanPolicy = iota
	// OrphanKeep appends them, unchanged, after the feed orders.
	OrphanKeep
)

func (p OrphanPolicy) String() string {
	if p == OrphanKeep {
		return "keep"
	}
	return "drop"
}

// ParseOrphanPolicy accepts "drop" (or "") and "keep".
func ParseOrphanPolicy(s string) (OrphanPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop":
		return OrphanDrop, nil
	case "keep":
		return OrphanKeep, nil
	}
	return OrphanDrop, fmt.Errorf("unknown orphan policy %q", s)
}

// MergeOptions tune Merge.
type MergeOptions struct {
	Orphans OrphanPolicy
	// Now is the clock reading used for derived fields. Zero means time.Now.
	Now time.Time
}

// MergeResult is the outcome of one merge.
type MergeResult struct {
	Orders []models.Order
	// Added counts feed orders with no cached counterpart.
	Added int
	// Updated counts feed orders merged onto a cached counterpart.
	Updated int
	// Skipped counts feed rows without an id.
	Skipped int
	// Orphans lists cached ids absent from the feed, in cached order.
	Orphans []string
}

// Merge combines the cached set with an incoming feed snapshot.
//
// Feed-owned fields always come from incoming. User-editable fields keep
// the cached value unless it is empty. fechaF8 and fechaRecepcionF8 follow
// the feed unless the feed sends a blank over a cached value. Derived fields
// are recomputed on every merged record. Neither input is modified.
func Merge(cached, incoming []models.Order, opts MergeOptions) MergeResult {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	var res MergeResult
	feed, skipped := uniqueByID(incoming)
	res.Skipped = skipped

	if len(cached) == 0 {
		res.Orders = feed
		res.Added = len(feed)
		return res
	}

	byID := make(map[string]*models.Order, len(cached))
	for i := range cached {
		byID[cached[i].Forma8Salmi] = &cached[i]
	}

	seen := make(map[string]bool, len(feed))
	res.Orders = make([]models.Order, 0, len(feed))
	for _, in := range feed {
		seen[in.Forma8Salmi] = true
		prev, ok := byID[in.Forma8Salmi]
		if !ok {
			res.Added++
			res.Orders = append(res.Orders, in)
			continue
		}
		res.Updated++
		res.Orders = append(res.Orders, mergeOrder(prev, in, now))
	}

	for i := range cached {
		id := cached[i].Forma8Salmi
		if seen[id] {
			continue
		}
		res.Orphans = append(res.Orphans, id)
		if opts.Orphans == OrphanKeep {
			res.Orders = append(res.Orders, cached[i].Clone())
		}
	}
	return res
}

// mergeOrder builds the merged record from a cached order and its feed row.
// in is already a private copy.
func mergeOrder(prev *models.Order, in models.Order, now time.Time) models.Order {
	for _, key := range models.PreservedFields {
		if v := prev.Get(key); v != "" {
			in.Set(key, v)
		}
	}
	for _, key := range models.SourcePreferredFields {
		if strings.TrimSpace(in.Get(key)) == "" && prev.Get(key) != "" {
			in.Set(key, prev.Get(key))
		}
	}
	calc.ComputeDerived(&in, now)
	return in
}

// uniqueByID copies incoming, dropping rows without an id. A repeated id
// keeps the first row's position and the last row's values.
func uniqueByID(incoming []models.Order) ([]models.Order, int) {
	out := make([]models.Order, 0, len(incoming))
	pos := make(map[string]int, len(incoming))
	skipped := 0
	for i := range incoming {
		id := incoming[i].Forma8Salmi
		if id == "" {
			skipped++
			continue
		}
		if j, ok := pos[id]; ok {
			out[j] = incoming[i].Clone()
			continue
		}
		pos[id] = len(out)
		out = append(out, incoming[i].Clone())
	}
	return out, skipped
}
