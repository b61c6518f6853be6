// Package dedup collapses multiple deliveries of the same image within one
// batch to a single survivor.
//
// Results are keyed by filename stem, since the persisted name is the stem
// plus the sniffed extension. The survivor is the result with the earliest
// capture instant; exact ties keep the first result in batch entry order.
package dedup

import (
	"photoferry/internal/fetch"
)

// Table maps filename stems to their surviving result for one batch.
type Table struct {
	survivors map[string]fetch.Result
	order     []string
	dropped   []fetch.Result
}

// Build constructs a Table from results in batch entry order.
func Build(results []fetch.Result) *Table {
	t := &Table{survivors: make(map[string]fetch.Result, len(results))}
	for _, result := range results {
		key := result.Stem()
		current, ok := t.survivors[key]
		if !ok {
			t.survivors[key] = result
			t.order = append(t.order, key)
			continue
		}
		if result.TakenAt.Before(current.TakenAt) {
			t.survivors[key] = result
			t.dropped = append(t.dropped, current)
			continue
		}
		t.dropped = append(t.dropped, result)
	}
	return t
}

// Len reports the number of surviving results.
func (t *Table) Len() int {
	return len(t.order)
}

// Lookup returns the survivor for a filename stem.
func (t *Table) Lookup(stem string) (fetch.Result, bool) {
	r, ok := t.survivors[stem]
	return r, ok
}

// Survivors returns surviving results in first-seen order.
func (t *Table) Survivors() []fetch.Result {
	out := make([]fetch.Result, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, t.survivors[key])
	}
	return out
}

// Dropped returns the results discarded in favor of an earlier survivor.
func (t *Table) Dropped() []fetch.Result {
	out := make([]fetch.Result, len(t.dropped))
	copy(out, t.dropped)
	return out
}
