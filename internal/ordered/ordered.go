// Package ordered provides the two positioning primitives the store uses
// for every per-session collection: an id-sorted upsert list and a
// timestamp-sorted insert list. Both are O(log n) locate plus O(n) splice,
// which is fine at session-local collection sizes.
package ordered

import (
	"sort"
	"time"
)

// UpsertByID inserts item into items keyed by idOf, replacing in place when
// the id is already present. items must already be sorted ascending by id;
// the returned slice is too.
func UpsertByID[T any](items []T, item T, idOf func(T) string) []T {
	id := idOf(item)
	idx := sort.Search(len(items), func(i int) bool {
		return idOf(items[i]) >= id
	})
	if idx < len(items) && idOf(items[idx]) == id {
		items[idx] = item
		return items
	}
	items = append(items, item)
	copy(items[idx+1:], items[idx:])
	items[idx] = item
	return items
}

// InsertByTime inserts item at the first index whose timestamp is not
// before the item's own. Callers own de-duplication; this only guarantees
// the correct position for a direct insert.
func InsertByTime[T any](items []T, item T, timeOf func(T) time.Time) []T {
	at := timeOf(item)
	idx := sort.Search(len(items), func(i int) bool {
		return !timeOf(items[i]).Before(at)
	})
	items = append(items, item)
	copy(items[idx+1:], items[idx:])
	items[idx] = item
	return items
}

// FindByID binary-searches an id-sorted slice and returns the index of the
// item with the given id, or -1 when absent.
func FindByID[T any](items []T, id string, idOf func(T) string) int {
	idx := sort.Search(len(items), func(i int) bool {
		return idOf(items[i]) >= id
	})
	if idx < len(items) && idOf(items[idx]) == id {
		return idx
	}
	return -1
}

// RemoveByID deletes the item with the given id from an id-sorted slice.
// Removing an absent id is a no-op.
func RemoveByID[T any](items []T, id string, idOf func(T) string) []T {
	idx := FindByID(items, id, idOf)
	if idx < 0 {
		return items
	}
	return append(items[:idx], items[idx+1:]...)
}
