// Package filter provides generic helpers for composing list results:
// predicate filtering, comparator sorting, and 1-indexed pagination.
package filter

import (
	"slices"
	"strings"
)

// Predicate reports whether an item should be kept.
type Predicate[T any] func(item T) bool

// NormalizeString lowercases and trims a string for comparison.
func NormalizeString(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Apply returns the items matching every predicate. Nil predicates are skipped.
func Apply[T any](items []T, predicates ...Predicate[T]) []T {
	kept := make([]T, 0, len(items))
	for _, item := range items {
		match := true
		for _, p := range predicates {
			if p == nil {
				continue
			}
			if !p(item) {
				match = false
				break
			}
		}
		if match {
			kept = append(kept, item)
		}
	}
	return kept
}

// SortBy sorts items in place using the comparator, inverting it when
// descending is set.
func SortBy[T any](items []T, cmp func(a, b T) int, descending bool) {
	slices.SortStableFunc(items, func(a, b T) int {
		if descending {
			return cmp(b, a)
		}
		return cmp(a, b)
	})
}

// Paginate slices out one page. Page is 1-indexed; a non-positive page or
// limit returns all items unchanged.
func Paginate[T any](items []T, page, limit int) []T {
	if page <= 0 || limit <= 0 {
		return items
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
