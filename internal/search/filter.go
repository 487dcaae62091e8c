// Package search filters an already loaded page of records by a free-text
// key. It never reaches the backend, so totals reported for the page are not
// adjusted by the filter.
package search

import (
	"strings"

	"github.com/Raymond9734/crm-console/internal/models"
)

// FieldsFunc returns the candidate fields of a record that the key is matched against
type FieldsFunc[T any] func(item T) []string

// NormalizeKey lower-cases a search key the way the console stores it
func NormalizeKey(key string) string {
	return strings.ToLower(key)
}

// Filter returns, in order, the items for which at least one candidate field
// contains key. Matching is case-insensitive and an empty key keeps every item.
func Filter[T any](items []T, key string, fields FieldsFunc[T]) []T {
	key = NormalizeKey(key)
	if key == "" {
		out := make([]T, len(items))
		copy(out, items)
		return out
	}

	out := make([]T, 0, len(items))
	for _, item := range items {
		if matches(fields(item), key) {
			out = append(out, item)
		}
	}
	return out
}

func matches(fields []string, key string) bool {
	for _, field := range fields {
		if field != "" && strings.Contains(strings.ToLower(field), key) {
			return true
		}
	}
	return false
}

// CustomerFields are matched for the customer list: name, email and mobile
func CustomerFields(c models.Customer) []string {
	return []string{c.FullName, c.Email, c.Mobile}
}

// LogFields are matched for the call log list: status and customer name
func LogFields(l models.Log) []string {
	return []string{string(l.Status), l.CustomerName()}
}
