// Package view holds the state of one mounted console view: its page
// windows, search keys, imported rows and open editors. Views share the list
// stores but never each other's state. A view never holds its lock across a
// backend call, so a search can change while a fetch is outstanding.
package view

import (
	"context"
	"sync"
	"time"

	"github.com/Raymond9734/crm-console/internal/editor"
	"github.com/Raymond9734/crm-console/internal/liststore"
	"github.com/Raymond9734/crm-console/internal/models"
	"github.com/Raymond9734/crm-console/internal/search"
)

// Source is the part of a list store a view reads through
type Source[T any] interface {
	Key(window models.PageWindow) liststore.Key
	Load(ctx context.Context, key liststore.Key) (*liststore.Page[T], error)
	Refresh(ctx context.Context, key liststore.Key) (*liststore.Page[T], error)
	InvalidateAll()
}

// CustomerWriter is the customer side of the backend
type CustomerWriter interface {
	editor.Writer[models.CustomerInput]
	Delete(ctx context.Context, id string) error
}

// LogWriter is the call log side of the backend
type LogWriter interface {
	editor.Writer[models.LogInput]
	Delete(ctx context.Context, id string) error
}

// invalidator is anything holding pages a mutation can make outdated
type invalidator interface {
	InvalidateAll()
}

// Listing is what a view displays for its current window and search key
type Listing[T any] struct {
	Key        string                  `json:"key"`
	Window     models.PageWindow       `json:"window"`
	Search     string                  `json:"search"`
	Items      []T                     `json:"items"`
	Imported   int                     `json:"imported,omitempty"`
	Pagination models.PaginationResult `json:"pagination"`
	Stale      bool                    `json:"stale"`
	Error      string                  `json:"error,omitempty"`
	FetchedAt  time.Time               `json:"fetched_at"`
}

// maxListingAttempts bounds reloads when the window keeps moving mid-fetch
const maxListingAttempts = 3

var errWindowMoved = models.ErrConflictWithMsg("Page changed while loading")

// loadCurrent loads the page for the window current at call time and hands
// it to apply under mu. When the window moved while the fetch was outstanding
// the result is dropped and the new window is loaded instead. It returns an
// error only when apply never ran.
func loadCurrent[T any](ctx context.Context, mu *sync.Mutex, window *models.PageWindow, src Source[T], apply func(key liststore.Key, page *liststore.Page[T], err error)) error {
	for attempt := 1; attempt <= maxListingAttempts; attempt++ {
		mu.Lock()
		key := src.Key(*window)
		mu.Unlock()

		page, err := src.Load(ctx, key)

		mu.Lock()
		if src.Key(*window) == key {
			apply(key, page, err)
			mu.Unlock()
			return nil
		}
		mu.Unlock()

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return errWindowMoved
}

// listing builds the displayed listing from a loaded page. Caller holds the
// view lock.
func listing[T any](window models.PageWindow, key liststore.Key, searchKey string, page *liststore.Page[T], err error, fields search.FieldsFunc[T]) *Listing[T] {
	l := &Listing[T]{
		Key:    key.String(),
		Window: window,
		Search: searchKey,
		Items:  []T{},
	}
	if page != nil {
		l.Items = search.Filter(page.Items, searchKey, fields)
		l.Pagination = models.NewPaginationResult(window.Page, window.Limit, page.Total)
		l.FetchedAt = page.FetchedAt
	} else {
		l.Pagination = models.NewPaginationResult(window.Page, window.Limit, 0)
	}
	if err != nil {
		l.Stale = true
		l.Error = models.UserMessage(err)
	}
	return l
}
