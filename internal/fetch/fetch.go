// Package fetch splits date ranges and paged listings into the request
// sizes providers accept, and concatenates the results in order.
package fetch

import (
	"context"
	"time"

	"github.com/lifedata/connector/internal/clock"
	apperrors "github.com/lifedata/connector/internal/errors"
)

// Window is the half-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Last returns the final instant inside the window. Providers that take
// inclusive calendar dates want this day as the end date.
func (w Window) Last() time.Time {
	return w.End.Add(-time.Nanosecond)
}

// Days returns the window length in whole and partial days.
func (w Window) Days() float64 {
	return w.End.Sub(w.Start).Hours() / 24
}

// Windows splits [start, end) into consecutive windows of chunkDays days.
// The last window is truncated at end. An empty or inverted range yields none.
func Windows(start, end time.Time, chunkDays int) []Window {
	if chunkDays <= 0 || !end.After(start) {
		return nil
	}
	var out []Window
	for cur := start; cur.Before(end); {
		next := cur.AddDate(0, 0, chunkDays)
		if next.After(end) {
			next = end
		}
		out = append(out, Window{Start: cur, End: next})
		cur = next
	}
	return out
}

// FetchRange calls fetchOne for every window of [start, end) and returns the
// concatenated items. The first error stops the iteration.
func FetchRange[T any](ctx context.Context, start, end time.Time, chunkDays int, fetchOne func(ctx context.Context, w Window) ([]T, error)) ([]T, error) {
	var all []T
	for _, w := range Windows(start, end, chunkDays) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items, err := fetchOne(ctx, w)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
	}
	return all, nil
}

// Days returns every calendar day from start through end inclusive, at
// midnight in start's location.
func Days(start, end time.Time) []time.Time {
	loc := start.Location()
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	last := end.In(loc)
	last = time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, loc)

	var out []time.Time
	for !day.After(last) {
		out = append(out, day)
		day = day.AddDate(0, 0, 1)
	}
	return out
}

// FetchDaily calls fetchDay once per calendar day in [start, end]. A day
// that returns ok=false contributes nothing.
func FetchDaily[T any](ctx context.Context, start, end time.Time, fetchDay func(ctx context.Context, day time.Time) (T, bool, error)) ([]T, error) {
	var all []T
	for _, day := range Days(start, end) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item, ok, err := fetchDay(ctx, day)
		if err != nil {
			return nil, err
		}
		if ok {
			all = append(all, item)
		}
	}
	return all, nil
}

// FetchPaginated requests pages of pageSize until a page comes back short.
// offset counts items already requested, starting at 0. delay is slept
// between pages, never before the first.
func FetchPaginated[T any](ctx context.Context, pageSize int, delay time.Duration, sleeper clock.Sleeper, pageFetch func(ctx context.Context, offset, size int) ([]T, error)) ([]T, error) {
	if pageSize <= 0 {
		pageSize = 1
	}
	var all []T
	for offset := 0; ; offset += pageSize {
		if offset > 0 && delay > 0 {
			if err := sleeper.Sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
		page, err := pageFetch(ctx, offset, pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

// NotFoundAsEmpty turns an HTTP 404 into an empty result. Entities whose
// data may not exist for a user (no compatible device) use it.
func NotFoundAsEmpty[T any](items []T, err error) ([]T, error) {
	if err != nil && apperrors.IsNotFound(err) {
		return nil, nil
	}
	return items, err
}
