// Package state persists the per-kind poll cursors and lifetime counters
// between runs. Losing this state is never fatal: readers fall back to a
// bounded lookback window, which re-syncs recent records idempotently.
package state

import (
	"context"
	"time"
)

// Kind names a polled record stream.
type Kind string

const (
	KindCustomers Kind = "customers"
	KindJobs      Kind = "jobs"
	KindEstimates Kind = "estimates"
)

// cursorTimeLayout is the naive-UTC format cursors are persisted in.
const cursorTimeLayout = "2006-01-02T15:04:05"

// Counter names tracked across runs.
const (
	CounterTotalChecks       = "total_checks"
	CounterTotalUpdatesFound = "total_updates_found"
)

// ChecksCounter returns the per-kind checks counter name.
func ChecksCounter(kind Kind) string {
	return string(kind) + "_checks"
}

// UpdatesCounter returns the per-kind updates counter name.
func UpdatesCounter(kind Kind) string {
	return string(kind) + "_updates_found"
}

// Store is the cursor persistence interface.
//
// LastPoll never returns a zero time: when a cursor is missing or unreadable,
// implementations return now minus the configured lookback.
type Store interface {
	LastPoll(ctx context.Context, kind Kind) (time.Time, error)
	SetLastPoll(ctx context.Context, kind Kind, t time.Time) error
	Counters(ctx context.Context) (map[string]int64, error)
	IncrementCounters(ctx context.Context, deltas map[string]int64) error
}

func cursorKey(kind Kind) string {
	switch kind {
	case KindCustomers:
		return "last_customer_poll"
	case KindJobs:
		return "last_job_poll"
	case KindEstimates:
		return "last_estimate_poll"
	}
	return "last_" + string(kind) + "_poll"
}

func formatCursor(t time.Time) string {
	return t.UTC().Format(cursorTimeLayout)
}

func parseCursor(value string) (time.Time, error) {
	return time.ParseInLocation(cursorTimeLayout, value, time.UTC)
}
