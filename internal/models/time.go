// internal/models/time.go
package models

import (
	"fmt"
	"strings"
	"time"
)

const naiveTimeLayout = "2006-01-02T15:04:05"

// ParseSourceTime parses a work order timestamp from the field service API.
//
// The API stamps these values with a "+00:00" or "Z" suffix but the wall
// clock is actually in the account's local timezone. The suffix is stripped,
// the naive value is interpreted in loc, and the result is returned as UTC.
func ParseSourceTime(value string, loc *time.Location) (time.Time, error) {
	naive, err := parseNaive(value)
	if err != nil {
		return time.Time{}, err
	}

	local := time.Date(
		naive.Year(), naive.Month(), naive.Day(),
		naive.Hour(), naive.Minute(), naive.Second(), naive.Nanosecond(),
		loc,
	)
	utc := local.UTC()

	// Re-stamp as UTC-naive so comparisons against cursor values stay uniform.
	return time.Date(
		utc.Year(), utc.Month(), utc.Day(),
		utc.Hour(), utc.Minute(), utc.Second(), utc.Nanosecond(),
		time.UTC,
	), nil
}

// ParseNaiveTime parses a customer timestamp. Unlike work orders, customer
// timestamps really are UTC, so the stripped value is taken as-is.
func ParseNaiveTime(value string) (time.Time, error) {
	return parseNaive(value)
}

func parseNaive(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	trimmed = strings.TrimSuffix(trimmed, "+00:00")
	trimmed = strings.TrimSuffix(trimmed, "Z")
	trimmed = strings.Replace(trimmed, " ", "T", 1)

	t, err := time.ParseInLocation(naiveTimeLayout, trimmed, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable timestamp %q: %w", value, err)
	}
	return t, nil
}
