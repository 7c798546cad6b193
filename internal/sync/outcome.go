// Package sync contains the record matching and mirroring logic between the
// field service API and the CRM.
package sync

import (
	"github.com/nonstopautomation/service-fusion/internal/common/errors"
)

// Result classifies what happened to a single record.
type Result string

const (
	ResultSynced  Result = "synced"
	ResultSkipped Result = "skipped"
	ResultFailed  Result = "failed"
)

// Outcome is the explicit per-record result of a sync attempt. Skips are
// business rules, not failures, and never abort a pass.
type Outcome struct {
	Result Result
	Reason string
	Err    *errors.StandardError
}

func Synced(reason string) Outcome {
	return Outcome{Result: ResultSynced, Reason: reason}
}

func Skipped(reason string) Outcome {
	return Outcome{Result: ResultSkipped, Reason: reason}
}

func Failed(err *errors.StandardError) Outcome {
	return Outcome{Result: ResultFailed, Err: err}
}
