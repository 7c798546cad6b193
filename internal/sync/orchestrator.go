// internal/sync/orchestrator.go
package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nonstopautomation/service-fusion/internal/common/errors"
	"github.com/nonstopautomation/service-fusion/internal/common/logger"
	"github.com/nonstopautomation/service-fusion/internal/common/metrics"
	"github.com/nonstopautomation/service-fusion/internal/common/notify"
	"github.com/nonstopautomation/service-fusion/internal/models"
	"github.com/nonstopautomation/service-fusion/internal/state"
)

// maxFailuresShown caps how many failure contexts a batched alert lists.
const maxFailuresShown = 5

// RecordLister is the scanning surface of the source API used by the
// orchestrator.
type RecordLister interface {
	ListUpdatedCustomers(ctx context.Context, since time.Time, maxResults int) ([]models.Customer, error)
	ListUpdatedJobs(ctx context.Context, since time.Time, maxResults int) ([]models.Job, error)
	ListUpdatedEstimates(ctx context.Context, since time.Time, maxResults int) ([]models.Estimate, error)
}

// Orchestrator drives one full sync cycle: a customer pass, an estimate pass
// and a job pass, in that order. Estimates go before jobs so that a job
// converted from an estimate in the same cycle finds the estimate's
// opportunity already present.
type Orchestrator struct {
	lister        RecordLister
	contacts      *ContactSyncer
	opportunities *OpportunitySyncer
	store         state.Store
	maxResults    int
	notifier      notify.Notifier
	logger        logger.Logger
}

func NewOrchestrator(
	lister RecordLister,
	contacts *ContactSyncer,
	opportunities *OpportunitySyncer,
	store state.Store,
	maxResults int,
	notifier notify.Notifier,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		lister:        lister,
		contacts:      contacts,
		opportunities: opportunities,
		store:         store,
		maxResults:    maxResults,
		notifier:      notifier,
		logger:        log,
	}
}

// RunAll executes the three passes sequentially. Each pass is isolated: a
// pass-fatal error is logged and alerted but never stops the next pass or
// crashes the scheduler loop.
func (o *Orchestrator) RunAll(ctx context.Context) {
	o.runIsolated(ctx, "customer-sync", o.runCustomerPass)
	o.runIsolated(ctx, "estimate-sync", o.runEstimatePass)
	o.runIsolated(ctx, "job-sync", o.runJobPass)
}

// runIsolated runs one pass, converting panics and errors into alerts.
func (o *Orchestrator) runIsolated(ctx context.Context, name string, fn func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pass panicked", map[string]interface{}{
				"pass":  name,
				"panic": fmt.Sprintf("%v", r),
			})
			o.notifier.Report(ctx, errors.SeverityHigh, name,
				fmt.Sprintf("Sync pass panicked: %v", r), nil)
		}
	}()

	if err := fn(ctx); err != nil {
		o.logger.WithError(err).Error("pass failed", map[string]interface{}{
			"pass": name,
		})
		o.notifier.Report(ctx, errors.SeverityHigh, name,
			fmt.Sprintf("Sync pass failed: %v", err), nil)
	}
}

func (o *Orchestrator) runCustomerPass(ctx context.Context) error {
	kind := state.KindCustomers
	done := o.startPass(kind)
	defer done()

	since, err := o.store.LastPoll(ctx, kind)
	if err != nil {
		return err
	}

	records, err := o.lister.ListUpdatedCustomers(ctx, since, o.maxResults)
	if err != nil {
		return err
	}

	var failures []*errors.StandardError
	for i := range records {
		outcome := o.contacts.SyncCustomer(ctx, &records[i])
		o.recordOutcome(kind, outcome)
		if outcome.Result == ResultFailed {
			failures = append(failures, outcome.Err)
		}
	}

	o.reportFailures(ctx, kind, len(records), failures)
	return o.finishPass(ctx, kind, len(records))
}

func (o *Orchestrator) runEstimatePass(ctx context.Context) error {
	kind := state.KindEstimates
	done := o.startPass(kind)
	defer done()

	since, err := o.store.LastPoll(ctx, kind)
	if err != nil {
		return err
	}

	records, err := o.lister.ListUpdatedEstimates(ctx, since, o.maxResults)
	if err != nil {
		return err
	}

	var failures []*errors.StandardError
	for i := range records {
		outcome := o.opportunities.SyncWorkOrder(ctx, &records[i])
		o.recordOutcome(kind, outcome)
		if outcome.Result == ResultFailed {
			failures = append(failures, outcome.Err)
		}
	}

	o.reportFailures(ctx, kind, len(records), failures)
	return o.finishPass(ctx, kind, len(records))
}

func (o *Orchestrator) runJobPass(ctx context.Context) error {
	kind := state.KindJobs
	done := o.startPass(kind)
	defer done()

	since, err := o.store.LastPoll(ctx, kind)
	if err != nil {
		return err
	}

	records, err := o.lister.ListUpdatedJobs(ctx, since, o.maxResults)
	if err != nil {
		return err
	}

	var failures []*errors.StandardError
	for i := range records {
		outcome := o.opportunities.SyncWorkOrder(ctx, &records[i])
		o.recordOutcome(kind, outcome)
		if outcome.Result == ResultFailed {
			failures = append(failures, outcome.Err)
		}
	}

	o.reportFailures(ctx, kind, len(records), failures)
	return o.finishPass(ctx, kind, len(records))
}

func (o *Orchestrator) startPass(kind state.Kind) func() {
	label := string(kind)
	metrics.SyncPassesActive.WithLabelValues(label).Inc()
	start := time.Now()

	o.logger.Info("starting pass", map[string]interface{}{"record_kind": label})

	return func() {
		metrics.SyncPassesActive.WithLabelValues(label).Dec()
		metrics.SyncPassDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}
}

func (o *Orchestrator) recordOutcome(kind state.Kind, outcome Outcome) {
	label := string(kind)
	switch outcome.Result {
	case ResultSynced:
		metrics.SyncRecordsProcessed.WithLabelValues(label).Inc()
	case ResultSkipped:
		metrics.SyncRecordsSkipped.WithLabelValues(label, outcome.Reason).Inc()
	case ResultFailed:
		code := "UNKNOWN"
		if outcome.Err != nil {
			code = string(outcome.Err.Code)
		}
		metrics.SyncRecordsFailed.WithLabelValues(label, code).Inc()
		o.logger.WithError(outcome.Err).Error("record sync failed", map[string]interface{}{
			"record_kind": label,
		})
	}
}

// finishPass advances the cursor to now rather than the newest record seen.
// A record updated between listing and this write is picked up by the next
// run's lookback only if it updates again; that trade was chosen over
// re-processing the whole window every cycle.
func (o *Orchestrator) finishPass(ctx context.Context, kind state.Kind, found int) error {
	if err := o.store.SetLastPoll(ctx, kind, time.Now().UTC()); err != nil {
		return err
	}

	deltas := map[string]int64{
		state.CounterTotalChecks:  1,
		state.ChecksCounter(kind): 1,
	}
	if found > 0 {
		deltas[state.CounterTotalUpdatesFound] = int64(found)
		deltas[state.UpdatesCounter(kind)] = int64(found)
	}
	if err := o.store.IncrementCounters(ctx, deltas); err != nil {
		o.logger.WithError(err).Warn("failed to update counters", map[string]interface{}{
			"record_kind": string(kind),
		})
	}

	o.logger.Info("pass complete", map[string]interface{}{
		"record_kind":   string(kind),
		"updates_found": found,
	})
	return nil
}

// reportFailures sends one batched MEDIUM alert per pass listing up to
// maxFailuresShown failure contexts.
func (o *Orchestrator) reportFailures(ctx context.Context, kind state.Kind, total int, failures []*errors.StandardError) {
	if len(failures) == 0 {
		return
	}

	shown := failures
	if len(shown) > maxFailuresShown {
		shown = shown[:maxFailuresShown]
	}

	lines := make([]string, 0, len(shown))
	for _, f := range shown {
		line := fmt.Sprintf("[%s] %s", f.Code, f.Message)
		if ctxStr := f.FormatContext(); ctxStr != "" {
			line += " (" + ctxStr + ")"
		}
		lines = append(lines, line)
	}

	message := fmt.Sprintf(
		"%d of %d %s failed to sync (showing %d):\n%s",
		len(failures), total, kind, len(shown), strings.Join(lines, "\n"),
	)

	o.notifier.Report(ctx, errors.SeverityMedium, string(kind)+"-sync", message, map[string]interface{}{
		"record_kind":  string(kind),
		"failed_count": len(failures),
	})
}

// Stats returns the lifetime counters and current cursors for the stats
// endpoint.
func (o *Orchestrator) Stats(ctx context.Context) (map[string]interface{}, error) {
	counters, err := o.store.Counters(ctx)
	if err != nil {
		return nil, err
	}

	cursors := map[string]string{}
	for _, kind := range []state.Kind{state.KindCustomers, state.KindJobs, state.KindEstimates} {
		t, err := o.store.LastPoll(ctx, kind)
		if err != nil {
			continue
		}
		cursors[string(kind)] = t.UTC().Format(time.RFC3339)
	}

	return map[string]interface{}{
		"counters": counters,
		"cursors":  cursors,
	}, nil
}
