// internal/servicefusion/lister.go
package servicefusion

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nonstopautomation/service-fusion/internal/common/errors"
	"github.com/nonstopautomation/service-fusion/internal/common/logger"
	"github.com/nonstopautomation/service-fusion/internal/common/notify"
	"github.com/nonstopautomation/service-fusion/internal/models"
)

// maxBadRecordsShown caps how many bad records a single notification lists.
const maxBadRecordsShown = 10

// API is the listing surface of the Service Fusion client used by the Lister.
type API interface {
	ListCustomers(ctx context.Context, page, perPage int) (*models.CustomerList, error)
	ListJobs(ctx context.Context, page, perPage int) (*models.JobList, error)
	ListEstimates(ctx context.Context, page, perPage int) (*models.EstimateList, error)
}

// Lister scans the API newest-first and returns every record updated after a
// cursor. Records whose updated_at cannot be parsed are skipped and reported
// once per scan as a batched data quality notice.
//
// The scan assumes the API honors sort=-updated_at. A page that arrives out
// of order can end the scan early.
type Lister struct {
	api      API
	location *time.Location
	pageSize int
	notifier notify.Notifier
	logger   logger.Logger
}

// badRecord captures one record excluded from a scan.
type badRecord struct {
	ID           int64
	Number       string
	CustomerName string
	Page         int
	Err          *errors.StandardError
}

func NewLister(api API, location *time.Location, pageSize int, notifier notify.Notifier, log logger.Logger) *Lister {
	return &Lister{
		api:      api,
		location: location,
		pageSize: pageSize,
		notifier: notifier,
		logger:   log,
	}
}

// ListUpdatedCustomers returns customers updated strictly after since, newest
// first, capped at maxResults.
func (l *Lister) ListUpdatedCustomers(ctx context.Context, since time.Time, maxResults int) ([]models.Customer, error) {
	var (
		results []models.Customer
		bad     []badRecord
	)
	defer func() { l.reportBadRecords(ctx, "customers", bad) }()

	for page := 1; ; page++ {
		list, err := l.api.ListCustomers(ctx, page, l.pageSize)
		if err != nil {
			return nil, err
		}

		for i := range list.Items {
			customer := &list.Items[i]
			updated, err := customer.UpdatedTime()
			if err != nil {
				bad = append(bad, badRecord{
					ID:           customer.ID,
					CustomerName: customer.CustomerName,
					Page:         page,
					Err:          badTimestamp(customer.ID, customer.UpdatedAt, err),
				})
				continue
			}

			if !updated.After(since) {
				return results, nil
			}

			results = append(results, *customer)
			if len(results) >= maxResults {
				l.logger.Warn("hit max results during customer scan", map[string]interface{}{
					"max_results": maxResults,
				})
				return results, nil
			}
		}

		if len(list.Items) < l.pageSize {
			return results, nil
		}
	}
}

// ListUpdatedJobs returns jobs updated strictly after since, newest first,
// capped at maxResults.
func (l *Lister) ListUpdatedJobs(ctx context.Context, since time.Time, maxResults int) ([]models.Job, error) {
	var (
		results []models.Job
		bad     []badRecord
	)
	defer func() { l.reportBadRecords(ctx, "jobs", bad) }()

	for page := 1; ; page++ {
		list, err := l.api.ListJobs(ctx, page, l.pageSize)
		if err != nil {
			return nil, err
		}

		for i := range list.Items {
			job := &list.Items[i]
			updated, err := job.UpdatedTime(l.location)
			if err != nil {
				bad = append(bad, badRecord{
					ID:           job.ID,
					Number:       job.Number,
					CustomerName: job.CustomerName,
					Page:         page,
					Err:          badTimestamp(job.ID, job.UpdatedAt, err),
				})
				continue
			}

			if !updated.After(since) {
				return results, nil
			}

			results = append(results, *job)
			if len(results) >= maxResults {
				l.logger.Warn("hit max results during job scan", map[string]interface{}{
					"max_results": maxResults,
				})
				return results, nil
			}
		}

		if len(list.Items) < l.pageSize {
			return results, nil
		}
	}
}

// ListUpdatedEstimates returns estimates updated strictly after since, newest
// first, capped at maxResults.
func (l *Lister) ListUpdatedEstimates(ctx context.Context, since time.Time, maxResults int) ([]models.Estimate, error) {
	var (
		results []models.Estimate
		bad     []badRecord
	)
	defer func() { l.reportBadRecords(ctx, "estimates", bad) }()

	for page := 1; ; page++ {
		list, err := l.api.ListEstimates(ctx, page, l.pageSize)
		if err != nil {
			return nil, err
		}

		for i := range list.Items {
			estimate := &list.Items[i]
			updated, err := estimate.UpdatedTime(l.location)
			if err != nil {
				bad = append(bad, badRecord{
					ID:           estimate.ID,
					Number:       estimate.Number,
					CustomerName: estimate.CustomerName,
					Page:         page,
					Err:          badTimestamp(estimate.ID, estimate.UpdatedAt, err),
				})
				continue
			}

			if !updated.After(since) {
				return results, nil
			}

			results = append(results, *estimate)
			if len(results) >= maxResults {
				l.logger.Warn("hit max results during estimate scan", map[string]interface{}{
					"max_results": maxResults,
				})
				return results, nil
			}
		}

		if len(list.Items) < l.pageSize {
			return results, nil
		}
	}
}

// reportBadRecords sends a single LOW severity notice summarizing every
// record excluded from the scan.
func (l *Lister) reportBadRecords(ctx context.Context, kind string, bad []badRecord) {
	if len(bad) == 0 {
		return
	}

	shown := bad
	if len(shown) > maxBadRecordsShown {
		shown = shown[:maxBadRecordsShown]
	}

	lines := make([]string, 0, len(shown))
	for _, b := range shown {
		line := fmt.Sprintf("id=%d page=%d %s", b.ID, b.Page, b.Err.Details)
		if b.Number != "" {
			line = fmt.Sprintf("id=%d number=%s page=%d %s", b.ID, b.Number, b.Page, b.Err.Details)
		}
		if b.CustomerName != "" {
			line += fmt.Sprintf(" customer=%q", b.CustomerName)
		}
		lines = append(lines, line)
	}

	message := fmt.Sprintf(
		"%d %s skipped due to unparseable updated_at (showing %d):\n%s",
		len(bad), kind, len(shown), strings.Join(lines, "\n"),
	)

	l.notifier.Report(ctx, errors.SeverityLow, "record-lister", message, map[string]interface{}{
		"record_kind": kind,
		"bad_count":   len(bad),
	})
}

func badTimestamp(id int64, raw string, err error) *errors.StandardError {
	return errors.NewBadRecordTimestampError(strconv.FormatInt(id, 10), raw, err)
}
