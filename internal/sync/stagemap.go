// internal/sync/stagemap.go
package sync

import (
	"github.com/nonstopautomation/service-fusion/internal/common/config"
)

// StageMap translates a work order status into a pipeline stage id. The
// table covers the union of job and estimate statuses; a status with no entry
// means the record should be skipped, not that anything is wrong.
type StageMap struct {
	table map[string]string
}

// NewStageMap builds the translation table from the configured stage ids.
// Statuses whose stage id is unconfigured are left out of the table so they
// behave like unknown statuses.
func NewStageMap(stages config.StagesConfig) *StageMap {
	entries := []struct {
		status  string
		stageID string
	}{
		{"Unscheduled", stages.JobScheduled},
		{"Scheduled", stages.JobScheduled},
		{"Dispatched", stages.JobScheduled},

		{"Partially Completed", stages.JobInProgress},
		{"Delayed", stages.JobInProgress},
		{"On The Way", stages.JobInProgress},
		{"On Site", stages.JobInProgress},
		{"Started", stages.JobInProgress},
		{"Paused", stages.JobInProgress},
		{"Resumed", stages.JobInProgress},

		{"Cancelled", stages.Canceled},
		{"Completed", stages.ReviewReferral},

		{"Estimate Requested", stages.EstimateScheduled},
		{"Estimate Provided", stages.EstimateSent},
		{"Estimate Accepted", stages.EstimateStop},
		{"Estimate Won", stages.EstimateStop},
		// The platform reports a lost estimate as plain "Lost".
		{"Lost", stages.EstimateStop},
		{"Estimate Lost", stages.EstimateStop},
	}

	table := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.stageID != "" {
			table[e.status] = e.stageID
		}
	}
	return &StageMap{table: table}
}

// Lookup returns the stage id for a status. ok is false when the status has
// no mapping and the record should be skipped.
func (m *StageMap) Lookup(status string) (stageID string, ok bool) {
	stageID, ok = m.table[status]
	return stageID, ok
}

// Len returns the number of mapped statuses.
func (m *StageMap) Len() int {
	return len(m.table)
}
