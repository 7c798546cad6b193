// internal/models/workorder.go
package models

import "time"

// WorkOrderKind distinguishes the two work order record types.
type WorkOrderKind string

const (
	KindJob      WorkOrderKind = "job"
	KindEstimate WorkOrderKind = "estimate"
)

// WorkOrder is the common surface of jobs and estimates consumed by the
// opportunity sync.
type WorkOrder interface {
	WorkOrderID() int64
	WorkOrderNumber() string
	WorkOrderCustomerID() int64
	WorkOrderStatus() string
	RawUpdatedAt() string
	WorkOrderKind() WorkOrderKind
}

// Job is a scheduled work order in the field service API.
type Job struct {
	ID           int64  `json:"id"`
	Number       string `json:"number"`
	CustomerID   int64  `json:"customer_id"`
	CustomerName string `json:"customer_name,omitempty"`
	Status       string `json:"status"`
	Description  string `json:"description,omitempty"`
	TechNotes    string `json:"tech_notes,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

func (j *Job) WorkOrderID() int64           { return j.ID }
func (j *Job) WorkOrderNumber() string      { return j.Number }
func (j *Job) WorkOrderCustomerID() int64   { return j.CustomerID }
func (j *Job) WorkOrderStatus() string      { return j.Status }
func (j *Job) RawUpdatedAt() string         { return j.UpdatedAt }
func (j *Job) WorkOrderKind() WorkOrderKind { return KindJob }

// UpdatedTime parses updated_at in the account's timezone and returns UTC.
func (j *Job) UpdatedTime(loc *time.Location) (time.Time, error) {
	return ParseSourceTime(j.UpdatedAt, loc)
}

// CreatedTime parses created_at in the account's timezone and returns UTC.
func (j *Job) CreatedTime(loc *time.Location) (time.Time, error) {
	return ParseSourceTime(j.CreatedAt, loc)
}

// IsFreshlyCreated reports whether the job has never been modified since
// creation. Used to detect jobs that were just converted from estimates.
func (j *Job) IsFreshlyCreated() bool {
	return j.CreatedAt != "" && j.CreatedAt == j.UpdatedAt
}

// Estimate is a quote work order in the field service API.
type Estimate struct {
	ID           int64  `json:"id"`
	Number       string `json:"number"`
	CustomerID   int64  `json:"customer_id"`
	CustomerName string `json:"customer_name,omitempty"`
	Status       string `json:"status"`
	Description  string `json:"description,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

func (e *Estimate) WorkOrderID() int64           { return e.ID }
func (e *Estimate) WorkOrderNumber() string      { return e.Number }
func (e *Estimate) WorkOrderCustomerID() int64   { return e.CustomerID }
func (e *Estimate) WorkOrderStatus() string      { return e.Status }
func (e *Estimate) RawUpdatedAt() string         { return e.UpdatedAt }
func (e *Estimate) WorkOrderKind() WorkOrderKind { return KindEstimate }

// UpdatedTime parses updated_at in the account's timezone and returns UTC.
func (e *Estimate) UpdatedTime(loc *time.Location) (time.Time, error) {
	return ParseSourceTime(e.UpdatedAt, loc)
}

// JobList is a page of jobs with the API's paging envelope.
type JobList struct {
	Items []Job    `json:"items"`
	Meta  PageMeta `json:"_meta"`
}

// EstimateList is a page of estimates with the API's paging envelope.
type EstimateList struct {
	Items []Estimate `json:"items"`
	Meta  PageMeta   `json:"_meta"`
}
