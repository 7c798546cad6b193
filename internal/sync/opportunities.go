// internal/sync/opportunities.go
package sync

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/nonstopautomation/service-fusion/internal/common/errors"
	"github.com/nonstopautomation/service-fusion/internal/common/logger"
	"github.com/nonstopautomation/service-fusion/internal/common/notify"
	"github.com/nonstopautomation/service-fusion/internal/gohighlevel"
	"github.com/nonstopautomation/service-fusion/internal/models"
)

const (
	// statusEstimateWon marks an estimate the customer accepted. Winning an
	// estimate makes the platform clone it into a brand new job.
	statusEstimateWon = "Estimate Won"

	// conversionWindow bounds how far back the conversion detector looks for
	// the won estimate behind a freshly created job.
	conversionWindow = 2 * time.Hour

	opportunityStatusOpen = "open"
)

// CustomerGetter fetches a customer referenced by a work order.
type CustomerGetter interface {
	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)
}

// EstimateLister is the slice of the record lister the conversion detector
// needs.
type EstimateLister interface {
	ListUpdatedEstimates(ctx context.Context, since time.Time, maxResults int) ([]models.Estimate, error)
}

// OpportunityAPI is the opportunity surface of the CRM client.
type OpportunityAPI interface {
	FindOpportunityByWorkOrderID(ctx context.Context, contactID, fieldID, workOrderID string) (*models.TargetOpportunity, error)
	CreateOpportunity(ctx context.Context, req *gohighlevel.OpportunityCreateRequest) (*models.TargetOpportunity, error)
	UpdateOpportunityStage(ctx context.Context, opportunityID, stageID string) error
	UpdateOpportunityCustomField(ctx context.Context, opportunityID, fieldKey, value string) error
}

// OpportunitySyncer mirrors jobs and estimates into pipeline opportunities.
type OpportunitySyncer struct {
	source    CustomerGetter
	estimates EstimateLister
	crm       OpportunityAPI
	contacts  *ContactSyncer
	stages    *StageMap

	pipelineID       string
	workOrderFieldID string
	workOrderKey     string
	conversionLimit  int
	location         *time.Location

	notifier notify.Notifier
	logger   logger.Logger
}

type OpportunitySyncerOptions struct {
	Source           CustomerGetter
	Estimates        EstimateLister
	CRM              OpportunityAPI
	Contacts         *ContactSyncer
	Stages           *StageMap
	PipelineID       string
	WorkOrderFieldID string
	WorkOrderKey     string
	ConversionLimit  int
	Location         *time.Location
	Notifier         notify.Notifier
	Logger           logger.Logger
}

func NewOpportunitySyncer(opts OpportunitySyncerOptions) *OpportunitySyncer {
	if opts.ConversionLimit == 0 {
		opts.ConversionLimit = 100
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &OpportunitySyncer{
		source:           opts.Source,
		estimates:        opts.Estimates,
		crm:              opts.CRM,
		contacts:         opts.Contacts,
		stages:           opts.Stages,
		pipelineID:       opts.PipelineID,
		workOrderFieldID: opts.WorkOrderFieldID,
		workOrderKey:     opts.WorkOrderKey,
		conversionLimit:  opts.ConversionLimit,
		location:         opts.Location,
		notifier:         opts.Notifier,
		logger:           opts.Logger,
	}
}

// SyncWorkOrder mirrors one job or estimate into the pipeline.
//
// For jobs that were just created, the syncer first checks whether the job is
// really a converted estimate; if so, the estimate's opportunity is re-pointed
// at the job instead of creating a duplicate.
func (s *OpportunitySyncer) SyncWorkOrder(ctx context.Context, wo models.WorkOrder) Outcome {
	woID := strconv.FormatInt(wo.WorkOrderID(), 10)
	log := s.logger.WithFields(map[string]interface{}{
		"work_order_id":     wo.WorkOrderID(),
		"work_order_number": wo.WorkOrderNumber(),
		"record_kind":       string(wo.WorkOrderKind()),
	})

	var convertedFrom *models.Estimate
	if job, ok := wo.(*models.Job); ok && job.IsFreshlyCreated() {
		estimate, err := s.findConvertedEstimate(ctx, job)
		if err != nil {
			// A failed lookup falls through to the normal new-job path. The
			// worst case is a duplicate opportunity, which beats dropping the
			// job from the pipeline entirely.
			log.WithError(err).Warn("conversion lookup failed, treating job as new", nil)
		}
		convertedFrom = estimate
	}

	stageID, ok := s.stages.Lookup(wo.WorkOrderStatus())
	if !ok {
		log.Debug("status has no stage mapping, skipping", map[string]interface{}{
			"status": wo.WorkOrderStatus(),
		})
		return Skipped(fmt.Sprintf("no stage mapping for status %q", wo.WorkOrderStatus()))
	}

	customer, err := s.source.GetCustomer(ctx, wo.WorkOrderCustomerID())
	if err != nil {
		return Failed(errors.NewOpportunitySyncError(woID, wo.WorkOrderNumber(), err))
	}
	if customer == nil {
		return Failed(errors.NewCustomerNotFoundError(
			woID, wo.WorkOrderNumber(), strconv.FormatInt(wo.WorkOrderCustomerID(), 10)))
	}

	contact, outcome := s.contacts.ResolveOrCreate(ctx, customer)
	if outcome.Result != ResultSynced {
		return outcome
	}

	opportunity, err := s.resolveOpportunity(ctx, contact.ID, woID, convertedFrom, log)
	if err != nil {
		return Failed(errors.NewOpportunitySyncError(woID, wo.WorkOrderNumber(), err))
	}

	if opportunity == nil {
		if err := s.createOpportunity(ctx, wo, contact.ID, stageID, woID); err != nil {
			return Failed(errors.NewOpportunitySyncError(woID, wo.WorkOrderNumber(), err))
		}
		log.Info("created opportunity", map[string]interface{}{"stage_id": stageID})
		return Synced("created opportunity")
	}

	if opportunity.PipelineStageID == stageID {
		return Synced("opportunity already in stage")
	}

	if err := s.crm.UpdateOpportunityStage(ctx, opportunity.ID, stageID); err != nil {
		return Failed(errors.NewOpportunitySyncError(woID, wo.WorkOrderNumber(), err))
	}
	log.Info("moved opportunity stage", map[string]interface{}{
		"opportunity_id": opportunity.ID,
		"stage_id":       stageID,
	})
	return Synced("updated opportunity stage")
}

// findConvertedEstimate looks for the won estimate a freshly created job was
// cloned from: same customer, won, and an updated_at identical to the job's.
// The platform stamps both records with the same wall clock during the
// conversion, so the raw strings are compared byte for byte.
//
// The lookup window is anchored at the job's creation time, not the current
// time. A job can be discovered well after it was created (first run with a
// long lookback, recovery after downtime) and its estimate still has to be
// found.
func (s *OpportunitySyncer) findConvertedEstimate(ctx context.Context, job *models.Job) (*models.Estimate, error) {
	since := time.Now().UTC().Add(-conversionWindow)
	if created, err := job.CreatedTime(s.location); err == nil {
		since = created.Add(-conversionWindow)
	}

	estimates, err := s.estimates.ListUpdatedEstimates(ctx, since, s.conversionLimit)
	if err != nil {
		return nil, fmt.Errorf("conversion lookup failed: %w", err)
	}

	for i := range estimates {
		est := &estimates[i]
		if est.CustomerID != job.CustomerID {
			continue
		}
		if est.Status != statusEstimateWon {
			continue
		}
		if est.UpdatedAt != job.UpdatedAt {
			continue
		}
		return est, nil
	}
	return nil, nil
}

// resolveOpportunity finds the opportunity to update. A converted estimate's
// opportunity is re-pointed at the job before being returned, so the job's
// later updates keep hitting the same opportunity.
func (s *OpportunitySyncer) resolveOpportunity(ctx context.Context, contactID, woID string, convertedFrom *models.Estimate, log logger.Logger) (*models.TargetOpportunity, error) {
	if convertedFrom != nil {
		estimateID := strconv.FormatInt(convertedFrom.ID, 10)
		opportunity, err := s.crm.FindOpportunityByWorkOrderID(ctx, contactID, s.workOrderFieldID, estimateID)
		if err != nil {
			return nil, err
		}
		if opportunity != nil {
			if err := s.crm.UpdateOpportunityCustomField(ctx, opportunity.ID, s.workOrderKey, woID); err != nil {
				return nil, fmt.Errorf("failed to re-point opportunity %s: %w", opportunity.ID, err)
			}
			log.Info("re-pointed converted estimate opportunity", map[string]interface{}{
				"opportunity_id": opportunity.ID,
				"estimate_id":    convertedFrom.ID,
			})
			return opportunity, nil
		}
		log.Warn("converted estimate has no opportunity, falling back to job lookup", map[string]interface{}{
			"estimate_id": convertedFrom.ID,
		})
	}

	return s.crm.FindOpportunityByWorkOrderID(ctx, contactID, s.workOrderFieldID, woID)
}

func (s *OpportunitySyncer) createOpportunity(ctx context.Context, wo models.WorkOrder, contactID, stageID, woID string) error {
	kindLabel := "Job"
	if wo.WorkOrderKind() == models.KindEstimate {
		kindLabel = "Estimate"
	}

	req := &gohighlevel.OpportunityCreateRequest{
		PipelineID:      s.pipelineID,
		ContactID:       contactID,
		Name:            fmt.Sprintf("SF-%s: %s #%s", woID, kindLabel, wo.WorkOrderNumber()),
		Status:          opportunityStatusOpen,
		PipelineStageID: stageID,
	}
	if s.workOrderFieldID != "" {
		req.CustomFields = []models.CustomFieldValue{
			{ID: s.workOrderFieldID, Value: woID},
		}
	}

	_, err := s.crm.CreateOpportunity(ctx, req)
	return err
}
