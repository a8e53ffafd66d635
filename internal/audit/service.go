// Package audit orchestrates one reconciliation pass: snapshot the upload
// slots, aggregate both sides, compare, evaluate the rule set, and store
// the ranked result under a run ID. Every run recomputes the full derived
// set from the snapshot; nothing carries over from earlier runs, so
// re-uploading a file can never double-count issues.
package audit

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"parcel-audit/internal/aggregate"
	"parcel-audit/internal/compare"
	"parcel-audit/internal/domain"
	"parcel-audit/internal/fields"
	"parcel-audit/internal/normalize"
	"parcel-audit/internal/rules"
	"parcel-audit/internal/store"
	"parcel-audit/pkg/logger"
)

// ErrCarrierUploadRequired blocks an audit until a carrier invoice has been
// uploaded. A missing POS side is allowed: the carrier-only rules still
// apply and every key simply reads as CarrierOnly.
var ErrCarrierUploadRequired = errors.New("carrier invoice upload is required before running an audit")

type Service interface {
	Run() (*domain.AuditRun, error)
	GetRun(runID string) (*domain.AuditRun, bool)
}

type service struct {
	slots     store.SlotStore
	runs      store.RunStore
	rules     *rules.Ruleset
	tolerance decimal.Decimal
}

func NewService(slots store.SlotStore, runs store.RunStore, rs *rules.Ruleset, tolerance decimal.Decimal) Service {
	if tolerance.Sign() <= 0 {
		tolerance = compare.DefaultTolerance
	}
	return &service{
		slots:     slots,
		runs:      runs,
		rules:     rs,
		tolerance: tolerance,
	}
}

func (s *service) Run() (*domain.AuditRun, error) {
	state := s.slots.Snapshot()
	if !state.HasCarrier || state.Carrier.RecordCount() == 0 {
		return nil, ErrCarrierUploadRequired
	}

	runID := uuid.New().String()
	logger.GetLogger().WithField("run_id", runID).Info("Starting audit run")

	carrierRecords := state.Carrier.AllRecords()
	posRecords := state.POS.AllRecords()

	resolver := fields.NewResolver()
	evaluator := rules.NewEvaluator(s.rules, resolver)

	carrier := state.Carrier.Carrier
	if carrier == "" {
		carrier = evaluator.DetectCarrier(carrierRecords)
	}

	// Aggregate each side, then run both comparison views.
	carrierIdx := aggregate.Build(resolver, carrierRecords,
		fields.CarrierTrackingNumber, fields.BilledAmount, fields.InvoiceNumber)
	posIdx := aggregate.Build(resolver, posRecords,
		fields.POSTrackingNumber, fields.POSAmount, nil)
	posFlags := aggregate.BuildFlags(resolver, posRecords,
		fields.POSTrackingNumber, fields.Residential, normalize.ParseResidential)

	discrepancies := compare.Amounts(carrierIdx, posIdx, s.tolerance)
	membership := compare.Membership(carrierIdx, posIdx)

	// Rules run over the invoice side only; the POS side contributes the
	// aggregated amounts and the address flags above.
	key := fields.CarrierTrackingNumber
	late := evaluator.Lateness(carrier, key, carrierRecords)

	var issues []domain.ChargeIssue
	issues = append(issues, evaluator.DuplicateCharges(carrier, key, carrierRecords)...)
	issues = append(issues, evaluator.Surcharges(carrier, key, carrierRecords, posFlags)...)
	issues = append(issues, evaluator.FuelAnomaly(carrier, key, carrierRecords)...)
	issues = append(issues, evaluator.DimWeight(carrier, key, carrierRecords)...)

	run := &domain.AuditRun{
		RunID:          runID,
		CreatedAt:      time.Now(),
		Tolerance:      s.tolerance,
		Discrepancies:  discrepancies,
		Membership:     membership,
		LateDeliveries: late,
		ChargeIssues:   issues,
		Summary: buildSummary(
			len(carrierRecords), len(posRecords),
			discrepancies, membership, late, issues),
	}
	s.runs.Put(run)

	logger.GetLogger().WithFields(logrus.Fields{
		"run_id":          runID,
		"keys_compared":   run.Summary.KeysCompared,
		"overbilled":      run.Summary.Overbilled,
		"underbilled":     run.Summary.Underbilled,
		"late_deliveries": run.Summary.LateDeliveries,
		"charge_issues":   run.Summary.ChargeIssues,
	}).Info("Audit run completed")

	return run, nil
}

func (s *service) GetRun(runID string) (*domain.AuditRun, bool) {
	return s.runs.Get(runID)
}

func buildSummary(
	carrierRecords, posRecords int,
	discrepancies []domain.Discrepancy,
	membership []domain.MembershipRecord,
	late []domain.LateDeliveryRecord,
	issues []domain.ChargeIssue,
) domain.AuditSummary {
	summary := domain.AuditSummary{
		CarrierRecords:   carrierRecords,
		POSRecords:       posRecords,
		KeysCompared:     len(discrepancies),
		LateDeliveries:   len(late),
		ChargeIssues:     len(issues),
		TotalOverbilled:  decimal.Zero,
		TotalUnderbilled: decimal.Zero,
	}

	for _, d := range discrepancies {
		switch d.Classification {
		case domain.ClassMatchOK:
			summary.Matched++
		case domain.ClassOverbilled:
			summary.Overbilled++
			summary.TotalOverbilled = summary.TotalOverbilled.Add(d.Difference)
		case domain.ClassUnderbilled:
			summary.Underbilled++
			summary.TotalUnderbilled = summary.TotalUnderbilled.Add(d.Difference.Abs())
		}
	}
	for _, m := range membership {
		switch m.Side {
		case domain.MemberCarrierOnly:
			summary.CarrierOnly++
		case domain.MemberPOSOnly:
			summary.POSOnly++
		}
	}
	return summary
}
