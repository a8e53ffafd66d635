// Package export serializes audit results into dispute-ready artifacts:
// delimited text per result view, and a paginated PDF report of the whole
// run. Filenames are stamped with the export date.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"parcel-audit/internal/domain"
)

// View names accepted by CSV, matching the export endpoint's query values.
const (
	ViewDiscrepancies  = "discrepancies"
	ViewMembership     = "membership"
	ViewLateDeliveries = "late_deliveries"
	ViewChargeIssues   = "charge_issues"
)

const timestampLayout = "2006-01-02 15:04:05"

// Filename stamps an artifact name with the current date.
func Filename(purpose, ext string) string {
	return fmt.Sprintf("%s_%s.%s", purpose, time.Now().Format("2006-01-02"), ext)
}

// CSV serializes one view of a run. The default view, for an empty name,
// is the discrepancy list.
func CSV(run *domain.AuditRun, view string) (filename string, data []byte, err error) {
	switch view {
	case ViewDiscrepancies, "":
		data, err = DiscrepanciesCSV(run.Discrepancies)
		return Filename(ViewDiscrepancies, "csv"), data, err
	case ViewMembership:
		data, err = MembershipCSV(run.Membership)
		return Filename(ViewMembership, "csv"), data, err
	case ViewLateDeliveries:
		data, err = LateDeliveriesCSV(run.LateDeliveries)
		return Filename(ViewLateDeliveries, "csv"), data, err
	case ViewChargeIssues:
		data, err = ChargeIssuesCSV(run.ChargeIssues)
		return Filename(ViewChargeIssues, "csv"), data, err
	}
	return "", nil, fmt.Errorf("unknown export view %q", view)
}

// DiscrepanciesCSV serializes the amount-comparison view.
func DiscrepanciesCSV(items []domain.Discrepancy) ([]byte, error) {
	rows := make([][]string, 0, len(items))
	for _, d := range items {
		rows = append(rows, []string{
			d.TrackingNumber,
			d.CarrierAmount.StringFixed(2),
			d.POSAmount.StringFixed(2),
			d.Difference.StringFixed(2),
			string(d.Classification),
			d.InvoiceNumber,
		})
	}
	return writeCSV([]string{
		"Tracking Number", "Carrier Amount", "POS Amount",
		"Difference", "Classification", "Invoice Number",
	}, rows)
}

// MembershipCSV serializes the set-based comparison view.
func MembershipCSV(items []domain.MembershipRecord) ([]byte, error) {
	rows := make([][]string, 0, len(items))
	for _, m := range items {
		rows = append(rows, []string{
			m.TrackingNumber,
			string(m.Side),
			m.Amount.StringFixed(2),
		})
	}
	return writeCSV([]string{"Tracking Number", "Side", "Amount"}, rows)
}

// LateDeliveriesCSV serializes service-guarantee violations.
func LateDeliveriesCSV(items []domain.LateDeliveryRecord) ([]byte, error) {
	rows := make([][]string, 0, len(items))
	for _, l := range items {
		rows = append(rows, []string{
			l.TrackingNumber,
			string(l.Carrier),
			l.Service,
			l.ShippedAt.Format("2006-01-02"),
			l.PromisedBy.Format(timestampLayout),
			l.DeliveredAt.Format(timestampLayout),
			l.BilledAmount.StringFixed(2),
		})
	}
	return writeCSV([]string{
		"Tracking Number", "Carrier", "Service",
		"Ship Date", "Promised By", "Delivered At", "Billed Amount",
	}, rows)
}

// ChargeIssuesCSV serializes detected charge anomalies.
func ChargeIssuesCSV(items []domain.ChargeIssue) ([]byte, error) {
	rows := make([][]string, 0, len(items))
	for _, c := range items {
		rows = append(rows, []string{
			c.TrackingNumber,
			string(c.Carrier),
			c.Description,
			c.Amount.StringFixed(2),
			c.Note,
		})
	}
	return writeCSV([]string{
		"Tracking Number", "Carrier", "Description", "Amount", "Note",
	}, rows)
}

func writeCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
