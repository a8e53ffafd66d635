package export_test

import (
	"bytes"
	"encoding/csv"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"parcel-audit/internal/domain"
	"parcel-audit/internal/export"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleRun() *domain.AuditRun {
	return &domain.AuditRun{
		RunID:     "run-1",
		CreatedAt: time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC),
		Tolerance: d("0.01"),
		Discrepancies: []domain.Discrepancy{
			{
				TrackingNumber: "1Z1",
				CarrierAmount:  d("12.50"),
				POSAmount:      d("10.00"),
				Difference:     d("2.50"),
				Classification: domain.ClassOverbilled,
				InvoiceNumber:  "INV-7",
			},
			{
				TrackingNumber: "1Z2",
				CarrierAmount:  d("8.00"),
				POSAmount:      d("8.00"),
				Difference:     d("0"),
				Classification: domain.ClassMatchOK,
			},
		},
		Membership: []domain.MembershipRecord{
			{TrackingNumber: "1Z3", Side: domain.MemberCarrierOnly, Amount: d("4.00")},
		},
		LateDeliveries: []domain.LateDeliveryRecord{
			{
				TrackingNumber: "1Z4",
				Carrier:        domain.CarrierUPS,
				Service:        "NEXT DAY AIR",
				ShippedAt:      time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
				PromisedBy:     time.Date(2024, 1, 8, 10, 30, 0, 0, time.UTC),
				DeliveredAt:    time.Date(2024, 1, 8, 11, 0, 0, 0, time.UTC),
				BilledAmount:   d("41.25"),
			},
		},
		ChargeIssues: []domain.ChargeIssue{
			{
				TrackingNumber: "1Z5",
				Carrier:        domain.CarrierUPS,
				Description:    "RESIDENTIAL SURCHARGE",
				Amount:         d("4.55"),
				Note:           "Residential Surcharge; POS records this address as business",
			},
		},
		Summary: domain.AuditSummary{
			CarrierRecords:   5,
			POSRecords:       4,
			KeysCompared:     2,
			Matched:          1,
			Overbilled:       1,
			CarrierOnly:      1,
			TotalOverbilled:  d("2.50"),
			TotalUnderbilled: d("0"),
			LateDeliveries:   1,
			ChargeIssues:     1,
		},
	}
}

func TestDiscrepanciesCSVRoundTrip(t *testing.T) {
	run := sampleRun()

	data, err := export.DiscrepanciesCSV(run.Discrepancies)
	assert.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	assert.NoError(t, err)
	assert.Len(t, rows, 3)

	assert.Equal(t, []string{
		"Tracking Number", "Carrier Amount", "POS Amount",
		"Difference", "Classification", "Invoice Number",
	}, rows[0])
	assert.Equal(t, []string{"1Z1", "12.50", "10.00", "2.50", "Overbilled", "INV-7"}, rows[1])
	assert.Equal(t, []string{"1Z2", "8.00", "8.00", "0.00", "Match – OK", ""}, rows[2])
}

func TestLateDeliveriesCSVTimestamps(t *testing.T) {
	run := sampleRun()

	data, err := export.LateDeliveriesCSV(run.LateDeliveries)
	assert.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	assert.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, []string{
		"1Z4", "UPS", "NEXT DAY AIR",
		"2024-01-05", "2024-01-08 10:30:00", "2024-01-08 11:00:00", "41.25",
	}, rows[1])
}

func TestCSVViewDispatch(t *testing.T) {
	run := sampleRun()

	name, data, err := export.CSV(run, "")
	assert.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^discrepancies_\d{4}-\d{2}-\d{2}\.csv$`), name)
	assert.Contains(t, string(data), "1Z1")

	name, data, err = export.CSV(run, export.ViewMembership)
	assert.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^membership_\d{4}-\d{2}-\d{2}\.csv$`), name)
	assert.Contains(t, string(data), "CarrierOnly")

	name, data, err = export.CSV(run, export.ViewChargeIssues)
	assert.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^charge_issues_\d{4}-\d{2}-\d{2}\.csv$`), name)
	assert.Contains(t, string(data), "RESIDENTIAL SURCHARGE")

	_, _, err = export.CSV(run, "spreadsheet")
	assert.Error(t, err)
}

func TestCSVEmptyViewStillHasHeader(t *testing.T) {
	run := &domain.AuditRun{RunID: "empty"}

	_, data, err := export.CSV(run, export.ViewLateDeliveries)
	assert.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	assert.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, "Tracking Number", rows[0][0])
}

func TestPDFSmoke(t *testing.T) {
	name, data, err := export.PDF(sampleRun())
	assert.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^audit_report_\d{4}-\d{2}-\d{2}\.pdf$`), name)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")), "output is not a PDF stream")
}

func TestPDFPaginatesLongRuns(t *testing.T) {
	run := sampleRun()
	for i := 0; i < 300; i++ {
		run.Discrepancies = append(run.Discrepancies, domain.Discrepancy{
			TrackingNumber: "1Z-FILL",
			CarrierAmount:  d("10.00"),
			POSAmount:      d("9.00"),
			Difference:     d("1.00"),
			Classification: domain.ClassOverbilled,
		})
	}

	_, data, err := export.PDF(run)
	assert.NoError(t, err)

	// Each page object carries a "/Type /Page" marker ("/Type /Pages" adds
	// one more); 300 body lines cannot fit a single A4 page.
	pages := bytes.Count(data, []byte("/Type /Page"))
	assert.Greater(t, pages, 2)
}
