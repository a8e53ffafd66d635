package rules_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"parcel-audit/internal/aggregate"
	"parcel-audit/internal/domain"
	"parcel-audit/internal/fields"
	"parcel-audit/internal/rules"
)

func record(pairs ...string) domain.RawRecord {
	r := domain.RawRecord{Fields: map[string]string{}}
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Headers = append(r.Headers, pairs[i])
		r.Fields[pairs[i]] = pairs[i+1]
	}
	return r
}

func evaluator() *rules.Evaluator {
	return rules.NewEvaluator(rules.Default(), nil)
}

func TestMatchServicePrefersSpecificRow(t *testing.T) {
	rs := rules.Default()

	// "2ND DAY AIR AM" precedes "2ND DAY AIR" in the table; free text
	// containing both must resolve to the earlier, more specific row.
	p, ok := rs.MatchService(domain.CarrierUPS, "UPS 2ND DAY AIR AM COMMERCIAL")
	assert.True(t, ok)
	assert.Equal(t, "2ND DAY AIR AM", p.Match)
	assert.Equal(t, "12:00", p.Cutoff)

	p, ok = rs.MatchService(domain.CarrierUPS, "ups 2nd day air")
	assert.True(t, ok)
	assert.Equal(t, "2ND DAY AIR", p.Match)

	p, ok = rs.MatchService(domain.CarrierUPS, "next day air saver")
	assert.True(t, ok)
	assert.Equal(t, "NEXT DAY AIR SAVER", p.Match)

	// Ground services carry no commitment.
	_, ok = rs.MatchService(domain.CarrierUPS, "UPS GROUND")
	assert.False(t, ok)

	_, ok = rs.MatchService(domain.CarrierFedEx, "UPS NEXT DAY AIR")
	assert.False(t, ok)
}

func TestAddBusinessDays(t *testing.T) {
	friday := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	saturday := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)
	wednesday := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		rules.AddBusinessDays(friday, 1), "Friday + 1 lands on Monday")
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		rules.AddBusinessDays(friday, 3))
	assert.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		rules.AddBusinessDays(saturday, 1))
	assert.Equal(t, time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC),
		rules.AddBusinessDays(wednesday, 2))
}

func TestLatenessAgainstCutoff(t *testing.T) {
	// Shipped Friday on a one-day air service: the promise is Monday 10:30.
	onTime := record(
		"Tracking Number", "1Z-ONTIME",
		"Service", "NEXT DAY AIR",
		"Ship Date", "1/5/2024",
		"Delivery Date", "1/8/2024",
		"Delivery Time", "09:00",
		"Net Amount", "41.25",
	)
	late := record(
		"Tracking Number", "1Z-LATE",
		"Service", "NEXT DAY AIR",
		"Ship Date", "1/5/2024",
		"Delivery Date", "1/8/2024",
		"Delivery Time", "11:00",
		"Net Amount", "41.25",
	)

	out := evaluator().Lateness(domain.CarrierUPS, fields.CarrierTrackingNumber,
		[]domain.RawRecord{onTime, late})

	assert.Len(t, out, 1)
	hit := out[0]
	assert.Equal(t, "1Z-LATE", hit.TrackingNumber)
	assert.Equal(t, domain.CarrierUPS, hit.Carrier)
	assert.Equal(t, "NEXT DAY AIR", hit.Service)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), hit.ShippedAt)
	assert.Equal(t, time.Date(2024, 1, 8, 10, 30, 0, 0, time.UTC), hit.PromisedBy)
	assert.Equal(t, time.Date(2024, 1, 8, 11, 0, 0, 0, time.UTC), hit.DeliveredAt)
	assert.True(t, hit.BilledAmount.Equal(decimal.RequireFromString("41.25")))
}

func TestLatenessEndOfDayService(t *testing.T) {
	// A date-only delivery is stamped 23:59:59.999. On a service promising
	// end of day, delivery on the promised day must not read as late.
	sameDay := record(
		"Tracking Number", "1Z-OK",
		"Service", "2ND DAY AIR",
		"Ship Date", "1/8/2024",
		"Delivery Date", "1/10/2024",
		"Net Amount", "18.00",
	)
	dayAfter := record(
		"Tracking Number", "1Z-LATE",
		"Service", "2ND DAY AIR",
		"Ship Date", "1/8/2024",
		"Delivery Date", "1/11/2024",
		"Net Amount", "18.00",
	)

	out := evaluator().Lateness(domain.CarrierUPS, fields.CarrierTrackingNumber,
		[]domain.RawRecord{sameDay, dayAfter})

	assert.Len(t, out, 1)
	assert.Equal(t, "1Z-LATE", out[0].TrackingNumber)
}

func TestLatenessSkipsIncompleteRows(t *testing.T) {
	recs := []domain.RawRecord{
		// No tracked service commitment.
		record("Tracking Number", "1Z1", "Service", "GROUND",
			"Ship Date", "1/5/2024", "Delivery Date", "1/20/2024"),
		// No delivery date at all.
		record("Tracking Number", "1Z2", "Service", "NEXT DAY AIR",
			"Ship Date", "1/5/2024"),
		// Unparseable ship date.
		record("Tracking Number", "1Z3", "Service", "NEXT DAY AIR",
			"Ship Date", "someday", "Delivery Date", "1/8/2024"),
		// No key.
		record("Service", "NEXT DAY AIR",
			"Ship Date", "1/5/2024", "Delivery Date", "1/9/2024"),
	}

	out := evaluator().Lateness(domain.CarrierUPS, fields.CarrierTrackingNumber, recs)
	assert.Empty(t, out)
}

func TestLatenessProbesCarrierWhenUnlabeled(t *testing.T) {
	rec := record(
		"Tracking Number", "770000000001",
		"Service", "PRIORITY OVERNIGHT",
		"Ship Date", "1/5/2024",
		"Delivery Date", "1/8/2024",
		"Delivery Time", "14:00",
		"Net Amount", "62.10",
	)

	out := evaluator().Lateness("", fields.CarrierTrackingNumber, []domain.RawRecord{rec})
	assert.Len(t, out, 1)
	assert.Equal(t, domain.CarrierFedEx, out[0].Carrier)
	assert.Equal(t, time.Date(2024, 1, 8, 10, 30, 0, 0, time.UTC), out[0].PromisedBy)
}

func TestDuplicateCharges(t *testing.T) {
	recs := []domain.RawRecord{
		record("Tracking Number", "1Z1",
			"Charge Description", "RESIDENTIAL SURCHARGE", "Charge Amount", "4.55"),
		record("Tracking Number", "1Z1",
			"Charge Description", "RESIDENTIAL SURCHARGE", "Charge Amount", "4.55"),
		// Same description, different amount: a separate group, no issue.
		record("Tracking Number", "1Z1",
			"Charge Description", "RESIDENTIAL SURCHARGE", "Charge Amount", "4.60"),
		// Same charge under a different key: no issue.
		record("Tracking Number", "1Z2",
			"Charge Description", "RESIDENTIAL SURCHARGE", "Charge Amount", "4.55"),
	}

	out := evaluator().DuplicateCharges(domain.CarrierUPS, fields.CarrierTrackingNumber, recs)

	assert.Len(t, out, 1)
	issue := out[0]
	assert.Equal(t, "1Z1", issue.TrackingNumber)
	assert.Equal(t, "RESIDENTIAL SURCHARGE", issue.Description)
	assert.True(t, issue.Amount.Equal(decimal.RequireFromString("4.55")))
	assert.Equal(t, "Possible duplicate charge (2 occurrences)", issue.Note)
}

func TestDuplicateChargesAcrossColumnsOfOneRow(t *testing.T) {
	rec := record("Tracking Number", "1Z1",
		"Charge Description", "FUEL SURCHARGE", "Charge Amount", "1.50",
		"Charge Description 2", "FUEL SURCHARGE", "Charge Amount 2", "1.50",
	)

	out := evaluator().DuplicateCharges(domain.CarrierUPS, fields.CarrierTrackingNumber,
		[]domain.RawRecord{rec})

	assert.Len(t, out, 1)
	assert.Equal(t, "Possible duplicate charge (2 occurrences)", out[0].Note)
}

func TestSurchargesFirstPatternWins(t *testing.T) {
	recs := []domain.RawRecord{
		// Matches both the Saturday and Delivery Area patterns; the earlier
		// list entry labels it.
		record("Tracking Number", "1Z1",
			"Charge Description", "SATURDAY DELIVERY AREA SURCHARGE", "Charge Amount", "16.00"),
		record("Tracking Number", "1Z2",
			"Charge Description", "Fuel Surcharge Adjustment", "Charge Amount", "2.10"),
		record("Tracking Number", "1Z3",
			"Charge Description", "Ground Transportation", "Charge Amount", "9.00"),
	}

	out := evaluator().Surcharges(domain.CarrierUPS, fields.CarrierTrackingNumber, recs, nil)

	assert.Len(t, out, 2)
	assert.Equal(t, "Saturday Delivery", out[0].Note)
	assert.True(t, out[0].Amount.Equal(decimal.RequireFromString("16")))
	assert.Equal(t, "Fuel Surcharge", out[1].Note)
}

func TestSurchargesResidentialMismatch(t *testing.T) {
	recs := []domain.RawRecord{
		record("Tracking Number", "1Z-BUS",
			"Charge Description", "RESIDENTIAL SURCHARGE", "Charge Amount", "4.55"),
		record("Tracking Number", "1Z-RES",
			"Charge Description", "RESIDENTIAL SURCHARGE", "Charge Amount", "4.55"),
		record("Tracking Number", "1Z-UNKNOWN",
			"Charge Description", "RESIDENTIAL SURCHARGE", "Charge Amount", "4.55"),
	}
	posFlags := aggregate.FlagIndex{
		"1Z-BUS": false,
		"1Z-RES": true,
	}

	out := evaluator().Surcharges(domain.CarrierUPS, fields.CarrierTrackingNumber, recs, posFlags)
	assert.Len(t, out, 3)

	notes := map[string]string{}
	for _, issue := range out {
		notes[issue.TrackingNumber] = issue.Note
	}

	assert.Equal(t, "Residential Surcharge; POS records this address as business", notes["1Z-BUS"])
	assert.Equal(t, "Residential Surcharge", notes["1Z-RES"])
	assert.Equal(t, "Residential Surcharge", notes["1Z-UNKNOWN"])
}

func TestSurchargesSuffixPairingSurvivesColumnOrder(t *testing.T) {
	rec := domain.RawRecord{
		Headers: []string{
			"Tracking Number",
			"Charge Description 2", "Charge Amount",
			"Charge Description", "Charge Amount 2",
		},
		Fields: map[string]string{
			"Tracking Number":      "1Z1",
			"Charge Description 2": "FUEL SURCHARGE",
			"Charge Amount 2":      "1.50",
			"Charge Description":   "ADDRESS CORRECTION",
			"Charge Amount":        "3.00",
		},
	}

	out := evaluator().Surcharges(domain.CarrierUPS, fields.CarrierTrackingNumber,
		[]domain.RawRecord{rec}, nil)

	assert.Len(t, out, 2)
	amounts := map[string]string{}
	for _, issue := range out {
		amounts[issue.Note] = issue.Amount.StringFixed(2)
	}
	assert.Equal(t, "1.50", amounts["Fuel Surcharge"])
	assert.Equal(t, "3.00", amounts["Address Correction"])
}

func TestFuelAnomalyFallback(t *testing.T) {
	recs := []domain.RawRecord{
		record("Tracking Number", "1Z-HIGH",
			"Fuel Surcharge", "40.00", "Transportation Charges", "100.00"),
		record("Tracking Number", "1Z-OK",
			"Fuel Surcharge", "10.00", "Transportation Charges", "100.00"),
		record("Tracking Number", "1Z-NEG",
			"Fuel Surcharge", "(2.00)", "Transportation Charges", "50.00"),
		record("Tracking Number", "1Z-ORPHAN",
			"Fuel Surcharge", "5.00", "Transportation Charges", ""),
	}

	out := evaluator().FuelAnomaly(domain.CarrierUPS, fields.CarrierTrackingNumber, recs)

	assert.Len(t, out, 3)
	notes := map[string]string{}
	for _, issue := range out {
		assert.Equal(t, "Fuel Surcharge", issue.Description)
		notes[issue.TrackingNumber] = issue.Note
	}

	assert.Equal(t, "Fuel surcharge is 40.0% of transportation charges", notes["1Z-HIGH"])
	assert.Equal(t, "Negative fuel surcharge", notes["1Z-NEG"])
	assert.Equal(t, "Fuel surcharge with no transportation charge", notes["1Z-ORPHAN"])
}

func TestFuelAnomalySilentWhenItemized(t *testing.T) {
	// Any record shape with itemized charge columns disables the fallback
	// for the whole source.
	recs := []domain.RawRecord{
		record("Tracking Number", "1Z1",
			"Charge Description", "FUEL SURCHARGE", "Charge Amount", "40.00"),
		record("Tracking Number", "1Z2",
			"Fuel Surcharge", "40.00", "Transportation Charges", "100.00"),
	}

	out := evaluator().FuelAnomaly(domain.CarrierUPS, fields.CarrierTrackingNumber, recs)
	assert.Nil(t, out)
}

func TestFuelAnomalySumsPerKey(t *testing.T) {
	// 20 + 20 fuel against 50 + 50 transport is 40% in aggregate.
	recs := []domain.RawRecord{
		record("Tracking Number", "1Z1",
			"Fuel Surcharge", "20.00", "Transportation Charges", "50.00"),
		record("Tracking Number", "1Z1",
			"Fuel Surcharge", "20.00", "Transportation Charges", "50.00"),
	}

	out := evaluator().FuelAnomaly(domain.CarrierUPS, fields.CarrierTrackingNumber, recs)
	assert.Len(t, out, 1)
	assert.True(t, out[0].Amount.Equal(decimal.RequireFromString("40")))
}

func TestDimWeight(t *testing.T) {
	// 12x12x12 at divisor 139 gives 12.43, rounded up to 13.
	flagged := record("Tracking Number", "1Z-PAD",
		"Length", "12", "Width", "12", "Height", "12",
		"Actual Weight", "10", "Billed Weight", "14",
		"Net Amount", "31.80")
	exact := record("Tracking Number", "1Z-OK",
		"Length", "12", "Width", "12", "Height", "12",
		"Actual Weight", "10", "Billed Weight", "13",
		"Net Amount", "29.00")
	heavier := record("Tracking Number", "1Z-HEAVY",
		"Length", "12", "Width", "12", "Height", "12",
		"Actual Weight", "20", "Billed Weight", "20",
		"Net Amount", "35.00")
	incomplete := record("Tracking Number", "1Z-NODIMS",
		"Length", "12", "Width", "12",
		"Actual Weight", "10", "Billed Weight", "40",
		"Net Amount", "12.00")

	out := evaluator().DimWeight(domain.CarrierUPS, fields.CarrierTrackingNumber,
		[]domain.RawRecord{flagged, exact, heavier, incomplete})

	assert.Len(t, out, 1)
	issue := out[0]
	assert.Equal(t, "1Z-PAD", issue.TrackingNumber)
	assert.Equal(t, "Billed weight mismatch", issue.Description)
	assert.True(t, issue.Amount.Equal(decimal.RequireFromString("31.80")))
	assert.Equal(t, "billed 14, expected 13 (actual 10, dimensional 13)", issue.Note)
}

func TestLoadDefaultsWhenNoPath(t *testing.T) {
	rs, err := rules.Load("")
	assert.NoError(t, err)
	assert.Len(t, rs.Guide[domain.CarrierUPS], 6)
	assert.Len(t, rs.Guide[domain.CarrierFedEx], 6)
	assert.Len(t, rs.Surcharges, 7)
	assert.Equal(t, float64(35), rs.FuelPercentCap)
}

func TestLoadOverridesSections(t *testing.T) {
	content := `
service_guide:
  ups:
    - match: NEXT DAY AIR
      business_days: 1
      cutoff: "09:00"
surcharges:
  - name: Peak Season
    pattern: PEAK
fuel_percent_cap: 20
`
	path := filepath.Join(t.TempDir(), "rules.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rs, err := rules.Load(path)
	assert.NoError(t, err)

	// Overridden sections replace wholesale; untouched ones keep defaults.
	assert.Len(t, rs.Guide[domain.CarrierUPS], 1)
	assert.Equal(t, "09:00", rs.Guide[domain.CarrierUPS][0].Cutoff)
	assert.Len(t, rs.Guide[domain.CarrierFedEx], 6)
	assert.Equal(t, float64(20), rs.FuelPercentCap)

	assert.Len(t, rs.Surcharges, 1)
	ev := rules.NewEvaluator(rs, nil)
	out := ev.Surcharges(domain.CarrierUPS, fields.CarrierTrackingNumber, []domain.RawRecord{
		record("Tracking Number", "1Z1",
			"Charge Description", "PEAK SEASON SURCHARGE", "Charge Amount", "5.95"),
		record("Tracking Number", "1Z2",
			"Charge Description", "FUEL SURCHARGE", "Charge Amount", "2.00"),
	}, nil)
	assert.Len(t, out, 1)
	assert.Equal(t, "Peak Season", out[0].Note)
}

func TestLoadRejectsBadPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("surcharges:\n  - name: Broken\n    pattern: \"(\"\n"), 0o644))

	_, err := rules.Load(path)
	assert.Error(t, err)
}

func TestDetectCarrier(t *testing.T) {
	ev := evaluator()

	byService := []domain.RawRecord{
		record("Tracking Number", "99", "Service", "FedEx Priority Overnight"),
	}
	assert.Equal(t, domain.CarrierFedEx, ev.DetectCarrier(byService))

	byUPSNumber := []domain.RawRecord{
		record("Tracking Number", "1Z999AA10123456784"),
	}
	assert.Equal(t, domain.CarrierUPS, ev.DetectCarrier(byUPSNumber))

	byFedExNumber := []domain.RawRecord{
		record("Tracking Number", "770000000001"),
	}
	assert.Equal(t, domain.CarrierFedEx, ev.DetectCarrier(byFedExNumber))

	inconclusive := []domain.RawRecord{
		record("Tracking Number", "ORDER-17"),
	}
	assert.Equal(t, domain.Carrier(""), ev.DetectCarrier(inconclusive))
}
