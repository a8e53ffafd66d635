package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SourceKind identifies which side of the reconciliation a slot holds.
type SourceKind string

const (
	SourceCarrier SourceKind = "CARRIER"
	SourcePOS     SourceKind = "POS"
)

// ParseSourceKind maps a slot name from the API surface to a SourceKind.
func ParseSourceKind(s string) (SourceKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "carrier":
		return SourceCarrier, true
	case "pos":
		return SourcePOS, true
	}
	return "", false
}

// Carrier is the invoicing carrier for an upload slot.
type Carrier string

const (
	CarrierUPS   Carrier = "UPS"
	CarrierFedEx Carrier = "FEDEX"
)

// ParseCarrier maps a carrier label. Empty input is allowed and means the
// carrier will be detected from the uploaded data.
func ParseCarrier(s string) (Carrier, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return "", true
	case "UPS":
		return CarrierUPS, true
	case "FEDEX", "FED EX", "FDX":
		return CarrierFedEx, true
	}
	return "", false
}

// RawRecord is one data line from a tabular export. Fields is keyed by the
// column headers exactly as they appear in the source file; Headers keeps
// the original column order. Header sets are not assumed consistent across
// files of the same source.
type RawRecord struct {
	Headers []string          `json:"headers"`
	Fields  map[string]string `json:"fields"`
}

// Get returns the raw cell value for a literal header, or "" when the
// column is absent.
func (r RawRecord) Get(header string) string {
	return r.Fields[header]
}

// Classification labels a carrier-vs-POS amount comparison. The literals
// are load-bearing: exported reports feed downstream dispute tooling.
type Classification string

const (
	ClassMatchOK     Classification = "Match – OK"
	ClassOverbilled  Classification = "Overbilled"
	ClassUnderbilled Classification = "Underbilled – Review"
)

// Membership labels a key present on exactly one side in the set-based
// comparison mode. The amount view treats a missing side as zero; this view
// ignores amounts entirely.
type Membership string

const (
	MemberCarrierOnly Membership = "CarrierOnly"
	MemberPOSOnly     Membership = "POSOnly"
)

// AggregatedEntry is the per-tracking-number rollup for one source. Amount
// is the sum over every contributing row, never the last row's value: the
// same tracking number legitimately repeats across invoice line items.
type AggregatedEntry struct {
	Key       string          `json:"key"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
	Rows      int             `json:"rows"`
}

// Discrepancy is one per-key comparison outcome. Immutable once produced;
// amounts are zero for a side the key is absent from.
type Discrepancy struct {
	TrackingNumber string          `json:"tracking_number"`
	CarrierAmount  decimal.Decimal `json:"carrier_amount"`
	POSAmount      decimal.Decimal `json:"pos_amount"`
	Difference     decimal.Decimal `json:"difference"`
	Classification Classification  `json:"classification"`
	InvoiceNumber  string          `json:"invoice_number,omitempty"`
}

// MembershipRecord is one per-key outcome of the set-based comparison mode.
type MembershipRecord struct {
	TrackingNumber string          `json:"tracking_number"`
	Side           Membership      `json:"side"`
	Amount         decimal.Decimal `json:"amount"`
}

// LateDeliveryRecord marks a carrier row whose delivery missed the
// service-level promise.
type LateDeliveryRecord struct {
	TrackingNumber string          `json:"tracking_number"`
	Carrier        Carrier         `json:"carrier"`
	Service        string          `json:"service"`
	ShippedAt      time.Time       `json:"shipped_at"`
	PromisedBy     time.Time       `json:"promised_by"`
	DeliveredAt    time.Time       `json:"delivered_at"`
	BilledAmount   decimal.Decimal `json:"billed_amount"`
}

// ChargeIssue is one detected billing anomaly: a duplicate charge, a known
// surcharge hit, a residential/business mismatch, a fuel-percentage
// anomaly, or a dimensional-weight mismatch.
type ChargeIssue struct {
	TrackingNumber string          `json:"tracking_number"`
	Carrier        Carrier         `json:"carrier"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	Note           string          `json:"note,omitempty"`
}

// AuditSummary carries the headline counts and totals for a run.
type AuditSummary struct {
	CarrierRecords   int             `json:"carrier_records"`
	POSRecords       int             `json:"pos_records"`
	KeysCompared     int             `json:"keys_compared"`
	Matched          int             `json:"matched"`
	Overbilled       int             `json:"overbilled"`
	Underbilled      int             `json:"underbilled"`
	CarrierOnly      int             `json:"carrier_only"`
	POSOnly          int             `json:"pos_only"`
	TotalOverbilled  decimal.Decimal `json:"total_overbilled"`
	TotalUnderbilled decimal.Decimal `json:"total_underbilled"`
	LateDeliveries   int             `json:"late_deliveries"`
	ChargeIssues     int             `json:"charge_issues"`
}

// AuditRun is the complete, immutable output of one audit invocation. It
// owns its derived slices and holds no references back into raw records, so
// it can be exported or discarded independently of upload state.
type AuditRun struct {
	RunID          string               `json:"run_id"`
	CreatedAt      time.Time            `json:"created_at"`
	Tolerance      decimal.Decimal      `json:"tolerance"`
	Discrepancies  []Discrepancy        `json:"discrepancies"`
	Membership     []MembershipRecord   `json:"membership"`
	LateDeliveries []LateDeliveryRecord `json:"late_deliveries"`
	ChargeIssues   []ChargeIssue        `json:"charge_issues"`
	Summary        AuditSummary         `json:"summary"`
}

// UploadedFile is one parsed file within a slot, in upload order.
type UploadedFile struct {
	Name    string      `json:"name"`
	Records []RawRecord `json:"-"`
}

// SourceSlot is the current upload state for one side. Slots are replaced
// wholesale; Seq increases monotonically so stale concurrent uploads can be
// detected and discarded.
type SourceSlot struct {
	Kind       SourceKind     `json:"kind"`
	Carrier    Carrier        `json:"carrier,omitempty"`
	Files      []UploadedFile `json:"files"`
	Seq        uint64         `json:"seq"`
	UploadedAt time.Time      `json:"uploaded_at"`
}

// AllRecords flattens the slot's files in upload order.
func (s SourceSlot) AllRecords() []RawRecord {
	n := 0
	for _, f := range s.Files {
		n += len(f.Records)
	}
	out := make([]RawRecord, 0, n)
	for _, f := range s.Files {
		out = append(out, f.Records...)
	}
	return out
}

// RecordCount is the number of data rows across the slot's files.
func (s SourceSlot) RecordCount() int {
	n := 0
	for _, f := range s.Files {
		n += len(f.Records)
	}
	return n
}
