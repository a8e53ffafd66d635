// Package fields maps the engine's logical field names onto whatever column
// headers an export actually uses. Real-world files vary header text by
// case, spacing and punctuation ("Tracking #" vs "TrackingNumber" vs
// "Tracking_Number"), and different carriers name the same concept
// differently, so every lookup goes through a prioritized candidate list.
package fields

import (
	"strings"
	"unicode"

	"parcel-audit/internal/domain"
)

// Candidate header lists per logical field, in priority order. First match
// wins; order within each list is part of the contract.
var (
	CarrierTrackingNumber = []string{
		"Tracking Number",
		"Tracking Number 1",
		"Package Tracking Number",
		"Tracking #",
		"Tracking ID",
		"Air Waybill",
		"AWB",
		"Shipment Number",
		"Express or Ground Tracking ID",
	}

	POSTrackingNumber = []string{
		"Tracking Number",
		"Tracking #",
		"Tracking",
	}

	BilledAmount = []string{
		"Billed Charge",
		"Total Charges",
		"Net Charges",
		"Transportation Charges",
		"Net Amount",
	}

	InvoiceNumber = []string{"Invoice Number"}

	POSAmount = []string{
		"PostalMate",
		"Amount",
		"Total",
	}

	ServiceLevel = []string{
		"Service",
		"Service Type",
		"Service Level",
		"Service Description",
		"Product",
	}

	ShipDate = []string{
		"Ship Date",
		"Shipment Date",
		"Pickup Date",
		"Date Shipped",
	}

	DeliveryDate = []string{
		"Delivery Date",
		"Delivered Date",
		"POD Delivery Date",
		"Date Delivered",
	}

	DeliveryTime = []string{
		"Delivery Time",
		"POD Delivery Time",
		"Delivered Time",
		"Time of Delivery",
	}

	Residential = []string{
		"Residential",
		"Residential Delivery",
		"Res/Bus",
		"Address Type",
	}

	FuelSurcharge = []string{
		"Fuel Surcharge",
		"Fuel Surcharges",
		"Fuel",
	}

	TransportationCharges = []string{
		"Transportation Charges",
		"Transportation Charge",
		"Freight Charges",
	}

	Length = []string{"Length", "Dim Length", "L"}
	Width  = []string{"Width", "Dim Width", "W"}
	Height = []string{"Height", "Dim Height", "H"}

	ActualWeight = []string{
		"Actual Weight",
		"Package Weight",
		"Weight",
	}

	BilledWeight = []string{
		"Billed Weight",
		"Rated Weight",
		"Bill Weight",
	}

	Recipient = []string{
		"Recipient",
		"Recipient Name",
		"Consignee",
		"Receiver",
	}
)

// Resolver resolves logical fields against records. It caches the
// normalized-header lookup per record shape, so resolving thousands of rows
// from the same file builds the lookup once. A Resolver is not safe for
// concurrent use; each audit pass owns its own.
type Resolver struct {
	shapes map[string]map[string]string
}

func NewResolver() *Resolver {
	return &Resolver{shapes: make(map[string]map[string]string)}
}

// Resolve returns the trimmed value of the first candidate that resolves to
// a non-empty cell, or "" when none does. All candidates are tried against
// the literal headers before the normalized pass runs: two distinct columns
// can normalize to the same key, and the exact spelling must win.
func (r *Resolver) Resolve(rec domain.RawRecord, candidates []string) string {
	for _, c := range candidates {
		if v, ok := rec.Fields[c]; ok {
			if t := strings.TrimSpace(v); t != "" {
				return t
			}
		}
	}

	lookup := r.shapeLookup(rec)
	for _, c := range candidates {
		actual, ok := lookup[Normalize(c)]
		if !ok {
			continue
		}
		if t := strings.TrimSpace(rec.Fields[actual]); t != "" {
			return t
		}
	}
	return ""
}

// ResolveHeader returns the actual header the first matching candidate maps
// to, regardless of the cell value. Used where callers need the column
// itself rather than one row's value.
func (r *Resolver) ResolveHeader(rec domain.RawRecord, candidates []string) string {
	for _, c := range candidates {
		if _, ok := rec.Fields[c]; ok {
			return c
		}
	}
	lookup := r.shapeLookup(rec)
	for _, c := range candidates {
		if actual, ok := lookup[Normalize(c)]; ok {
			return actual
		}
	}
	return ""
}

func (r *Resolver) shapeLookup(rec domain.RawRecord) map[string]string {
	sig := strings.Join(rec.Headers, "\x1f")
	if m, ok := r.shapes[sig]; ok {
		return m
	}

	m := make(map[string]string, len(rec.Headers))
	for _, h := range rec.Headers {
		key := Normalize(h)
		if key == "" {
			continue
		}
		// First column wins on collisions, deterministically.
		if _, exists := m[key]; !exists {
			m[key] = h
		}
	}
	r.shapes[sig] = m
	return m
}

// Normalize lowercases a header and strips every non-alphanumeric rune.
func Normalize(header string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(header) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
