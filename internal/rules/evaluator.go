package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"parcel-audit/internal/aggregate"
	"parcel-audit/internal/domain"
	"parcel-audit/internal/fields"
	"parcel-audit/internal/normalize"
)

// Evaluator runs the audit rules over one batch of records. Rules are
// independent and composable; a record may trigger several of them. The
// evaluator memoizes header resolution and itemization per record shape,
// nothing else: every call computes its results from the records alone.
type Evaluator struct {
	res   *fields.Resolver
	rs    *Ruleset
	pairs map[string][]itemPair
}

// NewEvaluator builds an evaluator over the given ruleset. Pass the
// resolver shared with the aggregation pass, or nil for a fresh one.
func NewEvaluator(rs *Ruleset, res *fields.Resolver) *Evaluator {
	if res == nil {
		res = fields.NewResolver()
	}
	return &Evaluator{
		res:   res,
		rs:    rs,
		pairs: make(map[string][]itemPair),
	}
}

// Lateness flags rows delivered after the service-level promise. Rows with
// no service match, ship date, or delivery date are skipped: many export
// rows legitimately lack delivery data.
func (e *Evaluator) Lateness(carrier domain.Carrier, keyFields []string, records []domain.RawRecord) []domain.LateDeliveryRecord {
	var out []domain.LateDeliveryRecord
	for _, rec := range records {
		key := e.res.Resolve(rec, keyFields)
		if key == "" {
			continue
		}
		service := e.res.Resolve(rec, fields.ServiceLevel)
		if service == "" {
			continue
		}
		c, promise, ok := e.rs.promiseFor(carrier, service)
		if !ok {
			continue
		}
		shipDate, ok := normalize.ParseDate(e.res.Resolve(rec, fields.ShipDate))
		if !ok {
			continue
		}
		deliveryDate, ok := normalize.ParseDate(e.res.Resolve(rec, fields.DeliveryDate))
		if !ok {
			continue
		}

		deliveredAt := normalize.CombineDateTime(deliveryDate, e.res.Resolve(rec, fields.DeliveryTime))
		promisedBy := promise.PromisedBy(shipDate)
		if !deliveredAt.After(promisedBy) {
			continue
		}

		out = append(out, domain.LateDeliveryRecord{
			TrackingNumber: key,
			Carrier:        c,
			Service:        service,
			ShippedAt:      shipDate,
			PromisedBy:     promisedBy,
			DeliveredAt:    deliveredAt,
			BilledAmount:   normalize.ParseMoney(e.res.Resolve(rec, fields.BilledAmount)),
		})
	}
	return out
}

// DuplicateCharges groups itemized charges by tracking key, description and
// cent-rounded amount; any group occurring twice or more emits one issue.
// Issues come out in first-occurrence order.
func (e *Evaluator) DuplicateCharges(carrier domain.Carrier, keyFields []string, records []domain.RawRecord) []domain.ChargeIssue {
	type group struct {
		issue domain.ChargeIssue
		count int
		order int
	}
	groups := make(map[string]*group)

	for _, rec := range records {
		key := e.res.Resolve(rec, keyFields)
		if key == "" {
			continue
		}
		for _, item := range extractItems(rec, e.shapePairs(rec)) {
			amt := item.Amount.Round(2)
			gk := key + "\x1f" + item.Description + "\x1f" + amt.StringFixed(2)
			g, ok := groups[gk]
			if !ok {
				g = &group{
					issue: domain.ChargeIssue{
						TrackingNumber: key,
						Carrier:        carrier,
						Description:    item.Description,
						Amount:         amt,
					},
					order: len(groups),
				}
				groups[gk] = g
			}
			g.count++
		}
	}

	var hits []*group
	for _, g := range groups {
		if g.count >= 2 {
			hits = append(hits, g)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].order < hits[j].order })

	out := make([]domain.ChargeIssue, 0, len(hits))
	for _, g := range hits {
		g.issue.Note = fmt.Sprintf("Possible duplicate charge (%d occurrences)", g.count)
		out = append(out, g.issue)
	}
	return out
}

// Surcharges tests every itemized description against the ordered pattern
// list; the first hit labels the issue. A residential hit is cross-checked
// against the POS address flags and annotated when POS has the address on
// record as business.
func (e *Evaluator) Surcharges(carrier domain.Carrier, keyFields []string, records []domain.RawRecord, posFlags aggregate.FlagIndex) []domain.ChargeIssue {
	var out []domain.ChargeIssue
	for _, rec := range records {
		key := e.res.Resolve(rec, keyFields)
		if key == "" {
			continue
		}
		for _, item := range extractItems(rec, e.shapePairs(rec)) {
			for i := range e.rs.Surcharges {
				p := &e.rs.Surcharges[i]
				if !p.matches(item.Description) {
					continue
				}
				issue := domain.ChargeIssue{
					TrackingNumber: key,
					Carrier:        carrier,
					Description:    item.Description,
					Amount:         item.Amount,
					Note:           p.Name,
				}
				if p.isResidential() {
					if residential, ok := posFlags[key]; ok && !residential {
						issue.Note += "; POS records this address as business"
					}
				}
				out = append(out, issue)
				break
			}
		}
	}
	return out
}

// FuelAnomaly is the coarse fallback for sources with no itemized charge
// columns at all: per key, a fuel surcharge above the percentage cap of
// transportation charges, or negative, is flagged. Sources with itemization
// are covered by Surcharges and produce nothing here.
func (e *Evaluator) FuelAnomaly(carrier domain.Carrier, keyFields []string, records []domain.RawRecord) []domain.ChargeIssue {
	for _, rec := range records {
		if len(e.shapePairs(rec)) > 0 {
			return nil
		}
	}

	type fuelAgg struct {
		fuel      decimal.Decimal
		transport decimal.Decimal
		order     int
	}
	byKey := make(map[string]*fuelAgg)
	var keys []string

	for _, rec := range records {
		key := e.res.Resolve(rec, keyFields)
		if key == "" {
			continue
		}
		fuelRaw := e.res.Resolve(rec, fields.FuelSurcharge)
		transportRaw := e.res.Resolve(rec, fields.TransportationCharges)
		if fuelRaw == "" && transportRaw == "" {
			continue
		}
		a, ok := byKey[key]
		if !ok {
			a = &fuelAgg{order: len(keys)}
			byKey[key] = a
			keys = append(keys, key)
		}
		a.fuel = a.fuel.Add(normalize.ParseMoney(fuelRaw))
		a.transport = a.transport.Add(normalize.ParseMoney(transportRaw))
	}

	pctCap := decimal.NewFromFloat(e.rs.FuelPercentCap)
	hundred := decimal.NewFromInt(100)

	var out []domain.ChargeIssue
	for _, key := range keys {
		a := byKey[key]
		var note string
		switch {
		case a.fuel.Sign() < 0:
			note = "Negative fuel surcharge"
		case a.fuel.Sign() > 0 && a.transport.Sign() <= 0:
			note = "Fuel surcharge with no transportation charge"
		case a.transport.Sign() > 0:
			pct := a.fuel.Div(a.transport).Mul(hundred)
			if pct.GreaterThan(pctCap) {
				note = fmt.Sprintf("Fuel surcharge is %s%% of transportation charges", pct.StringFixed(1))
			}
		}
		if note == "" {
			continue
		}
		out = append(out, domain.ChargeIssue{
			TrackingNumber: key,
			Carrier:        carrier,
			Description:    "Fuel Surcharge",
			Amount:         a.fuel,
			Note:           note,
		})
	}
	return out
}

// DimWeight recomputes dimensional weight from package dimensions and flags
// rows whose billed weight strays a full unit or more from the expected
// billable weight, max(actual, dimensional). Rows missing any dimension or
// the billed weight are skipped.
func (e *Evaluator) DimWeight(carrier domain.Carrier, keyFields []string, records []domain.RawRecord) []domain.ChargeIssue {
	one := decimal.New(1, 0)

	var out []domain.ChargeIssue
	for _, rec := range records {
		key := e.res.Resolve(rec, keyFields)
		if key == "" {
			continue
		}
		lRaw := e.res.Resolve(rec, fields.Length)
		wRaw := e.res.Resolve(rec, fields.Width)
		hRaw := e.res.Resolve(rec, fields.Height)
		billedRaw := e.res.Resolve(rec, fields.BilledWeight)
		if lRaw == "" || wRaw == "" || hRaw == "" || billedRaw == "" {
			continue
		}

		l := normalize.ParseMoney(lRaw)
		w := normalize.ParseMoney(wRaw)
		h := normalize.ParseMoney(hRaw)
		if l.Sign() <= 0 || w.Sign() <= 0 || h.Sign() <= 0 {
			continue
		}

		f := e.rs.dimFactors(carrier)
		dim := ceilToStep(l.Mul(w).Mul(h).Div(decimal.NewFromFloat(f.Divisor)), f.RoundingStep)
		actual := normalize.ParseMoney(e.res.Resolve(rec, fields.ActualWeight))
		expected := decimal.Max(actual, dim)
		billed := normalize.ParseMoney(billedRaw)
		if billed.Sub(expected).Abs().LessThan(one) {
			continue
		}

		out = append(out, domain.ChargeIssue{
			TrackingNumber: key,
			Carrier:        carrier,
			Description:    "Billed weight mismatch",
			Amount:         normalize.ParseMoney(e.res.Resolve(rec, fields.BilledAmount)),
			Note: fmt.Sprintf("billed %s, expected %s (actual %s, dimensional %s)",
				billed.String(), expected.String(), actual.String(), dim.String()),
		})
	}
	return out
}

func (e *Evaluator) shapePairs(rec domain.RawRecord) []itemPair {
	sig := strings.Join(rec.Headers, "\x1f")
	if p, ok := e.pairs[sig]; ok {
		return p
	}
	p := itemizedPairs(rec.Headers)
	e.pairs[sig] = p
	return p
}

func ceilToStep(v decimal.Decimal, step float64) decimal.Decimal {
	s := decimal.NewFromFloat(step)
	if s.Sign() <= 0 {
		s = decimal.New(1, 0)
	}
	return v.Div(s).Ceil().Mul(s)
}
