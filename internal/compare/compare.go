// Package compare produces per-key comparison outcomes between the
// carrier-side and POS-side aggregated indices. Two independent views
// exist: an amount comparison banded by a cent-level tolerance, and a pure
// set-membership comparison that ignores amounts. The two are not
// interchangeable; the amount view treats a key missing on one side as
// zero on that side.
package compare

import (
	"sort"

	"github.com/shopspring/decimal"

	"parcel-audit/internal/aggregate"
	"parcel-audit/internal/domain"
)

// DefaultTolerance is one currency cent.
var DefaultTolerance = decimal.New(1, -2)

// Amounts produces one Discrepancy per key in the union of both indices.
// Let diff = carrier − pos: |diff| within tolerance is a match, a positive
// diff is overbilled, a negative one underbilled. A key absent on one side
// contributes zero there, so a side-only key always classifies as
// Overbilled or Underbilled; the membership view is the set-based
// counterpart for callers that want "missing" as its own category.
func Amounts(carrier, pos aggregate.Index, tolerance decimal.Decimal) []domain.Discrepancy {
	keys := unionKeys(carrier, pos)

	out := make([]domain.Discrepancy, 0, len(keys))
	for _, k := range keys {
		c := carrier[k]
		p := pos[k]
		diff := c.Amount.Sub(p.Amount)

		var class domain.Classification
		switch {
		case diff.Abs().Cmp(tolerance) <= 0:
			class = domain.ClassMatchOK
		case diff.Sign() > 0:
			class = domain.ClassOverbilled
		default:
			class = domain.ClassUnderbilled
		}

		ref := c.Reference
		if ref == "" {
			ref = p.Reference
		}

		out = append(out, domain.Discrepancy{
			TrackingNumber: k,
			CarrierAmount:  c.Amount,
			POSAmount:      p.Amount,
			Difference:     diff,
			Classification: class,
			InvoiceNumber:  ref,
		})
	}

	SortDiscrepancies(out)
	return out
}

// SortDiscrepancies orders results so the highest-value disputes surface
// first: non-matches before matches, then descending absolute difference,
// then tracking number for a stable total order.
func SortDiscrepancies(items []domain.Discrepancy) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		aMatch := a.Classification == domain.ClassMatchOK
		bMatch := b.Classification == domain.ClassMatchOK
		if aMatch != bMatch {
			return !aMatch
		}
		ad, bd := a.Difference.Abs(), b.Difference.Abs()
		if !ad.Equal(bd) {
			return ad.GreaterThan(bd)
		}
		return a.TrackingNumber < b.TrackingNumber
	})
}

// Membership classifies keys present on exactly one side, ignoring amounts
// entirely. Ordered by side, then descending amount magnitude, then key.
func Membership(carrier, pos aggregate.Index) []domain.MembershipRecord {
	var out []domain.MembershipRecord
	for k, e := range carrier {
		if _, ok := pos[k]; !ok {
			out = append(out, domain.MembershipRecord{
				TrackingNumber: k,
				Side:           domain.MemberCarrierOnly,
				Amount:         e.Amount,
			})
		}
	}
	for k, e := range pos {
		if _, ok := carrier[k]; !ok {
			out = append(out, domain.MembershipRecord{
				TrackingNumber: k,
				Side:           domain.MemberPOSOnly,
				Amount:         e.Amount,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Side != b.Side {
			return a.Side < b.Side
		}
		am, bm := a.Amount.Abs(), b.Amount.Abs()
		if !am.Equal(bm) {
			return am.GreaterThan(bm)
		}
		return a.TrackingNumber < b.TrackingNumber
	})
	return out
}

func unionKeys(a, b aggregate.Index) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	for k := range b {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
