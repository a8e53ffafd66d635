package rules

import (
	"strings"

	"github.com/shopspring/decimal"

	"parcel-audit/internal/domain"
	"parcel-audit/internal/fields"
	"parcel-audit/internal/normalize"
)

// Item is one itemized charge extracted from a record.
type Item struct {
	Description string
	Amount      decimal.Decimal
}

// itemPair binds a charge-description column to its amount column within
// one record shape.
type itemPair struct {
	descHeader   string
	amountHeader string
}

// aggregateAmountNorms are the normalized billed-amount aliases. Those
// columns hold per-shipment totals, not line items, and never participate
// in itemization.
var aggregateAmountNorms = func() map[string]bool {
	m := make(map[string]bool, len(fields.BilledAmount))
	for _, h := range fields.BilledAmount {
		m[fields.Normalize(h)] = true
	}
	return m
}()

// itemizedPairs pairs description columns with amount columns. Columns
// carrying a shared trailing number ("Charge Description 2" with "Charge
// Amount 2") pair by that suffix; the rest pair positionally in column
// order. Description columns belonging to the service concept are skipped.
func itemizedPairs(headers []string) []itemPair {
	type col struct {
		header string
		suffix string
	}
	var descs, amts []col
	for _, h := range headers {
		norm := fields.Normalize(h)
		switch {
		case norm == "":
			continue
		case strings.Contains(norm, "description") && !strings.Contains(norm, "service"):
			descs = append(descs, col{h, trailingDigits(norm)})
		case strings.Contains(norm, "amount") && !aggregateAmountNorms[norm]:
			amts = append(amts, col{h, trailingDigits(norm)})
		}
	}
	if len(descs) == 0 || len(amts) == 0 {
		return nil
	}

	match := make([]int, len(descs))
	for i := range match {
		match[i] = -1
	}
	used := make([]bool, len(amts))

	for di, d := range descs {
		if d.suffix == "" {
			continue
		}
		for ai, a := range amts {
			if !used[ai] && a.suffix == d.suffix {
				match[di], used[ai] = ai, true
				break
			}
		}
	}

	next := 0
	for di := range descs {
		if match[di] >= 0 {
			continue
		}
		for next < len(amts) && used[next] {
			next++
		}
		if next >= len(amts) {
			break
		}
		match[di], used[next] = next, true
	}

	pairs := make([]itemPair, 0, len(descs))
	for di, d := range descs {
		if match[di] >= 0 {
			pairs = append(pairs, itemPair{d.header, amts[match[di]].header})
		}
	}
	return pairs
}

func trailingDigits(norm string) string {
	i := len(norm)
	for i > 0 && norm[i-1] >= '0' && norm[i-1] <= '9' {
		i--
	}
	return norm[i:]
}

func extractItems(rec domain.RawRecord, pairs []itemPair) []Item {
	var items []Item
	for _, p := range pairs {
		desc := strings.TrimSpace(rec.Get(p.descHeader))
		if desc == "" {
			continue
		}
		items = append(items, Item{
			Description: desc,
			Amount:      normalize.ParseMoney(rec.Get(p.amountHeader)),
		})
	}
	return items
}
