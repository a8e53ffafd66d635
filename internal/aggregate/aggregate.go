// Package aggregate builds per-tracking-number rollups from raw records.
package aggregate

import (
	"parcel-audit/internal/domain"
	"parcel-audit/internal/fields"
	"parcel-audit/internal/normalize"
)

// Index maps MatchKey (trimmed tracking number) to its aggregated entry for
// one source.
type Index map[string]domain.AggregatedEntry

// Build iterates records in order, resolving the key and amount per record.
// Records with an empty key are dropped silently; carrier and POS exports
// routinely include blank trailer rows. Duplicate keys ADD into the
// existing entry, never overwrite: one shipment's total billed amount is
// spread across base-charge, surcharge and adjustment line items that share
// a tracking number. The first non-empty reference sticks; a later empty
// value never displaces it.
func Build(res *fields.Resolver, records []domain.RawRecord, keyFields, amountFields, refFields []string) Index {
	idx := make(Index, len(records))
	for _, rec := range records {
		key := res.Resolve(rec, keyFields)
		if key == "" {
			continue
		}

		amount := normalize.ParseMoney(res.Resolve(rec, amountFields))

		entry, ok := idx[key]
		if !ok {
			entry = domain.AggregatedEntry{Key: key}
		}
		entry.Amount = entry.Amount.Add(amount)
		entry.Rows++
		if entry.Reference == "" && len(refFields) > 0 {
			entry.Reference = res.Resolve(rec, refFields)
		}
		idx[key] = entry
	}
	return idx
}

// FlagIndex holds a per-key boolean side flag. Presence of a key means the
// flag was explicitly present in the source data; absence means unknown.
type FlagIndex map[string]bool

// BuildFlags records the first explicitly present flag value per key,
// mirroring the aggregator's first-non-empty reference semantics. parse
// interprets the raw cell text; callers choose the token set (plain
// booleans, address types, ...).
func BuildFlags(res *fields.Resolver, records []domain.RawRecord, keyFields, flagFields []string, parse func(string) bool) FlagIndex {
	flags := make(FlagIndex)
	for _, rec := range records {
		key := res.Resolve(rec, keyFields)
		if key == "" {
			continue
		}
		raw := res.Resolve(rec, flagFields)
		if raw == "" {
			continue
		}
		if _, ok := flags[key]; ok {
			continue
		}
		flags[key] = parse(raw)
	}
	return flags
}
