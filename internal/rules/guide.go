package rules

import (
	"strings"
	"time"

	"parcel-audit/internal/domain"
	"parcel-audit/internal/fields"
	"parcel-audit/internal/normalize"
)

// MatchService finds the first guide row whose match key is contained in
// the uppercased service text. Table order is part of the contract: free
// text like "UPS 2ND DAY AIR AM COMMERCIAL" contains both "2ND DAY AIR AM"
// and "2ND DAY AIR", and the earlier, more specific row must win.
func (rs *Ruleset) MatchService(carrier domain.Carrier, service string) (ServicePromise, bool) {
	upper := strings.ToUpper(service)
	for _, p := range rs.Guide[carrier] {
		if strings.Contains(upper, p.Match) {
			return p, true
		}
	}
	return ServicePromise{}, false
}

// promiseFor resolves a service promise for a row. An empty carrier label
// probes UPS first, then FEDEX, and reports which table hit.
func (rs *Ruleset) promiseFor(carrier domain.Carrier, service string) (domain.Carrier, ServicePromise, bool) {
	if carrier != "" {
		p, ok := rs.MatchService(carrier, service)
		return carrier, p, ok
	}
	for _, c := range []domain.Carrier{domain.CarrierUPS, domain.CarrierFedEx} {
		if p, ok := rs.MatchService(c, service); ok {
			return c, p, ok
		}
	}
	return "", ServicePromise{}, false
}

// PromisedBy computes the promise deadline for a shipment: ship date plus
// the promised business days, at the cutoff time. An end-of-day cutoff
// covers the entire promised day, including the 23:59:59.999 stamp given to
// deliveries recorded only by date.
func (p ServicePromise) PromisedBy(shipDate time.Time) time.Time {
	day := AddBusinessDays(shipDate, p.BusinessDays)
	h, m, s, ok := normalize.ParseClock(p.Cutoff)
	if !ok || (h == 23 && m == 59 && s == 59) {
		return endOfDay(day)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, s, 0, day.Location())
}

// AddBusinessDays advances a date by n business days, skipping Saturdays
// and Sundays. No holiday calendar.
func AddBusinessDays(from time.Time, n int) time.Time {
	t := from
	for added := 0; added < n; {
		t = t.AddDate(0, 0, 1)
		if wd := t.Weekday(); wd != time.Saturday && wd != time.Sunday {
			added++
		}
	}
	return t
}

func endOfDay(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(),
		23, 59, 59, int(time.Second-time.Nanosecond), d.Location())
}

// DetectCarrier guesses the carrier for an unlabeled upload: first by
// probing service text against each carrier's guide (UPS before FEDEX),
// then by tracking-number shape ("1Z" prefix for UPS, 12- or 15-digit
// numerics for FedEx). Returns "" when nothing is conclusive.
func (e *Evaluator) DetectCarrier(records []domain.RawRecord) domain.Carrier {
	for _, rec := range records {
		if svc := e.res.Resolve(rec, fields.ServiceLevel); svc != "" {
			for _, c := range []domain.Carrier{domain.CarrierUPS, domain.CarrierFedEx} {
				if _, ok := e.rs.MatchService(c, svc); ok {
					return c
				}
			}
		}
		tn := strings.ToUpper(e.res.Resolve(rec, fields.CarrierTrackingNumber))
		switch {
		case strings.HasPrefix(tn, "1Z"):
			return domain.CarrierUPS
		case isDigits(tn) && (len(tn) == 12 || len(tn) == 15):
			return domain.CarrierFedEx
		}
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
