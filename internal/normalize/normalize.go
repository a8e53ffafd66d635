// Package normalize converts raw cell text from tabular exports into typed
// values. Every function degrades to a safe default instead of returning an
// error: one bad cell must never abort a multi-thousand-row batch.
package normalize

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateLayouts are tried in order before the general fallback set. The first
// entry accepts both padded and unpadded month/day, but the padded form is
// kept explicit to preserve the documented precedence.
var dateLayouts = []string{
	"1/2/2006",
	"01/02/2006",
	"2006-01-02",
	"2006/01/02",
}

// fallbackLayouts approximate general date parsing for the long tail of
// export formats.
var fallbackLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04 PM",
	"1/2/06",
	"2-Jan-2006",
	"02-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseMoney converts invoice-style amount text to a decimal. Currency
// symbols and thousands separators are stripped, a fully parenthesized
// value is treated as negative (accounting notation), and anything that
// still fails to parse yields zero.
func ParseMoney(raw string) decimal.Decimal {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") && len(s) > 1 {
		negative = true
		s = s[1 : len(s)-1]
	}

	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	switch cleaned {
	case "", "-", ".", "-.":
		return decimal.Zero
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		return d.Neg()
	}
	return d
}

// ParseDate attempts the fixed layout list, then the general fallbacks.
// The second return is false when nothing matches; callers treat that as
// "no date", not as an error.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CombineDateTime attaches a clock time to a parsed date. The raw time is
// reduced to digits and colons before parsing. When no usable time is
// present the result defaults to 23:59:59.999: a delivery recorded only by
// date counts as delivered at the very end of that day.
func CombineDateTime(date time.Time, rawTime string) time.Time {
	h, m, sec, ok := ParseClock(rawTime)
	if !ok {
		return time.Date(date.Year(), date.Month(), date.Day(),
			23, 59, 59, 999*int(time.Millisecond), date.Location())
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		h, m, sec, 0, date.Location())
}

// ParseClock reads a clock time from free-form text: everything except
// digits and colons is dropped, then H:MM, H:MM:SS, HHMM and HHMMSS forms
// are accepted. ok is false for anything else.
func ParseClock(raw string) (h, m, s int, ok bool) {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == ':' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, 0, 0, false
	}

	if strings.Contains(cleaned, ":") {
		parts := strings.Split(cleaned, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return 0, 0, 0, false
		}
		h = atoiOr(parts[0], -1)
		m = atoiOr(parts[1], -1)
		if len(parts) == 3 {
			s = atoiOr(parts[2], -1)
		}
	} else {
		// Bare digit runs: HHMM or HHMMSS.
		switch len(cleaned) {
		case 4:
			h = atoiOr(cleaned[:2], -1)
			m = atoiOr(cleaned[2:], -1)
		case 6:
			h = atoiOr(cleaned[:2], -1)
			m = atoiOr(cleaned[2:4], -1)
			s = atoiOr(cleaned[4:], -1)
		default:
			return 0, 0, 0, false
		}
	}

	if h < 0 || h > 23 || m < 0 || m > 59 || s < 0 || s > 59 {
		return 0, 0, 0, false
	}
	return h, m, s, true
}

func atoiOr(s string, def int) int {
	n := 0
	if s == "" {
		return def
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return def
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// ParseBool reports true for "true", "yes" and "1" (case-insensitive) and
// false for everything else. There is no distinguishable null state; an
// absent flag reads as false.
func ParseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "1":
		return true
	}
	return false
}

// ParseResidential interprets address-type cell text. Exports flag a
// residential address either with a boolean token or with a textual type
// ("RES", "Residential"); "BUS", "Commercial" and boolean negatives all
// read as business.
func ParseResidential(raw string) bool {
	s := strings.ToLower(strings.TrimSpace(raw))
	if ParseBool(s) {
		return true
	}
	return strings.HasPrefix(s, "res")
}
