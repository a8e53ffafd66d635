package ingest

import "regexp"

// sniffWindow bounds how many leading lines are scored before giving up.
const sniffWindow = 20

// headerConcepts are the column concepts a real header row is expected to
// mention. One regex per concept; a candidate line's score is the number of
// distinct concepts it hits.
var headerConcepts = []*regexp.Regexp{
	regexp.MustCompile(`(?i)track|waybill|awb`),
	regexp.MustCompile(`(?i)\bservice\b|\bproduct\b`),
	regexp.MustCompile(`(?i)ship(ment)?\s*date|pickup\s*date|date\s*shipped`),
	regexp.MustCompile(`(?i)deliver(y|ed)\s*(date|time)|\bpod\b`),
	regexp.MustCompile(`(?i)charge|amount|\bnet\b|total|postalmate`),
	regexp.MustCompile(`(?i)recipient|consignee|receiver`),
}

// sniffHeaderLine returns the index of the first line within the window
// hitting at least two distinct header concepts, or -1 when no line
// qualifies. Preamble/title lines rarely mention two column concepts at
// once, so the first qualifying line is taken as the header row.
func sniffHeaderLine(lines []string) int {
	limit := len(lines)
	if limit > sniffWindow {
		limit = sniffWindow
	}
	for i := 0; i < limit; i++ {
		score := 0
		for _, re := range headerConcepts {
			if re.MatchString(lines[i]) {
				score++
			}
		}
		if score >= 2 {
			return i
		}
	}
	return -1
}
