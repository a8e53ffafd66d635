package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"parcel-audit/internal/domain"
)

// ParseXLSX reads an XLSX workbook's first sheet into records, applying the
// same header-detection modes as Parse. Carrier billing centers ship both
// CSV and spreadsheet exports; rows flow through the identical record model
// either way.
func ParseXLSX(name string, content []byte, opts Options) ([]domain.RawRecord, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open workbook: %w", name, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: workbook has no sheets", name)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read sheet %q: %w", name, sheets[0], err)
	}

	headerIdx := -1
	switch opts.Mode {
	case HeaderFixedSkip:
		skip := opts.SkipLines
		if skip <= 0 {
			skip = ReferencePreambleLines
		}
		if skip < len(rows) {
			headerIdx = skip
		}
	case HeaderSniff:
		headerIdx = sniffHeaderLine(joinRows(rows))
		if headerIdx < 0 {
			headerIdx = firstNonBlankRow(rows)
		}
	default:
		headerIdx = firstNonBlankRow(rows)
	}

	if headerIdx < 0 || headerIdx >= len(rows) {
		return nil, fmt.Errorf("%s: no header row found", name)
	}

	headers := makeHeaders(rows[headerIdx])

	var records []domain.RawRecord
	for _, row := range rows[headerIdx+1:] {
		if isBlankRow(row) {
			continue
		}
		records = append(records, buildRecord(headers, row))
	}
	return records, nil
}

// IsXLSX reports whether a filename looks like a workbook upload.
func IsXLSX(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".xlsx")
}

func joinRows(rows [][]string) []string {
	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = strings.Join(row, ",")
	}
	return lines
}

func firstNonBlankRow(rows [][]string) int {
	for i, row := range rows {
		if !isBlankRow(row) {
			return i
		}
	}
	return -1
}
