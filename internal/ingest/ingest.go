// Package ingest turns raw tabular exports (delimited text or XLSX
// workbooks) into ordered sequences of header-keyed records. It tolerates
// the dirt real exports carry: preamble/title lines before the header row,
// inconsistent headers, ragged rows, lazy quoting, blank trailer rows.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"parcel-audit/internal/domain"
	"parcel-audit/pkg/logger"
)

// HeaderMode selects how the header row is located.
type HeaderMode int

const (
	// HeaderFirstLine treats the first non-blank line as the header row.
	HeaderFirstLine HeaderMode = iota
	// HeaderFixedSkip skips exactly Options.SkipLines lines unconditionally;
	// used for sources whose layout is known to be rigid.
	HeaderFixedSkip
	// HeaderSniff scans the leading lines and scores each against expected
	// column concepts; the first line with two or more distinct concept hits
	// becomes the header row.
	HeaderSniff
)

// ReferencePreambleLines is the preamble length of the known rigid POS
// export layout.
const ReferencePreambleLines = 9

// Options control header detection for one file.
type Options struct {
	Mode HeaderMode
	// SkipLines applies to HeaderFixedSkip. Zero means the reference offset.
	SkipLines int
}

// Parse reads delimited text content into records. The header row is
// located per opts; rows that fail to parse are skipped with a warning, and
// all-blank rows are dropped. Record order follows file order. Only content
// with no usable header at all is an error, and that error is scoped to
// this file.
func Parse(name string, content []byte, opts Options) ([]domain.RawRecord, error) {
	lines := splitLines(content)

	headerIdx := -1
	switch opts.Mode {
	case HeaderFixedSkip:
		skip := opts.SkipLines
		if skip <= 0 {
			skip = ReferencePreambleLines
		}
		if skip < len(lines) {
			headerIdx = skip
		}
	case HeaderSniff:
		headerIdx = sniffHeaderLine(lines)
		if headerIdx < 0 {
			headerIdx = firstNonBlank(lines)
		}
	default:
		headerIdx = firstNonBlank(lines)
	}

	if headerIdx < 0 || headerIdx >= len(lines) {
		return nil, fmt.Errorf("%s: no header row found", name)
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(lines[headerIdx:], "\n")))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	rawHeader, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read header row: %w", name, err)
	}
	headers := makeHeaders(rawHeader)

	var records []domain.RawRecord
	lineNumber := headerIdx + 1

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNumber++
		if err != nil {
			logger.GetLogger().WithError(err).WithFields(map[string]interface{}{
				"file": name,
				"line": lineNumber,
			}).Warn("Skipping malformed row")
			continue
		}
		if isBlankRow(row) {
			continue
		}
		records = append(records, buildRecord(headers, row))
	}

	return records, nil
}

// splitLines normalizes CRLF and strips a UTF-8 BOM.
func splitLines(content []byte) []string {
	text := strings.TrimPrefix(string(content), "﻿")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func firstNonBlank(lines []string) int {
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			return i
		}
	}
	return -1
}

// makeHeaders trims header cells, names blank columns, and disambiguates
// duplicate headers with an occurrence suffix so no cell is lost when the
// same header repeats ("Charge Description", "Charge Description 2", ...).
func makeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column_%d", i+1)
		}
		seen[h]++
		if n := seen[h]; n > 1 {
			h = fmt.Sprintf("%s %d", h, n)
		}
		headers[i] = h
	}
	return headers
}

func buildRecord(headers, row []string) domain.RawRecord {
	fields := make(map[string]string, len(headers))
	for i, h := range headers {
		if i < len(row) {
			fields[h] = strings.TrimSpace(row[i])
		} else {
			fields[h] = ""
		}
	}
	return domain.RawRecord{Headers: headers, Fields: fields}
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
