package ingest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"parcel-audit/internal/ingest"
)

func TestParseFixedSkipPreamble(t *testing.T) {
	content := `PostalMate Shipment Export
Store: Parcel Plus #1182
Report Period: 01/01/2024 - 01/31/2024
Generated: 02/01/2024 08:14
Includes voided: No

"Questions? Contact support"
----
----
Tracking Number,Carrier,PostalMate,Ship Date
1Z999AA10123456784,UPS,12.00,1/5/2024
1Z999AA10123456785,UPS,8.50,1/6/2024
420304039400100000000000000001,USPS,4.25,1/6/2024
`

	records, err := ingest.Parse("pos.csv", []byte(content), ingest.Options{Mode: ingest.HeaderFixedSkip})
	assert.NoError(t, err)
	assert.Len(t, records, 3)

	assert.Equal(t, "1Z999AA10123456784", records[0].Get("Tracking Number"))
	assert.Equal(t, "12.00", records[0].Get("PostalMate"))
	assert.Equal(t, "4.25", records[2].Get("PostalMate"))
}

func TestParseSniffFindsHeaderAfterTitleLines(t *testing.T) {
	content := `UPS Billing Export
Generated for ACME

Tracking Number,Ship Date,Net Amount
1Z1,1/5/2024,12.00
1Z2,1/5/2024,7.75
`

	records, err := ingest.Parse("invoice.csv", []byte(content), ingest.Options{Mode: ingest.HeaderSniff})
	assert.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, []string{"Tracking Number", "Ship Date", "Net Amount"}, records[0].Headers)
	assert.Equal(t, "7.75", records[1].Get("Net Amount"))
}

func TestParseSniffFallsBackToFirstNonBlank(t *testing.T) {
	// No line mentions two column concepts, so detection falls back to the
	// first non-blank line.
	content := "\n\nName,Qty\nWidget,2\n"

	records, err := ingest.Parse("plain.csv", []byte(content), ingest.Options{Mode: ingest.HeaderSniff})
	assert.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, "Widget", records[0].Get("Name"))
}

func TestParseFirstLineDefault(t *testing.T) {
	content := "Tracking Number,Amount\n1Z1,5.00\n"

	records, err := ingest.Parse("clean.csv", []byte(content), ingest.Options{})
	assert.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, "5.00", records[0].Get("Amount"))
}

func TestParseDropsBlankRows(t *testing.T) {
	content := "Tracking Number,Amount\n1Z1,5.00\n,\n\n1Z2,6.00\n   ,  \n"

	records, err := ingest.Parse("gaps.csv", []byte(content), ingest.Options{})
	assert.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, "1Z2", records[1].Get("Tracking Number"))
}

func TestParseDisambiguatesDuplicateHeaders(t *testing.T) {
	content := "Tracking Number,Charge Description,Amount,Charge Description,Amount\n" +
		"1Z1,Ground,10.00,FUEL SURCHARGE,1.50\n"

	records, err := ingest.Parse("itemized.csv", []byte(content), ingest.Options{})
	assert.NoError(t, err)
	assert.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, []string{
		"Tracking Number", "Charge Description", "Amount",
		"Charge Description 2", "Amount 2",
	}, rec.Headers)
	assert.Equal(t, "Ground", rec.Get("Charge Description"))
	assert.Equal(t, "FUEL SURCHARGE", rec.Get("Charge Description 2"))
	assert.Equal(t, "1.50", rec.Get("Amount 2"))
}

func TestParseRaggedRows(t *testing.T) {
	// Short rows pad missing cells with ""; surplus cells are dropped.
	content := "A,B,C\n1,2\n1,2,3,4\n"

	records, err := ingest.Parse("ragged.csv", []byte(content), ingest.Options{})
	assert.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, "", records[0].Get("C"))
	assert.Equal(t, "3", records[1].Get("C"))
}

func TestParseBOMAndCRLF(t *testing.T) {
	content := "﻿Tracking Number,Amount\r\n1Z1,5.00\r\n"

	records, err := ingest.Parse("windows.csv", []byte(content), ingest.Options{})
	assert.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, "1Z1", records[0].Get("Tracking Number"))
}

func TestParseQuotedCells(t *testing.T) {
	content := "Tracking Number,Recipient,Amount\n" +
		"1Z1,\"Smith, Jane\",5.00\n"

	records, err := ingest.Parse("quoted.csv", []byte(content), ingest.Options{})
	assert.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, "Smith, Jane", records[0].Get("Recipient"))
}

func TestParseNoHeaderIsError(t *testing.T) {
	_, err := ingest.Parse("empty.csv", []byte("\n\n\n"), ingest.Options{})
	assert.Error(t, err)

	// Fixed skip past the end of the file cannot find a header either.
	_, err = ingest.Parse("short.csv", []byte("only line\n"), ingest.Options{Mode: ingest.HeaderFixedSkip})
	assert.Error(t, err)
}
