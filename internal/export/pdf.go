package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"parcel-audit/internal/domain"
)

// Page geometry in millimeters (A4 portrait).
const (
	pdfLeftMargin = 15.0
	pdfTopMargin  = 15.0
	pdfContentW   = 180.0
	pdfLineH      = 6.0
	pdfBreakY     = 270.0
)

// PDF renders the full run as a paginated report: a summary block followed
// by one section per result view. Body lines wrap at the content width and
// a new page starts whenever the cursor passes the break threshold.
func PDF(run *domain.AuditRun) (filename string, data []byte, err error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfLeftMargin, pdfTopMargin, pdfLeftMargin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	w := &reportWriter{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	w.heading("Parcel Audit Report")
	w.line(fmt.Sprintf("Run %s, generated %s, tolerance %s",
		run.RunID, run.CreatedAt.Format(timestampLayout), run.Tolerance.String()))
	w.gap()

	s := run.Summary
	w.title("Summary")
	w.line(fmt.Sprintf("Carrier records: %d, POS records: %d, keys compared: %d",
		s.CarrierRecords, s.POSRecords, s.KeysCompared))
	w.line(fmt.Sprintf("Matched: %d, overbilled: %d (total %s), underbilled: %d (total %s)",
		s.Matched, s.Overbilled, s.TotalOverbilled.StringFixed(2),
		s.Underbilled, s.TotalUnderbilled.StringFixed(2)))
	w.line(fmt.Sprintf("Carrier-only keys: %d, POS-only keys: %d, late deliveries: %d, charge issues: %d",
		s.CarrierOnly, s.POSOnly, s.LateDeliveries, s.ChargeIssues))
	w.gap()

	w.title("Discrepancies")
	if len(run.Discrepancies) == 0 {
		w.line("None.")
	}
	for _, d := range run.Discrepancies {
		text := fmt.Sprintf("%s: carrier %s, POS %s, difference %s, %s",
			d.TrackingNumber, d.CarrierAmount.StringFixed(2), d.POSAmount.StringFixed(2),
			d.Difference.StringFixed(2), d.Classification)
		if d.InvoiceNumber != "" {
			text += fmt.Sprintf(" (invoice %s)", d.InvoiceNumber)
		}
		w.line(text)
	}
	w.gap()

	w.title("One-Sided Keys")
	if len(run.Membership) == 0 {
		w.line("None.")
	}
	for _, m := range run.Membership {
		w.line(fmt.Sprintf("%s: %s, amount %s",
			m.TrackingNumber, m.Side, m.Amount.StringFixed(2)))
	}
	w.gap()

	w.title("Late Deliveries")
	if len(run.LateDeliveries) == 0 {
		w.line("None.")
	}
	for _, l := range run.LateDeliveries {
		w.line(fmt.Sprintf("%s: %s %s, shipped %s, promised by %s, delivered %s, billed %s",
			l.TrackingNumber, l.Carrier, l.Service,
			l.ShippedAt.Format("2006-01-02"),
			l.PromisedBy.Format(timestampLayout),
			l.DeliveredAt.Format(timestampLayout),
			l.BilledAmount.StringFixed(2)))
	}
	w.gap()

	w.title("Charge Issues")
	if len(run.ChargeIssues) == 0 {
		w.line("None.")
	}
	for _, c := range run.ChargeIssues {
		w.line(fmt.Sprintf("%s: %s %s, amount %s - %s",
			c.TrackingNumber, c.Carrier, c.Description, c.Amount.StringFixed(2), c.Note))
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return "", nil, fmt.Errorf("render pdf: %w", err)
	}
	return Filename("audit_report", "pdf"), buf.Bytes(), nil
}

type reportWriter struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func (w *reportWriter) ensureRoom() {
	if w.pdf.GetY() > pdfBreakY {
		w.pdf.AddPage()
		w.pdf.SetY(pdfTopMargin)
	}
}

func (w *reportWriter) heading(text string) {
	w.ensureRoom()
	w.pdf.SetFont("Helvetica", "B", 16)
	w.pdf.SetX(pdfLeftMargin)
	w.pdf.CellFormat(pdfContentW, pdfLineH+4, w.tr(text), "", 1, "L", false, 0, "")
}

func (w *reportWriter) title(text string) {
	w.ensureRoom()
	w.pdf.SetFont("Helvetica", "B", 12)
	w.pdf.SetX(pdfLeftMargin)
	w.pdf.CellFormat(pdfContentW, pdfLineH+2, w.tr(text), "", 1, "L", false, 0, "")
}

func (w *reportWriter) line(text string) {
	w.pdf.SetFont("Helvetica", "", 9)
	for _, chunk := range w.pdf.SplitText(w.tr(text), pdfContentW) {
		w.ensureRoom()
		w.pdf.SetX(pdfLeftMargin)
		w.pdf.CellFormat(pdfContentW, pdfLineH, chunk, "", 1, "L", false, 0, "")
	}
}

func (w *reportWriter) gap() {
	w.pdf.Ln(pdfLineH / 2)
}
