// Package render turns estimates, sales and reports into customer-facing
// documents: PDFs for estimates, invoices and receipts and an XLSX workbook
// for the period summary.
package render

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"billing-engine/internal/core"
)

const (
	pageFormat = "Letter"
	font       = "Helvetica"
	dateFormat = "Jan 2, 2006"
)

// column widths of the line-item table, in mm
var itemColumns = []struct {
	title string
	width float64
	align string
}{
	{"Description", 90, "L"},
	{"Type", 24, "L"},
	{"Qty", 16, "R"},
	{"Unit price", 30, "R"},
	{"Amount", 30, "R"},
}

// document wraps a gofpdf page with the few layout helpers the three
// document kinds share.
type document struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func newDocument(title string) *document {
	pdf := gofpdf.New("P", "mm", pageFormat, "")
	pdf.SetTitle(title, true)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	return &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (d *document) header(org *core.Organization, heading string) {
	d.pdf.SetFont(font, "B", 18)
	d.pdf.CellFormat(110, 9, d.tr(orgName(org)), "", 0, "L", false, 0, "")
	d.pdf.SetFont(font, "B", 16)
	d.pdf.CellFormat(0, 9, heading, "", 1, "R", false, 0, "")

	d.pdf.SetFont(font, "", 9)
	if org != nil {
		for _, line := range []string{org.Address, org.Phone, org.Email} {
			if line != "" {
				d.pdf.CellFormat(0, 4.5, d.tr(line), "", 1, "L", false, 0, "")
			}
		}
	}
	d.pdf.Ln(6)
}

// fields prints label/value pairs, skipping empty values.
func (d *document) fields(pairs ...string) {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			continue
		}
		d.pdf.SetFont(font, "B", 10)
		d.pdf.CellFormat(35, 6, pairs[i], "", 0, "L", false, 0, "")
		d.pdf.SetFont(font, "", 10)
		d.pdf.MultiCell(0, 6, d.tr(pairs[i+1]), "", "L", false)
	}
	d.pdf.Ln(4)
}

func (d *document) items(items []core.LineItem) {
	d.pdf.SetFont(font, "B", 10)
	d.pdf.SetFillColor(235, 235, 235)
	for _, c := range itemColumns {
		d.pdf.CellFormat(c.width, 7, c.title, "B", 0, c.align, true, 0, "")
	}
	d.pdf.Ln(-1)

	d.pdf.SetFont(font, "", 10)
	for _, it := range items {
		name := it.Name
		if !it.Taxable {
			name += " (non-taxable)"
		}
		cells := []string{
			name,
			string(it.Type),
			strconv.Itoa(it.Quantity),
			Money(it.UnitPrice),
			Money(it.LineTotal),
		}
		for i, c := range itemColumns {
			d.pdf.CellFormat(c.width, 6, d.tr(truncate(cells[i], 60)), "", 0, c.align, false, 0, "")
		}
		d.pdf.Ln(-1)
	}
	d.pdf.Ln(3)
}

// totals right-aligns label/amount rows under the item table.
func (d *document) totals(rows ...totalRow) {
	for _, r := range rows {
		style := ""
		if r.bold {
			style = "B"
		}
		d.pdf.SetFont(font, style, 10)
		d.pdf.CellFormat(130, 6, "", "", 0, "L", false, 0, "")
		d.pdf.CellFormat(30, 6, r.label, "", 0, "R", false, 0, "")
		d.pdf.CellFormat(30, 6, Money(r.amount), "", 1, "R", false, 0, "")
	}
	d.pdf.Ln(4)
}

func (d *document) notes(text string) {
	if text == "" {
		return
	}
	d.pdf.SetFont(font, "B", 10)
	d.pdf.CellFormat(0, 6, "Notes", "", 1, "L", false, 0, "")
	d.pdf.SetFont(font, "", 10)
	d.pdf.MultiCell(0, 5, d.tr(text), "", "L", false)
}

func (d *document) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type totalRow struct {
	label  string
	amount decimal.Decimal
	bold   bool
}

func financialRows(f core.Financials) []totalRow {
	rows := []totalRow{{label: "Subtotal", amount: f.SubtotalAmount}}
	if f.DiscountAmount.IsPositive() {
		rows = append(rows, totalRow{label: "Discount", amount: f.DiscountAmount.Neg()})
	}
	if f.TaxRate.IsPositive() {
		rows = append(rows, totalRow{label: "Tax " + f.TaxRate.String() + "%", amount: f.TaxAmount})
	}
	return append(rows, totalRow{label: "Total", amount: f.TotalAmount, bold: true})
}

// EstimatePDF renders a quote for the customer.
func EstimatePDF(org *core.Organization, cust *core.Customer, est *core.Estimate) ([]byte, error) {
	d := newDocument(fmt.Sprintf("Estimate %d", est.ID))
	d.header(org, "ESTIMATE")
	d.fields(
		"Estimate #", strconv.Itoa(est.ID),
		"Date", est.CreatedAt.Format(dateFormat),
		"Valid until", optionalDate(est.ValidUntil),
		"Prepared for", customerBlock(cust, est.CustomerName),
		"Service address", est.ServiceAddress,
		"PO number", est.PONumber,
		"Project", est.Title,
	)
	d.items(est.Items)
	d.totals(financialRows(est.Financials)...)
	d.notes(est.Notes)
	return d.bytes()
}

// InvoicePDF renders an invoice including payments received so far.
func InvoicePDF(org *core.Organization, cust *core.Customer, sale *core.Sale) ([]byte, error) {
	d := newDocument(fmt.Sprintf("Invoice %d", sale.ID))
	d.header(org, "INVOICE")
	d.fields(
		"Invoice #", strconv.Itoa(sale.ID),
		"Date", sale.SaleDate.Format(dateFormat),
		"Due", optionalDate(sale.DueDate),
		"Status", string(sale.Status),
		"Bill to", customerBlock(cust, sale.CustomerName),
		"Service address", sale.ServiceAddress,
		"PO number", sale.PONumber,
		"Description", sale.Description,
	)
	d.items(sale.Items)
	rows := financialRows(sale.Financials)
	rows = append(rows,
		totalRow{label: "Paid", amount: sale.PaidAmount},
		totalRow{label: "Balance due", amount: sale.BalanceAmount, bold: true},
	)
	d.totals(rows...)
	d.notes(sale.Notes)
	return d.bytes()
}

// ReceiptPDF acknowledges one payment against a sale.
func ReceiptPDF(org *core.Organization, cust *core.Customer, sale *core.Sale, p *core.Payment) ([]byte, error) {
	d := newDocument(fmt.Sprintf("Receipt %d", p.ID))
	d.header(org, "RECEIPT")
	d.fields(
		"Receipt #", strconv.Itoa(p.ID),
		"Invoice #", strconv.Itoa(sale.ID),
		"Paid on", p.PaidAt.Format(dateFormat),
		"Method", string(p.Method),
		"Received from", customerBlock(cust, sale.CustomerName),
	)
	d.totals(
		totalRow{label: "Amount paid", amount: p.Amount, bold: true},
		totalRow{label: "Invoice total", amount: sale.TotalAmount},
		totalRow{label: "Balance due", amount: sale.BalanceAmount},
	)
	d.notes(p.Notes)
	return d.bytes()
}

// Money formats an amount as dollars with two decimals.
func Money(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

func orgName(org *core.Organization) string {
	if org == nil {
		return ""
	}
	return org.Name
}

func customerBlock(c *core.Customer, fallback string) string {
	if c == nil {
		return fallback
	}
	s := c.FullName
	if c.Address != "" {
		s += "\n" + c.Address
	}
	if c.Email != "" {
		s += "\n" + c.Email
	}
	return s
}

func optionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateFormat)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
