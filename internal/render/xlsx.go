package render

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"billing-engine/internal/core"
)

const (
	summarySheet = "Summary"
	salesSheet   = "Sales"
)

// SummaryWorkbook exports a period summary and the sales behind it as an
// XLSX workbook with two sheets.
func SummaryWorkbook(orgName string, s *core.Summary, sales []core.Sale) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("failed to name summary sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	rows := [][]any{
		{orgName},
		{"Period", s.Range.Start.Format("2006-01-02") + " to " + s.Range.End.Format("2006-01-02")},
		{},
		{"Metric", "Value"},
		{"Total invoiced", s.TotalInvoiced.InexactFloat64()},
		{"Invoices", s.InvoiceCount},
		{"Average invoice", s.AvgInvoice.InexactFloat64()},
		{"Tax collected", s.TotalTax.InexactFloat64()},
		{"Payments received", s.TotalPayments.InexactFloat64()},
		{"Payments", s.PaymentCount},
		{"Outstanding (all open sales)", s.Outstanding.InexactFloat64()},
		{"Open sales", s.OpenCount},
	}
	if err := writeRows(f, summarySheet, rows); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(summarySheet, "A1", "A1", bold); err != nil {
		return nil, fmt.Errorf("failed to style summary title: %w", err)
	}
	if err := f.SetCellStyle(summarySheet, "A4", "B4", bold); err != nil {
		return nil, fmt.Errorf("failed to style summary header: %w", err)
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 32); err != nil {
		return nil, fmt.Errorf("failed to size summary columns: %w", err)
	}
	if err := f.SetColWidth(summarySheet, "B", "B", 24); err != nil {
		return nil, fmt.Errorf("failed to size summary columns: %w", err)
	}

	if _, err := f.NewSheet(salesSheet); err != nil {
		return nil, fmt.Errorf("failed to create sales sheet: %w", err)
	}
	salesRows := [][]any{{"Sale #", "Date", "Customer", "Status", "Total", "Tax", "Paid", "Balance"}}
	for _, sale := range sales {
		salesRows = append(salesRows, []any{
			sale.ID,
			sale.SaleDate.Format("2006-01-02"),
			sale.CustomerName,
			string(sale.Status),
			sale.TotalAmount.InexactFloat64(),
			sale.TaxAmount.InexactFloat64(),
			sale.PaidAmount.InexactFloat64(),
			sale.BalanceAmount.InexactFloat64(),
		})
	}
	if err := writeRows(f, salesSheet, salesRows); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(salesSheet, "A1", "H1", bold); err != nil {
		return nil, fmt.Errorf("failed to style sales header: %w", err)
	}
	if err := f.SetColWidth(salesSheet, "C", "C", 28); err != nil {
		return nil, fmt.Errorf("failed to size sales columns: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("failed to set %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}
