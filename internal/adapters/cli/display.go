package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"billing-engine/internal/app"
	"billing-engine/internal/core"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func rule(w io.Writer, ch string, n int) {
	fmt.Fprintln(w, strings.Repeat(ch, n))
}

func printCustomers(w io.Writer, result *app.CustomerListResult) {
	fmt.Fprintln(w)
	rule(w, "=", 72)
	fmt.Fprintln(w, "  CUSTOMERS")
	rule(w, "=", 72)
	if len(result.Customers) == 0 {
		fmt.Fprintln(w, "  No customers found.")
		rule(w, "=", 72)
		return
	}
	fmt.Fprintf(w, "  %-6s %-28s %-20s %s\n", "ID", "NAME", "PHONE", "EMAIL")
	rule(w, "-", 72)
	for _, c := range result.Customers {
		fmt.Fprintf(w, "  %-6d %-28s %-20s %s\n", c.ID, c.FullName, c.Phone, c.Email)
	}
	rule(w, "=", 72)
}

func printEstimates(w io.Writer, result *app.EstimateListResult) {
	fmt.Fprintln(w)
	rule(w, "=", 80)
	fmt.Fprintln(w, "  ESTIMATES")
	rule(w, "=", 80)
	if len(result.Estimates) == 0 {
		fmt.Fprintln(w, "  No estimates found.")
		rule(w, "=", 80)
		return
	}
	fmt.Fprintf(w, "  %-5s %-24s %-20s %-10s %12s  %s\n", "ID", "TITLE", "CUSTOMER", "STATUS", "TOTAL", "SALE")
	rule(w, "-", 80)
	for _, e := range result.Estimates {
		sale := "-"
		if e.SaleID != nil {
			sale = fmt.Sprintf("#%d", *e.SaleID)
		}
		fmt.Fprintf(w, "  %-5d %-24s %-20s %-10s %12s  %s\n",
			e.ID, truncate(e.Title, 24), truncate(e.CustomerName, 20), e.Status, e.TotalAmount.StringFixed(2), sale)
	}
	rule(w, "=", 80)
}

func printEstimateDetail(w io.Writer, e *core.Estimate) {
	fmt.Fprintln(w)
	rule(w, "-", 60)
	fmt.Fprintf(w, "  Estimate:  #%d %s\n", e.ID, e.Title)
	fmt.Fprintf(w, "  Customer:  %s\n", e.CustomerName)
	fmt.Fprintf(w, "  Status:    %s\n", e.Status)
	if e.SaleID != nil {
		fmt.Fprintf(w, "  Sale:      #%d\n", *e.SaleID)
	}
	printLines(w, e.Items, e.Financials)
}

func printSaleDetail(w io.Writer, s *core.Sale) {
	fmt.Fprintln(w)
	rule(w, "-", 60)
	fmt.Fprintf(w, "  Sale:      #%d\n", s.ID)
	fmt.Fprintf(w, "  Customer:  %s\n", s.CustomerName)
	fmt.Fprintf(w, "  Status:    %s\n", s.Status)
	fmt.Fprintf(w, "  Date:      %s\n", s.SaleDate.Format("2006-01-02"))
	if s.DueDate != nil {
		fmt.Fprintf(w, "  Due:       %s\n", s.DueDate.Format("2006-01-02"))
	}
	printLines(w, s.Items, s.Financials)
	fmt.Fprintf(w, "  %43s %12s\n", "Paid", s.PaidAmount.StringFixed(2))
	fmt.Fprintf(w, "  %43s %12s\n", "Balance", s.BalanceAmount.StringFixed(2))
	rule(w, "-", 60)
}

func printLines(w io.Writer, items []core.LineItem, f core.Financials) {
	rule(w, "-", 60)
	fmt.Fprintf(w, "  %-24s %8s %12s %12s\n", "ITEM", "QTY", "UNIT PRICE", "TOTAL")
	rule(w, "-", 60)
	for _, l := range items {
		fmt.Fprintf(w, "  %-24s %8d %12s %12s\n",
			truncate(l.Name, 24), l.Quantity, l.UnitPrice.StringFixed(2), l.LineTotal.StringFixed(2))
	}
	rule(w, "-", 60)
	fmt.Fprintf(w, "  %43s %12s\n", "Subtotal", f.SubtotalAmount.StringFixed(2))
	if f.DiscountAmount.IsPositive() {
		fmt.Fprintf(w, "  %43s %12s\n", "Discount", f.DiscountAmount.Neg().StringFixed(2))
	}
	fmt.Fprintf(w, "  %43s %12s\n", "Tax", f.TaxAmount.StringFixed(2))
	fmt.Fprintf(w, "  %43s %12s\n", "Total", f.TotalAmount.StringFixed(2))
}

func printSales(w io.Writer, result *app.SaleListResult) {
	fmt.Fprintln(w)
	rule(w, "=", 80)
	fmt.Fprintln(w, "  SALES")
	rule(w, "=", 80)
	if len(result.Sales) == 0 {
		fmt.Fprintln(w, "  No sales found.")
		rule(w, "=", 80)
		return
	}
	fmt.Fprintf(w, "  %-5s %-22s %-9s %12s %12s  %s\n", "ID", "CUSTOMER", "STATUS", "TOTAL", "BALANCE", "DUE")
	rule(w, "-", 80)
	for _, s := range result.Sales {
		due := "-"
		if s.DueDate != nil {
			due = s.DueDate.Format("2006-01-02")
		}
		fmt.Fprintf(w, "  %-5d %-22s %-9s %12s %12s  %s\n",
			s.ID, truncate(s.CustomerName, 22), s.Status, s.TotalAmount.StringFixed(2), s.BalanceAmount.StringFixed(2), due)
	}
	rule(w, "=", 80)
}

func printSummary(w io.Writer, s *core.Summary) {
	fmt.Fprintln(w)
	rule(w, "=", 62)
	fmt.Fprintf(w, "  %-58s\n", "SUMMARY")
	fmt.Fprintf(w, "  Period   : %s to %s (%s)\n",
		s.Range.Start.Format("2006-01-02"), s.Range.End.Format("2006-01-02"), s.Range.Preset)
	rule(w, "=", 62)
	fmt.Fprintf(w, "  %-40s %19s\n", "Total invoiced", s.TotalInvoiced.StringFixed(2))
	fmt.Fprintf(w, "  %-40s %19s\n", "Tax collected", s.TotalTax.StringFixed(2))
	fmt.Fprintf(w, "  %-40s %19s\n", "Payments received", s.TotalPayments.StringFixed(2))
	fmt.Fprintf(w, "  %-40s %19s\n", "Outstanding", s.Outstanding.StringFixed(2))
	fmt.Fprintf(w, "  %-40s %19s\n", "Average invoice", s.AvgInvoice.StringFixed(2))
	rule(w, "-", 62)
	fmt.Fprintf(w, "  %-40s %19d\n", "Invoices", s.InvoiceCount)
	fmt.Fprintf(w, "  %-40s %19d\n", "Payments", s.PaymentCount)
	fmt.Fprintf(w, "  %-40s %19d\n", "Open invoices", s.OpenCount)
	rule(w, "=", 62)
}

func printIntegrity(w io.Writer, r *core.IntegrityReport) {
	fmt.Fprintf(w, "Scanned %d estimates, %d sales.\n", r.EstimatesScanned, r.SalesScanned)
	if r.Healthy() {
		fmt.Fprintln(w, "No problems found.")
		return
	}
	for _, o := range r.Orphans {
		fmt.Fprintf(w, "  ORPHAN    estimate #%d links to missing sale #%d (run: repair %d)\n", o.EstimateID, o.SaleID, o.EstimateID)
	}
	for _, s := range r.Shared {
		fmt.Fprintf(w, "  SHARED    sale #%d is linked from estimates %v\n", s.SaleID, s.EstimateIDs)
	}
	for _, m := range r.Mismatches {
		fmt.Fprintf(w, "  MISMATCH  sale #%d paid %s/%s, expected %s/%s",
			m.SaleID, m.StoredPaid.StringFixed(2), m.StoredBalance.StringFixed(2),
			m.ExpectedPaid.StringFixed(2), m.ExpectedBalance.StringFixed(2))
		if m.Overpaid {
			fmt.Fprint(w, " (overpaid)")
		}
		fmt.Fprintln(w)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}
