// Package cli is the operator command line. Every command is a thin wrapper
// over app.ApplicationService acting on a single organization.
package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"billing-engine/internal/app"
)

// ErrUnhealthy is returned by verify when the integrity scan finds problems.
var ErrUnhealthy = errors.New("integrity check failed")

type runner struct {
	svc    app.ApplicationService
	orgID  int
	asJSON bool
}

// NewRootCommand wires every subcommand against svc. orgID is the default
// tenant and can be overridden with --org.
func NewRootCommand(svc app.ApplicationService, orgID int) *cobra.Command {
	r := &runner{svc: svc, orgID: orgID}

	root := &cobra.Command{
		Use:   "billing",
		Short: "Estimates, invoices and payments for a small service business",
		Long: `billing manages the estimate to invoice to payment flow from the shell.

Example Usage:
  billing estimates --status SENT
  billing convert 42
  billing pay 17 150.00 --method zelle
  billing report --preset thisMonth --xlsx summary.xlsx
  billing verify`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().IntVar(&r.orgID, "org", orgID, "Organization ID to act on")
	root.PersistentFlags().BoolVar(&r.asJSON, "json", false, "Print results as JSON")

	root.AddCommand(
		r.customersCmd(),
		r.estimatesCmd(),
		r.estimateCmd(),
		r.sendEstimateCmd(),
		r.convertCmd(),
		r.unconvertCmd(),
		r.repairCmd(),
		r.salesCmd(),
		r.saleCmd(),
		r.sendInvoiceCmd(),
		r.payCmd(),
		r.sendReceiptCmd(),
		r.overdueCmd(),
		r.reportCmd(),
		r.verifyCmd(),
		r.draftCmd(),
	)
	return root
}

// emit prints v as JSON when --json is set, otherwise calls table.
func (r *runner) emit(cmd *cobra.Command, v any, table func()) error {
	if r.asJSON {
		return printJSON(cmd.OutOrStdout(), v)
	}
	table()
	return nil
}

func idArg(args []string, what string) (int, error) {
	id, err := strconv.Atoi(args[0])
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, args[0])
	}
	return id, nil
}

func (r *runner) customersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "customers",
		Short: "List customers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := r.svc.ListCustomers(cmd.Context(), r.orgID)
			if err != nil {
				return err
			}
			return r.emit(cmd, res, func() { printCustomers(cmd.OutOrStdout(), res) })
		},
	}
}

func (r *runner) estimatesCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:     "estimates",
		Aliases: []string{"est"},
		Short:   "List estimates, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := r.svc.ListEstimates(cmd.Context(), r.orgID, status)
			if err != nil {
				return err
			}
			return r.emit(cmd, res, func() { printEstimates(cmd.OutOrStdout(), res) })
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (DRAFT, SENT, APPROVED)")
	return cmd
}

func (r *runner) estimateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "estimate <id>",
		Short: "Show one estimate with its line items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := idArg(args, "estimate")
			if err != nil {
				return err
			}
			est, err := r.svc.GetEstimate(cmd.Context(), r.orgID, id)
			if err != nil {
				return err
			}
			return r.emit(cmd, est, func() { printEstimateDetail(cmd.OutOrStdout(), est) })
		},
	}
}

func (r *runner) sendEstimateCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "send-estimate <id>",
		Short: "Email an estimate to the customer and mark it SENT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := idArg(args, "estimate")
			if err != nil {
				return err
			}
			res, err := r.svc.SendEstimate(cmd.Context(), r.orgID, id, app.SendRequest{Recipient: to})
			if err != nil {
				return err
			}
			return r.emit(cmd, res, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "Estimate #%d is %s (delivery %s).\n", res.Estimate.ID, res.Estimate.Status, res.Delivery.Status)
				if res.Delivery.Error != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Delivery error: %s\n", res.Delivery.Error)
				}
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Recipient email (defaults to the customer's)")
	return cmd
}

func (r *runner) convertCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "convert <estimate-id>",
		Aliases: []string{"approve", "conv"},
		Short:   "Approve an estimate and create its sale (idempotent)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := idArg(args, "estimate")
			if err != nil {
				return err
			}
			res, err := r.svc.ConvertEstimate(cmd.Context(), r.orgID, id)
			if err != nil {
				return err
			}
			return r.emit(cmd, res, func() {
				if res.Created {
					fmt.Fprintf(cmd.OutOrStdout(), "Estimate #%d converted to sale #%d.\n", res.EstimateID, res.SaleID)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Estimate #%d is already linked to sale #%d.\n", res.EstimateID, res.SaleID)
				}
			})
		},
	}
}

func (r *runner) unconvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unconvert <estimate-id>",
		Short: "Delete the linked sale and its payments, returning the estimate to DRAFT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := idArg(args, "estimate")
			if err != nil {
				return err
			}
			res, err := r.svc.UnconvertEstimate(cmd.Context(), r.orgID, id)
			if err != nil {
				return err
			}
			return r.emit(cmd, res, func() {
				if res.RemovedSaleID == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Estimate #%d was not converted; nothing removed.\n", res.EstimateID)
					return
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed sale #%d and %d payment(s); estimate #%d is DRAFT.\n",
					*res.RemovedSaleID, res.RemovedPayments, res.EstimateID)
			})
		},
	}
}

func (r *runner) repairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair <estimate-id>",
		Short: "Clear an estimate's link to a sale that no longer exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := idArg(args, "estimate")
			if err != nil {
				return err
			}
			res, err := r.svc.RepairEstimate(cmd.Context(), r.orgID, id)
			if err != nil {
				return err
			}
			return r.emit(cmd, res, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "Estimate #%d: %s\n", res.EstimateID, res.Reason)
			})
		},
	}
}

func (r *runner) salesCmd() *cobra.Command {
	var q app.SaleQuery
	cmd := &cobra.Command{
		Use:   "sales",
		Short: "List sales",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := r.svc.ListSales(cmd.Context(), r.orgID, q)
			if err != nil {
				return err
			}
			return r.emit(cmd, res, func() { printSales(cmd.OutOrStdout(), res) })
		},
	}
	cmd.Flags().StringVar(&q.Status, "status", "", "Filter by status (PENDING, PAID, OVERDUE)")
	cmd.Flags().IntVar(&q.CustomerID, "customer", 0, "Filter by customer ID")
	cmd.Flags().BoolVar(&q.OpenOnly, "open", false, "Only sales with a balance due")
	return cmd
}

func (r *runner) saleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sale <id>",
		Short: "Show one sale with its line items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := idArg(args, "sale")
			if err != nil {
				return err
			}
			sale, err := r.svc.GetSale(cmd.Context(), r.orgID, id)
			if err != nil {
				return err
			}
			return r.emit(cmd, sale, func() { printSaleDetail(cmd.OutOrStdout(), sale) })
		},
	}
}

func (r *runner) sendInvoiceCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "send-invoice <sale-id>",
		Short: "Email an invoice to the customer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := idArg(args, "sale")
			if err != nil {
				return err
			}
			res, err := r.svc.SendInvoice(cmd.Context(), r.orgID, id, app.SendRequest{Recipient: to})
			if err != nil {
				return err
			}
			return r.emit(cmd, res, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "Invoice #%d delivery %s.\n", id, res.Delivery.Status)
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Recipient email (defaults to the customer's)")
	return cmd
}

func (r *runner) payCmd() *cobra.Command {
	var req app.PaymentRequest
	cmd := &cobra.Command{
		Use:   "pay <sale-id> <amount>",
		Short: "Record a payment against a sale",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := idArg(args, "sale")
			if err != nil {
				return err
			}
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[1])
			}
			req.Amount = amount
			res, err := r.svc.ApplyPayment(cmd.Context(), r.orgID, id, req)
			if err != nil {
				return err
			}
			return r.emit(cmd, res, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "Payment #%d of %s (%s) recorded. Sale #%d is %s, balance %s.\n",
					res.Payment.ID, res.Payment.Amount.StringFixed(2), res.Payment.Method,
					res.Sale.ID, res.Sale.Status, res.Sale.BalanceAmount.StringFixed(2))
			})
		},
	}
	cmd.Flags().StringVar(&req.Method, "method", "", "CASH, CHECK, CARD, ZELLE or OTHER")
	cmd.Flags().StringVar(&req.Notes, "notes", "", "Free-form note")
	cmd.Flags().StringVar(&req.PaidAt, "date", "", "Payment date, YYYY-MM-DD (default now)")
	return cmd
}

func (r *runner) sendReceiptCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "send-receipt <payment-id>",
		Short: "Email a payment receipt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := idArg(args, "payment")
			if err != nil {
				return err
			}
			res, err := r.svc.SendReceipt(cmd.Context(), r.orgID, id, app.SendRequest{Recipient: to})
			if err != nil {
				return err
			}
			return r.emit(cmd, res, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "Receipt for payment #%d delivery %s.\n", res.PaymentID, res.Delivery.Status)
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Recipient email (defaults to the customer's)")
	return cmd
}

func (r *runner) overdueCmd() *cobra.Command {
	var req app.OverdueRequest
	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "Move past-due PENDING sales to OVERDUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := r.svc.MarkOverdue(cmd.Context(), r.orgID, req)
			if err != nil {
				return err
			}
			return r.emit(cmd, res, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "%d sale(s) marked OVERDUE as of %s.\n", res.Moved, res.AsOf)
			})
		},
	}
	cmd.Flags().StringVar(&req.AsOf, "as-of", "", "Cut-off date, YYYY-MM-DD (default today)")
	return cmd
}

func (r *runner) reportCmd() *cobra.Command {
	var (
		req  app.RangeRequest
		xlsx string
	)
	cmd := &cobra.Command{
		Use:     "report",
		Aliases: []string{"summary"},
		Short:   "Summarize invoicing and payments over a date range",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if xlsx != "" {
				doc, err := r.svc.ExportSummary(cmd.Context(), r.orgID, req)
				if err != nil {
					return err
				}
				if err := os.WriteFile(xlsx, doc.Data, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", xlsx, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes).\n", xlsx, len(doc.Data))
				return nil
			}
			s, err := r.svc.GetSummary(cmd.Context(), r.orgID, req)
			if err != nil {
				return err
			}
			return r.emit(cmd, s, func() { printSummary(cmd.OutOrStdout(), s) })
		},
	}
	cmd.Flags().StringVar(&req.Preset, "preset", "", "last7, last30, last90, thisMonth, lastMonth, ytd or custom")
	cmd.Flags().StringVar(&req.From, "from", "", "Start date for the custom preset, YYYY-MM-DD")
	cmd.Flags().StringVar(&req.To, "to", "", "End date for the custom preset, YYYY-MM-DD")
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "Write the report to this XLSX file instead of printing it")
	return cmd
}

func (r *runner) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "verify",
		Aliases: []string{"integrity"},
		Short:   "Scan for orphan links and payment mismatches",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rep, err := r.svc.CheckIntegrity(cmd.Context(), r.orgID)
			if err != nil {
				return err
			}
			if err := r.emit(cmd, rep, func() { printIntegrity(cmd.OutOrStdout(), rep) }); err != nil {
				return err
			}
			if !rep.Healthy() {
				return ErrUnhealthy
			}
			return nil
		},
	}
}

func (r *runner) draftCmd() *cobra.Command {
	var (
		req     app.DraftRequest
		taxRate string
	)
	cmd := &cobra.Command{
		Use:   "draft <job description>",
		Short: "Ask the assistant to propose line items (nothing is saved)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Description = args[0]
			if taxRate != "" {
				rate, err := decimal.NewFromString(taxRate)
				if err != nil {
					return fmt.Errorf("invalid tax rate %q", taxRate)
				}
				req.TaxRate = rate
			}
			res, err := r.svc.DraftLineItems(cmd.Context(), r.orgID, req)
			if err != nil {
				return err
			}
			return r.emit(cmd, res, func() {
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "\nTITLE:      %s\n", res.Draft.Title)
				fmt.Fprintf(w, "CONFIDENCE: %.2f\n", res.Draft.Confidence)
				if res.Draft.Notes != "" {
					fmt.Fprintf(w, "NOTES:      %s\n", res.Draft.Notes)
				}
				printLines(w, res.Items, res.Financials)
				if res.Draft.Confidence < 0.6 {
					fmt.Fprintln(w, "\nWARNING: Low confidence draft.")
				}
			})
		},
	}
	cmd.Flags().StringVar(&taxRate, "tax-rate", "", "Tax rate percent for the preview totals")
	return cmd
}
