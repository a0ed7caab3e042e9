package delivery

import (
	"context"
	"fmt"
	"strings"

	"billing-engine/internal/core"
	"billing-engine/internal/render"
)

const pdfType = "application/pdf"

// Notifier implements core.Notifier by rendering the document to PDF and
// mailing it to the recipient.
type Notifier struct {
	mailer Mailer
	// PublicURL, when set, is the base of the customer-facing estimate link.
	PublicURL string
}

var _ core.Notifier = (*Notifier)(nil)

func NewNotifier(m Mailer, publicURL string) *Notifier {
	return &Notifier{mailer: m, PublicURL: strings.TrimRight(publicURL, "/")}
}

func (n *Notifier) SendEstimate(ctx context.Context, dc core.DocumentContext, est *core.Estimate) error {
	pdf, err := render.EstimatePDF(dc.Organization, dc.Customer, est)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("Hello %s,\n\nPlease find attached estimate #%d (%s) for %s.\n",
		greetingName(dc.Customer), est.ID, est.Title, render.Money(est.TotalAmount))
	if n.PublicURL != "" && est.PublicToken != "" {
		body += fmt.Sprintf("\nYou can review and approve it online: %s/public/estimates/%s\n", n.PublicURL, est.PublicToken)
	}
	body += signature(dc.Organization)

	return n.mailer.Send(ctx, Message{
		To:          dc.Recipient,
		Subject:     fmt.Sprintf("Estimate #%d from %s", est.ID, orgName(dc.Organization)),
		Body:        body,
		Attachments: []Attachment{{Filename: fmt.Sprintf("estimate-%d.pdf", est.ID), ContentType: pdfType, Data: pdf}},
	})
}

func (n *Notifier) SendInvoice(ctx context.Context, dc core.DocumentContext, sale *core.Sale) error {
	pdf, err := render.InvoicePDF(dc.Organization, dc.Customer, sale)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("Hello %s,\n\nPlease find attached invoice #%d. Balance due: %s.\n",
		greetingName(dc.Customer), sale.ID, render.Money(sale.BalanceAmount))
	if sale.DueDate != nil {
		body += fmt.Sprintf("Payment is due by %s.\n", sale.DueDate.Format("Jan 2, 2006"))
	}
	body += signature(dc.Organization)

	return n.mailer.Send(ctx, Message{
		To:          dc.Recipient,
		Subject:     fmt.Sprintf("Invoice #%d from %s", sale.ID, orgName(dc.Organization)),
		Body:        body,
		Attachments: []Attachment{{Filename: fmt.Sprintf("invoice-%d.pdf", sale.ID), ContentType: pdfType, Data: pdf}},
	})
}

func (n *Notifier) SendReceipt(ctx context.Context, dc core.DocumentContext, sale *core.Sale, p *core.Payment) error {
	pdf, err := render.ReceiptPDF(dc.Organization, dc.Customer, sale, p)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("Hello %s,\n\nThank you for your payment of %s towards invoice #%d. Remaining balance: %s.\n",
		greetingName(dc.Customer), render.Money(p.Amount), sale.ID, render.Money(sale.BalanceAmount))
	body += signature(dc.Organization)

	return n.mailer.Send(ctx, Message{
		To:          dc.Recipient,
		Subject:     fmt.Sprintf("Payment receipt for invoice #%d", sale.ID),
		Body:        body,
		Attachments: []Attachment{{Filename: fmt.Sprintf("receipt-%d.pdf", p.ID), ContentType: pdfType, Data: pdf}},
	})
}

func greetingName(c *core.Customer) string {
	if c == nil || c.FullName == "" {
		return "there"
	}
	return c.FullName
}

func orgName(org *core.Organization) string {
	if org == nil {
		return "us"
	}
	return org.Name
}

func signature(org *core.Organization) string {
	if org == nil {
		return ""
	}
	s := "\nThank you,\n" + org.Name
	if org.Phone != "" {
		s += "\n" + org.Phone
	}
	return s + "\n"
}
