package core

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// DocumentContext bundles what a document renderer needs besides the
// document itself.
type DocumentContext struct {
	Organization *Organization
	Customer     *Customer
	Recipient    string
}

// Notifier delivers rendered documents to customers. Implementations live in
// the delivery package; the core only records outcomes.
type Notifier interface {
	SendEstimate(ctx context.Context, dc DocumentContext, est *Estimate) error
	SendInvoice(ctx context.Context, dc DocumentContext, sale *Sale) error
	SendReceipt(ctx context.Context, dc DocumentContext, sale *Sale, payment *Payment) error
}

// NopNotifier accepts every delivery without sending anything.
type NopNotifier struct{}

func (NopNotifier) SendEstimate(context.Context, DocumentContext, *Estimate) error { return nil }
func (NopNotifier) SendInvoice(context.Context, DocumentContext, *Sale) error { return nil }
func (NopNotifier) SendReceipt(context.Context, DocumentContext, *Sale, *Payment) error { return nil }

// DeliveryResult reports one delivery attempt to the caller.
type DeliveryResult struct {
	Status DeliveryStatus `json:"status"`
	Error  string         `json:"error,omitempty"`
}

// loadDocumentContext resolves the organization and customer for a document
// and picks the recipient: the explicit one if given, else the customer email.
func loadDocumentContext(ctx context.Context, repo Repository, orgID, customerID int, recipient string) (DocumentContext, error) {
	org, err := repo.GetOrganization(ctx, orgID)
	if err != nil {
		return DocumentContext{}, err
	}
	cust, err := repo.GetCustomer(ctx, orgID, customerID)
	if err != nil {
		return DocumentContext{}, err
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		recipient = strings.TrimSpace(cust.Email)
	}
	if recipient == "" {
		return DocumentContext{}, Validationf("customer %d has no email address; a recipient is required", customerID)
	}
	return DocumentContext{Organization: org, Customer: cust, Recipient: recipient}, nil
}

// recordDelivery appends the outcome of a delivery attempt. A failure to
// write the log is logged and swallowed: delivery bookkeeping never fails the
// operation that triggered it.
func recordDelivery(ctx context.Context, repo Repository, log *zap.Logger, entry DeliveryLog, sendErr error) DeliveryResult {
	entry.Status = DeliveryStatusSent
	if sendErr != nil {
		entry.Status = DeliveryStatusFailed
		entry.Error = sendErr.Error()
		log.Warn("document delivery failed",
			zap.String("kind", string(entry.Kind)),
			zap.String("recipient", entry.Recipient),
			zap.Error(sendErr))
	}
	if err := repo.AppendDeliveryLog(ctx, &entry); err != nil {
		log.Error("failed to append delivery log", zap.Error(err))
	}
	return DeliveryResult{Status: entry.Status, Error: entry.Error}
}
