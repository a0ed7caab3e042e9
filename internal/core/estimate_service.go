package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultEstimateTitle is used when an estimate is created without a title.
const DefaultEstimateTitle = "Estimate"

// EstimateMetadata holds the descriptive fields of an estimate. These never
// affect money and stay editable after conversion.
type EstimateMetadata struct {
	Title          string
	Notes          string
	PONumber       string
	ServiceAddress string
	ValidUntil     *time.Time
}

// EstimateInput is the full writable state of an estimate. Update replaces
// items wholesale, so Items is always the complete list.
type EstimateInput struct {
	CustomerID int
	Items      []RawItem
	TaxRate    decimal.Decimal
	Discount   decimal.Decimal
	EstimateMetadata
}

// MetadataPatch updates only the fields that are non-nil.
type MetadataPatch struct {
	Title           *string
	Notes           *string
	PONumber        *string
	ServiceAddress  *string
	ValidUntil      *time.Time
	ClearValidUntil bool
}

// SendResult is returned by MarkSent.
type SendResult struct {
	Estimate *Estimate     `json:"estimate"`
	Delivery DeliveryResult `json:"delivery"`
}

// EstimateService manages the quote lifecycle up to (not including) conversion.
type EstimateService interface {
	Create(ctx context.Context, orgID int, in EstimateInput) (*Estimate, error)
	// Update replaces customer, items and pricing inputs. It fails with
	// ESTIMATE_LOCKED while a linked sale exists; a stale link to a missing
	// sale is dropped and the update proceeds.
	Update(ctx context.Context, orgID, estimateID int, in EstimateInput) (*Estimate, error)
	UpdateMetadata(ctx context.Context, orgID, estimateID int, patch MetadataPatch) (*Estimate, error)
	// MarkSent stamps the send, moves DRAFT to SENT and then emails the
	// estimate. Delivery failure is recorded but does not undo the send.
	MarkSent(ctx context.Context, orgID, estimateID int, recipient string) (*SendResult, error)
	Duplicate(ctx context.Context, orgID, estimateID int) (*Estimate, error)

	Get(ctx context.Context, orgID, estimateID int) (*Estimate, error)
	List(ctx context.Context, orgID int, status *EstimateStatus) ([]Estimate, error)
	GetByPublicToken(ctx context.Context, token string) (*Estimate, error)
}

type estimateService struct {
	store Store
	opts  options
}

func NewEstimateService(store Store, opts ...Option) EstimateService {
	return &estimateService{store: store, opts: newOptions(opts)}
}

func cleanMetadata(m EstimateMetadata) EstimateMetadata {
	m.Title = strings.TrimSpace(m.Title)
	if m.Title == "" {
		m.Title = DefaultEstimateTitle
	}
	m.Notes = strings.TrimSpace(m.Notes)
	m.PONumber = strings.TrimSpace(m.PONumber)
	m.ServiceAddress = strings.TrimSpace(m.ServiceAddress)
	return m
}

// price resolves catalog references and runs the normalizer.
func price(ctx context.Context, repo Repository, orgID int, raw []RawItem, discount, taxRate decimal.Decimal) (*PricedLines, error) {
	if len(raw) == 0 {
		return nil, Validationf("at least one line item is required")
	}
	resolved, err := applyCatalog(ctx, repo, orgID, raw)
	if err != nil {
		return nil, err
	}
	return PriceLines(resolved, discount, taxRate)
}

func (s *estimateService) Create(ctx context.Context, orgID int, in EstimateInput) (*Estimate, error) {
	if in.CustomerID <= 0 {
		return nil, Validationf("customer is required")
	}
	if len(in.Items) == 0 {
		return nil, Validationf("at least one line item is required")
	}
	ctx = detach(ctx)
	meta := cleanMetadata(in.EstimateMetadata)

	var est *Estimate
	err := s.store.InTx(ctx, func(tx Repository) error {
		cust, err := tx.GetCustomer(ctx, orgID, in.CustomerID)
		if err != nil {
			return err
		}
		priced, err := price(ctx, tx, orgID, in.Items, in.Discount, in.TaxRate)
		if err != nil {
			return err
		}
		now := s.opts.now()
		est = &Estimate{
			OrganizationID: orgID,
			CustomerID:     cust.ID,
			CustomerName:   cust.FullName,
			Title:          meta.Title,
			Status:         EstimateStatusDraft,
			Notes:          meta.Notes,
			PONumber:       meta.PONumber,
			ServiceAddress: meta.ServiceAddress,
			ValidUntil:     meta.ValidUntil,
			PublicToken:    uuid.NewString(),
			Financials:     priced.Financials,
			Items:          priced.Items,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.CreateEstimate(ctx, est); err != nil {
			return fmt.Errorf("failed to create estimate: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.opts.logger(ctx, orgID).Info("estimate created",
		zap.Int("estimate_id", est.ID),
		zap.String("total", est.TotalAmount.StringFixed(2)))
	return est, nil
}

func (s *estimateService) Update(ctx context.Context, orgID, estimateID int, in EstimateInput) (*Estimate, error) {
	if in.CustomerID <= 0 {
		return nil, Validationf("customer is required")
	}
	ctx = detach(ctx)
	log := s.opts.logger(ctx, orgID)
	meta := cleanMetadata(in.EstimateMetadata)

	var est *Estimate
	err := s.store.InTx(ctx, func(tx Repository) error {
		var err error
		est, err = tx.GetEstimateForUpdate(ctx, orgID, estimateID)
		if err != nil {
			return err
		}

		if est.SaleID != nil {
			exists, err := tx.SaleExists(ctx, orgID, *est.SaleID)
			if err != nil {
				return fmt.Errorf("failed to check linked sale: %w", err)
			}
			if exists {
				return Conflictf(CodeEstimateLocked,
					"estimate %d is locked: it has been converted to sale %d; unconvert it before editing", est.ID, *est.SaleID)
			}
			next, err := est.Status.Next(EstimateEventUnlink)
			if err != nil {
				return err
			}
			log.Warn("dropping stale sale link on update",
				zap.Int("estimate_id", est.ID), zap.Int("sale_id", *est.SaleID))
			est.SaleID = nil
			est.Status = next
		}

		cust, err := tx.GetCustomer(ctx, orgID, in.CustomerID)
		if err != nil {
			return err
		}
		priced, err := price(ctx, tx, orgID, in.Items, in.Discount, in.TaxRate)
		if err != nil {
			return err
		}

		est.CustomerID = cust.ID
		est.CustomerName = cust.FullName
		est.Title = meta.Title
		est.Notes = meta.Notes
		est.PONumber = meta.PONumber
		est.ServiceAddress = meta.ServiceAddress
		est.ValidUntil = meta.ValidUntil
		est.Financials = priced.Financials
		est.UpdatedAt = s.opts.now()

		if err := tx.UpdateEstimate(ctx, est); err != nil {
			return fmt.Errorf("failed to update estimate: %w", err)
		}
		if err := tx.ReplaceEstimateItems(ctx, orgID, est.ID, priced.Items); err != nil {
			return fmt.Errorf("failed to replace estimate items: %w", err)
		}
		est.Items = priced.Items
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.store.GetEstimate(ctx, orgID, est.ID)
}

func (s *estimateService) UpdateMetadata(ctx context.Context, orgID, estimateID int, patch MetadataPatch) (*Estimate, error) {
	ctx = detach(ctx)
	var est *Estimate
	err := s.store.InTx(ctx, func(tx Repository) error {
		var err error
		est, err = tx.GetEstimateForUpdate(ctx, orgID, estimateID)
		if err != nil {
			return err
		}
		if patch.Title != nil {
			est.Title = strings.TrimSpace(*patch.Title)
			if est.Title == "" {
				est.Title = DefaultEstimateTitle
			}
		}
		if patch.Notes != nil {
			est.Notes = strings.TrimSpace(*patch.Notes)
		}
		if patch.PONumber != nil {
			est.PONumber = strings.TrimSpace(*patch.PONumber)
		}
		if patch.ServiceAddress != nil {
			est.ServiceAddress = strings.TrimSpace(*patch.ServiceAddress)
		}
		if patch.ClearValidUntil {
			est.ValidUntil = nil
		} else if patch.ValidUntil != nil {
			est.ValidUntil = patch.ValidUntil
		}
		est.UpdatedAt = s.opts.now()
		if err := tx.UpdateEstimate(ctx, est); err != nil {
			return fmt.Errorf("failed to update estimate: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return est, nil
}

func (s *estimateService) MarkSent(ctx context.Context, orgID, estimateID int, recipient string) (*SendResult, error) {
	ctx = detach(ctx)
	log := s.opts.logger(ctx, orgID)

	var (
		est *Estimate
		dc  DocumentContext
	)
	err := s.store.InTx(ctx, func(tx Repository) error {
		var err error
		est, err = tx.GetEstimateForUpdate(ctx, orgID, estimateID)
		if err != nil {
			return err
		}
		dc, err = loadDocumentContext(ctx, tx, orgID, est.CustomerID, recipient)
		if err != nil {
			return err
		}
		next, err := est.Status.Next(EstimateEventSend)
		if err != nil {
			return err
		}
		now := s.opts.now()
		est.Status = next
		est.LastSentAt = &now
		est.SentCount++
		est.UpdatedAt = now
		if err := tx.UpdateEstimate(ctx, est); err != nil {
			return fmt.Errorf("failed to mark estimate sent: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The send is durable from here on; delivery is best effort.
	sendErr := s.opts.notifier.SendEstimate(ctx, dc, est)
	estID := est.ID
	res := recordDelivery(ctx, s.store, log, DeliveryLog{
		OrganizationID: orgID,
		EstimateID:     &estID,
		Kind:           DeliveryKindEstimate,
		Recipient:      dc.Recipient,
		CreatedAt:      s.opts.now(),
	}, sendErr)

	log.Info("estimate sent",
		zap.Int("estimate_id", est.ID),
		zap.String("status", string(est.Status)),
		zap.String("delivery", string(res.Status)))
	return &SendResult{Estimate: est, Delivery: res}, nil
}

func (s *estimateService) Duplicate(ctx context.Context, orgID, estimateID int) (*Estimate, error) {
	ctx = detach(ctx)
	var dup *Estimate
	err := s.store.InTx(ctx, func(tx Repository) error {
		src, err := tx.GetEstimate(ctx, orgID, estimateID)
		if err != nil {
			return err
		}
		items := make([]LineItem, len(src.Items))
		for i, it := range src.Items {
			it.ID = 0
			items[i] = it
		}
		now := s.opts.now()
		dup = &Estimate{
			OrganizationID: orgID,
			CustomerID:     src.CustomerID,
			CustomerName:   src.CustomerName,
			Title:          src.Title + " (Copy)",
			Status:         EstimateStatusDraft,
			Notes:          src.Notes,
			PONumber:       src.PONumber,
			ServiceAddress: src.ServiceAddress,
			ValidUntil:     src.ValidUntil,
			PublicToken:    uuid.NewString(),
			Financials:     src.Financials,
			Items:          items,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.CreateEstimate(ctx, dup); err != nil {
			return fmt.Errorf("failed to duplicate estimate: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dup, nil
}

func (s *estimateService) Get(ctx context.Context, orgID, estimateID int) (*Estimate, error) {
	return s.store.GetEstimate(ctx, orgID, estimateID)
}

func (s *estimateService) List(ctx context.Context, orgID int, status *EstimateStatus) ([]Estimate, error) {
	if status != nil && !status.IsValid() {
		return nil, Validationf("unknown estimate status %q", *status)
	}
	return s.store.ListEstimates(ctx, orgID, status)
}

func (s *estimateService) GetByPublicToken(ctx context.Context, token string) (*Estimate, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, NotFoundf("estimate not found")
	}
	return s.store.GetEstimateByToken(ctx, token)
}
