package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CustomerInput is the writable part of a Customer.
type CustomerInput struct {
	FullName string
	Email    string
	Phone    string
	Address  string
}

// ProductInput is the writable part of a Product.
type ProductInput struct {
	Name  string
	Type  string
	Price *decimal.Decimal
}

// CatalogService manages customers and the product/service catalog.
type CatalogService interface {
	CreateCustomer(ctx context.Context, orgID int, in CustomerInput) (*Customer, error)
	GetCustomer(ctx context.Context, orgID, customerID int) (*Customer, error)
	ListCustomers(ctx context.Context, orgID int) ([]Customer, error)

	CreateProduct(ctx context.Context, orgID int, in ProductInput) (*Product, error)
	GetProduct(ctx context.Context, orgID, productID int) (*Product, error)
	ListProducts(ctx context.Context, orgID int) ([]Product, error)
}

type catalogService struct {
	store Store
	opts  options
}

func NewCatalogService(store Store, opts ...Option) CatalogService {
	return &catalogService{store: store, opts: newOptions(opts)}
}

func (s *catalogService) CreateCustomer(ctx context.Context, orgID int, in CustomerInput) (*Customer, error) {
	name := strings.TrimSpace(in.FullName)
	if name == "" {
		return nil, Validationf("customer full name is required")
	}
	if _, err := s.store.GetOrganization(ctx, orgID); err != nil {
		return nil, err
	}
	c := &Customer{
		OrganizationID: orgID,
		FullName:       name,
		Email:          strings.TrimSpace(in.Email),
		Phone:          strings.TrimSpace(in.Phone),
		Address:        strings.TrimSpace(in.Address),
	}
	if err := s.store.CreateCustomer(detach(ctx), c); err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return c, nil
}

func (s *catalogService) GetCustomer(ctx context.Context, orgID, customerID int) (*Customer, error) {
	return s.store.GetCustomer(ctx, orgID, customerID)
}

func (s *catalogService) ListCustomers(ctx context.Context, orgID int) ([]Customer, error) {
	return s.store.ListCustomers(ctx, orgID)
}

func (s *catalogService) CreateProduct(ctx context.Context, orgID int, in ProductInput) (*Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, Validationf("product name is required")
	}
	if len([]rune(name)) > MaxItemNameLength {
		return nil, Validationf("product name must be at most %d characters", MaxItemNameLength)
	}
	var price *decimal.Decimal
	if in.Price != nil {
		if in.Price.IsNegative() {
			return nil, Validationf("product price must not be negative")
		}
		p := in.Price.Round(2)
		price = &p
	}
	if _, err := s.store.GetOrganization(ctx, orgID); err != nil {
		return nil, err
	}
	p := &Product{
		OrganizationID: orgID,
		Name:           name,
		Type:           NormalizeItemType(in.Type),
		Price:          price,
	}
	if err := s.store.CreateProduct(detach(ctx), p); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return p, nil
}

func (s *catalogService) GetProduct(ctx context.Context, orgID, productID int) (*Product, error) {
	return s.store.GetProduct(ctx, orgID, productID)
}

func (s *catalogService) ListProducts(ctx context.Context, orgID int) ([]Product, error) {
	return s.store.ListProducts(ctx, orgID)
}

// applyCatalog fills blanks in raw items from the referenced catalog entries:
// the product name for an empty line name, the product type for an empty
// type, and the catalog price when the line gives no unit price.
// A reference to a product outside the tenant is NotFound.
func applyCatalog(ctx context.Context, repo Repository, orgID int, raw []RawItem) ([]RawItem, error) {
	out := make([]RawItem, len(raw))
	copy(out, raw)
	for i := range out {
		if out[i].ProductID == nil {
			continue
		}
		p, err := repo.GetProduct(ctx, orgID, *out[i].ProductID)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(out[i].Name) == "" {
			out[i].Name = p.Name
		}
		if strings.TrimSpace(out[i].Type) == "" {
			out[i].Type = string(p.Type)
		}
		if !out[i].UnitPrice.Valid && p.Price != nil {
			out[i].UnitPrice = Price(*p.Price)
		}
	}
	return out, nil
}
