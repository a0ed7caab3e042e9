// Package seed loads a YAML fixture describing one organization, its admin
// user and a starter catalog, and writes it through the application service.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"billing-engine/internal/app"
	"billing-engine/internal/core"
)

// ErrAlreadySeeded is returned when the fixture's admin user already exists.
var ErrAlreadySeeded = errors.New("fixture already applied")

type Fixture struct {
	Organization struct {
		Name    string `yaml:"name"`
		Email   string `yaml:"email"`
		Phone   string `yaml:"phone"`
		Address string `yaml:"address"`
	} `yaml:"organization"`
	Admin struct {
		Username string `yaml:"username"`
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
	} `yaml:"admin"`
	Customers []struct {
		FullName string `yaml:"full_name"`
		Email    string `yaml:"email"`
		Phone    string `yaml:"phone"`
		Address  string `yaml:"address"`
	} `yaml:"customers"`
	Products  []struct {
		Name  string `yaml:"name"`
		Type  string `yaml:"type"`
		Price string `yaml:"price"` // blank means quoted per job
	} `yaml:"products"`
}

// Result summarizes what Apply created.
type Result struct {
	OrganizationID int
	AdminUserID    int
	Customers      int
	Products       int
}

// Parse decodes a fixture and checks the fields Apply cannot default.
func Parse(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode fixture: %w", err)
	}
	if f.Organization.Name == "" {
		return nil, fmt.Errorf("fixture: organization.name is required")
	}
	if f.Admin.Username == "" || f.Admin.Password == "" {
		return nil, fmt.Errorf("fixture: admin.username and admin.password are required")
	}
	return &f, nil
}

// LoadFile reads and parses the fixture at path.
func LoadFile(path string) (*Fixture, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixture: %w", err)
	}
	defer fh.Close()
	return Parse(fh)
}

// Apply creates the organization directly in the store, then the admin,
// customers and products through svc so they pass the same validation as
// API input. It refuses to run twice for the same admin username.
func Apply(ctx context.Context, f *Fixture, repo core.Repository, svc app.ApplicationService, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if _, err := repo.GetUserByUsername(ctx, f.Admin.Username); err == nil {
		return nil, ErrAlreadySeeded
	} else if !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up admin: %w", err)
	}

	org := &core.Organization{
		Name:    f.Organization.Name,
		Email:   f.Organization.Email,
		Phone:   f.Organization.Phone,
		Address: f.Organization.Address,
	}
	if err := repo.CreateOrganization(ctx, org); err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}
	log.Info("organization created", zap.Int("organization_id", org.ID), zap.String("name", org.Name))

	admin, err := svc.RegisterUser(ctx, org.ID, app.RegisterUserRequest{
		Username: f.Admin.Username,
		Email:    f.Admin.Email,
		Password: f.Admin.Password,
		Role:     core.RoleAdmin,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}
	res := &Result{OrganizationID: org.ID, AdminUserID: admin.ID}

	for _, c := range f.Customers {
		req := app.CustomerRequest{FullName: c.FullName, Email: c.Email, Phone: c.Phone, Address: c.Address}
		if _, err := svc.CreateCustomer(ctx, org.ID, req); err != nil {
			return res, fmt.Errorf("customer %q: %w", c.FullName, err)
		}
		res.Customers++
	}
	for _, p := range f.Products {
		req := app.ProductRequest{Name: p.Name, Type: p.Type}
		if p.Price != "" {
			price, err := decimal.NewFromString(p.Price)
			if err != nil {
				return res, fmt.Errorf("product %q: invalid price %q", p.Name, p.Price)
			}
			req.Price = &price
		}
		if _, err := svc.CreateProduct(ctx, org.ID, req); err != nil {
			return res, fmt.Errorf("product %q: %w", p.Name, err)
		}
		res.Products++
	}
	log.Info("seed applied",
		zap.Int("organization_id", res.OrganizationID),
		zap.Int("customers", res.Customers),
		zap.Int("products", res.Products),
	)
	return res, nil
}
