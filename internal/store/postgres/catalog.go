package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"billing-engine/internal/core"
)

// ── Organizations & users ────────────────────────────────────────────────────

func (r *repo) CreateOrganization(ctx context.Context, o *core.Organization) error {
	err := r.q.QueryRow(ctx, `
		INSERT INTO organizations (name, email, phone, address)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, o.Name, o.Email, o.Phone, o.Address).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", translate(err, "organization"))
	}
	return nil
}

func (r *repo) GetOrganization(ctx context.Context, orgID int) (*core.Organization, error) {
	var o core.Organization
	err := r.q.QueryRow(ctx, `
		SELECT id, name, email, phone, address, created_at
		FROM organizations WHERE id = $1
	`, orgID).Scan(&o.ID, &o.Name, &o.Email, &o.Phone, &o.Address, &o.CreatedAt)
	if err != nil {
		return nil, translate(err, fmt.Sprintf("organization %d", orgID))
	}
	return &o, nil
}

const userColumns = `id, organization_id, username, email, password_hash, role, is_active, created_at`

func scanUser(row scanner) (*core.User, error) {
	var u core.User
	if err := row.Scan(&u.ID, &u.OrganizationID, &u.Username, &u.Email, &u.PasswordHash,
		&u.Role, &u.IsActive, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repo) CreateUser(ctx context.Context, u *core.User) error {
	if err := r.requireOrg(ctx, u.OrganizationID); err != nil {
		return err
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO users (organization_id, username, email, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, u.OrganizationID, u.Username, u.Email, u.PasswordHash, u.Role, u.IsActive).Scan(&u.ID, &u.CreatedAt)
	return translate(err, "user")
}

func (r *repo) GetUser(ctx context.Context, userID int) (*core.User, error) {
	u, err := scanUser(r.q.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", userID))
	if err != nil {
		return nil, translate(err, fmt.Sprintf("user %d", userID))
	}
	return u, nil
}

func (r *repo) GetUserByUsername(ctx context.Context, username string) (*core.User, error) {
	u, err := scanUser(r.q.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE username = $1", username))
	if err != nil {
		return nil, translate(err, "user")
	}
	return u, nil
}

func (r *repo) requireOrg(ctx context.Context, orgID int) error {
	_, err := r.GetOrganization(ctx, orgID)
	return err
}

// ── Customers ────────────────────────────────────────────────────────────────

func (r *repo) CreateCustomer(ctx context.Context, c *core.Customer) error {
	if err := r.requireOrg(ctx, c.OrganizationID); err != nil {
		return err
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO customers (organization_id, full_name, email, phone, address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, c.OrganizationID, c.FullName, c.Email, c.Phone, c.Address).Scan(&c.ID, &c.CreatedAt)
	return translate(err, "customer")
}

func (r *repo) GetCustomer(ctx context.Context, orgID, customerID int) (*core.Customer, error) {
	var c core.Customer
	err := r.q.QueryRow(ctx, `
		SELECT id, organization_id, full_name, email, phone, address, created_at
		FROM customers WHERE id = $1 AND organization_id = $2
	`, customerID, orgID).Scan(&c.ID, &c.OrganizationID, &c.FullName, &c.Email, &c.Phone, &c.Address, &c.CreatedAt)
	if err != nil {
		return nil, translate(err, fmt.Sprintf("customer %d", customerID))
	}
	return &c, nil
}

func (r *repo) ListCustomers(ctx context.Context, orgID int) ([]core.Customer, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, organization_id, full_name, email, phone, address, created_at
		FROM customers
		WHERE organization_id = $1
		ORDER BY full_name, id
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	customers := []core.Customer{}
	for rows.Next() {
		var c core.Customer
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.FullName, &c.Email, &c.Phone, &c.Address, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// ── Products ─────────────────────────────────────────────────────────────────

func scanProduct(row scanner) (*core.Product, error) {
	var (
		p     core.Product
		price decimal.NullDecimal
	)
	if err := row.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Type, &price, &p.CreatedAt); err != nil {
		return nil, err
	}
	if price.Valid {
		p.Price = &price.Decimal
	}
	return &p, nil
}

func (r *repo) CreateProduct(ctx context.Context, p *core.Product) error {
	if err := r.requireOrg(ctx, p.OrganizationID); err != nil {
		return err
	}
	var price decimal.NullDecimal
	if p.Price != nil {
		price = decimal.NewNullDecimal(*p.Price)
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO products (organization_id, name, type, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, p.OrganizationID, p.Name, p.Type, price).Scan(&p.ID, &p.CreatedAt)
	return translate(err, "product")
}

func (r *repo) GetProduct(ctx context.Context, orgID, productID int) (*core.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, `
		SELECT id, organization_id, name, type, price, created_at
		FROM products WHERE id = $1 AND organization_id = $2
	`, productID, orgID))
	if err != nil {
		return nil, translate(err, fmt.Sprintf("product %d", productID))
	}
	return p, nil
}

func (r *repo) ListProducts(ctx context.Context, orgID int) ([]core.Product, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, organization_id, name, type, price, created_at
		FROM products
		WHERE organization_id = $1
		ORDER BY name, id
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []core.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}
