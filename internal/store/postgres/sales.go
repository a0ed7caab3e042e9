package postgres

import (
	"context"
	"fmt"
	"strings"

	"billing-engine/internal/core"
)

const saleSelect = `
	SELECT s.id, s.organization_id, s.customer_id, c.full_name, s.description, s.status,
	       s.po_number, s.service_address, s.notes, s.due_date, s.sale_date,
	       s.subtotal_amount, s.discount_amount, s.tax_rate, s.tax_amount, s.total_amount,
	       s.paid_amount, s.balance_amount, s.created_at, s.updated_at
	FROM sales s
	JOIN customers c ON c.id = s.customer_id`

func scanSale(row scanner) (*core.Sale, error) {
	var s core.Sale
	err := row.Scan(&s.ID, &s.OrganizationID, &s.CustomerID, &s.CustomerName, &s.Description, &s.Status,
		&s.PONumber, &s.ServiceAddress, &s.Notes, &s.DueDate, &s.SaleDate,
		&s.SubtotalAmount, &s.DiscountAmount, &s.TaxRate, &s.TaxAmount, &s.TotalAmount,
		&s.PaidAmount, &s.BalanceAmount, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repo) CreateSale(ctx context.Context, s *core.Sale) error {
	if err := r.requireOwned(ctx, "customers", s.OrganizationID, s.CustomerID); err != nil {
		return err
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO sales (organization_id, customer_id, description, status, po_number, service_address, notes,
		                   due_date, sale_date, subtotal_amount, discount_amount, tax_rate, tax_amount,
		                   total_amount, paid_amount, balance_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id
	`, s.OrganizationID, s.CustomerID, s.Description, s.Status, s.PONumber, s.ServiceAddress, s.Notes,
		s.DueDate, s.SaleDate, s.SubtotalAmount, s.DiscountAmount, s.TaxRate, s.TaxAmount,
		s.TotalAmount, s.PaidAmount, s.BalanceAmount, s.CreatedAt, s.UpdatedAt,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to insert sale: %w", translate(err, "sale"))
	}
	return r.insertItems(ctx, saleItems, s.OrganizationID, s.ID, s.Items)
}

func (r *repo) getSale(ctx context.Context, orgID, saleID int, lock bool) (*core.Sale, error) {
	sql := saleSelect + " WHERE s.id = $1 AND s.organization_id = $2"
	if lock {
		sql += " FOR UPDATE OF s"
	}
	s, err := scanSale(r.q.QueryRow(ctx, sql, saleID, orgID))
	if err != nil {
		return nil, translate(err, fmt.Sprintf("sale %d", saleID))
	}
	if s.Items, err = r.loadItems(ctx, saleItems, orgID, s.ID); err != nil {
		return nil, err
	}
	if s.Payments, err = r.ListPayments(ctx, orgID, core.PaymentFilter{SaleID: &s.ID}); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *repo) GetSale(ctx context.Context, orgID, saleID int) (*core.Sale, error) {
	return r.getSale(ctx, orgID, saleID, false)
}

func (r *repo) GetSaleForUpdate(ctx context.Context, orgID, saleID int) (*core.Sale, error) {
	return r.getSale(ctx, orgID, saleID, true)
}

func (r *repo) SaleExists(ctx context.Context, orgID, saleID int) (bool, error) {
	var ok bool
	err := r.q.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM sales WHERE id = $1 AND organization_id = $2)",
		saleID, orgID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check sale %d: %w", saleID, err)
	}
	return ok, nil
}

// whereBuilder accumulates AND-ed predicates with positional arguments.
type whereBuilder struct {
	clauses []string
	args    []any
}

func (w *whereBuilder) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

func (w *whereBuilder) String() string {
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func (r *repo) ListSales(ctx context.Context, orgID int, f core.SaleFilter) ([]core.Sale, error) {
	w := &whereBuilder{}
	w.add("s.organization_id = $%d", orgID)
	if f.Status != nil {
		w.add("s.status = $%d", *f.Status)
	}
	if f.CustomerID != nil {
		w.add("s.customer_id = $%d", *f.CustomerID)
	}
	if f.From != nil {
		w.add("s.sale_date >= $%d", *f.From)
	}
	if f.To != nil {
		w.add("s.sale_date <= $%d", *f.To)
	}
	if f.OpenOnly {
		w.clauses = append(w.clauses, "s.balance_amount > 0")
	}
	if f.DueBefore != nil {
		w.add("s.due_date < $%d", *f.DueBefore)
	}

	rows, err := r.q.Query(ctx, saleSelect+w.String()+" ORDER BY s.id DESC", w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	sales := []core.Sale{}
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, *s)
	}
	return sales, rows.Err()
}

func (r *repo) UpdateSale(ctx context.Context, s *core.Sale) error {
	if err := r.requireOwned(ctx, "customers", s.OrganizationID, s.CustomerID); err != nil {
		return err
	}
	tag, err := r.q.Exec(ctx, `
		UPDATE sales SET
			customer_id = $3, description = $4, status = $5, po_number = $6, service_address = $7,
			notes = $8, due_date = $9, sale_date = $10, subtotal_amount = $11, discount_amount = $12,
			tax_rate = $13, tax_amount = $14, total_amount = $15, paid_amount = $16,
			balance_amount = $17, updated_at = $18
		WHERE id = $1 AND organization_id = $2
	`, s.ID, s.OrganizationID, s.CustomerID, s.Description, s.Status, s.PONumber, s.ServiceAddress,
		s.Notes, s.DueDate, s.SaleDate, s.SubtotalAmount, s.DiscountAmount,
		s.TaxRate, s.TaxAmount, s.TotalAmount, s.PaidAmount,
		s.BalanceAmount, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update sale: %w", translate(err, "sale"))
	}
	if tag.RowsAffected() == 0 {
		return core.NotFoundf("sale %d not found", s.ID)
	}
	return nil
}

func (r *repo) ReplaceSaleItems(ctx context.Context, orgID, saleID int, items []core.LineItem) error {
	if err := r.requireOwned(ctx, "sales", orgID, saleID); err != nil {
		return err
	}
	return r.replaceItems(ctx, saleItems, orgID, saleID, items)
}

func (r *repo) DeleteSaleItems(ctx context.Context, orgID, saleID int) error {
	return r.deleteItems(ctx, saleItems, orgID, saleID)
}

func (r *repo) DeleteSale(ctx context.Context, orgID, saleID int) error {
	_, err := r.q.Exec(ctx, "DELETE FROM sales WHERE id = $1 AND organization_id = $2", saleID, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete sale %d: %w", saleID, translate(err, "sale"))
	}
	return nil
}
