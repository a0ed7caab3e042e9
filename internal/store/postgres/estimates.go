package postgres

import (
	"context"
	"fmt"

	"billing-engine/internal/core"
)

const estimateSelect = `
	SELECT e.id, e.organization_id, e.customer_id, c.full_name, e.title, e.status,
	       e.notes, e.po_number, e.service_address, e.valid_until, e.public_token,
	       e.subtotal_amount, e.discount_amount, e.tax_rate, e.tax_amount, e.total_amount,
	       e.sale_id, e.last_sent_at, e.sent_count, e.created_at, e.updated_at
	FROM estimates e
	JOIN customers c ON c.id = e.customer_id`

func scanEstimate(row scanner) (*core.Estimate, error) {
	var e core.Estimate
	err := row.Scan(&e.ID, &e.OrganizationID, &e.CustomerID, &e.CustomerName, &e.Title, &e.Status,
		&e.Notes, &e.PONumber, &e.ServiceAddress, &e.ValidUntil, &e.PublicToken,
		&e.SubtotalAmount, &e.DiscountAmount, &e.TaxRate, &e.TaxAmount, &e.TotalAmount,
		&e.SaleID, &e.LastSentAt, &e.SentCount, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repo) CreateEstimate(ctx context.Context, e *core.Estimate) error {
	if err := r.requireOwned(ctx, "customers", e.OrganizationID, e.CustomerID); err != nil {
		return err
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO estimates (organization_id, customer_id, title, status, notes, po_number, service_address,
		                       valid_until, public_token, subtotal_amount, discount_amount, tax_rate, tax_amount,
		                       total_amount, sale_id, last_sent_at, sent_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id
	`, e.OrganizationID, e.CustomerID, e.Title, e.Status, e.Notes, e.PONumber, e.ServiceAddress,
		e.ValidUntil, e.PublicToken, e.SubtotalAmount, e.DiscountAmount, e.TaxRate, e.TaxAmount,
		e.TotalAmount, e.SaleID, e.LastSentAt, e.SentCount, e.CreatedAt, e.UpdatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to insert estimate: %w", translate(err, "estimate"))
	}
	return r.insertItems(ctx, estimateItems, e.OrganizationID, e.ID, e.Items)
}

func (r *repo) getEstimate(ctx context.Context, orgID, estimateID int, lock bool) (*core.Estimate, error) {
	sql := estimateSelect + " WHERE e.id = $1 AND e.organization_id = $2"
	if lock {
		sql += " FOR UPDATE OF e"
	}
	e, err := scanEstimate(r.q.QueryRow(ctx, sql, estimateID, orgID))
	if err != nil {
		return nil, translate(err, fmt.Sprintf("estimate %d", estimateID))
	}
	if e.Items, err = r.loadItems(ctx, estimateItems, orgID, e.ID); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *repo) GetEstimate(ctx context.Context, orgID, estimateID int) (*core.Estimate, error) {
	return r.getEstimate(ctx, orgID, estimateID, false)
}

func (r *repo) GetEstimateForUpdate(ctx context.Context, orgID, estimateID int) (*core.Estimate, error) {
	return r.getEstimate(ctx, orgID, estimateID, true)
}

func (r *repo) GetEstimateByToken(ctx context.Context, token string) (*core.Estimate, error) {
	e, err := scanEstimate(r.q.QueryRow(ctx, estimateSelect+" WHERE e.public_token = $1", token))
	if err != nil {
		return nil, translate(err, "estimate")
	}
	if e.Items, err = r.loadItems(ctx, estimateItems, e.OrganizationID, e.ID); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *repo) GetEstimateBySale(ctx context.Context, orgID, saleID int) (*core.Estimate, error) {
	e, err := scanEstimate(r.q.QueryRow(ctx,
		estimateSelect+" WHERE e.sale_id = $1 AND e.organization_id = $2", saleID, orgID))
	if err != nil {
		return nil, translate(err, fmt.Sprintf("estimate for sale %d", saleID))
	}
	if e.Items, err = r.loadItems(ctx, estimateItems, orgID, e.ID); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *repo) ListEstimates(ctx context.Context, orgID int, status *core.EstimateStatus) ([]core.Estimate, error) {
	sql := estimateSelect + " WHERE e.organization_id = $1"
	args := []any{orgID}
	if status != nil {
		sql += " AND e.status = $2"
		args = append(args, *status)
	}
	sql += " ORDER BY e.id DESC"

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query estimates: %w", err)
	}
	defer rows.Close()

	estimates := []core.Estimate{}
	for rows.Next() {
		e, err := scanEstimate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan estimate: %w", err)
		}
		estimates = append(estimates, *e)
	}
	return estimates, rows.Err()
}

func (r *repo) UpdateEstimate(ctx context.Context, e *core.Estimate) error {
	if err := r.requireOwned(ctx, "customers", e.OrganizationID, e.CustomerID); err != nil {
		return err
	}
	tag, err := r.q.Exec(ctx, `
		UPDATE estimates SET
			customer_id = $3, title = $4, status = $5, notes = $6, po_number = $7,
			service_address = $8, valid_until = $9, subtotal_amount = $10, discount_amount = $11,
			tax_rate = $12, tax_amount = $13, total_amount = $14, sale_id = $15,
			last_sent_at = $16, sent_count = $17, updated_at = $18
		WHERE id = $1 AND organization_id = $2
	`, e.ID, e.OrganizationID, e.CustomerID, e.Title, e.Status, e.Notes, e.PONumber,
		e.ServiceAddress, e.ValidUntil, e.SubtotalAmount, e.DiscountAmount,
		e.TaxRate, e.TaxAmount, e.TotalAmount, e.SaleID,
		e.LastSentAt, e.SentCount, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update estimate: %w", translate(err, "estimate"))
	}
	if tag.RowsAffected() == 0 {
		return core.NotFoundf("estimate %d not found", e.ID)
	}
	return nil
}

func (r *repo) ReplaceEstimateItems(ctx context.Context, orgID, estimateID int, items []core.LineItem) error {
	if err := r.requireOwned(ctx, "estimates", orgID, estimateID); err != nil {
		return err
	}
	return r.replaceItems(ctx, estimateItems, orgID, estimateID, items)
}
