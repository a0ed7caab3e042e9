package postgres

import (
	"context"
	"fmt"

	"billing-engine/internal/core"
)

const paymentColumns = `id, organization_id, sale_id, amount, method, notes, paid_at, created_at`

func scanPayment(row scanner) (*core.Payment, error) {
	var p core.Payment
	if err := row.Scan(&p.ID, &p.OrganizationID, &p.SaleID, &p.Amount, &p.Method,
		&p.Notes, &p.PaidAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repo) CreatePayment(ctx context.Context, p *core.Payment) error {
	if err := r.requireOwned(ctx, "sales", p.OrganizationID, p.SaleID); err != nil {
		return err
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO payments (organization_id, sale_id, amount, method, notes, paid_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, p.OrganizationID, p.SaleID, p.Amount, p.Method, p.Notes, p.PaidAt, p.CreatedAt).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", translate(err, "payment"))
	}
	return nil
}

func (r *repo) GetPayment(ctx context.Context, orgID, paymentID int) (*core.Payment, error) {
	p, err := scanPayment(r.q.QueryRow(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE id = $1 AND organization_id = $2",
		paymentID, orgID))
	if err != nil {
		return nil, translate(err, fmt.Sprintf("payment %d", paymentID))
	}
	return p, nil
}

func (r *repo) ListPayments(ctx context.Context, orgID int, f core.PaymentFilter) ([]core.Payment, error) {
	w := &whereBuilder{}
	w.add("organization_id = $%d", orgID)
	if f.SaleID != nil {
		w.add("sale_id = $%d", *f.SaleID)
	}
	if f.From != nil {
		w.add("paid_at >= $%d", *f.From)
	}
	if f.To != nil {
		w.add("paid_at <= $%d", *f.To)
	}

	rows, err := r.q.Query(ctx, "SELECT "+paymentColumns+" FROM payments"+w.String()+" ORDER BY paid_at, id", w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	payments := []core.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func (r *repo) DeleteSalePayments(ctx context.Context, orgID, saleID int) error {
	_, err := r.q.Exec(ctx, "DELETE FROM payments WHERE sale_id = $1 AND organization_id = $2", saleID, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete payments of sale %d: %w", saleID, err)
	}
	return nil
}

// ── Delivery log ─────────────────────────────────────────────────────────────

func (r *repo) AppendDeliveryLog(ctx context.Context, l *core.DeliveryLog) error {
	err := r.q.QueryRow(ctx, `
		INSERT INTO delivery_logs (organization_id, estimate_id, sale_id, kind, recipient, status, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, l.OrganizationID, l.EstimateID, l.SaleID, l.Kind, l.Recipient, l.Status, l.Error, l.CreatedAt).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("failed to append delivery log: %w", translate(err, "delivery log"))
	}
	return nil
}

func (r *repo) ListDeliveryLogs(ctx context.Context, orgID int, f core.DeliveryLogFilter) ([]core.DeliveryLog, error) {
	w := &whereBuilder{}
	w.add("organization_id = $%d", orgID)
	if f.EstimateID != nil {
		w.add("estimate_id = $%d", *f.EstimateID)
	}
	if f.SaleID != nil {
		w.add("sale_id = $%d", *f.SaleID)
	}

	rows, err := r.q.Query(ctx, `
		SELECT id, organization_id, estimate_id, sale_id, kind, recipient, status, error, created_at
		FROM delivery_logs`+w.String()+`
		ORDER BY created_at DESC, id DESC`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery logs: %w", err)
	}
	defer rows.Close()

	logs := []core.DeliveryLog{}
	for rows.Next() {
		var l core.DeliveryLog
		if err := rows.Scan(&l.ID, &l.OrganizationID, &l.EstimateID, &l.SaleID, &l.Kind,
			&l.Recipient, &l.Status, &l.Error, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan delivery log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
