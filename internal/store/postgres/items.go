package postgres

import (
	"context"
	"fmt"

	"billing-engine/internal/core"
)

// itemTable describes one of the two line-item tables.
type itemTable struct {
	name   string // estimate_items | sale_items
	parent string // estimate_id | sale_id
}

var (
	estimateItems = itemTable{name: "estimate_items", parent: "estimate_id"}
	saleItems     = itemTable{name: "sale_items", parent: "sale_id"}
)

// insertItems writes items in order and assigns their IDs in place.
func (r *repo) insertItems(ctx context.Context, t itemTable, orgID, parentID int, items []core.LineItem) error {
	sql := fmt.Sprintf(`
		INSERT INTO %s (%s, organization_id, position, product_id, name, type, taxable, quantity, unit_price, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, t.name, t.parent)
	for i := range items {
		it := &items[i]
		err := r.q.QueryRow(ctx, sql,
			parentID, orgID, i+1, it.ProductID, it.Name, it.Type, it.Taxable, it.Quantity, it.UnitPrice, it.LineTotal,
		).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("failed to insert line item %d: %w", i+1, translate(err, "line item"))
		}
	}
	return nil
}

func (r *repo) loadItems(ctx context.Context, t itemTable, orgID, parentID int) ([]core.LineItem, error) {
	rows, err := r.q.Query(ctx, fmt.Sprintf(`
		SELECT id, product_id, name, type, taxable, quantity, unit_price, line_total
		FROM %s
		WHERE %s = $1 AND organization_id = $2
		ORDER BY position, id
	`, t.name, t.parent), parentID, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query line items: %w", err)
	}
	defer rows.Close()

	items := []core.LineItem{}
	for rows.Next() {
		var it core.LineItem
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Name, &it.Type, &it.Taxable,
			&it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *repo) deleteItems(ctx context.Context, t itemTable, orgID, parentID int) error {
	_, err := r.q.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s = $1 AND organization_id = $2", t.name, t.parent),
		parentID, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete line items: %w", err)
	}
	return nil
}

func (r *repo) replaceItems(ctx context.Context, t itemTable, orgID, parentID int, items []core.LineItem) error {
	if err := r.deleteItems(ctx, t, orgID, parentID); err != nil {
		return err
	}
	rows := make([]core.LineItem, len(items))
	copy(rows, items)
	return r.insertItems(ctx, t, orgID, parentID, rows)
}
