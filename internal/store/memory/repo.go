package memory

import (
	"context"
	"slices"
	"sort"
	"strings"

	"billing-engine/internal/core"
)

// repo implements core.Repository. With tx set it works on the transaction's
// private state; otherwise every call is its own short transaction.
type repo struct {
	store *Store
	tx    *state
}

func (r *repo) read(method string, fn func(st *state) error) error {
	if err := r.store.fault(method); err != nil {
		return err
	}
	if r.tx != nil {
		return fn(r.tx)
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return fn(r.store.st)
}

// write callbacks validate before mutating so an autocommit write that fails
// leaves the live state untouched.
func (r *repo) write(method string, fn func(st *state) error) error {
	if err := r.store.fault(method); err != nil {
		return err
	}
	if r.tx != nil {
		return fn(r.tx)
	}
	r.store.txMu.Lock()
	defer r.store.txMu.Unlock()
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return fn(r.store.st)
}

func requireOrg(st *state, orgID int) error {
	if _, ok := st.orgs[orgID]; !ok {
		return core.NotFoundf("organization %d not found", orgID)
	}
	return nil
}

// ── Organizations & users ────────────────────────────────────────────────────

func (r *repo) CreateOrganization(_ context.Context, o *core.Organization) error {
	return r.write("CreateOrganization", func(st *state) error {
		o.ID = st.next("organizations")
		st.orgs[o.ID] = *o
		return nil
	})
}

func (r *repo) GetOrganization(_ context.Context, orgID int) (*core.Organization, error) {
	var out core.Organization
	err := r.read("GetOrganization", func(st *state) error {
		o, ok := st.orgs[orgID]
		if !ok {
			return core.NotFoundf("organization %d not found", orgID)
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *repo) CreateUser(_ context.Context, u *core.User) error {
	return r.write("CreateUser", func(st *state) error {
		if err := requireOrg(st, u.OrganizationID); err != nil {
			return err
		}
		for _, existing := range st.users {
			if existing.Username == u.Username {
				return core.Conflictf(core.CodeDuplicate, "username %q is already taken", u.Username)
			}
		}
		u.ID = st.next("users")
		st.users[u.ID] = *u
		return nil
	})
}

func (r *repo) GetUser(_ context.Context, userID int) (*core.User, error) {
	var out core.User
	err := r.read("GetUser", func(st *state) error {
		u, ok := st.users[userID]
		if !ok {
			return core.NotFoundf("user %d not found", userID)
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *repo) GetUserByUsername(_ context.Context, username string) (*core.User, error) {
	var out core.User
	err := r.read("GetUserByUsername", func(st *state) error {
		for _, u := range st.users {
			if u.Username == username {
				out = u
				return nil
			}
		}
		return core.NotFoundf("user %q not found", username)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ── Customers & products ─────────────────────────────────────────────────────

func (r *repo) CreateCustomer(_ context.Context, c *core.Customer) error {
	return r.write("CreateCustomer", func(st *state) error {
		if err := requireOrg(st, c.OrganizationID); err != nil {
			return err
		}
		c.ID = st.next("customers")
		st.customers[c.ID] = *c
		return nil
	})
}

func (r *repo) GetCustomer(_ context.Context, orgID, customerID int) (*core.Customer, error) {
	var out core.Customer
	err := r.read("GetCustomer", func(st *state) error {
		c, ok := st.customers[customerID]
		if !ok || c.OrganizationID != orgID {
			return core.NotFoundf("customer %d not found", customerID)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *repo) ListCustomers(_ context.Context, orgID int) ([]core.Customer, error) {
	var out []core.Customer
	err := r.read("ListCustomers", func(st *state) error {
		for _, c := range st.customers {
			if c.OrganizationID == orgID {
				out = append(out, c)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].FullName) < strings.ToLower(out[j].FullName)
	})
	return out, err
}

func (r *repo) CreateProduct(_ context.Context, p *core.Product) error {
	return r.write("CreateProduct", func(st *state) error {
		if err := requireOrg(st, p.OrganizationID); err != nil {
			return err
		}
		p.ID = st.next("products")
		st.products[p.ID] = *p
		return nil
	})
}

func (r *repo) GetProduct(_ context.Context, orgID, productID int) (*core.Product, error) {
	var out core.Product
	err := r.read("GetProduct", func(st *state) error {
		p, ok := st.products[productID]
		if !ok || p.OrganizationID != orgID {
			return core.NotFoundf("product %d not found", productID)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *repo) ListProducts(_ context.Context, orgID int) ([]core.Product, error) {
	var out []core.Product
	err := r.read("ListProducts", func(st *state) error {
		for _, p := range st.products {
			if p.OrganizationID == orgID {
				out = append(out, p)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

// ── Estimates ────────────────────────────────────────────────────────────────

func (st *state) estimateView(e core.Estimate) core.Estimate {
	e.CustomerName = st.customers[e.CustomerID].FullName
	e.Items = slices.Clone(st.estimateItems[e.ID])
	if e.Items == nil {
		e.Items = []core.LineItem{}
	}
	return e
}

func saleLinkTaken(st *state, saleID *int, exceptEstimateID int) bool {
	if saleID == nil {
		return false
	}
	for _, e := range st.estimates {
		if e.ID != exceptEstimateID && e.SaleID != nil && *e.SaleID == *saleID {
			return true
		}
	}
	return false
}

func (r *repo) CreateEstimate(_ context.Context, e *core.Estimate) error {
	return r.write("CreateEstimate", func(st *state) error {
		if err := requireOrg(st, e.OrganizationID); err != nil {
			return err
		}
		if c, ok := st.customers[e.CustomerID]; !ok || c.OrganizationID != e.OrganizationID {
			return core.NotFoundf("customer %d not found", e.CustomerID)
		}
		for _, other := range st.estimates {
			if other.PublicToken == e.PublicToken {
				return core.Conflictf(core.CodeDuplicate, "public token already in use")
			}
		}
		if saleLinkTaken(st, e.SaleID, 0) {
			return core.Conflictf(core.CodeDuplicate, "sale %d is already linked to an estimate", *e.SaleID)
		}
		e.ID = st.next("estimates")
		e.Items = st.assignItemIDs("estimate_items", e.Items)
		row := *e
		row.Items = nil
		st.estimates[e.ID] = row
		st.estimateItems[e.ID] = slices.Clone(e.Items)
		return nil
	})
}

func (r *repo) getEstimate(method string, orgID, estimateID int) (*core.Estimate, error) {
	var out core.Estimate
	err := r.read(method, func(st *state) error {
		e, ok := st.estimates[estimateID]
		if !ok || e.OrganizationID != orgID {
			return core.NotFoundf("estimate %d not found", estimateID)
		}
		out = st.estimateView(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *repo) GetEstimate(_ context.Context, orgID, estimateID int) (*core.Estimate, error) {
	return r.getEstimate("GetEstimate", orgID, estimateID)
}

// GetEstimateForUpdate needs no extra locking: transactions are serialized.
func (r *repo) GetEstimateForUpdate(_ context.Context, orgID, estimateID int) (*core.Estimate, error) {
	return r.getEstimate("GetEstimateForUpdate", orgID, estimateID)
}

func (r *repo) GetEstimateByToken(_ context.Context, token string) (*core.Estimate, error) {
	var out core.Estimate
	err := r.read("GetEstimateByToken", func(st *state) error {
		for _, e := range st.estimates {
			if e.PublicToken == token {
				out = st.estimateView(e)
				return nil
			}
		}
		return core.NotFoundf("estimate not found")
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *repo) GetEstimateBySale(_ context.Context, orgID, saleID int) (*core.Estimate, error) {
	var out core.Estimate
	err := r.read("GetEstimateBySale", func(st *state) error {
		for _, e := range st.estimates {
			if e.OrganizationID == orgID && e.SaleID != nil && *e.SaleID == saleID {
				out = st.estimateView(e)
				return nil
			}
		}
		return core.NotFoundf("no estimate linked to sale %d", saleID)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *repo) ListEstimates(_ context.Context, orgID int, status *core.EstimateStatus) ([]core.Estimate, error) {
	var out []core.Estimate
	err := r.read("ListEstimates", func(st *state) error {
		for _, e := range st.estimates {
			if e.OrganizationID != orgID {
				continue
			}
			if status != nil && e.Status != *status {
				continue
			}
			e.CustomerName = st.customers[e.CustomerID].FullName
			out = append(out, e)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, err
}

func (r *repo) UpdateEstimate(_ context.Context, e *core.Estimate) error {
	return r.write("UpdateEstimate", func(st *state) error {
		cur, ok := st.estimates[e.ID]
		if !ok || cur.OrganizationID != e.OrganizationID {
			return core.NotFoundf("estimate %d not found", e.ID)
		}
		if saleLinkTaken(st, e.SaleID, e.ID) {
			return core.Conflictf(core.CodeDuplicate, "sale %d is already linked to an estimate", *e.SaleID)
		}
		row := *e
		row.Items = nil
		row.PublicToken = cur.PublicToken
		row.CreatedAt = cur.CreatedAt
		st.estimates[e.ID] = row
		return nil
	})
}

func (r *repo) ReplaceEstimateItems(_ context.Context, orgID, estimateID int, items []core.LineItem) error {
	return r.write("ReplaceEstimateItems", func(st *state) error {
		e, ok := st.estimates[estimateID]
		if !ok || e.OrganizationID != orgID {
			return core.NotFoundf("estimate %d not found", estimateID)
		}
		st.estimateItems[estimateID] = st.assignItemIDs("estimate_items", items)
		return nil
	})
}

// ── Sales ────────────────────────────────────────────────────────────────────

func (st *state) salePayments(saleID int) []core.Payment {
	out := []core.Payment{}
	for _, p := range st.payments {
		if p.SaleID == saleID {
			out = append(out, p)
		}
	}
	sortPayments(out)
	return out
}

func sortPayments(p []core.Payment) {
	sort.Slice(p, func(i, j int) bool {
		if !p[i].PaidAt.Equal(p[j].PaidAt) {
			return p[i].PaidAt.Before(p[j].PaidAt)
		}
		return p[i].ID < p[j].ID
	})
}

func (st *state) saleView(s core.Sale, withChildren bool) core.Sale {
	s.CustomerName = st.customers[s.CustomerID].FullName
	if withChildren {
		s.Items = slices.Clone(st.saleItems[s.ID])
		if s.Items == nil {
			s.Items = []core.LineItem{}
		}
		s.Payments = st.salePayments(s.ID)
	}
	return s
}

func (r *repo) CreateSale(_ context.Context, s *core.Sale) error {
	return r.write("CreateSale", func(st *state) error {
		if err := requireOrg(st, s.OrganizationID); err != nil {
			return err
		}
		if c, ok := st.customers[s.CustomerID]; !ok || c.OrganizationID != s.OrganizationID {
			return core.NotFoundf("customer %d not found", s.CustomerID)
		}
		s.ID = st.next("sales")
		s.Items = st.assignItemIDs("sale_items", s.Items)
		row := *s
		row.Items = nil
		row.Payments = nil
		st.sales[s.ID] = row
		st.saleItems[s.ID] = slices.Clone(s.Items)
		return nil
	})
}

func (r *repo) getSale(method string, orgID, saleID int) (*core.Sale, error) {
	var out core.Sale
	err := r.read(method, func(st *state) error {
		s, ok := st.sales[saleID]
		if !ok || s.OrganizationID != orgID {
			return core.NotFoundf("sale %d not found", saleID)
		}
		out = st.saleView(s, true)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *repo) GetSale(_ context.Context, orgID, saleID int) (*core.Sale, error) {
	return r.getSale("GetSale", orgID, saleID)
}

func (r *repo) GetSaleForUpdate(_ context.Context, orgID, saleID int) (*core.Sale, error) {
	return r.getSale("GetSaleForUpdate", orgID, saleID)
}

func (r *repo) SaleExists(_ context.Context, orgID, saleID int) (bool, error) {
	var exists bool
	err := r.read("SaleExists", func(st *state) error {
		s, ok := st.sales[saleID]
		exists = ok && s.OrganizationID == orgID
		return nil
	})
	return exists, err
}

func (r *repo) ListSales(_ context.Context, orgID int, f core.SaleFilter) ([]core.Sale, error) {
	var out []core.Sale
	err := r.read("ListSales", func(st *state) error {
		for _, s := range st.sales {
			if s.OrganizationID != orgID {
				continue
			}
			if f.Status != nil && s.Status != *f.Status {
				continue
			}
			if f.CustomerID != nil && s.CustomerID != *f.CustomerID {
				continue
			}
			if f.From != nil && s.SaleDate.Before(*f.From) {
				continue
			}
			if f.To != nil && s.SaleDate.After(*f.To) {
				continue
			}
			if f.OpenOnly && !s.BalanceAmount.IsPositive() {
				continue
			}
			if f.DueBefore != nil && (s.DueDate == nil || !s.DueDate.Before(*f.DueBefore)) {
				continue
			}
			out = append(out, st.saleView(s, false))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, err
}

func (r *repo) UpdateSale(_ context.Context, s *core.Sale) error {
	return r.write("UpdateSale", func(st *state) error {
		cur, ok := st.sales[s.ID]
		if !ok || cur.OrganizationID != s.OrganizationID {
			return core.NotFoundf("sale %d not found", s.ID)
		}
		row := *s
		row.Items = nil
		row.Payments = nil
		row.CreatedAt = cur.CreatedAt
		st.sales[s.ID] = row
		return nil
	})
}

func (r *repo) ReplaceSaleItems(_ context.Context, orgID, saleID int, items []core.LineItem) error {
	return r.write("ReplaceSaleItems", func(st *state) error {
		s, ok := st.sales[saleID]
		if !ok || s.OrganizationID != orgID {
			return core.NotFoundf("sale %d not found", saleID)
		}
		st.saleItems[saleID] = st.assignItemIDs("sale_items", items)
		return nil
	})
}

func (r *repo) DeleteSaleItems(_ context.Context, orgID, saleID int) error {
	return r.write("DeleteSaleItems", func(st *state) error {
		if s, ok := st.sales[saleID]; ok && s.OrganizationID == orgID {
			delete(st.saleItems, saleID)
		}
		return nil
	})
}

// DeleteSale mirrors the foreign keys of the SQL schema: payments and items
// must already be gone.
func (r *repo) DeleteSale(_ context.Context, orgID, saleID int) error {
	return r.write("DeleteSale", func(st *state) error {
		s, ok := st.sales[saleID]
		if !ok || s.OrganizationID != orgID {
			return nil
		}
		if len(st.saleItems[saleID]) > 0 {
			return core.Conflictf(core.CodeInvalidState, "sale %d still has line items", saleID)
		}
		for _, p := range st.payments {
			if p.SaleID == saleID {
				return core.Conflictf(core.CodeInvalidState, "sale %d still has payments", saleID)
			}
		}
		delete(st.sales, saleID)
		delete(st.saleItems, saleID)
		return nil
	})
}

// ── Payments ─────────────────────────────────────────────────────────────────

func (r *repo) CreatePayment(_ context.Context, p *core.Payment) error {
	return r.write("CreatePayment", func(st *state) error {
		s, ok := st.sales[p.SaleID]
		if !ok || s.OrganizationID != p.OrganizationID {
			return core.NotFoundf("sale %d not found", p.SaleID)
		}
		p.ID = st.next("payments")
		st.payments[p.ID] = *p
		return nil
	})
}

func (r *repo) GetPayment(_ context.Context, orgID, paymentID int) (*core.Payment, error) {
	var out core.Payment
	err := r.read("GetPayment", func(st *state) error {
		p, ok := st.payments[paymentID]
		if !ok || p.OrganizationID != orgID {
			return core.NotFoundf("payment %d not found", paymentID)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *repo) ListPayments(_ context.Context, orgID int, f core.PaymentFilter) ([]core.Payment, error) {
	out := []core.Payment{}
	err := r.read("ListPayments", func(st *state) error {
		for _, p := range st.payments {
			if p.OrganizationID != orgID {
				continue
			}
			if f.SaleID != nil && p.SaleID != *f.SaleID {
				continue
			}
			if f.From != nil && p.PaidAt.Before(*f.From) {
				continue
			}
			if f.To != nil && p.PaidAt.After(*f.To) {
				continue
			}
			out = append(out, p)
		}
		return nil
	})
	sortPayments(out)
	return out, err
}

func (r *repo) DeleteSalePayments(_ context.Context, orgID, saleID int) error {
	return r.write("DeleteSalePayments", func(st *state) error {
		for id, p := range st.payments {
			if p.OrganizationID == orgID && p.SaleID == saleID {
				delete(st.payments, id)
			}
		}
		return nil
	})
}

// ── Delivery log ─────────────────────────────────────────────────────────────

func (r *repo) AppendDeliveryLog(_ context.Context, l *core.DeliveryLog) error {
	return r.write("AppendDeliveryLog", func(st *state) error {
		if err := requireOrg(st, l.OrganizationID); err != nil {
			return err
		}
		l.ID = st.next("delivery_logs")
		st.deliveries = append(st.deliveries, *l)
		return nil
	})
}

func (r *repo) ListDeliveryLogs(_ context.Context, orgID int, f core.DeliveryLogFilter) ([]core.DeliveryLog, error) {
	out := []core.DeliveryLog{}
	err := r.read("ListDeliveryLogs", func(st *state) error {
		for i := len(st.deliveries) - 1; i >= 0; i-- {
			l := st.deliveries[i]
			if l.OrganizationID != orgID {
				continue
			}
			if f.EstimateID != nil && (l.EstimateID == nil || *l.EstimateID != *f.EstimateID) {
				continue
			}
			if f.SaleID != nil && (l.SaleID == nil || *l.SaleID != *f.SaleID) {
				continue
			}
			out = append(out, l)
		}
		return nil
	})
	return out, err
}
