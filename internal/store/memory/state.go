package memory

import (
	"maps"
	"slices"

	"billing-engine/internal/core"
)

// state is one consistent version of every table. Transactions work on a
// clone and replace the live state on commit.
type state struct {
	seq           map[string]int
	orgs          map[int]core.Organization
	users         map[int]core.User
	customers     map[int]core.Customer
	products      map[int]core.Product
	estimates     map[int]core.Estimate // Items kept in estimateItems
	estimateItems map[int][]core.LineItem
	sales         map[int]core.Sale // Items and Payments kept separately
	saleItems     map[int][]core.LineItem
	payments      map[int]core.Payment
	deliveries    []core.DeliveryLog
}

func newState() *state {
	return &state{
		seq:           map[string]int{},
		orgs:          map[int]core.Organization{},
		users:         map[int]core.User{},
		customers:     map[int]core.Customer{},
		products:      map[int]core.Product{},
		estimates:     map[int]core.Estimate{},
		estimateItems: map[int][]core.LineItem{},
		sales:         map[int]core.Sale{},
		saleItems:     map[int][]core.LineItem{},
		payments:      map[int]core.Payment{},
	}
}

func cloneItems(m map[int][]core.LineItem) map[int][]core.LineItem {
	out := make(map[int][]core.LineItem, len(m))
	for k, v := range m {
		out[k] = slices.Clone(v)
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		seq:           maps.Clone(s.seq),
		orgs:          maps.Clone(s.orgs),
		users:         maps.Clone(s.users),
		customers:     maps.Clone(s.customers),
		products:      maps.Clone(s.products),
		estimates:     maps.Clone(s.estimates),
		estimateItems: cloneItems(s.estimateItems),
		sales:         maps.Clone(s.sales),
		saleItems:     cloneItems(s.saleItems),
		payments:      maps.Clone(s.payments),
		deliveries:    slices.Clone(s.deliveries),
	}
}

func (s *state) next(table string) int {
	s.seq[table]++
	return s.seq[table]
}

// assignItemIDs numbers items from the shared line-item sequence.
func (s *state) assignItemIDs(table string, items []core.LineItem) []core.LineItem {
	out := slices.Clone(items)
	for i := range out {
		out[i].ID = s.next(table)
	}
	return out
}
