// Package memory is an in-process implementation of core.Store. Transactions
// are serialized and run against a private copy of the data that replaces the
// live copy only on success, which gives the same all-or-nothing and per-row
// locking guarantees the services rely on from PostgreSQL.
package memory

import (
	"context"
	"sync"

	"billing-engine/internal/core"
)

// Store is safe for concurrent use.
type Store struct {
	repo

	txMu sync.Mutex   // held for the whole of a transaction or autocommit write
	mu   sync.RWMutex // guards st
	st   *state

	faultMu sync.Mutex
	faults  map[string]error
}

var _ core.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	s := &Store{st: newState(), faults: map[string]error{}}
	s.repo = repo{store: s}
	return s
}

// InTx runs fn against a private copy of the data. The copy becomes the live
// data only if fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(tx core.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.st.clone()
	s.mu.RUnlock()

	if err := fn(&repo{store: s, tx: work}); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = work
	s.mu.Unlock()
	return nil
}

// FailNext makes the next call of the named Repository method return err.
// It is meant for exercising rollback paths in tests.
func (s *Store) FailNext(method string, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults[method] = err
}

func (s *Store) fault(method string) error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	if err, ok := s.faults[method]; ok {
		delete(s.faults, method)
		return err
	}
	return nil
}

// DeleteSaleOutOfBand removes a sale and its children without touching any
// estimate that links to it. It reproduces the orphan-link corruption the
// repair path exists for.
func (s *Store) DeleteSaleOutOfBand(saleID int) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range s.st.payments {
		if p.SaleID == saleID {
			delete(s.st.payments, id)
		}
	}
	delete(s.st.saleItems, saleID)
	delete(s.st.sales, saleID)
}
