// Package memory provides an in-process store for tests and single-node
// deployments. State is lost when the process exits.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/xraph/carbon"
	"github.com/xraph/carbon/custodian"
	"github.com/xraph/carbon/retirement"
	"github.com/xraph/carbon/store"
	"github.com/xraph/carbon/token"
	"github.com/xraph/carbon/types"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	// Custodian storage, with admission order
	custodians     map[types.AccountID]*custodian.Custodian
	custodianOrder []types.AccountID

	// Token storage
	nextEditionID types.EditionID
	lastMinted    *types.EditionID
	pending       map[string]*token.PendingMint
	editions      map[types.EditionID]*token.Edition
	years         map[types.Year][]types.EditionID
	balances      map[types.AccountID]map[types.EditionID]types.CarbonUnit

	// Retirement storage
	nextRetirementID types.RetirementID
	reports          map[types.RetirementID]*retirement.Report
	accountReports   map[types.AccountID][]types.RetirementID
	lastReport       *types.RetirementID
}

func New() *Store {
	return &Store{
		custodians:     make(map[types.AccountID]*custodian.Custodian),
		pending:        make(map[string]*token.PendingMint),
		editions:       make(map[types.EditionID]*token.Edition),
		years:          make(map[types.Year][]types.EditionID),
		balances:       make(map[types.AccountID]map[types.EditionID]types.CarbonUnit),
		reports:        make(map[types.RetirementID]*retirement.Report),
		accountReports: make(map[types.AccountID][]types.RetirementID),
	}
}

// Custodian Store implementation
func (s *Store) InsertCustodian(_ context.Context, c *custodian.Custodian) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.custodians[c.Account]; exists {
		return carbon.ErrCustodianAlreadyRegistered
	}
	cp := *c
	s.custodians[c.Account] = &cp
	s.custodianOrder = append(s.custodianOrder, c.Account)
	return nil
}

func (s *Store) GetCustodian(_ context.Context, account types.AccountID) (*custodian.Custodian, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.custodians[account]
	if !ok {
		return nil, carbon.ErrCustodianNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) DeleteCustodian(_ context.Context, account types.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.custodians[account]; !ok {
		return carbon.ErrCustodianNotFound
	}
	delete(s.custodians, account)
	s.custodianOrder = slices.DeleteFunc(s.custodianOrder, func(a types.AccountID) bool {
		return a == account
	})
	return nil
}

func (s *Store) ListCustodians(_ context.Context) ([]*custodian.Custodian, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*custodian.Custodian, 0, len(s.custodianOrder))
	for _, account := range s.custodianOrder {
		cp := *s.custodians[account]
		result = append(result, &cp)
	}
	return result, nil
}

// Token Store implementation
func (s *Store) NextEditionID(_ context.Context) (types.EditionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.nextEditionID
	s.nextEditionID++
	return next, nil
}

func (s *Store) InsertPendingMint(_ context.Context, p *token.PendingMint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pending[p.RegistryID]; exists {
		return carbon.ErrTokenMintRequestAlreadyPending
	}
	cp := *p
	s.pending[p.RegistryID] = &cp
	return nil
}

func (s *Store) GetPendingMint(_ context.Context, registryID string) (*token.PendingMint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pending[registryID]
	if !ok {
		return nil, carbon.ErrTokenMintRequestNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) DeletePendingMint(_ context.Context, registryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[registryID]; !ok {
		return carbon.ErrTokenMintRequestNotFound
	}
	delete(s.pending, registryID)
	return nil
}

func (s *Store) InsertEdition(_ context.Context, e *token.Edition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.editions[e.ID]; exists {
		return carbon.ErrTokenAlreadyMinted
	}
	cp := *e
	s.editions[e.ID] = &cp
	return nil
}

func (s *Store) GetEdition(_ context.Context, editionID types.EditionID) (*token.Edition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.editions[editionID]
	if !ok {
		return nil, carbon.ErrTokenNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *Store) UpdateEdition(_ context.Context, e *token.Edition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.editions[e.ID]; !ok {
		return carbon.ErrTokenNotFound
	}
	cp := *e
	s.editions[e.ID] = &cp
	return nil
}

func (s *Store) ListEditions(_ context.Context) ([]*token.Edition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*token.Edition, 0, len(s.editions))
	for _, e := range s.editions {
		cp := *e
		result = append(result, &cp)
	}
	slices.SortFunc(result, func(a, b *token.Edition) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result, nil
}

func (s *Store) SetLastMintedEditionID(_ context.Context, editionID types.EditionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastMinted = &editionID
	return nil
}

func (s *Store) LastMintedEditionID(_ context.Context) (types.EditionID, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastMinted == nil {
		return 0, false, nil
	}
	return *s.lastMinted, true, nil
}

func (s *Store) AppendYearEdition(_ context.Context, year types.Year, editionID types.EditionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.years[year] = append(s.years[year], editionID)
	return nil
}

func (s *Store) ListYearEditions(_ context.Context, year types.Year) ([]types.EditionID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]types.EditionID{}, s.years[year]...), nil
}

func (s *Store) GetBalance(_ context.Context, account types.AccountID, editionID types.EditionID) (types.CarbonUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.balances[account][editionID], nil
}

func (s *Store) SetBalance(_ context.Context, account types.AccountID, editionID types.EditionID, amount types.CarbonUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	held := s.balances[account]
	if amount == 0 {
		delete(held, editionID)
		if len(held) == 0 {
			delete(s.balances, account)
		}
		return nil
	}
	if held == nil {
		held = make(map[types.EditionID]types.CarbonUnit)
		s.balances[account] = held
	}
	held[editionID] = amount
	return nil
}

func (s *Store) ListBalances(_ context.Context, account types.AccountID) ([]types.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	held := s.balances[account]
	result := make([]types.Holding, 0, len(held))
	for editionID, amount := range held {
		result = append(result, types.Holding{EditionID: editionID, Amount: amount})
	}
	slices.SortFunc(result, func(a, b types.Holding) int {
		return cmp.Compare(a.EditionID, b.EditionID)
	})
	return result, nil
}

func (s *Store) ClearBalances(_ context.Context, account types.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.balances, account)
	return nil
}

// Retirement Store implementation
func (s *Store) NextRetirementID(_ context.Context) (types.RetirementID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.nextRetirementID
	s.nextRetirementID++
	return next, nil
}

func (s *Store) InsertReport(_ context.Context, r *retirement.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *r
	s.reports[r.ID] = &cp
	s.accountReports[r.Beneficiary] = append(s.accountReports[r.Beneficiary], r.ID)
	if s.lastReport == nil || r.ID > *s.lastReport {
		last := r.ID
		s.lastReport = &last
	}
	return nil
}

func (s *Store) GetReport(_ context.Context, retirementID types.RetirementID) (*retirement.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[retirementID]
	if !ok {
		return nil, carbon.ErrRetirementReportNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) LastReport(_ context.Context) (*retirement.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastReport == nil {
		return nil, carbon.ErrRetirementReportNotFound
	}
	cp := *s.reports[*s.lastReport]
	return &cp, nil
}

func (s *Store) ListAccountReports(_ context.Context, account types.AccountID) ([]*retirement.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.accountReports[account]
	result := make([]*retirement.Report, 0, len(ids))
	for _, retirementID := range ids {
		cp := *s.reports[retirementID]
		result = append(result, &cp)
	}
	return result, nil
}

// Store management
func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}
