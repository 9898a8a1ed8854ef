package carbon

import (
	"context"
	"errors"
	"log/slog"

	"github.com/xraph/carbon/id"
	"github.com/xraph/carbon/token"
	"github.com/xraph/carbon/types"
)

// MintLedger owns token editions, the pending mint workflow, per-account
// balances, and the issuance year index.
//
// It is single-writer: callers serialise mutating calls. Every mutating
// operation checks all of its preconditions before the first write, so a
// call either fully succeeds or leaves the ledger untouched.
type MintLedger struct {
	store  token.Store
	env    Environment
	logger *slog.Logger

	// exactYearWalk decrements the outstanding amount when an edition is
	// fully drained during a year transfer.
	exactYearWalk bool
}

// NewMintLedger creates a ledger over the given store.
func NewMintLedger(s token.Store, env Environment, logger *slog.Logger) *MintLedger {
	if logger == nil {
		logger = slog.Default()
	}
	return &MintLedger{store: s, env: env, logger: logger}
}

// SetExactYearWalk toggles exact accounting in TransferByYear.
func (l *MintLedger) SetExactYearWalk(exact bool) {
	l.exactYearWalk = exact
}

// ──────────────────────────────────────────────────
// Issuance workflow
// ──────────────────────────────────────────────────

// RequestMint records a pending issuance for params.RegistryID and reserves
// its edition id. Only pending requests are checked for duplicates; a
// registry reference may be submitted again once its request is resolved.
func (l *MintLedger) RequestMint(ctx context.Context, minter types.AccountID, params token.MintParams) (*token.PendingMint, error) {
	if params.RegistryID == "" {
		return nil, ValidationError{Field: "registry_id", Message: "must not be empty"}
	}

	_, err := l.store.GetPendingMint(ctx, params.RegistryID)
	switch {
	case err == nil:
		return nil, ErrTokenMintRequestAlreadyPending
	case !errors.Is(err, ErrTokenMintRequestNotFound):
		return nil, err
	}

	editionID, err := l.store.NextEditionID(ctx)
	if err != nil {
		return nil, err
	}

	p := &token.PendingMint{
		ID:          id.NewMintRequestID(),
		RegistryID:  params.RegistryID,
		EditionID:   editionID,
		Amount:      params.Amount,
		Year:        params.Year,
		Minter:      minter,
		Beneficiary: params.Beneficiary,
		Stamp:       stamp(l.env),
	}
	if err := l.store.InsertPendingMint(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ApproveMint consumes the pending request, materialises its edition, and
// credits the beneficiary with the full verified amount. It fails with
// ErrSupplyOverflow, leaving the request pending, when the minted total
// across all editions would no longer fit in a CarbonUnit.
func (l *MintLedger) ApproveMint(ctx context.Context, registryID string) (*token.Approval, error) {
	p, err := l.store.GetPendingMint(ctx, registryID)
	if err != nil {
		return nil, err
	}

	totals, err := l.Supply(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := types.Add(totals.Minted(), p.Amount); !ok {
		return nil, ErrSupplyOverflow
	}

	if err := l.store.DeletePendingMint(ctx, registryID); err != nil {
		return nil, err
	}

	e := &token.Edition{
		ID:         p.EditionID,
		Minter:     p.Minter,
		Supply:     p.Amount,
		Retired:    0,
		Year:       p.Year,
		RegistryID: p.RegistryID,
		Stamp:      stamp(l.env),
	}
	if err := l.store.InsertEdition(ctx, e); err != nil {
		return nil, err
	}
	if err := l.credit(ctx, p.Beneficiary, e.ID, p.Amount); err != nil {
		return nil, err
	}
	if err := l.store.AppendYearEdition(ctx, e.Year, e.ID); err != nil {
		return nil, err
	}
	if err := l.store.SetLastMintedEditionID(ctx, e.ID); err != nil {
		return nil, err
	}

	return &token.Approval{
		Minter:      p.Minter,
		Beneficiary: p.Beneficiary,
		EditionID:   e.ID,
		Amount:      p.Amount,
		RegistryID:  p.RegistryID,
	}, nil
}

// DenyMint consumes the pending request without creating an edition. The
// reserved edition id is left as a permanent gap.
func (l *MintLedger) DenyMint(ctx context.Context, registryID string) (*token.Denial, error) {
	p, err := l.store.GetPendingMint(ctx, registryID)
	if err != nil {
		return nil, err
	}
	if err := l.store.DeletePendingMint(ctx, registryID); err != nil {
		return nil, err
	}
	return &token.Denial{
		Minter:     p.Minter,
		RegistryID: p.RegistryID,
		EditionID:  p.EditionID,
	}, nil
}

// PendingMint returns the pending request for registryID.
func (l *MintLedger) PendingMint(ctx context.Context, registryID string) (*token.PendingMint, error) {
	return l.store.GetPendingMint(ctx, registryID)
}

// Edition returns the minted edition with the given id.
func (l *MintLedger) Edition(ctx context.Context, editionID types.EditionID) (*token.Edition, error) {
	return l.store.GetEdition(ctx, editionID)
}

// LastMintedEditionID returns the id of the most recently approved edition.
// Approval order can differ from id order.
func (l *MintLedger) LastMintedEditionID(ctx context.Context) (types.EditionID, bool, error) {
	return l.store.LastMintedEditionID(ctx)
}

// LastMintedEdition returns the most recently approved edition.
func (l *MintLedger) LastMintedEdition(ctx context.Context) (*token.Edition, error) {
	editionID, ok, err := l.store.LastMintedEditionID(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTokenNotFound
	}
	return l.store.GetEdition(ctx, editionID)
}

// ──────────────────────────────────────────────────
// Supply queries
// ──────────────────────────────────────────────────

// Supply returns the un-retired and retired totals across all editions.
func (l *MintLedger) Supply(ctx context.Context) (token.Supply, error) {
	editions, err := l.store.ListEditions(ctx)
	if err != nil {
		return token.Supply{}, err
	}
	var totals token.Supply
	for _, e := range editions {
		totals.Add(e)
	}
	return totals, nil
}

// EditionSupply returns the un-retired and retired amounts of one edition.
func (l *MintLedger) EditionSupply(ctx context.Context, editionID types.EditionID) (token.Supply, error) {
	e, err := l.store.GetEdition(ctx, editionID)
	if err != nil {
		return token.Supply{}, err
	}
	return token.Supply{Supply: e.Supply, Retired: e.Retired}, nil
}

// YearSupply returns the un-retired and retired amounts of every edition
// issued in year.
func (l *MintLedger) YearSupply(ctx context.Context, year types.Year) (token.Supply, error) {
	editionIDs, err := l.yearEditions(ctx, year)
	if err != nil {
		return token.Supply{}, err
	}
	var totals token.Supply
	for _, editionID := range editionIDs {
		e, err := l.store.GetEdition(ctx, editionID)
		if err != nil {
			return token.Supply{}, err
		}
		totals.Add(e)
	}
	return totals, nil
}

// TotalSupply returns the un-retired amount across all editions.
func (l *MintLedger) TotalSupply(ctx context.Context) (types.CarbonUnit, error) {
	totals, err := l.Supply(ctx)
	return totals.Supply, err
}

// TotalRetired returns the retired amount across all editions.
func (l *MintLedger) TotalRetired(ctx context.Context) (types.CarbonUnit, error) {
	totals, err := l.Supply(ctx)
	return totals.Retired, err
}

// SupplyByID returns the un-retired amount of one edition.
func (l *MintLedger) SupplyByID(ctx context.Context, editionID types.EditionID) (types.CarbonUnit, error) {
	s, err := l.EditionSupply(ctx, editionID)
	return s.Supply, err
}

// RetiredByID returns the retired amount of one edition.
func (l *MintLedger) RetiredByID(ctx context.Context, editionID types.EditionID) (types.CarbonUnit, error) {
	s, err := l.EditionSupply(ctx, editionID)
	return s.Retired, err
}

// SupplyByYear returns the un-retired amount of every edition issued in year.
func (l *MintLedger) SupplyByYear(ctx context.Context, year types.Year) (types.CarbonUnit, error) {
	s, err := l.YearSupply(ctx, year)
	return s.Supply, err
}

// RetiredByYear returns the retired amount of every edition issued in year.
func (l *MintLedger) RetiredByYear(ctx context.Context, year types.Year) (types.CarbonUnit, error) {
	s, err := l.YearSupply(ctx, year)
	return s.Retired, err
}

// ──────────────────────────────────────────────────
// Account balance queries
// ──────────────────────────────────────────────────

// AccountBalances returns every holding of account with its edition details,
// ordered by edition id.
func (l *MintLedger) AccountBalances(ctx context.Context, account types.AccountID) ([]token.BalanceDetail, error) {
	holdings, err := l.store.ListBalances(ctx, account)
	if err != nil {
		return nil, err
	}

	result := make([]token.BalanceDetail, 0, len(holdings))
	for _, h := range holdings {
		e, err := l.store.GetEdition(ctx, h.EditionID)
		if err != nil {
			return nil, err
		}
		result = append(result, token.BalanceDetail{Balance: h.Amount, Edition: e})
	}
	return result, nil
}

// AccountTotalBalance returns the account's balance across all editions.
// An unknown account has a balance of zero.
func (l *MintLedger) AccountTotalBalance(ctx context.Context, account types.AccountID) (types.CarbonUnit, error) {
	holdings, err := l.store.ListBalances(ctx, account)
	if err != nil {
		return 0, err
	}
	return types.Sum(holdings), nil
}

// AccountBalanceByID returns the account's balance of one edition. It fails
// with ErrTokenNotFound only when the edition does not exist.
func (l *MintLedger) AccountBalanceByID(ctx context.Context, account types.AccountID, editionID types.EditionID) (types.CarbonUnit, error) {
	if _, err := l.store.GetEdition(ctx, editionID); err != nil {
		return 0, err
	}
	return l.store.GetBalance(ctx, account, editionID)
}

// AccountBalanceByYear returns the account's balance across the editions of
// year. It fails with ErrTokenNotFound when the year has no editions.
func (l *MintLedger) AccountBalanceByYear(ctx context.Context, account types.AccountID, year types.Year) (types.CarbonUnit, error) {
	editionIDs, err := l.yearEditions(ctx, year)
	if err != nil {
		return 0, err
	}
	holdings, err := l.balancesOf(ctx, account, editionIDs)
	if err != nil {
		return 0, err
	}
	return types.Sum(holdings), nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// yearEditions returns the year's editions in approval order, or
// ErrTokenNotFound when there are none.
func (l *MintLedger) yearEditions(ctx context.Context, year types.Year) ([]types.EditionID, error) {
	editionIDs, err := l.store.ListYearEditions(ctx, year)
	if err != nil {
		return nil, err
	}
	if len(editionIDs) == 0 {
		return nil, ErrTokenNotFound
	}
	return editionIDs, nil
}

// balancesOf returns the account's balance for each edition, in the order
// given, including zero balances.
func (l *MintLedger) balancesOf(ctx context.Context, account types.AccountID, editionIDs []types.EditionID) ([]types.Holding, error) {
	holdings := make([]types.Holding, 0, len(editionIDs))
	for _, editionID := range editionIDs {
		amount, err := l.store.GetBalance(ctx, account, editionID)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, types.Holding{EditionID: editionID, Amount: amount})
	}
	return holdings, nil
}

func (l *MintLedger) credit(ctx context.Context, account types.AccountID, editionID types.EditionID, amount types.CarbonUnit) error {
	if amount == 0 {
		return nil
	}
	current, err := l.store.GetBalance(ctx, account, editionID)
	if err != nil {
		return err
	}
	return l.store.SetBalance(ctx, account, editionID, current+amount)
}
