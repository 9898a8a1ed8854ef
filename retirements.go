package carbon

import (
	"context"
	"errors"

	"github.com/xraph/carbon/retirement"
	"github.com/xraph/carbon/token"
	"github.com/xraph/carbon/types"
)

// RetirementBook records retirements and indexes them per account. It never
// touches editions or balances; it stores the snapshot it is given.
type RetirementBook struct {
	store retirement.Store
	env   Environment
}

// NewRetirementBook creates a book over the given store.
func NewRetirementBook(s retirement.Store, env Environment) *RetirementBook {
	return &RetirementBook{store: s, env: env}
}

// Record writes the report for a retirement that has already been applied
// to the ledger. snapshot.Balance is the retired amount.
func (b *RetirementBook) Record(ctx context.Context, account types.AccountID, snapshot token.BalanceDetail) (*retirement.Receipt, error) {
	r, err := b.record(ctx, account, snapshot)
	if err != nil {
		return nil, err
	}
	return &retirement.Receipt{ID: r.ID, Amount: r.Amount}, nil
}

func (b *RetirementBook) record(ctx context.Context, account types.AccountID, snapshot token.BalanceDetail) (*retirement.Report, error) {
	if snapshot.Edition == nil {
		return nil, ValidationError{Field: "detail", Message: "edition snapshot is required"}
	}

	retirementID, err := b.store.NextRetirementID(ctx)
	if err != nil {
		return nil, err
	}

	r := &retirement.Report{
		ID:          retirementID,
		Beneficiary: account,
		EditionID:   snapshot.Edition.ID,
		Amount:      snapshot.Balance,
		RegistryID:  snapshot.Edition.RegistryID,
		Stamp:       stamp(b.env),
	}
	if err := b.store.InsertReport(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Report returns the report with the given id.
func (b *RetirementBook) Report(ctx context.Context, retirementID types.RetirementID) (*retirement.Report, error) {
	return b.store.GetReport(ctx, retirementID)
}

// LastReport returns the most recent report.
func (b *RetirementBook) LastReport(ctx context.Context) (*retirement.Report, error) {
	return b.store.LastReport(ctx)
}

// LastReportID returns the id of the most recent report, if any.
func (b *RetirementBook) LastReportID(ctx context.Context) (types.RetirementID, bool, error) {
	r, err := b.store.LastReport(ctx)
	if err != nil {
		if errors.Is(err, ErrRetirementReportNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return r.ID, true, nil
}

// AccountReports returns the account's reports in retirement order. An
// account without retirements yields an empty slice.
func (b *RetirementBook) AccountReports(ctx context.Context, account types.AccountID) ([]*retirement.Report, error) {
	reports, err := b.store.ListAccountReports(ctx, account)
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []*retirement.Report{}
	}
	return reports, nil
}
