package carbon

import (
	"context"
	"errors"

	"github.com/xraph/carbon/custodian"
	"github.com/xraph/carbon/types"
)

// CustodianRegistry tracks which accounts may submit mint requests.
type CustodianRegistry struct {
	store custodian.Store
	env   Environment
}

// NewCustodianRegistry creates a registry over the given store.
func NewCustodianRegistry(s custodian.Store, env Environment) *CustodianRegistry {
	return &CustodianRegistry{store: s, env: env}
}

// Admit registers account as a custodian under alias.
func (r *CustodianRegistry) Admit(ctx context.Context, account types.AccountID, alias string) (*custodian.Custodian, error) {
	admitted, err := r.IsAdmitted(ctx, account)
	if err != nil {
		return nil, err
	}
	if admitted {
		return nil, ErrCustodianAlreadyRegistered
	}

	c := &custodian.Custodian{
		Account: account,
		Alias:   alias,
		Stamp:   stamp(r.env),
	}
	if err := r.store.InsertCustodian(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Revoke removes the custodian record for account.
func (r *CustodianRegistry) Revoke(ctx context.Context, account types.AccountID) error {
	if _, err := r.store.GetCustodian(ctx, account); err != nil {
		return err
	}
	return r.store.DeleteCustodian(ctx, account)
}

// IsAdmitted reports whether account is a registered custodian.
func (r *CustodianRegistry) IsAdmitted(ctx context.Context, account types.AccountID) (bool, error) {
	_, err := r.store.GetCustodian(ctx, account)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrCustodianNotFound):
		return false, nil
	default:
		return false, err
	}
}

// List returns every custodian in store order.
func (r *CustodianRegistry) List(ctx context.Context) ([]*custodian.Custodian, error) {
	return r.store.ListCustodians(ctx)
}
