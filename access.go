package carbon

import (
	"context"

	"github.com/xraph/carbon/types"
)

// Capability checks performed by the Engine before it calls into a
// component. The components themselves never return ErrUnauthorized.

// requireGovernor admits only the configured governor.
func (e *Engine) requireGovernor(caller types.AccountID) error {
	if e.governor.IsZero() || caller != e.governor {
		return ErrUnauthorized
	}
	return nil
}

// requireCustodian admits only registered custodians.
func (e *Engine) requireCustodian(ctx context.Context, caller types.AccountID) error {
	if caller.IsZero() || caller.IsBlackhole() {
		return ErrUnauthorized
	}
	ok, err := e.custodians.IsAdmitted(ctx, caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

// requireHolder admits any identified caller acting on its own balances.
func (e *Engine) requireHolder(caller types.AccountID) error {
	if caller.IsZero() {
		return ErrUnauthorized
	}
	return nil
}

// requireSender admits any identified caller that may debit its own
// balances. The blackhole can never send.
func (e *Engine) requireSender(caller types.AccountID) error {
	if caller.IsZero() || caller.IsBlackhole() {
		return ErrUnauthorized
	}
	return nil
}

// requireRecipient rejects an unset destination account.
func requireRecipient(to types.AccountID) error {
	if to.IsZero() {
		return ValidationError{Field: "to", Message: "recipient account is required"}
	}
	return nil
}
