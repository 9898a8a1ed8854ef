package custodian

import (
	"context"

	"github.com/xraph/carbon/types"
)

// Store persists custodian records keyed by account.
type Store interface {
	// InsertCustodian fails with carbon.ErrCustodianAlreadyRegistered when
	// the account already has a record.
	InsertCustodian(ctx context.Context, c *Custodian) error
	GetCustodian(ctx context.Context, account types.AccountID) (*Custodian, error)
	DeleteCustodian(ctx context.Context, account types.AccountID) error
	ListCustodians(ctx context.Context) ([]*Custodian, error)
}
