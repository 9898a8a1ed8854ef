package retirement

import (
	"context"

	"github.com/xraph/carbon/types"
)

// Store persists retirement reports and the per-account report index.
type Store interface {
	// NextRetirementID returns the next retirement id and advances the counter.
	NextRetirementID(ctx context.Context) (types.RetirementID, error)
	InsertReport(ctx context.Context, r *Report) error
	GetReport(ctx context.Context, retirementID types.RetirementID) (*Report, error)
	// LastReport returns the report with the highest id.
	LastReport(ctx context.Context) (*Report, error)
	// ListAccountReports returns the account's reports in retirement order.
	ListAccountReports(ctx context.Context, account types.AccountID) ([]*Report, error)
}
