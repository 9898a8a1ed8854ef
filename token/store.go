package token

import (
	"context"

	"github.com/xraph/carbon/types"
)

// Store persists editions, pending requests, balances, and the year index.
type Store interface {
	// NextEditionID returns the next edition id and advances the counter.
	NextEditionID(ctx context.Context) (types.EditionID, error)

	// Pending requests are keyed by registry reference.
	InsertPendingMint(ctx context.Context, p *PendingMint) error
	GetPendingMint(ctx context.Context, registryID string) (*PendingMint, error)
	DeletePendingMint(ctx context.Context, registryID string) error

	InsertEdition(ctx context.Context, e *Edition) error
	GetEdition(ctx context.Context, editionID types.EditionID) (*Edition, error)
	UpdateEdition(ctx context.Context, e *Edition) error
	// ListEditions returns every edition ordered by id.
	ListEditions(ctx context.Context) ([]*Edition, error)
	SetLastMintedEditionID(ctx context.Context, editionID types.EditionID) error
	LastMintedEditionID(ctx context.Context) (types.EditionID, bool, error)

	// AppendYearEdition appends to the year index; ListYearEditions returns
	// the ids in append order, or an empty slice for an unknown year.
	AppendYearEdition(ctx context.Context, year types.Year, editionID types.EditionID) error
	ListYearEditions(ctx context.Context, year types.Year) ([]types.EditionID, error)

	// GetBalance returns 0 for a missing entry. SetBalance with a zero
	// amount removes the entry.
	GetBalance(ctx context.Context, account types.AccountID, editionID types.EditionID) (types.CarbonUnit, error)
	SetBalance(ctx context.Context, account types.AccountID, editionID types.EditionID, amount types.CarbonUnit) error
	// ListBalances returns the account's non-zero holdings ordered by edition id.
	ListBalances(ctx context.Context, account types.AccountID) ([]types.Holding, error)
	ClearBalances(ctx context.Context, account types.AccountID) error
}
