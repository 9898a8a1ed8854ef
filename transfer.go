package carbon

import (
	"context"

	"github.com/xraph/carbon/token"
	"github.com/xraph/carbon/types"
)

// TransferAll moves every holding of from to to and clears from's balances.
// It returns the moved holdings ordered by edition id.
func (l *MintLedger) TransferAll(ctx context.Context, from, to types.AccountID) ([]types.Holding, error) {
	holdings, err := l.store.ListBalances(ctx, from)
	if err != nil {
		return nil, err
	}
	if types.Sum(holdings) == 0 {
		return nil, ErrCannotTransferZeroCarbonUnit
	}

	if err := l.store.ClearBalances(ctx, from); err != nil {
		return nil, err
	}
	for _, h := range holdings {
		if err := l.credit(ctx, to, h.EditionID, h.Amount); err != nil {
			return nil, err
		}
	}
	return holdings, nil
}

// TransferByID moves amount of one edition from from to to. An edition the
// account does not hold, known or not, is an insufficient balance.
func (l *MintLedger) TransferByID(ctx context.Context, from, to types.AccountID, editionID types.EditionID, amount types.CarbonUnit) (types.Holding, error) {
	if amount == 0 {
		return types.Holding{}, ErrCannotTransferZeroCarbonUnit
	}

	balance, err := l.store.GetBalance(ctx, from, editionID)
	if err != nil {
		return types.Holding{}, err
	}
	if balance < amount {
		return types.Holding{}, ErrInsufficientCarbonUnit
	}

	if err := l.move(ctx, from, to, types.Holding{EditionID: editionID, Amount: amount}, balance); err != nil {
		return types.Holding{}, err
	}
	return types.Holding{EditionID: editionID, Amount: amount}, nil
}

// TransferByYear drains from's editions of year in approval order until the
// requested amount is covered, and credits to per edition drained.
//
// By default an edition that is fully drained does not reduce the
// outstanding amount, so the walk keeps draining later editions and may move
// more than requested; it never moves more than from holds for the year.
// With exact accounting enabled the walk moves exactly amount.
func (l *MintLedger) TransferByYear(ctx context.Context, from, to types.AccountID, year types.Year, amount types.CarbonUnit) ([]types.Holding, error) {
	if amount == 0 {
		return nil, ErrCannotTransferZeroCarbonUnit
	}

	editionIDs, err := l.yearEditions(ctx, year)
	if err != nil {
		return nil, err
	}
	balances, err := l.balancesOf(ctx, from, editionIDs)
	if err != nil {
		return nil, err
	}
	if types.Sum(balances) < amount {
		return nil, ErrInsufficientCarbonUnit
	}

	plan := l.walkYear(balances, amount)

	for _, step := range plan {
		if err := l.store.SetBalance(ctx, from, step.EditionID, step.remaining()); err != nil {
			return nil, err
		}
	}
	moved := make([]types.Holding, 0, len(plan))
	for _, step := range plan {
		if err := l.credit(ctx, to, step.EditionID, step.Amount); err != nil {
			return nil, err
		}
		moved = append(moved, step.Holding)
	}

	if total := types.Sum(moved); total != amount {
		l.logger.Warn("year transfer moved a different amount than requested",
			"from", from,
			"to", to,
			"year", year,
			"requested", amount,
			"moved", total,
		)
	}
	return moved, nil
}

// yearStep is one edition drained by a year walk.
type yearStep struct {
	types.Holding
	balance types.CarbonUnit
}

func (s yearStep) remaining() types.CarbonUnit { return s.balance - s.Amount }

func (l *MintLedger) walkYear(balances []types.Holding, amount types.CarbonUnit) []yearStep {
	var plan []yearStep
	outstanding := amount

	for _, b := range balances {
		if outstanding == 0 {
			break
		}
		if b.Amount == 0 {
			continue
		}

		step := yearStep{Holding: types.Holding{EditionID: b.EditionID}, balance: b.Amount}
		if b.Amount < outstanding {
			step.Amount = b.Amount
			if l.exactYearWalk {
				outstanding -= b.Amount
			}
		} else {
			step.Amount = outstanding
			outstanding = 0
		}
		plan = append(plan, step)
	}
	return plan
}

// TransferCompounded moves a bundle of holdings all-or-nothing. Every pair
// is validated before any balance changes; amounts for a repeated edition
// are checked against the account's balance in aggregate.
func (l *MintLedger) TransferCompounded(ctx context.Context, from, to types.AccountID, bundle []types.Holding) ([]types.Holding, error) {
	if len(bundle) == 0 {
		return nil, ErrCannotTransferZeroCarbonUnit
	}

	required := make(map[types.EditionID]types.CarbonUnit, len(bundle))
	for _, h := range bundle {
		if _, err := l.store.GetEdition(ctx, h.EditionID); err != nil {
			return nil, err
		}
		if h.Amount == 0 {
			return nil, ErrCannotTransferZeroCarbonUnit
		}

		balance, err := l.store.GetBalance(ctx, from, h.EditionID)
		if err != nil {
			return nil, err
		}
		need := required[h.EditionID] + h.Amount
		if need < h.Amount || balance < need {
			return nil, ErrInsufficientCarbonUnit
		}
		required[h.EditionID] = need
	}

	moved := make([]types.Holding, 0, len(bundle))
	for _, h := range bundle {
		m, err := l.TransferByID(ctx, from, to, h.EditionID, h.Amount)
		if err != nil {
			return nil, err
		}
		moved = append(moved, m)
	}
	return moved, nil
}

// Retire moves amount of an edition from from into the blackhole account and
// moves it from the edition's supply to its retired total. It returns the
// edition as it stands after retirement.
//
// ErrBlockchainCorrupted means the edition's supply was already below a
// balance someone held; the blackhole transfer has committed by then.
func (l *MintLedger) Retire(ctx context.Context, from types.AccountID, editionID types.EditionID, amount types.CarbonUnit) (*token.Edition, error) {
	if _, err := l.TransferByID(ctx, from, types.Blackhole, editionID, amount); err != nil {
		return nil, err
	}

	e, err := l.store.GetEdition(ctx, editionID)
	if err != nil {
		return nil, err
	}
	if e.Supply < amount {
		l.logger.Error("edition supply below retired balance",
			"edition_id", editionID,
			"supply", e.Supply,
			"amount", amount,
		)
		return nil, ErrBlockchainCorrupted
	}

	e.Supply -= amount
	e.Retired += amount
	if err := l.store.UpdateEdition(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// move debits from and credits to. The credit re-reads the destination so a
// self-transfer nets to zero.
func (l *MintLedger) move(ctx context.Context, from, to types.AccountID, h types.Holding, fromBalance types.CarbonUnit) error {
	if err := l.store.SetBalance(ctx, from, h.EditionID, fromBalance-h.Amount); err != nil {
		return err
	}
	return l.credit(ctx, to, h.EditionID, h.Amount)
}
