// Package token defines editions, pending mint requests, and the balance
// and transfer records of the carbon ledger.
package token

import (
	"github.com/xraph/carbon/id"
	"github.com/xraph/carbon/types"
)

// MintParams is what a custodian submits to request an issuance.
type MintParams struct {
	RegistryID  string           `json:"registry_id"`
	Amount      types.CarbonUnit `json:"verified_carbon_unit"`
	Year        types.Year       `json:"issuance_year"`
	Beneficiary types.AccountID  `json:"beneficiary"`
}

// PendingMint is a mint request awaiting a governance decision. The edition
// id is reserved when the request is made.
type PendingMint struct {
	ID          id.MintRequestID `json:"id"`
	RegistryID  string           `json:"registry_id"`
	EditionID   types.EditionID  `json:"edition_id"`
	Amount      types.CarbonUnit `json:"amount"`
	Year        types.Year       `json:"year"`
	Minter      types.AccountID  `json:"minter"`
	Beneficiary types.AccountID  `json:"beneficiary"`
	types.Stamp
}

// Edition is an approved batch of carbon units minted from one verified
// registry entry. Supply plus Retired always equals the minted amount.
type Edition struct {
	ID         types.EditionID  `json:"id"`
	Minter     types.AccountID  `json:"minter"`
	Supply     types.CarbonUnit `json:"supply"`
	Retired    types.CarbonUnit `json:"retired"`
	Year       types.Year       `json:"year"`
	RegistryID string           `json:"registry_id"`
	types.Stamp
}

// Minted returns the amount issued at approval.
func (e *Edition) Minted() types.CarbonUnit {
	return e.Supply + e.Retired
}

// BalanceDetail pairs an account's balance of an edition with the edition.
type BalanceDetail struct {
	Balance types.CarbonUnit `json:"balance"`
	Edition *Edition         `json:"detail"`
}

// Approval is returned when governance approves a pending request.
// Approver is filled in by the dispatch layer.
type Approval struct {
	Approver    types.AccountID  `json:"approver,omitempty"`
	Minter      types.AccountID  `json:"minter"`
	Beneficiary types.AccountID  `json:"beneficiary"`
	EditionID   types.EditionID  `json:"edition_id"`
	Amount      types.CarbonUnit `json:"amount"`
	RegistryID  string           `json:"registry_id"`
}

// Denial is returned when governance denies a pending request.
type Denial struct {
	Approver   types.AccountID `json:"approver,omitempty"`
	Minter     types.AccountID `json:"minter"`
	RegistryID string          `json:"registry_id"`
	EditionID  types.EditionID `json:"edition_id"`
}

// Supply is the un-retired and retired amount of one edition or a set of
// editions, read together.
type Supply struct {
	Supply  types.CarbonUnit `json:"supply"`
	Retired types.CarbonUnit `json:"retired"`
}

// Minted returns the amount originally issued.
func (s Supply) Minted() types.CarbonUnit { return s.Supply + s.Retired }

// Add accumulates e into s.
func (s *Supply) Add(e *Edition) {
	s.Supply += e.Supply
	s.Retired += e.Retired
}

// Transfer describes balance moved between two accounts.
type Transfer struct {
	From     types.AccountID `json:"from"`
	To       types.AccountID `json:"to"`
	Editions []types.Holding `json:"editions"`
}

// Total returns the amount moved across all editions.
func (t *Transfer) Total() types.CarbonUnit {
	return types.Sum(t.Editions)
}
