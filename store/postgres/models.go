package postgres

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/carbon/custodian"
	"github.com/xraph/carbon/id"
	"github.com/xraph/carbon/retirement"
	"github.com/xraph/carbon/token"
	"github.com/xraph/carbon/types"
)

// ==================== Custodian models ====================

type custodianModel struct {
	grove.BaseModel `grove:"table:carbon_custodians"`

	Account     string    `grove:"account,pk"`
	Alias       string    `grove:"alias"`
	BlockNumber int64     `grove:"block_number"`
	CreatedAt   time.Time `grove:"created_at"`
}

func toCustodianModel(c *custodian.Custodian) *custodianModel {
	return &custodianModel{
		Account:     c.Account.String(),
		Alias:       c.Alias,
		BlockNumber: int64(c.BlockNumber),
		CreatedAt:   c.Timestamp,
	}
}

func fromCustodianModel(m *custodianModel) *custodian.Custodian {
	return &custodian.Custodian{
		Account: types.AccountID(m.Account),
		Alias:   m.Alias,
		Stamp:   types.NewStamp(uint64(m.BlockNumber), m.CreatedAt),
	}
}

// ==================== Pending mint models ====================

type pendingMintModel struct {
	grove.BaseModel `grove:"table:carbon_pending_mints"`

	RegistryID  string    `grove:"registry_id,pk"`
	ID          string    `grove:"id"`
	EditionID   int64     `grove:"edition_id"`
	Amount      int64     `grove:"amount"`
	Year        int       `grove:"year"`
	Minter      string    `grove:"minter"`
	Beneficiary string    `grove:"beneficiary"`
	BlockNumber int64     `grove:"block_number"`
	CreatedAt   time.Time `grove:"created_at"`
}

func toPendingMintModel(p *token.PendingMint) *pendingMintModel {
	return &pendingMintModel{
		RegistryID:  p.RegistryID,
		ID:          p.ID.String(),
		EditionID:   int64(p.EditionID),
		Amount:      int64(p.Amount),
		Year:        int(p.Year),
		Minter:      p.Minter.String(),
		Beneficiary: p.Beneficiary.String(),
		BlockNumber: int64(p.BlockNumber),
		CreatedAt:   p.Timestamp,
	}
}

func fromPendingMintModel(m *pendingMintModel) (*token.PendingMint, error) {
	reqID, err := id.ParseMintRequestID(m.ID)
	if err != nil {
		return nil, err
	}
	return &token.PendingMint{
		ID:          reqID,
		RegistryID:  m.RegistryID,
		EditionID:   types.EditionID(m.EditionID),
		Amount:      types.CarbonUnit(m.Amount),
		Year:        types.Year(m.Year),
		Minter:      types.AccountID(m.Minter),
		Beneficiary: types.AccountID(m.Beneficiary),
		Stamp:       types.NewStamp(uint64(m.BlockNumber), m.CreatedAt),
	}, nil
}

// ==================== Edition models ====================

type editionModel struct {
	grove.BaseModel `grove:"table:carbon_editions"`

	ID          int64     `grove:"id,pk"`
	Minter      string    `grove:"minter"`
	Supply      int64     `grove:"supply"`
	Retired     int64     `grove:"retired"`
	Year        int       `grove:"year"`
	RegistryID  string    `grove:"registry_id"`
	BlockNumber int64     `grove:"block_number"`
	CreatedAt   time.Time `grove:"created_at"`
}

func toEditionModel(e *token.Edition) *editionModel {
	return &editionModel{
		ID:          int64(e.ID),
		Minter:      e.Minter.String(),
		Supply:      int64(e.Supply),
		Retired:     int64(e.Retired),
		Year:        int(e.Year),
		RegistryID:  e.RegistryID,
		BlockNumber: int64(e.BlockNumber),
		CreatedAt:   e.Timestamp,
	}
}

func fromEditionModel(m *editionModel) *token.Edition {
	return &token.Edition{
		ID:         types.EditionID(m.ID),
		Minter:     types.AccountID(m.Minter),
		Supply:     types.CarbonUnit(m.Supply),
		Retired:    types.CarbonUnit(m.Retired),
		Year:       types.Year(m.Year),
		RegistryID: m.RegistryID,
		Stamp:      types.NewStamp(uint64(m.BlockNumber), m.CreatedAt),
	}
}

// ==================== Year index models ====================

type yearEditionModel struct {
	grove.BaseModel `grove:"table:carbon_year_editions"`

	Year      int   `grove:"year,pk"`
	Position  int   `grove:"position,pk"`
	EditionID int64 `grove:"edition_id"`
}

// ==================== Balance models ====================

type balanceModel struct {
	grove.BaseModel `grove:"table:carbon_balances"`

	Account   string `grove:"account,pk"`
	EditionID int64  `grove:"edition_id,pk"`
	Amount    int64  `grove:"amount"`
}

// ==================== Sequence models ====================

type sequenceModel struct {
	grove.BaseModel `grove:"table:carbon_sequences"`

	Name  string `grove:"name,pk"`
	Value int64  `grove:"value"`
}

// ==================== Report models ====================

type reportModel struct {
	grove.BaseModel `grove:"table:carbon_reports"`

	ID          int64     `grove:"id,pk"`
	Beneficiary string    `grove:"beneficiary"`
	EditionID   int64     `grove:"edition_id"`
	Amount      int64     `grove:"amount"`
	RegistryID  string    `grove:"registry_id"`
	BlockNumber int64     `grove:"block_number"`
	CreatedAt   time.Time `grove:"created_at"`
}

func toReportModel(r *retirement.Report) *reportModel {
	return &reportModel{
		ID:          int64(r.ID),
		Beneficiary: r.Beneficiary.String(),
		EditionID:   int64(r.EditionID),
		Amount:      int64(r.Amount),
		RegistryID:  r.RegistryID,
		BlockNumber: int64(r.BlockNumber),
		CreatedAt:   r.Timestamp,
	}
}

func fromReportModel(m *reportModel) *retirement.Report {
	return &retirement.Report{
		ID:          types.RetirementID(m.ID),
		Beneficiary: types.AccountID(m.Beneficiary),
		EditionID:   types.EditionID(m.EditionID),
		Amount:      types.CarbonUnit(m.Amount),
		RegistryID:  m.RegistryID,
		Stamp:       types.NewStamp(uint64(m.BlockNumber), m.CreatedAt),
	}
}
