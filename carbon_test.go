package carbon_test

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/carbon"
	"github.com/xraph/carbon/custodian"
	"github.com/xraph/carbon/retirement"
	"github.com/xraph/carbon/store/memory"
	"github.com/xraph/carbon/token"
	"github.com/xraph/carbon/types"
)

var (
	governor  = account("01")
	registrar = account("02")
	owner     = account("03")
	buyer     = account("04")
	stranger  = account("05")
	genesis   = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
)

func account(b string) types.AccountID {
	return types.MustParseAccountID("0x" + strings.Repeat(b, 32))
}

func newEngine(t *testing.T, opts ...carbon.Option) *carbon.Engine {
	t.Helper()
	env := carbon.NewLocalEnvironmentAt(0, func() time.Time { return genesis })
	opts = append([]carbon.Option{
		carbon.WithGovernor(governor),
		carbon.WithEnvironment(env),
	}, opts...)

	e := carbon.New(memory.New(), opts...)
	require.NoError(t, e.Start(context.Background()))
	t.Cleanup(func() { _ = e.Stop() })

	_, err := e.AdmitCustodian(context.Background(), governor, registrar, "verra")
	require.NoError(t, err)
	return e
}

func mint(t *testing.T, e *carbon.Engine, registryID string, amount types.CarbonUnit, year types.Year, to types.AccountID) types.EditionID {
	t.Helper()
	ctx := context.Background()
	pm, err := e.RequestMint(ctx, registrar, token.MintParams{
		RegistryID:  registryID,
		Amount:      amount,
		Year:        year,
		Beneficiary: to,
	})
	require.NoError(t, err)
	_, err = e.ApproveMint(ctx, governor, registryID)
	require.NoError(t, err)
	return pm.EditionID
}

func balance(t *testing.T, e *carbon.Engine, account types.AccountID, editionID types.EditionID) types.CarbonUnit {
	t.Helper()
	amount, err := e.BalanceByID(context.Background(), account, editionID)
	require.NoError(t, err)
	return amount
}

// ──────────────────────────────────────────────────
// Custodians
// ──────────────────────────────────────────────────

func TestCustodianLifecycle(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	_, err := e.AdmitCustodian(ctx, stranger, buyer, "gold")
	assert.ErrorIs(t, err, carbon.ErrUnauthorized)

	_, err = e.AdmitCustodian(ctx, governor, registrar, "again")
	assert.ErrorIs(t, err, carbon.ErrCustodianAlreadyRegistered)

	ok, err := e.IsCustodian(ctx, registrar)
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := e.ListCustodians(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "verra", list[0].Alias)
	assert.Equal(t, uint64(0), list[0].BlockNumber)

	assert.ErrorIs(t, e.RevokeCustodian(ctx, governor, buyer), carbon.ErrCustodianNotFound)
	assert.ErrorIs(t, e.RevokeCustodian(ctx, registrar, registrar), carbon.ErrUnauthorized)
	require.NoError(t, e.RevokeCustodian(ctx, governor, registrar))

	_, err = e.RequestMint(ctx, registrar, token.MintParams{RegistryID: "VCS-1", Amount: 1, Year: 2020, Beneficiary: owner})
	assert.ErrorIs(t, err, carbon.ErrUnauthorized)
}

func TestNoGovernorConfigured(t *testing.T) {
	e := carbon.New(memory.New())
	_, err := e.AdmitCustodian(context.Background(), types.AccountID(""), registrar, "verra")
	assert.ErrorIs(t, err, carbon.ErrUnauthorized)
}

// ──────────────────────────────────────────────────
// Issuance
// ──────────────────────────────────────────────────

func TestMintWorkflow(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	pm, err := e.RequestMint(ctx, registrar, token.MintParams{RegistryID: "VCS-1", Amount: 1000, Year: 2021, Beneficiary: owner})
	require.NoError(t, err)
	assert.Equal(t, types.EditionID(0), pm.EditionID)
	assert.Equal(t, registrar, pm.Minter)
	assert.Equal(t, uint64(1), pm.BlockNumber)
	assert.True(t, genesis.Equal(pm.Timestamp))

	_, err = e.RequestMint(ctx, registrar, token.MintParams{RegistryID: "VCS-1", Amount: 5, Year: 2021, Beneficiary: owner})
	assert.ErrorIs(t, err, carbon.ErrTokenMintRequestAlreadyPending)

	_, err = e.ApproveMint(ctx, registrar, "VCS-1")
	assert.ErrorIs(t, err, carbon.ErrUnauthorized)

	a, err := e.ApproveMint(ctx, governor, "VCS-1")
	require.NoError(t, err)
	assert.Equal(t, governor, a.Approver)
	assert.Equal(t, owner, a.Beneficiary)
	assert.Equal(t, types.CarbonUnit(1000), a.Amount)

	_, err = e.ApproveMint(ctx, governor, "VCS-1")
	assert.ErrorIs(t, err, carbon.ErrTokenMintRequestNotFound)

	ed, err := e.Edition(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, types.CarbonUnit(1000), ed.Supply)
	assert.Zero(t, ed.Retired)
	assert.Equal(t, "VCS-1", ed.RegistryID)
	assert.Equal(t, types.CarbonUnit(1000), balance(t, e, owner, 0))

	// Re-issuance of a resolved reference is permitted.
	pm, err = e.RequestMint(ctx, registrar, token.MintParams{RegistryID: "VCS-1", Amount: 5, Year: 2021, Beneficiary: owner})
	require.NoError(t, err)
	assert.Equal(t, types.EditionID(1), pm.EditionID)
}

func TestDenyLeavesPermanentGap(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	first := mint(t, e, "VCS-1", 10, 2020, owner)

	_, err := e.RequestMint(ctx, registrar, token.MintParams{RegistryID: "VCS-2", Amount: 20, Year: 2020, Beneficiary: owner})
	require.NoError(t, err)
	_, err = e.DenyMint(ctx, owner, "VCS-2")
	assert.ErrorIs(t, err, carbon.ErrUnauthorized)
	d, err := e.DenyMint(ctx, governor, "VCS-2")
	require.NoError(t, err)
	assert.Equal(t, types.EditionID(1), d.EditionID)
	assert.Equal(t, registrar, d.Minter)

	_, err = e.DenyMint(ctx, governor, "VCS-2")
	assert.ErrorIs(t, err, carbon.ErrTokenMintRequestNotFound)

	third := mint(t, e, "VCS-3", 30, 2020, owner)
	assert.Equal(t, types.EditionID(0), first)
	assert.Equal(t, types.EditionID(2), third)

	_, err = e.Edition(ctx, 1)
	assert.ErrorIs(t, err, carbon.ErrTokenNotFound)

	supply, err := e.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.CarbonUnit(40), supply)
}

func TestLastMintedFollowsApprovalOrder(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	_, ok, err := e.LastMintedEditionID(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = e.LastMintedEdition(ctx)
	assert.ErrorIs(t, err, carbon.ErrTokenNotFound)

	for _, ref := range []string{"A", "B"} {
		_, err := e.RequestMint(ctx, registrar, token.MintParams{RegistryID: ref, Amount: 1, Year: 2020, Beneficiary: owner})
		require.NoError(t, err)
	}
	_, err = e.ApproveMint(ctx, governor, "B")
	require.NoError(t, err)
	_, err = e.ApproveMint(ctx, governor, "A")
	require.NoError(t, err)

	last, ok, err := e.LastMintedEditionID(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.EditionID(0), last)

	ed, err := e.LastMintedEdition(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A", ed.RegistryID)
}

func TestRequestMintValidation(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	_, err := e.RequestMint(ctx, registrar, token.MintParams{Amount: 1, Year: 2020, Beneficiary: owner})
	assert.ErrorIs(t, err, carbon.ErrInvalidInput)

	_, err = e.RequestMint(ctx, registrar, token.MintParams{RegistryID: "VCS-1", Amount: 1, Year: 2020})
	var verr carbon.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "beneficiary", verr.Field)
}

// ──────────────────────────────────────────────────
// Supply and balances
// ──────────────────────────────────────────────────

func TestSupplyQueries(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	a := mint(t, e, "A", 30, 2020, owner)
	mint(t, e, "B", 70, 2020, owner)
	mint(t, e, "C", 5, 2021, buyer)

	tests := []struct {
		name string
		fn   func() (types.CarbonUnit, error)
		want types.CarbonUnit
		err  error
	}{
		{"TotalSupply", func() (types.CarbonUnit, error) { return e.TotalSupply(ctx) }, 105, nil},
		{"TotalRetired", func() (types.CarbonUnit, error) { return e.TotalRetired(ctx) }, 0, nil},
		{"SupplyByID", func() (types.CarbonUnit, error) { return e.SupplyByID(ctx, a) }, 30, nil},
		{"SupplyByID unknown", func() (types.CarbonUnit, error) { return e.SupplyByID(ctx, 99) }, 0, carbon.ErrTokenNotFound},
		{"RetiredByID unknown", func() (types.CarbonUnit, error) { return e.RetiredByID(ctx, 99) }, 0, carbon.ErrTokenNotFound},
		{"SupplyByYear", func() (types.CarbonUnit, error) { return e.SupplyByYear(ctx, 2020) }, 100, nil},
		{"SupplyByYear empty", func() (types.CarbonUnit, error) { return e.SupplyByYear(ctx, 1999) }, 0, carbon.ErrTokenNotFound},
		{"RetiredByYear", func() (types.CarbonUnit, error) { return e.RetiredByYear(ctx, 2021) }, 0, nil},
		{"TotalBalance", func() (types.CarbonUnit, error) { return e.TotalBalance(ctx, owner) }, 100, nil},
		{"TotalBalance unknown account", func() (types.CarbonUnit, error) { return e.TotalBalance(ctx, stranger) }, 0, nil},
		{"BalanceByID zero", func() (types.CarbonUnit, error) { return e.BalanceByID(ctx, stranger, a) }, 0, nil},
		{"BalanceByID unknown", func() (types.CarbonUnit, error) { return e.BalanceByID(ctx, owner, 99) }, 0, carbon.ErrTokenNotFound},
		{"BalanceByYear", func() (types.CarbonUnit, error) { return e.BalanceByYear(ctx, buyer, 2021) }, 5, nil},
		{"BalanceByYear empty", func() (types.CarbonUnit, error) { return e.BalanceByYear(ctx, owner, 1999) }, 0, carbon.ErrTokenNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn()
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBalancesDetail(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	mint(t, e, "A", 30, 2020, owner)
	mint(t, e, "B", 70, 2021, owner)

	details, err := e.Balances(ctx, owner)
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, types.CarbonUnit(30), details[0].Balance)
	assert.Equal(t, "A", details[0].Edition.RegistryID)
	assert.Equal(t, types.Year(2021), details[1].Edition.Year)

	details, err = e.Balances(ctx, stranger)
	require.NoError(t, err)
	assert.Empty(t, details)
}

// ──────────────────────────────────────────────────
// Transfers
// ──────────────────────────────────────────────────

func TestTransferByID(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	a := mint(t, e, "A", 30, 2020, owner)

	_, err := e.TransferByID(ctx, owner, buyer, a, 0)
	assert.ErrorIs(t, err, carbon.ErrCannotTransferZeroCarbonUnit)

	_, err = e.TransferByID(ctx, owner, buyer, a, 31)
	assert.ErrorIs(t, err, carbon.ErrInsufficientCarbonUnit)

	_, err = e.TransferByID(ctx, owner, buyer, 42, 1)
	assert.ErrorIs(t, err, carbon.ErrInsufficientCarbonUnit)

	tr, err := e.TransferByID(ctx, owner, buyer, a, 12)
	require.NoError(t, err)
	assert.Equal(t, types.CarbonUnit(12), tr.Total())
	assert.Equal(t, types.CarbonUnit(18), balance(t, e, owner, a))
	assert.Equal(t, types.CarbonUnit(12), balance(t, e, buyer, a))

	_, err = e.TransferByID(ctx, owner, buyer, a, 18)
	require.NoError(t, err)
	details, err := e.Balances(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, details)

	supply, err := e.SupplyByID(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, types.CarbonUnit(30), supply)
}

func TestTransferCapabilities(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	a := mint(t, e, "A", 30, 2020, owner)

	_, err := e.TransferByID(ctx, types.Blackhole, buyer, a, 1)
	assert.ErrorIs(t, err, carbon.ErrUnauthorized)

	_, err = e.TransferAll(ctx, types.AccountID(""), buyer)
	assert.ErrorIs(t, err, carbon.ErrUnauthorized)

	_, err = e.TransferByID(ctx, owner, types.AccountID(""), a, 1)
	assert.ErrorIs(t, err, carbon.ErrInvalidInput)

	_, err = e.Retire(ctx, types.Blackhole, a, 1)
	assert.ErrorIs(t, err, carbon.ErrUnauthorized)
}

func TestTransferAll(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	_, err := e.TransferAll(ctx, owner, buyer)
	assert.ErrorIs(t, err, carbon.ErrCannotTransferZeroCarbonUnit)

	a := mint(t, e, "A", 30, 2020, owner)
	b := mint(t, e, "B", 70, 2021, owner)
	mint(t, e, "C", 5, 2021, buyer)

	tr, err := e.TransferAll(ctx, owner, buyer)
	require.NoError(t, err)
	assert.Equal(t, []types.Holding{{EditionID: a, Amount: 30}, {EditionID: b, Amount: 70}}, tr.Editions)

	total, err := e.TotalBalance(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, total)

	total, err = e.TotalBalance(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, types.CarbonUnit(105), total)
}

func TestSelfTransferIsNoop(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	a := mint(t, e, "A", 30, 2020, owner)

	_, err := e.TransferByID(ctx, owner, owner, a, 10)
	require.NoError(t, err)
	assert.Equal(t, types.CarbonUnit(30), balance(t, e, owner, a))

	_, err = e.TransferAll(ctx, owner, owner)
	require.NoError(t, err)
	assert.Equal(t, types.CarbonUnit(30), balance(t, e, owner, a))

	_, err = e.TransferByYear(ctx, owner, owner, 2020, 30)
	require.NoError(t, err)
	assert.Equal(t, types.CarbonUnit(30), balance(t, e, owner, a))
}

func TestTransferByYear(t *testing.T) {
	tests := []struct {
		name      string
		exact     bool
		amount    types.CarbonUnit
		wantMoved []types.CarbonUnit
		wantLeft  []types.CarbonUnit
	}{
		{"drained edition keeps outstanding", false, 50, []types.CarbonUnit{30, 50}, []types.CarbonUnit{0, 50}},
		{"exact walk", true, 50, []types.CarbonUnit{30, 20}, []types.CarbonUnit{0, 80}},
		{"first edition covers request", false, 20, []types.CarbonUnit{20}, []types.CarbonUnit{10, 100}},
		{"exact boundary", false, 30, []types.CarbonUnit{30}, []types.CarbonUnit{0, 100}},
		{"whole year", false, 130, []types.CarbonUnit{30, 100}, []types.CarbonUnit{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			e := newEngine(t, carbon.WithExactYearWalk(tt.exact))
			a := mint(t, e, "A", 30, 2020, owner)
			b := mint(t, e, "B", 100, 2020, owner)
			mint(t, e, "C", 500, 2021, owner)
			ids := []types.EditionID{a, b}

			tr, err := e.TransferByYear(ctx, owner, buyer, 2020, tt.amount)
			require.NoError(t, err)
			require.Len(t, tr.Editions, len(tt.wantMoved))
			for i, want := range tt.wantMoved {
				assert.Equal(t, ids[i], tr.Editions[i].EditionID)
				assert.Equal(t, want, tr.Editions[i].Amount)
			}
			for i, want := range tt.wantLeft {
				assert.Equal(t, want, balance(t, e, owner, ids[i]))
			}

			total, err := e.BalanceByYear(ctx, buyer, 2020)
			require.NoError(t, err)
			assert.Equal(t, tr.Total(), total)

			other, err := e.BalanceByYear(ctx, owner, 2021)
			require.NoError(t, err)
			assert.Equal(t, types.CarbonUnit(500), other)
		})
	}
}

func TestTransferByYearRejections(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	mint(t, e, "A", 30, 2020, owner)

	_, err := e.TransferByYear(ctx, owner, buyer, 1999, 0)
	assert.ErrorIs(t, err, carbon.ErrCannotTransferZeroCarbonUnit)

	_, err = e.TransferByYear(ctx, owner, buyer, 1999, 1)
	assert.ErrorIs(t, err, carbon.ErrTokenNotFound)

	_, err = e.TransferByYear(ctx, owner, buyer, 2020, 31)
	assert.ErrorIs(t, err, carbon.ErrInsufficientCarbonUnit)

	total, err := e.TotalBalance(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, types.CarbonUnit(30), total)
}

func TestTransferCompounded(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	a := mint(t, e, "A", 30, 2020, owner)
	b := mint(t, e, "B", 100, 2021, owner)

	tests := []struct {
		name   string
		bundle []types.Holding
		err    error
	}{
		{"empty bundle", nil, carbon.ErrCannotTransferZeroCarbonUnit},
		{"unknown edition", []types.Holding{{EditionID: a, Amount: 1}, {EditionID: 77, Amount: 1}}, carbon.ErrTokenNotFound},
		{"zero amount", []types.Holding{{EditionID: a, Amount: 1}, {EditionID: b, Amount: 0}}, carbon.ErrCannotTransferZeroCarbonUnit},
		{"insufficient", []types.Holding{{EditionID: a, Amount: 10}, {EditionID: b, Amount: 101}}, carbon.ErrInsufficientCarbonUnit},
		{"repeated edition overdraws", []types.Holding{{EditionID: a, Amount: 20}, {EditionID: a, Amount: 20}}, carbon.ErrInsufficientCarbonUnit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.TransferCompounded(ctx, owner, buyer, tt.bundle)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, types.CarbonUnit(30), balance(t, e, owner, a))
			assert.Equal(t, types.CarbonUnit(100), balance(t, e, owner, b))
		})
	}

	tr, err := e.TransferCompounded(ctx, owner, buyer, []types.Holding{{EditionID: b, Amount: 40}, {EditionID: a, Amount: 30}})
	require.NoError(t, err)
	assert.Equal(t, types.CarbonUnit(70), tr.Total())
	assert.Equal(t, types.CarbonUnit(0), balance(t, e, owner, a))
	assert.Equal(t, types.CarbonUnit(60), balance(t, e, owner, b))
	assert.Equal(t, types.CarbonUnit(30), balance(t, e, buyer, a))
	assert.Equal(t, types.CarbonUnit(40), balance(t, e, buyer, b))
}

// ──────────────────────────────────────────────────
// Retirement
// ──────────────────────────────────────────────────

func TestRetire(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	a := mint(t, e, "VCS-9", 30, 2020, owner)

	_, ok, err := e.LastReportID(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = e.LastReport(ctx)
	assert.ErrorIs(t, err, carbon.ErrRetirementReportNotFound)

	_, err = e.Retire(ctx, owner, a, 0)
	assert.ErrorIs(t, err, carbon.ErrCannotTransferZeroCarbonUnit)
	_, err = e.Retire(ctx, owner, a, 31)
	assert.ErrorIs(t, err, carbon.ErrInsufficientCarbonUnit)
	_, err = e.Retire(ctx, owner, 42, 1)
	assert.ErrorIs(t, err, carbon.ErrInsufficientCarbonUnit)

	receipt, err := e.Retire(ctx, owner, a, 10)
	require.NoError(t, err)
	assert.Equal(t, types.RetirementID(0), receipt.ID)
	assert.Equal(t, types.CarbonUnit(10), receipt.Amount)

	receipt, err = e.Retire(ctx, owner, a, 5)
	require.NoError(t, err)
	assert.Equal(t, types.RetirementID(1), receipt.ID)

	ed, err := e.Edition(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, types.CarbonUnit(15), ed.Supply)
	assert.Equal(t, types.CarbonUnit(15), ed.Retired)
	assert.Equal(t, types.CarbonUnit(30), ed.Minted())

	assert.Equal(t, types.CarbonUnit(15), balance(t, e, types.Blackhole, a))
	assert.Equal(t, types.CarbonUnit(15), balance(t, e, owner, a))

	report, err := e.Report(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, owner, report.Beneficiary)
	assert.Equal(t, a, report.EditionID)
	assert.Equal(t, "VCS-9", report.RegistryID)
	assert.Equal(t, types.CarbonUnit(10), report.Amount)

	_, err = e.Report(ctx, 7)
	assert.ErrorIs(t, err, carbon.ErrRetirementReportNotFound)

	last, ok, err := e.LastReportID(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.RetirementID(1), last)

	mine, err := e.MyReports(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	none, err := e.AccountReports(ctx, buyer)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	retired, err := e.TotalRetired(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.CarbonUnit(15), retired)
}

func TestRetireOnCorruptedSupply(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	a := mint(t, e, "VCS-3", 10, 2020, owner)

	ed, err := e.Store().GetEdition(ctx, a)
	require.NoError(t, err)
	ed.Supply = 3
	require.NoError(t, e.Store().UpdateEdition(ctx, ed))

	_, err = e.Retire(ctx, owner, a, 5)
	require.ErrorIs(t, err, carbon.ErrBlockchainCorrupted)
	assert.True(t, carbon.IsFatal(err))
	assert.False(t, carbon.IsRejection(err))

	// The blackhole transfer has committed; the edition and reports have not.
	assert.Equal(t, types.CarbonUnit(5), balance(t, e, types.Blackhole, a))
	assert.Equal(t, types.CarbonUnit(5), balance(t, e, owner, a))

	supply, err := e.SupplyByID(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, types.CarbonUnit(3), supply)

	_, err = e.LastReport(ctx)
	assert.ErrorIs(t, err, carbon.ErrRetirementReportNotFound)
}

func TestApproveMintRejectsSupplyOverflow(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	const half = types.CarbonUnit(1 << 63)

	a := mint(t, e, "VCS-A", half, 2020, owner)

	_, err := e.RequestMint(ctx, registrar, token.MintParams{RegistryID: "VCS-B", Amount: half, Year: 2020, Beneficiary: owner})
	require.NoError(t, err)
	_, err = e.ApproveMint(ctx, governor, "VCS-B")
	require.ErrorIs(t, err, carbon.ErrSupplyOverflow)
	assert.True(t, carbon.IsRejection(err))

	// Nothing was written: the request is still pending and open to denial.
	_, err = e.PendingMint(ctx, "VCS-B")
	require.NoError(t, err)
	_, err = e.DenyMint(ctx, governor, "VCS-B")
	require.NoError(t, err)

	// Filling the range exactly is allowed.
	b := mint(t, e, "VCS-C", half-1, 2020, owner)

	total, err := e.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.CarbonUnit(math.MaxUint64), total)

	held, err := e.TotalBalance(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, types.CarbonUnit(math.MaxUint64), held)

	moved, err := e.TransferByYear(ctx, owner, buyer, 2020, 10)
	require.NoError(t, err)
	assert.Equal(t, types.CarbonUnit(10), moved.Total())

	all, err := e.TransferAll(ctx, owner, buyer)
	require.NoError(t, err)
	assert.Equal(t, types.CarbonUnit(math.MaxUint64-10), all.Total())
	assert.Equal(t, half, balance(t, e, buyer, a))
	assert.Equal(t, half-1, balance(t, e, buyer, b))
}

func TestSupplyReadsAreConsistent(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	a := mint(t, e, "VCS-1", 100, 2020, owner)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 50 {
			_, _ = e.Retire(ctx, owner, a, 1)
		}
	}()

	for range 200 {
		got, err := e.EditionSupply(ctx, a)
		require.NoError(t, err)
		require.Equal(t, types.CarbonUnit(100), got.Minted())

		totals, err := e.Supply(ctx)
		require.NoError(t, err)
		require.Equal(t, types.CarbonUnit(100), totals.Minted())
	}
	wg.Wait()

	year, err := e.YearSupply(ctx, 2020)
	require.NoError(t, err)
	assert.Equal(t, token.Supply{Supply: 50, Retired: 50}, year)

	_, err = e.EditionSupply(ctx, 99)
	assert.ErrorIs(t, err, carbon.ErrTokenNotFound)
	_, err = e.YearSupply(ctx, 1999)
	assert.ErrorIs(t, err, carbon.ErrTokenNotFound)
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	a := mint(t, e, "VCS-2019-001", 250, 2019, owner)
	b := mint(t, e, "VCS-2019-002", 750, 2019, owner)

	_, err := e.TransferByYear(ctx, owner, buyer, 2019, 400)
	require.NoError(t, err)
	_, err = e.Retire(ctx, buyer, b, 100)
	require.NoError(t, err)
	_, err = e.TransferCompounded(ctx, owner, stranger, []types.Holding{{EditionID: b, Amount: 50}})
	require.NoError(t, err)

	var held types.CarbonUnit
	for _, acct := range []types.AccountID{owner, buyer, stranger, types.Blackhole} {
		total, err := e.TotalBalance(ctx, acct)
		require.NoError(t, err)
		held += total
	}

	supply, err := e.TotalSupply(ctx)
	require.NoError(t, err)
	retired, err := e.TotalRetired(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.CarbonUnit(1000), supply+retired)
	assert.Equal(t, types.CarbonUnit(100), retired)
	assert.Equal(t, supply+retired, held)

	for _, editionID := range []types.EditionID{a, b} {
		ed, err := e.Edition(ctx, editionID)
		require.NoError(t, err)
		assert.Equal(t, ed.Minted(), ed.Supply+ed.Retired)
	}
}

// ──────────────────────────────────────────────────
// Plugins
// ──────────────────────────────────────────────────

type recorder struct {
	mu        sync.Mutex
	admitted  []types.AccountID
	requested []string
	approved  []string
	denied    []string
	transfers []*token.Transfer
	retired   []types.RetirementID
	inits     int
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnInit(context.Context, any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inits++
	return nil
}

func (r *recorder) OnCustodianAdmitted(_ context.Context, c *custodian.Custodian) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.admitted = append(r.admitted, c.Account)
	return nil
}

func (r *recorder) OnMintRequested(_ context.Context, pm *token.PendingMint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requested = append(r.requested, pm.RegistryID)
	return nil
}

func (r *recorder) OnMintApproved(_ context.Context, a *token.Approval) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.approved = append(r.approved, a.RegistryID)
	return nil
}

func (r *recorder) OnMintDenied(_ context.Context, d *token.Denial) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.denied = append(r.denied, d.RegistryID)
	return nil
}

func (r *recorder) OnTokenTransferred(_ context.Context, tr *token.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers = append(r.transfers, tr)
	return nil
}

func (r *recorder) OnTokenRetired(_ context.Context, rep *retirement.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retired = append(r.retired, rep.ID)
	return nil
}

type failing struct{}

func (failing) Name() string { return "failing" }

func (failing) OnMintApproved(context.Context, *token.Approval) error {
	return assert.AnError
}

func TestPluginNotifications(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	e := newEngine(t, carbon.WithPlugin(rec), carbon.WithPlugin(failing{}))

	a := mint(t, e, "A", 30, 2020, owner)
	_, err := e.RequestMint(ctx, registrar, token.MintParams{RegistryID: "B", Amount: 1, Year: 2020, Beneficiary: owner})
	require.NoError(t, err)
	_, err = e.DenyMint(ctx, governor, "B")
	require.NoError(t, err)
	_, err = e.TransferByID(ctx, owner, buyer, a, 10)
	require.NoError(t, err)
	_, err = e.Retire(ctx, buyer, a, 4)
	require.NoError(t, err)

	// Rejected calls notify nobody.
	_, err = e.TransferByID(ctx, owner, buyer, a, 1000)
	require.Error(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()

	assert.Equal(t, 1, rec.inits)
	assert.Equal(t, []types.AccountID{registrar}, rec.admitted)
	assert.Equal(t, []string{"A", "B"}, rec.requested)
	assert.Equal(t, []string{"A"}, rec.approved)
	assert.Equal(t, []string{"B"}, rec.denied)
	assert.Equal(t, []types.RetirementID{0}, rec.retired)

	require.Len(t, rec.transfers, 3)
	assert.Equal(t, governor, rec.transfers[0].From)
	assert.Equal(t, owner, rec.transfers[0].To)
	assert.Equal(t, buyer, rec.transfers[1].To)
	assert.Equal(t, types.Blackhole, rec.transfers[2].To)
	assert.Equal(t, 2, e.Plugins().Count())
}

func TestBlockHeightAdvancesOnWrites(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	start := e.BlockNumber()

	_, err := e.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, start, e.BlockNumber())

	_, err = e.AdmitCustodian(ctx, governor, registrar, "dup")
	require.Error(t, err)
	assert.Equal(t, start, e.BlockNumber())

	mint(t, e, "A", 1, 2020, owner)
	assert.Equal(t, start+2, e.BlockNumber())
}
