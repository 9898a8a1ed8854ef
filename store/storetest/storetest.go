// Package storetest is the conformance suite every carbon store backend
// runs from its own tests.
package storetest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/carbon"
	"github.com/xraph/carbon/custodian"
	"github.com/xraph/carbon/id"
	"github.com/xraph/carbon/retirement"
	"github.com/xraph/carbon/store"
	"github.com/xraph/carbon/token"
	"github.com/xraph/carbon/types"
)

// Factory returns an empty, migrated store. The suite closes it.
type Factory func(t *testing.T) store.Store

var (
	alice = types.MustParseAccountID("0x" + strings.Repeat("a1", 32))
	bob   = types.MustParseAccountID("0x" + strings.Repeat("b2", 32))
	at    = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
)

// Run executes the whole suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Custodians", func(t *testing.T) { testCustodians(t, open(t, newStore)) })
	t.Run("Counters", func(t *testing.T) { testCounters(t, open(t, newStore)) })
	t.Run("PendingMints", func(t *testing.T) { testPendingMints(t, open(t, newStore)) })
	t.Run("Editions", func(t *testing.T) { testEditions(t, open(t, newStore)) })
	t.Run("YearIndex", func(t *testing.T) { testYearIndex(t, open(t, newStore)) })
	t.Run("Balances", func(t *testing.T) { testBalances(t, open(t, newStore)) })
	t.Run("Reports", func(t *testing.T) { testReports(t, open(t, newStore)) })
	t.Run("Lifecycle", func(t *testing.T) { testLifecycle(t, open(t, newStore)) })
}

func open(t *testing.T, newStore Factory) store.Store {
	t.Helper()
	s := newStore(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testCustodians(t *testing.T, s store.Store) {
	ctx := context.Background()

	c := &custodian.Custodian{Account: alice, Alias: "verra", Stamp: types.NewStamp(3, at)}
	require.NoError(t, s.InsertCustodian(ctx, c))
	require.NoError(t, s.InsertCustodian(ctx, &custodian.Custodian{Account: bob, Alias: "gold", Stamp: types.NewStamp(4, at)}))

	err := s.InsertCustodian(ctx, c)
	assert.ErrorIs(t, err, carbon.ErrCustodianAlreadyRegistered)

	got, err := s.GetCustodian(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, alice, got.Account)
	assert.Equal(t, "verra", got.Alias)
	assert.Equal(t, uint64(3), got.BlockNumber)
	assert.WithinDuration(t, at, got.Timestamp, time.Millisecond)

	list, err := s.ListCustodians(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, s.DeleteCustodian(ctx, alice))
	_, err = s.GetCustodian(ctx, alice)
	assert.ErrorIs(t, err, carbon.ErrCustodianNotFound)
	assert.ErrorIs(t, s.DeleteCustodian(ctx, alice), carbon.ErrCustodianNotFound)

	list, err = s.ListCustodians(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, bob, list[0].Account)
}

func testCounters(t *testing.T, s store.Store) {
	ctx := context.Background()

	for want := types.EditionID(0); want < 3; want++ {
		got, err := s.NextEditionID(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	for want := types.RetirementID(0); want < 2; want++ {
		got, err := s.NextRetirementID(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, ok, err := s.LastMintedEditionID(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetLastMintedEditionID(ctx, 7))
	require.NoError(t, s.SetLastMintedEditionID(ctx, 2))
	last, ok, err := s.LastMintedEditionID(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.EditionID(2), last)
}

func testPendingMints(t *testing.T, s store.Store) {
	ctx := context.Background()

	p := &token.PendingMint{
		ID:          id.NewMintRequestID(),
		RegistryID:  "VCS-1",
		EditionID:   4,
		Amount:      1000,
		Year:        2021,
		Minter:      alice,
		Beneficiary: bob,
		Stamp:       types.NewStamp(1, at),
	}
	require.NoError(t, s.InsertPendingMint(ctx, p))
	assert.ErrorIs(t, s.InsertPendingMint(ctx, p), carbon.ErrTokenMintRequestAlreadyPending)

	got, err := s.GetPendingMint(ctx, "VCS-1")
	require.NoError(t, err)
	assert.Equal(t, p.ID.String(), got.ID.String())
	assert.Equal(t, types.EditionID(4), got.EditionID)
	assert.Equal(t, types.CarbonUnit(1000), got.Amount)
	assert.Equal(t, types.Year(2021), got.Year)
	assert.Equal(t, alice, got.Minter)
	assert.Equal(t, bob, got.Beneficiary)

	require.NoError(t, s.DeletePendingMint(ctx, "VCS-1"))
	_, err = s.GetPendingMint(ctx, "VCS-1")
	assert.ErrorIs(t, err, carbon.ErrTokenMintRequestNotFound)
	assert.ErrorIs(t, s.DeletePendingMint(ctx, "VCS-1"), carbon.ErrTokenMintRequestNotFound)
}

func testEditions(t *testing.T, s store.Store) {
	ctx := context.Background()

	for _, e := range []*token.Edition{
		{ID: 3, Minter: alice, Supply: 30, Year: 2020, RegistryID: "VCS-3", Stamp: types.NewStamp(5, at)},
		{ID: 1, Minter: alice, Supply: 10, Year: 2020, RegistryID: "VCS-1", Stamp: types.NewStamp(2, at)},
	} {
		require.NoError(t, s.InsertEdition(ctx, e))
	}

	_, err := s.GetEdition(ctx, 2)
	assert.ErrorIs(t, err, carbon.ErrTokenNotFound)

	e, err := s.GetEdition(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, types.CarbonUnit(30), e.Supply)
	assert.Equal(t, "VCS-3", e.RegistryID)

	e.Supply, e.Retired = 20, 10
	require.NoError(t, s.UpdateEdition(ctx, e))
	e, err = s.GetEdition(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, types.CarbonUnit(20), e.Supply)
	assert.Equal(t, types.CarbonUnit(10), e.Retired)
	assert.Equal(t, types.CarbonUnit(30), e.Minted())

	assert.ErrorIs(t, s.UpdateEdition(ctx, &token.Edition{ID: 9}), carbon.ErrTokenNotFound)

	list, err := s.ListEditions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, types.EditionID(1), list[0].ID)
	assert.Equal(t, types.EditionID(3), list[1].ID)
}

func testYearIndex(t *testing.T, s store.Store) {
	ctx := context.Background()

	empty, err := s.ListYearEditions(ctx, 1999)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, editionID := range []types.EditionID{5, 2, 9} {
		require.NoError(t, s.AppendYearEdition(ctx, 2021, editionID))
	}
	require.NoError(t, s.AppendYearEdition(ctx, 2022, 3))

	got, err := s.ListYearEditions(ctx, 2021)
	require.NoError(t, err)
	assert.Equal(t, []types.EditionID{5, 2, 9}, got)

	got, err = s.ListYearEditions(ctx, 2022)
	require.NoError(t, err)
	assert.Equal(t, []types.EditionID{3}, got)
}

func testBalances(t *testing.T, s store.Store) {
	ctx := context.Background()

	amount, err := s.GetBalance(ctx, alice, 1)
	require.NoError(t, err)
	assert.Zero(t, amount)

	require.NoError(t, s.SetBalance(ctx, alice, 4, 40))
	require.NoError(t, s.SetBalance(ctx, alice, 1, 10))
	require.NoError(t, s.SetBalance(ctx, alice, 1, 15))
	require.NoError(t, s.SetBalance(ctx, bob, 1, 5))

	amount, err = s.GetBalance(ctx, alice, 1)
	require.NoError(t, err)
	assert.Equal(t, types.CarbonUnit(15), amount)

	holdings, err := s.ListBalances(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []types.Holding{{EditionID: 1, Amount: 15}, {EditionID: 4, Amount: 40}}, holdings)

	require.NoError(t, s.SetBalance(ctx, alice, 4, 0))
	holdings, err = s.ListBalances(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []types.Holding{{EditionID: 1, Amount: 15}}, holdings)

	require.NoError(t, s.ClearBalances(ctx, alice))
	holdings, err = s.ListBalances(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, holdings)

	amount, err = s.GetBalance(ctx, bob, 1)
	require.NoError(t, err)
	assert.Equal(t, types.CarbonUnit(5), amount)
}

func testReports(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.LastReport(ctx)
	assert.ErrorIs(t, err, carbon.ErrRetirementReportNotFound)

	none, err := s.ListAccountReports(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, none)

	for _, r := range []*retirement.Report{
		{ID: 0, Beneficiary: alice, EditionID: 1, Amount: 5, RegistryID: "VCS-1", Stamp: types.NewStamp(1, at)},
		{ID: 1, Beneficiary: bob, EditionID: 1, Amount: 7, RegistryID: "VCS-1", Stamp: types.NewStamp(2, at)},
		{ID: 2, Beneficiary: alice, EditionID: 3, Amount: 9, RegistryID: "VCS-3", Stamp: types.NewStamp(3, at)},
	} {
		require.NoError(t, s.InsertReport(ctx, r))
	}

	r, err := s.GetReport(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, bob, r.Beneficiary)
	assert.Equal(t, types.CarbonUnit(7), r.Amount)

	_, err = s.GetReport(ctx, 42)
	assert.ErrorIs(t, err, carbon.ErrRetirementReportNotFound)

	last, err := s.LastReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.RetirementID(2), last.ID)

	mine, err := s.ListAccountReports(ctx, alice)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, types.RetirementID(0), mine[0].ID)
	assert.Equal(t, types.RetirementID(2), mine[1].ID)
	assert.Equal(t, "VCS-3", mine[1].RegistryID)
}

func testLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Migrate(ctx))
}
