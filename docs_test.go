package carbon_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/carbon"
	"github.com/xraph/carbon/store/memory"
	"github.com/xraph/carbon/token"
	"github.com/xraph/carbon/types"
)

// TestDocumentationExamples runs the walkthrough from the package docs.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		ctx := context.Background()

		// Memory store for the demo, use postgres in production
		e := carbon.New(memory.New(),
			carbon.WithLogger(slog.Default()),
			carbon.WithGovernor(governor),
		)
		require.NoError(t, e.Start(ctx))
		defer e.Stop()

		_, err := e.AdmitCustodian(ctx, governor, registrar, "Verra")
		require.NoError(t, err)

		pending, err := e.RequestMint(ctx, registrar, token.MintParams{
			RegistryID:  "VCS-1234",
			Amount:      1000,
			Year:        2021,
			Beneficiary: owner,
		})
		require.NoError(t, err)

		_, err = e.ApproveMint(ctx, governor, "VCS-1234")
		require.NoError(t, err)

		_, err = e.TransferByYear(ctx, owner, buyer, 2021, 250)
		require.NoError(t, err)

		receipt, err := e.Retire(ctx, buyer, pending.EditionID, 100)
		require.NoError(t, err)
		assert.Equal(t, types.CarbonUnit(100), receipt.Amount)

		supply, err := e.SupplyByID(ctx, pending.EditionID)
		require.NoError(t, err)
		retired, err := e.RetiredByID(ctx, pending.EditionID)
		require.NoError(t, err)
		assert.Equal(t, types.CarbonUnit(1000), supply+retired)
	})
}
