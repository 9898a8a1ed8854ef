// Package carbon provides a carbon-credit token ledger for Go applications.
//
// Carbon is designed as a library, not a service. Import it directly into your
// Go application and back it with the store that suits your deployment. It
// provides:
//
//   - Custodian registration under a single governing account
//   - A mint approval workflow tied to external registry references
//   - Per-edition balances with transfers by edition, by issuance year, or as
//     an all-or-nothing bundle
//   - Permanent retirement with an auditable report per retirement
//   - Lifecycle hooks for audit trails, metrics, and event relays
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/xraph/carbon"
//	    "github.com/xraph/carbon/store/postgres"
//	)
//
//	// db is a *grove.DB opened with the postgres driver
//	e := carbon.New(postgres.New(db), carbon.WithGovernor(governor))
//	if err := e.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Stop()
//
// # Core Concepts
//
// Custodians are admitted by the governor and file mint requests that
// reference a verified registry entry:
//
//	_, err := e.AdmitCustodian(ctx, governor, custodian, "Verra")
//	pending, err := e.RequestMint(ctx, custodian, token.MintParams{
//	    RegistryID:  "VCS-1234",
//	    Amount:      1000,
//	    Year:        2021,
//	    Beneficiary: owner,
//	})
//
// Approval creates a token edition and credits its beneficiary:
//
//	_, err = e.ApproveMint(ctx, governor, "VCS-1234")
//
// Holders move and retire their balances:
//
//	_, err = e.TransferByYear(ctx, owner, buyer, 2021, 250)
//	receipt, err := e.Retire(ctx, buyer, pending.EditionID, 100)
//
// Every approved edition satisfies Supply + Retired == minted amount, and
// balances never go negative. Each mutating operation validates all of its
// preconditions before the first write.
//
// # Year transfers
//
// TransferByYear drains the oldest approved editions of a year first. By
// default an edition that is drained completely does not reduce the
// outstanding amount, so the walk can move more than requested (never more
// than the sender holds for the year). Pass WithExactYearWalk(true) to move
// exactly the requested amount.
//
// # Storage
//
// Backends live under store/: memory, postgres, sqlite, mongo, and redis.
// All of them pass the same conformance suite in store/storetest.
package carbon
