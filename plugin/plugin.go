// Package plugin provides an extensible plugin system for carbon.
// Plugins hook into lifecycle and ledger events to extend functionality.
package plugin

import (
	"context"

	"github.com/xraph/carbon/custodian"
	"github.com/xraph/carbon/retirement"
	"github.com/xraph/carbon/token"
	"github.com/xraph/carbon/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Custodian hooks
// ──────────────────────────────────────────────────

// OnCustodianAdmitted is called after governance admits a custodian.
type OnCustodianAdmitted interface {
	Plugin
	OnCustodianAdmitted(ctx context.Context, c *custodian.Custodian) error
}

// OnCustodianRevoked is called after governance revokes a custodian.
type OnCustodianRevoked interface {
	Plugin
	OnCustodianRevoked(ctx context.Context, account types.AccountID) error
}

// ──────────────────────────────────────────────────
// Issuance hooks
// ──────────────────────────────────────────────────

// OnMintRequested is called after a custodian submits a mint request.
type OnMintRequested interface {
	Plugin
	OnMintRequested(ctx context.Context, p *token.PendingMint) error
}

// OnMintApproved is called after governance approves a mint request.
type OnMintApproved interface {
	Plugin
	OnMintApproved(ctx context.Context, a *token.Approval) error
}

// OnMintDenied is called after governance denies a mint request.
type OnMintDenied interface {
	Plugin
	OnMintDenied(ctx context.Context, d *token.Denial) error
}

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────

// OnTokenTransferred is called after balance moves between accounts,
// including the initial credit of an approved mint.
type OnTokenTransferred interface {
	Plugin
	OnTokenTransferred(ctx context.Context, t *token.Transfer) error
}

// OnTokenRetired is called after a retirement report is recorded.
type OnTokenRetired interface {
	Plugin
	OnTokenRetired(ctx context.Context, r *retirement.Report) error
}
