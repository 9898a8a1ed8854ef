// Package audithook bridges carbon ledger events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on a
// concrete audit system. Callers inject a RecorderFunc adapter at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/carbon/custodian"
	"github.com/xraph/carbon/id"
	"github.com/xraph/carbon/plugin"
	"github.com/xraph/carbon/retirement"
	"github.com/xraph/carbon/token"
	"github.com/xraph/carbon/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin              = (*Extension)(nil)
	_ plugin.OnCustodianAdmitted = (*Extension)(nil)
	_ plugin.OnCustodianRevoked  = (*Extension)(nil)
	_ plugin.OnMintRequested     = (*Extension)(nil)
	_ plugin.OnMintApproved      = (*Extension)(nil)
	_ plugin.OnMintDenied        = (*Extension)(nil)
	_ plugin.OnTokenTransferred  = (*Extension)(nil)
	_ plugin.OnTokenRetired      = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	ID         id.AuditID     `json:"id"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Actor      string         `json:"actor,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges carbon ledger events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Custodian hooks
// ──────────────────────────────────────────────────

// OnCustodianAdmitted implements plugin.OnCustodianAdmitted.
func (e *Extension) OnCustodianAdmitted(ctx context.Context, c *custodian.Custodian) error {
	return e.record(ctx, ActionCustodianAdmitted, SeverityInfo, OutcomeSuccess,
		ResourceCustodian, c.Account.String(), CategoryGovernance, "",
		"alias", c.Alias,
		"block_number", c.BlockNumber,
	)
}

// OnCustodianRevoked implements plugin.OnCustodianRevoked.
func (e *Extension) OnCustodianRevoked(ctx context.Context, account types.AccountID) error {
	return e.record(ctx, ActionCustodianRevoked, SeverityWarning, OutcomeSuccess,
		ResourceCustodian, account.String(), CategoryGovernance, "",
	)
}

// ──────────────────────────────────────────────────
// Issuance hooks
// ──────────────────────────────────────────────────

// OnMintRequested implements plugin.OnMintRequested.
func (e *Extension) OnMintRequested(ctx context.Context, p *token.PendingMint) error {
	return e.record(ctx, ActionMintRequested, SeverityInfo, OutcomeSuccess,
		ResourceMintRequest, p.RegistryID, CategoryIssuance, p.Minter.String(),
		"request_id", p.ID.String(),
		"edition_id", uint64(p.EditionID),
		"amount", uint64(p.Amount),
		"year", uint64(p.Year),
		"beneficiary", p.Beneficiary.String(),
	)
}

// OnMintApproved implements plugin.OnMintApproved.
func (e *Extension) OnMintApproved(ctx context.Context, a *token.Approval) error {
	return e.record(ctx, ActionMintApproved, SeverityInfo, OutcomeSuccess,
		ResourceEdition, a.EditionID.String(), CategoryIssuance, a.Approver.String(),
		"registry_id", a.RegistryID,
		"minter", a.Minter.String(),
		"beneficiary", a.Beneficiary.String(),
		"amount", uint64(a.Amount),
	)
}

// OnMintDenied implements plugin.OnMintDenied.
func (e *Extension) OnMintDenied(ctx context.Context, d *token.Denial) error {
	return e.record(ctx, ActionMintDenied, SeverityWarning, OutcomeFailure,
		ResourceMintRequest, d.RegistryID, CategoryIssuance, d.Approver.String(),
		"minter", d.Minter.String(),
		"edition_id", uint64(d.EditionID),
	)
}

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────

// OnTokenTransferred implements plugin.OnTokenTransferred.
func (e *Extension) OnTokenTransferred(ctx context.Context, t *token.Transfer) error {
	editions := make([]string, 0, len(t.Editions))
	for _, h := range t.Editions {
		editions = append(editions, h.EditionID.String())
	}
	return e.record(ctx, ActionTokenTransferred, SeverityInfo, OutcomeSuccess,
		ResourceEdition, "", CategoryBalance, t.From.String(),
		"to", t.To.String(),
		"editions", editions,
		"amount", uint64(t.Total()),
	)
}

// OnTokenRetired implements plugin.OnTokenRetired.
func (e *Extension) OnTokenRetired(ctx context.Context, r *retirement.Report) error {
	return e.record(ctx, ActionTokenRetired, SeverityInfo, OutcomeSuccess,
		ResourceRetirement, r.ID.String(), CategoryRetirement, r.Beneficiary.String(),
		"edition_id", uint64(r.EditionID),
		"amount", uint64(r.Amount),
		"registry_id", r.RegistryID,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category, actor string,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	evt := &AuditEvent{
		ID:         id.NewAuditID(),
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Actor:      actor,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
