// Package observability provides a metrics extension for carbon that records
// ledger event counts through a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/carbon/custodian"
	"github.com/xraph/carbon/plugin"
	"github.com/xraph/carbon/retirement"
	"github.com/xraph/carbon/token"
	"github.com/xraph/carbon/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin              = (*MetricsExtension)(nil)
	_ plugin.OnInit              = (*MetricsExtension)(nil)
	_ plugin.OnCustodianAdmitted = (*MetricsExtension)(nil)
	_ plugin.OnCustodianRevoked  = (*MetricsExtension)(nil)
	_ plugin.OnMintRequested     = (*MetricsExtension)(nil)
	_ plugin.OnMintApproved      = (*MetricsExtension)(nil)
	_ plugin.OnMintDenied        = (*MetricsExtension)(nil)
	_ plugin.OnTokenTransferred  = (*MetricsExtension)(nil)
	_ plugin.OnTokenRetired      = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records ledger-wide event metrics.
// Register it as a carbon plugin to track issuance and retirement.
type MetricsExtension struct {
	factory MetricFactory

	// Custodian metrics
	CustodianAdmitted Counter
	CustodianRevoked  Counter

	// Issuance metrics
	MintRequested Counter
	MintApproved  Counter
	MintDenied    Counter
	MintedUnits   Counter
	MintSize      Histogram

	// Balance metrics
	Transfers        Counter
	TransferredUnits Counter
	TransferEditions Histogram
	Retirements      Counter
	RetiredUnits     Counter
	RetirementSize   Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		CustodianAdmitted: factory.Counter("carbon.custodian.admitted"),
		CustodianRevoked:  factory.Counter("carbon.custodian.revoked"),

		MintRequested: factory.Counter("carbon.mint.requested"),
		MintApproved:  factory.Counter("carbon.mint.approved"),
		MintDenied:    factory.Counter("carbon.mint.denied"),
		MintedUnits:   factory.Counter("carbon.mint.units"),
		MintSize:      factory.Histogram("carbon.mint.size"),

		Transfers:        factory.Counter("carbon.transfer.count"),
		TransferredUnits: factory.Counter("carbon.transfer.units"),
		TransferEditions: factory.Histogram("carbon.transfer.editions"),
		Retirements:      factory.Counter("carbon.retirement.count"),
		RetiredUnits:     factory.Counter("carbon.retirement.units"),
		RetirementSize:   factory.Histogram("carbon.retirement.size"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Custodian hooks
// ──────────────────────────────────────────────────

// OnCustodianAdmitted implements plugin.OnCustodianAdmitted.
func (m *MetricsExtension) OnCustodianAdmitted(_ context.Context, _ *custodian.Custodian) error {
	m.CustodianAdmitted.Inc()
	return nil
}

// OnCustodianRevoked implements plugin.OnCustodianRevoked.
func (m *MetricsExtension) OnCustodianRevoked(_ context.Context, _ types.AccountID) error {
	m.CustodianRevoked.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Issuance hooks
// ──────────────────────────────────────────────────

// OnMintRequested implements plugin.OnMintRequested.
func (m *MetricsExtension) OnMintRequested(_ context.Context, _ *token.PendingMint) error {
	m.MintRequested.Inc()
	return nil
}

// OnMintApproved implements plugin.OnMintApproved.
func (m *MetricsExtension) OnMintApproved(_ context.Context, a *token.Approval) error {
	m.MintApproved.Inc()
	m.MintedUnits.Add(float64(a.Amount))
	m.MintSize.Observe(float64(a.Amount))
	return nil
}

// OnMintDenied implements plugin.OnMintDenied.
func (m *MetricsExtension) OnMintDenied(_ context.Context, _ *token.Denial) error {
	m.MintDenied.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────

// OnTokenTransferred implements plugin.OnTokenTransferred. Moves into the
// blackhole are counted by OnTokenRetired instead.
func (m *MetricsExtension) OnTokenTransferred(_ context.Context, t *token.Transfer) error {
	if t.To.IsBlackhole() {
		return nil
	}
	m.Transfers.Inc()
	m.TransferredUnits.Add(float64(t.Total()))
	m.TransferEditions.Observe(float64(len(t.Editions)))
	return nil
}

// OnTokenRetired implements plugin.OnTokenRetired.
func (m *MetricsExtension) OnTokenRetired(_ context.Context, r *retirement.Report) error {
	m.Retirements.Inc()
	m.RetiredUnits.Add(float64(r.Amount))
	m.RetirementSize.Observe(float64(r.Amount))
	return nil
}
