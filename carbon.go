package carbon

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/xraph/carbon/custodian"
	"github.com/xraph/carbon/plugin"
	"github.com/xraph/carbon/retirement"
	"github.com/xraph/carbon/store"
	"github.com/xraph/carbon/token"
	"github.com/xraph/carbon/types"
)

// TracerName is the instrumentation scope of engine spans.
const TracerName = "github.com/xraph/carbon"

// Engine is the carbon ledger. It checks caller capabilities, serialises
// every call, and notifies plugins after each committed mutation.
type Engine struct {
	mu      sync.Mutex
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	env     Environment
	tracer  trace.Tracer

	governor      types.AccountID
	exactYearWalk bool
	skipMigrate   bool

	custodians  *CustodianRegistry
	tokens      *MintLedger
	retirements *RetirementBook
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:   s,
		plugins: plugin.NewRegistry(),
		logger:  slog.Default(),
		env:     NewLocalEnvironment(),
		tracer:  noop.NewTracerProvider().Tracer(TracerName),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.custodians = NewCustodianRegistry(s, e.env)
	e.tokens = NewMintLedger(s, e.env, e.logger)
	e.tokens.SetExactYearWalk(e.exactYearWalk)
	e.retirements = NewRetirementBook(s, e.env)

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithEnvironment sets the source of block numbers and timestamps.
func WithEnvironment(env Environment) Option {
	return func(e *Engine) {
		if env != nil {
			e.env = env
		}
	}
}

// WithGovernor sets the account holding governance capability. Without a
// governor every governance call is unauthorized.
func WithGovernor(account types.AccountID) Option {
	return func(e *Engine) {
		e.governor = account
	}
}

// WithExactYearWalk makes TransferByYear move exactly the requested amount.
func WithExactYearWalk(exact bool) Option {
	return func(e *Engine) {
		e.exactYearWalk = exact
	}
}

// WithoutMigrate makes Start skip store migration.
func WithoutMigrate() Option {
	return func(e *Engine) {
		e.skipMigrate = true
	}
}

// WithTracer sets the tracer used for engine spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// Start migrates the store and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if !e.skipMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return err
		}
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("carbon engine started",
		"governor", e.governor,
		"exact_year_walk", e.exactYearWalk,
		"plugins", e.plugins.Count(),
		"block", e.env.BlockNumber(),
	)
	return nil
}

// Stop shuts down plugins and closes the store.
func (e *Engine) Stop() error {
	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)
	return e.store.Close()
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Governor returns the governance account.
func (e *Engine) Governor() types.AccountID { return e.governor }

// BlockNumber returns the current block height of the environment.
func (e *Engine) BlockNumber() uint64 { return e.env.BlockNumber() }

// ──────────────────────────────────────────────────
// Custodians
// ──────────────────────────────────────────────────

// AdmitCustodian registers account as a custodian.
func (e *Engine) AdmitCustodian(ctx context.Context, caller, account types.AccountID, alias string) (*custodian.Custodian, error) {
	ctx, span := e.start(ctx, "AdmitCustodian", caller, attribute.String("carbon.account", account.String()))
	defer span.End()

	if account.IsZero() {
		return nil, e.fail(span, ValidationError{Field: "account", Message: "custodian account is required"})
	}

	e.mu.Lock()
	c, err := func() (*custodian.Custodian, error) {
		if err := e.requireGovernor(caller); err != nil {
			return nil, err
		}
		return e.custodians.Admit(ctx, account, alias)
	}()
	e.commit(err)
	e.mu.Unlock()
	if err != nil {
		return nil, e.fail(span, err)
	}

	e.logger.Info("custodian admitted", "account", account, "alias", alias)
	e.plugins.EmitCustodianAdmitted(ctx, c)
	return c, nil
}

// RevokeCustodian removes account from the custodian registry.
func (e *Engine) RevokeCustodian(ctx context.Context, caller, account types.AccountID) error {
	ctx, span := e.start(ctx, "RevokeCustodian", caller, attribute.String("carbon.account", account.String()))
	defer span.End()

	e.mu.Lock()
	err := func() error {
		if err := e.requireGovernor(caller); err != nil {
			return err
		}
		return e.custodians.Revoke(ctx, account)
	}()
	e.commit(err)
	e.mu.Unlock()
	if err != nil {
		return e.fail(span, err)
	}

	e.logger.Info("custodian revoked", "account", account)
	e.plugins.EmitCustodianRevoked(ctx, account)
	return nil
}

// ListCustodians returns every admitted custodian.
func (e *Engine) ListCustodians(ctx context.Context) ([]*custodian.Custodian, error) {
	ctx, span := e.start(ctx, "ListCustodians", "")
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	list, err := e.custodians.List(ctx)
	if err != nil {
		return nil, e.fail(span, err)
	}
	return list, nil
}

// IsCustodian reports whether account is an admitted custodian.
func (e *Engine) IsCustodian(ctx context.Context, account types.AccountID) (bool, error) {
	ctx, span := e.start(ctx, "IsCustodian", "", attribute.String("carbon.account", account.String()))
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	ok, err := e.custodians.IsAdmitted(ctx, account)
	if err != nil {
		return false, e.fail(span, err)
	}
	return ok, nil
}

// ──────────────────────────────────────────────────
// Issuance
// ──────────────────────────────────────────────────

// RequestMint files a mint request on behalf of a custodian.
func (e *Engine) RequestMint(ctx context.Context, caller types.AccountID, params token.MintParams) (*token.PendingMint, error) {
	ctx, span := e.start(ctx, "RequestMint", caller,
		attribute.String("carbon.registry_id", params.RegistryID),
		attribute.Int64("carbon.amount", int64(params.Amount)),
		attribute.Int("carbon.year", int(params.Year)),
	)
	defer span.End()

	if params.Beneficiary.IsZero() {
		return nil, e.fail(span, ValidationError{Field: "beneficiary", Message: "beneficiary account is required"})
	}

	e.mu.Lock()
	pm, err := func() (*token.PendingMint, error) {
		if err := e.requireCustodian(ctx, caller); err != nil {
			return nil, err
		}
		return e.tokens.RequestMint(ctx, caller, params)
	}()
	e.commit(err)
	e.mu.Unlock()
	if err != nil {
		return nil, e.fail(span, err)
	}

	span.SetAttributes(attribute.Int64("carbon.edition_id", int64(pm.EditionID)))
	e.logger.Info("mint requested",
		"registry_id", pm.RegistryID,
		"edition_id", pm.EditionID,
		"amount", pm.Amount,
		"minter", pm.Minter,
	)
	e.plugins.EmitMintRequested(ctx, pm)
	return pm, nil
}

// ApproveMint turns a pending request into an edition and credits its
// beneficiary.
func (e *Engine) ApproveMint(ctx context.Context, caller types.AccountID, registryID string) (*token.Approval, error) {
	ctx, span := e.start(ctx, "ApproveMint", caller, attribute.String("carbon.registry_id", registryID))
	defer span.End()

	e.mu.Lock()
	a, err := func() (*token.Approval, error) {
		if err := e.requireGovernor(caller); err != nil {
			return nil, err
		}
		return e.tokens.ApproveMint(ctx, registryID)
	}()
	e.commit(err)
	e.mu.Unlock()
	if err != nil {
		return nil, e.fail(span, err)
	}
	a.Approver = caller

	span.SetAttributes(
		attribute.Int64("carbon.edition_id", int64(a.EditionID)),
		attribute.Int64("carbon.amount", int64(a.Amount)),
	)
	e.logger.Info("mint approved",
		"registry_id", a.RegistryID,
		"edition_id", a.EditionID,
		"amount", a.Amount,
		"beneficiary", a.Beneficiary,
	)
	e.plugins.EmitMintApproved(ctx, a)
	e.plugins.EmitTokenTransferred(ctx, &token.Transfer{
		From:     caller,
		To:       a.Beneficiary,
		Editions: []types.Holding{{EditionID: a.EditionID, Amount: a.Amount}},
	})
	return a, nil
}

// DenyMint discards a pending request. Its reserved edition id is never
// reused.
func (e *Engine) DenyMint(ctx context.Context, caller types.AccountID, registryID string) (*token.Denial, error) {
	ctx, span := e.start(ctx, "DenyMint", caller, attribute.String("carbon.registry_id", registryID))
	defer span.End()

	e.mu.Lock()
	d, err := func() (*token.Denial, error) {
		if err := e.requireGovernor(caller); err != nil {
			return nil, err
		}
		return e.tokens.DenyMint(ctx, registryID)
	}()
	e.commit(err)
	e.mu.Unlock()
	if err != nil {
		return nil, e.fail(span, err)
	}
	d.Approver = caller

	e.logger.Info("mint denied", "registry_id", d.RegistryID, "edition_id", d.EditionID)
	e.plugins.EmitMintDenied(ctx, d)
	return d, nil
}

// PendingMint returns the pending request for a registry reference.
func (e *Engine) PendingMint(ctx context.Context, registryID string) (*token.PendingMint, error) {
	ctx, span := e.start(ctx, "PendingMint", "", attribute.String("carbon.registry_id", registryID))
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	pm, err := e.tokens.PendingMint(ctx, registryID)
	if err != nil {
		return nil, e.fail(span, err)
	}
	return pm, nil
}

// Edition returns the mint information of an edition.
func (e *Engine) Edition(ctx context.Context, editionID types.EditionID) (*token.Edition, error) {
	ctx, span := e.start(ctx, "Edition", "", attribute.Int64("carbon.edition_id", int64(editionID)))
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	ed, err := e.tokens.Edition(ctx, editionID)
	if err != nil {
		return nil, e.fail(span, err)
	}
	return ed, nil
}

// LastMintedEdition returns the most recently approved edition.
func (e *Engine) LastMintedEdition(ctx context.Context) (*token.Edition, error) {
	ctx, span := e.start(ctx, "LastMintedEdition", "")
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	ed, err := e.tokens.LastMintedEdition(ctx)
	if err != nil {
		return nil, e.fail(span, err)
	}
	return ed, nil
}

// LastMintedEditionID returns the id of the most recently approved edition.
// The boolean is false when nothing has been minted.
func (e *Engine) LastMintedEditionID(ctx context.Context) (types.EditionID, bool, error) {
	ctx, span := e.start(ctx, "LastMintedEditionID", "")
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	id, ok, err := e.tokens.LastMintedEditionID(ctx)
	if err != nil {
		return 0, false, e.fail(span, err)
	}
	return id, ok, nil
}

// ──────────────────────────────────────────────────
// Supply
// ──────────────────────────────────────────────────

// Supply returns the circulating and retired totals across all editions,
// read in one call so they always add up to the minted total.
func (e *Engine) Supply(ctx context.Context) (token.Supply, error) {
	return e.readSupply(ctx, "Supply", e.tokens.Supply)
}

// EditionSupply returns the circulating and retired amounts of one edition.
func (e *Engine) EditionSupply(ctx context.Context, editionID types.EditionID) (token.Supply, error) {
	return e.readSupply(ctx, "EditionSupply", func(ctx context.Context) (token.Supply, error) {
		return e.tokens.EditionSupply(ctx, editionID)
	}, attribute.Int64("carbon.edition_id", int64(editionID)))
}

// YearSupply returns the circulating and retired amounts of one issuance
// year.
func (e *Engine) YearSupply(ctx context.Context, year types.Year) (token.Supply, error) {
	return e.readSupply(ctx, "YearSupply", func(ctx context.Context) (token.Supply, error) {
		return e.tokens.YearSupply(ctx, year)
	}, attribute.Int("carbon.year", int(year)))
}

// TotalSupply returns the circulating supply across all editions.
func (e *Engine) TotalSupply(ctx context.Context) (types.CarbonUnit, error) {
	return e.read(ctx, "TotalSupply", e.tokens.TotalSupply)
}

// TotalRetired returns the retired amount across all editions.
func (e *Engine) TotalRetired(ctx context.Context) (types.CarbonUnit, error) {
	return e.read(ctx, "TotalRetired", e.tokens.TotalRetired)
}

// SupplyByID returns the circulating supply of one edition.
func (e *Engine) SupplyByID(ctx context.Context, editionID types.EditionID) (types.CarbonUnit, error) {
	return e.read(ctx, "SupplyByID", func(ctx context.Context) (types.CarbonUnit, error) {
		return e.tokens.SupplyByID(ctx, editionID)
	}, attribute.Int64("carbon.edition_id", int64(editionID)))
}

// RetiredByID returns the retired amount of one edition.
func (e *Engine) RetiredByID(ctx context.Context, editionID types.EditionID) (types.CarbonUnit, error) {
	return e.read(ctx, "RetiredByID", func(ctx context.Context) (types.CarbonUnit, error) {
		return e.tokens.RetiredByID(ctx, editionID)
	}, attribute.Int64("carbon.edition_id", int64(editionID)))
}

// SupplyByYear returns the circulating supply of one issuance year.
func (e *Engine) SupplyByYear(ctx context.Context, year types.Year) (types.CarbonUnit, error) {
	return e.read(ctx, "SupplyByYear", func(ctx context.Context) (types.CarbonUnit, error) {
		return e.tokens.SupplyByYear(ctx, year)
	}, attribute.Int("carbon.year", int(year)))
}

// RetiredByYear returns the retired amount of one issuance year.
func (e *Engine) RetiredByYear(ctx context.Context, year types.Year) (types.CarbonUnit, error) {
	return e.read(ctx, "RetiredByYear", func(ctx context.Context) (types.CarbonUnit, error) {
		return e.tokens.RetiredByYear(ctx, year)
	}, attribute.Int("carbon.year", int(year)))
}

// ──────────────────────────────────────────────────
// Balances
// ──────────────────────────────────────────────────

// Balances returns the caller's holdings with their edition details.
func (e *Engine) Balances(ctx context.Context, caller types.AccountID) ([]token.BalanceDetail, error) {
	ctx, span := e.start(ctx, "Balances", caller)
	defer span.End()

	if err := e.requireHolder(caller); err != nil {
		return nil, e.fail(span, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	details, err := e.tokens.AccountBalances(ctx, caller)
	if err != nil {
		return nil, e.fail(span, err)
	}
	return details, nil
}

// TotalBalance returns the caller's balance over all editions.
func (e *Engine) TotalBalance(ctx context.Context, caller types.AccountID) (types.CarbonUnit, error) {
	if err := e.requireHolder(caller); err != nil {
		return 0, err
	}
	return e.read(ctx, "TotalBalance", func(ctx context.Context) (types.CarbonUnit, error) {
		return e.tokens.AccountTotalBalance(ctx, caller)
	}, callerAttr(caller))
}

// BalanceByID returns the caller's balance of one edition.
func (e *Engine) BalanceByID(ctx context.Context, caller types.AccountID, editionID types.EditionID) (types.CarbonUnit, error) {
	if err := e.requireHolder(caller); err != nil {
		return 0, err
	}
	return e.read(ctx, "BalanceByID", func(ctx context.Context) (types.CarbonUnit, error) {
		return e.tokens.AccountBalanceByID(ctx, caller, editionID)
	}, callerAttr(caller), attribute.Int64("carbon.edition_id", int64(editionID)))
}

// BalanceByYear returns the caller's balance of one issuance year.
func (e *Engine) BalanceByYear(ctx context.Context, caller types.AccountID, year types.Year) (types.CarbonUnit, error) {
	if err := e.requireHolder(caller); err != nil {
		return 0, err
	}
	return e.read(ctx, "BalanceByYear", func(ctx context.Context) (types.CarbonUnit, error) {
		return e.tokens.AccountBalanceByYear(ctx, caller, year)
	}, callerAttr(caller), attribute.Int("carbon.year", int(year)))
}

// ──────────────────────────────────────────────────
// Transfers
// ──────────────────────────────────────────────────

// TransferAll moves every holding of the caller to to.
func (e *Engine) TransferAll(ctx context.Context, caller, to types.AccountID) (*token.Transfer, error) {
	return e.transfer(ctx, "TransferAll", caller, to, func(ctx context.Context) ([]types.Holding, error) {
		return e.tokens.TransferAll(ctx, caller, to)
	})
}

// TransferByID moves amount of one edition from the caller to to.
func (e *Engine) TransferByID(ctx context.Context, caller, to types.AccountID, editionID types.EditionID, amount types.CarbonUnit) (*token.Transfer, error) {
	return e.transfer(ctx, "TransferByID", caller, to, func(ctx context.Context) ([]types.Holding, error) {
		h, err := e.tokens.TransferByID(ctx, caller, to, editionID, amount)
		if err != nil {
			return nil, err
		}
		return []types.Holding{h}, nil
	}, attribute.Int64("carbon.edition_id", int64(editionID)), attribute.Int64("carbon.amount", int64(amount)))
}

// TransferByYear moves amount of one issuance year from the caller to to,
// draining the oldest approved editions first.
func (e *Engine) TransferByYear(ctx context.Context, caller, to types.AccountID, year types.Year, amount types.CarbonUnit) (*token.Transfer, error) {
	return e.transfer(ctx, "TransferByYear", caller, to, func(ctx context.Context) ([]types.Holding, error) {
		return e.tokens.TransferByYear(ctx, caller, to, year, amount)
	}, attribute.Int("carbon.year", int(year)), attribute.Int64("carbon.amount", int64(amount)))
}

// TransferCompounded moves a bundle of holdings from the caller to to,
// all or nothing.
func (e *Engine) TransferCompounded(ctx context.Context, caller, to types.AccountID, bundle []types.Holding) (*token.Transfer, error) {
	return e.transfer(ctx, "TransferCompounded", caller, to, func(ctx context.Context) ([]types.Holding, error) {
		return e.tokens.TransferCompounded(ctx, caller, to, bundle)
	}, attribute.Int("carbon.bundle_size", len(bundle)))
}

func (e *Engine) transfer(ctx context.Context, op string, caller, to types.AccountID, fn func(context.Context) ([]types.Holding, error), attrs ...attribute.KeyValue) (*token.Transfer, error) {
	ctx, span := e.start(ctx, op, caller, append(attrs, attribute.String("carbon.to", to.String()))...)
	defer span.End()

	if err := e.requireSender(caller); err != nil {
		return nil, e.fail(span, err)
	}
	if err := requireRecipient(to); err != nil {
		return nil, e.fail(span, err)
	}

	e.mu.Lock()
	moved, err := fn(ctx)
	e.commit(err)
	e.mu.Unlock()
	if err != nil {
		return nil, e.fail(span, err)
	}

	t := &token.Transfer{From: caller, To: to, Editions: moved}
	span.SetAttributes(attribute.Int64("carbon.moved", int64(t.Total())))
	e.logger.Debug("carbon transferred",
		"op", op,
		"from", caller,
		"to", to,
		"editions", len(moved),
		"total", t.Total(),
	)
	e.plugins.EmitTokenTransferred(ctx, t)
	return t, nil
}

// ──────────────────────────────────────────────────
// Retirement
// ──────────────────────────────────────────────────

// Retire permanently removes amount of an edition from the caller's balance
// and records a retirement report.
func (e *Engine) Retire(ctx context.Context, caller types.AccountID, editionID types.EditionID, amount types.CarbonUnit) (*retirement.Receipt, error) {
	ctx, span := e.start(ctx, "Retire", caller,
		attribute.Int64("carbon.edition_id", int64(editionID)),
		attribute.Int64("carbon.amount", int64(amount)),
	)
	defer span.End()

	if err := e.requireSender(caller); err != nil {
		return nil, e.fail(span, err)
	}

	e.mu.Lock()
	report, err := func() (*retirement.Report, error) {
		ed, err := e.tokens.Retire(ctx, caller, editionID, amount)
		if err != nil {
			return nil, err
		}
		return e.retirements.record(ctx, caller, token.BalanceDetail{Balance: amount, Edition: ed})
	}()
	e.commit(err)
	e.mu.Unlock()
	if err != nil {
		if IsFatal(err) {
			e.logger.Error("retirement left the ledger inconsistent",
				"account", caller,
				"edition_id", editionID,
				"amount", amount,
				"error", err,
			)
		}
		return nil, e.fail(span, err)
	}

	span.SetAttributes(attribute.Int64("carbon.retirement_id", int64(report.ID)))
	e.logger.Info("carbon retired",
		"retirement_id", report.ID,
		"account", caller,
		"edition_id", editionID,
		"amount", amount,
	)
	e.plugins.EmitTokenTransferred(ctx, &token.Transfer{
		From:     caller,
		To:       types.Blackhole,
		Editions: []types.Holding{{EditionID: editionID, Amount: amount}},
	})
	e.plugins.EmitTokenRetired(ctx, report)
	return &retirement.Receipt{ID: report.ID, Amount: report.Amount}, nil
}

// Report returns a retirement report by id.
func (e *Engine) Report(ctx context.Context, retirementID types.RetirementID) (*retirement.Report, error) {
	ctx, span := e.start(ctx, "Report", "", attribute.Int64("carbon.retirement_id", int64(retirementID)))
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.retirements.Report(ctx, retirementID)
	if err != nil {
		return nil, e.fail(span, err)
	}
	return r, nil
}

// LastReport returns the most recent retirement report.
func (e *Engine) LastReport(ctx context.Context) (*retirement.Report, error) {
	ctx, span := e.start(ctx, "LastReport", "")
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.retirements.LastReport(ctx)
	if err != nil {
		return nil, e.fail(span, err)
	}
	return r, nil
}

// LastReportID returns the id of the most recent retirement report. The
// boolean is false when nothing has been retired.
func (e *Engine) LastReportID(ctx context.Context) (types.RetirementID, bool, error) {
	ctx, span := e.start(ctx, "LastReportID", "")
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	id, ok, err := e.retirements.LastReportID(ctx)
	if err != nil {
		return 0, false, e.fail(span, err)
	}
	return id, ok, nil
}

// AccountReports returns the retirement reports of account in id order.
func (e *Engine) AccountReports(ctx context.Context, account types.AccountID) ([]*retirement.Report, error) {
	ctx, span := e.start(ctx, "AccountReports", "", attribute.String("carbon.account", account.String()))
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	reports, err := e.retirements.AccountReports(ctx, account)
	if err != nil {
		return nil, e.fail(span, err)
	}
	return reports, nil
}

// MyReports returns the caller's own retirement reports.
func (e *Engine) MyReports(ctx context.Context, caller types.AccountID) ([]*retirement.Report, error) {
	if err := e.requireHolder(caller); err != nil {
		return nil, err
	}
	return e.AccountReports(ctx, caller)
}

// ──────────────────────────────────────────────────
// Internals
// ──────────────────────────────────────────────────

func (e *Engine) start(ctx context.Context, op string, caller types.AccountID, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if !caller.IsZero() {
		attrs = append(attrs, callerAttr(caller))
	}
	return e.tracer.Start(ctx, "carbon."+op, trace.WithAttributes(attrs...))
}

func (e *Engine) read(ctx context.Context, op string, fn func(context.Context) (types.CarbonUnit, error), attrs ...attribute.KeyValue) (types.CarbonUnit, error) {
	ctx, span := e.start(ctx, op, "", attrs...)
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := fn(ctx)
	if err != nil {
		return 0, e.fail(span, err)
	}
	return v, nil
}

func (e *Engine) readSupply(ctx context.Context, op string, fn func(context.Context) (token.Supply, error), attrs ...attribute.KeyValue) (token.Supply, error) {
	ctx, span := e.start(ctx, op, "", attrs...)
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := fn(ctx)
	if err != nil {
		return token.Supply{}, e.fail(span, err)
	}
	return v, nil
}

// commit advances the environment after a write that changed state.
// ErrBlockchainCorrupted leaves state mutated and still counts.
func (e *Engine) commit(err error) {
	if err != nil && !IsFatal(err) {
		return
	}
	if a, ok := e.env.(advancer); ok {
		a.Advance()
	}
}

func (e *Engine) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func callerAttr(caller types.AccountID) attribute.KeyValue {
	return attribute.String("carbon.caller", caller.String())
}
