package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/carbon/custodian"
	"github.com/xraph/carbon/retirement"
	"github.com/xraph/carbon/token"
	"github.com/xraph/carbon/types"
)

// DefaultTimeout bounds a single hook invocation.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and dispatches events to them.
// Hook lists are cached per interface at registration time.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit              []OnInit
	onShutdown          []OnShutdown
	onCustodianAdmitted []OnCustodianAdmitted
	onCustodianRevoked  []OnCustodianRevoked
	onMintRequested     []OnMintRequested
	onMintApproved      []OnMintApproved
	onMintDenied        []OnMintDenied
	onTokenTransferred  []OnTokenTransferred
	onTokenRetired      []OnTokenRetired
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	var hooks []string
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
		hooks = append(hooks, "OnInit")
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
		hooks = append(hooks, "OnShutdown")
	}
	if v, ok := p.(OnCustodianAdmitted); ok {
		r.onCustodianAdmitted = append(r.onCustodianAdmitted, v)
		hooks = append(hooks, "OnCustodianAdmitted")
	}
	if v, ok := p.(OnCustodianRevoked); ok {
		r.onCustodianRevoked = append(r.onCustodianRevoked, v)
		hooks = append(hooks, "OnCustodianRevoked")
	}
	if v, ok := p.(OnMintRequested); ok {
		r.onMintRequested = append(r.onMintRequested, v)
		hooks = append(hooks, "OnMintRequested")
	}
	if v, ok := p.(OnMintApproved); ok {
		r.onMintApproved = append(r.onMintApproved, v)
		hooks = append(hooks, "OnMintApproved")
	}
	if v, ok := p.(OnMintDenied); ok {
		r.onMintDenied = append(r.onMintDenied, v)
		hooks = append(hooks, "OnMintDenied")
	}
	if v, ok := p.(OnTokenTransferred); ok {
		r.onTokenTransferred = append(r.onTokenTransferred, v)
		hooks = append(hooks, "OnTokenTransferred")
	}
	if v, ok := p.(OnTokenRetired); ok {
		r.onTokenRetired = append(r.onTokenRetired, v)
		hooks = append(hooks, "OnTokenRetired")
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", hooks,
	)

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnInit", p.Name(), func() error {
			return p.OnInit(ctx, engine)
		})
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnShutdown", p.Name(), func() error {
			return p.OnShutdown(ctx)
		})
	}
}

// EmitCustodianAdmitted emits a custodian admitted event.
func (r *Registry) EmitCustodianAdmitted(ctx context.Context, c *custodian.Custodian) {
	r.mu.RLock()
	plugins := r.onCustodianAdmitted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnCustodianAdmitted", p.Name(), func() error {
			return p.OnCustodianAdmitted(ctx, c)
		})
	}
}

// EmitCustodianRevoked emits a custodian revoked event.
func (r *Registry) EmitCustodianRevoked(ctx context.Context, account types.AccountID) {
	r.mu.RLock()
	plugins := r.onCustodianRevoked
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnCustodianRevoked", p.Name(), func() error {
			return p.OnCustodianRevoked(ctx, account)
		})
	}
}

// EmitMintRequested emits a mint requested event.
func (r *Registry) EmitMintRequested(ctx context.Context, pm *token.PendingMint) {
	r.mu.RLock()
	plugins := r.onMintRequested
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnMintRequested", p.Name(), func() error {
			return p.OnMintRequested(ctx, pm)
		})
	}
}

// EmitMintApproved emits a mint approved event.
func (r *Registry) EmitMintApproved(ctx context.Context, a *token.Approval) {
	r.mu.RLock()
	plugins := r.onMintApproved
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnMintApproved", p.Name(), func() error {
			return p.OnMintApproved(ctx, a)
		})
	}
}

// EmitMintDenied emits a mint denied event.
func (r *Registry) EmitMintDenied(ctx context.Context, d *token.Denial) {
	r.mu.RLock()
	plugins := r.onMintDenied
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnMintDenied", p.Name(), func() error {
			return p.OnMintDenied(ctx, d)
		})
	}
}

// EmitTokenTransferred emits a token transferred event.
func (r *Registry) EmitTokenTransferred(ctx context.Context, t *token.Transfer) {
	r.mu.RLock()
	plugins := r.onTokenTransferred
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnTokenTransferred", p.Name(), func() error {
			return p.OnTokenTransferred(ctx, t)
		})
	}
}

// EmitTokenRetired emits a token retired event.
func (r *Registry) EmitTokenRetired(ctx context.Context, rep *retirement.Report) {
	r.mu.RLock()
	plugins := r.onTokenRetired
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnTokenRetired", p.Name(), func() error {
			return p.OnTokenRetired(ctx, rep)
		})
	}
}

// dispatch runs one hook and logs its failure. Hook errors never reach
// the caller of the ledger operation.
func (r *Registry) dispatch(ctx context.Context, hook, pluginName string, fn func() error) {
	if err := r.callWithTimeout(ctx, pluginName, fn); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", pluginName,
			"error", err,
		)
	}
}

// callWithTimeout calls a plugin function with a timeout.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
