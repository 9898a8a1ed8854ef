package extension

import (
	"github.com/xraph/grove"

	"github.com/xraph/carbon"
	"github.com/xraph/carbon/plugin"
	"github.com/xraph/carbon/store"
	"github.com/xraph/carbon/types"
)

// Option configures the carbon Forge extension.
type Option func(*Extension)

// WithStore sets the store for the carbon engine. It takes precedence over
// WithGroveDB.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGroveDB builds the store from db using Config.StoreDriver.
func WithGroveDB(db *grove.DB) Option {
	return func(e *Extension) {
		e.groveDB = db
	}
}

// WithEngineOption passes a carbon.Option through to the underlying engine.
func WithEngineOption(opt carbon.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a carbon plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, carbon.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes prevents the HTTP API from being built.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix for carbon routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithGovernor sets the governance account.
func WithGovernor(account types.AccountID) Option {
	return func(e *Extension) { e.config.Governor = account.String() }
}

// WithExactYearWalk makes year transfers move exactly the requested amount.
func WithExactYearWalk() Option {
	return func(e *Extension) { e.config.ExactYearWalk = true }
}

// WithStoreDriver selects the backend built by WithGroveDB.
func WithStoreDriver(driver string) Option {
	return func(e *Extension) { e.config.StoreDriver = driver }
}

// WithJWT sets the caller token key and issuer.
func WithJWT(secret, issuer string) Option {
	return func(e *Extension) {
		e.config.JWTSecret = secret
		e.config.JWTIssuer = issuer
	}
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
