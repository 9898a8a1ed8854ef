// Package extension provides the Forge extension adapter for Carbon.
//
// It implements the forge.Extension interface to integrate the carbon
// ledger into a Forge application with DI registration, an optional
// HTTP API, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.carbon" or "carbon" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/carbon"
	"github.com/xraph/carbon/api"
	"github.com/xraph/carbon/store"
	"github.com/xraph/carbon/store/memory"
	"github.com/xraph/carbon/store/mongo"
	"github.com/xraph/carbon/store/postgres"
	"github.com/xraph/carbon/store/sqlite"
	"github.com/xraph/carbon/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "carbon"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Carbon credit issuance, transfer and retirement ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the carbon engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *carbon.Engine
	server     *api.Server
	store      store.Store
	groveDB    *grove.DB
	engineOpts []carbon.Option
}

// New creates a new carbon Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying carbon engine.
// This is nil until Register is called.
func (e *Extension) Engine() *carbon.Engine { return e.engine }

// Server returns the HTTP API, or nil when routes are disabled or no
// JWT secret is configured.
func (e *Extension) Server() *api.Server { return e.server }

// Register implements [forge.Extension]. It loads configuration,
// initializes the carbon engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	s, err := e.buildStore()
	if err != nil {
		return err
	}
	e.store = s

	opts, err := e.buildEngineOpts()
	if err != nil {
		return err
	}
	e.engine = carbon.New(e.store, opts...)

	if err := vessel.Provide(fapp.Container(), func() (*carbon.Engine, error) {
		return e.engine, nil
	}); err != nil {
		return err
	}

	if e.config.DisableRoutes || e.config.JWTSecret == "" {
		return nil
	}

	auth := api.NewAuthenticator([]byte(e.config.JWTSecret), e.config.JWTIssuer)
	e.server = api.New(e.engine, auth, api.WithBasePath(e.config.BasePath))

	return vessel.Provide(fapp.Container(), func() (*api.Server, error) {
		return e.server, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("carbon: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("carbon: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildStore picks the programmatic store, then a grove-backed one, then
// falls back to memory.
func (e *Extension) buildStore() (store.Store, error) {
	if e.store != nil {
		return e.store, nil
	}

	driver := e.config.StoreDriver
	if e.groveDB == nil {
		if driver != "" && driver != DriverMemory {
			return nil, fmt.Errorf("carbon: store driver %q requires a grove database", driver)
		}
		return memory.New(), nil
	}

	switch driver {
	case DriverPostgres:
		return postgres.New(e.groveDB), nil
	case DriverSQLite:
		return sqlite.New(e.groveDB), nil
	case DriverMongo:
		return mongo.New(e.groveDB), nil
	case "", DriverMemory:
		return nil, errors.New("carbon: grove database supplied without a store driver")
	default:
		return nil, fmt.Errorf("carbon: unknown store driver %q", driver)
	}
}

// buildEngineOpts constructs carbon.Option values from the resolved config.
func (e *Extension) buildEngineOpts() ([]carbon.Option, error) {
	opts := make([]carbon.Option, 0, len(e.engineOpts)+3)

	if e.config.Governor != "" {
		governor, err := types.ParseAccountID(e.config.Governor)
		if err != nil {
			return nil, fmt.Errorf("carbon: governor: %w", err)
		}
		opts = append(opts, carbon.WithGovernor(governor))
	}
	if e.config.ExactYearWalk {
		opts = append(opts, carbon.WithExactYearWalk(true))
	}
	if e.config.DisableMigrate {
		opts = append(opts, carbon.WithoutMigrate())
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts, nil
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("carbon: configuration is required but not found in config files; " +
				"ensure 'extensions.carbon' or 'carbon' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("carbon: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("governor", e.config.Governor),
		forge.F("exact_year_walk", e.config.ExactYearWalk),
		forge.F("store_driver", e.config.StoreDriver),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.carbon" first (namespaced pattern).
	if cm.IsSet("extensions.carbon") {
		if err := cm.Bind("extensions.carbon", &cfg); err == nil {
			e.Logger().Debug("carbon: loaded config from file",
				forge.F("key", "extensions.carbon"),
			)
			return cfg, true
		}
		e.Logger().Warn("carbon: failed to bind extensions.carbon config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "carbon" key.
	if cm.IsSet("carbon") {
		if err := cm.Bind("carbon", &cfg); err == nil {
			e.Logger().Debug("carbon: loaded config from file",
				forge.F("key", "carbon"),
			)
			return cfg, true
		}
		e.Logger().Warn("carbon: failed to bind carbon config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = defaults.StoreDriver
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.ExactYearWalk {
		yamlConfig.ExactYearWalk = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.BasePath == "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}
	if yamlConfig.Governor == "" {
		yamlConfig.Governor = programmaticConfig.Governor
	}
	if yamlConfig.StoreDriver == "" {
		yamlConfig.StoreDriver = programmaticConfig.StoreDriver
	}
	if yamlConfig.JWTSecret == "" {
		yamlConfig.JWTSecret = programmaticConfig.JWTSecret
		yamlConfig.JWTIssuer = programmaticConfig.JWTIssuer
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}
