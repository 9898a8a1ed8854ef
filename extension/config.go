package extension

// Store drivers accepted in Config.StoreDriver.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Config holds the carbon extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.carbon" or "carbon" keys).
type Config struct {
	// DisableRoutes prevents the HTTP API from being built.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for carbon routes (default: "/carbon").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// Governor is the hex address holding governance capability.
	Governor string `json:"governor" mapstructure:"governor" yaml:"governor"`

	// ExactYearWalk makes year transfers move exactly the requested amount.
	ExactYearWalk bool `json:"exact_year_walk" mapstructure:"exact_year_walk" yaml:"exact_year_walk"`

	// StoreDriver selects the backend built around a grove.DB supplied with
	// WithGroveDB: "postgres", "sqlite" or "mongo" (default: "memory").
	StoreDriver string `json:"store_driver" mapstructure:"store_driver" yaml:"store_driver"`

	// JWTSecret is the HMAC key that signs caller tokens. The API is not
	// built when it is empty.
	JWTSecret string `json:"jwt_secret" mapstructure:"jwt_secret" yaml:"jwt_secret"`

	// JWTIssuer is the required token issuer. Empty accepts any issuer.
	JWTIssuer string `json:"jwt_issuer" mapstructure:"jwt_issuer" yaml:"jwt_issuer"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:    "/carbon",
		StoreDriver: DriverMemory,
	}
}
