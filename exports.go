package carbon

import "github.com/xraph/carbon/types"

// Re-export common types for convenience so users don't have to import types package.

type (
	// CarbonUnit is re-exported from types package.
	CarbonUnit = types.CarbonUnit
	// EditionID is re-exported from types package.
	EditionID = types.EditionID
	// RetirementID is re-exported from types package.
	RetirementID = types.RetirementID
	// Year is re-exported from types package.
	Year = types.Year
	// AccountID is re-exported from types package.
	AccountID = types.AccountID
	// Holding is re-exported from types package.
	Holding = types.Holding
)

// Blackhole is the account retired carbon units are sent to.
const Blackhole = types.Blackhole

// Re-export account constructors.
var (
	ParseAccountID     = types.ParseAccountID
	MustParseAccountID = types.MustParseAccountID
)
