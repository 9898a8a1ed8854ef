package carbon

import (
	"errors"
	"fmt"

	"github.com/xraph/carbon/types"
)

// Ledger errors. Each condition has exactly one sentinel and no nested cause.
var (
	ErrCustodianAlreadyRegistered     = errors.New("carbon: custodian already registered")
	ErrCustodianNotFound              = errors.New("carbon: custodian not found")
	ErrTokenMintRequestAlreadyPending = errors.New("carbon: token mint request already pending")
	ErrTokenMintRequestNotFound       = errors.New("carbon: token mint request not found")
	ErrTokenNotFound                  = errors.New("carbon: token not found")
	ErrCannotTransferZeroCarbonUnit   = errors.New("carbon: cannot transfer zero carbon unit")
	ErrInsufficientCarbonUnit         = errors.New("carbon: insufficient carbon unit")
	ErrRetirementReportNotFound       = errors.New("carbon: retirement report not found")
	ErrTokenAlreadyMinted             = errors.New("carbon: token already minted") // reserved
	ErrUnauthorized                   = errors.New("carbon: unauthorized")
	ErrBlockchainCorrupted            = errors.New("carbon: blockchain corrupted")
)

// ErrSupplyOverflow rejects an approval that would take the minted total
// past the range of CarbonUnit.
var ErrSupplyOverflow = errors.New("carbon: supply overflow")

// Boundary errors.
var (
	ErrInvalidAccount = types.ErrInvalidAccount
	ErrInvalidInput   = errors.New("carbon: invalid input")
)

// Store errors.
var (
	ErrStoreNotReady   = errors.New("carbon: store not ready")
	ErrStoreClosed     = errors.New("carbon: store is closed")
	ErrMigrationFailed = errors.New("carbon: migration failed")
)

// ValidationError represents a malformed request parameter.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("carbon: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// IsFatal reports whether err signals a broken ledger invariant. State may
// already be partially mutated when such an error is returned.
func IsFatal(err error) bool {
	return errors.Is(err, ErrBlockchainCorrupted)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCustodianNotFound) ||
		errors.Is(err, ErrTokenMintRequestNotFound) ||
		errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrRetirementReportNotFound)
}

// IsConflict returns true if the error rejects a duplicate registration or request.
func IsConflict(err error) bool {
	return errors.Is(err, ErrCustodianAlreadyRegistered) ||
		errors.Is(err, ErrTokenMintRequestAlreadyPending) ||
		errors.Is(err, ErrTokenAlreadyMinted)
}

// IsRejection returns true for the ordinary rejections of an invalid
// request. Store failures and corruption are not rejections.
func IsRejection(err error) bool {
	return IsNotFound(err) ||
		IsConflict(err) ||
		errors.Is(err, ErrCannotTransferZeroCarbonUnit) ||
		errors.Is(err, ErrInsufficientCarbonUnit) ||
		errors.Is(err, ErrSupplyOverflow) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidAccount)
}
