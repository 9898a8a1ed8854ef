package audithook

// Action constants for audit events.
const (
	// Custodian actions
	ActionCustodianAdmitted = "custodian.admitted"
	ActionCustodianRevoked  = "custodian.revoked"

	// Issuance actions
	ActionMintRequested = "mint.requested"
	ActionMintApproved  = "mint.approved"
	ActionMintDenied    = "mint.denied"

	// Balance actions
	ActionTokenTransferred = "token.transferred"
	ActionTokenRetired     = "token.retired"
)

// Resource constants for audit events.
const (
	ResourceCustodian   = "custodian"
	ResourceMintRequest = "mint_request"
	ResourceEdition     = "edition"
	ResourceRetirement  = "retirement"
)

// Category constants for audit events.
const (
	CategoryGovernance = "governance"
	CategoryIssuance   = "issuance"
	CategoryBalance    = "balance"
	CategoryRetirement = "retirement"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
