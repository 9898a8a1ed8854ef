// Package retirement defines the immutable reports written when carbon
// units are permanently retired.
package retirement

import "github.com/xraph/carbon/types"

// Report records one retirement. Reports are never updated or deleted.
type Report struct {
	ID          types.RetirementID `json:"id"`
	Beneficiary types.AccountID    `json:"beneficiary"`
	EditionID   types.EditionID    `json:"token_id"`
	Amount      types.CarbonUnit   `json:"amount"`
	RegistryID  string             `json:"registry_id"`
	types.Stamp
}

// Receipt is the compact acknowledgment of a recorded retirement.
type Receipt struct {
	ID     types.RetirementID `json:"id"`
	Amount types.CarbonUnit   `json:"amount"`
}
