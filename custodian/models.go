// Package custodian defines the accounts authorised to request mints.
package custodian

import "github.com/xraph/carbon/types"

// Custodian is an account admitted by governance to submit mint requests.
// A record is created on admission and destroyed on revocation; it is never
// updated in between.
type Custodian struct {
	Account types.AccountID `json:"account"`
	Alias   string          `json:"alias"`
	types.Stamp
}
