package carbon

import "github.com/xraph/carbon/id"

// ID is the identifier type for records the ledger creates without a
// numeric key.
type ID = id.ID

// Prefix identifies the record type encoded in a TypeID.
type Prefix = id.Prefix
