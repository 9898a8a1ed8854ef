package types

import "time"

// Stamp records where on the ledger timeline a record was written.
type Stamp struct {
	BlockNumber uint64    `json:"block_number"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewStamp creates a Stamp with the timestamp normalised to UTC.
func NewStamp(block uint64, at time.Time) Stamp {
	return Stamp{BlockNumber: block, Timestamp: at.UTC()}
}

// IsZero reports whether the stamp was never set.
func (s Stamp) IsZero() bool {
	return s.BlockNumber == 0 && s.Timestamp.IsZero()
}

// Age returns how long ago the stamp was taken.
func (s Stamp) Age() time.Duration {
	return time.Since(s.Timestamp)
}
