package carbon

import (
	"sync/atomic"
	"time"

	"github.com/xraph/carbon/types"
)

// Environment supplies the ledger timeline used to stamp records.
type Environment interface {
	BlockNumber() uint64
	Now() time.Time
}

// advancer is implemented by environments that move the block height
// forward after each committed write.
type advancer interface {
	Advance() uint64
}

// LocalEnvironment is an in-process timeline. Its block number starts at
// zero and advances by one after every successful mutating call.
type LocalEnvironment struct {
	height atomic.Uint64
	clock  func() time.Time
}

// NewLocalEnvironment creates a LocalEnvironment backed by the wall clock.
func NewLocalEnvironment() *LocalEnvironment {
	return &LocalEnvironment{clock: time.Now}
}

// NewLocalEnvironmentAt creates a LocalEnvironment with a fixed starting
// height and clock.
func NewLocalEnvironmentAt(height uint64, clock func() time.Time) *LocalEnvironment {
	e := &LocalEnvironment{clock: clock}
	e.height.Store(height)
	return e
}

// BlockNumber returns the current height.
func (e *LocalEnvironment) BlockNumber() uint64 { return e.height.Load() }

// Now returns the current time in UTC.
func (e *LocalEnvironment) Now() time.Time { return e.clock().UTC() }

// Advance moves the height forward by one and returns the new height.
func (e *LocalEnvironment) Advance() uint64 { return e.height.Add(1) }

func stamp(env Environment) types.Stamp {
	return types.NewStamp(env.BlockNumber(), env.Now())
}
