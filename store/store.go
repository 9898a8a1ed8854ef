// Package store defines the unified persistence interface for carbon.
package store

import (
	"context"

	"github.com/xraph/carbon/custodian"
	"github.com/xraph/carbon/retirement"
	"github.com/xraph/carbon/token"
)

// Store is the unified storage interface for all carbon components. Each
// backend implements every entity store plus the core lifecycle methods.
type Store interface {
	custodian.Store
	token.Store
	retirement.Store

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
