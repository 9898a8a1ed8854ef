package memory_test

import (
	"testing"

	"github.com/xraph/carbon/store"
	"github.com/xraph/carbon/store/memory"
	"github.com/xraph/carbon/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return memory.New() })
}
