package plugin_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/carbon/custodian"
	"github.com/xraph/carbon/plugin"
	"github.com/xraph/carbon/token"
	"github.com/xraph/carbon/types"
)

type calls struct {
	err error

	mu   sync.Mutex
	seen []string
}

func (c *calls) record(hook string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, hook)
	return c.err
}

func (c *calls) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.seen...)
}

type recorder struct {
	calls
	name string
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) OnInit(context.Context, any) error { return r.record("init") }

func (r *recorder) OnCustodianAdmitted(context.Context, *custodian.Custodian) error {
	return r.record("admitted")
}

func (r *recorder) OnTokenTransferred(context.Context, *token.Transfer) error {
	return r.record("transferred")
}

// transferOnly implements a single hook.
type transferOnly struct {
	calls
	name string
}

func (t *transferOnly) Name() string { return t.name }

func (t *transferOnly) OnTokenTransferred(context.Context, *token.Transfer) error {
	return t.record("transferred")
}

type blocking struct{ release chan struct{} }

func (b *blocking) Name() string { return "blocking" }

func (b *blocking) OnTokenTransferred(context.Context, *token.Transfer) error {
	<-b.release
	return nil
}

func newRegistry() *plugin.Registry {
	return plugin.NewRegistry().WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.Register(&recorder{name: "audit"}))

	err := r.Register(&recorder{name: "audit"})
	assert.ErrorContains(t, err, "duplicate registration: audit")
	assert.Equal(t, 1, r.Count())
}

func TestGetAndList(t *testing.T) {
	r := newRegistry()
	a := &recorder{name: "a"}
	b := &transferOnly{name: "b"}
	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b))

	assert.Same(t, a, r.Get("a"))
	assert.Nil(t, r.Get("missing"))
	assert.Len(t, r.List(), 2)
}

func TestEmitReachesOnlyImplementers(t *testing.T) {
	ctx := context.Background()
	r := newRegistry()
	full := &recorder{name: "full"}
	partial := &transferOnly{name: "partial"}
	require.NoError(t, r.Register(full))
	require.NoError(t, r.Register(partial))

	r.EmitInit(ctx, nil)
	r.EmitCustodianAdmitted(ctx, &custodian.Custodian{Alias: "verra"})
	r.EmitTokenTransferred(ctx, &token.Transfer{Editions: []types.Holding{{EditionID: 1, Amount: 5}}})
	r.EmitTokenRetired(ctx, nil)

	assert.Equal(t, []string{"init", "admitted", "transferred"}, full.Calls())
	assert.Equal(t, []string{"transferred"}, partial.Calls())
}

func TestHookErrorsDoNotStopDispatch(t *testing.T) {
	ctx := context.Background()
	r := newRegistry()
	failing := &recorder{name: "failing", calls: calls{err: errors.New("boom")}}
	healthy := &recorder{name: "healthy"}
	require.NoError(t, r.Register(failing))
	require.NoError(t, r.Register(healthy))

	r.EmitTokenTransferred(ctx, &token.Transfer{})

	assert.Equal(t, []string{"transferred"}, failing.Calls())
	assert.Equal(t, []string{"transferred"}, healthy.Calls())
}

func TestHookTimeout(t *testing.T) {
	r := newRegistry().WithTimeout(20 * time.Millisecond)
	b := &blocking{release: make(chan struct{})}
	defer close(b.release)
	after := &recorder{name: "after"}
	require.NoError(t, r.Register(b))
	require.NoError(t, r.Register(after))

	start := time.Now()
	r.EmitTokenTransferred(context.Background(), &token.Transfer{})

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, []string{"transferred"}, after.Calls())
}
