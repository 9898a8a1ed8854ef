package audithook_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/carbon"
	audithook "github.com/xraph/carbon/audit_hook"
	"github.com/xraph/carbon/store/memory"
	"github.com/xraph/carbon/token"
	"github.com/xraph/carbon/types"
)

var (
	governor  = types.MustParseAccountID("0x" + strings.Repeat("01", 32))
	registrar = types.MustParseAccountID("0x" + strings.Repeat("02", 32))
	owner     = types.MustParseAccountID("0x" + strings.Repeat("03", 32))
)

type sink struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (s *sink) Record(_ context.Context, evt *audithook.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func (s *sink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, evt := range s.events {
		out = append(out, evt.Action)
	}
	return out
}

func run(t *testing.T, ext *audithook.Extension) {
	t.Helper()
	ctx := context.Background()

	e := carbon.New(memory.New(), carbon.WithGovernor(governor), carbon.WithPlugin(ext))
	require.NoError(t, e.Start(ctx))
	t.Cleanup(func() { _ = e.Stop() })

	_, err := e.AdmitCustodian(ctx, governor, registrar, "verra")
	require.NoError(t, err)
	_, err = e.RequestMint(ctx, registrar, token.MintParams{RegistryID: "VCS-1", Amount: 100, Year: 2021, Beneficiary: owner})
	require.NoError(t, err)
	_, err = e.ApproveMint(ctx, governor, "VCS-1")
	require.NoError(t, err)
	_, err = e.Retire(ctx, owner, 0, 10)
	require.NoError(t, err)
}

func TestExtensionRecordsLedgerEvents(t *testing.T) {
	s := &sink{}
	run(t, audithook.New(s))

	assert.Equal(t, []string{
		audithook.ActionCustodianAdmitted,
		audithook.ActionMintRequested,
		audithook.ActionMintApproved,
		audithook.ActionTokenTransferred,
		audithook.ActionTokenTransferred,
		audithook.ActionTokenRetired,
	}, s.actions())

	admitted := s.events[0]
	assert.Equal(t, audithook.ResourceCustodian, admitted.Resource)
	assert.Equal(t, registrar.String(), admitted.ResourceID)
	assert.Equal(t, "verra", admitted.Metadata["alias"])
	assert.True(t, strings.HasPrefix(admitted.ID.String(), "aud_"))

	approved := s.events[2]
	assert.Equal(t, governor.String(), approved.Actor)
	assert.Equal(t, "VCS-1", approved.Metadata["registry_id"])

	retired := s.events[5]
	assert.Equal(t, audithook.CategoryRetirement, retired.Category)
	assert.Equal(t, owner.String(), retired.Actor)
	assert.Equal(t, uint64(10), retired.Metadata["amount"])
}

func TestEnabledActions(t *testing.T) {
	s := &sink{}
	run(t, audithook.New(s, audithook.WithEnabledActions(audithook.ActionMintApproved)))

	assert.Equal(t, []string{audithook.ActionMintApproved}, s.actions())
}

func TestDisabledActions(t *testing.T) {
	s := &sink{}
	run(t, audithook.New(s, audithook.WithDisabledActions(audithook.ActionTokenTransferred)))

	assert.NotContains(t, s.actions(), audithook.ActionTokenTransferred)
	assert.Contains(t, s.actions(), audithook.ActionTokenRetired)
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("backend down")
	}))

	err := ext.OnCustodianRevoked(context.Background(), registrar)
	assert.NoError(t, err)
}
