package relay_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/carbon"
	"github.com/xraph/carbon/relay"
	"github.com/xraph/carbon/store/memory"
	"github.com/xraph/carbon/token"
	"github.com/xraph/carbon/types"
)

var (
	governor  = types.MustParseAccountID("0x" + strings.Repeat("01", 32))
	registrar = types.MustParseAccountID("0x" + strings.Repeat("02", 32))
	owner     = types.MustParseAccountID("0x" + strings.Repeat("03", 32))
	at        = time.Date(2024, time.June, 1, 9, 30, 0, 0, time.UTC)
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) messages() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestRelayPublishesLedgerEvents(t *testing.T) {
	ctx := context.Background()
	w := &fakeWriter{}
	r := relay.New(w,
		relay.WithClock(func() time.Time { return at }),
		relay.WithEventTopic(relay.EventTokenRetired, "carbon.retirements"),
	)

	e := carbon.New(memory.New(), carbon.WithGovernor(governor), carbon.WithPlugin(r))
	require.NoError(t, e.Start(ctx))

	_, err := e.AdmitCustodian(ctx, governor, registrar, "verra")
	require.NoError(t, err)
	_, err = e.RequestMint(ctx, registrar, token.MintParams{RegistryID: "VCS-7", Amount: 50, Year: 2022, Beneficiary: owner})
	require.NoError(t, err)
	_, err = e.ApproveMint(ctx, governor, "VCS-7")
	require.NoError(t, err)
	_, err = e.Retire(ctx, owner, 0, 5)
	require.NoError(t, err)
	require.NoError(t, e.Stop())

	msgs := w.messages()
	kinds := make([]string, 0, len(msgs))
	for _, m := range msgs {
		kinds = append(kinds, header(m, "event_type"))
	}
	assert.Equal(t, []string{
		relay.EventCustodianAdmitted,
		relay.EventMintRequested,
		relay.EventMintApproved,
		relay.EventTokenTransferred,
		relay.EventTokenTransferred,
		relay.EventTokenRetired,
	}, kinds)
	assert.True(t, w.closed)

	requested := msgs[1]
	assert.Equal(t, relay.DefaultTopic, requested.Topic)
	assert.Equal(t, "VCS-7", string(requested.Key))

	retired := msgs[5]
	assert.Equal(t, "carbon.retirements", retired.Topic)
	assert.Equal(t, owner.String(), string(retired.Key))

	var env struct {
		ID         string    `json:"id"`
		Type       string    `json:"type"`
		OccurredAt time.Time `json:"occurred_at"`
		Data       struct {
			Amount      uint64 `json:"amount"`
			Beneficiary string `json:"beneficiary"`
		} `json:"data"`
	}
	require.NoError(t, jsoniter.Unmarshal(retired.Value, &env))
	assert.True(t, strings.HasPrefix(env.ID, "cevt_"))
	assert.Equal(t, header(retired, "event_id"), env.ID)
	assert.Equal(t, relay.EventTokenRetired, env.Type)
	assert.True(t, at.Equal(env.OccurredAt))
	assert.Equal(t, uint64(5), env.Data.Amount)
	assert.Equal(t, owner.String(), env.Data.Beneficiary)
}

func TestRelayFansOutToMirrors(t *testing.T) {
	primary, mirror := &fakeWriter{}, &fakeWriter{}
	r := relay.New(primary, relay.WithMirror(mirror), relay.WithTopic("ledger"))

	require.NoError(t, r.OnCustodianRevoked(context.Background(), registrar))

	require.Len(t, primary.messages(), 1)
	require.Len(t, mirror.messages(), 1)
	assert.Equal(t, "ledger", mirror.messages()[0].Topic)
}

func TestRelayReportsWriterFailure(t *testing.T) {
	primary := &fakeWriter{}
	broken := &fakeWriter{err: errors.New("broker unavailable")}
	r := relay.New(primary, relay.WithMirror(broken))

	err := r.OnCustodianRevoked(context.Background(), registrar)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")
}

func TestNewKafkaWriterRequiresBrokers(t *testing.T) {
	_, err := relay.NewKafkaWriter()
	require.Error(t, err)

	w, err := relay.NewKafkaWriter("localhost:9092")
	require.NoError(t, err)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
}
