package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/carbon"
	"github.com/xraph/carbon/api"
	"github.com/xraph/carbon/store/memory"
	"github.com/xraph/carbon/types"
)

var (
	governor  = account("01")
	registrar = account("02")
	owner     = account("03")
	buyer     = account("04")
	secret    = []byte("test-signing-key")
)

func account(b string) types.AccountID {
	return types.MustParseAccountID("0x" + strings.Repeat(b, 32))
}

type harness struct {
	t      *testing.T
	auth   *api.Authenticator
	server *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	e := carbon.New(memory.New(), carbon.WithGovernor(governor))
	require.NoError(t, e.Start(context.Background()))
	t.Cleanup(func() { _ = e.Stop() })

	auth := api.NewAuthenticator(secret, "carbon-test")
	srv := httptest.NewServer(api.New(e, auth).Handler())
	t.Cleanup(srv.Close)
	return &harness{t: t, auth: auth, server: srv}
}

func (h *harness) do(method, path string, as types.AccountID, body any) (*http.Response, map[string]any) {
	h.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, h.server.URL+api.DefaultBasePath+path, &buf)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")
	if as != "" {
		tok, err := h.auth.IssueToken(as, time.Minute)
		require.NoError(h.t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		var raw any
		require.NoError(h.t, json.NewDecoder(resp.Body).Decode(&raw))
		out, _ = raw.(map[string]any)
	}
	return resp, out
}

// seed admits registrar and mints 100 units of edition 0 (2021) to owner.
func (h *harness) seed() {
	h.t.Helper()
	resp, _ := h.do(http.MethodPost, "/custodians", governor, map[string]string{"account": registrar.String(), "alias": "verra"})
	require.Equal(h.t, http.StatusCreated, resp.StatusCode)

	resp, _ = h.do(http.MethodPost, "/mints", registrar, map[string]any{
		"registry_id":          "VCS-1",
		"verified_carbon_unit": 100,
		"issuance_year":        2021,
		"beneficiary":          owner.String(),
	})
	require.Equal(h.t, http.StatusAccepted, resp.StatusCode)

	resp, _ = h.do(http.MethodPost, "/mints/VCS-1/approve", governor, nil)
	require.Equal(h.t, http.StatusOK, resp.StatusCode)
}

func TestAuthentication(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(http.MethodGet, "/me/balances", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", body["error"])

	other := api.NewAuthenticator([]byte("other-key"), "carbon-test")
	tok, err := other.IssueToken(owner, time.Minute)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodGet, h.server.URL+"/carbon/me/balances", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	r, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, r.StatusCode)

	resp, _ = h.do(http.MethodGet, "/custodians", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthenticatorRoundTrip(t *testing.T) {
	auth := api.NewAuthenticator(secret, "carbon")
	tok, err := auth.IssueToken(owner, time.Minute)
	require.NoError(t, err)

	got, err := auth.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, owner, got)

	expired, err := auth.IssueToken(owner, -time.Minute)
	require.NoError(t, err)
	_, err = auth.Validate(expired)
	assert.ErrorIs(t, err, api.ErrInvalidToken)

	_, err = api.NewAuthenticator(secret, "someone-else").Validate(tok)
	assert.ErrorIs(t, err, api.ErrInvalidToken)
}

func TestIssuanceAndSupply(t *testing.T) {
	h := newHarness(t)
	h.seed()

	resp, body := h.do(http.MethodGet, "/supply", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 100, body["supply"], 0)
	assert.InDelta(t, 0, body["retired"], 0)

	resp, body = h.do(http.MethodGet, "/editions/0", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "VCS-1", body["registry_id"])

	resp, body = h.do(http.MethodGet, "/editions/last", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 0, body["id"], 0)

	resp, body = h.do(http.MethodGet, "/me/balances/total", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 100, body["balance"], 0)

	resp, body = h.do(http.MethodGet, "/supply/years/2021", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 100, body["supply"], 0)
}

func TestTransfersAndRetirement(t *testing.T) {
	h := newHarness(t)
	h.seed()

	resp, body := h.do(http.MethodPost, "/transfers/edition", owner, map[string]any{
		"to": buyer.String(), "edition_id": 0, "amount": 30,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, buyer.String(), body["to"])

	resp, body = h.do(http.MethodGet, "/me/balances/editions/0", buyer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 30, body["balance"], 0)

	resp, _ = h.do(http.MethodPost, "/transfers/year", owner, map[string]any{
		"to": buyer.String(), "year": 2021, "amount": 500,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, body = h.do(http.MethodPost, "/retirements", buyer, map[string]any{"edition_id": 0, "amount": 10})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.InDelta(t, 10, body["amount"], 0)

	resp, body = h.do(http.MethodGet, "/reports/last", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, buyer.String(), body["beneficiary"])

	resp, body = h.do(http.MethodGet, "/supply/editions/0", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 90, body["supply"], 0)
	assert.InDelta(t, 10, body["retired"], 0)
}

func TestErrorMapping(t *testing.T) {
	h := newHarness(t)
	h.seed()

	tests := []struct {
		name   string
		method string
		path   string
		as     types.AccountID
		body   any
		want   int
	}{
		{"unknown edition", http.MethodGet, "/editions/9", "", nil, http.StatusNotFound},
		{"no report yet", http.MethodGet, "/reports/last", "", nil, http.StatusNotFound},
		{"malformed edition id", http.MethodGet, "/editions/abc", "", nil, http.StatusBadRequest},
		{"non governor admits", http.MethodPost, "/custodians", owner, map[string]string{"account": buyer.String()}, http.StatusForbidden},
		{"duplicate custodian", http.MethodPost, "/custodians", governor, map[string]string{"account": registrar.String()}, http.StatusConflict},
		{"bad account", http.MethodPost, "/custodians", governor, map[string]string{"account": "0x12"}, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/retirements", owner, map[string]any{"edition": 0}, http.StatusBadRequest},
		{"zero transfer", http.MethodPost, "/transfers/edition", owner, map[string]any{"to": buyer.String(), "edition_id": 0, "amount": 0}, http.StatusUnprocessableEntity},
		{"approve missing request", http.MethodPost, "/mints/VCS-404/approve", governor, nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := h.do(tt.method, tt.path, tt.as, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestRevokeCustodian(t *testing.T) {
	h := newHarness(t)
	h.seed()

	resp, _ := h.do(http.MethodDelete, "/custodians/"+registrar.String(), governor, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = h.do(http.MethodDelete, "/custodians/"+registrar.String(), governor, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
