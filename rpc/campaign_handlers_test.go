package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"giftnet/crypto"
	"giftnet/ledger"
	"giftnet/native/campaign"
	"giftnet/storage"
)

type allowAllVerifier struct{}

func (allowAllVerifier) IsVerified([20]byte, int64) bool { return true }

type fixedBeacon struct{}

func (fixedBeacon) Seed() ([32]byte, error) {
	var seed [32]byte
	seed[0] = 0x42
	return seed, nil
}

type rpcHarness struct {
	server *Server
	ledger *ledger.Ledger
	owner  [20]byte
	router http.Handler
}

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func bech32Of(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.GiftPrefix, addr[:]).String()
}

func newHarness(t *testing.T) *rpcHarness {
	t.Helper()
	db := storage.NewMemDB()
	owner := testAddr(0x01)
	led := ledger.New(db, testAddr(0xEE))
	require.NoError(t, led.Mint("GIFT", owner, big.NewInt(1_000_000)))

	engine := campaign.NewEngine(
		campaign.NewStoreState(db),
		led,
		allowAllVerifier{},
		campaign.SingleOwner(owner),
		fixedBeacon{},
	)
	server := NewServer(engine, slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil)))
	server.authToken = "test-token"
	return &rpcHarness{server: server, ledger: led, owner: owner, router: server.Router()}
}

func (h *rpcHarness) call(t *testing.T, method string, params interface{}, authorized bool) (*httptest.ResponseRecorder, RPCResponse) {
	t.Helper()
	body := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		body["params"] = []interface{}{params}
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if authorized {
		req.Header.Set("Authorization", "Bearer test-token")
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	var resp RPCResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func (h *rpcHarness) createCampaign(t *testing.T) uint64 {
	t.Helper()
	endsAt := time.Now().Add(time.Hour).Unix()
	rec, resp := h.call(t, "campaign_create", campaignCreateParams{
		Caller:         bech32Of(h.owner),
		Token:          "gift",
		InitialDeposit: "1000",
		EndsAt:         endsAt,
		RewardLower:    "1",
		RewardUpper:    "10",
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, resp.Error)

	result := resp.Result.(map[string]interface{})
	id, err := strconv.ParseUint(fmt.Sprint(result["campaignId"]), 10, 64)
	require.NoError(t, err)
	return id
}

func TestCampaignCreateRPC(t *testing.T) {
	h := newHarness(t)
	id := h.createCampaign(t)
	require.EqualValues(t, 1, id)

	rec, resp := h.call(t, "campaign_get", campaignIDParams{CampaignID: id}, false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]interface{})
	require.Equal(t, "GIFT", result["token"])
	require.Equal(t, "1000", result["availableFunds"])
}

func TestCampaignCreateRequiresAuth(t *testing.T) {
	h := newHarness(t)
	rec, resp := h.call(t, "campaign_create", campaignCreateParams{
		Caller:         bech32Of(h.owner),
		Token:          "GIFT",
		InitialDeposit: "1000",
		EndsAt:         time.Now().Add(time.Hour).Unix(),
		RewardLower:    "1",
		RewardUpper:    "10",
	}, false)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)
}

func TestCampaignCreateRejectsNonOwner(t *testing.T) {
	h := newHarness(t)
	rec, resp := h.call(t, "campaign_create", campaignCreateParams{
		Caller:         bech32Of(testAddr(0x09)),
		Token:          "GIFT",
		InitialDeposit: "1000",
		EndsAt:         time.Now().Add(time.Hour).Unix(),
		RewardLower:    "1",
		RewardUpper:    "10",
	}, true)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeCampaignForbidden, resp.Error.Code)
}

func TestCampaignGetUnknownID(t *testing.T) {
	h := newHarness(t)
	rec, resp := h.call(t, "campaign_get", campaignIDParams{CampaignID: 404}, false)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeCampaignNotFound, resp.Error.Code)
}

func TestCampaignFundRPC(t *testing.T) {
	h := newHarness(t)
	id := h.createCampaign(t)

	funder := testAddr(0x22)
	require.NoError(t, h.ledger.Mint("GIFT", funder, big.NewInt(500)))

	rec, resp := h.call(t, "campaign_fund", campaignFundParams{
		Caller:     bech32Of(funder),
		CampaignID: id,
		Amount:     "500",
	}, false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, resp.Error)

	_, resp = h.call(t, "campaign_get", campaignIDParams{CampaignID: id}, false)
	result := resp.Result.(map[string]interface{})
	require.Equal(t, "1500", result["availableFunds"])
}

func TestSponsorClaimRPCFlow(t *testing.T) {
	h := newHarness(t)
	id := h.createCampaign(t)
	sponsor := testAddr(0xA1)
	recipient := testAddr(0xB1)

	_, resp := h.call(t, "campaign_canSponsor", campaignSponsorParams{
		CampaignID: id,
		Sponsor:    bech32Of(sponsor),
		Recipient:  bech32Of(recipient),
	}, false)
	require.Nil(t, resp.Error)
	require.Equal(t, true, resp.Result.(map[string]interface{})["canSponsor"])

	rec, resp := h.call(t, "campaign_sponsor", campaignSponsorParams{
		CampaignID: id,
		Sponsor:    bech32Of(sponsor),
		Recipient:  bech32Of(recipient),
	}, false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, resp.Error)

	// A second edge from the same sponsor is a conflict.
	rec, resp = h.call(t, "campaign_sponsor", campaignSponsorParams{
		CampaignID: id,
		Sponsor:    bech32Of(sponsor),
		Recipient:  bech32Of(testAddr(0xC1)),
	}, false)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, codeCampaignConflict, resp.Error.Code)

	rec, resp = h.call(t, "campaign_claim", campaignCallerParams{
		Caller:     bech32Of(recipient),
		CampaignID: id,
	}, false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, resp.Error)
	reward, ok := new(big.Int).SetString(resp.Result.(map[string]interface{})["reward"].(string), 10)
	require.True(t, ok)
	require.True(t, reward.Cmp(big.NewInt(1)) >= 0 && reward.Cmp(big.NewInt(10)) < 0)

	bal, err := h.ledger.Balance("GIFT", recipient)
	require.NoError(t, err)
	require.Zero(t, bal.Cmp(reward))

	// Replayed claims surface the conflict class.
	rec, resp = h.call(t, "campaign_claim", campaignCallerParams{
		Caller:     bech32Of(recipient),
		CampaignID: id,
	}, false)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, codeCampaignConflict, resp.Error.Code)
}

func TestEndEarlyAndWithdrawRPC(t *testing.T) {
	h := newHarness(t)
	id := h.createCampaign(t)

	rec, resp := h.call(t, "campaign_endEarly", campaignCallerParams{
		Caller:     bech32Of(h.owner),
		CampaignID: id,
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, resp.Error)

	// Withdrawal still waits for the configured end time.
	rec, resp = h.call(t, "campaign_withdraw", campaignCallerParams{
		Caller:     bech32Of(h.owner),
		CampaignID: id,
	}, true)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, codeCampaignConflict, resp.Error.Code)
}

func TestUnknownMethod(t *testing.T) {
	h := newHarness(t)
	rec, resp := h.call(t, "campaign_unknown", nil, false)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestMalformedJSON(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp RPCResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, codeParseError, resp.Error.Code)
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestOpenMethodsAreRateLimited(t *testing.T) {
	h := newHarness(t)
	id := h.createCampaign(t)
	h.server.limiter = newRateLimiter(60, 2)

	_, resp := h.call(t, "campaign_get", campaignIDParams{CampaignID: id}, false)
	require.Nil(t, resp.Error)
	_, resp = h.call(t, "campaign_get", campaignIDParams{CampaignID: id}, false)
	require.Nil(t, resp.Error)

	rec, resp := h.call(t, "campaign_get", campaignIDParams{CampaignID: id}, false)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeRateLimited, resp.Error.Code)

	// Owner methods authenticate and bypass the per-caller throttle.
	rec, resp = h.call(t, "campaign_endEarly", campaignCallerParams{
		Caller:     bech32Of(h.owner),
		CampaignID: id,
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, resp.Error)
}

func TestReadMethodsAreCounted(t *testing.T) {
	h := newHarness(t)
	id := h.createCampaign(t)

	_, resp := h.call(t, "campaign_get", campaignIDParams{CampaignID: id}, false)
	require.Nil(t, resp.Error)
	_, resp = h.call(t, "campaign_canSponsor", campaignSponsorParams{
		CampaignID: id,
		Sponsor:    bech32Of(testAddr(0xA1)),
		Recipient:  bech32Of(testAddr(0xB1)),
	}, false)
	require.Nil(t, resp.Error)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `giftnet_campaign_operations_total{operation="campaign_get",outcome="success"}`)
	require.Contains(t, body, `giftnet_campaign_operations_total{operation="campaign_cansponsor",outcome="success"}`)
}
