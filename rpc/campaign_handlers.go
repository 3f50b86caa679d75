package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"giftnet/crypto"
	"giftnet/native/campaign"
	"giftnet/observability"
)

const (
	codeCampaignInvalidParams = -32031
	codeCampaignNotFound      = -32032
	codeCampaignForbidden     = -32033
	codeCampaignConflict      = -32034
	codeCampaignInternal      = -32035
)

type campaignCreateParams struct {
	Caller         string `json:"caller"`
	Token          string `json:"token"`
	InitialDeposit string `json:"initialDeposit"`
	EndsAt         int64  `json:"endsAt"`
	RewardLower    string `json:"rewardLower"`
	RewardUpper    string `json:"rewardUpper"`
	BonusThreshold string `json:"bonusThreshold,omitempty"`
	BonusAmount    string `json:"bonusAmount,omitempty"`
}

type campaignFundParams struct {
	Caller     string `json:"caller"`
	CampaignID uint64 `json:"campaignId"`
	Amount     string `json:"amount"`
}

type campaignCallerParams struct {
	Caller     string `json:"caller"`
	CampaignID uint64 `json:"campaignId"`
}

type campaignIDParams struct {
	CampaignID uint64 `json:"campaignId"`
}

type campaignSponsorParams struct {
	CampaignID uint64 `json:"campaignId"`
	Sponsor    string `json:"sponsor"`
	Recipient  string `json:"recipient"`
}

type campaignCreateResult struct {
	CampaignID uint64 `json:"campaignId"`
}

type campaignOKResult struct {
	OK bool `json:"ok"`
}

type campaignCanSponsorResult struct {
	CanSponsor bool `json:"canSponsor"`
}

type campaignClaimResult struct {
	Reward string `json:"reward"`
}

type campaignJSON struct {
	CampaignID     uint64 `json:"campaignId"`
	Token          string `json:"token"`
	AvailableFunds string `json:"availableFunds"`
	EndsAt         int64  `json:"endsAt"`
	EndedEarly     bool   `json:"endedEarly"`
	RewardLower    string `json:"rewardLower"`
	RewardUpper    string `json:"rewardUpper"`
	BonusThreshold string `json:"bonusThreshold,omitempty"`
	BonusAmount    string `json:"bonusAmount,omitempty"`
	CreatedAt      int64  `json:"createdAt"`
}

func decodeSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseBech32Address(addr string) ([20]byte, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return [20]byte{}, fmt.Errorf("address required")
	}
	decoded, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return [20]byte{}, err
	}
	var out [20]byte
	copy(out[:], decoded.Bytes())
	return out, nil
}

func parsePositiveBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount")
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func parseOptionalBigInt(value string) (*big.Int, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount")
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

func parseBound(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("reward bound required")
	}
	bound, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || bound.Sign() < 0 {
		return nil, fmt.Errorf("invalid reward bound")
	}
	return bound, nil
}

func campaignToJSON(c *campaign.Campaign) campaignJSON {
	out := campaignJSON{
		CampaignID:     c.ID,
		Token:          c.Token,
		AvailableFunds: c.AvailableFunds.String(),
		EndsAt:         c.EndsAt,
		EndedEarly:     c.EndedEarly,
		RewardLower:    c.RewardLower.String(),
		RewardUpper:    c.RewardUpper.String(),
		CreatedAt:      c.CreatedAt,
	}
	if c.HasBonus() {
		out.BonusThreshold = c.BonusThreshold.String()
		out.BonusAmount = c.BonusAmount.String()
	}
	return out
}

func (s *Server) record(method string, err error) {
	observability.CampaignMetrics().RecordOperation(method, err)
}

// writeCampaignError maps module errors onto JSON-RPC error codes.
func writeCampaignError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, campaign.ErrCampaignNotFound):
		writeError(w, http.StatusNotFound, id, codeCampaignNotFound, "not_found", err.Error())
	case errors.Is(err, campaign.ErrUnauthorized):
		writeError(w, http.StatusForbidden, id, codeCampaignForbidden, "forbidden", err.Error())
	case errors.Is(err, campaign.ErrInvalidConfig),
		errors.Is(err, campaign.ErrZeroAddress),
		errors.Is(err, campaign.ErrSelfSponsor):
		writeError(w, http.StatusBadRequest, id, codeCampaignInvalidParams, "invalid_params", err.Error())
	case errors.Is(err, campaign.ErrCampaignEnded),
		errors.Is(err, campaign.ErrCampaignActive),
		errors.Is(err, campaign.ErrAlreadySponsor),
		errors.Is(err, campaign.ErrAlreadyRecipient),
		errors.Is(err, campaign.ErrNotVerified),
		errors.Is(err, campaign.ErrNotSponsored),
		errors.Is(err, campaign.ErrAlreadyClaimed),
		errors.Is(err, campaign.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, id, codeCampaignConflict, "conflict", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeCampaignInternal, "internal_error", err.Error())
	}
}

func (s *Server) handleCampaignCreate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params campaignCreateParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCampaignInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCampaignInvalidParams, "invalid_params", err.Error())
		return
	}
	deposit, err := parsePositiveBigInt(params.InitialDeposit)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCampaignInvalidParams, "invalid_params", err.Error())
		return
	}
	lower, err := parseBound(params.RewardLower)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCampaignInvalidParams, "invalid_params", err.Error())
		return
	}
	upper, err := parseBound(params.RewardUpper)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCampaignInvalidParams, "invalid_params", err.Error())
		return
	}
	bonusThreshold, err := parseOptionalBigInt(params.BonusThreshold)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCampaignInvalidParams, "invalid_params", err.Error())
		return
	}
	bonusAmount, err := parseOptionalBigInt(params.BonusAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCampaignInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := s.engine.CreateCampaign(caller, params.Token, deposit, params.EndsAt, lower, upper, bonusThreshold, bonusAmount)
	s.record("campaign_create", err)
	if err != nil {
		writeCampaignError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, campaignCreateResult{CampaignID: id})
}

func (s *Server) handleCampaignFund(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params campaignFundParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCampaignInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCampaignInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCampaignInvalidParams, "invalid_params", err.Error())
		return
	}
	err = s.engine.FundCampaign(caller, params.CampaignID, amount)
	s.record("campaign_fund", err)
	if err != nil {
		writeCampaignError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, campaignOKResult{OK: true})
}

func (s *Server) handleCampaignWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params campaignCallerParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCampaignInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCampaignInvalidParams, "invalid_params", err.Error())
		return
	}
	err = s.engine.WithdrawUnclaimed(caller, params.CampaignID)
	s.record("campaign_withdraw", err)
	if err != nil {
		writeCampaignError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, campaignOKResult{OK: true})
}

func (s *Server) handleCampaignEndEarly(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params campaignCallerParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCampaignInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCampaignInvalidParams, "invalid_params", err.Error())
		return
	}
	err = s.engine.EndCampaignEarly(caller, params.CampaignID)
	s.record("campaign_endEarly", err)
	if err != nil {
		writeCampaignError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, campaignOKResult{OK: true})
}

func (s *Server) handleCampaignGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params campaignIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCampaignInvalidParams, "invalid_params", err.Error())
		return
	}
	c, err := s.engine.GetCampaign(params.CampaignID)
	s.record("campaign_get", err)
	if err != nil {
		writeCampaignError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, campaignToJSON(c))
}

func (s *Server) handleCampaignSponsor(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params campaignSponsorParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCampaignInvalidParams, "invalid_params", err.Error())
		return
	}
	sponsor, err := parseBech32Address(params.Sponsor)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCampaignInvalidParams, "invalid_params", err.Error())
		return
	}
	recipient, err := parseBech32Address(params.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCampaignInvalidParams, "invalid_params", err.Error())
		return
	}
	err = s.engine.Sponsor(params.CampaignID, sponsor, recipient)
	s.record("campaign_sponsor", err)
	if err != nil {
		writeCampaignError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, campaignOKResult{OK: true})
}

func (s *Server) handleCampaignCanSponsor(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params campaignSponsorParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCampaignInvalidParams, "invalid_params", err.Error())
		return
	}
	sponsor, err := parseBech32Address(params.Sponsor)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCampaignInvalidParams, "invalid_params", err.Error())
		return
	}
	recipient, err := parseBech32Address(params.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCampaignInvalidParams, "invalid_params", err.Error())
		return
	}
	ok := s.engine.CanSponsor(params.CampaignID, sponsor, recipient)
	s.record("campaign_canSponsor", nil)
	writeResult(w, req.ID, campaignCanSponsorResult{CanSponsor: ok})
}

func (s *Server) handleCampaignClaim(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params campaignCallerParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCampaignInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCampaignInvalidParams, "invalid_params", err.Error())
		return
	}
	reward, err := s.engine.Claim(params.CampaignID, caller)
	s.record("campaign_claim", err)
	if err != nil {
		writeCampaignError(w, req.ID, err)
		return
	}
	c, getErr := s.engine.GetCampaign(params.CampaignID)
	if getErr == nil {
		observability.CampaignMetrics().RecordReward(c.Token, reward)
	}
	writeResult(w, req.ID, campaignClaimResult{Reward: reward.String()})
}
