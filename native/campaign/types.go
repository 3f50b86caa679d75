package campaign

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// ClaimStatus tracks a recipient's progress through a campaign. Transitions
// are strictly forward: NotSponsored -> CanClaim -> AlreadyClaimed.
type ClaimStatus uint8

const (
	ClaimStatusNotSponsored ClaimStatus = iota
	ClaimStatusCanClaim
	ClaimStatusAlreadyClaimed
)

func (s ClaimStatus) Valid() bool {
	switch s {
	case ClaimStatusNotSponsored, ClaimStatusCanClaim, ClaimStatusAlreadyClaimed:
		return true
	default:
		return false
	}
}

func (s ClaimStatus) String() string {
	switch s {
	case ClaimStatusNotSponsored:
		return "not_sponsored"
	case ClaimStatusCanClaim:
		return "can_claim"
	case ClaimStatusAlreadyClaimed:
		return "already_claimed"
	default:
		return "unknown"
	}
}

// Campaign captures the configuration and escrow balance of a single referral
// campaign. Identifiers are assigned monotonically starting at 1 and are never
// reused. A campaign record is created once and mutated only by funding, early
// termination and unclaimed-fund withdrawal; it is never deleted.
type Campaign struct {
	ID             uint64   `json:"id"`
	Token          string   `json:"token"`
	AvailableFunds *big.Int `json:"availableFunds"`
	EndsAt         int64    `json:"endsAt"`
	EndedEarly     bool     `json:"endedEarly"`
	RewardLower    *big.Int `json:"rewardLower"`
	RewardUpper    *big.Int `json:"rewardUpper"`
	BonusThreshold *big.Int `json:"bonusThreshold,omitempty"`
	BonusAmount    *big.Int `json:"bonusAmount,omitempty"`
	Seed           [32]byte `json:"seed"`
	CreatedAt      int64    `json:"createdAt"`
}

// HasBonus reports whether the campaign carries the optional bonus tier.
func (c *Campaign) HasBonus() bool {
	return c != nil && c.BonusThreshold != nil && c.BonusAmount != nil
}

// Clone returns a deep copy of the campaign so callers can safely mutate the
// copy without affecting the stored instance.
func (c *Campaign) Clone() *Campaign {
	if c == nil {
		return nil
	}
	clone := *c
	clone.AvailableFunds = cloneBigInt(c.AvailableFunds)
	clone.RewardLower = cloneBigInt(c.RewardLower)
	clone.RewardUpper = cloneBigInt(c.RewardUpper)
	if c.BonusThreshold != nil {
		clone.BonusThreshold = new(big.Int).Set(c.BonusThreshold)
	}
	if c.BonusAmount != nil {
		clone.BonusAmount = new(big.Int).Set(c.BonusAmount)
	}
	return &clone
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// NormalizeToken validates a token symbol and returns its canonical uppercase
// form. Symbols are short alphanumeric tickers such as "GIFT" or "WLD".
func NormalizeToken(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if len(trimmed) < 2 || len(trimmed) > 8 {
		return "", fmt.Errorf("%w: token symbol %q", ErrInvalidConfig, symbol)
	}
	for _, r := range trimmed {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("%w: token symbol %q", ErrInvalidConfig, symbol)
		}
	}
	return trimmed, nil
}

// SanitizeCampaign validates and normalises the supplied campaign record,
// returning a cloned instance with canonical token casing and non-nil amount
// fields. The function does not mutate the original value.
func SanitizeCampaign(c *Campaign) (*Campaign, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil campaign", ErrInvalidConfig)
	}
	clone := c.Clone()
	token, err := NormalizeToken(clone.Token)
	if err != nil {
		return nil, err
	}
	clone.Token = token
	if clone.AvailableFunds.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative available funds", ErrInvalidConfig)
	}
	if clone.RewardLower.Sign() < 0 || clone.RewardUpper.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative reward bound", ErrInvalidConfig)
	}
	if clone.RewardLower.Cmp(clone.RewardUpper) > 0 {
		return nil, fmt.Errorf("%w: inverted reward bounds", ErrInvalidConfig)
	}
	if (clone.BonusThreshold == nil) != (clone.BonusAmount == nil) {
		return nil, fmt.Errorf("%w: partial bonus tier", ErrInvalidConfig)
	}
	if clone.HasBonus() {
		if clone.BonusThreshold.Cmp(clone.RewardLower) < 0 || clone.BonusThreshold.Cmp(clone.RewardUpper) >= 0 {
			return nil, fmt.Errorf("%w: bonus threshold outside reward bounds", ErrInvalidConfig)
		}
		if clone.BonusAmount.Cmp(clone.RewardUpper) <= 0 {
			return nil, fmt.Errorf("%w: bonus amount must exceed upper bound", ErrInvalidConfig)
		}
	}
	return clone, nil
}

// fitsWord reports whether the amount fits in a 256-bit word. Ledger amounts
// and reward bounds are constrained to this width so the reward draw can be
// reduced with fixed-width arithmetic.
func fitsWord(v *big.Int) bool {
	if v == nil || v.Sign() < 0 {
		return false
	}
	_, overflow := uint256.FromBig(v)
	return !overflow
}
