package campaign

import (
	"fmt"
	"math/big"
)

// CreateCampaign validates the campaign configuration, pulls the initial
// deposit into escrow and persists the record under the next monotonically
// assigned id. Owner only. The randomness seed is captured once, here, from
// the configured beacon and stays fixed for the campaign's lifetime.
//
// bonusThreshold and bonusAmount are optional; pass nil for both to create a
// campaign without a bonus tier.
func (e *Engine) CreateCampaign(caller [20]byte, token string, initialDeposit *big.Int, endsAt int64, lower, upper, bonusThreshold, bonusAmount *big.Int) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if e.ledger == nil {
		return 0, errNilLedger
	}
	if e.authority == nil || !e.authority.IsOwner(caller) {
		return 0, ErrUnauthorized
	}
	normalized, err := NormalizeToken(token)
	if err != nil {
		return 0, err
	}
	if initialDeposit == nil || initialDeposit.Sign() <= 0 {
		return 0, fmt.Errorf("%w: initial deposit must be positive", ErrInvalidConfig)
	}
	if !fitsWord(initialDeposit) {
		return 0, fmt.Errorf("%w: initial deposit out of range", ErrInvalidConfig)
	}
	now := e.now()
	if endsAt <= now {
		return 0, fmt.Errorf("%w: end timestamp must be in the future", ErrInvalidConfig)
	}
	if lower == nil || upper == nil || !fitsWord(lower) || !fitsWord(upper) {
		return 0, fmt.Errorf("%w: reward bounds out of range", ErrInvalidConfig)
	}
	// Equal bounds configure a fixed-reward campaign; inverted bounds are
	// rejected.
	if lower.Cmp(upper) > 0 {
		return 0, fmt.Errorf("%w: inverted reward bounds", ErrInvalidConfig)
	}
	if (bonusThreshold == nil) != (bonusAmount == nil) {
		return 0, fmt.Errorf("%w: bonus threshold and amount must be set together", ErrInvalidConfig)
	}
	if bonusThreshold != nil {
		if !fitsWord(bonusThreshold) || !fitsWord(bonusAmount) {
			return 0, fmt.Errorf("%w: bonus tier out of range", ErrInvalidConfig)
		}
		// A threshold equal to the lower bound configures an
		// always-bonus campaign; thresholds at or above the upper
		// bound could never trigger and are rejected.
		if bonusThreshold.Cmp(lower) < 0 || bonusThreshold.Cmp(upper) >= 0 {
			return 0, fmt.Errorf("%w: bonus threshold must lie within the reward bounds", ErrInvalidConfig)
		}
		if bonusAmount.Cmp(upper) <= 0 {
			return 0, fmt.Errorf("%w: bonus amount must exceed the upper reward bound", ErrInvalidConfig)
		}
	}
	if e.beacon == nil {
		return 0, fmt.Errorf("campaign engine: beacon not configured")
	}
	seed, err := e.beacon.Seed()
	if err != nil {
		return 0, err
	}
	if err := e.ledger.Pull(normalized, caller, initialDeposit); err != nil {
		return 0, fmt.Errorf("campaign: deposit pull failed: %w", err)
	}

	e.createMu.Lock()
	defer e.createMu.Unlock()
	counter, err := e.state.CampaignCounter()
	if err != nil {
		return 0, e.refundOnFailure(normalized, caller, initialDeposit, err)
	}
	id := counter + 1
	c := &Campaign{
		ID:             id,
		Token:          normalized,
		AvailableFunds: new(big.Int).Set(initialDeposit),
		EndsAt:         endsAt,
		RewardLower:    new(big.Int).Set(lower),
		RewardUpper:    new(big.Int).Set(upper),
		Seed:           seed,
		CreatedAt:      now,
	}
	if bonusThreshold != nil {
		c.BonusThreshold = new(big.Int).Set(bonusThreshold)
		c.BonusAmount = new(big.Int).Set(bonusAmount)
	}
	if err := e.state.SetCampaignCounter(id); err != nil {
		return 0, e.refundOnFailure(normalized, caller, initialDeposit, err)
	}
	if err := e.state.CampaignPut(c); err != nil {
		return 0, e.refundOnFailure(normalized, caller, initialDeposit, err)
	}
	e.emit(NewCreatedEvent(c))
	return id, nil
}

// refundOnFailure returns the pulled deposit when a creation step fails after
// the ledger transfer already happened, keeping the whole operation atomic.
func (e *Engine) refundOnFailure(token string, to [20]byte, amount *big.Int, cause error) error {
	if pushErr := e.ledger.Push(token, to, amount); pushErr != nil {
		return fmt.Errorf("campaign: %v (refund also failed: %w)", cause, pushErr)
	}
	return cause
}

// FundCampaign tops up the campaign escrow. Deliberately open to any caller,
// not just the owner, so third parties can sponsor the pool. Funding stops at
// natural expiry; an early-ended campaign can still be topped up to cover
// outstanding claims.
func (e *Engine) FundCampaign(caller [20]byte, id uint64, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: funding amount must be positive", ErrInvalidConfig)
	}
	if !fitsWord(amount) {
		return fmt.Errorf("%w: funding amount out of range", ErrInvalidConfig)
	}
	lock := e.lockCampaign(id)
	lock.Lock()
	defer lock.Unlock()
	c, err := e.loadCampaign(id)
	if err != nil {
		return err
	}
	if e.now() >= c.EndsAt {
		return ErrCampaignEnded
	}
	if err := e.ledger.Pull(c.Token, caller, amount); err != nil {
		return fmt.Errorf("campaign: funding pull failed: %w", err)
	}
	c.AvailableFunds = new(big.Int).Add(c.AvailableFunds, amount)
	if err := e.state.CampaignPut(c); err != nil {
		return e.refundOnFailure(c.Token, caller, amount, err)
	}
	e.emit(NewFundedEvent(c, caller, amount))
	return nil
}

// WithdrawUnclaimed recovers the remaining escrow balance of a naturally
// expired campaign. Owner only. A campaign ending exactly now is still active
// for this check.
func (e *Engine) WithdrawUnclaimed(caller [20]byte, id uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	if e.authority == nil || !e.authority.IsOwner(caller) {
		return ErrUnauthorized
	}
	lock := e.lockCampaign(id)
	lock.Lock()
	defer lock.Unlock()
	c, err := e.loadCampaign(id)
	if err != nil {
		return err
	}
	if e.now() <= c.EndsAt {
		return ErrCampaignActive
	}
	amount := new(big.Int).Set(c.AvailableFunds)
	c.AvailableFunds = big.NewInt(0)
	if err := e.state.CampaignPut(c); err != nil {
		return err
	}
	if amount.Sign() > 0 {
		if err := e.ledger.Push(c.Token, caller, amount); err != nil {
			// Roll back the zeroed balance so the whole operation is
			// all-or-nothing.
			c.AvailableFunds = amount
			if putErr := e.state.CampaignPut(c); putErr != nil {
				return fmt.Errorf("campaign: withdraw push failed: %v (rollback also failed: %w)", err, putErr)
			}
			return fmt.Errorf("campaign: withdraw push failed: %w", err)
		}
	}
	e.emit(NewWithdrawnEvent(c, caller, amount))
	return nil
}

// EndCampaignEarly stops new sponsorships before the natural expiry. Owner
// only, one-way. Recipients that were already sponsored stay claimable until
// the campaign's natural end.
func (e *Engine) EndCampaignEarly(caller [20]byte, id uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.authority == nil || !e.authority.IsOwner(caller) {
		return ErrUnauthorized
	}
	lock := e.lockCampaign(id)
	lock.Lock()
	defer lock.Unlock()
	c, err := e.loadCampaign(id)
	if err != nil {
		return err
	}
	if c.EndedEarly {
		return ErrCampaignEnded
	}
	if e.now() >= c.EndsAt {
		return ErrCampaignEnded
	}
	c.EndedEarly = true
	if err := e.state.CampaignPut(c); err != nil {
		return err
	}
	e.emit(NewEndedEarlyEvent(c))
	return nil
}
