package campaign

import (
	"fmt"
	"math/big"
)

// Claim draws the caller's reward and pays it out from the campaign escrow.
// Early-ended campaigns remain claimable; only natural expiry blocks a claim.
//
// Never-sponsored and already-claimed callers fail with distinct error kinds,
// and an underfunded claim leaves the caller's CanClaim status intact so the
// claim can be retried after a top-up. The status flips to AlreadyClaimed
// before the external payout and is rolled back, together with the escrow
// balance, if the push fails.
func (e *Engine) Claim(id uint64, caller [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.ledger == nil {
		return nil, errNilLedger
	}
	lock := e.lockCampaign(id)
	lock.Lock()
	defer lock.Unlock()
	c, err := e.loadCampaign(id)
	if err != nil {
		return nil, err
	}
	if e.now() >= c.EndsAt {
		return nil, ErrCampaignEnded
	}
	status, err := e.state.ClaimStatusGet(id, caller)
	if err != nil {
		return nil, err
	}
	switch status {
	case ClaimStatusCanClaim:
	case ClaimStatusAlreadyClaimed:
		return nil, ErrAlreadyClaimed
	default:
		return nil, ErrNotSponsored
	}
	sponsor, ok, err := e.state.SponsorOf(id, caller)
	if err != nil {
		return nil, err
	}
	if !ok {
		// CanClaim without a sponsorship edge means the state is
		// corrupt; refuse rather than pay out.
		return nil, fmt.Errorf("campaign: claim status without sponsorship record for campaign %d", id)
	}
	reward := computeReward(c, sponsor, caller)
	if c.AvailableFunds.Cmp(reward) < 0 {
		return nil, ErrInsufficientFunds
	}
	if err := e.state.ClaimStatusSet(id, caller, ClaimStatusAlreadyClaimed); err != nil {
		return nil, err
	}
	prior := new(big.Int).Set(c.AvailableFunds)
	c.AvailableFunds = new(big.Int).Sub(c.AvailableFunds, reward)
	if err := e.state.CampaignPut(c); err != nil {
		return nil, e.rollbackClaim(c, id, caller, prior, err)
	}
	if err := e.ledger.Push(c.Token, caller, reward); err != nil {
		return nil, e.rollbackClaim(c, id, caller, prior, fmt.Errorf("campaign: reward push failed: %w", err))
	}
	e.emit(NewClaimedEvent(c, sponsor, caller, reward))
	return reward, nil
}

// rollbackClaim restores the claim status and escrow balance after a failed
// payout so the operation stays all-or-nothing. Both restores are always
// attempted; the status restore in particular must not be skipped when the
// balance restore fails, or the caller would be stranded at AlreadyClaimed
// with no payout.
func (e *Engine) rollbackClaim(c *Campaign, id uint64, caller [20]byte, prior *big.Int, cause error) error {
	c.AvailableFunds = prior
	putErr := e.state.CampaignPut(c)
	statusErr := e.state.ClaimStatusSet(id, caller, ClaimStatusCanClaim)
	switch {
	case putErr != nil && statusErr != nil:
		return fmt.Errorf("campaign: %v (balance rollback also failed: %v; status rollback also failed: %w)", cause, putErr, statusErr)
	case putErr != nil:
		return fmt.Errorf("campaign: %v (balance rollback also failed: %w)", cause, putErr)
	case statusErr != nil:
		return fmt.Errorf("campaign: %v (status rollback also failed: %w)", cause, statusErr)
	}
	return cause
}
