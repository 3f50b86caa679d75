package campaign

import "fmt"

// sponsorPreflight evaluates every sponsorship precondition against a
// consistent snapshot. Sponsor and CanSponsor share it so the dry-run probe
// can never drift from the mutating call. Callers must hold the campaign
// lock.
func (e *Engine) sponsorPreflight(id uint64, sponsor, recipient [20]byte) error {
	if sponsor == recipient {
		return ErrSelfSponsor
	}
	if recipient == ([20]byte{}) {
		return ErrZeroAddress
	}
	c, err := e.loadCampaign(id)
	if err != nil {
		return err
	}
	now := e.now()
	if now >= c.EndsAt || c.EndedEarly {
		return ErrCampaignEnded
	}
	if e.verifier == nil || !e.verifier.IsVerified(recipient, now) {
		return ErrNotVerified
	}
	if !e.verifier.IsVerified(sponsor, now) {
		return ErrNotVerified
	}
	if _, ok, err := e.state.RecipientOf(id, sponsor); err != nil {
		return err
	} else if ok {
		return ErrAlreadySponsor
	}
	status, err := e.state.ClaimStatusGet(id, recipient)
	if err != nil {
		return err
	}
	if status != ClaimStatusNotSponsored {
		return ErrAlreadyRecipient
	}
	return nil
}

// Sponsor records the one-shot sponsor->recipient edge and grants the
// recipient claim eligibility. Each sponsor vouches for at most one recipient
// per campaign, and each recipient can be sponsored at most once, ever.
func (e *Engine) Sponsor(id uint64, sponsor, recipient [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	lock := e.lockCampaign(id)
	lock.Lock()
	defer lock.Unlock()
	if err := e.sponsorPreflight(id, sponsor, recipient); err != nil {
		return err
	}
	// Status first: a failed status write leaves no trace, and a failed edge
	// write rolls the status back, so the edge and CanClaim always land
	// together or not at all.
	if err := e.state.ClaimStatusSet(id, recipient, ClaimStatusCanClaim); err != nil {
		return err
	}
	if err := e.state.SetSponsorship(id, sponsor, recipient); err != nil {
		if statusErr := e.state.ClaimStatusSet(id, recipient, ClaimStatusNotSponsored); statusErr != nil {
			return fmt.Errorf("campaign: %v (status rollback also failed: %w)", err, statusErr)
		}
		return err
	}
	c, err := e.loadCampaign(id)
	if err != nil {
		return err
	}
	e.emit(NewSponsoredEvent(c, sponsor, recipient))
	return nil
}

// CanSponsor re-evaluates the sponsorship predicate without mutating state.
// It reports false rather than failing for any violated condition, including
// a missing campaign, making it safe as a UI probe.
func (e *Engine) CanSponsor(id uint64, sponsor, recipient [20]byte) bool {
	if e == nil || e.state == nil {
		return false
	}
	lock := e.lockCampaign(id)
	lock.Lock()
	defer lock.Unlock()
	return e.sponsorPreflight(id, sponsor, recipient) == nil
}
