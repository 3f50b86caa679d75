package campaign

import "errors"

var (
	ErrInvalidConfig     = errors.New("campaign: invalid configuration")
	ErrCampaignNotFound  = errors.New("campaign: not found")
	ErrCampaignEnded     = errors.New("campaign: ended")
	ErrCampaignActive    = errors.New("campaign: still active")
	ErrAlreadySponsor    = errors.New("campaign: sponsor already sponsored a recipient")
	ErrAlreadyRecipient  = errors.New("campaign: recipient already sponsored")
	ErrSelfSponsor       = errors.New("campaign: cannot sponsor self")
	ErrZeroAddress       = errors.New("campaign: zero address")
	ErrNotVerified       = errors.New("campaign: identity not verified")
	ErrNotSponsored      = errors.New("campaign: caller was never sponsored")
	ErrAlreadyClaimed    = errors.New("campaign: reward already claimed")
	ErrInsufficientFunds = errors.New("campaign: insufficient campaign funds")
	ErrUnauthorized      = errors.New("campaign: unauthorized")
)
