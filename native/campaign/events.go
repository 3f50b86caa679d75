package campaign

import (
	"math/big"
	"strconv"

	"giftnet/core/types"
	"giftnet/crypto"
)

const (
	EventTypeCampaignCreated    = "campaign.created"
	EventTypeCampaignFunded     = "campaign.funded"
	EventTypeCampaignEndedEarly = "campaign.ended_early"
	EventTypeCampaignWithdrawn  = "campaign.withdrawn"
	EventTypeSponsored          = "campaign.sponsored"
	EventTypeClaimed            = "campaign.claimed"
)

// NewCreatedEvent returns the canonical payload emitted when a campaign is
// created.
func NewCreatedEvent(c *Campaign) *types.Event {
	evt := newCampaignEvent(EventTypeCampaignCreated, c)
	if c == nil {
		return evt
	}
	evt.Attributes["endsAt"] = strconv.FormatInt(c.EndsAt, 10)
	evt.Attributes["rewardLower"] = amountString(c.RewardLower)
	evt.Attributes["rewardUpper"] = amountString(c.RewardUpper)
	if c.HasBonus() {
		evt.Attributes["bonusThreshold"] = amountString(c.BonusThreshold)
		evt.Attributes["bonusAmount"] = amountString(c.BonusAmount)
	}
	return evt
}

// NewFundedEvent returns the payload emitted when a campaign is topped up.
func NewFundedEvent(c *Campaign, funder [20]byte, amount *big.Int) *types.Event {
	evt := newCampaignEvent(EventTypeCampaignFunded, c)
	evt.Attributes["funder"] = addressString(funder)
	evt.Attributes["amount"] = amountString(amount)
	return evt
}

// NewEndedEarlyEvent returns the payload emitted when the owner terminates a
// campaign before its natural expiry.
func NewEndedEarlyEvent(c *Campaign) *types.Event {
	return newCampaignEvent(EventTypeCampaignEndedEarly, c)
}

// NewWithdrawnEvent returns the payload emitted when the owner recovers the
// unclaimed balance of an expired campaign.
func NewWithdrawnEvent(c *Campaign, owner [20]byte, amount *big.Int) *types.Event {
	evt := newCampaignEvent(EventTypeCampaignWithdrawn, c)
	evt.Attributes["owner"] = addressString(owner)
	evt.Attributes["amount"] = amountString(amount)
	return evt
}

// NewSponsoredEvent returns the payload emitted when a sponsor vouches for a
// recipient.
func NewSponsoredEvent(c *Campaign, sponsor, recipient [20]byte) *types.Event {
	evt := newCampaignEvent(EventTypeSponsored, c)
	evt.Attributes["sponsor"] = addressString(sponsor)
	evt.Attributes["recipient"] = addressString(recipient)
	return evt
}

// NewClaimedEvent returns the payload emitted when a recipient draws their
// reward.
func NewClaimedEvent(c *Campaign, sponsor, recipient [20]byte, reward *big.Int) *types.Event {
	evt := newCampaignEvent(EventTypeClaimed, c)
	evt.Attributes["sponsor"] = addressString(sponsor)
	evt.Attributes["recipient"] = addressString(recipient)
	evt.Attributes["reward"] = amountString(reward)
	return evt
}

func newCampaignEvent(eventType string, c *Campaign) *types.Event {
	attrs := make(map[string]string)
	if c == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["campaignId"] = strconv.FormatUint(c.ID, 10)
	attrs["token"] = c.Token
	attrs["availableFunds"] = amountString(c.AvailableFunds)
	return &types.Event{Type: eventType, Attributes: attrs}
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func addressString(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.GiftPrefix, addr[:]).String()
}
