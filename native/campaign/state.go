package campaign

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"giftnet/storage"
)

// StoreState persists engine state through a storage.Database. All records
// are keyed by campaign id so campaigns never interfere with each other. The
// engine's per-campaign locking provides the required serialization; the
// store itself performs no coordination.
type StoreState struct {
	db storage.Database
}

// NewStoreState wraps the provided database in an engine state backend.
func NewStoreState(db storage.Database) *StoreState {
	return &StoreState{db: db}
}

var counterKey = []byte("campaign/meta/counter")

func campaignKey(id uint64) []byte {
	key := make([]byte, 0, len("campaign/record/")+8)
	key = append(key, []byte("campaign/record/")...)
	return binary.BigEndian.AppendUint64(key, id)
}

func sponsorOfKey(id uint64, recipient [20]byte) []byte {
	key := make([]byte, 0, len("campaign/sponsor-of/")+28)
	key = append(key, []byte("campaign/sponsor-of/")...)
	key = binary.BigEndian.AppendUint64(key, id)
	return append(key, recipient[:]...)
}

func recipientOfKey(id uint64, sponsor [20]byte) []byte {
	key := make([]byte, 0, len("campaign/recipient-of/")+28)
	key = append(key, []byte("campaign/recipient-of/")...)
	key = binary.BigEndian.AppendUint64(key, id)
	return append(key, sponsor[:]...)
}

func claimStatusKey(id uint64, addr [20]byte) []byte {
	key := make([]byte, 0, len("campaign/claim/")+28)
	key = append(key, []byte("campaign/claim/")...)
	key = binary.BigEndian.AppendUint64(key, id)
	return append(key, addr[:]...)
}

// CampaignCounter returns the highest assigned campaign id, zero when no
// campaign exists yet.
func (s *StoreState) CampaignCounter() (uint64, error) {
	ok, err := s.db.Has(counterKey)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	raw, err := s.db.Get(counterKey)
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("campaign state: malformed counter record")
	}
	return binary.BigEndian.Uint64(raw), nil
}

// SetCampaignCounter stores the highest assigned campaign id.
func (s *StoreState) SetCampaignCounter(next uint64) error {
	raw := binary.BigEndian.AppendUint64(nil, next)
	return s.db.Put(counterKey, raw)
}

// CampaignPut persists the campaign record.
func (s *StoreState) CampaignPut(c *Campaign) error {
	sanitized, err := SanitizeCampaign(c)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(sanitized)
	if err != nil {
		return err
	}
	return s.db.Put(campaignKey(sanitized.ID), raw)
}

// CampaignGet loads the campaign record for the given id.
func (s *StoreState) CampaignGet(id uint64) (*Campaign, bool, error) {
	key := campaignKey(id)
	ok, err := s.db.Has(key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	raw, err := s.db.Get(key)
	if err != nil {
		return nil, false, err
	}
	c := new(Campaign)
	if err := json.Unmarshal(raw, c); err != nil {
		return nil, false, fmt.Errorf("campaign state: decode record %d: %w", id, err)
	}
	return c, true, nil
}

// SponsorOf returns the sponsor recorded for the recipient, if any.
func (s *StoreState) SponsorOf(id uint64, recipient [20]byte) ([20]byte, bool, error) {
	return s.addressAt(sponsorOfKey(id, recipient))
}

// RecipientOf returns the recipient the sponsor vouched for, if any.
func (s *StoreState) RecipientOf(id uint64, sponsor [20]byte) ([20]byte, bool, error) {
	return s.addressAt(recipientOfKey(id, sponsor))
}

func (s *StoreState) addressAt(key []byte) ([20]byte, bool, error) {
	ok, err := s.db.Has(key)
	if err != nil {
		return [20]byte{}, false, err
	}
	if !ok {
		return [20]byte{}, false, nil
	}
	raw, err := s.db.Get(key)
	if err != nil {
		return [20]byte{}, false, err
	}
	if len(raw) != 20 {
		return [20]byte{}, false, fmt.Errorf("campaign state: malformed address record")
	}
	var addr [20]byte
	copy(addr[:], raw)
	return addr, true, nil
}

// SetSponsorship records both directions of the sponsor->recipient edge.
func (s *StoreState) SetSponsorship(id uint64, sponsor, recipient [20]byte) error {
	if err := s.db.Put(sponsorOfKey(id, recipient), sponsor[:]); err != nil {
		return err
	}
	return s.db.Put(recipientOfKey(id, sponsor), recipient[:])
}

// ClaimStatusGet returns the stored claim status, NotSponsored when no record
// exists.
func (s *StoreState) ClaimStatusGet(id uint64, addr [20]byte) (ClaimStatus, error) {
	key := claimStatusKey(id, addr)
	ok, err := s.db.Has(key)
	if err != nil {
		return ClaimStatusNotSponsored, err
	}
	if !ok {
		return ClaimStatusNotSponsored, nil
	}
	raw, err := s.db.Get(key)
	if err != nil {
		return ClaimStatusNotSponsored, err
	}
	if len(raw) != 1 || !ClaimStatus(raw[0]).Valid() {
		return ClaimStatusNotSponsored, fmt.Errorf("campaign state: malformed claim status record")
	}
	return ClaimStatus(raw[0]), nil
}

// ClaimStatusSet stores the claim status for the address.
func (s *StoreState) ClaimStatusSet(id uint64, addr [20]byte, status ClaimStatus) error {
	if !status.Valid() {
		return fmt.Errorf("campaign state: invalid claim status %d", status)
	}
	return s.db.Put(claimStatusKey(id, addr), []byte{byte(status)})
}
