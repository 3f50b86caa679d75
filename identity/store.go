// Package identity provides a local attestation store satisfying the campaign
// engine's Verifier interface. Verification itself (proof checking, KYC, or
// any other scheme) happens upstream; this store only records which addresses
// were attested and until when.
package identity

import (
	"encoding/binary"
	"errors"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketVerified = []byte("verified")

	// ErrExpiryInPast is returned when an attestation would already be
	// expired at write time.
	ErrExpiryInPast = errors.New("identity: attestation expiry in the past")
)

// Store persists attestation expiries keyed by address.
type Store struct {
	db *bolt.DB
}

// NewStore initialises the BoltDB-backed attestation store.
func NewStore(path string, options *bolt.Options) (*Store, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketVerified)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying Bolt database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Attest records that the address is verified until the given unix timestamp.
// Re-attesting extends (or shortens) the stored expiry.
func (s *Store) Attest(addr [20]byte, until int64) error {
	if until <= time.Now().Unix() {
		return ErrExpiryInPast
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		raw := binary.BigEndian.AppendUint64(nil, uint64(until))
		return tx.Bucket(bucketVerified).Put(addr[:], raw)
	})
}

// Revoke removes the attestation for the address, if any.
func (s *Store) Revoke(addr [20]byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketVerified).Delete(addr[:])
	})
}

// IsVerified reports whether the address holds an unexpired attestation at
// the given time. It satisfies the campaign engine's Verifier interface.
func (s *Store) IsVerified(addr [20]byte, now int64) bool {
	verified := false
	_ = s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketVerified).Get(addr[:])
		if len(raw) != 8 {
			return nil
		}
		verified = int64(binary.BigEndian.Uint64(raw)) > now
		return nil
	})
	return verified
}
