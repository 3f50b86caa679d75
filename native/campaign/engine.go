package campaign

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"giftnet/core/events"
	"giftnet/core/types"
)

var (
	errNilState  = errors.New("campaign engine: state not configured")
	errNilLedger = errors.New("campaign engine: ledger not configured")
)

// State is the persistence surface the engine drives. The engine owns all
// transition rules; the state is a dumb record store keyed by campaign id so
// multiple campaigns never interfere.
type State interface {
	CampaignCounter() (uint64, error)
	SetCampaignCounter(next uint64) error
	CampaignPut(c *Campaign) error
	CampaignGet(id uint64) (*Campaign, bool, error)
	SponsorOf(id uint64, recipient [20]byte) ([20]byte, bool, error)
	RecipientOf(id uint64, sponsor [20]byte) ([20]byte, bool, error)
	SetSponsorship(id uint64, sponsor, recipient [20]byte) error
	ClaimStatusGet(id uint64, addr [20]byte) (ClaimStatus, error)
	ClaimStatusSet(id uint64, addr [20]byte, status ClaimStatus) error
}

// Ledger moves token value between participant accounts and the campaign
// escrow vault. Both operations are synchronous and fallible; a failure must
// abort the surrounding campaign operation with no partial state.
type Ledger interface {
	Pull(token string, from [20]byte, amount *big.Int) error
	Push(token string, to [20]byte, amount *big.Int) error
}

// Verifier answers whether an address holds a valid identity attestation at
// the given time. Verification itself is an external concern.
type Verifier interface {
	IsVerified(addr [20]byte, now int64) bool
}

// Authority gates the owner-only configuration operations.
type Authority interface {
	IsOwner(addr [20]byte) bool
}

// SingleOwner is the trivial Authority backed by one fixed owner address.
type SingleOwner [20]byte

func (o SingleOwner) IsOwner(addr [20]byte) bool { return [20]byte(o) == addr }

// Beacon supplies the unpredictable seed captured at campaign creation. The
// reward draw is only as unpredictable as the configured beacon.
type Beacon interface {
	Seed() ([32]byte, error)
}

// SystemBeacon draws seeds from the operating system entropy source.
type SystemBeacon struct{}

func (SystemBeacon) Seed() ([32]byte, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return [32]byte{}, fmt.Errorf("campaign: beacon read: %w", err)
	}
	return seed, nil
}

type campaignEvent struct {
	evt *types.Event
}

func (e campaignEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e campaignEvent) Event() *types.Event { return e.evt }

// campaignLockStripes fixes the size of the lock table. Distinct campaigns
// may share a stripe, which only coarsens serialization; queries for ids that
// do not exist never allocate anything.
const campaignLockStripes = 64

// Engine composes the campaign registry, the sponsorship tracker and the
// reward draw into the externally callable operations. All state-mutating
// calls against the same campaign id serialize on a per-campaign mutex, so
// preconditions are always evaluated against a consistent snapshot.
type Engine struct {
	state     State
	ledger    Ledger
	verifier  Verifier
	authority Authority
	beacon    Beacon
	emitter   events.Emitter
	nowFn     func() int64

	createMu sync.Mutex
	locks    [campaignLockStripes]sync.Mutex
}

// NewEngine creates a campaign engine with a no-op emitter and the wall clock
// as time source. Callers can override both via SetEmitter and SetNowFunc.
func NewEngine(state State, ledger Ledger, verifier Verifier, authority Authority, beacon Beacon) *Engine {
	return &Engine{
		state:     state,
		ledger:    ledger,
		verifier:  verifier,
		authority: authority,
		beacon:    beacon,
		emitter:   events.NoopEmitter{},
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(campaignEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// lockCampaign returns the mutex serializing operations on the given id.
func (e *Engine) lockCampaign(id uint64) *sync.Mutex {
	return &e.locks[id%campaignLockStripes]
}

func (e *Engine) loadCampaign(id uint64) (*Campaign, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	c, ok, err := e.state.CampaignGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCampaignNotFound
	}
	return c, nil
}

// GetCampaign returns a snapshot of the campaign record.
func (e *Engine) GetCampaign(id uint64) (*Campaign, error) {
	lock := e.lockCampaign(id)
	lock.Lock()
	defer lock.Unlock()
	c, err := e.loadCampaign(id)
	if err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

// ClaimStatusOf returns the recipient's claim status within a campaign.
func (e *Engine) ClaimStatusOf(id uint64, addr [20]byte) (ClaimStatus, error) {
	if e == nil || e.state == nil {
		return ClaimStatusNotSponsored, errNilState
	}
	lock := e.lockCampaign(id)
	lock.Lock()
	defer lock.Unlock()
	if _, err := e.loadCampaign(id); err != nil {
		return ClaimStatusNotSponsored, err
	}
	return e.state.ClaimStatusGet(id, addr)
}

// SponsorOf returns the sponsor recorded for the recipient, if any.
func (e *Engine) SponsorOf(id uint64, recipient [20]byte) ([20]byte, bool, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, false, errNilState
	}
	lock := e.lockCampaign(id)
	lock.Lock()
	defer lock.Unlock()
	if _, err := e.loadCampaign(id); err != nil {
		return [20]byte{}, false, err
	}
	return e.state.SponsorOf(id, recipient)
}
