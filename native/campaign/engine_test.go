package campaign

import (
	"bytes"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"giftnet/core/events"
	"giftnet/core/types"
)

const (
	testNow    = int64(1_700_000_000)
	testEndsAt = int64(1_700_100_000)
)

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

var testOwner = newTestAddress(0x01)

func ether(n int64) *big.Int {
	wei := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	return new(big.Int).Mul(big.NewInt(n), wei)
}

type mockState struct {
	counter   uint64
	campaigns map[uint64]*Campaign
	sponsorOf map[string][20]byte
	recipOf   map[string][20]byte
	statuses  map[string]ClaimStatus

	failSetSponsorship bool
	failClaimStatusSet bool
	failPutAt          int // fail the nth CampaignPut call when non-zero
	putCalls           int
}

func newMockState() *mockState {
	return &mockState{
		campaigns: make(map[uint64]*Campaign),
		sponsorOf: make(map[string][20]byte),
		recipOf:   make(map[string][20]byte),
		statuses:  make(map[string]ClaimStatus),
	}
}

func stateKey(id uint64, addr [20]byte) string {
	return fmt.Sprintf("%d/%x", id, addr)
}

func (m *mockState) CampaignCounter() (uint64, error)     { return m.counter, nil }
func (m *mockState) SetCampaignCounter(next uint64) error { m.counter = next; return nil }

func (m *mockState) CampaignPut(c *Campaign) error {
	m.putCalls++
	if m.failPutAt != 0 && m.putCalls == m.failPutAt {
		return fmt.Errorf("mock state: campaign write disabled")
	}
	m.campaigns[c.ID] = c.Clone()
	return nil
}

func (m *mockState) CampaignGet(id uint64) (*Campaign, bool, error) {
	c, ok := m.campaigns[id]
	if !ok {
		return nil, false, nil
	}
	return c.Clone(), true, nil
}

func (m *mockState) SponsorOf(id uint64, recipient [20]byte) ([20]byte, bool, error) {
	sponsor, ok := m.sponsorOf[stateKey(id, recipient)]
	return sponsor, ok, nil
}

func (m *mockState) RecipientOf(id uint64, sponsor [20]byte) ([20]byte, bool, error) {
	recipient, ok := m.recipOf[stateKey(id, sponsor)]
	return recipient, ok, nil
}

func (m *mockState) SetSponsorship(id uint64, sponsor, recipient [20]byte) error {
	if m.failSetSponsorship {
		return fmt.Errorf("mock state: sponsorship write disabled")
	}
	m.sponsorOf[stateKey(id, recipient)] = sponsor
	m.recipOf[stateKey(id, sponsor)] = recipient
	return nil
}

func (m *mockState) ClaimStatusGet(id uint64, addr [20]byte) (ClaimStatus, error) {
	return m.statuses[stateKey(id, addr)], nil
}

func (m *mockState) ClaimStatusSet(id uint64, addr [20]byte, status ClaimStatus) error {
	if m.failClaimStatusSet {
		return fmt.Errorf("mock state: claim status write disabled")
	}
	m.statuses[stateKey(id, addr)] = status
	return nil
}

type mockLedger struct {
	balances map[string]map[[20]byte]*big.Int
	vault    [20]byte
	failPull bool
	failPush bool
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		balances: make(map[string]map[[20]byte]*big.Int),
		vault:    newTestAddress(0xEE),
	}
}

func (l *mockLedger) setBalance(token string, addr [20]byte, amount *big.Int) {
	if _, ok := l.balances[token]; !ok {
		l.balances[token] = make(map[[20]byte]*big.Int)
	}
	l.balances[token][addr] = new(big.Int).Set(amount)
}

func (l *mockLedger) balance(token string, addr [20]byte) *big.Int {
	if sub, ok := l.balances[token]; ok {
		if bal, ok := sub[addr]; ok {
			return new(big.Int).Set(bal)
		}
	}
	return big.NewInt(0)
}

func (l *mockLedger) transfer(token string, from, to [20]byte, amount *big.Int) error {
	fromBal := l.balance(token, from)
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("mock ledger: insufficient balance")
	}
	l.setBalance(token, from, new(big.Int).Sub(fromBal, amount))
	l.setBalance(token, to, new(big.Int).Add(l.balance(token, to), amount))
	return nil
}

func (l *mockLedger) Pull(token string, from [20]byte, amount *big.Int) error {
	if l.failPull {
		return fmt.Errorf("mock ledger: pull disabled")
	}
	return l.transfer(token, from, l.vault, amount)
}

func (l *mockLedger) Push(token string, to [20]byte, amount *big.Int) error {
	if l.failPush {
		return fmt.Errorf("mock ledger: push disabled")
	}
	return l.transfer(token, l.vault, to, amount)
}

type staticVerifier struct {
	verified map[[20]byte]bool
}

func newStaticVerifier(addrs ...[20]byte) *staticVerifier {
	v := &staticVerifier{verified: make(map[[20]byte]bool)}
	for _, addr := range addrs {
		v.verified[addr] = true
	}
	return v
}

func (v *staticVerifier) IsVerified(addr [20]byte, _ int64) bool {
	return v.verified[addr]
}

type fixedBeacon [32]byte

func (b fixedBeacon) Seed() ([32]byte, error) { return [32]byte(b), nil }

type capturingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (e *capturingEmitter) Emit(evt events.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
}

func (e *capturingEmitter) typesEvents() []*types.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*types.Event, 0, len(e.events))
	for _, evt := range e.events {
		if payload, ok := evt.(interface{ Event() *types.Event }); ok {
			out = append(out, payload.Event())
		}
	}
	return out
}

type testEnv struct {
	engine   *Engine
	state    *mockState
	ledger   *mockLedger
	verifier *staticVerifier
	emitter  *capturingEmitter
}

func newTestEnv(verified ...[20]byte) *testEnv {
	state := newMockState()
	ledger := newMockLedger()
	verifier := newStaticVerifier(verified...)
	emitter := &capturingEmitter{}
	engine := NewEngine(state, ledger, verifier, SingleOwner(testOwner), fixedBeacon{0x42})
	engine.SetNowFunc(func() int64 { return testNow })
	engine.SetEmitter(emitter)
	return &testEnv{engine: engine, state: state, ledger: ledger, verifier: verifier, emitter: emitter}
}

// createFunded creates a campaign with the given bounds after seeding the
// owner balance, failing the test on any error.
func (env *testEnv) createFunded(t *testing.T, deposit *big.Int, lower, upper, bonusThreshold, bonusAmount *big.Int) uint64 {
	t.Helper()
	env.ledger.setBalance("GIFT", testOwner, new(big.Int).Add(deposit, ether(1_000)))
	id, err := env.engine.CreateCampaign(testOwner, "GIFT", deposit, testEndsAt, lower, upper, bonusThreshold, bonusAmount)
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	return id
}

func TestNewEngineDefaults(t *testing.T) {
	env := newTestEnv()
	if env.engine.now() == 0 {
		t.Fatalf("expected a working time source")
	}
	if _, err := env.engine.GetCampaign(1); err != ErrCampaignNotFound {
		t.Fatalf("expected ErrCampaignNotFound, got %v", err)
	}
}

func TestCampaignLocksAreStripedAndStable(t *testing.T) {
	env := newTestEnv()
	if env.engine.lockCampaign(1) != env.engine.lockCampaign(1) {
		t.Fatalf("same id must map to the same lock")
	}
	if env.engine.lockCampaign(1) != env.engine.lockCampaign(1+campaignLockStripes) {
		t.Fatalf("congruent ids must share a stripe")
	}
	// Probing ids that do not exist allocates nothing and stays well-defined.
	for id := uint64(1); id <= 10*campaignLockStripes; id++ {
		if _, err := env.engine.GetCampaign(id); err != ErrCampaignNotFound {
			t.Fatalf("campaign %d: expected ErrCampaignNotFound, got %v", id, err)
		}
	}
}
