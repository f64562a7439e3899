package phase

import (
	"errors"
	"math/big"
	"testing"

	"mintvault/core/events"
	"mintvault/native/tiers"
)

type mockState struct {
	roles   map[string]map[[20]byte]bool
	current *Phase
	nextID  uint64
	info    [tiers.ClassCount]tiers.Info
}

func newMockState() *mockState {
	m := &mockState{roles: make(map[string]map[[20]byte]bool), nextID: 0}
	for i := range m.info {
		m.info[i] = tiers.Info{Cap: 10_000, RewardWeight: uint64(i + 1)}
	}
	return m
}

func (m *mockState) grantAdmin(addr [20]byte) {
	if m.roles["ROLE_SALE_ADMIN"] == nil {
		m.roles["ROLE_SALE_ADMIN"] = make(map[[20]byte]bool)
	}
	m.roles["ROLE_SALE_ADMIN"][addr] = true
}

func (m *mockState) HasRole(role string, addr []byte) bool {
	var key [20]byte
	copy(key[:], addr)
	return m.roles[role][key]
}

func (m *mockState) PhaseCurrent() (*Phase, bool, error) {
	if m.current == nil {
		return nil, false, nil
	}
	return m.current.Clone(), true, nil
}

func (m *mockState) PhasePut(p *Phase) error {
	sanitized, err := Sanitize(p)
	if err != nil {
		return err
	}
	m.current = sanitized.Clone()
	return nil
}

func (m *mockState) PhaseNextID() (uint64, error) {
	m.nextID++
	return m.nextID, nil
}

func (m *mockState) TierInfo(class tiers.ClassID) (tiers.Info, error) {
	if !class.Valid() {
		return tiers.Info{}, errors.New("invalid class")
	}
	return m.info[class], nil
}

type recordingEmitter struct {
	types []string
}

func (r *recordingEmitter) Emit(evt events.Event) {
	r.types = append(r.types, evt.EventType())
}

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func uniformPrices(v int64) [tiers.ClassCount]*big.Int {
	var prices [tiers.ClassCount]*big.Int
	for i := range prices {
		prices[i] = big.NewInt(v)
	}
	return prices
}

func uniformCaps(v uint64) [tiers.ClassCount]uint64 {
	var caps [tiers.ClassCount]uint64
	for i := range caps {
		caps[i] = v
	}
	return caps
}

func newTestLedger(t *testing.T, st *mockState) *Ledger {
	t.Helper()
	ledger := NewLedger()
	ledger.SetState(st)
	ledger.SetNowFunc(func() int64 { return 1_700_000_000 })
	return ledger
}

func TestStartPhaseRequiresAdmin(t *testing.T) {
	st := newMockState()
	ledger := newTestLedger(t, st)
	if _, err := ledger.StartPhase(testAddr(0x01), uniformPrices(70), uniformCaps(100)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestStartFirstPhase(t *testing.T) {
	st := newMockState()
	admin := testAddr(0x01)
	st.grantAdmin(admin)
	ledger := newTestLedger(t, st)
	emitter := &recordingEmitter{}
	ledger.SetEmitter(emitter)

	prices := uniformPrices(100)
	prices[tiers.ClassCommon] = big.NewInt(70)
	caps := uniformCaps(100)
	caps[tiers.ClassCommon] = 3200

	created, err := ledger.StartPhase(admin, prices, caps)
	if err != nil {
		t.Fatalf("start phase: %v", err)
	}
	if created.ID != 1 {
		t.Fatalf("expected phase id 1, got %d", created.ID)
	}
	price, err := ledger.PriceOf(tiers.ClassCommon)
	if err != nil {
		t.Fatalf("price of: %v", err)
	}
	if price.Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("expected common price 70, got %s", price)
	}
	available, err := ledger.AvailableOf(tiers.ClassCommon)
	if err != nil {
		t.Fatalf("available of: %v", err)
	}
	if available != 3200 {
		t.Fatalf("expected 3200 available, got %d", available)
	}
	if len(emitter.types) != 1 || emitter.types[0] != EventTypePhaseStarted {
		t.Fatalf("expected phase.started event, got %v", emitter.types)
	}
}

func TestStartPhaseCapBeyondTierCapacity(t *testing.T) {
	st := newMockState()
	admin := testAddr(0x01)
	st.grantAdmin(admin)
	st.info[tiers.ClassMythic] = tiers.Info{Cap: 50, Minted: 10}
	ledger := newTestLedger(t, st)

	caps := uniformCaps(10)
	caps[tiers.ClassMythic] = 41
	if _, err := ledger.StartPhase(admin, uniformPrices(100), caps); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestStartSecondPhaseWhileUnderSold(t *testing.T) {
	st := newMockState()
	admin := testAddr(0x01)
	st.grantAdmin(admin)
	ledger := newTestLedger(t, st)

	if _, err := ledger.StartPhase(admin, uniformPrices(100), uniformCaps(10)); err != nil {
		t.Fatalf("start phase 1: %v", err)
	}
	if err := ledger.RecordSale(tiers.ClassRare, 5); err != nil {
		t.Fatalf("record sale: %v", err)
	}
	if _, err := ledger.StartPhase(admin, uniformPrices(200), uniformCaps(10)); !errors.Is(err, ErrPhaseNotExhausted) {
		t.Fatalf("expected ErrPhaseNotExhausted, got %v", err)
	}
}

func sellOut(t *testing.T, ledger *Ledger, caps [tiers.ClassCount]uint64) {
	t.Helper()
	for i, cap := range caps {
		if cap == 0 {
			continue
		}
		if err := ledger.RecordSale(tiers.ClassID(i), cap); err != nil {
			t.Fatalf("sell out class %d: %v", i, err)
		}
	}
}

func TestStartSecondPhasePriceMustIncrease(t *testing.T) {
	st := newMockState()
	admin := testAddr(0x01)
	st.grantAdmin(admin)
	ledger := newTestLedger(t, st)

	caps := uniformCaps(10)
	if _, err := ledger.StartPhase(admin, uniformPrices(100), caps); err != nil {
		t.Fatalf("start phase 1: %v", err)
	}
	sellOut(t, ledger, caps)

	if _, err := ledger.StartPhase(admin, uniformPrices(100), caps); !errors.Is(err, ErrPriceNotIncreasing) {
		t.Fatalf("expected ErrPriceNotIncreasing, got %v", err)
	}
	next, err := ledger.StartPhase(admin, uniformPrices(101), caps)
	if err != nil {
		t.Fatalf("start phase 2: %v", err)
	}
	if next.ID != 2 {
		t.Fatalf("expected phase id 2, got %d", next.ID)
	}
	if next.Sold != ([tiers.ClassCount]uint64{}) {
		t.Fatalf("expected zeroed sold counters, got %v", next.Sold)
	}
}

func TestAdjustCap(t *testing.T) {
	st := newMockState()
	admin := testAddr(0x01)
	st.grantAdmin(admin)
	ledger := newTestLedger(t, st)

	if _, err := ledger.StartPhase(admin, uniformPrices(100), uniformCaps(50)); err != nil {
		t.Fatalf("start phase: %v", err)
	}
	if err := ledger.RecordSale(tiers.ClassEpic, 30); err != nil {
		t.Fatalf("record sale: %v", err)
	}

	if err := ledger.AdjustCap(testAddr(0x02), tiers.ClassEpic, 60); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := ledger.AdjustCap(admin, tiers.ClassEpic, 29); !errors.Is(err, ErrCapBelowSold) {
		t.Fatalf("expected ErrCapBelowSold, got %v", err)
	}
	st.info[tiers.ClassEpic] = tiers.Info{Cap: 100, Minted: 90}
	if err := ledger.AdjustCap(admin, tiers.ClassEpic, 41); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if err := ledger.AdjustCap(admin, tiers.ClassEpic, 40); err != nil {
		t.Fatalf("adjust cap: %v", err)
	}
	cap, err := ledger.CapOf(tiers.ClassEpic)
	if err != nil {
		t.Fatalf("cap of: %v", err)
	}
	if cap != 40 {
		t.Fatalf("expected cap 40, got %d", cap)
	}
}

func TestRecordSaleBounds(t *testing.T) {
	st := newMockState()
	admin := testAddr(0x01)
	st.grantAdmin(admin)
	ledger := newTestLedger(t, st)

	if err := ledger.RecordSale(tiers.ClassCommon, 1); !errors.Is(err, ErrNoActivePhase) {
		t.Fatalf("expected ErrNoActivePhase, got %v", err)
	}
	if _, err := ledger.StartPhase(admin, uniformPrices(100), uniformCaps(3)); err != nil {
		t.Fatalf("start phase: %v", err)
	}
	if err := ledger.RecordSale(tiers.ClassCommon, 0); !errors.Is(err, ErrSupplyExhausted) {
		t.Fatalf("expected ErrSupplyExhausted for zero quantity, got %v", err)
	}
	if err := ledger.RecordSale(tiers.ClassCommon, 4); !errors.Is(err, ErrSupplyExhausted) {
		t.Fatalf("expected ErrSupplyExhausted, got %v", err)
	}
	if err := ledger.RecordSale(tiers.ClassCommon, 3); err != nil {
		t.Fatalf("record sale: %v", err)
	}
	sold, err := ledger.SoldOf(tiers.ClassCommon)
	if err != nil {
		t.Fatalf("sold of: %v", err)
	}
	if sold != 3 {
		t.Fatalf("expected 3 sold, got %d", sold)
	}
}
