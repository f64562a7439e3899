package phase

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"mintvault/core/events"
	"mintvault/core/types"
	nativecommon "mintvault/native/common"
	"mintvault/native/tiers"
)

const (
	roleSaleAdmin = "ROLE_SALE_ADMIN"
	moduleName    = "phase"
)

var errNilState = errors.New("phase engine: state not configured")

type ledgerState interface {
	HasRole(role string, addr []byte) bool
	PhaseCurrent() (*Phase, bool, error)
	PhasePut(*Phase) error
	PhaseNextID() (uint64, error)
	TierInfo(class tiers.ClassID) (tiers.Info, error)
}

// Ledger owns the append-only sequence of sale phases. Exactly one phase is
// current at a time; a new phase may only start once the current one is fully
// sold in every class.
type Ledger struct {
	state   ledgerState
	emitter events.Emitter
	pauses  nativecommon.PauseView
	nowFn   func() int64
}

// NewLedger constructs a phase ledger with a no-op emitter.
func NewLedger() *Ledger {
	return &Ledger{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

// SetPauses wires the host's pause switches.
func (l *Ledger) SetPauses(p nativecommon.PauseView) { l.pauses = p }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (l *Ledger) SetNowFunc(now func() int64) {
	if now == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	l.nowFn = now
}

func (l *Ledger) emit(event *types.Event) {
	if l == nil || l.emitter == nil || event == nil {
		return
	}
	l.emitter.Emit(phaseEvent{evt: event})
}

func (l *Ledger) now() int64 {
	if l == nil || l.nowFn == nil {
		return time.Now().Unix()
	}
	return l.nowFn()
}

func (l *Ledger) current() (*Phase, bool, error) {
	if l == nil || l.state == nil {
		return nil, false, errNilState
	}
	return l.state.PhaseCurrent()
}

// StartPhase opens a new pricing round. The caller must hold the sale admin
// role, the current phase (if any) must be exhausted, every price must
// strictly exceed its predecessor from phase two onward, and every cap must
// fit inside the remaining tier capacity.
func (l *Ledger) StartPhase(caller [20]byte, prices [tiers.ClassCount]*big.Int, caps [tiers.ClassCount]uint64) (*Phase, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(l.pauses, moduleName); err != nil {
		return nil, err
	}
	if !l.state.HasRole(roleSaleAdmin, caller[:]) {
		return nil, ErrUnauthorized
	}
	current, exists, err := l.state.PhaseCurrent()
	if err != nil {
		return nil, err
	}
	if exists && !current.Exhausted() {
		return nil, ErrPhaseNotExhausted
	}
	for i := range prices {
		if prices[i] == nil || prices[i].Sign() <= 0 {
			return nil, fmt.Errorf("%w: class %s", ErrPriceNotIncreasing, tiers.ClassID(i))
		}
		if exists && prices[i].Cmp(current.Prices[i]) <= 0 {
			return nil, fmt.Errorf("%w: class %s", ErrPriceNotIncreasing, tiers.ClassID(i))
		}
		info, err := l.state.TierInfo(tiers.ClassID(i))
		if err != nil {
			return nil, err
		}
		if caps[i] > info.Remaining() {
			return nil, fmt.Errorf("%w: class %s", ErrCapacityExceeded, tiers.ClassID(i))
		}
	}
	id, err := l.state.PhaseNextID()
	if err != nil {
		return nil, err
	}
	next := &Phase{ID: id, Caps: caps, CreatedAt: l.now()}
	for i := range prices {
		next.Prices[i] = new(big.Int).Set(prices[i])
	}
	sanitized, err := Sanitize(next)
	if err != nil {
		return nil, err
	}
	if err := l.state.PhasePut(sanitized); err != nil {
		return nil, err
	}
	l.emit(newStartedEvent(sanitized))
	return sanitized.Clone(), nil
}

// AdjustCap raises (or lowers, never below sold) the current phase's cap for
// one class. Admin-only emergency corrective; the price is untouched.
func (l *Ledger) AdjustCap(caller [20]byte, class tiers.ClassID, newCap uint64) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(l.pauses, moduleName); err != nil {
		return err
	}
	if !l.state.HasRole(roleSaleAdmin, caller[:]) {
		return ErrUnauthorized
	}
	if !class.Valid() {
		return ErrInvalidClass
	}
	current, exists, err := l.state.PhaseCurrent()
	if err != nil {
		return err
	}
	if !exists {
		return ErrNoActivePhase
	}
	if newCap < current.Sold[class] {
		return ErrCapBelowSold
	}
	info, err := l.state.TierInfo(class)
	if err != nil {
		return err
	}
	if newCap-current.Sold[class] > info.Remaining() {
		return fmt.Errorf("%w: class %s", ErrCapacityExceeded, class)
	}
	current.Caps[class] = newCap
	if err := l.state.PhasePut(current); err != nil {
		return err
	}
	l.emit(newCapAdjustedEvent(current, class))
	return nil
}

// RecordSale advances the sold counter for the class within the current
// phase. It is invoked exclusively by the settlement engine, which has
// already collected payment.
func (l *Ledger) RecordSale(class tiers.ClassID, quantity uint64) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if !class.Valid() {
		return ErrInvalidClass
	}
	current, exists, err := l.state.PhaseCurrent()
	if err != nil {
		return err
	}
	if !exists {
		return ErrNoActivePhase
	}
	if quantity == 0 || current.Available(class) < quantity {
		return ErrSupplyExhausted
	}
	current.Sold[class] += quantity
	return l.state.PhasePut(current)
}

// PriceOf returns the current phase price for the class.
func (l *Ledger) PriceOf(class tiers.ClassID) (*big.Int, error) {
	current, err := l.requireCurrent(class)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(current.Prices[class]), nil
}

// SoldOf returns units sold for the class within the current phase.
func (l *Ledger) SoldOf(class tiers.ClassID) (uint64, error) {
	current, err := l.requireCurrent(class)
	if err != nil {
		return 0, err
	}
	return current.Sold[class], nil
}

// CapOf returns the current phase allocation for the class.
func (l *Ledger) CapOf(class tiers.ClassID) (uint64, error) {
	current, err := l.requireCurrent(class)
	if err != nil {
		return 0, err
	}
	return current.Caps[class], nil
}

// AvailableOf returns the unsold allocation for the class.
func (l *Ledger) AvailableOf(class tiers.ClassID) (uint64, error) {
	current, err := l.requireCurrent(class)
	if err != nil {
		return 0, err
	}
	return current.Available(class), nil
}

// Current returns a copy of the active phase.
func (l *Ledger) Current() (*Phase, error) {
	current, exists, err := l.current()
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNoActivePhase
	}
	return current.Clone(), nil
}

func (l *Ledger) requireCurrent(class tiers.ClassID) (*Phase, error) {
	if !class.Valid() {
		return nil, ErrInvalidClass
	}
	current, exists, err := l.current()
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNoActivePhase
	}
	return current, nil
}
