package sale

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"mintvault/core/events"
	"mintvault/core/types"
	nativecommon "mintvault/native/common"
	"mintvault/native/codes"
	"mintvault/native/phase"
	"mintvault/native/tiers"
)

const moduleName = "sale"

var (
	errNilState   = errors.New("sale engine: state not configured")
	errNilLedgers = errors.New("sale engine: phase ledger or code registry not configured")
)

type settlementState interface {
	TreasuryAddress() [20]byte
	Transfer(from, to [20]byte, amount *big.Int) error
	AuthorizedTransfer(auth *TransferAuthorization, now int64) error
	MintInventory(to [20]byte, class tiers.ClassID, quantity uint64) error
}

// Engine settles purchases: it prices against the phase ledger, applies at
// most one discount code, collects the net payment, mints inventory, and
// disburses revenue shares. Every public call is all-or-nothing up to the
// collection step; failures after collection are fatal to the whole call.
type Engine struct {
	state    settlementState
	phases   *phase.Ledger
	codes    *codes.Registry
	emitter  events.Emitter
	pauses   nativecommon.PauseView
	nowFn    func() int64
	inFlight bool
}

// NewEngine constructs a settlement engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the currency/inventory capabilities.
func (e *Engine) SetState(state settlementState) { e.state = state }

// SetPhaseLedger wires the phase ledger consulted for pricing and supply.
func (e *Engine) SetPhaseLedger(l *phase.Ledger) { e.phases = l }

// SetCodeRegistry wires the discount code registry.
func (e *Engine) SetCodeRegistry(r *codes.Registry) { e.codes = r }

// SetPauses wires the host's pause switches.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for deterministic tests.
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
	e.emitter.Emit(saleEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// Receipt summarises one settled purchase.
type Receipt struct {
	Buyer    [20]byte
	Class    tiers.ClassID
	Quantity uint64
	Code     string
	CodeKind codes.Kind
	Split    Split
}

// Purchase runs the full settlement for one buy order. The buyer pays net of
// any discount, inventory is minted to the buyer, and ambassador/manager
// shares are disbursed from the treasury within the same call.
func (e *Engine) Purchase(buyer [20]byte, class tiers.ClassID, quantity uint64, code string, payment Payment) (*Receipt, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.phases == nil || e.codes == nil {
		return nil, errNilLedgers
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if e.inFlight {
		return nil, ErrReentrantCall
	}
	e.inFlight = true
	defer func() { e.inFlight = false }()

	if quantity == 0 {
		return nil, ErrInvalidQuantity
	}
	if !class.Valid() {
		return nil, ErrInvalidClass
	}
	available, err := e.phases.AvailableOf(class)
	if err != nil {
		return nil, err
	}
	if available < quantity {
		return nil, fmt.Errorf("%w: class %s has %d available", ErrSupplyExhausted, class, available)
	}
	price, err := e.phases.PriceOf(class)
	if err != nil {
		return nil, err
	}
	gross := new(big.Int).Mul(price, new(big.Int).SetUint64(quantity))

	resolution, err := e.codes.Resolve(code, buyer)
	if err != nil {
		return nil, err
	}
	split, err := ComputeSplit(gross, resolution)
	if err != nil {
		return nil, err
	}

	treasury := e.state.TreasuryAddress()
	if err := e.collect(buyer, treasury, split.Net, payment); err != nil {
		return nil, err
	}

	// Collection succeeded. From here on any failure is fatal to the whole
	// call; the host discards the operation's effects as a unit.
	if err := e.phases.RecordSale(class, quantity); err != nil {
		return nil, err
	}
	if resolution.Kind != codes.KindNone {
		if err := e.codes.RecordSettlement(resolution.Code, class, quantity, split.AmbassadorShare, split.TreasuryShare); err != nil {
			return nil, err
		}
	}
	if err := e.state.MintInventory(buyer, class, quantity); err != nil {
		return nil, err
	}
	if split.AmbassadorShare.Sign() > 0 {
		if err := e.state.Transfer(treasury, resolution.Owner, split.AmbassadorShare); err != nil {
			return nil, err
		}
	}
	if split.ManagerShare.Sign() > 0 {
		if err := e.state.Transfer(treasury, resolution.Manager, split.ManagerShare); err != nil {
			return nil, err
		}
	}

	receipt := &Receipt{
		Buyer:    buyer,
		Class:    class,
		Quantity: quantity,
		Code:     resolution.Code,
		CodeKind: resolution.Kind,
		Split:    split,
	}
	e.emit(newPurchasedEvent(receipt))
	if split.AmbassadorShare.Sign() > 0 {
		e.emit(newRewardPaidEvent(resolution.Code, resolution.Owner, "ambassador", split.AmbassadorShare))
	}
	if split.ManagerShare.Sign() > 0 {
		e.emit(newRewardPaidEvent(resolution.Code, resolution.Manager, "manager", split.ManagerShare))
	}
	return receipt, nil
}

func (e *Engine) collect(buyer, treasury [20]byte, net *big.Int, payment Payment) error {
	if net.Sign() == 0 {
		return nil
	}
	switch payment.Mode {
	case PaymentDirect:
		return e.state.Transfer(buyer, treasury, net)
	case PaymentAuthorized:
		auth := payment.Authorization
		if auth == nil {
			return fmt.Errorf("%w: authorization missing", ErrPaymentInvalid)
		}
		if auth.From != buyer {
			return fmt.Errorf("%w: authorization signer is not the buyer", ErrPaymentInvalid)
		}
		if auth.To != treasury {
			return fmt.Errorf("%w: authorization destination is not the treasury", ErrPaymentInvalid)
		}
		if auth.Value == nil || auth.Value.Cmp(net) != 0 {
			return fmt.Errorf("%w: authorization value does not match net payment", ErrPaymentInvalid)
		}
		return e.state.AuthorizedTransfer(auth, e.now())
	default:
		return fmt.Errorf("%w: unknown payment mode %d", ErrPaymentInvalid, payment.Mode)
	}
}
