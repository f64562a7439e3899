package core

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"mintvault/core/events"
	"mintvault/core/state"
	"mintvault/core/types"
	"mintvault/native/codes"
	"mintvault/native/phase"
	"mintvault/native/sale"
	"mintvault/native/tiers"
	"mintvault/native/treasury"
	"mintvault/storage"
)

// maxEventLog bounds the in-memory event tail kept for queries. Older events
// are dropped; the log is an operational tail, not an audit store.
const maxEventLog = 4096

var (
	// ErrUnauthorized is returned when the caller lacks the required role.
	ErrUnauthorized = errors.New("caller is not authorized")
	// ErrGenesisApplied is returned when genesis bootstrap runs twice.
	ErrGenesisApplied = errors.New("genesis already applied")
)

var keyGenesisApplied = []byte("genesis/applied")

// Genesis describes the one-time bootstrap state of a fresh node: the sale
// admin, the fixed withdrawal board, the hard tier supply, and any pre-funded
// accounts.
type Genesis struct {
	Admin    [20]byte
	Board    [][20]byte
	Tiers    [tiers.ClassCount]tiers.Info
	Balances map[[20]byte]*big.Int
}

// Node is the central controller wiring the state manager and every engine
// together. All mutating calls serialize on a single mutex, so each operation
// observes and commits a consistent view.
type Node struct {
	db      storage.Database
	state   *state.Manager
	stateMu sync.Mutex

	saleEngine     *sale.Engine
	phaseLedger    *phase.Ledger
	codeRegistry   *codes.Registry
	treasuryEngine *treasury.Engine

	eventMu  sync.Mutex
	eventLog []types.Event
}

// NewNode constructs a node over the database and applies the genesis state
// on first start. Re-opening an existing database skips the bootstrap.
func NewNode(db storage.Database, genesis Genesis) (*Node, error) {
	n := &Node{
		db:    db,
		state: state.NewManager(db),
	}

	emitter := nodeEventEmitter{node: n}

	n.phaseLedger = phase.NewLedger()
	n.phaseLedger.SetState(n.state)
	n.phaseLedger.SetPauses(n.state)
	n.phaseLedger.SetEmitter(emitter)

	n.codeRegistry = codes.NewRegistry()
	n.codeRegistry.SetState(n.state)
	n.codeRegistry.SetPauses(n.state)
	n.codeRegistry.SetEmitter(emitter)

	n.saleEngine = sale.NewEngine()
	n.saleEngine.SetState(n.state)
	n.saleEngine.SetPhaseLedger(n.phaseLedger)
	n.saleEngine.SetCodeRegistry(n.codeRegistry)
	n.saleEngine.SetPauses(n.state)
	n.saleEngine.SetEmitter(emitter)

	n.treasuryEngine = treasury.NewEngine()
	n.treasuryEngine.SetState(n.state)
	n.treasuryEngine.SetBoard(genesis.Board)
	n.treasuryEngine.SetPauses(n.state)
	n.treasuryEngine.SetEmitter(emitter)

	if err := n.applyGenesis(genesis); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Node) applyGenesis(genesis Genesis) error {
	applied, err := n.db.Has(keyGenesisApplied)
	if err != nil {
		return err
	}
	if applied {
		return nil
	}
	if genesis.Admin != ([20]byte{}) {
		if err := n.state.GrantRole(state.RoleSaleAdmin, genesis.Admin); err != nil {
			return err
		}
	}
	for class, info := range genesis.Tiers {
		if info.Cap == 0 {
			continue
		}
		if err := n.state.SetTierInfo(tiers.ClassID(class), info); err != nil {
			return err
		}
	}
	for addr, amount := range genesis.Balances {
		if err := n.state.Credit(addr, amount); err != nil {
			return err
		}
	}
	return n.db.Put(keyGenesisApplied, []byte{1})
}

// SetTreasuryTimeout overrides the withdrawal execution timeout. Dev networks
// only; non-positive values restore the default.
func (n *Node) SetTreasuryTimeout(d time.Duration) {
	n.treasuryEngine.SetTimeout(d)
}

type nodeEventEmitter struct {
	node *Node
}

type eventWithPayload interface {
	Event() *types.Event
}

func (e nodeEventEmitter) Emit(evt events.Event) {
	if e.node == nil || evt == nil {
		return
	}
	payload, ok := evt.(eventWithPayload)
	if !ok {
		return
	}
	event := payload.Event()
	if event == nil {
		return
	}
	e.node.appendEvent(event)
}

func (n *Node) appendEvent(event *types.Event) {
	n.eventMu.Lock()
	defer n.eventMu.Unlock()
	n.eventLog = append(n.eventLog, *event)
	if overflow := len(n.eventLog) - maxEventLog; overflow > 0 {
		n.eventLog = append(n.eventLog[:0], n.eventLog[overflow:]...)
	}
}

// Events returns up to limit most recent events, newest last. A non-positive
// limit returns the whole retained tail.
func (n *Node) Events(limit int) []types.Event {
	n.eventMu.Lock()
	defer n.eventMu.Unlock()
	start := 0
	if limit > 0 && len(n.eventLog) > limit {
		start = len(n.eventLog) - limit
	}
	out := make([]types.Event, len(n.eventLog)-start)
	copy(out, n.eventLog[start:])
	return out
}

// --- sale ---

// Purchase settles a buy order for the buyer.
func (n *Node) Purchase(buyer [20]byte, class tiers.ClassID, quantity uint64, code string, payment sale.Payment) (*sale.Receipt, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.saleEngine.Purchase(buyer, class, quantity, code, payment)
}

// --- phase ledger ---

// StartPhase opens the next pricing round.
func (n *Node) StartPhase(caller [20]byte, prices [tiers.ClassCount]*big.Int, caps [tiers.ClassCount]uint64) (*phase.Phase, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.phaseLedger.StartPhase(caller, prices, caps)
}

// AdjustPhaseCap changes the current phase's allocation for one class.
func (n *Node) AdjustPhaseCap(caller [20]byte, class tiers.ClassID, newCap uint64) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.phaseLedger.AdjustCap(caller, class, newCap)
}

// CurrentPhase returns the active phase.
func (n *Node) CurrentPhase() (*phase.Phase, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.phaseLedger.Current()
}

// PhaseByID returns a historic phase.
func (n *Node) PhaseByID(id uint64) (*phase.Phase, bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.PhaseByID(id)
}

// PhaseCount returns how many phases have been started.
func (n *Node) PhaseCount() (uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.PhaseCount()
}

// --- discount codes ---

// CreateAmbassadorCode registers a revenue-split code.
func (n *Node) CreateAmbassadorCode(caller [20]byte, code string, owner, manager [20]byte, rate uint8) (*codes.AmbassadorCode, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.codeRegistry.CreateAmbassador(caller, code, owner, manager, rate)
}

// CreatePersonalCode registers a self-use discount code.
func (n *Node) CreatePersonalCode(caller [20]byte, code string, owner [20]byte, rate uint8) (*codes.PersonalCode, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.codeRegistry.CreatePersonal(caller, code, owner, rate)
}

// CodeInfo returns the stored record for a code string.
func (n *Node) CodeInfo(code string) (*codes.Record, bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.codeRegistry.Get(code)
}

// --- treasury governance ---

// TreasuryRequest opens a withdrawal proposal.
func (n *Node) TreasuryRequest(caller [20]byte, amount *big.Int, recipient [20]byte) (*treasury.WithdrawalRequest, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.treasuryEngine.Request(caller, amount, recipient)
}

// TreasuryApprove records one board member's approval.
func (n *Node) TreasuryApprove(caller [20]byte, id uint64) (*treasury.WithdrawalRequest, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.treasuryEngine.Approve(caller, id)
}

// TreasuryBlock vetoes a withdrawal request permanently.
func (n *Node) TreasuryBlock(caller [20]byte, id uint64) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.treasuryEngine.Block(caller, id)
}

// TreasuryExecute releases a timed-out request.
func (n *Node) TreasuryExecute(id uint64) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.treasuryEngine.Execute(id)
}

// TreasuryWithdrawal returns a stored withdrawal request.
func (n *Node) TreasuryWithdrawal(id uint64) (*treasury.WithdrawalRequest, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.treasuryEngine.Get(id)
}

// TreasuryWithdrawalCount returns how many withdrawal requests exist.
func (n *Node) TreasuryWithdrawalCount() (uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.WithdrawalCount()
}

// TreasuryBoard returns the fixed authorizer set.
func (n *Node) TreasuryBoard() [][20]byte {
	return n.treasuryEngine.Board()
}

// TreasuryAddress returns the module-owned treasury account.
func (n *Node) TreasuryAddress() [20]byte {
	return n.state.TreasuryAddress()
}

// TreasuryBalance returns the current treasury balance.
func (n *Node) TreasuryBalance() (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.BalanceOf(n.state.TreasuryAddress())
}

// --- queries and admin ---

// BalanceOf returns the currency balance of the address.
func (n *Node) BalanceOf(addr [20]byte) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.BalanceOf(addr)
}

// Holdings returns the per-class inventory owned by the address.
func (n *Node) Holdings(addr [20]byte) ([tiers.ClassCount]uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.Holdings(addr)
}

// TierInfo returns the supply description of one class.
func (n *Node) TierInfo(class tiers.ClassID) (tiers.Info, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.TierInfo(class)
}

// Tiers returns the supply description of every class.
func (n *Node) Tiers() ([tiers.ClassCount]tiers.Info, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	var out [tiers.ClassCount]tiers.Info
	for class := range out {
		info, err := n.state.TierInfo(tiers.ClassID(class))
		if err != nil {
			return out, err
		}
		out[class] = info
	}
	return out, nil
}

// Credit adds funds to an account. Sale-admin only; intended for dev
// networks and operational top-ups, not for the sale flow.
func (n *Node) Credit(caller, addr [20]byte, amount *big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if !n.state.HasRole(state.RoleSaleAdmin, caller[:]) {
		return ErrUnauthorized
	}
	return n.state.Credit(addr, amount)
}

// SetPaused toggles a module pause switch. Sale-admin only.
func (n *Node) SetPaused(caller [20]byte, module string, paused bool) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if !n.state.HasRole(state.RoleSaleAdmin, caller[:]) {
		return ErrUnauthorized
	}
	return n.state.SetPaused(module, paused)
}

// IsPaused reports whether the module is paused.
func (n *Node) IsPaused(module string) bool {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.IsPaused(module)
}
