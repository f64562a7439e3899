package treasury

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"mintvault/core/events"
	"mintvault/core/types"
	nativecommon "mintvault/native/common"
)

const moduleName = "treasury"

// DefaultTimeout is how long a request must age before anyone may execute it
// without full board approval. The timeout is the liveness escape hatch
// against a stalled or colluding-minority board.
const DefaultTimeout = 7 * 24 * time.Hour

var errNilState = errors.New("treasury engine: state not configured")

type governanceState interface {
	TreasuryAddress() [20]byte
	BalanceOf(addr [20]byte) (*big.Int, error)
	Transfer(from, to [20]byte, amount *big.Int) error
	WithdrawalNextID() (uint64, error)
	WithdrawalPut(*WithdrawalRequest) error
	WithdrawalGet(id uint64) (*WithdrawalRequest, bool, error)
}

// Engine runs the M-of-N withdrawal approval state machine over a fixed
// board. Unanimous approval executes immediately; otherwise the request
// becomes executable by anyone once the timeout elapses. Any single member
// may block a request permanently, which is a deliberate circuit breaker.
type Engine struct {
	state    governanceState
	emitter  events.Emitter
	pauses   nativecommon.PauseView
	board    [][20]byte
	timeout  time.Duration
	nowFn    func() int64
	inFlight bool
}

// NewEngine constructs a governance engine with the default timeout and a
// no-op emitter. The board must be configured before use.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		timeout: DefaultTimeout,
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state governanceState) { e.state = state }

// SetBoard fixes the authorizer set. Membership is established once at
// genesis; duplicates and null addresses are dropped.
func (e *Engine) SetBoard(members [][20]byte) {
	seen := make(map[[20]byte]struct{}, len(members))
	board := make([][20]byte, 0, len(members))
	for _, member := range members {
		if member == ([20]byte{}) {
			continue
		}
		if _, dup := seen[member]; dup {
			continue
		}
		seen[member] = struct{}{}
		board = append(board, member)
	}
	e.board = board
}

// Board returns a copy of the authorizer set.
func (e *Engine) Board() [][20]byte {
	out := make([][20]byte, len(e.board))
	copy(out, e.board)
	return out
}

// SetTimeout overrides the execution timeout. Non-positive values restore the
// default; intended for dev networks only.
func (e *Engine) SetTimeout(d time.Duration) {
	if d <= 0 {
		e.timeout = DefaultTimeout
		return
	}
	e.timeout = d
}

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
	e.emitter.Emit(treasuryEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) isBoardMember(addr [20]byte) bool {
	for _, member := range e.board {
		if member == addr {
			return true
		}
	}
	return false
}

func (e *Engine) enter() (func(), error) {
	if e.inFlight {
		return nil, ErrReentrantCall
	}
	e.inFlight = true
	return func() { e.inFlight = false }, nil
}

func (e *Engine) load(id uint64) (*WithdrawalRequest, error) {
	request, ok, err := e.state.WithdrawalGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || request == nil {
		return nil, fmt.Errorf("%w: %d", ErrRequestNotFound, id)
	}
	return request, nil
}

// Request opens a new withdrawal proposal. Board members only; the amount
// must be positive and covered by the current treasury balance. The
// requester does not implicitly approve their own request.
func (e *Engine) Request(caller [20]byte, amount *big.Int, recipient [20]byte) (*WithdrawalRequest, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	release, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer release()
	if len(e.board) == 0 {
		return nil, ErrEmptyBoard
	}
	if !e.isBoardMember(caller) {
		return nil, ErrNotBoardMember
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if recipient == ([20]byte{}) {
		return nil, ErrNullRecipient
	}
	balance, err := e.state.BalanceOf(e.state.TreasuryAddress())
	if err != nil {
		return nil, err
	}
	if balance.Cmp(amount) < 0 {
		return nil, fmt.Errorf("%w: requested %s, held %s", ErrInsufficientTreasury, amount, balance)
	}
	id, err := e.state.WithdrawalNextID()
	if err != nil {
		return nil, err
	}
	request := &WithdrawalRequest{
		ID:          id,
		Amount:      new(big.Int).Set(amount),
		Recipient:   recipient,
		RequestedAt: e.now(),
	}
	if err := e.state.WithdrawalPut(request); err != nil {
		return nil, err
	}
	e.emit(newRequestedEvent(request, caller))
	return request.Clone(), nil
}

// Approve records the caller's approval. When the approval set reaches the
// full board, the request executes immediately within the same call.
func (e *Engine) Approve(caller [20]byte, id uint64) (*WithdrawalRequest, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	release, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer release()
	if !e.isBoardMember(caller) {
		return nil, ErrNotBoardMember
	}
	request, err := e.load(id)
	if err != nil {
		return nil, err
	}
	if request.Executed {
		return nil, fmt.Errorf("%w: %d", ErrAlreadyExecuted, id)
	}
	if request.Blocked {
		return nil, fmt.Errorf("%w: %d", ErrAlreadyBlocked, id)
	}
	if request.HasApproved(caller) {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateApproval, id)
	}
	request.Approvals = append(request.Approvals, caller)
	if err := e.state.WithdrawalPut(request); err != nil {
		return nil, err
	}
	e.emit(newApprovedEvent(request, caller))
	if len(request.Approvals) >= len(e.board) {
		if err := e.execute(request); err != nil {
			return nil, err
		}
	}
	return request.Clone(), nil
}

// Block vetoes the request permanently. Any single board member may freeze a
// specific request this way.
func (e *Engine) Block(caller [20]byte, id uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	if !e.isBoardMember(caller) {
		return ErrNotBoardMember
	}
	request, err := e.load(id)
	if err != nil {
		return err
	}
	if request.Executed {
		return fmt.Errorf("%w: %d", ErrAlreadyExecuted, id)
	}
	if request.Blocked {
		return fmt.Errorf("%w: %d", ErrAlreadyBlocked, id)
	}
	request.Blocked = true
	if err := e.state.WithdrawalPut(request); err != nil {
		return err
	}
	e.emit(newBlockedEvent(request, caller))
	return nil
}

// Execute releases the funds once the timeout has elapsed. Callable by
// anyone; full-board approval reaches execution through Approve instead.
func (e *Engine) Execute(id uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	request, err := e.load(id)
	if err != nil {
		return err
	}
	if request.Executed {
		return fmt.Errorf("%w: %d", ErrAlreadyExecuted, id)
	}
	if request.Blocked {
		return fmt.Errorf("%w: %d", ErrAlreadyBlocked, id)
	}
	if e.now() < request.RequestedAt+int64(e.timeout/time.Second) {
		return fmt.Errorf("%w: %d", ErrTimeoutNotReached, id)
	}
	return e.execute(request)
}

// Get returns a copy of the stored request.
func (e *Engine) Get(id uint64) (*WithdrawalRequest, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	request, err := e.load(id)
	if err != nil {
		return nil, err
	}
	return request.Clone(), nil
}

func (e *Engine) execute(request *WithdrawalRequest) error {
	if err := e.state.Transfer(e.state.TreasuryAddress(), request.Recipient, request.Amount); err != nil {
		return err
	}
	request.Executed = true
	if err := e.state.WithdrawalPut(request); err != nil {
		return err
	}
	e.emit(newExecutedEvent(request))
	return nil
}
