package codes

import (
	"errors"
	"fmt"
	"math/big"

	"mintvault/core/events"
	"mintvault/core/types"
	nativecommon "mintvault/native/common"
	"mintvault/native/tiers"
)

const (
	roleSaleAdmin = "ROLE_SALE_ADMIN"
	moduleName    = "codes"
)

var errNilState = errors.New("codes registry: state not configured")

type registryState interface {
	HasRole(role string, addr []byte) bool
	CodeGet(code string) (*Record, bool, error)
	CodePut(*Record) error
}

// Registry manages the single string-keyed namespace shared by ambassador and
// personal codes. A code string maps to at most one kind, so lookups are
// always unambiguous.
type Registry struct {
	state   registryState
	emitter events.Emitter
	pauses  nativecommon.PauseView
}

// NewRegistry creates a registry with a no-op emitter.
func NewRegistry() *Registry {
	return &Registry{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the registry.
func (r *Registry) SetState(state registryState) { r.state = state }

// SetPauses wires the host's pause switches.
func (r *Registry) SetPauses(p nativecommon.PauseView) { r.pauses = p }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

func (r *Registry) emit(event *types.Event) {
	if r == nil || r.emitter == nil || event == nil {
		return
	}
	r.emitter.Emit(codeEvent{evt: event})
}

func (r *Registry) reserve(code string) (string, error) {
	if r == nil || r.state == nil {
		return "", errNilState
	}
	normalized := Normalize(code)
	if normalized == "" {
		return "", ErrEmptyCode
	}
	if _, exists, err := r.state.CodeGet(normalized); err != nil {
		return "", err
	} else if exists {
		return "", fmt.Errorf("%w: %s", ErrCodeExists, normalized)
	}
	return normalized, nil
}

// CreateAmbassador registers a revenue-split code. Admin-only; the owner must
// be non-null, the rate at most MaxAmbassadorRate, and the code string free
// in the shared namespace. Rate, owner and manager are immutable afterwards.
func (r *Registry) CreateAmbassador(caller [20]byte, code string, owner, manager [20]byte, rate uint8) (*AmbassadorCode, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return nil, err
	}
	if !r.state.HasRole(roleSaleAdmin, caller[:]) {
		return nil, ErrUnauthorized
	}
	if owner == ([20]byte{}) {
		return nil, ErrNullOwner
	}
	if rate > MaxAmbassadorRate {
		return nil, fmt.Errorf("%w: %d > %d", ErrRateTooHigh, rate, MaxAmbassadorRate)
	}
	normalized, err := r.reserve(code)
	if err != nil {
		return nil, err
	}
	amb := &AmbassadorCode{
		Code:                   normalized,
		Owner:                  owner,
		Manager:                manager,
		DiscountRate:           rate,
		TotalEarned:            big.NewInt(0),
		TotalRaisedForTreasury: big.NewInt(0),
	}
	record := &Record{Kind: KindAmbassador, Ambassador: amb}
	if err := r.state.CodePut(record); err != nil {
		return nil, err
	}
	r.emit(newAmbassadorCreatedEvent(amb))
	return record.Clone().Ambassador, nil
}

// CreatePersonal registers a self-use discount code under the same namespace
// rules, with the higher MaxPersonalRate ceiling.
func (r *Registry) CreatePersonal(caller [20]byte, code string, owner [20]byte, rate uint8) (*PersonalCode, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return nil, err
	}
	if !r.state.HasRole(roleSaleAdmin, caller[:]) {
		return nil, ErrUnauthorized
	}
	if owner == ([20]byte{}) {
		return nil, ErrNullOwner
	}
	if rate > MaxPersonalRate {
		return nil, fmt.Errorf("%w: %d > %d", ErrRateTooHigh, rate, MaxPersonalRate)
	}
	normalized, err := r.reserve(code)
	if err != nil {
		return nil, err
	}
	personal := &PersonalCode{Code: normalized, Owner: owner, DiscountRate: rate}
	record := &Record{Kind: KindPersonal, Personal: personal}
	if err := r.state.CodePut(record); err != nil {
		return nil, err
	}
	r.emit(newPersonalCreatedEvent(personal))
	return record.Clone().Personal, nil
}

// Resolve maps a code string to the discount it activates for the caller. An
// empty or unknown code, or a personal code owned by someone else, resolves
// to KindNone.
func (r *Registry) Resolve(code string, caller [20]byte) (Resolution, error) {
	if r == nil || r.state == nil {
		return Resolution{}, errNilState
	}
	normalized := Normalize(code)
	if normalized == "" {
		return Resolution{}, nil
	}
	record, exists, err := r.state.CodeGet(normalized)
	if err != nil {
		return Resolution{}, err
	}
	if !exists || record == nil {
		return Resolution{}, nil
	}
	switch record.Kind {
	case KindAmbassador:
		if record.Ambassador == nil {
			return Resolution{}, nil
		}
		return Resolution{
			Kind:         KindAmbassador,
			Code:         record.Ambassador.Code,
			Owner:        record.Ambassador.Owner,
			Manager:      record.Ambassador.Manager,
			DiscountRate: record.Ambassador.DiscountRate,
		}, nil
	case KindPersonal:
		if record.Personal == nil || record.Personal.Owner != caller {
			return Resolution{}, nil
		}
		return Resolution{
			Kind:         KindPersonal,
			Code:         record.Personal.Code,
			Owner:        record.Personal.Owner,
			DiscountRate: record.Personal.DiscountRate,
		}, nil
	default:
		return Resolution{}, nil
	}
}

// Get returns a copy of the stored record for the code, if registered.
func (r *Registry) Get(code string) (*Record, bool, error) {
	if r == nil || r.state == nil {
		return nil, false, errNilState
	}
	record, exists, err := r.state.CodeGet(Normalize(code))
	if err != nil || !exists {
		return nil, false, err
	}
	return record.Clone(), true, nil
}

// RecordSettlement folds one settled purchase into the code's statistics.
// Earned and raised amounts only apply to ambassador codes; the settlement
// engine is the sole caller.
func (r *Registry) RecordSettlement(code string, class tiers.ClassID, quantity uint64, earned, raised *big.Int) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	normalized := Normalize(code)
	record, exists, err := r.state.CodeGet(normalized)
	if err != nil {
		return err
	}
	if !exists || record == nil {
		return fmt.Errorf("%w: %s", ErrCodeNotFound, normalized)
	}
	switch record.Kind {
	case KindAmbassador:
		if record.Ambassador == nil {
			return fmt.Errorf("%w: %s", ErrCodeNotFound, normalized)
		}
		record.Ambassador.MintedByClass[class] += quantity
		record.Ambassador.TotalEarned = new(big.Int).Add(cloneBigInt(record.Ambassador.TotalEarned), cloneBigInt(earned))
		record.Ambassador.TotalRaisedForTreasury = new(big.Int).Add(cloneBigInt(record.Ambassador.TotalRaisedForTreasury), cloneBigInt(raised))
	case KindPersonal:
		if record.Personal == nil {
			return fmt.Errorf("%w: %s", ErrCodeNotFound, normalized)
		}
		record.Personal.MintedByClass[class] += quantity
	default:
		return fmt.Errorf("%w: %s", ErrCodeNotFound, normalized)
	}
	return r.state.CodePut(record)
}
