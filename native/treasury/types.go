package treasury

import "math/big"

// WithdrawalRequest tracks one proposed release of treasury funds through the
// board approval state machine. Approvals only ever grow; Executed and
// Blocked are mutually exclusive terminal states.
type WithdrawalRequest struct {
	ID          uint64
	Amount      *big.Int
	Recipient   [20]byte
	RequestedAt int64
	Approvals   [][20]byte
	Executed    bool
	Blocked     bool
}

// Clone returns a deep copy of the request.
func (w *WithdrawalRequest) Clone() *WithdrawalRequest {
	if w == nil {
		return nil
	}
	clone := *w
	clone.Amount = big.NewInt(0)
	if w.Amount != nil {
		clone.Amount = new(big.Int).Set(w.Amount)
	}
	clone.Approvals = make([][20]byte, len(w.Approvals))
	copy(clone.Approvals, w.Approvals)
	return &clone
}

// HasApproved reports whether the member already approved this request.
func (w *WithdrawalRequest) HasApproved(member [20]byte) bool {
	if w == nil {
		return false
	}
	for _, approved := range w.Approvals {
		if approved == member {
			return true
		}
	}
	return false
}

// Terminal reports whether the request can no longer change state.
func (w *WithdrawalRequest) Terminal() bool {
	return w != nil && (w.Executed || w.Blocked)
}
