package treasury

import (
	"encoding/hex"
	"strconv"

	"mintvault/core/types"
)

const (
	// EventTypeWithdrawalRequested marks a new withdrawal proposal.
	EventTypeWithdrawalRequested = "treasury.withdrawal_requested"
	// EventTypeWithdrawalApproved marks one member's approval.
	EventTypeWithdrawalApproved = "treasury.withdrawal_approved"
	// EventTypeWithdrawalBlocked marks a permanent veto.
	EventTypeWithdrawalBlocked = "treasury.withdrawal_blocked"
	// EventTypeWithdrawalExecuted marks the outbound funds release.
	EventTypeWithdrawalExecuted = "treasury.withdrawal_executed"
)

type treasuryEvent struct {
	evt *types.Event
}

func (t treasuryEvent) EventType() string {
	if t.evt == nil {
		return ""
	}
	return t.evt.Type
}

func (t treasuryEvent) Event() *types.Event { return t.evt }

func baseAttrs(r *WithdrawalRequest) map[string]string {
	attrs := make(map[string]string)
	if r == nil {
		return attrs
	}
	attrs["id"] = strconv.FormatUint(r.ID, 10)
	if r.Amount != nil {
		attrs["amount"] = r.Amount.String()
	}
	attrs["recipient"] = hex.EncodeToString(r.Recipient[:])
	attrs["approvals"] = strconv.Itoa(len(r.Approvals))
	return attrs
}

func newRequestedEvent(r *WithdrawalRequest, requester [20]byte) *types.Event {
	attrs := baseAttrs(r)
	attrs["requester"] = hex.EncodeToString(requester[:])
	if r != nil {
		attrs["requestedAt"] = strconv.FormatInt(r.RequestedAt, 10)
	}
	return &types.Event{Type: EventTypeWithdrawalRequested, Attributes: attrs}
}

func newApprovedEvent(r *WithdrawalRequest, member [20]byte) *types.Event {
	attrs := baseAttrs(r)
	attrs["member"] = hex.EncodeToString(member[:])
	return &types.Event{Type: EventTypeWithdrawalApproved, Attributes: attrs}
}

func newBlockedEvent(r *WithdrawalRequest, member [20]byte) *types.Event {
	attrs := baseAttrs(r)
	attrs["member"] = hex.EncodeToString(member[:])
	return &types.Event{Type: EventTypeWithdrawalBlocked, Attributes: attrs}
}

func newExecutedEvent(r *WithdrawalRequest) *types.Event {
	return &types.Event{Type: EventTypeWithdrawalExecuted, Attributes: baseAttrs(r)}
}
