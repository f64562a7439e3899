package sale

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"mintvault/core/types"
)

const (
	// EventTypePurchased is emitted once per settled purchase.
	EventTypePurchased = "sale.purchased"
	// EventTypeRewardPaid is emitted for each revenue share disbursed.
	EventTypeRewardPaid = "sale.reward_paid"
)

type saleEvent struct {
	evt *types.Event
}

func (s saleEvent) EventType() string {
	if s.evt == nil {
		return ""
	}
	return s.evt.Type
}

func (s saleEvent) Event() *types.Event { return s.evt }

func newPurchasedEvent(r *Receipt) *types.Event {
	attrs := make(map[string]string)
	if r == nil {
		return &types.Event{Type: EventTypePurchased, Attributes: attrs}
	}
	attrs["buyer"] = hex.EncodeToString(r.Buyer[:])
	attrs["class"] = r.Class.String()
	attrs["quantity"] = strconv.FormatUint(r.Quantity, 10)
	if r.Code != "" {
		attrs["code"] = r.Code
	}
	if r.Split.Net != nil {
		attrs["netPayment"] = r.Split.Net.String()
	}
	if r.Split.Discount != nil && r.Split.Discount.Sign() > 0 {
		attrs["discount"] = r.Split.Discount.String()
	}
	if r.Split.TreasuryShare != nil {
		attrs["treasuryShare"] = r.Split.TreasuryShare.String()
	}
	return &types.Event{Type: EventTypePurchased, Attributes: attrs}
}

func newRewardPaidEvent(code string, recipient [20]byte, role string, amount *big.Int) *types.Event {
	attrs := map[string]string{
		"code":      code,
		"recipient": hex.EncodeToString(recipient[:]),
		"role":      role,
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return &types.Event{Type: EventTypeRewardPaid, Attributes: attrs}
}
