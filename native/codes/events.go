package codes

import (
	"encoding/hex"
	"strconv"

	"mintvault/core/types"
)

const (
	// EventTypeAmbassadorCreated marks registration of a revenue-split code.
	EventTypeAmbassadorCreated = "codes.ambassador_created"
	// EventTypePersonalCreated marks registration of a self-use code.
	EventTypePersonalCreated = "codes.personal_created"
)

type codeEvent struct {
	evt *types.Event
}

func (c codeEvent) EventType() string {
	if c.evt == nil {
		return ""
	}
	return c.evt.Type
}

func (c codeEvent) Event() *types.Event { return c.evt }

func newAmbassadorCreatedEvent(a *AmbassadorCode) *types.Event {
	attrs := make(map[string]string)
	if a != nil {
		attrs["code"] = a.Code
		attrs["owner"] = hex.EncodeToString(a.Owner[:])
		if a.HasManager() {
			attrs["manager"] = hex.EncodeToString(a.Manager[:])
		}
		attrs["discountRate"] = strconv.FormatUint(uint64(a.DiscountRate), 10)
	}
	return &types.Event{Type: EventTypeAmbassadorCreated, Attributes: attrs}
}

func newPersonalCreatedEvent(p *PersonalCode) *types.Event {
	attrs := make(map[string]string)
	if p != nil {
		attrs["code"] = p.Code
		attrs["owner"] = hex.EncodeToString(p.Owner[:])
		attrs["discountRate"] = strconv.FormatUint(uint64(p.DiscountRate), 10)
	}
	return &types.Event{Type: EventTypePersonalCreated, Attributes: attrs}
}
