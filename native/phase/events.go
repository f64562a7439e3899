package phase

import (
	"strconv"

	"mintvault/core/types"
	"mintvault/native/tiers"
)

const (
	// EventTypePhaseStarted marks the opening of a new pricing round.
	EventTypePhaseStarted = "phase.started"
	// EventTypePhaseCapAdjusted marks an admin cap correction on the
	// current round.
	EventTypePhaseCapAdjusted = "phase.cap_adjusted"
)

type phaseEvent struct {
	evt *types.Event
}

func (p phaseEvent) EventType() string {
	if p.evt == nil {
		return ""
	}
	return p.evt.Type
}

func (p phaseEvent) Event() *types.Event { return p.evt }

func newStartedEvent(p *Phase) *types.Event {
	attrs := make(map[string]string)
	if p == nil {
		return &types.Event{Type: EventTypePhaseStarted, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(p.ID, 10)
	attrs["createdAt"] = strconv.FormatInt(p.CreatedAt, 10)
	for i := range p.Prices {
		class := tiers.ClassID(i).String()
		if p.Prices[i] != nil {
			attrs["price."+class] = p.Prices[i].String()
		}
		attrs["cap."+class] = strconv.FormatUint(p.Caps[i], 10)
	}
	return &types.Event{Type: EventTypePhaseStarted, Attributes: attrs}
}

func newCapAdjustedEvent(p *Phase, class tiers.ClassID) *types.Event {
	attrs := make(map[string]string)
	if p != nil {
		attrs["id"] = strconv.FormatUint(p.ID, 10)
		attrs["class"] = class.String()
		attrs["cap"] = strconv.FormatUint(p.Caps[class], 10)
		attrs["sold"] = strconv.FormatUint(p.Sold[class], 10)
	}
	return &types.Event{Type: EventTypePhaseCapAdjusted, Attributes: attrs}
}
