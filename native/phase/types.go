package phase

import (
	"fmt"
	"math/big"

	"mintvault/native/tiers"
)

// Phase is one immutable pricing round of the sale. Prices and caps are fixed
// at creation; only Sold advances, and only through the settlement engine. An
// explicit admin cap increase is the single sanctioned exception.
type Phase struct {
	ID        uint64
	Prices    [tiers.ClassCount]*big.Int
	Caps      [tiers.ClassCount]uint64
	Sold      [tiers.ClassCount]uint64
	CreatedAt int64
}

// Clone returns a deep copy of the phase so callers can mutate the copy
// without touching the stored instance.
func (p *Phase) Clone() *Phase {
	if p == nil {
		return nil
	}
	clone := *p
	for i, price := range p.Prices {
		if price != nil {
			clone.Prices[i] = new(big.Int).Set(price)
		} else {
			clone.Prices[i] = big.NewInt(0)
		}
	}
	return &clone
}

// Exhausted reports whether every class in the phase is fully sold.
func (p *Phase) Exhausted() bool {
	if p == nil {
		return true
	}
	for i := range p.Caps {
		if p.Sold[i] < p.Caps[i] {
			return false
		}
	}
	return true
}

// Available returns the unsold allocation for the class.
func (p *Phase) Available(class tiers.ClassID) uint64 {
	if p == nil || !class.Valid() {
		return 0
	}
	if p.Sold[class] >= p.Caps[class] {
		return 0
	}
	return p.Caps[class] - p.Sold[class]
}

// Sanitize validates the phase and returns a normalised clone with non-nil
// prices. Sold counters must not exceed caps.
func Sanitize(p *Phase) (*Phase, error) {
	if p == nil {
		return nil, fmt.Errorf("phase: nil phase")
	}
	clone := p.Clone()
	if clone.ID == 0 {
		return nil, fmt.Errorf("phase: id must be >= 1")
	}
	for i := range clone.Prices {
		if clone.Prices[i].Sign() <= 0 {
			return nil, fmt.Errorf("phase: price for class %s must be positive", tiers.ClassID(i))
		}
		if clone.Sold[i] > clone.Caps[i] {
			return nil, fmt.Errorf("phase: sold exceeds cap for class %s", tiers.ClassID(i))
		}
	}
	return clone, nil
}
