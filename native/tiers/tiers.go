package tiers

import "fmt"

// ClassID indexes one of the six fixed inventory rarity classes.
type ClassID uint8

// ClassCount is the number of rarity classes. The sale engine, phase ledger
// and code registry all size their per-class arrays with it.
const ClassCount = 6

const (
	ClassCommon ClassID = iota
	ClassUncommon
	ClassRare
	ClassEpic
	ClassLegendary
	ClassMythic
)

var classNames = [ClassCount]string{
	"common",
	"uncommon",
	"rare",
	"epic",
	"legendary",
	"mythic",
}

// Valid reports whether the class id is within the supported range.
func (c ClassID) Valid() bool { return c < ClassCount }

// String returns the lowercase class name, or "unknown" for out-of-range ids.
func (c ClassID) String() string {
	if !c.Valid() {
		return "unknown"
	}
	return classNames[c]
}

// ParseClass resolves a class name back to its identifier.
func ParseClass(name string) (ClassID, error) {
	for i, n := range classNames {
		if n == name {
			return ClassID(i), nil
		}
	}
	return 0, fmt.Errorf("tiers: unknown class %q", name)
}

// Info describes one rarity class as tracked by the inventory ledger: the
// hard supply cap, units minted so far, and the per-unit reward weight used
// by downstream reward programs.
type Info struct {
	Cap          uint64 `json:"cap"`
	Minted       uint64 `json:"minted"`
	RewardWeight uint64 `json:"rewardWeight"`
}

// Remaining returns the unminted capacity of the class.
func (i Info) Remaining() uint64 {
	if i.Minted >= i.Cap {
		return 0
	}
	return i.Cap - i.Minted
}
