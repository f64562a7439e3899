package codes

import (
	"math/big"
	"strings"

	"mintvault/native/tiers"
)

// Kind tags the two discount code variants sharing the registry namespace.
type Kind uint8

const (
	KindNone Kind = iota
	KindAmbassador
	KindPersonal
)

// String names the kind for events and wire encodings.
func (k Kind) String() string {
	switch k {
	case KindAmbassador:
		return "ambassador"
	case KindPersonal:
		return "personal"
	default:
		return "none"
	}
}

const (
	// MaxAmbassadorRate bounds the buyer discount an ambassador code may
	// grant. The remainder of the 25% envelope is the ambassador's cut.
	MaxAmbassadorRate = 25
	// MaxPersonalRate bounds the self-use discount of a personal code.
	MaxPersonalRate = 30
)

// AmbassadorCode is a revenue-split referral code usable by any buyer. Owner,
// manager and rate are fixed at creation; statistics accrue via settlement.
type AmbassadorCode struct {
	Code                   string
	Owner                  [20]byte
	Manager                [20]byte
	DiscountRate           uint8
	MintedByClass          [tiers.ClassCount]uint64
	TotalEarned            *big.Int
	TotalRaisedForTreasury *big.Int
}

// HasManager reports whether a payout manager is attached to the code.
func (a *AmbassadorCode) HasManager() bool {
	return a != nil && a.Manager != ([20]byte{})
}

// PersonalCode is a self-use-only discount code with no payout split.
type PersonalCode struct {
	Code          string
	Owner         [20]byte
	DiscountRate  uint8
	MintedByClass [tiers.ClassCount]uint64
}

// Record is the stored tagged union for one registered code string. Exactly
// one of Ambassador or Personal is set, matching Kind.
type Record struct {
	Kind       Kind
	Ambassador *AmbassadorCode
	Personal   *PersonalCode
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := &Record{Kind: r.Kind}
	if r.Ambassador != nil {
		amb := *r.Ambassador
		amb.TotalEarned = cloneBigInt(r.Ambassador.TotalEarned)
		amb.TotalRaisedForTreasury = cloneBigInt(r.Ambassador.TotalRaisedForTreasury)
		clone.Ambassador = &amb
	}
	if r.Personal != nil {
		personal := *r.Personal
		clone.Personal = &personal
	}
	return clone
}

// CodeString returns the registered code string regardless of kind.
func (r *Record) CodeString() string {
	switch {
	case r == nil:
		return ""
	case r.Kind == KindAmbassador && r.Ambassador != nil:
		return r.Ambassador.Code
	case r.Kind == KindPersonal && r.Personal != nil:
		return r.Personal.Code
	default:
		return ""
	}
}

// Resolution is the outcome of resolving a code for a specific caller. A
// personal code owned by someone else resolves to KindNone, behaving as if
// the code were absent.
type Resolution struct {
	Kind         Kind
	Code         string
	Owner        [20]byte
	Manager      [20]byte
	DiscountRate uint8
}

// HasManager reports whether the resolved ambassador code routes a manager
// share.
func (r Resolution) HasManager() bool {
	return r.Kind == KindAmbassador && r.Manager != ([20]byte{})
}

// Normalize canonicalises a code string for registry lookups. Codes are
// case-insensitive on the wire and stored uppercase.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
