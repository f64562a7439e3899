package sale

import (
	"fmt"
	"math/big"

	"mintvault/native/codes"
)

const (
	// percentBase is the fixed-point base for all percentage math. Order of
	// operations is multiply-then-divide, truncating toward zero.
	percentBase = 100
	// managerSharePercent is the fixed manager cut of gross, independent of
	// the code's discount rate.
	managerSharePercent = 5
)

// Split is the exact decomposition of one purchase's proceeds. The engine
// re-derives TreasuryShare from the other legs and refuses to settle if it
// would go negative.
type Split struct {
	Gross           *big.Int
	Discount        *big.Int
	Net             *big.Int
	AmbassadorShare *big.Int
	ManagerShare    *big.Int
	TreasuryShare   *big.Int
}

// ComputeSplit derives the payment legs for a purchase of the given gross
// value under the resolved code. With an ambassador code the ambassador earns
// (25 - rate)% of gross and an attached manager a fixed 5% of gross; a
// higher discount rate therefore reduces the ambassador's own cut, not the
// treasury's. A personal code only discounts; no shares are paid.
func ComputeSplit(gross *big.Int, resolution codes.Resolution) (Split, error) {
	split := Split{
		Gross:           cloneBigInt(gross),
		Discount:        big.NewInt(0),
		AmbassadorShare: big.NewInt(0),
		ManagerShare:    big.NewInt(0),
	}
	if split.Gross.Sign() < 0 {
		return Split{}, fmt.Errorf("sale: negative gross")
	}
	switch resolution.Kind {
	case codes.KindAmbassador:
		if resolution.DiscountRate > codes.MaxAmbassadorRate {
			return Split{}, fmt.Errorf("%w: ambassador rate %d", ErrSplitInvariant, resolution.DiscountRate)
		}
		split.Discount = percentOf(split.Gross, uint64(resolution.DiscountRate))
		split.AmbassadorShare = percentOf(split.Gross, uint64(codes.MaxAmbassadorRate-resolution.DiscountRate))
		if resolution.HasManager() {
			split.ManagerShare = percentOf(split.Gross, managerSharePercent)
		}
	case codes.KindPersonal:
		if resolution.DiscountRate > codes.MaxPersonalRate {
			return Split{}, fmt.Errorf("%w: personal rate %d", ErrSplitInvariant, resolution.DiscountRate)
		}
		split.Discount = percentOf(split.Gross, uint64(resolution.DiscountRate))
	}
	split.Net = new(big.Int).Sub(split.Gross, split.Discount)
	split.TreasuryShare = new(big.Int).Sub(split.Net, split.AmbassadorShare)
	split.TreasuryShare.Sub(split.TreasuryShare, split.ManagerShare)
	if split.TreasuryShare.Sign() < 0 {
		return Split{}, fmt.Errorf("%w: treasury share %s", ErrSplitInvariant, split.TreasuryShare)
	}
	return split, nil
}

func percentOf(amount *big.Int, percent uint64) *big.Int {
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(percent))
	return out.Div(out, big.NewInt(percentBase))
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
