package sale

import (
	"math/big"
	"testing"

	"mintvault/native/codes"
)

func TestComputeSplitNoCode(t *testing.T) {
	split, err := ComputeSplit(big.NewInt(140), codes.Resolution{})
	if err != nil {
		t.Fatalf("compute split: %v", err)
	}
	if split.Net.Cmp(big.NewInt(140)) != 0 {
		t.Fatalf("expected net 140, got %s", split.Net)
	}
	if split.Discount.Sign() != 0 || split.AmbassadorShare.Sign() != 0 || split.ManagerShare.Sign() != 0 {
		t.Fatalf("expected zero discount and shares, got %+v", split)
	}
	if split.TreasuryShare.Cmp(big.NewInt(140)) != 0 {
		t.Fatalf("expected treasury 140, got %s", split.TreasuryShare)
	}
}

func TestComputeSplitAmbassadorWithManager(t *testing.T) {
	resolution := codes.Resolution{
		Kind:         codes.KindAmbassador,
		Owner:        [20]byte{0x02},
		Manager:      [20]byte{0x03},
		DiscountRate: 10,
	}
	split, err := ComputeSplit(big.NewInt(1000), resolution)
	if err != nil {
		t.Fatalf("compute split: %v", err)
	}
	if split.Discount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected discount 100, got %s", split.Discount)
	}
	if split.AmbassadorShare.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("expected ambassador share 150, got %s", split.AmbassadorShare)
	}
	if split.ManagerShare.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("expected manager share 50, got %s", split.ManagerShare)
	}
	if split.TreasuryShare.Cmp(big.NewInt(700)) != 0 {
		t.Fatalf("expected treasury share 700, got %s", split.TreasuryShare)
	}
}

func TestComputeSplitConservation(t *testing.T) {
	grosses := []int64{1, 7, 99, 1000, 12_345_679}
	resolutions := []codes.Resolution{
		{},
		{Kind: codes.KindAmbassador, Owner: [20]byte{0x02}, DiscountRate: 0},
		{Kind: codes.KindAmbassador, Owner: [20]byte{0x02}, DiscountRate: 25},
		{Kind: codes.KindAmbassador, Owner: [20]byte{0x02}, Manager: [20]byte{0x03}, DiscountRate: 25},
		{Kind: codes.KindPersonal, Owner: [20]byte{0x04}, DiscountRate: 30},
	}
	for _, gross := range grosses {
		for _, resolution := range resolutions {
			split, err := ComputeSplit(big.NewInt(gross), resolution)
			if err != nil {
				t.Fatalf("gross=%d resolution=%+v: %v", gross, resolution, err)
			}
			sum := new(big.Int).Add(split.AmbassadorShare, split.ManagerShare)
			sum.Add(sum, split.TreasuryShare)
			if sum.Cmp(split.Net) != 0 {
				t.Fatalf("gross=%d: shares %s do not sum to net %s", gross, sum, split.Net)
			}
			recomputed := new(big.Int).Sub(split.Gross, split.Discount)
			if recomputed.Cmp(split.Net) != 0 {
				t.Fatalf("gross=%d: net %s != gross-discount %s", gross, split.Net, recomputed)
			}
			if split.TreasuryShare.Sign() < 0 {
				t.Fatalf("gross=%d: negative treasury share %s", gross, split.TreasuryShare)
			}
		}
	}
}

func TestComputeSplitTruncation(t *testing.T) {
	// 33 * 10 / 100 truncates to 3; the remainder stays with the treasury.
	resolution := codes.Resolution{Kind: codes.KindPersonal, Owner: [20]byte{0x04}, DiscountRate: 10}
	split, err := ComputeSplit(big.NewInt(33), resolution)
	if err != nil {
		t.Fatalf("compute split: %v", err)
	}
	if split.Discount.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("expected truncated discount 3, got %s", split.Discount)
	}
	if split.Net.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("expected net 30, got %s", split.Net)
	}
}

func TestComputeSplitRejectsOutOfBoundsRate(t *testing.T) {
	if _, err := ComputeSplit(big.NewInt(100), codes.Resolution{Kind: codes.KindAmbassador, DiscountRate: 26}); err == nil {
		t.Fatal("expected error for ambassador rate above ceiling")
	}
	if _, err := ComputeSplit(big.NewInt(100), codes.Resolution{Kind: codes.KindPersonal, DiscountRate: 31}); err == nil {
		t.Fatal("expected error for personal rate above ceiling")
	}
}
