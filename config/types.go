package config

import (
	"fmt"
	"math/big"

	"mintvault/crypto"
	"mintvault/native/tiers"
)

// GenesisTier declares the hard supply of one inventory class.
type GenesisTier struct {
	Class        string `toml:"Class"`
	Cap          uint64 `toml:"Cap"`
	RewardWeight uint64 `toml:"RewardWeight"`
}

// GenesisBalance pre-funds one account at bootstrap. Amount is a decimal
// string in base units.
type GenesisBalance struct {
	Address string `toml:"Address"`
	Amount  string `toml:"Amount"`
}

// Genesis describes the one-time bootstrap state written on first start.
type Genesis struct {
	AdminAddress string           `toml:"AdminAddress"`
	BoardMembers []string         `toml:"BoardMembers"`
	Tiers        []GenesisTier    `toml:"tier"`
	Balances     []GenesisBalance `toml:"balance"`
}

// Pauses toggles per-module circuit breakers applied at startup.
type Pauses struct {
	Sale     bool `toml:"Sale"`
	Phase    bool `toml:"Phase"`
	Codes    bool `toml:"Codes"`
	Treasury bool `toml:"Treasury"`
}

// DefaultGenesis returns a development bootstrap with a full tier table and
// no admin, board or balances.
func DefaultGenesis() Genesis {
	defaults := []struct {
		cap    uint64
		weight uint64
	}{
		{3200, 1}, {1600, 2}, {800, 4}, {400, 8}, {200, 16}, {100, 32},
	}
	g := Genesis{}
	for class, d := range defaults {
		g.Tiers = append(g.Tiers, GenesisTier{
			Class:        tiers.ClassID(class).String(),
			Cap:          d.cap,
			RewardWeight: d.weight,
		})
	}
	return g
}

// Admin parses the configured admin address. The zero address is returned
// when none is configured.
func (g Genesis) Admin() ([20]byte, error) {
	if g.AdminAddress == "" {
		return [20]byte{}, nil
	}
	addr, err := crypto.DecodeAddress(g.AdminAddress)
	if err != nil {
		return [20]byte{}, fmt.Errorf("genesis: invalid AdminAddress: %w", err)
	}
	return addr, nil
}

// Board parses the configured board member addresses.
func (g Genesis) Board() ([][20]byte, error) {
	board := make([][20]byte, 0, len(g.BoardMembers))
	for _, member := range g.BoardMembers {
		addr, err := crypto.DecodeAddress(member)
		if err != nil {
			return nil, fmt.Errorf("genesis: invalid board member %q: %w", member, err)
		}
		board = append(board, [20]byte(addr))
	}
	return board, nil
}

// TierTable parses the configured tier declarations into the full per-class
// table keyed by class identifier.
func (g Genesis) TierTable() ([tiers.ClassCount]tiers.Info, error) {
	var table [tiers.ClassCount]tiers.Info
	for _, tier := range g.Tiers {
		class, err := tiers.ParseClass(tier.Class)
		if err != nil {
			return table, fmt.Errorf("genesis: %w", err)
		}
		table[class] = tiers.Info{Cap: tier.Cap, RewardWeight: tier.RewardWeight}
	}
	return table, nil
}

// BalanceTable parses the configured pre-funded balances.
func (g Genesis) BalanceTable() (map[[20]byte]*big.Int, error) {
	balances := make(map[[20]byte]*big.Int, len(g.Balances))
	for _, entry := range g.Balances {
		addr, err := crypto.DecodeAddress(entry.Address)
		if err != nil {
			return nil, fmt.Errorf("genesis: invalid balance address %q: %w", entry.Address, err)
		}
		amount, ok := new(big.Int).SetString(entry.Amount, 10)
		if !ok || amount.Sign() < 0 {
			return nil, fmt.Errorf("genesis: invalid balance amount %q", entry.Amount)
		}
		balances[[20]byte(addr)] = amount
	}
	return balances, nil
}
