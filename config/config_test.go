package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"mintvault/crypto"
	"mintvault/native/tiers"
)

func testAddress(fill byte) crypto.Address {
	var addr crypto.Address
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func TestLoadParsesGenesis(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	admin := testAddress(0x01)
	memberA := testAddress(0x02)
	memberB := testAddress(0x03)
	funded := testAddress(0x04)
	contents := fmt.Sprintf(`RPCAddress = "0.0.0.0:9000"
GatewayAddress = "0.0.0.0:9001"
DataDir = "./data"
NetworkName = "testnet"
TreasuryTimeoutSeconds = 60

[genesis]
AdminAddress = "%s"
BoardMembers = ["%s", "%s"]

[[genesis.tier]]
Class = "common"
Cap = 3200
RewardWeight = 1

[[genesis.tier]]
Class = "mythic"
Cap = 100
RewardWeight = 32

[[genesis.balance]]
Address = "%s"
Amount = "1000000"
`, admin, memberA, memberB, funded)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != "0.0.0.0:9000" {
		t.Fatalf("unexpected RPCAddress %q", cfg.RPCAddress)
	}
	if cfg.TreasuryTimeoutSeconds != 60 {
		t.Fatalf("unexpected timeout %d", cfg.TreasuryTimeoutSeconds)
	}

	parsedAdmin, err := cfg.Genesis.Admin()
	if err != nil {
		t.Fatalf("admin: %v", err)
	}
	if parsedAdmin != [20]byte(admin) {
		t.Fatal("admin address mismatch")
	}
	board, err := cfg.Genesis.Board()
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	if len(board) != 2 || board[0] != [20]byte(memberA) || board[1] != [20]byte(memberB) {
		t.Fatal("board mismatch")
	}
	table, err := cfg.Genesis.TierTable()
	if err != nil {
		t.Fatalf("tier table: %v", err)
	}
	if table[tiers.ClassCommon].Cap != 3200 || table[tiers.ClassMythic].Cap != 100 {
		t.Fatal("tier caps mismatch")
	}
	if table[tiers.ClassRare].Cap != 0 {
		t.Fatal("undeclared tier must stay empty")
	}
	balances, err := cfg.Genesis.BalanceTable()
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if balances[[20]byte(funded)].Int64() != 1_000_000 {
		t.Fatal("balance mismatch")
	}
}

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":8080" || cfg.GatewayAddress != ":8081" {
		t.Fatalf("unexpected defaults %q %q", cfg.RPCAddress, cfg.GatewayAddress)
	}
	if len(cfg.Genesis.Tiers) != tiers.ClassCount {
		t.Fatalf("expected %d default tiers, got %d", tiers.ClassCount, len(cfg.Genesis.Tiers))
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not persisted: %v", err)
	}

	// A second load reads the persisted file back.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.NetworkName != cfg.NetworkName {
		t.Fatal("reload mismatch")
	}
}

func TestValidateRejectsSharedAddress(t *testing.T) {
	cfg := &Config{RPCAddress: ":8080", GatewayAddress: ":8080"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestValidateRejectsBadBoardMember(t *testing.T) {
	cfg := &Config{
		RPCAddress:     ":8080",
		GatewayAddress: ":8081",
		Genesis:        Genesis{BoardMembers: []string{"not-bech32"}},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}
