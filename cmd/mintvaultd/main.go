package main

import (
	"flag"
	"log/slog"
	"math/big"
	"os"
	"strings"
	"time"

	"mintvault/config"
	"mintvault/core"
	"mintvault/gateway"
	"mintvault/observability/logging"
	"mintvault/rpc"
	"mintvault/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("MINTVAULT_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup("mintvaultd", env, cfg.LogPath)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	genesis, err := buildGenesis(cfg)
	if err != nil {
		logger.Error("invalid genesis configuration", "error", err)
		os.Exit(1)
	}

	node, err := core.NewNode(db, genesis)
	if err != nil {
		logger.Error("failed to start node", "error", err)
		os.Exit(1)
	}
	if cfg.TreasuryTimeoutSeconds > 0 {
		node.SetTreasuryTimeout(time.Duration(cfg.TreasuryTimeoutSeconds) * time.Second)
		logger.Warn("treasury timeout overridden", "seconds", cfg.TreasuryTimeoutSeconds)
	}
	applyPauses(node, cfg, logger)

	errCh := make(chan error, 2)
	go func() {
		errCh <- rpc.NewServer(node).Start(cfg.RPCAddress)
	}()
	go func() {
		errCh <- gateway.NewServer(node).Start(cfg.GatewayAddress)
	}()

	logger.Info("mintvaultd running",
		"network", cfg.NetworkName,
		"rpc", cfg.RPCAddress,
		"gateway", cfg.GatewayAddress,
		"dataDir", cfg.DataDir,
	)
	if err := <-errCh; err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func buildGenesis(cfg *config.Config) (core.Genesis, error) {
	admin, err := cfg.Genesis.Admin()
	if err != nil {
		return core.Genesis{}, err
	}
	board, err := cfg.Genesis.Board()
	if err != nil {
		return core.Genesis{}, err
	}
	table, err := cfg.Genesis.TierTable()
	if err != nil {
		return core.Genesis{}, err
	}
	balances, err := cfg.Genesis.BalanceTable()
	if err != nil {
		return core.Genesis{}, err
	}
	if balances == nil {
		balances = map[[20]byte]*big.Int{}
	}
	return core.Genesis{
		Admin:    admin,
		Board:    board,
		Tiers:    table,
		Balances: balances,
	}, nil
}

func applyPauses(node *core.Node, cfg *config.Config, logger *slog.Logger) {
	admin, err := cfg.Genesis.Admin()
	if err != nil || admin == ([20]byte{}) {
		return
	}
	for module, paused := range map[string]bool{
		"sale":     cfg.Pauses.Sale,
		"phase":    cfg.Pauses.Phase,
		"codes":    cfg.Pauses.Codes,
		"treasury": cfg.Pauses.Treasury,
	} {
		if !paused {
			continue
		}
		if err := node.SetPaused(admin, module, true); err != nil {
			logger.Error("failed to apply pause", "module", module, "error", err)
			continue
		}
		logger.Warn("module paused at startup", "module", module)
	}
}
