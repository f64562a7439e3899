package config

import "fmt"

// Validate rejects configurations that cannot produce a working node.
func (c *Config) Validate() error {
	if c.RPCAddress == c.GatewayAddress {
		return fmt.Errorf("config: RPCAddress and GatewayAddress must differ")
	}
	if c.TreasuryTimeoutSeconds < 0 {
		return fmt.Errorf("config: TreasuryTimeoutSeconds must not be negative")
	}
	if _, err := c.Genesis.Admin(); err != nil {
		return err
	}
	if _, err := c.Genesis.Board(); err != nil {
		return err
	}
	if _, err := c.Genesis.TierTable(); err != nil {
		return err
	}
	if _, err := c.Genesis.BalanceTable(); err != nil {
		return err
	}
	return nil
}
