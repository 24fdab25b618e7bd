package htlc

import (
	"fmt"
	"strings"
)

// DefaultMinSafetyDepositBps is applied when initialisation does not supply a
// ratio (500 = 5%).
const DefaultMinSafetyDepositBps uint16 = 500

// Config holds the module-level parameters. The admin is the only identity
// allowed to mutate the resolver registry or the config itself.
type Config struct {
	Admin               string
	MinSafetyDepositBps uint16
	NativeDenom         string
}

// Validate checks the invariants the engine relies on: a non-empty admin and
// denom, and a deposit ratio within (0, 10000] basis points.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Admin) == "" {
		return fmt.Errorf("htlc: config admin required")
	}
	if strings.TrimSpace(c.NativeDenom) == "" {
		return fmt.Errorf("htlc: config native denom required")
	}
	if c.MinSafetyDepositBps == 0 || c.MinSafetyDepositBps > bpsDenominator {
		return ErrInvalidConfig
	}
	return nil
}
