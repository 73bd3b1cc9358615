package core

import (
	"database/sql/driver"

	"github.com/lib/pq"
)

// ReserveCapability a feature switch on a reserve
type ReserveCapability string

const (
	// CapabilityDeposit deposits enabled
	CapabilityDeposit ReserveCapability = "deposit"
	// CapabilityWithdraw withdrawals enabled
	CapabilityWithdraw ReserveCapability = "withdraw"
	// CapabilityBorrow borrowing enabled
	CapabilityBorrow ReserveCapability = "borrow"
	// CapabilityRepay repayments enabled
	CapabilityRepay ReserveCapability = "repay"
	// CapabilityLiquidate liquidations enabled
	CapabilityLiquidate ReserveCapability = "liquidate"
	// CapabilityCollateral reserve deposits usable as collateral
	CapabilityCollateral ReserveCapability = "collateral"
)

// ReserveCapabilities the set of capabilities a reserve currently allows.
// Persisted as a string array rather than a raw bitmask so the stored
// form stays readable and append-only.
type ReserveCapabilities []ReserveCapability

// AllCapabilities every capability switched on
func AllCapabilities() ReserveCapabilities {
	return ReserveCapabilities{
		CapabilityDeposit,
		CapabilityWithdraw,
		CapabilityBorrow,
		CapabilityRepay,
		CapabilityLiquidate,
		CapabilityCollateral,
	}
}

// Contains reports whether the capability is enabled.
func (c ReserveCapabilities) Contains(capability ReserveCapability) bool {
	for _, item := range c {
		if item == capability {
			return true
		}
	}

	return false
}

// Enable returns the set with the capability switched on.
func (c ReserveCapabilities) Enable(capability ReserveCapability) ReserveCapabilities {
	if c.Contains(capability) {
		return c
	}

	return append(c, capability)
}

// Disable returns the set with the capability switched off.
func (c ReserveCapabilities) Disable(capability ReserveCapability) ReserveCapabilities {
	out := make(ReserveCapabilities, 0, len(c))
	for _, item := range c {
		if item != capability {
			out = append(out, item)
		}
	}

	return out
}

// Value implements driver.Valuer
func (c ReserveCapabilities) Value() (driver.Value, error) {
	items := make(pq.StringArray, len(c))
	for i, item := range c {
		items[i] = string(item)
	}

	return items.Value()
}

// Scan implements sql.Scanner
func (c *ReserveCapabilities) Scan(value interface{}) error {
	var items pq.StringArray
	if err := items.Scan(value); err != nil {
		return err
	}

	out := make(ReserveCapabilities, len(items))
	for i, item := range items {
		out[i] = ReserveCapability(item)
	}

	*c = out
	return nil
}
