package htlc

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrNilState           = errors.New("htlc: engine state not configured")
	ErrNotInitialized     = errors.New("htlc: config not initialised")
	ErrAlreadyInitialized = errors.New("htlc: already initialised")

	ErrUnauthorized         = errors.New("htlc: unauthorized")
	ErrUnauthorizedResolver = errors.New("htlc: only authorized resolvers can execute orders")

	ErrOrderNotFound        = errors.New("htlc: order not found")
	ErrOrderAlreadyExists   = errors.New("htlc: order already exists")
	ErrOrderAlreadyClaimed  = errors.New("htlc: order already claimed")
	ErrOrderAlreadyRefunded = errors.New("htlc: order already refunded")

	ErrInvalidHashlock    = errors.New("htlc: invalid hashlock format")
	ErrInvalidPreimage    = errors.New("htlc: invalid preimage")
	ErrInvalidOrderStatus = errors.New("htlc: invalid order status")

	ErrInsufficientSafetyDeposit = errors.New("htlc: insufficient safety deposit")
	ErrInsufficientDeposit       = errors.New("htlc: insufficient deposit for resolver fee")

	ErrTimelockNotExpired = errors.New("htlc: timelock not expired")
	ErrTimelockExpired    = errors.New("htlc: timelock expired")
	ErrInvalidTimelock    = errors.New("htlc: timelock must be in the future")

	ErrOverflow      = errors.New("htlc: amount overflow")
	ErrInvalidConfig = errors.New("htlc: safety deposit bps out of range")
)

// OrderNotFoundError reports the missing identifier alongside the sentinel.
type OrderNotFoundError struct {
	ID string
}

func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("htlc: order not found: %s", e.ID)
}

func (e *OrderNotFoundError) Is(target error) bool { return target == ErrOrderNotFound }

// OrderAlreadyExistsError reports a creation collision on the order key.
type OrderAlreadyExistsError struct {
	ID string
}

func (e *OrderAlreadyExistsError) Error() string {
	return fmt.Sprintf("htlc: order already exists: %s", e.ID)
}

func (e *OrderAlreadyExistsError) Is(target error) bool { return target == ErrOrderAlreadyExists }

// InvalidOrderStatusError carries the status that blocked the transition.
type InvalidOrderStatusError struct {
	Status OrderStatus
}

func (e *InvalidOrderStatusError) Error() string {
	return fmt.Sprintf("htlc: invalid order status: %s", e.Status)
}

func (e *InvalidOrderStatusError) Is(target error) bool { return target == ErrInvalidOrderStatus }

// InsufficientSafetyDepositError carries the exact shortfall figures so callers
// can resubmit with the correct total.
type InsufficientSafetyDepositError struct {
	Expected *big.Int
	Actual   *big.Int
}

func (e *InsufficientSafetyDepositError) Error() string {
	return fmt.Sprintf("htlc: insufficient safety deposit: expected %s, got %s", e.Expected, e.Actual)
}

func (e *InsufficientSafetyDepositError) Is(target error) bool {
	return target == ErrInsufficientSafetyDeposit
}
