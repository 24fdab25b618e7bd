package htlc

import (
	"math/big"
	"strings"
)

// CreateOrderParams carries the two-step variant creation inputs. The maker
// attaches the principal plus the resolver fee; the amount is whatever remains
// of the attached funds after the fee.
type CreateOrderParams struct {
	OrderID            string
	Hashlock           string
	Timelock           uint64 // absolute block height
	DestinationChain   string
	DestinationToken   string
	DestinationAmount  *big.Int
	DestinationAddress string
	ResolverFee        *big.Int
}

// CreateOrder opens a two-step escrow order. Any caller may create; resolver
// authorization is checked at match time.
func (e *Engine) CreateOrder(caller string, funds *big.Int, p CreateOrderParams) (*Order, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if _, err := e.config(); err != nil {
		return nil, err
	}
	maker := strings.TrimSpace(caller)
	fee := cloneBigInt(p.ResolverFee)
	sent := cloneBigInt(funds)
	if sent.Cmp(fee) <= 0 {
		return nil, ErrInsufficientDeposit
	}
	if sent.Cmp(maxAmount) > 0 {
		return nil, ErrOverflow
	}
	amount := new(big.Int).Sub(sent, fee)
	if p.Timelock <= e.height() {
		return nil, ErrInvalidTimelock
	}
	hashlock, err := NormalizeHashlock(p.Hashlock)
	if err != nil {
		return nil, err
	}
	orderID := strings.TrimSpace(p.OrderID)
	if _, ok, err := e.state.OrderGet(orderID); err != nil {
		return nil, err
	} else if ok {
		return nil, &OrderAlreadyExistsError{ID: orderID}
	}
	order := &Order{
		ID:                 orderID,
		Variant:            VariantHTLC,
		Maker:              maker,
		Amount:             amount,
		ResolverFee:        fee,
		SafetyDeposit:      big.NewInt(0),
		Hashlock:           hashlock,
		Timelock:           p.Timelock,
		DestinationChain:   strings.TrimSpace(p.DestinationChain),
		DestinationToken:   strings.TrimSpace(p.DestinationToken),
		DestinationAmount:  cloneBigInt(p.DestinationAmount),
		DestinationAddress: strings.TrimSpace(p.DestinationAddress),
		Status:             StatusPending,
		CreatedAt:          e.now(),
	}
	if err := e.state.OrderCreate(order); err != nil {
		return nil, err
	}
	e.emit(NewOrderCreatedEvent(order))
	return order.Clone(), nil
}

// MatchOrder commits an authorized resolver to a pending order. The resolver
// posts a safety deposit of at least amount * min_safety_deposit_bps / 10000
// computed from the current config; the actually posted deposit is stored.
func (e *Engine) MatchOrder(caller string, funds *big.Int, orderID string) (*Order, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	resolver := strings.TrimSpace(caller)
	authorized, err := e.state.ResolverAuthorized(resolver)
	if err != nil {
		return nil, err
	}
	if !authorized {
		return nil, ErrUnauthorizedResolver
	}
	order, err := e.loadOrder(orderID)
	if err != nil {
		return nil, err
	}
	if !canTransition(order.Status, StatusMatched) {
		return nil, &InvalidOrderStatusError{Status: order.Status}
	}
	if e.clockFor(order) >= order.Timelock {
		return nil, ErrTimelockExpired
	}
	required, err := requiredSafetyDeposit(order.Amount, cfg.MinSafetyDepositBps)
	if err != nil {
		return nil, err
	}
	deposit := cloneBigInt(funds)
	if deposit.Cmp(required) < 0 {
		return nil, &InsufficientSafetyDepositError{Expected: required, Actual: deposit}
	}
	order.Resolver = resolver
	order.SafetyDeposit = deposit
	order.Status = StatusMatched
	if err := e.state.OrderPut(order); err != nil {
		return nil, err
	}
	e.emit(NewOrderMatchedEvent(order))
	return order.Clone(), nil
}
