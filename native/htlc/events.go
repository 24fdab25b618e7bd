package htlc

import (
	"math/big"
	"strconv"

	"hashbridge/core/types"
)

const (
	EventTypeOrderCreated    = "htlc.order.created"
	EventTypeOrderMatched    = "htlc.order.matched"
	EventTypeOrderClaimed    = "htlc.order.claimed"
	EventTypeOrderRefunded   = "htlc.order.refunded"
	EventTypeResolverAdded   = "htlc.resolver.added"
	EventTypeResolverRemoved = "htlc.resolver.removed"
	EventTypeConfigUpdated   = "htlc.config.updated"
)

// NewOrderCreatedEvent returns the canonical payload emitted when an order is
// created or executed. Relayers on the source chain watch it to learn the
// hashlock and timeout committed on this side.
func NewOrderCreatedEvent(o *Order) *types.Event {
	evt := newOrderEvent(EventTypeOrderCreated, o)
	if o == nil {
		return evt
	}
	evt.Attributes["hashlock"] = o.Hashlock
	evt.Attributes["timeout"] = strconv.FormatUint(o.Timelock, 10)
	evt.Attributes["source_chain_id"] = strconv.FormatUint(o.SourceChainID, 10)
	if o.DestinationChain != "" {
		evt.Attributes["destination_chain"] = o.DestinationChain
	}
	return evt
}

// NewOrderMatchedEvent returns the payload emitted when a resolver matches a
// pending order and posts its safety deposit.
func NewOrderMatchedEvent(o *Order) *types.Event {
	evt := newOrderEvent(EventTypeOrderMatched, o)
	if o == nil {
		return evt
	}
	evt.Attributes["safety_deposit"] = formatAmount(o.SafetyDeposit)
	return evt
}

// NewOrderClaimedEvent returns the payload emitted on a successful claim. The
// preimage attribute is what completes the atomic swap: the counterpart chain
// relayer picks it up to unlock the other leg.
func NewOrderClaimedEvent(o *Order) *types.Event {
	evt := newOrderEvent(EventTypeOrderClaimed, o)
	if o == nil {
		return evt
	}
	if secret, ok := o.Preimage.Secret(); ok {
		evt.Attributes["preimage"] = secret
	}
	return evt
}

// NewOrderRefundedEvent returns the payload emitted when an order unwinds
// after timeout.
func NewOrderRefundedEvent(o *Order) *types.Event {
	evt := newOrderEvent(EventTypeOrderRefunded, o)
	if o == nil {
		return evt
	}
	evt.Attributes["reason"] = "timeout"
	return evt
}

// NewResolverAddedEvent returns the payload emitted when the admin authorizes
// a resolver.
func NewResolverAddedEvent(resolver string) *types.Event {
	return &types.Event{Type: EventTypeResolverAdded, Attributes: map[string]string{"resolver": resolver}}
}

// NewResolverRemovedEvent returns the payload emitted when the admin revokes a
// resolver.
func NewResolverRemovedEvent(resolver string) *types.Event {
	return &types.Event{Type: EventTypeResolverRemoved, Attributes: map[string]string{"resolver": resolver}}
}

// NewConfigUpdatedEvent returns the payload emitted after a config mutation.
func NewConfigUpdatedEvent(cfg Config) *types.Event {
	return &types.Event{Type: EventTypeConfigUpdated, Attributes: map[string]string{
		"admin":                  cfg.Admin,
		"min_safety_deposit_bps": strconv.FormatUint(uint64(cfg.MinSafetyDepositBps), 10),
	}}
}

func newOrderEvent(eventType string, o *Order) *types.Event {
	attrs := make(map[string]string)
	if o == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["order_id"] = o.ID
	attrs["variant"] = o.Variant.String()
	attrs["maker"] = o.Maker
	if o.Resolver != "" {
		attrs["resolver"] = o.Resolver
	}
	attrs["amount"] = formatAmount(o.Amount)
	attrs["status"] = o.Status.String()
	return &types.Event{Type: eventType, Attributes: attrs}
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
