package htlc

import (
	"fmt"
	"math/big"
)

// Transfer is a value-transfer instruction handed back to the host environment
// for execution atomically with the state mutation that produced it.
type Transfer struct {
	To     string
	Amount *big.Int
	Denom  string
}

// payouts computes who gets how much once an order reaches a terminal status.
// It is a pure function of the order fields so custody equality can be checked
// independently of storage and transfer side effects. Zero-amount transfers
// are omitted rather than sent as empty disbursements.
//
// Custody equality: every branch disburses exactly
// amount + resolver_fee + safety_deposit.
func payouts(order *Order, denom string) ([]Transfer, error) {
	if order == nil {
		return nil, ErrInvalidOrderStatus
	}
	if !order.Status.Terminal() {
		return nil, &InvalidOrderStatusError{Status: order.Status}
	}
	transfers := make([]Transfer, 0, 3)
	push := func(to string, amount *big.Int) {
		if amount == nil || amount.Sign() == 0 || to == "" {
			return
		}
		transfers = append(transfers, Transfer{To: to, Amount: cloneBigInt(amount), Denom: denom})
	}

	switch order.Variant {
	case VariantFusion:
		if order.Status == StatusClaimed {
			// Resolver locked everything; maker receives the principal, the
			// resolver earns its fee and recovers the deposit.
			push(order.Maker, order.Amount)
			push(order.Resolver, order.ResolverFee)
			push(order.Resolver, order.SafetyDeposit)
			return transfers, nil
		}
		// Refund: the resolver posted the full sum, so the full sum returns.
		total, err := checkedAdd(order.Amount, order.ResolverFee)
		if err != nil {
			return nil, err
		}
		total, err = checkedAdd(total, order.SafetyDeposit)
		if err != nil {
			return nil, err
		}
		push(order.Resolver, total)
		return transfers, nil
	case VariantHTLC:
		if order.Status == StatusClaimed {
			// Maker locked principal and fee; the resolver proved fulfilment
			// with the preimage and collects both plus its deposit back.
			total, err := checkedAdd(order.Amount, order.ResolverFee)
			if err != nil {
				return nil, err
			}
			push(order.Resolver, total)
			push(order.Resolver, order.SafetyDeposit)
			return transfers, nil
		}
		// Refund: split custody unwinds to whoever posted each leg.
		total, err := checkedAdd(order.Amount, order.ResolverFee)
		if err != nil {
			return nil, err
		}
		push(order.Maker, total)
		push(order.Resolver, order.SafetyDeposit)
		return transfers, nil
	default:
		return nil, fmt.Errorf("htlc: invalid order variant: %d", order.Variant)
	}
}
