package htlc

import "math/big"

// maxAmount caps escrow arithmetic at the 256-bit word size of the host
// chains. Exceeding it surfaces as ErrOverflow instead of silently wrapping.
var maxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

const bpsDenominator = 10_000

func checkedAdd(a, b *big.Int) (*big.Int, error) {
	sum := new(big.Int).Add(cloneBigInt(a), cloneBigInt(b))
	if sum.Cmp(maxAmount) > 0 {
		return nil, ErrOverflow
	}
	return sum, nil
}

// requiredSafetyDeposit computes floor(amount * bps / 10000).
func requiredSafetyDeposit(amount *big.Int, bps uint16) (*big.Int, error) {
	product := new(big.Int).Mul(cloneBigInt(amount), new(big.Int).SetUint64(uint64(bps)))
	if product.Cmp(maxAmount) > 0 {
		return nil, ErrOverflow
	}
	return product.Div(product, big.NewInt(bpsDenominator)), nil
}
