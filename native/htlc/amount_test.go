package htlc

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckedAdd(t *testing.T) {
	sum, err := checkedAdd(big.NewInt(2), big.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(5), sum)

	sum, err = checkedAdd(nil, big.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(3), sum)

	sum, err = checkedAdd(maxAmount, big.NewInt(0))
	require.NoError(t, err)
	require.Equal(t, maxAmount, sum)

	_, err = checkedAdd(maxAmount, big.NewInt(1))
	require.ErrorIs(t, err, ErrOverflow)
}

func TestRequiredSafetyDeposit(t *testing.T) {
	deposit, err := requiredSafetyDeposit(big.NewInt(1_000_000), 500)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(50_000), deposit)

	// Floor division: 999 * 500 / 10000 = 49.95 rounds down.
	deposit, err = requiredSafetyDeposit(big.NewInt(999), 500)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(49), deposit)

	deposit, err = requiredSafetyDeposit(big.NewInt(0), 500)
	require.NoError(t, err)
	require.True(t, deposit.Sign() == 0)

	deposit, err = requiredSafetyDeposit(big.NewInt(1), 10_000)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1), deposit)

	// The intermediate product amount * bps must stay within 256 bits.
	_, err = requiredSafetyDeposit(maxAmount, 500)
	require.ErrorIs(t, err, ErrOverflow)
}
