package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTokenAmount(t *testing.T) {
	amount, err := ParseTokenAmount("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", 6, "1.5")
	require.NoError(t, err)
	assert.Equal(t, "1500000", amount.Amount.String())
	assert.Equal(t, "1.5", amount.Human())

	amount, err = ParseTokenAmount(NativeTokenAddress, 18, "0.000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "1", amount.Amount.String())
	assert.True(t, amount.IsNative())
}

func TestParseTokenAmountRejectsNegative(t *testing.T) {
	_, err := ParseTokenAmount(ZeroAddress, 18, "-1")
	assert.Error(t, err)
}

func TestParseTokenAmountRejectsOverPrecise(t *testing.T) {
	// 7 fractional digits against a 6-decimal asset would truncate
	_, err := ParseTokenAmount(ZeroAddress, 6, "1.0000001")
	assert.Error(t, err)

	// exactly 6 is fine
	_, err = ParseTokenAmount(ZeroAddress, 6, "1.000001")
	assert.NoError(t, err)
}

func TestParseTokenAmountRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "abc", "1e", "1.2.3"} {
		_, err := ParseTokenAmount(ZeroAddress, 18, input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestIsNativeAsset(t *testing.T) {
	assert.True(t, IsNativeAsset(NativeTokenAddress))
	assert.True(t, IsNativeAsset("0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"))
	assert.True(t, IsNativeAsset(ZeroAddress))
	assert.False(t, IsNativeAsset("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"))
}
