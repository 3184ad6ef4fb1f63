package wallet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestAuroraAddress(t *testing.T) {
	addr, err := AuroraAddress(testMnemonic, 0)
	require.NoError(t, err)
	require.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", addr.Hex())

	other, err := AuroraAddress(testMnemonic, 1)
	require.NoError(t, err)
	require.NotEqual(t, addr, other)
}

func TestAuroraKeyInvalidMnemonic(t *testing.T) {
	_, err := AuroraKey("not a real mnemonic", 0)
	require.Error(t, err)
}
