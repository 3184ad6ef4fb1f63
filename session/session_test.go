package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	s, err := New(" alice.near ", "0x9858effd232b4033e47d90003d41ec34ecaeda94")
	require.NoError(t, err)
	require.Equal(t, "alice.near", s.NearAccountID)
	require.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", s.AuroraHex())
	require.Equal(t, "9858effd232b4033e47d90003d41ec34ecaeda94", s.AuroraMessage())
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New("", "0x9858effd232b4033e47d90003d41ec34ecaeda94")
	require.Error(t, err)

	_, err = New("alice.near", "not-an-address")
	require.Error(t, err)
}
