package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToSecondary(t *testing.T) {
	require.InDelta(t, 1.0, ToSecondary(1.95583), 0.0000001)
	require.InDelta(t, 51.1291, ToSecondary(100), 0.0001)
	require.InDelta(t, 0.0, ToSecondary(0), 0.0000001)
}

func TestIsSupported(t *testing.T) {
	require.True(t, IsSupported(CurrencyBGN))
	require.True(t, IsSupported(CurrencyEUR))
	require.False(t, IsSupported("USD"))
	require.False(t, IsSupported(""))
}
