package digest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasher_stable(t *testing.T) {
	a := New(16).String("sender").Uint64(3).String("doubler").Hex()
	b := New(16).String("sender").Uint64(3).String("doubler").Hex()
	require.Equal(t, a, b)
	require.Len(t, a, 32)

	require.NotEqual(t,
		New(8).String("ab").String("c").Sum64(),
		New(8).String("a").String("bc").Sum64(),
	)
}
