package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONCodec_strict(t *testing.T) {
	type a struct {
		N int `json:"n"`
	}
	type b struct {
		Name string `json:"name"`
	}

	data, err := Default.Marshal(a{N: 4})
	require.NoError(t, err)
	require.Equal(t, `{"n":4}`, string(data))

	var out a
	require.NoError(t, Default.Unmarshal(data, &out))
	require.Equal(t, a{N: 4}, out)

	var wrong b
	require.Error(t, Default.Unmarshal(data, &wrong))

	require.ErrorIs(t, Default.Unmarshal([]byte(`{"n":1} {"n":2}`), &out), ErrTrailingData)
}

func TestJSONCodec_trailingData(t *testing.T) {
	for _, in := range []string{`5}`, `5]`, `{}]`, `{} {}`, `1 2`, `"a",`} {
		t.Run(in, func(t *testing.T) {
			var v any
			require.ErrorIs(t, Default.Unmarshal([]byte(in), &v), ErrTrailingData)
		})
	}

	var n int
	require.NoError(t, Default.Unmarshal([]byte(" 5 \n"), &n))
	require.Equal(t, 5, n)
}
