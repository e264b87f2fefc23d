package ethsig

import (
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/signon/core"
)

func TestSignRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	sig, err := Sign("hello wallet", key)
	require.NoError(t, err)

	addr, err := Recover("hello wallet", sig)
	require.NoError(t, err)
	assert.Equal(t, Address(key), addr)

	other, err := Recover("hello wallet!", sig)
	require.NoError(t, err)
	assert.NotEqual(t, Address(key), other)
}

func TestRecover_AcceptsZeroOneRecoveryID(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	sig, err := Sign("msg", key)
	require.NoError(t, err)
	raw, err := hexutil.Decode(sig)
	require.NoError(t, err)
	raw[64] -= 27

	addr, err := Recover("msg", hexutil.Encode(raw))
	require.NoError(t, err)
	assert.Equal(t, Address(key), addr)
}

func TestRecover_Malformed(t *testing.T) {
	cases := map[string]string{
		"not hex":     "0xinvalidsignature",
		"no prefix":   "abcdef",
		"short":       "0x" + "ab",
		"bad v":       "0x" + repeat("11", 64) + "05",
		"empty":       "",
		"zero scalar": "0x" + repeat("00", 64) + "1b",
	}
	for name, sig := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Recover("msg", sig)
			assert.ErrorIs(t, err, core.ErrSignatureInvalid)
		})
	}
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
