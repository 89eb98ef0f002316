package partycode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Format(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := Generate()
		require.NoError(t, err)
		assert.Len(t, code, Length)
		assert.True(t, Valid(code), "generated code %q should be valid", code)
		assert.Equal(t, code, Normalize(code), "generated codes are already normalised")
	}
}

func TestGenerate_Spread(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		code, err := Generate()
		require.NoError(t, err)
		seen[code] = struct{}{}
	}
	// 36^7 possibilities; a thousand draws colliding more than once would mean a broken source.
	assert.GreaterOrEqual(t, len(seen), 999)
}

func TestAppendChars_SkipsBiasedBytes(t *testing.T) {
	code := appendChars(nil, []byte{252, 253, 254, 255, 0, 35, 36, 71, 251})
	assert.Equal(t, "0Z0ZZ", string(code))

	code = appendChars([]byte("ABCDEF"), []byte{255, 1, 2})
	assert.Equal(t, "ABCDEF1", string(code), "stops at Length")
}

func TestAppendChars_Uniform(t *testing.T) {
	counts := make(map[byte]int)
	for b := 0; b < 256; b++ {
		for _, c := range appendChars(nil, []byte{byte(b)}) {
			counts[c]++
		}
	}
	require.Len(t, counts, len(alphabet))
	for c, n := range counts {
		assert.Equal(t, unbiasedLimit/len(alphabet), n, "character %q", c)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ABC1234", Normalize("abc1234"))
	assert.Equal(t, "ABC1234", Normalize("  aBc1234 "))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("ABC1234"))
	assert.False(t, Valid("abc1234"))
	assert.False(t, Valid("ABC123"))
	assert.False(t, Valid("ABC-234"))
}
