package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC32C(t *testing.T) {
	// Check value of the Castagnoli polynomial.
	assert.Equal(t, uint32(0xe3069283), CRC32C([]byte("123456789")))
	assert.NoError(t, Verify([]byte("123456789"), 0xe3069283))
	assert.ErrorIs(t, Verify([]byte("123456780"), 0xe3069283), ErrMismatch)
}

func TestTrailer(t *testing.T) {
	record := AppendTrailer([]byte("band index"))
	require.Len(t, record, len("band index")+TrailerSize)

	body, err := SplitTrailer(record)
	require.NoError(t, err)
	assert.Equal(t, "band index", string(body))

	record[0] ^= 0x01
	_, err = SplitTrailer(record)
	assert.ErrorIs(t, err, ErrMismatch)

	_, err = SplitTrailer([]byte{1, 2})
	assert.ErrorIs(t, err, ErrMismatch)
}
