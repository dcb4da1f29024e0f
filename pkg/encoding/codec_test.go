package encoding

import (
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := Encode(v)
	require.NoError(t, err)
	got, err := Decode(b)
	require.NoError(t, err)
	diff := cmp.Diff(v, got, cmpopts.IgnoreUnexported(big.Int{}))
	require.Empty(t, diff, "decode(encode(v)) != v for %#v", v)

	b2, err := Encode(got)
	require.NoError(t, err)
	require.Equal(t, b, b2, "encode(decode(b)) != b")
	return b
}

func TestRoundTripScalars(t *testing.T) {
	roundTrip(t, Null{})
	roundTrip(t, true)
	roundTrip(t, false)
	roundTrip(t, big.NewInt(0))
	roundTrip(t, big.NewInt(-0))
	roundTrip(t, big.NewInt(123456789))
	roundTrip(t, big.NewInt(-42))
	roundTrip(t, "")
	roundTrip(t, "hello")
	roundTrip(t, []byte{1, 2, 3})
}

func TestRoundTripDecimal(t *testing.T) {
	d := NewDecimal(big.NewInt(12345), 2)
	b := roundTrip(t, d)
	require.NotEmpty(t, b)

	// 100 at scale 2 canonicalizes to 1 at scale 0.
	trailing := NewDecimal(big.NewInt(100), 2)
	require.Equal(t, int32(0), trailing.Scale)
	require.Equal(t, "1", trailing.Unscaled.String())

	zero := NewDecimal(big.NewInt(0), 5)
	require.Equal(t, int32(0), zero.Scale)
}

func TestRoundTripContainers(t *testing.T) {
	roundTrip(t, List{big.NewInt(1), "two", true, Null{}})
	roundTrip(t, Map{"a": big.NewInt(1), "b": List{big.NewInt(2), big.NewInt(3)}})
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode(nil)
	require.ErrorIs(t, err, ErrMalformedValue)

	_, err = Decode([]byte{0xFF})
	require.ErrorIs(t, err, ErrMalformedValue)

	// trailing garbage after a valid value
	b, err := Encode(true)
	require.NoError(t, err)
	_, err = Decode(append(b, 0x00))
	require.ErrorIs(t, err, ErrMalformedValue)
}

func TestNullDistinctFromStringNull(t *testing.T) {
	nullBytes, err := Encode(Null{})
	require.NoError(t, err)
	strBytes, err := Encode("null")
	require.NoError(t, err)
	require.NotEqual(t, nullBytes, strBytes)

	v, err := Decode(strBytes)
	require.NoError(t, err)
	require.False(t, IsNull(v))
}
