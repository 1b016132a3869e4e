package kernel

import (
	"math/big"
	"testing"

	curve "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"
)

func TestG1RoundTrip(t *testing.T) {
	assert := require.New(t)

	_, _, g1, _ := curve.Generators()
	var p curve.G1Affine
	p.ScalarMultiplicationBase(big.NewInt(42))

	buf := MarshalG1(&p)
	assert.Len(buf, SizeG1)
	q, err := UnmarshalG1(buf)
	assert.NoError(err)
	assert.True(q.Equal(&p))

	buf = MarshalG1(&g1)
	q, err = UnmarshalG1(buf)
	assert.NoError(err)
	assert.True(q.Equal(&g1))
}

func TestG1Infinity(t *testing.T) {
	assert := require.New(t)

	q, err := UnmarshalG1(make([]byte, SizeG1))
	assert.NoError(err)
	assert.True(q.IsInfinity())
}

func TestG1RejectsOffCurve(t *testing.T) {
	assert := require.New(t)

	buf := make([]byte, SizeG1)
	buf[SizeG1-1] = 3 // (0, 3) is not on y^2 = x^3 + 3
	_, err := UnmarshalG1(buf)
	assert.ErrorIs(err, ErrInvalidEncoding)
}

func TestG1RejectsNonCanonicalCoordinate(t *testing.T) {
	assert := require.New(t)

	buf := make([]byte, SizeG1)
	for i := range buf {
		buf[i] = 0xff
	}
	_, err := UnmarshalG1(buf)
	assert.ErrorIs(err, ErrInvalidEncoding)
}

func TestG2RoundTrip(t *testing.T) {
	assert := require.New(t)

	var p curve.G2Affine
	p.ScalarMultiplicationBase(big.NewInt(1234567))

	buf := MarshalG2(&p)
	assert.Len(buf, SizeG2)
	q, err := UnmarshalG2(buf)
	assert.NoError(err)
	assert.True(q.Equal(&p))
}

func TestScalarRejectsNonCanonical(t *testing.T) {
	assert := require.New(t)

	buf := make([]byte, SizeFr)
	for i := range buf {
		buf[i] = 0xff
	}
	_, err := UnmarshalScalar(buf)
	assert.ErrorIs(err, ErrInvalidEncoding)
}

func TestSplitScalars(t *testing.T) {
	assert := require.New(t)

	var a, b fr.Element
	a.SetUint64(5)
	b.SetUint64(7)
	aBytes := a.Bytes()
	bBytes := b.Bytes()
	buf := append(aBytes[:], bBytes[:]...)

	scalars, err := SplitScalars(buf)
	assert.NoError(err)
	assert.Len(scalars, 2)
	assert.True(scalars[0].Equal(&a))
	assert.True(scalars[1].Equal(&b))

	_, err = SplitScalars(buf[:SizeFr+1])
	assert.ErrorIs(err, ErrInvalidEncoding)
}

