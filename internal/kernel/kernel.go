// Package kernel owns the byte-level decoding of field and curve elements
// shared by all verifiers. Proof and verification key bytes are adversarial
// input: every decode path validates lengths, canonical field encodings,
// curve membership and subgroup membership, and rejects instead of panicking.
package kernel

import (
	"errors"

	curve "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"golang.org/x/crypto/sha3"
)

// Serialized sizes, big endian, uncompressed.
const (
	SizeFr = fr.Bytes
	SizeG1 = 2 * 32
	SizeG2 = 4 * 32
)

var (
	// ErrInvalidEncoding is returned when a byte string has the wrong
	// length, a non-canonical field encoding, or decodes to a point that is
	// not on the curve.
	ErrInvalidEncoding = errors.New("invalid encoding")

	// ErrNotInSubgroup is returned when a point is on the curve but outside
	// the prime order subgroup. The check is mandatory: accepting such a
	// point enables small subgroup attacks.
	ErrNotInSubgroup = errors.New("point not in subgroup")

	// ErrInvalidProofFormat is returned when a proof payload does not match
	// the structural layout of its proof system.
	ErrInvalidProofFormat = errors.New("invalid proof format")

	// ErrInvalidPublicInputLength is returned when the number of supplied
	// public inputs does not match the verification key.
	ErrInvalidPublicInputLength = errors.New("invalid public input length")
)

// UnmarshalG1 decodes a 64 byte uncompressed G1 point (X || Y). The all-zero
// string decodes to the point at infinity.
func UnmarshalG1(buf []byte) (curve.G1Affine, error) {
	var p curve.G1Affine
	if len(buf) != SizeG1 {
		return p, ErrInvalidEncoding
	}
	if err := p.X.SetBytesCanonical(buf[:32]); err != nil {
		return curve.G1Affine{}, ErrInvalidEncoding
	}
	if err := p.Y.SetBytesCanonical(buf[32:]); err != nil {
		return curve.G1Affine{}, ErrInvalidEncoding
	}
	if p.X.IsZero() && p.Y.IsZero() {
		return p, nil
	}
	if !p.IsOnCurve() {
		return curve.G1Affine{}, ErrInvalidEncoding
	}
	// cofactor of G1 is one, subgroup membership follows from curve
	// membership; the explicit check keeps the contract uniform with G2
	if !p.IsInSubGroup() {
		return curve.G1Affine{}, ErrNotInSubgroup
	}
	return p, nil
}

// UnmarshalG2 decodes a 128 byte uncompressed G2 point
// (X.A1 || X.A0 || Y.A1 || Y.A0, imaginary part first).
func UnmarshalG2(buf []byte) (curve.G2Affine, error) {
	var p curve.G2Affine
	if len(buf) != SizeG2 {
		return p, ErrInvalidEncoding
	}
	if err := p.X.A1.SetBytesCanonical(buf[:32]); err != nil {
		return curve.G2Affine{}, ErrInvalidEncoding
	}
	if err := p.X.A0.SetBytesCanonical(buf[32:64]); err != nil {
		return curve.G2Affine{}, ErrInvalidEncoding
	}
	if err := p.Y.A1.SetBytesCanonical(buf[64:96]); err != nil {
		return curve.G2Affine{}, ErrInvalidEncoding
	}
	if err := p.Y.A0.SetBytesCanonical(buf[96:]); err != nil {
		return curve.G2Affine{}, ErrInvalidEncoding
	}
	if p.X.IsZero() && p.Y.IsZero() {
		return p, nil
	}
	if !p.IsOnCurve() {
		return curve.G2Affine{}, ErrInvalidEncoding
	}
	if !p.IsInSubGroup() {
		return curve.G2Affine{}, ErrNotInSubgroup
	}
	return p, nil
}

// MarshalG1 encodes a G1 point as 64 bytes, the layout UnmarshalG1 accepts.
func MarshalG1(p *curve.G1Affine) []byte {
	buf := make([]byte, SizeG1)
	xb := p.X.Bytes()
	yb := p.Y.Bytes()
	copy(buf[:32], xb[:])
	copy(buf[32:], yb[:])
	return buf
}

// MarshalG2 encodes a G2 point as 128 bytes, the layout UnmarshalG2 accepts.
func MarshalG2(p *curve.G2Affine) []byte {
	buf := make([]byte, SizeG2)
	b := p.X.A1.Bytes()
	copy(buf[:32], b[:])
	b = p.X.A0.Bytes()
	copy(buf[32:64], b[:])
	b = p.Y.A1.Bytes()
	copy(buf[64:96], b[:])
	b = p.Y.A0.Bytes()
	copy(buf[96:], b[:])
	return buf
}

// UnmarshalScalar decodes a single 32 byte big endian scalar. Values at or
// above the field modulus are rejected.
func UnmarshalScalar(buf []byte) (fr.Element, error) {
	var s fr.Element
	if len(buf) != SizeFr {
		return s, ErrInvalidEncoding
	}
	if err := s.SetBytesCanonical(buf); err != nil {
		return fr.Element{}, ErrInvalidEncoding
	}
	return s, nil
}

// SplitScalars decodes a concatenation of 32 byte big endian scalars.
func SplitScalars(buf []byte) ([]fr.Element, error) {
	if len(buf)%SizeFr != 0 {
		return nil, ErrInvalidEncoding
	}
	res := make([]fr.Element, len(buf)/SizeFr)
	for i := range res {
		var err error
		res[i], err = UnmarshalScalar(buf[i*SizeFr : (i+1)*SizeFr])
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Keccak256 returns the Keccak-256 digest of the concatenation of data.
func Keccak256(data ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}
