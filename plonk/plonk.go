// Package plonk implements verification of PLONK proofs over BN254 with KZG
// polynomial commitments.
//
// The proof carries the wire, permutation and quotient commitments together
// with the claimed evaluations of every committed polynomial at the
// evaluation challenge, one batched KZG opening at that challenge and a
// single opening of the permutation polynomial at the shifted challenge.
// Selector and permutation commitments, the coset shifts and the KZG setup
// points live in the verifying key.
package plonk

import (
	"encoding/binary"
	"math/bits"

	curve "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/fft"
	"github.com/consensys/gnark-crypto/ecc/bn254/kzg"

	"github.com/draxxycodes/Universal-ZKV-sub001/internal/kernel"
)

// number of claimed evaluations carried by the batched opening, in the order
// l, r, o, ql, qr, qm, qo, qk, s1, s2, s3, h1, h2, h3, z
const nbBatchedEvals = 15

const (
	// SizeProof is the serialized proof size: 9 G1 points followed by
	// nbBatchedEvals+1 scalars.
	SizeProof = 9*kernel.SizeG1 + (nbBatchedEvals+1)*kernel.SizeFr

	// SizeVerifyingKey is the serialized verifying key size: domain size,
	// public input count, 8 commitments, two coset shifts and the three KZG
	// setup points.
	SizeVerifyingKey = 8 + 4 + 8*kernel.SizeG1 + 2*kernel.SizeFr +
		kernel.SizeG1 + 2*kernel.SizeG2
)

// MaxDomainSize bounds the accepted circuit domain so per call work stays
// statically predictable.
const MaxDomainSize = 1 << 28

// Proof represents a PLONK proof
type Proof struct {
	// wire commitments
	LRO [3]kzg.Digest

	// permutation grand product commitment
	Z kzg.Digest

	// quotient chunk commitments
	H [3]kzg.Digest

	// batched opening at zeta of every committed polynomial
	BatchedProof kzg.BatchOpeningProof

	// opening of Z at omega*zeta
	ZShiftedOpening kzg.OpeningProof
}

// VerifyingKey represents a PLONK verifying key
type VerifyingKey struct {
	Size              uint64
	SizeInv           fr.Element
	Generator         fr.Element
	NbPublicVariables uint64

	// coset shifts of the permutation argument
	K1, K2 fr.Element

	// selector commitments
	Ql, Qr, Qm, Qo, Qk kzg.Digest

	// permutation commitments
	S [3]kzg.Digest

	// KZG setup: generators and tau in G2
	Kzg kzg.VerifyingKey
}

// ParseProof deserializes and validates a proof.
func ParseProof(buf []byte) (*Proof, error) {
	if len(buf) != SizeProof {
		return nil, kernel.ErrInvalidProofFormat
	}
	var proof Proof
	pts := make([]curve.G1Affine, 9)
	for i := range pts {
		var err error
		pts[i], err = kernel.UnmarshalG1(buf[i*kernel.SizeG1 : (i+1)*kernel.SizeG1])
		if err != nil {
			return nil, err
		}
	}
	proof.LRO[0], proof.LRO[1], proof.LRO[2] = pts[0], pts[1], pts[2]
	proof.Z = pts[3]
	proof.H[0], proof.H[1], proof.H[2] = pts[4], pts[5], pts[6]
	proof.BatchedProof.H = pts[7]
	proof.ZShiftedOpening.H = pts[8]

	scalars, err := kernel.SplitScalars(buf[9*kernel.SizeG1:])
	if err != nil {
		return nil, err
	}
	proof.BatchedProof.ClaimedValues = scalars[:nbBatchedEvals]
	proof.ZShiftedOpening.ClaimedValue = scalars[nbBatchedEvals]
	return &proof, nil
}

// Marshal serializes the proof in the layout ParseProof accepts.
func (proof *Proof) Marshal() []byte {
	buf := make([]byte, 0, SizeProof)
	for i := range proof.LRO {
		buf = append(buf, kernel.MarshalG1(&proof.LRO[i])...)
	}
	buf = append(buf, kernel.MarshalG1(&proof.Z)...)
	for i := range proof.H {
		buf = append(buf, kernel.MarshalG1(&proof.H[i])...)
	}
	buf = append(buf, kernel.MarshalG1(&proof.BatchedProof.H)...)
	buf = append(buf, kernel.MarshalG1(&proof.ZShiftedOpening.H)...)
	for i := range proof.BatchedProof.ClaimedValues {
		b := proof.BatchedProof.ClaimedValues[i].Bytes()
		buf = append(buf, b[:]...)
	}
	b := proof.ZShiftedOpening.ClaimedValue.Bytes()
	buf = append(buf, b[:]...)
	return buf
}

// ParseVerifyingKey deserializes and validates a verifying key and prepares
// the evaluation domain and the KZG pairing lines.
func ParseVerifyingKey(buf []byte) (*VerifyingKey, error) {
	if len(buf) != SizeVerifyingKey {
		return nil, kernel.ErrInvalidEncoding
	}
	var vk VerifyingKey
	vk.Size = binary.BigEndian.Uint64(buf[:8])
	vk.NbPublicVariables = uint64(binary.BigEndian.Uint32(buf[8:12]))
	if vk.Size < 2 || vk.Size > MaxDomainSize || bits.OnesCount64(vk.Size) != 1 {
		return nil, kernel.ErrInvalidEncoding
	}

	off := 12
	g1 := func() (curve.G1Affine, error) {
		p, err := kernel.UnmarshalG1(buf[off : off+kernel.SizeG1])
		off += kernel.SizeG1
		return p, err
	}
	var err error
	if vk.Ql, err = g1(); err != nil {
		return nil, err
	}
	if vk.Qr, err = g1(); err != nil {
		return nil, err
	}
	if vk.Qm, err = g1(); err != nil {
		return nil, err
	}
	if vk.Qo, err = g1(); err != nil {
		return nil, err
	}
	if vk.Qk, err = g1(); err != nil {
		return nil, err
	}
	for i := 0; i < 3; i++ {
		if vk.S[i], err = g1(); err != nil {
			return nil, err
		}
	}
	if vk.K1, err = kernel.UnmarshalScalar(buf[off : off+kernel.SizeFr]); err != nil {
		return nil, err
	}
	off += kernel.SizeFr
	if vk.K2, err = kernel.UnmarshalScalar(buf[off : off+kernel.SizeFr]); err != nil {
		return nil, err
	}
	off += kernel.SizeFr
	if vk.Kzg.G1, err = g1(); err != nil {
		return nil, err
	}
	if vk.Kzg.G2[0], err = kernel.UnmarshalG2(buf[off : off+kernel.SizeG2]); err != nil {
		return nil, err
	}
	off += kernel.SizeG2
	if vk.Kzg.G2[1], err = kernel.UnmarshalG2(buf[off : off+kernel.SizeG2]); err != nil {
		return nil, err
	}
	vk.Kzg.Lines[0] = curve.PrecomputeLines(vk.Kzg.G2[0])
	vk.Kzg.Lines[1] = curve.PrecomputeLines(vk.Kzg.G2[1])

	vk.SizeInv.SetUint64(vk.Size)
	vk.SizeInv.Inverse(&vk.SizeInv)
	domain := fft.NewDomain(vk.Size)
	vk.Generator.Set(&domain.Generator)
	return &vk, nil
}

// Marshal serializes the verifying key in the layout ParseVerifyingKey
// accepts.
func (vk *VerifyingKey) Marshal() []byte {
	buf := make([]byte, 0, SizeVerifyingKey)
	var hdr [12]byte
	binary.BigEndian.PutUint64(hdr[:8], vk.Size)
	binary.BigEndian.PutUint32(hdr[8:], uint32(vk.NbPublicVariables))
	buf = append(buf, hdr[:]...)
	for _, d := range []*kzg.Digest{&vk.Ql, &vk.Qr, &vk.Qm, &vk.Qo, &vk.Qk, &vk.S[0], &vk.S[1], &vk.S[2]} {
		buf = append(buf, kernel.MarshalG1(d)...)
	}
	b := vk.K1.Bytes()
	buf = append(buf, b[:]...)
	b = vk.K2.Bytes()
	buf = append(buf, b[:]...)
	buf = append(buf, kernel.MarshalG1(&vk.Kzg.G1)...)
	buf = append(buf, kernel.MarshalG2(&vk.Kzg.G2[0])...)
	buf = append(buf, kernel.MarshalG2(&vk.Kzg.G2[1])...)
	return buf
}

// ParsePublicInputs decodes the 32 byte big endian scalars a proof is
// verified against and checks the count against the verifying key.
func ParsePublicInputs(buf []byte, vk *VerifyingKey) ([]fr.Element, error) {
	inputs, err := kernel.SplitScalars(buf)
	if err != nil {
		return nil, err
	}
	if uint64(len(inputs)) != vk.NbPublicVariables {
		return nil, kernel.ErrInvalidPublicInputLength
	}
	return inputs, nil
}
