// Package groth16 implements verification of Groth16 zkSNARK proofs over
// the BN254 curve.
//
// The wire formats follow the Ethereum precompile conventions: uncompressed
// big endian points, proofs of exactly 256 bytes (A || B || C), verification
// keys of a 448 byte header (alpha || beta || gamma || delta) followed by
// one 64 byte IC point per public input plus one for the constant term.
package groth16

import (
	curve "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/draxxycodes/Universal-ZKV-sub001/internal/kernel"
)

const (
	// SizeProof is the serialized proof size: A (G1) || B (G2) || C (G1).
	SizeProof = kernel.SizeG1 + kernel.SizeG2 + kernel.SizeG1

	// SizeVKHeader is the fixed part of a serialized verifying key:
	// alpha (G1) || beta (G2) || gamma (G2) || delta (G2).
	SizeVKHeader = kernel.SizeG1 + 3*kernel.SizeG2
)

// Proof represents a Groth16 proof
type Proof struct {
	Ar, Krs curve.G1Affine
	Bs      curve.G2Affine
}

// VerifyingKey represents a Groth16 verifying key. K holds the public input
// commitment basis, one point per public input plus the constant term.
type VerifyingKey struct {
	G1 struct {
		Alpha curve.G1Affine
		K     []curve.G1Affine
	}
	G2 struct {
		Beta, Gamma, Delta curve.G2Affine
	}
}

// NbPublicWitness returns the number of public inputs the key commits to.
func (vk *VerifyingKey) NbPublicWitness() int {
	return len(vk.G1.K) - 1
}

// ParseProof deserializes and validates a 256 byte proof.
func ParseProof(buf []byte) (*Proof, error) {
	if len(buf) != SizeProof {
		return nil, kernel.ErrInvalidProofFormat
	}
	var (
		proof Proof
		err   error
	)
	if proof.Ar, err = kernel.UnmarshalG1(buf[:kernel.SizeG1]); err != nil {
		return nil, err
	}
	if proof.Bs, err = kernel.UnmarshalG2(buf[kernel.SizeG1 : kernel.SizeG1+kernel.SizeG2]); err != nil {
		return nil, err
	}
	if proof.Krs, err = kernel.UnmarshalG1(buf[kernel.SizeG1+kernel.SizeG2:]); err != nil {
		return nil, err
	}
	return &proof, nil
}

// Marshal serializes the proof in the layout ParseProof accepts.
func (proof *Proof) Marshal() []byte {
	buf := make([]byte, 0, SizeProof)
	buf = append(buf, kernel.MarshalG1(&proof.Ar)...)
	buf = append(buf, kernel.MarshalG2(&proof.Bs)...)
	buf = append(buf, kernel.MarshalG1(&proof.Krs)...)
	return buf
}

// ParseVerifyingKey deserializes and validates a verifying key. The IC length
// is inferred from the payload size.
func ParseVerifyingKey(buf []byte) (*VerifyingKey, error) {
	if len(buf) < SizeVKHeader+kernel.SizeG1 {
		return nil, kernel.ErrInvalidEncoding
	}
	if (len(buf)-SizeVKHeader)%kernel.SizeG1 != 0 {
		return nil, kernel.ErrInvalidEncoding
	}
	var (
		vk  VerifyingKey
		err error
	)
	if vk.G1.Alpha, err = kernel.UnmarshalG1(buf[:64]); err != nil {
		return nil, err
	}
	if vk.G2.Beta, err = kernel.UnmarshalG2(buf[64:192]); err != nil {
		return nil, err
	}
	if vk.G2.Gamma, err = kernel.UnmarshalG2(buf[192:320]); err != nil {
		return nil, err
	}
	if vk.G2.Delta, err = kernel.UnmarshalG2(buf[320:448]); err != nil {
		return nil, err
	}
	nbK := (len(buf) - SizeVKHeader) / kernel.SizeG1
	vk.G1.K = make([]curve.G1Affine, nbK)
	for i := 0; i < nbK; i++ {
		off := SizeVKHeader + i*kernel.SizeG1
		if vk.G1.K[i], err = kernel.UnmarshalG1(buf[off : off+kernel.SizeG1]); err != nil {
			return nil, err
		}
	}
	return &vk, nil
}

// Marshal serializes the verifying key in the layout ParseVerifyingKey accepts.
func (vk *VerifyingKey) Marshal() []byte {
	buf := make([]byte, 0, SizeVKHeader+len(vk.G1.K)*kernel.SizeG1)
	buf = append(buf, kernel.MarshalG1(&vk.G1.Alpha)...)
	buf = append(buf, kernel.MarshalG2(&vk.G2.Beta)...)
	buf = append(buf, kernel.MarshalG2(&vk.G2.Gamma)...)
	buf = append(buf, kernel.MarshalG2(&vk.G2.Delta)...)
	for i := range vk.G1.K {
		buf = append(buf, kernel.MarshalG1(&vk.G1.K[i])...)
	}
	return buf
}

// ParsePublicInputs decodes the 32 byte big endian scalars a proof is
// verified against and checks the count against the verifying key.
func ParsePublicInputs(buf []byte, vk *VerifyingKey) ([]fr.Element, error) {
	inputs, err := kernel.SplitScalars(buf)
	if err != nil {
		return nil, err
	}
	if len(inputs) != vk.NbPublicWitness() {
		return nil, kernel.ErrInvalidPublicInputLength
	}
	return inputs, nil
}
