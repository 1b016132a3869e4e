// Package stark implements verification of transparent STARK proofs for a
// Fibonacci class AIR over the BN254 scalar field.
//
// The execution trace has two columns (a, b) holding consecutive Fibonacci
// values, with transition constraints a' = b and b' = a + b and boundary
// constraints binding a_0, b_0 and b_{n-1} to the public inputs. Trace and
// composition polynomial evaluations over a multiplicative coset are
// committed with Keccak-256 Merkle trees; the composition polynomial's
// degree bound is attested by a FRI protocol folded down to a remainder of
// degree at most 7. There is no trusted setup: the verifying key carries
// only public domain parameters.
package stark

import (
	"encoding/binary"
	"math/big"
	"math/bits"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/fft"
	"github.com/fxamacker/cbor/v2"

	"github.com/draxxycodes/Universal-ZKV-sub001/internal/kernel"
)

const (
	// SizeVerifyingKey is the serialized verifying key size: trace length,
	// blowup factor and query count.
	SizeVerifyingKey = 8 + 4 + 4

	// MaxProofSize bounds the serialized proof accepted before decoding.
	MaxProofSize = 1 << 22

	// maxRemainderDegree is the FRI termination degree: folding stops once
	// the working polynomial fits in maxRemainderDegree+1 coefficients.
	maxRemainderDegree = 7

	// nbPublicInputs is the public statement arity: a_0, b_0 and the
	// claimed result b_{n-1}.
	nbPublicInputs = 3

	// nbConstraints is the number of AIR constraints combined into the
	// composition polynomial (2 transition + 3 boundary).
	nbConstraints = 5
)

// Domain size bounds. The trace must leave room for at least one FRI fold.
const (
	MinTraceLength = 16
	MaxTraceLength = 1 << 22
	MinBlowup      = 2
	MaxBlowup      = 64
	MaxQueries     = 128
)

// VerifyingKey carries the public AIR and FRI parameters. Transparency means
// none of them is secret.
type VerifyingKey struct {
	TraceLength uint64
	Blowup      uint32
	NumQueries  uint32

	// derived domain data
	ldeSize  uint64     // TraceLength * Blowup
	gen      fr.Element // generator of the LDE subgroup
	offset   fr.Element // multiplicative coset offset
	traceGen fr.Element // generator of the trace subgroup, gen^Blowup
	lastRow  fr.Element // traceGen^(TraceLength-1)
	nbLayers int        // FRI folding rounds down to the remainder
}

// ParseVerifyingKey deserializes and validates a verifying key and prepares
// the evaluation domain.
func ParseVerifyingKey(buf []byte) (*VerifyingKey, error) {
	if len(buf) != SizeVerifyingKey {
		return nil, kernel.ErrInvalidEncoding
	}
	var vk VerifyingKey
	vk.TraceLength = binary.BigEndian.Uint64(buf[:8])
	vk.Blowup = binary.BigEndian.Uint32(buf[8:12])
	vk.NumQueries = binary.BigEndian.Uint32(buf[12:16])

	if vk.TraceLength < MinTraceLength || vk.TraceLength > MaxTraceLength ||
		bits.OnesCount64(vk.TraceLength) != 1 {
		return nil, kernel.ErrInvalidEncoding
	}
	if vk.Blowup < MinBlowup || vk.Blowup > MaxBlowup ||
		bits.OnesCount32(vk.Blowup) != 1 {
		return nil, kernel.ErrInvalidEncoding
	}
	if vk.NumQueries == 0 || vk.NumQueries > MaxQueries {
		return nil, kernel.ErrInvalidEncoding
	}

	vk.ldeSize = vk.TraceLength * uint64(vk.Blowup)
	domain := fft.NewDomain(vk.ldeSize)
	vk.gen.Set(&domain.Generator)
	vk.offset.Set(&domain.FrMultiplicativeGen)

	var bExpo big.Int
	bExpo.SetUint64(uint64(vk.Blowup))
	vk.traceGen.Exp(vk.gen, &bExpo)
	bExpo.SetUint64(vk.TraceLength - 1)
	vk.lastRow.Exp(vk.traceGen, &bExpo)

	// fold until the composition polynomial fits in the remainder
	vk.nbLayers = bits.Len64(vk.TraceLength/(maxRemainderDegree+1)) - 1
	return &vk, nil
}

// Marshal serializes the verifying key in the layout ParseVerifyingKey
// accepts.
func (vk *VerifyingKey) Marshal() []byte {
	buf := make([]byte, SizeVerifyingKey)
	binary.BigEndian.PutUint64(buf[:8], vk.TraceLength)
	binary.BigEndian.PutUint32(buf[8:12], vk.Blowup)
	binary.BigEndian.PutUint32(buf[12:16], vk.NumQueries)
	return buf
}

// NbPublicInputs returns the public statement arity.
func (vk *VerifyingKey) NbPublicInputs() int { return nbPublicInputs }

// OODFrame holds the trace and composition evaluations at the out of domain
// point z: (a(z), b(z)), (a(gz), b(gz)) and comp(z), as 32 byte scalars.
type OODFrame struct {
	Current [2][]byte `cbor:"1,keyasint"`
	Next    [2][]byte `cbor:"2,keyasint"`
	Comp    []byte    `cbor:"3,keyasint"`
}

// RowOpening is a Merkle-attested trace row. ProofSet is the inclusion proof
// with the 64 byte row (a || b) as its head element.
type RowOpening struct {
	Values   [2][]byte `cbor:"1,keyasint"`
	ProofSet [][]byte  `cbor:"2,keyasint"`
}

// LayerOpening opens the folding pair (f(y), f(-y)) of one FRI layer.
type LayerOpening struct {
	Lo      []byte   `cbor:"1,keyasint"`
	Hi      []byte   `cbor:"2,keyasint"`
	LoProof [][]byte `cbor:"3,keyasint"`
	HiProof [][]byte `cbor:"4,keyasint"`
}

// QueryProof carries everything opened at one query position: the trace rows
// feeding the constraint check and the per layer FRI folding pairs.
type QueryProof struct {
	TraceRow     RowOpening     `cbor:"1,keyasint"`
	TraceRowNext RowOpening     `cbor:"2,keyasint"`
	Layers       []LayerOpening `cbor:"3,keyasint"`
}

// Proof represents a STARK proof
type Proof struct {
	TraceRoot       []byte       `cbor:"1,keyasint"`
	CompositionRoot []byte       `cbor:"2,keyasint"`
	OOD             OODFrame     `cbor:"3,keyasint"`
	FriRoots        [][]byte     `cbor:"4,keyasint"`
	Remainder       [][]byte     `cbor:"5,keyasint"`
	Queries         []QueryProof `cbor:"6,keyasint"`
}

// ParseProof decodes a cbor serialized proof. Structural validation against
// the verifying key happens in Verify.
func ParseProof(buf []byte) (*Proof, error) {
	if len(buf) == 0 || len(buf) > MaxProofSize {
		return nil, kernel.ErrInvalidProofFormat
	}
	var proof Proof
	if err := cbor.Unmarshal(buf, &proof); err != nil {
		return nil, kernel.ErrInvalidProofFormat
	}
	return &proof, nil
}

// Marshal serializes the proof in the layout ParseProof accepts.
func (proof *Proof) Marshal() ([]byte, error) {
	return cbor.Marshal(proof)
}

// ParsePublicInputs decodes the public statement [a_0, b_0, result].
func ParsePublicInputs(buf []byte, vk *VerifyingKey) ([]fr.Element, error) {
	inputs, err := kernel.SplitScalars(buf)
	if err != nil {
		return nil, err
	}
	if len(inputs) != vk.NbPublicInputs() {
		return nil, kernel.ErrInvalidPublicInputLength
	}
	return inputs, nil
}
