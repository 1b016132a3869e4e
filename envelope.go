package uzkv

import (
	"encoding/binary"

	"github.com/draxxycodes/Universal-ZKV-sub001/backend"
	"github.com/draxxycodes/Universal-ZKV-sub001/internal/kernel"
)

// EnvelopeVersion is the envelope wire format version accepted by the
// engine.
const EnvelopeVersion = 1

// SizeEnvelopeHeader is the fixed portion of an envelope: version, proof
// system tag, program id, key hash and the two length prefixes.
const SizeEnvelopeHeader = 1 + 1 + 4 + 32 + 4 + 4

// Envelope is the self describing verification request: one blob carrying
// the proof system, the key it targets and the proof payload.
//
// Wire layout, lengths little endian:
//
//	version      uint8
//	system tag   uint8
//	program id   uint32
//	vk hash      [32]byte
//	proof len    uint32 | proof bytes
//	inputs len   uint32 | public input bytes
type Envelope struct {
	System       backend.ProofSystem
	ProgramID    uint32
	VKHash       [32]byte
	Proof        []byte
	PublicInputs []byte
}

// ParseEnvelope decodes an envelope blob.
func ParseEnvelope(buf []byte) (*Envelope, error) {
	if len(buf) < SizeEnvelopeHeader {
		return nil, ErrInvalidProofFormat
	}
	if buf[0] != EnvelopeVersion {
		return nil, ErrInvalidProofFormat
	}
	system, err := backend.ProofSystemFromTag(buf[1])
	if err != nil {
		return nil, err
	}

	var env Envelope
	env.System = system
	env.ProgramID = binary.LittleEndian.Uint32(buf[2:6])
	copy(env.VKHash[:], buf[6:38])

	proofLen := binary.LittleEndian.Uint32(buf[38:42])
	rest := buf[42:]
	if uint64(len(rest)) < uint64(proofLen)+4 {
		return nil, ErrInvalidProofFormat
	}
	env.Proof = rest[:proofLen]
	rest = rest[proofLen:]

	inputsLen := binary.LittleEndian.Uint32(rest[:4])
	rest = rest[4:]
	if uint64(len(rest)) != uint64(inputsLen) {
		return nil, ErrInvalidProofFormat
	}
	env.PublicInputs = rest
	return &env, nil
}

// Marshal serializes the envelope in the layout ParseEnvelope accepts.
func (env *Envelope) Marshal() []byte {
	buf := make([]byte, 0, SizeEnvelopeHeader+len(env.Proof)+len(env.PublicInputs))
	buf = append(buf, EnvelopeVersion, byte(env.System))
	buf = binary.LittleEndian.AppendUint32(buf, env.ProgramID)
	buf = append(buf, env.VKHash[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(env.Proof)))
	buf = append(buf, env.Proof...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(env.PublicInputs)))
	return append(buf, env.PublicInputs...)
}

// Nullifier returns the envelope's replay nullifier, the Keccak-256 hash of
// its serialized bytes under a domain separation prefix.
func (env *Envelope) Nullifier() [32]byte {
	return kernel.Keccak256([]byte("uzkv.envelope.nullifier"), env.Marshal())
}

// VerifyEnvelope decodes a self describing verification request and routes
// it through the engine.
func (e *Engine) VerifyEnvelope(buf []byte) (bool, error) {
	env, err := ParseEnvelope(buf)
	if err != nil {
		return false, err
	}
	return e.Verify(env.System, env.VKHash, env.Proof, env.PublicInputs)
}

// VerifyEnvelopeOnce is VerifyEnvelope with replay protection: the
// envelope's nullifier is spent before verification, so the same envelope is
// accepted at most once per registry lifetime.
func (e *Engine) VerifyEnvelopeOnce(buf []byte) (bool, error) {
	env, err := ParseEnvelope(buf)
	if err != nil {
		return false, err
	}
	if err := e.registry.SpendNullifier(env.Nullifier()); err != nil {
		return false, err
	}
	return e.Verify(env.System, env.VKHash, env.Proof, env.PublicInputs)
}
