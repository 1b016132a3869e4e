package uzkv_test

import (
	"math/big"
	"testing"

	curve "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	uzkv "github.com/draxxycodes/Universal-ZKV-sub001"
	"github.com/draxxycodes/Universal-ZKV-sub001/backend"
	"github.com/draxxycodes/Universal-ZKV-sub001/groth16"
	"github.com/draxxycodes/Universal-ZKV-sub001/stark"
)

// groth16Fixture synthesizes a verifying key from trapdoor exponents so the
// engine tests can produce valid proofs for arbitrary statements.
type groth16Fixture struct {
	vk                        *groth16.VerifyingKey
	alpha, beta, gamma, delta fr.Element
	k                         []fr.Element
}

func newGroth16Fixture(nbPublicInputs int) *groth16Fixture {
	f := &groth16Fixture{vk: &groth16.VerifyingKey{}}
	f.alpha.SetRandom()
	f.beta.SetRandom()
	f.gamma.SetRandom()
	f.delta.SetRandom()
	f.k = make([]fr.Element, nbPublicInputs+1)

	var bi big.Int
	f.vk.G1.Alpha.ScalarMultiplicationBase(f.alpha.BigInt(&bi))
	f.vk.G2.Beta.ScalarMultiplicationBase(f.beta.BigInt(&bi))
	f.vk.G2.Gamma.ScalarMultiplicationBase(f.gamma.BigInt(&bi))
	f.vk.G2.Delta.ScalarMultiplicationBase(f.delta.BigInt(&bi))
	f.vk.G1.K = make([]curve.G1Affine, nbPublicInputs+1)
	for i := range f.k {
		f.k[i].SetRandom()
		f.vk.G1.K[i].ScalarMultiplicationBase(f.k[i].BigInt(&bi))
	}
	return f
}

func (f *groth16Fixture) prove(publicWitness []fr.Element) []byte {
	var a, b fr.Element
	a.SetRandom()
	b.SetRandom()

	vx := f.k[0]
	for i, w := range publicWitness {
		var t fr.Element
		t.Mul(&w, &f.k[i+1])
		vx.Add(&vx, &t)
	}
	var c, t fr.Element
	c.Mul(&a, &b)
	t.Mul(&f.alpha, &f.beta)
	c.Sub(&c, &t)
	t.Mul(&vx, &f.gamma)
	c.Sub(&c, &t)
	t.Inverse(&f.delta)
	c.Mul(&c, &t)

	var proof groth16.Proof
	var bi big.Int
	proof.Ar.ScalarMultiplicationBase(a.BigInt(&bi))
	proof.Bs.ScalarMultiplicationBase(b.BigInt(&bi))
	proof.Krs.ScalarMultiplicationBase(c.BigInt(&bi))
	return proof.Marshal()
}

func inputBytes(vals ...uint64) []byte {
	var buf []byte
	for _, v := range vals {
		var e fr.Element
		e.SetUint64(v)
		b := e.Bytes()
		buf = append(buf, b[:]...)
	}
	return buf
}

func witness(vals ...uint64) []fr.Element {
	w := make([]fr.Element, len(vals))
	for i, v := range vals {
		w[i].SetUint64(v)
	}
	return w
}

func TestEngineVerify(t *testing.T) {
	assert := require.New(t)

	engine, err := uzkv.New("")
	assert.NoError(err)

	f := newGroth16Fixture(1)
	hash, err := engine.RegisterVK("alice", backend.GROTH16, f.vk.Marshal())
	assert.NoError(err)
	assert.True(engine.IsVKRegistered(hash))

	proof := f.prove(witness(5))

	// proof for statement [5]
	ok, err := engine.Verify(backend.GROTH16, hash, proof, inputBytes(5))
	assert.NoError(err)
	assert.True(ok)
	count, err := engine.VerificationCount(hash)
	assert.NoError(err)
	assert.Equal(uint64(1), count)

	// same proof against statement [6]: well formed, does not verify
	ok, err = engine.Verify(backend.GROTH16, hash, proof, inputBytes(6))
	assert.NoError(err)
	assert.False(ok)
	count, err = engine.VerificationCount(hash)
	assert.NoError(err)
	assert.Equal(uint64(1), count)

	// statement of the wrong arity aborts before any pairing work
	_, err = engine.Verify(backend.GROTH16, hash, proof, inputBytes(5, 5))
	assert.ErrorIs(err, uzkv.ErrInvalidPublicInputLength)

	// claimed system must match the registration
	_, err = engine.Verify(backend.PLONK, hash, proof, inputBytes(5))
	assert.ErrorIs(err, uzkv.ErrTypeMismatch)

	// unknown key
	_, err = engine.Verify(backend.GROTH16, [32]byte{9}, proof, inputBytes(5))
	assert.ErrorIs(err, uzkv.ErrVKNotRegistered)

	// deactivated key
	assert.NoError(engine.DeactivateVK("alice", hash))
	_, err = engine.Verify(backend.GROTH16, hash, proof, inputBytes(5))
	assert.ErrorIs(err, uzkv.ErrVKInactive)
}

func TestEngineCount(t *testing.T) {
	assert := require.New(t)

	engine, err := uzkv.New("")
	assert.NoError(err)

	f := newGroth16Fixture(1)
	hash, err := engine.RegisterVK("alice", backend.GROTH16, f.vk.Marshal())
	assert.NoError(err)
	assert.Zero(engine.Count(backend.GROTH16))

	proof := f.prove(witness(5))
	ok, err := engine.Verify(backend.GROTH16, hash, proof, inputBytes(5))
	assert.NoError(err)
	assert.True(ok)
	assert.Equal(uint64(1), engine.Count(backend.GROTH16))
	assert.Zero(engine.Count(backend.PLONK))

	// a failing proof moves no counter
	ok, err = engine.Verify(backend.GROTH16, hash, proof, inputBytes(6))
	assert.NoError(err)
	assert.False(ok)
	assert.Equal(uint64(1), engine.Count(backend.GROTH16))

	// batches count one success per true element
	proofs := [][]byte{f.prove(witness(1)), f.prove(witness(2))}
	inputs := [][]byte{inputBytes(1), inputBytes(99)}
	results, err := engine.BatchVerify(backend.GROTH16, hash, proofs, inputs)
	assert.NoError(err)
	assert.Equal([]bool{true, false}, results)
	assert.Equal(uint64(2), engine.Count(backend.GROTH16))
}

func TestEnginePaused(t *testing.T) {
	assert := require.New(t)

	engine, err := uzkv.New("guardian")
	assert.NoError(err)

	f := newGroth16Fixture(1)
	hash, err := engine.RegisterVK("alice", backend.GROTH16, f.vk.Marshal())
	assert.NoError(err)

	proof := f.prove(witness(5))
	assert.NoError(engine.Registry().Pause("guardian"))

	_, err = engine.Verify(backend.GROTH16, hash, proof, inputBytes(5))
	assert.ErrorIs(err, uzkv.ErrPaused)
	_, err = engine.BatchVerify(backend.GROTH16, hash, [][]byte{proof}, [][]byte{inputBytes(5)})
	assert.ErrorIs(err, uzkv.ErrPaused)

	count, err := engine.VerificationCount(hash)
	assert.NoError(err)
	assert.Zero(count)

	assert.NoError(engine.Registry().Unpause("guardian"))
	ok, err := engine.Verify(backend.GROTH16, hash, proof, inputBytes(5))
	assert.NoError(err)
	assert.True(ok)
}

func TestEngineVerifyStarkRouting(t *testing.T) {
	assert := require.New(t)

	engine, err := uzkv.New("")
	assert.NoError(err)

	vk := &stark.VerifyingKey{TraceLength: 16, Blowup: 4, NumQueries: 4}
	hash, err := engine.RegisterVK("alice", backend.STARK, vk.Marshal())
	assert.NoError(err)

	// the request is routed to the transparent verifier, which rejects a
	// malformed proof before doing any work
	_, err = engine.Verify(backend.STARK, hash, []byte("junk"), inputBytes(1, 1, 2))
	assert.ErrorIs(err, uzkv.ErrInvalidProofFormat)
}

func TestEngineBatchVerify(t *testing.T) {
	assert := require.New(t)

	engine, err := uzkv.New("")
	assert.NoError(err)

	f := newGroth16Fixture(1)
	hash, err := engine.RegisterVK("alice", backend.GROTH16, f.vk.Marshal())
	assert.NoError(err)

	var proofs, inputs [][]byte
	for i := uint64(0); i < 4; i++ {
		proofs = append(proofs, f.prove(witness(i)))
		inputs = append(inputs, inputBytes(i))
	}

	results, err := engine.BatchVerify(backend.GROTH16, hash, proofs, inputs)
	assert.NoError(err)
	assert.Equal([]bool{true, true, true, true}, results)

	count, err := engine.VerificationCount(hash)
	assert.NoError(err)
	assert.Equal(uint64(4), count)

	// one element proves a different statement than claimed
	inputs[1] = inputBytes(77)
	results, err = engine.BatchVerify(backend.GROTH16, hash, proofs, inputs)
	assert.NoError(err)
	assert.Equal([]bool{true, false, true, true}, results)
}

func TestEngineBatchLimits(t *testing.T) {
	assert := require.New(t)

	engine, err := uzkv.New("", backend.WithBatchSizeLimit(2))
	assert.NoError(err)

	f := newGroth16Fixture(1)
	hash, err := engine.RegisterVK("alice", backend.GROTH16, f.vk.Marshal())
	assert.NoError(err)

	var proofs, inputs [][]byte
	for i := uint64(0); i < 3; i++ {
		proofs = append(proofs, f.prove(witness(i)))
		inputs = append(inputs, inputBytes(i))
	}
	_, err = engine.BatchVerify(backend.GROTH16, hash, proofs, inputs)
	assert.ErrorIs(err, uzkv.ErrBatchTooLarge)

	_, err = engine.BatchVerify(backend.GROTH16, hash, proofs[:2], inputs[:1])
	assert.Error(err)

	_, err = engine.BatchVerify(backend.GROTH16, hash, nil, nil)
	assert.Error(err)
}

func TestEnvelope(t *testing.T) {
	assert := require.New(t)

	engine, err := uzkv.New("")
	assert.NoError(err)

	f := newGroth16Fixture(1)
	hash, err := engine.RegisterVK("alice", backend.GROTH16, f.vk.Marshal())
	assert.NoError(err)

	env := &uzkv.Envelope{
		System:       backend.GROTH16,
		ProgramID:    7,
		VKHash:       hash,
		Proof:        f.prove(witness(5)),
		PublicInputs: inputBytes(5),
	}

	ok, err := engine.VerifyEnvelope(env.Marshal())
	assert.NoError(err)
	assert.True(ok)

	// replay protection
	ok, err = engine.VerifyEnvelopeOnce(env.Marshal())
	assert.NoError(err)
	assert.True(ok)
	_, err = engine.VerifyEnvelopeOnce(env.Marshal())
	assert.ErrorIs(err, uzkv.ErrNullifierSpent)

	// malformed envelopes
	_, err = engine.VerifyEnvelope([]byte{1, 2})
	assert.ErrorIs(err, uzkv.ErrInvalidProofFormat)

	bad := env.Marshal()
	bad[0] = 0xff // unknown version
	_, err = engine.VerifyEnvelope(bad)
	assert.ErrorIs(err, uzkv.ErrInvalidProofFormat)

	bad = env.Marshal()
	bad[1] = 0x42 // unknown system tag
	_, err = engine.VerifyEnvelope(bad)
	assert.ErrorIs(err, backend.ErrUnknownProofSystem)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	properties.Property("decode inverts encode", prop.ForAll(
		func(tag uint8, programID uint32, proof, inputs []byte, hashSeed []byte) bool {
			env := &uzkv.Envelope{
				System:       backend.ProofSystem(tag % 3),
				ProgramID:    programID,
				Proof:        proof,
				PublicInputs: inputs,
			}
			copy(env.VKHash[:], hashSeed)

			parsed, err := uzkv.ParseEnvelope(env.Marshal())
			if err != nil {
				return false
			}
			return parsed.System == env.System &&
				parsed.ProgramID == env.ProgramID &&
				parsed.VKHash == env.VKHash &&
				string(parsed.Proof) == string(env.Proof) &&
				string(parsed.PublicInputs) == string(env.PublicInputs)
		},
		gen.UInt8(),
		gen.UInt32(),
		gen.SliceOf(gen.UInt8()),
		gen.SliceOf(gen.UInt8()),
		gen.SliceOf(gen.UInt8()),
	))
	properties.TestingRun(t)
}

func TestProofByteFlipSoundness(t *testing.T) {
	assert := require.New(t)

	engine, err := uzkv.New("")
	assert.NoError(err)
	f := newGroth16Fixture(1)
	hash, err := engine.RegisterVK("alice", backend.GROTH16, f.vk.Marshal())
	assert.NoError(err)
	proof := f.prove(witness(5))

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)
	properties.Property("a corrupted proof never verifies", prop.ForAll(
		func(pos, mask int) bool {
			tampered := make([]byte, len(proof))
			copy(tampered, proof)
			tampered[pos] ^= byte(mask)
			ok, err := engine.Verify(backend.GROTH16, hash, tampered, inputBytes(5))
			return !ok || err != nil
		},
		gen.IntRange(0, len(proof)-1),
		gen.IntRange(1, 255),
	))
	properties.TestingRun(t)
}

func TestBatchSingleEquivalence(t *testing.T) {
	assert := require.New(t)

	engine, err := uzkv.New("")
	assert.NoError(err)
	f := newGroth16Fixture(1)
	hash, err := engine.RegisterVK("alice", backend.GROTH16, f.vk.Marshal())
	assert.NoError(err)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 10

	properties := gopter.NewProperties(parameters)
	properties.Property("batch agrees with per proof verification and is deterministic", prop.ForAll(
		func(pattern []bool) bool {
			if len(pattern) == 0 {
				return true
			}
			if len(pattern) > 8 {
				pattern = pattern[:8]
			}
			proofs := make([][]byte, len(pattern))
			inputs := make([][]byte, len(pattern))
			for i, valid := range pattern {
				proofs[i] = f.prove(witness(uint64(i)))
				if valid {
					inputs[i] = inputBytes(uint64(i))
				} else {
					inputs[i] = inputBytes(uint64(i) + 1000)
				}
			}
			batch, err := engine.BatchVerify(backend.GROTH16, hash, proofs, inputs)
			if err != nil {
				return false
			}
			again, err := engine.BatchVerify(backend.GROTH16, hash, proofs, inputs)
			if err != nil {
				return false
			}
			for i := range pattern {
				single, err := engine.Verify(backend.GROTH16, hash, proofs[i], inputs[i])
				if err != nil {
					return false
				}
				if batch[i] != pattern[i] || single != batch[i] || again[i] != batch[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Bool()),
	))
	properties.TestingRun(t)
}

func TestEstimateCost(t *testing.T) {
	assert := require.New(t)

	g := uzkv.EstimateCost(backend.GROTH16, 2)
	p := uzkv.EstimateCost(backend.PLONK, 2)
	s := uzkv.EstimateCost(backend.STARK, 3)

	assert.Equal(4, g.Pairings)
	assert.Equal(0, s.Pairings)
	assert.Greater(p.Units(), g.Units())
	assert.Positive(s.Units())
}
