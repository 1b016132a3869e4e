package stark

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	fiatshamir "github.com/consensys/gnark-crypto/fiat-shamir"

	"github.com/draxxycodes/Universal-ZKV-sub001/backend"
	"github.com/draxxycodes/Universal-ZKV-sub001/internal/kernel"
	"github.com/draxxycodes/Universal-ZKV-sub001/logger"
)

// Verify checks a STARK proof against a verifying key and the public
// statement [a_0, b_0, result].
//
// A structurally valid proof that fails a cryptographic check returns
// (false, nil); malformed requests return an error.
func Verify(proof *Proof, vk *VerifyingKey, publicInputs []fr.Element, opts ...backend.VerifierOption) (bool, error) {
	log := logger.Logger().With().Str("curve", "bn254").Str("backend", "stark").Logger()
	start := time.Now()

	cfg, err := backend.NewVerifierConfig(opts...)
	if err != nil {
		return false, err
	}
	if len(publicInputs) != vk.NbPublicInputs() {
		return false, kernel.ErrInvalidPublicInputLength
	}
	if err := validateShape(proof, vk); err != nil {
		return false, err
	}

	oodFrame, oodComp, err := parseOOD(&proof.OOD)
	if err != nil {
		return false, err
	}
	remainder, err := parseScalars(proof.Remainder)
	if err != nil {
		return false, err
	}

	// transcript: the verifier replays the prover's challenge schedule
	challenges := make([]string, 0, vk.nbLayers+3)
	challenges = append(challenges, "air.alpha", "ood.zeta")
	for i := 0; i < vk.nbLayers; i++ {
		challenges = append(challenges, "fri.alpha."+strconv.Itoa(i))
	}
	challenges = append(challenges, "queries")
	fs := fiatshamir.NewTranscript(cfg.ChallengeHash(), challenges...)

	alpha, err := deriveChallenge(fs, "air.alpha", proof.TraceRoot)
	if err != nil {
		return false, err
	}
	zeta, err := deriveChallenge(fs, "ood.zeta", proof.CompositionRoot)
	if err != nil {
		return false, err
	}
	friAlphas := make([]fr.Element, vk.nbLayers)
	oodBytes := make([][]byte, 0, 5)
	oodBytes = append(oodBytes, proof.OOD.Current[0], proof.OOD.Current[1],
		proof.OOD.Next[0], proof.OOD.Next[1], proof.OOD.Comp)
	friAlphas[0], err = deriveChallenge(fs, "fri.alpha.0", oodBytes...)
	if err != nil {
		return false, err
	}
	for i := 1; i < vk.nbLayers; i++ {
		friAlphas[i], err = deriveChallenge(fs, "fri.alpha."+strconv.Itoa(i), proof.FriRoots[i-1])
		if err != nil {
			return false, err
		}
	}
	seed, err := deriveQuerySeed(fs, proof.Remainder)
	if err != nil {
		return false, err
	}

	// out of domain constraint check: comp(z) must match the combined
	// constraint value recomputed from the trace frame at z
	want, ok := evalConstraints(vk, oodFrame, zeta, alpha, publicInputs)
	if !ok || !want.Equal(&oodComp) {
		return false, nil
	}

	// queries bind the committed evaluations to the FRI folding chain
	positions := queryPositions(seed, vk)
	seen := bitset.New(uint(vk.ldeSize))
	for i, pos := range positions {
		if seen.Test(uint(pos)) {
			continue
		}
		seen.Set(uint(pos))
		ok, err := verifyQuery(proof, vk, &cfg, &proof.Queries[i], pos, alpha, friAlphas, remainder, publicInputs)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	log.Debug().Dur("took", time.Since(start)).Msg("verifier done")
	return true, nil
}

// validateShape rejects proofs whose structure does not match the verifying
// key before any field element is parsed.
func validateShape(proof *Proof, vk *VerifyingKey) error {
	if len(proof.TraceRoot) != 32 || len(proof.CompositionRoot) != 32 {
		return kernel.ErrInvalidProofFormat
	}
	if len(proof.FriRoots) != vk.nbLayers-1 {
		return kernel.ErrInvalidProofFormat
	}
	for _, root := range proof.FriRoots {
		if len(root) != 32 {
			return kernel.ErrInvalidProofFormat
		}
	}
	if len(proof.Remainder) == 0 || len(proof.Remainder) > maxRemainderDegree+1 {
		return kernel.ErrInvalidProofFormat
	}
	if len(proof.Queries) != int(vk.NumQueries) {
		return kernel.ErrInvalidProofFormat
	}
	for i := range proof.Queries {
		if len(proof.Queries[i].Layers) != vk.nbLayers {
			return kernel.ErrInvalidProofFormat
		}
	}
	return nil
}

func parseOOD(ood *OODFrame) (*evaluationFrame, fr.Element, error) {
	var frame evaluationFrame
	var comp fr.Element
	vals, err := parseScalars([][]byte{ood.Current[0], ood.Current[1], ood.Next[0], ood.Next[1], ood.Comp})
	if err != nil {
		return nil, comp, err
	}
	frame.aCur, frame.bCur = vals[0], vals[1]
	frame.aNext, frame.bNext = vals[2], vals[3]
	comp = vals[4]
	return &frame, comp, nil
}

// verifyQuery checks one query position end to end: trace openings against
// the trace commitment, consistency of the committed composition value with
// the constraints, and the FRI folding chain down to the remainder.
func verifyQuery(proof *Proof, vk *VerifyingKey, cfg *backend.VerifierConfig, q *QueryProof, pos uint64, alpha fr.Element, friAlphas, remainder, publicInputs []fr.Element) (bool, error) {
	h := cfg.ChallengeHash()
	n := vk.ldeSize
	nextPos := (pos + uint64(vk.Blowup)) % n

	row, err := parseScalars(q.TraceRow.Values[:])
	if err != nil {
		return false, err
	}
	rowNext, err := parseScalars(q.TraceRowNext.Values[:])
	if err != nil {
		return false, err
	}
	if !verifyOpening(h, proof.TraceRoot, rowLeaf(q.TraceRow.Values), q.TraceRow.ProofSet, pos, n) {
		return false, nil
	}
	if !verifyOpening(h, proof.TraceRoot, rowLeaf(q.TraceRowNext.Values), q.TraceRowNext.ProofSet, nextPos, n) {
		return false, nil
	}

	frame := evaluationFrame{aCur: row[0], bCur: row[1], aNext: rowNext[0], bNext: rowNext[1]}
	x := layerPoint(vk, 0, pos)
	want, ok := evalConstraints(vk, &frame, x, alpha, publicInputs)
	if !ok {
		return false, nil
	}

	// walk the folding chain; layer 0 is the composition commitment
	prev := pos
	var folded fr.Element
	for level := 0; level < vk.nbLayers; level++ {
		nl := n >> uint(level)
		il := prev % (nl / 2)

		opening := &q.Layers[level]
		lo, err := kernel.UnmarshalScalar(opening.Lo)
		if err != nil {
			return false, err
		}
		hi, err := kernel.UnmarshalScalar(opening.Hi)
		if err != nil {
			return false, err
		}
		root := proof.CompositionRoot
		if level > 0 {
			root = proof.FriRoots[level-1]
		}
		if !verifyOpening(h, root, opening.Lo, opening.LoProof, il, nl) {
			return false, nil
		}
		if !verifyOpening(h, root, opening.Hi, opening.HiProof, il+nl/2, nl) {
			return false, nil
		}

		at := lo
		if prev >= nl/2 {
			at = hi
		}
		if level == 0 {
			// the committed composition value must reproduce the
			// constraints evaluated from the trace openings
			if !at.Equal(&want) {
				return false, nil
			}
		} else if !at.Equal(&folded) {
			return false, nil
		}

		folded = friFold(lo, hi, friAlphas[level], layerPoint(vk, level, il))
		prev = il
	}

	rem := evalRemainder(remainder, layerPoint(vk, vk.nbLayers, prev))
	return rem.Equal(&folded), nil
}

func rowLeaf(values [2][]byte) []byte {
	leaf := make([]byte, 0, 2*kernel.SizeFr)
	leaf = append(leaf, values[0]...)
	return append(leaf, values[1]...)
}

// queryPositions expands the query seed into NumQueries positions on the
// evaluation domain by counter mode hashing.
func queryPositions(seed []byte, vk *VerifyingKey) []uint64 {
	positions := make([]uint64, vk.NumQueries)
	var counter [8]byte
	for i := range positions {
		binary.BigEndian.PutUint64(counter[:], uint64(i))
		digest := kernel.Keccak256(seed, counter[:])
		positions[i] = binary.BigEndian.Uint64(digest[:8]) % vk.ldeSize
	}
	return positions
}

func deriveChallenge(fs *fiatshamir.Transcript, name string, data ...[]byte) (fr.Element, error) {
	var r fr.Element
	for _, d := range data {
		if err := fs.Bind(name, d); err != nil {
			return r, err
		}
	}
	b, err := fs.ComputeChallenge(name)
	if err != nil {
		return r, err
	}
	r.SetBytes(b)
	return r, nil
}

func deriveQuerySeed(fs *fiatshamir.Transcript, remainder [][]byte) ([]byte, error) {
	for _, c := range remainder {
		if err := fs.Bind("queries", c); err != nil {
			return nil, err
		}
	}
	return fs.ComputeChallenge("queries")
}
