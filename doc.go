// Package uzkv provides a multi-proof-system Zero Knowledge Proof (ZKP) verification engine.
//
// uzkv verifies the following ZKP schemes over BN254:
//   - Groth16
//   - PLONK (KZG polynomial commitments)
//   - STARK (FRI low degree testing, transparent setup)
//
// Verification keys live in a content-addressed registry; proofs are routed
// to the matching verifier by proof system tag and may be verified one at a
// time or in batches against a shared verification key. The engine never
// learns anything about the prover witness: a malformed request is an error,
// a structurally valid proof that fails its cryptographic checks is a normal
// false result.
package uzkv

import (
	"github.com/blang/semver/v4"

	"github.com/draxxycodes/Universal-ZKV-sub001/backend"
)

var Version = semver.MustParse("0.1.0")

// ProofSystems returns the proof systems supported by uzkv.
func ProofSystems() []backend.ProofSystem {
	return []backend.ProofSystem{
		backend.GROTH16,
		backend.PLONK,
		backend.STARK,
	}
}
