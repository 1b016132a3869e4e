package uzkv

import (
	"github.com/draxxycodes/Universal-ZKV-sub001/backend"
)

// Cost models the relative expense of one verification, in abstract units
// roughly proportional to wall time on commodity hardware. Pairing
// evaluations dominate the pairing based systems; the transparent system
// pays per query instead.
type Cost struct {
	Pairings        int
	ScalarMuls      int
	HashInvocations int
}

// Units flattens the cost model to a single comparable number.
func (c Cost) Units() int {
	return 1000*c.Pairings + 30*c.ScalarMuls + c.HashInvocations
}

// EstimateCost returns the verification cost model for a proof system given
// the public input count. Batch callers can use it to pick between folding
// and per proof checks.
func EstimateCost(system backend.ProofSystem, nbPublicInputs int) Cost {
	switch system {
	case backend.GROTH16:
		// one 4-pair product plus the public witness multi exponentiation
		return Cost{Pairings: 4, ScalarMuls: nbPublicInputs}
	case backend.PLONK:
		// two KZG opening checks of 2 pairings each, digest folding and
		// the transcript
		return Cost{Pairings: 4, ScalarMuls: 16 + nbPublicInputs, HashInvocations: 32}
	case backend.STARK:
		// no pairings: Merkle path hashing across queries dominates
		return Cost{HashInvocations: 4096}
	default:
		return Cost{}
	}
}
