// Package registry implements the verification key registry: content
// addressed storage of verification keys with ownership, lifecycle and usage
// accounting.
//
// Keys are addressed by the Keccak-256 hash of their proof system tag and
// serialized bytes, so registration is idempotent and a key hash commits to
// both the key material and the system that interprets it.
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/draxxycodes/Universal-ZKV-sub001/backend"
	"github.com/draxxycodes/Universal-ZKV-sub001/groth16"
	"github.com/draxxycodes/Universal-ZKV-sub001/internal/kernel"
	"github.com/draxxycodes/Universal-ZKV-sub001/plonk"
	"github.com/draxxycodes/Universal-ZKV-sub001/stark"
)

var (
	// ErrVKNotRegistered is returned when a key hash has no record.
	ErrVKNotRegistered = errors.New("verification key not registered")

	// ErrVKInactive is returned when verification is attempted against a
	// deactivated key.
	ErrVKInactive = errors.New("verification key is deactivated")

	// ErrStorageBomb is returned when a key declares more public inputs
	// than the registry accepts.
	ErrStorageBomb = errors.New("public input count exceeds registry ceiling")

	// ErrUnauthorized is returned when a caller lacks the rights for a
	// lifecycle operation.
	ErrUnauthorized = errors.New("caller not authorized")

	// ErrPaused is returned when the registry is paused by its guardian.
	ErrPaused = errors.New("registry is paused")

	// ErrNullifierSpent is returned when a nullifier is presented twice.
	ErrNullifierSpent = errors.New("nullifier already spent")
)

// Record is the stored state of one registered verification key.
type Record struct {
	Hash              [32]byte            `cbor:"1,keyasint"`
	ProofSystem       backend.ProofSystem `cbor:"2,keyasint"`
	NbPublicInputs    int                 `cbor:"3,keyasint"`
	VerifyingKey      []byte              `cbor:"4,keyasint"`
	RegisteredBy      string              `cbor:"5,keyasint"`
	RegisteredAt      time.Time           `cbor:"6,keyasint"`
	Active            bool                `cbor:"7,keyasint"`
	VerificationCount uint64              `cbor:"8,keyasint"`
}

// Registry stores verification key records. It is safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	records      map[[32]byte]*Record
	nullifiers   map[[32]byte]struct{}
	systemCounts map[backend.ProofSystem]uint64
	paused       bool

	guardian        string
	maxPublicInputs int
	now             func() time.Time
}

// Option configures a Registry at construction.
type Option func(*Registry)

// WithGuardian names the account allowed to pause the registry and
// deactivate any key.
func WithGuardian(guardian string) Option {
	return func(r *Registry) { r.guardian = guardian }
}

// WithMaxPublicInputs overrides the public input ceiling enforced at
// registration.
func WithMaxPublicInputs(n int) Option {
	return func(r *Registry) { r.maxPublicInputs = n }
}

// WithClock overrides the time source, used by tests for deterministic
// registration timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New returns an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		records:         make(map[[32]byte]*Record),
		nullifiers:      make(map[[32]byte]struct{}),
		systemCounts:    make(map[backend.ProofSystem]uint64),
		maxPublicInputs: 256,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Hash returns the content address of a verification key: the Keccak-256
// hash of the proof system tag followed by the serialized key.
func Hash(system backend.ProofSystem, vk []byte) [32]byte {
	return kernel.Keccak256([]byte{byte(system)}, vk)
}

// Register validates and stores a verification key and returns its content
// hash. Registering the same key twice is idempotent and returns the
// existing hash.
func (r *Registry) Register(caller string, system backend.ProofSystem, vk []byte) ([32]byte, error) {
	nbInputs, err := validate(system, vk)
	if err != nil {
		return [32]byte{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.paused {
		return [32]byte{}, ErrPaused
	}
	if nbInputs > r.maxPublicInputs {
		return [32]byte{}, ErrStorageBomb
	}

	hash := Hash(system, vk)
	if _, ok := r.records[hash]; ok {
		return hash, nil
	}

	stored := make([]byte, len(vk))
	copy(stored, vk)
	r.records[hash] = &Record{
		Hash:           hash,
		ProofSystem:    system,
		NbPublicInputs: nbInputs,
		VerifyingKey:   stored,
		RegisteredBy:   caller,
		RegisteredAt:   r.now(),
		Active:         true,
	}
	return hash, nil
}

// validate parses the key with the system it claims and returns its declared
// public input count.
func validate(system backend.ProofSystem, vk []byte) (int, error) {
	switch system {
	case backend.GROTH16:
		parsed, err := groth16.ParseVerifyingKey(vk)
		if err != nil {
			return 0, err
		}
		return parsed.NbPublicWitness(), nil
	case backend.PLONK:
		parsed, err := plonk.ParseVerifyingKey(vk)
		if err != nil {
			return 0, err
		}
		return int(parsed.NbPublicVariables), nil
	case backend.STARK:
		parsed, err := stark.ParseVerifyingKey(vk)
		if err != nil {
			return 0, err
		}
		return parsed.NbPublicInputs(), nil
	default:
		return 0, backend.ErrUnknownProofSystem
	}
}

// Deactivate retires a key. Only the registrant or the guardian may do so;
// deactivating an already inactive key is a no-op.
func (r *Registry) Deactivate(caller string, hash [32]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[hash]
	if !ok {
		return ErrVKNotRegistered
	}
	if caller != record.RegisteredBy && (r.guardian == "" || caller != r.guardian) {
		return ErrUnauthorized
	}
	record.Active = false
	return nil
}

// Lookup returns a copy of the record for a key hash.
func (r *Registry) Lookup(hash [32]byte) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[hash]
	if !ok {
		return Record{}, ErrVKNotRegistered
	}
	out := *record
	out.VerifyingKey = make([]byte, len(record.VerifyingKey))
	copy(out.VerifyingKey, record.VerifyingKey)
	return out, nil
}

// IsRegistered reports whether a key hash has a record, active or not.
func (r *Registry) IsRegistered(hash [32]byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[hash]
	return ok
}

// Len returns the number of registered keys.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// RecordVerification increments the usage counters of a key and its proof
// system. Called by the verification router after a proof verifies as true.
func (r *Registry) RecordVerification(hash [32]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[hash]
	if !ok {
		return ErrVKNotRegistered
	}
	record.VerificationCount++
	r.systemCounts[record.ProofSystem]++
	return nil
}

// SystemCount returns the total number of successful verifications recorded
// for a proof system across all keys.
func (r *Registry) SystemCount(system backend.ProofSystem) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.systemCounts[system]
}

// SpendNullifier marks a nullifier as consumed. Presenting the same
// nullifier again returns ErrNullifierSpent.
func (r *Registry) SpendNullifier(nullifier [32]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.paused {
		return ErrPaused
	}
	if _, ok := r.nullifiers[nullifier]; ok {
		return ErrNullifierSpent
	}
	r.nullifiers[nullifier] = struct{}{}
	return nil
}

// Pause stops registrations, verification and nullifier spends. Guardian
// only.
func (r *Registry) Pause(caller string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.guardian == "" || caller != r.guardian {
		return ErrUnauthorized
	}
	r.paused = true
	return nil
}

// Unpause resumes normal operation. Guardian only.
func (r *Registry) Unpause(caller string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.guardian == "" || caller != r.guardian {
		return ErrUnauthorized
	}
	r.paused = false
	return nil
}

// Paused reports whether the registry is paused.
func (r *Registry) Paused() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paused
}

// snapshot is the persisted registry state.
type snapshot struct {
	Records    []Record   `cbor:"1,keyasint"`
	Nullifiers [][32]byte `cbor:"2,keyasint"`
	Paused     bool       `cbor:"3,keyasint"`
}

// Snapshot serializes the registry state.
func (r *Registry) Snapshot() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := snapshot{
		Records:    make([]Record, 0, len(r.records)),
		Nullifiers: make([][32]byte, 0, len(r.nullifiers)),
		Paused:     r.paused,
	}
	for _, record := range r.records {
		snap.Records = append(snap.Records, *record)
	}
	for n := range r.nullifiers {
		snap.Nullifiers = append(snap.Nullifiers, n)
	}
	return cbor.Marshal(snap)
}

// Restore replaces the registry state with a snapshot. Every restored key is
// revalidated so a corrupted snapshot cannot smuggle in malformed keys.
func (r *Registry) Restore(data []byte) error {
	var snap snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return err
	}

	records := make(map[[32]byte]*Record, len(snap.Records))
	systemCounts := make(map[backend.ProofSystem]uint64)
	for i := range snap.Records {
		record := snap.Records[i]
		if _, err := validate(record.ProofSystem, record.VerifyingKey); err != nil {
			return err
		}
		if Hash(record.ProofSystem, record.VerifyingKey) != record.Hash {
			return errors.New("snapshot record hash mismatch")
		}
		records[record.Hash] = &record
		systemCounts[record.ProofSystem] += record.VerificationCount
	}
	nullifiers := make(map[[32]byte]struct{}, len(snap.Nullifiers))
	for _, n := range snap.Nullifiers {
		nullifiers[n] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = records
	r.nullifiers = nullifiers
	r.systemCounts = systemCounts
	r.paused = snap.Paused
	return nil
}
