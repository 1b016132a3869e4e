package registry_test

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/draxxycodes/Universal-ZKV-sub001/backend"
	"github.com/draxxycodes/Universal-ZKV-sub001/registry"
	"github.com/draxxycodes/Universal-ZKV-sub001/stark"
)

func starkVKBytes(t *testing.T) []byte {
	t.Helper()
	vk := &stark.VerifyingKey{TraceLength: 16, Blowup: 4, NumQueries: 4}
	return vk.Marshal()
}

var fixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestRegistry(opts ...registry.Option) *registry.Registry {
	opts = append(opts, registry.WithClock(func() time.Time { return fixedTime }))
	return registry.New(opts...)
}

func TestRegisterAndLookup(t *testing.T) {
	assert := require.New(t)

	r := newTestRegistry()
	vk := starkVKBytes(t)
	hash, err := r.Register("alice", backend.STARK, vk)
	assert.NoError(err)
	assert.Equal(registry.Hash(backend.STARK, vk), hash)
	assert.True(r.IsRegistered(hash))
	assert.Equal(1, r.Len())

	record, err := r.Lookup(hash)
	assert.NoError(err)
	want := registry.Record{
		Hash:           hash,
		ProofSystem:    backend.STARK,
		NbPublicInputs: 3,
		VerifyingKey:   vk,
		RegisteredBy:   "alice",
		RegisteredAt:   fixedTime,
		Active:         true,
	}
	assert.Empty(cmp.Diff(want, record))
}

func TestRegisterIdempotent(t *testing.T) {
	assert := require.New(t)

	r := newTestRegistry()
	vk := starkVKBytes(t)
	h1, err := r.Register("alice", backend.STARK, vk)
	assert.NoError(err)
	h2, err := r.Register("bob", backend.STARK, vk)
	assert.NoError(err)
	assert.Equal(h1, h2)
	assert.Equal(1, r.Len())

	// the original registrant keeps ownership
	record, err := r.Lookup(h1)
	assert.NoError(err)
	assert.Equal("alice", record.RegisteredBy)
}

func TestRegisterRejectsMalformedKey(t *testing.T) {
	assert := require.New(t)

	r := newTestRegistry()
	_, err := r.Register("alice", backend.STARK, []byte{1, 2, 3})
	assert.Error(err)
	assert.Equal(0, r.Len())

	_, err = r.Register("alice", backend.ProofSystem(0x42), starkVKBytes(t))
	assert.ErrorIs(err, backend.ErrUnknownProofSystem)
}

func TestRegisterStorageBomb(t *testing.T) {
	assert := require.New(t)

	r := newTestRegistry(registry.WithMaxPublicInputs(2))
	_, err := r.Register("alice", backend.STARK, starkVKBytes(t))
	assert.ErrorIs(err, registry.ErrStorageBomb)
}

func TestDeactivate(t *testing.T) {
	assert := require.New(t)

	r := newTestRegistry(registry.WithGuardian("guardian"))
	hash, err := r.Register("alice", backend.STARK, starkVKBytes(t))
	assert.NoError(err)

	assert.ErrorIs(r.Deactivate("mallory", hash), registry.ErrUnauthorized)

	assert.NoError(r.Deactivate("alice", hash))
	record, err := r.Lookup(hash)
	assert.NoError(err)
	assert.False(record.Active)

	// idempotent, and the guardian may deactivate too
	assert.NoError(r.Deactivate("guardian", hash))

	assert.ErrorIs(r.Deactivate("alice", [32]byte{1}), registry.ErrVKNotRegistered)
}

func TestRecordVerification(t *testing.T) {
	assert := require.New(t)

	r := newTestRegistry()
	hash, err := r.Register("alice", backend.STARK, starkVKBytes(t))
	assert.NoError(err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.NoError(r.RecordVerification(hash))
			}
		}()
	}
	wg.Wait()

	record, err := r.Lookup(hash)
	assert.NoError(err)
	assert.Equal(uint64(800), record.VerificationCount)
	assert.Equal(uint64(800), r.SystemCount(backend.STARK))
	assert.Zero(r.SystemCount(backend.GROTH16))
}

func TestLookupReturnsCopy(t *testing.T) {
	assert := require.New(t)

	r := newTestRegistry()
	vk := starkVKBytes(t)
	hash, err := r.Register("alice", backend.STARK, vk)
	assert.NoError(err)

	record, err := r.Lookup(hash)
	assert.NoError(err)
	for i := range record.VerifyingKey {
		record.VerifyingKey[i] = 0xff
	}

	record, err = r.Lookup(hash)
	assert.NoError(err)
	assert.Equal(vk, record.VerifyingKey)
}

func TestSpendNullifier(t *testing.T) {
	assert := require.New(t)

	r := newTestRegistry()
	n := [32]byte{0xaa}
	assert.NoError(r.SpendNullifier(n))
	assert.ErrorIs(r.SpendNullifier(n), registry.ErrNullifierSpent)
	assert.NoError(r.SpendNullifier([32]byte{0xbb}))
}

func TestPause(t *testing.T) {
	assert := require.New(t)

	r := newTestRegistry(registry.WithGuardian("guardian"))
	assert.ErrorIs(r.Pause("mallory"), registry.ErrUnauthorized)

	assert.NoError(r.Pause("guardian"))
	assert.True(r.Paused())
	_, err := r.Register("alice", backend.STARK, starkVKBytes(t))
	assert.ErrorIs(err, registry.ErrPaused)
	assert.ErrorIs(r.SpendNullifier([32]byte{1}), registry.ErrPaused)

	assert.NoError(r.Unpause("guardian"))
	_, err = r.Register("alice", backend.STARK, starkVKBytes(t))
	assert.NoError(err)
}

func TestPauseWithoutGuardian(t *testing.T) {
	assert := require.New(t)

	r := newTestRegistry()
	assert.ErrorIs(r.Pause("anyone"), registry.ErrUnauthorized)
}

func TestSnapshotRestore(t *testing.T) {
	assert := require.New(t)

	r := newTestRegistry()
	hash, err := r.Register("alice", backend.STARK, starkVKBytes(t))
	assert.NoError(err)
	assert.NoError(r.RecordVerification(hash))
	assert.NoError(r.SpendNullifier([32]byte{0xcc}))

	snap, err := r.Snapshot()
	assert.NoError(err)

	restored := newTestRegistry()
	assert.NoError(restored.Restore(snap))

	want, err := r.Lookup(hash)
	assert.NoError(err)
	got, err := restored.Lookup(hash)
	assert.NoError(err)
	assert.Empty(cmp.Diff(want, got))

	// spent nullifiers and per system totals survive the round trip
	assert.ErrorIs(restored.SpendNullifier([32]byte{0xcc}), registry.ErrNullifierSpent)
	assert.Equal(uint64(1), restored.SystemCount(backend.STARK))
}

func TestRestoreRejectsCorruptSnapshot(t *testing.T) {
	assert := require.New(t)

	r := newTestRegistry()
	assert.Error(r.Restore([]byte("not cbor")))
}
