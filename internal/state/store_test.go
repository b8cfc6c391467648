package state_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PhilosopherRex/snapper/internal/state"
)

func TestPersist_And_Restore(t *testing.T) {
	s := state.New(t.TempDir(), nil)
	err := s.Persist("app-a", "greeting", "hello", state.PersistOptions{})
	require.NoError(t, err)

	got := s.Restore("app-a", "greeting", "default", "")
	assert.Equal(t, "hello", got)
}

func TestRestore_DefaultNamespaceIsAppID(t *testing.T) {
	s := state.New(t.TempDir(), nil)
	require.NoError(t, s.Persist("app-a", "k", "v", state.PersistOptions{}))

	assert.Equal(t, "v", s.Restore("app-a", "k", nil, ""))
	assert.Nil(t, s.Restore("app-b", "k", nil, ""))
}

func TestRestore_ExplicitNamespace(t *testing.T) {
	s := state.New(t.TempDir(), nil)
	require.NoError(t, s.Persist("app-a", "k", "shared-value", state.PersistOptions{Namespace: "shared"}))
	assert.Equal(t, "shared-value", s.Restore("app-b", "k", nil, "shared"))
}

func TestRestore_MissingKeyReturnsDefault(t *testing.T) {
	s := state.New(t.TempDir(), nil)
	assert.Equal(t, "fallback", s.Restore("app-a", "missing", "fallback", ""))
}

func TestPersist_TTLExpiration(t *testing.T) {
	s := state.New(t.TempDir(), nil)
	require.NoError(t, s.Persist("app-a", "k", "v", state.PersistOptions{TTL: 10 * time.Millisecond}))
	assert.Equal(t, "v", s.Restore("app-a", "k", nil, ""))

	time.Sleep(30 * time.Millisecond)
	assert.Nil(t, s.Restore("app-a", "k", nil, ""))
}

func TestRemove(t *testing.T) {
	s := state.New(t.TempDir(), nil)
	require.NoError(t, s.Persist("app-a", "k", "v", state.PersistOptions{}))
	require.NoError(t, s.Remove("app-a", "k", ""))
	assert.Nil(t, s.Restore("app-a", "k", nil, ""))

	// Removing an already-missing key is not an error.
	require.NoError(t, s.Remove("app-a", "k", ""))
}

func TestListKeys(t *testing.T) {
	s := state.New(t.TempDir(), nil)
	require.NoError(t, s.Persist("app-a", "b", "1", state.PersistOptions{}))
	require.NoError(t, s.Persist("app-a", "a", "2", state.PersistOptions{}))
	require.NoError(t, s.Persist("app-a", "expired", "3", state.PersistOptions{TTL: time.Millisecond}))
	time.Sleep(10 * time.Millisecond)

	keys, err := s.ListKeys("app-a", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)
}

func TestListKeys_MissingNamespaceIsEmpty(t *testing.T) {
	s := state.New(t.TempDir(), nil)
	keys, err := s.ListKeys("nope", "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestClear(t *testing.T) {
	s := state.New(t.TempDir(), nil)
	require.NoError(t, s.Persist("app-a", "k", "v", state.PersistOptions{}))
	require.NoError(t, s.Clear("app-a", ""))
	assert.Nil(t, s.Restore("app-a", "k", nil, ""))

	keys, err := s.ListKeys("app-a", "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestClearExpired(t *testing.T) {
	s := state.New(t.TempDir(), nil)
	require.NoError(t, s.Persist("app-a", "live", "1", state.PersistOptions{}))
	require.NoError(t, s.Persist("app-a", "dead", "2", state.PersistOptions{TTL: time.Millisecond}))
	time.Sleep(10 * time.Millisecond)

	removed, err := s.ClearExpired("app-a", "")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	keys, _ := s.ListKeys("app-a", "")
	assert.Equal(t, []string{"live"}, keys)
}

func TestEncryptedRoundTrip(t *testing.T) {
	var key [32]byte
	copy(key[:], []byte("0123456789abcdef0123456789abcdef"))
	cipher := state.NewSecretboxCipher(key)
	s := state.New(t.TempDir(), cipher)

	require.NoError(t, s.Persist("app-a", "secret", "top-secret", state.PersistOptions{Encrypted: true}))
	assert.Equal(t, "top-secret", s.Restore("app-a", "secret", nil, ""))
}

func TestPersist_EncryptedIgnoredWithoutCipher(t *testing.T) {
	s := state.New(t.TempDir(), nil)
	require.NoError(t, s.Persist("app-a", "k", "v", state.PersistOptions{Encrypted: true}))
	assert.Equal(t, "v", s.Restore("app-a", "k", nil, ""))
}

func TestOnChange_FiresOnSync(t *testing.T) {
	s := state.New(t.TempDir(), nil)
	var got state.ChangeEvent
	unsubscribe := s.OnChange(func(ev state.ChangeEvent) { got = ev })
	defer unsubscribe()

	require.NoError(t, s.Persist("app-a", "k", "v", state.PersistOptions{Sync: true}))
	assert.Equal(t, "app-a", got.Namespace)
	assert.Equal(t, "k", got.Key)
}

func TestOnChange_UnsubscribeOutOfOrderRemovesCorrectListener(t *testing.T) {
	s := state.New(t.TempDir(), nil)
	var aCalls, bCalls, cCalls int

	unsubA := s.OnChange(func(state.ChangeEvent) { aCalls++ })
	unsubB := s.OnChange(func(state.ChangeEvent) { bCalls++ })
	_ = s.OnChange(func(state.ChangeEvent) { cCalls++ })

	unsubA()

	require.NoError(t, s.Persist("app-a", "k", "v", state.PersistOptions{Sync: true}))
	assert.Equal(t, 0, aCalls)
	assert.Equal(t, 1, bCalls)
	assert.Equal(t, 1, cCalls)

	unsubB()
	require.NoError(t, s.Persist("app-a", "k2", "v2", state.PersistOptions{Sync: true}))
	assert.Equal(t, 1, bCalls)
	assert.Equal(t, 2, cCalls)
}

func TestGetStats(t *testing.T) {
	s := state.New(t.TempDir(), nil)
	require.NoError(t, s.Persist("app-a", "k1", "v1", state.PersistOptions{}))
	require.NoError(t, s.Persist("app-a", "k2", "v2", state.PersistOptions{}))

	stats, err := s.GetStats("app-a", "")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalEntries)
	assert.Greater(t, stats.TotalSize, int64(0))
}
