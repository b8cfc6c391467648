// Package state implements the State Store (spec §4.5): a namespaced,
// TTL-aware, optionally-encrypted key/value store backed by the
// filesystem with an in-memory mirror of recently touched entries.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PhilosopherRex/snapper/internal/apperr"
	"github.com/PhilosopherRex/snapper/internal/logging"
)

var unsafeChar = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// sanitize replaces every character outside [A-Za-z0-9_-] with '_'
// (spec §4.5). Lossy by design; callers are expected to use sane keys.
func sanitize(s string) string {
	return unsafeChar.ReplaceAllString(s, "_")
}

// Entry is the on-disk/in-memory representation of one stored value
// (spec §6, state file shape).
type Entry struct {
	Value     interface{} `json:"value"`
	CreatedAt int64       `json:"createdAt"`
	ExpiresAt int64       `json:"expiresAt,omitempty"`
	Encrypted bool        `json:"encrypted"`
	Version   int         `json:"version"`
}

func (e *Entry) expired(now time.Time) bool {
	return e.ExpiresAt != 0 && now.UnixMilli() >= e.ExpiresAt
}

// PersistOptions configures a Persist call.
type PersistOptions struct {
	Namespace string
	TTL       time.Duration
	Encrypted bool
	Sync      bool
}

// ChangeEvent is emitted to OnChange listeners when Sync is requested on
// a Persist call.
type ChangeEvent struct {
	Namespace string
	Key       string
	AppID     string
}

// Cipher pairs the optional encrypt/decrypt hooks. A nil Cipher means
// encryption is unavailable; Persist then honors Encrypted silently
// (spec §7, EncryptionUnavailable is silent, not an error) and Restore
// simply cannot read back anything under .enc.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// Stats is the result of GetStats.
type Stats struct {
	TotalEntries   int
	TotalSize      int64
	ExpiredEntries int
	OldestEntry    time.Time
	NewestEntry    time.Time
}

// Store is the filesystem-backed, namespace-partitioned key/value store.
//
// Grounded on the teacher's per-plugin storage layer (streamspace
// internal/plugins/database.go), which partitions by plugin name the way
// this store partitions by namespace; ported from a Postgres
// table-per-plugin scheme to a directory-per-namespace scheme per
// spec §4.5 (explicitly filesystem-backed, single-process). The
// onChange subscribe/unsubscribe closures are ported from the teacher's
// event bus pattern (internal/plugins/event_bus.go).
type Store struct {
	basePath string
	cipher   Cipher

	mu     sync.Mutex
	memory map[string]map[string]*Entry // namespace -> key -> entry

	changeMu sync.Mutex
	onChange []*changeListener
}

type changeListener struct {
	id      string
	handler func(ChangeEvent)
}

// New creates a Store rooted at basePath. cipher may be nil.
func New(basePath string, cipher Cipher) *Store {
	return &Store{
		basePath: basePath,
		cipher:   cipher,
		memory:   make(map[string]map[string]*Entry),
	}
}

func (s *Store) namespaceDir(namespace string) string {
	return filepath.Join(s.basePath, sanitize(namespace))
}

func (s *Store) jsonPath(namespace, key string) string {
	return filepath.Join(s.namespaceDir(namespace), sanitize(key)+".json")
}

func (s *Store) encPath(namespace, key string) string {
	return filepath.Join(s.namespaceDir(namespace), sanitize(key)+".enc")
}

func resolveNamespace(appID, namespace string) string {
	if namespace != "" {
		return namespace
	}
	return appID
}

// Persist writes value under (namespace, key), creating parent
// directories as needed. File mode is owner-only (0600). If opts.TTL is
// non-zero, the entry expires at now+TTL. If opts.Encrypted and a cipher
// is configured, the serialized entry is encrypted before writing and
// stored under the .enc extension; otherwise Encrypted is ignored, not
// an error. If opts.Sync, a ChangeEvent fires before Persist returns.
func (s *Store) Persist(appID, key string, value interface{}, opts PersistOptions) error {
	namespace := resolveNamespace(appID, opts.Namespace)
	now := time.Now()

	entry := &Entry{
		Value:     value,
		CreatedAt: now.UnixMilli(),
		Encrypted: opts.Encrypted && s.cipher != nil,
		Version:   1,
	}
	if opts.TTL > 0 {
		entry.ExpiresAt = now.Add(opts.TTL).UnixMilli()
	}

	s.mu.Lock()
	if s.memory[namespace] == nil {
		s.memory[namespace] = make(map[string]*Entry)
	}
	s.memory[namespace][key] = entry
	s.mu.Unlock()

	raw, err := json.Marshal(entry)
	if err != nil {
		return apperr.Wrap(apperr.CodeCorruptEntry, "failed to marshal entry", err)
	}

	dir := s.namespaceDir(namespace)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	target := s.jsonPath(namespace, key)
	if entry.Encrypted {
		raw, err = s.cipher.Encrypt(raw)
		if err != nil {
			return apperr.Wrap(apperr.CodeEncryptionUnavailable, "encryption failed", err)
		}
		target = s.encPath(namespace, key)
		// Remove a stale plaintext copy so Restore's .enc-first probe
		// doesn't shadow-read it.
		_ = os.Remove(s.jsonPath(namespace, key))
	} else {
		_ = os.Remove(s.encPath(namespace, key))
	}

	if err := writeAtomic(target, raw, 0o600); err != nil {
		return err
	}

	if opts.Sync {
		s.emitChange(ChangeEvent{Namespace: namespace, Key: key, AppID: appID})
	}
	return nil
}

// writeAtomic writes data to a sibling temp file and renames it over
// path, so a concurrent reader never observes a partially written file
// (design note §9).
func writeAtomic(path string, data []byte, mode os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Restore looks up (namespace, key), consulting the in-memory mirror
// first. Any I/O or parse failure, or an expired entry, yields def.
func (s *Store) Restore(appID, key string, def interface{}, namespace string) interface{} {
	ns := resolveNamespace(appID, namespace)
	now := time.Now()

	s.mu.Lock()
	if entries, ok := s.memory[ns]; ok {
		if entry, ok := entries[key]; ok {
			if entry.expired(now) {
				delete(entries, key)
				s.mu.Unlock()
				return def
			}
			s.mu.Unlock()
			return entry.Value
		}
	}
	s.mu.Unlock()

	entry, ok := s.loadFromDisk(ns, key)
	if !ok {
		return def
	}
	if entry.expired(now) {
		return def
	}
	if entry.Version != 1 {
		logging.Component("state").Warn().Str("namespace", ns).Str("key", key).Msg("entry version mismatch")
	}

	s.mu.Lock()
	if s.memory[ns] == nil {
		s.memory[ns] = make(map[string]*Entry)
	}
	s.memory[ns][key] = entry
	s.mu.Unlock()

	return entry.Value
}

// loadFromDisk tries .enc then .json, decrypting as needed. Decrypt
// failures and plaintext parse failures are logged as a CorruptEntry; an
// encrypted entry with no cipher configured is logged as a warning. Every
// failure, a missing file included, is treated as not-found (spec §7).
func (s *Store) loadFromDisk(namespace, key string) (*Entry, bool) {
	if raw, err := os.ReadFile(s.encPath(namespace, key)); err == nil {
		if s.cipher == nil {
			logging.Component("state").Warn().Str("namespace", namespace).Str("key", key).
				Msg("encrypted entry found but no cipher configured")
			return nil, false
		}
		plain, err := s.cipher.Decrypt(raw)
		if err != nil {
			logging.Component("state").Warn().Err(apperr.CorruptEntry(s.encPath(namespace, key), err)).Msg("failed to decrypt entry")
			return nil, false
		}
		var entry Entry
		if err := json.Unmarshal(plain, &entry); err != nil {
			return nil, false
		}
		return &entry, true
	}

	raw, err := os.ReadFile(s.jsonPath(namespace, key))
	if err != nil {
		return nil, false
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		logging.Component("state").Warn().Err(apperr.CorruptEntry(s.jsonPath(namespace, key), err)).Msg("failed to parse entry")
		return nil, false
	}
	return &entry, true
}

// Remove deletes the memory entry and both possible on-disk files for
// (namespace, key). Missing files are not errors.
func (s *Store) Remove(appID, key, namespace string) error {
	ns := resolveNamespace(appID, namespace)

	s.mu.Lock()
	if entries, ok := s.memory[ns]; ok {
		delete(entries, key)
	}
	s.mu.Unlock()

	if err := os.Remove(s.jsonPath(ns, key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(s.encPath(ns, key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ListKeys enumerates the namespace directory, returning the keys of
// non-expired entries. A missing directory yields an empty list.
func (s *Store) ListKeys(appID, namespace string) ([]string, error) {
	ns := resolveNamespace(appID, namespace)
	dir := s.namespaceDir(ns)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	now := time.Now()
	seen := make(map[string]bool)
	var keys []string
	for _, de := range entries {
		name := de.Name()
		ext := filepath.Ext(name)
		if ext != ".json" && ext != ".enc" {
			continue
		}
		key := name[:len(name)-len(ext)]
		if seen[key] {
			continue
		}
		entry, ok := s.loadFromDisk(ns, key)
		if !ok || entry.expired(now) {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear drops the memory namespace and recursively removes its
// directory. Missing is fine.
func (s *Store) Clear(appID, namespace string) error {
	ns := resolveNamespace(appID, namespace)

	s.mu.Lock()
	delete(s.memory, ns)
	s.mu.Unlock()

	if err := os.RemoveAll(s.namespaceDir(ns)); err != nil {
		return err
	}
	return nil
}

// ClearExpired enumerates the namespace directory without filtering,
// removes every expired entry, and returns the count removed. This is
// the sole operation that inspects expired entries directly rather than
// filtering them out (spec §4.5).
func (s *Store) ClearExpired(appID, namespace string) (int, error) {
	ns := resolveNamespace(appID, namespace)
	dir := s.namespaceDir(ns)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	now := time.Now()
	removed := 0
	seen := make(map[string]bool)
	for _, de := range entries {
		name := de.Name()
		ext := filepath.Ext(name)
		if ext != ".json" && ext != ".enc" {
			continue
		}
		key := name[:len(name)-len(ext)]
		if seen[key] {
			continue
		}
		seen[key] = true

		entry, ok := s.loadFromDisk(ns, key)
		if !ok || !entry.expired(now) {
			continue
		}
		if err := s.Remove(appID, key, ns); err != nil {
			logging.Component("state").Warn().Err(err).Str("key", key).Msg("failed to remove expired entry")
			continue
		}
		removed++
	}
	return removed, nil
}

// GetStats computes aggregate statistics over the namespace's currently
// visible (non-expired) entries.
func (s *Store) GetStats(appID, namespace string) (Stats, error) {
	ns := resolveNamespace(appID, namespace)
	keys, err := s.ListKeys(appID, ns)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, key := range keys {
		info, err := os.Stat(s.jsonPath(ns, key))
		if err != nil {
			info, err = os.Stat(s.encPath(ns, key))
			if err != nil {
				continue
			}
		}
		stats.TotalEntries++
		stats.TotalSize += info.Size()
		if stats.OldestEntry.IsZero() || info.ModTime().Before(stats.OldestEntry) {
			stats.OldestEntry = info.ModTime()
		}
		if stats.NewestEntry.IsZero() || info.ModTime().After(stats.NewestEntry) {
			stats.NewestEntry = info.ModTime()
		}
	}
	return stats, nil
}

// OnChange subscribes handler to Sync-triggered change events, returning
// an unsubscribe closure. Listeners are tracked by a stable generated id
// rather than a captured slice index, so unsubscribing one listener out
// of order never misidentifies another (matches the id-based removal in
// internal/hooks and internal/bus).
func (s *Store) OnChange(handler func(ChangeEvent)) func() {
	s.changeMu.Lock()
	defer s.changeMu.Unlock()
	id := uuid.NewString()
	s.onChange = append(s.onChange, &changeListener{id: id, handler: handler})

	return func() {
		s.changeMu.Lock()
		defer s.changeMu.Unlock()
		for i, l := range s.onChange {
			if l.id == id {
				s.onChange = append(s.onChange[:i], s.onChange[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) emitChange(ev ChangeEvent) {
	s.changeMu.Lock()
	listeners := make([]*changeListener, len(s.onChange))
	copy(listeners, s.onChange)
	s.changeMu.Unlock()

	for _, l := range listeners {
		l.handler(ev)
	}
}

// Namespaces lists every namespace directory currently on disk
// (SPEC_FULL addition — spec.md has no enumeration-of-namespaces
// operation, but the façade and cmd/snapperd demo both need a way to
// list what an app has touched without already knowing its namespace
// names).
func (s *Store) Namespaces() ([]string, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
