package facade

import (
	"github.com/PhilosopherRex/snapper/internal/manifest"
	"github.com/PhilosopherRex/snapper/internal/state"
)

// Persist writes a value under the app's own namespace (or an explicit
// one), gated by storage:write. When the manifest declares a
// config.schema, value is validated against it first (SPEC_FULL.md
// Domain Stack) — a value that fails validation is rejected before it
// ever reaches the State Store.
func (f *Facade) Persist(key string, value interface{}, opts state.PersistOptions) error {
	if err := f.requirePermission(manifest.PermStorageWrite); err != nil {
		return err
	}
	if err := manifest.ValidateConfig(f.manifest, value); err != nil {
		return err
	}
	return f.store.Persist(f.appID, key, value, opts)
}

// Restore reads a value back, gated by storage:read.
func (f *Facade) Restore(key string, def interface{}, namespace string) (interface{}, error) {
	if err := f.requirePermission(manifest.PermStorageRead); err != nil {
		return nil, err
	}
	return f.store.Restore(f.appID, key, def, namespace), nil
}

// Remove deletes a value, gated by storage:delete.
func (f *Facade) Remove(key, namespace string) error {
	if err := f.requirePermission(manifest.PermStorageDelete); err != nil {
		return err
	}
	return f.store.Remove(f.appID, key, namespace)
}

// ListKeys enumerates a namespace, gated by storage:read.
func (f *Facade) ListKeys(namespace string) ([]string, error) {
	if err := f.requirePermission(manifest.PermStorageRead); err != nil {
		return nil, err
	}
	return f.store.ListKeys(f.appID, namespace)
}

// Clear wipes a namespace, gated by storage:delete.
func (f *Facade) Clear(namespace string) error {
	if err := f.requirePermission(manifest.PermStorageDelete); err != nil {
		return err
	}
	return f.store.Clear(f.appID, namespace)
}
