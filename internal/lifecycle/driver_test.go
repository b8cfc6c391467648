package lifecycle_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PhilosopherRex/snapper/internal/lifecycle"
	"github.com/PhilosopherRex/snapper/internal/manifest"
	"github.com/PhilosopherRex/snapper/internal/registry"
)

func testManifest() *manifest.Manifest {
	return &manifest.Manifest{
		ID:          "dummy-app",
		Name:        "Dummy App",
		Entry:       "./index.js",
		Permissions: []manifest.Permission{},
		OpenClaw:    manifest.OpenClaw{MinVersion: "1.0.0"},
	}
}

func newApp(t *testing.T) *registry.App {
	t.Helper()
	r := registry.New()
	app, err := r.Register(testManifest())
	require.NoError(t, err)
	return app
}

// recordingInstance implements OnActivate/OnSuspend/OnDestroy so the
// driver's lifecycle-hook type assertions (driver.go) are actually
// exercised instead of silently no-oping against a bare string value.
type recordingInstance struct {
	activateCalls int
	suspendCalls  int
	destroyCalls  int
}

func (r *recordingInstance) OnActivate(ctx context.Context) error {
	r.activateCalls++
	return nil
}

func (r *recordingInstance) OnSuspend(ctx context.Context) error {
	r.suspendCalls++
	return nil
}

func (r *recordingInstance) OnDestroy(ctx context.Context) error {
	r.destroyCalls++
	return nil
}

func TestCanTransition_FullTable(t *testing.T) {
	cases := []struct {
		from, to lifecycle.State
		want     bool
	}{
		{lifecycle.StateRegistered, lifecycle.StateLoading, true},
		{lifecycle.StateLoading, lifecycle.StateLoaded, true},
		{lifecycle.StateLoading, lifecycle.StateError, true},
		{lifecycle.StateLoaded, lifecycle.StateActivating, true},
		{lifecycle.StateLoaded, lifecycle.StateUnloading, true},
		{lifecycle.StateActivating, lifecycle.StateActive, true},
		{lifecycle.StateActive, lifecycle.StateSuspending, true},
		{lifecycle.StateActive, lifecycle.StateUnloading, true},
		{lifecycle.StateSuspending, lifecycle.StateSuspended, true},
		{lifecycle.StateSuspended, lifecycle.StateActivating, true},
		{lifecycle.StateSuspended, lifecycle.StateUnloading, true},
		{lifecycle.StateUnloading, lifecycle.StateRegistered, true},
		{lifecycle.StateUnloading, lifecycle.StateError, true},
		{lifecycle.StateError, lifecycle.StateUnloading, true},
		{lifecycle.StateRegistered, lifecycle.StateActive, false},
		{lifecycle.StateActive, lifecycle.StateLoading, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, lifecycle.CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestDriver_FullHappyPathLifecycle(t *testing.T) {
	r := registry.New()
	app, err := r.Register(testManifest())
	require.NoError(t, err)

	d := lifecycle.New()
	ctx := context.Background()

	require.NoError(t, d.Load(ctx, app, nil))
	assert.Equal(t, lifecycle.StateLoaded, app.State())

	inst := &recordingInstance{}
	require.NoError(t, d.Activate(ctx, app, func(context.Context) (*lifecycle.Instance, error) {
		return &lifecycle.Instance{Value: inst}, nil
	}))
	assert.Equal(t, lifecycle.StateActive, app.State())
	assert.Same(t, inst, app.Instance().Value)
	assert.Equal(t, 1, inst.activateCalls)

	ok, err := d.Suspend(ctx, app)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, lifecycle.StateSuspended, app.State())
	assert.Equal(t, 1, inst.suspendCalls)

	require.NoError(t, d.Activate(ctx, app, func(context.Context) (*lifecycle.Instance, error) {
		return &lifecycle.Instance{Value: inst}, nil
	}))
	assert.Equal(t, lifecycle.StateActive, app.State())
	assert.Equal(t, 2, inst.activateCalls)

	ok, err = d.Unload(ctx, app)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, lifecycle.StateRegistered, app.State())
	assert.Nil(t, app.Instance())
	assert.Equal(t, 1, inst.destroyCalls)
	assert.Equal(t, 1, inst.suspendCalls)
}

func TestDriver_LoadPreconditionViolated(t *testing.T) {
	app := newApp(t)
	d := lifecycle.New()
	ctx := context.Background()

	require.NoError(t, d.Load(ctx, app, nil))
	err := d.Load(ctx, app, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRECONDITION_VIOLATED")
}

func TestDriver_LoadFailureEntersErrorState(t *testing.T) {
	app := newApp(t)
	d := lifecycle.New()
	ctx := context.Background()

	loadErr := errors.New("boom")
	err := d.Load(ctx, app, func(context.Context) error { return loadErr })
	require.Error(t, err)
	assert.Equal(t, lifecycle.StateError, app.State())
	assert.Equal(t, loadErr, app.LastError())
}

func TestDriver_ErrorRecoverableOnlyViaUnload(t *testing.T) {
	app := newApp(t)
	d := lifecycle.New()
	ctx := context.Background()

	_ = d.Load(ctx, app, func(context.Context) error { return errors.New("boom") })
	require.Equal(t, lifecycle.StateError, app.State())

	err := d.Load(ctx, app, nil)
	require.Error(t, err)

	ok, err := d.Unload(ctx, app)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, lifecycle.StateRegistered, app.State())
	assert.Nil(t, app.LastError())
}

func TestDriver_SuspendNoopWhenNotActive(t *testing.T) {
	app := newApp(t)
	d := lifecycle.New()
	ctx := context.Background()

	ok, err := d.Suspend(ctx, app)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, lifecycle.StateRegistered, app.State())
}

func TestDriver_UnloadNoopWhenAlreadyRegistered(t *testing.T) {
	app := newApp(t)
	d := lifecycle.New()
	ctx := context.Background()

	ok, err := d.Unload(ctx, app)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDriver_HistoryBounded(t *testing.T) {
	app := newApp(t)
	d := lifecycle.New()
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		require.NoError(t, d.Load(ctx, app, nil))
		ok, err := d.Unload(ctx, app)
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.LessOrEqual(t, len(app.History()), 50)
}
