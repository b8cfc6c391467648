package hooks_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PhilosopherRex/snapper/internal/hooks"
	"github.com/PhilosopherRex/snapper/internal/manifest"
)

func TestOn_PriorityOrdering(t *testing.T) {
	r := hooks.New()
	var order []string
	var mu sync.Mutex

	record := func(name string) hooks.Handler {
		return func(payload interface{}) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	r.On(manifest.EventSessionStart, record("low"), hooks.Options{Priority: 0})
	r.On(manifest.EventSessionStart, record("high"), hooks.Options{Priority: 10})
	r.On(manifest.EventSessionStart, record("mid-a"), hooks.Options{Priority: 5})
	r.On(manifest.EventSessionStart, record("mid-b"), hooks.Options{Priority: 5})

	r.Emit(manifest.EventSessionStart, nil)

	assert.Equal(t, []string{"high", "mid-a", "mid-b", "low"}, order)
}

func TestOnce_FiresExactlyOnce(t *testing.T) {
	r := hooks.New()
	calls := 0
	r.Once(manifest.EventToolError, func(payload interface{}) error {
		calls++
		return nil
	}, hooks.Options{})

	r.Emit(manifest.EventToolError, nil)
	r.Emit(manifest.EventToolError, nil)
	assert.Equal(t, 1, calls)
	assert.False(t, r.HasHandlers(manifest.EventToolError))
}

func TestUnsubscribe(t *testing.T) {
	r := hooks.New()
	calls := 0
	unsubscribe := r.On(manifest.EventBeforeTool, func(payload interface{}) error {
		calls++
		return nil
	}, hooks.Options{})

	r.Emit(manifest.EventBeforeTool, nil)
	unsubscribe()
	r.Emit(manifest.EventBeforeTool, nil)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, r.Count(manifest.EventBeforeTool))
}

func TestEmit_FilterSkipsNonMatching(t *testing.T) {
	r := hooks.New()
	var got []int
	r.On(manifest.EventAfterTool, func(payload interface{}) error {
		got = append(got, payload.(int))
		return nil
	}, hooks.Options{Filter: func(payload interface{}) bool {
		return payload.(int) > 5
	}})

	r.Emit(manifest.EventAfterTool, 3)
	r.Emit(manifest.EventAfterTool, 9)
	assert.Equal(t, []int{9}, got)
}

func TestEmit_HandlerErrorDoesNotBlockOthers(t *testing.T) {
	r := hooks.New()
	var secondCalled bool
	r.On(manifest.EventSessionEnd, func(payload interface{}) error {
		return errors.New("boom")
	}, hooks.Options{Priority: 1})
	r.On(manifest.EventSessionEnd, func(payload interface{}) error {
		secondCalled = true
		return nil
	}, hooks.Options{Priority: 0})

	require.NotPanics(t, func() {
		r.Emit(manifest.EventSessionEnd, nil)
	})
	assert.True(t, secondCalled)
}

func TestEmit_HandlerPanicDoesNotBlockOthers(t *testing.T) {
	r := hooks.New()
	var secondCalled bool
	r.On(manifest.EventBeforeAgent, func(payload interface{}) error {
		panic("kaboom")
	}, hooks.Options{Priority: 1})
	r.On(manifest.EventBeforeAgent, func(payload interface{}) error {
		secondCalled = true
		return nil
	}, hooks.Options{Priority: 0})

	require.NotPanics(t, func() {
		r.Emit(manifest.EventBeforeAgent, nil)
	})
	assert.True(t, secondCalled)
}

func TestEmit_AsyncHandlerIsAwaitedBeforeNextHandlerRuns(t *testing.T) {
	r := hooks.New()
	var order []string
	var mu sync.Mutex
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	r.On(manifest.EventSessionStart, func(payload interface{}) error {
		time.Sleep(20 * time.Millisecond)
		record("slow-async")
		return nil
	}, hooks.Options{Priority: 1, Async: true})
	r.On(manifest.EventSessionStart, func(payload interface{}) error {
		record("next")
		return nil
	}, hooks.Options{Priority: 0})

	r.Emit(manifest.EventSessionStart, nil)

	assert.Equal(t, []string{"slow-async", "next"}, order)
}

func TestClear(t *testing.T) {
	r := hooks.New()
	r.On(manifest.EventSessionStart, func(interface{}) error { return nil }, hooks.Options{})
	r.On(manifest.EventSessionEnd, func(interface{}) error { return nil }, hooks.Options{})

	r.Clear(manifest.EventSessionStart)
	assert.False(t, r.HasHandlers(manifest.EventSessionStart))
	assert.True(t, r.HasHandlers(manifest.EventSessionEnd))

	r.Clear("")
	assert.False(t, r.HasHandlers(manifest.EventSessionEnd))
}
