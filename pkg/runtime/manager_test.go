package runtime

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/taskmesh/pkg/llm/llmtest"
	"github.com/taskmesh/taskmesh/pkg/store"
	"github.com/taskmesh/taskmesh/pkg/tools"
)

func newTestRuntime(t *testing.T, cfg Config) (*Manager, *store.MemoryStore) {
	t.Helper()
	registry, err := tools.LoadEmbeddedCatalogs(slog.Default())
	require.NoError(t, err)
	memStore := store.NewMemoryStore()
	m := NewManager(cfg, memStore, llmtest.NewScriptedClient(), registry, slog.Default())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m, memStore
}

func TestRuntime_GetOrCreatePersistsSessionDocument(t *testing.T) {
	ctx := context.Background()
	m, memStore := newTestRuntime(t, Config{})

	s, err := m.GetOrCreate(ctx, "s1", "u1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, "u1", s.UserID)
	assert.NotNil(t, s.Manager())
	assert.Equal(t, 1, m.ActiveSessions())

	doc, err := memStore.GetSession(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "active", doc.CurrentStatus)
}

func TestRuntime_GetOrCreateReturnsSameInstance(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestRuntime(t, Config{})

	first, err := m.GetOrCreate(ctx, "s1", "u1")
	require.NoError(t, err)
	second, err := m.GetOrCreate(ctx, "s1", "u1")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, m.ActiveSessions())
}

func TestRuntime_SessionOwnershipEnforced(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestRuntime(t, Config{})

	_, err := m.GetOrCreate(ctx, "s1", "u1")
	require.NoError(t, err)
	_, err = m.GetOrCreate(ctx, "s1", "u2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "belongs to another user")
}

func TestRuntime_SessionsSerialiseWork(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestRuntime(t, Config{})
	s, err := m.GetOrCreate(ctx, "s1", "u1")
	require.NoError(t, err)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			_ = s.Do(ctx, func(context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Len(t, order, 10)
}

func TestRuntime_GoSkipsAfterStop(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestRuntime(t, Config{})
	s, err := m.GetOrCreate(ctx, "s1", "u1")
	require.NoError(t, err)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(shutdownCtx))

	ran := make(chan struct{}, 1)
	s.Go(func(context.Context) { ran <- struct{}{} })
	select {
	case <-ran:
		t.Fatal("work submitted after shutdown must not run")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRuntime_IdleSessionsEvicted(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestRuntime(t, Config{
		IdleTimeout:   20 * time.Millisecond,
		SweepInterval: 10 * time.Millisecond,
	})
	_, err := m.GetOrCreate(ctx, "s1", "u1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return m.ActiveSessions() == 0
	}, 2*time.Second, 10*time.Millisecond, "idle session should be swept")
}

func TestRuntime_ShutdownDrains(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestRuntime(t, Config{})
	s, err := m.GetOrCreate(ctx, "s1", "u1")
	require.NoError(t, err)

	started := make(chan struct{})
	s.Go(func(context.Context) {
		close(started)
		time.Sleep(30 * time.Millisecond)
	})
	<-started

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(shutdownCtx))
	assert.Equal(t, 0, m.ActiveSessions())
}
