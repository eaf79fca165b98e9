// Package runtime holds the per-session instance graph: one planner,
// one group chat manager, one roster, a shared store handle and a
// cancellation scope per session id.
package runtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taskmesh/taskmesh/pkg/orchestrator"
)

// Session is one live session's instance graph. All orchestrator work
// for the session is serialised through its mutex: a single writer per
// session id, with distinct sessions proceeding in parallel.
type Session struct {
	ID     string
	UserID string

	manager *orchestrator.Manager

	mu         sync.Mutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	lastActive atomic.Int64 // unix nanos
}

func newSession(parent context.Context, id, userID string, build func(s *Session) *orchestrator.Manager) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{ID: id, UserID: userID, ctx: ctx, cancel: cancel}
	s.manager = build(s)
	s.touch()
	return s
}

// Manager exposes the session's group chat manager.
func (s *Session) Manager() *orchestrator.Manager { return s.manager }

// Do runs fn under the session's single-writer lock and returns its
// error. The caller's context governs the call so HTTP timeouts apply.
func (s *Session) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return fn(ctx)
}

// Go implements orchestrator.Executor: the work runs on its own
// goroutine under the same single-writer lock, scoped to the session's
// cancellation context rather than the originating request.
func (s *Session) Go(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.ctx.Err() != nil {
			return
		}
		s.touch()
		fn(s.ctx)
	}()
}

// IdleSince reports the last time the session did any work.
func (s *Session) IdleSince() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// stop cancels in-flight work and waits for the session's goroutines.
func (s *Session) stop() {
	s.cancel()
	s.wg.Wait()
}
