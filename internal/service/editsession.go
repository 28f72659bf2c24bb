package service

import (
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/cardlink-app/cardlink-web/internal/usecase"
)

// EditSession bundles the per-session editor state: the draft with its image
// handles, and the delayed-confirmation flows for the destructive account
// actions.
type EditSession struct {
	Draft      *usecase.DraftUsecase
	Delete     *ConfirmFlow
	CancelPlan *ConfirmFlow
}

// EditSessionRegistry holds one EditSession per browser session, expiring
// idle ones so abandoned drafts cannot leak image handles. Eviction tears
// the session down, which releases every tracked handle.
type EditSessionRegistry struct {
	mu       sync.Mutex
	sessions *cache.Cache
	build    func(ownerID string) *EditSession
	logger   *zap.Logger
}

func NewEditSessionRegistry(idleTTL time.Duration, build func(ownerID string) *EditSession, logger *zap.Logger) *EditSessionRegistry {
	c := cache.New(idleTTL, idleTTL/2)
	c.OnEvicted(func(sessionID string, v any) {
		if s, ok := v.(*EditSession); ok {
			s.Draft.Close()
			logger.Info("edit session evicted", zap.String("session", sessionID))
		}
	})
	return &EditSessionRegistry{sessions: c, build: build, logger: logger}
}

// Acquire returns the session's editor state, creating it on first use. Each
// access renews the idle timer. The get-then-build is serialized so two
// concurrent requests for the same id never race a second EditSession into
// existence and strand the first one's handles.
func (r *EditSessionRegistry) Acquire(sessionID string, ownerID string) *EditSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.sessions.Get(sessionID); ok {
		if s, ok := v.(*EditSession); ok {
			r.sessions.SetDefault(sessionID, s)
			return s
		}
	}
	s := r.build(ownerID)
	r.sessions.SetDefault(sessionID, s)
	r.logger.Info("edit session created", zap.String("session", sessionID))
	return s
}

// Drop tears a session down immediately (logout, account deletion).
func (r *EditSessionRegistry) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.sessions.Get(sessionID); ok {
		if s, ok := v.(*EditSession); ok {
			s.Draft.Close()
		}
	}
	r.sessions.Delete(sessionID)
}
