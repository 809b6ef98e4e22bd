package compose

import (
	"context"
	"fmt"
	"sync"
	"time"

	"feedcompose/backend"
	"feedcompose/config"
	"feedcompose/drafts"
	"feedcompose/models"
	"feedcompose/utils"
)

// Manager owns the live sessions, keyed per user, kind and record. Idle
// sessions expire from the cache; their drafts survive on disk.
type Manager struct {
	mu     sync.Mutex
	cfg    *config.Config
	client backend.Client
	drafts *drafts.Store
	events Publisher
	cache  *utils.TTLCache
	log    *utils.Logger
}

// NewManager creates a session manager with the configured idle TTL.
func NewManager(cfg *config.Config, client backend.Client, draftStore *drafts.Store, events Publisher, log *utils.Logger) *Manager {
	ttl := time.Duration(cfg.Compose.SessionTTLMinutes) * time.Minute
	return &Manager{
		cfg:    cfg,
		client: client,
		drafts: draftStore,
		events: events,
		cache:  utils.NewTTLCache(ttl),
		log:    log,
	}
}

func sessionKey(cc models.ComposerContext) string {
	return fmt.Sprintf("%s_%s_%s", cc.Kind, cc.ContextID, cc.UserID)
}

// Open returns the live session for the context, creating and opening one
// on first use. Creation runs in one critical section so two concurrent
// opens for the same context cannot race in two sessions.
func (m *Manager) Open(ctx context.Context, cc models.ComposerContext) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(cc)
	if v, ok := m.cache.Get(key); ok {
		return v.(*Session), nil
	}
	sess := NewSession(cc, m.cfg, m.client, m.drafts, m.events, m.log)
	if err := sess.Open(ctx); err != nil {
		return nil, err
	}
	m.cache.Set(key, sess)
	return sess, nil
}

// Get returns an already-open session or an error when none exists.
func (m *Manager) Get(cc models.ComposerContext) (*Session, error) {
	if v, ok := m.cache.Get(sessionKey(cc)); ok {
		return v.(*Session), nil
	}
	return nil, utils.ValidationError("error_no_session", fmt.Errorf("no open composer for %s", sessionKey(cc)))
}

// Close releases a session explicitly.
func (m *Manager) Close(cc models.ComposerContext) {
	key := sessionKey(cc)
	if v, ok := m.cache.Get(key); ok {
		v.(*Session).Close()
	}
	m.cache.Delete(key)
}

// Shutdown stops the cache janitor.
func (m *Manager) Shutdown() {
	m.cache.Close()
}
