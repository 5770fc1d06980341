package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// SessionStore держит сессии сборки заказа в памяти процесса.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.BuilderSession
	now      func() time.Time
}

// NewSessionStore создаёт in-memory хранилище сессий.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]domain.BuilderSession),
		now:      time.Now,
	}
}

// Get возвращает копию сессии. Истёкшая сессия считается отсутствующей.
func (s *SessionStore) Get(_ context.Context, id string) (domain.BuilderSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok || session.Expired(s.now()) {
		return domain.BuilderSession{}, domain.ErrSessionNotFound
	}
	return cloneSession(session), nil
}

func (s *SessionStore) Save(_ context.Context, session domain.BuilderSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = cloneSession(session)
	return nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// DeleteExpired удаляет самые старые истёкшие сессии, не больше limit за вызов.
func (s *SessionStore) DeleteExpired(_ context.Context, before time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := make([]domain.BuilderSession, 0)
	for _, session := range s.sessions {
		if session.Expired(before) {
			expired = append(expired, session)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpiresAt.Before(expired[j].ExpiresAt)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	for _, session := range expired {
		delete(s.sessions, session.ID)
	}
	return len(expired), nil
}

// Len возвращает число хранимых сессий, включая истёкшие.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func cloneSession(session domain.BuilderSession) domain.BuilderSession {
	if session.Cart != nil {
		session.Cart = session.Cart.Clone()
	}
	catalog := make([]domain.Agency, len(session.Catalog))
	for i, agency := range session.Catalog {
		catalog[i] = cloneAgency(agency)
	}
	session.Catalog = catalog
	return session
}

var _ domain.SessionStore = (*SessionStore)(nil)
