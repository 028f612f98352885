package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/seanblong/resumatch/pkg/models"
)

// Session is an in-memory DocumentStore. A zero Session is not usable; create
// one with NewSession and reset it with Clear.
type Session struct {
	mu         sync.RWMutex
	query      *models.StoredDocument
	candidates []models.StoredDocument
	byName     map[string]int
	now        func() time.Time
}

func NewSession() *Session {
	return &Session{byName: make(map[string]int), now: time.Now}
}

func (s *Session) SetQuery(ctx context.Context, doc models.StoredDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc.Role = models.RoleQuery
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = &doc
	return nil
}

func (s *Session) Query(ctx context.Context) (models.StoredDocument, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.StoredDocument{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.query == nil {
		return models.StoredDocument{}, false, nil
	}
	return *s.query, true, nil
}

func (s *Session) AddCandidate(ctx context.Context, doc models.StoredDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc.Role = models.RoleCandidate
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[doc.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, doc.Name)
	}
	s.byName[doc.Name] = len(s.candidates)
	s.candidates = append(s.candidates, doc)
	return nil
}

func (s *Session) Candidates(ctx context.Context) ([]models.StoredDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.StoredDocument, len(s.candidates))
	copy(out, s.candidates)
	return out, nil
}

func (s *Session) Candidate(ctx context.Context, name string) (models.StoredDocument, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.StoredDocument{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byName[name]
	if !ok {
		return models.StoredDocument{}, false, nil
	}
	return s.candidates[i], true, nil
}

// Clear drops the query and every candidate.
func (s *Session) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = nil
	s.candidates = nil
	s.byName = make(map[string]int)
	return nil
}
