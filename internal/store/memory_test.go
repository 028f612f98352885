package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/seanblong/resumatch/pkg/models"
)

var (
	_ DocumentStore = (*Session)(nil)
	_ DocumentStore = (*Store)(nil)
)

func TestSession_Query(t *testing.T) {
	ctx := context.Background()
	s := NewSession()

	if _, ok, err := s.Query(ctx); ok || err != nil {
		t.Fatalf("Expected no query in a fresh session, got ok=%v err=%v", ok, err)
	}

	if err := s.SetQuery(ctx, models.StoredDocument{Name: "jd-1", Text: "first"}); err != nil {
		t.Fatalf("SetQuery: %v", err)
	}
	if err := s.SetQuery(ctx, models.StoredDocument{Name: "jd-2", Text: "second"}); err != nil {
		t.Fatalf("SetQuery: %v", err)
	}

	q, ok, err := s.Query(ctx)
	if err != nil || !ok {
		t.Fatalf("Expected stored query, got ok=%v err=%v", ok, err)
	}
	if q.Name != "jd-2" || q.Text != "second" {
		t.Errorf("Expected the latest query to win, got %+v", q)
	}
	if q.Role != models.RoleQuery {
		t.Errorf("Expected role %s, got %s", models.RoleQuery, q.Role)
	}
	if q.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}
}

func TestSession_Candidates(t *testing.T) {
	ctx := context.Background()
	s := NewSession()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	for _, name := range []string{"c.pdf", "a.pdf", "b.docx"} {
		if err := s.AddCandidate(ctx, models.StoredDocument{Name: name, Text: "text of " + name}); err != nil {
			t.Fatalf("AddCandidate(%s): %v", name, err)
		}
	}

	err := s.AddCandidate(ctx, models.StoredDocument{Name: "a.pdf", Text: "again"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("Expected ErrDuplicate, got %v", err)
	}

	all, err := s.Candidates(ctx)
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	want := []string{"c.pdf", "a.pdf", "b.docx"}
	if len(all) != len(want) {
		t.Fatalf("Expected %d candidates, got %d", len(want), len(all))
	}
	for i, d := range all {
		if d.Name != want[i] {
			t.Errorf("Candidate %d: expected %s, got %s", i, want[i], d.Name)
		}
		if d.Role != models.RoleCandidate || !d.CreatedAt.Equal(fixed) {
			t.Errorf("Candidate %d: unexpected metadata %+v", i, d)
		}
	}

	a, ok, err := s.Candidate(ctx, "a.pdf")
	if err != nil || !ok || a.Text != "text of a.pdf" {
		t.Errorf("Expected original a.pdf, got %+v ok=%v err=%v", a, ok, err)
	}
	if _, ok, _ := s.Candidate(ctx, "missing.pdf"); ok {
		t.Error("Expected missing candidate to be absent")
	}

	// The returned slice is a copy.
	all[0].Name = "changed"
	again, _ := s.Candidates(ctx)
	if again[0].Name != "c.pdf" {
		t.Error("Expected Candidates to return a copy")
	}
}

func TestSession_Clear(t *testing.T) {
	ctx := context.Background()
	s := NewSession()
	_ = s.SetQuery(ctx, models.StoredDocument{Name: "jd", Text: "x"})
	_ = s.AddCandidate(ctx, models.StoredDocument{Name: "a", Text: "y"})

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := s.Query(ctx); ok {
		t.Error("Expected no query after Clear")
	}
	all, _ := s.Candidates(ctx)
	if len(all) != 0 {
		t.Errorf("Expected no candidates after Clear, got %d", len(all))
	}
	if err := s.AddCandidate(ctx, models.StoredDocument{Name: "a", Text: "y"}); err != nil {
		t.Errorf("Expected name to be reusable after Clear, got %v", err)
	}
}

func TestSession_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewSession()

	if err := s.SetQuery(ctx, models.StoredDocument{Name: "jd"}); !errors.Is(err, context.Canceled) {
		t.Errorf("SetQuery: expected context.Canceled, got %v", err)
	}
	if err := s.AddCandidate(ctx, models.StoredDocument{Name: "a"}); !errors.Is(err, context.Canceled) {
		t.Errorf("AddCandidate: expected context.Canceled, got %v", err)
	}
	if _, err := s.Candidates(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Candidates: expected context.Canceled, got %v", err)
	}
}

func TestSession_ConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	s := NewSession()

	var wg sync.WaitGroup
	var mu sync.Mutex
	dups := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "resume-" + string(rune('a'+i%10))
			if err := s.AddCandidate(ctx, models.StoredDocument{Name: name}); errors.Is(err, ErrDuplicate) {
				mu.Lock()
				dups++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	all, _ := s.Candidates(ctx)
	if len(all) != 10 || dups != 40 {
		t.Errorf("Expected 10 stored and 40 duplicates, got %d and %d", len(all), dups)
	}
}

func TestMigrate_RejectsBadDimension(t *testing.T) {
	s := &Store{}
	if err := s.Migrate(context.Background(), 0); err == nil {
		t.Error("Expected error for zero dimension")
	}
}
