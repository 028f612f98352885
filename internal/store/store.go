package store

import (
	"context"
	"errors"

	"github.com/seanblong/resumatch/pkg/models"
)

// ErrDuplicate is returned when a candidate with the same name is already stored.
var ErrDuplicate = errors.New("document already exists")

// DocumentStore holds one query document and an ordered set of candidates.
// Candidates come back in the order they were added.
type DocumentStore interface {
	SetQuery(ctx context.Context, doc models.StoredDocument) error
	Query(ctx context.Context) (models.StoredDocument, bool, error)
	AddCandidate(ctx context.Context, doc models.StoredDocument) error
	Candidates(ctx context.Context) ([]models.StoredDocument, error)
	Candidate(ctx context.Context, name string) (models.StoredDocument, bool, error)
	Clear(ctx context.Context) error
}
