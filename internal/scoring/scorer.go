package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/seanblong/resumatch/pkg/models"
)

// Embedder turns texts into vectors, one per text and in the same order.
// degraded reports that placeholder vectors were served instead of real ones.
type Embedder interface {
	Embed(ctx context.Context, texts []string) (vectors [][]float32, degraded bool, err error)
}

// Profile is a document that has been normalized, chunked and embedded.
type Profile struct {
	ID         string
	Normalized string
	Chunks     []string
	Vectors    [][]float32
	Degraded   bool
}

// Scorer blends semantic coverage with lexical and heuristic signals.
// It holds no mutable state and is safe for concurrent use.
type Scorer struct {
	Embedder Embedder
	Weights  Weights
	Skills   SkillVocabulary
}

// NewScorer creates a Scorer. Weights are normalized to sum to 1.0.
func NewScorer(e Embedder, w Weights, skills SkillVocabulary) (*Scorer, error) {
	if e == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if skills == nil {
		skills = DefaultSkills()
	}
	return &Scorer{Embedder: e, Weights: w.Normalized(), Skills: skills}, nil
}

// WithWeights returns a copy of s blending with w.
func (s *Scorer) WithWeights(w Weights) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	c := *s
	c.Weights = w.Normalized()
	return &c, nil
}

// Prepare normalizes, chunks and embeds doc with a single batched call.
func (s *Scorer) Prepare(ctx context.Context, doc models.Document) (*Profile, error) {
	normalized := Normalize(doc.RawText)

	// Chunk the raw text so sentence boundaries survive normalization.
	chunks := chunksOrWhole(doc.RawText, normalized)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = Normalize(c)
	}

	vectors, degraded, err := s.Embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", doc.ID, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed %s: %w: got %d vectors for %d chunks",
			doc.ID, ErrMalformedVector, len(vectors), len(texts))
	}
	return &Profile{
		ID:         doc.ID,
		Normalized: normalized,
		Chunks:     chunks,
		Vectors:    vectors,
		Degraded:   degraded,
	}, nil
}

// chunksOrWhole falls back to the whole normalized document when raw yields
// no chunks, so a profile never has an empty chunk list.
func chunksOrWhole(raw, normalized string) []string {
	if chunks := Chunk(raw); len(chunks) > 0 {
		return chunks
	}
	return []string{normalized}
}

// Score computes the breakdown for candidate against query.
func (s *Scorer) Score(ctx context.Context, query, candidate models.Document) (models.ScoreBreakdown, bool, error) {
	qp, err := s.Prepare(ctx, query)
	if err != nil {
		return models.ScoreBreakdown{}, false, err
	}
	return s.ScorePrepared(ctx, qp, candidate)
}

// ScorePrepared scores candidate against an already prepared query.
// The returned flag is true when either side was embedded in degraded mode.
func (s *Scorer) ScorePrepared(ctx context.Context, query *Profile, candidate models.Document) (models.ScoreBreakdown, bool, error) {
	cp, err := s.Prepare(ctx, candidate)
	if err != nil {
		return models.ScoreBreakdown{}, false, err
	}
	b, err := s.Blend(query, cp)
	if err != nil {
		return models.ScoreBreakdown{}, false, err
	}
	return b, query.Degraded || cp.Degraded, nil
}

// Blend combines two prepared profiles into a breakdown.
func (s *Scorer) Blend(query, candidate *Profile) (models.ScoreBreakdown, error) {
	raw, err := Coverage(query.Vectors, candidate.Vectors)
	if err != nil {
		return models.ScoreBreakdown{}, err
	}
	w := s.Weights
	semantic := Calibrate(raw)
	keywords := LexicalOverlap(query.Normalized, candidate.Normalized)

	final := w.Semantic*semantic + w.Keywords*keywords
	b := models.ScoreBreakdown{
		Semantic: percent(semantic),
		Keywords: percent(keywords),
	}
	if w.Education > 0 {
		v := EducationScore(query.Normalized, candidate.Normalized)
		final += w.Education * v
		b.Education = ptr(percent(v))
	}
	if w.Experience > 0 {
		v := ExperienceScore(query.Normalized, candidate.Normalized)
		final += w.Experience * v
		b.Experience = ptr(percent(v))
	}
	if w.Skills > 0 {
		v := SkillScore(s.Skills, query.Normalized, candidate.Normalized)
		final += w.Skills * v
		b.Skills = ptr(percent(v))
	}
	b.Final = percent(clamp(final, 0, 1))
	return b, nil
}

// percent reports a [0,1] score as a percentage rounded to two decimals.
func percent(v float64) float64 {
	return math.Round(v*100*100) / 100
}

func ptr(v float64) *float64 { return &v }
