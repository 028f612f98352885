// Package match scores a set of candidates against one query and ranks them.
package match

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/resumatch/internal/scoring"
	"github.com/seanblong/resumatch/pkg/models"
)

var (
	ErrEmptyQuery   = errors.New("query document is empty")
	ErrNoCandidates = errors.New("no candidate documents")
)

// Service runs matching jobs. It is safe for concurrent use.
type Service struct {
	Scorer  *scoring.Scorer
	Workers int
}

// New creates a Service. A non-positive workers count uses min(NumCPU, 8).
func New(scorer *scoring.Scorer, workers int) *Service {
	return &Service{Scorer: scorer, Workers: workers}
}

func (s *Service) workers(n int) int {
	w := s.Workers
	if w <= 0 {
		// Cap at 8 to avoid overwhelming the embedding API
		w = min(runtime.NumCPU(), 8)
	}
	return max(1, min(w, n))
}

// Match scores every candidate against query and returns those with a final
// score of at least threshold, best first. weights overrides the service blend
// when non-nil. Candidates that fail to score are reported in Report.Excluded.
func (s *Service) Match(
	ctx context.Context,
	query models.Document,
	candidates []models.Document,
	threshold float64,
	weights *scoring.Weights,
) (models.Report, error) {
	if strings.TrimSpace(query.RawText) == "" {
		return models.Report{}, ErrEmptyQuery
	}
	if len(candidates) == 0 {
		return models.Report{}, ErrNoCandidates
	}

	scorer := s.Scorer
	if weights != nil {
		var err error
		if scorer, err = scorer.WithWeights(*weights); err != nil {
			return models.Report{}, err
		}
	}

	start := time.Now()
	qp, err := scorer.Prepare(ctx, query)
	if err != nil {
		return models.Report{}, err
	}

	numWorkers := s.workers(len(candidates))
	log.Info().
		Str("query", query.ID).
		Int("candidates", len(candidates)).
		Int("workers", numWorkers).
		Msg("starting match")

	type outcome struct {
		result models.MatchResult
		err    error
	}
	// Indexed by input position so ordering never depends on completion order.
	outcomes := make([]outcome, len(candidates))
	work := make(chan int, numWorkers*2)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				c := candidates[idx]
				b, degraded, err := scorer.ScorePrepared(ctx, qp, c)
				if err != nil {
					outcomes[idx] = outcome{err: err}
					continue
				}
				outcomes[idx] = outcome{result: models.MatchResult{
					CandidateID: c.ID,
					Breakdown:   b,
					Degraded:    degraded,
				}}
			}
		}()
	}

feed:
	for i := range candidates {
		select {
		case work <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(work)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return models.Report{}, err
	}

	report := models.Report{Threshold: threshold, Degraded: qp.Degraded}
	scored := make([]models.MatchResult, 0, len(candidates))
	for i, o := range outcomes {
		if o.err != nil {
			log.Warn().Err(o.err).Str("candidate", candidates[i].ID).Msg("candidate excluded")
			report.Excluded = append(report.Excluded, models.Exclusion{
				CandidateID: candidates[i].ID,
				Reason:      o.err.Error(),
			})
			continue
		}
		report.Degraded = report.Degraded || o.result.Degraded
		scored = append(scored, o.result)
	}

	report.Results = Rank(scored, threshold)
	report.Count = len(report.Results)

	log.Info().
		Int("scored", len(scored)).
		Int("selected", report.Count).
		Int("excluded", len(report.Excluded)).
		Bool("degraded", report.Degraded).
		Dur("elapsed", time.Since(start)).
		Msg("match finished")
	return report, nil
}

// Rank keeps results whose final score is at least threshold and orders them
// by final score, highest first. Ties keep their input order.
func Rank(results []models.MatchResult, threshold float64) []models.MatchResult {
	out := make([]models.MatchResult, 0, len(results))
	for _, r := range results {
		if r.Breakdown.Final >= threshold {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Breakdown.Final > out[j].Breakdown.Final
	})
	return out
}
