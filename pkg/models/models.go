package models

import "time"

// Document is a piece of text identified by its caller-supplied name.
type Document struct {
	ID      string `json:"id"`
	RawText string `json:"raw_text"`
}

// ScoreBreakdown holds the per-signal percentages for one (query, candidate) pair.
// Optional parts are nil when their blend weight is zero.
type ScoreBreakdown struct {
	Semantic   float64  `json:"semantic"`
	Keywords   float64  `json:"keywords"`
	Education  *float64 `json:"education,omitempty"`
	Experience *float64 `json:"experience,omitempty"`
	Skills     *float64 `json:"skills,omitempty"`
	Final      float64  `json:"final"`
}

type MatchResult struct {
	CandidateID string         `json:"candidate_id"`
	Breakdown   ScoreBreakdown `json:"breakdown"`
	Degraded    bool           `json:"degraded,omitempty"`
}

// Exclusion records a candidate that could not be scored.
type Exclusion struct {
	CandidateID string `json:"candidate_id"`
	Reason      string `json:"reason"`
}

type Report struct {
	Threshold float64       `json:"threshold"`
	Count     int           `json:"count"`
	Results   []MatchResult `json:"results"`
	Excluded  []Exclusion   `json:"excluded,omitempty"`
	Degraded  bool          `json:"degraded"`
}

// Role tells the query document apart from candidates in a store.
type Role string

const (
	RoleQuery     Role = "query"
	RoleCandidate Role = "candidate"
)

// StoredDocument is an uploaded document together with its original bytes.
type StoredDocument struct {
	Name        string    `json:"name"`
	Role        Role      `json:"role"`
	ContentType string    `json:"content_type"`
	Text        string    `json:"-"`
	Data        []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// Document returns the scoring view of a stored document.
func (d StoredDocument) Document() Document {
	return Document{ID: d.Name, RawText: d.Text}
}
