// Package search finds analyses by their content. Every query is scoped to
// one owner.
package search

import (
	"context"
	"strings"
	"time"

	"github.com/ragavi-632007/visionx/internal/store"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ID           string `json:"id"`
	FileName     string `json:"fileName"`
	Snippet      string `json:"snippet"`
	Language     string `json:"language"`
	Authenticity string `json:"authenticity,omitempty"`
}

// Query describes a search request.
type Query struct {
	OwnerID string
	Text    string
	Limit   int
	Offset  int
}

func (q Query) limit() int {
	if q.Limit <= 0 || q.Limit > 100 {
		return 20
	}
	return q.Limit
}

func (q Query) offset() int {
	if q.Offset < 0 {
		return 0
	}
	return q.Offset
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// DocumentRecord is the data indexed for one analyzed document.
type DocumentRecord struct {
	ID           string `json:"id"`
	OwnerID      string `json:"ownerId"`
	FileName     string `json:"fileName"`
	Summary      string `json:"summary"`
	Findings     string `json:"findings"`
	Language     string `json:"language"`
	Authenticity string `json:"authenticity"`
	CreatedAt    int64  `json:"createdAt"`
}

// RecordFromDocument flattens the analysis lists into one searchable field.
func RecordFromDocument(doc store.Document) DocumentRecord {
	var findings []string
	for _, list := range [][]string{doc.Pros, doc.Cons, doc.PotentialLoopholes, doc.PotentialChallenges} {
		findings = append(findings, list...)
	}
	record := DocumentRecord{
		ID:        doc.ID,
		OwnerID:   doc.OwnerID,
		FileName:  doc.FileName,
		Summary:   doc.Summary,
		Findings:  strings.Join(findings, "\n"),
		Language:  doc.Language,
		CreatedAt: doc.CreatedAt.UTC().Truncate(time.Second).Unix(),
	}
	if doc.Authenticity != nil {
		record.Authenticity = *doc.Authenticity
	}
	return record
}
