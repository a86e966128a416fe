package search

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ragavi-632007/visionx/internal/logging"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili  *Meili
	pgfts  Searcher
	logger logrus.FieldLogger
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts Searcher, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{meili: meili, pgfts: pgfts, logger: logger}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if q.OwnerID == "" {
		return Response{Results: []Result{}, Query: q.Text}
	}
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.WithError(err).Warn("Meilisearch failed, falling back to Postgres full-text search")
	}

	if s.pgfts == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}
	results, total, err := s.pgfts.Search(ctx, q)
	if err != nil {
		s.logger.WithError(err).Error("Postgres full-text search failed")
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexDocument indexes a document (fire-and-forget to Meilisearch).
func (s *Service) IndexDocument(doc DocumentRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexDocument(doc); err != nil {
			s.logger.WithError(err).WithField("document_id", doc.ID).Warn("Indexing document failed")
		}
	}()
}

// DeleteDocument removes a document from the search index (fire-and-forget).
func (s *Service) DeleteDocument(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteDocument(id); err != nil {
			s.logger.WithError(err).WithField("document_id", id).Warn("Removing document from index failed")
		}
	}()
}

// RecordLoader supplies every indexable document for a full reindex.
type RecordLoader interface {
	LoadAllRecords(ctx context.Context) ([]DocumentRecord, error)
}

// ReindexAll pushes every stored analysis to Meilisearch. Run at startup so
// an index lost with its container is rebuilt.
func (s *Service) ReindexAll(ctx context.Context, loader RecordLoader) {
	if s.meili == nil || !s.meili.Healthy() || loader == nil {
		return
	}
	records, err := loader.LoadAllRecords(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Loading records for reindex failed")
		return
	}
	if err := s.meili.IndexDocuments(records); err != nil {
		s.logger.WithError(err).Warn("Reindexing documents failed")
		return
	}
	s.logger.WithField("documents", len(records)).Info("Search index rebuilt")
}

func (s *Service) Close() {
	if s.meili != nil {
		s.meili.Close()
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
