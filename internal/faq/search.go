package faq

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"go.uber.org/zap"
)

const defaultSearchLimit = 5

// SearchHit is a ranked FAQ entry returned by Index.Search
type SearchHit struct {
	Rule  *Rule   `json:"rule"`
	Score float64 `json:"score"`
}

// Index is a full-text index over the FAQ table, used for browsing and
// suggestions. It never takes part in chat matching.
type Index struct {
	index  bleve.Index
	rules  map[string]*Rule
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewIndex builds an in-memory index over the matcher's rules
func NewIndex(m *Matcher, logger *zap.Logger) (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create faq index: %w", err)
	}

	ix := &Index{
		index:  idx,
		rules:  make(map[string]*Rule),
		logger: logger,
	}

	if err := ix.indexRules(m.Rules()); err != nil {
		idx.Close()
		return nil, err
	}

	logger.Info("faq search index built", zap.Int("documents", len(ix.rules)))

	return ix, nil
}

func buildIndexMapping() mapping.IndexMapping {
	faqMapping := bleve.NewDocumentMapping()

	faqMapping.AddFieldMappingsAt("question", bleve.NewTextFieldMapping())
	faqMapping.AddFieldMappingsAt("answer", bleve.NewTextFieldMapping())
	faqMapping.AddFieldMappingsAt("category", bleve.NewTextFieldMapping())

	// Regex sources are noisy; keep them out of the default field
	patterns := bleve.NewTextFieldMapping()
	patterns.IncludeInAll = false
	faqMapping.AddFieldMappingsAt("patterns", patterns)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", faqMapping)

	return indexMapping
}

func (ix *Index) indexRules(rules []*Rule) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	batch := ix.index.NewBatch()
	for _, r := range rules {
		doc := map[string]interface{}{
			"question": r.Question,
			"answer":   r.Answer,
			"category": r.Category,
			"patterns": strings.Join(r.Patterns, " "),
		}
		if err := batch.Index(r.ID, doc); err != nil {
			return fmt.Errorf("failed to index faq %s: %w", r.ID, err)
		}
		ix.rules[r.ID] = r
	}

	if err := ix.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to batch index faqs: %w", err)
	}

	return nil
}

// Search returns up to limit FAQ entries ranked by relevance to the query
func (ix *Index) Search(query string, limit int) ([]SearchHit, error) {
	q := Normalize(query)
	if q == "" {
		return []SearchHit{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(q), limit, 0, false)
	res, err := ix.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("faq search failed: %w", err)
	}

	hits := make([]SearchHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		r, ok := ix.rules[h.ID]
		if !ok {
			continue
		}
		hits = append(hits, SearchHit{Rule: r, Score: h.Score})
	}

	ix.logger.Debug("faq search completed",
		zap.String("query", q),
		zap.Int("hits", len(hits)))

	return hits, nil
}

// Close releases the index
func (ix *Index) Close() error {
	return ix.index.Close()
}
