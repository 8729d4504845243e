package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketplace-assistant/internal/faq"
)

const maxSearchLimit = 20

// RuleLister exposes the FAQ table
type RuleLister interface {
	Rules() []*faq.Rule
}

// RuleSearcher runs full-text search over the FAQ table
type RuleSearcher interface {
	Search(query string, limit int) ([]faq.SearchHit, error)
}

// FAQHandler serves the FAQ table
type FAQHandler struct {
	rules  RuleLister
	index  RuleSearcher
	logger *zap.Logger
}

// NewFAQHandler creates a new FAQ handler
func NewFAQHandler(rules RuleLister, index RuleSearcher, logger *zap.Logger) *FAQHandler {
	return &FAQHandler{
		rules:  rules,
		index:  index,
		logger: logger,
	}
}

type faqEntry struct {
	ID       string   `json:"id"`
	Category string   `json:"category"`
	Question string   `json:"question"`
	Answer   string   `json:"answer,omitempty"`
	Patterns []string `json:"patterns"`
	Score    float64  `json:"score,omitempty"`
}

func toEntry(r *faq.Rule) faqEntry {
	return faqEntry{
		ID:       r.ID,
		Category: r.Category,
		Question: r.Question,
		Answer:   r.Answer,
		Patterns: r.Patterns,
	}
}

// List returns every FAQ rule in evaluation order
// GET /api/v1/faq
func (h *FAQHandler) List(c *gin.Context) {
	category := strings.ToLower(strings.TrimSpace(c.Query("category")))

	rules := h.rules.Rules()
	entries := make([]faqEntry, 0, len(rules))
	for _, r := range rules {
		if category != "" && r.Category != category {
			continue
		}
		entries = append(entries, toEntry(r))
	}

	c.JSON(http.StatusOK, gin.H{
		"faqs":  entries,
		"count": len(entries),
	})
}

// Search ranks FAQ rules against free text
// GET /api/v1/faq/search?q=&limit=
func (h *FAQHandler) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter q is required"})
		return
	}

	limit := 5
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxSearchLimit {
			limit = parsed
		}
	}

	hits, err := h.index.Search(q, limit)
	if err != nil {
		h.logger.Error("faq search failed", zap.Error(err), zap.String("query", q))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search FAQ"})
		return
	}

	results := make([]faqEntry, 0, len(hits))
	for _, hit := range hits {
		e := toEntry(hit.Rule)
		e.Score = hit.Score
		results = append(results, e)
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   q,
		"results": results,
		"count":   len(results),
	})
}
