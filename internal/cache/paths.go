package cache

import (
	"path/filepath"

	"github.com/fortitude-core/fortitude/internal/model"
)

// researchTypePriority is the fixed probe order used by the filesystem
// fallback path in Retrieve and Delete.
var researchTypePriority = []model.ResearchType{
	model.ResearchTypeLearning,
	model.ResearchTypeImplementation,
	model.ResearchTypeTroubleshooting,
	model.ResearchTypeDecision,
	model.ResearchTypeValidation,
}

// resultFileName is the on-disk name of every result file.
func resultFileName(key string) string {
	return key + ".json"
}

// directPath is research_results/<type>/<key>.json.
func (c *Cache) directPath(researchType model.ResearchType, key string) string {
	return filepath.Join(c.basePath, "research_results", string(researchType), resultFileName(key))
}

// contextAwarePath is research_results/<type>/context-aware/<audience>/<domain>/<urgency>/<key>.json.
func (c *Cache) contextAwarePath(researchType model.ResearchType, audience model.AudienceLevel, domain model.TechnicalDomain, urgency model.UrgencyLevel, key string) string {
	return filepath.Join(
		c.basePath, "research_results", string(researchType), "context-aware",
		string(audience), string(domain), string(urgency), resultFileName(key),
	)
}

// contextAwareRoot is research_results/<type>/context-aware/, the root a
// recursive scan walks when the direct path misses.
func (c *Cache) contextAwareRoot(researchType model.ResearchType) string {
	return filepath.Join(c.basePath, "research_results", string(researchType), "context-aware")
}

func (c *Cache) indexPath() string {
	return filepath.Join(c.basePath, "index", "cache_index.json")
}

// filePathFor computes the path a Store call should write to, choosing
// the context-aware subtree when the request carries enhanced
// classification.
func (c *Cache) filePathFor(req model.ResearchRequest, key string) string {
	enhanced := req.EnhancedClassification()
	if enhanced == nil {
		return c.directPath(req.ResearchType(), key)
	}
	return c.contextAwarePath(req.ResearchType(), enhanced.AudienceLevel, enhanced.TechnicalDomain, enhanced.UrgencyLevel, key)
}
