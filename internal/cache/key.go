package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/fortitude-core/fortitude/internal/model"
)

// ComputeKey derives the deterministic fallback cache key for a request
// that has no pipeline-assigned metadata.cache_key. It is referentially
// transparent: the same request produces the same key regardless of set
// insertion order (I2), because frameworks and tags are lowercased and
// sorted before hashing.
func ComputeKey(req model.ResearchRequest) string {
	var b strings.Builder
	b.WriteString(req.NormalizedQuery())
	b.WriteString("|research_type:")
	b.WriteString(string(req.ResearchType()))
	b.WriteString("|audience:")
	b.WriteString(string(req.AudienceContext().Level))
	b.WriteString("|domain:")
	b.WriteString(req.DomainContext().Technology)

	frameworks := lowerSorted(req.DomainContext().Frameworks)
	b.WriteString("|frameworks:")
	b.WriteString(strings.Join(frameworks, ","))

	tags := lowerSorted(req.DomainContext().Tags)
	b.WriteString("|tags:")
	b.WriteString(strings.Join(tags, ","))

	enhanced := req.EnhancedClassification()
	if enhanced != nil {
		b.WriteString("|enhanced_audience:")
		b.WriteString(string(enhanced.AudienceLevel))
		b.WriteString("|enhanced_domain:")
		b.WriteString(string(enhanced.TechnicalDomain))
		b.WriteString("|enhanced_urgency:")
		b.WriteString(string(enhanced.UrgencyLevel))
		b.WriteString("|confidence_band:")
		b.WriteString(string(model.ConfidenceBandOf(enhanced.OverallConfidence)))
	}

	sum := sha256.Sum256([]byte(b.String()))
	hash := hex.EncodeToString(sum[:])

	if enhanced != nil {
		return "enhanced-" + hash
	}
	return hash
}

func lowerSorted(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	sort.Strings(out)
	return out
}

// ContentHash computes the stable hash of serialized result bytes, used
// for dedup diagnostics (CacheEntry.content_hash).
func ContentHash(serialized []byte) string {
	sum := sha256.Sum256(serialized)
	return hex.EncodeToString(sum[:])
}
