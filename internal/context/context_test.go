package detect

import (
	"testing"

	"github.com/fortitude-core/fortitude/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestDetect_UrgentProductionIssue(t *testing.T) {
	got := Detect("production down critical fix kubernetes deploy", model.ResearchTypeTroubleshooting)
	assert.Equal(t, model.UrgencyUrgent, got.UrgencyLevel)
	assert.Equal(t, model.DomainDevOps, got.TechnicalDomain)
}

func TestDetect_BeginnerLearning(t *testing.T) {
	got := Detect("beginner new start basics web http", model.ResearchTypeLearning)
	assert.Equal(t, model.AudienceBeginner, got.AudienceLevel)
	assert.Equal(t, model.DomainWeb, got.TechnicalDomain)
}

func TestDetect_FallsBackOnAmbiguousInput(t *testing.T) {
	got := Detect("banana purple tree", model.ResearchTypeLearning)
	assert.True(t, got.FallbackUsed)
	assert.Equal(t, model.AudienceIntermediate, got.AudienceLevel)
	assert.Equal(t, model.DomainGeneral, got.TechnicalDomain)
}

func TestDetect_NeverNegativeProcessingTime(t *testing.T) {
	got := Detect("rust async systems performance", model.ResearchTypeImplementation)
	assert.GreaterOrEqual(t, got.ProcessingTimeMs, int64(0))
}
