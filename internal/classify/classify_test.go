package classify

import (
	"testing"

	"github.com/fortitude-core/fortitude/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Implementation(t *testing.T) {
	res := Classify("implement configure setup async worker")
	require.NotEmpty(t, res.MatchedKeywords)
	assert.Equal(t, model.ResearchTypeImplementation, res.Type)
	assert.Greater(t, res.Confidence, 0.0)
}

func TestClassify_Troubleshooting(t *testing.T) {
	res := Classify("debug crash panic exception fail")
	assert.Equal(t, model.ResearchTypeTroubleshooting, res.Type)
}

func TestClassify_NeverErrorsOnAmbiguousInput(t *testing.T) {
	res := Classify("banana tree color purple")
	assert.Equal(t, model.ResearchTypeLearning, res.Type)
	assert.Less(t, res.Confidence, DefaultCandidateThreshold+0.2)
	assert.Empty(t, res.Candidates)
}

func TestClassify_ThresholdFiltersWeakCandidates(t *testing.T) {
	res := Classify("fix issue")
	for _, c := range res.Candidates {
		assert.GreaterOrEqual(t, c.Confidence, DefaultCandidateThreshold)
	}
}
