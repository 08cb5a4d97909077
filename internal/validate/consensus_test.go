package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fortitude-core/fortitude/internal/model"
	"github.com/fortitude-core/fortitude/internal/quality"
)

func scored(provider, response string, composite float64) providerResult {
	return providerResult{
		provider: provider,
		response: response,
		quality:  quality.Result{Composite: composite},
	}
}

func TestGenerateConsensus_SingleResult_ReturnsItsOwnQuality(t *testing.T) {
	results := []providerResult{scored("openai", "goroutines are lightweight threads", 0.7)}

	answer, confidence := GenerateConsensus(results, model.ConsensusWeightedVote)

	assert.Equal(t, "goroutines are lightweight threads", answer)
	assert.Equal(t, 0.7, confidence)
}

func TestGenerateConsensus_NoResults_ReturnsZeroConfidence(t *testing.T) {
	answer, confidence := GenerateConsensus(nil, model.ConsensusWeightedVote)

	assert.Equal(t, "", answer)
	assert.Equal(t, 0.0, confidence)
}

func TestGenerateConsensus_WeightedVote_PicksHighestQualityAndDividesByN(t *testing.T) {
	results := []providerResult{
		scored("openai", "low quality answer", 0.3),
		scored("anthropic", "best quality answer", 0.9),
		scored("mistral", "mid quality answer", 0.5),
	}

	answer, confidence := GenerateConsensus(results, model.ConsensusWeightedVote)

	assert.Equal(t, "best quality answer", answer)
	assert.InDelta(t, 0.9/3.0, confidence, 1e-9)
}

func TestGenerateConsensus_BestQuality_ConfidenceIsScoreItself(t *testing.T) {
	results := []providerResult{
		scored("openai", "low quality answer", 0.3),
		scored("anthropic", "best quality answer", 0.9),
	}

	answer, confidence := GenerateConsensus(results, model.ConsensusBestQuality)

	assert.Equal(t, "best quality answer", answer)
	assert.Equal(t, 0.9, confidence)
}

func TestGenerateConsensus_MajorityVote_PicksLargestGroupsBestMember(t *testing.T) {
	results := []providerResult{
		scored("openai", "goroutines are lightweight concurrent execution units in Go", 0.6),
		scored("anthropic", "goroutines are lightweight concurrent execution threads within runtime", 0.8),
		scored("mistral", "channels synchronize communication between separate tasks entirely", 0.95),
	}

	answer, confidence := GenerateConsensus(results, model.ConsensusMajorityVote)

	assert.Equal(t, "goroutines are lightweight concurrent execution threads within runtime", answer)
	assert.InDelta(t, 2.0/3.0, confidence, 1e-9)
}

func TestGenerateConsensus_MajorityVote_AllDistinctFallsBackToSingletonBest(t *testing.T) {
	results := []providerResult{
		scored("openai", "first distinct answer text", 0.4),
		scored("anthropic", "second distinct answer text", 0.9),
		scored("mistral", "third distinct answer text", 0.5),
	}

	answer, confidence := GenerateConsensus(results, model.ConsensusMajorityVote)

	assert.Equal(t, "second distinct answer text", answer)
	assert.InDelta(t, 1.0/3.0, confidence, 1e-9)
}

func TestGenerateConsensus_EnsembleMerge_AppendsSentencesWithNewSignificantWords(t *testing.T) {
	results := []providerResult{
		scored("anthropic", "Goroutines are lightweight threads managed by the runtime.", 0.9),
		scored("openai", "Goroutines are lightweight threads managed by the runtime. Channels provide safe communication between concurrent workers across processor cores.", 0.6),
	}

	answer, confidence := GenerateConsensus(results, model.ConsensusEnsembleMerge)

	assert.Contains(t, answer, "Goroutines are lightweight threads")
	assert.Contains(t, answer, "Channels provide safe communication")
	assert.Greater(t, confidence, 0.0)
	assert.LessOrEqual(t, confidence, 1.0)
}

func TestGenerateConsensus_EnsembleMerge_SkipsSentencesWithFewNewWords(t *testing.T) {
	results := []providerResult{
		scored("anthropic", "Goroutines are lightweight threads managed by the runtime.", 0.9),
		scored("openai", "Goroutines are lightweight threads run by the runtime.", 0.6),
	}

	answer, _ := GenerateConsensus(results, model.ConsensusEnsembleMerge)

	assert.Equal(t, "Goroutines are lightweight threads managed by the runtime.", answer)
}

func TestGenerateConsensus_EnsembleMerge_ConfidenceClampedToOne(t *testing.T) {
	results := []providerResult{
		scored("a", "alpha response text here", 1.0),
		scored("b", "beta response text here", 1.0),
		scored("c", "gamma response text here", 1.0),
	}

	_, confidence := GenerateConsensus(results, model.ConsensusEnsembleMerge)

	assert.LessOrEqual(t, confidence, 1.0)
}

func TestGenerateConsensus_UnknownMethod_FallsBackToWeightedVote(t *testing.T) {
	results := []providerResult{
		scored("openai", "low quality answer", 0.3),
		scored("anthropic", "best quality answer", 0.9),
	}

	answer, confidence := GenerateConsensus(results, model.ConsensusMethod("unspecified"))

	assert.Equal(t, "best quality answer", answer)
	assert.InDelta(t, 0.9/2.0, confidence, 1e-9)
}
