package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate_CompositeWithinBounds(t *testing.T) {
	res := Evaluate("how do goroutines work", "Goroutines are lightweight threads managed by the Go runtime. "+
		"For example, you can start thousands of them cheaply because the scheduler multiplexes them onto OS threads.",
		DefaultWeights())

	assert.GreaterOrEqual(t, res.Composite, 0.0)
	assert.LessOrEqual(t, res.Composite, 1.0)
	assert.Greater(t, res.Relevance, 0.0)
}

func TestEvaluate_IrrelevantResponseScoresLowRelevance(t *testing.T) {
	res := Evaluate("how do goroutines work", "bananas are a good source of potassium", DefaultWeights())
	assert.Less(t, res.Relevance, 0.2)
}

func TestAccuracyScore_PenalizesContradiction(t *testing.T) {
	res := Evaluate("is the service healthy", "the service is healthy. the service is not healthy.", DefaultWeights())
	assert.Less(t, res.Accuracy, 1.0)
}

func TestCompletenessScore_RewardsConnectiveMarkers(t *testing.T) {
	bare := completenessScore("explain caching", "use a cache")
	explained := completenessScore("explain caching", "use a cache because repeated lookups are expensive, for example database queries")
	assert.Greater(t, explained, bare)
}

func TestJaccard_EmptySetsAreIdentical(t *testing.T) {
	assert.Equal(t, 1.0, Jaccard(WordSet(""), WordSet("")))
}

func TestJaccard_DisjointSetsScoreZero(t *testing.T) {
	assert.Equal(t, 0.0, Jaccard(WordSet("alpha beta"), WordSet("gamma delta")))
}
