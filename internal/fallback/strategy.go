package fallback

import (
	"sort"

	"github.com/fortitude-core/fortitude/internal/model"
	"github.com/fortitude-core/fortitude/internal/provider"
)

// selectProvider picks the next eligible provider under the manager's
// configured strategy, excluding names already in tried and any provider
// currently Unhealthy. Must be called without m.mu held; it acquires its
// own locks internally.
func (m *Manager) selectProvider(researchType model.ResearchType, tried map[string]struct{}) (string, provider.Provider, bool) {
	m.mu.RLock()
	candidates := make([]string, 0, len(m.order))
	for _, name := range m.order {
		if _, skip := tried[name]; skip {
			continue
		}
		entry := m.entries[name]
		if entry.health == provider.HealthUnhealthy {
			continue
		}
		candidates = append(candidates, name)
	}
	m.mu.RUnlock()

	if len(candidates) == 0 {
		return "", nil, false
	}

	var chosen string
	switch m.cfg.Strategy {
	case model.SelectionRoundRobin:
		chosen = m.pickRoundRobin(candidates)
	case model.SelectionLowestLatency:
		chosen = m.pickLowestLatency(candidates)
	case model.SelectionHighestSuccessRate:
		chosen = m.pickHighestSuccessRate(candidates)
	case model.SelectionCostOptimized:
		chosen = m.pickCostOptimized(candidates)
	case model.SelectionResearchTypeOptimized:
		chosen = m.pickResearchTypeOptimized(candidates, researchType)
	default:
		chosen = m.pickBalanced(candidates)
	}

	m.mu.RLock()
	entry, ok := m.entries[chosen]
	m.mu.RUnlock()
	if !ok {
		return "", nil, false
	}
	return chosen, entry.p, true
}

// pickRoundRobin rotates through candidates using a persistent cursor so
// distribution across N healthy providers over K >> N requests stays
// within +-2 selections of K/N.
func (m *Manager) pickRoundRobin(candidates []string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	sort.Strings(candidates) // stable ordering independent of map iteration
	idx := m.rrCursor % len(candidates)
	m.rrCursor++
	return candidates[idx]
}

func (m *Manager) pickLowestLatency(candidates []string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	best := candidates[0]
	bestLatency := m.entries[best].performance.AverageLatency()
	for _, name := range candidates[1:] {
		lat := m.entries[name].performance.AverageLatency()
		if lat < bestLatency {
			best = name
			bestLatency = lat
		}
	}
	return best
}

func (m *Manager) pickHighestSuccessRate(candidates []string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	best := candidates[0]
	bestRate := m.entries[best].performance.SuccessRate()
	for _, name := range candidates[1:] {
		rate := m.entries[name].performance.SuccessRate()
		if rate > bestRate {
			best = name
			bestRate = rate
		}
	}
	return best
}

// pickCostOptimized picks the cheapest candidate whose quality score
// clears MinQualityThreshold and is within CostOptimizationBand of the
// best available quality; otherwise it falls back to the best-quality
// candidate.
func (m *Manager) pickCostOptimized(candidates []string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bestQuality := 0.0
	for _, name := range candidates {
		if q := m.entries[name].performance.MeanQualityScore(); q > bestQuality {
			bestQuality = q
		}
	}

	var eligible []string
	for _, name := range candidates {
		entry := m.entries[name]
		q := entry.performance.MeanQualityScore()
		if q >= m.cfg.MinQualityThreshold && (bestQuality-q) <= m.cfg.CostOptimizationBand {
			eligible = append(eligible, name)
		}
	}
	if len(eligible) == 0 {
		return m.bestQualityLocked(candidates)
	}

	cheapest := eligible[0]
	for _, name := range eligible[1:] {
		if m.entries[name].cost < m.entries[cheapest].cost {
			cheapest = name
		}
	}
	return cheapest
}

func (m *Manager) bestQualityLocked(candidates []string) string {
	best := candidates[0]
	bestQuality := m.entries[best].performance.MeanQualityScore()
	for _, name := range candidates[1:] {
		q := m.entries[name].performance.MeanQualityScore()
		if q > bestQuality {
			best = name
			bestQuality = q
		}
	}
	return best
}

// pickResearchTypeOptimized consults cfg.ResearchTypePreferences; falls
// back to Balanced on a miss (no preference list, or none of its entries
// are currently eligible).
func (m *Manager) pickResearchTypeOptimized(candidates []string, researchType model.ResearchType) string {
	prefs, ok := m.cfg.ResearchTypePreferences[researchType]
	if ok {
		eligible := make(map[string]struct{}, len(candidates))
		for _, c := range candidates {
			eligible[c] = struct{}{}
		}
		for _, preferred := range prefs {
			if _, ok := eligible[preferred]; ok {
				return preferred
			}
		}
	}
	return m.pickBalanced(candidates)
}

// pickBalanced ranks candidates by health_score (0.5*success_rate +
// 0.3*(1-normalized_latency) + 0.2*mean_quality) and picks the top-ranked
// provider, with mild diversification so no single provider draws more
// than 70% of selections over a rolling window.
func (m *Manager) pickBalanced(candidates []string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var maxLatency float64
	for _, name := range candidates {
		lat := m.entries[name].performance.AverageLatency().Seconds()
		if lat > maxLatency {
			maxLatency = lat
		}
	}

	type scored struct {
		name  string
		score float64
	}
	scores := make([]scored, 0, len(candidates))
	for _, name := range candidates {
		scores = append(scores, scored{name: name, score: healthScore(m.entries[name].performance, maxLatency)})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].name < scores[j].name
	})

	top := scores[0].name

	if m.selectionsSinceDiversify(top) >= diversificationCap(len(candidates)) && len(scores) > 1 {
		return scores[1].name
	}
	return top
}

// diversificationCap is the selection count at which Balanced forces a
// switch away from the current leader, approximating the "<=70% of
// selections over the window" rule with a simple counter rather than a
// true sliding window.
func diversificationCap(candidateCount int) int {
	if candidateCount <= 1 {
		return 1 << 30 // effectively unbounded with a single candidate
	}
	return 7 // roughly 70% of a 10-selection window
}

func (m *Manager) selectionsSinceDiversify(name string) int {
	entry, ok := m.entries[name]
	if !ok {
		return 0
	}
	entry.consecutiveSelections++
	for other, e := range m.entries {
		if other != name {
			e.consecutiveSelections = 0
		}
	}
	return entry.consecutiveSelections
}

// healthScore implements §4.6's weighted blend, clamped to [0,1]. For a
// provider with no samples, the success-rate term is set to the neutral
// 0.5 here (SuccessRate itself returns 0) and the quality term is 0.5 via
// MeanQualityScore; the blended score is then 0.65, not 0.5.
func healthScore(perf model.ProviderPerformance, maxLatencySeconds float64) float64 {
	successRate := perf.SuccessRate()
	if perf.TotalRequests == 0 {
		successRate = 0.5
	}

	normalizedLatency := 0.0
	if maxLatencySeconds > 0 {
		normalizedLatency = perf.AverageLatency().Seconds() / maxLatencySeconds
	}

	score := 0.5*successRate + 0.3*(1-normalizedLatency) + 0.2*perf.MeanQualityScore()
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
