// Package match selects the enrolled identity for a detection embedding.
package match

import (
	"github.com/kozaktomas/face-attendance/internal/database"
)

// Result is the outcome of matching a detection embedding against the
// roster. Identity is nil when no candidate is within tolerance.
type Result struct {
	Identity *database.Identity
	Distance float64
}

// Matched reports whether a candidate qualified.
func (r Result) Matched() bool {
	return r.Identity != nil
}

// Best returns the candidate with the minimum Euclidean distance to the
// embedding among those within tolerance. Ties are broken by the lowest ID
// (enrollment order) so the result is deterministic. Pure function: safe to
// call concurrently against a read-only roster snapshot.
func Best(embedding []float32, candidates []database.Identity, tolerance float64) Result {
	var best *database.Identity
	bestDistance := 0.0

	for i := range candidates {
		d := database.EuclideanDistance(embedding, candidates[i].Embedding)
		if d > tolerance {
			continue
		}
		if best == nil || d < bestDistance || (d == bestDistance && candidates[i].ID < best.ID) {
			best = &candidates[i]
			bestDistance = d
		}
	}

	if best == nil {
		return Result{}
	}
	return Result{Identity: best, Distance: bestDistance}
}

// Matcher wraps Best with an optional HNSW prefilter for large rosters.
// Below IndexThreshold the roster is scanned directly; above it, the index
// narrows the candidate set and the exact distance check still decides.
type Matcher struct {
	Tolerance      float64
	IndexThreshold int
	index          *RosterIndex
}

// NewMatcher creates a matcher with the given tolerance. indexThreshold <= 0
// disables the prefilter.
func NewMatcher(tolerance float64, indexThreshold int) *Matcher {
	return &Matcher{Tolerance: tolerance, IndexThreshold: indexThreshold}
}

// SetRoster rebuilds the prefilter index for the given roster snapshot.
// Call after enrollment or at startup; matching works without it.
func (m *Matcher) SetRoster(roster []database.Identity) {
	if m.IndexThreshold <= 0 || len(roster) < m.IndexThreshold {
		m.index = nil
		return
	}
	idx := NewRosterIndex()
	idx.Build(roster)
	m.index = idx
}

// prefilterSize is how many index candidates are exact-checked. Generous so
// the approximate index cannot change the chosen identity in practice.
const prefilterSize = 16

// Match returns the best matching identity for the embedding.
func (m *Matcher) Match(embedding []float32, roster []database.Identity) Result {
	if m.index != nil && len(roster) >= m.IndexThreshold {
		if candidates := m.index.Candidates(embedding, prefilterSize); len(candidates) > 0 {
			return Best(embedding, candidates, m.Tolerance)
		}
	}
	return Best(embedding, roster, m.Tolerance)
}
