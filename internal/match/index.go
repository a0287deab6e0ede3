package match

import (
	"sort"
	"sync"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// HNSW parameters for 128-dim face embeddings.
const (
	// maxNeighbors (M) is the maximum number of neighbors per node.
	maxNeighbors = 16
)

// RosterIndex is an in-memory HNSW index over enrolled identities, used as
// a candidate prefilter when the roster is too large to scan per detection.
type RosterIndex struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[int64]
	byID  map[int64]*database.Identity
}

// NewRosterIndex creates an empty index.
func NewRosterIndex() *RosterIndex {
	return &RosterIndex{byID: make(map[int64]*database.Identity)}
}

// Build replaces the index contents with the given roster.
func (x *RosterIndex) Build(roster []database.Identity) {
	x.mu.Lock()
	defer x.mu.Unlock()

	g := hnsw.NewGraph[int64]()
	g.M = maxNeighbors
	g.Ml = 1.0 / float64(maxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.EuclideanDistance

	x.byID = make(map[int64]*database.Identity, len(roster))
	for i := range roster {
		ident := &roster[i]
		if len(ident.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(ident.ID, ident.Embedding))
		x.byID[ident.ID] = ident
	}
	x.graph = g
}

// Add inserts a single identity into an existing index.
func (x *RosterIndex) Add(ident *database.Identity) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if len(ident.Embedding) == 0 {
		return
	}
	if x.graph == nil {
		x.graph = hnsw.NewGraph[int64]()
		x.graph.M = maxNeighbors
		x.graph.Ml = 1.0 / float64(maxNeighbors)
		x.graph.Distance = hnsw.EuclideanDistance
	}
	x.graph.Add(hnsw.MakeNode(ident.ID, ident.Embedding))
	x.byID[ident.ID] = ident
}

// Len returns the number of indexed identities.
func (x *RosterIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byID)
}

// Candidates returns up to k identities near the query embedding, ordered
// by exact Euclidean distance then ID.
func (x *RosterIndex) Candidates(embedding []float32, k int) []database.Identity {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil {
		return nil
	}

	neighbors := x.graph.Search(embedding, k)
	result := make([]database.Identity, 0, len(neighbors))
	for _, n := range neighbors {
		if ident, ok := x.byID[n.Key]; ok {
			result = append(result, *ident)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		di := database.EuclideanDistance(embedding, result[i].Embedding)
		dj := database.EuclideanDistance(embedding, result[j].Embedding)
		if di != dj {
			return di < dj
		}
		return result[i].ID < result[j].ID
	})
	return result
}
