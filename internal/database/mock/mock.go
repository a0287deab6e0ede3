// Package mock provides an in-memory identity store for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// IdentityStore is an in-memory implementation of database.IdentityWriter.
type IdentityStore struct {
	mu         sync.RWMutex
	identities map[int64]*database.Identity
	nextID     int64

	// Error injection
	ListAllError     error
	GetError         error
	CountError       error
	AppendError      error
	UpdateLogError   error
	FindNearestError error

	// CorruptLogs marks identity IDs whose logs should fail to parse,
	// simulating corrupt stored data.
	CorruptLogs map[int64]bool
}

// NewIdentityStore creates a new empty mock store.
func NewIdentityStore() *IdentityStore {
	return &IdentityStore{
		identities:  make(map[int64]*database.Identity),
		nextID:      1,
		CorruptLogs: make(map[int64]bool),
	}
}

// AddIdentity seeds the store with an identity, assigning an ID if unset.
func (s *IdentityStore) AddIdentity(ident database.Identity) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ident.ID == 0 {
		ident.ID = s.nextID
	}
	if ident.ID >= s.nextID {
		s.nextID = ident.ID + 1
	}
	s.identities[ident.ID] = &ident
	return ident.ID
}

func (s *IdentityStore) corruptErr(id int64) error {
	if s.CorruptLogs[id] {
		return &database.CorruptLogError{IdentityID: id, Reason: "not a record array"}
	}
	return nil
}

// copyIdentity returns a deep-enough copy so tests can't mutate shared state.
func copyIdentity(ident *database.Identity) database.Identity {
	out := *ident
	out.Log = append([]database.AttendanceRecord(nil), ident.Log...)
	return out
}

// ListAll returns every identity ordered by ID.
func (s *IdentityStore) ListAll(ctx context.Context) ([]database.Identity, error) {
	if s.ListAllError != nil {
		return nil, s.ListAllError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.identities))
	for id := range s.identities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	result := make([]database.Identity, 0, len(ids))
	for _, id := range ids {
		if err := s.corruptErr(id); err != nil {
			return nil, err
		}
		result = append(result, copyIdentity(s.identities[id]))
	}
	return result, nil
}

// Get retrieves an identity by ID, returns nil if not found.
func (s *IdentityStore) Get(ctx context.Context, id int64) (*database.Identity, error) {
	if s.GetError != nil {
		return nil, s.GetError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.corruptErr(id); err != nil {
		return nil, err
	}
	ident, ok := s.identities[id]
	if !ok {
		return nil, nil
	}
	out := copyIdentity(ident)
	return &out, nil
}

// Count returns the number of identities.
func (s *IdentityStore) Count(ctx context.Context) (int, error) {
	if s.CountError != nil {
		return 0, s.CountError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.identities), nil
}

// FindNearest scans all identities by Euclidean distance.
func (s *IdentityStore) FindNearest(ctx context.Context, embedding []float32, limit int) ([]database.Identity, []float64, error) {
	if s.FindNearestError != nil {
		return nil, nil, s.FindNearestError
	}
	identities, err := s.ListAll(ctx)
	if err != nil {
		return nil, nil, err
	}

	sort.SliceStable(identities, func(i, j int) bool {
		di := database.EuclideanDistance(embedding, identities[i].Embedding)
		dj := database.EuclideanDistance(embedding, identities[j].Embedding)
		if di != dj {
			return di < dj
		}
		return identities[i].ID < identities[j].ID
	})

	if limit > len(identities) {
		limit = len(identities)
	}
	identities = identities[:limit]
	distances := make([]float64, len(identities))
	for i := range identities {
		distances[i] = database.EuclideanDistance(embedding, identities[i].Embedding)
	}
	return identities, distances, nil
}

// Append enrolls a new identity.
func (s *IdentityStore) Append(ctx context.Context, identity *database.Identity) (int64, error) {
	if s.AppendError != nil {
		return 0, s.AppendError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ident := copyIdentity(identity)
	ident.ID = s.nextID
	s.nextID++
	s.identities[ident.ID] = &ident
	return ident.ID, nil
}

// UpdateLog replaces the attendance log of an identity.
func (s *IdentityStore) UpdateLog(ctx context.Context, id int64, log []database.AttendanceRecord) error {
	if s.UpdateLogError != nil {
		return s.UpdateLogError
	}
	if err := database.ValidateLog(log); err != nil {
		return &database.CorruptLogError{IdentityID: id, Reason: err.Error()}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.identities[id]
	if !ok {
		return fmt.Errorf("update log: identity %d not found", id)
	}
	ident.Log = append([]database.AttendanceRecord(nil), log...)
	return nil
}
