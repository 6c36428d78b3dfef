package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jhoicas/comandas-api/internal/domain/entity"
	"github.com/jhoicas/comandas-api/internal/domain/repository"
)

var (
	_ repository.VenueRepository = (*VenueStore)(nil)
	_ repository.StaffRepository = (*StaffStore)(nil)
)

// VenueStore locales en memoria.
type VenueStore struct {
	mu     sync.RWMutex
	venues map[string]entity.Venue
}

// NewVenueStore construye el almacén con los locales dados.
func NewVenueStore(venues ...entity.Venue) *VenueStore {
	s := &VenueStore{venues: make(map[string]entity.Venue)}
	for _, v := range venues {
		s.venues[v.ID] = v
	}
	return s
}

// Put alta o reemplazo de un local.
func (s *VenueStore) Put(v entity.Venue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.venues[v.ID] = v
}

// IsActive informa si el local existe y está activo.
func (s *VenueStore) IsActive(venueID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.venues[venueID]
	return ok && v.IsActive
}

func (s *VenueStore) GetByID(_ context.Context, id string) (*entity.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.venues[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (s *VenueStore) ListActive(_ context.Context) ([]*entity.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.Venue, 0, len(s.venues))
	for _, v := range s.venues {
		if v.IsActive {
			v := v
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// StaffStore personal en memoria.
type StaffStore struct {
	mu    sync.RWMutex
	staff map[string]entity.Staff
}

// NewStaffStore construye el almacén con el personal dado.
func NewStaffStore(staff ...entity.Staff) *StaffStore {
	s := &StaffStore{staff: make(map[string]entity.Staff)}
	for _, st := range staff {
		s.staff[st.ID] = st
	}
	return s
}

// Put alta o reemplazo de un miembro del personal.
func (s *StaffStore) Put(st entity.Staff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staff[st.ID] = st
}

func (s *StaffStore) GetByID(_ context.Context, id string) (*entity.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.staff[id]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (s *StaffStore) ListActiveByVenue(_ context.Context, venueID string) ([]*entity.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.Staff
	for _, st := range s.staff {
		if st.VenueID == venueID && st.IsActive {
			st := st
			out = append(out, &st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
