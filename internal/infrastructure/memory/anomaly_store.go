package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jhoicas/comandas-api/internal/domain/entity"
	"github.com/jhoicas/comandas-api/internal/domain/repository"
)

var _ repository.AnomalyRepository = (*AnomalyStore)(nil)

// AnomalyStore registro de anomalías en memoria.
type AnomalyStore struct {
	mu    sync.Mutex
	items []entity.OrderAnomaly
}

// NewAnomalyStore construye el registro vacío.
func NewAnomalyStore() *AnomalyStore { return &AnomalyStore{} }

func (s *AnomalyStore) Record(_ context.Context, a *entity.OrderAnomaly) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, *a)
	return nil
}

func (s *AnomalyStore) ListOpen(_ context.Context, sc entity.VenueScope, limit, offset int) ([]*entity.OrderAnomaly, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.OrderAnomaly
	for _, a := range s.items {
		if a.ResolvedAt != nil || !sc.Contains(a.VenueID) {
			continue
		}
		a := a
		out = append(out, &a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DetectedAt.After(out[j].DetectedAt) })
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
