package infrastructure

import (
	"context"
	"sort"
	"sync"

	"github.com/noirepd/precinct/internal/case/domain"
	"github.com/noirepd/precinct/internal/shared/errors"
	"github.com/noirepd/precinct/internal/shared/types"
)

// MemoryRepository is an in-process domain.Repository used when the server
// runs without a database and in service tests. It honours the same
// version check as the PostgreSQL store.
type MemoryRepository struct {
	mu     sync.RWMutex
	cases  map[types.ID]*domain.Case
	events map[types.ID][]domain.CaseEvent
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		cases:  make(map[types.ID]*domain.Case),
		events: make(map[types.ID][]domain.CaseEvent),
	}
}

func (r *MemoryRepository) Save(_ context.Context, c *domain.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.cases[c.ID]; ok {
		return errors.Conflict("case already exists")
	}
	c.Version = 1
	r.events[c.ID] = append(r.events[c.ID], c.GetDomainEvents()...)
	r.cases[c.ID] = cloneCase(c)
	return nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id types.ID) (*domain.Case, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.cases[id]
	if !ok {
		return nil, errors.NotFound("case", id.String())
	}
	return cloneCase(c), nil
}

func (r *MemoryRepository) Update(_ context.Context, c *domain.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.cases[c.ID]
	if !ok {
		return errors.NotFound("case", c.ID.String())
	}
	if stored.Version != c.Version {
		return errors.Stale("case", c.ID.String())
	}

	c.Version++
	r.events[c.ID] = append(r.events[c.ID], c.GetDomainEvents()...)
	r.cases[c.ID] = cloneCase(c)
	return nil
}

func (r *MemoryRepository) List(_ context.Context, vis domain.Visibility, filter domain.ListFilter) ([]domain.Case, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []domain.Case
	for _, c := range r.cases {
		if vis.Allows(c) && filter.Matches(c) {
			matched = append(matched, *cloneCase(c))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	limit, offset := filter.PageBounds()
	if offset >= total {
		return []domain.Case{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *MemoryRepository) GetEvents(_ context.Context, caseID types.ID, limit, offset int) ([]domain.CaseEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.events[caseID]
	out := make([]domain.CaseEvent, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		out = append(out, stored[i])
	}
	if offset >= len(out) {
		return []domain.CaseEvent{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) Stats(_ context.Context) (domain.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var s domain.Stats
	for _, c := range r.cases {
		s.Total++
		if c.Status.IsOpen() {
			s.Active++
		}
		if c.Status == domain.StatusSolved {
			s.Solved++
		}
	}
	return s, nil
}

// Snapshot returns copies of every stored case. Scoring reads it in
// limited mode.
func (r *MemoryRepository) Snapshot() []domain.Case {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Case, 0, len(r.cases))
	for _, c := range r.cases {
		out = append(out, *cloneCase(c))
	}
	return out
}

func cloneCase(c *domain.Case) *domain.Case {
	cp := *c
	cp.Complainants = append([]domain.Complainant{}, c.Complainants...)
	if c.Scene != nil {
		scene := *c.Scene
		scene.Witnesses = append([]domain.Witness{}, c.Scene.Witnesses...)
		cp.Scene = &scene
	}
	return &cp
}
