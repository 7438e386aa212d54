package infrastructure

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/noirepd/precinct/internal/reward/domain"
	"github.com/noirepd/precinct/internal/scoring"
	"github.com/noirepd/precinct/internal/shared/errors"
	"github.com/noirepd/precinct/internal/shared/types"
)

// MemoryRepository is an in-process domain.Repository for limited mode and
// tests. It enforces the same version check and code uniqueness as the
// PostgreSQL store.
type MemoryRepository struct {
	mu      sync.RWMutex
	reports map[types.ID]domain.Report
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{reports: make(map[types.ID]domain.Report)}
}

func (r *MemoryRepository) Save(_ context.Context, rep *domain.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reports[rep.ID]; ok {
		return errors.Conflict("reward report already exists")
	}
	rep.Version = 1
	r.reports[rep.ID] = *rep
	return nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id types.ID) (*domain.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rep, ok := r.reports[id]
	if !ok {
		return nil, errors.NotFound("reward report", id.String())
	}
	return &rep, nil
}

func (r *MemoryRepository) Update(_ context.Context, rep *domain.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.reports[rep.ID]
	if !ok {
		return errors.NotFound("reward report", rep.ID.String())
	}
	if stored.Version != rep.Version {
		return errors.Stale("reward report", rep.ID.String())
	}
	for id, other := range r.reports {
		if id == rep.ID {
			continue
		}
		if rep.TrackingCode != "" && other.TrackingCode == rep.TrackingCode {
			return domain.CodeTaken(rep.TrackingCode)
		}
		if rep.RewardCode != "" && other.RewardCode == rep.RewardCode {
			return domain.CodeTaken(rep.RewardCode)
		}
	}

	rep.Version++
	r.reports[rep.ID] = *rep
	return nil
}

func (r *MemoryRepository) List(_ context.Context, filter domain.ListFilter) ([]domain.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.Report{}
	for _, rep := range r.reports {
		if filter.Matches(&rep) {
			out = append(out, rep)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *MemoryRepository) FindApprovedByCode(_ context.Context, code string) (*domain.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rep := range r.reports {
		if rep.Status == domain.StatusApproved && rep.MatchesCode(code) {
			return &rep, nil
		}
	}
	return nil, errors.NotFound("reward", "")
}

func (r *MemoryRepository) CodeInUse(_ context.Context, code string) (bool, error) {
	if code == "" {
		return false, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rep := range r.reports {
		if rep.TrackingCode == code || strings.EqualFold(rep.RewardCode, code) {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) Totals(_ context.Context) (scoring.RewardTotals, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var t scoring.RewardTotals
	t.Count = len(r.reports)
	for _, rep := range r.reports {
		if rep.IsPaid {
			t.PaidCount++
			t.TotalAmountPaid += rep.RewardAmount
		}
	}
	return t, nil
}
