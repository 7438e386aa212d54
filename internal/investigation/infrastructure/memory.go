package infrastructure

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/noirepd/precinct/internal/investigation/domain"
	"github.com/noirepd/precinct/internal/shared/errors"
	"github.com/noirepd/precinct/internal/shared/types"
)

// MemoryRepository is an in-process domain.Repository for limited mode and
// tests. Versioned records use the same compare-and-swap as PostgreSQL.
type MemoryRepository struct {
	mu             sync.RWMutex
	suspects       map[types.ID]domain.Suspect
	warrants       map[types.ID]domain.Warrant
	interrogations map[types.ID]domain.Interrogation
	verdicts       map[types.ID]domain.Verdict
	evidence       map[types.ID]domain.Evidence
	connections    map[types.ID]domain.BoardConnection
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		suspects:       make(map[types.ID]domain.Suspect),
		warrants:       make(map[types.ID]domain.Warrant),
		interrogations: make(map[types.ID]domain.Interrogation),
		verdicts:       make(map[types.ID]domain.Verdict),
		evidence:       make(map[types.ID]domain.Evidence),
		connections:    make(map[types.ID]domain.BoardConnection),
	}
}

// Suspects

func (r *MemoryRepository) SaveSuspect(_ context.Context, s *domain.Suspect) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.suspects[s.ID]; ok {
		return errors.Conflict("suspect already exists")
	}
	s.Version = 1
	r.suspects[s.ID] = *s
	return nil
}

func (r *MemoryRepository) FindSuspect(_ context.Context, id types.ID) (*domain.Suspect, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.suspects[id]
	if !ok {
		return nil, errors.NotFound("suspect", id.String())
	}
	return &s, nil
}

func (r *MemoryRepository) UpdateSuspect(_ context.Context, s *domain.Suspect) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.suspects[s.ID]
	if !ok {
		return errors.NotFound("suspect", s.ID.String())
	}
	if stored.Version != s.Version {
		return errors.Stale("suspect", s.ID.String())
	}
	s.Version++
	r.suspects[s.ID] = *s
	return nil
}

func (r *MemoryRepository) ListSuspects(_ context.Context, filter domain.SuspectFilter) ([]domain.Suspect, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.Suspect{}
	for _, s := range r.suspects {
		if filter.Matches(&s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (r *MemoryRepository) LatestSuspectByNationalCode(ctx context.Context, code types.NationalCode) (*domain.Suspect, error) {
	if code.IsZero() {
		return nil, errors.NotFound("suspect", "")
	}
	matched, err := r.ListSuspects(ctx, domain.SuspectFilter{NationalCode: code})
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return nil, errors.NotFound("suspect", code.Masked())
	}
	return &matched[0], nil
}

func (r *MemoryRepository) CountMainSuspects(_ context.Context, caseID types.ID) (int, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total, unarrested int
	for _, s := range r.suspects {
		if s.CaseID != caseID || !s.IsMainSuspect {
			continue
		}
		total++
		if !s.IsArrested() {
			unarrested++
		}
	}
	return total, unarrested, nil
}

func (r *MemoryRepository) ArrestMainSuspects(_ context.Context, caseID, _ types.ID, now time.Time) ([]types.ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var moved []types.ID
	for id, s := range r.suspects {
		if s.CaseID != caseID || !s.IsMainSuspect {
			continue
		}
		if s.PlaceUnderArrest(now) {
			s.Version++
			r.suspects[id] = s
			moved = append(moved, id)
		}
	}
	sort.Slice(moved, func(i, j int) bool { return moved[i] < moved[j] })
	return moved, nil
}

// Warrants

func (r *MemoryRepository) SaveWarrant(_ context.Context, w *domain.Warrant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.warrants[w.ID]; ok {
		return errors.Conflict("warrant already exists")
	}
	w.Version = 1
	r.warrants[w.ID] = *w
	return nil
}

func (r *MemoryRepository) FindWarrant(_ context.Context, id types.ID) (*domain.Warrant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.warrants[id]
	if !ok {
		return nil, errors.NotFound("warrant", id.String())
	}
	return &w, nil
}

func (r *MemoryRepository) UpdateWarrant(_ context.Context, w *domain.Warrant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.warrants[w.ID]
	if !ok {
		return errors.NotFound("warrant", w.ID.String())
	}
	if stored.Version != w.Version {
		return errors.Stale("warrant", w.ID.String())
	}
	w.Version++
	r.warrants[w.ID] = *w
	return nil
}

func (r *MemoryRepository) ListWarrants(_ context.Context, caseID types.ID) ([]domain.Warrant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.Warrant{}
	for _, w := range r.warrants {
		if w.CaseID == caseID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

// Interrogations

func (r *MemoryRepository) SaveInterrogation(_ context.Context, i *domain.Interrogation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.interrogations[i.ID]; ok {
		return errors.Conflict("interrogation already exists")
	}
	r.interrogations[i.ID] = *i
	return nil
}

func (r *MemoryRepository) FindInterrogation(_ context.Context, id types.ID) (*domain.Interrogation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.interrogations[id]
	if !ok {
		return nil, errors.NotFound("interrogation", id.String())
	}
	return &i, nil
}

func (r *MemoryRepository) SaveFeedback(_ context.Context, i *domain.Interrogation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.interrogations[i.ID]
	if !ok {
		return errors.NotFound("interrogation", i.ID.String())
	}
	if stored.Feedback != nil {
		return errors.InvalidState("interrogation already has feedback", "reviewed")
	}
	fb := *i.Feedback
	stored.Feedback = &fb
	r.interrogations[i.ID] = stored
	return nil
}

func (r *MemoryRepository) ListInterrogations(_ context.Context, suspectID types.ID) ([]domain.Interrogation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.Interrogation{}
	for _, i := range r.interrogations {
		if i.SuspectID == suspectID {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return newer(out[a].CreatedAt, out[b].CreatedAt, out[a].ID, out[b].ID) })
	return out, nil
}

// Verdicts

func (r *MemoryRepository) SaveVerdict(_ context.Context, v *domain.Verdict) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.verdicts {
		if existing.CaseID == v.CaseID && existing.SuspectID == v.SuspectID {
			return domain.DuplicateVerdict(v.CaseID, v.SuspectID)
		}
	}
	r.verdicts[v.ID] = *v
	return nil
}

func (r *MemoryRepository) VerdictExists(_ context.Context, caseID, suspectID types.ID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, v := range r.verdicts {
		if v.CaseID == caseID && v.SuspectID == suspectID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) ListVerdicts(_ context.Context, caseID types.ID) ([]domain.Verdict, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.Verdict{}
	for _, v := range r.verdicts {
		if caseID.IsZero() || v.CaseID == caseID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

// Evidence

func (r *MemoryRepository) SaveEvidence(_ context.Context, e *domain.Evidence) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.evidence[e.ID]; ok {
		return errors.Conflict("evidence already exists")
	}
	r.evidence[e.ID] = *e
	return nil
}

func (r *MemoryRepository) FindEvidence(_ context.Context, id types.ID) (*domain.Evidence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.evidence[id]
	if !ok {
		return nil, errors.NotFound("evidence", id.String())
	}
	return &e, nil
}

func (r *MemoryRepository) UpdateEvidence(_ context.Context, e *domain.Evidence) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.evidence[e.ID]; !ok {
		return errors.NotFound("evidence", e.ID.String())
	}
	r.evidence[e.ID] = *e
	return nil
}

func (r *MemoryRepository) ListEvidence(_ context.Context, caseID types.ID, kind *domain.EvidenceKind) ([]domain.Evidence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.Evidence{}
	for _, e := range r.evidence {
		if e.CaseID != caseID {
			continue
		}
		if kind != nil && e.Kind() != *kind {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

// Board connections

func (r *MemoryRepository) SaveBoardConnection(_ context.Context, c *domain.BoardConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connections[c.ID]; ok {
		return errors.Conflict("board connection already exists")
	}
	r.connections[c.ID] = *c
	return nil
}

func (r *MemoryRepository) FindBoardConnection(_ context.Context, id types.ID) (*domain.BoardConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.connections[id]
	if !ok {
		return nil, errors.NotFound("board connection", id.String())
	}
	return &c, nil
}

func (r *MemoryRepository) DeleteBoardConnection(_ context.Context, id types.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connections[id]; !ok {
		return errors.NotFound("board connection", id.String())
	}
	delete(r.connections, id)
	return nil
}

func (r *MemoryRepository) ListBoardConnections(_ context.Context, caseID types.ID) ([]domain.BoardConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.BoardConnection{}
	for _, c := range r.connections {
		if c.CaseID == caseID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[j].CreatedAt, out[i].CreatedAt, out[j].ID, out[i].ID) })
	return out, nil
}

// newer orders by creation time descending, then by ID descending.
func newer(a, b time.Time, aID, bID types.ID) bool {
	if a.Equal(b) {
		return aID > bID
	}
	return a.After(b)
}
