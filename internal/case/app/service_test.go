package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noirepd/precinct/internal/auth"
	"github.com/noirepd/precinct/internal/case/domain"
	"github.com/noirepd/precinct/internal/case/infrastructure"
	"github.com/noirepd/precinct/internal/shared/config"
	"github.com/noirepd/precinct/internal/shared/database"
	"github.com/noirepd/precinct/internal/shared/errors"
	"github.com/noirepd/precinct/internal/shared/events"
	"github.com/noirepd/precinct/internal/shared/types"
)

type stubSuspects struct {
	mu         sync.Mutex
	total      int
	unarrested int
	arrested   []types.ID
}

func (s *stubSuspects) CountMainSuspects(context.Context, types.ID) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total, s.unarrested, nil
}

func (s *stubSuspects) ArrestMainSuspects(_ context.Context, caseID, _ types.ID, _ time.Time) ([]types.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arrested = append(s.arrested, caseID)
	return []types.ID{types.NewID()}, nil
}

type fixture struct {
	svc       *Service
	repo      *infrastructure.MemoryRepository
	suspects  *stubSuspects
	directory *auth.StaticDirectory
	recorder  *events.Recorder
}

func newFixture() *fixture {
	f := &fixture{
		repo:      infrastructure.NewMemoryRepository(),
		suspects:  &stubSuspects{},
		directory: auth.NewStaticDirectory(),
		recorder:  &events.Recorder{},
	}
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	f.svc = NewService(f.repo, f.suspects, f.directory, database.InlineTransactor{}, f.recorder, config.DefaultWorkflow()).
		WithClock(func() time.Time { return now })
	return f
}

func (f *fixture) actor(roles ...auth.Role) auth.Actor {
	a := auth.NewActor(types.NewID(), auth.RolesOf(roles...))
	f.directory.Set(a.ID, a.Roles)
	return a
}

func TestComplaintToSolvedWithPursuit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	citizen := f.actor()
	trainee := f.actor(auth.RoleTrainee)
	officer := f.actor(auth.RoleOfficer)
	detective := f.actor(auth.RoleDetective)
	sergeant := f.actor(auth.RoleSergeant)

	c, err := f.svc.FileComplaint(ctx, citizen, FileComplaintInput{Title: "Burglary", CrimeLevel: domain.CrimeLevel2.Ptr()})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingTrainee, c.Status)

	c, err = f.svc.TraineeReview(ctx, trainee, c.ID, TraineeReviewInput{Approved: true, ConfirmedComplainants: []types.ID{citizen.ID}})
	require.NoError(t, err)
	assert.True(t, c.Complainants[0].IsConfirmed)

	c, err = f.svc.OfficerReview(ctx, officer, c.ID, ReviewInput{Approved: true})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, c.Status)

	_, err = f.svc.SubmitResolution(ctx, detective, c.ID)
	assert.True(t, errors.IsValidation(err), "no main suspect yet: %v", err)

	f.suspects.total, f.suspects.unarrested = 1, 1
	c, err = f.svc.SubmitResolution(ctx, detective, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingSergeant, c.Status)

	c, err = f.svc.SergeantReview(ctx, sergeant, c.ID, ReviewInput{Approved: true})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInPursuit, c.Status)
	assert.Equal(t, []types.ID{c.ID}, f.suspects.arrested)

	_, err = f.svc.ConfirmArrests(ctx, sergeant, c.ID)
	assert.True(t, errors.IsValidation(err))

	f.suspects.unarrested = 0
	c, err = f.svc.ConfirmArrests(ctx, sergeant, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSolved, c.Status)

	assert.Equal(t, []string{
		"case.created",
		"case.status_changed",
		"case.status_changed",
		"case.status_changed",
		"case.status_changed",
		"case.status_changed",
	}, f.recorder.Types())

	timeline, err := f.svc.Events(ctx, citizen, c.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, timeline, 6)
	assert.Equal(t, domain.EventTypeCreated, timeline[len(timeline)-1].Type)
}

func TestSergeantRejectionDoesNotArrest(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	chief := f.actor(auth.RoleChief)
	sergeant := f.actor(auth.RoleSergeant)
	detective := f.actor(auth.RoleDetective)

	c, err := f.svc.RegisterScene(ctx, chief, RegisterSceneInput{
		Title:      "Homicide",
		CrimeLevel: domain.CrimeLevelCritical.Ptr(),
		Scene:      domain.Scene{Location: "Harbour", OccurredAt: time.Date(2026, 5, 9, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, c.Status)

	f.suspects.total = 1
	_, err = f.svc.SubmitResolution(ctx, detective, c.ID)
	require.NoError(t, err)

	c, err = f.svc.SergeantReview(ctx, sergeant, c.ID, ReviewInput{Approved: false, Notes: "weak"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, c.Status)
	assert.Empty(t, f.suspects.arrested)
}

func TestCriticalCaseNeedsChief(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	chief := f.actor(auth.RoleChief)
	sergeant := f.actor(auth.RoleSergeant)
	detective := f.actor(auth.RoleDetective)

	c, err := f.svc.RegisterScene(ctx, chief, RegisterSceneInput{
		Title:      "Kidnapping",
		CrimeLevel: domain.CrimeLevelCritical.Ptr(),
		Scene:      domain.Scene{Location: "School", OccurredAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)

	f.suspects.total = 2
	_, err = f.svc.SubmitResolution(ctx, detective, c.ID)
	require.NoError(t, err)
	_, err = f.svc.SergeantReview(ctx, sergeant, c.ID, ReviewInput{Approved: true})
	require.NoError(t, err)

	c, err = f.svc.ConfirmArrests(ctx, sergeant, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingChief, c.Status)

	c, err = f.svc.ChiefReview(ctx, chief, c.ID, ReviewInput{Approved: true})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSolved, c.Status)
}

func TestOfficerReviewUsesCreatorRoles(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	creator := f.actor(auth.RoleSergeant)
	officer := f.actor(auth.RoleOfficer)
	captain := f.actor(auth.RoleCaptain)

	c, err := f.svc.RegisterScene(ctx, creator, RegisterSceneInput{
		Title:      "Assault",
		CrimeLevel: domain.CrimeLevel1.Ptr(),
		Scene:      domain.Scene{Location: "Market", OccurredAt: time.Date(2026, 5, 9, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)

	_, err = f.svc.OfficerReview(ctx, officer, c.ID, ReviewInput{Approved: true})
	assert.True(t, errors.IsForbidden(err))

	stored, err := f.repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingOfficer, stored.Status)
	assert.Equal(t, 1, stored.Version)

	c, err = f.svc.OfficerReview(ctx, captain, c.ID, ReviewInput{Approved: true})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, c.Status)
	assert.Equal(t, 2, c.Version)
}

func TestConcurrentReviewsOneWins(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	citizen := f.actor()
	c, err := f.svc.FileComplaint(ctx, citizen, FileComplaintInput{Title: "Fraud", CrimeLevel: domain.CrimeLevel3.Ptr()})
	require.NoError(t, err)

	// Both reviewers load the same version; the second write must lose.
	first, err := f.repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	second, err := f.repo.FindByID(ctx, c.ID)
	require.NoError(t, err)

	trainee := f.actor(auth.RoleTrainee)
	now := time.Now()
	require.NoError(t, first.TraineeReview(trainee, true, "", nil, 3, now))
	require.NoError(t, second.TraineeReview(trainee, false, "", nil, 3, now))

	require.NoError(t, f.repo.Update(ctx, first))
	err = f.repo.Update(ctx, second)
	assert.True(t, errors.IsInvalidState(err))

	stored, err := f.repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingOfficer, stored.Status)
	assert.Equal(t, 1, stored.SubmissionAttempts)
}

func TestGetHidesInvisibleCases(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	citizen := f.actor()
	c, err := f.svc.FileComplaint(ctx, citizen, FileComplaintInput{Title: "Noise", CrimeLevel: domain.CrimeLevel3.Ptr()})
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, f.actor(auth.RoleDetective), c.ID)
	assert.True(t, errors.IsNotFound(err))

	_, err = f.svc.Get(ctx, f.actor(auth.RoleTrainee), c.ID)
	assert.NoError(t, err)

	_, err = f.svc.Get(ctx, citizen, c.ID)
	assert.NoError(t, err)

	list, total, err := f.svc.List(ctx, f.actor(), domain.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
}

func TestPublishFailureDoesNotFailTransition(t *testing.T) {
	f := newFixture()
	f.recorder.Err = context.DeadlineExceeded
	ctx := context.Background()

	c, err := f.svc.FileComplaint(ctx, f.actor(), FileComplaintInput{Title: "Theft", CrimeLevel: domain.CrimeLevel3.Ptr()})
	require.NoError(t, err)

	c, err = f.svc.TraineeReview(ctx, f.actor(auth.RoleTrainee), c.ID, TraineeReviewInput{Approved: false})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, c.Status)
	assert.Empty(t, f.recorder.Events())
}

func TestStats(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.FileComplaint(ctx, f.actor(), FileComplaintInput{Title: "Case", CrimeLevel: domain.CrimeLevel2.Ptr()})
		require.NoError(t, err)
	}

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{Total: 3, Active: 3, Solved: 0}, stats)
}
