package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noirepd/precinct/internal/auth"
	"github.com/noirepd/precinct/internal/reward/domain"
	"github.com/noirepd/precinct/internal/shared/errors"
	"github.com/noirepd/precinct/internal/shared/types"
)

func newApproved(t *testing.T, repo *MemoryRepository, tracking, reward string, amount int64) *domain.Report {
	t.Helper()
	citizen := auth.NewActor(types.NewID(), auth.RolesOf(auth.RoleBaseUser))
	rep, err := domain.NewReport(citizen, domain.SubmitInput{Description: "tip"}, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), rep))

	rep.Status = domain.StatusApproved
	rep.TrackingCode = tracking
	rep.RewardCode = reward
	rep.RewardAmount = amount
	require.NoError(t, repo.Update(context.Background(), rep))
	return rep
}

func TestMemoryUpdateEnforcesCodeUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	newApproved(t, repo, "1234567890", "ABC234", 0)

	other := newApproved(t, repo, "", "", 0)
	other.TrackingCode = "1234567890"
	err := repo.Update(ctx, other)
	assert.True(t, errors.IsConflict(err), "duplicate tracking code: %v", err)

	other.TrackingCode = "9999999999"
	other.RewardCode = "ABC234"
	err = repo.Update(ctx, other)
	assert.True(t, errors.IsConflict(err), "duplicate reward code: %v", err)

	other.RewardCode = "XYZ789"
	require.NoError(t, repo.Update(ctx, other))

	inUse, err := repo.CodeInUse(ctx, "abc234")
	require.NoError(t, err)
	assert.True(t, inUse, "reward codes match case-insensitively")

	inUse, err = repo.CodeInUse(ctx, "")
	require.NoError(t, err)
	assert.False(t, inUse)
}

func TestMemoryUpdateRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	rep := newApproved(t, repo, "1111111111", "AAA222", 0)

	stale := *rep
	rep.Description = "first writer"
	require.NoError(t, repo.Update(ctx, rep))

	stale.Description = "second writer"
	err := repo.Update(ctx, &stale)
	assert.True(t, errors.IsInvalidState(err), "got %v", err)
}

func TestMemoryFindApprovedByCodeAndTotals(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	paid := newApproved(t, repo, "2222222222", "BBB333", 40_000_000)
	newApproved(t, repo, "3333333333", "CCC444", 60_000_000)

	found, err := repo.FindApprovedByCode(ctx, "bbb333")
	require.NoError(t, err)
	assert.Equal(t, paid.ID, found.ID)

	_, err = repo.FindApprovedByCode(ctx, "0000000000")
	assert.True(t, errors.IsNotFound(err))

	officer := auth.NewActor(types.NewID(), auth.RolesOf(auth.RoleOfficer))
	require.NoError(t, found.MarkPaid(officer, "", time.Now().UTC()))
	require.NoError(t, repo.Update(ctx, found))

	totals, err := repo.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, totals.Count)
	assert.Equal(t, 1, totals.PaidCount)
	assert.Equal(t, int64(40_000_000), totals.TotalAmountPaid)
}
