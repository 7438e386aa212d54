package scoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noirepd/precinct/internal/auth"
	casedomain "github.com/noirepd/precinct/internal/case/domain"
	"github.com/noirepd/precinct/internal/shared/types"
)

func TestMostWantedEndpoint(t *testing.T) {
	src := &fakeSource{rows: []SuspectSnapshot{
		suspect("1111111111", kase(casedomain.StatusActive, casedomain.CrimeLevel2), daysAgo(31)),
		suspect("2222222222", kase(casedomain.StatusActive, casedomain.CrimeLevel2), daysAgo(30)),
	}}
	h := NewHandler(newRanker(src, nil)).PublicRoutes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/most-wanted", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var board Board
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &board))
	require.Len(t, board.Entries, 1)
	assert.Equal(t, types.NationalCode("1111111111"), board.Entries[0].NationalCode)
	assert.Equal(t, int64(31*2*20_000_000), board.Entries[0].RewardAmount)
}

func TestStatsEndpoint(t *testing.T) {
	src := &fakeSource{rows: []SuspectSnapshot{
		suspect("1111111111", kase(casedomain.StatusActive, casedomain.CrimeLevel3), daysAgo(2)),
		suspect("3333333333", kase(casedomain.StatusSolved, casedomain.CrimeLevel3), daysAgo(9)),
	}}
	h := NewHandler(newRanker(src, nil)).Routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	req = req.WithContext(auth.WithActor(req.Context(), auth.NewActor(types.NewID(), auth.RolesOf(auth.RoleBaseUser))))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Suspects.Total)
	assert.Equal(t, 1, stats.Suspects.UnderPursuit)
	assert.Equal(t, int64(80_000_000), stats.Rewards.TotalAmountPaid)
}
