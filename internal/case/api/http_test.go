package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noirepd/precinct/internal/auth"
	"github.com/noirepd/precinct/internal/case/app"
	"github.com/noirepd/precinct/internal/case/domain"
	"github.com/noirepd/precinct/internal/case/infrastructure"
	"github.com/noirepd/precinct/internal/shared/config"
	"github.com/noirepd/precinct/internal/shared/database"
	"github.com/noirepd/precinct/internal/shared/events"
	"github.com/noirepd/precinct/internal/shared/types"
)

type noSuspects struct{}

func (noSuspects) CountMainSuspects(context.Context, types.ID) (int, int, error) { return 0, 0, nil }

func (noSuspects) ArrestMainSuspects(context.Context, types.ID, types.ID, time.Time) ([]types.ID, error) {
	return nil, nil
}

func newTestServer() (http.Handler, *auth.StaticDirectory) {
	dir := auth.NewStaticDirectory()
	svc := app.NewService(
		infrastructure.NewMemoryRepository(),
		noSuspects{},
		dir,
		database.InlineTransactor{},
		events.NopPublisher{},
		config.DefaultWorkflow(),
	)
	return NewHandler(svc).Routes(), dir
}

func do(t *testing.T, h http.Handler, actor *auth.Actor, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if actor != nil {
		req = req.WithContext(auth.WithActor(req.Context(), *actor))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCaseEndpoints(t *testing.T) {
	h, _ := newTestServer()
	citizen := auth.NewActor(types.NewID(), auth.RoleSet{})
	trainee := auth.NewActor(types.NewID(), auth.RolesOf(auth.RoleTrainee))

	rec := do(t, h, &citizen, http.MethodPost, "/", `{"title":"Stolen bike","crime_level":3}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created domain.Case
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, domain.StatusPendingTrainee, created.Status)

	rec = do(t, h, &trainee, http.MethodPost, "/"+created.ID.String()+"/trainee-review", `{"approved":false,"notes":"no serial"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, &citizen, http.MethodPost, "/"+created.ID.String()+"/resubmit", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, &citizen, http.MethodGet, "/"+created.ID.String()+"/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var timeline struct {
		Data  []domain.CaseEvent `json:"data"`
		Total int                `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &timeline))
	assert.Equal(t, 3, timeline.Total)
}

func TestCaseErrorMapping(t *testing.T) {
	h, _ := newTestServer()
	citizen := auth.NewActor(types.NewID(), auth.RoleSet{})
	officer := auth.NewActor(types.NewID(), auth.RolesOf(auth.RoleOfficer))

	rec := do(t, h, &citizen, http.MethodPost, "/", `{"title":"Fight","crime_level":2}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created domain.Case
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	base := "/" + created.ID.String()

	tests := []struct {
		name   string
		actor  *auth.Actor
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"unauthenticated", nil, http.MethodGet, base, "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"malformed id", &citizen, http.MethodGet, "/not-an-id", "", http.StatusBadRequest, "BAD_REQUEST"},
		{"wrong role", &officer, http.MethodPost, base + "/trainee-review", `{"approved":true}`, http.StatusForbidden, "FORBIDDEN"},
		{"wrong state", &officer, http.MethodPost, base + "/officer-review", `{"approved":true}`, http.StatusConflict, "INVALID_STATE"},
		{"bad body", &officer, http.MethodPost, base + "/officer-review", `{`, http.StatusBadRequest, "BAD_REQUEST"},
		{"invisible case", &officer, http.MethodGet, base, "", http.StatusNotFound, "NOT_FOUND"},
		{"bad complaint", &citizen, http.MethodPost, "/", `{"title":"","crime_level":1}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad status filter", &citizen, http.MethodGet, "/?status=LOST", "", http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.actor, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			var body struct {
				Error struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Error.Code)
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestListCasesVisibility(t *testing.T) {
	h, _ := newTestServer()
	citizen := auth.NewActor(types.NewID(), auth.RoleSet{})
	other := auth.NewActor(types.NewID(), auth.RoleSet{})
	captain := auth.NewActor(types.NewID(), auth.RolesOf(auth.RoleCaptain))

	for _, title := range []string{"One", "Two"} {
		rec := do(t, h, &citizen, http.MethodPost, "/", `{"title":"`+title+`","crime_level":3}`)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	count := func(a auth.Actor) int {
		rec := do(t, h, &a, http.MethodGet, "/", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var out struct {
			Total int `json:"total"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		return out.Total
	}

	assert.Equal(t, 2, count(citizen))
	assert.Equal(t, 0, count(other))
	assert.Equal(t, 2, count(captain))
}

func TestComplaintWithoutCrimeLevel(t *testing.T) {
	h, _ := newTestServer()
	citizen := auth.NewActor(types.NewID(), auth.RoleSet{})

	tests := []struct {
		name string
		body string
		want domain.CrimeLevel
	}{
		{"omitted", `{"title":"Stolen bike"}`, domain.CrimeLevel3},
		{"null", `{"title":"Stolen bike","crime_level":null}`, domain.CrimeLevel3},
		{"explicit critical", `{"title":"Hostage","crime_level":0}`, domain.CrimeLevelCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, &citizen, http.MethodPost, "/", tt.body)
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

			var created domain.Case
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
			assert.Equal(t, tt.want, created.CrimeLevel)
		})
	}
}
