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
	invdomain "github.com/noirepd/precinct/internal/investigation/domain"
	invinfra "github.com/noirepd/precinct/internal/investigation/infrastructure"
	"github.com/noirepd/precinct/internal/reward/app"
	"github.com/noirepd/precinct/internal/reward/domain"
	"github.com/noirepd/precinct/internal/reward/infrastructure"
	"github.com/noirepd/precinct/internal/shared/config"
	"github.com/noirepd/precinct/internal/shared/types"
)

type flatRate int64

func (f flatRate) RewardAmount(context.Context, types.ID, time.Time) (int64, error) {
	return int64(f), nil
}

type server struct {
	private http.Handler
	public  http.Handler
}

func newTestServer(t *testing.T) server {
	t.Helper()
	inv := invinfra.NewMemoryRepository()
	officer := auth.NewActor(types.NewID(), auth.RolesOf(auth.RoleOfficer))
	suspect, err := invdomain.NewSuspect(officer, types.NewID(), invdomain.SuspectInput{
		FirstName:    "Reza",
		NationalCode: "4444444444",
	}, true, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, inv.SaveSuspect(context.Background(), suspect))

	svc := app.NewService(infrastructure.NewMemoryRepository(), inv, flatRate(60_000_000), config.DefaultWorkflow(), nil)
	h := NewHandler(svc)
	return server{private: h.Routes(), public: h.PublicRoutes()}
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

func TestRewardLifecycle(t *testing.T) {
	srv := newTestServer(t)
	citizen := auth.NewActor(types.NewID(), auth.RolesOf(auth.RoleBaseUser))
	officer := auth.NewActor(types.NewID(), auth.RolesOf(auth.RoleOfficer))
	detective := auth.NewActor(types.NewID(), auth.RolesOf(auth.RoleDetective))

	rec := do(t, srv.private, &citizen, http.MethodPost, "/", `{"description":"He drives a white Pride","suspect_national_code":"4444444444"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var rep domain.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	base := "/" + rep.ID.String()

	rec = do(t, srv.private, &officer, http.MethodPost, base+"/officer-review", `{"approved":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, srv.private, &detective, http.MethodPost, base+"/detective-review", `{"approved":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, domain.StatusApproved, rep.Status)
	assert.Equal(t, int64(60_000_000), rep.RewardAmount)

	rec = do(t, srv.private, &officer, http.MethodGet, "/lookup?national_code=4444444444&code="+rep.RewardCode, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), rep.TrackingCode)

	rec = do(t, srv.public, nil, http.MethodPost, base+"/payment-callback", `{"status":"NOK"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)

	rec = do(t, srv.public, nil, http.MethodPost, base+"/payment-callback", `{"status":"OK"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)

	rec = do(t, srv.private, &officer, http.MethodPost, base+"/mark-paid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")

	rec = do(t, srv.private, &citizen, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_paid":true`)
}

func TestRewardErrorMapping(t *testing.T) {
	srv := newTestServer(t)
	citizen := auth.NewActor(types.NewID(), auth.RolesOf(auth.RoleBaseUser))
	officer := auth.NewActor(types.NewID(), auth.RolesOf(auth.RoleOfficer))
	detective := auth.NewActor(types.NewID(), auth.RolesOf(auth.RoleDetective))

	rec := do(t, srv.private, &citizen, http.MethodPost, "/", `{"description":"tip without a name"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var rep domain.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	base := "/" + rep.ID.String()

	tests := []struct {
		name   string
		h      http.Handler
		actor  *auth.Actor
		method string
		path   string
		body   string
		status int
	}{
		{"no actor", srv.private, nil, http.MethodGet, "/", "", http.StatusUnauthorized},
		{"empty description", srv.private, &citizen, http.MethodPost, "/", `{"description":""}`, http.StatusBadRequest},
		{"unknown status filter", srv.private, &officer, http.MethodGet, "/?status=LOST", "", http.StatusBadRequest},
		{"citizen cannot review", srv.private, &citizen, http.MethodPost, base + "/officer-review", `{"approved":true}`, http.StatusForbidden},
		{"detective before officer", srv.private, &detective, http.MethodPost, base + "/detective-review", `{"approved":true}`, http.StatusConflict},
		{"citizen cannot verify", srv.private, &citizen, http.MethodGet, "/lookup?national_code=4444444444&code=123", "", http.StatusForbidden},
		{"unknown payout", srv.private, &officer, http.MethodGet, "/lookup?national_code=4444444444&code=123", "", http.StatusNotFound},
		{"bad report id", srv.public, nil, http.MethodPost, "/nope/payment-callback", `{"status":"OK"}`, http.StatusBadRequest},
		{"callback on unapproved", srv.public, nil, http.MethodPost, base + "/payment-callback", `{"status":"OK"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, tt.h, tt.actor, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}
