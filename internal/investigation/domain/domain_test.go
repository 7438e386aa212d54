package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noirepd/precinct/internal/auth"
	"github.com/noirepd/precinct/internal/shared/errors"
	"github.com/noirepd/precinct/internal/shared/types"
)

var testNow = time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)

func actor(roles ...auth.Role) auth.Actor {
	return auth.NewActor(types.NewID(), auth.RolesOf(roles...))
}

func suspectIn(caseID types.ID, status SuspectStatus) *Suspect {
	return &Suspect{ID: types.NewID(), CaseID: caseID, FirstName: "Ali", LastName: "Karimi", Status: status}
}

func TestNewSuspect(t *testing.T) {
	tests := []struct {
		name    string
		actor   auth.Actor
		in      SuspectInput
		active  bool
		wantErr func(error) bool
	}{
		{"officer adds suspect", actor(auth.RoleOfficer), SuspectInput{FirstName: "Reza", NationalCode: "1234567890"}, true, nil},
		{"code is optional", actor(auth.RoleDetective), SuspectInput{LastName: "Unknown"}, true, nil},
		{"trainee refused", actor(auth.RoleTrainee), SuspectInput{FirstName: "Reza"}, true, errors.IsForbidden},
		{"name required", actor(auth.RoleOfficer), SuspectInput{}, true, errors.IsValidation},
		{"bad national code", actor(auth.RoleOfficer), SuspectInput{FirstName: "Reza", NationalCode: "12-34"}, true, errors.IsValidation},
		{"detective names main suspect", actor(auth.RoleDetective), SuspectInput{FirstName: "Reza", IsMainSuspect: true}, true, nil},
		{"officer cannot name main suspect", actor(auth.RoleOfficer), SuspectInput{FirstName: "Reza", IsMainSuspect: true}, true, errors.IsForbidden},
		{"main suspect only while active", actor(auth.RoleDetective), SuspectInput{FirstName: "Reza", IsMainSuspect: true}, false, errors.IsInvalidState},
		{"side suspect during pursuit", actor(auth.RoleOfficer), SuspectInput{FirstName: "Reza"}, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSuspect(tt.actor, types.NewID(), tt.in, tt.active, testNow)
			if tt.wantErr != nil {
				assert.True(t, tt.wantErr(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, SuspectIdentified, s.Status)
			assert.Equal(t, tt.in.IsMainSuspect, s.IsMainSuspect)
			assert.Equal(t, testNow, s.CreatedAt)
			assert.False(t, s.IsArrested())
		})
	}
}

func TestSuspectLifecycle(t *testing.T) {
	s := suspectIn(types.NewID(), SuspectIdentified)
	sergeant := actor(auth.RoleSergeant)

	err := s.MarkArrested(sergeant, testNow)
	assert.True(t, errors.IsValidation(err), "identified suspect cannot be arrested directly")
	assert.Equal(t, SuspectIdentified, s.Status)

	assert.True(t, s.PlaceUnderArrest(testNow))
	assert.False(t, s.PlaceUnderArrest(testNow), "second move is a no-op")

	assert.True(t, errors.IsForbidden(s.MarkArrested(actor(auth.RoleDetective), testNow)))
	require.NoError(t, s.MarkArrested(sergeant, testNow))
	assert.True(t, s.IsArrested())
	assert.False(t, s.PlaceUnderArrest(testNow), "arrest never moves backwards")
	assert.Equal(t, SuspectArrested, s.Status)

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"is_arrested":true`)
}

func TestSetMain(t *testing.T) {
	s := suspectIn(types.NewID(), SuspectIdentified)

	assert.True(t, errors.IsForbidden(s.SetMain(actor(auth.RoleOfficer), true, true, testNow)))
	assert.True(t, errors.IsInvalidState(s.SetMain(actor(auth.RoleDetective), true, false, testNow)))
	require.NoError(t, s.SetMain(actor(auth.RoleDetective), true, true, testNow))
	assert.True(t, s.IsMainSuspect)
}

func TestWarrantReview(t *testing.T) {
	caseID := types.NewID()
	s := suspectIn(caseID, SuspectIdentified)

	_, err := NewWarrant(actor(auth.RoleOfficer), types.NewID(), s, WarrantArrest, "fled", testNow)
	assert.True(t, errors.IsValidation(err), "suspect on another case")

	_, err = NewWarrant(actor(auth.RoleOfficer), caseID, s, WarrantType("seize"), "", testNow)
	assert.True(t, errors.IsValidation(err))

	w, err := NewWarrant(actor(auth.RoleOfficer), caseID, s, WarrantArrest, "fled", testNow)
	require.NoError(t, err)
	assert.Equal(t, WarrantPending, w.Status)
	assert.Equal(t, s.ID, w.SuspectID)

	assert.True(t, errors.IsForbidden(w.Review(actor(auth.RoleDetective), true, "", testNow)))

	approver := actor(auth.RoleChief)
	require.NoError(t, w.Review(approver, true, "granted", testNow))
	assert.Equal(t, WarrantApproved, w.Status)
	assert.Equal(t, approver.ID, w.ApproverID)
	require.NotNil(t, w.ReviewedAt)

	err = w.Review(approver, false, "", testNow)
	assert.True(t, errors.IsInvalidState(err))
	assert.Equal(t, WarrantApproved, w.Status)
}

func TestInterrogation(t *testing.T) {
	detective := actor(auth.RoleDetective)
	arrested := suspectIn(types.NewID(), SuspectArrested)

	_, err := NewInterrogation(detective, suspectIn(types.NewID(), SuspectUnderArrest), 5, "", testNow)
	assert.True(t, errors.IsValidation(err))

	_, err = NewInterrogation(actor(auth.RoleOfficer), arrested, 5, "", testNow)
	assert.True(t, errors.IsForbidden(err))

	for _, score := range []int{0, 11} {
		_, err = NewInterrogation(detective, arrested, score, "", testNow)
		assert.True(t, errors.IsValidation(err), "score %d", score)
	}

	i, err := NewInterrogation(actor(auth.RoleSergeant), arrested, 7, "denies everything", testNow)
	require.NoError(t, err)
	assert.Equal(t, arrested.CaseID, i.CaseID)

	assert.True(t, errors.IsForbidden(i.GiveFeedback(detective, 8, true, "", testNow)))
	assert.True(t, errors.IsValidation(i.GiveFeedback(actor(auth.RoleCaptain), 12, true, "", testNow)))
	require.NoError(t, i.GiveFeedback(actor(auth.RoleCaptain), 8, true, "solid", testNow))
	assert.True(t, errors.IsInvalidState(i.GiveFeedback(actor(auth.RoleChief), 2, false, "", testNow)))
	assert.Equal(t, 8, i.Feedback.FinalScore)
}

func TestNewVerdict(t *testing.T) {
	caseID := types.NewID()
	s := suspectIn(caseID, SuspectArrested)
	judge := auth.NewActor(types.NewID(), auth.NewRoleSet([]string{"qazi"}, false))

	tests := []struct {
		name    string
		actor   auth.Actor
		caseID  types.ID
		in      VerdictInput
		wantErr func(error) bool
	}{
		{"guilty", judge, caseID, VerdictInput{Result: "guilty", Title: "Armed robbery"}, nil},
		{"captain refused", actor(auth.RoleCaptain), caseID, VerdictInput{Result: VerdictGuilty, Title: "x"}, errors.IsForbidden},
		{"foreign suspect", judge, types.NewID(), VerdictInput{Result: VerdictGuilty, Title: "x"}, errors.IsValidation},
		{"unknown result", judge, caseID, VerdictInput{Result: "MAYBE", Title: "x"}, errors.IsValidation},
		{"missing title", judge, caseID, VerdictInput{Result: VerdictInnocent}, errors.IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewVerdict(tt.actor, tt.caseID, s, tt.in, testNow)
			if tt.wantErr != nil {
				assert.True(t, tt.wantErr(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, VerdictGuilty, v.Result)
			assert.Equal(t, judge.ID, v.JudgeID)
		})
	}
}

func TestEvidenceKinds(t *testing.T) {
	officer := actor(auth.RoleOfficer)
	caseID := types.NewID()

	tests := []struct {
		name    string
		kind    EvidenceKind
		payload string
		wantErr bool
	}{
		{"testimony", KindWitnessTestimony, `{"transcript":"saw a red car"}`, false},
		{"empty testimony", KindWitnessTestimony, `{}`, true},
		{"biological", KindBiological, `{"medical_follow_up":"pending"}`, false},
		{"vehicle with plate", KindVehicle, `{"model":"Peugeot 405","color":"white","license_plate":"12A345"}`, false},
		{"vehicle with both", KindVehicle, `{"model":"Pride","license_plate":"1","serial_number":"2"}`, true},
		{"vehicle with neither", KindVehicle, `{"model":"Pride"}`, true},
		{"id document", KindIdentificationDocument, `{"owner_full_name":"Sara N","extra_info":{"issuer":"registry"}}`, false},
		{"other", KindOther, ``, false},
		{"unknown kind", EvidenceKind("fingerprint"), `{}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			details, err := DecodeDetails(tt.kind, json.RawMessage(tt.payload))
			if err == nil {
				_, err = NewEvidence(officer, caseID, false, "Item", "", details, testNow)
			}
			if tt.wantErr {
				assert.True(t, errors.IsValidation(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, details.Kind())
		})
	}
}

func TestEvidenceGuards(t *testing.T) {
	caseID := types.NewID()

	_, err := NewEvidence(actor(auth.RoleTrainee), caseID, false, "Knife", "", Other{}, testNow)
	assert.True(t, errors.IsForbidden(err))

	_, err = NewEvidence(actor(auth.RoleOfficer), caseID, true, "Knife", "", Other{}, testNow)
	assert.True(t, errors.IsInvalidState(err))

	e, err := NewEvidence(actor(auth.RoleOfficer), caseID, false, "Blood sample", "", Biological{}, testNow)
	require.NoError(t, err)

	assert.True(t, errors.IsForbidden(e.VerifyBiological(actor(auth.RoleDetective), "", "")))
	require.NoError(t, e.VerifyBiological(actor(auth.RoleCoroner), "type O", "no match"))
	assert.True(t, e.Details.(Biological).Verified)
	assert.True(t, errors.IsInvalidState(e.VerifyBiological(actor(auth.RoleCoroner), "", "")))

	require.NoError(t, e.ToggleBoard(actor(auth.RoleDetective)))
	assert.True(t, e.IsOnBoard)

	raw, err := json.Marshal(e)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "biological", out["kind"])
	assert.Equal(t, "type O", out["details"].(map[string]any)["medical_follow_up"])

	doc, err := NewEvidence(actor(auth.RoleOfficer), caseID, false, "Passport", "", IdentificationDocument{OwnerFullName: "N"}, testNow)
	require.NoError(t, err)
	assert.True(t, errors.IsValidation(doc.VerifyBiological(actor(auth.RoleCoroner), "", "")))
}

func TestNewBoardConnection(t *testing.T) {
	caseID := types.NewID()
	a, b := types.NewID(), types.NewID()
	detective := actor(auth.RoleDetective)

	tests := []struct {
		name  string
		actor auth.Actor
		in    BoardConnectionInput
		check func(error) bool
	}{
		{"suspect to evidence", detective, BoardConnectionInput{FromSuspectID: a, ToEvidenceID: b}, nil},
		{"evidence to evidence", detective, BoardConnectionInput{FromEvidenceID: a, ToEvidenceID: b}, nil},
		{"officer", actor(auth.RoleOfficer), BoardConnectionInput{FromSuspectID: a, ToEvidenceID: b}, errors.IsForbidden},
		{"no from end", detective, BoardConnectionInput{ToEvidenceID: b}, errors.IsValidation},
		{"two from ends", detective, BoardConnectionInput{FromSuspectID: a, FromEvidenceID: b, ToEvidenceID: b}, errors.IsValidation},
		{"no to end", detective, BoardConnectionInput{FromSuspectID: a}, errors.IsValidation},
		{"two to ends", detective, BoardConnectionInput{FromSuspectID: a, ToSuspectID: b, ToEvidenceID: b}, errors.IsValidation},
		{"self loop", detective, BoardConnectionInput{FromSuspectID: a, ToSuspectID: a}, errors.IsValidation},
		{"long description", detective, BoardConnectionInput{FromSuspectID: a, ToEvidenceID: b, Description: strings.Repeat("x", 256)}, errors.IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewBoardConnection(tt.actor, caseID, tt.in, testNow)
			if tt.check != nil {
				assert.True(t, tt.check(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, caseID, c.CaseID)
			assert.Equal(t, tt.actor.ID, c.CreatedBy)
		})
	}
}

func TestBoardConnectionEnds(t *testing.T) {
	caseID := types.NewID()
	c, err := NewBoardConnection(actor(auth.RoleDetective), caseID,
		BoardConnectionInput{FromSuspectID: types.NewID(), ToEvidenceID: types.NewID()}, testNow)
	require.NoError(t, err)

	assert.NoError(t, c.CheckEnds(caseID, caseID))
	assert.True(t, errors.IsValidation(c.CheckEnds(caseID, types.NewID())))
	assert.True(t, errors.IsValidation(c.CheckEnds(types.NewID(), caseID)))
}

func TestSuspectToggleBoard(t *testing.T) {
	s := suspectIn(types.NewID(), SuspectIdentified)

	assert.True(t, errors.IsForbidden(s.ToggleBoard(actor(auth.RoleOfficer), testNow)))
	assert.False(t, s.IsOnBoard)

	require.NoError(t, s.ToggleBoard(actor(auth.RoleDetective), testNow))
	assert.True(t, s.IsOnBoard)
	require.NoError(t, s.ToggleBoard(actor(auth.RoleDetective), testNow))
	assert.False(t, s.IsOnBoard)
}
