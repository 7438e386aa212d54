package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noirepd/precinct/internal/auth"
	"github.com/noirepd/precinct/internal/shared/types"
)

func TestVisibilityFor(t *testing.T) {
	tests := []struct {
		name    string
		roles   auth.RoleSet
		all     bool
		visible []Status
	}{
		{"trainee", auth.RolesOf(auth.RoleTrainee), false, []Status{StatusPendingTrainee}},
		{"officer", auth.RolesOf(auth.RoleOfficer), false, []Status{StatusPendingOfficer}},
		{"detective", auth.RolesOf(auth.RoleDetective), false, []Status{
			StatusActive, StatusInPursuit, StatusPendingSergeant, StatusPendingChief, StatusSolved,
		}},
		{"trainee and officer union", auth.RolesOf(auth.RoleTrainee, auth.RoleOfficer), false, []Status{
			StatusPendingTrainee, StatusPendingOfficer,
		}},
		{"captain", auth.RolesOf(auth.RoleCaptain), true, nil},
		{"judge via alias", auth.NewRoleSet([]string{"qazi"}, false), true, nil},
		{"superuser", auth.Superuser(), true, nil},
		{"citizen", auth.RoleSet{}, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := VisibilityFor(auth.NewActor(types.NewID(), tt.roles))
			assert.Equal(t, tt.all, v.All)
			assert.Equal(t, tt.visible, v.Statuses)
		})
	}
}

func TestVisibilityAllows(t *testing.T) {
	citizenID := types.NewID()
	complainantID := types.NewID()

	own := caseIn(StatusRejected, CrimeLevel3)
	own.CreatorID = citizenID

	linked := caseIn(StatusCancelled, CrimeLevel3)
	linked.Complainants = []Complainant{{UserID: complainantID}}

	foreign := caseIn(StatusActive, CrimeLevel3)

	citizenView := VisibilityFor(auth.NewActor(citizenID, auth.RoleSet{}))
	assert.True(t, citizenView.Allows(own), "creator sees own case in any status")
	assert.False(t, citizenView.Allows(foreign))

	complainantView := VisibilityFor(auth.NewActor(complainantID, auth.RoleSet{}))
	assert.True(t, complainantView.Allows(linked))

	officerView := VisibilityFor(auth.NewActor(types.NewID(), auth.RolesOf(auth.RoleOfficer)))
	assert.False(t, officerView.Allows(foreign))
	assert.False(t, officerView.Allows(own))

	detectiveView := VisibilityFor(auth.NewActor(types.NewID(), auth.RolesOf(auth.RoleDetective)))
	assert.True(t, detectiveView.Allows(foreign))
	assert.Equal(t, []string{"ACTIVE", "IN_PURSUIT", "PENDING_SERGEANT", "PENDING_CHIEF", "SOLVED"}, detectiveView.StatusStrings())
}

func TestListFilterMatches(t *testing.T) {
	c := caseIn(StatusActive, CrimeLevel1)
	c.Title = "Bank Robbery on 5th"

	active := StatusActive
	solved := StatusSolved
	critical := CrimeLevelCritical

	assert.True(t, ListFilter{}.Matches(c))
	assert.True(t, ListFilter{Status: &active, Search: "robbery"}.Matches(c))
	assert.False(t, ListFilter{Status: &solved}.Matches(c))
	assert.False(t, ListFilter{CrimeLevel: &critical}.Matches(c))
	assert.False(t, ListFilter{Search: "arson"}.Matches(c))
}

func TestListFilterPageBounds(t *testing.T) {
	tests := []struct {
		filter     ListFilter
		limit, off int
	}{
		{ListFilter{}, 50, 0},
		{ListFilter{Limit: 10, Offset: 20}, 10, 20},
		{ListFilter{Limit: 500, Offset: -3}, 50, 0},
	}
	for _, tt := range tests {
		limit, off := tt.filter.PageBounds()
		assert.Equal(t, tt.limit, limit)
		assert.Equal(t, tt.off, off)
	}
}
