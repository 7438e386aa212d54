package domain

import (
	"github.com/noirepd/precinct/internal/auth"
	"github.com/noirepd/precinct/internal/shared/types"
)

// roleVisibility is the set of statuses each role may list. Creators and
// complainants additionally see their own cases whatever the status.
var roleVisibility = map[auth.Role][]Status{
	auth.RoleTrainee: {StatusPendingTrainee},
	auth.RoleOfficer: {StatusPendingOfficer},
	auth.RoleSergeant: {
		StatusPendingOfficer, StatusActive, StatusInPursuit,
		StatusPendingSergeant, StatusPendingChief, StatusSolved,
	},
	auth.RoleDetective: {
		StatusActive, StatusInPursuit, StatusPendingSergeant,
		StatusPendingChief, StatusSolved,
	},
	auth.RoleCaptain: AllStatuses,
	auth.RoleChief:   AllStatuses,
	auth.RoleJudge:   AllStatuses,
}

// Visibility is the evaluated read predicate for one actor.
type Visibility struct {
	UserID   types.ID
	All      bool
	Statuses []Status
}

// VisibilityFor evaluates the role table once for the actor.
func VisibilityFor(actor auth.Actor) Visibility {
	v := Visibility{UserID: actor.ID}
	if actor.Roles.IsSuperuser() {
		v.All = true
		return v
	}

	seen := make(map[Status]bool)
	for _, code := range actor.Roles.Codes() {
		for _, st := range roleVisibility[auth.Role(code)] {
			seen[st] = true
		}
	}
	if len(seen) == len(AllStatuses) {
		v.All = true
		return v
	}

	for _, st := range AllStatuses {
		if seen[st] {
			v.Statuses = append(v.Statuses, st)
		}
	}
	return v
}

// Allows evaluates the predicate against a single case.
func (v Visibility) Allows(c *Case) bool {
	if v.All {
		return true
	}
	if !v.UserID.IsZero() && (c.CreatorID == v.UserID || c.IsComplainant(v.UserID)) {
		return true
	}
	for _, st := range v.Statuses {
		if c.Status == st {
			return true
		}
	}
	return false
}

// StatusStrings returns the visible statuses as strings for query building.
func (v Visibility) StatusStrings() []string {
	out := make([]string, len(v.Statuses))
	for i, st := range v.Statuses {
		out[i] = string(st)
	}
	return out
}
