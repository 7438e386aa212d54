// Package auth provides the role model used to authorize workflow actions.
package auth

import (
	"sort"
	"strings"
)

// Role is a role code as issued by the accounts subsystem.
type Role string

// Police ranks
const (
	RoleTrainee   Role = "trainee"
	RoleOfficer   Role = "police_officer"
	RoleSergeant  Role = "sergeant"
	RoleDetective Role = "detective"
	RoleCaptain   Role = "captain"
	RoleChief     Role = "police_chief"
)

// Non-rank roles
const (
	RoleJudge       Role = "judge"
	RoleCoroner     Role = "coroner"
	RoleComplainant Role = "complainant"
	RoleBaseUser    Role = "base_user"
)

// SuperuserSeniority is the rank of a superuser, above every police rank.
const SuperuserSeniority = 100

// seniority ranks police roles for the officer review guard. Roles absent
// from the table rank 0.
var seniority = map[Role]int{
	RoleTrainee:   1,
	RoleOfficer:   2,
	RoleSergeant:  3,
	RoleDetective: 4,
	RoleCaptain:   5,
	RoleChief:     6,
}

// aliases maps legacy role codes onto their canonical form.
var aliases = map[string]Role{
	"qazi":    RoleJudge,
	"officer": RoleOfficer,
	"chief":   RoleChief,
}

// Capability groups. Each workflow action names one of these instead of
// listing role codes at the call site.
var (
	OfficerOrHigher = []Role{RoleOfficer, RoleSergeant, RoleDetective, RoleCaptain, RoleChief}
	SergeantGroup   = []Role{RoleSergeant, RoleCaptain, RoleChief}
	DetectiveGroup  = []Role{RoleDetective, RoleCaptain, RoleChief}
	CaptainGroup    = []Role{RoleCaptain, RoleChief}
	ChiefOnly       = []Role{RoleChief}
	TraineeOnly     = []Role{RoleTrainee}
	JudgeOnly       = []Role{RoleJudge}
)

// Seniority returns the rank of a single role.
func Seniority(r Role) int {
	return seniority[r]
}

// NormalizeRole lowercases a role code and resolves aliases.
func NormalizeRole(code string) Role {
	code = strings.ToLower(strings.TrimSpace(code))
	if r, ok := aliases[code]; ok {
		return r
	}
	return Role(code)
}

// RoleSet is the effective set of roles of one actor. It is built once per
// request and is immutable afterwards.
type RoleSet struct {
	roles     map[Role]struct{}
	superuser bool
}

// NewRoleSet builds a RoleSet from raw role codes.
func NewRoleSet(codes []string, superuser bool) RoleSet {
	rs := RoleSet{roles: make(map[Role]struct{}, len(codes)), superuser: superuser}
	for _, c := range codes {
		if r := NormalizeRole(c); r != "" {
			rs.roles[r] = struct{}{}
		}
	}
	return rs
}

// RolesOf is a shorthand for tests and fixtures.
func RolesOf(roles ...Role) RoleSet {
	codes := make([]string, len(roles))
	for i, r := range roles {
		codes[i] = string(r)
	}
	return NewRoleSet(codes, false)
}

// Superuser returns a RoleSet that satisfies every capability group.
func Superuser() RoleSet {
	return NewRoleSet(nil, true)
}

// Has reports whether the set contains the role. Superusers do not
// implicitly hold named roles; use HasAny for capability checks.
func (rs RoleSet) Has(r Role) bool {
	_, ok := rs.roles[r]
	return ok
}

// HasAny reports whether the actor may act as any of the given roles.
// A superuser passes every check.
func (rs RoleSet) HasAny(roles ...Role) bool {
	if rs.superuser {
		return true
	}
	for _, r := range roles {
		if rs.Has(r) {
			return true
		}
	}
	return false
}

// MaxSeniority returns the highest rank held, SuperuserSeniority for superusers.
func (rs RoleSet) MaxSeniority() int {
	if rs.superuser {
		return SuperuserSeniority
	}
	highest := 0
	for r := range rs.roles {
		if s := seniority[r]; s > highest {
			highest = s
		}
	}
	return highest
}

func (rs RoleSet) IsSuperuser() bool {
	return rs.superuser
}

// IsChief reports an explicit chief role; it bypasses the seniority guard.
func (rs RoleSet) IsChief() bool {
	return rs.Has(RoleChief)
}

// Codes returns the sorted role codes.
func (rs RoleSet) Codes() []string {
	out := make([]string, 0, len(rs.roles))
	for r := range rs.roles {
		out = append(out, string(r))
	}
	sort.Strings(out)
	return out
}

// IsInternal reports whether the actor belongs to the police force.
func (rs RoleSet) IsInternal() bool {
	return rs.HasAny(OfficerOrHigher...)
}
