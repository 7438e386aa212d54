package domain

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/noirepd/precinct/internal/auth"
	"github.com/noirepd/precinct/internal/shared/types"
)

// Replays arbitrary screening outcomes against a complaint and checks that
// attempts never decrease, the case is cancelled exactly when the third
// attempt is reached, and cancellation is final.
func TestScreeningAttemptsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("attempts are monotonic and cap at cancellation", prop.ForAll(
		func(outcomes []bool) bool {
			creator := auth.NewActor(types.NewID(), auth.RoleSet{})
			trainee := auth.NewActor(types.NewID(), auth.RolesOf(auth.RoleTrainee))
			c, err := NewComplaint(creator, "Vandalism", "", CrimeLevel3, testNow)
			if err != nil {
				return false
			}

			prev := c.SubmissionAttempts
			for _, approved := range outcomes {
				if c.Status == StatusRejected {
					if err := c.Resubmit(creator, nil, nil, testNow); err != nil {
						return false
					}
				}
				if c.Status != StatusPendingTrainee {
					if c.TraineeReview(trainee, approved, "", nil, 3, testNow) == nil {
						return false
					}
					continue
				}
				if err := c.TraineeReview(trainee, approved, "", nil, 3, testNow); err != nil {
					return false
				}
				if c.SubmissionAttempts < prev {
					return false
				}
				prev = c.SubmissionAttempts
				if (c.Status == StatusCancelled) != (c.SubmissionAttempts >= 3) {
					return false
				}
				if c.Status == StatusPendingOfficer {
					break
				}
			}
			return c.SubmissionAttempts <= 3
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

var rankedRoles = []auth.Role{
	auth.RoleTrainee, auth.RoleOfficer, auth.RoleSergeant,
	auth.RoleDetective, auth.RoleCaptain, auth.RoleChief,
}

// Officer review succeeds exactly when the reviewer is an officer or above
// and either holds the chief role or strictly outranks the creator.
func TestOfficerReviewSeniorityProperty(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("seniority guard", prop.ForAll(
		func(reviewerIdx, creatorIdx int, creatorIsCitizen bool) bool {
			reviewerRole := rankedRoles[reviewerIdx]
			creatorRoles := auth.RolesOf(rankedRoles[creatorIdx])
			if creatorIsCitizen {
				creatorRoles = auth.RoleSet{}
			}

			c := caseIn(StatusPendingOfficer, CrimeLevel2)
			reviewer := auth.NewActor(types.NewID(), auth.RolesOf(reviewerRole))
			err := c.OfficerReview(reviewer, creatorRoles, true, "", testNow)

			isPolice := reviewerRole != auth.RoleTrainee
			outranks := auth.Seniority(reviewerRole) > creatorRoles.MaxSeniority()
			want := isPolice && (reviewerRole == auth.RoleChief || outranks)
			return (err == nil) == want
		},
		gen.IntRange(0, len(rankedRoles)-1),
		gen.IntRange(0, len(rankedRoles)-1),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
