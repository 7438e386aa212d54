package scoring

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	casedomain "github.com/noirepd/precinct/internal/case/domain"
)

var levels = []casedomain.CrimeLevel{
	casedomain.CrimeLevelCritical,
	casedomain.CrimeLevel1,
	casedomain.CrimeLevel2,
	casedomain.CrimeLevel3,
}

func TestRewardFormulaProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("single open case pays days times severity times unit", prop.ForAll(
		func(days, level int) bool {
			lvl := levels[level]
			s := suspect("1212121212", kase(casedomain.StatusActive, lvl), daysAgo(days))
			want := int64(days) * int64(CrimeLevelScore(lvl)) * 20_000_000
			return engine().RewardAmountForSuspect(s, []SuspectSnapshot{s}, now) == want
		},
		gen.IntRange(0, 3650),
		gen.IntRange(0, len(levels)-1),
	))

	properties.Property("closed cases never add pursuit days", prop.ForAll(
		func(openDays, closedDays int) bool {
			open := suspect("1313131313", kase(casedomain.StatusActive, casedomain.CrimeLevelCritical), daysAgo(openDays))
			closed := suspect("1313131313", kase(casedomain.StatusSolved, casedomain.CrimeLevelCritical), daysAgo(closedDays))
			got := engine().RewardAmountForSuspect(open, []SuspectSnapshot{open, closed}, now)
			return got == int64(openDays)*4*20_000_000
		},
		gen.IntRange(0, 1000),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}

func TestMostWantedFilterProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("board holds exactly the groups pursued over 30 days, sorted", prop.ForAll(
		func(ages []int) bool {
			rows := make([]SuspectSnapshot, len(ages))
			expected := 0
			for i, age := range ages {
				rows[i] = suspect("", kase(casedomain.StatusActive, levels[i%len(levels)]), daysAgo(age))
				if age > 30 {
					expected++
				}
			}

			entries := engine().MostWanted(rows, now)
			if len(entries) != expected {
				return false
			}
			for i, e := range entries {
				if e.MaxPursuitDays <= 30 {
					return false
				}
				if i > 0 && entries[i-1].Score < e.Score {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 90)),
	))

	properties.TestingRun(t)
}
