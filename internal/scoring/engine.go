// Package scoring computes pursuit days, reward amounts and the public
// rankings from read-only snapshots of cases, suspects and verdicts.
package scoring

import (
	"sort"
	"time"

	casedomain "github.com/noirepd/precinct/internal/case/domain"
	"github.com/noirepd/precinct/internal/shared/config"
	"github.com/noirepd/precinct/internal/shared/types"
)

// CaseSnapshot is the part of a case scoring looks at
type CaseSnapshot struct {
	ID         types.ID              `json:"id"`
	Status     casedomain.Status     `json:"status"`
	CrimeLevel casedomain.CrimeLevel `json:"crime_level"`
}

// SuspectSnapshot is one suspect row together with its case. Case is nil
// when the case could not be loaded.
type SuspectSnapshot struct {
	ID           types.ID
	NationalCode types.NationalCode
	FullName     string
	Arrested     bool
	CreatedAt    time.Time
	Case         *CaseSnapshot
}

// groupKey identifies the person behind a suspect row. Rows without a
// national code stand alone.
func (s SuspectSnapshot) groupKey() string {
	if s.NationalCode.IsZero() {
		return "suspect:" + s.ID.String()
	}
	return s.NationalCode.String()
}

// IsCaseOpen reports whether the case still accrues pursuit time.
func IsCaseOpen(c *CaseSnapshot) bool {
	return c != nil && c.Status.IsOpen()
}

// PursuitDays counts whole days since the suspect was identified, while the
// case is open and the suspect is at large.
func PursuitDays(s SuspectSnapshot, now time.Time) int {
	if s.Arrested || !IsCaseOpen(s.Case) {
		return 0
	}
	days := int(now.Sub(s.CreatedAt) / (24 * time.Hour))
	if days < 0 {
		return 0
	}
	return days
}

// CrimeLevelScore maps a crime level to its severity weight. The weight
// runs opposite to the enum value.
func CrimeLevelScore(level casedomain.CrimeLevel) int {
	switch level {
	case casedomain.CrimeLevel3:
		return 1
	case casedomain.CrimeLevel2:
		return 2
	case casedomain.CrimeLevel1:
		return 3
	case casedomain.CrimeLevelCritical:
		return 4
	}
	return 0
}

// Engine holds the numeric rules. Its methods are pure.
type Engine struct {
	RewardUnit int64
	// MinDays is exclusive.
	MinDays int
}

func NewEngine(rules config.WorkflowConfig) Engine {
	return Engine{RewardUnit: rules.RewardUnit, MinDays: rules.MostWantedMinDays}
}

// Group is the aggregate of every suspect row of one person.
type Group struct {
	Key                string
	NationalCode       types.NationalCode
	FullName           string
	SuspectIDs         []types.ID
	MaxPursuitDays     int
	MaxCrimeLevelScore int
	latest             time.Time
}

// Score is pursuit days times severity
func (g Group) Score() int {
	return g.MaxPursuitDays * g.MaxCrimeLevelScore
}

func (g *Group) add(s SuspectSnapshot, now time.Time) {
	g.SuspectIDs = append(g.SuspectIDs, s.ID)
	if s.Case != nil {
		if score := CrimeLevelScore(s.Case.CrimeLevel); score > g.MaxCrimeLevelScore {
			g.MaxCrimeLevelScore = score
		}
	}
	if days := PursuitDays(s, now); days > g.MaxPursuitDays {
		g.MaxPursuitDays = days
	}
	if g.FullName == "" || s.CreatedAt.After(g.latest) {
		g.FullName = s.FullName
		g.latest = s.CreatedAt
	}
}

// GroupSuspects aggregates rows by person. Severity comes from every case
// ever charged; pursuit days only from open ones.
func GroupSuspects(rows []SuspectSnapshot, now time.Time) map[string]*Group {
	groups := make(map[string]*Group)
	for _, s := range rows {
		key := s.groupKey()
		g, ok := groups[key]
		if !ok {
			g = &Group{Key: key, NationalCode: s.NationalCode}
			groups[key] = g
		}
		g.add(s, now)
	}
	return groups
}

// RewardAmountForSuspect computes the reward for information on target,
// given every row sharing its national code (target included or not).
// A suspect without a national code forms its own group, which yields the
// same number as scoring its own case alone.
func (e Engine) RewardAmountForSuspect(target SuspectSnapshot, rows []SuspectSnapshot, now time.Time) int64 {
	g := &Group{Key: target.groupKey()}
	g.add(target, now)
	if !target.NationalCode.IsZero() {
		for _, s := range rows {
			if s.ID != target.ID && s.NationalCode == target.NationalCode {
				g.add(s, now)
			}
		}
	}
	return e.amount(g.Score())
}

func (e Engine) amount(score int) int64 {
	return int64(score) * e.RewardUnit
}

// Entry is one line of the most-wanted board
type Entry struct {
	Key                string             `json:"key"`
	NationalCode       types.NationalCode `json:"national_code,omitempty"`
	FullName           string             `json:"full_name"`
	SuspectIDs         []types.ID         `json:"suspect_ids"`
	MaxPursuitDays     int                `json:"max_pursuit_days"`
	MaxCrimeLevelScore int                `json:"max_crime_level_score"`
	Score              int                `json:"score"`
	RewardAmount       int64              `json:"reward_amount"`
}

// MostWanted ranks the people pursued for more than MinDays open days.
// Ties break on pursuit days, then on key.
func (e Engine) MostWanted(rows []SuspectSnapshot, now time.Time) []Entry {
	entries := []Entry{}
	for _, g := range GroupSuspects(rows, now) {
		if g.MaxPursuitDays <= e.MinDays {
			continue
		}
		entries = append(entries, Entry{
			Key:                g.Key,
			NationalCode:       g.NationalCode,
			FullName:           g.FullName,
			SuspectIDs:         g.SuspectIDs,
			MaxPursuitDays:     g.MaxPursuitDays,
			MaxCrimeLevelScore: g.MaxCrimeLevelScore,
			Score:              g.Score(),
			RewardAmount:       e.amount(g.Score()),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.MaxPursuitDays != b.MaxPursuitDays {
			return a.MaxPursuitDays > b.MaxPursuitDays
		}
		return a.Key < b.Key
	})
	return entries
}

// VerdictSnapshot is a ruling joined with its suspect
type VerdictSnapshot struct {
	SuspectID    types.ID
	NationalCode types.NationalCode
	FullName     string
	Guilty       bool
	CreatedAt    time.Time
}

// CriminalEntry counts convictions of one person
type CriminalEntry struct {
	Key          string             `json:"key"`
	NationalCode types.NationalCode `json:"national_code,omitempty"`
	FullName     string             `json:"full_name"`
	Convictions  int                `json:"convictions"`
}

// CriminalRanking groups guilty verdicts by person, most convictions first.
func CriminalRanking(verdicts []VerdictSnapshot) []CriminalEntry {
	byKey := make(map[string]*CriminalEntry)
	latest := make(map[string]time.Time)
	for _, v := range verdicts {
		if !v.Guilty {
			continue
		}
		key := SuspectSnapshot{ID: v.SuspectID, NationalCode: v.NationalCode}.groupKey()
		e, ok := byKey[key]
		if !ok {
			e = &CriminalEntry{Key: key, NationalCode: v.NationalCode}
			byKey[key] = e
		}
		e.Convictions++
		if e.FullName == "" || v.CreatedAt.After(latest[key]) {
			e.FullName = v.FullName
			latest[key] = v.CreatedAt
		}
	}

	out := make([]CriminalEntry, 0, len(byKey))
	for _, e := range byKey {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Convictions != out[j].Convictions {
			return out[i].Convictions > out[j].Convictions
		}
		return out[i].Key < out[j].Key
	})
	return out
}
