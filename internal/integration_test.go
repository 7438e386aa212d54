package internal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/noirepd/precinct/internal/auth"
	caseapp "github.com/noirepd/precinct/internal/case/app"
	casedomain "github.com/noirepd/precinct/internal/case/domain"
	caseinfra "github.com/noirepd/precinct/internal/case/infrastructure"
	invapp "github.com/noirepd/precinct/internal/investigation/app"
	invdomain "github.com/noirepd/precinct/internal/investigation/domain"
	invinfra "github.com/noirepd/precinct/internal/investigation/infrastructure"
	rewardapp "github.com/noirepd/precinct/internal/reward/app"
	rewarddomain "github.com/noirepd/precinct/internal/reward/domain"
	rewardinfra "github.com/noirepd/precinct/internal/reward/infrastructure"
	"github.com/noirepd/precinct/internal/scoring"
	"github.com/noirepd/precinct/internal/shared/config"
	"github.com/noirepd/precinct/internal/shared/database"
	"github.com/noirepd/precinct/internal/shared/events"
	"github.com/noirepd/precinct/internal/shared/types"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type platform struct {
	cases     *caseapp.Service
	inv       *invapp.Service
	rewards   *rewardapp.Service
	ranker    *scoring.Ranker
	directory *auth.StaticDirectory
	recorder  *events.Recorder
}

func newPlatform(clk *clock) *platform {
	rules := config.DefaultWorkflow()
	caseRepo := caseinfra.NewMemoryRepository()
	invRepo := invinfra.NewMemoryRepository()
	rewardRepo := rewardinfra.NewMemoryRepository()

	p := &platform{
		directory: auth.NewStaticDirectory(),
		recorder:  &events.Recorder{},
	}
	tx := database.InlineTransactor{}

	p.ranker = scoring.NewRanker(invinfra.NewMemorySource(caseRepo, invRepo), scoring.NewEngine(rules), nil, 0, caseRepo, rewardRepo).
		WithClock(clk.Now)
	p.cases = caseapp.NewService(caseRepo, invRepo, p.directory, tx, p.recorder, rules).WithClock(clk.Now)
	p.inv = invapp.NewService(invRepo, caseRepo, tx, p.recorder).WithClock(clk.Now)
	p.rewards = rewardapp.NewService(rewardRepo, invRepo, p.ranker, rules, p.recorder).WithClock(clk.Now)
	return p
}

func (p *platform) actor(roles ...auth.Role) auth.Actor {
	a := auth.NewActor(types.NewID(), auth.RolesOf(roles...))
	p.directory.Set(a.ID, a.Roles)
	return a
}

// TestFullPursuitWorkflow follows a scene report through pursuit, a
// citizen tip, the reward payout and the closing arrest.
func TestFullPursuitWorkflow(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	p := newPlatform(clk)

	chief := p.actor(auth.RoleChief)
	detective := p.actor(auth.RoleDetective)
	sergeant := p.actor(auth.RoleSergeant)
	officer := p.actor(auth.RoleOfficer)
	citizen := p.actor(auth.RoleBaseUser)

	// 1. The chief registers a scene, which opens the case directly
	c, err := p.cases.RegisterScene(ctx, chief, caseapp.RegisterSceneInput{
		Title:      "Jewelry store robbery",
		CrimeLevel: casedomain.CrimeLevel2.Ptr(),
		Scene: casedomain.Scene{
			Location:   "Valiasr St.",
			OccurredAt: clk.Now().Add(-2 * time.Hour),
		},
	})
	if err != nil {
		t.Fatalf("Failed to register scene: %v", err)
	}
	if c.Status != casedomain.StatusActive {
		t.Fatalf("Chief's scene report should be active, got %s", c.Status)
	}

	// 2. A detective names the main suspect
	suspect, err := p.inv.AddSuspect(ctx, detective, c.ID, invdomain.SuspectInput{
		FirstName:     "Hamid",
		LastName:      "Sohrabi",
		NationalCode:  "5555555555",
		IsMainSuspect: true,
	})
	if err != nil {
		t.Fatalf("Failed to add suspect: %v", err)
	}

	// 3. Forty days of pursuit put the suspect on the board
	clk.Advance(40 * 24 * time.Hour)

	board, err := p.ranker.MostWanted(ctx)
	if err != nil {
		t.Fatalf("Failed to compute most wanted: %v", err)
	}
	if len(board.Entries) != 1 {
		t.Fatalf("Expected one most wanted entry, got %d", len(board.Entries))
	}
	wantAmount := int64(40 * 2 * 20_000_000)
	if board.Entries[0].RewardAmount != wantAmount {
		t.Errorf("Board reward = %d, want %d", board.Entries[0].RewardAmount, wantAmount)
	}

	// 4. A citizen sends a tip, which passes both reviews
	rep, err := p.rewards.Submit(ctx, citizen, rewarddomain.SubmitInput{
		Description:         "Seen at the bus terminal every morning",
		SuspectNationalCode: "5555555555",
	})
	if err != nil {
		t.Fatalf("Failed to submit tip: %v", err)
	}
	if _, err := p.rewards.OfficerReview(ctx, officer, rep.ID, rewardapp.ReviewInput{Approved: true}); err != nil {
		t.Fatalf("Officer review failed: %v", err)
	}
	rep, err = p.rewards.DetectiveReview(ctx, detective, rep.ID, rewardapp.ReviewInput{Approved: true})
	if err != nil {
		t.Fatalf("Detective review failed: %v", err)
	}
	if rep.SuspectID != suspect.ID {
		t.Errorf("Tip should resolve to suspect %s, got %s", suspect.ID, rep.SuspectID)
	}
	if rep.RewardAmount != wantAmount {
		t.Errorf("Reward amount = %d, want %d", rep.RewardAmount, wantAmount)
	}

	// 5. Resolution, sergeant approval and the arrest close the case
	if _, err := p.cases.SubmitResolution(ctx, detective, c.ID); err != nil {
		t.Fatalf("Failed to submit resolution: %v", err)
	}
	c, err = p.cases.SergeantReview(ctx, sergeant, c.ID, caseapp.ReviewInput{Approved: true})
	if err != nil {
		t.Fatalf("Sergeant review failed: %v", err)
	}
	if c.Status != casedomain.StatusInPursuit {
		t.Fatalf("Case should be in pursuit, got %s", c.Status)
	}

	arrested, err := p.inv.MarkArrested(ctx, sergeant, suspect.ID)
	if err != nil {
		t.Fatalf("Failed to mark arrested: %v", err)
	}
	if arrested.Status != invdomain.SuspectArrested {
		t.Errorf("Suspect should be arrested, got %s", arrested.Status)
	}

	c, err = p.cases.ConfirmArrests(ctx, sergeant, c.ID)
	if err != nil {
		t.Fatalf("Failed to confirm arrests: %v", err)
	}
	if c.Status != casedomain.StatusSolved {
		t.Errorf("Case should be solved, got %s", c.Status)
	}

	board, err = p.ranker.MostWanted(ctx)
	if err != nil {
		t.Fatalf("Failed to compute most wanted: %v", err)
	}
	if len(board.Entries) != 0 {
		t.Errorf("Solved case should leave the board, got %d entries", len(board.Entries))
	}

	// 6. The citizen collects the reward at the station
	payout, err := p.rewards.VerifyPayout(ctx, officer, "5555555555", rep.RewardCode)
	if err != nil {
		t.Fatalf("Failed to verify payout: %v", err)
	}
	if payout.TrackingCode != rep.TrackingCode || payout.IsPaid {
		t.Errorf("Unexpected payout before payment: %+v", payout)
	}
	if _, err := p.rewards.MarkPaid(ctx, officer, rep.ID, rewardapp.MarkPaidInput{TrackingCode: rep.TrackingCode}); err != nil {
		t.Fatalf("Failed to mark paid: %v", err)
	}

	stats, err := p.ranker.Stats(ctx)
	if err != nil {
		t.Fatalf("Failed to compute stats: %v", err)
	}
	if stats.Rewards.PaidCount != 1 || stats.Rewards.TotalAmountPaid != wantAmount {
		t.Errorf("Unexpected reward totals: %+v", stats.Rewards)
	}
	if stats.Suspects.UnderPursuit != 0 {
		t.Errorf("No suspect should be under pursuit, got %d", stats.Suspects.UnderPursuit)
	}

	if len(p.recorder.Types()) == 0 {
		t.Error("Expected notifications to be published")
	}
}
