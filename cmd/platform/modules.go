package main

import (
	"net/http"

	"go.uber.org/zap"

	access "github.com/noirepd/precinct/internal/auth"
	caseapi "github.com/noirepd/precinct/internal/case/api"
	caseapp "github.com/noirepd/precinct/internal/case/app"
	casedomain "github.com/noirepd/precinct/internal/case/domain"
	caseinfra "github.com/noirepd/precinct/internal/case/infrastructure"
	invapi "github.com/noirepd/precinct/internal/investigation/api"
	invapp "github.com/noirepd/precinct/internal/investigation/app"
	invdomain "github.com/noirepd/precinct/internal/investigation/domain"
	invinfra "github.com/noirepd/precinct/internal/investigation/infrastructure"
	rewardapi "github.com/noirepd/precinct/internal/reward/api"
	rewardapp "github.com/noirepd/precinct/internal/reward/app"
	rewarddomain "github.com/noirepd/precinct/internal/reward/domain"
	rewardinfra "github.com/noirepd/precinct/internal/reward/infrastructure"
	"github.com/noirepd/precinct/internal/scoring"
	"github.com/noirepd/precinct/internal/shared/auth"
	"github.com/noirepd/precinct/internal/shared/database"
	"github.com/noirepd/precinct/internal/shared/events"
	"github.com/noirepd/precinct/internal/shared/types"
)

// investigationStore is what the investigation repositories provide to
// the case workflow as well as to their own service.
type investigationStore interface {
	invdomain.Repository
	caseapp.SuspectGateway
}

type rewardStore interface {
	rewarddomain.Repository
	scoring.RewardCounter
}

type modules struct {
	cases         *caseapi.Handler
	investigation *invapi.Handler
	rewards       *rewardapi.Handler
	scoring       *scoring.Handler
	ranker        *scoring.Ranker

	// remember feeds the in-memory role directory in limited mode
	remember func(http.Handler) http.Handler
}

// buildModules wires the stores, services and handlers. With a database
// everything is PostgreSQL-backed; without one the same services run on
// in-memory stores and the role directory learns roles from bearer tokens.
func buildModules(app *App) modules {
	var (
		caseRepo   casedomain.Repository
		invRepo    investigationStore
		rewardRepo rewardStore
		source     scoring.Source
		directory  access.Directory
		tx         database.Transactor
		mods       modules
	)

	if app.DB != nil {
		pool := app.DB.Pool
		investigations := invinfra.NewPostgresRepository(pool)

		caseRepo = caseinfra.NewPostgresRepository(pool)
		invRepo = investigations
		rewardRepo = rewardinfra.NewPostgresRepository(pool)
		source = investigations
		directory = access.NewPostgresDirectory(pool)
		tx = database.NewTransactor(pool)
	} else {
		cases := caseinfra.NewMemoryRepository()
		investigations := invinfra.NewMemoryRepository()
		roles := access.NewStaticDirectory()

		caseRepo = cases
		invRepo = investigations
		rewardRepo = rewardinfra.NewMemoryRepository()
		source = invinfra.NewMemorySource(cases, investigations)
		directory = roles
		tx = database.InlineTransactor{}
		mods.remember = auth.Remember(roles)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if app.Bus != nil {
		publisher = app.Bus
	}
	var cache scoring.Cache
	if app.Cache != nil {
		cache = app.Cache
	}

	rules := app.Config.Workflow
	mods.ranker = scoring.NewRanker(source, scoring.NewEngine(rules), cache, rules.RankingCacheTTL, caseRepo, rewardRepo)

	caseSvc := caseapp.NewService(caseRepo, invRepo, directory, tx, publisher, rules)
	invSvc := invapp.NewService(invRepo, caseRepo, tx, publisher)
	rewardSvc := rewardapp.NewService(rewardRepo, invRepo, mods.ranker, rules, publisher)

	mods.cases = caseapi.NewHandler(caseSvc)
	mods.investigation = invapi.NewHandler(invSvc)
	mods.rewards = rewardapi.NewHandler(rewardSvc)
	mods.scoring = scoring.NewHandler(mods.ranker)

	zap.S().Infow("modules wired", "database", app.DB != nil, "cache", cache != nil)
	return mods
}

func parseOrNewID(s string) (types.ID, error) {
	if s == "" {
		return types.NewID(), nil
	}
	return types.ParseID(s)
}
