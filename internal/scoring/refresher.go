package scoring

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Refresher recomputes the most-wanted board on a schedule
type Refresher struct {
	cron    *cron.Cron
	ranker  *Ranker
	spec    string
	timeout time.Duration
}

func NewRefresher(ranker *Ranker, spec string) *Refresher {
	return &Refresher{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		ranker:  ranker,
		spec:    spec,
		timeout: time.Minute,
	}
}

// Start registers the job and starts the scheduler. The board is computed
// once immediately so the gauge is populated before the first tick.
func (r *Refresher) Start() error {
	if _, err := r.cron.AddFunc(r.spec, r.run); err != nil {
		return err
	}
	r.cron.Start()
	go r.run()
	zap.S().Infow("most wanted refresher started", "schedule", r.spec)
	return nil
}

// Stop waits for a running job to finish
func (r *Refresher) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	zap.S().Info("most wanted refresher stopped")
}

func (r *Refresher) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	board, err := r.ranker.Refresh(ctx)
	if err != nil {
		zap.S().Errorw("most wanted refresh failed", "error", err)
		return
	}
	zap.S().Debugw("most wanted refreshed", "entries", len(board.Entries))
}
