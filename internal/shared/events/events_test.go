package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noirepd/precinct/internal/shared/types"
)

func TestStreamName(t *testing.T) {
	id := types.NewID()

	assert.Equal(t, "precinct-case-"+id.String(), streamName("precinct", NewEvent("case.status_changed", "case", id, nil)))
	assert.Equal(t, "precinct-reward-"+id.String(), streamName("precinct", NewEvent("reward.paid", "", id, nil)))
	assert.Equal(t, "precinct-ranking_refreshed", streamName("precinct", NewEvent("ranking.refreshed", "scoring", "", nil)))
}

func TestNotifySwallowsFailures(t *testing.T) {
	rec := &Recorder{Err: errors.New("sink down")}

	assert.NotPanics(t, func() {
		Notify(context.Background(), rec, NewEvent("case.created", "case", types.NewID(), nil))
	})
	assert.Empty(t, rec.Events())
}

func TestNotifyIgnoresCallerCancellation(t *testing.T) {
	rec := &Recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	Notify(ctx, rec,
		NewEvent("suspect.added", "investigation", types.NewID(), nil),
		NewEvent("suspect.status_changed", "investigation", types.NewID(), nil),
	)

	assert.Equal(t, []string{"suspect.added", "suspect.status_changed"}, rec.Types())
}

func TestNotifyNilPublisher(t *testing.T) {
	assert.NotPanics(t, func() {
		Notify(context.Background(), nil, NewEvent("x", "y", "", nil))
	})
}
