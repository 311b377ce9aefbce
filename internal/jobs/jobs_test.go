package jobs_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smartdom/crm-api/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type countingNotifier struct {
	calls    atomic.Int32
	reported int
	err      error
}

func (n *countingNotifier) NotifyOverdueStages(ctx context.Context) (int, error) {
	n.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("job context has no deadline")
	}
	return n.reported, n.err
}

func TestScheduler_AddRemove(t *testing.T) {
	s := jobs.NewScheduler(zap.NewNop())

	require.NoError(t, s.Add("b", "@every 1h", func() {}))
	require.NoError(t, s.Add("a", "0 */15 * * * *", func() {}))
	assert.Equal(t, []string{"a", "b"}, s.Names())

	assert.Error(t, s.Add("a", "@every 1h", func() {}), "duplicate names are rejected")
	assert.Error(t, s.Add("bad", "not a cron", func() {}))

	require.NoError(t, s.Remove("a"))
	assert.Equal(t, []string{"b"}, s.Names())
	assert.Error(t, s.Remove("a"))
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := jobs.NewScheduler(zap.NewNop())
	ran := make(chan struct{}, 1)
	require.NoError(t, s.Add("tick", "@every 1s", func() {
		select {
		case ran <- struct{}{}:
		default:
		}
	}))

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestOverdueJob_Run(t *testing.T) {
	t.Run("logs reported stages", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		notifier := &countingNotifier{reported: 2}

		jobs.NewOverdueJob(notifier, zap.New(core), time.Second).Run()

		assert.Equal(t, int32(1), notifier.calls.Load())
		entries := logs.FilterMessage("overdue stages reported").All()
		require.Len(t, entries, 1)
		assert.Equal(t, int64(2), entries[0].ContextMap()["reported"])
	})

	t.Run("stays quiet when nothing is overdue", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		jobs.NewOverdueJob(&countingNotifier{}, zap.New(core), time.Second).Run()
		assert.Zero(t, logs.Len())
	})

	t.Run("logs failures", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		notifier := &countingNotifier{err: errors.New("database is down")}
		jobs.NewOverdueJob(notifier, zap.New(core), 0).Run()
		assert.Equal(t, 1, logs.FilterMessage("overdue stage check failed").Len())
	})
}
