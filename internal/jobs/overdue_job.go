package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// OverdueJobName is the scheduler name of the overdue stage check
const OverdueJobName = "overdue_stages"

// OverdueNotifier reports active stages past their deadline
type OverdueNotifier interface {
	NotifyOverdueStages(ctx context.Context) (int, error)
}

// OverdueJob notifies responsibles about stages that ran past their deadline.
// Each stage row is reported once until its deadline is extended.
type OverdueJob struct {
	notifier OverdueNotifier
	logger   *zap.Logger
	timeout  time.Duration
}

func NewOverdueJob(notifier OverdueNotifier, logger *zap.Logger, timeout time.Duration) *OverdueJob {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &OverdueJob{notifier: notifier, logger: logger, timeout: timeout}
}

// Run performs one check. It matches the scheduler's job signature.
func (j *OverdueJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	reported, err := j.notifier.NotifyOverdueStages(ctx)
	if err != nil {
		j.logger.Error("overdue stage check failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return
	}
	if reported > 0 {
		j.logger.Info("overdue stages reported",
			zap.Int("reported", reported),
			zap.Duration("duration", time.Since(start)))
	}
}
