package jobs

import (
	"context"
	"fmt"

	"github.com/hirewire/resumeq/internal/core"
)

// PollOutcome is the result of one claim-and-process cycle.
type PollOutcome struct {
	// Claimed is false when no queued job existed; Result is nil then.
	Claimed bool
	Result  *core.ProcessResult
}

// ProcessNext performs at most one claim-and-process cycle. Safety under
// concurrent callers is delegated entirely to the store's atomic claim.
// An empty queue is the normal outcome, not an error, and still fires the
// change notifier so listeners can tell "polled, nothing to do" from
// silence.
func (p *Processor) ProcessNext(ctx context.Context) (*PollOutcome, error) {
	job, err := p.store.ClaimNextQueued(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to claim next job: %w", err)
	}
	if job == nil {
		p.logger.Debug("no queued jobs to process")
		if p.notifier != nil {
			event := core.QueueEvent{Event: "queue.polled"}
			if pubErr := p.notifier.Publish(ctx, event); pubErr != nil {
				p.logger.Warn("failed to publish queue event", "error", pubErr)
			}
		}
		return &PollOutcome{Claimed: false}, nil
	}

	result, err := p.Process(ctx, job)
	if err != nil {
		return nil, err
	}
	return &PollOutcome{Claimed: true, Result: result}, nil
}

// SubmitAndProcess is the blocking path: it inserts the row already marked
// inprogress, owned by the calling request, and runs the pipeline on it
// inline. The row never enters the queued population, so it cannot be
// claimed by a concurrent poll; it runs ahead of older queued jobs.
func (p *Processor) SubmitAndProcess(ctx context.Context, job core.NewJob) (*core.ProcessResult, error) {
	job.Status = core.StatusInProgress

	row, err := p.store.Insert(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("failed to insert blocking job: %w", err)
	}
	p.logger.Info("inserted blocking job", "job_id", row.ID, "file", row.FileName)

	return p.Process(ctx, row)
}
