// Package jobs holds the worker-pool job types the processor executes.
package jobs

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Yashaswini-V21/HuddleUp/internal/pipeline"
	"github.com/Yashaswini-V21/HuddleUp/internal/queue"
)

// Processor runs the pipeline for one claimed job.
type Processor interface {
	Process(ctx context.Context, job *queue.Job) error
}

// Settler is the queue-side settlement contract for an attempt.
type Settler interface {
	Complete(ctx context.Context, job *queue.Job) error
	// Fail reports whether a retry was scheduled.
	Fail(ctx context.Context, job *queue.Job, cause error, fatal bool) (bool, error)
}

// FailureRecorder writes the terminal failure onto the video record.
type FailureRecorder interface {
	MarkFailed(ctx context.Context, id, message string) error
}

// ProcessVideoJob adapts one claimed queue job to the worker pool and
// settles its outcome: success discards the queue record, a retryable
// failure schedules backoff, and a fatal or exhausted failure marks the
// video record failed.
type ProcessVideoJob struct {
	Job      *queue.Job
	Pipeline Processor
	Queue    Settler
	Videos   FailureRecorder
	Log      *logrus.Logger
}

func NewProcessVideoJob(job *queue.Job, p Processor, q Settler, videos FailureRecorder, log *logrus.Logger) *ProcessVideoJob {
	return &ProcessVideoJob{Job: job, Pipeline: p, Queue: q, Videos: videos, Log: log}
}

// ID returns the unique identifier of the job.
func (j *ProcessVideoJob) ID() string {
	return j.Job.ID
}

// Execute runs the pipeline and settles the attempt.
func (j *ProcessVideoJob) Execute(ctx context.Context) error {
	err := j.Pipeline.Process(ctx, j.Job)
	if err == nil {
		return j.Queue.Complete(ctx, j.Job)
	}

	retrying, settleErr := j.Queue.Fail(ctx, j.Job, err, pipeline.IsFatal(err))
	if settleErr != nil {
		// The attempt is unsettled: the job is still on the processing
		// list and the reaper will redeliver it, so the terminal verdict
		// belongs to a later attempt. Marking the record failed here
		// would be undone by that retry.
		j.Log.WithField("job_id", j.Job.ID).WithError(settleErr).Error("Failed to settle job outcome")
		return err
	}

	if !retrying {
		if markErr := j.Videos.MarkFailed(ctx, j.Job.Payload.VideoID, err.Error()); markErr != nil {
			// The terminal state write failed; the record stays in
			// processing until an operator intervenes.
			j.Log.WithField("video_id", j.Job.Payload.VideoID).WithError(markErr).Error("Failed to persist terminal failure")
		}
	}
	return err
}
