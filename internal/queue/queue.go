// Package queue is the durable work queue between upload acceptance and
// processing. Jobs live in Redis: a ready list feeds workers, a
// processing list tracks claimed jobs until they settle, a delayed
// sorted set holds retries until their backoff expires, and a failed
// list retains exhausted jobs for inspection.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "huddleup:videos:"

const maxErrorLength = 1024

// Payload describes one unit of processing work. Malformed submissions
// are rejected at enqueue time, not deep inside a worker.
type Payload struct {
	VideoID     string `json:"video_id" validate:"required"`
	InputPath   string `json:"input_path" validate:"required"`
	SubmitterID string `json:"submitter_id" validate:"required"`
}

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusRetrying   Status = "retrying"
	StatusFailed     Status = "failed"
)

// Job is one claimed attempt. Attempt counts this execution: 1 on the
// first run, up to the queue's attempt limit.
type Job struct {
	ID      string
	Payload Payload
	Attempt int
}

// JobState is the queue-side view of a job, served by the job
// introspection endpoint.
type JobState struct {
	ID          string    `json:"id"`
	VideoID     string    `json:"videoId"`
	SubmitterID string    `json:"submitterId"`
	Status      Status    `json:"status"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"lastError,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

var ErrJobNotFound = errors.New("job not found")

type Queue struct {
	rdb         *redis.Client
	log         *logrus.Logger
	validate    *validator.Validate
	maxAttempts int
	backoffBase time.Duration
	visibility  time.Duration
}

type Options struct {
	MaxAttempts       int
	BackoffBase       time.Duration
	VisibilityTimeout time.Duration
}

func New(rdb *redis.Client, log *logrus.Logger, opts Options) *Queue {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 2 * time.Second
	}
	if opts.VisibilityTimeout <= 0 {
		opts.VisibilityTimeout = 15 * time.Minute
	}
	return &Queue{
		rdb:         rdb,
		log:         log,
		validate:    validator.New(),
		maxAttempts: opts.MaxAttempts,
		backoffBase: opts.BackoffBase,
		visibility:  opts.VisibilityTimeout,
	}
}

func readyKey() string      { return keyPrefix + "ready" }
func processingKey() string { return keyPrefix + "processing" }
func delayedKey() string    { return keyPrefix + "delayed" }
func failedKey() string     { return keyPrefix + "failed" }
func jobKey(id string) string {
	return keyPrefix + "job:" + id
}

// Enqueue validates the payload, persists the job record and pushes it
// onto the ready list. Returns the new job id.
func (q *Queue) Enqueue(ctx context.Context, videoID, inputPath, submitterID string) (string, error) {
	payload := Payload{VideoID: videoID, InputPath: inputPath, SubmitterID: submitterID}
	if err := q.validate.Struct(payload); err != nil {
		return "", fmt.Errorf("invalid job payload: %w", err)
	}

	jobID := uuid.NewString()
	now := time.Now().UTC()

	pipe := q.rdb.TxPipeline()
	pipe.HSet(ctx, jobKey(jobID), map[string]interface{}{
		"video_id":     payload.VideoID,
		"input_path":   payload.InputPath,
		"submitter_id": payload.SubmitterID,
		"status":       string(StatusQueued),
		"attempts":     0,
		"last_error":   "",
		"created_at":   now.Format(time.RFC3339Nano),
	})
	pipe.LPush(ctx, readyKey(), jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}

	q.log.WithFields(logrus.Fields{
		"job_id":   jobID,
		"video_id": payload.VideoID,
	}).Info("Job enqueued")
	return jobID, nil
}

// Claim blocks until a job is available or the timeout elapses,
// returning (nil, nil) on timeout. The job moves to the processing list
// and its attempt counter is consumed; if this process dies before
// settling, the reaper re-delivers after the visibility timeout.
func (q *Queue) Claim(ctx context.Context, timeout time.Duration) (*Job, error) {
	jobID, err := q.rdb.BLMove(ctx, readyKey(), processingKey(), "RIGHT", "LEFT", timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}

	attempts, err := q.rdb.HIncrBy(ctx, jobKey(jobID), "attempts", 1).Result()
	if err != nil {
		return nil, fmt.Errorf("count attempt for job %s: %w", jobID, err)
	}

	now := time.Now().UTC()
	if err := q.rdb.HSet(ctx, jobKey(jobID), map[string]interface{}{
		"status":     string(StatusProcessing),
		"claimed_at": now.Format(time.RFC3339Nano),
	}).Err(); err != nil {
		return nil, fmt.Errorf("mark job %s claimed: %w", jobID, err)
	}

	fields, err := q.rdb.HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", jobID, err)
	}

	return &Job{
		ID: jobID,
		Payload: Payload{
			VideoID:     fields["video_id"],
			InputPath:   fields["input_path"],
			SubmitterID: fields["submitter_id"],
		},
		Attempt: int(attempts),
	}, nil
}

// Complete settles a successful attempt. The job record is discarded;
// the video record is the durable trace.
func (q *Queue) Complete(ctx context.Context, job *Job) error {
	pipe := q.rdb.TxPipeline()
	pipe.LRem(ctx, processingKey(), 1, job.ID)
	pipe.Del(ctx, jobKey(job.ID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("complete job %s: %w", job.ID, err)
	}
	return nil
}

// Fail settles a failed attempt. Fatal errors and exhausted attempts
// park the job on the failed list, retained for inspection; otherwise
// the job is scheduled for retry with exponential backoff. The return
// value reports whether a retry was scheduled.
func (q *Queue) Fail(ctx context.Context, job *Job, cause error, fatal bool) (bool, error) {
	errMsg := cause.Error()
	if len(errMsg) > maxErrorLength {
		errMsg = errMsg[:maxErrorLength]
	}

	terminal := fatal || job.Attempt >= q.maxAttempts
	pipe := q.rdb.TxPipeline()
	pipe.LRem(ctx, processingKey(), 1, job.ID)

	if terminal {
		pipe.HSet(ctx, jobKey(job.ID), map[string]interface{}{
			"status":     string(StatusFailed),
			"last_error": errMsg,
		})
		pipe.RPush(ctx, failedKey(), job.ID)
	} else {
		delay := q.backoffFor(job.Attempt)
		pipe.HSet(ctx, jobKey(job.ID), map[string]interface{}{
			"status":     string(StatusRetrying),
			"last_error": errMsg,
		})
		pipe.ZAdd(ctx, delayedKey(), redis.Z{
			Score:  float64(time.Now().Add(delay).UnixMilli()),
			Member: job.ID,
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("settle failed job %s: %w", job.ID, err)
	}

	entry := q.log.WithFields(logrus.Fields{
		"job_id":  job.ID,
		"attempt": job.Attempt,
		"error":   errMsg,
	})
	if terminal {
		entry.Error("Job failed with no retries remaining")
	} else {
		entry.WithField("backoff", q.backoffFor(job.Attempt).String()).Warn("Job failed, retry scheduled")
	}
	return !terminal, nil
}

// backoffFor returns the delay before the attempt after the given one:
// base, 2*base, 4*base, ...
func (q *Queue) backoffFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return q.backoffBase << (attempt - 1)
}

// PromoteDue moves delayed jobs whose backoff has expired back onto the
// ready list.
func (q *Queue) PromoteDue(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	due, err := q.rdb.ZRangeByScore(ctx, delayedKey(), &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		return fmt.Errorf("scan delayed jobs: %w", err)
	}

	for _, jobID := range due {
		pipe := q.rdb.TxPipeline()
		pipe.ZRem(ctx, delayedKey(), jobID)
		pipe.HSet(ctx, jobKey(jobID), "status", string(StatusQueued))
		pipe.LPush(ctx, readyKey(), jobID)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("promote job %s: %w", jobID, err)
		}
		q.log.WithField("job_id", jobID).Info("Retry promoted to ready queue")
	}
	return nil
}

// ReapStalled requeues processing-list entries whose claim is older
// than the visibility timeout. This is the crash-recovery path: a
// worker that died mid-attempt never settled its job.
func (q *Queue) ReapStalled(ctx context.Context) error {
	jobIDs, err := q.rdb.LRange(ctx, processingKey(), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("scan processing jobs: %w", err)
	}

	for _, jobID := range jobIDs {
		claimedAt, err := q.rdb.HGet(ctx, jobKey(jobID), "claimed_at").Result()
		if errors.Is(err, redis.Nil) {
			// Hash gone but list entry left behind; drop the orphan.
			q.rdb.LRem(ctx, processingKey(), 1, jobID)
			continue
		}
		if err != nil {
			return fmt.Errorf("load claim time for job %s: %w", jobID, err)
		}

		claimed, err := time.Parse(time.RFC3339Nano, claimedAt)
		if err != nil || time.Since(claimed) < q.visibility {
			continue
		}

		pipe := q.rdb.TxPipeline()
		pipe.LRem(ctx, processingKey(), 1, jobID)
		pipe.HSet(ctx, jobKey(jobID), "status", string(StatusQueued))
		pipe.LPush(ctx, readyKey(), jobID)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("requeue stalled job %s: %w", jobID, err)
		}
		q.log.WithField("job_id", jobID).Warn("Stalled job requeued")
	}
	return nil
}

// RunMaintenance drives retry promotion and stall reaping until the
// context is cancelled. One maintenance loop per processor process is
// enough; the operations are safe to run concurrently.
func (q *Queue) RunMaintenance(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := q.PromoteDue(ctx); err != nil && !errors.Is(err, context.Canceled) {
				q.log.WithError(err).Error("Failed to promote delayed jobs")
			}
			if err := q.ReapStalled(ctx); err != nil && !errors.Is(err, context.Canceled) {
				q.log.WithError(err).Error("Failed to reap stalled jobs")
			}
		}
	}
}

// State reads the queue-side view of a job. Completed jobs are
// discarded on settlement, so a missing record after a successful run
// is expected.
func (q *Queue) State(ctx context.Context, jobID string) (*JobState, error) {
	fields, err := q.rdb.HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", jobID, err)
	}
	if len(fields) == 0 {
		return nil, ErrJobNotFound
	}

	attempts, _ := strconv.Atoi(fields["attempts"])
	createdAt, _ := time.Parse(time.RFC3339Nano, fields["created_at"])

	return &JobState{
		ID:          jobID,
		VideoID:     fields["video_id"],
		SubmitterID: fields["submitter_id"],
		Status:      Status(fields["status"]),
		Attempts:    attempts,
		LastError:   fields["last_error"],
		CreatedAt:   createdAt,
	}, nil
}
