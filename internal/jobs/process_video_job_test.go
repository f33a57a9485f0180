package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/Yashaswini-V21/HuddleUp/internal/pipeline"
	"github.com/Yashaswini-V21/HuddleUp/internal/queue"
)

type fakeProcessor struct {
	err error
}

func (f *fakeProcessor) Process(ctx context.Context, job *queue.Job) error {
	return f.err
}

type fakeSettler struct {
	completed  bool
	failed     bool
	fatalSeen  bool
	willRetry  bool
	settleErr  error
	failedWith error
}

func (f *fakeSettler) Complete(ctx context.Context, job *queue.Job) error {
	f.completed = true
	return nil
}

func (f *fakeSettler) Fail(ctx context.Context, job *queue.Job, cause error, fatal bool) (bool, error) {
	f.failed = true
	f.fatalSeen = fatal
	f.failedWith = cause
	return f.willRetry, f.settleErr
}

type fakeRecorder struct {
	markedID  string
	markedMsg string
}

func (f *fakeRecorder) MarkFailed(ctx context.Context, id, message string) error {
	f.markedID = id
	f.markedMsg = message
	return nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func testJob() *queue.Job {
	return &queue.Job{
		ID:      "job-1",
		Payload: queue.Payload{VideoID: "vid-1", InputPath: "/tmp/in.mp4", SubmitterID: "user-1"},
		Attempt: 1,
	}
}

func TestExecuteSuccessCompletesJob(t *testing.T) {
	settler := &fakeSettler{}
	recorder := &fakeRecorder{}
	j := NewProcessVideoJob(testJob(), &fakeProcessor{}, settler, recorder, testLogger())

	if err := j.Execute(context.Background()); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !settler.completed {
		t.Error("job was not completed on the queue")
	}
	if settler.failed {
		t.Error("Fail must not be called on success")
	}
	if recorder.markedID != "" {
		t.Error("MarkFailed must not be called on success")
	}
}

func TestExecuteRetryableFailureLeavesRecordAlone(t *testing.T) {
	settler := &fakeSettler{willRetry: true}
	recorder := &fakeRecorder{}
	cause := errors.New("transient transcode failure")
	j := NewProcessVideoJob(testJob(), &fakeProcessor{err: cause}, settler, recorder, testLogger())

	if err := j.Execute(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if !settler.failed || settler.fatalSeen {
		t.Errorf("expected non-fatal Fail, failed=%v fatal=%v", settler.failed, settler.fatalSeen)
	}
	if recorder.markedID != "" {
		t.Error("MarkFailed must not run while retries remain")
	}
}

func TestExecuteExhaustedFailureMarksRecord(t *testing.T) {
	settler := &fakeSettler{willRetry: false}
	recorder := &fakeRecorder{}
	cause := errors.New("transcode failed again")
	j := NewProcessVideoJob(testJob(), &fakeProcessor{err: cause}, settler, recorder, testLogger())

	if err := j.Execute(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if recorder.markedID != "vid-1" {
		t.Fatalf("terminal failure must mark the video record, got %q", recorder.markedID)
	}
	if recorder.markedMsg == "" {
		t.Error("failure message must be non-empty")
	}
}

func TestExecuteSettlementFailureLeavesRecordAlone(t *testing.T) {
	settler := &fakeSettler{willRetry: false, settleErr: errors.New("redis unreachable")}
	recorder := &fakeRecorder{}
	cause := errors.New("transient transcode failure")
	j := NewProcessVideoJob(testJob(), &fakeProcessor{err: cause}, settler, recorder, testLogger())

	if err := j.Execute(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	// The job never settled: it stays on the processing list and the
	// reaper redelivers it. A terminal mark now would be flipped back to
	// processing by that retry.
	if recorder.markedID != "" {
		t.Fatalf("MarkFailed must not run when settlement failed, marked %q", recorder.markedID)
	}
}

func TestExecuteFatalErrorReportedAsFatal(t *testing.T) {
	settler := &fakeSettler{willRetry: false}
	recorder := &fakeRecorder{}
	cause := &pipeline.MalformedInputError{Cause: errors.New("no video stream found")}
	j := NewProcessVideoJob(testJob(), &fakeProcessor{err: cause}, settler, recorder, testLogger())

	if err := j.Execute(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if !settler.fatalSeen {
		t.Error("malformed input must be settled as fatal")
	}
	if recorder.markedID != "vid-1" {
		t.Error("fatal failure must mark the video record")
	}
}
