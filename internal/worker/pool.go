package worker

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Job represents a unit of work to be executed. Implementations settle
// their own outcome (retry scheduling, persistence) inside Execute; the
// returned error is for worker-level logging only.
type Job interface {
	Execute(ctx context.Context) error
	ID() string
}

// Worker pulls jobs from its own channel, registering that channel with
// the shared worker pool whenever it is idle.
type Worker struct {
	ID         int
	WorkerPool chan chan Job
	JobChannel chan Job
	Quit       chan bool
	Wg         *sync.WaitGroup
	Log        *logrus.Logger
}

func NewWorker(id int, workerPool chan chan Job, wg *sync.WaitGroup, log *logrus.Logger) Worker {
	return Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan Job),
		Quit:       make(chan bool),
		Wg:         wg,
		Log:        log,
	}
}

// Start makes the Worker listen for jobs on its JobChannel.
func (w Worker) Start(ctx context.Context) {
	w.Wg.Add(1)
	go func() {
		defer w.Wg.Done()
		for {
			// Register the current worker's JobChannel to the worker pool.
			w.WorkerPool <- w.JobChannel

			select {
			case job := <-w.JobChannel:
				w.Log.WithFields(logrus.Fields{"worker": w.ID, "job_id": job.ID()}).Info("Worker started job")
				if err := job.Execute(ctx); err != nil {
					w.Log.WithFields(logrus.Fields{"worker": w.ID, "job_id": job.ID()}).WithError(err).Error("Worker job failed")
				} else {
					w.Log.WithFields(logrus.Fields{"worker": w.ID, "job_id": job.ID()}).Info("Worker finished job")
				}
			case <-w.Quit:
				w.Log.WithField("worker", w.ID).Info("Worker stopping")
				return
			}
		}
	}()
}

// Stop signals the worker to stop processing new jobs.
func (w Worker) Stop() {
	go func() {
		w.Quit <- true
	}()
}

// Dispatcher manages a pool of workers and dispatches jobs to them.
type Dispatcher struct {
	MaxWorkers int
	WorkerPool chan chan Job
	JobQueue   chan Job
	Workers    []Worker
	Wg         sync.WaitGroup
	Quit       chan bool
	Log        *logrus.Logger
}

func NewDispatcher(maxWorkers, jobQueueSize int, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		MaxWorkers: maxWorkers,
		WorkerPool: make(chan chan Job, maxWorkers),
		JobQueue:   make(chan Job, jobQueueSize),
		Workers:    make([]Worker, 0, maxWorkers),
		Quit:       make(chan bool),
		Log:        log,
	}
}

// Run starts the dispatcher and its workers.
func (d *Dispatcher) Run(ctx context.Context) {
	d.Log.WithField("workers", d.MaxWorkers).Info("Dispatcher starting")
	for i := 1; i <= d.MaxWorkers; i++ {
		worker := NewWorker(i, d.WorkerPool, &d.Wg, d.Log)
		d.Workers = append(d.Workers, worker)
		worker.Start(ctx)
	}

	go d.dispatch()
}

func (d *Dispatcher) dispatch() {
	for {
		select {
		case job := <-d.JobQueue:
			// Wait for a worker to become available, then hand over.
			go func(job Job) {
				jobChannel := <-d.WorkerPool
				jobChannel <- job
			}(job)
		case <-d.Quit:
			d.Log.Info("Dispatcher stopping dispatch loop")
			return
		}
	}
}

// Submit adds a job to the dispatcher's queue. Returns false when the
// queue is full; the caller decides whether to block, drop or retry.
func (d *Dispatcher) Submit(job Job) bool {
	select {
	case d.JobQueue <- job:
		return true
	default:
		d.Log.WithField("job_id", job.ID()).Warn("Dispatcher queue full, job not submitted")
		return false
	}
}

// Stop gracefully shuts down the dispatcher and all its workers,
// waiting for in-flight jobs to finish.
func (d *Dispatcher) Stop() {
	d.Quit <- true
	for _, worker := range d.Workers {
		worker.Stop()
	}
	d.Wg.Wait()
	d.Log.Info("Dispatcher shutdown complete")
}
