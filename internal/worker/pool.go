package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wbscraper/pkg/logger"
	"wbscraper/pkg/models"
	"wbscraper/pkg/pipeline"
	"wbscraper/pkg/scraper"
)

var (
	// ErrQueueFull is returned by Submit when every slot is taken
	ErrQueueFull = errors.New("crawl queue is full")
	// ErrStopped is returned by Submit after Stop
	ErrStopped = errors.New("worker pool is shutting down")
)

// Runner executes one crawl. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, params models.Params, progress scraper.ProgressFunc) (*pipeline.Result, error)
}

// Observer is told when tasks start and finish
type Observer interface {
	TaskStarted()
	TaskDone()
}

// Job represents a single crawl task
type Job struct {
	ID       string
	Params   models.Params
	Progress scraper.ProgressFunc
}

// Result represents the outcome of a job
type Result struct {
	Job      Job
	Output   *pipeline.Result
	Error    error
	Duration time.Duration
}

// Pool runs crawl jobs on a fixed number of workers
type Pool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	runner      Runner
	observer    Observer
	logger      logger.Logger

	mu      sync.Mutex
	stopped bool
}

// NewPool creates a pool with numWorkers workers and room for queueSize
// waiting jobs. observer may be nil.
func NewPool(numWorkers, queueSize int, runner Runner, observer Observer, log logger.Logger) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, queueSize),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		runner:      runner,
		observer:    observer,
		logger:      log,
	}
}

// Start initializes and starts all workers
func (p *Pool) Start() {
	p.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": p.numWorkers,
		"queue_size":  cap(p.jobQueue),
	})

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop lets running and queued jobs finish, then closes Results
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobQueue)
	p.mu.Unlock()

	p.logger.Info("Stopping worker pool...")
	p.wg.Wait()
	close(p.resultQueue)
	p.cancel()
	p.logger.Info("Worker pool stopped")
}

// Abort cancels running crawls, drops queued ones and then stops
func (p *Pool) Abort() {
	p.cancel()
	p.Stop()
}

// Submit queues job without blocking
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrStopped
	}
	select {
	case p.jobQueue <- job:
		p.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
			"task_id": job.ID,
			"user_id": job.Params.UserID,
		})
		return nil
	default:
		return ErrQueueFull
	}
}

// Results returns the result channel. It must be drained.
func (p *Pool) Results() <-chan Result {
	return p.resultQueue
}

// QueueLength returns the number of jobs waiting for a worker
func (p *Pool) QueueLength() int {
	return len(p.jobQueue)
}

// Workers returns the number of workers
func (p *Pool) Workers() int {
	return p.numWorkers
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		var result Result
		if err := p.ctx.Err(); err != nil {
			result = Result{Job: job, Error: fmt.Errorf("crawl cancelled: %w", err)}
		} else {
			result = p.processJob(job, id)
		}

		select {
		case p.resultQueue <- result:
		case <-p.ctx.Done():
			// nobody is reading any more; keep draining the queue
			select {
			case p.resultQueue <- result:
			default:
			}
		}
	}

	p.logger.DebugWithFields("Worker stopping - job queue closed", map[string]interface{}{
		"worker_id": id,
	})
}

func (p *Pool) processJob(job Job, workerID int) (result Result) {
	start := time.Now()
	result.Job = job

	if p.observer != nil {
		p.observer.TaskStarted()
		defer p.observer.TaskDone()
	}

	log := p.logger.WithFields(map[string]interface{}{
		"worker_id": workerID,
		"task_id":   job.ID,
	})
	log.Info("Worker processing job")

	defer func() {
		if r := recover(); r != nil {
			result.Error = fmt.Errorf("crawl panicked: %v", r)
			result.Duration = time.Since(start)
			log.ErrorWithFields("Worker recovered from panic", map[string]interface{}{
				"panic": fmt.Sprint(r),
			})
		}
	}()

	result.Output, result.Error = p.runner.Run(p.ctx, job.Params, job.Progress)
	result.Duration = time.Since(start)

	if result.Error != nil {
		log.WithError(result.Error).Warn("Crawl task failed")
	} else {
		log.InfoWithFields("Crawl task completed", map[string]interface{}{
			"posts":    result.Output.WeiboCount,
			"duration": result.Duration.String(),
		})
	}
	return result
}
