package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"wbscraper/pkg/models"
	"wbscraper/pkg/pipeline"
)

// TaskState is the lifecycle stage of a crawl task
type TaskState string

const (
	TaskQueued    TaskState = "queued"
	TaskRunning   TaskState = "running"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
)

// Task is a snapshot of one crawl submitted through the web front end
type Task struct {
	ID       string           `json:"task_id"`
	State    TaskState        `json:"state"`
	Progress int              `json:"progress"`
	Status   string           `json:"status"`
	Result   *pipeline.Result `json:"result,omitempty"`
	Error    string           `json:"error,omitempty"`
	Params   models.Params    `json:"-"`
	Created  time.Time        `json:"created_at"`
	Updated  time.Time        `json:"updated_at"`
	Finished time.Time        `json:"finished_at,omitempty"`
}

// Completed reports whether the task has ended either way
func (t Task) Completed() bool {
	return t.State == TaskCompleted || t.State == TaskFailed
}

// Registry keeps task state in memory. Finished tasks are dropped by Sweep
// once they are older than the retention.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task), now: time.Now}
}

// Create registers a queued task for params and returns its id
func (r *Registry) Create(params models.Params) string {
	now := r.now()
	t := &Task{
		ID:      uuid.NewString(),
		State:   TaskQueued,
		Status:  "queued, waiting for a worker",
		Params:  params,
		Created: now,
		Updated: now,
	}

	r.mu.Lock()
	r.tasks[t.ID] = t
	r.mu.Unlock()
	return t.ID
}

// Progress records a progress report. Reports never move a task backwards.
func (r *Registry) Progress(id string, percent int, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Completed() {
		return
	}
	t.State = TaskRunning
	if percent > t.Progress {
		t.Progress = min(percent, 100)
	}
	t.Status = status
	t.Updated = r.now()
}

// Finish records the outcome of a task
func (r *Registry) Finish(id string, res *pipeline.Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return
	}
	now := r.now()
	t.Updated = now
	t.Finished = now
	if err != nil {
		t.State = TaskFailed
		t.Error = err.Error()
		t.Status = "failed: " + err.Error()
		return
	}
	t.State = TaskCompleted
	t.Progress = 100
	t.Result = res
	t.Status = "completed"
}

// Remove forgets a task, for submissions the pool refused
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.tasks, id)
	r.mu.Unlock()
}

// Get returns a copy of the task
func (r *Registry) Get(id string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Sweep drops finished tasks older than retention and returns how many
// were removed
func (r *Registry) Sweep(retention time.Duration) int {
	cutoff := r.now().Add(-retention)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, t := range r.tasks {
		if t.Completed() && t.Finished.Before(cutoff) {
			delete(r.tasks, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked tasks
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}
