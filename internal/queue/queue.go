// Package queue implements the priority-ordered download queue: an ordered
// list of pending URLs plus a map of every task ever added, with priority
// defined as list position.
package queue

import (
	"sync"
	"time"

	"modelsync/internal/models"
)

// SizeListener is called with the current pending-list length on every
// enqueue/dequeue/reorder/clear.
type SizeListener func(size int)

// TaskListener is called with a snapshot of a task whenever that task is
// added, dequeued, updated, completed, canceled or cleared. The priority
// re-indexing of the other pending tasks that follows an add, dequeue,
// cancel or move emits no task event.
type TaskListener func(task models.DownloadTask)

// ReorderListener is called with a snapshot of the pending URL order
// whenever the list is reordered.
type ReorderListener func(order []string)

// Queue is a mutex-guarded ordered list of pending URLs plus a map of every
// task ever added. Observer callbacks are invoked outside the lock to avoid
// reentrancy deadlocks.
type Queue struct {
	mu      sync.Mutex
	pending []string
	tasks   map[string]*models.DownloadTask

	sizeListeners    []SizeListener
	taskListeners    []TaskListener
	reorderListeners []ReorderListener
}

// New builds an empty queue.
func New() *Queue {
	return &Queue{tasks: make(map[string]*models.DownloadTask)}
}

// OnSizeChanged registers a SizeListener.
func (q *Queue) OnSizeChanged(l SizeListener) { q.sizeListeners = append(q.sizeListeners, l) }

// OnTaskUpdated registers a TaskListener.
func (q *Queue) OnTaskUpdated(l TaskListener) { q.taskListeners = append(q.taskListeners, l) }

// OnReordered registers a ReorderListener.
func (q *Queue) OnReordered(l ReorderListener) { q.reorderListeners = append(q.reorderListeners, l) }

// Add appends a fresh QUEUED task for url, rejecting if url already maps to
// a non-terminal task (QUEUED or DOWNLOADING).
func (q *Queue) Add(url string) bool {
	q.mu.Lock()
	if existing, ok := q.tasks[url]; ok && !existing.Status.Terminal() {
		q.mu.Unlock()
		return false
	}
	task := &models.DownloadTask{Url: url, Status: models.StatusQueued}
	q.tasks[url] = task
	q.pending = append(q.pending, url)
	q.reindexLocked()
	size := len(q.pending)
	snapshot := *task
	q.mu.Unlock()

	q.emitSize(size)
	q.emitTask(snapshot)
	return true
}

// AddMany adds each url via Add, returning the count accepted.
func (q *Queue) AddMany(urls []string) int {
	accepted := 0
	for _, u := range urls {
		if q.Add(u) {
			accepted++
		}
	}
	return accepted
}

// NextUrl pops the head of the pending list, transitions it to DOWNLOADING,
// and stamps StartTime. Returns nil when the queue is empty.
func (q *Queue) NextUrl() *models.DownloadTask {
	q.mu.Lock()
	if len(q.pending) == 0 {
		q.mu.Unlock()
		return nil
	}
	url := q.pending[0]
	q.pending = q.pending[1:]
	q.reindexLocked()

	task := q.tasks[url]
	now := time.Now()
	task.Status = models.StatusDownloading
	task.StartTime = &now
	task.Priority = -1
	snapshot := *task
	size := len(q.pending)
	q.mu.Unlock()

	q.emitSize(size)
	q.emitTask(snapshot)
	return &snapshot
}

// MoveToPosition clamps idx to [0, len-1] and moves url there if it is
// currently pending; no-op otherwise.
func (q *Queue) MoveToPosition(url string, idx int) {
	q.mu.Lock()
	pos := indexOf(q.pending, url)
	if pos == -1 {
		q.mu.Unlock()
		return
	}
	if idx < 0 {
		idx = 0
	}
	if idx > len(q.pending)-1 {
		idx = len(q.pending) - 1
	}
	q.pending = append(q.pending[:pos], q.pending[pos+1:]...)
	q.pending = append(q.pending[:idx], append([]string{url}, q.pending[idx:]...)...)
	q.reindexLocked()
	order := append([]string(nil), q.pending...)
	size := len(q.pending)
	q.mu.Unlock()

	q.emitSize(size)
	q.emitReorder(order)
}

// Update applies mutate to url's task under lock and emits a task-updated
// event, unless the task is already terminal (terminal states are
// absorbing).
func (q *Queue) Update(url string, mutate func(t *models.DownloadTask)) {
	q.mu.Lock()
	task, ok := q.tasks[url]
	if !ok || task.Status.Terminal() {
		q.mu.Unlock()
		return
	}
	mutate(task)
	snapshot := *task
	q.mu.Unlock()

	q.emitTask(snapshot)
}

// Complete stamps EndTime and the terminal status/message/info for url.
// No-op if the task is unknown or already terminal.
func (q *Queue) Complete(url string, status models.Status, message string, info *models.ModelInfo) {
	q.mu.Lock()
	task, ok := q.tasks[url]
	if !ok || task.Status.Terminal() {
		q.mu.Unlock()
		return
	}
	now := time.Now()
	task.Status = status
	task.EndTime = &now
	task.ErrorMessage = message
	if info != nil {
		task.ModelInfo = info
	}
	if status == models.StatusCompleted {
		task.ModelProgress = 100
		task.ImageProgress = 100
	}
	snapshot := *task
	q.mu.Unlock()

	q.emitTask(snapshot)
}

// Cancel marks url CANCELED if it is pending or in flight. Returns whether a
// transition occurred.
func (q *Queue) Cancel(url string) bool {
	q.mu.Lock()
	task, ok := q.tasks[url]
	if !ok || task.Status.Terminal() {
		q.mu.Unlock()
		return false
	}

	wasPending := task.Status == models.StatusQueued
	if pos := indexOf(q.pending, url); pos != -1 {
		q.pending = append(q.pending[:pos], q.pending[pos+1:]...)
		q.reindexLocked()
	}
	now := time.Now()
	task.Status = models.StatusCanceled
	task.EndTime = &now
	snapshot := *task
	size := len(q.pending)
	q.mu.Unlock()

	if wasPending {
		q.emitSize(size)
	}
	q.emitTask(snapshot)
	return true
}

// Clear cancels every pending task and empties the list.
func (q *Queue) Clear() {
	q.mu.Lock()
	urls := append([]string(nil), q.pending...)
	q.pending = nil
	now := time.Now()
	var snapshots []models.DownloadTask
	for _, u := range urls {
		task := q.tasks[u]
		task.Status = models.StatusCanceled
		task.EndTime = &now
		snapshots = append(snapshots, *task)
	}
	q.mu.Unlock()

	q.emitSize(0)
	for _, s := range snapshots {
		q.emitTask(s)
	}
}

// Get returns a snapshot of url's task, if any.
func (q *Queue) Get(url string) (models.DownloadTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[url]
	if !ok {
		return models.DownloadTask{}, false
	}
	return *task, true
}

// Pending returns a snapshot of the current pending order.
func (q *Queue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.pending...)
}

// reindexLocked restores the invariant that priority equals list index.
// Caller must hold q.mu.
func (q *Queue) reindexLocked() {
	for i, u := range q.pending {
		q.tasks[u].Priority = i
	}
}

func indexOf(list []string, target string) int {
	for i, u := range list {
		if u == target {
			return i
		}
	}
	return -1
}

func (q *Queue) emitSize(size int) {
	for _, l := range q.sizeListeners {
		l(size)
	}
}

func (q *Queue) emitTask(t models.DownloadTask) {
	for _, l := range q.taskListeners {
		l(t)
	}
}

func (q *Queue) emitReorder(order []string) {
	for _, l := range q.reorderListeners {
		l(order)
	}
}
