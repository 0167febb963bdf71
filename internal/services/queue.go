package services

import (
	"log"
	"sync"
)

// DownloadTask is one accepted download request waiting for the worker.
type DownloadTask struct {
	ChatID          int64
	URL             string
	FormatID        string
	FormatSpec      string
	StatusMessageID int
	Token           string
}

type QueueStatus struct {
	Pending    int  `json:"pending"`
	Processing bool `json:"processing"`
}

// Queue drains download tasks strictly one at a time. A single mutex
// guards the pending list, the in-flight task and the worker flag; the
// pending slice is both the FIFO and the position-lookup view, so order
// and membership can never disagree.
type Queue struct {
	mu            sync.Mutex
	pending       []*DownloadTask
	current       *DownloadTask
	isProcessing  bool
	workerRunning bool

	capacity     int
	perUserLimit int
	process      func(*DownloadTask) error
}

func NewQueue(capacity, perUserLimit int, process func(*DownloadTask) error) *Queue {
	return &Queue{
		capacity:     capacity,
		perUserLimit: perUserLimit,
		process:      process,
	}
}

// Enqueue appends a task and returns its 1-based queue position. The
// worker goroutine is started only when no worker is alive, so at most
// one runs no matter how many callers race here. Enqueue never waits for
// the worker.
func (q *Queue) Enqueue(t *DownloadTask) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) >= q.capacity {
		return 0, &QueueFullError{Capacity: q.capacity}
	}

	userPending := 0
	for _, task := range q.pending {
		if task.ChatID == t.ChatID {
			userPending++
		}
	}
	if userPending >= q.perUserLimit {
		return 0, &UserQueueLimitError{ChatID: t.ChatID, Limit: q.perUserLimit}
	}

	q.pending = append(q.pending, t)
	position := len(q.pending)
	log.Printf("[Queue] Task added: %s, format: %s, position: %d", t.URL, t.FormatID, position)

	if !q.workerRunning {
		q.workerRunning = true
		go q.drain()
	}
	return position, nil
}

// IsUserQueued reports whether the chat has tasks waiting. The in-flight
// task is not waiting and is not counted.
func (q *Queue) IsUserQueued(chatID int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range q.pending {
		if t.ChatID == chatID {
			return true
		}
	}
	return false
}

// PositionOf returns the 1-based position of the first pending task
// matching chat and URL.
func (q *Queue) PositionOf(chatID int64, url string) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, t := range q.pending {
		if t.ChatID == chatID && t.URL == url {
			return i + 1, true
		}
	}
	return 0, false
}

// CancelAll removes every pending task for a chat, preserving the
// relative order of everyone else. The in-flight task is left alone.
func (q *Queue) CancelAll(chatID int64) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.pending[:0]
	removed := 0
	for _, t := range q.pending {
		if t.ChatID == chatID {
			removed++
		} else {
			kept = append(kept, t)
		}
	}
	for i := len(kept); i < len(q.pending); i++ {
		q.pending[i] = nil
	}
	q.pending = kept
	if removed > 0 {
		log.Printf("[Queue] Removed %d tasks for chat %d", removed, chatID)
	}
	return removed
}

func (q *Queue) Status() QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStatus{Pending: len(q.pending), Processing: q.isProcessing}
}

// drain pops and processes tasks until the queue is empty, then exits.
// The empty check and the workerRunning reset happen under the same lock
// acquisition, so an Enqueue either sees workerRunning false and spawns
// a fresh worker, or appended before the check and this loop picks the
// task up.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.isProcessing = false
			q.workerRunning = false
			q.mu.Unlock()
			return
		}
		task := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.current = task
		q.isProcessing = true
		q.mu.Unlock()

		q.runTask(task)

		q.mu.Lock()
		q.current = nil
		q.mu.Unlock()
	}
}

// runTask isolates one task's failure from the rest of the queue.
func (q *Queue) runTask(t *DownloadTask) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Queue] Panic processing task %s: %v", t.URL, r)
		}
	}()

	log.Printf("[Queue] Processing task: %s, format: %s", t.URL, t.FormatID)
	if err := q.process(t); err != nil {
		log.Printf("[Queue] Task failed: %s: %v", t.URL, err)
		return
	}
	log.Printf("[Queue] Task completed: %s", t.URL)
}
