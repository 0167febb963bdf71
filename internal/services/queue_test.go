package services

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", msg)
}

func drained(q *Queue) func() bool {
	return func() bool {
		s := q.Status()
		return s.Pending == 0 && !s.Processing
	}
}

// blockingQueue builds a queue whose worker parks on the first task until
// release is closed, so tests can stage pending tasks deterministically.
func blockingQueue(capacity, perUser int) (q *Queue, started chan struct{}, release chan struct{}, processed func() []string) {
	started = make(chan struct{})
	release = make(chan struct{})
	var once sync.Once
	var mu sync.Mutex
	var done []string

	q = NewQueue(capacity, perUser, func(task *DownloadTask) error {
		once.Do(func() { close(started) })
		<-release
		mu.Lock()
		done = append(done, task.URL)
		mu.Unlock()
		return nil
	})

	processed = func() []string {
		mu.Lock()
		defer mu.Unlock()
		out := make([]string, len(done))
		copy(out, done)
		return out
	}
	return q, started, release, processed
}

func TestQueueEnqueuePositions(t *testing.T) {
	q, started, release, _ := blockingQueue(50, 50)
	defer close(release)

	pos, err := q.Enqueue(&DownloadTask{ChatID: 1, URL: "https://youtube.com/watch?v=sentinel"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if pos != 1 {
		t.Errorf("Expected position 1 for first task, got %d", pos)
	}
	<-started

	urls := make([]string, 0, 3)
	for k := 1; k <= 3; k++ {
		url := fmt.Sprintf("https://youtube.com/watch?v=%d", k)
		urls = append(urls, url)
		pos, err := q.Enqueue(&DownloadTask{ChatID: 2, URL: url})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if pos != k {
			t.Errorf("Expected position %d, got %d", k, pos)
		}
	}

	for k, url := range urls {
		pos, ok := q.PositionOf(2, url)
		if !ok {
			t.Fatalf("Expected task %s to be queued", url)
		}
		if pos != k+1 {
			t.Errorf("Expected PositionOf %s = %d, got %d", url, k+1, pos)
		}
	}

	if _, ok := q.PositionOf(2, "https://youtube.com/watch?v=absent"); ok {
		t.Error("Expected no position for a URL that was never enqueued")
	}
}

func TestQueueSingleWorker(t *testing.T) {
	var running, maxRunning, processed int32

	q := NewQueue(100, 100, func(task *DownloadTask) error {
		cur := atomic.AddInt32(&running, 1)
		for {
			m := atomic.LoadInt32(&maxRunning)
			if cur <= m || atomic.CompareAndSwapInt32(&maxRunning, m, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&running, -1)
		atomic.AddInt32(&processed, 1)
		return nil
	})

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			url := fmt.Sprintf("https://youtube.com/watch?v=%d", i)
			if _, err := q.Enqueue(&DownloadTask{ChatID: int64(i), URL: url}); err != nil {
				t.Errorf("Expected no error enqueueing %s, got %v", url, err)
			}
		}(i)
	}
	wg.Wait()

	waitUntil(t, 5*time.Second, func() bool {
		return atomic.LoadInt32(&processed) == n
	}, "all tasks to be processed")

	if got := atomic.LoadInt32(&maxRunning); got != 1 {
		t.Errorf("Expected at most one task in flight, saw %d", got)
	}
	waitUntil(t, time.Second, drained(q), "queue to drain")
}

func TestQueueCancelAllScope(t *testing.T) {
	q, started, release, processed := blockingQueue(50, 50)

	q.Enqueue(&DownloadTask{ChatID: 7, URL: "https://youtube.com/watch?v=current"})
	<-started

	q.Enqueue(&DownloadTask{ChatID: 7, URL: "https://youtube.com/watch?v=a"})
	q.Enqueue(&DownloadTask{ChatID: 8, URL: "https://youtube.com/watch?v=b"})
	q.Enqueue(&DownloadTask{ChatID: 7, URL: "https://youtube.com/watch?v=c"})

	if !q.IsUserQueued(7) {
		t.Fatal("Expected chat 7 to have pending tasks")
	}

	removed := q.CancelAll(7)
	if removed != 2 {
		t.Errorf("Expected 2 tasks removed, got %d", removed)
	}

	// The in-flight task belongs to chat 7 but only pending tasks count.
	if q.IsUserQueued(7) {
		t.Error("Expected no pending tasks for chat 7 after cancel")
	}
	if pos, ok := q.PositionOf(8, "https://youtube.com/watch?v=b"); !ok || pos != 1 {
		t.Errorf("Expected chat 8 task at position 1, got %d (ok=%v)", pos, ok)
	}

	close(release)
	waitUntil(t, time.Second, drained(q), "queue to drain")

	got := processed()
	want := []string{"https://youtube.com/watch?v=current", "https://youtube.com/watch?v=b"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d processed tasks, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected processed[%d] = %s, got %s", i, want[i], got[i])
		}
	}
}

func TestQueueErrorIsolationAndOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string

	q := NewQueue(50, 50, func(task *DownloadTask) error {
		mu.Lock()
		order = append(order, task.URL)
		mu.Unlock()
		if task.URL == "https://youtube.com/watch?v=1" {
			return errors.New("simulated engine failure")
		}
		return nil
	})

	for i := 0; i < 4; i++ {
		url := fmt.Sprintf("https://youtube.com/watch?v=%d", i)
		if _, err := q.Enqueue(&DownloadTask{ChatID: 3, URL: url}); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	}

	waitUntil(t, time.Second, drained(q), "queue to drain")

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 4 {
		t.Fatalf("Expected 4 processed tasks despite the failure, got %d", len(order))
	}
	for i := 0; i < 4; i++ {
		want := fmt.Sprintf("https://youtube.com/watch?v=%d", i)
		if order[i] != want {
			t.Errorf("Expected order[%d] = %s, got %s", i, want, order[i])
		}
	}
}

func TestQueueAbsorbsPanics(t *testing.T) {
	var processed int32
	q := NewQueue(50, 50, func(task *DownloadTask) error {
		if task.URL == "https://youtube.com/watch?v=boom" {
			panic("boom")
		}
		atomic.AddInt32(&processed, 1)
		return nil
	})

	q.Enqueue(&DownloadTask{ChatID: 1, URL: "https://youtube.com/watch?v=boom"})
	q.Enqueue(&DownloadTask{ChatID: 1, URL: "https://youtube.com/watch?v=ok"})

	waitUntil(t, time.Second, func() bool {
		return atomic.LoadInt32(&processed) == 1
	}, "task after the panic to be processed")
	waitUntil(t, time.Second, drained(q), "queue to drain")
}

func TestQueueCapacityGuard(t *testing.T) {
	q, started, release, _ := blockingQueue(3, 10)
	defer close(release)

	q.Enqueue(&DownloadTask{ChatID: 99, URL: "https://youtube.com/watch?v=sentinel"})
	<-started

	for i := 1; i <= 3; i++ {
		url := fmt.Sprintf("https://youtube.com/watch?v=%d", i)
		if _, err := q.Enqueue(&DownloadTask{ChatID: int64(i), URL: url}); err != nil {
			t.Fatalf("Expected task %d to fit, got %v", i, err)
		}
	}

	_, err := q.Enqueue(&DownloadTask{ChatID: 4, URL: "https://youtube.com/watch?v=4"})
	var full *QueueFullError
	if !errors.As(err, &full) {
		t.Fatalf("Expected QueueFullError, got %v", err)
	}
	if full.Capacity != 3 {
		t.Errorf("Expected capacity 3 in error, got %d", full.Capacity)
	}
}

func TestQueuePerUserLimit(t *testing.T) {
	q, started, release, _ := blockingQueue(10, 2)
	defer close(release)

	q.Enqueue(&DownloadTask{ChatID: 99, URL: "https://youtube.com/watch?v=sentinel"})
	<-started

	for i := 1; i <= 2; i++ {
		url := fmt.Sprintf("https://youtube.com/watch?v=%d", i)
		if _, err := q.Enqueue(&DownloadTask{ChatID: 5, URL: url}); err != nil {
			t.Fatalf("Expected task %d to fit under the user limit, got %v", i, err)
		}
	}

	_, err := q.Enqueue(&DownloadTask{ChatID: 5, URL: "https://youtube.com/watch?v=3"})
	var limit *UserQueueLimitError
	if !errors.As(err, &limit) {
		t.Fatalf("Expected UserQueueLimitError, got %v", err)
	}
	if limit.Limit != 2 {
		t.Errorf("Expected limit 2 in error, got %d", limit.Limit)
	}

	// Another chat is unaffected by chat 5's limit.
	if _, err := q.Enqueue(&DownloadTask{ChatID: 6, URL: "https://youtube.com/watch?v=6"}); err != nil {
		t.Errorf("Expected chat 6 to enqueue freely, got %v", err)
	}
}
