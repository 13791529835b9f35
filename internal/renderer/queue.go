package renderer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"url-shortener/internal/db"
)

// RenderFunc produces the HTML snapshot of a URL.
type RenderFunc func(ctx context.Context, url string) (string, error)

// PreviewStore persists snapshots. *db.Store satisfies it.
type PreviewStore interface {
	UpdatePreview(ctx context.Context, id, html, status string) error
}

// RenderJob represents a rendering job in the queue
type RenderJob struct {
	LinkID      string
	OriginalURL string
}

// Status is a point-in-time view of the queue for /status.
type Status struct {
	WorkerCount       int      `json:"worker_count"`
	QueueLength       int      `json:"queue_length"`
	QueueCapacity     int      `json:"queue_capacity"`
	InProgressCount   int      `json:"in_progress_count"`
	InProgressURLs    []string `json:"in_progress_urls"`
	WaitingGoroutines int      `json:"waiting_goroutines"`
}

// Queue renders link previews on a fixed pool of workers. Each URL is
// rendered once at a time; links that ask for a URL already in flight
// share its result.
type Queue struct {
	jobs        chan RenderJob
	inProgress  map[string][]string    // URL -> link IDs awaiting its snapshot
	waiting     map[string][]chan bool // URL -> goroutines blocked in WaitForRender
	mutex       sync.RWMutex
	closed      bool
	workerCount int
	timeout     time.Duration
	render      RenderFunc
	store       PreviewStore
	log         zerolog.Logger
	wg          sync.WaitGroup
}

func NewQueue(workerCount, capacity int, timeout time.Duration, render RenderFunc, store PreviewStore, log zerolog.Logger) *Queue {
	return &Queue{
		jobs:        make(chan RenderJob, capacity),
		inProgress:  make(map[string][]string),
		waiting:     make(map[string][]chan bool),
		workerCount: workerCount,
		timeout:     timeout,
		render:      render,
		store:       store,
		log:         log,
	}
}

// Start launches the workers.
func (q *Queue) Start() {
	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.log.Info().Int("workers", q.workerCount).Int("capacity", cap(q.jobs)).Msg("render queue started")
}

// Enqueue schedules a snapshot of originalURL for linkID and reports
// whether it was accepted. A full or stopped queue drops the job and marks
// the link failed.
func (q *Queue) Enqueue(linkID, originalURL string) bool {
	q.setStatus(linkID, "", db.PreviewPending)

	q.mutex.Lock()
	accepted := q.enqueueLocked(linkID, originalURL)
	q.mutex.Unlock()

	if !accepted {
		q.setStatus(linkID, "", db.PreviewFailed)
	}
	return accepted
}

func (q *Queue) enqueueLocked(linkID, originalURL string) bool {
	if q.closed {
		q.log.Warn().Str("url", originalURL).Msg("render queue stopped, dropping job")
		return false
	}

	if ids, ok := q.inProgress[originalURL]; ok {
		q.inProgress[originalURL] = append(ids, linkID)
		q.log.Debug().Str("url", originalURL).Msg("url already queued, sharing render")
		return true
	}

	select {
	case q.jobs <- RenderJob{LinkID: linkID, OriginalURL: originalURL}:
		q.inProgress[originalURL] = []string{linkID}
		return true
	default:
		q.log.Warn().Int("capacity", cap(q.jobs)).Str("url", originalURL).Msg("render queue is full, dropping job")
		return false
	}
}

// WaitForRender blocks until originalURL finishes rendering or timeout
// passes. It returns false at once when the URL is not being rendered.
func (q *Queue) WaitForRender(originalURL string, timeout time.Duration) bool {
	q.mutex.Lock()
	if _, ok := q.inProgress[originalURL]; !ok {
		q.mutex.Unlock()
		return false
	}
	waitChan := make(chan bool, 1)
	q.waiting[originalURL] = append(q.waiting[originalURL], waitChan)
	q.mutex.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-waitChan:
		return true
	case <-timer.C:
		// Remove ourselves from the waiting list
		q.mutex.Lock()
		waiters := q.waiting[originalURL]
		for i, ch := range waiters {
			if ch == waitChan {
				q.waiting[originalURL] = append(waiters[:i], waiters[i+1:]...)
				break
			}
		}
		if len(q.waiting[originalURL]) == 0 {
			delete(q.waiting, originalURL)
		}
		q.mutex.Unlock()
		return false
	}
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	log := q.log.With().Int("worker", id).Logger()

	for job := range q.jobs {
		start := time.Now()

		q.mutex.RLock()
		rendering := append([]string(nil), q.inProgress[job.OriginalURL]...)
		q.mutex.RUnlock()
		for _, linkID := range rendering {
			q.setStatus(linkID, "", db.PreviewRendering)
		}

		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		html, err := q.render(ctx, job.OriginalURL)
		cancel()

		status := db.PreviewCompleted
		if err != nil {
			status, html = db.PreviewFailed, ""
			log.Warn().Err(err).Str("url", job.OriginalURL).Msg("render failed")
		}
		links := q.finish(job.OriginalURL, html, status)

		log.Info().
			Str("url", job.OriginalURL).
			Str("status", status).
			Int("links", links).
			Dur("duration", time.Since(start)).
			Msg("render job finished")
	}
}

// finish stores the result for every link sharing url, including links
// that joined while earlier ones were being written, and only then releases
// the URL and wakes its waiters. It returns the number of links updated.
func (q *Queue) finish(url, html, status string) int {
	done := 0
	for {
		q.mutex.Lock()
		ids := q.inProgress[url]
		if done == len(ids) {
			delete(q.inProgress, url)
			for _, waitChan := range q.waiting[url] {
				select {
				case waitChan <- true:
				default:
				}
			}
			delete(q.waiting, url)
			q.mutex.Unlock()
			return done
		}
		pending := append([]string(nil), ids[done:]...)
		q.mutex.Unlock()

		for _, linkID := range pending {
			q.setStatus(linkID, html, status)
		}
		done += len(pending)
	}
}

func (q *Queue) setStatus(linkID, html, status string) {
	if err := q.store.UpdatePreview(context.Background(), linkID, html, status); err != nil {
		q.log.Error().Err(err).Str("link_id", linkID).Str("status", status).Msg("failed to save preview")
	}
}

// IsInProgress checks if a URL is currently queued or being rendered
func (q *Queue) IsInProgress(originalURL string) bool {
	q.mutex.RLock()
	defer q.mutex.RUnlock()
	_, ok := q.inProgress[originalURL]
	return ok
}

// Status returns the current status of the render queue
func (q *Queue) Status() Status {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	inProgressURLs := make([]string, 0, len(q.inProgress))
	for url := range q.inProgress {
		inProgressURLs = append(inProgressURLs, url)
	}

	waitingCount := 0
	for _, waiters := range q.waiting {
		waitingCount += len(waiters)
	}

	return Status{
		WorkerCount:       q.workerCount,
		QueueLength:       len(q.jobs),
		QueueCapacity:     cap(q.jobs),
		InProgressCount:   len(q.inProgress),
		InProgressURLs:    inProgressURLs,
		WaitingGoroutines: waitingCount,
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish or for
// ctx to end.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mutex.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mutex.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.log.Info().Msg("render queue drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
