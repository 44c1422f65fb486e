package schedule

import (
	"container/heap"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apex/log"
)

// ErrSchedulerStopped is returned by Schedule after Stop.
var ErrSchedulerStopped = errors.New("scheduler is stopped")

// Job is a keyed callback due at RunAt.
type Job struct {
	Key   string
	RunAt time.Time
	Fn    func()
	index int
}

// jobQueue is a min-heap of jobs ordered by RunAt.
type jobQueue []*Job

func (q jobQueue) Len() int { return len(q) }

func (q jobQueue) Less(i, j int) bool {
	return q[i].RunAt.Before(q[j].RunAt)
}

func (q jobQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *jobQueue) Push(x interface{}) {
	job := x.(*Job)
	job.index = len(*q)
	*q = append(*q, job)
}

func (q *jobQueue) Pop() interface{} {
	old := *q
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	job.index = -1
	*q = old[:n-1]
	return job
}

// Scheduler runs keyed jobs at their due time on a fixed pool of workers.
// Scheduling a key that is already pending replaces the pending job.
type Scheduler struct {
	mu      sync.Mutex
	queue   jobQueue
	byKey   map[string]*Job
	wakeup  chan struct{}
	ready   chan *Job
	workers int
	wg      sync.WaitGroup
	stopped bool
	stopCh  chan struct{}

	executed atomic.Uint64
}

// New creates a scheduler with the given number of workers (at least 1).
func New(workers int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	s := &Scheduler{
		queue:   make(jobQueue, 0),
		byKey:   make(map[string]*Job),
		wakeup:  make(chan struct{}, 1),
		ready:   make(chan *Job),
		workers: workers,
		stopCh:  make(chan struct{}),
	}
	heap.Init(&s.queue)
	return s
}

// Start launches the dispatcher and the worker pool.
func (s *Scheduler) Start() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	s.wg.Add(1)
	go s.dispatch()
}

// Stop drops pending jobs and waits for running ones to return. It must not
// be called from inside a job.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.queue = s.queue[:0]
	s.byKey = make(map[string]*Job)
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
}

// Schedule queues fn to run at runAt under key.
func (s *Scheduler) Schedule(key string, runAt time.Time, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}

	if existing, ok := s.byKey[key]; ok {
		heap.Remove(&s.queue, existing.index)
		delete(s.byKey, key)
	}

	job := &Job{Key: key, RunAt: runAt, Fn: fn}
	heap.Push(&s.queue, job)
	s.byKey[key] = job

	if s.queue[0] == job {
		select {
		case s.wakeup <- struct{}{}:
		default:
		}
	}
	return nil
}

// After queues fn to run d from now.
func (s *Scheduler) After(key string, d time.Duration, fn func()) error {
	return s.Schedule(key, time.Now().Add(d), fn)
}

// Cancel removes a pending job. It reports false when nothing was pending
// under key; a job already handed to a worker is not interrupted.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.byKey[key]
	if !ok {
		return false
	}
	heap.Remove(&s.queue, job.index)
	delete(s.byKey, key)
	return true
}

func (s *Scheduler) dispatch() {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}

		wait := time.Hour
		if s.queue.Len() > 0 {
			next := s.queue[0]
			wait = time.Until(next.RunAt)
			if wait <= 0 {
				job := heap.Pop(&s.queue).(*Job)
				delete(s.byKey, job.Key)
				s.mu.Unlock()

				select {
				case s.ready <- job:
				case <-s.stopCh:
					return
				}
				continue
			}
		}
		s.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-s.wakeup:
			timer.Stop()
		case <-s.stopCh:
			timer.Stop()
			return
		}
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case job := <-s.ready:
			s.run(job)
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) run(job *Job) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("job", job.Key).Errorf("scheduled job panicked: %v", r)
		}
		s.executed.Add(1)
	}()
	job.Fn()
}

// Stats returns a point-in-time view of the scheduler.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Pending:  len(s.byKey),
		Workers:  s.workers,
		Executed: s.executed.Load(),
	}
}

// Stats contains scheduler counters.
type Stats struct {
	Pending  int
	Workers  int
	Executed uint64
}
