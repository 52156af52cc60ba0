// Package scheduler runs keyed one-shot jobs at a future time.
//
// At most one occurrence per key is ever pending: scheduling a key that is
// already pending replaces its time and payload. A job is removed from the
// pending set before its callback runs, so callbacks may re-arm their own key.
package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/budapestmetrodisplay/metrodisplay/internal/clock"
	"github.com/budapestmetrodisplay/metrodisplay/internal/logging"
)

// Job is one pending occurrence.
type Job[T any] struct {
	Key     string
	At      time.Time
	Payload T

	seq   uint64
	index int
}

// Func is the callback invoked when a job becomes due.
type Func[T any] func(ctx context.Context, job Job[T])

// Observer is told about every finished callback. It must not block.
type Observer func(scheduler string, key string, took time.Duration, panicked bool)

type Options struct {
	// Workers bounds how many callbacks run at once. Zero means one.
	Workers  int
	Logger   *slog.Logger
	Observer Observer
}

type Scheduler[T any] struct {
	name     string
	clock    clock.Clock
	run      Func[T]
	logger   *slog.Logger
	observer Observer
	workers  int

	mu    sync.Mutex
	byKey map[string]*Job[T]
	queue jobQueue[T]
	seq   uint64

	wake     chan struct{}
	work     chan *Job[T]
	started  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func New[T any](name string, c clock.Clock, run Func[T], opts Options) *Scheduler[T] {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Scheduler[T]{
		name:     name,
		clock:    c,
		run:      run,
		logger:   logger.With(slog.String("component", "scheduler"), slog.String("scheduler", name)),
		observer: opts.Observer,
		workers:  workers,
		byKey:    make(map[string]*Job[T]),
		wake:     make(chan struct{}, 1),
	}
}

func (s *Scheduler[T]) Name() string { return s.name }

// Schedule registers payload to run at at under key, replacing any pending
// job with the same key. Times in the past run as soon as possible.
func (s *Scheduler[T]) Schedule(key string, at time.Time, payload T) {
	s.mu.Lock()
	s.seq++
	if job, ok := s.byKey[key]; ok {
		job.At = at
		job.Payload = payload
		job.seq = s.seq
		heap.Fix(&s.queue, job.index)
	} else {
		job := &Job[T]{Key: key, At: at, Payload: payload, seq: s.seq}
		s.byKey[key] = job
		heap.Push(&s.queue, job)
	}
	s.mu.Unlock()
	s.signal()
}

// Cancel removes the pending job for key and reports whether there was one.
func (s *Scheduler[T]) Cancel(key string) bool {
	s.mu.Lock()
	job, ok := s.byKey[key]
	if ok {
		heap.Remove(&s.queue, job.index)
		delete(s.byKey, key)
	}
	s.mu.Unlock()
	if ok {
		s.signal()
	}
	return ok
}

// Pending returns the job pending under key.
func (s *Scheduler[T]) Pending(key string) (Job[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.byKey[key]
	if !ok {
		return Job[T]{}, false
	}
	return *job, true
}

// FindSoonest returns the earliest pending job accepted by match.
func (s *Scheduler[T]) FindSoonest(match func(Job[T]) bool) (Job[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *Job[T]
	for _, job := range s.byKey {
		if !match(*job) {
			continue
		}
		if best == nil || job.At.Before(best.At) || (job.At.Equal(best.At) && job.Key < best.Key) {
			best = job
		}
	}
	if best == nil {
		return Job[T]{}, false
	}
	return *best, true
}

// Jobs returns a copy of every pending job ordered by time then key.
func (s *Scheduler[T]) Jobs() []Job[T] {
	s.mu.Lock()
	jobs := make([]Job[T], 0, len(s.byKey))
	for _, job := range s.byKey {
		jobs = append(jobs, *job)
	}
	s.mu.Unlock()
	sort.Slice(jobs, func(a, b int) bool {
		if !jobs[a].At.Equal(jobs[b].At) {
			return jobs[a].At.Before(jobs[b].At)
		}
		return jobs[a].Key < jobs[b].Key
	})
	return jobs
}

func (s *Scheduler[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byKey)
}

// RunPending runs every job due at now on the calling goroutine, in time
// order, and returns how many ran. Jobs scheduled by those callbacks for a
// time at or before now run in the same call.
func (s *Scheduler[T]) RunPending(ctx context.Context, now time.Time) int {
	n := 0
	for {
		job := s.popDue(now)
		if job == nil {
			return n
		}
		s.execute(ctx, job)
		n++
	}
}

// Start launches the dispatcher and its workers. It returns immediately.
func (s *Scheduler[T]) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.work = make(chan *Job[T])
	s.mu.Unlock()

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for job := range s.work {
				s.execute(ctx, job)
			}
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(s.work)
		s.dispatch(ctx)
	}()

	logging.LogOperation(s.logger, "scheduler_started", slog.Int("workers", s.workers))
}

// Shutdown stops dispatching and waits for running callbacks to return.
// Pending jobs are dropped.
func (s *Scheduler[T]) Shutdown() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		cancel := s.cancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		s.wg.Wait()
		logging.LogOperation(s.logger, "scheduler_stopped")
	})
}

func (s *Scheduler[T]) dispatch(ctx context.Context) {
	for {
		// Handing a job to a busy worker blocks, so the time is read per pop.
		for {
			job := s.popDue(s.clock.Now())
			if job == nil {
				break
			}
			select {
			case s.work <- job:
			case <-ctx.Done():
				return
			}
		}

		var timer clock.Timer
		var fire <-chan time.Time
		if next, ok := s.nextAt(); ok {
			timer = s.clock.NewTimer(next.Sub(s.clock.Now()))
			fire = timer.C()
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-s.wake:
		case <-fire:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

func (s *Scheduler[T]) execute(ctx context.Context, job *Job[T]) {
	start := time.Now()
	panicked := false
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			logging.LogError(s.logger, "scheduled job panicked", fmt.Errorf("panic: %v", r),
				slog.String("key", job.Key))
		}
		if s.observer != nil {
			s.observer(s.name, job.Key, time.Since(start), panicked)
		}
	}()
	s.run(ctx, *job)
}

func (s *Scheduler[T]) popDue(now time.Time) *Job[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 || s.queue[0].At.After(now) {
		return nil
	}
	job := heap.Pop(&s.queue).(*Job[T])
	delete(s.byKey, job.Key)
	return job
}

func (s *Scheduler[T]) nextAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return time.Time{}, false
	}
	return s.queue[0].At, true
}

func (s *Scheduler[T]) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

type jobQueue[T any] []*Job[T]

func (q jobQueue[T]) Len() int { return len(q) }

func (q jobQueue[T]) Less(i, j int) bool {
	if !q[i].At.Equal(q[j].At) {
		return q[i].At.Before(q[j].At)
	}
	return q[i].seq < q[j].seq
}

func (q jobQueue[T]) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *jobQueue[T]) Push(x any) {
	job := x.(*Job[T])
	job.index = len(*q)
	*q = append(*q, job)
}

func (q *jobQueue[T]) Pop() any {
	old := *q
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	job.index = -1
	*q = old[:n-1]
	return job
}
