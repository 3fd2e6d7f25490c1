// Package scheduler runs background tasks one at a time, in the order
// they were scheduled.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("orgls.scheduler")

type Task struct {
	Name    string
	Execute func(ctx context.Context) error
}

type Scheduler struct {
	tasks   chan Task
	stop    chan struct{}
	done    chan struct{}
	pending sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
}

// New starts a scheduler whose queue holds queueSize tasks.
func New(queueSize int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		tasks:  make(chan Task, queueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	go s.run()
	return s
}

func (s *Scheduler) run() {
	defer close(s.done)
	for {
		select {
		case task := <-s.tasks:
			s.execute(task)
		case <-s.stop:
			// drain what was queued before Stop
			for {
				select {
				case task := <-s.tasks:
					log.Debugf("draining %s", task.Name)
					s.execute(task)
				default:
					return
				}
			}
		}
	}
}

func (s *Scheduler) execute(task Task) {
	defer s.pending.Done()
	log.Debugf("executing %s", task.Name)
	if err := task.Execute(s.ctx); err != nil {
		log.Errorf("%s: %v", task.Name, err)
	}
}

// Schedule queues task, blocking while the queue is full. It returns
// false once the scheduler is stopped.
func (s *Scheduler) Schedule(task Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.pending.Add(1)
	s.tasks <- task
	return true
}

// TrySchedule queues task unless the queue is full or the scheduler is
// stopped.
func (s *Scheduler) TrySchedule(task Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.pending.Add(1)
	select {
	case s.tasks <- task:
		return true
	default:
		s.pending.Done()
		log.Infof("skipped scheduling %s, queue is full", task.Name)
		return false
	}
}

// Every schedules task now and then once per interval until the
// scheduler stops. A non-positive interval schedules it once.
func (s *Scheduler) Every(interval time.Duration, task Task) {
	s.TrySchedule(task)
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.TrySchedule(task)
			case <-s.stop:
				return
			}
		}
	}()
}

// Wait blocks until every queued task has run.
func (s *Scheduler) Wait() { s.pending.Wait() }

// Stop runs the queued tasks and stops the scheduler. Later calls do
// nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stop)
	s.mu.Unlock()

	<-s.done
	s.cancel()
	log.Debug("scheduler stopped")
}
