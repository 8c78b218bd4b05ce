package storage

import (
	"log/slog"
	"sync"
)

// Executor runs tasks off the caller's goroutine. Interactive and
// background tasks have separate queues with one worker each, so a long
// parse never delays a quick interactive task. Tasks cannot be cancelled.
type Executor struct {
	mu          sync.RWMutex
	closed      bool
	interactive chan func()
	background  chan func()
	wg          sync.WaitGroup
}

const defaultQueueSize = 256

func NewExecutor(queueSize int) *Executor {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	e := &Executor{
		interactive: make(chan func(), queueSize),
		background:  make(chan func(), queueSize),
	}
	e.wg.Add(2)
	go e.work(e.interactive)
	go e.work(e.background)
	return e
}

func (e *Executor) work(q chan func()) {
	defer e.wg.Done()
	for task := range q {
		e.run(task)
	}
}

func (e *Executor) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("task panicked", "panic", r)
		}
	}()
	task()
}

// Submit queues task. It blocks while the queue is full.
func (e *Executor) Submit(task func(), interactive bool) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrExecutorClosed
	}
	if interactive {
		e.interactive <- task
	} else {
		e.background <- task
	}
	return nil
}

// Flush waits until every task queued before the call has finished.
func (e *Executor) Flush() {
	var wg sync.WaitGroup
	for _, interactive := range []bool{true, false} {
		wg.Add(1)
		if err := e.Submit(wg.Done, interactive); err != nil {
			wg.Done()
		}
	}
	wg.Wait()
}

// Close stops accepting tasks and waits for queued ones to finish.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.interactive)
	close(e.background)
	e.mu.Unlock()
	e.wg.Wait()
}
