// Package loop runs every timeline mutation on one goroutine. Network and
// streaming completions are posted here instead of touching models directly.
package loop

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/d60-Lab/fedtimeline/pkg/logger"
)

var ErrStopped = errors.New("loop stopped")

type Loop struct {
	ch       chan func()
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func New(queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Loop{ch: make(chan func(), queueSize), stop: make(chan struct{}), done: make(chan struct{})}
}

// Run executes posted functions in order until ctx is done or Stop is called.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case fn := <-l.ch:
			l.exec(fn)
		case <-ctx.Done():
			return
		case <-l.stop:
			return
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("loop task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	fn()
}

// Post enqueues fn without waiting for it to run.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.stop:
		return ErrStopped
	default:
	}
	select {
	case l.ch <- fn:
		return nil
	case <-l.stop:
		return ErrStopped
	case <-l.done:
		return ErrStopped
	}
}

// Call runs fn on the loop and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}
}

func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Done is closed once Run returns.
func (l *Loop) Done() <-chan struct{} { return l.done }

// QueueLen 返回当前队列长度（采样值）。
func (l *Loop) QueueLen() int { return len(l.ch) }
