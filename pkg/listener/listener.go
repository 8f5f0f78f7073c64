// Package listener runs a handler for every value received on a channel.
package listener

import (
	"context"
	"log/slog"
	"sync"
)

// Listener applies handler to each input from a single goroutine.
// A failing input is logged and skipped; the listener keeps running.
type Listener[T any] struct {
	name        string
	handler     func(input T) error
	stopHandler func()

	in     <-chan T
	wg     sync.WaitGroup
	cancel func()
}

func New[T any](
	name string,
	in <-chan T,
	handler func(T) error,
	stopHandler ...func(),
) *Listener[T] {
	if len(stopHandler) == 0 {
		stopHandler = []func(){func() {}}
	}

	return &Listener[T]{
		name:        name,
		in:          in,
		handler:     handler,
		cancel:      func() {},
		stopHandler: stopHandler[0],
	}
}

func (l *Listener[T]) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	l.wg.Add(1)

	go func() {
		defer l.wg.Done()
		for {
			if !l.run(ctx) {
				return
			}
		}
	}()
}

// run handles one input; false means the listener must stop.
func (l *Listener[T]) run(ctx context.Context) bool {
	select {
	case inp, ok := <-l.in:
		if !ok {
			return false
		}
		if err := l.handler(inp); err != nil {
			slog.Error("listener handler failed", "listener", l.name, "error", err)
		}
		return true
	case <-ctx.Done():
		return false
	}
}

// Stop cancels the listener, waits for the in-flight input and runs the stop handler.
func (l *Listener[T]) Stop() {
	l.cancel()
	l.wg.Wait()
	l.stopHandler()
}
