package pubsub

import (
	"context"
	"sync"
)

const subscriberBuffer = 256

// LocalRelay delivers in-process only. Used by single-node deployments and tests.
type LocalRelay struct {
	mu     sync.RWMutex
	subs   map[chan *Envelope]struct{}
	closed bool
}

func NewLocalRelay() *LocalRelay {
	return &LocalRelay{subs: make(map[chan *Envelope]struct{})}
}

func (l *LocalRelay) Publish(ctx context.Context, env *Envelope) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for ch := range l.subs {
		select {
		case ch <- env:
		default:
			// subscriber full, drop
		}
	}
	return nil
}

func (l *LocalRelay) Subscribe(ctx context.Context) (<-chan *Envelope, error) {
	ch := make(chan *Envelope, subscriberBuffer)

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		close(ch)
		return ch, nil
	}
	l.subs[ch] = struct{}{}
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.remove(ch)
	}()
	return ch, nil
}

func (l *LocalRelay) remove(ch chan *Envelope) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.subs[ch]; ok {
		delete(l.subs, ch)
		close(ch)
	}
}

func (l *LocalRelay) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ch := range l.subs {
		close(ch)
	}
	l.subs = make(map[chan *Envelope]struct{})
	l.closed = true
	return nil
}
