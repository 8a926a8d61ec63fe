package repository

import (
	"context"
	"sync"
)

// Transactor runs fn atomically. Calls nested inside fn join the outer transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type hooksKey struct{}

// TxHooks collects callbacks that must only run once a transaction commits.
type TxHooks struct {
	mu  sync.Mutex
	fns []func()
}

// BeginHooks attaches a fresh hook collector to ctx.
// Backends that retry transactions call it once per attempt.
func BeginHooks(ctx context.Context) (context.Context, *TxHooks) {
	h := &TxHooks{}
	return context.WithValue(ctx, hooksKey{}, h), h
}

// InTransaction reports whether ctx carries an active transaction.
func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(hooksKey{}).(*TxHooks)
	return ok
}

// AfterCommit defers fn until the enclosing transaction commits.
// Without a transaction fn runs immediately. On rollback fn never runs.
func AfterCommit(ctx context.Context, fn func()) {
	h, ok := ctx.Value(hooksKey{}).(*TxHooks)
	if !ok {
		fn()
		return
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

// Run fires the collected hooks in registration order.
func (h *TxHooks) Run() {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
