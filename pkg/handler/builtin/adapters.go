// Package builtin provides the built-in node handlers.
package builtin

import "context"

// Adapter contracts consumed by the built-in handlers. Concrete provider
// integrations (SMTP, Firebase, Google Drive, ...) live outside the core;
// the handlers only translate adapter outcomes into handler results.

// EmailSender delivers a single email. sent reports whether the underlying
// provider accepted the message.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) (sent bool, err error)
}

// DatabaseWriter applies insert/update operations from action nodes.
type DatabaseWriter interface {
	Insert(ctx context.Context, collection string, document map[string]interface{}) error
	Update(ctx context.Context, collection string, filter, document map[string]interface{}) error
}

// OperationAdapter executes one structured operation and returns its output.
// File operations, form operations, push notifications, and email automation
// all share this shape.
type OperationAdapter interface {
	Execute(ctx context.Context, operation string, config map[string]interface{}) (map[string]interface{}, error)
}

// OperationFunc adapts a function to OperationAdapter.
type OperationFunc func(ctx context.Context, operation string, config map[string]interface{}) (map[string]interface{}, error)

// Execute calls fn.
func (fn OperationFunc) Execute(ctx context.Context, operation string, config map[string]interface{}) (map[string]interface{}, error) {
	return fn(ctx, operation, config)
}

// QuotaCounter tracks per-provider daily usage. The Redis-backed counter is
// shared across replicas; a process-local counter is acceptable only for a
// single-replica deployment.
type QuotaCounter interface {
	// Increment bumps the usage counter for key and returns the new total.
	Increment(ctx context.Context, key string) (int64, error)
}

// QuotaFunc adapts a function to QuotaCounter.
type QuotaFunc func(ctx context.Context, key string) (int64, error)

// Increment calls fn.
func (fn QuotaFunc) Increment(ctx context.Context, key string) (int64, error) {
	return fn(ctx, key)
}
