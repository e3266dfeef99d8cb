// Package handler provides the node handler contract and registry.
//
// Every node kind has a handler implementing the uniform
// Execute(node, context) → Result protocol. Handlers are stateless with
// respect to one another; adapter failures are translated into Error
// results rather than returned as Go errors, so the engine treats a
// returned error and an Error result identically.
package handler

import (
	"context"
	"fmt"

	"github.com/fluxionhq/fluxion/pkg/models"
)

// Handler executes one node kind.
type Handler interface {
	// Execute runs the node against the current execution context. The
	// returned Result is one of Success, Pause, or Error; a non-nil Go
	// error is equivalent to an Error result.
	Execute(ctx context.Context, node *models.Node, exec *models.ExecutionContext) (*Result, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, node *models.Node, exec *models.ExecutionContext) (*Result, error)

// Execute calls fn.
func (fn HandlerFunc) Execute(ctx context.Context, node *models.Node, exec *models.ExecutionContext) (*Result, error) {
	return fn(ctx, node, exec)
}

// ResultKind discriminates the three handler outcomes.
type ResultKind string

const (
	ResultSuccess ResultKind = "success"
	ResultPause   ResultKind = "pause"
	ResultError   ResultKind = "error"
)

// Result is the outcome of one handler invocation.
type Result struct {
	Kind   ResultKind
	Output map[string]interface{} // set for Success

	PauseReason string      // set for Pause
	PauseData   interface{} // set for Pause

	Message string // set for Error
}

// Success builds a success result with the given output.
func Success(output map[string]interface{}) *Result {
	return &Result{Kind: ResultSuccess, Output: output}
}

// Pause builds a pause result.
func Pause(reason string, data interface{}) *Result {
	return &Result{Kind: ResultPause, PauseReason: reason, PauseData: data}
}

// Errorf builds an error result.
func Errorf(format string, args ...interface{}) *Result {
	return &Result{Kind: ResultError, Message: fmt.Sprintf(format, args...)}
}
