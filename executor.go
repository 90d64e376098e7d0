package opqueue

import (
	"context"
	"encoding/json"
	"fmt"
)

// APIExecutor performs a deferred remote call.
type APIExecutor interface {
	// ExecuteAPICall performs the HTTP request described by op.
	ExecuteAPICall(ctx context.Context, op APICall) (json.RawMessage, error)
}

// APIExecutorFunc adapts a function to APIExecutor.
type APIExecutorFunc func(ctx context.Context, op APICall) (json.RawMessage, error)

// ExecuteAPICall implements APIExecutor.
func (fn APIExecutorFunc) ExecuteAPICall(ctx context.Context, op APICall) (json.RawMessage, error) {
	return fn(ctx, op)
}

// StateExecutor applies a deferred state mutation.
type StateExecutor interface {
	// ExecuteStateUpdate applies op to the application state store.
	ExecuteStateUpdate(ctx context.Context, op StateUpdate) (json.RawMessage, error)
}

// StateExecutorFunc adapts a function to StateExecutor.
type StateExecutorFunc func(ctx context.Context, op StateUpdate) (json.RawMessage, error)

// ExecuteStateUpdate implements StateExecutor.
func (fn StateExecutorFunc) ExecuteStateUpdate(ctx context.Context, op StateUpdate) (json.RawMessage, error) {
	return fn(ctx, op)
}

// StorageExecutor performs a deferred local storage operation.
type StorageExecutor interface {
	// ExecuteStorageOp performs op against the local storage backend.
	ExecuteStorageOp(ctx context.Context, op StorageOp) (json.RawMessage, error)
}

// StorageExecutorFunc adapts a function to StorageExecutor.
type StorageExecutorFunc func(ctx context.Context, op StorageOp) (json.RawMessage, error)

// ExecuteStorageOp implements StorageExecutor.
func (fn StorageExecutorFunc) ExecuteStorageOp(ctx context.Context, op StorageOp) (json.RawMessage, error) {
	return fn(ctx, op)
}

// CustomExecutor runs a deferred caller-supplied callback.
type CustomExecutor interface {
	// ExecuteCustom runs op.
	ExecuteCustom(ctx context.Context, op Custom) (json.RawMessage, error)
}

// CustomExecutorFunc adapts a function to CustomExecutor.
type CustomExecutorFunc func(ctx context.Context, op Custom) (json.RawMessage, error)

// ExecuteCustom implements CustomExecutor.
func (fn CustomExecutorFunc) ExecuteCustom(ctx context.Context, op Custom) (json.RawMessage, error) {
	return fn(ctx, op)
}

// Executors bundles one executor per operation variant. API, State and
// Storage are required; Custom defaults to running the operation's own
// Execute function.
type Executors struct {
	API     APIExecutor
	State   StateExecutor
	Storage StorageExecutor
	Custom  CustomExecutor
}

func (e Executors) withDefaults() Executors {
	if e.Custom == nil {
		e.Custom = defaultCustomExecutor{}
	}

	return e
}

// execute dispatches op to the matching executor. The switch is exhaustive
// over the closed Operation set.
func (e Executors) execute(ctx context.Context, op Operation) (json.RawMessage, error) {
	switch v := op.(type) {
	case APICall:
		return e.API.ExecuteAPICall(ctx, v)
	case StateUpdate:
		return e.State.ExecuteStateUpdate(ctx, v)
	case StorageOp:
		return e.Storage.ExecuteStorageOp(ctx, v)
	case Custom:
		return e.Custom.ExecuteCustom(ctx, v)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, op)
	}
}

// defaultCustomExecutor runs the operation's own function.
type defaultCustomExecutor struct{}

func (defaultCustomExecutor) ExecuteCustom(ctx context.Context, op Custom) (json.RawMessage, error) {
	if op.Execute == nil {
		return nil, ErrCustomLost
	}

	return op.Execute(ctx)
}
