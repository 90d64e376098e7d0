package opqueue

import (
	"context"
	"encoding/json"
	"fmt"
)

// Kind discriminates the closed set of operation variants.
type Kind string

const (
	// KindAPICall is a deferred remote HTTP call.
	KindAPICall Kind = "api_call"
	// KindStateUpdate is a deferred mutation of the application state store.
	KindStateUpdate Kind = "state_update"
	// KindStorage is a deferred write against the local storage backend.
	KindStorage Kind = "storage"
	// KindCustom is a deferred caller-supplied callback.
	KindCustom Kind = "custom"
)

// Operation is an immutable description of one deferred unit of work.
//
// The set of implementations is closed: APICall, StateUpdate, StorageOp and
// Custom. Executor dispatch switches exhaustively over these four types, so
// adding a variant is a compile-time-visible change.
type Operation interface {
	// Kind returns the variant tag.
	Kind() Kind
	// Validate checks the variant's required fields.
	Validate() error
}

// APICall defers an HTTP request until connectivity returns.
type APICall struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Data    json.RawMessage   `json:"data,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Kind implements Operation.
func (APICall) Kind() Kind { return KindAPICall }

// Validate implements Operation.
func (o APICall) Validate() error {
	if o.URL == "" {
		return ErrURLRequired
	}
	if o.Method == "" {
		return ErrMethodRequired
	}

	return nil
}

// UpdateFunc mutates the current state value and returns its replacement.
type UpdateFunc func(ctx context.Context, current json.RawMessage) (json.RawMessage, error)

// StateUpdate defers a mutation of the application state store. The updater
// is either a literal replacement Value or an Apply function computing one.
//
// Apply does not survive serialization: a persisted StateUpdate reloads with
// only its Value.
type StateUpdate struct {
	Value       json.RawMessage `json:"value,omitempty"`
	Apply       UpdateFunc      `json:"-"`
	Description string          `json:"description,omitempty"`
}

// Kind implements Operation.
func (StateUpdate) Kind() Kind { return KindStateUpdate }

// Validate implements Operation.
func (o StateUpdate) Validate() error {
	if len(o.Value) == 0 && o.Apply == nil {
		return ErrUpdaterRequired
	}

	return nil
}

// StorageAction names a local storage verb.
type StorageAction string

const (
	// StorageSet writes a value under a key.
	StorageSet StorageAction = "set"
	// StorageGet reads a key.
	StorageGet StorageAction = "get"
	// StorageRemove deletes a key.
	StorageRemove StorageAction = "remove"
)

// StorageOp defers a write against the local storage backend.
type StorageOp struct {
	Action StorageAction   `json:"action"`
	Key    string          `json:"key"`
	Value  json.RawMessage `json:"value,omitempty"`
}

// Kind implements Operation.
func (StorageOp) Kind() Kind { return KindStorage }

// Validate implements Operation.
func (o StorageOp) Validate() error {
	switch o.Action {
	case StorageSet, StorageGet, StorageRemove:
	default:
		return ErrActionInvalid
	}
	if o.Key == "" {
		return ErrKeyRequired
	}

	return nil
}

// ExecuteFunc performs a custom deferred operation.
type ExecuteFunc func(ctx context.Context) (json.RawMessage, error)

// Custom defers a caller-supplied callback. The function cannot be
// serialized: a Custom entry reloaded after a restart fails its next attempt
// with ErrCustomLost and flows through the normal retry path. Name is
// optional metadata kept in snapshots to identify such entries.
type Custom struct {
	Name    string      `json:"name,omitempty"`
	Execute ExecuteFunc `json:"-"`
}

// Kind implements Operation.
func (Custom) Kind() Kind { return KindCustom }

// Validate implements Operation.
func (o Custom) Validate() error {
	if o.Execute == nil {
		return ErrExecuteRequired
	}

	return nil
}

// operationEnvelope is the tagged wire form of an Operation.
type operationEnvelope struct {
	Kind Kind            `json:"kind"`
	Spec json.RawMessage `json:"spec"`
}

func marshalOperation(op Operation) (operationEnvelope, error) {
	spec, err := json.Marshal(op)
	if err != nil {
		return operationEnvelope{}, fmt.Errorf("opqueue: marshal %s operation: %w", op.Kind(), err)
	}

	return operationEnvelope{Kind: op.Kind(), Spec: spec}, nil
}

func unmarshalOperation(env operationEnvelope) (Operation, error) {
	switch env.Kind {
	case KindAPICall:
		var op APICall
		if err := decodeSpec(env, &op); err != nil {
			return nil, err
		}

		return op, nil
	case KindStateUpdate:
		var op StateUpdate
		if err := decodeSpec(env, &op); err != nil {
			return nil, err
		}

		return op, nil
	case KindStorage:
		var op StorageOp
		if err := decodeSpec(env, &op); err != nil {
			return nil, err
		}

		return op, nil
	case KindCustom:
		var op Custom
		if err := decodeSpec(env, &op); err != nil {
			return nil, err
		}

		return op, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
}

func decodeSpec(env operationEnvelope, into any) error {
	if err := json.Unmarshal(env.Spec, into); err != nil {
		return fmt.Errorf("opqueue: unmarshal %s operation: %w", env.Kind, err)
	}

	return nil
}
