package tool

import (
	"context"
	"encoding/json"
	"fmt"
)

// Executor dispatches ToolUse-derived Calls against a Registry, one at a
// time and strictly in the order the model emitted them — the core never
// parallelizes tool execution within a step, since later tool calls in the
// same step may depend on earlier ones having already run.
type Executor struct {
	registry *Registry
}

// NewExecutor builds an Executor bound to a Registry.
func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry}
}

// OnToolStart is invoked immediately before a Call executes.
type OnToolStart func(Call)

// OnToolDone is invoked immediately after a Call completes (success or not).
type OnToolDone func(Call, Result)

// Run executes every Call in order, invoking onStart/onDone around each. A
// call naming an unregistered tool produces a failed, non-fatal Result
// rather than aborting the batch — the model sees the failure and can
// recover on its next step.
func (e *Executor) Run(ctx context.Context, calls []Call, onStart OnToolStart, onDone OnToolDone) []Result {
	results := make([]Result, len(calls))
	for i, call := range calls {
		if onStart != nil {
			onStart(call)
		}
		result := e.runOne(ctx, call)
		results[i] = result
		if onDone != nil {
			onDone(call, result)
		}
	}
	return results
}

func (e *Executor) runOne(ctx context.Context, call Call) Result {
	t, ok := e.registry.Get(call.Name)
	if !ok {
		return Failed(call.ID, fmt.Sprintf("unknown tool %q", call.Name))
	}

	params := call.Parameters
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}

	result, err := t.Execute(ctx, params)
	if err != nil {
		return Failed(call.ID, fmt.Sprintf("tool %q failed: %v", call.Name, err))
	}
	result.ID = call.ID
	return result
}
