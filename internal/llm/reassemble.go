package llm

import (
	"encoding/json"
	"log"
	"strings"
)

// toolCallAccumulator collects the (name, arguments) fragments of one
// streamed tool call, keyed by id, until the stream ends.
type toolCallAccumulator struct {
	name string
	args strings.Builder
}

// StreamReassembler accumulates partial tool calls across StreamChunks and
// produces the final ToolUse content blocks once the stream ends.
//
// Grounded on the Rust original's execute_step_with_streaming: id may be set
// on the first chunk only, name accumulates, arguments is a JSON string
// delivered in fragments split at arbitrary byte boundaries. Reassembly is
// order-preserving: tool calls are finalized in first-seen order.
type StreamReassembler struct {
	order []string
	calls map[string]*toolCallAccumulator
	text  strings.Builder
}

// NewStreamReassembler creates an empty reassembler.
func NewStreamReassembler() *StreamReassembler {
	return &StreamReassembler{calls: make(map[string]*toolCallAccumulator)}
}

// Feed processes one StreamChunk.
func (r *StreamReassembler) Feed(c StreamChunk) {
	if c.Delta != "" {
		r.text.WriteString(c.Delta)
	}
	if c.ToolCallID == "" {
		return
	}
	acc, ok := r.calls[c.ToolCallID]
	if !ok {
		acc = &toolCallAccumulator{}
		r.calls[c.ToolCallID] = acc
		r.order = append(r.order, c.ToolCallID)
	}
	if c.ToolCallName != "" {
		acc.name += c.ToolCallName
	}
	if c.ToolCallArgs != "" {
		acc.args.WriteString(c.ToolCallArgs)
	}
}

// Text returns the accumulated plain-text delta.
func (r *StreamReassembler) Text() string { return r.text.String() }

// Finish parses every accumulated tool call's arguments as JSON, in
// first-seen order. A call whose arguments fail to parse is logged as a
// warning and dropped — never fatal, per spec §4.D.
func (r *StreamReassembler) Finish() []ContentBlock {
	var blocks []ContentBlock
	if r.text.Len() > 0 {
		blocks = append(blocks, TextBlock(r.text.String()))
	}
	for _, id := range r.order {
		acc := r.calls[id]
		raw := acc.args.String()
		if raw == "" {
			raw = "{}"
		}
		if !json.Valid([]byte(raw)) {
			log.Printf("[LLM] WARNING: dropping tool call %q (%s): malformed arguments JSON: %q", id, acc.name, raw)
			continue
		}
		blocks = append(blocks, ToolUseBlock(id, acc.name, json.RawMessage(raw)))
	}
	return blocks
}
