package llm

import "testing"

func TestStreamReassembler_SplitAcrossChunks(t *testing.T) {
	r := NewStreamReassembler()
	r.Feed(StreamChunk{ToolCallID: "call_1", ToolCallName: "bash", ToolCallArgs: `{"comm`})
	r.Feed(StreamChunk{ToolCallID: "call_1", ToolCallArgs: `and":"l`})
	r.Feed(StreamChunk{ToolCallID: "call_1", ToolCallArgs: `s"}`})

	blocks := r.Finish()
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	b := blocks[0]
	if b.Kind != BlockToolUse || b.Name != "bash" || b.ID != "call_1" {
		t.Fatalf("unexpected block: %+v", b)
	}
	if string(b.Input) != `{"command":"ls"}` {
		t.Fatalf("unexpected reassembled arguments: %s", b.Input)
	}
}

func TestStreamReassembler_SingleChunkMatchesMultiChunk(t *testing.T) {
	single := NewStreamReassembler()
	single.Feed(StreamChunk{ToolCallID: "x", ToolCallName: "bash", ToolCallArgs: `{"command":"ls"}`})

	split := NewStreamReassembler()
	split.Feed(StreamChunk{ToolCallID: "x", ToolCallName: "ba"})
	split.Feed(StreamChunk{ToolCallID: "x", ToolCallName: "sh", ToolCallArgs: `{"comm`})
	split.Feed(StreamChunk{ToolCallID: "x", ToolCallArgs: `and":"l`})
	split.Feed(StreamChunk{ToolCallID: "x", ToolCallArgs: `s"}`})

	a := single.Finish()
	b := split.Finish()
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("expected one block each, got %d and %d", len(a), len(b))
	}
	if a[0].Name != b[0].Name || string(a[0].Input) != string(b[0].Input) {
		t.Fatalf("reassembly diverged: %+v vs %+v", a[0], b[0])
	}
}

func TestStreamReassembler_MalformedArgumentsDropped(t *testing.T) {
	r := NewStreamReassembler()
	r.Feed(StreamChunk{ToolCallID: "bad", ToolCallName: "bash", ToolCallArgs: `{"command":`})
	blocks := r.Finish()
	if len(blocks) != 0 {
		t.Fatalf("expected malformed call to be dropped, got %+v", blocks)
	}
}

func TestStreamReassembler_PreservesFirstSeenOrder(t *testing.T) {
	r := NewStreamReassembler()
	r.Feed(StreamChunk{ToolCallID: "b", ToolCallName: "task_done", ToolCallArgs: `{}`})
	r.Feed(StreamChunk{ToolCallID: "a", ToolCallName: "bash", ToolCallArgs: `{}`})
	blocks := r.Finish()
	if len(blocks) != 2 || blocks[0].ID != "b" || blocks[1].ID != "a" {
		t.Fatalf("expected first-seen order b,a; got %+v", blocks)
	}
}
