package event

import "testing"

type recordingSink struct {
	events []Event
}

func (r *recordingSink) Emit(e Event)          { r.events = append(r.events, e) }
func (r *recordingSink) SupportsOverwrite() bool { return false }

type panickingSink struct{}

func (panickingSink) Emit(Event)             { panic("boom") }
func (panickingSink) SupportsOverwrite() bool { return false }

func TestBus_FanOutPreservesOrder(t *testing.T) {
	b := NewBus()
	a := &recordingSink{}
	c := &recordingSink{}
	b.Subscribe(a)
	b.Subscribe(c)

	b.Emit(Event{Kind: KindExecutionStarted})
	b.Emit(Event{Kind: KindStepStarted, Step: StepInfo{StepNumber: 1}})
	b.Emit(Event{Kind: KindExecutionCompleted, Success: true})

	for _, sink := range []*recordingSink{a, c} {
		if len(sink.events) != 3 {
			t.Fatalf("expected 3 events, got %d", len(sink.events))
		}
		if sink.events[1].Step.StepNumber != 1 {
			t.Errorf("expected step 1 second, got %+v", sink.events[1])
		}
	}
}

func TestBus_PanickingSinkDoesNotBlockOthers(t *testing.T) {
	b := NewBus()
	b.Subscribe(panickingSink{})
	good := &recordingSink{}
	b.Subscribe(good)

	b.Emit(Event{Kind: KindStatusUpdate, Content: "hi"})

	if len(good.events) != 1 {
		t.Fatalf("expected the well-behaved sink to still receive the event, got %d", len(good.events))
	}
}

func TestNullSink_DiscardsEverything(t *testing.T) {
	var s NullSink
	s.Emit(Event{Kind: KindMessage, Content: "ignored"})
	if s.SupportsOverwrite() {
		t.Error("NullSink must not support overwrite")
	}
}
