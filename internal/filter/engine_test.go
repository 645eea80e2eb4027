package filter

import (
	"testing"

	"github.com/beaconbridge/beacon/internal/content"
	"github.com/beaconbridge/beacon/internal/model"
)

// alwaysBlock is a test Filter that blocks unconditionally and records invocation count in Data.
type alwaysBlock struct{ id string }

func (a alwaysBlock) ID() string                    { return a.id }
func (a alwaysBlock) Name() string                  { return a.id }
func (a alwaysBlock) Description() string            { return "" }
func (a alwaysBlock) Configs() map[string]ConfigSpec { return nil }
func (a alwaysBlock) Check(_ model.User, _ content.MessageContent, _ string, _ map[string]any, data map[string]any) Result {
	count := 0
	if data != nil {
		if v, ok := data["count"].(int); ok {
			count = v
		}
	}
	count++
	return Result{Blocked: true, Data: map[string]any{"count": count}}
}

type neverBlock struct{ id string }

func (n neverBlock) ID() string                    { return n.id }
func (n neverBlock) Name() string                  { return n.id }
func (n neverBlock) Description() string           { return "" }
func (n neverBlock) Configs() map[string]ConfigSpec { return nil }
func (n neverBlock) Check(model.User, content.MessageContent, string, map[string]any, map[string]any) Result {
	return Result{Blocked: false}
}

// softBlock blocks but supplies SafeContent, so the pipeline should substitute and keep going rather than stop.
type softBlock struct {
	id   string
	text string
}

func (s softBlock) ID() string                    { return s.id }
func (s softBlock) Name() string                  { return s.id }
func (s softBlock) Description() string           { return "" }
func (s softBlock) Configs() map[string]ConfigSpec { return nil }
func (s softBlock) Check(model.User, content.MessageContent, string, map[string]any, map[string]any) Result {
	text := s.text
	return Result{Blocked: true, SafeContent: &text}
}

// recordingFilter records every piece of plaintext it was asked to check, to prove substitution reaches later
// filters in the pipeline.
type recordingFilter struct {
	id   string
	seen *[]string
}

func (r recordingFilter) ID() string                    { return r.id }
func (r recordingFilter) Name() string                  { return r.id }
func (r recordingFilter) Description() string           { return "" }
func (r recordingFilter) Configs() map[string]ConfigSpec { return nil }
func (r recordingFilter) Check(_ model.User, msg content.MessageContent, _ string, _ map[string]any, _ map[string]any) Result {
	*r.seen = append(*r.seen, msg.PlainText())
	return Result{Blocked: false}
}

func TestEngineRunBlocksWhenAnyEnabledFilterBlocks(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	e.Register(neverBlock{id: "a"})
	e.Register(alwaysBlock{id: "b"})

	msg := content.MessageContent{}
	blocked, evals := e.Run(model.User{}, &msg, "", "server-1", []string{"a", "b"}, nil)
	if !blocked {
		t.Error("Run() blocked = false, want true")
	}
	if len(evals) != 2 {
		t.Fatalf("Run() returned %d evaluations, want 2", len(evals))
	}
}

func TestEngineRunSkipsDisabledFilters(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	e.Register(alwaysBlock{id: "b"})

	msg := content.MessageContent{}
	blocked, evals := e.Run(model.User{}, &msg, "", "server-1", []string{"other"}, nil)
	if blocked {
		t.Error("Run() blocked = true, want false since the only registered filter was not enabled")
	}
	if len(evals) != 0 {
		t.Errorf("Run() returned %d evaluations, want 0", len(evals))
	}
}

func TestEnginePersistsStatePerServer(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	e.Register(alwaysBlock{id: "b"})

	msg1 := content.MessageContent{}
	e.Run(model.User{}, &msg1, "", "server-1", []string{"b"}, nil)
	msg2 := content.MessageContent{}
	_, evals := e.Run(model.User{}, &msg2, "", "server-1", []string{"b"}, nil)
	if evals[0].Result.Data["count"] != 2 {
		t.Errorf("server-1 count = %v, want 2", evals[0].Result.Data["count"])
	}

	msg3 := content.MessageContent{}
	_, evalsOther := e.Run(model.User{}, &msg3, "", "server-2", []string{"b"}, nil)
	if evalsOther[0].Result.Data["count"] != 1 {
		t.Errorf("server-2 count = %v, want 1 (state must not leak across servers)", evalsOther[0].Result.Data["count"])
	}
}

func TestEngineRunSubstitutesSafeContentAndContinuesPipeline(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	e.Register(softBlock{id: "soft", text: "[redacted]"})

	var seen []string
	e.Register(recordingFilter{id: "recorder", seen: &seen})

	msg := content.MessageContent{}
	msg.SetBlock("body", content.NewText("original text"))

	blocked, _ := e.Run(model.User{}, &msg, "", "server-1", []string{"soft", "recorder"}, nil)
	if blocked {
		t.Error("Run() blocked = true, want false: a SafeContent block should not fail the pipeline")
	}
	if msg.PlainText() != "[redacted]" {
		t.Errorf("msg.PlainText() = %q, want %q", msg.PlainText(), "[redacted]")
	}
	if len(seen) != 1 || seen[0] != "[redacted]" {
		t.Errorf("recorder saw %v, want the substituted text to reach later filters", seen)
	}
}

func TestEngineRunHardBlockStopsPipeline(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	e.Register(alwaysBlock{id: "hard"})

	var seen []string
	e.Register(recordingFilter{id: "recorder", seen: &seen})

	msg := content.MessageContent{}
	blocked, evals := e.Run(model.User{}, &msg, "", "server-1", []string{"hard", "recorder"}, nil)
	if !blocked {
		t.Error("Run() blocked = false, want true")
	}
	if len(evals) != 1 {
		t.Errorf("Run() evaluated %d filters, want 1 (pipeline must stop at the hard block)", len(evals))
	}
	if len(seen) != 0 {
		t.Error("recorder was invoked after a hard block, want pipeline to have stopped")
	}
}

func TestEngineGet(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	e.Register(neverBlock{id: "a"})

	if _, ok := e.Get("a"); !ok {
		t.Error("Get(a) ok = false, want true")
	}
	if _, ok := e.Get("missing"); ok {
		t.Error("Get(missing) ok = true, want false")
	}
}
