package metrics

import (
	"testing"

	"github.com/DigitalDominance/Predikt/core/events"
	"github.com/DigitalDominance/Predikt/core/types"
)

type stubEvent struct {
	payload *types.Event
}

func (s stubEvent) EventType() string {
	if s.payload == nil {
		return ""
	}
	return s.payload.Type
}

func (s stubEvent) Event() *types.Event { return s.payload }

type captureEmitter struct {
	seen []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) {
	c.seen = append(c.seen, evt)
}

func TestEmitterForwardsDownstream(t *testing.T) {
	downstream := &captureEmitter{}
	emitter := NewEmitter(downstream)

	evt := stubEvent{payload: &types.Event{
		Type:       "oracle.escalated",
		Attributes: map[string]string{"auto": "true"},
	}}
	emitter.Emit(evt)

	if len(downstream.seen) != 1 {
		t.Fatalf("expected one forwarded event, got %d", len(downstream.seen))
	}
	if downstream.seen[0].EventType() != "oracle.escalated" {
		t.Fatalf("forwarded event type %q", downstream.seen[0].EventType())
	}
}

func TestEmitterWithoutDownstreamCountsOnly(t *testing.T) {
	emitter := NewEmitter(nil)
	emitter.Emit(stubEvent{payload: &types.Event{Type: "oracle.finalized", Attributes: map[string]string{"arbitrated": "false"}}})
}

func TestAttrFallsBackToUnknown(t *testing.T) {
	if got := attr(stubEvent{payload: &types.Event{Type: "oracle.escalated"}}, "auto"); got != "unknown" {
		t.Fatalf("missing attribute map: got %q", got)
	}
	if got := attr(stubEvent{payload: &types.Event{Type: "oracle.escalated", Attributes: map[string]string{}}}, "auto"); got != "unknown" {
		t.Fatalf("missing key: got %q", got)
	}
	if got := attr(stubEvent{payload: &types.Event{Type: "oracle.escalated", Attributes: map[string]string{"auto": "false"}}}, "auto"); got != "false" {
		t.Fatalf("present key: got %q", got)
	}
}
