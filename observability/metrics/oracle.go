package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/DigitalDominance/Predikt/core/events"
	"github.com/DigitalDominance/Predikt/core/types"
	"github.com/DigitalDominance/Predikt/native/oracle"
)

var (
	questionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "predikt",
		Subsystem: "oracle",
		Name:      "questions_created_total",
		Help:      "Number of questions created.",
	})
	commitsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "predikt",
		Subsystem: "oracle",
		Name:      "commits_total",
		Help:      "Number of accepted commitments.",
	})
	revealsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "predikt",
		Subsystem: "oracle",
		Name:      "reveals_total",
		Help:      "Number of accepted reveals.",
	})
	escalations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "predikt",
		Subsystem: "oracle",
		Name:      "escalations_total",
		Help:      "Number of escalations to arbitration, by trigger.",
	}, []string{"auto"})
	finalizations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "predikt",
		Subsystem: "oracle",
		Name:      "finalizations_total",
		Help:      "Number of finalized questions, by settlement path.",
	}, []string{"arbitrated"})
	consumerFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "predikt",
		Subsystem: "oracle",
		Name:      "consumer_notify_failures_total",
		Help:      "Number of swallowed consumer notification failures.",
	})
)

// Emitter counts oracle events by type and forwards them to the wrapped
// emitter, so metrics stay in lockstep with the canonical event stream.
type Emitter struct {
	next events.Emitter
}

// NewEmitter wraps another emitter; nil means count-only.
func NewEmitter(next events.Emitter) *Emitter {
	return &Emitter{next: next}
}

// Emit implements events.Emitter.
func (e *Emitter) Emit(evt events.Event) {
	if evt != nil {
		switch evt.EventType() {
		case oracle.EventTypeQuestionCreated:
			questionsCreated.Inc()
		case oracle.EventTypeCommitted:
			commitsAccepted.Inc()
		case oracle.EventTypeRevealed:
			revealsAccepted.Inc()
		case oracle.EventTypeEscalated:
			escalations.WithLabelValues(attr(evt, "auto")).Inc()
		case oracle.EventTypeFinalized:
			finalizations.WithLabelValues(attr(evt, "arbitrated")).Inc()
		case oracle.EventTypeConsumerFailed:
			consumerFailures.Inc()
		}
	}
	if e != nil && e.next != nil {
		e.next.Emit(evt)
	}
}

// The engine wraps payloads in an unexported type; read attributes through
// the accessor it exposes.
type attributed interface {
	Event() *types.Event
}

func attr(evt events.Event, key string) string {
	wrapper, ok := evt.(attributed)
	if !ok {
		return "unknown"
	}
	payload := wrapper.Event()
	if payload == nil || payload.Attributes == nil {
		return "unknown"
	}
	if v, ok := payload.Attributes[key]; ok {
		return v
	}
	return "unknown"
}
