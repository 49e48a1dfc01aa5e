package ecs

import (
	"slices"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"

	"github.com/phanxgames/arbor"
)

// SignalEventType is the Donburi event type for arbor signal emissions.
var SignalEventType = events.NewEventType[arbor.SignalEvent]()

type donburiSink struct {
	world   donburi.World
	signals []string
}

// NewDonburiSink creates an EventSink backed by a Donburi world. When
// signals are given only emissions of those names are published; otherwise
// every emission is. Events are queued until the world processes them with
// SignalEventType.ProcessEvents or events.ProcessAllEvents.
func NewDonburiSink(world donburi.World, signals ...string) arbor.EventSink {
	return &donburiSink{world: world, signals: signals}
}

func (s *donburiSink) SignalEmitted(e arbor.SignalEvent) {
	if len(s.signals) > 0 && !slices.Contains(s.signals, e.Signal) {
		return
	}
	SignalEventType.Publish(s.world, e)
}
