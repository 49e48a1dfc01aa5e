// Package ecs bridges arbor signals into an ECS world.
//
// [NewDonburiSink] returns an [arbor.EventSink] that publishes every signal
// emitted in a tree to a [Donburi] world as a typed event. Subscribe to
// [SignalEventType] in your ECS systems to receive them.
//
// Usage:
//
//	sink := ecs.NewDonburiSink(world, "hit", "died")
//	tree.SetEventSink(sink)
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
