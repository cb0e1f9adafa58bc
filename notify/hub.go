package notify

import "context"

// RoomBroadcaster is implemented by realtime.Hub.
type RoomBroadcaster interface {
	BroadcastToRoom(room string, message interface{})
}

type liveMessage struct {
	Type    string `json:"type"`
	Payload Event  `json:"payload"`
	RoomID  string `json:"room_id,omitempty"`
}

// HubSink pushes events to the live feed room of their event.
type HubSink struct {
	hub RoomBroadcaster
}

func NewHubSink(hub RoomBroadcaster) *HubSink {
	return &HubSink{hub: hub}
}

func (s *HubSink) Name() string { return "live" }

func (s *HubSink) Deliver(_ context.Context, ev Event) error {
	if ev.EventSlug == "" {
		return nil
	}
	s.hub.BroadcastToRoom(ev.EventSlug, liveMessage{
		Type:    string(ev.Type),
		Payload: ev,
		RoomID:  ev.EventSlug,
	})
	return nil
}
