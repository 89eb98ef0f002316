// Package relay fans chat and drawing events out to party rooms.
//
// Chat goes through a Redis Stream so every server instance sees every message;
// drawing events skip the broker and go straight to the local room.
package relay

import "watchparty/backend/internal/hub"

// Rooms is the part of the connection registry the relays need.
type Rooms interface {
	Broadcast(code string, event hub.Event, except hub.ConnID) hub.PublishResult
}
