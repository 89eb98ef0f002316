package relay

import (
	"encoding/json"

	"watchparty/backend/internal/hub"
	"watchparty/backend/internal/partycode"
)

// DrawingPayload is the outbound drawingData event.
type DrawingPayload struct {
	PartyCode string          `json:"partyCode"`
	Payload   json.RawMessage `json:"payload"`
}

// ClearPayload is the outbound clearDrawing event.
type ClearPayload struct {
	PartyCode string `json:"partyCode"`
}

// DrawingRelay delivers drawing events to everyone in the room but the sender.
// Nothing is stored; a recipient that is not connected simply misses the event.
type DrawingRelay struct {
	rooms Rooms
}

func NewDrawingRelay(rooms Rooms) *DrawingRelay {
	return &DrawingRelay{rooms: rooms}
}

func (d *DrawingRelay) BroadcastDrawing(code string, sender hub.Conn, payload json.RawMessage) hub.PublishResult {
	code = partycode.Normalize(code)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return d.rooms.Broadcast(code, hub.Event{
		Type:    hub.EventDrawingData,
		Payload: DrawingPayload{PartyCode: code, Payload: payload},
	}, sender.ID())
}

func (d *DrawingRelay) BroadcastClear(code string, sender hub.Conn) hub.PublishResult {
	code = partycode.Normalize(code)
	return d.rooms.Broadcast(code, hub.Event{
		Type:    hub.EventClearDrawing,
		Payload: ClearPayload{PartyCode: code},
	}, sender.ID())
}
