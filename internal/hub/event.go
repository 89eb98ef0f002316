package hub

import "encoding/json"

// Outbound event types.
const (
	EventUserJoined    = "userJoined"
	EventChat          = "chat"
	EventDrawingData   = "drawingData"
	EventClearDrawing  = "clearDrawing"
	EventMembersUpdate = "membersUpdate"
	EventPartyDeleted  = "partyDeleted"
	EventError         = "error"
)

// Event represents a real-time event sent to clients.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Encode marshals the event into a single text frame.
func (e Event) Encode() ([]byte, error) {
	if e.Payload == nil {
		e.Payload = struct{}{}
	}
	return json.Marshal(e)
}
