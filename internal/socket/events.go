package socket

import (
	"encoding/json"

	"watchparty/backend/internal/partycode"
)

// Inbound event types. The outbound ones live in the hub package.
const (
	inJoin         = "join"
	inChat         = "chat"
	inLeave        = "leave"
	inDrawingData  = "drawingData"
	inClearDrawing = "clearDrawing"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type roomRequest struct {
	UserID    uint   `json:"userId" validate:"required"`
	PartyCode string `json:"partyCode" validate:"required,len=7,alphanum"`
}

type chatRequest struct {
	UserID    uint   `json:"userId" validate:"required"`
	PartyCode string `json:"partyCode" validate:"required,len=7,alphanum"`
	Message   string `json:"message" validate:"required,max=4000"`
}

type drawingRequest struct {
	PartyCode string          `json:"partyCode" validate:"required,len=7,alphanum"`
	Payload   json.RawMessage `json:"payload"`
}

type clearRequest struct {
	PartyCode string `json:"partyCode" validate:"required,len=7,alphanum"`
}

// UserJoined is the payload of the userJoined event.
type UserJoined struct {
	UserID    uint   `json:"userId"`
	PartyCode string `json:"partyCode"`
}

// ErrorPayload is sent only to the connection whose input was rejected.
type ErrorPayload struct {
	Message string `json:"message"`
}

var fieldMessages = map[string]string{
	"userId":    "userId must be a positive number",
	"partyCode": "partyCode must be 7 letters or digits",
	"message":   "message must be between 1 and 4000 characters",
}

func fieldMessage(field string) string {
	if msg, ok := fieldMessages[field]; ok {
		return msg
	}
	return "invalid payload"
}

// rejection is an input error whose message is safe to send back to the client.
type rejection struct {
	message string
	cause   error
}

func (r *rejection) Error() string { return r.message }
func (r *rejection) Unwrap() error { return r.cause }

func normalize(code *string) { *code = partycode.Normalize(*code) }
