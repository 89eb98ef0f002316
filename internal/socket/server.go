package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"watchparty/backend/internal/apperr"
	"watchparty/backend/internal/hub"
	"watchparty/backend/internal/models"
	"watchparty/backend/internal/relay"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Parties resolves party codes for the join path.
type Parties interface {
	Lookup(ctx context.Context, code string) (*models.Party, error)
}

// ChatPublisher hands chat messages to the durable relay.
type ChatPublisher interface {
	Publish(ctx context.Context, code string, userID uint, message string)
}

type Options struct {
	SendBuffer int
}

type Server struct {
	registry *hub.Registry
	parties  Parties
	chat     ChatPublisher
	drawing  *relay.DrawingRelay
	validate *validator.Validate
	upgrader websocket.Upgrader
	opts     Options

	mu      sync.Mutex
	clients map[hub.ConnID]*Client
}

func NewServer(registry *hub.Registry, parties Parties, chat ChatPublisher, drawing *relay.DrawingRelay, opts Options) *Server {
	validate := validator.New()
	// Report json field names so validation failures map onto the wire vocabulary.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})

	return &Server{
		registry: registry,
		parties:  parties,
		chat:     chat,
		drawing:  drawing,
		validate: validate,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Socket identity is client-supplied; origins are not restricted either.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		opts:    opts,
		clients: make(map[hub.ConnID]*Client),
	}
}

// ServeWS godoc
// @Summary      Open the real-time channel
// @Description  Upgrades to a WebSocket carrying {"type","payload"} JSON frames: join, chat, leave, drawingData, clearDrawing in; userJoined, chat, drawingData, clearDrawing, membersUpdate, partyDeleted, error out.
// @Tags         realtime
// @Success      101  {string}  string  "Switching Protocols"
// @Router       /ws [get]
func (s *Server) ServeWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.Warn().Err(err).Str("module", "socket").Msg("upgrade failed")
		return
	}

	client := newClient(conn, s.opts.SendBuffer)
	s.track(client)
	log.Info().Str("module", "socket").Str("conn", string(client.id)).Str("remote", c.ClientIP()).Msg("connected")

	go client.writePump()
	s.readPump(c.Request.Context(), client)
}

// CloseAll hangs up every open connection. Used on shutdown.
func (s *Server) CloseAll() {
	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}

func (s *Server) track(c *Client) {
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
}

func (s *Server) untrack(c *Client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
}

// readPump reads and dispatches frames until the socket fails. Leaving this loop is
// the only way a connection is dropped from its rooms.
func (s *Server) readPump(ctx context.Context, c *Client) {
	logCtx := log.With().Str("module", "socket").Str("conn", string(c.id)).Logger()
	defer func() {
		rooms := s.registry.Disconnect(c)
		s.untrack(c)
		c.Close()
		_ = c.conn.Close()
		logCtx.Info().Strs("rooms", rooms).Msg("disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logCtx.Warn().Err(err).Msg("read failed")
			}
			return
		}
		s.dispatch(ctx, c, data, logCtx)
	}
}

func (s *Server) dispatch(ctx context.Context, c *Client, data []byte, logCtx zerolog.Logger) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.reject(c, "malformed frame")
		return
	}

	var err error
	switch env.Type {
	case inJoin:
		err = s.handleJoin(ctx, c, env.Payload)
	case inChat:
		err = s.handleChat(ctx, c, env.Payload)
	case inLeave:
		err = s.handleLeave(c, env.Payload)
	case inDrawingData:
		err = s.handleDrawing(c, env.Payload)
	case inClearDrawing:
		err = s.handleClear(c, env.Payload)
	default:
		err = fmt.Errorf("unknown event type %q", env.Type)
	}
	if err != nil {
		logCtx.Debug().Err(errors.Unwrap(err)).Str("type", env.Type).Str("reason", err.Error()).Msg("rejected inbound event")
		s.reject(c, err.Error())
	}
}

func (s *Server) reject(c *Client, message string) {
	c.sendEvent(hub.Event{Type: hub.EventError, Payload: ErrorPayload{Message: message}})
}

// decode fills dst from raw and validates it. Failures come back as rejections whose
// text names the offending field and never the decoder's own message.
func (s *Server) decode(raw json.RawMessage, dst interface{}, code *string) error {
	if len(raw) == 0 {
		return &rejection{message: "missing payload"}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &rejection{message: fieldMessage(typeErr.Field), cause: err}
		}
		return &rejection{message: "invalid payload", cause: err}
	}
	normalize(code)
	if err := s.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return &rejection{message: fieldMessage(fieldErrs[0].Field()), cause: err}
		}
		return &rejection{message: "invalid payload", cause: err}
	}
	return nil
}

func (s *Server) handleJoin(ctx context.Context, c *Client, raw json.RawMessage) error {
	var req roomRequest
	if err := s.decode(raw, &req, &req.PartyCode); err != nil {
		return err
	}

	party, err := s.parties.Lookup(ctx, req.PartyCode)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		log.Error().Err(err).Str("module", "socket").Str("room", req.PartyCode).Msg("party lookup failed")
		return errors.New("could not join party")
	}

	s.registry.Join(c, party.Code)
	// The admin may have dissolved the party since the lookup; its room must stay gone.
	if _, err := s.parties.Lookup(ctx, party.Code); err != nil {
		s.registry.Leave(c, party.Code)
		if errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		log.Error().Err(err).Str("module", "socket").Str("room", party.Code).Msg("party lookup failed")
		return errors.New("could not join party")
	}
	s.registry.Broadcast(party.Code, hub.Event{
		Type:    hub.EventUserJoined,
		Payload: UserJoined{UserID: req.UserID, PartyCode: party.Code},
	}, "")
	return nil
}

func (s *Server) handleChat(ctx context.Context, c *Client, raw json.RawMessage) error {
	var req chatRequest
	if err := s.decode(raw, &req, &req.PartyCode); err != nil {
		return err
	}
	s.chat.Publish(ctx, req.PartyCode, req.UserID, req.Message)
	return nil
}

func (s *Server) handleLeave(c *Client, raw json.RawMessage) error {
	var req roomRequest
	if err := s.decode(raw, &req, &req.PartyCode); err != nil {
		return err
	}
	s.registry.Leave(c, req.PartyCode)
	return nil
}

func (s *Server) handleDrawing(c *Client, raw json.RawMessage) error {
	var req drawingRequest
	if err := s.decode(raw, &req, &req.PartyCode); err != nil {
		return err
	}
	s.drawing.BroadcastDrawing(req.PartyCode, c, req.Payload)
	return nil
}

func (s *Server) handleClear(c *Client, raw json.RawMessage) error {
	var req clearRequest
	if err := s.decode(raw, &req, &req.PartyCode); err != nil {
		return err
	}
	s.drawing.BroadcastClear(req.PartyCode, c)
	return nil
}
