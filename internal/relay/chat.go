package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"watchparty/backend/internal/apperr"
	"watchparty/backend/internal/hub"
	"watchparty/backend/internal/partycode"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const recordField = "value"

// ChatMessage is both the stream record value and the outbound chat payload.
type ChatMessage struct {
	PartyCode string `json:"partyCode"`
	UserID    uint   `json:"userId"`
	Message   string `json:"message"`
	SentAt    int64  `json:"sentAt,omitempty"`
}

// ChatOptions configures the stream and this instance's consumer group.
type ChatOptions struct {
	Stream string
	// MaxLen caps the stream approximately; 0 keeps everything.
	MaxLen int64
	// Group must be unique per instance so that every instance reads every record.
	Group    string
	Consumer string
	Block    time.Duration
	Batch    int64
}

func (o *ChatOptions) withDefaults() {
	if o.Stream == "" {
		o.Stream = "chat-messages"
	}
	if o.Group == "" {
		o.Group = "chat-relay"
	}
	if o.Consumer == "" {
		o.Consumer = o.Group
	}
	if o.Block <= 0 {
		o.Block = 2 * time.Second
	}
	if o.Batch <= 0 {
		o.Batch = 64
	}
}

// ChatRelay publishes chat messages to a single Redis Stream and, independently,
// consumes that stream and delivers every record to the matching local room.
type ChatRelay struct {
	rdb   *redis.Client
	rooms Rooms
	opts  ChatOptions

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewChatRelay(rdb *redis.Client, rooms Rooms, opts ChatOptions) *ChatRelay {
	opts.withDefaults()
	return &ChatRelay{rdb: rdb, rooms: rooms, opts: opts}
}

// Publish appends the message to the stream. It is fire-and-forget: failures are
// logged and never reach the caller.
func (c *ChatRelay) Publish(ctx context.Context, code string, userID uint, message string) {
	msg := ChatMessage{
		PartyCode: partycode.Normalize(code),
		UserID:    userID,
		Message:   message,
		SentAt:    time.Now().UnixMilli(),
	}
	logCtx := log.With().Str("module", "relay.chat").Str("room", msg.PartyCode).Uint("user_id", userID).Logger()

	value, err := json.Marshal(msg)
	if err != nil {
		logCtx.Error().Err(fmt.Errorf("%w: %v", apperr.ErrRelayPublish, err)).Msg("failed to encode chat message")
		return
	}

	args := &redis.XAddArgs{
		Stream: c.opts.Stream,
		Values: map[string]interface{}{recordField: value},
	}
	if c.opts.MaxLen > 0 {
		args.MaxLen = c.opts.MaxLen
		args.Approx = true
	}
	id, err := c.rdb.XAdd(ctx, args).Result()
	if err != nil {
		logCtx.Error().Err(fmt.Errorf("%w: %v", apperr.ErrRelayPublish, err)).Msg("failed to publish chat message")
		return
	}
	logCtx.Debug().Str("id", id).Msg("chat message published")
}

// Start creates the consumer group if needed and runs the consumer in the background
// until Close is called.
func (c *ChatRelay) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return errors.New("chat relay already started")
	}
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		c.consume(runCtx)
	}()
	return nil
}

// Close stops the consumer and waits for it to exit.
func (c *ChatRelay) Close() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Info().Str("module", "relay.chat").Msg("chat consumer stopped")
}

func (c *ChatRelay) ensureGroup(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.opts.Stream, c.opts.Group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on %s: %w", c.opts.Group, c.opts.Stream, err)
	}
	return nil
}

func (c *ChatRelay) consume(ctx context.Context) {
	logCtx := log.With().Str("module", "relay.chat").Str("stream", c.opts.Stream).Str("group", c.opts.Group).Logger()
	logCtx.Info().Msg("chat consumer started")

	// Entries delivered to this consumer before a restart but never acknowledged.
	c.replayPending(ctx)

	backoff := time.Second
	for ctx.Err() == nil {
		streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.opts.Group,
			Consumer: c.opts.Consumer,
			Streams:  []string{c.opts.Stream, ">"},
			Count:    c.opts.Batch,
			Block:    c.opts.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			logCtx.Error().Err(fmt.Errorf("%w: %v", apperr.ErrConsume, err)).Dur("retry_in", backoff).Msg("failed to read chat stream")
			select {
			case <-ctx.Done():
			case <-time.After(backoff):
			}
			continue
		}
		c.handleStreams(ctx, streams)
	}
}

func (c *ChatRelay) replayPending(ctx context.Context) {
	for ctx.Err() == nil {
		streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.opts.Group,
			Consumer: c.opts.Consumer,
			Streams:  []string{c.opts.Stream, "0"},
			Count:    c.opts.Batch,
			Block:    -1,
		}).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				log.Warn().Err(err).Str("module", "relay.chat").Msg("failed to read pending chat records")
			}
			return
		}
		if c.handleStreams(ctx, streams) == 0 {
			return
		}
	}
}

func (c *ChatRelay) handleStreams(ctx context.Context, streams []redis.XStream) int {
	handled := 0
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			c.handleRecord(ctx, msg)
			handled++
		}
	}
	return handled
}

// handleRecord delivers one record. Any failure, including a panic, is logged and the
// record is acknowledged so it cannot stall the stream.
func (c *ChatRelay) handleRecord(ctx context.Context, msg redis.XMessage) {
	logCtx := log.With().Str("module", "relay.chat").Str("id", msg.ID).Logger()

	defer func() {
		if rec := recover(); rec != nil {
			logCtx.Error().Err(apperr.ErrConsume).Interface("panic", rec).Msg("chat record handler panicked")
		}
		if err := c.rdb.XAck(ctx, c.opts.Stream, c.opts.Group, msg.ID).Err(); err != nil {
			logCtx.Warn().Err(err).Msg("failed to ack chat record, it will be redelivered")
		}
	}()

	chat, err := decodeRecord(msg)
	if err != nil {
		logCtx.Warn().Err(fmt.Errorf("%w: %v", apperr.ErrConsume, err)).Msg("skipping malformed chat record")
		return
	}

	res := c.rooms.Broadcast(chat.PartyCode, hub.Event{Type: hub.EventChat, Payload: chat}, "")
	logCtx.Debug().Str("room", chat.PartyCode).Int("sent_to", res.SentTo).Msg("chat record delivered")
}

func decodeRecord(msg redis.XMessage) (ChatMessage, error) {
	var chat ChatMessage

	var raw []byte
	switch v := msg.Values[recordField].(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return chat, fmt.Errorf("record has no %q field", recordField)
	}

	if err := json.Unmarshal(raw, &chat); err != nil {
		return chat, fmt.Errorf("decode chat record: %w", err)
	}
	chat.PartyCode = partycode.Normalize(chat.PartyCode)
	if chat.PartyCode == "" {
		return chat, errors.New("chat record has no party code")
	}
	return chat, nil
}
