// Package party orchestrates the party lifecycle: creation, joining, leaving and
// dissolution, keeping the live rooms in step with the directory.
package party

import (
	"context"
	"errors"
	"fmt"

	"watchparty/backend/internal/apperr"
	"watchparty/backend/internal/directory"
	"watchparty/backend/internal/hub"
	"watchparty/backend/internal/models"
	"watchparty/backend/internal/partycode"

	"github.com/rs/zerolog/log"
)

const codeAttempts = 5

// Rooms is the part of the connection registry the lifecycle drives.
type Rooms interface {
	Broadcast(code string, event hub.Event, except hub.ConnID) hub.PublishResult
	CloseRoom(code string) []hub.Conn
}

// Details is a party together with its current members. The party's fields are
// inlined in JSON.
type Details struct {
	*models.Party
	Members []models.Member `json:"members"`
}

// LeaveOutcome reports what a leave did. Members is only set when the party survives.
type LeaveOutcome struct {
	Dissolved bool
	Members   []models.Member
}

// MembersUpdate is the payload of the membersUpdate event.
type MembersUpdate struct {
	Members []models.Member `json:"members"`
}

type Service struct {
	dir   directory.Directory
	rooms Rooms
}

func NewService(dir directory.Directory, rooms Rooms) *Service {
	return &Service{dir: dir, rooms: rooms}
}

// CreateParty persists a new party under a fresh code with adminID as its first member.
func (s *Service) CreateParty(ctx context.Context, name string, adminID uint) (*models.Party, error) {
	var lastErr error
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := partycode.Generate()
		if err != nil {
			return nil, apperr.Persistence("generate party code", err)
		}

		party := &models.Party{Name: name, AdminID: adminID, Code: code}
		err = s.dir.CreateParty(ctx, party)
		if err == nil {
			log.Info().Str("module", "party").Str("room", code).Uint("admin_id", adminID).Msg("party created")
			return party, nil
		}
		if !errors.Is(err, directory.ErrDuplicate) {
			return nil, apperr.Persistence("create party", err)
		}
		lastErr = err
	}
	return nil, apperr.Persistence("create party", fmt.Errorf("no free party code after %d attempts: %w", codeAttempts, lastErr))
}

// Lookup resolves a party code.
func (s *Service) Lookup(ctx context.Context, code string) (*models.Party, error) {
	party, err := s.dir.FindPartyByCode(ctx, partycode.Normalize(code))
	if err != nil {
		return nil, s.mapErr("find party", err)
	}
	return party, nil
}

// JoinParty adds userID to the party and tells the room about the new member list.
// Joining a party one already belongs to changes nothing but still re-announces the list.
func (s *Service) JoinParty(ctx context.Context, code string, userID uint) (*models.Membership, []models.Member, error) {
	party, err := s.Lookup(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	membership, err := s.dir.AddMember(ctx, party.ID, userID)
	if err != nil {
		return nil, nil, apperr.Persistence("join party", err)
	}
	members, err := s.dir.ListMembers(ctx, party.ID)
	if err != nil {
		return nil, nil, apperr.Persistence("list members", err)
	}

	s.rooms.Broadcast(party.Code, hub.Event{Type: hub.EventMembersUpdate, Payload: MembersUpdate{Members: members}}, "")
	log.Info().Str("module", "party").Str("room", party.Code).Uint("user_id", userID).Msg("member joined")
	return membership, members, nil
}

// LeaveParty removes userID from the party. When the admin leaves the party is
// dissolved: it is deleted, the room is told and then emptied.
func (s *Service) LeaveParty(ctx context.Context, code string, userID uint) (LeaveOutcome, error) {
	party, err := s.Lookup(ctx, code)
	if err != nil {
		return LeaveOutcome{}, err
	}
	logCtx := log.With().Str("module", "party").Str("room", party.Code).Uint("user_id", userID).Logger()

	if party.AdminID == userID {
		if err := s.dir.DeleteParty(ctx, party.ID); err != nil {
			return LeaveOutcome{}, apperr.Persistence("delete party", err)
		}
		s.rooms.Broadcast(party.Code, hub.Event{Type: hub.EventPartyDeleted}, "")
		evicted := s.rooms.CloseRoom(party.Code)
		logCtx.Info().Int("evicted", len(evicted)).Msg("party dissolved")
		return LeaveOutcome{Dissolved: true}, nil
	}

	if err := s.dir.RemoveMember(ctx, party.ID, userID); err != nil {
		return LeaveOutcome{}, apperr.Persistence("leave party", err)
	}
	members, err := s.dir.ListMembers(ctx, party.ID)
	if err != nil {
		return LeaveOutcome{}, apperr.Persistence("list members", err)
	}
	s.rooms.Broadcast(party.Code, hub.Event{Type: hub.EventMembersUpdate, Payload: MembersUpdate{Members: members}}, "")
	logCtx.Info().Msg("member left")
	return LeaveOutcome{Members: members}, nil
}

// MembersOf returns the party and its members.
func (s *Service) MembersOf(ctx context.Context, code string) (*Details, error) {
	party, err := s.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	members, err := s.dir.ListMembers(ctx, party.ID)
	if err != nil {
		return nil, apperr.Persistence("list members", err)
	}
	return &Details{Party: party, Members: members}, nil
}

func (s *Service) mapErr(op string, err error) error {
	if errors.Is(err, directory.ErrNotFound) {
		return apperr.ErrNotFound
	}
	return apperr.Persistence(op, err)
}
