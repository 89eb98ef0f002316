package directory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"watchparty/backend/internal/models"
)

// MemoryDirectory keeps everything in process memory. It is used when no database is
// configured and by tests; it enforces the same constraints as the Postgres schema.
type MemoryDirectory struct {
	mu          sync.RWMutex
	nextUserID  uint
	nextPartyID uint
	users       map[uint]*models.User
	parties     map[uint]*models.Party
	codes       map[string]uint
	memberships []models.Membership
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		users:   make(map[uint]*models.User),
		parties: make(map[uint]*models.Party),
		codes:   make(map[string]uint),
	}
}

func (d *MemoryDirectory) CreateParty(_ context.Context, party *models.Party) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, taken := d.codes[party.Code]; taken {
		return fmt.Errorf("create party %s: %w", party.Code, ErrDuplicate)
	}
	if _, ok := d.users[party.AdminID]; !ok {
		return fmt.Errorf("create party %s: admin %d does not exist", party.Code, party.AdminID)
	}

	d.nextPartyID++
	stored := *party
	stored.ID = d.nextPartyID
	stored.CreatedAt = time.Now()
	d.parties[stored.ID] = &stored
	d.codes[stored.Code] = stored.ID
	d.memberships = append(d.memberships, models.Membership{
		PartyID:   stored.ID,
		UserID:    stored.AdminID,
		CreatedAt: stored.CreatedAt,
	})

	*party = stored
	return nil
}

func (d *MemoryDirectory) FindPartyByCode(_ context.Context, code string) (*models.Party, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.codes[code]
	if !ok {
		return nil, ErrNotFound
	}
	party := *d.parties[id]
	return &party, nil
}

func (d *MemoryDirectory) DeleteParty(_ context.Context, partyID uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	party, ok := d.parties[partyID]
	if !ok {
		return nil
	}
	delete(d.codes, party.Code)
	delete(d.parties, partyID)

	kept := d.memberships[:0]
	for _, m := range d.memberships {
		if m.PartyID != partyID {
			kept = append(kept, m)
		}
	}
	d.memberships = kept
	return nil
}

func (d *MemoryDirectory) AddMember(_ context.Context, partyID, userID uint) (*models.Membership, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.parties[partyID]; !ok {
		return nil, fmt.Errorf("add user %d to party %d: party does not exist", userID, partyID)
	}
	if _, ok := d.users[userID]; !ok {
		return nil, fmt.Errorf("add user %d to party %d: user does not exist", userID, partyID)
	}
	for _, m := range d.memberships {
		if m.PartyID == partyID && m.UserID == userID {
			existing := m
			return &existing, nil
		}
	}

	m := models.Membership{PartyID: partyID, UserID: userID, CreatedAt: time.Now()}
	d.memberships = append(d.memberships, m)
	return &m, nil
}

func (d *MemoryDirectory) RemoveMember(_ context.Context, partyID, userID uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, m := range d.memberships {
		if m.PartyID == partyID && m.UserID == userID {
			d.memberships = append(d.memberships[:i], d.memberships[i+1:]...)
			return nil
		}
	}
	return nil
}

func (d *MemoryDirectory) ListMembers(_ context.Context, partyID uint) ([]models.Member, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	members := []models.Member{}
	for _, m := range d.memberships {
		if m.PartyID != partyID {
			continue
		}
		if u, ok := d.users[m.UserID]; ok {
			members = append(members, models.Member{ID: u.ID, Username: u.Username})
		}
	}
	return members, nil
}

func (d *MemoryDirectory) CreateUser(_ context.Context, user *models.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, u := range d.users {
		if u.Username == user.Username {
			return fmt.Errorf("create user %s: %w", user.Username, ErrDuplicate)
		}
	}
	d.nextUserID++
	user.ID = d.nextUserID
	user.CreatedAt = time.Now()
	stored := *user
	d.users[stored.ID] = &stored
	return nil
}

func (d *MemoryDirectory) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, u := range d.users {
		if u.Username == username {
			found := *u
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (d *MemoryDirectory) FindUserByID(_ context.Context, id uint) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	found := *u
	return &found, nil
}
