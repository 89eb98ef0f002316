// Package directory is the durable store of users, parties and memberships.
package directory

import (
	"context"
	"errors"

	"watchparty/backend/internal/models"
)

var (
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("directory: record not found")
	// ErrDuplicate means a unique constraint (party code, username) was violated.
	ErrDuplicate = errors.New("directory: duplicate entry")
)

// Directory is implemented by the GORM store and by the in-memory store.
// Party codes passed in are already normalised.
type Directory interface {
	// CreateParty inserts the party and the admin's membership atomically.
	CreateParty(ctx context.Context, party *models.Party) error
	FindPartyByCode(ctx context.Context, code string) (*models.Party, error)
	// DeleteParty removes the party and every membership it has.
	DeleteParty(ctx context.Context, partyID uint) error

	// AddMember is idempotent: an existing membership is returned unchanged.
	AddMember(ctx context.Context, partyID, userID uint) (*models.Membership, error)
	RemoveMember(ctx context.Context, partyID, userID uint) error
	ListMembers(ctx context.Context, partyID uint) ([]models.Member, error)

	CreateUser(ctx context.Context, user *models.User) error
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUserByID(ctx context.Context, id uint) (*models.User, error)
}
