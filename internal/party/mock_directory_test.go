package party

import (
	"context"

	"watchparty/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) CreateParty(ctx context.Context, party *models.Party) error {
	return m.Called(ctx, party).Error(0)
}

func (m *mockDirectory) FindPartyByCode(ctx context.Context, code string) (*models.Party, error) {
	args := m.Called(ctx, code)
	if p, ok := args.Get(0).(*models.Party); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDirectory) DeleteParty(ctx context.Context, partyID uint) error {
	return m.Called(ctx, partyID).Error(0)
}

func (m *mockDirectory) AddMember(ctx context.Context, partyID, userID uint) (*models.Membership, error) {
	args := m.Called(ctx, partyID, userID)
	if ms, ok := args.Get(0).(*models.Membership); ok {
		return ms, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDirectory) RemoveMember(ctx context.Context, partyID, userID uint) error {
	return m.Called(ctx, partyID, userID).Error(0)
}

func (m *mockDirectory) ListMembers(ctx context.Context, partyID uint) ([]models.Member, error) {
	args := m.Called(ctx, partyID)
	if ms, ok := args.Get(0).([]models.Member); ok {
		return ms, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDirectory) CreateUser(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockDirectory) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if u, ok := args.Get(0).(*models.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDirectory) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if u, ok := args.Get(0).(*models.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
