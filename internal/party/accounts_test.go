package party

import (
	"context"
	"errors"
	"testing"

	"watchparty/backend/internal/apperr"
	"watchparty/backend/internal/directory"
	"watchparty/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestAccounts(dir directory.Directory) *Accounts {
	a := NewAccounts(dir)
	a.cost = bcrypt.MinCost
	return a
}

func TestAccounts_RegisterAndLogin(t *testing.T) {
	accounts := newTestAccounts(directory.NewMemoryDirectory())
	ctx := context.Background()

	user, err := accounts.Register(ctx, "alice", "password123")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.NotEqual(t, "password123", user.PasswordHash)

	logged, err := accounts.Login(ctx, "alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)

	found, err := accounts.User(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", found.Username)
}

func TestAccounts_RegisterDuplicate(t *testing.T) {
	accounts := newTestAccounts(directory.NewMemoryDirectory())
	ctx := context.Background()

	_, err := accounts.Register(ctx, "alice", "password123")
	require.NoError(t, err)
	_, err = accounts.Register(ctx, "alice", "other-password")
	assert.ErrorIs(t, err, apperr.ErrUsernameTaken)
}

func TestAccounts_LoginFailures(t *testing.T) {
	accounts := newTestAccounts(directory.NewMemoryDirectory())
	ctx := context.Background()
	_, err := accounts.Register(ctx, "alice", "password123")
	require.NoError(t, err)

	_, err = accounts.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)

	_, err = accounts.Login(ctx, "nobody", "password123")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
}

func TestAccounts_LoginStorageFailure(t *testing.T) {
	dir := new(mockDirectory)
	ctx := context.Background()
	dir.On("FindUserByUsername", ctx, "alice").Return(nil, errors.New("db down")).Once()

	_, err := newTestAccounts(dir).Login(ctx, "alice", "password123")
	var perr *apperr.PersistenceError
	require.ErrorAs(t, err, &perr)
	dir.AssertExpectations(t)
}

func TestAccounts_RegisterStoresHash(t *testing.T) {
	dir := new(mockDirectory)
	ctx := context.Background()
	dir.On("CreateUser", ctx, mock.MatchedBy(func(u *models.User) bool {
		return u.Username == "bob" && bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("password123")) == nil
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.User).ID = 9
	}).Return(nil).Once()

	user, err := newTestAccounts(dir).Register(ctx, " bob ", "password123")
	require.NoError(t, err)
	assert.Equal(t, uint(9), user.ID)
	dir.AssertExpectations(t)
}

func TestAccounts_UnknownUser(t *testing.T) {
	_, err := newTestAccounts(directory.NewMemoryDirectory()).User(context.Background(), 42)
	assert.ErrorIs(t, err, apperr.ErrUserNotFound)
}
