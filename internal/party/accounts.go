package party

import (
	"context"
	"errors"
	"strings"

	"watchparty/backend/internal/apperr"
	"watchparty/backend/internal/directory"
	"watchparty/backend/internal/models"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// Accounts registers and authenticates users against the directory.
type Accounts struct {
	dir  directory.Directory
	cost int
}

func NewAccounts(dir directory.Directory) *Accounts {
	return &Accounts{dir: dir, cost: bcrypt.DefaultCost}
}

func (a *Accounts) Register(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return nil, apperr.Persistence("hash password", err)
	}

	user := &models.User{Username: username, PasswordHash: string(hash)}
	if err := a.dir.CreateUser(ctx, user); err != nil {
		if errors.Is(err, directory.ErrDuplicate) {
			return nil, apperr.ErrUsernameTaken
		}
		return nil, apperr.Persistence("create user", err)
	}
	log.Info().Str("module", "accounts").Uint("user_id", user.ID).Msg("user registered")
	return user, nil
}

// Login checks the credentials. An unknown user and a wrong password are
// indistinguishable to the caller.
func (a *Accounts) Login(ctx context.Context, username, password string) (*models.User, error) {
	user, err := a.dir.FindUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, apperr.Persistence("find user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.ErrInvalidCredentials
	}
	return user, nil
}

func (a *Accounts) User(ctx context.Context, id uint) (*models.User, error) {
	user, err := a.dir.FindUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, apperr.Persistence("find user", err)
	}
	return user, nil
}
