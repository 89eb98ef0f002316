package directory

import (
	"context"
	"errors"
	"fmt"

	"watchparty/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDirectory is the Postgres-backed Directory.
type GormDirectory struct {
	db *gorm.DB
}

// NewGormDirectory creates a GormDirectory. db must be opened with TranslateError so
// unique violations surface as gorm.ErrDuplicatedKey.
func NewGormDirectory(db *gorm.DB) *GormDirectory {
	if db == nil {
		panic("database connection cannot be nil for GormDirectory")
	}
	return &GormDirectory{db: db}
}

func (d *GormDirectory) CreateParty(ctx context.Context, party *models.Party) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(party).Error; err != nil {
			return translate(err, "create party %s", party.Code)
		}
		membership := models.Membership{PartyID: party.ID, UserID: party.AdminID}
		if err := tx.Omit(clause.Associations).Create(&membership).Error; err != nil {
			return translate(err, "add admin %d to party %d", party.AdminID, party.ID)
		}
		return nil
	})
}

func (d *GormDirectory) FindPartyByCode(ctx context.Context, code string) (*models.Party, error) {
	var party models.Party
	if err := d.db.WithContext(ctx).Where("code = ?", code).First(&party).Error; err != nil {
		return nil, translate(err, "find party by code %s", code)
	}
	return &party, nil
}

func (d *GormDirectory) DeleteParty(ctx context.Context, partyID uint) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("party_id = ?", partyID).Delete(&models.Membership{}).Error; err != nil {
			return translate(err, "delete memberships of party %d", partyID)
		}
		if err := tx.Delete(&models.Party{}, partyID).Error; err != nil {
			return translate(err, "delete party %d", partyID)
		}
		return nil
	})
}

func (d *GormDirectory) AddMember(ctx context.Context, partyID, userID uint) (*models.Membership, error) {
	membership := models.Membership{PartyID: partyID, UserID: userID}
	err := d.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&membership).Error
	if err != nil {
		return nil, translate(err, "add user %d to party %d", userID, partyID)
	}

	// Re-read so a duplicate join returns the original row and timestamp.
	var stored models.Membership
	if err := d.db.WithContext(ctx).
		Where("party_id = ? AND user_id = ?", partyID, userID).
		First(&stored).Error; err != nil {
		return nil, translate(err, "load membership %d/%d", partyID, userID)
	}
	return &stored, nil
}

func (d *GormDirectory) RemoveMember(ctx context.Context, partyID, userID uint) error {
	err := d.db.WithContext(ctx).
		Where("party_id = ? AND user_id = ?", partyID, userID).
		Delete(&models.Membership{}).Error
	return translate(err, "remove user %d from party %d", userID, partyID)
}

func (d *GormDirectory) ListMembers(ctx context.Context, partyID uint) ([]models.Member, error) {
	members := []models.Member{}
	err := d.db.WithContext(ctx).
		Table("users").
		Select("users.id, users.username").
		Joins("JOIN memberships ON memberships.user_id = users.id").
		Where("memberships.party_id = ?", partyID).
		Order("memberships.created_at, users.id").
		Scan(&members).Error
	if err != nil {
		return nil, translate(err, "list members of party %d", partyID)
	}
	return members, nil
}

func (d *GormDirectory) CreateUser(ctx context.Context, user *models.User) error {
	return translate(d.db.WithContext(ctx).Create(user).Error, "create user %s", user.Username)
}

func (d *GormDirectory) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := d.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, translate(err, "find user %s", username)
	}
	return &user, nil
}

func (d *GormDirectory) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := d.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err, "find user %d", id)
	}
	return &user, nil
}

// translate maps gorm errors onto the directory sentinels and adds context to the rest.
func translate(err error, format string, args ...any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrDuplicate)
	default:
		return fmt.Errorf("gorm: %s: %w", fmt.Sprintf(format, args...), err)
	}
}
