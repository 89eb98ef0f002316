package models

import "time"

// Party represents a watch party addressed by its short code.
// The admin is always a member while the party exists.
type Party struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	AdminID   uint      `gorm:"not null;index" json:"adminId"`
	Code      string    `gorm:"size:7;uniqueIndex;not null" json:"partyCode"`
	CreatedAt time.Time `json:"createdAt"`

	Admin User `gorm:"foreignKey:AdminID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// Membership links a user to a party.
// The primary key is a composite of (PartyID, UserID) to ensure uniqueness.
type Membership struct {
	PartyID   uint      `gorm:"primaryKey" json:"partyId"`
	UserID    uint      `gorm:"primaryKey" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`

	Party Party `gorm:"foreignKey:PartyID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	User  User  `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}
