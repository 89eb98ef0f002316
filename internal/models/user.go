package models

import "time"

// User represents a registered user. PasswordHash never leaves the directory boundary.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:255;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Member is the public view of a user inside a party.
type Member struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}
