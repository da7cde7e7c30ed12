package models

import "time"

type User struct {
	ID             uint           `gorm:"primaryKey;autoIncrement" json:"_id"`
	Username       string         `gorm:"not null"                 json:"username"`
	Email          string         `gorm:"unique;not null"          json:"email"`
	PasswordHash   string         `json:"-"`
	GoogleID       *string        `gorm:"uniqueIndex"              json:"googleId,omitempty"`
	ProfilePicture string         `json:"profilePicture"`
	PhoneNumber    string         `json:"phoneNumber"`
	SoldCount      uint           `gorm:"default:0"                json:"soldCount"`
	RefreshTokens  []RefreshToken `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// RefreshToken rows are the user's currently-valid refresh tokens.
// A row is deleted the moment its token is redeemed; presenting a token
// with no matching row wipes every row the user owns.
type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"      json:"id"`
	TokenHash string `gorm:"unique;not null" json:"-"`
	UserID    uint   `gorm:"index;not null"  json:"user_id"`
	ExpiresAt int64  `gorm:"not null"        json:"expires_at"`
}

type Post struct {
	ID        uint    `gorm:"primaryKey;autoIncrement" json:"_id"`
	Title     string  `gorm:"not null"                 json:"title"`
	Content   string  `json:"content"`
	OldPrice  float64 `json:"oldPrice"`
	NewPrice  float64 `json:"newPrice"`
	City      string  `json:"city"`
	TimesWorn uint    `json:"timesWorn"`
	Picture   string  `json:"picture"`
	SenderID  uint    `gorm:"index;not null"           json:"sender"`
}

type Comment struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"_id"`
	PostID    uint      `gorm:"index;not null"           json:"postId"`
	UserID    uint      `gorm:"index;not null"           json:"user"`
	Message   string    `gorm:"not null"                 json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
