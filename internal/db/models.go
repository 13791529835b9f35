package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
)

// Preview states for crawler snapshots.
const (
	PreviewNone      = "none"
	PreviewPending   = "pending"
	PreviewRendering = "rendering"
	PreviewCompleted = "completed"
	PreviewFailed    = "failed"
)

// Link is a short code owned by a user that redirects to OriginalURL.
// Keyword is unique among links that are not retired.
type Link struct {
	ID            string `gorm:"type:varchar(36);primary_key"`
	OwnerID       string `gorm:"column:user_id;type:varchar(36);not null;index"`
	Keyword       string `gorm:"type:varchar(32);not null"`
	OriginalURL   string `gorm:"type:text;not null"`
	Clicks        int64  `gorm:"not null"`
	Retired       bool   `gorm:"not null"`
	PreviewHTML   string `gorm:"type:text"`
	PreviewStatus string `gorm:"type:varchar(16);not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (l *Link) BeforeCreate(scope *gorm.Scope) error {
	if l.ID == "" {
		if err := scope.SetColumn("ID", uuid.NewString()); err != nil {
			return err
		}
	}
	if l.PreviewStatus == "" {
		return scope.SetColumn("PreviewStatus", PreviewNone)
	}
	return nil
}

// User owns links. The otp columns hold the pending password-reset code
// when OTP state is kept in the database.
type User struct {
	ID           string     `gorm:"type:varchar(36);primary_key"`
	Name         string     `gorm:"type:varchar(100);not null"`
	Email        string     `gorm:"type:varchar(255);not null;unique_index"`
	Password     string     `gorm:"type:varchar(255);not null"`
	Mobile       string     `gorm:"type:varchar(32)"`
	OTPCode      string     `gorm:"column:otp_code;type:varchar(16)"`
	OTPExpiredAt *time.Time `gorm:"column:otp_expired_at"`
	OTPVerified  bool       `gorm:"column:otp_verified;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *User) BeforeCreate(scope *gorm.Scope) error {
	if u.ID == "" {
		return scope.SetColumn("ID", uuid.NewString())
	}
	return nil
}
