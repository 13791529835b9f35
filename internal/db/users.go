package db

import (
	"context"
	"fmt"
	"time"
)

func (s *Store) CreateUser(ctx context.Context, user *User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var user User
	if err := s.db.Where("email = ?", email).Take(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var user User
	if err := s.db.Where("id = ?", id).Take(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// UpdatePassword replaces the stored hash and drops any OTP state.
func (s *Store) UpdatePassword(ctx context.Context, id, hash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res := s.db.Model(&User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"password":       hash,
		"otp_code":       "",
		"otp_expired_at": nil,
		"otp_verified":   false,
	})
	if res.Error != nil {
		return fmt.Errorf("update password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveOTP records a fresh, unverified code for the user with email.
func (s *Store) SaveOTP(ctx context.Context, email, code string, expiresAt time.Time) error {
	return s.updateOTP(ctx, email, map[string]interface{}{
		"otp_code":       code,
		"otp_expired_at": expiresAt,
		"otp_verified":   false,
	})
}

func (s *Store) MarkOTPVerified(ctx context.Context, email string) error {
	return s.updateOTP(ctx, email, map[string]interface{}{"otp_verified": true})
}

func (s *Store) ClearOTP(ctx context.Context, email string) error {
	return s.updateOTP(ctx, email, map[string]interface{}{
		"otp_code":       "",
		"otp_expired_at": nil,
		"otp_verified":   false,
	})
}

func (s *Store) updateOTP(ctx context.Context, email string, fields map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res := s.db.Model(&User{}).Where("email = ?", email).UpdateColumns(fields)
	if res.Error != nil {
		return fmt.Errorf("update otp: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
