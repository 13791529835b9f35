package otp

import (
	"context"
	"errors"
	"time"

	"url-shortener/internal/db"
)

// UserStore is the subset of *db.Store that keeps OTP columns on users.
type UserStore interface {
	FindUserByEmail(ctx context.Context, email string) (*db.User, error)
	SaveOTP(ctx context.Context, email, code string, expiresAt time.Time) error
	MarkOTPVerified(ctx context.Context, email string) error
	ClearOTP(ctx context.Context, email string) error
}

// DBStore keeps entries on the user row.
type DBStore struct {
	users UserStore
}

func NewDBStore(users UserStore) *DBStore {
	return &DBStore{users: users}
}

func (s *DBStore) Save(ctx context.Context, email string, entry Entry) error {
	return mapNotFound(s.users.SaveOTP(ctx, email, entry.Code, entry.ExpiresAt))
}

func (s *DBStore) Get(ctx context.Context, email string) (*Entry, error) {
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if user.OTPCode == "" || user.OTPExpiredAt == nil {
		return nil, ErrNotFound
	}
	return &Entry{
		Code:      user.OTPCode,
		ExpiresAt: *user.OTPExpiredAt,
		Verified:  user.OTPVerified,
	}, nil
}

func (s *DBStore) MarkVerified(ctx context.Context, email string) error {
	return mapNotFound(s.users.MarkOTPVerified(ctx, email))
}

func (s *DBStore) Clear(ctx context.Context, email string) error {
	return mapNotFound(s.users.ClearOTP(ctx, email))
}

func mapNotFound(err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
