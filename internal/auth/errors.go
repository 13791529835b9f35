package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user does not exist")
	ErrInvalidOTP         = errors.New("invalid otp")
	ErrOTPExpired         = errors.New("otp expired")
	ErrOTPNotVerified     = errors.New("otp not verified")
)
