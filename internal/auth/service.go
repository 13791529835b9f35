package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"url-shortener/internal/db"
	"url-shortener/internal/mailer"
	"url-shortener/internal/otp"
)

// UserStore is the user persistence the service needs. *db.Store satisfies it.
type UserStore interface {
	CreateUser(ctx context.Context, user *db.User) error
	FindUserByEmail(ctx context.Context, email string) (*db.User, error)
	FindUserByID(ctx context.Context, id string) (*db.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
}

// TokenPair is what a successful sign-in hands back.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Mobile   string
}

// Service implements registration, sign-in and OTP password reset.
type Service struct {
	users      UserStore
	otps       otp.Store
	otpGen     *otp.Generator
	mailer     mailer.Mailer
	tokens     *TokenManager
	bcryptCost int
	log        zerolog.Logger
	now        func() time.Time
}

func NewService(
	users UserStore,
	otps otp.Store,
	otpGen *otp.Generator,
	mail mailer.Mailer,
	tokens *TokenManager,
	bcryptCost int,
	log zerolog.Logger,
) *Service {
	return &Service{
		users:      users,
		otps:       otps,
		otpGen:     otpGen,
		mailer:     mail,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		log:        log,
		now:        time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*TokenPair, error) {
	hash, err := hashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &db.User{
		Name:     strings.TrimSpace(in.Name),
		Email:    normalizeEmail(in.Email),
		Password: hash,
		Mobile:   strings.TrimSpace(in.Mobile),
	}
	err = s.users.CreateUser(ctx, user)
	if errors.Is(err, db.ErrDuplicateEmail) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("user registered")
	return s.issuePair(user)
}

// Login checks credentials. Unknown emails and wrong passwords are not
// told apart. A verified but unused reset code is discarded.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	email = normalizeEmail(email)
	user, err := s.users.FindUserByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if !checkPassword(user.Password, password) {
		return nil, ErrInvalidCredentials
	}

	entry, err := s.otps.Get(ctx, email)
	switch {
	case err == nil && entry.Verified:
		if err := s.otps.Clear(ctx, email); err != nil {
			s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to clear otp on login")
		}
	case err != nil && !errors.Is(err, otp.ErrNotFound):
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to read otp on login")
	}

	return s.issuePair(user)
}

// Refresh exchanges a refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", ErrUnauthorized
	}
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return "", err
	}
	user, err := s.users.FindUserByID(ctx, claims.ID)
	if errors.Is(err, db.ErrNotFound) {
		return "", ErrUnauthorized
	}
	if err != nil {
		return "", fmt.Errorf("refresh: %w", err)
	}
	return s.tokens.IssueAccess(user)
}

func (s *Service) Me(ctx context.Context, userID string) (*db.User, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("me: %w", err)
	}
	return user, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if !checkPassword(user.Password, current) {
		return ErrInvalidCredentials
	}
	return s.setPassword(ctx, user, next)
}

// ForgotPassword issues a reset code and emails it.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	user, err := s.users.FindUserByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}

	entry, err := s.otpGen.New()
	if err != nil {
		return err
	}
	if err := s.otps.Save(ctx, email, entry); err != nil {
		return fmt.Errorf("save otp: %w", err)
	}

	if err := s.mailer.SendOTP(ctx, email, user.Name, entry.Code, s.otpGen.TTL); err != nil {
		if clearErr := s.otps.Clear(ctx, email); clearErr != nil {
			s.log.Warn().Err(clearErr).Str("user_id", user.ID).Msg("failed to clear undelivered otp")
		}
		return fmt.Errorf("send otp: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("password reset code issued")
	return nil
}

func (s *Service) VerifyOTP(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)
	entry, err := s.otps.Get(ctx, email)
	if errors.Is(err, otp.ErrNotFound) {
		return ErrInvalidOTP
	}
	if err != nil {
		return fmt.Errorf("verify otp: %w", err)
	}
	if entry.Expired(s.now()) {
		return ErrOTPExpired
	}
	if !entry.Matches(code) {
		return ErrInvalidOTP
	}
	if err := s.otps.MarkVerified(ctx, email); err != nil {
		if errors.Is(err, otp.ErrNotFound) {
			return ErrOTPExpired
		}
		return fmt.Errorf("verify otp: %w", err)
	}
	return nil
}

// ResetPassword sets a new password once the emailed code was verified
// and has not yet expired.
func (s *Service) ResetPassword(ctx context.Context, email, next string) error {
	email = normalizeEmail(email)
	entry, err := s.otps.Get(ctx, email)
	if errors.Is(err, otp.ErrNotFound) {
		return ErrOTPNotVerified
	}
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	if !entry.Verified {
		return ErrOTPNotVerified
	}
	if entry.Expired(s.now()) {
		return ErrOTPExpired
	}

	user, err := s.users.FindUserByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	if err := s.setPassword(ctx, user, next); err != nil {
		return err
	}
	if err := s.otps.Clear(ctx, email); err != nil && !errors.Is(err, otp.ErrNotFound) {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to clear otp after reset")
	}
	return nil
}

func (s *Service) setPassword(ctx context.Context, user *db.User, password string) error {
	hash, err := hashPassword(password, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.log.Info().Str("user_id", user.ID).Msg("password changed")
	return nil
}

func (s *Service) issuePair(user *db.User) (*TokenPair, error) {
	access, err := s.tokens.IssueAccess(user)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefresh(user)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Tokens exposes the token manager to the HTTP layer.
func (s *Service) Tokens() *TokenManager {
	return s.tokens
}
