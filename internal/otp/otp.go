package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"
)

var ErrNotFound = errors.New("otp not found")

// Entry is a one-time password issued to an email address.
type Entry struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	Verified  bool      `json:"verified"`
}

// Expired reports whether the entry is past its expiry at now.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Matches compares code against the entry in constant time.
func (e Entry) Matches(code string) bool {
	return subtle.ConstantTimeCompare([]byte(e.Code), []byte(code)) == 1
}

// Store keeps at most one entry per email.
type Store interface {
	Save(ctx context.Context, email string, entry Entry) error
	Get(ctx context.Context, email string) (*Entry, error)
	MarkVerified(ctx context.Context, email string) error
	Clear(ctx context.Context, email string) error
}

// Generator issues numeric codes of Length digits without a leading zero.
type Generator struct {
	Length int
	TTL    time.Duration
	Now    func() time.Time
}

func NewGenerator(length int, ttl time.Duration) *Generator {
	return &Generator{Length: length, TTL: ttl, Now: time.Now}
}

func (g *Generator) New() (Entry, error) {
	if g.Length <= 0 || g.Length > 18 {
		return Entry{}, fmt.Errorf("invalid otp length %d", g.Length)
	}
	lower := pow10(g.Length - 1)
	span := new(big.Int).Sub(pow10(g.Length), lower)

	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return Entry{}, fmt.Errorf("generate otp: %w", err)
	}
	return Entry{
		Code:      n.Add(n, lower).String(),
		ExpiresAt: g.Now().Add(g.TTL),
	}, nil
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
