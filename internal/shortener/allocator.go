package shortener

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"url-shortener/internal/db"
)

const maxURLLength = 2048

// AllocatorConfig bounds how codes are searched for.
type AllocatorConfig struct {
	Quota             int // links per owner, retired ones included
	CodeLength        int // first length tried
	MaxCodeLength     int // last length tried
	AttemptsPerLength int
}

func DefaultAllocatorConfig() AllocatorConfig {
	return AllocatorConfig{
		Quota:             100,
		CodeLength:        6,
		MaxCodeLength:     12,
		AttemptsPerLength: 10,
	}
}

// Allocator creates links under fresh random codes.
type Allocator struct {
	store    LinkStore
	cfg      AllocatorConfig
	generate Generator
	log      zerolog.Logger
}

type AllocatorOption func(*Allocator)

// WithGenerator replaces the random code source.
func WithGenerator(g Generator) AllocatorOption {
	return func(a *Allocator) { a.generate = g }
}

func NewAllocator(store LinkStore, cfg AllocatorConfig, log zerolog.Logger, opts ...AllocatorOption) *Allocator {
	a := &Allocator{
		store:    store,
		cfg:      cfg,
		generate: GenerateCode,
		log:      log,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate stores a new link from ownerID to targetURL. Each length from
// CodeLength to MaxCodeLength gets AttemptsPerLength draws; a draw that is
// already taken, or loses an insert race, is simply skipped.
func (a *Allocator) Allocate(ctx context.Context, ownerID, targetURL string) (*db.Link, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: missing owner", ErrInvalidInput)
	}
	targetURL = strings.TrimSpace(targetURL)
	if err := ValidateURL(targetURL); err != nil {
		return nil, err
	}

	count, err := a.store.CountLinksByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("count links: %w", err)
	}
	if count >= int64(a.cfg.Quota) {
		return nil, ErrQuotaExceeded
	}

	for length := a.cfg.CodeLength; length <= a.cfg.MaxCodeLength; length++ {
		for attempt := 0; attempt < a.cfg.AttemptsPerLength; attempt++ {
			code, err := a.generate(length)
			if err != nil {
				return nil, fmt.Errorf("generate code: %w", err)
			}

			taken, err := a.store.ActiveCodeExists(ctx, code)
			if err != nil {
				return nil, fmt.Errorf("check code: %w", err)
			}
			if taken {
				a.log.Debug().Str("code", code).Int("length", length).Msg("code collision, retrying")
				continue
			}

			link := &db.Link{
				OwnerID:     ownerID,
				Keyword:     code,
				OriginalURL: targetURL,
			}
			err = a.store.CreateLink(ctx, link)
			if errors.Is(err, db.ErrDuplicateCode) {
				a.log.Debug().Str("code", code).Msg("lost insert race, retrying")
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("create link: %w", err)
			}
			return link, nil
		}
	}

	a.log.Error().
		Str("owner_id", ownerID).
		Int("max_length", a.cfg.MaxCodeLength).
		Msg("short code space exhausted")
	return nil, ErrCodeSpaceExhausted
}

// ValidateURL accepts absolute http and https URLs with a host.
func ValidateURL(raw string) error {
	if raw == "" || len(raw) > maxURLLength {
		return fmt.Errorf("%w: url must be 1-%d characters", ErrInvalidInput, maxURLLength)
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidInput, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: url has no host", ErrInvalidInput)
	}
	return nil
}
