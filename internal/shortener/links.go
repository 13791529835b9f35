package shortener

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"url-shortener/internal/db"
)

// ErrDomainNotAllowed is returned when an allow-list is configured and the
// target host is not on it.
var ErrDomainNotAllowed = errors.New("domain not allowed")

// LinkService is the owner-facing side of links.
type LinkService struct {
	store          LinkStore
	allocator      *Allocator
	quota          int
	previews       PreviewQueue
	allowedDomains []string
	log            zerolog.Logger
}

type ServiceOption func(*LinkService)

// WithPreviewQueue enables crawler snapshots for new links.
func WithPreviewQueue(q PreviewQueue) ServiceOption {
	return func(s *LinkService) { s.previews = q }
}

// WithAllowedDomains restricts targets to the given hosts. Empty allows all.
func WithAllowedDomains(domains []string) ServiceOption {
	return func(s *LinkService) { s.allowedDomains = domains }
}

func NewLinkService(store LinkStore, allocator *Allocator, quota int, log zerolog.Logger, opts ...ServiceOption) *LinkService {
	s := &LinkService{
		store:     store,
		allocator: allocator,
		quota:     quota,
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create allocates a link and, when previews are on, queues its snapshot.
func (s *LinkService) Create(ctx context.Context, ownerID, targetURL string) (*db.Link, error) {
	targetURL = strings.TrimSpace(targetURL)
	if err := ValidateURL(targetURL); err != nil {
		return nil, err
	}
	if err := s.checkDomain(targetURL); err != nil {
		return nil, err
	}

	link, err := s.allocator.Allocate(ctx, ownerID, targetURL)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("owner_id", ownerID).
		Str("code", link.Keyword).
		Msg("link created")

	if s.previews != nil && s.previews.Enqueue(link.ID, link.OriginalURL) {
		link.PreviewStatus = db.PreviewPending
	}
	return link, nil
}

func (s *LinkService) checkDomain(targetURL string) error {
	if len(s.allowedDomains) == 0 {
		return nil
	}
	u, err := url.Parse(targetURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	host := u.Hostname()
	if !slices.Contains(s.allowedDomains, host) {
		return fmt.Errorf("%w: %s", ErrDomainNotAllowed, host)
	}
	return nil
}

// List returns the owner's active links, newest first.
func (s *LinkService) List(ctx context.Context, ownerID string) ([]db.Link, error) {
	links, err := s.store.ListActiveLinksByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

// Retire soft-deletes one of the owner's links. Links owned by someone
// else are reported exactly like links that do not exist.
func (s *LinkService) Retire(ctx context.Context, ownerID, linkID string) error {
	err := s.store.RetireLink(ctx, ownerID, linkID)
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("retire link: %w", err)
	}
	s.log.Info().Str("owner_id", ownerID).Str("link_id", linkID).Msg("link retired")
	return nil
}

// GetByCode returns the owner's active link under code.
func (s *LinkService) GetByCode(ctx context.Context, ownerID, code string) (*db.Link, error) {
	link, err := s.store.FindOwnedActiveLinkByCode(ctx, ownerID, code)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	return link, nil
}

// Usage reports how many links the owner has created and the quota.
func (s *LinkService) Usage(ctx context.Context, ownerID string) (total int64, limit int, err error) {
	total, err = s.store.CountLinksByOwner(ctx, ownerID)
	if err != nil {
		return 0, 0, fmt.Errorf("count links: %w", err)
	}
	return total, s.quota, nil
}

// Preview returns the rendered snapshot of a link, or ErrNotFound when
// none has completed.
func (s *LinkService) Preview(ctx context.Context, linkID string) (string, error) {
	html, err := s.store.FindPreviewHTML(ctx, linkID)
	if errors.Is(err, db.ErrNotFound) || (err == nil && html == "") {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get preview: %w", err)
	}
	return html, nil
}
