package shortener

import (
	"context"
	"errors"
	"fmt"

	"url-shortener/internal/db"
)

// Resolver turns a public code into its target and counts the click.
type Resolver struct {
	store         LinkStore
	maxCodeLength int
}

func NewResolver(store LinkStore, maxCodeLength int) *Resolver {
	return &Resolver{store: store, maxCodeLength: maxCodeLength}
}

// Resolve returns the active link for code after recording one click.
// Unknown, malformed and retired codes all yield ErrNotFound and leave
// every counter untouched.
func (r *Resolver) Resolve(ctx context.Context, code string) (*db.Link, error) {
	if !ValidCode(code, r.maxCodeLength) {
		return nil, ErrNotFound
	}

	link, err := r.store.FindActiveLinkByCode(ctx, code)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find link: %w", err)
	}

	// The increment re-checks retired, so a link retired after the read
	// above is reported as missing rather than counted.
	err = r.store.IncrementClicks(ctx, link.ID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("count click: %w", err)
	}

	link.Clicks++
	return link, nil
}
