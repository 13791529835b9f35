package shortener

import (
	"context"

	"url-shortener/internal/db"
)

// LinkStore is the persistence the link core needs. *db.Store satisfies it.
type LinkStore interface {
	CountLinksByOwner(ctx context.Context, ownerID string) (int64, error)
	ActiveCodeExists(ctx context.Context, code string) (bool, error)
	CreateLink(ctx context.Context, link *db.Link) error
	FindActiveLinkByCode(ctx context.Context, code string) (*db.Link, error)
	FindOwnedActiveLinkByCode(ctx context.Context, ownerID, code string) (*db.Link, error)
	ListActiveLinksByOwner(ctx context.Context, ownerID string) ([]db.Link, error)
	IncrementClicks(ctx context.Context, id string) error
	RetireLink(ctx context.Context, ownerID, id string) error
	FindPreviewHTML(ctx context.Context, id string) (string, error)
}

// PreviewQueue accepts crawler snapshot jobs for new links.
type PreviewQueue interface {
	Enqueue(linkID, originalURL string) bool
}
