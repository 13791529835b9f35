package db

import (
	"context"
	"fmt"

	"github.com/jinzhu/gorm"
)

// linkColumns is everything but the preview snapshot, which can be large
// and is only read for crawlers.
const linkColumns = "id, user_id, keyword, original_url, clicks, retired, preview_status, created_at, updated_at"

// CreateLink inserts link. A clash on the active-keyword index is reported
// as ErrDuplicateCode.
func (s *Store) CreateLink(ctx context.Context, link *Link) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.Create(link).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("create link: %w", err)
	}
	return nil
}

// CountLinksByOwner counts every link the owner ever created, retired ones
// included.
func (s *Store) CountLinksByOwner(ctx context.Context, ownerID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.Model(&Link{}).Where("user_id = ?", ownerID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count links: %w", err)
	}
	return n, nil
}

func (s *Store) ActiveCodeExists(ctx context.Context, code string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var n int64
	err := s.db.Model(&Link{}).
		Where("keyword = ? AND retired = ?", code, false).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check code: %w", err)
	}
	return n > 0, nil
}

func (s *Store) FindActiveLinkByCode(ctx context.Context, code string) (*Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var link Link
	err := s.db.Select(linkColumns).
		Where("keyword = ? AND retired = ?", code, false).
		Take(&link).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &link, nil
}

// FindOwnedActiveLinkByCode is FindActiveLinkByCode restricted to one owner.
func (s *Store) FindOwnedActiveLinkByCode(ctx context.Context, ownerID, code string) (*Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var link Link
	err := s.db.Select(linkColumns).
		Where("keyword = ? AND user_id = ? AND retired = ?", code, ownerID, false).
		Take(&link).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &link, nil
}

// ListActiveLinksByOwner returns the owner's active links, newest first.
func (s *Store) ListActiveLinksByOwner(ctx context.Context, ownerID string) ([]Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	links := []Link{}
	err := s.db.Select(linkColumns).
		Where("user_id = ? AND retired = ?", ownerID, false).
		Order("created_at desc").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

// IncrementClicks adds one click in a single statement so concurrent hits
// never lose an update. A link retired since it was read yields ErrNotFound.
func (s *Store) IncrementClicks(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res := s.db.Model(&Link{}).
		Where("id = ? AND retired = ?", id, false).
		UpdateColumn("clicks", gorm.Expr("clicks + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("increment clicks: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RetireLink soft-deletes a link the owner holds. Foreign, unknown and
// already retired links all yield ErrNotFound.
func (s *Store) RetireLink(ctx context.Context, ownerID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res := s.db.Model(&Link{}).
		Where("id = ? AND user_id = ? AND retired = ?", id, ownerID, false).
		Updates(map[string]interface{}{"retired": true})
	if res.Error != nil {
		return fmt.Errorf("retire link: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePreview stores a crawler snapshot and its status.
func (s *Store) UpdatePreview(ctx context.Context, id, html, status string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Model(&Link{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{"preview_html": html, "preview_status": status}).Error
	if err != nil {
		return fmt.Errorf("update preview: %w", err)
	}
	return nil
}

func (s *Store) FindPreviewHTML(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var link Link
	err := s.db.Select("preview_html").
		Where("id = ? AND preview_status = ?", id, PreviewCompleted).
		Take(&link).Error
	if err != nil {
		return "", notFound(err)
	}
	return link.PreviewHTML, nil
}
