// Package repo implements the durable side of the feed system. This file
// provides repository functions for stored posts.
//
// Posts are immutable once written: StorePost on an existing post_id leaves
// the stored row unchanged and succeeds, so a retried compose cannot fork a
// post's content.
package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-feed-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound so callers can match either.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate is returned when an insert hits a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

// StorePost inserts p unless a post with the same id already exists.
func StorePost(ctx context.Context, db *gorm.DB, p domain.Post) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(domain.NewStoredPost(p)).Error
}

// GetPost fetches a single post by id, or ErrNotFound.
func GetPost(ctx context.Context, db *gorm.DB, postID int64) (*domain.Post, error) {
	var row domain.StoredPost
	if err := db.WithContext(ctx).First(&row, "post_id = ?", postID).Error; err != nil {
		return nil, err
	}
	p := row.Post()
	return &p, nil
}

// GetPosts fetches the posts for ids in the order requested. Ids with no
// stored post are skipped; repeated ids yield the post once.
func GetPosts(ctx context.Context, db *gorm.DB, ids []int64) ([]domain.Post, error) {
	if len(ids) == 0 {
		return []domain.Post{}, nil
	}
	var rows []domain.StoredPost
	if err := db.WithContext(ctx).Where("post_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]domain.StoredPost, len(rows))
	for _, r := range rows {
		byID[r.PostID] = r
	}
	out := make([]domain.Post, 0, len(rows))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r.Post())
			delete(byID, id)
		}
	}
	return out, nil
}

// isDuplicate detects unique-constraint violations across drivers that may
// not map to gorm.ErrDuplicatedKey.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// SQLite typically: "UNIQUE constraint failed"
	// Postgres typically: "duplicate key value violates unique constraint"
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
