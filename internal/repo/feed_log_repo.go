// Package repo implements the durable side of the feed system. This file
// provides the SQL-backed user-timeline log.
//
// Each (owner_id, post_id) pair is stored at most once; re-delivering the
// same entry is a silent no-op thanks to ON CONFLICT DO NOTHING against the
// unique index. Reads return the newest entries first, ordered by timestamp
// and then post id so that equal timestamps have a stable order.
//
// Functions:
//
//   - PrependFeedEntry(ctx, db, ownerID, postID, ts) -> (inserted bool, error)
//   - NewestFeedEntries(ctx, db, ownerID, limit) -> []domain.FeedEntry, error
//   - CountFeedEntries(ctx, db, ownerID) -> int64, error
//
// SQLFeedLog binds those functions to a handle and a read depth so the
// services can use them through their FeedLog interface.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-feed-backend/internal/domain"
)

// FeedLogDependency names the durable feed log in DependencyErrors.
const FeedLogDependency = "feed-log"

// PrependFeedEntry records postID at ts in ownerID's log. It reports whether
// a new row was written; an existing (owner, post) pair is left untouched.
func PrependFeedEntry(ctx context.Context, db *gorm.DB, ownerID, postID, ts int64) (bool, error) {
	e := &domain.FeedLogEntry{OwnerID: ownerID, PostID: postID, Timestamp: ts}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(e)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// NewestFeedEntries returns up to limit entries of ownerID's log, newest
// first. A non-positive limit yields an empty slice.
func NewestFeedEntries(ctx context.Context, db *gorm.DB, ownerID int64, limit int) ([]domain.FeedEntry, error) {
	if limit <= 0 {
		return []domain.FeedEntry{}, nil
	}
	var rows []domain.FeedLogEntry
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("timestamp DESC, post_id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.FeedEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.FeedEntry{OwnerID: r.OwnerID, PostID: r.PostID, Timestamp: r.Timestamp})
	}
	return out, nil
}

// CountFeedEntries returns how many entries ownerID's log holds.
func CountFeedEntries(ctx context.Context, db *gorm.DB, ownerID int64) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.FeedLogEntry{}).
		Where("owner_id = ?", ownerID).
		Count(&n).Error
	return n, err
}

// SQLFeedLog is the GORM implementation of the durable user-timeline log.
type SQLFeedLog struct {
	DB *gorm.DB
	// MaxDepth caps how many entries a single read may return.
	MaxDepth int
}

// NewSQLFeedLog wraps db. A non-positive maxDepth means 1000.
func NewSQLFeedLog(db *gorm.DB, maxDepth int) *SQLFeedLog {
	if maxDepth <= 0 {
		maxDepth = 1000
	}
	return &SQLFeedLog{DB: db, MaxDepth: maxDepth}
}

// Prepend stores the entry once; duplicates are no-ops.
func (l *SQLFeedLog) Prepend(ctx context.Context, ownerID, postID, ts int64) error {
	_, err := PrependFeedEntry(ctx, l.DB, ownerID, postID, ts)
	return domain.Backend(FeedLogDependency, "prepend", err)
}

// Newest returns up to k entries newest first, never more than MaxDepth.
func (l *SQLFeedLog) Newest(ctx context.Context, ownerID int64, k int) ([]domain.FeedEntry, error) {
	if k > l.MaxDepth {
		k = l.MaxDepth
	}
	out, err := NewestFeedEntries(ctx, l.DB, ownerID, k)
	if err != nil {
		return nil, domain.Backend(FeedLogDependency, "newest", err)
	}
	return out, nil
}

// Ping checks the underlying connection.
func (l *SQLFeedLog) Ping(ctx context.Context) error {
	sqlDB, err := l.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	return domain.Backend(FeedLogDependency, "ping", err)
}
