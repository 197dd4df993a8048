// Package repo implements the durable side of the feed system. This file
// provides the user registry, social graph and short-URL tables used by the
// development collaborators.
//
// Usernames are looked up by a case-folded key computed by the caller, so
// "Bob" and "bob" name the same account.
package repo

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-feed-backend/internal/domain"
)

// CreateUser registers userID under username. A taken id or username key
// yields ErrDuplicate.
func CreateUser(ctx context.Context, db *gorm.DB, userID int64, username, key string) (*domain.User, error) {
	u := &domain.User{UserID: userID, Username: username, UsernameKey: key}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("user %d/%q: %w", userID, username, ErrDuplicate)
		}
		return nil, err
	}
	return u, nil
}

// GetUser fetches a user by id, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, userID int64) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).First(&u, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByKey fetches a user by folded username, or ErrNotFound.
func GetUserByKey(ctx context.Context, db *gorm.DB, key string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).First(&u, "username_key = ?", key).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsersByKeys returns the users whose folded usernames are in keys.
// Unknown keys are skipped.
func ListUsersByKeys(ctx context.Context, db *gorm.DB, keys []string) ([]domain.User, error) {
	if len(keys) == 0 {
		return []domain.User{}, nil
	}
	var out []domain.User
	err := db.WithContext(ctx).Where("username_key IN ?", keys).Find(&out).Error
	return out, err
}

// Follow records that followerID follows followeeID. Following twice is a
// no-op.
func Follow(ctx context.Context, db *gorm.DB, followerID, followeeID int64) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.Follow{FollowerID: followerID, FolloweeID: followeeID}).Error
}

// Unfollow removes the edge if present.
func Unfollow(ctx context.Context, db *gorm.DB, followerID, followeeID int64) error {
	return db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&domain.Follow{}).Error
}

// ListFollowers returns the ids following userID, ascending.
func ListFollowers(ctx context.Context, db *gorm.DB, userID int64) ([]int64, error) {
	out := []int64{}
	err := db.WithContext(ctx).
		Model(&domain.Follow{}).
		Where("followee_id = ?", userID).
		Order("follower_id ASC").
		Pluck("follower_id", &out).Error
	return out, err
}

// ListFollowees returns the ids userID follows, ascending.
func ListFollowees(ctx context.Context, db *gorm.DB, userID int64) ([]int64, error) {
	out := []int64{}
	err := db.WithContext(ctx).
		Model(&domain.Follow{}).
		Where("follower_id = ?", userID).
		Order("followee_id ASC").
		Pluck("followee_id", &out).Error
	return out, err
}

// StoreShortURLs saves shortened -> expanded mappings in one statement.
// Existing short forms keep their original target.
func StoreShortURLs(ctx context.Context, db *gorm.DB, urls []domain.URL) error {
	if len(urls) == 0 {
		return nil
	}
	rows := make([]domain.ShortURL, 0, len(urls))
	for _, u := range urls {
		rows = append(rows, domain.ShortURL{ShortenedURL: u.ShortenedURL, ExpandedURL: u.ExpandedURL})
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

// ExpandShortURL returns the target of a short link, or ErrNotFound.
func ExpandShortURL(ctx context.Context, db *gorm.DB, shortened string) (string, error) {
	var row domain.ShortURL
	if err := db.WithContext(ctx).First(&row, "shortened_url = ?", shortened).Error; err != nil {
		return "", err
	}
	return row.ExpandedURL, nil
}
