// Package services defines the feed business logic: composing posts,
// writing them into feeds and reading feeds back. This file centralizes the
// validation errors returned before any dependency is contacted.
//
// Dependency failures are not listed here; they surface as
// *domain.DependencyError and are classified with errors.Is against the
// domain sentinels.
package services

import "errors"

// Request validation errors.
var (
	// ErrInvalidUser is returned when the author id is not positive or the
	// username is blank.
	ErrInvalidUser = errors.New("user id must be positive and username non-empty")

	// ErrInvalidPostType is returned for a post type outside the known set.
	ErrInvalidPostType = errors.New("unknown post type")

	// ErrMediaMismatch is returned when media ids and media types differ in
	// length.
	ErrMediaMismatch = errors.New("media ids and media types must have the same length")
)

// IsValidation reports whether err is one of the request validation errors.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidUser) ||
		errors.Is(err, ErrInvalidPostType) ||
		errors.Is(err, ErrMediaMismatch)
}
