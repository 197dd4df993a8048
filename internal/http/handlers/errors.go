// Package handlers defines HTTP-layer error codes used across all feed
// endpoints and the mapping from service errors to responses.
//
// Clients branch on the code, not the message. Dependency failures name the
// failing collaborator or backend in the message, e.g.
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "dependency_failed",
//	  "message": "text-service /ComposeText failed"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/tbourn/go-feed-backend/internal/domain"
	"github.com/tbourn/go-feed-backend/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	// Dependency failures, one per error kind.
	ErrCodeDependencyUnavailable = "dependency_unavailable"
	ErrCodeDependencyFailed      = "dependency_failed"
	ErrCodeBackendFailed         = "backend_failed"
)

// classify maps an error returned by a service to status, code and message.
func classify(err error) (int, string, string) {
	if services.IsValidation(err) {
		return http.StatusBadRequest, ErrCodeBadRequest, err.Error()
	}

	var de *domain.DependencyError
	if !errors.As(err, &de) {
		return http.StatusInternalServerError, ErrCodeInternal, "internal server error"
	}
	target := de.Dependency + " " + de.Op

	switch de.Kind {
	case domain.KindConnectionUnavailable:
		return http.StatusServiceUnavailable, ErrCodeDependencyUnavailable, target + " unavailable"
	case domain.KindRemoteCallFailure:
		return http.StatusBadGateway, ErrCodeDependencyFailed, target + " failed"
	case domain.KindBackendFailure:
		return http.StatusInternalServerError, ErrCodeBackendFailed, target + " failed"
	}
	return http.StatusInternalServerError, ErrCodeInternal, "internal server error"
}
