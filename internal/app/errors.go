package app

import (
	"errors"
	"fmt"
	"net/http"

	"lexdraft/api/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
	Err     error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func notFound(message string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", message, nil)
}

func conflict(message string) *DomainError {
	return domainError(http.StatusConflict, "CONFLICT", message, nil)
}

func validation(message string, details any) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, details)
}

func unauthorized(message string) *DomainError {
	return domainError(http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}

func forbidden(message string) *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", message, nil)
}

func upstreamFailure(message string, err error) *DomainError {
	e := domainError(http.StatusBadGateway, "UPSTREAM_FAILURE", message, nil)
	e.Err = err
	return e
}

func persistenceError(action string, err error) *DomainError {
	e := domainError(http.StatusServiceUnavailable, "PERSISTENCE_ERROR", "Storage unavailable", map[string]any{"action": action})
	e.Err = err
	return e
}

// storeError translates store sentinels for subject and passes domain errors through untouched.
// Anything else is a persistence failure for action.
func storeError(action string, err error, subject string) error {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return notFound(subject + " not found")
	case errors.Is(err, store.ErrDuplicate):
		return conflict(subject + " already exists")
	default:
		return persistenceError(action, err)
	}
}
