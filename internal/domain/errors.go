package domain

import "errors"

var (
	// ErrEmptyHTML signals a request without HTML content.
	ErrEmptyHTML = errors.New("HTML content not provided")
	// ErrInvalidAPIKey signals that the provided API key is not known.
	ErrInvalidAPIKey = errors.New("invalid api key")
	// ErrTokenStoreNotReady signals that the token store has not been loaded yet.
	// This can happen during startup when the DB isn't ready.
	ErrTokenStoreNotReady = errors.New("token store not ready")
)
