package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrMissingField   = errors.New("missing field")
	ErrEmptyPrompt    = errors.New("empty prompt")
	ErrInvalidPayload = errors.New("invalid payload")
	ErrEngineFailure  = errors.New("engine failure")
)
